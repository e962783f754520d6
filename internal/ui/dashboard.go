package ui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"yt-mirror/internal/archive"
	"yt-mirror/internal/model"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	finishedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	persistStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	crashedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	panelStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	panelHeadStyle = lipgloss.NewStyle().Bold(true)
)

// Dashboard is an archive.Observer that renders run snapshots in the
// alternate screen. Pressing esc or ctrl+c requests an abort.
type Dashboard struct {
	program *tea.Program
	abort   chan struct{}
	once    sync.Once
	done    chan struct{}
	err     error
}

type snapshotMsg archive.Snapshot

func NewDashboard(title string, opts ...tea.ProgramOption) *Dashboard {
	d := &Dashboard{
		abort: make(chan struct{}),
		done:  make(chan struct{}),
	}
	m := newDashboardModel(title, d.requestAbort)
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	d.program = tea.NewProgram(m, opts...)
	return d
}

func (d *Dashboard) Start() {
	go func() {
		defer close(d.done)
		if _, err := d.program.Run(); err != nil {
			d.err = err
			d.requestAbort()
		}
	}()
}

// Stop closes the program and restores the terminal. It returns the error
// the program exited with, if any.
func (d *Dashboard) Stop() error {
	d.program.Quit()
	<-d.done
	return d.err
}

func (d *Dashboard) Update(s archive.Snapshot) {
	d.program.Send(snapshotMsg(s))
}

func (d *Dashboard) Aborted() <-chan struct{} {
	return d.abort
}

func (d *Dashboard) requestAbort() {
	d.once.Do(func() {
		close(d.abort)
	})
}

type dashboardModel struct {
	title    string
	snap     archive.Snapshot
	gauge    progress.Model
	spinner  spinner.Model
	width    int
	abort    func()
	aborting bool
}

func newDashboardModel(title string, abort func()) dashboardModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return dashboardModel{
		title:   title,
		gauge:   progress.New(progress.WithDefaultGradient()),
		spinner: sp,
		width:   80,
		abort:   abort,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.gauge.Width = clampInt(msg.Width-8, 10, 80)
		return m, nil
	case snapshotMsg:
		m.snap = archive.Snapshot(msg)
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			m.aborting = true
			if m.abort != nil {
				m.abort()
			}
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m dashboardModel) View() string {
	header := titleStyle.Render(m.title) + "\n" + mutedStyle.Render("esc / ctrl+c: abort")
	if m.aborting {
		header += "\n" + crashedStyle.Render("aborting, in-flight downloads keep running in the background")
	}

	ratio := 0.0
	if m.snap.Total > 0 {
		ratio = float64(m.snap.Completed) / float64(m.snap.Total)
	}
	gauge := m.gauge.ViewAs(ratio) + " " + fmt.Sprintf("%d/%d", m.snap.Completed, m.snap.Total)

	innerW := clampInt(m.width-4, 20, 200)
	results := panelStyle.Width(innerW).Render(panelHeadStyle.Render("Results") + "\n" + m.renderResults(innerW-2))
	workers := panelStyle.Width(innerW).Render(panelHeadStyle.Render("Downloaders") + "\n" + m.renderWorkers(innerW-2))

	return lipgloss.JoinVertical(lipgloss.Left, header, "", gauge, results, workers)
}

func (m dashboardModel) renderResults(width int) string {
	if len(m.snap.Recent) == 0 {
		return mutedStyle.Render("no results yet")
	}
	lines := make([]string, 0, len(m.snap.Recent))
	for _, r := range m.snap.Recent {
		lines = append(lines, ResultLine(r, width))
	}
	return strings.Join(lines, "\n")
}

func (m dashboardModel) renderWorkers(width int) string {
	if len(m.snap.Workers) == 0 {
		return mutedStyle.Render("starting")
	}
	lines := make([]string, 0, len(m.snap.Workers))
	for _, w := range m.snap.Workers {
		line := truncate(WorkerLine(w), width-2)
		switch w.State {
		case model.WorkerDownloading:
			line = m.spinner.View() + " " + line
		case model.WorkerCrashed:
			line = "  " + crashedStyle.Render(line)
		default:
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// ResultLine renders one outcome, colored by kind.
func ResultLine(r model.Outcome, width int) string {
	switch r.Kind {
	case model.OutcomeFinished:
		return finishedStyle.Render(truncate("finished  "+r.JobID, width))
	case model.OutcomeSkipped:
		return mutedStyle.Render(truncate("skipped   "+r.JobID, width))
	case model.OutcomeFailed:
		return failedStyle.Render(truncate("failed    "+r.JobID+": "+oneLine(r.Error), width))
	case model.OutcomePersistenceFailed:
		return persistStyle.Render(truncate("unsaved   "+r.JobID+": "+oneLine(r.Error), width))
	default:
		return truncate(string(r.Kind)+" "+r.JobID, width)
	}
}

func WorkerLine(w model.WorkerStatus) string {
	switch w.State {
	case model.WorkerWaiting:
		return fmt.Sprintf("[%s]: Waiting", w.WorkerID)
	case model.WorkerDownloading:
		line := fmt.Sprintf("[%s]: Downloading %s", w.WorkerID, w.JobID)
		if w.Progress != "" {
			line += " " + w.Progress
		}
		return line
	case model.WorkerFinished:
		return fmt.Sprintf("[%s]: Finished", w.WorkerID)
	case model.WorkerCrashed:
		return fmt.Sprintf("[%s]: Crashed on %s", w.WorkerID, w.JobID)
	default:
		return fmt.Sprintf("[%s]: %s", w.WorkerID, w.State)
	}
}

func oneLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	return s
}

func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if width <= 3 || len(r) <= width {
		return string(r[:min(width, len(r))])
	}
	return string(r[:width-3]) + "..."
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

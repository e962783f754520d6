package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"yt-mirror/internal/model"
	"yt-mirror/internal/ytdlp"
)

type Downloader interface {
	Download(ctx context.Context, req ytdlp.Request) (ytdlp.Result, error)
}

type worker struct {
	id      string
	jobs    <-chan string
	out     chan<- model.Message
	stop    <-chan struct{}
	dl      Downloader
	target  string
	tmp     string
	filter  string
	logsDir string
	logger  *log.Logger
}

// run drives one worker from waiting to finished or crashed. The terminal
// status is always the last message it sends.
func (w *worker) run(ctx context.Context) {
	if !w.emit(model.StatusMessage(model.WorkerStatus{WorkerID: w.id, State: model.WorkerWaiting})) {
		return
	}

	for id := range w.jobs {
		if w.stopped() {
			return
		}
		if !w.emit(model.StatusMessage(model.WorkerStatus{WorkerID: w.id, State: model.WorkerDownloading, JobID: id})) {
			return
		}

		outcome, err := w.download(ctx, id)
		if err != nil {
			w.logger.Error("worker crashed", "worker", w.id, "job", id, "err", err)
			w.emit(model.StatusMessage(model.WorkerStatus{WorkerID: w.id, State: model.WorkerCrashed, JobID: id}))
			return
		}
		if !w.emit(model.OutcomeMessage(outcome)) {
			return
		}
	}

	w.emit(model.StatusMessage(model.WorkerStatus{WorkerID: w.id, State: model.WorkerFinished}))
}

// emit gives up once the run stops listening so no worker stays blocked on
// the output stream. A stopped run wins even when the buffer has room.
func (w *worker) emit(msg model.Message) bool {
	if w.stopped() {
		return false
	}
	select {
	case w.out <- msg:
		return true
	case <-w.stop:
		return false
	}
}

func (w *worker) stopped() bool {
	select {
	case <-w.stop:
		return true
	default:
		return false
	}
}

func (w *worker) download(ctx context.Context, id string) (model.Outcome, error) {
	logWriter, closeLog := w.openJobLog(id)
	defer closeLog()

	progress := newDownloadProgress()
	res, err := w.dl.Download(context.WithoutCancel(ctx), ytdlp.Request{
		VideoID:   id,
		TargetDir: w.target,
		TmpDir:    w.tmp,
		Filter:    w.filter,
		LogWriter: logWriter,
		Progress: func(stream ytdlp.OutputStream, line string) {
			if detail, ok := progress.Handle(stream, line); ok {
				w.emit(model.StatusMessage(model.WorkerStatus{
					WorkerID: w.id,
					State:    model.WorkerDownloading,
					JobID:    id,
					Progress: detail,
				}))
			}
		},
	})
	if err != nil {
		return model.Outcome{}, fmt.Errorf("download %s: %w", id, err)
	}
	return classify(w.id, id, res), nil
}

func classify(workerID, jobID string, res ytdlp.Result) model.Outcome {
	out := model.Outcome{WorkerID: workerID, JobID: jobID}
	switch {
	case !res.Success:
		out.Kind = model.OutcomeFailed
		out.Error = strings.TrimSpace(res.Stderr)
		if out.Error == "" {
			out.Error = fmt.Sprintf("downloader exited with code %d", res.ExitCode)
		}
	case res.Skipped():
		out.Kind = model.OutcomeSkipped
	default:
		out.Kind = model.OutcomeFinished
	}
	return out
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

func (w *worker) openJobLog(id string) (io.Writer, func()) {
	if strings.TrimSpace(w.logsDir) == "" {
		return nil, func() {}
	}
	name := unsafeFileChars.ReplaceAllString(id, "_") + ".log"
	f, err := os.OpenFile(filepath.Join(w.logsDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		w.logger.Warn("cannot open downloader log", "worker", w.id, "job", id, "err", err)
		return nil, func() {}
	}
	return f, func() {
		_ = f.Close()
	}
}

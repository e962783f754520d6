package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"yt-mirror/internal/config"
	"yt-mirror/internal/jobstore"
	"yt-mirror/internal/model"
	"yt-mirror/internal/runstore"
)

var (
	failedIDStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	failedErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).PaddingLeft(2)
	failedTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
)

func newFailedCommand(root *rootOptions) *cobra.Command {
	var short, jsonOut bool
	cmd := &cobra.Command{
		Use:   "failed",
		Short: "List videos whose last download attempt failed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			store, err := jobstore.OpenInDir(cfg.DataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			jobs, err := store.ListByState(cmd.Context(), model.StateFailed)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case jsonOut:
				return printJSON(out, jobs)
			case short:
				for _, j := range jobs {
					fmt.Fprintln(out, j.ID)
				}
				return nil
			}

			if runDir, err := runstore.LatestRunDir(cfg.DataDir); err == nil {
				if rec, err := runstore.LoadRunRecord(runDir); err == nil {
					fmt.Fprintln(out, failedTitleStyle.Render(fmt.Sprintf(
						"last run %s: %d dispatched, %d finished, %d failed, %d skipped",
						rec.RunID, rec.Dispatched, rec.Finished, rec.Failed, rec.Skipped,
					)))
				}
			}
			printFailedJobs(out, jobs)
			return nil
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print only video ids, one per line")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON output")
	return cmd
}

func printFailedJobs(w io.Writer, jobs []model.Job) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "no failed videos")
		return
	}
	for _, j := range jobs {
		fmt.Fprintln(w, failedIDStyle.Render(j.ID))
		msg := strings.TrimSpace(j.Error)
		if msg == "" {
			msg = "(no error text recorded)"
		}
		fmt.Fprintln(w, failedErrorStyle.Render(msg))
	}
	fmt.Fprintf(w, "failed: %d\n", len(jobs))
}

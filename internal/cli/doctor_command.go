package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"yt-mirror/internal/config"
)

func newDoctorCommand(root *rootOptions) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the downloader, ffmpeg and the configured directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			res := config.Doctor(cfg)
			out := cmd.OutOrStdout()
			if jsonOut {
				if err := printJSON(out, res); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "config: %s\n", cfg.Path)
				for _, c := range res.Checks {
					status := "ok"
					if !c.OK {
						status = "fail"
					}
					fmt.Fprintf(out, "%s: %s (%s)\n", c.Name, status, c.Message)
				}
			}
			if !res.OK {
				return errors.New("doctor checks failed")
			}
			if !jsonOut {
				fmt.Fprintln(out, "doctor: all checks passed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON output")
	return cmd
}

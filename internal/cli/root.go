package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

// Run executes the yt-mirror command line with args (without the program
// name).
func Run(args []string) error {
	return execute(context.Background(), args, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := newRootCommand(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "yt-mirror",
		Short: "Mirror YouTube bookmarks into a local audio library",
		Long: `yt-mirror collects YouTube links from browser bookmark files, queues them
in a local SQLite database and downloads their audio with yt-dlp.

Quick start:
  yt-mirror doctor
  yt-mirror prepare
  yt-mirror synchronize
  yt-mirror failed`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/yt-mirror/config.toml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newPrepareCommand(opts),
		newSynchronizeCommand(opts),
		newFailedCommand(opts),
		newDoctorCommand(opts),
	)
	return root
}

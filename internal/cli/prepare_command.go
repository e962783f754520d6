package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"yt-mirror/internal/config"
	"yt-mirror/internal/jobstore"
	"yt-mirror/internal/library"
	"yt-mirror/internal/model"
)

type prepareResult struct {
	BookmarkFiles int `json:"bookmark_files"`
	Bookmarks     int `json:"bookmarks"`
	Videos        int `json:"videos"`
	Unparsable    int `json:"unparsable"`
	Inserted      int `json:"inserted"`
}

func newPrepareCommand(root *rootOptions) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Queue every YouTube video found in the configured bookmark files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(cmd.ErrOrStderr(), root.verbose)
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			if err := cfg.RequireBookmarkFiles(); err != nil {
				return err
			}

			var bookmarks []library.Bookmark
			for _, path := range cfg.BookmarkFiles {
				found, err := library.SourceFor(path).Bookmarks(path)
				if err != nil {
					return err
				}
				logger.Debug("bookmarks read", "file", path, "count", len(found))
				bookmarks = append(bookmarks, found...)
			}

			ids, parseErrs := library.VideoIDs(bookmarks)
			for _, err := range parseErrs {
				logger.Warn("skipping bookmark", "err", err)
			}

			jobs := make([]model.Job, 0, len(ids))
			for _, id := range ids {
				jobs = append(jobs, model.Job{ID: id, State: model.StatePending})
			}

			store, err := jobstore.OpenInDir(cfg.DataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			inserted, err := store.InsertMany(cmd.Context(), jobs)
			if err != nil {
				return err
			}
			logger.Info("jobs queued", "videos", len(ids), "inserted", inserted)

			res := prepareResult{
				BookmarkFiles: len(cfg.BookmarkFiles),
				Bookmarks:     len(bookmarks),
				Videos:        len(ids),
				Unparsable:    len(parseErrs),
				Inserted:      inserted,
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), res)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "bookmark_files: %d\n", res.BookmarkFiles)
			fmt.Fprintf(out, "bookmarks: %d\n", res.Bookmarks)
			fmt.Fprintf(out, "videos: %d\n", res.Videos)
			if res.Unparsable > 0 {
				fmt.Fprintf(out, "unparsable: %d\n", res.Unparsable)
			}
			fmt.Fprintf(out, "inserted: %d\n", res.Inserted)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON output")
	return cmd
}

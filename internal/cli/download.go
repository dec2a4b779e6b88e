package cli

import (
	"context"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/noqturne/noqturne/internal/app"
	"github.com/noqturne/noqturne/pkg/download"
	"github.com/noqturne/noqturne/pkg/process"
	"github.com/noqturne/noqturne/pkg/task"
)

// NewDownloadCmd creates the download command.
func NewDownloadCmd() *cobra.Command {
	var tag bool

	cmd := &cobra.Command{
		Use:   "download URL",
		Short: "Download songs as mp3 into the tagging folder",
		Long:  "Download a song or playlist with yt-dlp, converting to mp3 into the tagging folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				files, err := runDownload(cmd, a, args[0])
				if err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "Downloaded %d songs\n", len(files))
				if !tag || len(files) == 0 {
					return nil
				}
				return runTag(cmd, a, files)
			})
		},
	}

	cmd.Flags().BoolVar(&tag, "tag", false, "Tag the downloaded songs")

	return cmd
}

// runDownload runs the download as a background task and renders its progress.
func runDownload(cmd *cobra.Command, a *app.App, url string) ([]string, error) {
	var files []string
	h := a.Tasks.Submit(cmd.Context(), task.Task{
		Name: "download",
		Run: func(ctx context.Context, report task.ReportFunc) error {
			var err error
			files, err = a.DownloadSongs(ctx, url, func(s process.Signal) {
				report(s.Percent(), s.Line)
			})
			return err
		},
	})

	out := cmd.ErrOrStderr()
	bar := newBar(out, 100, "downloading", false)
	for u := range h.Progress() {
		if bar != nil {
			_ = bar.Set64(int64(u.Percent))
			continue
		}
		printf(out, "%3.0f%% %s\n", u.Percent, u.Msg)
	}
	err := h.Wait()
	if bar != nil {
		_ = bar.Finish()
	}
	return files, err
}

// NewFetchCmd creates the fetch command.
func NewFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch URL DEST",
		Short: "Download a single file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				url, dest := args[0], args[1]
				if err := a.Fetch(cmd.Context(), url, dest, byteProgress(cmd.ErrOrStderr(), "fetching")); err != nil {
					return err
				}
				if info, err := os.Stat(dest); err == nil {
					printf(cmd.OutOrStdout(), "Saved %s (%s)\n", dest, humanize.IBytes(uint64(info.Size())))
				}
				return nil
			})
		},
	}
}

// NewFetchAllCmd creates the fetch-all command.
func NewFetchAllCmd() *cobra.Command {
	var reuse bool

	cmd := &cobra.Command{
		Use:   "fetch-all DIR URL...",
		Short: "Download several files concurrently into a directory",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				errOut := cmd.ErrOrStderr()
				var mu sync.Mutex
				paths, err := a.FetchAll(cmd.Context(), args[0], args[1:], reuse, func(p download.Progress) {
					if !p.Done {
						return
					}
					mu.Lock()
					defer mu.Unlock()
					printf(errOut, "fetched %s\n", humanize.IBytes(uint64(p.Bytes)))
				})
				if err != nil {
					return err
				}
				for _, p := range paths {
					printf(cmd.OutOrStdout(), "%s\n", p)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&reuse, "reuse", false, "Keep files that already exist in DIR")

	return cmd
}

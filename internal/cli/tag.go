package cli

import (
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/noqturne/noqturne/internal/app"
	"github.com/noqturne/noqturne/pkg/tagger"
)

// NewTagCmd creates the tag command.
func NewTagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tag [FILE...]",
		Short: "Tag songs with artist, title and cover art",
		Long: `Tag the given mp3 files, or every mp3 in the tagging folder. Artist and title
come from file names of the form "Artist - Title.mp3".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				return runTag(cmd, a, args)
			})
		},
	}
}

func runTag(cmd *cobra.Command, a *app.App, files []string) error {
	var mu sync.Mutex
	out := cmd.OutOrStdout()
	reports, err := a.Tag(cmd.Context(), files, func(r tagger.Report) {
		mu.Lock()
		defer mu.Unlock()
		printReport(out, r)
	})
	tagged := 0
	for _, r := range reports {
		if r.Err == nil {
			tagged++
		}
	}
	if len(reports) > 0 {
		printf(out, "Tagged %d of %d songs\n", tagged, len(reports))
	}
	return err
}

// NewTagOneCmd creates the tag-one command.
func NewTagOneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tag-one FILE CANDIDATE",
		Short: "Tag one song with the cover art of a chosen video id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				r, err := a.TagOne(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				printReport(cmd.OutOrStdout(), r)
				return nil
			})
		},
	}
}

func printReport(w io.Writer, r tagger.Report) {
	switch {
	case r.Err != nil:
		printf(w, "✗ %s: %v\n", r.Song, r.Err)
	case r.CoverArtErr != nil:
		printf(w, "~ %s (no cover art: %v)\n", r.Song, r.CoverArtErr)
	default:
		printf(w, "✓ %s (cover art %s)\n", r.Song, r.CandidateID)
	}
}

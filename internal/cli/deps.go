package cli

import (
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/noqturne/noqturne/internal/app"
	"github.com/noqturne/noqturne/pkg/deps"
	"github.com/noqturne/noqturne/pkg/errors"
)

// NewDepsCmd creates the deps command with subcommands.
func NewDepsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Manage external tools",
		Long:  "Inspect, install and update yt-dlp, ffmpeg and ytmusicapi",
	}

	cmd.AddCommand(
		newDepsStatusCmd(),
		newDepsEnsureCmd(),
		newDepsUpdateCmd(),
	)

	return cmd
}

func newDepsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of every dependency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app.App) error {
				statuses, err := a.Deps.Status(cmd.Context())
				if err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "%s\n", statusTable(statuses))
				return nil
			})
		},
	}
}

func statusTable(statuses []deps.Status) string {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		version := s.Version
		if version == "" {
			version = "-"
		}
		checked := "never"
		if !s.CheckedAt.IsZero() {
			checked = humanize.Time(s.CheckedAt)
		}
		rows = append(rows, []string{
			s.Name,
			s.State.String(),
			version,
			strconv.Itoa(s.UpdateFailures),
			checked,
			s.Path,
		})
	}
	return renderTable(
		[]string{"Dependency", "State", "Version", "Update failures", "Checked", "Path"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	)
}

func newDepsEnsureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure [NAME...]",
		Short: "Install missing dependencies",
		Long:  "Install the named dependencies, or all of them, when they are missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				paths, err := a.Deps.EnsureAll(cmd.Context(), args...)
				if err != nil {
					return err
				}
				names := args
				if len(names) == 0 {
					names = a.Deps.Names()
				}
				for _, name := range names {
					printf(cmd.OutOrStdout(), "%s: %s\n", name, paths[name])
				}
				return nil
			})
		},
	}
}

func newDepsUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update [NAME...]",
		Short: "Update dependencies",
		Long: `Update the named dependencies, or all of them. A failed update of an installed
tool is reported and the existing copy stays in use.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				report, err := updateDeps(cmd, a, args)
				if err != nil {
					return err
				}
				return printUpdateReport(cmd, report)
			})
		},
	}
}

func updateDeps(cmd *cobra.Command, a *app.App, names []string) (deps.UpdateReport, error) {
	if len(names) == 0 {
		return a.RefreshDependencies(cmd.Context())
	}
	var report deps.UpdateReport
	for _, name := range names {
		err := a.Deps.Update(cmd.Context(), name)
		if errors.Is(err, errors.ErrUnknownDependency) {
			return report, err
		}
		report.Results = append(report.Results, deps.UpdateResult{Name: name, Err: err})
	}
	return report, nil
}

// printUpdateReport prints each result. Only failures that left a dependency
// unusable are returned.
func printUpdateReport(cmd *cobra.Command, report deps.UpdateReport) error {
	var fatal []error
	for _, r := range report.Results {
		switch {
		case r.Err == nil:
			printf(cmd.OutOrStdout(), "%s: up to date\n", r.Name)
		case errors.Is(r.Err, errors.ErrToolUpdate):
			printf(cmd.ErrOrStderr(), "%s: update failed, keeping installed copy: %v\n", r.Name, r.Err)
		default:
			printf(cmd.ErrOrStderr(), "%s: %v\n", r.Name, r.Err)
			fatal = append(fatal, r.Err)
		}
	}
	return errors.Join(fatal...)
}

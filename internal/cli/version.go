package cli

import (
	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display version information for noqturne",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			printf(out, "noqturne version %s\n", Version)
			printf(out, "Build date: %s\n", BuildDate)
			printf(out, "Git commit: %s\n", GitCommit)
		},
	}
}

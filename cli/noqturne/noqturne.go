package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/noqturne/noqturne/internal/cli"
	"github.com/noqturne/noqturne/pkg/errors"
)

var (
	configPath string
	verbose    bool
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n  %v\n", errors.UserMessage(err), err)
		cancel()
		os.Exit(1)
	}

	cancel()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "noqturne",
		Short: "Download songs and tag them with cover art",
		Long: `noqturne downloads songs as mp3 and tags them with:
- artist and title taken from "Artist - Title" file names
- square cover art found through YouTube Music
It installs and updates yt-dlp, ffmpeg and ytmusicapi on demand.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: auto-detect)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Set up CLI pkg variables
	cli.ConfigPath = &configPath
	cli.Verbose = &verbose

	// Add subcommands
	cmd.AddCommand(
		cli.NewDepsCmd(),
		cli.NewTagCmd(),
		cli.NewTagOneCmd(),
		cli.NewDownloadCmd(),
		cli.NewFetchCmd(),
		cli.NewFetchAllCmd(),
		cli.NewConfigCmd(),
		cli.NewVersionCmd(),
	)

	return cmd
}

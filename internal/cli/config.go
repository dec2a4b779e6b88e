package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/noqturne/noqturne/internal/app"
	"github.com/noqturne/noqturne/pkg/config"
	"github.com/noqturne/noqturne/pkg/errors"
)

// keyTaggingFolder is served by the install record rather than the settings file.
const keyTaggingFolder = "tagging_folder"

// NewConfigCmd creates the config command with subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  "View and modify noqturne settings and the tagging folder",
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigSetCmd(),
		newConfigGetCmd(),
		newConfigInitCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app.App) error {
				folder, err := a.State.TaggingFolder()
				if err != nil {
					return err
				}
				values := a.Config.ToMap()
				rows := make([][]string, 0, len(values)+1)
				for _, key := range config.Keys() {
					rows = append(rows, []string{key, values[key]})
				}
				rows = append(rows, []string{keyTaggingFolder, folder})
				printf(cmd.OutOrStdout(), "%s\n", renderTable([]string{"Setting", "Value"}, rows, nil))
				return nil
			})
		},
	}
}

// Number of arguments expected by the set command.
const setCommandArgs = 2

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long:  "Set a configuration key, or tagging_folder, to a specific value",
		Args:  cobra.ExactArgs(setCommandArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if key == keyTaggingFolder {
				return withApp(cmd, func(a *app.App) error {
					if err := a.SetTaggingFolder(value); err != nil {
						return err
					}
					folder, err := a.State.TaggingFolder()
					if err != nil {
						return err
					}
					printf(cmd.OutOrStdout(), "%s = %s\n", key, folder)
					return nil
				})
			}
			return runConfigSet(cmd, key, value)
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == keyTaggingFolder {
				return withApp(cmd, func(a *app.App) error {
					folder, err := a.State.TaggingFolder()
					if err != nil {
						return err
					}
					printf(cmd.OutOrStdout(), "%s\n", folder)
					return nil
				})
			}
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			value, err := cfg.GetValue(args[0])
			if err != nil {
				return fmt.Errorf("failed to get configuration value: %w", err)
			}
			printf(cmd.OutOrStdout(), "%s\n", value)
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file",
		Long:  "Create a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := resolveConfigPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("configuration file already exists at %s (use --force to overwrite): %w", path, os.ErrExist)
			}
			if err := config.DefaultConfig().SaveConfig(path); err != nil {
				return fmt.Errorf("failed to save default configuration: %w", err)
			}
			printf(cmd.OutOrStdout(), "Configuration file created: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration file")

	return cmd
}

func runConfigSet(cmd *cobra.Command, key, value string) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.SetValue(key, value); err != nil {
		return fmt.Errorf("failed to set configuration value: %w", err)
	}
	if err := cfg.SaveConfig(path); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	printf(cmd.OutOrStdout(), "%s = %s\n", key, value)
	return nil
}

func resolveConfigPath() (string, error) {
	if p := configPath(); p != "" {
		return p, nil
	}
	p, err := config.GetDefaultConfigPath()
	if err != nil {
		return "", errors.Wrap(err, "failed to get default config path")
	}
	return p, nil
}

func loadConfig() (*config.Config, string, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

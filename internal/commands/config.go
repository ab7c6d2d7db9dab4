package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/diogo/sentichat/internal/config"
	apierrors "github.com/diogo/sentichat/internal/errors"
	"github.com/diogo/sentichat/internal/render"
)

// NewConfigCmd creates the config command and its subcommands
func NewConfigCmd(deps *Dependencies) *cobra.Command {
	deps = deps.withDefaults()

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration as JSON, with environment overrides
(` + config.EnvEndpoint + `, ` + config.EnvTimeout + `, ` + config.EnvRedisURL + `) applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Fprintln(deps.Stdout, string(data))
			return nil
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.GetConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(deps.Stdout, path)
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting in the config file",
		Long: `Change a single setting and save the config file.

Keys: ` + strings.Join(config.SettingKeys(), ", "),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			if key == "tui_theme" {
				if _, ok := render.GetTUIThemeByName(value); !ok {
					return fmt.Errorf("%w: unknown theme %q (available: %s)",
						apierrors.ErrInvalidSetting, value, strings.Join(render.TUIThemeNames(), ", "))
				}
			}

			cfg, err := config.LoadFileConfig()
			if err != nil {
				return err
			}
			if err := cfg.Set(key, value); err != nil {
				return err
			}
			if err := config.SaveConfig(cfg); err != nil {
				return err
			}

			fmt.Fprintln(deps.Stdout, successLine(fmt.Sprintf("%s = %s", key, value)))
			return nil
		},
	}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings",
		Long:  `Show or change sentichat settings stored in ~/.sentichat/config.json.`,
		Args:  cobra.NoArgs,
		RunE:  showCmd.RunE,
	}
	cmd.AddCommand(showCmd, pathCmd, setCmd)
	return cmd
}

package commands

import (
	"context"
	"fmt"
	"io"
	"log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/diogo/sentichat/internal/config"
	"github.com/diogo/sentichat/internal/render"
	"github.com/diogo/sentichat/internal/tui"
)

func newChatCmd(deps *Dependencies, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive NVDA sentiment chat.

Each message is posted to the configured webhook and the reply is shown in
the thread. Enter sends, Alt+Enter adds a new line. Type /copy, /export
<file> or /clear for local commands, and /exit, Esc or Ctrl+C to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(cmd, opts)
			if err != nil {
				return err
			}
			return runChat(cmd.Context(), deps, cfg)
		},
	}
}

func runChat(ctx context.Context, deps *Dependencies, cfg config.Config) error {
	// The alt screen owns the terminal, so verbose output goes to a file
	logger, closeLog, err := openDebugLog(cfg.Verbose)
	if err != nil {
		return err
	}
	defer closeLog()

	client, err := deps.NewTransport(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	if cfg.TUITheme != "" && !render.SetTUITheme(cfg.TUITheme) {
		fmt.Fprintf(deps.Stderr, "Warning: unknown tui_theme %q, using %s\n", cfg.TUITheme, render.DefaultTUITheme)
		render.SetTUITheme(render.DefaultTUITheme)
	}
	tui.UpdateTheme()

	toasts := tui.NewToastQueue()
	ctrl := newController(client, toasts, logger)

	closeRelay := attachRelay(ctx, deps, cfg, ctrl.Store(), logger)
	defer closeRelay()

	return deps.TUI.RunChat(ctrl, toasts,
		tui.WithContext(ctx),
		tui.WithEndpoint(cfg.Endpoint),
		tui.WithRenderOptions(render.OptionsFromConfig(cfg)),
		tui.WithClipboard(deps.Clipboard),
	)
}

// openDebugLog returns the chat logger. When verbose it appends to the
// debug log file under the config directory.
func openDebugLog(verbose bool) (*log.Logger, func(), error) {
	logger := log.New(io.Discard, "", log.LstdFlags)
	if !verbose {
		return logger, func() {}, nil
	}

	if _, err := config.EnsureConfigDir(); err != nil {
		return nil, nil, err
	}
	path, err := config.GetDebugLogPath()
	if err != nil {
		return nil, nil, err
	}

	f, err := tea.LogToFileWith(path, "sentichat", logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open debug log: %w", err)
	}
	return logger, func() { f.Close() }, nil
}

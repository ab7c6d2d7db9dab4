package commands

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/atotto/clipboard"

	"github.com/diogo/sentichat/internal/api"
	"github.com/diogo/sentichat/internal/chat"
	"github.com/diogo/sentichat/internal/config"
	"github.com/diogo/sentichat/internal/relay"
	"github.com/diogo/sentichat/internal/tui"
)

// TUIInterface defines the methods required from the TUI package.
type TUIInterface interface {
	RunChat(ctrl *chat.Controller, toasts *tui.ToastQueue, opts ...tui.ModelOption) error
}

// Dependencies holds the external dependencies for the commands.
// This allows for dependency injection and easier testing.
type Dependencies struct {
	// NewTransport builds the webhook client for cfg.
	NewTransport func(cfg config.Config, logger *log.Logger) (api.WebhookClientInterface, error)

	// DialRelay connects the optional Redis mirror.
	DialRelay func(ctx context.Context, cfg config.RedisConfig, logger *log.Logger) (*relay.Relay, error)

	// TUI is the terminal user interface.
	TUI TUIInterface

	// Clipboard writes text to the system clipboard.
	Clipboard func(string) error

	// IsTerminal reports whether w is an interactive terminal.
	IsTerminal func(w io.Writer) bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// DefaultTUI is the production implementation of TUIInterface.
type DefaultTUI struct{}

func (d *DefaultTUI) RunChat(ctrl *chat.Controller, toasts *tui.ToastQueue, opts ...tui.ModelOption) error {
	return tui.RunChat(ctrl, toasts, opts...)
}

// NewDependencies creates a new Dependencies struct with default implementations.
func NewDependencies() *Dependencies {
	return &Dependencies{
		NewTransport: newWebhookClient,
		DialRelay:    dialRelay,
		TUI:          &DefaultTUI{},
		Clipboard:    clipboard.WriteAll,
		IsTerminal:   isTerminal,
		Stdin:        os.Stdin,
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
	}
}

// withDefaults fills any unset dependency with its production value
func (d *Dependencies) withDefaults() *Dependencies {
	def := NewDependencies()
	if d == nil {
		return def
	}

	out := *d
	if out.NewTransport == nil {
		out.NewTransport = def.NewTransport
	}
	if out.DialRelay == nil {
		out.DialRelay = def.DialRelay
	}
	if out.TUI == nil {
		out.TUI = def.TUI
	}
	if out.Clipboard == nil {
		out.Clipboard = def.Clipboard
	}
	if out.IsTerminal == nil {
		out.IsTerminal = def.IsTerminal
	}
	if out.Stdout == nil {
		out.Stdout = def.Stdout
	}
	if out.Stderr == nil {
		out.Stderr = def.Stderr
	}
	return &out
}

// newWebhookClient builds the production webhook client
func newWebhookClient(cfg config.Config, logger *log.Logger) (api.WebhookClientInterface, error) {
	return api.NewClient(cfg.Endpoint,
		api.WithTimeout(cfg.Timeout()),
		api.WithResponseField(cfg.ResponseField),
		api.WithLogger(logger),
	)
}

// dialRelay connects the Redis mirror described by cfg
func dialRelay(ctx context.Context, cfg config.RedisConfig, logger *log.Logger) (*relay.Relay, error) {
	return relay.Dial(ctx, cfg.URL, cfg.Channel,
		relay.WithSessionID(chat.NewSessionID()),
		relay.WithLogger(logger),
	)
}

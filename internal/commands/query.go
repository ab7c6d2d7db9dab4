package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/diogo/sentichat/internal/api"
	"github.com/diogo/sentichat/internal/chat"
	"github.com/diogo/sentichat/internal/config"
	apierrors "github.com/diogo/sentichat/internal/errors"
	"github.com/diogo/sentichat/internal/models"
	"github.com/diogo/sentichat/internal/render"
	"github.com/diogo/sentichat/internal/transcript"
	"github.com/diogo/sentichat/internal/tui"
)

// Styles matching the chat TUI
var (
	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true)

	assistantBubbleStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(colorPrimary).
				Foreground(colorText).
				Padding(0, 1).
				MarginBottom(1)

	timestampStyle = lipgloss.NewStyle().
			Foreground(colorTextMute)
)

// stderrNotifier collects notifications raised during a dispatch so they
// can be printed once the spinner has cleared its line.
type stderrNotifier struct {
	mu      sync.Mutex
	out     io.Writer
	pending []string
}

func (n *stderrNotifier) Notify(title, description string, severity chat.Severity) {
	style := lipgloss.NewStyle().Foreground(colorPrimary)
	mark := "ℹ"
	if severity == chat.SeverityDestructive {
		style = lipgloss.NewStyle().Foreground(colorError)
		mark = "✗"
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending = append(n.pending, style.Render(fmt.Sprintf("%s %s: %s", mark, title, description)))
}

func (n *stderrNotifier) flush() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, line := range n.pending {
		fmt.Fprintln(n.out, line)
	}
	n.pending = nil
}

// newVerboseLogger returns the [verbose] logger, silent unless enabled
func newVerboseLogger(enabled bool, w io.Writer) *log.Logger {
	if !enabled {
		return log.New(io.Discard, "", 0)
	}
	return log.New(w, "[verbose] ", 0)
}

// newController wires a controller around client, logging every append
func newController(client api.WebhookClientInterface, notifier chat.Notifier, logger *log.Logger) *chat.Controller {
	ctrl := chat.NewController(client,
		chat.WithNotifier(notifier),
		chat.WithLogger(logger),
	)
	ctrl.Store().Subscribe(func(msg models.Message) {
		logger.Printf("appended %s message %s", msg.Role, msg.ID)
	})
	return ctrl
}

// attachRelay mirrors store onto Redis when configured. A relay that cannot
// connect is reported and skipped. The returned func closes the relay.
func attachRelay(ctx context.Context, deps *Dependencies, cfg config.Config, store *chat.Store, logger *log.Logger) func() {
	if !cfg.Redis.Enabled() {
		return func() {}
	}

	r, err := deps.DialRelay(ctx, cfg.Redis, logger)
	if err != nil {
		warn := lipgloss.NewStyle().Foreground(colorError).Render(fmt.Sprintf("⚠ Redis relay disabled: %v", err))
		fmt.Fprintln(deps.Stderr, warn)
		return func() {}
	}

	logger.Printf("relaying messages to redis channel %s", cfg.Redis.Channel)
	r.Attach(store)
	return func() {
		if err := r.Close(); err != nil {
			logger.Printf("relay close: %v", err)
		}
	}
}

// runQuery sends a single message and prints the reply.
// If stdout is not a terminal, or --raw is set, only the reply text is printed.
func runQuery(ctx context.Context, deps *Dependencies, cfg config.Config, opts *globalOptions, message string) error {
	if strings.TrimSpace(message) == "" {
		return apierrors.ErrEmptyMessage
	}

	rawOutput := opts.raw || !deps.IsTerminal(deps.Stdout)
	logger := newVerboseLogger(cfg.Verbose, deps.Stderr)
	logger.Printf("endpoint: %s", cfg.Endpoint)

	client, err := deps.NewTransport(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	notifier := &stderrNotifier{out: deps.Stderr}
	ctrl := newController(client, notifier, logger)

	closeRelay := attachRelay(ctx, deps, cfg, ctrl.Store(), logger)
	defer closeRelay()

	dispatch, ok := ctrl.Accept(message)
	if !ok {
		return apierrors.ErrEmptyMessage
	}

	var spin *spinner
	if !rawOutput {
		spin = newSpinner(deps.Stderr, "Analyzing sentiment")
		spin.start()
	}

	reply, sendErr := dispatch.Run(ctx)

	if !rawOutput {
		if sendErr != nil {
			spin.stopWithError()
		} else {
			spin.stopWithSuccess("Done")
		}
	}
	notifier.flush()
	if sendErr != nil && !rawOutput {
		fmt.Fprintln(deps.Stderr, formatErrorMessage(sendErr, "Request failed"))
	}

	if err := printReply(deps, cfg, opts, rawOutput, reply, sendErr == nil); err != nil {
		return err
	}

	if opts.transcript != "" {
		t := transcript.New(tui.AppTitle, cfg.Endpoint, ctrl.Messages())
		if err := t.WriteFile(opts.transcript); err != nil {
			return err
		}
		if !rawOutput {
			fmt.Fprintln(deps.Stderr, successLine(fmt.Sprintf("Transcript saved to %s", opts.transcript)))
		}
	}

	if sendErr != nil {
		return fmt.Errorf("%w: %w", errDispatchFailed, sendErr)
	}
	return nil
}

// printReply writes the assistant reply to stdout, a file or the clipboard
func printReply(deps *Dependencies, cfg config.Config, opts *globalOptions, rawOutput bool, reply models.Message, succeeded bool) error {
	text := reply.Content

	if opts.output != "" {
		if err := os.WriteFile(opts.output, []byte(text), 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !rawOutput {
			fmt.Fprintln(deps.Stderr, successLine(fmt.Sprintf("Response saved to %s", opts.output)))
		}
		return nil
	}

	if rawOutput {
		fmt.Fprint(deps.Stdout, text)
		if !strings.HasSuffix(text, "\n") {
			fmt.Fprintln(deps.Stdout)
		}
		return nil
	}

	if cfg.CopyToClipboard && succeeded {
		if err := deps.Clipboard(text); err != nil {
			warn := lipgloss.NewStyle().Foreground(colorError).Render(
				fmt.Sprintf("⚠ Failed to copy to clipboard: %v", err),
			)
			fmt.Fprintln(deps.Stderr, warn)
		} else {
			fmt.Fprintln(deps.Stderr, successLine("Copied to clipboard"))
		}
	}

	bubbleWidth := getTerminalWidth(deps.Stdout) - 4
	if bubbleWidth < 40 {
		bubbleWidth = 40
	}
	if bubbleWidth > 120 {
		bubbleWidth = 120
	}
	contentWidth := bubbleWidth - 4

	label := assistantLabelStyle.Render("● "+reply.Role.Label()) +
		timestampStyle.Render(" "+reply.Timestamp.Local().Format("15:04"))
	fmt.Fprintln(deps.Stdout, label)

	rendered := render.Reply(text, render.OptionsFromConfig(cfg).WithWidth(contentWidth))
	fmt.Fprintln(deps.Stdout, assistantBubbleStyle.Width(bubbleWidth).Render(rendered))

	return nil
}

func successLine(text string) string {
	return lipgloss.NewStyle().Foreground(colorSuccess).Render("✓ " + text)
}

// getTerminalWidth returns the width of w when it is a terminal, or 80
func getTerminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 80
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// isTerminal returns true if w is connected to a terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// formatErrorMessage formats an error with additional context from structured errors
func formatErrorMessage(err error, context string) string {
	if err == nil {
		return ""
	}

	errorStyle := lipgloss.NewStyle().Foreground(colorError)
	dimStyle := lipgloss.NewStyle().Foreground(colorTextDim)

	var sb strings.Builder
	sb.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s: %v", context, err)))

	if status := apierrors.GetHTTPStatus(err); status > 0 {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n  HTTP Status: %d", status)))
	}

	if endpoint := apierrors.GetEndpoint(err); endpoint != "" {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n  Endpoint: %s", endpoint)))
	}

	if body := apierrors.GetResponseBody(err); body != "" {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n\n  %s", strings.ReplaceAll(body, "\n", "\n  "))))
		return sb.String()
	}

	switch {
	case apierrors.IsTimeoutError(err):
		sb.WriteString(dimStyle.Render("\n  Hint: The webhook did not answer in time. Try --timeout with a larger value"))
	case apierrors.IsNetworkError(err):
		sb.WriteString(dimStyle.Render("\n  Hint: Check your connection and the configured endpoint"))
	case apierrors.IsAPIError(err):
		sb.WriteString(dimStyle.Render("\n  Hint: The webhook rejected the request. Check that the endpoint URL is current"))
	case errors.Is(err, apierrors.ErrNoEndpoint):
		sb.WriteString(dimStyle.Render("\n  Hint: Run 'sentichat config set endpoint <url>' or pass --endpoint"))
	}

	return sb.String()
}

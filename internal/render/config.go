package render

import (
	"os"

	"github.com/diogo/sentichat/internal/config"
)

// EnvStyle overrides the configured markdown style
const EnvStyle = "GLAMOUR_STYLE"

// OptionsFromConfig builds render options from cfg.
// GLAMOUR_STYLE takes precedence over the configured style.
func OptionsFromConfig(cfg config.Config) Options {
	md := cfg.Markdown
	opts := DefaultOptions().
		WithEmoji(md.EnableEmoji).
		WithPreserveNewLines(md.PreserveNewLines).
		WithTableWrap(md.TableWrap).
		WithInlineTableLinks(md.InlineTableLinks)

	if md.Style != "" {
		opts = opts.WithStyle(md.Style)
	}
	if style := os.Getenv(EnvStyle); style != "" {
		opts = opts.WithStyle(style)
	}

	return opts
}

// Package transcript writes the current conversation out as Markdown or JSON.
package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/diogo/sentichat/internal/models"
)

// Format represents the format for exporting conversations
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat parses a user-supplied format name
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown export format %q (use markdown or json)", name)
	}
}

// FormatFromPath picks the format from a file extension, defaulting to Markdown
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatMarkdown
}

// Transcript is a snapshot of a conversation prepared for export
type Transcript struct {
	Title      string           `json:"title"`
	Endpoint   string           `json:"endpoint,omitempty"`
	ExportedAt time.Time        `json:"exported_at"`
	Messages   []models.Message `json:"messages"`
}

// New snapshots messages under title
func New(title, endpoint string, messages []models.Message) *Transcript {
	msgs := make([]models.Message, len(messages))
	copy(msgs, messages)
	return &Transcript{
		Title:      title,
		Endpoint:   endpoint,
		ExportedAt: time.Now(),
		Messages:   msgs,
	}
}

// Markdown renders the transcript as Markdown
func (t *Transcript) Markdown() string {
	var sb strings.Builder

	// Header
	sb.WriteString("# ")
	sb.WriteString(t.Title)
	sb.WriteString("\n\n")

	sb.WriteString("**Exported:** ")
	sb.WriteString(t.ExportedAt.Format("2006-01-02 15:04:05"))
	sb.WriteString("\n")
	sb.WriteString("**Messages:** ")
	sb.WriteString(fmt.Sprintf("%d", len(t.Messages)))
	sb.WriteString("\n\n---\n\n")

	for i, msg := range t.Messages {
		sb.WriteString("## ")
		sb.WriteString(msg.Role.Label())
		if !msg.Timestamp.IsZero() {
			sb.WriteString(" (")
			sb.WriteString(msg.Timestamp.Format("15:04:05"))
			sb.WriteString(")")
		}
		sb.WriteString("\n\n")

		sb.WriteString(msg.Content)
		sb.WriteString("\n")

		if i < len(t.Messages)-1 {
			sb.WriteString("\n---\n\n")
		}
	}

	return sb.String()
}

// JSON renders the transcript as indented JSON
func (t *Transcript) JSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// Render encodes the transcript in format
func (t *Transcript) Render(format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return t.JSON()
	case FormatMarkdown:
		return []byte(t.Markdown()), nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// WriteFile writes the transcript to path, choosing the format by extension
func (t *Transcript) WriteFile(path string) error {
	data, err := t.Render(FormatFromPath(path))
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

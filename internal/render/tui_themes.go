package render

import (
	"sort"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// DefaultTUITheme is the theme used when none is configured
const DefaultTUITheme = "tokyonight"

// TUITheme is the colour scheme of the chat screen
type TUITheme struct {
	Name        string
	Description string

	// MarkdownStyle is the glamour style used for replies under this theme
	MarkdownStyle string

	Background lipgloss.Color
	Surface    lipgloss.Color
	Border     lipgloss.Color

	// UserBubble and AssistantBubble fill the message bubbles
	UserBubble      lipgloss.Color
	UserText        lipgloss.Color
	AssistantBubble lipgloss.Color

	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color

	Text     lipgloss.Color
	TextDim  lipgloss.Color
	TextMute lipgloss.Color
}

var (
	// TokyoNightTheme is the default dark theme
	TokyoNightTheme = TUITheme{
		Name:          "tokyonight",
		Description:   "Tokyo Night - dark with blue accents",
		MarkdownStyle: "tokyonight",

		Background: lipgloss.Color("#1a1b26"),
		Surface:    lipgloss.Color("#24283b"),
		Border:     lipgloss.Color("#414868"),

		UserBubble:      lipgloss.Color("#7aa2f7"),
		UserText:        lipgloss.Color("#1a1b26"),
		AssistantBubble: lipgloss.Color("#24283b"),

		Primary:   lipgloss.Color("#7aa2f7"),
		Secondary: lipgloss.Color("#9ece6a"),
		Accent:    lipgloss.Color("#bb9af7"),
		Warning:   lipgloss.Color("#e0af68"),
		Error:     lipgloss.Color("#f7768e"),

		Text:     lipgloss.Color("#c0caf5"),
		TextDim:  lipgloss.Color("#565f89"),
		TextMute: lipgloss.Color("#3b4261"),
	}

	// CatppuccinMochaTheme uses the Catppuccin Mocha palette
	CatppuccinMochaTheme = TUITheme{
		Name:          "catppuccin",
		Description:   "Catppuccin Mocha - warm pastels",
		MarkdownStyle: "dark",

		Background: lipgloss.Color("#1e1e2e"),
		Surface:    lipgloss.Color("#313244"),
		Border:     lipgloss.Color("#45475a"),

		UserBubble:      lipgloss.Color("#89b4fa"),
		UserText:        lipgloss.Color("#1e1e2e"),
		AssistantBubble: lipgloss.Color("#313244"),

		Primary:   lipgloss.Color("#89b4fa"), // Blue
		Secondary: lipgloss.Color("#a6e3a1"), // Green
		Accent:    lipgloss.Color("#cba6f7"), // Mauve
		Warning:   lipgloss.Color("#f9e2af"), // Yellow
		Error:     lipgloss.Color("#f38ba8"), // Red

		Text:     lipgloss.Color("#cdd6f4"),
		TextDim:  lipgloss.Color("#6c7086"),
		TextMute: lipgloss.Color("#45475a"),
	}

	// NordTheme uses the Nord palette
	NordTheme = TUITheme{
		Name:          "nord",
		Description:   "Nord - cool arctic tones",
		MarkdownStyle: "dark",

		Background: lipgloss.Color("#2e3440"),
		Surface:    lipgloss.Color("#3b4252"),
		Border:     lipgloss.Color("#4c566a"),

		UserBubble:      lipgloss.Color("#88c0d0"),
		UserText:        lipgloss.Color("#2e3440"),
		AssistantBubble: lipgloss.Color("#3b4252"),

		Primary:   lipgloss.Color("#88c0d0"), // Frost
		Secondary: lipgloss.Color("#a3be8c"), // Aurora green
		Accent:    lipgloss.Color("#b48ead"), // Aurora purple
		Warning:   lipgloss.Color("#ebcb8b"), // Aurora yellow
		Error:     lipgloss.Color("#bf616a"), // Aurora red

		Text:     lipgloss.Color("#eceff4"),
		TextDim:  lipgloss.Color("#7b88a1"),
		TextMute: lipgloss.Color("#4c566a"),
	}
)

var tuiThemes = map[string]TUITheme{
	TokyoNightTheme.Name:      TokyoNightTheme,
	CatppuccinMochaTheme.Name: CatppuccinMochaTheme,
	NordTheme.Name:            NordTheme,
}

var (
	themeMu         sync.RWMutex
	currentTUITheme = TokyoNightTheme
)

// GetTUITheme returns the active theme
func GetTUITheme() TUITheme {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return currentTUITheme
}

// SetTUITheme activates the named theme. Unknown names leave it unchanged.
func SetTUITheme(name string) bool {
	theme, ok := GetTUIThemeByName(name)
	if !ok {
		return false
	}
	themeMu.Lock()
	defer themeMu.Unlock()
	currentTUITheme = theme
	return true
}

// GetTUIThemeByName looks up a built-in theme
func GetTUIThemeByName(name string) (TUITheme, bool) {
	theme, ok := tuiThemes[name]
	return theme, ok
}

// TUIThemeNames returns the built-in theme names, sorted
func TUIThemeNames() []string {
	names := make([]string, 0, len(tuiThemes))
	for name := range tuiThemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

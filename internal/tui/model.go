package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/sentichat/internal/chat"
	"github.com/diogo/sentichat/internal/models"
	"github.com/diogo/sentichat/internal/render"
	"github.com/diogo/sentichat/internal/transcript"
)

const (
	// AppTitle is shown in the header and used as the transcript title
	AppTitle    = "NVDA Sentiment Tracker"
	AppSubtitle = "Analyze market sentiment and trends"

	bubbleTimeLayout = "15:04"
)

// Animation tick message
type animationTickMsg time.Time

// settledMsg is sent when a dispatch has appended its reply
type settledMsg struct {
	reply models.Message
	err   error
}

// Model represents the TUI state
type Model struct {
	ctx      context.Context
	ctrl     *chat.Controller
	toastQ   *ToastQueue
	endpoint string

	renderOpts render.Options
	copyText   func(string) error

	// UI components
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	// State
	toasts         []toast
	feedback       string
	err            error
	ready          bool
	seen           int
	animationFrame int

	// Dimensions
	width  int
	height int
}

// ModelOption configures the chat model
type ModelOption func(*Model)

// WithEndpoint sets the endpoint shown in the status bar and exports
func WithEndpoint(endpoint string) ModelOption {
	return func(m *Model) {
		m.endpoint = endpoint
	}
}

// WithRenderOptions sets the markdown options used for replies
func WithRenderOptions(opts render.Options) ModelOption {
	return func(m *Model) {
		m.renderOpts = opts
	}
}

// WithContext sets the context dispatches run under
func WithContext(ctx context.Context) ModelOption {
	return func(m *Model) {
		if ctx != nil {
			m.ctx = ctx
		}
	}
}

// WithClipboard overrides the clipboard writer (for testing)
func WithClipboard(fn func(string) error) ModelOption {
	return func(m *Model) {
		if fn != nil {
			m.copyText = fn
		}
	}
}

// NewChatModel creates a chat screen driving ctrl. toasts must be the
// notifier ctrl was built with so failures show up on screen.
func NewChatModel(ctrl *chat.Controller, toasts *ToastQueue, opts ...ModelOption) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask about NVDA sentiment..."
	ta.CharLimit = 0
	ta.MaxHeight = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))
	ta.Focus()

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(colorText)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(colorTextDim)
	ta.BlurredStyle = ta.FocusedStyle

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = loadingStyle

	if toasts == nil {
		toasts = NewToastQueue()
	}

	m := Model{
		ctx:        context.Background(),
		ctrl:       ctrl,
		toastQ:     toasts,
		renderOpts: render.DefaultOptions(),
		copyText:   clipboard.WriteAll,
		textarea:   ta,
		spinner:    s,
	}
	for _, opt := range opts {
		opt(&m)
	}

	ta.SetValue(ctrl.Input())
	m.textarea = ta
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// animationTick returns a command that sends animation tick messages
func animationTick() tea.Cmd {
	return tea.Tick(time.Millisecond*80, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			// Quitting leaves an in-flight dispatch to finish on its own
			return m, tea.Quit

		case "enter":
			return m.submit()
		}

		if m.ctrl.Busy() {
			break
		}
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
		m.ctrl.SetInput(m.textarea.Value())

	case settledMsg:
		m.textarea.Focus()
		m.refresh()
		cmds = append(cmds, m.showToasts()...)

	case toastExpiredMsg:
		m.dismissToast(msg.id)

	case spinner.TickMsg:
		if m.ctrl.Busy() {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case animationTickMsg:
		if m.ctrl.Busy() {
			m.animationFrame++
			cmds = append(cmds, animationTick())
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit handles Enter: local commands first, then a controller submission
func (m Model) submit() (tea.Model, tea.Cmd) {
	raw := m.textarea.Value()
	input := strings.TrimSpace(raw)

	if handled, cmd := m.runCommand(input); handled {
		return m, cmd
	}

	d, ok := m.ctrl.Accept(raw)
	if !ok {
		return m, nil
	}

	m.feedback = ""
	m.err = nil
	m.animationFrame = 0
	m.textarea.Reset()
	m.textarea.Blur()
	m.refresh()

	return m, tea.Batch(
		runDispatch(m.ctx, d),
		m.spinner.Tick,
		animationTick(),
	)
}

// runDispatch settles d off the bubbletea loop
func runDispatch(ctx context.Context, d *chat.Dispatch) tea.Cmd {
	return func() tea.Msg {
		reply, err := d.Run(ctx)
		return settledMsg{reply: reply, err: err}
	}
}

// runCommand handles slash commands. Anything without a leading slash is a
// message. Commands are refused while a dispatch is in flight, except for
// quitting.
func (m *Model) runCommand(input string) (bool, tea.Cmd) {
	switch input {
	case "/exit", "/quit":
		return true, tea.Quit
	}

	if !strings.HasPrefix(input, "/") || m.ctrl.Busy() {
		return false, nil
	}

	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/clear":
		if m.ctrl.Reset() {
			m.setFeedback("Conversation cleared")
		}
	case "/copy":
		m.copyLastReply()
	case "/export":
		m.export(arg)
	default:
		return false, nil
	}

	m.textarea.Reset()
	m.ctrl.SetInput("")
	m.refresh()
	return true, nil
}

func (m *Model) copyLastReply() {
	reply, ok := m.ctrl.Store().LastByRole(models.RoleAssistant)
	if !ok {
		m.setError(fmt.Errorf("nothing to copy yet"))
		return
	}
	if err := m.copyText(reply.Content); err != nil {
		m.setError(fmt.Errorf("failed to copy to clipboard: %w", err))
		return
	}
	m.setFeedback("Copied last reply to clipboard")
}

func (m *Model) export(path string) {
	if path == "" {
		m.setError(fmt.Errorf("usage: /export <path.md|path.json>"))
		return
	}
	msgs := m.ctrl.Messages()
	if err := transcript.New(AppTitle, m.endpoint, msgs).WriteFile(path); err != nil {
		m.setError(err)
		return
	}
	m.setFeedback(fmt.Sprintf("Exported %d messages to %s", len(msgs), path))
}

func (m *Model) setFeedback(text string) {
	m.feedback = text
	m.err = nil
}

func (m *Model) setError(err error) {
	m.err = err
	m.feedback = ""
}

// showToasts moves queued notifications on screen and schedules their expiry
func (m *Model) showToasts() []tea.Cmd {
	var cmds []tea.Cmd
	for _, t := range m.toastQ.drain() {
		m.toasts = append(m.toasts, t)
		cmds = append(cmds, expireToast(t.id, ToastDuration))
	}
	return cmds
}

func (m *Model) dismissToast(id int) {
	for i, t := range m.toasts {
		if t.id == id {
			m.toasts = append(m.toasts[:i], m.toasts[i+1:]...)
			return
		}
	}
}

// layout sizes the viewport and input for the current window
func (m *Model) layout() {
	headerHeight := 4 // Header panel with border
	inputHeight := 5  // Input panel with border
	statusHeight := 1 // Status bar
	padding := 2      // Extra spacing

	vpHeight := m.height - headerHeight - inputHeight - statusHeight - padding
	if vpHeight < 5 {
		vpHeight = 5
	}

	contentWidth := m.width - 4

	if !m.ready {
		m.viewport = viewport.New(contentWidth, vpHeight)
		m.viewport.KeyMap = scrollKeys()
		m.ready = true
	} else {
		m.viewport.Width = contentWidth
		m.viewport.Height = vpHeight
	}
	m.textarea.SetWidth(contentWidth - 4)
}

// scrollKeys limits viewport scrolling to keys the textarea does not use
func scrollKeys() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
	}
}

// refresh re-renders the conversation, following the tail when it grew
func (m *Model) refresh() {
	msgs := m.ctrl.Messages()
	m.viewport.SetContent(m.renderMessages(msgs))
	if len(msgs) != m.seen {
		m.viewport.GotoBottom()
		m.seen = len(msgs)
	}
}

// renderMessages renders the conversation as chat bubbles
func (m Model) renderMessages(msgs []models.Message) string {
	var content strings.Builder
	bubbleWidth := m.viewport.Width - 8

	for i, msg := range msgs {
		if i > 0 {
			content.WriteString("\n")
		}

		stamp := timestampStyle.Render(" " + msg.Timestamp.Local().Format(bubbleTimeLayout))

		if msg.IsUser() {
			label := userLabelStyle.Render(msg.Role.Label()) + stamp
			bubble := userBubbleStyle.Width(bubbleWidth).Render(msg.Content)
			content.WriteString(label + "\n" + bubble)
		} else {
			label := assistantLabelStyle.Render("● "+msg.Role.Label()) + stamp
			rendered := render.Reply(msg.Content, m.renderOpts.WithWidth(bubbleWidth-4))
			bubble := assistantBubbleStyle.Width(bubbleWidth).Render(rendered)
			content.WriteString(label + "\n" + bubble)
		}
		content.WriteString("\n")
	}

	return content.String()
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}

	var sections []string
	contentWidth := m.width - 4

	header := lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Render(AppTitle),
		subtitleStyle.Render(AppSubtitle),
	)
	sections = append(sections, headerStyle.Width(contentWidth).Render(header))

	var messagesContent string
	if m.ctrl.Store().Len() == 0 {
		messagesContent = m.renderWelcome()
	} else {
		messagesContent = m.viewport.View()
	}
	sections = append(sections, messagesAreaStyle.
		Width(contentWidth).
		Height(m.viewport.Height).
		Render(messagesContent))

	for _, t := range m.toasts {
		sections = append(sections, renderToast(t, contentWidth))
	}

	var inputContent string
	if m.ctrl.Busy() {
		inputContent = m.renderLoadingAnimation()
	} else {
		inputContent = lipgloss.JoinVertical(
			lipgloss.Left,
			inputLabelStyle.Render("You"),
			m.textarea.View(),
		)
	}
	sections = append(sections, inputPanelStyle.Width(contentWidth).Render(inputContent))

	sections = append(sections, m.renderStatusBar(contentWidth))

	if m.err != nil {
		sections = append(sections, FormatError(m.err))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderWelcome renders the empty state
func (m Model) renderWelcome() string {
	width := m.viewport.Width - 4
	height := m.viewport.Height

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		welcomeIconStyle.Width(width).Render("📈"),
		"",
		welcomeTitleStyle.Width(width).Render("Start tracking sentiment"),
		welcomeStyle.Width(width).Render("Ask about NVDA news, price action or market mood below"),
	)

	topPadding := (height - lipgloss.Height(content)) / 2
	if topPadding < 0 {
		topPadding = 0
	}

	return strings.Repeat("\n", topPadding) + content
}

// renderLoadingAnimation renders the typing indicator
func (m Model) renderLoadingAnimation() string {
	frame := m.animationFrame

	var dots strings.Builder
	for i := 0; i < 3; i++ {
		c := colorTextMute
		if (frame/3)%4 > i {
			c = gradientColors[(frame+i)%len(gradientColors)]
		}
		dots.WriteString(lipgloss.NewStyle().Foreground(c).Render("●"))
	}

	text := lipgloss.NewStyle().Foreground(colorText).Render(" Analyzing sentiment ")
	return m.spinner.View() + text + dots.String()
}

// renderToast renders one notification box
func renderToast(t toast, width int) string {
	style := toastStyle
	if t.severity == chat.SeverityDestructive {
		style = toastDestructiveStyle
	}
	body := lipgloss.JoinVertical(
		lipgloss.Left,
		toastTitleStyle.Render(t.title),
		t.description,
	)
	return style.Width(width).Render(body)
}

// renderStatusBar renders the bottom status bar with shortcuts
func (m Model) renderStatusBar(width int) string {
	if m.feedback != "" {
		return feedbackStyle.Width(width).Render(m.feedback)
	}

	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Enter", "Send"},
		{"Alt+Enter", "Newline"},
		{"/copy /export /clear", "Commands"},
		{"PgUp/PgDn", "Scroll"},
		{"Esc", "Quit"},
	}

	var items []string
	for _, s := range shortcuts {
		items = append(items, statusKeyStyle.Render(s.key)+statusDescStyle.Render(" "+s.desc))
	}

	bar := strings.Join(items, "  │  ")
	if m.endpoint != "" {
		bar += hintStyle.Render("  │  " + m.endpoint)
	}
	return statusBarStyle.Width(width).Render(bar)
}

// RunChat starts the chat TUI and blocks until the user quits
func RunChat(ctrl *chat.Controller, toasts *ToastQueue, opts ...ModelOption) error {
	m := NewChatModel(ctrl, toasts, opts...)

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
	)

	_, err := p.Run()
	return err
}

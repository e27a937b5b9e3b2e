package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"zeta/pkg/orchestrator"
	providertypes "zeta/pkg/provider/types"
	"zeta/pkg/tools"
)

type mode int

const (
	modeInteractive mode = iota
	modeOneShot
)

const mouseWheelLines = 3

const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleTool      = "tool"
	roleBlocked   = "blocked"
	roleError     = "error"
	roleNotice    = "notice"
)

type chatMessage struct {
	role    string
	content string
	usage   *providertypes.TokenUsage
}

type promptResultMsg struct {
	outcome orchestrator.Outcome
	events  []tools.Event
	err     error
}

type bootTickMsg struct{}

type model struct {
	ctx          context.Context
	promptFn     PromptFunc
	resetFn      func()
	mode         mode
	oneShotInput string

	theme      theme
	markdown   markdownRenderer
	spinner    spinner.Model
	input      textinput.Model
	viewport   viewport.Model
	messages   []chatMessage
	width      int
	height     int
	isReady    bool
	isLoading  bool
	lastErr    string
	booting    bool
	bootStep   int
	followLog  bool
	runtime    RuntimeInfo
	usageIn    int64
	usageOut   int64
	usageTotal int64
}

func newModel(ctx context.Context, opts Options, runMode mode, prompt string) *model {
	spin := spinner.New()
	spin.Spinner = spinner.Points
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = "Bir şey sor..."
	in.Focus()
	in.CharLimit = 0

	vp := viewport.New(80, 12)

	return &model{
		ctx:          ctx,
		promptFn:     opts.Prompt,
		resetFn:      opts.Reset,
		mode:         runMode,
		oneShotInput: strings.TrimSpace(prompt),
		theme:        defaultTheme(),
		spinner:      spin,
		input:        in,
		viewport:     vp,
		width:        100,
		height:       28,
		booting:      runMode == modeInteractive,
		followLog:    true,
		runtime:      opts.Info,
	}
}

func (m *model) Init() tea.Cmd {
	if m.mode == modeOneShot && m.oneShotInput != "" {
		m.messages = append(m.messages, chatMessage{role: roleUser, content: m.oneShotInput})
		m.isLoading = true
		m.refreshViewport(false)
		return tea.Batch(m.spinner.Tick, sendPromptCmd(m.ctx, m.promptFn, m.oneShotInput))
	}

	return bootTickCmd()
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.resizeComponents()
		m.refreshViewport(false)
		m.isReady = true
		return m, nil
	case bootTickMsg:
		if !m.booting {
			return m, nil
		}

		m.bootStep++
		if m.bootStep < len(bootScriptLines())+1 {
			return m, bootTickCmd()
		}

		m.booting = false
		return m, textinput.Blink
	case tea.MouseMsg:
		if m.mode == modeInteractive && !m.booting {
			m.handleViewportMouse(typed)
		}
		return m, nil
	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		}

		if m.booting || m.mode == modeOneShot {
			return m, nil
		}

		if handled := m.handleViewportKey(typed); handled {
			return m, nil
		}

		if typed.String() == "enter" {
			return m.submit()
		}
	}

	if m.mode == modeInteractive {
		m.input, cmd = m.input.Update(msg)
	}

	switch typed := msg.(type) {
	case spinner.TickMsg:
		if !m.isLoading {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	case promptResultMsg:
		m.isLoading = false
		m.applyResult(typed)
		m.refreshViewport(false)
		if m.mode == modeOneShot {
			return m, tea.Quit
		}
	}

	return m, cmd
}

func (m *model) submit() (tea.Model, tea.Cmd) {
	if m.isLoading {
		return m, nil
	}

	prompt := strings.TrimSpace(m.input.Value())
	if prompt == "" {
		return m, nil
	}
	m.input.SetValue("")
	if isExitCommand(prompt) {
		return m, tea.Quit
	}
	if isResetCommand(prompt) {
		m.reset()
		return m, nil
	}

	m.lastErr = ""
	m.messages = append(m.messages, chatMessage{role: roleUser, content: prompt})
	m.isLoading = true
	m.followLog = true
	m.refreshViewport(true)
	return m, tea.Batch(m.spinner.Tick, sendPromptCmd(m.ctx, m.promptFn, prompt))
}

func (m *model) reset() {
	if m.resetFn != nil {
		m.resetFn()
	}
	m.messages = []chatMessage{{role: roleNotice, content: "🧹 Sohbet geçmişi temizlendi."}}
	m.usageIn, m.usageOut, m.usageTotal = 0, 0, 0
	m.lastErr = ""
	m.refreshViewport(true)
}

// applyResult turns one reply into transcript entries: tool cards first, then the answer.
func (m *model) applyResult(res promptResultMsg) {
	if res.err != nil {
		m.lastErr = res.err.Error()
		m.messages = append(m.messages, chatMessage{role: roleError, content: res.err.Error()})
		return
	}

	for _, event := range res.events {
		if event.Kind != tools.EventResult {
			continue
		}
		m.messages = append(m.messages, chatMessage{role: roleTool, content: formatToolEvent(event)})
	}

	out := res.outcome
	switch out.Kind {
	case orchestrator.KindSafetyBlock:
		m.lastErr = ""
		m.messages = append(m.messages, chatMessage{role: roleBlocked, content: out.Message})
	case orchestrator.KindError:
		m.lastErr = out.Message
		m.messages = append(m.messages, chatMessage{role: roleError, content: out.Message})
	default:
		m.lastErr = ""
		m.messages = append(m.messages, chatMessage{role: roleAssistant, content: out.Message, usage: out.Usage})
		if out.Usage != nil {
			m.usageIn += out.Usage.InputTokens
			m.usageOut += out.Usage.OutputTokens
			m.usageTotal += out.Usage.TotalTokens
		}
	}
}

func (m *model) View() string {
	if !m.isReady {
		m.resizeComponents()
		m.refreshViewport(false)
	}
	if m.mode == modeOneShot {
		return m.oneShotView()
	}
	if m.booting {
		return m.bootView()
	}

	header := m.theme.header.Width(m.width - 2).Render("🤖 Zeta Komuta Merkezi")
	meta := m.theme.headerMeta.Render(fmt.Sprintf(
		"provider:%s · model:%s · tools:%d · turns:%d · tokens(in/out/total):%d/%d/%d",
		displayOrNA(m.runtime.Provider),
		displayOrNA(m.runtime.Model),
		m.runtime.Tools,
		conversationTurns(m.messages),
		m.usageIn,
		m.usageOut,
		m.usageTotal,
	))
	line := m.theme.divider.Width(m.width - 2).Render(strings.Repeat("═", max(8, m.width-2)))

	status := m.theme.status.Render("💡 Enter gönder  ·  PgUp/PgDn/tekerlek kaydır  ·  End son mesaj  ·  /reset temizle  ·  🛑 Ctrl+C/Esc çıkış")
	if m.isLoading {
		status = m.theme.statusBusy.Render(fmt.Sprintf("%s ⚡ yanıt hazırlanıyor...", m.spinner.View()))
	}
	if m.lastErr != "" {
		status = m.theme.statusErr.Render("🚨 son istek başarısız oldu, tekrar dene")
	}

	parts := []string{
		header, meta, line,
		m.theme.viewport.Width(m.width - 2).Render(m.viewport.View()),
		status,
		m.theme.inputLabel.Render("👤 Sen") + " " + m.theme.hint.Render("(/exit, quit veya :q)"),
		m.theme.input.Width(m.width - 2).Render(m.input.View()),
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *model) resizeComponents() {
	w := m.width - 6
	if w < 50 {
		w = 50
	}
	h := m.height - 10
	if m.mode == modeOneShot {
		h = m.height - 6
	}
	if h < 8 {
		h = 8
	}

	m.viewport.Width = w
	m.viewport.Height = h
	m.input.Width = w - 2
}

func (m *model) refreshViewport(forceBottom bool) {
	previousOffset := m.viewport.YOffset
	sections := make([]string, 0, len(m.messages))
	for _, item := range m.messages {
		if card := m.renderMessage(item, m.viewport.Width); card != "" {
			sections = append(sections, card)
		}
	}

	m.viewport.SetContent(strings.Join(sections, "\n\n"))
	if m.followLog || forceBottom {
		m.viewport.GotoBottom()
		m.followLog = true
		return
	}

	maxOffset := m.viewport.TotalLineCount() - m.viewport.Height
	if maxOffset < 0 {
		maxOffset = 0
	}
	if previousOffset > maxOffset {
		previousOffset = maxOffset
	}
	m.viewport.SetYOffset(previousOffset)
}

func (m *model) renderMessage(item chatMessage, width int) string {
	body := strings.TrimSpace(item.content)
	switch item.role {
	case roleUser:
		return m.renderCard(m.theme.userTitle.Render("▛▚ [ 👤 ] ▞▜"), m.theme.userBox.Width(width).Render(body))
	case roleAssistant:
		body = m.markdown.render(body, width)
		if item.usage != nil {
			body = strings.TrimSpace(body + "\n\n" + m.theme.hint.Render(formatUsageLine(*item.usage)))
		}
		return m.renderCard(m.theme.assistantTitle.Render("▛▚ [ 🤖 ] ▞▜"), m.theme.assistantBox.Width(width).Render(body))
	case roleTool:
		return m.renderCard(m.theme.toolTitle.Render("▛▚ [ARAÇ] ▞▜"), m.theme.toolBox.Width(width).Render(body))
	case roleBlocked:
		return m.renderCard(m.theme.blockedTitle.Render("▛▚ [ENGEL] ▞▜"), m.theme.blockedBox.Width(width).Render(body))
	case roleError:
		return m.renderCard(m.theme.errorTitle.Render("▛▚ [HATA] ▞▜"), m.theme.errorBox.Width(width).Render(body))
	case roleNotice:
		return m.theme.notice.Render(body)
	default:
		return ""
	}
}

func (m *model) renderCard(title string, body string) string {
	return lipgloss.JoinVertical(lipgloss.Left, title, body)
}

func (m *model) oneShotView() string {
	contentWidth := max(40, m.width-6)
	parts := []string{m.renderCard(
		m.theme.userTitle.Render("▛▚ [GÖNDERİLDİ] ▞▜"),
		m.theme.userBox.Width(contentWidth).Render(strings.TrimSpace(m.oneShotInput)),
	)}

	if m.isLoading {
		parts = append(parts, m.theme.statusBusy.Render(fmt.Sprintf("%s ⚡ yanıt bekleniyor...", m.spinner.View())))
		return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n"
	}

	for _, item := range m.messages {
		if item.role == roleUser {
			continue
		}
		if card := m.renderMessage(item, contentWidth); card != "" {
			parts = append(parts, card)
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n\n"
}

func (m *model) bootView() string {
	header := m.theme.header.Width(m.width - 2).Render("🤖 Zeta Komuta Merkezi")
	meta := m.theme.headerMeta.Render("açılış")
	line := m.theme.divider.Width(m.width - 2).Render(strings.Repeat("═", max(8, m.width-2)))

	script := bootScriptLines()
	count := min(m.bootStep, len(script))
	visible := make([]string, 0, count+1)
	for i := 0; i < count; i++ {
		visible = append(visible, m.theme.bootLine.Render(script[i]))
	}
	if m.bootStep > len(script) {
		visible = append(visible, m.theme.bootDone.Render("✅ Zeta hazır"))
	}

	body := m.theme.viewport.Width(m.width - 2).Render(strings.Join(visible, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, header, meta, line, body)
}

func bootTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(_ time.Time) tea.Msg {
		return bootTickMsg{}
	})
}

func (m *model) handleViewportKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "pgup", "ctrl+b", "alt+up", "ctrl+up":
		m.viewport.PageUp()
		m.followLog = false
		return true
	case "pgdown", "ctrl+f", "alt+down", "ctrl+down":
		m.viewport.PageDown()
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	case "home":
		m.viewport.GotoTop()
		m.followLog = false
		return true
	case "end":
		m.viewport.GotoBottom()
		m.followLog = true
		return true
	default:
		return false
	}
}

// handleViewportMouse scrolls on wheel events and reports whether the event was consumed.
func (m *model) handleViewportMouse(msg tea.MouseMsg) bool {
	if msg.Action != tea.MouseActionPress {
		return false
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.viewport.SetYOffset(m.viewport.YOffset - mouseWheelLines)
		m.followLog = false
		return true
	case tea.MouseButtonWheelDown:
		m.viewport.SetYOffset(m.viewport.YOffset + mouseWheelLines)
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	default:
		return false
	}
}

func bootScriptLines() []string {
	return []string{
		"[BOOT] güvenlik kapısı devrede",
		"[BOOT] bağlam bütçesi ayarlandı",
		"[BOOT] araç kayıt defteri yüklendi",
		"[BOOT] model bağlantısı hazır",
	}
}

func sendPromptCmd(ctx context.Context, promptFn PromptFunc, prompt string) tea.Cmd {
	return func() tea.Msg {
		if promptFn == nil {
			return promptResultMsg{err: fmt.Errorf("prompt function is not configured")}
		}
		result, err := promptFn(ctx, prompt)
		return promptResultMsg{outcome: result.Outcome, events: result.ToolEvents, err: err}
	}
}

func displayOrNA(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "n/a"
	}

	return trimmed
}

func conversationTurns(messages []chatMessage) int {
	count := 0
	for _, message := range messages {
		if message.role == roleUser {
			count++
		}
	}

	return count
}

func formatUsageLine(usage providertypes.TokenUsage) string {
	return fmt.Sprintf("tokens in/out/total: %d/%d/%d", usage.InputTokens, usage.OutputTokens, usage.TotalTokens)
}

func formatToolEvent(event tools.Event) string {
	line := fmt.Sprintf("🔧 %s", event.Tool)
	if event.DurationMs > 0 {
		line += fmt.Sprintf(" · %d ms", event.DurationMs)
	}
	if payload := strings.TrimSpace(event.Payload); payload != "" {
		line += "\n" + payload
	}
	return line
}

func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "/exit", "quit", ":q":
		return true
	default:
		return false
	}
}

func isResetCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "/reset", "/yeni":
		return true
	default:
		return false
	}
}

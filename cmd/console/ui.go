package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/wayfarer/internal/engine"
	"github.com/jwebster45206/wayfarer/internal/handlers"
)

const (
	PlaceHolderText = "What do you do? (look, go north, take torch, help...)"
	maxActivity     = 6
)

type entryRole int

const (
	roleWorld entryRole = iota
	rolePlayer
	roleError
	roleInfo
)

type entry struct {
	role entryRole
	text string
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	api          *apiClient
	session      *engine.Session
	last         *engine.Response
	transcript   []entry
	activity     []string
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	err          error
	loading      bool

	// Start modal state
	showStartModal bool
	locationCount  int
	loadingWorld   bool
	options        []string
	selectedOption int

	// Quit confirmation state
	showQuitModal bool

	events       chan SSEEvent
	stopEvents   context.CancelFunc
	progressTick int
}

type commandResponseMsg struct {
	resp *handlers.SessionResponse
	err  error
}

type sessionStartedMsg struct {
	resp *handlers.SessionResponse
	err  error
}

type worldLoadedMsg struct {
	count int
	err   error
}

type worldEventMsg SSEEvent

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	placeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	worldStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(cfg *ConsoleConfig, api *apiClient) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 500
	ta.SetWidth(50)
	ta.SetHeight(2)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	options := []string{"Begin a new journey"}
	if cfg.ResumeID != uuid.Nil {
		options = append([]string{"Resume session " + cfg.ResumeID.String()[:8]}, options...)
	}

	return ConsoleUI{
		config:         cfg,
		api:            api,
		textarea:       ta,
		chatViewport:   chatVp,
		metaViewport:   metaVp,
		showStartModal: true,
		loadingWorld:   true,
		options:        options,
		events:         make(chan SSEEvent, 16),
	}
}

func writeMetadata(s *engine.Session, last *engine.Response, activity []string) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("JOURNEY") + "\n\n")

	content.WriteString("Session:\n")
	content.WriteString(s.ID.String()[:8] + "...\n\n")

	if last != nil && last.Location != nil {
		content.WriteString("Location:\n")
		content.WriteString(last.Location.Name + "\n\n")
	}

	if last != nil && len(last.Exits) > 0 {
		content.WriteString("Exits:\n")
		for _, exit := range last.Exits {
			content.WriteString("• " + exit + "\n")
		}
		content.WriteString("\n")
	}

	content.WriteString("Inventory:\n")
	if len(s.Inventory) == 0 {
		content.WriteString("Empty\n\n")
	} else {
		for _, item := range s.Inventory {
			content.WriteString("• " + item + "\n")
		}
		content.WriteString("\n")
	}

	content.WriteString(fmt.Sprintf("Places found:\n%d\n\n", len(s.DiscoveredLocations)))

	if len(activity) > 0 {
		content.WriteString("Activity:\n")
		for _, a := range activity {
			content.WriteString("• " + a + "\n")
		}
		content.WriteString("\n")
	}

	content.WriteString("Commands:\n")
	content.WriteString("• Ctrl+C: Quit\n")
	content.WriteString("• Enter: Send\n")
	content.WriteString("• /help: Help\n")
	content.WriteString("• /copy: Copy reply\n")

	return content.String()
}

// writeChatContent rebuilds the transcript for the current viewport width.
func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6 // Account for left(3) + right(3) padding
	if chatWidth < 10 {
		chatWidth = 10
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("WAYFARER") + "\n\n")
	content.WriteString("Explore. Unvisited paths are written as you walk them.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", chatWidth)) + "\n\n")

	for _, e := range m.transcript {
		switch e.role {
		case rolePlayer:
			content.WriteString(userStyle.Render("> ") + wordwrap.String(e.text, chatWidth-2) + "\n\n")
		case roleError:
			content.WriteString(errorStyle.Render("Error: "+e.text) + "\n\n")
		case roleInfo:
			content.WriteString(promptStyle.Render(wordwrap.String(e.text, chatWidth)) + "\n\n")
		default:
			content.WriteString(formatWorldText(e.text, chatWidth) + "\n\n")
		}
	}

	// If currently loading, add the progress bar
	if m.loading {
		content.WriteString(m.renderProgressBar())
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

// formatWorldText wraps a reply and highlights the first line when it names a place.
func formatWorldText(text string, width int) string {
	lines := strings.Split(wordwrap.String(text, width), "\n")
	if len(lines) > 1 && !strings.HasSuffix(strings.TrimSpace(lines[0]), ".") {
		lines[0] = placeStyle.Render(lines[0])
		for i := 1; i < len(lines); i++ {
			lines[i] = worldStyle.Render(lines[i])
		}
		return strings.Join(lines, "\n")
	}
	for i := range lines {
		lines[i] = worldStyle.Render(lines[i])
	}
	return strings.Join(lines, "\n")
}

func (m ConsoleUI) Init() tea.Cmd {
	return m.loadWorld()
}

func (m *ConsoleUI) resize() {
	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 7
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(chatWidth - 4)
}

func (m *ConsoleUI) refreshMeta() {
	if m.session != nil {
		m.metaViewport.SetContent(writeMetadata(m.session, m.last, m.activity))
	}
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Handle start modal first
	if m.showStartModal {
		return m.updateStartModal(msg)
	}

	// Handle quit modal second
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		m.writeChatContent()
		m.refreshMeta()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}

			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}

			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}

			m.textarea.Reset()
			m.loading = true
			m.progressTick = 0
			m.transcript = append(m.transcript, entry{role: rolePlayer, text: input})
			m.writeChatContent()

			return m, tea.Batch(m.sendCommand(input), progressTick())
		}

	case commandResponseMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			m.transcript = append(m.transcript, entry{role: roleError, text: msg.err.Error()})
		} else {
			m.session = msg.resp.Session
			if msg.resp.Response != nil {
				m.last = msg.resp.Response
				m.transcript = append(m.transcript, entry{role: roleWorld, text: msg.resp.Response.Message})
			}
		}
		m.writeChatContent()
		m.refreshMeta()
		return m, nil

	case worldEventMsg:
		if line := describeEvent(SSEEvent(msg), m.session); line != "" {
			m.activity = append(m.activity, line)
			if len(m.activity) > maxActivity {
				m.activity = m.activity[len(m.activity)-maxActivity:]
			}
			m.refreshMeta()
		}
		return m, m.waitForEvent()

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

// describeEvent turns a world event into a one-line activity note. Events
// caused by this session's own moves are skipped.
func describeEvent(ev SSEEvent, s *engine.Session) string {
	data, _ := ev.Data["data"].(map[string]any)
	name, _ := data["name"].(string)
	if name == "" {
		return ""
	}
	if s != nil {
		if id, ok := ev.Data["location_id"].(float64); ok && int64(id) == s.CurrentLocation {
			return ""
		}
	}
	switch ev.Type {
	case "location.materialized":
		return "New place: " + name
	case "location.visited":
		return "Someone entered " + name
	default:
		return ""
	}
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	cmd := strings.ToLower(strings.TrimSpace(input))

	switch cmd {
	case "/help":
		helpText := `Commands:
• /help - Show this help
• /copy - Copy the last reply to the clipboard
• /quit - Quit
• Ctrl+C - Quit

How to play:
• look, exits, go <direction> (or just n, s, e, w...)
• take <item>, inventory, history
• save <name>, load <id>
• Anything else is told to the narrator`
		m.transcript = append(m.transcript, entry{role: roleInfo, text: helpText})

	case "/copy":
		if m.last == nil {
			m.transcript = append(m.transcript, entry{role: roleInfo, text: "Nothing to copy yet."})
			break
		}
		if err := clipboard.WriteAll(m.last.Message); err != nil {
			m.transcript = append(m.transcript, entry{role: roleError, text: "clipboard unavailable: " + err.Error()})
			break
		}
		m.transcript = append(m.transcript, entry{role: roleInfo, text: "Copied last reply to clipboard."})

	case "/quit":
		m.showQuitModal = true

	default:
		m.transcript = append(m.transcript, entry{role: roleInfo, text: "Unknown command " + cmd + ". Try /help."})
	}

	m.textarea.Reset()
	m.writeChatContent()
	return m, nil
}

func (m ConsoleUI) sendCommand(input string) tea.Cmd {
	id := m.session.ID
	return func() tea.Msg {
		resp, err := m.api.sendCommand(id, input)
		return commandResponseMsg{resp, err}
	}
}

func (m ConsoleUI) loadWorld() tea.Cmd {
	return func() tea.Msg {
		locations, err := m.api.listLocations()
		return worldLoadedMsg{len(locations), err}
	}
}

func (m ConsoleUI) startSession(resume bool) tea.Cmd {
	return func() tea.Msg {
		if resume {
			resp, err := m.api.getSession(m.config.ResumeID)
			return sessionStartedMsg{resp, err}
		}
		resp, err := m.api.createSession()
		return sessionStartedMsg{resp, err}
	}
}

// listenForEvents streams world events in the background. A server without an
// event stream simply leaves the activity list empty.
func (m *ConsoleUI) listenForEvents() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.stopEvents = cancel
	events := m.events
	api := m.api
	go func() {
		_ = api.listenToSSE(ctx, events)
	}()
	return m.waitForEvent()
}

func (m ConsoleUI) waitForEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		return worldEventMsg(<-events)
	}
}

func (m ConsoleUI) quit() (tea.Model, tea.Cmd) {
	if m.stopEvents != nil {
		m.stopEvents()
	}
	return m, tea.Quit
}

func (m ConsoleUI) updateStartModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case worldLoadedMsg:
		m.loadingWorld = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.locationCount = msg.count
		}

	case sessionStartedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.session = msg.resp.Session
		m.last = msg.resp.Response
		if m.last != nil {
			m.transcript = append(m.transcript, entry{role: roleWorld, text: m.last.Message})
		} else {
			m.transcript = append(m.transcript, entry{role: roleInfo, text: "Session resumed. Type look to see where you are."})
		}
		m.showStartModal = false
		if m.width > 0 && m.height > 0 {
			m.resize()
		}
		m.ready = true
		m.writeChatContent()
		m.refreshMeta()
		m.textarea.Focus()
		return m, tea.Batch(textarea.Blink, m.listenForEvents())

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			if m.loadingWorld || m.err != nil {
				return m.quit()
			}
			m.showQuitModal = true
			return m, nil
		}
		if m.loadingWorld || m.loading || m.err != nil {
			return m, nil
		}

		switch msg.Type {
		case tea.KeyUp:
			if m.selectedOption > 0 {
				m.selectedOption--
			}
		case tea.KeyDown:
			if m.selectedOption < len(m.options)-1 {
				m.selectedOption++
			}
		case tea.KeyEnter:
			m.loading = true
			resume := strings.HasPrefix(m.options[m.selectedOption], "Resume")
			return m, m.startSession(resume)
		}
	}

	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m.quit()
		default:
			switch msg.String() {
			case "y", "Y":
				return m.quit()
			case "n", "N":
				m.showQuitModal = false
				if m.showStartModal {
					return m, nil
				}
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("Are you sure you want to end your journey?")
	if m.session != nil {
		content.WriteString("\n\nResume later with --session " + m.session.ID.String())
	}
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderStartModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	switch {
	case m.loadingWorld:
		content.WriteString(modalTitleStyle.Render("Loading World..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Please wait while we reach the server..."))
	case m.err != nil:
		content.WriteString(modalTitleStyle.Render("Error"))
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(m.err.Error()))
		content.WriteString("\n\n")
		content.WriteString("Press Ctrl+C to exit")
	case m.loading:
		content.WriteString(modalTitleStyle.Render("Setting Out..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Preparing your journey..."))
	default:
		content.WriteString(modalTitleStyle.Render("Wayfarer"))
		content.WriteString("\n\n")
		content.WriteString(fmt.Sprintf("%d places known so far.\n\n", m.locationCount))

		for i, option := range m.options {
			if i == m.selectedOption {
				content.WriteString(modalSelectedItemStyle.Render("▶ " + option))
			} else {
				content.WriteString(modalItemStyle.Render("  " + option))
			}
			content.WriteString("\n")
		}

		content.WriteString("\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showStartModal {
		return m.renderStartModal()
	}

	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(chatWidth-4, 0))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	usable := m.chatViewport.Width - 6
	if usable <= 0 {
		usable = 30 // fallback before sizing
	}

	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓") // Blinking effect at the progress point
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/station-engine/internal/services"
	"github.com/jwebster45206/station-engine/pkg/dialog"
	"github.com/jwebster45206/station-engine/pkg/gm"
	"github.com/jwebster45206/station-engine/pkg/save"
	"github.com/jwebster45206/station-engine/pkg/session"
	"github.com/jwebster45206/station-engine/pkg/world"
)

const (
	PlaceHolderText = "go forward | talk warden | ask <question> ..."
	NewGameLabel    = "+ New game"
)

var titleCaser = cases.Title(language.English)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	client       *http.Client
	sess         *session.Session
	slot         string
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	transcript   []string
	lastText     string
	ready        bool
	width        int
	height       int
	err          error
	loading      bool

	// Slot selection state
	showSlotModal bool
	summaries     []save.Summary
	selectedSlot  int
	loadingSlots  bool

	// Quit confirmation state
	showQuitModal bool

	// Active dialog state
	dialogNPC  string
	dialogNode *dialog.ResolvedNode

	// Progress bar state
	progressTick int
}

type savesLoadedMsg struct {
	summaries []save.Summary
	err       error
}

type sessionReadyMsg struct {
	sess *session.Session
	slot string
	err  error
}

type stationResponseMsg struct {
	node *dialog.Node
	err  error
}

type optionsInjectedMsg struct {
	npcID string
	err   error
}

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

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	roomStyle = lipgloss.NewStyle().
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

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		config:        cfg,
		client:        client,
		textarea:      ta,
		chatViewport:  chatVp,
		metaViewport:  metaVp,
		ready:         false,
		showSlotModal: true,
		loadingSlots:  true,
		selectedSlot:  0,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return m.loadSaves()
}

func (m ConsoleUI) loadSaves() tea.Cmd {
	return func() tea.Msg {
		store := newAPIStorage(m.client, m.config.APIBaseURL)
		summaries, err := store.ListSaves(context.Background())
		return savesLoadedMsg{summaries, err}
	}
}

func (m ConsoleUI) openSession(slot string) tea.Cmd {
	return func() tea.Msg {
		store := newAPIStorage(m.client, m.config.APIBaseURL)

		// With a direct GM endpoint the session generates in-process;
		// otherwise prefetches go through the API's durable queue and
		// the worker does the generating.
		var gms gm.Service = newAPIGM(store, slot)
		if m.config.GMURL != "" {
			gms = services.NewHTTPGMService(m.config.GMURL)
		}

		sess, err := session.New(context.Background(), slot, store, gms, nil)
		return sessionReadyMsg{sess, slot, err}
	}
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showSlotModal {
		return m.updateSlotModal(msg)
	}
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
		m.textarea, tiCmd = m.textarea.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(tiCmd, vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.writeChatContent()
		m.writeMetadata()
		if !m.ready {
			m.ready = true
		}

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
			m.textarea.Reset()

			if strings.HasPrefix(input, "/") {
				return m.handleSlashCommand(input)
			}
			return m.handleInput(input)
		}

	case stationResponseMsg:
		m.loading = false
		if msg.err != nil {
			m.appendLine(errorStyle.Render("The station does not answer. (" + msg.err.Error() + ")"))
		} else if msg.node != nil {
			m.appendSpeech(titleCaser.String(msg.node.Speaker), msg.node.Text)
		}
		m.writeMetadata()
		return m, nil

	case optionsInjectedMsg:
		m.loading = false
		if msg.err != nil {
			m.appendLine(errorStyle.Render("No new topics come to mind. (" + msg.err.Error() + ")"))
			return m, nil
		}
		// Restart the dialog so the injected options appear.
		return m.startDialog(msg.npcID)

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

func (m *ConsoleUI) resize() {
	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 7
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(chatWidth - 4)
}

func (m ConsoleUI) handleInput(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(input)
	verb := strings.ToLower(fields[0])

	// A bare number chooses a dialog option.
	if n, err := strconv.Atoi(verb); err == nil && m.dialogNode != nil {
		return m.chooseOption(n)
	}

	m.appendLine(userStyle.Render("> ") + input)

	switch verb {
	case "go", "move":
		if len(fields) < 2 {
			m.appendLine(errorStyle.Render("Go where? Try: go forward"))
			return m, nil
		}
		m.doMove(strings.ToLower(fields[1]))
		return m, nil

	case "look":
		m.describeCurrentRoom()
		return m, nil

	case "talk":
		if len(fields) < 2 {
			m.appendLine(errorStyle.Render("Talk to whom? Try: talk warden"))
			return m, nil
		}
		return m.startDialog(strings.ToLower(fields[1]))

	case "use":
		if len(fields) < 2 {
			m.appendLine(errorStyle.Render("Use what? Try: use supply_crate"))
			return m, nil
		}
		m.doUse(strings.ToLower(fields[1]))
		return m, nil

	case "ask":
		if len(fields) < 2 {
			m.appendLine(errorStyle.Render("Ask what? Try: ask where am I"))
			return m, nil
		}
		question := strings.TrimSpace(strings.TrimPrefix(input, fields[0]))
		m.loading = true
		m.progressTick = 0
		return m, tea.Batch(m.askStation(question), progressTick())

	case "more":
		if m.dialogNPC == "" {
			m.appendLine(errorStyle.Render("You are not talking to anyone."))
			return m, nil
		}
		m.loading = true
		m.progressTick = 0
		return m, tea.Batch(m.requestOptions(m.dialogNPC), progressTick())

	case "end", "bye":
		if m.dialogNode != nil {
			m.dialogNode = nil
			m.dialogNPC = ""
			m.appendLine(promptStyle.Render("The conversation ends."))
		}
		return m, nil

	default:
		m.appendLine(errorStyle.Render("Unknown command. Type /help for commands."))
		return m, nil
	}
}

func (m ConsoleUI) handleSlashCommand(input string) (tea.Model, tea.Cmd) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "/help":
		helpText := `
Commands:
- go <direction>   Move through an exit
- look             Describe the current room
- talk <npc>       Start a conversation
- <number>         Choose a dialog option
- more             Ask for more things to say
- end              End the conversation
- use <id>         Use an interactable
- ask <question>   Speak to the station itself
- /copy            Copy the last response to the clipboard
- /help            Show this help
`
		m.appendLine(titleStyle.Render("Help:") + helpText)

	case "/copy":
		if m.lastText == "" {
			m.appendLine(promptStyle.Render("Nothing to copy yet."))
			break
		}
		if err := clipboard.WriteAll(m.lastText); err != nil {
			m.appendLine(errorStyle.Render("Failed to copy: " + err.Error()))
		} else {
			m.appendLine(promptStyle.Render("Copied to clipboard."))
		}

	default:
		m.appendLine(errorStyle.Render("Unknown command. Type /help for commands."))
	}

	return m, nil
}

func (m *ConsoleUI) doMove(direction string) {
	res := m.sess.AttemptMove(context.Background(), direction)
	switch res.Outcome {
	case session.OutcomeMoved:
		m.dialogNode = nil
		m.dialogNPC = ""
		m.describeCurrentRoom()
	case session.OutcomeBlocked:
		m.appendLine(roomStyle.Render(res.Reason))
	case session.OutcomeUnformed:
		m.appendLine(loadingStyle.Render("The corridor ahead dissolves into static. Something is still taking shape."))
	default:
		m.appendLine(errorStyle.Render("You can't go that way."))
	}
	m.writeMetadata()
}

func (m *ConsoleUI) doUse(id string) {
	text, err := m.sess.UseInteractable(context.Background(), id)
	if err != nil {
		m.appendLine(errorStyle.Render("There is no such thing here."))
		return
	}
	if text == "" {
		text = "Nothing happens."
	}
	m.appendLine(roomStyle.Render(text))
	m.writeMetadata()
}

func (m ConsoleUI) startDialog(npcID string) (tea.Model, tea.Cmd) {
	node, err := m.sess.StartDialog(context.Background(), npcID)
	if err != nil || node == nil {
		m.appendLine(errorStyle.Render("There is no one here by that name."))
		return m, nil
	}
	m.dialogNPC = npcID
	m.dialogNode = node
	m.renderDialogNode()
	return m, nil
}

func (m ConsoleUI) chooseOption(n int) (tea.Model, tea.Cmd) {
	opts := m.dialogNode.Options
	if n < 1 || n > len(opts) {
		m.appendLine(errorStyle.Render(fmt.Sprintf("Pick a number between 1 and %d.", len(opts))))
		return m, nil
	}
	opt := opts[n-1]

	m.appendLine(userStyle.Render("> ") + opt.Text)
	m.sess.ChooseOption(context.Background(), m.dialogNPC, opt)

	if opt.Next == nil {
		m.dialogNode = nil
		m.dialogNPC = ""
		m.appendLine(promptStyle.Render("The conversation ends."))
	} else {
		m.dialogNode = opt.Next
		m.renderDialogNode()
	}
	m.writeMetadata()
	return m, nil
}

func (m *ConsoleUI) renderDialogNode() {
	node := m.dialogNode
	m.appendSpeech(titleCaser.String(node.Speaker), node.Text)

	var b strings.Builder
	for i, opt := range node.Options {
		b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, opt.Text))
	}
	b.WriteString(promptStyle.Render("Type a number to answer, 'more' for more topics, or 'end' to walk away."))
	m.appendLine(b.String())
}

func (m *ConsoleUI) describeCurrentRoom() {
	room := m.sess.CurrentRoom()
	if room == nil {
		m.appendLine(errorStyle.Render("You are nowhere. That should not happen."))
		return
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(strings.ToUpper(room.Name)) + "\n\n")
	if room.Description != "" {
		b.WriteString(wordwrap.String(room.Description, m.wrapWidth()) + "\n")
	}

	if len(room.NPCs) > 0 {
		names := make([]string, 0, len(room.NPCs))
		for _, npc := range room.NPCs {
			names = append(names, titleCaser.String(npc.Name))
		}
		b.WriteString("\nPresent: " + strings.Join(names, ", ") + "\n")
	}
	if len(room.Interactables) > 0 {
		names := make([]string, 0, len(room.Interactables))
		for _, it := range room.Interactables {
			names = append(names, it.ID)
		}
		b.WriteString("Nearby: " + strings.Join(names, ", ") + "\n")
	}
	if len(room.Exits) > 0 {
		b.WriteString("Exits: " + strings.Join(sortedExits(room), ", "))
	}

	m.lastText = room.Description
	m.appendLine(roomStyle.Render(b.String()))
}

func sortedExits(room *world.Room) []string {
	dirs := make([]string, 0, len(room.Exits))
	for dir := range room.Exits {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

func (m ConsoleUI) askStation(question string) tea.Cmd {
	return func() tea.Msg {
		node, err := m.sess.AskStation(context.Background(), question)
		return stationResponseMsg{node, err}
	}
}

func (m ConsoleUI) requestOptions(npcID string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.sess.RequestOptions(context.Background(), npcID, m.recentSpeech())
		return optionsInjectedMsg{npcID, err}
	}
}

// recentSpeech returns the last few transcript lines as dialog history.
func (m ConsoleUI) recentSpeech() []string {
	n := len(m.transcript)
	start := n - 6
	if start < 0 {
		start = 0
	}
	return m.transcript[start:n]
}

func (m *ConsoleUI) appendSpeech(speaker, text string) {
	m.lastText = text
	m.appendLine(speakerStyle.Render(speaker+": ") + wordwrap.String(text, m.wrapWidth()))
}

func (m *ConsoleUI) appendLine(line string) {
	m.transcript = append(m.transcript, line)
	m.writeChatContent()
}

func (m *ConsoleUI) wrapWidth() int {
	w := m.chatViewport.Width - 6
	if w < 20 {
		w = 20
	}
	return w
}

func (m *ConsoleUI) writeChatContent() {
	var content strings.Builder
	content.WriteString(titleStyle.Render("STATION ENGINE") + "\n\n")
	content.WriteString("The station hums around you. Type commands below; /help lists them.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", m.wrapWidth())) + "\n\n")

	for _, line := range m.transcript {
		content.WriteString(line + "\n\n")
	}

	if m.loading {
		content.WriteString(m.renderProgressBar())
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func (m *ConsoleUI) writeMetadata() {
	if m.sess == nil {
		return
	}

	player := m.sess.Player()
	var content strings.Builder
	content.WriteString(titleStyle.Render("STATION LOG") + "\n\n")

	content.WriteString("Slot:\n")
	content.WriteString(m.slot + "\n\n")

	content.WriteString(fmt.Sprintf("Act %d, seq %d\n\n", player.Act, m.sess.Seq()))

	if room := m.sess.CurrentRoom(); room != nil {
		content.WriteString("Location:\n")
		content.WriteString(titleCaser.String(room.Name) + "\n\n")

		content.WriteString("Exits:\n")
		for _, dir := range sortedExits(room) {
			content.WriteString("• " + dir + "\n")
		}
		content.WriteString("\n")
	}

	if len(player.Inventory) > 0 {
		content.WriteString("Carrying:\n")
		for _, item := range player.Inventory {
			content.WriteString("• " + item + "\n")
		}
		content.WriteString("\n")
	}

	flags := make([]string, 0, len(player.Flags))
	for flag, set := range player.Flags {
		if set {
			flags = append(flags, flag)
		}
	}
	sort.Strings(flags)
	if len(flags) > 0 {
		content.WriteString("Known:\n")
		for _, flag := range flags {
			content.WriteString("• " + flag + "\n")
		}
		content.WriteString("\n")
	}

	content.WriteString("Commands:\n")
	content.WriteString("• Ctrl+C: Quit\n")
	content.WriteString("• Enter: Send\n")
	content.WriteString("• /help: Help\n")

	m.metaViewport.SetContent(content.String())
}

func (m ConsoleUI) updateSlotModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case savesLoadedMsg:
		m.loadingSlots = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.summaries = msg.summaries
		}

	case sessionReadyMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.sess = msg.sess
		m.slot = msg.slot
		m.showSlotModal = false
		if m.width > 0 && m.height > 0 {
			m.resize()
		}
		m.describeCurrentRoom()
		m.writeMetadata()
		m.textarea.Focus()
		m.ready = true
		return m, textarea.Blink

	case tea.KeyMsg:
		if m.loadingSlots || m.loading {
			if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
				return m, tea.Quit
			}
			return m, nil
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyUp:
			if m.selectedSlot > 0 {
				m.selectedSlot--
			}
		case tea.KeyDown:
			if m.selectedSlot < len(m.summaries) {
				m.selectedSlot++
			}
		case tea.KeyEnter:
			slot := ""
			if m.selectedSlot < len(m.summaries) {
				slot = m.summaries[m.selectedSlot].Slot
			} else {
				slot = "game-" + uuid.New().String()[:8]
			}
			m.loading = true
			return m, m.openSession(slot)
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
			if m.sess != nil {
				m.sess.Close()
			}
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				if m.sess != nil {
					m.sess.Close()
				}
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
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
	content.WriteString(modalTitleStyle.Render("Leave the Station?"))
	content.WriteString("\n\n")
	content.WriteString("Progress is saved continuously; you can return to this slot.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderSlotModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	switch {
	case m.loadingSlots:
		content.WriteString(modalTitleStyle.Render("Loading Saves..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Fetching known save slots..."))
	case m.err != nil:
		content.WriteString(modalTitleStyle.Render("Error"))
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(fmt.Sprintf("Failed to start: %v", m.err)))
		content.WriteString("\n\n")
		content.WriteString("Press Ctrl+C to exit")
	case m.loading:
		content.WriteString(modalTitleStyle.Render("Boarding..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Loading station state..."))
	default:
		content.WriteString(modalTitleStyle.Render("Select a Save"))
		content.WriteString("\n\n")

		for i, summary := range m.summaries {
			label := fmt.Sprintf("%s (act %d, %s)", summary.Slot, summary.Act, summary.UpdatedAt.Format("Jan 2 15:04"))
			if i == m.selectedSlot {
				content.WriteString(modalSelectedItemStyle.Render("▶ " + label))
			} else {
				content.WriteString(modalItemStyle.Render("  " + label))
			}
			content.WriteString("\n")
		}
		if m.selectedSlot == len(m.summaries) {
			content.WriteString(modalSelectedItemStyle.Render("▶ " + NewGameLabel))
		} else {
			content.WriteString(modalItemStyle.Render("  " + NewGameLabel))
		}
		content.WriteString("\n\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showSlotModal {
		return m.renderSlotModal()
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
			separatorStyle.Render(strings.Repeat("─", chatWidth-4)),
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
	usable := m.wrapWidth()
	if usable > 80 {
		usable = 80
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		switch {
		case i < filled:
			bar.WriteString("█")
		case i == filled && frame%4 < 2:
			bar.WriteString("▓")
		default:
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

// Copyright 2026 The NhaChung Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhachung/chatsync/chat"
)

// typingEmitInterval throttles the viewer's own typing broadcasts: at
// most one isTyping=true per interval while keys are flowing.
const typingEmitInterval = 1500 * time.Millisecond

// commandTimeout bounds engine commands issued from the UI.
const commandTimeout = 15 * time.Second

const sidebarWidth = 34

var (
	sidebarStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			PaddingRight(1)
	selectedConvStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	unreadBadgeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	headerStyle       = lipgloss.NewStyle().Bold(true).PaddingBottom(1)
	connectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	disconnectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	senderStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	ownSenderStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("78"))
	systemStyle       = lipgloss.NewStyle().Faint(true).Italic(true)
	timestampStyle    = lipgloss.NewStyle().Faint(true)
	typingStyle       = lipgloss.NewStyle().Faint(true).Italic(true)
	statusStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// updateMsg signals that the engine's snapshot may have changed.
type updateMsg struct{}

// commandDoneMsg carries the result of an asynchronous engine command.
type commandDoneMsg struct{ err error }

type focusArea int

const (
	focusList focusArea = iota
	focusInput
)

type model struct {
	engine *chat.Engine

	snapshot chat.Snapshot
	cursor   int
	focus    focusArea

	input    textinput.Model
	viewport viewport.Model
	width    int
	height   int
	ready    bool

	lastTypingEmit time.Time
	status         string
}

func newModel(engine *chat.Engine) model {
	input := textinput.New()
	input.Placeholder = "Write a message…"
	input.CharLimit = 2000

	return model{
		engine:   engine,
		snapshot: engine.Snapshot(),
		input:    input,
	}
}

// waitForUpdate blocks on the engine's coalesced change channel.
func waitForUpdate(engine *chat.Engine) tea.Cmd {
	return func() tea.Msg {
		<-engine.Updates()
		return updateMsg{}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForUpdate(m.engine))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		contentWidth := m.width - sidebarWidth - 3
		contentHeight := m.height - 6
		if !m.ready {
			m.viewport = viewport.New(contentWidth, contentHeight)
			m.ready = true
		} else {
			m.viewport.Width = contentWidth
			m.viewport.Height = contentHeight
		}
		m.input.Width = contentWidth - 4
		m.refreshViewport()
		return m, nil

	case updateMsg:
		m.snapshot = m.engine.Snapshot()
		m.clampCursor()
		m.refreshViewport()
		return m, waitForUpdate(m.engine)

	case commandDoneMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
		} else {
			m.status = ""
		}
		m.snapshot = m.engine.Snapshot()
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "tab":
		if m.focus == focusList {
			m.focus = focusInput
			m.input.Focus()
		} else {
			m.focus = focusList
			m.input.Blur()
		}
		return m, nil
	}

	if m.focus == focusList {
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "j":
			if m.cursor < len(m.snapshot.Conversations)-1 {
				m.cursor++
			}
			return m, nil
		case "enter":
			if m.cursor < len(m.snapshot.Conversations) {
				conversation := m.snapshot.Conversations[m.cursor]
				m.focus = focusInput
				m.input.Focus()
				return m, m.selectConversation(conversation)
			}
			return m, nil
		}
		return m, nil
	}

	// Input focused.
	if msg.String() == "enter" {
		content := strings.TrimSpace(m.input.Value())
		if content == "" {
			return m, nil
		}
		conversation := m.selectedConversation()
		if conversation == nil {
			m.status = "select a conversation first"
			return m, nil
		}
		m.input.Reset()
		m.engine.SetTyping(conversation.ConversationID, false)
		m.lastTypingEmit = time.Time{}
		return m, m.sendMessage(*conversation, content)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	// Broadcast the viewer's typing state, throttled, while text is
	// flowing into a selected conversation.
	if msg.Type == tea.KeyRunes || msg.Type == tea.KeyBackspace {
		if conversation := m.selectedConversation(); conversation != nil {
			if time.Since(m.lastTypingEmit) > typingEmitInterval {
				m.engine.SetTyping(conversation.ConversationID, true)
				m.lastTypingEmit = time.Now()
			}
		}
	}
	return m, cmd
}

func (m model) selectConversation(conversation chat.Conversation) tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return commandDoneMsg{err: engine.SelectConversation(ctx, conversation)}
	}
}

func (m model) sendMessage(conversation chat.Conversation, content string) tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return commandDoneMsg{err: engine.Send(ctx, conversation, content, chat.MessageText)}
	}
}

func (m *model) selectedConversation() *chat.Conversation {
	for i := range m.snapshot.Conversations {
		if m.snapshot.Conversations[i].ConversationID == m.snapshot.SelectedConversationID {
			return &m.snapshot.Conversations[i]
		}
	}
	return nil
}

func (m *model) clampCursor() {
	if m.cursor >= len(m.snapshot.Conversations) {
		m.cursor = len(m.snapshot.Conversations) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *model) refreshViewport() {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderMessages())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *model) renderMessages() string {
	conversation := m.selectedConversation()
	if conversation == nil {
		return "No conversation selected. Pick one on the left and press enter."
	}

	messages := m.snapshot.MessagesByConversation[conversation.ConversationID]
	if len(messages) == 0 {
		return "No messages yet."
	}

	var b strings.Builder
	for _, message := range messages {
		timestamp := timestampStyle.Render(message.CreatedAt.Local().Format("15:04"))
		switch {
		case message.Type == chat.MessageSystem:
			line := message.Content
			if message.Metadata != nil && message.Metadata.Title != "" {
				line += fmt.Sprintf(" — %s, %s", message.Metadata.Title, message.Metadata.Price)
			}
			b.WriteString(systemStyle.Render(line) + " " + timestamp + "\n")
		default:
			style := senderStyle
			name := m.senderName(conversation, message)
			if m.ownMessage(message) {
				style = ownSenderStyle
			}
			prefix := style.Render(name + ":")
			content := message.Content
			if message.Type != chat.MessageText {
				content = fmt.Sprintf("[%s] %s", message.Type, message.Content)
			}
			b.WriteString(fmt.Sprintf("%s %s %s\n", prefix, content, timestamp))
		}
	}
	return b.String()
}

func (m *model) ownMessage(message chat.Message) bool {
	return message.SenderID != nil && *message.SenderID == m.engine.UserID()
}

func (m *model) senderName(conversation *chat.Conversation, message chat.Message) string {
	if message.SenderID == nil {
		return "system"
	}
	if *message.SenderID == conversation.TenantID {
		return fmt.Sprintf("tenant %d", conversation.TenantID)
	}
	return fmt.Sprintf("landlord %d", conversation.LandlordID)
}

func (m model) View() string {
	if !m.ready {
		return "loading…"
	}

	sidebar := m.renderSidebar()
	main := m.renderMain()
	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)
}

func (m model) renderSidebar() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Conversations") + "\n")

	if len(m.snapshot.Conversations) == 0 {
		b.WriteString(systemStyle.Render("none yet"))
	}
	for i, conversation := range m.snapshot.Conversations {
		label := fmt.Sprintf("#%d tenant %d / landlord %d",
			conversation.ConversationID, conversation.TenantID, conversation.LandlordID)
		if conversation.LastMessage != nil {
			preview := conversation.LastMessage.Content
			if runes := []rune(preview); len(runes) > 20 {
				preview = string(runes[:20]) + "…"
			}
			label += "\n  " + timestampStyle.Render(preview)
		}
		if conversation.UnreadCount > 0 {
			label += " " + unreadBadgeStyle.Render(fmt.Sprintf("(%d)", conversation.UnreadCount))
		}

		cursor := "  "
		if i == m.cursor && m.focus == focusList {
			cursor = "> "
			label = selectedConvStyle.Render(label)
		} else if conversation.ConversationID == m.snapshot.SelectedConversationID {
			label = selectedConvStyle.Render(label)
		}
		b.WriteString(cursor + label + "\n")
	}

	return sidebarStyle.Width(sidebarWidth).Height(m.height - 2).Render(b.String())
}

func (m model) renderMain() string {
	connection := connectedStyle.Render("● connected")
	if !m.snapshot.Connected {
		connection = disconnectedStyle.Render("○ disconnected")
	}
	header := headerStyle.Render("NhaChung chat") + "  " + connection

	typing := ""
	if conversation := m.selectedConversation(); conversation != nil {
		if m.snapshot.TypingByConversation[conversation.ConversationID] {
			typing = typingStyle.Render("typing…")
		}
	}

	status := ""
	if m.status != "" {
		status = statusStyle.Render(m.status)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		typing,
		m.input.View(),
		status,
	)
}

// Package tui implements the interactive lobby: a Bubble Tea front end over
// a session, used by the host and join commands to exercise a room without a
// real game attached.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/parlorgames/parlor/internal/identity"
	"github.com/parlorgames/parlor/internal/room"
	"github.com/parlorgames/parlor/internal/session"
)

// snapshotMsg carries a room snapshot into the Bubble Tea loop.
type snapshotMsg room.Snapshot

// noticeMsg carries a user-visible transport notification.
type noticeMsg string

// roomCreatedMsg reports a successful CreateRoom with the new room id.
type roomCreatedMsg string

// errMsg reports a failed transport operation.
type errMsg struct{ err error }

const maxNotices = 4

// Options configures the lobby model.
type Options struct {
	Session *session.Session

	// JoinRoomID, when set, joins the identified room instead of hosting.
	JoinRoomID string

	// RelayURL is dialed before hosting or joining in server mode.
	RelayURL string
}

// Model is the lobby state machine.
type Model struct {
	sess     *session.Session
	joinID   string
	relayURL string

	snapCh   chan room.Snapshot
	noticeCh chan string

	snap     room.Snapshot
	cursor   int
	notices  []string
	lastErr  error
	width    int
	quitting bool

	keys lobbyKeyMap
	help help.Model
}

// New builds a lobby over the given session and wires the snapshot and
// notification streams into the Bubble Tea loop.
func New(opts Options) *Model {
	m := &Model{
		sess:     opts.Session,
		joinID:   opts.JoinRoomID,
		relayURL: opts.RelayURL,
		snapCh:   make(chan room.Snapshot, 16),
		noticeCh: make(chan string, 16),
		keys:     newLobbyKeyMap(),
		help:     help.New(),
		snap:     opts.Session.Snapshot(),
	}

	// Store callbacks must not block; drop updates when the UI lags, the
	// next one carries the full snapshot anyway.
	opts.Session.Subscribe(func(snap room.Snapshot) {
		select {
		case m.snapCh <- snap:
		default:
		}
	})

	return m
}

// Notify implements session.Notifier so transport conditions show up in the
// lobby instead of the log.
func (m *Model) Notify(message string) {
	select {
	case m.noticeCh <- message:
	default:
	}
}

// Init starts the room (host or join) and begins streaming updates.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.startRoom(), m.waitForSnapshot(), m.waitForNotice())
}

// startRoom connects to the relay if needed, then hosts or joins.
func (m *Model) startRoom() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()

		if m.snap.Mode == room.ModeServer {
			if err := m.sess.ConnectToServer(ctx, m.relayURL); err != nil {
				return errMsg{err}
			}
		}

		if m.joinID != "" {
			m.sess.JoinRoom(m.joinID)
			return nil
		}

		id, err := m.sess.CreateRoom(ctx)
		if err != nil {
			return errMsg{err}
		}
		return roomCreatedMsg(id)
	}
}

// waitForSnapshot returns a command that delivers the next store update.
func (m *Model) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(<-m.snapCh)
	}
}

// waitForNotice returns a command that delivers the next notification.
func (m *Model) waitForNotice() tea.Cmd {
	return func() tea.Msg {
		return noticeMsg(<-m.noticeCh)
	}
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil
	case snapshotMsg:
		m.snap = room.Snapshot(msg)
		if m.cursor >= len(m.snap.Players) {
			m.cursor = max(0, len(m.snap.Players)-1)
		}
		return m, m.waitForSnapshot()
	case noticeMsg:
		m.pushNotice(string(msg))
		return m, m.waitForNotice()
	case roomCreatedMsg:
		return m, nil
	case errMsg:
		m.lastErr = msg.err
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.sess.CloseRoom()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.snap.Players)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.AddPlayer):
		n := 0
		for _, p := range m.snap.Players {
			if p.IsOffline {
				n++
			}
		}
		m.sess.AddOfflinePlayer(fmt.Sprintf("Guest %d", n+1))

	case key.Matches(msg, m.keys.StartGame):
		m.sess.StartGame("playing", room.GameState{"round": 1})

	case key.Matches(msg, m.keys.KickPlayer):
		if m.cursor < len(m.snap.Players) {
			m.sess.RemovePlayer(m.snap.Players[m.cursor].ID)
		}

	case key.Matches(msg, m.keys.CloseRoom), key.Matches(msg, m.keys.Back):
		m.sess.CloseRoom()

	case key.Matches(msg, m.keys.Reconnect):
		go m.sess.ReconnectToRoom(context.Background())
	}

	return m, nil
}

func (m *Model) pushNotice(notice string) {
	m.notices = append(m.notices, notice)
	if len(m.notices) > maxNotices {
		m.notices = m.notices[len(m.notices)-maxNotices:]
	}
}

// View renders the lobby.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("PARLOR"))
	b.WriteString("\n\n")

	if m.snap.RoomID == "" {
		if m.joinID != "" {
			b.WriteString(fmt.Sprintf("Joining room %s...\n", m.joinID))
		} else {
			b.WriteString("Creating room...\n")
		}
	} else {
		label := "Room"
		if m.snap.IsHost {
			label = "Hosting room"
		}
		b.WriteString(fmt.Sprintf("%s  %s\n\n", label, codeStyle.Render(m.snap.RoomID)))
		b.WriteString(m.viewRoster())
		b.WriteString(m.viewGameState())
	}

	if m.snap.Mode == room.ModeServer || m.snap.Mode == room.ModeOnline {
		status := "connected"
		if !m.snap.ServerConnected {
			status = noticeStyle.Render("disconnected — press r to reconnect")
		}
		b.WriteString(fmt.Sprintf("\nConnection: %s\n", status))
	}

	if m.lastErr != nil {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render("error: " + m.lastErr.Error()))
		b.WriteString("\n")
	}
	for _, notice := range m.notices {
		b.WriteString(noticeStyle.Render("• " + notice))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))
	b.WriteString("\n")

	return b.String()
}

func (m *Model) viewRoster() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Players (%d):\n", len(m.snap.Players)))
	for i, p := range m.snap.Players {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}

		line := fmt.Sprintf("%s%s %s", cursor, identity.Glyph(p.Avatar), p.Name)
		switch {
		case p.IsHost():
			line = hostStyle.Render(line + "  (host)")
		case p.IsOffline:
			line = offlineStyle.Render(line + "  (same device)")
		}
		if p.ID == m.snap.LocalPlayerID {
			line += " ← you"
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String()
}

func (m *Model) viewGameState() string {
	phase, ok := m.snap.GameState["phase"].(string)
	if !ok || phase == "" {
		return "\nGame not started.\n"
	}
	return fmt.Sprintf("\nGame phase: %s\n", phase)
}

package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/likedsync/internal/connection"
	"github.com/desertthunder/likedsync/internal/models"
)

// keyMap defines the [key.Binding] mapping for the status view.
type keyMap struct {
	check   key.Binding
	sync    key.Binding
	refresh key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		check:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "check")),
		sync:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sync")),
		refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh tokens")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// stateMsg wraps a store notification for the bubbletea loop.
type stateMsg struct {
	state connection.State
}

// opDoneMsg reports a completed store operation.
type opDoneMsg struct {
	label string
	err   string
}

// Model renders the live connection status. It subscribes to the store on
// start and unsubscribes on quit.
type Model struct {
	ctx     context.Context
	store   *connection.Store
	state   connection.State
	updates chan connection.State
	unsub   func()
	spin    spinner.Model
	keys    keyMap
	lastOp  string
	width   int
}

// NewModel creates a status view over the given store.
func NewModel(ctx context.Context, store *connection.Store) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		ctx:     ctx,
		store:   store,
		updates: make(chan connection.State, 16),
		spin:    sp,
		keys:    newKeyMap(),
	}
}

// Init subscribes to the store and starts listening for transitions.
func (m *Model) Init() tea.Cmd {
	m.unsub = m.store.Subscribe(func(state connection.State) {
		select {
		case m.updates <- state:
		default:
			// A slow render drops intermediate snapshots; the latest state
			// always arrives because the channel is drained on every cycle.
		}
	})

	return tea.Batch(m.spin.Tick, m.waitForUpdate())
}

// waitForUpdate blocks on the next store notification.
func (m *Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		return stateMsg{state: <-m.updates}
	}
}

// Update handles messages per the Elm loop.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case stateMsg:
		m.state = msg.state
		return m, m.waitForUpdate()

	case opDoneMsg:
		if msg.err != "" {
			m.lastOp = fmt.Sprintf("%s failed: %s", msg.label, msg.err)
		} else {
			m.lastOp = fmt.Sprintf("%s ok", msg.label)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			if m.unsub != nil {
				m.unsub()
			}
			return m, tea.Quit

		case key.Matches(msg, m.keys.check):
			return m, m.runOp("check", func() string {
				return m.store.CheckConnection(m.ctx, true).Error
			})

		case key.Matches(msg, m.keys.sync):
			return m, m.runOp("sync", func() string {
				return m.store.SyncLikedSongs(m.ctx, false).Error
			})

		case key.Matches(msg, m.keys.refresh):
			return m, m.runOp("refresh", func() string {
				return m.store.RefreshTokens(m.ctx).Error
			})
		}
	}

	return m, nil
}

// runOp submits a store operation off the render loop.
func (m *Model) runOp(label string, op func() string) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{label: label, err: op()}
	}
}

// View renders the current snapshot.
func (m *Model) View() string {
	s := styles.title.Render("likedsync — connection status") + "\n"

	if m.state.IsLoading {
		s += m.spin.View() + " working...\n"
	}

	if m.state.IsConnected {
		s += styles.ok.Render("● connected") + "\n"
		if conn := m.state.Connection; conn != nil {
			name := conn.AccountID
			if conn.DisplayName != "" {
				name = conn.DisplayName
			}
			s += fmt.Sprintf("  account: %s\n", name)
			if conn.Optimistic {
				s += styles.warn.Render("  optimistic — awaiting confirmation") + "\n"
			}
			s += fmt.Sprintf("  token expires in %s\n", time.Until(conn.ExpiresAt).Round(time.Minute))
		}
	} else {
		s += styles.warn.Render("○ not connected") + "\n"
	}

	s += "  health: " + renderHealth(m.state.HealthStatus) + "\n"

	if !m.state.LastCheckedAt.IsZero() {
		s += fmt.Sprintf("  last checked %s ago\n", time.Since(m.state.LastCheckedAt).Round(time.Second))
	}
	if m.state.Err != "" {
		s += styles.err.Render("  error: "+m.state.Err) + "\n"
	}
	if m.lastOp != "" {
		s += "\n" + m.lastOp + "\n"
	}

	s += "\n" + styles.help.Render("c check · s sync · r refresh · q quit")
	return s
}

func renderHealth(status models.HealthStatus) string {
	switch status {
	case models.HealthHealthy:
		return styles.ok.Render(string(status))
	case models.HealthWarning:
		return styles.warn.Render(string(status))
	case models.HealthError:
		return styles.err.Render(string(status))
	default:
		return string(status)
	}
}

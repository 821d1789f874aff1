package dashboard

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lucasfontes/teamsbridge/internal/bridge"
	"github.com/lucasfontes/teamsbridge/internal/teams"
)

// Bridge is the slice of the supervisor the dashboard drives.
type Bridge interface {
	Connect()
	SendStatus(st teams.Status) error
	State() bridge.State
}

// Schedule drives the keep-alive tick: while connected and inside the
// window, the current status is re-asserted every Interval so Teams
// never flips to Away on its own.
type Schedule struct {
	Interval time.Duration
	Within   func(time.Time) bool
	Default  teams.Status
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Faint(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5555"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#50fa7b"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f1fa8c"))
)

// Model is the bubbletea model for the status dashboard
type Model struct {
	bridge Bridge
	sched  Schedule

	cursor  int
	state   bridge.State
	current *teams.Status // last acknowledged status
	err     error
}

// NewModel creates a new dashboard model
func NewModel(b Bridge, sched Schedule) *Model {
	if sched.Interval <= 0 {
		sched.Interval = 2 * time.Minute
	}
	if sched.Within == nil {
		sched.Within = func(time.Time) bool { return true }
	}
	if sched.Default.Token == "" {
		sched.Default = teams.StatusAvailable
	}
	return &Model{bridge: b, sched: sched}
}

type stateMsg struct {
	state bridge.State
}

type setResultMsg struct {
	status teams.Status
	err    error
}

type tickMsg struct{}

type keepAliveMsg struct{}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.refreshState, tickCmd(), keepAliveCmd(m.sched.Interval))
}

// refreshState polls the supervisor state
func (m *Model) refreshState() tea.Msg {
	if m.bridge == nil {
		return stateMsg{state: bridge.StateIdle}
	}
	return stateMsg{state: m.bridge.State()}
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			m.moveCursor(-1)
		case "down", "j":
			m.moveCursor(1)
		case "enter":
			return m, m.setStatus(m.SelectedStatus())
		case "c":
			if m.bridge != nil {
				m.bridge.Connect()
			}
			return m, m.refreshState
		case "r":
			return m, m.refreshState
		}

	case stateMsg:
		prev := m.state
		m.state = msg.state
		if prev == bridge.StateConnected && m.state != bridge.StateConnected {
			m.current = nil
		}

	case setResultMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			st := msg.status
			m.current = &st
			m.err = nil
		}
		return m, m.refreshState

	case tickMsg:
		return m, tea.Batch(m.refreshState, tickCmd())

	case keepAliveMsg:
		var cmds []tea.Cmd
		if m.state == bridge.StateConnected && m.sched.Within(time.Now()) {
			st := m.sched.Default
			if m.current != nil {
				st = *m.current
			}
			cmds = append(cmds, m.setStatus(st))
		}
		cmds = append(cmds, keepAliveCmd(m.sched.Interval))
		return m, tea.Batch(cmds...)
	}
	return m, nil
}

func (m *Model) moveCursor(delta int) {
	statuses := teams.Statuses()
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(statuses) {
		m.cursor = len(statuses) - 1
	}
}

// SelectedStatus returns the status under the cursor
func (m *Model) SelectedStatus() teams.Status {
	statuses := teams.Statuses()
	if m.cursor >= 0 && m.cursor < len(statuses) {
		return statuses[m.cursor]
	}
	return teams.StatusAvailable
}

func (m *Model) setStatus(st teams.Status) tea.Cmd {
	return func() tea.Msg {
		if m.bridge == nil {
			return setResultMsg{status: st, err: teams.ErrNotConnected}
		}
		return setResultMsg{status: st, err: m.bridge.SendStatus(st)}
	}
}

// View renders the dashboard
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Teams Bridge"))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", 44) + "\n")

	b.WriteString("Connection: ")
	switch m.state {
	case bridge.StateConnected:
		b.WriteString(okStyle.Render("connected"))
	case bridge.StateFailed:
		b.WriteString(errStyle.Render("failed (press c to retry)"))
	case bridge.StateIdle:
		b.WriteString(dimStyle.Render("idle (press c to connect)"))
	default:
		b.WriteString(warnStyle.Render(m.state.String()))
	}
	b.WriteString("\n\n")

	for i, st := range teams.Statuses() {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(st.Color)).Render("●")
		line := fmt.Sprintf("%s%s %s", cursor, dot, st.Label)
		if m.current != nil && m.current.Token == st.Token {
			line += dimStyle.Render("  (current)")
		}
		b.WriteString(line + "\n")
	}

	b.WriteString(strings.Repeat("─", 44) + "\n")
	if m.err != nil {
		b.WriteString(errStyle.Render(fmt.Sprintf("error: %v", m.err)) + "\n")
	}
	b.WriteString(dimStyle.Render("[Enter] Set status   [c] Connect   [q] Quit") + "\n")

	return b.String()
}

// tickCmd returns a command that ticks for state refresh
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// keepAliveCmd schedules the next keep-alive assertion
func keepAliveCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return keepAliveMsg{}
	})
}

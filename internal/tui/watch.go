// Package tui renders a live view of one session: current phase,
// per-category finding counts, and the tail of the status log. It follows
// the bubbletea model/update/view loop with a periodic refresh tick.
package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rgournay/scout/internal/finding"
	"github.com/rgournay/scout/internal/session"
	"github.com/rgournay/scout/internal/status"
)

const (
	refreshInterval = 2 * time.Second
	historyTail     = 8
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
	phaseStyles = map[status.Phase]lipgloss.Style{
		status.PhaseCreated:   lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		status.PhasePlanning:  lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		status.PhaseExecuting: lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		status.PhaseComplete:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		status.PhaseError:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

type refreshMsg struct {
	current   status.Record
	hasStatus bool
	counts    map[finding.Category]int
	history   []status.Record
	err       error
}

type tickMsg time.Time

// Model is the watch view state.
type Model struct {
	manager   *session.Manager
	store     *finding.Store
	sessionID string

	spinner  spinner.Model
	snapshot refreshMsg
	loaded   bool
	quitting bool
}

// NewModel builds a watch model for one session id (or the latest alias).
func NewModel(manager *session.Manager, store *finding.Store, sessionID string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		manager:   manager,
		store:     store,
		sessionID: sessionID,
		spinner:   sp,
	}
}

// Init starts the spinner and the first refresh.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refreshCmd())
}

// Update handles key presses, refresh results, and the poll tick.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	case refreshMsg:
		m.snapshot = msg
		m.loaded = true
		return m, tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
	case tickMsg:
		return m, m.refreshCmd()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the session snapshot.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("scout watch: session %s", m.sessionID)))
	b.WriteString("\n\n")
	if !m.loaded {
		b.WriteString(m.spinner.View() + " loading...\n")
		return b.String()
	}
	if m.snapshot.err != nil {
		b.WriteString(errorStyle.Render("ERROR: "+m.snapshot.err.Error()) + "\n")
		b.WriteString(dimStyle.Render("press q to quit") + "\n")
		return b.String()
	}

	phaseLine := "no status records"
	if m.snapshot.hasStatus {
		record := m.snapshot.current
		style, ok := phaseStyles[record.Phase]
		if !ok {
			style = labelStyle
		}
		phaseLine = fmt.Sprintf("%s  %s", style.Render(string(record.Phase)), record.Message)
	}
	b.WriteString(labelStyle.Render("phase    ") + phaseLine + "\n")

	for _, category := range finding.Categories() {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-9s", category.DirName())))
		b.WriteString(fmt.Sprintf("%d findings\n", m.snapshot.counts[category]))
	}

	if len(m.snapshot.history) > 0 {
		b.WriteString("\n" + labelStyle.Render("recent activity") + "\n")
		for _, record := range m.snapshot.history {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  %s %-9s %s",
				record.Timestamp.Format("15:04:05"), record.Phase, record.Message)) + "\n")
		}
	}

	b.WriteString("\n" + m.spinner.View() + dimStyle.Render(" polling, press q to quit") + "\n")
	return b.String()
}

func (m Model) refreshCmd() tea.Cmd {
	manager, store, id := m.manager, m.store, m.sessionID
	return func() tea.Msg {
		sess, err := manager.Resolve(id)
		if err != nil {
			return refreshMsg{err: err}
		}
		msg := refreshMsg{counts: map[finding.Category]int{}}
		for _, category := range finding.Categories() {
			paths, err := store.List(sess, category)
			if err != nil && !errors.Is(err, finding.ErrNoFindings) {
				return refreshMsg{err: err}
			}
			msg.counts[category] = len(paths)
		}
		tracker := status.NewTracker(sess.LogPath())
		history, err := tracker.History()
		if err != nil && !errors.Is(err, status.ErrNoRecords) {
			return refreshMsg{err: err}
		}
		if len(history) > 0 {
			msg.hasStatus = true
			msg.current = history[len(history)-1]
			if len(history) > historyTail {
				history = history[len(history)-historyTail:]
			}
			msg.history = history
		}
		return msg
	}
}

// Run launches the watch view and blocks until the user quits.
func Run(manager *session.Manager, store *finding.Store, sessionID string) error {
	p := tea.NewProgram(NewModel(manager, store, sessionID), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

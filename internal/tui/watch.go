// Package tui provides the Bubble Tea live view behind `idlelock watch`.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/idlelock/idlelock/internal/domain"
)

const (
	refreshInterval = time.Second
	fetchTimeout    = 2 * time.Second
	barWidth        = 30
)

// ── Styles ────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true).
			Width(16)

	armedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	barFullStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	barEmptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// StatusSource is satisfied by the API client.
type StatusSource interface {
	Status(ctx context.Context) (domain.Status, error)
}

type tickMsg time.Time

type statusMsg struct {
	status domain.Status
	err    error
	at     time.Time
}

// Model is the root Bubble Tea model for the watch view.
type Model struct {
	src     StatusSource
	status  domain.Status
	err     error
	updated time.Time
	loaded  bool
}

// New creates a watch model polling src.
func New(src StatusSource) Model {
	return Model{src: src}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.fetch()
		}
	case tickMsg:
		return m, tea.Batch(m.fetch(), tick())
	case statusMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.status
			m.updated = msg.at
			m.loaded = true
		}
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("idlelock watch"))
	b.WriteString("\n\n")

	if !m.loaded {
		if m.err != nil {
			b.WriteString(errorStyle.Render(m.err.Error()))
		} else {
			b.WriteString("connecting...")
		}
		b.WriteString("\n\n" + hintStyle.Render("q quit"))
		return b.String()
	}

	st := m.status
	row(&b, "State", stateBadge(st.State))
	if !st.Calibrated {
		row(&b, "Calibration", "measuring tick rate")
	} else {
		row(&b, "Tick rate", fmt.Sprintf("%.3f ms/tick", st.MillisPerTick))
	}
	row(&b, "Idle", fmt.Sprintf("%s %.0fs / %ds", bar(st.IdleFor, float64(st.IdleThreshold)), st.IdleFor, st.IdleThreshold))
	if st.State == domain.GuardWarning.String() {
		elapsed := float64(st.GracePeriod - st.RemainingSeconds)
		row(&b, "Lock in", fmt.Sprintf("%s %ds", bar(elapsed, float64(st.GracePeriod)), st.RemainingSeconds))
	} else {
		row(&b, "Grace", fmt.Sprintf("%ds", st.GracePeriod))
	}
	row(&b, "Input events", fmt.Sprint(st.HookCalls))
	row(&b, "Locks", fmt.Sprint(st.LocksTriggered))
	if !st.StartedAt.IsZero() {
		row(&b, "Running since", st.StartedAt.Local().Format("2006-01-02 15:04:05"))
	}

	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render("stale: "+m.err.Error()) + "\n")
	}
	b.WriteString(hintStyle.Render(fmt.Sprintf("updated %s · r refresh · q quit", m.updated.Format("15:04:05"))))
	return b.String()
}

func (m Model) fetch() tea.Cmd {
	src := m.src
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		st, err := src.Status(ctx)
		return statusMsg{status: st, err: err, at: time.Now()}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(label))
	b.WriteString(value)
	b.WriteString("\n")
}

func stateBadge(state string) string {
	switch state {
	case domain.GuardArmed.String():
		return armedStyle.Render(state)
	case domain.GuardWarning.String():
		return warningStyle.Render(state)
	default:
		return disabledStyle.Render(state)
	}
}

// bar renders value/limit as a fixed-width progress bar.
func bar(value, limit float64) string {
	filled := 0
	if limit > 0 {
		filled = int(value / limit * barWidth)
	}
	filled = max(0, min(barWidth, filled))
	return barFullStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", barWidth-filled))
}

// Run starts the watch view.
func Run(src StatusSource) error {
	p := tea.NewProgram(New(src), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

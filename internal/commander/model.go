// Package commander is a terminal Kip-Commander: it shows the dashboards a
// KIP display publishes to Signal K and asks it to switch dashboards by
// writing the activeDashboard path.
package commander

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kipmarine/kipdash/internal/dashboard"
)

// Publisher writes a value to a Signal K path.
type Publisher interface {
	Publish(path string, value any, origin string)
}

// DashboardsMsg carries the published dashboard list.
type DashboardsMsg []dashboard.Info

// ActiveMsg carries the published active index.
type ActiveMsg int

// ConnectedMsg reports the stream state.
type ConnectedMsg bool

type styles struct {
	title    lipgloss.Style
	active   lipgloss.Style
	cursor   lipgloss.Style
	normal   lipgloss.Style
	muted    lipgloss.Style
	online   lipgloss.Style
	offline  lipgloss.Style
	selected string
}

func defaultStyles() styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		active:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		cursor:   lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		normal:   lipgloss.NewStyle(),
		muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		online:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		offline:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		selected: "›",
	}
}

// Model is the bubbletea model of the commander.
type Model struct {
	pub      Publisher
	path     string
	origin   string
	keys     KeyMap
	help     help.Model
	styles   styles
	basePath string

	dashboards []dashboard.Info
	active     int
	cursor     int
	connected  bool
	status     string
}

// New creates a commander writing to basePath.activeDashboard with origin
// as the source tag.
func New(pub Publisher, basePath, origin string) Model {
	return Model{
		pub:      pub,
		path:     basePath + ".activeDashboard",
		origin:   origin,
		keys:     DefaultKeyMap,
		help:     help.New(),
		styles:   defaultStyles(),
		basePath: basePath,
		active:   -1,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Active returns the last active index seen, or -1.
func (m Model) Active() int { return m.active }

// Cursor returns the highlighted row.
func (m Model) Cursor() int { return m.cursor }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case DashboardsMsg:
		m.dashboards = msg
		m.cursor = clamp(m.cursor, len(m.dashboards))
		return m, nil

	case ActiveMsg:
		m.active = int(msg)
		if m.active >= 0 && m.active < len(m.dashboards) {
			m.cursor = m.active
		}
		m.status = ""
		return m, nil

	case ConnectedMsg:
		m.connected = bool(msg)
		return m, nil

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.dashboards)
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case n == 0:
		return m, nil
	case key.Matches(msg, m.keys.Up):
		m.cursor = (m.cursor - 1 + n) % n
	case key.Matches(msg, m.keys.Down):
		m.cursor = (m.cursor + 1) % n
	case key.Matches(msg, m.keys.Select):
		m.request(m.cursor)
	case key.Matches(msg, m.keys.Next):
		m.request((m.current() + 1) % n)
	case key.Matches(msg, m.keys.Previous):
		m.request((m.current() - 1 + n) % n)
	}
	return m, nil
}

// current is the index next/previous step from: the active dashboard once
// known, the cursor before that.
func (m Model) current() int {
	if m.active >= 0 && m.active < len(m.dashboards) {
		return m.active
	}
	return m.cursor
}

func (m *Model) request(index int) {
	m.pub.Publish(m.path, index, m.origin)
	m.cursor = index
	m.status = fmt.Sprintf("requested %s", m.label(index))
}

func (m Model) label(i int) string {
	if i < 0 || i >= len(m.dashboards) {
		return fmt.Sprintf("#%d", i)
	}
	if name := m.dashboards[i].Name; name != "" {
		return name
	}
	return fmt.Sprintf("Dashboard %d", i+1)
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	state := m.styles.offline.Render("● offline")
	if m.connected {
		state = m.styles.online.Render("● online")
	}
	b.WriteString(m.styles.title.Render("Kip-Commander") + "  " + state + "\n")
	b.WriteString(m.styles.muted.Render(m.basePath) + "\n\n")

	if len(m.dashboards) == 0 {
		b.WriteString(m.styles.muted.Render("waiting for dashboards...") + "\n")
	}
	for i := range m.dashboards {
		prefix := "  "
		if i == m.cursor {
			prefix = m.styles.cursor.Render(m.styles.selected) + " "
		}
		line := fmt.Sprintf("%d  %s", i, m.label(i))
		style := m.styles.normal
		if i == m.active {
			style = m.styles.active
			line += "  (active)"
		}
		b.WriteString(prefix + style.Render(line) + "\n")
	}

	if m.status != "" {
		b.WriteString("\n" + m.styles.muted.Render(m.status) + "\n")
	}
	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func clamp(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

package commander

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	path   string
	value  any
	origin string
}

type fakePublisher struct {
	calls []published
}

func (f *fakePublisher) Publish(path string, value any, origin string) {
	f.calls = append(f.calls, published{path, value, origin})
}

func (f *fakePublisher) last() published {
	return f.calls[len(f.calls)-1]
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func setup(t *testing.T) (Model, *fakePublisher) {
	t.Helper()
	pub := &fakePublisher{}
	m := New(pub, "plugins.kip.skipper", "kip-commander.tui")
	m, _ = update(m, DashboardsMsg{{ID: "A", Name: "Nav"}, {ID: "B", Name: "Engine"}, {ID: "C"}})
	m, _ = update(m, ActiveMsg(1))
	return m, pub
}

func TestModel_ActiveMovesCursor(t *testing.T) {
	m, pub := setup(t)
	assert.Equal(t, 1, m.Active())
	assert.Equal(t, 1, m.Cursor())
	assert.Empty(t, pub.calls)
}

func TestModel_Keys(t *testing.T) {
	tests := []struct {
		name       string
		keys       []tea.KeyMsg
		wantValue  int
		wantCursor int
	}{
		{name: "next", keys: []tea.KeyMsg{runes("n")}, wantValue: 2, wantCursor: 2},
		{name: "previous", keys: []tea.KeyMsg{{Type: tea.KeyLeft}}, wantValue: 0, wantCursor: 0},
		{name: "down then select", keys: []tea.KeyMsg{{Type: tea.KeyDown}, {Type: tea.KeyEnter}}, wantValue: 2, wantCursor: 2},
		{name: "up wraps then select", keys: []tea.KeyMsg{{Type: tea.KeyUp}, {Type: tea.KeyUp}, {Type: tea.KeyEnter}}, wantValue: 2, wantCursor: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, pub := setup(t)
			for _, k := range tt.keys {
				m, _ = update(m, k)
			}
			require.Len(t, pub.calls, 1)
			assert.Equal(t, published{"plugins.kip.skipper.activeDashboard", tt.wantValue, "kip-commander.tui"}, pub.last())
			assert.Equal(t, tt.wantCursor, m.Cursor())
			assert.Equal(t, 1, m.Active(), "active only changes when the display reports it")
		})
	}
}

func TestModel_NextWrapsFromLast(t *testing.T) {
	m, pub := setup(t)
	m, _ = update(m, ActiveMsg(2))
	m, _ = update(m, runes("n"))
	assert.Equal(t, 0, pub.last().value)
	assert.Contains(t, m.View(), "requested Nav")
}

func TestModel_NoDashboardsIgnoresKeys(t *testing.T) {
	pub := &fakePublisher{}
	m := New(pub, "plugins.kip.x", "o")
	m, _ = update(m, runes("n"))
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, pub.calls)
	assert.Contains(t, m.View(), "waiting for dashboards")
}

func TestModel_Quit(t *testing.T) {
	m, _ := setup(t)
	_, cmd := update(m, runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_ShrinkingListClampsCursor(t *testing.T) {
	m, _ := setup(t)
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, m.Cursor())
	m, _ = update(m, DashboardsMsg{{ID: "A"}})
	assert.Equal(t, 0, m.Cursor())
}

func TestModel_View(t *testing.T) {
	m, _ := setup(t)
	m, _ = update(m, ConnectedMsg(true))
	v := m.View()
	assert.Contains(t, v, "online")
	assert.Contains(t, v, "plugins.kip.skipper")
	assert.Contains(t, v, "Engine  (active)")
	assert.Contains(t, v, "Dashboard 3")
}

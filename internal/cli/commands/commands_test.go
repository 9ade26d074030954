package commands

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kipmarine/kipdash/internal/cli/config"
	"github.com/kipmarine/kipdash/internal/cli/output"
	"github.com/kipmarine/kipdash/internal/cli/testutil"
	"github.com/kipmarine/kipdash/internal/dashboard"
	"github.com/kipmarine/kipdash/internal/settings"
)

// newTestContext builds a CommandContext over an in-memory settings
// database, capturing rendered output.
func newTestContext(t *testing.T, initial ...dashboard.Dashboard) (*CommandContext, *testutil.TestRenderer) {
	t.Helper()
	config.ResetConfig()

	st, err := settings.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	store := dashboard.New(initial)
	tr := testutil.NewTestRendererMarkdown()
	return &CommandContext{
		Cfg:       getConfig(),
		Logger:    config.GetLogger(context.Background()),
		Settings:  st,
		Store:     store,
		Persister: settings.NewPersister(st, store.DashboardsView(), nil),
		Renderer:  tr.Renderer,
	}, tr
}

func TestNewListCommand(t *testing.T) {
	cmd := NewListCommand()

	assert.Equal(t, "list", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.Contains(t, cmd.Aliases, "ls")

	// Note: --output flag is a global persistent flag on root command, not local to list
}

func TestNewServeCommand(t *testing.T) {
	cmd := NewServeCommand()

	assert.Equal(t, "serve", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")

	flags := []string{"addr", "sync", "sample-interval", "source-filter", "watch"}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestDashboardCommands(t *testing.T) {
	tests := []struct {
		name    string
		use     string
		aliases []string
		flags   []string
	}{
		{name: "add", use: "add <name>", flags: []string{"icon"}},
		{name: "rename", use: "rename <index> <name>", flags: []string{"icon"}},
		{name: "delete", use: "delete <index>", aliases: []string{"rm"}},
		{name: "duplicate", use: "duplicate <index> <name>", aliases: []string{"dup"}, flags: []string{"icon"}},
		{name: "activate", use: "activate <index|next|previous>", flags: []string{"server"}},
		{name: "export", use: "export", flags: []string{"file"}},
		{name: "import", use: "import <file|->"},
		{name: "doctor", use: "doctor", flags: []string{"timeout"}},
		{name: "shell", use: "shell"},
		{name: "remote", use: "remote"},
	}

	constructors := map[string]func() *cobra.Command{
		"add":       NewAddCommand,
		"rename":    NewRenameCommand,
		"delete":    NewDeleteCommand,
		"duplicate": NewDuplicateCommand,
		"activate":  NewActivateCommand,
		"export":    NewExportCommand,
		"import":    NewImportCommand,
		"doctor":    NewDoctorCommand,
		"shell":     NewShellCommand,
		"remote":    NewRemoteCommand,
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := constructors[tt.name]()
			assert.Equal(t, tt.use, cmd.Use)
			assert.NotEmpty(t, cmd.Short, "Short should not be empty")
			for _, alias := range tt.aliases {
				assert.Contains(t, cmd.Aliases, alias)
			}
			for _, flag := range tt.flags {
				assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestParseIndex(t *testing.T) {
	i, err := parseIndex("2")
	require.NoError(t, err)
	assert.Equal(t, 2, i)

	for _, bad := range []string{"-1", "two", ""} {
		_, err := parseIndex(bad)
		assert.Error(t, err, "parseIndex(%q)", bad)
	}
}

func TestBuildListOutput(t *testing.T) {
	st := dashboard.State{
		Dashboards: []dashboard.Dashboard{
			{ID: "a", Name: "Nav", Icon: "dashboard-nav", Configuration: []dashboard.Widget{{"id": "w1"}, {"id": "w2"}}},
			{ID: "b", Name: "Engine", Configuration: []dashboard.Widget{}},
		},
		Active: 1,
	}

	out := buildListOutput(st)
	assert.Equal(t, 1, out.Active)
	require.Len(t, out.Dashboards, 2)
	assert.Equal(t, DashboardRow{Index: 0, ID: "a", Name: "Nav", Icon: "dashboard-nav", Widgets: 2}, out.Dashboards[0])
	assert.True(t, out.Dashboards[1].Active)
	assert.False(t, out.Dashboards[0].Active)
}

func TestRenderList_Markdown(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()
	st := dashboard.State{
		Dashboards: []dashboard.Dashboard{{ID: "a", Name: "Nav", Configuration: []dashboard.Widget{}}},
	}

	require.NoError(t, renderList(tr.Renderer, st))
	testutil.AssertNoANSI(t, tr.Output())
	testutil.AssertValidMarkdown(t, tr.Output())
	testutil.AssertContains(t, tr.Output(), "Dashboards (1 total)")
	testutil.AssertContains(t, tr.Output(), "Nav")
}

func TestRenderList_JSON(t *testing.T) {
	tr := testutil.NewTestRendererJSON()
	st := dashboard.State{
		Dashboards: []dashboard.Dashboard{{ID: "a", Name: "Nav", Configuration: []dashboard.Widget{}}},
	}

	require.NoError(t, renderList(tr.Renderer, st))
	assert.JSONEq(t, `{"dashboards":[{"index":0,"id":"a","name":"Nav","icon":"","widgets":0,"active":true}],"active":0}`, tr.Output())
}

func TestRenderList_Modes(t *testing.T) {
	st := dashboard.State{
		Dashboards: []dashboard.Dashboard{
			{ID: "a", Name: "Nav", Configuration: []dashboard.Widget{}},
			{ID: "b", Name: "Engine", Configuration: []dashboard.Widget{{"id": "w1"}}},
		},
		Active: 1,
	}

	tests := []struct {
		name        string
		tr          *testutil.TestRenderer
		mode        output.OutputMode
		contains    []string
		notContains []string
	}{
		{
			name:        "auto without a terminal renders markdown",
			tr:          testutil.NewTestRendererAuto(),
			mode:        output.ModeMarkdown,
			contains:    []string{"# Dashboards (2 total)", "Engine", "| * "},
			notContains: []string{"dashboards:", `"dashboards"`},
		},
		{
			name:        "yaml",
			tr:          testutil.NewTestRendererYAML(),
			mode:        output.ModeYAML,
			contains:    []string{"dashboards:", "name: Nav", "name: Engine", "widgets: 1", "active: 1"},
			notContains: []string{"Dashboards (2 total)", "{"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, renderList(tt.tr.Renderer, st))
			assert.Equal(t, tt.mode, tt.tr.EffectiveMode())
			testutil.AssertOutputMode(t, tt.tr, tt.mode)
			for _, s := range tt.contains {
				testutil.AssertContains(t, tt.tr.Output(), s)
			}
			for _, s := range tt.notContains {
				testutil.AssertNotContains(t, tt.tr.Output(), s)
			}
		})
	}
}

func TestSameIDs(t *testing.T) {
	a := []dashboard.Dashboard{{ID: "1"}, {ID: "2"}}
	assert.True(t, sameIDs(a, []dashboard.Dashboard{{ID: "1", Name: "x"}, {ID: "2"}}))
	assert.False(t, sameIDs(a, []dashboard.Dashboard{{ID: "1"}}))
	assert.False(t, sameIDs(a, []dashboard.Dashboard{{ID: "2"}, {ID: "1"}}))
	assert.False(t, sameIDs(nil, []dashboard.Dashboard{{ID: "1"}}))
}

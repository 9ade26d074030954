package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kipmarine/kipdash/internal/cli/config"
	"github.com/kipmarine/kipdash/internal/cli/output"
	"github.com/kipmarine/kipdash/internal/dashboard"
	"github.com/kipmarine/kipdash/internal/settings"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg       *config.Config
	Logger    *slog.Logger
	Settings  *settings.Store
	Store     *dashboard.Store
	Persister *settings.Persister
	Renderer  *output.Renderer
}

// NewCommandContext opens the settings database and loads the dashboard
// store from it. Returns the context and a cleanup function that must be
// called (typically via defer).
func NewCommandContext(cmd *cobra.Command, opts ...dashboard.Option) (*CommandContext, func(), error) {
	ctx := cmd.Context()
	cfg := getConfig()
	logger := config.GetLogger(ctx)

	st, err := settings.Open(ctx, cfg.SettingsPath)
	if err != nil {
		return nil, nil, err
	}

	loaded, err := st.DashboardConfig(ctx)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	opts = append([]dashboard.Option{dashboard.WithLogger(logger)}, opts...)
	store := dashboard.New(loaded, opts...)
	p := settings.NewPersister(st, store.DashboardsView(), logger)

	// New synthesizes a dashboard for an empty database and repairs ids;
	// store what the user will actually see.
	if !sameIDs(loaded, store.Dashboards()) {
		if err := st.SaveDashboards(ctx, store.Dashboards()); err != nil {
			_ = st.Close()
			return nil, nil, err
		}
	}

	cleanup := func() {
		if err := p.Flush(context.WithoutCancel(ctx)); err != nil {
			logger.Error("final save failed", "error", err)
		}
		_ = st.Close()
	}

	return &CommandContext{
		Cfg:       cfg,
		Logger:    logger,
		Settings:  st,
		Store:     store,
		Persister: p,
		Renderer:  output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}, cleanup, nil
}

// NewCommandContextWithoutStore creates a CommandContext without opening the
// settings database.
func NewCommandContextWithoutStore(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}
}

// Commit saves pending store changes.
func (c *CommandContext) Commit(ctx context.Context) error {
	return c.Persister.Flush(ctx)
}

// getConfig returns the current configuration, falling back to defaults
// when the root command did not load one (tests, direct invocation).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		SettingsPath: config.DefaultSettingsFile,
		LoginName:    config.DefaultLoginName,
		LogLevel:     config.DefaultLogLevel,
		OutputFormat: config.DefaultOutput,
		SignalK: config.SignalKConfig{
			URL:          config.DefaultSignalKURL,
			ReconnectMin: config.DefaultReconnectMin,
			ReconnectMax: config.DefaultReconnectMax,
		},
		Sync: config.SyncConfig{Enabled: true, SampleInterval: config.DefaultSampleInterval},
		HTTP: config.HTTPConfig{Addr: config.DefaultHTTPAddr, Watch: true},
	}
}

func sameIDs(a, b []dashboard.Dashboard) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

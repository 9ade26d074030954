package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/kipmarine/kipdash/internal/cli/config"
	"github.com/kipmarine/kipdash/internal/dashboard"
	"github.com/kipmarine/kipdash/internal/remotesync"
	"github.com/kipmarine/kipdash/internal/settings"
	"github.com/kipmarine/kipdash/internal/signalk"
	"github.com/kipmarine/kipdash/internal/web"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard server and Signal K sync",
		Long: `Serve the dashboard API and live update stream, persist every change to
the settings database and mirror the active dashboard to Signal K so a
Kip-Commander remote can follow and switch it.

The config file is watched while serving. Changing login_name moves the
sync to the new plugins.kip.<login> path without a restart.`,
		Example: `  # Serve with defaults (http :8766, Signal K on localhost:3000)
  kipdash serve

  # Serve without remote sync
  kipdash serve --sync=false

  # Serve against a boat server
  kipdash serve --signalk-url wss://boat.local:3443 --login skipper`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	cmd.Flags().String("addr", "", "HTTP listen address (default "+config.DefaultHTTPAddr+")")
	cmd.Flags().Bool("sync", true, "Mirror dashboards to Signal K")
	cmd.Flags().Duration("sample-interval", config.DefaultSampleInterval, "Minimum spacing of applied remote commands (0 applies each one)")
	cmd.Flags().String("source-filter", "", "Only accept remote commands from this Signal K source")
	cmd.Flags().Bool("watch", true, "Reload the config file when it changes")

	return cmd
}

func runServe(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	nav := web.NewNavigator()
	cmdCtx, cleanup, err := NewCommandContext(cmd, dashboard.WithNavigator(nav))
	if err != nil {
		return err
	}
	defer cleanup()

	cfg, logger, store := cmdCtx.Cfg, cmdCtx.Logger, cmdCtx.Store

	// A dashboard becomes active once it is shown.
	nav.OnShown(func(index int) { _ = store.SetActiveDashboard(index) })

	instanceID, err := cmdCtx.Settings.InstanceID(ctx)
	if err != nil {
		return err
	}
	if err := cmdCtx.Settings.SaveConnectionConfig(ctx, settings.ConnectionConfig{
		LoginName: cfg.LoginName,
		URL:       cfg.SignalK.URL,
	}); err != nil {
		return err
	}

	eg, egctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return cmdCtx.Persister.Run(egctx)
	})

	var bridge *remotesync.Bridge
	if cfg.Sync.Enabled {
		client, err := signalk.NewClient(signalk.Config{
			URL:          cfg.SignalK.URL,
			Token:        cfg.SignalK.Token,
			ReconnectMin: cfg.SignalK.ReconnectMin,
			ReconnectMax: cfg.SignalK.ReconnectMax,
			Logger:       logger,
		})
		if err != nil {
			return err
		}
		bridge = remotesync.New(store, client, remotesync.Config{
			LoginName:      cfg.LoginName,
			InstanceID:     instanceID,
			SampleInterval: cfg.Sync.SampleInterval,
			SourceFilter:   cfg.Sync.SourceFilter,
			Logger:         logger,
		})

		eg.Go(func() error {
			return client.Run(egctx)
		})
		bridge.Start(egctx)
		logger.Info("remote sync enabled", "url", client.URL(), "base_path", bridge.BasePath())
	}

	srv := web.NewServer(web.Config{
		Addr:      cfg.HTTP.Addr,
		Store:     store,
		Navigator: nav,
		Logger:    logger,
	})
	eg.Go(func() error {
		return srv.Serve(egctx)
	})

	if path := config.GetConfigFileUsed(); cfg.HTTP.Watch && path != "" {
		r := &reloader{
			path:     path,
			flags:    cmd.Flags(),
			settings: cmdCtx.Settings,
			bridge:   bridge,
			current:  *cfg,
			logger:   logger,
		}
		eg.Go(func() error {
			return config.WatchFile(egctx, path, logger, func() { r.reload(egctx) })
		})
	}

	// Show the active dashboard to start with.
	store.NavigateToActive()

	return eg.Wait()
}

// reloader applies config file edits to a running server.
type reloader struct {
	mu       sync.Mutex
	path     string
	flags    *pflag.FlagSet
	settings *settings.Store
	bridge   *remotesync.Bridge
	current  config.Config
	logger   *slog.Logger
}

func (r *reloader) reload(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, err := config.LoadConfig(r.path, r.flags)
	if err != nil {
		r.logger.Error("config reload failed, keeping previous settings", "file", r.path, "error", err)
		return
	}

	if next.SignalK != r.current.SignalK || next.HTTP.Addr != r.current.HTTP.Addr || next.Sync.Enabled != r.current.Sync.Enabled {
		r.logger.Warn("connection settings changed; restart to apply", "file", r.path)
	}

	if next.LoginName != r.current.LoginName {
		if r.bridge != nil {
			r.bridge.Retarget(next.LoginName)
			r.logger.Info("remote sync retargeted", "base_path", r.bridge.BasePath())
		}
		if err := r.settings.SaveConnectionConfig(ctx, settings.ConnectionConfig{
			LoginName: next.LoginName,
			URL:       r.current.SignalK.URL,
		}); err != nil {
			r.logger.Error("failed to save connection config", "error", err)
		}
	}
	r.current.LoginName = next.LoginName
}

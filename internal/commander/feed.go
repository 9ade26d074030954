package commander

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kipmarine/kipdash/internal/dashboard"
	"github.com/kipmarine/kipdash/internal/remotesync"
	"github.com/kipmarine/kipdash/internal/signalk"
)

// Subscriber delivers values of a Signal K path.
type Subscriber interface {
	Subscribe(ctx context.Context, path, sourceFilter string) <-chan signalk.PathUpdate
}

// Follow forwards the dashboards and activeDashboard values under basePath
// to send until ctx is done. Values that do not decode are logged and
// skipped; a null activeDashboard is skipped silently.
func Follow(ctx context.Context, sub Subscriber, basePath string, logger *slog.Logger, send func(tea.Msg)) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	dashboards := sub.Subscribe(ctx, basePath+".dashboards", "")
	active := sub.Subscribe(ctx, basePath+".activeDashboard", "")

	for {
		select {
		case <-ctx.Done():
			return

		case u, ok := <-dashboards:
			if !ok {
				return
			}
			var infos []dashboard.Info
			if err := json.Unmarshal(u.Value, &infos); err != nil {
				logger.Warn("ignoring dashboards value", "path", u.Path, "error", err)
				continue
			}
			send(DashboardsMsg(infos))

		case u, ok := <-active:
			if !ok {
				return
			}
			index, err := remotesync.ParseIndex(u.Value)
			if errors.Is(err, remotesync.ErrNoValue) {
				continue
			}
			if err != nil {
				logger.Warn("ignoring activeDashboard value", "path", u.Path, "value", string(u.Value), "error", err)
				continue
			}
			send(ActiveMsg(index))
		}
	}
}

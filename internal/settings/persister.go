package settings

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kipmarine/kipdash/internal/dashboard"
	"github.com/kipmarine/kipdash/internal/signal"
)

const flushTimeout = 5 * time.Second

// Saver persists a dashboard collection.
type Saver interface {
	SaveDashboards(ctx context.Context, ds []dashboard.Dashboard) error
}

// Persister saves the collection every time it changes. Saves run on the
// persister's goroutine; callers that mutated the store are never blocked.
type Persister struct {
	saver  Saver
	view   signal.Readonly[[]dashboard.Dashboard]
	logger *slog.Logger
	ping   chan struct{}
}

// NewPersister starts listening to view immediately, so changes made
// before Run is called are still saved.
func NewPersister(saver Saver, view signal.Readonly[[]dashboard.Dashboard], logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Persister{
		saver:  saver,
		view:   view,
		logger: logger.With("component", "persister"),
		ping:   view.Notify(),
	}
}

// Run saves the latest collection after each change until ctx is done. A
// change still pending at that point is flushed before Run returns.
func (p *Persister) Run(ctx context.Context) error {
	defer p.view.Unnotify(p.ping)

	for {
		select {
		case <-ctx.Done():
			select {
			case <-p.ping:
				p.flush(ctx)
			default:
			}
			return nil
		case <-p.ping:
			if ctx.Err() != nil {
				p.flush(ctx)
				return nil
			}
			p.save(ctx)
		}
	}
}

// Flush saves the collection now if it changed since the last save. It is
// the synchronous path used when no Run loop is active.
func (p *Persister) Flush(ctx context.Context) error {
	select {
	case <-p.ping:
	default:
		return nil
	}
	ds := p.view.Get()
	if err := p.saver.SaveDashboards(ctx, ds); err != nil {
		return fmt.Errorf("failed to save dashboards: %w", err)
	}
	p.logger.Debug("dashboards saved", "count", len(ds))
	return nil
}

// flush saves with a fresh deadline once ctx is already done.
func (p *Persister) flush(ctx context.Context) {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()
	p.save(flushCtx)
}

func (p *Persister) save(ctx context.Context) {
	ds := p.view.Get()
	if err := p.saver.SaveDashboards(ctx, ds); err != nil {
		p.logger.Error("failed to save dashboards", "count", len(ds), "error", err)
		return
	}
	p.logger.Debug("dashboards saved", "count", len(ds))
}

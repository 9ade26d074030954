// Package remotesync mirrors the dashboard store to a Signal K server so a
// Kip-Commander remote can see the dashboards and select the active one.
//
// Three facts are published under plugins.kip.<loginName>: maxDashboard,
// dashboards and activeDashboard. The activeDashboard path is also
// subscribed, and values set by the remote are applied back to the store.
// An inbound value equal to the current active index is ignored, which is
// what stops a local publish from echoing back as a new command.
package remotesync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kipmarine/kipdash/internal/dashboard"
	"github.com/kipmarine/kipdash/internal/signal"
	"github.com/kipmarine/kipdash/internal/signalk"
)

// Remote path suffixes under the base path.
const (
	PathMaxDashboard    = "maxDashboard"
	PathDashboards      = "dashboards"
	PathActiveDashboard = "activeDashboard"
)

// DefaultSampleInterval bounds how often inbound values are applied.
const DefaultSampleInterval = 500 * time.Millisecond

// BasePath returns the per-user path namespace.
func BasePath(loginName string) string {
	return "plugins.kip." + loginName
}

// Transport is the Signal K publish/subscribe primitive.
type Transport interface {
	Publish(path string, value any, origin string)
	Subscribe(ctx context.Context, path, sourceFilter string) <-chan signalk.PathUpdate
}

// Store is the part of the dashboard store the bridge drives.
type Store interface {
	ActiveIndex() int
	Len() int
	Infos() []dashboard.Info
	SetActiveDashboard(index int) error
	NavigateToActive()
	Changes() signal.Readonly[dashboard.Change]
}

// Config configures a Bridge.
type Config struct {
	LoginName string
	// InstanceID tags every outbound write as ours.
	InstanceID string
	// SampleInterval coalesces inbound values. Zero applies every value as
	// it arrives.
	SampleInterval time.Duration
	// SourceFilter restricts inbound values to one source. Empty accepts
	// all sources.
	SourceFilter string
	Logger       *slog.Logger
}

// Bridge keeps the remote facts in step with the store.
type Bridge struct {
	store     Store
	transport Transport
	logger    *slog.Logger
	cfg       Config

	mu            sync.RWMutex
	basePath      string
	parent        context.Context
	cancelInbound context.CancelFunc
	inboundDone   chan struct{}
	stopChanges   func()
}

// New creates a bridge. Nothing is published until Start.
func New(store Store, transport Transport, cfg Config) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bridge{
		store:     store,
		transport: transport,
		logger:    logger.With("component", "remotesync"),
		cfg:       cfg,
		basePath:  BasePath(cfg.LoginName),
	}
}

// BasePath returns the current base path.
func (b *Bridge) BasePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.basePath
}

// Start publishes the dashboard count and metadata, begins mirroring store
// changes and subscribes the inbound active-dashboard path. Everything is
// torn down when ctx is done.
func (b *Bridge) Start(ctx context.Context) {
	b.mu.Lock()
	if b.parent != nil {
		b.mu.Unlock()
		return
	}
	b.parent = ctx
	b.mu.Unlock()

	b.publishCount(b.store.Len())
	b.publishMetadata(b.store.Infos())

	stop := b.store.Changes().Subscribe(b.onChange)
	b.mu.Lock()
	b.stopChanges = stop
	b.subscribeLocked()
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.Stop()
	}()
}

// Stop unsubscribes the inbound path and stops mirroring store changes.
func (b *Bridge) Stop() {
	b.Unsubscribe()
	b.mu.Lock()
	stop := b.stopChanges
	b.stopChanges = nil
	b.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Unsubscribe releases the inbound listener. Outbound mirroring continues.
func (b *Bridge) Unsubscribe() {
	b.mu.Lock()
	cancel, done := b.cancelInbound, b.inboundDone
	b.cancelInbound, b.inboundDone = nil, nil
	b.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	b.logger.Debug("inbound subscription released")
}

// Retarget switches to a new login name: the inbound path is resubscribed
// under the new base path and all three facts are republished there.
func (b *Bridge) Retarget(loginName string) {
	b.mu.Lock()
	if BasePath(loginName) == b.basePath {
		b.mu.Unlock()
		return
	}
	started := b.parent != nil
	b.mu.Unlock()

	b.Unsubscribe()

	b.mu.Lock()
	b.cfg.LoginName = loginName
	b.basePath = BasePath(loginName)
	if started {
		b.subscribeLocked()
	}
	base := b.basePath
	b.mu.Unlock()

	b.logger.Info("remote sync retargeted", "base_path", base)
	if started {
		b.publishCount(b.store.Len())
		b.publishMetadata(b.store.Infos())
		b.publishActive(b.store.ActiveIndex())
	}
}

// subscribeLocked starts the inbound pipeline. b.mu must be held.
func (b *Bridge) subscribeLocked() {
	if b.parent.Err() != nil {
		return
	}
	ctx, cancel := context.WithCancel(b.parent)
	done := make(chan struct{})
	b.cancelInbound, b.inboundDone = cancel, done

	path := b.basePath + "." + PathActiveDashboard
	updates := b.transport.Subscribe(ctx, path, b.cfg.SourceFilter)
	if b.cfg.SampleInterval > 0 {
		updates = sample(ctx, updates, b.cfg.SampleInterval)
	}

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				b.apply(u)
			}
		}
	}()
	b.logger.Debug("inbound subscription started", "path", path, "sample_interval", b.cfg.SampleInterval)
}

// apply validates an inbound active-dashboard value and applies it.
func (b *Bridge) apply(u signalk.PathUpdate) {
	index, err := ParseIndex(u.Value)
	if errors.Is(err, ErrNoValue) {
		return
	}
	if err != nil {
		b.logger.Warn("discarding remote active dashboard", "path", u.Path, "value", string(u.Value), "error", err)
		return
	}

	if index == b.store.ActiveIndex() {
		return
	}
	if n := b.store.Len(); index < 0 || index >= n {
		b.logger.Error("discarding remote active dashboard",
			"path", u.Path, "index", index, "len", n, "error", ErrInvalidRemoteValue)
		return
	}

	if err := b.store.SetActiveDashboard(index); err != nil {
		return
	}
	b.logger.Info("active dashboard set remotely", "index", index, "source", u.Source)
	b.store.NavigateToActive()
}

// onChange republishes the facts named by the change. It runs on the
// store's writer goroutine and only queues publishes.
func (b *Bridge) onChange(c dashboard.Change) {
	if c.Facts.Has(dashboard.FactCount) {
		b.publishCount(len(c.State.Dashboards))
	}
	if c.Facts.Has(dashboard.FactMetadata) {
		b.publishMetadata(dashboard.Infos(c.State.Dashboards))
	}
	if c.Facts.Has(dashboard.FactActive) {
		b.publishActive(c.State.Active)
	}
}

func (b *Bridge) publishCount(n int) {
	b.publish(PathMaxDashboard, n-1)
}

func (b *Bridge) publishMetadata(infos []dashboard.Info) {
	b.publish(PathDashboards, infos)
}

func (b *Bridge) publishActive(index int) {
	b.publish(PathActiveDashboard, index)
}

func (b *Bridge) publish(suffix string, value any) {
	path := b.BasePath() + "." + suffix
	b.transport.Publish(path, value, b.cfg.InstanceID)
	b.logger.Debug("published", "path", path)
}

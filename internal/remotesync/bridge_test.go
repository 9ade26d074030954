package remotesync

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kipmarine/kipdash/internal/dashboard"
	"github.com/kipmarine/kipdash/internal/signalk"
	"github.com/kipmarine/kipdash/internal/testutil"
)

type published struct {
	Path   string
	Value  any
	Origin string
}

// fakeTransport records publishes and hands out one feed per subscribed
// path.
type fakeTransport struct {
	mu        sync.Mutex
	published []published
	feeds     map[string]chan signalk.PathUpdate
	active    map[string]context.Context
	filters   map[string]string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		feeds:   make(map[string]chan signalk.PathUpdate),
		active:  make(map[string]context.Context),
		filters: make(map[string]string),
	}
}

func (f *fakeTransport) Publish(path string, value any, origin string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{Path: path, Value: value, Origin: origin})
}

func (f *fakeTransport) Subscribe(ctx context.Context, path, sourceFilter string) <-chan signalk.PathUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan signalk.PathUpdate, 16)
	f.feeds[path] = ch
	f.active[path] = ctx
	f.filters[path] = sourceFilter
	return ch
}

func (f *fakeTransport) push(path string, raw string) {
	f.mu.Lock()
	ch := f.feeds[path]
	f.mu.Unlock()
	ch <- signalk.PathUpdate{Path: path, Value: json.RawMessage(raw), Source: "kip-commander.XX", Timestamp: time.Now()}
}

func (f *fakeTransport) subscribed(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	ctx, ok := f.active[path]
	return ok && ctx.Err() == nil
}

func (f *fakeTransport) values(path string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []any
	for _, p := range f.published {
		if p.Path == path {
			out = append(out, p.Value)
		}
	}
	return out
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = nil
}

type navRecorder struct {
	mu      sync.Mutex
	targets []int
}

func (n *navRecorder) Navigate(i int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, i)
}

func (n *navRecorder) calls() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int(nil), n.targets...)
}

const (
	base       = "plugins.kip.skipper"
	activePath = base + ".activeDashboard"
	maxPath    = base + ".maxDashboard"
	metaPath   = base + ".dashboards"
)

type fixture struct {
	store     *dashboard.Store
	transport *fakeTransport
	nav       *navRecorder
	bridge    *Bridge
	logs      *testutil.LogCapture
}

func setup(t *testing.T, n int) *fixture {
	t.Helper()
	logger, logs := testutil.NewCaptureLogger(t)

	ds := make([]dashboard.Dashboard, n)
	for i := range ds {
		ds[i] = dashboard.Dashboard{ID: string(rune('A' + i)), Name: "dash " + string(rune('A'+i))}
	}
	nav := &navRecorder{}
	store := dashboard.New(ds, dashboard.WithNavigator(nav), dashboard.WithLogger(logger))
	tr := newFakeTransport()
	b := New(store, tr, Config{
		LoginName:  "skipper",
		InstanceID: "kip-1234",
		Logger:     logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		b.Stop()
	})
	b.Start(ctx)
	require.True(t, tr.subscribed(activePath))

	return &fixture{store: store, transport: tr, nav: nav, bridge: b, logs: logs}
}

func TestBasePath(t *testing.T) {
	assert.Equal(t, "plugins.kip.skipper", BasePath("skipper"))
}

func TestBridge_StartPublishesCountAndMetadata(t *testing.T) {
	f := setup(t, 3)

	assert.Equal(t, []any{2}, f.transport.values(maxPath))
	require.Len(t, f.transport.values(metaPath), 1)
	infos := f.transport.values(metaPath)[0].([]dashboard.Info)
	assert.Equal(t, dashboard.Info{ID: "A", Name: "dash A"}, infos[0])
	assert.Empty(t, f.transport.values(activePath))

	f.transport.mu.Lock()
	for _, p := range f.transport.published {
		assert.Equal(t, "kip-1234", p.Origin)
	}
	f.transport.mu.Unlock()
}

func TestBridge_MirrorsLocalChanges(t *testing.T) {
	tests := []struct {
		name       string
		op         func(s *dashboard.Store)
		wantMax    []any
		wantMeta   int
		wantActive []any
	}{
		{"add", func(s *dashboard.Store) { s.Add("new", nil, "") }, []any{3}, 1, nil},
		{"update", func(s *dashboard.Store) { _, _ = s.Update(0, "renamed", "") }, nil, 1, nil},
		{"delete", func(s *dashboard.Store) { _ = s.Delete(0) }, []any{1}, 1, []any{0}},
		{"duplicate", func(s *dashboard.Store) { _, _ = s.Duplicate(1, "copy", "") }, []any{3}, 1, []any{0}},
		{"next", func(s *dashboard.Store) { s.NextDashboard() }, []any{2}, 0, []any{1}},
		{"previous", func(s *dashboard.Store) { s.PreviousDashboard() }, []any{2}, 0, []any{2}},
		{"set active", func(s *dashboard.Store) { _ = s.SetActiveDashboard(2) }, nil, 0, []any{2}},
		{"update configuration", func(s *dashboard.Store) {
			_ = s.UpdateConfiguration(0, []dashboard.Widget{{"id": "w"}})
		}, nil, 0, nil},
		{"navigate", func(s *dashboard.Store) { s.NavigateToNextDashboard() }, nil, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, 3)
			f.transport.reset()

			tt.op(f.store)

			assert.Equal(t, tt.wantMax, f.transport.values(maxPath))
			assert.Len(t, f.transport.values(metaPath), tt.wantMeta)
			assert.Equal(t, tt.wantActive, f.transport.values(activePath))
		})
	}
}

func TestBridge_InboundEqualToActiveIsIgnored(t *testing.T) {
	f := setup(t, 3)
	require.NoError(t, f.store.SetActiveDashboard(1))
	f.transport.reset()

	f.transport.push(activePath, `"1"`)
	// A later valid value proves the first one has been processed.
	f.transport.push(activePath, `2`)

	require.Eventually(t, func() bool { return f.store.ActiveIndex() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{2}, f.nav.calls(), "no navigation for the echoed value")
	assert.Equal(t, []any{2}, f.transport.values(activePath), "no republish for the echoed value")
}

func TestBridge_InboundOutOfRangeIsDiscarded(t *testing.T) {
	f := setup(t, 3)
	f.transport.reset()

	f.transport.push(activePath, `"7"`)
	f.transport.push(activePath, `-1`)
	f.transport.push(activePath, `1`)

	require.Eventually(t, func() bool { return f.store.ActiveIndex() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1}, f.nav.calls())
	assert.Equal(t, []any{1}, f.transport.values(activePath))
	assert.Equal(t, 3, f.store.Len())
	assert.Equal(t, 2, f.logs.Count(slog.LevelError))
}

func TestBridge_InboundInvalidValuesAreIgnored(t *testing.T) {
	f := setup(t, 3)

	for _, raw := range []string{`null`, ``, `"abc"`, `1.5`, `true`, `{"x":1}`} {
		f.transport.push(activePath, raw)
	}
	f.transport.push(activePath, `"2"`)

	require.Eventually(t, func() bool { return f.store.ActiveIndex() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{2}, f.nav.calls())
}

func TestBridge_Unsubscribe(t *testing.T) {
	f := setup(t, 3)

	f.bridge.Unsubscribe()
	assert.False(t, f.transport.subscribed(activePath))

	// Outbound mirroring continues.
	f.transport.reset()
	f.store.NextDashboard()
	assert.Equal(t, []any{1}, f.transport.values(activePath))

	// Second call is a no-op.
	f.bridge.Unsubscribe()
}

func TestBridge_Retarget(t *testing.T) {
	f := setup(t, 3)
	require.NoError(t, f.store.SetActiveDashboard(2))
	f.transport.reset()

	f.bridge.Retarget("crew")

	assert.Equal(t, "plugins.kip.crew", f.bridge.BasePath())
	assert.False(t, f.transport.subscribed(activePath))
	assert.True(t, f.transport.subscribed("plugins.kip.crew.activeDashboard"))
	assert.Equal(t, []any{2}, f.transport.values("plugins.kip.crew.maxDashboard"))
	assert.Len(t, f.transport.values("plugins.kip.crew.dashboards"), 1)
	assert.Equal(t, []any{2}, f.transport.values("plugins.kip.crew.activeDashboard"))

	f.transport.push("plugins.kip.crew.activeDashboard", `0`)
	require.Eventually(t, func() bool { return f.store.ActiveIndex() == 0 }, time.Second, 5*time.Millisecond)

	f.transport.reset()
	f.bridge.Retarget("crew")
	assert.Empty(t, f.transport.values("plugins.kip.crew.maxDashboard"), "same login is a no-op")
}

func TestBridge_StopOnContextDone(t *testing.T) {
	logger := testutil.NewTestLogger(t)
	store := dashboard.New(nil, dashboard.WithLogger(logger))
	tr := newFakeTransport()
	b := New(store, tr, Config{LoginName: "skipper", Logger: logger})

	ctx, cancel := context.WithCancel(context.Background())
	b.Start(ctx)
	cancel()

	require.Eventually(t, func() bool { return !tr.subscribed(activePath) }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		b.mu.RLock()
		defer b.mu.RUnlock()
		return b.stopChanges == nil
	}, time.Second, 5*time.Millisecond)

	tr.reset()
	store.NextDashboard()
	assert.Empty(t, tr.values(activePath))
}

func TestBridge_SampledInbound(t *testing.T) {
	logger := testutil.NewTestLogger(t)
	ds := []dashboard.Dashboard{{ID: "A"}, {ID: "B"}, {ID: "C"}, {ID: "D"}}
	nav := &navRecorder{}
	store := dashboard.New(ds, dashboard.WithNavigator(nav), dashboard.WithLogger(logger))
	tr := newFakeTransport()
	b := New(store, tr, Config{LoginName: "skipper", SampleInterval: 50 * time.Millisecond, Logger: logger})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)

	tr.push(activePath, `1`)
	tr.push(activePath, `2`)
	tr.push(activePath, `3`)

	require.Eventually(t, func() bool { return store.ActiveIndex() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{3}, nav.calls(), "burst coalesced to the latest value")
}

package commander

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kipmarine/kipdash/internal/signalk"
	"github.com/kipmarine/kipdash/internal/testutil"
)

type fakeSubscriber struct {
	mu    sync.Mutex
	chans map[string]chan signalk.PathUpdate
}

func (f *fakeSubscriber) Subscribe(_ context.Context, path, _ string) <-chan signalk.PathUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan signalk.PathUpdate, 4)
	f.chans[path] = ch
	return ch
}

func (f *fakeSubscriber) push(t *testing.T, path, raw string) {
	t.Helper()
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.chans[path] != nil
	}, time.Second, 5*time.Millisecond)
	f.mu.Lock()
	ch := f.chans[path]
	f.mu.Unlock()
	ch <- signalk.PathUpdate{Path: path, Value: json.RawMessage(raw)}
}

func TestFollow(t *testing.T) {
	sub := &fakeSubscriber{chans: map[string]chan signalk.PathUpdate{}}
	msgs := make(chan tea.Msg, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		Follow(ctx, sub, "plugins.kip.skipper", testutil.NewTestLogger(t), func(m tea.Msg) { msgs <- m })
	}()

	sub.push(t, "plugins.kip.skipper.dashboards", `[{"id":"A","name":"Nav"},{"id":"B"}]`)
	assert.Equal(t, DashboardsMsg{{ID: "A", Name: "Nav"}, {ID: "B"}}, <-msgs)

	sub.push(t, "plugins.kip.skipper.activeDashboard", `"bogus"`)
	sub.push(t, "plugins.kip.skipper.activeDashboard", `null`)
	sub.push(t, "plugins.kip.skipper.activeDashboard", `1`)
	assert.Equal(t, ActiveMsg(1), <-msgs, "undecodable and null values are skipped")

	// Commanders may write the index as a string.
	sub.push(t, "plugins.kip.skipper.activeDashboard", `"2"`)
	assert.Equal(t, ActiveMsg(2), <-msgs)
	sub.push(t, "plugins.kip.skipper.activeDashboard", `0.0`)
	assert.Equal(t, ActiveMsg(0), <-msgs)

	cancel()
	<-done
}

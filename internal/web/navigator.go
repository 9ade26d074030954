package web

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/kipmarine/kipdash/internal/signal"
)

const routePrefix = "/dashboard/"

// DashboardRoute returns the client route that shows dashboard index.
func DashboardRoute(index int) string {
	return fmt.Sprintf("%s%d", routePrefix, index)
}

// RouteIndex parses a dashboard route back to its index.
func RouteIndex(route string) (int, bool) {
	rest, ok := strings.CutPrefix(route, routePrefix)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(rest)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// Navigator is the navigation sink of the dashboard store. Navigate moves
// the current route, which SSE clients follow. Once a route is taken, Run
// reports the shown dashboard to the OnShown callback, the way a router
// reports a completed navigation.
type Navigator struct {
	route *signal.Signal[string]
	shown chan int

	mu      sync.RWMutex
	onShown func(index int)
}

// NewNavigator creates a navigator with no current route.
func NewNavigator() *Navigator {
	return &Navigator{
		route: signal.New("", signal.WithEqual(func(a, b string) bool { return a == b })),
		shown: make(chan int, 16),
	}
}

// Navigate implements dashboard.Navigator. It never blocks.
func (n *Navigator) Navigate(index int) {
	n.route.Set(DashboardRoute(index))
	for {
		select {
		case n.shown <- index:
			return
		default:
		}
		select {
		case <-n.shown:
		default:
		}
	}
}

// OnShown sets the callback receiving completed navigations.
func (n *Navigator) OnShown(fn func(index int)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onShown = fn
}

// Route exposes the current route.
func (n *Navigator) Route() signal.Readonly[string] {
	return n.route
}

// Run delivers completed navigations in order until ctx is done.
func (n *Navigator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case i := <-n.shown:
			n.mu.RLock()
			fn := n.onShown
			n.mu.RUnlock()
			if fn != nil {
				fn(i)
			}
		}
	}
}

package dashboard

import (
	"log/slog"
	"sync"

	"github.com/kipmarine/kipdash/internal/signal"
)

// Fact names one of the remote-mirrored facts derived from the store.
type Fact uint8

// Facts that a Change asks the sync bridge to republish.
const (
	FactCount Fact = 1 << iota
	FactMetadata
	FactActive

	FactAll = FactCount | FactMetadata | FactActive
)

// Has reports whether f includes x.
func (f Fact) Has(x Fact) bool {
	return f&x != 0
}

// Operation names carried in Change.Op.
const (
	OpAdd                 = "add"
	OpUpdate              = "update"
	OpDelete              = "delete"
	OpDuplicate           = "duplicate"
	OpUpdateConfiguration = "update_configuration"
	OpPrevious            = "previous"
	OpNext                = "next"
	OpSetActive           = "set_active"
	OpReplace             = "replace"
)

// State is a consistent snapshot of the collection and the cursor.
type State struct {
	Dashboards []Dashboard
	Active     int
}

// Change is emitted after every store operation that mutated state or that
// must be mirrored remotely.
type Change struct {
	Op    string
	Facts Fact
	State State
}

// Option configures a Store.
type Option func(*Store)

// WithNavigator sets the navigation sink used by the Navigate* operations.
func WithNavigator(n Navigator) Option {
	return func(s *Store) {
		s.navigator = n
	}
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Store owns the dashboard collection and the active index.
//
// Writers are serialized by mu and observers run on the writer's goroutine
// before the operation returns, so observers must not call back into the
// store synchronously. Reads go through the signals and never take mu.
type Store struct {
	mu        sync.Mutex
	logger    *slog.Logger
	navigator Navigator

	state      *signal.Signal[State]
	dashboards *signal.Signal[[]Dashboard]
	active     *signal.Signal[int]
	changes    *signal.Signal[Change]
}

// New creates a Store from the persisted collection. An empty collection is
// replaced by a single blank dashboard. Missing or duplicated ids are
// regenerated so ids are unique from the start.
func New(initial []Dashboard, opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.navigator == nil {
		s.navigator = NavigatorFunc(func(int) {})
	}

	var ds []Dashboard
	if len(initial) == 0 {
		s.logger.Warn("no dashboards found in settings, creating blank dashboard")
		ds = []Dashboard{blankDashboard()}
	} else {
		ds = s.uniqueIDs(cloneDashboards(initial))
	}

	st := State{Dashboards: ds, Active: 0}
	s.state = signal.New(st)
	s.dashboards = signal.New(ds, signal.WithEqual(dashboardsEqual))
	s.active = signal.New(0, signal.WithEqual(func(a, b int) bool { return a == b }))
	s.changes = signal.New(Change{State: st}, signal.WithoutReplay[Change]())
	return s
}

// uniqueIDs assigns fresh ids to dashboards whose id is empty or repeated.
func (s *Store) uniqueIDs(ds []Dashboard) []Dashboard {
	seen := make(map[string]bool, len(ds))
	for i := range ds {
		if ds[i].ID == "" || seen[ds[i].ID] {
			old := ds[i].ID
			ds[i].ID = generateID()
			s.logger.Warn("regenerated dashboard id", "index", i, "old_id", old, "new_id", ds[i].ID)
		}
		seen[ds[i].ID] = true
	}
	return ds
}

// --- Read-only views ---

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	st := s.state.Get()
	return State{Dashboards: cloneDashboards(st.Dashboards), Active: st.Active}
}

// Dashboards returns a deep copy of the collection.
func (s *Store) Dashboards() []Dashboard {
	return cloneDashboards(s.state.Get().Dashboards)
}

// ActiveIndex returns the active dashboard index.
func (s *Store) ActiveIndex() int {
	return s.state.Get().Active
}

// Len returns the number of dashboards.
func (s *Store) Len() int {
	return len(s.state.Get().Dashboards)
}

// Infos returns the metadata projections in collection order.
func (s *Store) Infos() []Info {
	return Infos(s.state.Get().Dashboards)
}

// Infos projects dashboards to their metadata.
func Infos(ds []Dashboard) []Info {
	out := make([]Info, len(ds))
	for i, d := range ds {
		out[i] = d.Info()
	}
	return out
}

// DashboardsView exposes the collection signal. It only broadcasts when the
// collection actually changed. Values delivered to observers are shared and
// must be treated as read-only.
func (s *Store) DashboardsView() signal.Readonly[[]Dashboard] {
	return s.dashboards
}

// ActiveView exposes the active-index signal.
func (s *Store) ActiveView() signal.Readonly[int] {
	return s.active
}

// Changes exposes the operation event stream.
func (s *Store) Changes() signal.Readonly[Change] {
	return s.changes
}

// --- Mutations ---

// mutate runs fn against the current state under the writer lock. When fn
// reports a change the new state is published to every view. A Change event
// is emitted when the state changed or facts is non-empty.
func (s *Store) mutate(op string, facts Fact, fn func(cur State) (State, bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Get()
	next, changed, err := fn(cur)
	if err != nil {
		return err
	}
	if !changed {
		next = cur
	} else {
		s.state.Set(next)
		s.dashboards.Set(next.Dashboards)
		s.active.Set(next.Active)
	}
	if changed || facts != 0 {
		s.changes.Set(Change{Op: op, Facts: facts, State: next})
	}
	return nil
}

// Add appends a new dashboard with a fresh id and returns a copy of it.
func (s *Store) Add(name string, configuration []Widget, icon string) Dashboard {
	d := Dashboard{
		ID:            generateID(),
		Name:          name,
		Icon:          icon,
		Configuration: cloneConfiguration(configuration),
	}
	_ = s.mutate(OpAdd, FactCount|FactMetadata, func(cur State) (State, bool, error) {
		return State{Dashboards: appendDashboard(cur.Dashboards, d), Active: cur.Active}, true, nil
	})
	s.logger.Debug("dashboard added", "id", d.ID, "name", name)
	return d.Clone()
}

// Update replaces the name and icon of the dashboard at index. An
// out-of-range index leaves the collection unchanged and is not logged;
// callers validate. The returned Info is read under the same lock as the
// write, so it describes the dashboard that was changed.
func (s *Store) Update(index int, name, icon string) (Info, error) {
	var info Info
	err := s.mutate(OpUpdate, FactMetadata, func(cur State) (State, bool, error) {
		if index < 0 || index >= len(cur.Dashboards) {
			return cur, false, &IndexError{Op: OpUpdate, Index: index, Len: len(cur.Dashboards)}
		}
		ds := copyDashboards(cur.Dashboards)
		ds[index].Name = name
		ds[index].Icon = icon
		info = ds[index].Info()
		return State{Dashboards: ds, Active: cur.Active}, true, nil
	})
	return info, err
}

// Delete removes the dashboard at index. Deleting the last dashboard
// synthesizes an empty one and resets the cursor; otherwise the cursor is
// clamped to the new last index.
func (s *Store) Delete(index int) error {
	err := s.mutate(OpDelete, FactAll, func(cur State) (State, bool, error) {
		if index < 0 || index >= len(cur.Dashboards) {
			return cur, false, &IndexError{Op: OpDelete, Index: index, Len: len(cur.Dashboards)}
		}
		ds := make([]Dashboard, 0, len(cur.Dashboards))
		ds = append(ds, cur.Dashboards[:index]...)
		ds = append(ds, cur.Dashboards[index+1:]...)

		active := cur.Active
		if len(ds) == 0 {
			ds = append(ds, emptyDashboard())
			active = 0
		} else if active > len(ds)-1 {
			active = len(ds) - 1
		}
		return State{Dashboards: ds, Active: active}, true, nil
	})
	if err != nil {
		s.logger.Error("delete dashboard failed", "index", index, "error", err)
	}
	return err
}

// Duplicate appends a deep copy of the dashboard at index with a new id,
// name and icon. Every widget in the copy gets a new id mirrored into its
// properties uuid. Malformed widgets keep their id and are logged; the copy
// is still appended.
func (s *Store) Duplicate(index int, newName, newIcon string) (Dashboard, error) {
	var dup Dashboard
	err := s.mutate(OpDuplicate, FactAll, func(cur State) (State, bool, error) {
		if index < 0 || index >= len(cur.Dashboards) {
			return cur, false, &IndexError{Op: OpDuplicate, Index: index, Len: len(cur.Dashboards)}
		}

		dup = cur.Dashboards[index].Clone()
		dup.ID = generateID()
		dup.Name = newName
		dup.Icon = newIcon
		if dup.Icon == "" {
			dup.Icon = DefaultIcon
		}

		if dup.Configuration == nil {
			s.logger.Error("dashboard configuration is not a widget list",
				"index", index, "error", ErrMalformedConfiguration)
			dup.Configuration = []Widget{}
		} else if malformed := remapWidgetIDs(dup.Configuration); len(malformed) > 0 {
			for _, pos := range malformed {
				s.logger.Error("widget configuration is missing required properties",
					"index", index, "widget", pos, "error", ErrMalformedConfiguration)
			}
		}

		return State{Dashboards: appendDashboard(cur.Dashboards, dup), Active: cur.Active}, true, nil
	})
	if err != nil {
		s.logger.Error("duplicate dashboard failed", "index", index, "error", err)
		return Dashboard{}, err
	}
	return dup.Clone(), nil
}

// UpdateConfiguration replaces the widget list at index when it differs from
// the current one. Equal configurations produce no notification.
func (s *Store) UpdateConfiguration(index int, configuration []Widget) error {
	return s.mutate(OpUpdateConfiguration, 0, func(cur State) (State, bool, error) {
		if index < 0 || index >= len(cur.Dashboards) {
			return cur, false, &IndexError{Op: OpUpdateConfiguration, Index: index, Len: len(cur.Dashboards)}
		}
		if ConfigurationEqual(cur.Dashboards[index].Configuration, configuration) {
			return cur, false, nil
		}
		ds := copyDashboards(cur.Dashboards)
		ds[index].Configuration = cloneConfiguration(configuration)
		return State{Dashboards: ds, Active: cur.Active}, true, nil
	})
}

// Replace swaps the whole collection, as done by an import. The same
// empty-collection and clamp rules as Delete apply.
func (s *Store) Replace(dashboards []Dashboard) {
	ds := s.uniqueIDs(cloneDashboards(dashboards))
	_ = s.mutate(OpReplace, FactAll, func(cur State) (State, bool, error) {
		next := ds
		active := cur.Active
		if len(next) == 0 {
			next = []Dashboard{blankDashboard()}
			active = 0
		} else if active > len(next)-1 {
			active = len(next) - 1
		}
		return State{Dashboards: next, Active: active}, true, nil
	})
}

// appendDashboard returns a new slice; the signal values are never mutated
// in place.
func appendDashboard(ds []Dashboard, d Dashboard) []Dashboard {
	out := make([]Dashboard, len(ds), len(ds)+1)
	copy(out, ds)
	return append(out, d)
}

// copyDashboards copies the slice header array. Dashboards not being
// modified keep sharing their configuration.
func copyDashboards(ds []Dashboard) []Dashboard {
	out := make([]Dashboard, len(ds))
	copy(out, ds)
	return out
}

// Package dashboard owns the set of user dashboards and the active-dashboard
// cursor.
//
// The Store is the single writer of the collection. Every mutation settles
// atomically, then emits the new state to observers: the settings persister
// saves it, the remote sync bridge mirrors the derived facts to Signal K, and
// UI surfaces re-render.
package dashboard

import (
	"github.com/google/uuid"
)

// DefaultIcon is assigned to dashboards created without an icon by duplicate
// and by the blank-dashboard templates.
const DefaultIcon = "dashboard-dashboard"

// DefaultName is the name of synthesized blank dashboards.
const DefaultName = "Dashboard 1"

// Dashboard is a named, ordered arrangement of widgets.
type Dashboard struct {
	ID            string   `json:"id" yaml:"id"`
	Name          string   `json:"name,omitempty" yaml:"name,omitempty"`
	Icon          string   `json:"icon,omitempty" yaml:"icon,omitempty"`
	Configuration []Widget `json:"configuration" yaml:"configuration"`
}

// Info is the metadata projection of a Dashboard published to remotes.
type Info struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Icon string `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// Info returns the metadata projection of d.
func (d Dashboard) Info() Info {
	return Info{ID: d.ID, Name: d.Name, Icon: d.Icon}
}

// Widget is an opaque grid-layout entry. The store only relies on the "id"
// key and on the mirrored uuid under input.widgetProperties.
type Widget map[string]any

// ID returns the widget id, or "" when absent.
func (w Widget) ID() string {
	id, _ := w["id"].(string)
	return id
}

// Properties returns the nested input.widgetProperties object.
func (w Widget) Properties() (map[string]any, bool) {
	input, ok := w["input"].(map[string]any)
	if !ok {
		return nil, false
	}
	props, ok := input["widgetProperties"].(map[string]any)
	return props, ok
}

// Operation is the kind of a WidgetOperation.
type Operation string

// Widget operations carried by the WidgetActionBus.
const (
	OperationDelete    Operation = "delete"
	OperationDuplicate Operation = "duplicate"
)

// WidgetOperation is a request addressed to whatever owns the widget
// instances. It carries intent only.
type WidgetOperation struct {
	WidgetID  string    `json:"widgetId"`
	Operation Operation `json:"operation"`
}

// Navigator receives navigation targets. Navigation completes asynchronously
// through routing, so Navigate must not block on it.
type Navigator interface {
	Navigate(index int)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(index int)

// Navigate calls f(index).
func (f NavigatorFunc) Navigate(index int) { f(index) }

// generateID creates a new unique dashboard or widget id.
var generateID = func() string {
	return uuid.New().String()
}

// blankDashboard returns the first-run dashboard: one tutorial widget
// covering the whole grid.
func blankDashboard() Dashboard {
	widgetID := generateID()
	return Dashboard{
		ID:   generateID(),
		Name: DefaultName,
		Icon: DefaultIcon,
		Configuration: []Widget{
			{
				"w":        12,
				"h":        12,
				"x":        0,
				"y":        0,
				"id":       widgetID,
				"selector": "widget-tutorial",
				"input": map[string]any{
					"widgetProperties": map[string]any{
						"type": "widget-tutorial",
						"uuid": widgetID,
					},
				},
			},
		},
	}
}

// emptyDashboard is synthesized when the last dashboard is deleted.
func emptyDashboard() Dashboard {
	return Dashboard{
		ID:            generateID(),
		Name:          DefaultName,
		Icon:          DefaultIcon,
		Configuration: []Widget{},
	}
}

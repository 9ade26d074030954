package dashboard

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// Clone returns a deep copy of d. The copy shares no maps or slices with d,
// so either side can be mutated independently.
func (d Dashboard) Clone() Dashboard {
	out := d
	out.Configuration = cloneConfiguration(d.Configuration)
	return out
}

// Clone returns a deep copy of w.
func (w Widget) Clone() Widget {
	if w == nil {
		return nil
	}
	return Widget(cloneMap(w))
}

func cloneConfiguration(cfg []Widget) []Widget {
	if cfg == nil {
		return nil
	}
	out := make([]Widget, len(cfg))
	for i, w := range cfg {
		out[i] = w.Clone()
	}
	return out
}

func cloneDashboards(ds []Dashboard) []Dashboard {
	out := make([]Dashboard, len(ds))
	for i, d := range ds {
		out[i] = d.Clone()
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue copies the container shapes produced by encoding/json. Scalars
// are immutable and returned as is.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Widget:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

// ConfigurationEqual reports whether two widget lists are deeply equal in
// their JSON form. Layouts built in Go carry int coordinates while decoded
// ones carry float64; both encode the same and compare equal.
func ConfigurationEqual(a, b []Widget) bool {
	return jsonEqual(a, b)
}

func dashboardsEqual(a, b []Dashboard) bool {
	return jsonEqual(a, b)
}

// jsonEqual compares the canonical encodings of a and b. encoding/json sorts
// map keys, so the encoding is stable.
func jsonEqual(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return bytes.Equal(ja, jb)
}

// remapWidgetIDs gives every widget in cfg a fresh id and mirrors it into
// input.widgetProperties.uuid. Widgets without the properties object are
// left untouched and returned as malformed positions.
func remapWidgetIDs(cfg []Widget) (malformed []int) {
	for i, w := range cfg {
		if w == nil {
			malformed = append(malformed, i)
			continue
		}
		props, ok := w.Properties()
		if !ok {
			malformed = append(malformed, i)
			continue
		}
		id := generateID()
		w["id"] = id
		props["uuid"] = id
	}
	return malformed
}

package signalk

import (
	"encoding/json"
	"time"
)

// SelfContext is the context used for every subscription and PUT.
const SelfContext = "vessels.self"

// PathUpdate is one value received for a subscribed path.
type PathUpdate struct {
	Path      string
	Value     json.RawMessage
	Source    string
	Timestamp time.Time
}

// Hello is the greeting a Signal K server sends when a stream opens.
type Hello struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	Self      string   `json:"self"`
	Roles     []string `json:"roles"`
	Timestamp string   `json:"timestamp"`
}

type subscription struct {
	Path   string `json:"path"`
	Period int    `json:"period,omitempty"`
	Policy string `json:"policy,omitempty"`
}

type subscribeMessage struct {
	Context     string         `json:"context"`
	Subscribe   []subscription `json:"subscribe,omitempty"`
	Unsubscribe []subscription `json:"unsubscribe,omitempty"`
}

type putValue struct {
	Path   string `json:"path"`
	Value  any    `json:"value"`
	Source string `json:"source,omitempty"`
}

type putRequest struct {
	Context   string   `json:"context"`
	RequestID string   `json:"requestId"`
	Put       putValue `json:"put"`
}

type sourceRef struct {
	Label string `json:"label"`
	Type  string `json:"type"`
}

type deltaValue struct {
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value"`
}

type deltaUpdate struct {
	Source    *sourceRef   `json:"source,omitempty"`
	SourceRef string       `json:"$source,omitempty"`
	Timestamp string       `json:"timestamp,omitempty"`
	Values    []deltaValue `json:"values"`
}

// source returns the update's source identifier: $source when present,
// otherwise the source label.
func (u deltaUpdate) source() string {
	if u.SourceRef != "" {
		return u.SourceRef
	}
	if u.Source != nil {
		return u.Source.Label
	}
	return ""
}

func (u deltaUpdate) timestamp() time.Time {
	if u.Timestamp == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, u.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// inbound is the union of the server messages the client reads: hello,
// delta and request responses.
type inbound struct {
	Hello

	Context string        `json:"context"`
	Updates []deltaUpdate `json:"updates"`

	RequestID  string `json:"requestId"`
	State      string `json:"state"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

func (m inbound) isResponse() bool {
	return m.RequestID != "" && m.State != ""
}

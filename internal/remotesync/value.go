package remotesync

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidRemoteValue marks inbound values that cannot be applied.
var ErrInvalidRemoteValue = errors.New("invalid remote value")

// ErrNoValue is returned for null or absent values, which are ignored
// without being reported.
var ErrNoValue = errors.New("no value")

// ParseIndex reads a dashboard index from a JSON number or a numeric
// string, the forms a Kip-Commander writes to activeDashboard. Fractional
// values are rejected.
func ParseIndex(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, ErrNoValue
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidRemoteValue, raw)
	}

	var text string
	switch t := v.(type) {
	case json.Number:
		text = t.String()
	case string:
		text = strings.TrimSpace(t)
	default:
		return 0, fmt.Errorf("%w: %s is not a number", ErrInvalidRemoteValue, raw)
	}

	if i, err := strconv.Atoi(text); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s is not an integer", ErrInvalidRemoteValue, raw)
	}
	return int(f), nil
}

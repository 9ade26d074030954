package dashboard

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is matched by every IndexError.
	ErrOutOfRange = errors.New("dashboard index out of range")

	// ErrMalformedConfiguration reports a configuration that is not a widget
	// list or a widget without its input.widgetProperties object.
	ErrMalformedConfiguration = errors.New("malformed dashboard configuration")
)

// IndexError is returned when an index argument falls outside the collection.
type IndexError struct {
	Op    string
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s: dashboard index %d out of range [0, %d)", e.Op, e.Index, e.Len)
}

// Unwrap lets errors.Is match ErrOutOfRange.
func (e *IndexError) Unwrap() error {
	return ErrOutOfRange
}

package dashboard

import (
	"github.com/kipmarine/kipdash/internal/signal"
)

// WidgetActionBus carries the most recent widget operation to layout
// consumers. Only the latest request is observable; the bus never touches
// dashboard configurations itself.
type WidgetActionBus struct {
	last *signal.Signal[*WidgetOperation]
}

// NewWidgetActionBus creates an empty bus.
func NewWidgetActionBus() *WidgetActionBus {
	return &WidgetActionBus{last: signal.New[*WidgetOperation](nil)}
}

// RequestDelete publishes a delete request for widgetID.
func (b *WidgetActionBus) RequestDelete(widgetID string) {
	b.last.Set(&WidgetOperation{WidgetID: widgetID, Operation: OperationDelete})
}

// RequestDuplicate publishes a duplicate request for widgetID.
func (b *WidgetActionBus) RequestDuplicate(widgetID string) {
	b.last.Set(&WidgetOperation{WidgetID: widgetID, Operation: OperationDuplicate})
}

// Last returns a copy of the latest request, or nil before the first one.
func (b *WidgetActionBus) Last() *WidgetOperation {
	op := b.last.Get()
	if op == nil {
		return nil
	}
	cp := *op
	return &cp
}

// View exposes the bus signal. Subscribers first receive the current value,
// which is nil until a request is made.
func (b *WidgetActionBus) View() signal.Readonly[*WidgetOperation] {
	return b.last
}

// StaticFlag is the edit lock of the current dashboard layout. It starts
// locked.
type StaticFlag struct {
	static *signal.Signal[bool]
}

// NewStaticFlag creates a locked flag.
func NewStaticFlag() *StaticFlag {
	return &StaticFlag{static: signal.New(true)}
}

// Toggle flips the flag.
func (f *StaticFlag) Toggle() {
	f.static.Update(func(cur bool) bool { return !cur })
}

// Set sets the flag.
func (f *StaticFlag) Set(isStatic bool) {
	f.static.Set(isStatic)
}

// IsStatic reports whether the layout is locked.
func (f *StaticFlag) IsStatic() bool {
	return f.static.Get()
}

// View exposes the flag signal.
func (f *StaticFlag) View() signal.Readonly[bool] {
	return f.static
}

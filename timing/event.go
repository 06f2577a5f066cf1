package timing

import "fmt"

// TimeEvent records one firing of a timer. It is a plain value; copies are
// independent.
type TimeEvent struct {
	// Name is the name of the timer that fired.
	Name string

	// EventID is unique per firing.
	EventID string

	// TsEvent is the instant, in nanoseconds, the firing logically happens.
	TsEvent uint64

	// TsInit is the instant, in nanoseconds, the event was materialized. It
	// is later than TsEvent when several firings are produced by one
	// advance.
	TsInit uint64
}

// String implements fmt.Stringer.
func (e TimeEvent) String() string {
	return fmt.Sprintf("TimeEvent(name=%s, event_id=%s, ts_event=%d, ts_init=%d)",
		e.Name, e.EventID, e.TsEvent, e.TsInit)
}

// A Callback is the listener attached to a timer. The clocks only carry
// callbacks around; whoever owns the dispatch loop invokes them.
type Callback interface {
	Handle(evt TimeEvent) error
}

// CallbackFunc adapts a function to the Callback interface.
type CallbackFunc func(evt TimeEvent) error

// Handle calls f(evt).
func (f CallbackFunc) Handle(evt TimeEvent) error {
	return f(evt)
}

// TimeEventHandler pairs a fired event with the callback that should receive
// it.
type TimeEventHandler struct {
	Event    TimeEvent
	Callback Callback
}

// Dispatch delivers the event to its callback.
func (h TimeEventHandler) Dispatch() error {
	if h.Callback == nil {
		return fmt.Errorf("timing: no callback for event %s: %w",
			h.Event.Name, ErrNoCallback)
	}
	return h.Callback.Handle(h.Event)
}

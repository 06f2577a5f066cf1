package datarecording

import (
	"sync"

	"github.com/quantsim/chrono/hooking"
	"github.com/quantsim/chrono/lifecycle"
	"github.com/quantsim/chrono/timing"
)

// Table names written by EventRecorder.
const (
	TimeEventTable  = "time_events"
	TransitionTable = "transitions"
)

type timeEventEntry struct {
	Name    string
	EventID string
	TsEvent uint64
	TsInit  uint64
}

type transitionEntry struct {
	TimeNs    uint64
	Component string
	FromState string
	Cause     string
	ToState   string
}

// EventRecorder is a hook that stores committed time events and lifecycle
// transitions. Attach it to simulated clocks and lifecycle machines. Peeked
// events are not stored.
type EventRecorder struct {
	recorder DataRecorder

	mu  sync.Mutex
	err error
}

// NewEventRecorder creates the time_events and transitions tables on
// recorder.
func NewEventRecorder(recorder DataRecorder) (*EventRecorder, error) {
	if err := recorder.CreateTable(TimeEventTable, timeEventEntry{}); err != nil {
		return nil, err
	}

	if err := recorder.CreateTable(TransitionTable, transitionEntry{}); err != nil {
		return nil, err
	}

	return &EventRecorder{recorder: recorder}, nil
}

// Func records the item carried by ctx.
func (r *EventRecorder) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case timing.HookPosTimeAdvanced:
		r.recordEvents(ctx)
	case lifecycle.HookPosStateChanged:
		r.recordTransition(ctx)
	}
}

func (r *EventRecorder) recordEvents(ctx hooking.HookCtx) {
	detail, ok := ctx.Detail.(timing.AdvanceDetail)
	if !ok || !detail.Committed {
		return
	}

	handlers, ok := ctx.Item.([]timing.TimeEventHandler)
	if !ok {
		return
	}

	for _, h := range handlers {
		r.insert(TimeEventTable, timeEventEntry{
			Name:    h.Event.Name,
			EventID: h.Event.EventID,
			TsEvent: h.Event.TsEvent,
			TsInit:  h.Event.TsInit,
		})
	}
}

func (r *EventRecorder) recordTransition(ctx hooking.HookCtx) {
	tr, ok := ctx.Item.(lifecycle.Transition)
	if !ok {
		return
	}

	component, _ := ctx.Detail.(string)

	r.insert(TransitionTable, transitionEntry{
		TimeNs:    ctx.Now,
		Component: component,
		FromState: tr.From.String(),
		Cause:     tr.Trigger.String(),
		ToState:   tr.To.String(),
	})
}

func (r *EventRecorder) insert(tableName string, entry any) {
	err := r.recorder.InsertData(tableName, entry)
	if err == nil {
		return
	}

	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
}

// Err returns the first error met while recording.
func (r *EventRecorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.err
}

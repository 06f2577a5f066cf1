package timing

import (
	"fmt"

	"github.com/quantsim/chrono/hooking"
	"github.com/quantsim/chrono/logging"
)

// EventLogger is a hook that logs timer registrations, cancellations and
// every fired event.
type EventLogger struct {
	logger logging.ComponentLogger
}

// NewEventLogger returns a new EventLogger that writes through logger under
// the given component name.
func NewEventLogger(logger *logging.Logger, component string) *EventLogger {
	h := new(EventLogger)
	h.logger = logger.Component(component)

	return h
}

// Func writes the hook information into the logger.
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case HookPosTimerSet:
		info, ok := ctx.Item.(TimerInfo)
		if !ok {
			return
		}

		h.logger.Debug(ctx.Now, fmt.Sprintf(
			"set %s %s, next at %d", info.Kind, info.Name, info.NextTimeNs))
	case HookPosTimerCanceled:
		h.logger.Debug(ctx.Now, fmt.Sprintf("canceled timer %v", ctx.Item))
	case HookPosTimeAdvanced:
		handlers, ok := ctx.Item.([]TimeEventHandler)
		if !ok {
			return
		}

		for _, handler := range handlers {
			h.logger.Debug(ctx.Now, handler.Event.String())
		}
	}
}

package lifecycle

import (
	"github.com/quantsim/chrono/hooking"
	"github.com/quantsim/chrono/logging"
)

// TransitionLogger is a hook that logs every state change.
type TransitionLogger struct {
	logger *logging.Logger
}

// NewTransitionLogger creates a TransitionLogger writing through logger.
func NewTransitionLogger(logger *logging.Logger) *TransitionLogger {
	return &TransitionLogger{logger: logger}
}

// Func logs the transition carried by ctx.
func (h *TransitionLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosStateChanged {
		return
	}

	tr, ok := ctx.Item.(Transition)
	if !ok {
		return
	}

	component, _ := ctx.Detail.(string)
	color := logging.Normal
	switch tr.To {
	case Running:
		color = logging.Green
	case Degraded, Degrading:
		color = logging.Yellow
	case Faulting, Faulted:
		color = logging.Red
	}

	h.logger.Log(ctx.Now, logging.Info, color, component, tr.To.String())
}

package lifecycle

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is wrapped by every InvalidTransitionError.
var ErrInvalidTransition = errors.New("lifecycle: invalid transition")

// InvalidTransitionError reports a trigger that is not legal from a state.
type InvalidTransitionError struct {
	State   ComponentState
	Trigger ComponentTrigger
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("lifecycle: invalid transition %s -> %s",
		e.State, e.Trigger)
}

// Unwrap lets errors.Is match ErrInvalidTransition.
func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// Transition is one edge of the lifecycle graph.
type Transition struct {
	From    ComponentState   `json:"from"`
	Trigger ComponentTrigger `json:"trigger"`
	To      ComponentState   `json:"to"`
}

type edge struct {
	state   ComponentState
	trigger ComponentTrigger
}

var table = buildTable()

func buildTable() map[edge]ComponentState {
	t := map[edge]ComponentState{
		{PreInitialized, Initialize}:  Ready,
		{Ready, Reset}:                Resetting,
		{Ready, Start}:                Starting,
		{Ready, Dispose}:              Disposing,
		{Resetting, ResetCompleted}:   Ready,
		{Starting, StartCompleted}:    Running,
		{Starting, Stop}:              Stopping,
		{Running, Stop}:               Stopping,
		{Running, Degrade}:            Degrading,
		{Resuming, Stop}:              Stopping,
		{Resuming, ResumeCompleted}:   Running,
		{Stopping, StopCompleted}:     Stopped,
		{Stopped, Reset}:              Resetting,
		{Stopped, Resume}:             Resuming,
		{Stopped, Dispose}:            Disposing,
		{Degrading, DegradeCompleted}: Degraded,
		{Degraded, Resume}:            Resuming,
		{Degraded, Stop}:              Stopping,
		{Disposing, DisposeCompleted}: Disposed,
		{Faulting, FaultCompleted}:    Faulted,
	}

	// A fault can interrupt anything that is still alive.
	for _, s := range States() {
		if s.IsTerminal() || s == Faulting {
			continue
		}
		t[edge{s, Fault}] = Faulting
	}

	return t
}

// Next returns the state reached by applying trigger in state. Illegal pairs
// return an *InvalidTransitionError.
func Next(state ComponentState, trigger ComponentTrigger) (ComponentState, error) {
	to, ok := table[edge{state, trigger}]
	if !ok {
		return state, &InvalidTransitionError{State: state, Trigger: trigger}
	}

	return to, nil
}

// Transitions returns the whole lifecycle graph ordered by source state and
// then by trigger.
func Transitions() []Transition {
	out := make([]Transition, 0, len(table))
	for _, s := range States() {
		for _, t := range Triggers() {
			if to, ok := table[edge{s, t}]; ok {
				out = append(out, Transition{From: s, Trigger: t, To: to})
			}
		}
	}

	return out
}

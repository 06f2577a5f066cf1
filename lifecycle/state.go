// Package lifecycle implements the state machine that governs the
// operational phase of long-lived components such as strategies, actors and
// engines.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidArgument is returned when a state or trigger name is not
// recognized.
var ErrInvalidArgument = errors.New("lifecycle: invalid argument")

// ComponentState is the operational phase of a component.
type ComponentState int

// Component states. The -ING states mark operations in progress.
const (
	PreInitialized ComponentState = iota
	Ready
	Starting
	Running
	Stopping
	Stopped
	Resuming
	Resetting
	Disposing
	Disposed
	Degrading
	Degraded
	Faulting
	Faulted
)

var stateNames = [...]string{
	PreInitialized: "PRE_INITIALIZED",
	Ready:          "READY",
	Starting:       "STARTING",
	Running:        "RUNNING",
	Stopping:       "STOPPING",
	Stopped:        "STOPPED",
	Resuming:       "RESUMING",
	Resetting:      "RESETTING",
	Disposing:      "DISPOSING",
	Disposed:       "DISPOSED",
	Degrading:      "DEGRADING",
	Degraded:       "DEGRADED",
	Faulting:       "FAULTING",
	Faulted:        "FAULTED",
}

// States returns every state in declaration order.
func States() []ComponentState {
	states := make([]ComponentState, len(stateNames))
	for i := range stateNames {
		states[i] = ComponentState(i)
	}
	return states
}

// String returns the canonical name of the state.
func (s ComponentState) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("ComponentState(%d)", int(s))
}

// IsTerminal tells whether no trigger can move the component out of s.
func (s ComponentState) IsTerminal() bool {
	return s == Disposed || s == Faulted
}

// ParseComponentState converts a canonical state name into a state. Matching
// ignores case.
func ParseComponentState(name string) (ComponentState, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range stateNames {
		if n == upper {
			return ComponentState(i), nil
		}
	}

	return 0, fmt.Errorf("lifecycle: unknown component state %q: %w",
		name, ErrInvalidArgument)
}

// MarshalText implements encoding.TextMarshaler.
func (s ComponentState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ComponentState) UnmarshalText(text []byte) error {
	parsed, err := ParseComponentState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

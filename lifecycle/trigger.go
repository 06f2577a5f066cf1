package lifecycle

import (
	"fmt"
	"strings"
)

// ComponentTrigger asks a component to change state. Every operation has an
// intent trigger and a matching completion trigger.
type ComponentTrigger int

// Component triggers.
const (
	Initialize ComponentTrigger = iota + 1
	Start
	StartCompleted
	Stop
	StopCompleted
	Resume
	ResumeCompleted
	Reset
	ResetCompleted
	Dispose
	DisposeCompleted
	Degrade
	DegradeCompleted
	Fault
	FaultCompleted
)

var triggerNames = map[ComponentTrigger]string{
	Initialize:       "INITIALIZE",
	Start:            "START",
	StartCompleted:   "START_COMPLETED",
	Stop:             "STOP",
	StopCompleted:    "STOP_COMPLETED",
	Resume:           "RESUME",
	ResumeCompleted:  "RESUME_COMPLETED",
	Reset:            "RESET",
	ResetCompleted:   "RESET_COMPLETED",
	Dispose:          "DISPOSE",
	DisposeCompleted: "DISPOSE_COMPLETED",
	Degrade:          "DEGRADE",
	DegradeCompleted: "DEGRADE_COMPLETED",
	Fault:            "FAULT",
	FaultCompleted:   "FAULT_COMPLETED",
}

// Triggers returns every trigger in declaration order.
func Triggers() []ComponentTrigger {
	triggers := make([]ComponentTrigger, 0, len(triggerNames))
	for t := Initialize; t <= FaultCompleted; t++ {
		triggers = append(triggers, t)
	}
	return triggers
}

// String returns the canonical name of the trigger.
func (t ComponentTrigger) String() string {
	if name, ok := triggerNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ComponentTrigger(%d)", int(t))
}

// ParseComponentTrigger converts a canonical trigger name into a trigger.
// Matching ignores case.
func ParseComponentTrigger(name string) (ComponentTrigger, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for t, n := range triggerNames {
		if n == upper {
			return t, nil
		}
	}

	return 0, fmt.Errorf("lifecycle: unknown component trigger %q: %w",
		name, ErrInvalidArgument)
}

// MarshalText implements encoding.TextMarshaler.
func (t ComponentTrigger) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ComponentTrigger) UnmarshalText(text []byte) error {
	parsed, err := ParseComponentTrigger(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

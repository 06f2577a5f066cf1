package lifecycle

import (
	"sync"

	"github.com/quantsim/chrono/hooking"
	"github.com/quantsim/chrono/timing"
)

// HookPosStateChanged fires after a trigger is applied successfully. The
// item is the Transition and the detail is the name of the machine.
var HookPosStateChanged = &hooking.HookPos{Name: "StateChanged"}

// Machine holds the current state of one component and applies triggers to
// it atomically.
type Machine struct {
	*hooking.HookableBase

	name  string
	clock timing.Clock

	mu    sync.Mutex
	state ComponentState
}

// NewMachine creates a Machine in PRE_INITIALIZED. The clock, when not nil,
// stamps the hooks raised on every transition.
func NewMachine(name string, clock timing.Clock) *Machine {
	return &Machine{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		clock:        clock,
		state:        PreInitialized,
	}
}

// Name returns the name of the component the machine belongs to.
func (m *Machine) Name() string {
	return m.name
}

// State returns the current state.
func (m *Machine) State() ComponentState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Trigger applies trigger to the current state. On an illegal trigger the
// state is left unchanged and an *InvalidTransitionError is returned.
func (m *Machine) Trigger(trigger ComponentTrigger) (ComponentState, error) {
	m.mu.Lock()

	from := m.state
	to, err := Next(from, trigger)
	if err != nil {
		m.mu.Unlock()
		return from, err
	}
	m.state = to

	m.mu.Unlock()

	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    HookPosStateChanged,
		Now:    m.now(),
		Item:   Transition{From: from, Trigger: trigger, To: to},
		Detail: m.name,
	})

	return to, nil
}

func (m *Machine) now() uint64 {
	if m.clock == nil {
		return 0
	}
	return m.clock.TimestampNs()
}

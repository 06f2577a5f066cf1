package lifecycle

import (
	"fmt"

	"github.com/quantsim/chrono/timing"
)

// Actions is the work a component performs when it changes phase.
type Actions interface {
	OnStart() error
	OnStop() error
	OnResume() error
	OnReset() error
	OnDispose() error
	OnDegrade() error
	OnFault() error
}

// NoopActions does nothing on every phase change. Embed it to override only
// the actions a component cares about.
type NoopActions struct{}

func (NoopActions) OnStart() error   { return nil }
func (NoopActions) OnStop() error    { return nil }
func (NoopActions) OnResume() error  { return nil }
func (NoopActions) OnReset() error   { return nil }
func (NoopActions) OnDispose() error { return nil }
func (NoopActions) OnDegrade() error { return nil }
func (NoopActions) OnFault() error   { return nil }

// Action names a lifecycle operation a component can be asked to perform.
type Action string

// Lifecycle actions.
const (
	ActionInitialize Action = "initialize"
	ActionStart      Action = "start"
	ActionStop       Action = "stop"
	ActionResume     Action = "resume"
	ActionReset      Action = "reset"
	ActionDispose    Action = "dispose"
	ActionDegrade    Action = "degrade"
	ActionFault      Action = "fault"
)

// ParseAction converts an action name into an Action.
func ParseAction(name string) (Action, error) {
	switch a := Action(name); a {
	case ActionInitialize, ActionStart, ActionStop, ActionResume,
		ActionReset, ActionDispose, ActionDegrade, ActionFault:
		return a, nil
	default:
		return "", fmt.Errorf("lifecycle: unknown action %q: %w",
			name, ErrInvalidArgument)
	}
}

// A Component is a named unit whose phase changes are guarded by a Machine.
// Each operation applies its intent trigger, runs the matching action and
// then applies the completion trigger.
type Component struct {
	name    string
	machine *Machine
	actions Actions
}

// NewComponent creates a component in PRE_INITIALIZED.
func NewComponent(name string, actions Actions, clock timing.Clock) *Component {
	if actions == nil {
		actions = NoopActions{}
	}

	return &Component{
		name:    name,
		machine: NewMachine(name, clock),
		actions: actions,
	}
}

// Name returns the name of the component.
func (c *Component) Name() string {
	return c.name
}

// State returns the current state.
func (c *Component) State() ComponentState {
	return c.machine.State()
}

// Machine returns the state machine, mainly to attach hooks.
func (c *Component) Machine() *Machine {
	return c.machine
}

// Initialize moves the component from PRE_INITIALIZED to READY.
func (c *Component) Initialize() error {
	_, err := c.machine.Trigger(Initialize)
	return err
}

// Start starts the component.
func (c *Component) Start() error {
	return c.run(Start, c.actions.OnStart, StartCompleted)
}

// Stop stops the component.
func (c *Component) Stop() error {
	return c.run(Stop, c.actions.OnStop, StopCompleted)
}

// Resume resumes a stopped or degraded component.
func (c *Component) Resume() error {
	return c.run(Resume, c.actions.OnResume, ResumeCompleted)
}

// Reset brings the component back to READY.
func (c *Component) Reset() error {
	return c.run(Reset, c.actions.OnReset, ResetCompleted)
}

// Dispose releases the component for good.
func (c *Component) Dispose() error {
	return c.run(Dispose, c.actions.OnDispose, DisposeCompleted)
}

// Degrade moves a running component into degraded operation.
func (c *Component) Degrade() error {
	return c.run(Degrade, c.actions.OnDegrade, DegradeCompleted)
}

// Fault marks the component as failed for good.
func (c *Component) Fault() error {
	return c.run(Fault, c.actions.OnFault, FaultCompleted)
}

// Perform runs the named action.
func (c *Component) Perform(action Action) error {
	switch action {
	case ActionInitialize:
		return c.Initialize()
	case ActionStart:
		return c.Start()
	case ActionStop:
		return c.Stop()
	case ActionResume:
		return c.Resume()
	case ActionReset:
		return c.Reset()
	case ActionDispose:
		return c.Dispose()
	case ActionDegrade:
		return c.Degrade()
	case ActionFault:
		return c.Fault()
	default:
		return fmt.Errorf("lifecycle: unknown action %q: %w",
			action, ErrInvalidArgument)
	}
}

// run leaves the component in the in-progress state when the action fails.
func (c *Component) run(
	intent ComponentTrigger,
	action func() error,
	completion ComponentTrigger,
) error {
	if _, err := c.machine.Trigger(intent); err != nil {
		return err
	}

	if err := action(); err != nil {
		return fmt.Errorf("lifecycle: %s of %s failed: %w",
			intent, c.name, err)
	}

	_, err := c.machine.Trigger(completion)
	return err
}

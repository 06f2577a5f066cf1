// Package simulation drives a simulated clock: it advances time, dispatches
// the fired events to their callbacks and runs scheduled lifecycle actions
// on the registered components.
package simulation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/quantsim/chrono/datarecording"
	"github.com/quantsim/chrono/hooking"
	"github.com/quantsim/chrono/lifecycle"
	"github.com/quantsim/chrono/logging"
	"github.com/quantsim/chrono/timing"
)

var (
	// ErrComponentNotFound is returned when a component name is not
	// registered.
	ErrComponentNotFound = errors.New("simulation: component not found")

	// ErrTimeBackward is returned when asked to run or peek to a time
	// earlier than the current time.
	ErrTimeBackward = errors.New("simulation: cannot move time backward")

	// ErrRunInProgress is returned by RunUntil while another run is
	// dispatching, including when called from a callback.
	ErrRunInProgress = errors.New("simulation: run in progress")
)

// HookPosBeforeEvent fires before a fired event is handed to its callback.
// The item is the TimeEvent.
var HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent fires after a callback returns. The item is the
// TimeEvent and the detail is the error returned by the callback.
var HookPosAfterEvent = &hooking.HookPos{Name: "AfterEvent"}

// A Simulation owns a simulated clock and the components whose lifecycle it
// drives. All methods are safe for concurrent use. Callbacks run without the
// simulation locked, so they may register, cancel and schedule timers.
type Simulation struct {
	*hooking.HookableBase

	id       string
	mu       sync.Mutex
	running  bool
	clock    *timing.SimulatedClock
	logger   *logging.Logger
	recorder datarecording.DataRecorder

	components     []*lifecycle.Component
	compNameIndex  map[string]int
	componentHooks []hooking.Hook
}

// ID returns the unique id of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Clock returns the clock driven by the simulation. Callers must not use
// it concurrently with the simulation.
func (s *Simulation) Clock() *timing.SimulatedClock {
	return s.clock
}

// Logger returns the logger of the simulation.
func (s *Simulation) Logger() *logging.Logger {
	return s.logger
}

// GetDataRecorder returns the data recorder used in the simulation, or nil
// when recording is off.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.recorder
}

// AcceptComponentHook attaches hook to the state machine of every
// registered component and of every component registered later.
func (s *Simulation) AcceptComponentHook(hook hooking.Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.componentHooks = append(s.componentHooks, hook)
	for _, c := range s.components {
		c.Machine().AcceptHook(hook)
	}
}

// RegisterComponent registers a component with the simulation. Registering
// two components with the same name panics.
func (s *Simulation) RegisterComponent(c *lifecycle.Component) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.compNameIndex[c.Name()]; found {
		panic("component " + c.Name() + " already registered")
	}

	for _, h := range s.componentHooks {
		c.Machine().AcceptHook(h)
	}

	s.components = append(s.components, c)
	s.compNameIndex[c.Name()] = len(s.components) - 1
}

// Component returns the component with the given name.
func (s *Simulation) Component(name string) (*lifecycle.Component, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.componentByName(name)
}

func (s *Simulation) componentByName(name string) (*lifecycle.Component, error) {
	index, found := s.compNameIndex[name]
	if !found {
		return nil, fmt.Errorf("simulation: component %q: %w",
			name, ErrComponentNotFound)
	}

	return s.components[index], nil
}

// Components returns all registered components in registration order.
func (s *Simulation) Components() []*lifecycle.Component {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*lifecycle.Component(nil), s.components...)
}

// Now returns the current simulated time in nanoseconds.
func (s *Simulation) Now() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.clock.TimestampNs()
}

// SetTime moves the clock to ns without firing anything.
func (s *Simulation) SetTime(ns uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clock.SetTime(ns)
}

// Timers returns snapshots of the active timers in lexical name order.
func (s *Simulation) Timers() []timing.TimerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.clock.Timers()
}

// SetTimeAlert registers a one-shot alert on the clock.
func (s *Simulation) SetTimeAlert(
	name string,
	alertTimeNs uint64,
	callback timing.Callback,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.clock.SetTimeAlert(name, alertTimeNs, callback)
}

// SetTimer registers an interval timer on the clock.
func (s *Simulation) SetTimer(
	name string,
	intervalNs, startTimeNs, stopTimeNs uint64,
	callback timing.Callback,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.clock.SetTimer(name, intervalNs, startTimeNs, stopTimeNs, callback)
}

// CancelTimer removes the named timer.
func (s *Simulation) CancelTimer(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clock.CancelTimer(name)
}

// RegisterDefaultHandler sets the callback used by timers registered
// without one.
func (s *Simulation) RegisterDefaultHandler(callback timing.Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clock.RegisterDefaultHandler(callback)
}

// LogEvents installs a default handler that logs every event it receives.
func (s *Simulation) LogEvents() {
	logger := s.logger.Component("DefaultHandler")

	s.RegisterDefaultHandler(timing.CallbackFunc(
		func(evt timing.TimeEvent) error {
			logger.Info(evt.TsEvent, evt.String(), logging.Cyan)
			return nil
		}))
}

// ActionTimerName returns the name of the alert that performs action on the
// named component.
func ActionTimerName(component string, action lifecycle.Action) string {
	return component + "." + string(action)
}

// ScheduleAction registers an alert at atNs that performs action on the
// named component, for example resuming a stopped component a few seconds
// later. A pending alert for the same component and action is replaced.
func (s *Simulation) ScheduleAction(
	component string,
	action lifecycle.Action,
	atNs uint64,
) error {
	if _, err := lifecycle.ParseAction(string(action)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.componentByName(component)
	if err != nil {
		return err
	}

	return s.clock.SetTimeAlert(ActionTimerName(component, action), atNs,
		timing.CallbackFunc(func(timing.TimeEvent) error {
			return c.Perform(action)
		}))
}

// RunUntil advances the clock to toNs and dispatches every fired event in
// order. The clock moves one firing instant at a time and stops at each
// instant while its events are dispatched, so a callback sees the time of its
// event and whatever it schedules before toNs fires in the same run. A
// failing callback does not stop the run; all callback errors are returned
// joined.
func (s *Simulation) RunUntil(toNs uint64) ([]timing.TimeEvent, error) {
	if err := s.beginRun(toNs); err != nil {
		return nil, err
	}
	defer s.endRun()

	var (
		events []timing.TimeEvent
		errs   []error
	)

	for {
		handlers, done, err := s.step(toNs)
		if err != nil {
			return events, errors.Join(append(errs, err)...)
		}

		for _, h := range handlers {
			events = append(events, h.Event)

			if err := s.dispatch(h); err != nil {
				errs = append(errs, err)
			}
		}

		if done {
			return events, errors.Join(errs...)
		}
	}
}

func (s *Simulation) beginRun(toNs uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrRunInProgress
	}

	if toNs < s.clock.TimestampNs() {
		return fmt.Errorf("simulation: run to %d, now %d: %w",
			toNs, s.clock.TimestampNs(), ErrTimeBackward)
	}

	s.running = true

	return nil
}

func (s *Simulation) endRun() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
}

// step moves the clock to the next firing instant that is not after toNs,
// or to toNs when nothing fires before it. It reports done once the clock
// has reached toNs.
func (s *Simulation) step(toNs uint64) ([]timing.TimeEventHandler, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.TimestampNs()
	if toNs < now {
		return nil, true, fmt.Errorf("simulation: run to %d, now %d: %w",
			toNs, now, ErrTimeBackward)
	}

	next, ok := s.clock.NextFiringNs()
	if !ok || next > toNs {
		return s.clock.AdvanceTime(toNs, true), true, nil
	}

	return s.clock.AdvanceTime(next, true), next == toNs, nil
}

func (s *Simulation) dispatch(h timing.TimeEventHandler) error {
	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosBeforeEvent,
		Now:    h.Event.TsEvent,
		Item:   h.Event,
	})

	err := h.Dispatch()

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosAfterEvent,
		Now:    h.Event.TsEvent,
		Item:   h.Event,
		Detail: err,
	})

	if err != nil {
		return fmt.Errorf("simulation: event %s: %w", h.Event.Name, err)
	}

	return nil
}

// Peek returns the events that running to toNs would fire without moving
// the clock or dispatching anything.
func (s *Simulation) Peek(toNs uint64) ([]timing.TimeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if toNs < s.clock.TimestampNs() {
		return nil, fmt.Errorf("simulation: peek to %d, now %d: %w",
			toNs, s.clock.TimestampNs(), ErrTimeBackward)
	}

	handlers := s.clock.AdvanceTime(toNs, false)
	events := make([]timing.TimeEvent, 0, len(handlers))
	for _, h := range handlers {
		events = append(events, h.Event)
	}

	return events, nil
}

// Terminate cancels every timer and closes the data recorder.
func (s *Simulation) Terminate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clock.CancelTimers()

	if s.recorder != nil {
		return s.recorder.Close()
	}

	return nil
}

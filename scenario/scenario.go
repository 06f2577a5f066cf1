// Package scenario loads replayable simulation scripts from YAML files and
// runs them against a simulation.
//
// A scenario declares the components to drive, the alerts and interval
// timers to register, the lifecycle actions to schedule and the steps to
// advance the clock by:
//
//	name: resume-after-stop
//	start_ns: 0
//	default_handler: log
//	components:
//	  - name: Actor
//	    initial: [initialize, start]
//	timers:
//	  - name: heartbeat
//	    interval_ns: 1000000000
//	alerts:
//	  - name: wake
//	    at_ns: 1500000000
//	actions:
//	  - component: Actor
//	    action: stop
//	    at_ns: 2000000000
//	  - component: Actor
//	    action: resume
//	    at_ns: 5000000000
//	steps:
//	  - to_ns: 3000000000
//	    peek: true
//	  - to_ns: 6000000000
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quantsim/chrono/lifecycle"
	"github.com/quantsim/chrono/simulation"
	"github.com/quantsim/chrono/timing"
)

// ErrInvalidScenario is returned when a scenario file is malformed.
var ErrInvalidScenario = errors.New("scenario: invalid scenario")

// Default handler modes.
const (
	HandlerLog  = "log"
	HandlerNone = "none"
)

// Scenario is a replayable script.
type Scenario struct {
	Name           string            `yaml:"name"`
	StartNs        uint64            `yaml:"start_ns"`
	DefaultHandler string            `yaml:"default_handler"`
	Components     []ComponentConfig `yaml:"components"`
	Alerts         []AlertConfig     `yaml:"alerts"`
	Timers         []TimerConfig     `yaml:"timers"`
	Actions        []ActionConfig    `yaml:"actions"`
	Steps          []Step            `yaml:"steps"`
}

// ComponentConfig declares a component and the actions performed on it before
// the first step.
type ComponentConfig struct {
	Name    string   `yaml:"name"`
	Initial []string `yaml:"initial"`
}

// AlertConfig declares a one-shot alert.
type AlertConfig struct {
	Name string `yaml:"name"`
	AtNs uint64 `yaml:"at_ns"`
}

// TimerConfig declares an interval timer. A zero StopNs leaves it unbounded.
type TimerConfig struct {
	Name       string `yaml:"name"`
	IntervalNs uint64 `yaml:"interval_ns"`
	StartNs    uint64 `yaml:"start_ns"`
	StopNs     uint64 `yaml:"stop_ns"`
}

// ActionConfig schedules a lifecycle action on a component.
type ActionConfig struct {
	Component string `yaml:"component"`
	Action    string `yaml:"action"`
	AtNs      uint64 `yaml:"at_ns"`
}

// Step advances the clock to ToNs, or only looks ahead when Peek is set.
type Step struct {
	ToNs uint64 `yaml:"to_ns"`
	Peek bool   `yaml:"peek"`
}

// StepResult is the outcome of one step.
type StepResult struct {
	Step   Step
	NowNs  uint64
	Events []timing.TimeEvent
	Err    error
}

// Load reads and parses the scenario file at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: read %s: %w", path, err)
	}

	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario: %s: %w", path, err)
	}

	return sc, nil
}

// Parse decodes a YAML scenario. Unknown keys are rejected.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	sc := &Scenario{}
	if err := dec.Decode(sc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}

	if err := sc.Validate(); err != nil {
		return nil, err
	}

	return sc, nil
}

// Validate checks the scenario for mistakes that can be found without
// running it.
func (sc *Scenario) Validate() error {
	switch sc.DefaultHandler {
	case "", HandlerLog, HandlerNone:
	default:
		return invalid("unknown default handler %q", sc.DefaultHandler)
	}

	if sc.DefaultHandler == HandlerNone && len(sc.Alerts)+len(sc.Timers) > 0 {
		return invalid("alerts and timers need a default handler, got %q",
			HandlerNone)
	}

	names := make(map[string]bool, len(sc.Components))
	for _, c := range sc.Components {
		if c.Name == "" {
			return invalid("component without a name")
		}
		if names[c.Name] {
			return invalid("component %q declared twice", c.Name)
		}
		names[c.Name] = true

		for _, a := range c.Initial {
			if _, err := lifecycle.ParseAction(a); err != nil {
				return invalid("component %q: %v", c.Name, err)
			}
		}
	}

	for _, a := range sc.Actions {
		if !names[a.Component] {
			return invalid("action on undeclared component %q", a.Component)
		}
		if _, err := lifecycle.ParseAction(a.Action); err != nil {
			return invalid("action on %q: %v", a.Component, err)
		}
	}

	now := sc.StartNs
	for i, s := range sc.Steps {
		if s.ToNs < now {
			return invalid("step %d goes back to %d from %d", i, s.ToNs, now)
		}
		if !s.Peek {
			now = s.ToNs
		}
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidScenario, fmt.Sprintf(format, args...))
}

// Apply sets up s as the scenario describes: it moves the clock to the
// start time, registers the components and performs their initial actions,
// then registers every alert, timer and scheduled action.
func (sc *Scenario) Apply(s *simulation.Simulation) error {
	s.SetTime(sc.StartNs)

	if sc.DefaultHandler != HandlerNone {
		s.LogEvents()
	}

	for _, cc := range sc.Components {
		c := lifecycle.NewComponent(cc.Name, nil, s.Clock())
		s.RegisterComponent(c)

		for _, a := range cc.Initial {
			if err := c.Perform(lifecycle.Action(a)); err != nil {
				return fmt.Errorf("scenario: component %q: %w", cc.Name, err)
			}
		}
	}

	for _, a := range sc.Alerts {
		if err := s.SetTimeAlert(a.Name, a.AtNs, nil); err != nil {
			return fmt.Errorf("scenario: alert %q: %w", a.Name, err)
		}
	}

	for _, t := range sc.Timers {
		err := s.SetTimer(t.Name, t.IntervalNs, t.StartNs, t.StopNs, nil)
		if err != nil {
			return fmt.Errorf("scenario: timer %q: %w", t.Name, err)
		}
	}

	for _, a := range sc.Actions {
		err := s.ScheduleAction(a.Component, lifecycle.Action(a.Action), a.AtNs)
		if err != nil {
			return fmt.Errorf("scenario: action %s on %q: %w",
				a.Action, a.Component, err)
		}
	}

	return nil
}

// Run executes the steps in order. A step whose callbacks fail does not stop
// the run; the failures are kept in the step result and returned joined.
func (sc *Scenario) Run(s *simulation.Simulation) ([]StepResult, error) {
	return sc.RunWithProgress(s, nil)
}

// RunWithProgress is Run calling onStep after every step.
func (sc *Scenario) RunWithProgress(
	s *simulation.Simulation,
	onStep func(StepResult),
) ([]StepResult, error) {
	results := make([]StepResult, 0, len(sc.Steps))

	var errs []error
	for i, step := range sc.Steps {
		var (
			events []timing.TimeEvent
			err    error
		)
		if step.Peek {
			events, err = s.Peek(step.ToNs)
		} else {
			events, err = s.RunUntil(step.ToNs)
		}

		if errors.Is(err, simulation.ErrTimeBackward) {
			return results, fmt.Errorf("scenario: step %d: %w", i, err)
		}

		result := StepResult{
			Step:   step,
			NowNs:  s.Now(),
			Events: events,
			Err:    err,
		}
		results = append(results, result)

		if err != nil {
			errs = append(errs, fmt.Errorf("scenario: step %d: %w", i, err))
		}

		if onStep != nil {
			onStep(result)
		}
	}

	return results, errors.Join(errs...)
}

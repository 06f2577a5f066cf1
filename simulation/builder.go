package simulation

import (
	"github.com/rs/xid"

	"github.com/quantsim/chrono/datarecording"
	"github.com/quantsim/chrono/hooking"
	"github.com/quantsim/chrono/idgen"
	"github.com/quantsim/chrono/lifecycle"
	"github.com/quantsim/chrono/logging"
	"github.com/quantsim/chrono/timing"
)

// Builder can be used to build a simulation.
type Builder struct {
	startNs        uint64
	ids            idgen.Generator
	logger         *logging.Logger
	recorder       datarecording.DataRecorder
	recordingOn    bool
	outputFileName string
}

// MakeBuilder creates a new builder. By default the simulation starts at
// time 0, stamps events with UUID4 ids, logs nothing and records nothing.
func MakeBuilder() Builder {
	return Builder{}
}

// WithStartTime sets the initial time of the clock.
func (b Builder) WithStartTime(ns uint64) Builder {
	b.startNs = ns
	return b
}

// WithIDGenerator sets the generator that stamps event ids.
func (b Builder) WithIDGenerator(g idgen.Generator) Builder {
	b.ids = g
	return b
}

// WithLogger logs timer activity and lifecycle transitions through logger.
func (b Builder) WithLogger(logger *logging.Logger) Builder {
	b.logger = logger
	return b
}

// WithRecording records fired events and transitions into a new SQLite
// file. An empty file name gets a name derived from the simulation id.
func (b Builder) WithRecording(outputFileName string) Builder {
	b.recordingOn = true
	b.outputFileName = outputFileName
	return b
}

// WithDataRecorder records fired events and transitions into recorder.
func (b Builder) WithDataRecorder(recorder datarecording.DataRecorder) Builder {
	b.recorder = recorder
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.recorder != nil && b.recordingOn {
		panic("cannot record into both a data recorder and an output file")
	}
}

// Build builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	b.parametersMustBeValid()

	s := &Simulation{
		compNameIndex: make(map[string]int),
	}
	s.HookableBase = hooking.NewHookableBase()
	s.id = xid.New().String()

	s.logger = b.logger
	if s.logger == nil {
		s.logger = logging.Nop()
	}

	s.clock = timing.MakeSimulatedClockBuilder().
		WithStartTime(b.startNs).
		WithIDGenerator(b.ids).
		Build()

	if b.logger != nil {
		s.clock.AcceptHook(timing.NewEventLogger(s.logger, "SimulatedClock"))
		s.componentHooks = append(s.componentHooks,
			lifecycle.NewTransitionLogger(s.logger))
	}

	s.recorder = b.recorder
	if b.recordingOn {
		outputPath := b.outputFileName
		if outputPath == "" {
			outputPath = "chrono_sim_" + s.id
		}

		recorder, err := datarecording.New(outputPath)
		if err != nil {
			return nil, err
		}
		s.recorder = recorder
	}

	if s.recorder != nil {
		events, err := datarecording.NewEventRecorder(s.recorder)
		if err != nil {
			return nil, err
		}

		s.clock.AcceptHook(events)
		s.componentHooks = append(s.componentHooks, events)
	}

	return s, nil
}

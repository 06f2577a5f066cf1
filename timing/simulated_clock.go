package timing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/quantsim/chrono/hooking"
	"github.com/quantsim/chrono/idgen"
)

var (
	// ErrInvalidArgument is returned when a timer registration is rejected.
	ErrInvalidArgument = errors.New("timing: invalid argument")

	// ErrNoCallback is returned when a timer is registered without a
	// callback while no default handler is set.
	ErrNoCallback = fmt.Errorf("%w: no callback and no default handler",
		ErrInvalidArgument)

	// ErrTimerNotFound is returned when querying a timer that is not active.
	ErrTimerNotFound = errors.New("timing: timer not found")
)

// HookPosTimerSet fires after a timer or alert is registered. The item is
// the TimerInfo of the new timer.
var HookPosTimerSet = &hooking.HookPos{Name: "TimerSet"}

// HookPosTimerCanceled fires after an active timer is removed by a cancel
// call. The item is the timer name.
var HookPosTimerCanceled = &hooking.HookPos{Name: "TimerCanceled"}

// HookPosTimeAdvanced fires at the end of AdvanceTime. The item is the
// []TimeEventHandler batch and the detail is an AdvanceDetail.
var HookPosTimeAdvanced = &hooking.HookPos{Name: "TimeAdvanced"}

// AdvanceDetail describes an AdvanceTime call to hooks.
type AdvanceDetail struct {
	FromNs    uint64
	ToNs      uint64
	Committed bool
}

// SimulatedClock is a clock that only moves when told to. It owns a set of
// named alerts and interval timers and, on every advance, materializes the
// firings that fall into the advanced window in a deterministic order.
//
// A SimulatedClock is not safe for concurrent use.
type SimulatedClock struct {
	*hooking.HookableBase

	nowNs           uint64
	timers          map[string]*timer
	defaultCallback Callback
	ids             idgen.Generator
	nextSeq         uint64
}

// NewSimulatedClock creates a SimulatedClock at time 0 that stamps events
// with UUID4 ids.
func NewSimulatedClock() *SimulatedClock {
	return MakeSimulatedClockBuilder().Build()
}

// SetTime moves the clock to toTimeNs without evaluating any timer.
func (c *SimulatedClock) SetTime(toTimeNs uint64) {
	c.nowNs = toTimeNs
}

// Timestamp returns the current simulated time in seconds.
func (c *SimulatedClock) Timestamp() float64 {
	return NanosToSecs(c.nowNs)
}

// TimestampMs returns the current simulated time in milliseconds.
func (c *SimulatedClock) TimestampMs() uint64 {
	return NanosToMillis(c.nowNs)
}

// TimestampUs returns the current simulated time in microseconds.
func (c *SimulatedClock) TimestampUs() uint64 {
	return NanosToMicros(c.nowNs)
}

// TimestampNs returns the current simulated time in nanoseconds.
func (c *SimulatedClock) TimestampNs() uint64 {
	return c.nowNs
}

// RegisterDefaultHandler sets the callback used by timers registered
// without one.
func (c *SimulatedClock) RegisterDefaultHandler(callback Callback) {
	c.defaultCallback = callback
}

// SetTimeAlert registers a one-shot alert that fires at alertTimeNs. An
// existing timer with the same name is replaced. A nil callback falls back
// to the default handler.
func (c *SimulatedClock) SetTimeAlert(
	name string,
	alertTimeNs uint64,
	callback Callback,
) error {
	cb, err := c.resolveRegistration(name, callback)
	if err != nil {
		return err
	}

	if alertTimeNs <= c.nowNs {
		return fmt.Errorf("timing: alert %q at %d is not after current time %d: %w",
			name, alertTimeNs, c.nowNs, ErrInvalidArgument)
	}

	c.insert(&timer{
		name:       name,
		kind:       Alert,
		startNs:    c.nowNs,
		nextTimeNs: alertTimeNs,
		callback:   cb,
	})

	return nil
}

// SetTimer registers a timer that fires at startTimeNs + k*intervalNs for
// k = 1, 2, ... up to and including stopTimeNs. A stopTimeNs of 0 leaves the
// timer unbounded. Firings at or before the current time are skipped; the
// grid is never shifted to the registration time. An existing timer with the
// same name is replaced.
func (c *SimulatedClock) SetTimer(
	name string,
	intervalNs uint64,
	startTimeNs uint64,
	stopTimeNs uint64,
	callback Callback,
) error {
	cb, err := c.resolveRegistration(name, callback)
	if err != nil {
		return err
	}

	if intervalNs == 0 {
		return fmt.Errorf("timing: timer %q has zero interval: %w",
			name, ErrInvalidArgument)
	}

	if stopTimeNs != 0 && stopTimeNs < startTimeNs {
		return fmt.Errorf("timing: timer %q stops at %d before it starts at %d: %w",
			name, stopTimeNs, startTimeNs, ErrInvalidArgument)
	}

	first := startTimeNs + intervalNs
	if first < startTimeNs {
		return fmt.Errorf("timing: timer %q interval overflows: %w",
			name, ErrInvalidArgument)
	}

	t := &timer{
		name:       name,
		kind:       Interval,
		intervalNs: intervalNs,
		startNs:    startTimeNs,
		stopNs:     stopTimeNs,
		nextTimeNs: first,
		callback:   cb,
	}

	next, ok := t.firstAfter(c.nowNs)
	if !ok {
		return fmt.Errorf("timing: timer %q has no firing after %d: %w",
			name, c.nowNs, ErrInvalidArgument)
	}
	t.nextTimeNs = next

	c.insert(t)

	return nil
}

func (c *SimulatedClock) resolveRegistration(
	name string,
	callback Callback,
) (Callback, error) {
	if name == "" {
		return nil, fmt.Errorf("timing: timer name is empty: %w",
			ErrInvalidArgument)
	}

	if callback != nil {
		return callback, nil
	}

	if c.defaultCallback == nil {
		return nil, fmt.Errorf("timing: timer %q: %w", name, ErrNoCallback)
	}

	return c.defaultCallback, nil
}

func (c *SimulatedClock) insert(t *timer) {
	delete(c.timers, t.name)

	c.nextSeq++
	t.seq = c.nextSeq
	c.timers[t.name] = t

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosTimerSet,
		Now:    c.nowNs,
		Item:   t.info(),
	})
}

// NextTimeNs returns the next firing instant of the named timer.
func (c *SimulatedClock) NextTimeNs(name string) (uint64, error) {
	t, ok := c.timers[name]
	if !ok {
		return 0, fmt.Errorf("timing: timer %q: %w", name, ErrTimerNotFound)
	}

	return t.nextTimeNs, nil
}

// Timer returns a snapshot of the named timer.
func (c *SimulatedClock) Timer(name string) (TimerInfo, error) {
	t, ok := c.timers[name]
	if !ok {
		return TimerInfo{}, fmt.Errorf("timing: timer %q: %w",
			name, ErrTimerNotFound)
	}

	return t.info(), nil
}

// CancelTimer removes the named timer. Canceling an unknown name does
// nothing.
func (c *SimulatedClock) CancelTimer(name string) {
	if _, ok := c.timers[name]; !ok {
		return
	}

	delete(c.timers, name)

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosTimerCanceled,
		Now:    c.nowNs,
		Item:   name,
	})
}

// CancelTimers removes every active timer.
func (c *SimulatedClock) CancelTimers() {
	for _, name := range c.TimerNames() {
		c.CancelTimer(name)
	}
}

// TimerNames returns the names of the active timers in lexical order.
func (c *SimulatedClock) TimerNames() []string {
	names := make([]string, 0, len(c.timers))
	for name := range c.timers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// TimerCount returns the number of active timers.
func (c *SimulatedClock) TimerCount() int {
	return len(c.timers)
}

// Timers returns snapshots of the active timers in lexical name order.
func (c *SimulatedClock) Timers() []TimerInfo {
	infos := make([]TimerInfo, 0, len(c.timers))
	for _, name := range c.TimerNames() {
		infos = append(infos, c.timers[name].info())
	}

	return infos
}

// NextFiringNs returns the earliest instant after the current time at which
// any timer fires. It reports false when no timer is left to fire.
func (c *SimulatedClock) NextFiringNs() (uint64, bool) {
	var (
		next  uint64
		found bool
	)

	for _, t := range c.timers {
		at, ok := t.firstAfter(c.nowNs)
		if ok && (!found || at < next) {
			next, found = at, true
		}
	}

	return next, found
}

// AdvanceTime materializes every firing in (now, toTimeNs], ordered by
// firing instant and then by timer registration order. When setTime is
// true, the clock moves to toTimeNs, fired alerts are removed and interval
// timers move past the returned firings. When setTime is false, neither the
// clock nor its timers change, so repeated peeks return the same firings.
//
// Advancing to a time earlier than the current time panics.
func (c *SimulatedClock) AdvanceTime(
	toTimeNs uint64,
	setTime bool,
) []TimeEventHandler {
	fromNs := c.nowNs
	if toTimeNs < fromNs {
		panic(fmt.Sprintf(
			"timing: cannot advance time backward, to %d, now %d",
			toTimeNs, fromNs))
	}

	firings := make([]*firing, 0, len(c.timers))
	queue := newFiringQueue(len(c.timers))

	for _, t := range c.timers {
		next, ok := t.firstAfter(fromNs)
		f := &firing{timer: t, next: next, expired: !ok}
		firings = append(firings, f)

		if !f.expired && f.next <= toTimeNs {
			queue.Push(f)
		}
	}

	handlers := make([]TimeEventHandler, 0, queue.Len())
	for queue.Len() > 0 {
		f := queue.Pop()

		handlers = append(handlers, TimeEventHandler{
			Event: TimeEvent{
				Name:    f.timer.name,
				EventID: c.ids.Generate(),
				TsEvent: f.next,
				TsInit:  toTimeNs,
			},
			Callback: f.timer.callback,
		})

		next, ok := f.timer.after(f.next)
		if !ok {
			f.expired = true
			continue
		}

		f.next = next
		if next <= toTimeNs {
			queue.Push(f)
		}
	}

	if setTime {
		c.commit(firings, toTimeNs)
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosTimeAdvanced,
		Now:    c.nowNs,
		Item:   handlers,
		Detail: AdvanceDetail{FromNs: fromNs, ToNs: toTimeNs, Committed: setTime},
	})

	return handlers
}

func (c *SimulatedClock) commit(firings []*firing, toTimeNs uint64) {
	for _, f := range firings {
		if f.expired {
			delete(c.timers, f.timer.name)
			continue
		}

		f.timer.nextTimeNs = f.next
	}

	c.nowNs = toTimeNs
}

// A SimulatedClockBuilder builds SimulatedClocks.
type SimulatedClockBuilder struct {
	startNs         uint64
	ids             idgen.Generator
	defaultCallback Callback
}

// MakeSimulatedClockBuilder creates a builder with default parameters.
func MakeSimulatedClockBuilder() SimulatedClockBuilder {
	return SimulatedClockBuilder{}
}

// WithStartTime sets the initial time of the clock.
func (b SimulatedClockBuilder) WithStartTime(ns uint64) SimulatedClockBuilder {
	b.startNs = ns
	return b
}

// WithIDGenerator sets the generator that stamps event ids.
func (b SimulatedClockBuilder) WithIDGenerator(
	g idgen.Generator,
) SimulatedClockBuilder {
	b.ids = g
	return b
}

// WithDefaultHandler sets the fallback callback.
func (b SimulatedClockBuilder) WithDefaultHandler(
	cb Callback,
) SimulatedClockBuilder {
	b.defaultCallback = cb
	return b
}

// Build creates the SimulatedClock.
func (b SimulatedClockBuilder) Build() *SimulatedClock {
	ids := b.ids
	if ids == nil {
		ids = idgen.NewUUID4()
	}

	return &SimulatedClock{
		HookableBase:    hooking.NewHookableBase(),
		nowNs:           b.startNs,
		timers:          make(map[string]*timer),
		defaultCallback: b.defaultCallback,
		ids:             ids,
	}
}

var _ Clock = (*SimulatedClock)(nil)

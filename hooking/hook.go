// Package hooking lets observers attach to the clocks, state machines and
// simulations without those domains knowing who is listening.
//
// Each domain exports the positions it raises:
//
//	timing.HookPosTimerSet        a timer was registered (Item: TimerInfo)
//	timing.HookPosTimerCanceled   a timer was removed (Item: timer name)
//	timing.HookPosTimeAdvanced    the clock advanced or peeked (Item: handlers)
//	lifecycle.HookPosStateChanged a component changed state (Item: Transition)
//	simulation.HookPosBeforeEvent an event is about to be dispatched
//	simulation.HookPosAfterEvent  an event was dispatched (Detail: error)
package hooking

// HookPos names a place in a domain where hooks are invoked. Positions are
// compared by pointer, so every position is a package-level variable.
type HookPos struct {
	Name string
}

// String returns the name of the position.
func (p *HookPos) String() string {
	if p == nil {
		return "<nil>"
	}

	return p.Name
}

// HookCtx describes one invocation of the hooks of a domain.
type HookCtx struct {
	// Domain raised the hook.
	Domain Hookable

	// Pos is the position the hook was raised from.
	Pos *HookPos

	// Now is the clock time in nanoseconds when the hook was raised.
	Now uint64

	// Item is the subject of the hook. Its type depends on Pos.
	Item any

	// Detail is extra information for Pos, or nil.
	Detail any
}

// Hookable is a domain that hooks can observe.
type Hookable interface {
	// AcceptHook attaches a hook. Attaching the same hook twice panics.
	// Hooks are attached before the domain is used and are never removed.
	AcceptHook(hook Hook)

	// NumHooks returns the number of attached hooks.
	NumHooks() int

	// Hooks returns the attached hooks in attachment order.
	Hooks() []Hook

	// InvokeHook calls every attached hook with ctx.
	InvokeHook(ctx HookCtx)
}

// Hook observes a Hookable domain.
type Hook interface {
	Func(ctx HookCtx)
}

// HookableBase implements Hookable. Domains embed it.
type HookableBase struct {
	hooks []Hook
}

// NewHookableBase returns a HookableBase without hooks.
func NewHookableBase() *HookableBase {
	return &HookableBase{}
}

// NumHooks returns the number of attached hooks.
func (b *HookableBase) NumHooks() int {
	return len(b.hooks)
}

// Hooks returns a copy of the attached hooks in attachment order.
func (b *HookableBase) Hooks() []Hook {
	return append([]Hook(nil), b.hooks...)
}

// AcceptHook attaches hook. Attaching the same hook twice panics.
func (b *HookableBase) AcceptHook(hook Hook) {
	for _, attached := range b.hooks {
		if attached == hook {
			panic("hooking: hook attached twice")
		}
	}

	b.hooks = append(b.hooks, hook)
}

// InvokeHook calls every attached hook with ctx, in attachment order.
func (b *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range b.hooks {
		hook.Func(ctx)
	}
}

var _ Hookable = (*HookableBase)(nil)

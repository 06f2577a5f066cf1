package timing

// TimerKind tells how a timer repeats.
type TimerKind int

// Timer kinds.
const (
	// Alert fires exactly once.
	Alert TimerKind = iota

	// Interval fires every interval between a start and an optional stop.
	Interval
)

// String implements fmt.Stringer.
func (k TimerKind) String() string {
	switch k {
	case Alert:
		return "ALERT"
	case Interval:
		return "INTERVAL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k TimerKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// TimerInfo is a read-only snapshot of an active timer.
type TimerInfo struct {
	Name        string    `json:"name"`
	Kind        TimerKind `json:"kind"`
	IntervalNs  uint64    `json:"interval_ns,omitempty"`
	StartTimeNs uint64    `json:"start_time_ns"`
	StopTimeNs  uint64    `json:"stop_time_ns,omitempty"`
	NextTimeNs  uint64    `json:"next_time_ns"`
}

type timer struct {
	name       string
	kind       TimerKind
	intervalNs uint64
	startNs    uint64
	stopNs     uint64 // 0 means unbounded
	nextTimeNs uint64
	callback   Callback

	// seq orders timers by registration and breaks ties between firings at
	// the same instant.
	seq uint64
}

// firstAfter returns the earliest firing instant strictly greater than now.
// Interval firings stay on the grid start + k*interval, k >= 1.
func (t *timer) firstAfter(now uint64) (uint64, bool) {
	if t.kind == Alert {
		if t.nextTimeNs > now {
			return t.nextTimeNs, true
		}
		return 0, false
	}

	next := t.nextTimeNs
	if next <= now {
		k := (now-t.startNs)/t.intervalNs + 1
		next = t.startNs + k*t.intervalNs
		if next <= now {
			return 0, false
		}
	}

	if !t.withinStop(next) {
		return 0, false
	}

	return next, true
}

// after returns the firing instant that follows instant.
func (t *timer) after(instant uint64) (uint64, bool) {
	if t.kind == Alert {
		return 0, false
	}

	next := instant + t.intervalNs
	if next < instant {
		return 0, false
	}

	if !t.withinStop(next) {
		return 0, false
	}

	return next, true
}

func (t *timer) withinStop(instant uint64) bool {
	return t.stopNs == 0 || instant <= t.stopNs
}

func (t *timer) info() TimerInfo {
	return TimerInfo{
		Name:        t.name,
		Kind:        t.kind,
		IntervalNs:  t.intervalNs,
		StartTimeNs: t.startNs,
		StopTimeNs:  t.stopNs,
		NextTimeNs:  t.nextTimeNs,
	}
}

// Package timing provides the simulated clock that schedules alerts and
// interval timers for deterministic replays, and the live clock used in
// production.
package timing

// Nanoseconds per coarser unit.
const (
	NanosPerMicro  uint64 = 1_000
	NanosPerMilli  uint64 = 1_000_000
	NanosPerSecond uint64 = 1_000_000_000
)

// A Clock tells the current time in several units.
type Clock interface {
	// Timestamp returns the current time as seconds since the UNIX epoch.
	Timestamp() float64

	// TimestampMs returns the current time as milliseconds since the UNIX
	// epoch.
	TimestampMs() uint64

	// TimestampUs returns the current time as microseconds since the UNIX
	// epoch.
	TimestampUs() uint64

	// TimestampNs returns the current time as nanoseconds since the UNIX
	// epoch.
	TimestampNs() uint64
}

// NanosToSecs converts nanoseconds to fractional seconds.
func NanosToSecs(ns uint64) float64 {
	return float64(ns) / float64(NanosPerSecond)
}

// NanosToMillis converts nanoseconds to whole milliseconds, truncating.
func NanosToMillis(ns uint64) uint64 {
	return ns / NanosPerMilli
}

// NanosToMicros converts nanoseconds to whole microseconds, truncating.
func NanosToMicros(ns uint64) uint64 {
	return ns / NanosPerMicro
}

// SecsToNanos converts fractional seconds to nanoseconds, rounding to the
// nearest nanosecond.
func SecsToNanos(secs float64) uint64 {
	if secs <= 0 {
		return 0
	}
	return uint64(secs*float64(NanosPerSecond) + 0.5)
}

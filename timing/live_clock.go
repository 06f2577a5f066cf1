package timing

import "time"

// A TimeSource reads the host wall clock.
type TimeSource interface {
	Now() time.Time
}

type systemTimeSource struct{}

func (systemTimeSource) Now() time.Time {
	return time.Now()
}

// LiveClock reports wall-clock time. It holds no timers and is safe for
// concurrent readers.
type LiveClock struct {
	source TimeSource
}

// NewLiveClock creates a LiveClock backed by the system clock.
func NewLiveClock() *LiveClock {
	return NewLiveClockWithSource(systemTimeSource{})
}

// NewLiveClockWithSource creates a LiveClock backed by source.
func NewLiveClockWithSource(source TimeSource) *LiveClock {
	return &LiveClock{source: source}
}

// Timestamp returns the wall-clock time in seconds.
func (c *LiveClock) Timestamp() float64 {
	return NanosToSecs(c.TimestampNs())
}

// TimestampMs returns the wall-clock time in milliseconds.
func (c *LiveClock) TimestampMs() uint64 {
	return NanosToMillis(c.TimestampNs())
}

// TimestampUs returns the wall-clock time in microseconds.
func (c *LiveClock) TimestampUs() uint64 {
	return NanosToMicros(c.TimestampNs())
}

// TimestampNs returns the wall-clock time in nanoseconds. Times before the
// UNIX epoch read as 0.
func (c *LiveClock) TimestampNs() uint64 {
	ns := c.source.Now().UnixNano()
	if ns < 0 {
		return 0
	}
	return uint64(ns)
}

var _ Clock = (*LiveClock)(nil)

package upump

import "time"

// ClockFreq is the engine's tick rate: 27 MHz, chosen to match MPEG-2
// timestamp resolution. Every duration and timestamp elsewhere in this
// module is expressed in these ticks unless documented otherwise (spec
// §4.C).
const ClockFreq = 27_000_000

// Clock exposes monotonic "now" in 27 MHz ticks.
type Clock interface {
	Now() int64
}

// SystemClock is a Clock backed by the Go runtime's monotonic clock.
type SystemClock struct {
	start time.Time
}

// NewSystemClock creates a Clock whose Now() is relative to the moment of
// construction (so values stay well within int64 range across long-running
// processes).
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Now returns elapsed time since construction, in 27 MHz ticks.
func (c *SystemClock) Now() int64 {
	return DurationToTicks(time.Since(c.start))
}

// DurationToTicks converts a time.Duration to 27 MHz ticks.
func DurationToTicks(d time.Duration) int64 {
	return int64(d) * ClockFreq / int64(time.Second)
}

// TicksToDuration converts 27 MHz ticks to a time.Duration.
func TicksToDuration(ticks int64) time.Duration {
	return time.Duration(ticks * int64(time.Second) / ClockFreq)
}

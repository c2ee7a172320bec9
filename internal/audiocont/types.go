// Package audiocont implements the audio continuity crossblender of spec
// §4.M: a multi-input selector for float32 planar sound that smooths input
// handovers by crossfading the outgoing and incoming input over a
// configurable window, rather than cutting between them.
//
// Spec §1 names the crossblender as a trivial sub-module whose interface is
// specified only where the core consumes it; SPEC_FULL.md's expansion
// carries the full §4.M algorithm into its own package since it is the only
// such sub-module with a fully specified behavior (§4.M, invariants,
// boundary cases, and a concrete end-to-end scenario) rather than a pure
// external contract.
package audiocont

import (
	"fmt"

	"github.com/alxayo/streamengine/internal/core/upump"
)

// DefaultSampleSize is the byte width of one float32 sample, the only
// sample format spec §4.M names ("float32 planar sound").
const DefaultSampleSize = 4

// planeName returns the channel plane name for the crossblender's sound
// ubuf manager, matching the ch0..chN convention internal/avcodec uses for
// its own dynamically-registered sound planes.
func planeName(ch int) string {
	return fmt.Sprintf("ch%d", ch)
}

// ticksFor converts a sample count at rate into engine 27 MHz ticks.
func ticksFor(samples int, rate uint32) int64 {
	if rate == 0 {
		return 0
	}
	return int64(samples) * upump.ClockFreq / int64(rate)
}

// samplesFor converts a duration in engine ticks into a sample count at
// rate, the inverse of ticksFor, used to size the tick-driven output buffer
// from the reference uref's duration (spec §4.M step 3: "allocates a
// zeroed output ubuf sized to the reference").
func samplesFor(ticks int64, rate uint32) int {
	if rate == 0 {
		return 0
	}
	return int(ticks * int64(rate) / upump.ClockFreq)
}

package checker

import "time"

// flappingHorizon bounds the flap counters' memory window (spec.md §4.9).
const flappingHorizon = 1800.0 // seconds (30 minutes)

// UpdateFlapCounters applies spec.md §4.9's decay-then-accumulate step to a
// Checkable's (positive, negative) time-weighted buckets, replacing the
// teacher's 21-slot weighted circular buffer (see DESIGN.md).
//
// Resolved per DESIGN.md Open Question #1 (grounded on
// original_source/lib/icinga/checkable-flapping.cpp UpdateFlappingStatus):
// called on EVERY check result, not only on state changes — stateChange
// selects which bucket the elapsed time since lastChange is added to.
func UpdateFlapCounters(positive, negative *float64, lastChange *time.Time, now time.Time, stateChange bool) {
	if lastChange.IsZero() {
		*lastChange = now
		return
	}

	diff := now.Sub(*lastChange).Seconds()

	if *positive+*negative > flappingHorizon {
		pct := (*positive + *negative - flappingHorizon) / flappingHorizon
		*positive -= pct * *positive
		*negative -= pct * *negative
	}

	if stateChange {
		*positive += diff
	} else {
		*negative += diff
	}

	if *positive < 0 {
		*positive = 0
	}
	if *negative < 0 {
		*negative = 0
	}

	*lastChange = now
}

// FlapPercent returns the observable flapping percentage for a counter pair.
func FlapPercent(positive, negative float64) float64 {
	if positive+negative <= 0 {
		return 0
	}
	return 100 * positive / (positive + negative)
}

// FlapSignal names the edge crossed by a flap-threshold evaluation.
type FlapSignal int

const (
	FlapNoChange FlapSignal = iota
	FlapSignalStart
	FlapSignalStop
)

// FlapTransition evaluates a crossing of the flap threshold. lowThreshold
// gates the falling edge, highThreshold the rising edge (spec.md §3/§4.9).
func FlapTransition(currentlyFlapping bool, percent, lowThreshold, highThreshold float64) (bool, FlapSignal) {
	if !currentlyFlapping && percent > highThreshold {
		return true, FlapSignalStart
	}
	if currentlyFlapping && percent <= lowThreshold {
		return false, FlapSignalStop
	}
	return currentlyFlapping, FlapNoChange
}

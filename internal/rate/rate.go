// Package rate computes the instantaneous target request rate for the
// foreground loop. TargetRate is a pure function of its inputs and is
// re-evaluated every scheduling tick.
package rate

import (
	"math"
	"time"
)

// Modifiers configure the load-variation multipliers.
type Modifiers struct {
	Enabled                 bool
	NightReductionPercent   float64 // applied 22:00-06:00
	WeekendReductionPercent float64 // applied Saturday and Sunday
	BusinessHoursBoost      float64 // applied 09:00-17:00, e.g. 1.3
}

// enduranceFloor is the multiplier a run decays toward as it
// approaches its configured duration.
const enduranceFloor = 0.8

// TargetRate returns the request rate for the current tick, always at
// least 1. now supplies the wall clock used for the day/night and
// weekend modifiers so the function stays deterministic under test.
func TargetRate(base int, elapsed, duration time.Duration, now time.Time, m Modifiers) int {
	r := float64(base)

	if m.Enabled {
		r *= weekendModifier(now, m)
		r *= dayNightModifier(now, m)
	}
	r *= enduranceDecay(elapsed, duration)

	rate := int(math.Floor(r))
	if rate < 1 {
		rate = 1
	}
	return rate
}

func weekendModifier(now time.Time, m Modifiers) float64 {
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return 1 - m.WeekendReductionPercent/100
	default:
		return 1
	}
}

func dayNightModifier(now time.Time, m Modifiers) float64 {
	hour := now.Hour()
	switch {
	case hour >= 22 || hour < 6:
		return 1 - m.NightReductionPercent/100
	case hour >= 9 && hour < 17:
		if m.BusinessHoursBoost > 0 {
			return m.BusinessHoursBoost
		}
		return 1.3
	default:
		return 1
	}
}

// enduranceDecay linearly reduces the rate toward enduranceFloor as
// the run approaches its configured duration, modeling long-run
// throttling.
func enduranceDecay(elapsed, duration time.Duration) float64 {
	if duration <= 0 {
		return 1
	}
	progress := elapsed.Hours() / duration.Hours()
	if progress > 1 {
		progress = 1
	}
	if progress < 0 {
		progress = 0
	}
	return 1 - (1-enduranceFloor)*progress
}

package store

import (
	"sort"
	"time"
)

// averageWindow is the number of latest useful visits the daily-km
// average is computed over. Three balances recency against sampling noise.
const averageWindow = 3

// Diagnostic thresholds for a single day-to-day transition, in km/day.
// They are reported, never enforced on write.
const (
	RateHighThreshold     = 500
	RateCriticalThreshold = 1000
)

// Reading is a finalized visit projected to (calendar date, odometer).
// Date must be truncated to midnight; the store layer normalizes
// finish timestamps to the yard time zone before truncating.
type Reading struct {
	Date     time.Time
	Odometer int64
}

// DedupeReadings sorts readings chronologically (odometer as tie-break)
// and drops rows with an identical (date, odometer) pair.
func DedupeReadings(readings []Reading) []Reading {
	if len(readings) == 0 {
		return nil
	}
	sorted := make([]Reading, len(readings))
	copy(sorted, readings)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].Odometer < sorted[j].Odometer
	})

	out := sorted[:1]
	for _, r := range sorted[1:] {
		last := out[len(out)-1]
		if r.Date.Equal(last.Date) && r.Odometer == last.Odometer {
			continue
		}
		out = append(out, r)
	}
	return out
}

// MonotoneFilter walks chronologically ordered readings and retains one
// iff its odometer is strictly greater than the last retained odometer.
// Equal or regressive readings are re-entries or data-entry errors.
func MonotoneFilter(readings []Reading) []Reading {
	var out []Reading
	for _, r := range readings {
		if len(out) > 0 && r.Odometer <= out[len(out)-1].Odometer {
			continue
		}
		out = append(out, r)
	}
	return out
}

// DailyAverage runs the full estimator pipeline: dedupe, monotone filter,
// then the average over the last up-to-three retained readings. It returns
// nil when fewer than two readings survive, when the window spans zero
// days, or when the window's distance is negative.
func DailyAverage(readings []Reading) *float64 {
	retained := MonotoneFilter(DedupeReadings(readings))
	if len(retained) < 2 {
		return nil
	}
	window := retained
	if len(window) > averageWindow {
		window = window[len(window)-averageWindow:]
	}

	first := window[0]
	last := window[len(window)-1]
	deltaKM := last.Odometer - first.Odometer
	deltaDays := daysBetween(first.Date, last.Date)
	if deltaDays <= 0 || deltaKM < 0 {
		return nil
	}
	avg := float64(deltaKM) / float64(deltaDays)
	return &avg
}

// TransitionRates returns the km/day rate of each consecutive pair of
// retained readings, for diagnostic classification.
func TransitionRates(readings []Reading) []float64 {
	retained := MonotoneFilter(DedupeReadings(readings))
	var rates []float64
	for i := 1; i < len(retained); i++ {
		days := daysBetween(retained[i-1].Date, retained[i].Date)
		if days <= 0 {
			continue
		}
		rates = append(rates, float64(retained[i].Odometer-retained[i-1].Odometer)/float64(days))
	}
	return rates
}

// ClassifyRate labels a day-to-day transition rate for the diagnostic
// channel. Empty means unremarkable.
func ClassifyRate(kmPerDay float64) string {
	switch {
	case kmPerDay > RateCriticalThreshold:
		return "critical"
	case kmPerDay > RateHighThreshold:
		return "high"
	default:
		return ""
	}
}

// daysBetween subtracts calendar dates, not wall-clock instants, so the
// result is stable around midnight.
func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// DateOf truncates a timestamp to its calendar date in the given location.
func DateOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

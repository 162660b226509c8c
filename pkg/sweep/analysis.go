package sweep

import "sort"

// Busy is a channel whose 80th percentile reached the busy threshold.
type Busy struct {
	Index       int
	FrequencyHz uint32
	P80DBm      int32
}

// measured returns the steps with a defined median.
func measured(steps []Step) []Step {
	var out []Step
	for _, s := range steps {
		if !s.Skipped && s.Report.P50.Set {
			out = append(out, s)
		}
	}
	return out
}

// FindBusy returns the measured channels whose 80th percentile is at or
// above thresholdDBm
func FindBusy(steps []Step, thresholdDBm int32) []Busy {
	var busy []Busy
	for _, s := range measured(steps) {
		if s.Report.P80.Set && s.Report.P80.DBm >= thresholdDBm {
			busy = append(busy, Busy{Index: s.Index, FrequencyHz: s.FrequencyHz, P80DBm: s.Report.P80.DBm})
		}
	}
	return busy
}

// Quietest returns the measured channel with the lowest median, false when
// nothing was measured. Ties go to the lower frequency.
func Quietest(steps []Step) (Step, bool) {
	m := measured(steps)
	if len(m) == 0 {
		return Step{}, false
	}
	best := m[0]
	for _, s := range m[1:] {
		if s.Report.P50.DBm < best.Report.P50.DBm {
			best = s
		}
	}
	return best, true
}

// NoiseFloor returns the median over channels of the per-channel median,
// false when nothing was measured
func NoiseFloor(steps []Step) (int32, bool) {
	m := measured(steps)
	if len(m) == 0 {
		return 0, false
	}
	levels := make([]int32, len(m))
	for i, s := range m {
		levels[i] = s.Report.P50.DBm
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	return levels[len(levels)/2], true
}

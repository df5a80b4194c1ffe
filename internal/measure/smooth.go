package measure

import "sort"

// Smooth applies a centered, confidence-weighted moving average per type.
// Groups with at least three members are sorted by timestamp and each point
// is replaced by a copy whose Value is the weighted mean of the window
// [i-window/2, i+window/2], clipped to the group. The window is capped to the
// group size and raised to 1 when smaller. Smaller groups pass through.
//
// The output has the same count and type multiset as the input. Groups are
// emitted in order of first appearance.
func Smooth(points []MeasurementPoint, window int) []MeasurementPoint {
	if window < 1 {
		window = 1
	}
	order, groups := groupByType(points)
	out := make([]MeasurementPoint, 0, len(points))
	for _, t := range order {
		g := groups[t]
		if len(g) < 3 {
			out = append(out, g...)
			continue
		}
		out = append(out, smoothGroup(g, window)...)
	}
	return out
}

func smoothGroup(group []MeasurementPoint, window int) []MeasurementPoint {
	sorted := append([]MeasurementPoint(nil), group...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	w := min(window, len(sorted))
	half := w / 2
	values := valuesOf(sorted)
	weights := make([]float64, len(sorted))
	for i, p := range sorted {
		weights[i] = p.weight()
	}

	out := make([]MeasurementPoint, len(sorted))
	for i := range sorted {
		lo := max(0, i-half)
		hi := min(len(sorted), i+half+1)
		out[i] = sorted[i]
		out[i].Value = weightedMean(values[lo:hi], weights[lo:hi])
	}
	return out
}

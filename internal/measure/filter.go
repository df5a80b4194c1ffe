package measure

// FilterByConfidence keeps points with Confidence >= minConfidence, in input
// order.
func FilterByConfidence(points []MeasurementPoint, minConfidence float64) []MeasurementPoint {
	out := make([]MeasurementPoint, 0, len(points))
	for _, p := range points {
		if p.Confidence >= minConfidence {
			out = append(out, p)
		}
	}
	return out
}

// RemoveOutliers drops points whose population z-score within their type
// group exceeds zThreshold. Groups smaller than minGroupSize and groups with
// zero spread pass through. Input order is preserved.
func RemoveOutliers(points []MeasurementPoint, zThreshold float64, minGroupSize int) []MeasurementPoint {
	kept, _ := removeOutliers(points, zThreshold, minGroupSize)
	return kept
}

// removeOutliers is RemoveOutliers that also returns the rejected points.
func removeOutliers(points []MeasurementPoint, zThreshold float64, minGroupSize int) (kept, removed []MeasurementPoint) {
	order, groups := groupByType(points)
	scores := make(map[MeasurementType][]float64, len(order))
	for _, t := range order {
		if g := groups[t]; len(g) >= minGroupSize {
			scores[t] = zScores(valuesOf(g))
		}
	}

	kept = make([]MeasurementPoint, 0, len(points))
	seen := make(map[MeasurementType]int, len(order))
	for _, p := range points {
		i := seen[p.Type]
		seen[p.Type]++
		z, ok := scores[p.Type]
		if !ok || z[i] <= zThreshold {
			kept = append(kept, p)
			continue
		}
		removed = append(removed, p)
	}
	return kept, removed
}

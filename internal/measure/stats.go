package measure

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TypeStats holds the summary statistics of one measurement type.
type TypeStats struct {
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Count int     `json:"count"`
	CV    float64 `json:"cv"`
}

// Statistics returns population statistics per measurement type. CV is 0 when
// the mean is not positive, and a single value has zero spread.
func Statistics(points []MeasurementPoint) map[MeasurementType]TypeStats {
	order, groups := groupByType(points)
	out := make(map[MeasurementType]TypeStats, len(order))
	for _, t := range order {
		values := valuesOf(groups[t])
		mean, std := stat.PopMeanStdDev(values, nil)
		if len(values) == 1 {
			std = 0
		}
		s := TypeStats{Mean: mean, Std: std, Count: len(values)}
		if mean > 0 {
			s.CV = std / mean
		}
		out[t] = s
	}
	return out
}

// weightedMean averages values by weights, falling back to the unweighted
// mean when the weights sum to zero.
func weightedMean(values, weights []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if floats.Sum(weights) > 0 {
		return stat.Mean(values, weights)
	}
	return stat.Mean(values, nil)
}

// confidenceWeightedMean is weightedMean over points with weight
// Confidence*LandmarksQuality.
func confidenceWeightedMean(points []MeasurementPoint) float64 {
	values := make([]float64, len(points))
	weights := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
		weights[i] = p.weight()
	}
	return weightedMean(values, weights)
}

// zScores returns |z| of every value against the population mean and standard
// deviation. A zero deviation yields all zeros.
func zScores(values []float64) []float64 {
	mean, std := stat.PopMeanStdDev(values, nil)
	out := make([]float64, len(values))
	if std == 0 || math.IsNaN(std) {
		return out
	}
	for i, v := range values {
		out[i] = math.Abs(stat.StdScore(v, mean, std))
	}
	return out
}

// groupByType groups points by type. order lists types by first appearance;
// each group keeps input order.
func groupByType(points []MeasurementPoint) (order []MeasurementType, groups map[MeasurementType][]MeasurementPoint) {
	groups = make(map[MeasurementType][]MeasurementPoint)
	for _, p := range points {
		if _, ok := groups[p.Type]; !ok {
			order = append(order, p.Type)
		}
		groups[p.Type] = append(groups[p.Type], p)
	}
	return order, groups
}

func valuesOf(points []MeasurementPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}

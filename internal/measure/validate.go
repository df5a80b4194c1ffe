package measure

import "fmt"

// Range is an inclusive plausible interval in centimetres.
type Range struct {
	Min, Max float64
}

// PlausibleRanges holds the accepted mean of each known type after
// calibration.
var PlausibleRanges = map[MeasurementType]Range{
	Height:        {140, 220},
	ShoulderWidth: {30, 70},
	TorsoLength:   {40, 80},
	ArmLength:     {50, 90},
	LegLength:     {60, 120},
	HipWidth:      {25, 60},
}

// Validate checks per-type means against PlausibleRanges and the total count
// against minSamples. It never blocks profile creation; callers attach the
// issues to the report.
func Validate(points []MeasurementPoint, minSamples int) (valid bool, issues []string) {
	stats := Statistics(points)
	for _, t := range KnownTypes {
		s, ok := stats[t]
		if !ok {
			continue
		}
		r := PlausibleRanges[t]
		if s.Mean < r.Min || s.Mean > r.Max {
			issues = append(issues, fmt.Sprintf("%s out of reasonable range: %.1fcm", t, s.Mean))
		}
	}
	total := 0
	for _, s := range stats {
		total += s.Count
	}
	if total < minSamples {
		issues = append(issues, fmt.Sprintf("Insufficient data: %d measurements", total))
	}
	return len(issues) == 0, issues
}

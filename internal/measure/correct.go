package measure

import "github.com/banshee-data/ergoscan/internal/calibration"

// ApplyDepthCorrection scales every value by referenceDepth/Depth. Points with
// a non-positive depth keep their value.
func ApplyDepthCorrection(points []MeasurementPoint, referenceDepth float64) []MeasurementPoint {
	out := make([]MeasurementPoint, len(points))
	for i, p := range points {
		out[i] = p
		if p.Depth > 0 {
			out[i].Value = p.Value * referenceDepth / p.Depth
		}
	}
	return out
}

// ApplyCalibrationScaling multiplies every value by the factor of its type,
// 1.0 when the type has none.
func ApplyCalibrationScaling(points []MeasurementPoint, factors map[MeasurementType]float64) []MeasurementPoint {
	out := make([]MeasurementPoint, len(points))
	for i, p := range points {
		out[i] = p
		if f, ok := factors[p.Type]; ok {
			out[i].Value = p.Value * f
		}
	}
	return out
}

// Corrector applies the corrections backed by a calibration table. Without a
// loaded table both corrections return a copy of their input and a warning.
type Corrector struct {
	table *calibration.Table
}

// NewCorrector returns a Corrector over table; nil behaves as an empty table.
func NewCorrector(table *calibration.Table) *Corrector {
	if table == nil {
		table = calibration.Empty()
	}
	return &Corrector{table: table}
}

// Warnings emitted when the calibration table or one of its keys is missing.
const (
	WarnNoDepthCalibration   = "No calibration data available for depth correction"
	WarnNoScaleCalibration   = "No calibration data available for scaling"
	WarnDefaultRefDepth      = "Calibration table has no reference_depth, using 2.0"
	WarnNoScalingFactorTable = "Calibration table has no scaling_factors, using 1.0"
)

// DepthCorrection applies depth correction. applied is false when no table
// was loaded; warning is non-empty whenever a default stood in for a missing
// value.
func (c *Corrector) DepthCorrection(points []MeasurementPoint) (out []MeasurementPoint, applied bool, warning string) {
	if !c.table.Loaded() {
		return append([]MeasurementPoint(nil), points...), false, WarnNoDepthCalibration
	}
	ref, ok := c.table.GetReferenceDepth()
	if !ok {
		warning = WarnDefaultRefDepth
	}
	return ApplyDepthCorrection(points, ref), true, warning
}

// CalibrationScaling applies per-type scale factors with the same reporting
// rules as DepthCorrection.
func (c *Corrector) CalibrationScaling(points []MeasurementPoint) (out []MeasurementPoint, applied bool, warning string) {
	if !c.table.Loaded() {
		return append([]MeasurementPoint(nil), points...), false, WarnNoScaleCalibration
	}
	if !c.table.HasScalingFactors() {
		warning = WarnNoScalingFactorTable
	}
	factors := make(map[MeasurementType]float64, len(c.table.ScalingFactors))
	for k := range c.table.ScalingFactors {
		factors[MeasurementType(k)] = c.table.ScaleFactor(k)
	}
	return ApplyCalibrationScaling(points, factors), true, warning
}

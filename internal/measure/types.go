package measure

import (
	"fmt"
	"math"
)

// MeasurementType names one body measurement. The set is open: unknown types
// flow through every stage but are ignored by the profile, completeness and
// validation tables.
type MeasurementType string

const (
	Height        MeasurementType = "height"
	ShoulderWidth MeasurementType = "shoulder_width"
	TorsoLength   MeasurementType = "torso_length"
	ArmLength     MeasurementType = "arm_length"
	LegLength     MeasurementType = "leg_length"
	HipWidth      MeasurementType = "hip_width"
)

// KnownTypes lists the profile measurement types in profile order.
var KnownTypes = []MeasurementType{Height, ShoulderWidth, TorsoLength, ArmLength, LegLength, HipWidth}

// IsKnown reports whether t is one of KnownTypes.
func (t MeasurementType) IsKnown() bool {
	for _, k := range KnownTypes {
		if t == k {
			return true
		}
	}
	return false
}

// MeasurementPoint is one scalar observation of a body measurement.
// Values are pixels before calibration scaling and centimetres after.
type MeasurementPoint struct {
	Timestamp        float64         `json:"timestamp"`
	Type             MeasurementType `json:"measurement_type"`
	Value            float64         `json:"value"`
	Confidence       float64         `json:"confidence"`
	Depth            float64         `json:"depth"`
	FrameID          int64           `json:"frame_id"`
	LandmarksQuality float64         `json:"landmarks_quality"`
}

// NewMeasurementPoint returns a validated point.
func NewMeasurementPoint(ts float64, typ MeasurementType, value, confidence, depth float64, frameID int64, quality float64) (MeasurementPoint, error) {
	p := MeasurementPoint{
		Timestamp:        ts,
		Type:             typ,
		Value:            value,
		Confidence:       confidence,
		Depth:            depth,
		FrameID:          frameID,
		LandmarksQuality: quality,
	}
	if err := p.Validate(); err != nil {
		return MeasurementPoint{}, err
	}
	return p, nil
}

// Validate checks the field ranges of a point.
func (p MeasurementPoint) Validate() error {
	switch {
	case p.Type == "":
		return fmt.Errorf("measurement type is empty")
	case math.IsNaN(p.Value) || p.Value < 0:
		return fmt.Errorf("%s value must be non-negative, got %v", p.Type, p.Value)
	case !inUnit(p.Confidence):
		return fmt.Errorf("%s confidence out of range [0,1]: %v", p.Type, p.Confidence)
	case !(p.Depth > 0):
		return fmt.Errorf("%s depth must be positive, got %v", p.Type, p.Depth)
	case !inUnit(p.LandmarksQuality):
		return fmt.Errorf("%s landmarks quality out of range [0,1]: %v", p.Type, p.LandmarksQuality)
	case p.FrameID < 0:
		return fmt.Errorf("%s frame id must be non-negative, got %d", p.Type, p.FrameID)
	}
	return nil
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }

// ValidatePoints validates every point and checks that frame ids never
// decrease.
func ValidatePoints(points []MeasurementPoint) error {
	var last int64
	for i, p := range points {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("measurement %d: %w", i, err)
		}
		if i > 0 && p.FrameID < last {
			return fmt.Errorf("measurement %d: frame id %d decreases from %d", i, p.FrameID, last)
		}
		last = p.FrameID
	}
	return nil
}

// weight is the aggregation weight of a point.
func (p MeasurementPoint) weight() float64 {
	return p.Confidence * p.LandmarksQuality
}

// BodyProfile is the consolidated per-user output. A measurement of 0 means
// the type was not measured.
type BodyProfile struct {
	UserID             string  `json:"user_id"`
	Height             float64 `json:"height"`
	ShoulderWidth      float64 `json:"shoulder_width"`
	TorsoLength        float64 `json:"torso_length"`
	ArmLength          float64 `json:"arm_length"`
	LegLength          float64 `json:"leg_length"`
	HipWidth           float64 `json:"hip_width"`
	ScaleFactor        float64 `json:"scale_factor"`
	CalibrationQuality float64 `json:"calibration_quality"`
	MeasurementCount   int     `json:"measurement_count"`
	Timestamp          float64 `json:"timestamp"`
}

// Measurement returns the profile value for a known type.
func (b BodyProfile) Measurement(t MeasurementType) (float64, bool) {
	switch t {
	case Height:
		return b.Height, true
	case ShoulderWidth:
		return b.ShoulderWidth, true
	case TorsoLength:
		return b.TorsoLength, true
	case ArmLength:
		return b.ArmLength, true
	case LegLength:
		return b.LegLength, true
	case HipWidth:
		return b.HipWidth, true
	}
	return 0, false
}

func (b *BodyProfile) set(t MeasurementType, v float64) {
	switch t {
	case Height:
		b.Height = v
	case ShoulderWidth:
		b.ShoulderWidth = v
	case TorsoLength:
		b.TorsoLength = v
	case ArmLength:
		b.ArmLength = v
	case LegLength:
		b.LegLength = v
	case HipWidth:
		b.HipWidth = v
	}
}

// Measurements returns the six profile values keyed by type.
func (b BodyProfile) Measurements() map[MeasurementType]float64 {
	out := make(map[MeasurementType]float64, len(KnownTypes))
	for _, t := range KnownTypes {
		out[t], _ = b.Measurement(t)
	}
	return out
}

// ProcessingReport describes one pipeline run.
type ProcessingReport struct {
	InitialCount    int      `json:"initial_count"`
	FinalCount      int      `json:"final_count"`
	ProcessingSteps []string `json:"processing_steps"`
	QualityScore    float64  `json:"quality_score"`
	Issues          []string `json:"issues"`
	Warnings        []string `json:"warnings,omitempty"`
	Valid           bool     `json:"valid"`
}

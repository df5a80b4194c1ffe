package measure

import (
	"fmt"
	"sync/atomic"

	"github.com/banshee-data/ergoscan/internal/calibration"
	"github.com/banshee-data/ergoscan/internal/config"
	"github.com/banshee-data/ergoscan/internal/monitoring"
	"github.com/banshee-data/ergoscan/internal/timeutil"
)

// Pipeline runs the fixed refinement sequence: confidence filter, outlier
// removal, temporal smoothing, depth correction, calibration scaling,
// profile build, validation and quality score. Smoothing runs before
// calibration scaling so rejected outliers never reach the moving average,
// and validation runs after scaling so ranges apply to calibrated units.
//
// A Pipeline is safe for concurrent use.
type Pipeline struct {
	minConfidence    float64
	outlierThreshold float64
	minGroupSize     int
	minSamples       int
	smoothingWindow  int

	table atomic.Pointer[calibration.Table]
	clock timeutil.Clock
}

// NewPipeline builds a pipeline from cfg. A nil cfg uses defaults, a nil table
// disables calibration corrections and a nil clock uses the real clock.
// Invalid tuning values are rejected with an error wrapping
// config.ErrInvalidConfig.
func NewPipeline(cfg *config.RefinementConfig, table *calibration.Table, clock timeutil.Clock) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.DefaultRefinementConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	if table == nil {
		table = calibration.Empty()
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	p := &Pipeline{
		minConfidence:    cfg.GetMinConfidence(),
		outlierThreshold: cfg.GetOutlierThreshold(),
		minGroupSize:     cfg.GetMinGroupSize(),
		minSamples:       cfg.GetMinSamples(),
		smoothingWindow:  cfg.GetSmoothingWindow(),
		clock:            clock,
	}
	p.table.Store(table)
	return p, nil
}

// SetCalibration replaces the calibration table. Runs already in progress
// keep the table they started with.
func (p *Pipeline) SetCalibration(table *calibration.Table) {
	if table == nil {
		table = calibration.Empty()
	}
	p.table.Store(table)
}

// Calibration returns the current calibration table.
func (p *Pipeline) Calibration() *calibration.Table {
	return p.table.Load()
}

// MinSamples returns the configured minimum sample count.
func (p *Pipeline) MinSamples() int {
	return p.minSamples
}

// Result is the outcome of one run. Refined holds the calibrated points the
// profile was built from.
type Result struct {
	Profile BodyProfile        `json:"profile"`
	Report  ProcessingReport   `json:"report"`
	Refined []MeasurementPoint `json:"refined,omitempty"`
}

// Process refines points into a profile for userID. It never fails: missing
// calibration, insufficient data and out-of-range means are reported in the
// ProcessingReport and the profile is returned regardless.
func (p *Pipeline) Process(points []MeasurementPoint, userID string) (BodyProfile, ProcessingReport) {
	r := p.Run(points, userID)
	return r.Profile, r.Report
}

// Run is Process that also returns the refined points.
func (p *Pipeline) Run(points []MeasurementPoint, userID string) Result {
	table := p.table.Load()
	corrector := NewCorrector(table)
	initial := len(points)
	report := ProcessingReport{InitialCount: initial}
	step := func(format string, v ...interface{}) {
		report.ProcessingSteps = append(report.ProcessingSteps, fmt.Sprintf(format, v...))
	}
	warn := func(w string) {
		if w == "" {
			return
		}
		report.Warnings = append(report.Warnings, w)
		monitoring.Warnf("%s", w)
	}

	filtered := FilterByConfidence(points, p.minConfidence)
	step("Step 1 - Confidence filter: %d/%d retained", len(filtered), initial)

	cleaned, removed := removeOutliers(filtered, p.outlierThreshold, p.minGroupSize)
	for _, r := range removed {
		monitoring.Logf("removed outlier: %s = %.2f", r.Type, r.Value)
	}
	step("Step 2 - Outlier removal: %d/%d retained", len(cleaned), initial)

	smoothed := Smooth(cleaned, p.smoothingWindow)
	step("Step 3 - Temporal smoothing applied: %d/%d", len(smoothed), len(cleaned))

	depthCorrected, applied, w := corrector.DepthCorrection(smoothed)
	warn(w)
	if applied {
		step("Step 4 - Depth correction applied: %d/%d", len(depthCorrected), len(smoothed))
	} else {
		step("Step 4 - Depth correction skipped: no calibration data")
	}

	scaled, applied, w := corrector.CalibrationScaling(depthCorrected)
	warn(w)
	if applied {
		step("Step 5 - Calibration scaling applied: %d/%d", len(scaled), len(depthCorrected))
	} else {
		step("Step 5 - Calibration scaling skipped: no calibration data")
	}

	profile := NewProfileBuilder(table, p.clock).Build(scaled, userID)
	step("Step 6 - Profile built from %d/%d measurements", profile.MeasurementCount, len(scaled))

	valid, issues := Validate(scaled, p.minSamples)
	verdict := "PASSED"
	if !valid {
		verdict = "FAILED"
	}
	step("Step 7 - Validation: %s (%d/%d measurements, %d issues)", verdict, len(scaled), len(scaled), len(issues))

	report.QualityScore = profile.CalibrationQuality
	step("Step 8 - Quality score: %.2f/10 from %d/%d measurements", report.QualityScore, len(scaled), len(scaled))

	report.FinalCount = len(scaled)
	report.Issues = issues
	report.Valid = valid
	if report.Issues == nil {
		report.Issues = []string{}
	}

	calibrationSource := table.Source()
	if calibrationSource == "" {
		calibrationSource = "none"
	}
	monitoring.Logf("refinement complete for %s: %d/%d measurements retained, quality %.2f/10, calibration %s",
		userID, report.FinalCount, initial, report.QualityScore, calibrationSource)
	return Result{Profile: profile, Report: report, Refined: scaled}
}

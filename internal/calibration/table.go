// Package calibration loads the optional correction table used by the
// refinement pipeline: a reference camera depth, per-type scale factors and a
// global scale factor. A missing table is not an error; corrections that
// depend on it become no-ops and the pipeline reports a warning.
package calibration

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/banshee-data/ergoscan/internal/fsutil"
	"github.com/banshee-data/ergoscan/internal/monitoring"
)

const (
	// DefaultReferenceDepth is the camera distance in metres assumed when the
	// table does not name one.
	DefaultReferenceDepth = 2.0
	// DefaultGlobalScaleFactor is the calibration multiplier used when the
	// table does not name one.
	DefaultGlobalScaleFactor = 1.0

	maxTableSize = 1 * 1024 * 1024 // 1MB
)

// Table is the calibration table. Fields are pointers (or a nil map) so that
// absence can be told apart from an explicit value.
type Table struct {
	ReferenceDepth    *float64           `json:"reference_depth,omitempty"`
	ScalingFactors    map[string]float64 `json:"scaling_factors,omitempty"`
	GlobalScaleFactor *float64           `json:"global_scale_factor,omitempty"`

	loaded bool
	source string
}

// Empty returns a table that was never loaded. Every correction backed by it
// is a no-op.
func Empty() *Table {
	return &Table{}
}

// Load reads a calibration table from path. A file that does not exist yields
// an empty, not-loaded table and a nil error.
func Load(fsys fsutil.FileSystem, path string) (*Table, error) {
	if path == "" || !fsys.Exists(path) {
		monitoring.Warnf("calibration table %q not found, depth and scale corrections disabled", path)
		return Empty(), nil
	}

	info, err := fsys.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat calibration table: %w", err)
	}
	if info.Size() > maxTableSize {
		return nil, fmt.Errorf("calibration table too large: %d bytes (max %d)", info.Size(), maxTableSize)
	}

	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calibration table: %w", err)
	}

	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load calibration table %s: %w", path, err)
	}
	t.source = path
	monitoring.Logf("loaded calibration table %s (%d scaling factors)", path, len(t.ScalingFactors))
	return t, nil
}

// Parse decodes and validates a calibration table from JSON. The result is
// marked as loaded when it sets at least one key; an empty object behaves
// like a missing table.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse calibration JSON: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.loaded = t.ReferenceDepth != nil || t.ScalingFactors != nil || t.GlobalScaleFactor != nil
	return &t, nil
}

// Validate checks that every present value is a finite positive number.
func (t *Table) Validate() error {
	if t.ReferenceDepth != nil && !positive(*t.ReferenceDepth) {
		return fmt.Errorf("reference_depth must be positive, got %v", *t.ReferenceDepth)
	}
	if t.GlobalScaleFactor != nil && !positive(*t.GlobalScaleFactor) {
		return fmt.Errorf("global_scale_factor must be positive, got %v", *t.GlobalScaleFactor)
	}
	for typ, f := range t.ScalingFactors {
		if !positive(f) {
			return fmt.Errorf("scaling factor for %s must be positive, got %v", typ, f)
		}
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Loaded reports whether the table came from a file or from Parse.
func (t *Table) Loaded() bool {
	return t != nil && t.loaded
}

// Source returns the path the table was loaded from, if any.
func (t *Table) Source() string {
	if t == nil {
		return ""
	}
	return t.source
}

// GetReferenceDepth returns the reference depth and whether the table named
// one. The default is returned when it did not.
func (t *Table) GetReferenceDepth() (float64, bool) {
	if t == nil || t.ReferenceDepth == nil {
		return DefaultReferenceDepth, false
	}
	return *t.ReferenceDepth, true
}

// HasScalingFactors reports whether the table carries any per-type factor.
func (t *Table) HasScalingFactors() bool {
	return t != nil && len(t.ScalingFactors) > 0
}

// ScaleFactor returns the factor for a measurement type, 1.0 when absent.
func (t *Table) ScaleFactor(measurementType string) float64 {
	if t == nil {
		return 1.0
	}
	if f, ok := t.ScalingFactors[measurementType]; ok {
		return f
	}
	return 1.0
}

// GetGlobalScaleFactor returns the global factor or the default.
func (t *Table) GetGlobalScaleFactor() float64 {
	if t == nil || t.GlobalScaleFactor == nil {
		return DefaultGlobalScaleFactor
	}
	return *t.GlobalScaleFactor
}

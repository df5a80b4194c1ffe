package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical refinement defaults file.
const DefaultConfigPath = "config/refinement.defaults.json"

// ErrInvalidConfig is wrapped by every validation failure so callers can
// distinguish a bad tuning file from an I/O error.
var ErrInvalidConfig = errors.New("invalid configuration")

// RefinementConfig holds the tuning parameters of the measurement refinement
// pipeline and the scan session. Fields are pointers so a partial JSON file
// only overrides what it names; the Get* accessors supply defaults.
type RefinementConfig struct {
	// Filtering
	MinConfidence    *float64 `json:"min_confidence,omitempty"`
	OutlierThreshold *float64 `json:"outlier_threshold,omitempty"` // z-score
	MinGroupSize     *int     `json:"min_group_size,omitempty"`
	MinSamples       *int     `json:"min_samples,omitempty"`

	// Smoothing
	SmoothingWindow *int `json:"smoothing_window,omitempty"`

	// Landmark normalization
	TargetHeight *float64 `json:"target_height,omitempty"`
	CenterPoint  *string  `json:"center_point,omitempty"` // "", "chest", "hip" or a landmark name

	// Calibration
	CalibrationFile *string `json:"calibration_file,omitempty"`

	// Scan session
	SessionWindowFrames *int `json:"session_window_frames,omitempty"`
	RecentFrames        *int `json:"recent_frames,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyRefinementConfig returns a RefinementConfig with all fields set to nil.
func EmptyRefinementConfig() *RefinementConfig {
	return &RefinementConfig{}
}

// DefaultRefinementConfig returns a RefinementConfig with every field set to
// its production default.
func DefaultRefinementConfig() *RefinementConfig {
	return &RefinementConfig{
		MinConfidence:       ptrFloat64(0.5),
		OutlierThreshold:    ptrFloat64(2.5),
		MinGroupSize:        ptrInt(3),
		MinSamples:          ptrInt(5),
		SmoothingWindow:     ptrInt(5),
		TargetHeight:        ptrFloat64(1.0),
		CenterPoint:         ptrString(""),
		CalibrationFile:     ptrString("ergoscan_calibration.json"),
		SessionWindowFrames: ptrInt(300),
		RecentFrames:        ptrInt(10),
	}
}

// LoadRefinementConfig loads a RefinementConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadRefinementConfig(path string) (*RefinementConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRefinementConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *RefinementConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/<pkg>/
		"../../../" + DefaultConfigPath, // from cmd/<tool>/ nested dirs
	}
	for _, path := range candidates {
		if cfg, err := LoadRefinementConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid. Every error wraps
// ErrInvalidConfig.
func (c *RefinementConfig) Validate() error {
	if c.MinConfidence != nil {
		if *c.MinConfidence < 0 || *c.MinConfidence > 1 {
			return fmt.Errorf("%w: min_confidence must be between 0 and 1, got %f", ErrInvalidConfig, *c.MinConfidence)
		}
	}
	if c.OutlierThreshold != nil && *c.OutlierThreshold <= 0 {
		return fmt.Errorf("%w: outlier_threshold must be positive, got %f", ErrInvalidConfig, *c.OutlierThreshold)
	}
	if c.MinGroupSize != nil && *c.MinGroupSize < 1 {
		return fmt.Errorf("%w: min_group_size must be at least 1, got %d", ErrInvalidConfig, *c.MinGroupSize)
	}
	if c.MinSamples != nil && *c.MinSamples < 0 {
		return fmt.Errorf("%w: min_samples must be non-negative, got %d", ErrInvalidConfig, *c.MinSamples)
	}
	if c.SmoothingWindow != nil && *c.SmoothingWindow < 1 {
		return fmt.Errorf("%w: smoothing_window must be at least 1, got %d", ErrInvalidConfig, *c.SmoothingWindow)
	}
	if c.TargetHeight != nil && *c.TargetHeight <= 0 {
		return fmt.Errorf("%w: target_height must be positive, got %f", ErrInvalidConfig, *c.TargetHeight)
	}
	if c.SessionWindowFrames != nil && *c.SessionWindowFrames < 1 {
		return fmt.Errorf("%w: session_window_frames must be at least 1, got %d", ErrInvalidConfig, *c.SessionWindowFrames)
	}
	if c.RecentFrames != nil && *c.RecentFrames < 0 {
		return fmt.Errorf("%w: recent_frames must be non-negative, got %d", ErrInvalidConfig, *c.RecentFrames)
	}
	return nil
}

// GetMinConfidence returns the min_confidence value or the default.
func (c *RefinementConfig) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return 0.5 // default
	}
	return *c.MinConfidence
}

// GetOutlierThreshold returns the outlier_threshold value or the default.
func (c *RefinementConfig) GetOutlierThreshold() float64 {
	if c.OutlierThreshold == nil {
		return 2.5 // default
	}
	return *c.OutlierThreshold
}

// GetMinGroupSize returns the min_group_size value or the default.
func (c *RefinementConfig) GetMinGroupSize() int {
	if c.MinGroupSize == nil {
		return 3 // default
	}
	return *c.MinGroupSize
}

// GetMinSamples returns the min_samples value or the default.
func (c *RefinementConfig) GetMinSamples() int {
	if c.MinSamples == nil {
		return 5 // default
	}
	return *c.MinSamples
}

// GetSmoothingWindow returns the smoothing_window value or the default.
func (c *RefinementConfig) GetSmoothingWindow() int {
	if c.SmoothingWindow == nil {
		return 5 // default
	}
	return *c.SmoothingWindow
}

// GetTargetHeight returns the target_height value or the default.
func (c *RefinementConfig) GetTargetHeight() float64 {
	if c.TargetHeight == nil {
		return 1.0 // default
	}
	return *c.TargetHeight
}

// GetCenterPoint returns the center_point value or the default (centroid).
func (c *RefinementConfig) GetCenterPoint() string {
	if c.CenterPoint == nil {
		return ""
	}
	return *c.CenterPoint
}

// GetCalibrationFile returns the calibration_file value or the default.
func (c *RefinementConfig) GetCalibrationFile() string {
	if c.CalibrationFile == nil || *c.CalibrationFile == "" {
		return "ergoscan_calibration.json" // default
	}
	return *c.CalibrationFile
}

// GetSessionWindowFrames returns the session_window_frames value or the default.
func (c *RefinementConfig) GetSessionWindowFrames() int {
	if c.SessionWindowFrames == nil {
		return 300 // default
	}
	return *c.SessionWindowFrames
}

// GetRecentFrames returns the recent_frames value or the default.
func (c *RefinementConfig) GetRecentFrames() int {
	if c.RecentFrames == nil {
		return 10 // default
	}
	return *c.RecentFrames
}

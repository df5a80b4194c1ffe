package measure

import (
	"math"
	"strings"
	"testing"
)

func TestNewMeasurementPoint(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		conf    float64
		depth   float64
		quality float64
		frame   int64
		wantErr string
	}{
		{"valid", 120, 0.9, 2.0, 0.8, 1, ""},
		{"negative value", -1, 0.9, 2.0, 0.8, 1, "value must be non-negative"},
		{"nan value", math.NaN(), 0.9, 2.0, 0.8, 1, "value must be non-negative"},
		{"confidence above one", 120, 1.1, 2.0, 0.8, 1, "confidence out of range"},
		{"zero depth", 120, 0.9, 0, 0.8, 1, "depth must be positive"},
		{"quality below zero", 120, 0.9, 2.0, -0.1, 1, "landmarks quality out of range"},
		{"negative frame", 120, 0.9, 2.0, 0.8, -1, "frame id must be non-negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewMeasurementPoint(1.0, Height, tt.value, tt.conf, tt.depth, tt.frame, tt.quality)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if p.Value != tt.value || p.Type != Height {
					t.Errorf("point = %+v", p)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePoints_FrameOrder(t *testing.T) {
	points := []MeasurementPoint{point(0, Height, 170, 0.9), point(1, Height, 171, 0.9)}
	if err := ValidatePoints(points); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	points[0].FrameID = 5
	points[1].FrameID = 4
	if err := ValidatePoints(points); err == nil || !strings.Contains(err.Error(), "decreases") {
		t.Errorf("expected frame order error, got %v", err)
	}
}

func TestMeasurementTypeIsKnown(t *testing.T) {
	for _, k := range KnownTypes {
		if !k.IsKnown() {
			t.Errorf("%s should be known", k)
		}
	}
	if MeasurementType("neck_length").IsKnown() {
		t.Error("neck_length should not be known")
	}
}

func TestBodyProfileMeasurements(t *testing.T) {
	b := BodyProfile{Height: 170, HipWidth: 35}
	m := b.Measurements()
	if len(m) != 6 {
		t.Fatalf("Measurements() has %d entries, want 6", len(m))
	}
	if m[Height] != 170 || m[HipWidth] != 35 || m[ArmLength] != 0 {
		t.Errorf("Measurements() = %v", m)
	}
	if _, ok := b.Measurement("neck_length"); ok {
		t.Error("unknown type should not resolve")
	}
}

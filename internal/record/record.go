// Package record reads and writes calibration records: the JSON bundle of
// one capture with its raw and normalized landmarks, derived measurements
// and camera metadata.
package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/banshee-data/ergoscan/internal/pose"
)

// CurrentVersion is written into records that do not carry a version.
const CurrentVersion = "1.0"

// RequiredKeys are the top-level keys every record must carry.
var RequiredKeys = []string{"version", "timestamp", "raw_landmarks", "measurements", "normalized", "camera_meta"}

// ErrRecordExists is returned by Save when the target exists and overwrite
// was not requested.
var ErrRecordExists = errors.New("record already exists")

// LandmarkSet is one pose's landmarks.
type LandmarkSet struct {
	PoseType  string          `json:"pose_type,omitempty"`
	Landmarks []pose.Landmark `json:"landmarks"`
	Warnings  []string        `json:"warnings,omitempty"`
}

// CameraMeta describes the capture device.
type CameraMeta struct {
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
	FPS    float64 `json:"fps,omitempty"`
	Device string  `json:"device,omitempty"`
}

// Record is a calibration record.
type Record struct {
	Version      string             `json:"version"`
	UserID       string             `json:"user_id,omitempty"`
	PoseType     string             `json:"pose_type,omitempty"`
	Timestamp    string             `json:"timestamp"`
	RawLandmarks LandmarkSet        `json:"raw_landmarks"`
	Measurements map[string]float64 `json:"measurements"`
	Normalized   LandmarkSet        `json:"normalized"`
	CameraMeta   CameraMeta         `json:"camera_meta"`
}

// Build assembles a record for one normalized capture pose. A nil
// measurements map is stored as an empty object.
func Build(userID string, res pose.PoseResult, measurements map[string]float64, meta CameraMeta, now time.Time) *Record {
	if measurements == nil {
		measurements = map[string]float64{}
	}
	return &Record{
		Version:      CurrentVersion,
		UserID:       userID,
		PoseType:     res.Pose,
		Timestamp:    now.UTC().Format(time.RFC3339),
		RawLandmarks: LandmarkSet{PoseType: res.Pose, Landmarks: res.Original},
		Measurements: measurements,
		Normalized:   LandmarkSet{PoseType: res.Pose, Landmarks: res.Normalized, Warnings: res.Warnings},
		CameraMeta:   meta,
	}
}

// ValidationError lists every problem found in a record.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "calibration record failed validation: " + strings.Join(e.Issues, "; ")
}

// Validate checks the raw JSON of a record: required keys, an RFC 3339
// timestamp, object-typed sections, well-formed landmark lists and numeric
// measurements. It returns a *ValidationError listing all issues.
func Validate(data []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil || top == nil {
		return &ValidationError{Issues: []string{"record must be a JSON object"}}
	}
	var issues []string

	var missing []string
	for _, k := range RequiredKeys {
		if _, ok := top[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		issues = append(issues, fmt.Sprintf("missing top-level keys: %v", missing))
	}

	if raw, ok := top["timestamp"]; ok {
		var ts string
		if err := json.Unmarshal(raw, &ts); err != nil {
			issues = append(issues, "timestamp must be an ISO 8601 string")
		} else if _, err := time.Parse(time.RFC3339, ts); err != nil {
			issues = append(issues, fmt.Sprintf("timestamp %q is not RFC 3339", ts))
		}
	}

	for _, key := range []string{"raw_landmarks", "normalized"} {
		if raw, ok := top[key]; ok {
			issues = append(issues, validateLandmarkSet(key, raw)...)
		}
	}

	if raw, ok := top["measurements"]; ok && !isNull(raw) {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			issues = append(issues, "measurements must be an object")
		} else {
			for name, v := range m {
				var f float64
				if err := json.Unmarshal(v, &f); err != nil {
					issues = append(issues, fmt.Sprintf("measurement %s must be a number", name))
				}
			}
		}
	}

	if raw, ok := top["camera_meta"]; ok && !isNull(raw) {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			issues = append(issues, "camera_meta must be an object")
		}
	}

	if len(issues) > 0 {
		sort.Strings(issues)
		return &ValidationError{Issues: issues}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

func validateLandmarkSet(key string, raw json.RawMessage) []string {
	if isNull(raw) {
		return nil
	}
	var set map[string]json.RawMessage
	if err := json.Unmarshal(raw, &set); err != nil {
		return []string{key + " must be an object"}
	}
	lms, ok := set["landmarks"]
	if !ok || isNull(lms) {
		return nil
	}
	var landmarks []pose.Landmark
	if err := json.Unmarshal(lms, &landmarks); err != nil {
		return []string{key + ".landmarks must be a list of landmarks"}
	}
	if err := pose.ValidateLandmarks(landmarks); err != nil {
		return []string{fmt.Sprintf("%s.landmarks: %v", key, err)}
	}
	return nil
}

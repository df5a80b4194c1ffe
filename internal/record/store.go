package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/banshee-data/ergoscan/internal/fsutil"
	"github.com/banshee-data/ergoscan/internal/measure"
	"github.com/banshee-data/ergoscan/internal/monitoring"
	"github.com/banshee-data/ergoscan/internal/security"
)

// maxRecordSize caps files read by Load.
const maxRecordSize = 16 * 1024 * 1024

const filenameTimeLayout = "2006-01-02T15-04-05Z"

// userTag is "user-<id>" or "anon" when the id sanitizes to nothing.
func userTag(userID string) string {
	if id := security.SanitizeID(userID); id != "" {
		return "user-" + id
	}
	return "anon"
}

// DefaultFilename names a calibration record, for example
// calibration_user-abc123_2025-10-30T22-00-00Z.json.
func DefaultFilename(userID string, now time.Time) string {
	return fmt.Sprintf("calibration_%s_%s.json", userTag(userID), now.UTC().Format(filenameTimeLayout))
}

// ProfileFilename names a saved body profile.
func ProfileFilename(p measure.BodyProfile) string {
	return fmt.Sprintf("body_profile_%s_%d.json", userTag(p.UserID), int64(p.Timestamp))
}

// SessionFilename names a saved scan session.
func SessionFilename(userID string, now time.Time) string {
	return fmt.Sprintf("scan_session_%s_%d.json", userTag(userID), now.Unix())
}

// SaveOptions control Save.
type SaveOptions struct {
	// Filename defaults to DefaultFilename.
	Filename  string
	Overwrite bool
}

// Save validates rec and writes it into dir atomically, filling in the
// version and timestamp when they are empty. It returns the written path.
func Save(fsys fsutil.FileSystem, dir string, rec *Record, opts SaveOptions, now time.Time) (string, error) {
	if rec == nil {
		return "", errors.New("nil record")
	}
	out := *rec
	if out.Version == "" {
		out.Version = CurrentVersion
	}
	if out.Timestamp == "" {
		out.Timestamp = now.UTC().Format(time.RFC3339)
	}
	if out.Measurements == nil {
		out.Measurements = map[string]float64{}
	}
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}
	if err := Validate(data); err != nil {
		return "", err
	}

	name := opts.Filename
	if name == "" {
		name = DefaultFilename(out.UserID, now)
	}
	path, err := security.JoinWithin(dir, name)
	if err != nil {
		return "", err
	}
	if err := WriteJSONFile(fsys, path, data, opts.Overwrite); err != nil {
		return "", err
	}
	monitoring.Logf("saved calibration record %s", path)
	return path, nil
}

// WriteJSONFile atomically writes already encoded JSON to path, creating
// the parent directory. Existing files are only replaced when overwrite is
// set.
func WriteJSONFile(fsys fsutil.FileSystem, path string, data []byte, overwrite bool) error {
	if fsys.Exists(path) && !overwrite {
		return fmt.Errorf("%w: %s", ErrRecordExists, path)
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := fsutil.AtomicWriteFile(fsys, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Load reads and validates a record.
func Load(fsys fsutil.FileSystem, path string) (*Record, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat record: %w", err)
	}
	if info.Size() > maxRecordSize {
		return nil, fmt.Errorf("record file too large: %d bytes (max %d)", info.Size(), maxRecordSize)
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	if err := Validate(data); err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse record: %w", err)
	}
	return &rec, nil
}

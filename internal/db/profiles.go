package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/ergoscan/internal/measure"
)

// StoredProfile is a body profile with the report of the run that built it.
type StoredProfile struct {
	ID        string                   `json:"profile_id"`
	Profile   measure.BodyProfile      `json:"profile"`
	Report    measure.ProcessingReport `json:"report"`
	CreatedAt time.Time                `json:"created_at"`
}

const profileColumns = `profile_id, user_id, height, shoulder_width, torso_length, arm_length,
	leg_length, hip_width, scale_factor, calibration_quality, measurement_count,
	profile_timestamp, report_json, created_unix`

// SaveProfile stores a profile and its report under a new id.
func (db *DB) SaveProfile(p measure.BodyProfile, report measure.ProcessingReport) (string, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	id := uuid.NewString()
	_, err = db.Exec(
		`INSERT INTO profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.UserID, p.Height, p.ShoulderWidth, p.TorsoLength, p.ArmLength,
		p.LegLength, p.HipWidth, p.ScaleFactor, p.CalibrationQuality, p.MeasurementCount,
		p.Timestamp, string(reportJSON), db.now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert profile: %w", err)
	}
	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (StoredProfile, error) {
	var (
		sp         StoredProfile
		p          = &sp.Profile
		reportJSON string
		created    int64
	)
	if err := row.Scan(
		&sp.ID, &p.UserID, &p.Height, &p.ShoulderWidth, &p.TorsoLength, &p.ArmLength,
		&p.LegLength, &p.HipWidth, &p.ScaleFactor, &p.CalibrationQuality, &p.MeasurementCount,
		&p.Timestamp, &reportJSON, &created,
	); err != nil {
		return StoredProfile{}, err
	}
	if err := json.Unmarshal([]byte(reportJSON), &sp.Report); err != nil {
		return StoredProfile{}, fmt.Errorf("failed to decode report for profile %s: %w", sp.ID, err)
	}
	sp.CreatedAt = time.Unix(created, 0).UTC()
	return sp, nil
}

// GetProfile returns one stored profile, or ErrNotFound.
func (db *DB) GetProfile(id string) (*StoredProfile, error) {
	row := db.QueryRow(`SELECT `+profileColumns+` FROM profiles WHERE profile_id = ?`, id)
	sp, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &sp, nil
}

// ListProfiles returns the newest profiles first. An empty userID lists
// every user. limit <= 0 means 100.
func (db *DB) ListProfiles(userID string, limit int) ([]StoredProfile, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + profileColumns + ` FROM profiles`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_unix DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	out := []StoredProfile{}
	for rows.Next() {
		sp, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteProfile removes a profile, or returns ErrNotFound.
func (db *DB) DeleteProfile(id string) error {
	res, err := db.Exec(`DELETE FROM profiles WHERE profile_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	return nil
}

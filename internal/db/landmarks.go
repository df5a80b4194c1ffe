package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"

	"github.com/banshee-data/ergoscan/internal/pose"
)

// LandmarkSet is one stored pose capture.
type LandmarkSet struct {
	ID         string          `json:"set_id"`
	UserID     string          `json:"user_id"`
	PoseType   string          `json:"pose_type"`
	Normalized bool            `json:"normalized"`
	Landmarks  []pose.Landmark `json:"landmarks"`
	CreatedAt  time.Time       `json:"created_at"`
}

func encodeLandmarks(landmarks []pose.Landmark) ([]byte, error) {
	data, err := json.Marshal(landmarks)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, data), nil
}

func decodeLandmarks(blob []byte) ([]pose.Landmark, error) {
	data, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress landmarks: %w", err)
	}
	var out []pose.Landmark
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode landmarks: %w", err)
	}
	return out, nil
}

// SaveLandmarkSet stores a landmark set and returns its new id.
func (db *DB) SaveLandmarkSet(userID, poseType string, normalized bool, landmarks []pose.Landmark) (string, error) {
	blob, err := encodeLandmarks(landmarks)
	if err != nil {
		return "", fmt.Errorf("failed to encode landmarks: %w", err)
	}
	id := uuid.NewString()
	_, err = db.Exec(
		`INSERT INTO landmark_sets (set_id, user_id, pose_type, normalized, landmark_count, payload, created_unix)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, userID, poseType, normalized, len(landmarks), blob, db.now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert landmark set: %w", err)
	}
	return id, nil
}

// GetLandmarkSet returns one stored set, or ErrNotFound.
func (db *DB) GetLandmarkSet(id string) (*LandmarkSet, error) {
	var (
		set     LandmarkSet
		blob    []byte
		created int64
	)
	err := db.QueryRow(
		`SELECT set_id, user_id, pose_type, normalized, payload, created_unix FROM landmark_sets WHERE set_id = ?`, id,
	).Scan(&set.ID, &set.UserID, &set.PoseType, &set.Normalized, &blob, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("landmark set %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load landmark set: %w", err)
	}
	if set.Landmarks, err = decodeLandmarks(blob); err != nil {
		return nil, err
	}
	set.CreatedAt = time.Unix(created, 0).UTC()
	return &set, nil
}

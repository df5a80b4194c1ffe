package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/banshee-data/ergoscan/internal/db"
	"github.com/banshee-data/ergoscan/internal/httputil"
	"github.com/banshee-data/ergoscan/internal/measure"
	"github.com/banshee-data/ergoscan/internal/pose"
	"github.com/banshee-data/ergoscan/internal/record"
	"github.com/banshee-data/ergoscan/internal/scan"
	"github.com/banshee-data/ergoscan/internal/security"
	"github.com/banshee-data/ergoscan/internal/units"
	"github.com/banshee-data/ergoscan/internal/version"
	"github.com/banshee-data/ergoscan/internal/viz"
)

const defaultListLimit = 100

type processRequest struct {
	UserID       string                     `json:"user_id"`
	Measurements []measure.MeasurementPoint `json:"measurements"`
}

type processResponse struct {
	Profile   measure.BodyProfile      `json:"profile"`
	Report    measure.ProcessingReport `json:"report"`
	ProfileID string                   `json:"profile_id,omitempty"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := httputil.DecodeJSON(w, r, &req, 0); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := measure.ValidatePoints(req.Measurements); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	profile, report := s.pipeline.Process(req.Measurements, req.UserID)
	resp := processResponse{Profile: profile, Report: report}
	if s.db != nil {
		id, err := s.db.SaveProfile(profile, report)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to store profile: %v", err))
			return
		}
		resp.ProfileID = id
	}
	httputil.WriteJSONOK(w, resp)
}

type normalizeRequest struct {
	Landmarks       []pose.Landmark      `json:"landmarks"`
	PoseType        string               `json:"pose_type,omitempty"`
	TargetHeight    *float64             `json:"target_height,omitempty"`
	CenterPoint     *string              `json:"center_point,omitempty"`
	ReferencePoints pose.ReferencePoints `json:"reference_points,omitempty"`
	UserID          string               `json:"user_id,omitempty"`
	Store           bool                 `json:"store,omitempty"`
}

type normalizeResponse struct {
	pose.PoseResult
	SetID string `json:"set_id,omitempty"`
}

// options resolves request overrides against the server config.
func (req normalizeRequest) options(s *Server) pose.Options {
	opts := pose.Options{
		References:   req.ReferencePoints,
		TargetHeight: s.cfg.GetTargetHeight(),
		Center:       pose.CenterPoint(s.cfg.GetCenterPoint()),
	}
	if req.TargetHeight != nil {
		opts.TargetHeight = *req.TargetHeight
	}
	if req.CenterPoint != nil {
		opts.Center = pose.CenterPoint(*req.CenterPoint)
	}
	return opts
}

func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	var req normalizeRequest
	if err := httputil.DecodeJSON(w, r, &req, 0); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if len(req.Landmarks) == 0 {
		httputil.BadRequest(w, "landmarks are required")
		return
	}
	if req.TargetHeight != nil && *req.TargetHeight <= 0 {
		httputil.BadRequest(w, "target_height must be positive")
		return
	}
	name := req.PoseType
	if name == "" {
		name = "custom"
	}
	res := pose.NormalizeLandmarks(name, req.Landmarks, req.options(s))
	if !res.Success {
		httputil.BadRequest(w, res.Error)
		return
	}
	resp := normalizeResponse{PoseResult: res}
	if req.Store {
		if s.db == nil {
			httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no database configured")
			return
		}
		id, err := s.db.SaveLandmarkSet(req.UserID, name, true, res.Normalized)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to store landmarks: %v", err))
			return
		}
		resp.SetID = id
	}
	httputil.WriteJSONOK(w, resp)
}

// requireDB writes 503 and returns false when no database is configured.
func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no database configured")
		return false
	}
	return true
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	profiles, err := s.db.ListProfiles(r.URL.Query().Get("user_id"), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list profiles: %v", err))
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{"profiles": profiles})
}

// convertProfile returns p with its lengths in the requested units.
func convertProfile(p measure.BodyProfile, unit string) measure.BodyProfile {
	p.Height = units.ConvertLength(p.Height, unit)
	p.ShoulderWidth = units.ConvertLength(p.ShoulderWidth, unit)
	p.TorsoLength = units.ConvertLength(p.TorsoLength, unit)
	p.ArmLength = units.ConvertLength(p.ArmLength, unit)
	p.LegLength = units.ConvertLength(p.LegLength, unit)
	p.HipWidth = units.ConvertLength(p.HipWidth, unit)
	return p
}

type profileResponse struct {
	db.StoredProfile
	Units string `json:"units"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	unit := r.URL.Query().Get("units")
	if unit == "" {
		unit = units.CM
	}
	if !units.IsValid(unit) {
		httputil.BadRequest(w, fmt.Sprintf("invalid units %q: must be one of %s", unit, units.GetValidUnitsString()))
		return
	}
	if !s.requireDB(w) {
		return
	}
	stored, err := s.db.GetProfile(mux.Vars(r)["id"])
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "profile not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load profile: %v", err))
		return
	}
	stored.Profile = convertProfile(stored.Profile, unit)
	httputil.WriteJSONOK(w, profileResponse{StoredProfile: *stored, Units: unit})
}

func (s *Server) handleGetLandmarkSet(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	set, err := s.db.GetLandmarkSet(mux.Vars(r)["id"])
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "landmark set not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load landmark set: %v", err))
		return
	}
	httputil.WriteJSONOK(w, set)
}

type startSessionRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(w, r, &req, 0); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
	}
	sess := s.sessions.Start(req.UserID)
	httputil.WriteJSON(w, http.StatusCreated, sess.Info())
}

// session looks up the {id} session, writing 404 when it is unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*scan.Session, bool) {
	sess, err := s.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		httputil.NotFound(w, err.Error())
		return nil, false
	}
	return sess, true
}

func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, sess.Info())
}

type batchRequest struct {
	Measurements []measure.MeasurementPoint `json:"measurements"`
}

// averagesMessage is returned after every accepted batch, over HTTP and
// the websocket alike.
type averagesMessage struct {
	Averages map[measure.MeasurementType]float64 `json:"averages"`
	Info     scan.Info                           `json:"info"`
}

func averagesOf(sess *scan.Session) averagesMessage {
	return averagesMessage{Averages: sess.RecentAverages(), Info: sess.Info()}
}

// batchStatus maps session errors to HTTP status codes.
func batchStatus(err error) int {
	switch {
	case errors.Is(err, scan.ErrSessionEnded):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) handleSessionBatch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req batchRequest
	if err := httputil.DecodeJSON(w, r, &req, 0); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := sess.AddBatch(req.Measurements); err != nil {
		httputil.WriteJSONError(w, batchStatus(err), err.Error())
		return
	}
	httputil.WriteJSONOK(w, averagesOf(sess))
}

func (s *Server) handleSessionAverages(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, averagesOf(sess))
}

type endSessionResponse struct {
	scan.Result
	ProfileID string `json:"profile_id,omitempty"`
	SavedTo   string `json:"saved_to,omitempty"`
}

// saveSession writes an ended session into the session directory.
func (s *Server) saveSession(res scan.Result) (string, error) {
	path, err := security.JoinWithin(s.sessionDir, record.SessionFilename(res.Info.UserID, s.clock.Now()))
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode session: %w", err)
	}
	if err := record.WriteJSONFile(s.fsys, path, data, false); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	res, err := s.sessions.End(mux.Vars(r)["id"])
	switch {
	case errors.Is(err, scan.ErrSessionNotFound):
		httputil.NotFound(w, err.Error())
		return
	case errors.Is(err, scan.ErrNoMeasurements):
		httputil.WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		httputil.WriteJSONError(w, batchStatus(err), err.Error())
		return
	}
	resp := endSessionResponse{Result: res}
	if s.db != nil {
		id, err := s.db.SaveProfile(res.Profile, res.Report)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to store profile: %v", err))
			return
		}
		resp.ProfileID = id
	}
	if s.sessionDir != "" {
		path, err := s.saveSession(res)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to save session: %v", err))
			return
		}
		resp.SavedTo = path
	}
	httputil.WriteJSONOK(w, resp)
}

type chartRequest struct {
	Title        string                     `json:"title,omitempty"`
	UserID       string                     `json:"user_id,omitempty"`
	Measurements []measure.MeasurementPoint `json:"measurements"`
}

func (s *Server) handleMeasurementChart(w http.ResponseWriter, r *http.Request) {
	var req chartRequest
	if err := httputil.DecodeJSON(w, r, &req, 0); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := measure.ValidatePoints(req.Measurements); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	title := req.Title
	if title == "" {
		title = "Measurements"
	}
	res := s.pipeline.Run(req.Measurements, req.UserID)
	var buf bytes.Buffer
	if err := viz.RenderMeasurementChart(&buf, req.Measurements, res.Refined, title); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

type plotRequest struct {
	normalizeRequest
	Title string `json:"title,omitempty"`
}

func (s *Server) handlePosePlot(w http.ResponseWriter, r *http.Request) {
	var req plotRequest
	if err := httputil.DecodeJSON(w, r, &req, 0); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if len(req.Landmarks) == 0 {
		httputil.BadRequest(w, "landmarks are required")
		return
	}
	res := pose.NormalizeLandmarks("plot", req.Landmarks, req.options(s))
	if !res.Success {
		httputil.BadRequest(w, res.Error)
		return
	}
	title := req.Title
	if title == "" {
		title = req.PoseType
	}
	var buf bytes.Buffer
	if err := viz.WritePosePNG(&buf, res.Normalized, title); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]interface{}{
		"config":  s.cfg,
		"version": version.Version,
		"git_sha": version.GitSHA,
	})
}

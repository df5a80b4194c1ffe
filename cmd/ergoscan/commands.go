package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/banshee-data/ergoscan/internal/api"
	"github.com/banshee-data/ergoscan/internal/calibration"
	"github.com/banshee-data/ergoscan/internal/config"
	"github.com/banshee-data/ergoscan/internal/db"
	"github.com/banshee-data/ergoscan/internal/fsutil"
	"github.com/banshee-data/ergoscan/internal/measure"
	"github.com/banshee-data/ergoscan/internal/pose"
	"github.com/banshee-data/ergoscan/internal/record"
	"github.com/banshee-data/ergoscan/internal/scan"
	"github.com/banshee-data/ergoscan/internal/security"
	"github.com/banshee-data/ergoscan/internal/timeutil"
	"github.com/banshee-data/ergoscan/internal/version"
	"github.com/banshee-data/ergoscan/internal/viz"
)

const maxInputSize = 64 << 20

// clock is replaced in tests.
var clock timeutil.Clock = timeutil.RealClock{}

var fsys fsutil.FileSystem = fsutil.OSFileSystem{}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	return nil
}

func readJSONFile(path string, v interface{}) error {
	info, err := fsys.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() > maxInputSize {
		return fmt.Errorf("%s too large: %d bytes (max %d)", path, info.Size(), maxInputSize)
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// writeOutput writes v as indented JSON to path, or to stdout when path is
// empty.
func writeOutput(stdout io.Writer, path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	data = append(data, '\n')
	if path == "" {
		_, err = stdout.Write(data)
		return err
	}
	return record.WriteJSONFile(fsys, path, data, true)
}

func loadConfig(path string) (*config.RefinementConfig, error) {
	if path == "" {
		return config.DefaultRefinementConfig(), nil
	}
	return config.LoadRefinementConfig(path)
}

// newPipeline loads the calibration table named by the flag or, failing
// that, by the config.
func newPipeline(cfg *config.RefinementConfig, calibrationPath string) (*measure.Pipeline, error) {
	if calibrationPath == "" {
		calibrationPath = cfg.GetCalibrationFile()
	}
	table, err := calibration.Load(fsys, calibrationPath)
	if err != nil {
		return nil, err
	}
	return measure.NewPipeline(cfg, table, clock)
}

type processOutput struct {
	Profile   measure.BodyProfile      `json:"profile"`
	Report    measure.ProcessingReport `json:"report"`
	ProfileID string                   `json:"profile_id,omitempty"`
}

func runProcess(args []string, stdout io.Writer) error {
	fs := newFlagSet("process")
	in := fs.String("in", "", "Raw measurements JSON array (required)")
	user := fs.String("user", "", "User id for the profile")
	calibrationPath := fs.String("calibration", "", "Calibration table (default from config)")
	configPath := fs.String("config", "", "Refinement config JSON")
	dbPath := fs.String("db", "", "Store the profile in this SQLite database")
	out := fs.String("out", "", "Write the profile here instead of stdout")
	profileDir := fs.String("profile-dir", "", "Also save body_profile_<user>_<ts>.json into this directory")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("%w: process: -in is required", errUsage)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	pipeline, err := newPipeline(cfg, *calibrationPath)
	if err != nil {
		return err
	}

	var points []measure.MeasurementPoint
	if err := readJSONFile(*in, &points); err != nil {
		return err
	}
	if err := measure.ValidatePoints(points); err != nil {
		return fmt.Errorf("invalid measurements in %s: %w", *in, err)
	}

	profile, report := pipeline.Process(points, *user)
	result := processOutput{Profile: profile, Report: report}
	values := profile.Measurements()
	for _, typ := range measure.KnownTypes {
		log.Printf("  %-15s %7.2f cm", typ, values[typ])
	}

	if *dbPath != "" {
		database, err := db.NewDB(*dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()
		if result.ProfileID, err = database.SaveProfile(profile, report); err != nil {
			return err
		}
	}
	if *profileDir != "" {
		path, err := security.JoinWithin(*profileDir, record.ProfileFilename(profile))
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(profile, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode profile: %w", err)
		}
		if err := record.WriteJSONFile(fsys, path, data, false); err != nil {
			return err
		}
		log.Printf("saved body profile %s", path)
	}
	return writeOutput(stdout, *out, result)
}

type normalizeOutput struct {
	Results []pose.PoseResult `json:"results"`
	Records []string          `json:"records,omitempty"`
}

// measurementsFor extracts one frame of measurements from raw landmarks.
func measurementsFor(landmarks []pose.Landmark, width, height int) map[string]float64 {
	out := map[string]float64{}
	if width <= 0 || height <= 0 {
		return out
	}
	points, err := scan.ExtractMeasurements(landmarks, scan.Frame{Width: width, Height: height})
	if err != nil {
		log.Printf("no measurements extracted: %v", err)
		return out
	}
	for _, p := range points {
		out[string(p.Type)] = p.Value
	}
	return out
}

func recordFilename(user, poseName string, now time.Time) string {
	base := strings.TrimSuffix(record.DefaultFilename(user, now), ".json")
	if tag := security.SanitizeID(poseName); tag != "" {
		base += "_" + tag
	}
	return base + ".json"
}

func runNormalize(args []string, stdout io.Writer) error {
	fs := newFlagSet("normalize")
	in := fs.String("in", "", "Capture JSON mapping pose name to landmarks (required)")
	configPath := fs.String("config", "", "Refinement config JSON")
	targetHeight := fs.Float64("target-height", 0, "Target body height (default from config)")
	center := fs.String("center", "", "Center point: chest, hip, a landmark name, or empty for centroid")
	out := fs.String("out", "", "Write the results here instead of stdout")
	recordDir := fs.String("record-dir", "", "Save one calibration record per pose into this directory")
	user := fs.String("user", "", "User id for calibration records")
	width := fs.Int("width", 0, "Camera frame width in pixels")
	height := fs.Int("height", 0, "Camera frame height in pixels")
	fps := fs.Float64("fps", 0, "Camera frame rate")
	device := fs.String("device", "", "Camera device name")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("%w: normalize: -in is required", errUsage)
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	opts := pose.Options{TargetHeight: cfg.GetTargetHeight(), Center: pose.CenterPoint(cfg.GetCenterPoint())}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "target-height":
			opts.TargetHeight = *targetHeight
		case "center":
			opts.Center = pose.CenterPoint(*center)
		}
	})
	if opts.TargetHeight <= 0 {
		return fmt.Errorf("%w: normalize: -target-height must be positive", errUsage)
	}

	var capture pose.Capture
	if err := readJSONFile(*in, &capture); err != nil {
		return err
	}
	result := normalizeOutput{Results: pose.NormalizeCapture(capture, opts)}

	now := clock.Now()
	meta := record.CameraMeta{Width: *width, Height: *height, FPS: *fps, Device: *device}
	for _, res := range result.Results {
		log.Print(res.Summary())
		if *recordDir == "" || !res.Success {
			continue
		}
		rec := record.Build(*user, res, measurementsFor(res.Original, *width, *height), meta, now)
		path, err := record.Save(fsys, *recordDir, rec, record.SaveOptions{Filename: recordFilename(*user, res.Pose, now)}, now)
		if err != nil {
			return err
		}
		result.Records = append(result.Records, path)
	}
	return writeOutput(stdout, *out, result)
}

// plotInput accepts either a bare landmark array or a calibration record.
func plotInput(path string) ([]pose.Landmark, string, error) {
	var landmarks []pose.Landmark
	if err := readJSONFile(path, &landmarks); err == nil {
		return landmarks, filepath.Base(path), nil
	}
	rec, err := record.Load(fsys, path)
	if err != nil {
		return nil, "", fmt.Errorf("%s is neither a landmark array nor a calibration record: %w", path, err)
	}
	return rec.Normalized.Landmarks, rec.Normalized.PoseType, nil
}

func runPlot(args []string, stdout io.Writer) error {
	fs := newFlagSet("plot")
	in := fs.String("in", "", "Landmark JSON array or calibration record (required)")
	out := fs.String("out", "", "PNG output path (required)")
	title := fs.String("title", "", "Plot title")
	normalize := fs.Bool("normalize", false, "Normalize the landmarks before plotting")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return fmt.Errorf("%w: plot: -in and -out are required", errUsage)
	}
	landmarks, defaultTitle, err := plotInput(*in)
	if err != nil {
		return err
	}
	if *normalize {
		res := pose.NormalizeLandmarks(defaultTitle, landmarks, pose.DefaultOptions())
		if !res.Success {
			return fmt.Errorf("failed to normalize %s: %s", *in, res.Error)
		}
		landmarks = res.Normalized
	}
	if *title == "" {
		*title = defaultTitle
	}
	if err := viz.SavePosePNG(*out, landmarks, *title); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\n", *out)
	return nil
}

func runServe(args []string) error {
	fs := newFlagSet("serve")
	listen := fs.String("listen", ":8080", "Listen address")
	dbPath := fs.String("db", "", "SQLite database for stored profiles")
	configPath := fs.String("config", "", "Refinement config JSON")
	calibrationPath := fs.String("calibration", "", "Calibration table (default from config)")
	sessionDir := fs.String("session-dir", "", "Save ended scan sessions into this directory")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *listen == "" {
		return fmt.Errorf("%w: serve: listen address is required", errUsage)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	pipeline, err := newPipeline(cfg, *calibrationPath)
	if err != nil {
		return err
	}
	opts := api.Options{Pipeline: pipeline, Config: cfg, Clock: clock, SessionDir: *sessionDir}
	if *dbPath != "" {
		database, err := db.NewDB(*dbPath)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()
		opts.DB = database
	}
	server, err := api.NewServer(opts)
	if err != nil {
		return err
	}
	handler, err := server.Handler()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              *listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Printf("ergoscan %s listening on %s", version.Version, *listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	return nil
}

func runMigrate(args []string, stdout io.Writer) error {
	fs := newFlagSet("migrate")
	dbPath := fs.String("db", "ergoscan.db", "SQLite database path")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	return db.RunMigrateCommand(fs.Args(), *dbPath, stdout)
}

func printVersion(w io.Writer) {
	fmt.Fprintln(w, version.String())
}

package scan

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/ergoscan/internal/config"
	"github.com/banshee-data/ergoscan/internal/measure"
	"github.com/banshee-data/ergoscan/internal/monitoring"
	"github.com/banshee-data/ergoscan/internal/pose"
	"github.com/banshee-data/ergoscan/internal/timeutil"
)

var (
	// ErrSessionEnded is returned by operations on a session after End.
	ErrSessionEnded = errors.New("scan session already ended")
	// ErrNoMeasurements is returned by End when nothing was buffered.
	ErrNoMeasurements = errors.New("no measurements collected")
	// ErrFrameOrder is returned when a batch goes back in frame id.
	ErrFrameOrder = errors.New("frame id went backwards")
)

// Options bound a session buffer.
type Options struct {
	// WindowFrames is the number of most recent frames kept in the buffer.
	WindowFrames int
	// RecentFrames is the number of frames averaged by RecentAverages.
	RecentFrames int
}

// OptionsFromConfig reads the session bounds from cfg.
func OptionsFromConfig(cfg *config.RefinementConfig) Options {
	return Options{
		WindowFrames: cfg.GetSessionWindowFrames(),
		RecentFrames: cfg.GetRecentFrames(),
	}
}

// Info is a point-in-time view of a session.
type Info struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Active    bool      `json:"active"`
	StartedAt time.Time `json:"started_at"`
	Frames    int64     `json:"total_frames"`
	Buffered  int       `json:"buffered_measurements"`
	Collected int       `json:"measurements_collected"`
	LastFrame int64     `json:"last_frame_id"`
}

// Result is the outcome of ending a session.
type Result struct {
	Profile measure.BodyProfile      `json:"body_profile"`
	Report  measure.ProcessingReport `json:"processing_report"`
	Info    Info                     `json:"session_info"`
}

// Session buffers the measurements of one capture run. It is safe for
// concurrent use.
type Session struct {
	id       string
	userID   string
	pipeline *measure.Pipeline
	opts     Options
	started  time.Time

	mu        sync.Mutex
	buffer    []measure.MeasurementPoint
	frames    int64
	collected int
	lastFrame int64
	active    bool
}

// NewSession starts a session that will be refined by pipeline on End.
func NewSession(userID string, pipeline *measure.Pipeline, opts Options, clock timeutil.Clock) *Session {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if opts.WindowFrames < 1 {
		opts.WindowFrames = 1
	}
	if opts.RecentFrames < 1 {
		opts.RecentFrames = 1
	}
	s := &Session{
		id:        uuid.NewString(),
		userID:    userID,
		pipeline:  pipeline,
		opts:      opts,
		started:   clock.Now(),
		lastFrame: -1,
		active:    true,
	}
	monitoring.Logf("scan session %s started for user %q", s.id, userID)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// AddBatch appends the measurements of one or more frames. Points must be
// valid and their frame ids non-decreasing, also across batches. Frames
// older than the window are dropped from the buffer.
func (s *Session) AddBatch(batch []measure.MeasurementPoint) error {
	if err := measure.ValidatePoints(batch); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return ErrSessionEnded
	}
	if len(batch) == 0 {
		return nil
	}
	if batch[0].FrameID < s.lastFrame {
		return fmt.Errorf("%w: %d after %d", ErrFrameOrder, batch[0].FrameID, s.lastFrame)
	}
	for _, p := range batch {
		if p.FrameID != s.lastFrame {
			s.frames++
			s.lastFrame = p.FrameID
		}
	}
	s.buffer = append(s.buffer, batch...)
	s.collected += len(batch)
	s.trimLocked()
	return nil
}

// AddFrame extracts measurements from one landmark frame and buffers them.
// It returns the number of points added.
func (s *Session) AddFrame(landmarks []pose.Landmark, frame Frame) (int, error) {
	points, err := ExtractMeasurements(landmarks, frame)
	if err != nil {
		return 0, err
	}
	if err := s.AddBatch(points); err != nil {
		return 0, err
	}
	return len(points), nil
}

func (s *Session) trimLocked() {
	cutoff := s.lastFrame - int64(s.opts.WindowFrames)
	i := sort.Search(len(s.buffer), func(i int) bool { return s.buffer[i].FrameID > cutoff })
	if i == 0 {
		return
	}
	s.buffer = append(s.buffer[:0:0], s.buffer[i:]...)
}

// RecentAverages returns the unweighted mean value per type over the most
// recent frames.
func (s *Session) RecentAverages() map[measure.MeasurementType]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	sums := make(map[measure.MeasurementType]float64)
	counts := make(map[measure.MeasurementType]int)
	cutoff := s.lastFrame - int64(s.opts.RecentFrames)
	for _, p := range s.buffer {
		if p.FrameID <= cutoff {
			continue
		}
		sums[p.Type] += p.Value
		counts[p.Type]++
	}
	out := make(map[measure.MeasurementType]float64, len(sums))
	for t, sum := range sums {
		out[t] = sum / float64(counts[t])
	}
	return out
}

// Info returns the current session state.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.infoLocked()
}

func (s *Session) infoLocked() Info {
	return Info{
		ID:        s.id,
		UserID:    s.userID,
		Active:    s.active,
		StartedAt: s.started,
		Frames:    s.frames,
		Buffered:  len(s.buffer),
		Collected: s.collected,
		LastFrame: s.lastFrame,
	}
}

// End closes the session and refines the buffered measurements. The buffer
// is cleared whether or not processing succeeds.
func (s *Session) End() (Result, error) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return Result{}, ErrSessionEnded
	}
	s.active = false
	snapshot := s.buffer
	s.buffer = nil
	info := s.infoLocked()
	s.mu.Unlock()

	info.Buffered = len(snapshot)
	if len(snapshot) == 0 {
		return Result{Info: info}, ErrNoMeasurements
	}
	profile, report := s.pipeline.Process(snapshot, s.userID)
	monitoring.Logf("scan session %s ended: %d frames, %d measurements", s.id, info.Frames, info.Collected)
	return Result{Profile: profile, Report: report, Info: info}, nil
}

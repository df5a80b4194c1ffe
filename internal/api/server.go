package api

import (
	"bufio"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/banshee-data/ergoscan/internal/config"
	"github.com/banshee-data/ergoscan/internal/db"
	"github.com/banshee-data/ergoscan/internal/fsutil"
	"github.com/banshee-data/ergoscan/internal/httputil"
	"github.com/banshee-data/ergoscan/internal/measure"
	"github.com/banshee-data/ergoscan/internal/scan"
	"github.com/banshee-data/ergoscan/internal/timeutil"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Options configure a Server. Pipeline is required; DB is optional and
// enables profile storage and the admin routes.
type Options struct {
	Pipeline *measure.Pipeline
	Config   *config.RefinementConfig
	DB       *db.DB
	Clock    timeutil.Clock
	// SessionDir, when set, receives one JSON file per ended scan session.
	SessionDir string
	FS         fsutil.FileSystem
}

type Server struct {
	pipeline   *measure.Pipeline
	cfg        *config.RefinementConfig
	db         *db.DB
	clock      timeutil.Clock
	fsys       fsutil.FileSystem
	sessionDir string
	sessions   *scan.Manager
	upgrader   websocket.Upgrader
}

func NewServer(opts Options) (*Server, error) {
	if opts.Pipeline == nil {
		return nil, errors.New("api server requires a pipeline")
	}
	if opts.Config == nil {
		opts.Config = config.DefaultRefinementConfig()
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.FS == nil {
		opts.FS = fsutil.OSFileSystem{}
	}
	return &Server{
		pipeline:   opts.Pipeline,
		cfg:        opts.Config,
		db:         opts.DB,
		clock:      opts.Clock,
		fsys:       opts.FS,
		sessionDir: opts.SessionDir,
		sessions:   scan.NewManager(opts.Pipeline, scan.OptionsFromConfig(opts.Config), opts.Clock),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API is served to local tools only.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}, nil
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack lets websocket upgrades pass through the middleware.
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	lrw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 100 && statusCode < 200:
		return colorCyan + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// Router returns the API routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(LoggingMiddleware)

	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	r.HandleFunc("/api/process", s.handleProcess).Methods(http.MethodPost)
	r.HandleFunc("/api/normalize", s.handleNormalize).Methods(http.MethodPost)
	r.HandleFunc("/api/profiles", s.handleListProfiles).Methods(http.MethodGet)
	r.HandleFunc("/api/profiles/{id}", s.handleGetProfile).Methods(http.MethodGet)
	r.HandleFunc("/api/landmarks/{id}", s.handleGetLandmarkSet).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions", s.handleStartSession).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}", s.handleSessionInfo).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}/batches", s.handleSessionBatch).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/averages", s.handleSessionAverages).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}/end", s.handleEndSession).Methods(http.MethodPost)
	r.HandleFunc("/api/charts/measurements", s.handleMeasurementChart).Methods(http.MethodPost)
	r.HandleFunc("/api/plots/pose", s.handlePosePlot).Methods(http.MethodPost)
	r.HandleFunc("/api/config", s.handleConfig).Methods(http.MethodGet)

	r.HandleFunc("/ws/sessions/{id}", s.handleSessionSocket).Methods(http.MethodGet)
	return r
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// Handler returns the full HTTP handler: the API router plus, when a
// database is configured, the /debug/ admin routes.
func (s *Server) Handler() (http.Handler, error) {
	root := http.NewServeMux()
	if s.db != nil {
		if err := s.db.AttachAdminRoutes(root); err != nil {
			return nil, err
		}
	}
	root.Handle("/", s.Router())
	return root, nil
}

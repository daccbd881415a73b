package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sawzhang/daily-tech-digest/digest"
	"github.com/sawzhang/daily-tech-digest/metrics"
	"github.com/sawzhang/daily-tech-digest/store"
)

// Runner executes one digest run.
type Runner interface {
	Run(ctx context.Context, opts digest.RunOptions) (*digest.Record, error)
}

// RunLister reads the run ledger.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
	GetRun(ctx context.Context, id string) (store.Run, error)
}

// Options wires the HTTP server.
type Options struct {
	Runner  Runner
	Runs    RunLister
	Metrics *metrics.Metrics
	Logger  *log.Logger
	// Publish is the default for runs triggered without an explicit choice.
	Publish bool
	// RunTimeout bounds a triggered run; zero means no limit.
	RunTimeout time.Duration
}

type Server struct {
	opts    Options
	running atomic.Bool
	wg      sync.WaitGroup
}

func New(opts Options) (*Server, error) {
	if opts.Runner == nil {
		return nil, errors.New("digest runner required")
	}
	if opts.Runs == nil {
		return nil, errors.New("run ledger required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Server{opts: opts}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.opts.Metrics.Handler())
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/", s.handleRunByID)
	return s.logMiddleware(mux)
}

// Wait blocks until background runs started over HTTP have finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

// --- Handlers ---

type triggerReq struct {
	Date    string `json:"date"`
	Publish *bool  `json:"publish"`
}

type triggerResp struct {
	Status string         `json:"status"`
	Run    *digest.Record `json:"run,omitempty"`
	Error  string         `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "running": s.running.Load()})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		runs, err := s.opts.Runs.ListRuns(r.Context(), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if runs == nil {
			runs = []store.Run{}
		}
		writeJSON(w, http.StatusOK, runs)
	case http.MethodPost:
		s.handleTrigger(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleTrigger starts a run. With ?wait=1 it responds when the run ends,
// otherwise it returns 202 immediately. Overlapping runs get 409.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	opts := digest.RunOptions{Publish: s.opts.Publish}
	if req.Publish != nil {
		opts.Publish = *req.Publish
	}
	if req.Date != "" {
		d, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		opts.Date = d
	}

	if !s.running.CompareAndSwap(false, true) {
		writeJSON(w, http.StatusConflict, triggerResp{Status: "busy", Error: digest.ErrRunInProgress.Error()})
		return
	}

	if r.URL.Query().Get("wait") == "1" {
		defer s.running.Store(false)
		// the run outlives the client connection
		rec, err := s.execute(context.WithoutCancel(r.Context()), opts)
		switch {
		case errors.Is(err, digest.ErrRunInProgress):
			writeJSON(w, http.StatusConflict, triggerResp{Status: "busy", Error: err.Error()})
		case err != nil && rec == nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		case err != nil:
			writeJSON(w, http.StatusBadGateway, triggerResp{Status: string(rec.Status), Run: rec, Error: err.Error()})
		default:
			writeJSON(w, http.StatusOK, triggerResp{Status: string(rec.Status), Run: rec})
		}
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		if _, err := s.execute(context.Background(), opts); err != nil {
			s.opts.Logger.Printf("[server] triggered run failed: %v", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, triggerResp{Status: "started"})
}

func (s *Server) execute(ctx context.Context, opts digest.RunOptions) (*digest.Record, error) {
	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}
	return s.opts.Runner.Run(ctx, opts)
}

func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	run, err := s.opts.Runs.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		path := routeLabel(r.URL.Path)
		s.opts.Metrics.ObserveHTTP(r.Method, path, rec.status)
		s.opts.Logger.Printf("[server] %s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

// routeLabel collapses run ids so metric labels stay bounded.
func routeLabel(path string) string {
	switch {
	case path == "" || path == "/":
		return "/"
	case strings.HasPrefix(path, "/api/runs/"):
		return "/api/runs/{id}"
	case path == "/api/runs", path == "/healthz", path == "/metrics":
		return path
	default:
		return "other"
	}
}

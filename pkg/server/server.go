package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/elonfeng/debateradar/internal/pipeline"
	"github.com/elonfeng/debateradar/internal/store"
)

// Runner triggers a pipeline run.
type Runner interface {
	Run(ctx context.Context, date string) (*pipeline.Result, error)
	Today() string
}

// Server provides the HTTP API.
type Server struct {
	store  store.Store
	runner Runner
	logger *log.Logger
	port   int
}

// New creates a new HTTP server. runner may be nil, which disables
// POST /api/v1/run.
func New(s store.Store, runner Runner, logger *log.Logger, port int) *Server {
	if port == 0 {
		port = 8080
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Server{
		store:  s,
		runner: runner,
		logger: logger,
		port:   port,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/candidates", s.handleCandidates)
	mux.HandleFunc("/api/v1/topics", s.handleTopics)
	mux.HandleFunc("/api/v1/topics/today", s.handleTopicToday)
	mux.HandleFunc("/api/v1/run", s.handleRun)
	return mux
}

// ListenAndServe starts the HTTP server and shuts it down when ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("debateradar server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	run, err := s.store.LatestRun(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{
			"data":  []store.Candidate{},
			"count": 0,
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	candidates, err := s.store.ListCandidates(r.Context(), run.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if candidates == nil {
		candidates = []store.Candidate{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run":   run,
		"data":  candidates,
		"count": len(candidates),
	})
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	opts := store.TopicListOpts{Limit: 30}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		opts.Limit = min(n, 365)
	}
	if since := r.URL.Query().Get("since"); since != "" {
		if _, err := time.Parse(store.DateLayout, since); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be YYYY-MM-DD"})
			return
		}
		opts.Since = since
	}

	topics, err := s.store.ListTopics(r.Context(), opts)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if topics == nil {
		topics = []store.Topic{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  topics,
		"count": len(topics),
	})
}

func (s *Server) handleTopicToday(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	date := time.Now().UTC().Format(store.DateLayout)
	if s.runner != nil {
		date = s.runner.Today()
	}

	topic, err := s.store.GetTopicByDate(r.Context(), date)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no topic selected for " + date})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": topic})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if s.runner == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "pipeline not configured"})
		return
	}

	date := r.URL.Query().Get("date")
	if date != "" {
		if _, err := time.Parse(store.DateLayout, date); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
			return
		}
	}
	res, err := s.runner.Run(r.Context(), date)
	if errors.Is(err, pipeline.ErrBusy) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		s.logger.Error("triggered run failed", "err", err)
		resp := map[string]any{"error": err.Error()}
		if res != nil {
			resp["data"] = res
		}
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": res})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

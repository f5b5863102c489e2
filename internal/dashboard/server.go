// Package dashboard serves the instructor's web view: student progress,
// aggregate stats, and a live agent-activity stream.
package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/rangelab/labctl/internal/agentlog"
	"github.com/rangelab/labctl/internal/controller"
	"github.com/rangelab/labctl/internal/domain"
	"github.com/rangelab/labctl/internal/store"
)

//go:embed index.html
var indexFS embed.FS

const defaultActivityLines = 50

// Server exposes read-only instructor endpoints over HTTP.
type Server struct {
	repo store.Repository
	log  *agentlog.Log
	addr string
	poll time.Duration
}

// New creates a dashboard server.
func New(repo store.Repository, log *agentlog.Log, addr string) *Server {
	return &Server{repo: repo, log: log, addr: addr, poll: streamPollInterval}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(CORS([]string{"*"}))

	r.Get("/api/students", s.handleStudents)
	r.Get("/api/students/{studentID}", s.handleStudent)
	r.Get("/api/stats", s.handleStats)
	r.Get("/api/activity", s.handleActivity)
	r.Get("/ws/activity", s.handleActivityStream)

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		data, err := indexFS.ReadFile("index.html")
		if err != nil {
			Error(w, http.StatusInternalServerError, "dashboard page unavailable")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(data)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:        s.addr,
		Handler:     s.Router(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Dashboard listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down dashboard...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleStudents(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.repo.List(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to list students")
		return
	}

	progress := make([]domain.Progress, 0, len(sessions))
	for _, session := range sessions {
		progress = append(progress, session.Progress())
	}
	JSON(w, http.StatusOK, progress)
}

func (s *Server) handleStudent(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	if !store.ValidStudentID(studentID) {
		Error(w, http.StatusBadRequest, "invalid student id")
		return
	}

	session, err := s.repo.Get(r.Context(), studentID)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load student")
		return
	}
	JSON(w, http.StatusOK, session)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.repo.List(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to list students")
		return
	}

	stats := controller.Stats{Students: len(sessions)}
	total := 0
	for _, session := range sessions {
		stats.Completions += len(session.CompletedLabs)
		total += session.Score
	}
	if len(sessions) > 0 {
		stats.AverageScore = float64(total) / float64(len(sessions))
	}
	JSON(w, http.StatusOK, stats)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	n := defaultActivityLines
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			Error(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = parsed
	}

	lines, err := s.log.Recent(n)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to read activity log")
		return
	}
	if lines == nil {
		lines = []string{}
	}
	JSON(w, http.StatusOK, map[string][]string{"entries": lines})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

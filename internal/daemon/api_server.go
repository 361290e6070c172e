package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"hopper/internal/api"
	"hopper/internal/catalog"
	"hopper/internal/config"
	"hopper/internal/logging"
	"hopper/internal/pricing"
	"hopper/internal/services"
)

// apiServer exposes daemon state over HTTP for the CLI and other local
// tooling. It is optional: an empty paths.api_bind disables it entirely.
type apiServer struct {
	bind    string
	token   string
	logger  *slog.Logger
	daemon  *Daemon
	catalog *api.CatalogService

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:    bind,
		token:   strings.TrimSpace(os.Getenv("HOPPER_API_TOKEN")),
		logger:  logger,
		daemon:  d,
		catalog: api.NewCatalogService(d.store),
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	if s.token != "" {
		r.Use(s.requireToken)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/files", s.handleFiles)
		r.Get("/files/{id}", s.handleFile)
		r.Get("/configs", s.handleConfigs)
		r.Get("/jobs", s.handleJobs)
		r.Get("/predictions", s.handlePredictions)
		r.Get("/predictions/{fileID}", s.handlePrediction)
		r.Post("/predictions/{fileID}/approve", s.handleApprove)
		r.Post("/batch-cost", s.handleBatchCost)
		r.Get("/validate", s.handleValidate)
	})
	return r
}

// requireToken validates "Authorization: Bearer <token>" when HOPPER_API_TOKEN
// is set; without a token the API trusts its loopback bind.
func (s *apiServer) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.token {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.String(logging.FieldEventType, "api_listening"),
	)
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	s.mu.Unlock()
}

// addr returns the bound address once start succeeded.
func (s *apiServer) addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		Watching:     status.Watching,
		DBPath:       status.DBPath,
		LockFilePath: status.LockFilePath,
		LastError:    status.Workflow.LastError,
		JobStats:     api.MergeJobStats(status.Workflow.JobStats),
		ParserHealth: api.HealthSlice(status.Workflow.ParserHealth),
	}
	if status.Workflow.LastJob != nil {
		job := api.FromJob(status.Workflow.LastJob)
		payload.LastJob = &job
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleFiles(w http.ResponseWriter, r *http.Request) {
	var kinds []catalog.FileKind
	for _, value := range r.URL.Query()["kind"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		kinds = append(kinds, catalog.FileKind(trimmed))
	}
	files, err := s.catalog.ListFiles(r.Context(), kinds...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FileListResponse{Files: files})
}

func (s *apiServer) handleFile(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, chi.URLParam(r, "id"), "file id")
	if !ok {
		return
	}
	detail, err := s.catalog.DescribeFile(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if detail == nil {
		s.writeError(w, http.StatusNotFound, "file not found")
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *apiServer) handleConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.catalog.ListConfigs(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.ConfigListResponse{Configs: configs})
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	var statuses []catalog.JobStatus
	for _, value := range r.URL.Query()["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		statuses = append(statuses, catalog.JobStatus(trimmed))
	}
	jobs, err := s.catalog.ListJobs(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: jobs})
}

func (s *apiServer) handlePredictions(w http.ResponseWriter, r *http.Request) {
	predictions, err := s.catalog.ListPredictions(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.PredictionListResponse{Predictions: predictions})
}

func (s *apiServer) handlePrediction(w http.ResponseWriter, r *http.Request) {
	fileID, ok := s.pathID(w, chi.URLParam(r, "fileID"), "file id")
	if !ok {
		return
	}
	prediction, err := s.catalog.DescribePrediction(r.Context(), fileID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if prediction == nil {
		s.writeError(w, http.StatusNotFound, "no prediction for file")
		return
	}
	s.writeJSON(w, http.StatusOK, prediction)
}

func (s *apiServer) handleApprove(w http.ResponseWriter, r *http.Request) {
	fileID, ok := s.pathID(w, chi.URLParam(r, "fileID"), "file id")
	if !ok {
		return
	}
	var req api.ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid approve request body")
		return
	}

	result, err := api.ApprovePrediction(r.Context(), s.daemon.store, fileID, req.Steps)
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleBatchCost(w http.ResponseWriter, r *http.Request) {
	var req api.BatchCostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid batch cost request body")
		return
	}
	total, err := s.daemon.chains.CalculateBatchCost(r.Context(), api.ToChainSelections(req.Selections))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.BatchCostResponse{
		TotalCost:     total,
		FormattedCost: pricing.FormatCost(total),
	})
}

func (s *apiServer) handleValidate(w http.ResponseWriter, r *http.Request) {
	report, err := s.daemon.chains.ValidateDependencies(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// pathID parses a positive integer path parameter, writing the error response
// itself so handlers can bail with a bare return.
func (s *apiServer) pathID(w http.ResponseWriter, raw, label string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid "+label)
		return 0, false
	}
	return id, true
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrConfiguration):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}

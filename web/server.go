// Package web exposes the deployment engine over HTTP: deploy requests,
// status polling, archive downloads, credential ingestion, and deployment
// history.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quayside-cd/quayside/credentials"
	"github.com/quayside-cd/quayside/domain"
	"github.com/quayside-cd/quayside/metrics"
	"github.com/quayside-cd/quayside/store"
	"github.com/quayside-cd/quayside/target"
	"github.com/quayside-cd/quayside/workflow"
)

// tenantHeader carries the caller's tenant scope on every endpoint.
const tenantHeader = "X-Tenant-ID"

// Workflow is the slice of the orchestrator the server drives.
type Workflow interface {
	Run(ctx context.Context, req workflow.Request) (*domain.DeploymentResult, error)
	GetDeploymentStatus(ctx context.Context, targetName, deploymentID, tenantID string) (*domain.DeploymentStatus, error)
}

// Config bundles the server's collaborators. Everything is injected; the
// server holds no globals.
type Config struct {
	Addr         string
	Orchestrator Workflow
	Credentials  *credentials.Store
	Projects     store.ProjectStore
	Archives     *target.LocalTarget
	Metrics      *metrics.Metrics
}

type Server struct {
	cfg    Config
	router chi.Router
}

func NewServer(cfg Config) *Server {
	s := &Server{cfg: cfg}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/deploy", s.handleDeploy)
		r.Get("/deployments/{provider}/{id}", s.handleDeploymentStatus)
		r.Get("/download/{key}", s.handleDownload)
		r.Post("/credentials", s.handlePutCredentials)
		r.Get("/projects/{id}/deployments", s.handleListDeployments)
	})

	r.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.cfg.Metrics.Handler())
	}

	return r
}

// Handler returns the assembled router, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting",
			"layer", "web",
			"operation", "listen",
			"addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	var req workflow.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID == "" {
		req.TenantID = r.Header.Get(tenantHeader)
	}

	result, err := s.cfg.Orchestrator.Run(r.Context(), req)
	if err != nil {
		// Only malformed requests surface as errors.
		writeError(w, http.StatusBadRequest, target.FormatErrorForUser(err))
		return
	}

	status := http.StatusOK
	if result.Status == domain.DeploymentStateInProgress {
		status = http.StatusAccepted
	}
	writeJSON(w, status, result)
}

func (s *Server) handleDeploymentStatus(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	deploymentID := chi.URLParam(r, "id")
	tenantID := r.Header.Get(tenantHeader)

	status, err := s.cfg.Orchestrator.GetDeploymentStatus(r.Context(), provider, deploymentID, tenantID)
	if err != nil {
		code := http.StatusBadGateway
		switch {
		case target.APIStatusCode(err) == http.StatusNotFound:
			code = http.StatusNotFound
		case target.IsKind(err, target.KindNotAvailable):
			code = http.StatusServiceUnavailable
		}
		slog.Error("Deployment status lookup failed",
			"layer", "web",
			"operation", "deployment_status",
			"provider", provider,
			"deployment_id", deploymentID,
			"error", err)
		writeError(w, code, target.FormatErrorForUser(err))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	path := s.cfg.Archives.ArchivePath(key)
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "archive not found")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", target.SuggestedArchiveFilename(key)))
	if _, err := io.Copy(w, f); err != nil {
		slog.Error("Archive download interrupted",
			"layer", "web",
			"operation", "download",
			"key", key,
			"error", err)
	}
}

type credentialRequest struct {
	Provider  string `json:"provider"`
	Token     string `json:"token"`
	AccountID string `json:"accountId,omitempty"`
	TenantID  string `json:"tenantId,omitempty"`
}

func (s *Server) handlePutCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID == "" {
		req.TenantID = r.Header.Get(tenantHeader)
	}

	if err := s.cfg.Credentials.Put(req.TenantID, req.Provider, req.Token, req.AccountID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	slog.Info("Credential stored",
		"layer", "web",
		"operation", "put_credentials",
		"provider", req.Provider)
	w.WriteHeader(http.StatusNoContent)
}

type deploymentView struct {
	ID           string                 `json:"id"`
	Provider     string                 `json:"provider"`
	URL          string                 `json:"url,omitempty"`
	Status       domain.DeploymentState `json:"status"`
	ErrorMessage string                 `json:"error,omitempty"`
	Logs         []string               `json:"logs"`
	CreatedAt    time.Time              `json:"createdAt"`
	CompletedAt  *time.Time             `json:"completedAt,omitempty"`
}

func (s *Server) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	records, err := s.cfg.Projects.ListDeployments(projectID)
	if err != nil {
		if errors.Is(err, store.ErrProjectNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, target.FormatErrorForUser(err))
		return
	}

	views := make([]deploymentView, len(records))
	for i, rec := range records {
		views[i] = deploymentView{
			ID:           rec.ID,
			Provider:     rec.Provider,
			URL:          rec.URL,
			Status:       rec.Status,
			ErrorMessage: rec.ErrorMessage,
			Logs:         rec.Logs,
			CreatedAt:    rec.CreatedAt,
			CompletedAt:  rec.CompletedAt,
		}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response",
			"layer", "web",
			"operation", "write_json",
			"error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// Package httpapi exposes the curator pipeline's produced interfaces (spec
// §6.2) over HTTP, for the admin UI, crawler, and scheduler callers: run a
// curation, apply a refinement comment, and query a workflow's status.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-logr/logr"

	curatorerrors "github.com/mntogether/curator/internal/errors"
	"github.com/mntogether/curator/pkg/curator/orchestrator"
	"github.com/mntogether/curator/pkg/curator/refinement"
	"github.com/mntogether/curator/pkg/curator/workflow"
)

// Curator is the subset of the orchestrator this handler drives.
type Curator interface {
	CurateOrg(ctx context.Context, organizationID, key string) (orchestrator.Result, error)
}

// Refiner is the subset of the refinement workflow this handler drives.
type Refiner interface {
	Refine(ctx context.Context, proposalID, commentID string) (refinement.Result, error)
}

// StatusReader looks up a workflow's current phase (spec §4.1's status
// reporting requirement), independent of whether it's still running.
type StatusReader interface {
	GetStatus(ctx context.Context, kind, key string) (workflow.Status, bool, error)
}

// JournalStatusReader adapts a workflow.Journal into a StatusReader.
type JournalStatusReader struct {
	Journal workflow.Journal
}

// GetStatus delegates to workflow.GetStatus.
func (j JournalStatusReader) GetStatus(ctx context.Context, kind, key string) (workflow.Status, bool, error) {
	return workflow.GetStatus(ctx, j.Journal, kind, key)
}

// Server wires the three produced endpoints onto a chi router.
type Server struct {
	curator Curator
	refiner Refiner
	status  StatusReader
	log     logr.Logger
}

// New builds a Server.
func New(curator Curator, refiner Refiner, status StatusReader, log logr.Logger) *Server {
	return &Server{curator: curator, refiner: refiner, status: status, log: log}
}

// Router assembles the chi mux: request logging, panic recovery, and CORS,
// matching the ambient middleware stack, then the three produced routes.
func (s *Server) Router(corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/organizations/{organizationID}/curate", s.handleCurateOrg)
		r.Post("/proposals/{proposalID}/refine", s.handleRefineProposal)
		r.Get("/workflows/{kind}/{key}/status", s.handleGetStatus)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type curateOrgResponse struct {
	Status         string `json:"status"`
	ActionsCount   int    `json:"actions_count"`
	ProposalsCount int    `json:"proposals_count"`
	BatchID        string `json:"batch_id,omitempty"`
}

// handleCurateOrg implements curate_org(organization_id) -> { status,
// counts, batch_id? } (spec §6.2). The workflow key defaults to the
// organization id; callers that want to force a fresh run past an
// already-running execution pass ?key=<time-suffixed-key>.
func (s *Server) handleCurateOrg(w http.ResponseWriter, r *http.Request) {
	organizationID := chi.URLParam(r, "organizationID")
	key := r.URL.Query().Get("key")
	if key == "" {
		key = organizationID
	}

	result, err := s.curator.CurateOrg(r.Context(), organizationID, key)
	if err != nil {
		if errors.Is(err, workflow.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "curation already running for this organization")
			return
		}
		appErr := curatorerrors.Wrap(err, curatorerrors.ErrorTypeInternal, "curate_org failed")
		s.log.Error(err, "curate_org failed", "organization_id", organizationID, "error_type", string(appErr.Type))
		writeError(w, curatorerrors.GetStatusCode(appErr), curatorerrors.SafeErrorMessage(appErr))
		return
	}

	writeJSON(w, http.StatusOK, curateOrgResponse{
		Status:         string(result.Status),
		ActionsCount:   result.ActionsCount,
		ProposalsCount: result.ProposalsCount,
		BatchID:        result.BatchID,
	})
}

type refineRequest struct {
	CommentID string `json:"comment_id"`
}

type refineResponse struct {
	RevisionCount int  `json:"revision_count"`
	DraftUpdated  bool `json:"draft_updated"`
}

// handleRefineProposal implements refine_proposal(proposal_id, comment_id)
// -> { revision_count, draft_updated } (spec §6.2).
func (s *Server) handleRefineProposal(w http.ResponseWriter, r *http.Request) {
	proposalID := chi.URLParam(r, "proposalID")

	var req refineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CommentID == "" {
		writeError(w, http.StatusBadRequest, "comment_id is required")
		return
	}

	result, err := s.refiner.Refine(r.Context(), proposalID, req.CommentID)
	if err != nil {
		appErr := curatorerrors.Wrap(err, curatorerrors.ErrorTypeInternal, "refine_proposal failed")
		s.log.Error(err, "refine_proposal failed", "proposal_id", proposalID, "error_type", string(appErr.Type))
		writeError(w, curatorerrors.GetStatusCode(appErr), curatorerrors.SafeErrorMessage(appErr))
		return
	}

	writeJSON(w, http.StatusOK, refineResponse{RevisionCount: result.RevisionCount, DraftUpdated: result.DraftUpdated})
}

// handleGetStatus implements get_status(workflow_key) -> String (spec
// §6.2), keyed by both workflow kind and key since kind disambiguates the
// curator workflow from refinement runs sharing the journal.
func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	key := chi.URLParam(r, "key")

	status, found, err := s.status.GetStatus(r.Context(), kind, key)
	if err != nil {
		appErr := curatorerrors.Wrap(err, curatorerrors.ErrorTypeInternal, "get_status failed")
		s.log.Error(err, "get_status failed", "kind", kind, "key", key, "error_type", string(appErr.Type))
		writeError(w, curatorerrors.GetStatusCode(appErr), curatorerrors.SafeErrorMessage(appErr))
		return
	}
	if !found {
		notFound := curatorerrors.NewNotFoundError("workflow status")
		writeError(w, curatorerrors.GetStatusCode(notFound), curatorerrors.SafeErrorMessage(notFound))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

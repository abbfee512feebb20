package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"legal-backend/internal/analyses"
	"legal-backend/internal/documents"
	"legal-backend/internal/shared/server/middleware"
	"legal-backend/internal/shared/server/respond"
	"legal-backend/internal/shared/telemetry"
)

// Handler exposes analysis runs and their results over HTTP.
type Handler struct {
	Docs       Documents
	Repo       analyses.Repo
	Dispatcher Dispatcher
}

// NewHandler constructs a Handler.
func NewHandler(docs Documents, repo analyses.Repo, dispatcher Dispatcher) *Handler {
	return &Handler{Docs: docs, Repo: repo, Dispatcher: dispatcher}
}

// RegisterRoutes attaches the read routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents/:id/status", h.getStatus)
	rg.GET("/documents/:id/analysis", h.getAnalysis)
}

// RegisterStartRoutes attaches the routes that start runs. They are kept
// apart so the router can rate limit them.
func (h *Handler) RegisterStartRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents/:id/analyze", h.startSingle)
	rg.POST("/analyses/conjoint", h.startConjoint)
	rg.POST("/documents/:id/regenerate-report", h.startRegenerate)
}

type startRequest struct {
	Instructions string `json:"instructions"`
}

type conjointRequest struct {
	DocumentIDs  []string `json:"documentIds"`
	Instructions string   `json:"instructions"`
}

type acceptedResponse struct {
	DocumentID  string   `json:"documentId"`
	DocumentIDs []string `json:"documentIds,omitempty"`
	Kind        Kind     `json:"kind"`
	Status      string   `json:"status"`
}

func (h *Handler) startSingle(c *gin.Context) {
	documentID := c.Param("id")
	c.Set("documentId", documentID)
	c.Set("runKind", string(KindSingle))

	var req startRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	job := Job{Kind: KindSingle, DocumentIDs: []string{documentID}, Instructions: req.Instructions}
	h.accept(c, job)
}

func (h *Handler) startRegenerate(c *gin.Context) {
	documentID := c.Param("id")
	c.Set("documentId", documentID)
	c.Set("runKind", string(KindRegenerate))

	var req startRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	rec, err := h.Repo.GetArtifact(c.Request.Context(), documentID)
	if err != nil && !errors.Is(err, analyses.ErrNotFound) {
		respond.Internal(c, "failed to load analysis", err)
		return
	}
	if err == nil {
		artifact, decodeErr := rec.Decode()
		err = decodeErr
		if err == nil && !artifact.HasSourceMaterial() {
			err = ErrNoPriorAnalysis
		}
	}
	if err != nil {
		if _, docErr := h.Docs.GetMetadata(c.Request.Context(), documentID); errors.Is(docErr, documents.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
			return
		}
		respond.Error(c, http.StatusConflict, "no_prior_analysis", "document has no prior analysis to regenerate the report from", nil)
		return
	}

	job := Job{Kind: KindRegenerate, DocumentIDs: []string{documentID}, Instructions: req.Instructions}
	h.accept(c, job)
}

func (h *Handler) startConjoint(c *gin.Context) {
	c.Set("runKind", string(KindConjoint))

	var req conjointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	ids := make([]string, 0, len(req.DocumentIDs))
	for _, id := range req.DocumentIDs {
		ids = append(ids, strings.TrimSpace(id))
	}
	if len(ids) > 0 {
		c.Set("documentId", ids[0])
	}
	job := Job{Kind: KindConjoint, DocumentIDs: ids, Instructions: req.Instructions}
	h.accept(c, job)
}

// accept validates job, checks every target exists and hands it off.
func (h *Handler) accept(c *gin.Context, job Job) {
	job.RequestID = middleware.RequestIDFromContext(c)
	ctx := telemetry.WithRequestID(c.Request.Context(), job.RequestID)

	if err := job.Run().Validate(); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}
	if !h.documentsExist(ctx, c, job.DocumentIDs) {
		return
	}

	if err := h.Dispatcher.Dispatch(ctx, job); err != nil {
		switch {
		case errors.Is(err, ErrInvalidRun):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Internal(c, "failed to start analysis", err)
		}
		return
	}

	resp := acceptedResponse{
		DocumentID: job.DocumentIDs[0],
		Kind:       job.Kind,
		Status:     "accepted",
	}
	if job.Kind == KindConjoint {
		resp.DocumentIDs = job.DocumentIDs
	}
	respond.Accepted(c, resp)
}

func (h *Handler) documentsExist(ctx context.Context, c *gin.Context, ids []string) bool {
	for _, id := range ids {
		if _, err := h.Docs.GetMetadata(ctx, id); err != nil {
			switch {
			case errors.Is(err, documents.ErrNotFound):
				respond.Error(c, http.StatusNotFound, "not_found", "document not found", []map[string]string{
					{"field": "documentId", "issue": id},
				})
			default:
				respond.Internal(c, "failed to start analysis", err)
			}
			return false
		}
	}
	return true
}

func (h *Handler) getStatus(c *gin.Context) {
	documentID := c.Param("id")
	c.Set("documentId", documentID)

	rec, err := h.Repo.GetStatus(c.Request.Context(), documentID)
	if err != nil {
		switch {
		case errors.Is(err, analyses.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "no analysis has been started for this document", nil)
		default:
			respond.Internal(c, "failed to fetch status", err)
		}
		return
	}
	respond.OK(c, rec)
}

type analysisResponse struct {
	analyses.Artifact
	Status   analyses.Status `json:"status"`
	Progress int             `json:"progress"`
}

func (h *Handler) getAnalysis(c *gin.Context) {
	documentID := c.Param("id")
	c.Set("documentId", documentID)
	ctx := c.Request.Context()

	rec, err := h.Repo.GetArtifact(ctx, documentID)
	if err != nil {
		switch {
		case errors.Is(err, analyses.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Internal(c, "failed to fetch analysis", err)
		}
		return
	}
	artifact, err := rec.Decode()
	if err != nil {
		respond.Internal(c, "stored analysis is unreadable", err)
		return
	}

	status, err := h.Repo.GetStatus(ctx, documentID)
	if err != nil && !errors.Is(err, analyses.ErrNotFound) {
		respond.Internal(c, "failed to fetch status", err)
		return
	}
	if status.Status != analyses.StatusCompleted {
		artifact.Report = nil
	}
	respond.OK(c, analysisResponse{
		Artifact: artifact,
		Status:   status.Status,
		Progress: status.Progress,
	})
}

// bindOptionalJSON decodes the body into dst when one was sent.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return false
	}
	return true
}

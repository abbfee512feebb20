package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legal-backend/internal/analyses"
	"legal-backend/internal/shared/server/middleware"
)

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []Job
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, job Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
	return nil
}

func setupPipelineRouter(t *testing.T) (*gin.Engine, *fakeDocs, *analyses.MemoryRepo, *recordingDispatcher) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	docs := newFakeDocs()
	repo := analyses.NewMemoryRepo()
	dispatcher := &recordingDispatcher{}
	h := NewHandler(docs, repo, dispatcher)

	router := gin.New()
	router.Use(middleware.RequestID())
	api := router.Group("/api/v1")
	h.RegisterRoutes(api)
	h.RegisterStartRoutes(api)
	return router, docs, repo, dispatcher
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-Id", "req-42")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body.Error.Code
}

func TestStartAnalysisAccepted(t *testing.T) {
	router, docs, _, dispatcher := setupPipelineRouter(t)
	docs.add("doc-1", "lease.txt", "text")

	resp := doJSON(t, router, http.MethodPost, "/api/v1/documents/doc-1/analyze", `{"instructions":"focus on rent"}`)

	require.Equal(t, http.StatusAccepted, resp.Code, resp.Body.String())
	var body acceptedResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "doc-1", body.DocumentID)
	assert.Equal(t, KindSingle, body.Kind)
	require.Len(t, dispatcher.jobs, 1)
	assert.Equal(t, Job{Kind: KindSingle, DocumentIDs: []string{"doc-1"}, Instructions: "focus on rent", RequestID: "req-42"}, dispatcher.jobs[0])
}

func TestStartAnalysisWithoutBody(t *testing.T) {
	router, docs, _, dispatcher := setupPipelineRouter(t)
	docs.add("doc-1", "lease.txt", "text")

	resp := doJSON(t, router, http.MethodPost, "/api/v1/documents/doc-1/analyze", "")

	require.Equal(t, http.StatusAccepted, resp.Code, resp.Body.String())
	require.Len(t, dispatcher.jobs, 1)
	assert.Empty(t, dispatcher.jobs[0].Instructions)
}

func TestStartAnalysisErrors(t *testing.T) {
	router, docs, _, dispatcher := setupPipelineRouter(t)
	docs.add("doc-1", "lease.txt", "text")

	resp := doJSON(t, router, http.MethodPost, "/api/v1/documents/missing/analyze", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "not_found", errorCode(t, resp))

	resp = doJSON(t, router, http.MethodPost, "/api/v1/documents/doc-1/analyze", `{"instructions":`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	long, err := json.Marshal(map[string]string{"instructions": strings.Repeat("x", 2001)})
	require.NoError(t, err)
	resp = doJSON(t, router, http.MethodPost, "/api/v1/documents/doc-1/analyze", string(long))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "validation_error", errorCode(t, resp))

	assert.Empty(t, dispatcher.jobs)
}

func TestStartConjoint(t *testing.T) {
	router, docs, _, dispatcher := setupPipelineRouter(t)
	docs.add("doc-1", "a.txt", "A")
	docs.add("doc-2", "b.txt", "B")

	resp := doJSON(t, router, http.MethodPost, "/api/v1/analyses/conjoint", `{"documentIds":["doc-1"]}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doJSON(t, router, http.MethodPost, "/api/v1/analyses/conjoint", `{"documentIds":["doc-1","doc-3"]}`)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Empty(t, dispatcher.jobs)

	resp = doJSON(t, router, http.MethodPost, "/api/v1/analyses/conjoint", `{"documentIds":["doc-1","doc-2"],"instructions":"compare"}`)
	require.Equal(t, http.StatusAccepted, resp.Code, resp.Body.String())
	var body acceptedResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "doc-1", body.DocumentID)
	assert.Equal(t, []string{"doc-1", "doc-2"}, body.DocumentIDs)
	require.Len(t, dispatcher.jobs, 1)
	assert.Equal(t, KindConjoint, dispatcher.jobs[0].Kind)
}

func TestStartRegenerate(t *testing.T) {
	router, docs, repo, dispatcher := setupPipelineRouter(t)
	docs.add("doc-1", "lease.txt", "")

	resp := doJSON(t, router, http.MethodPost, "/api/v1/documents/doc-1/regenerate-report", "")
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "no_prior_analysis", errorCode(t, resp))

	resp = doJSON(t, router, http.MethodPost, "/api/v1/documents/missing/regenerate-report", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	rec, err := analyses.NewArtifactRecord(sourceArtifact("doc-1"))
	require.NoError(t, err)
	require.NoError(t, repo.UpsertArtifact(context.Background(), rec))

	resp = doJSON(t, router, http.MethodPost, "/api/v1/documents/doc-1/regenerate-report", `{"instructions":"shorter"}`)
	require.Equal(t, http.StatusAccepted, resp.Code, resp.Body.String())
	require.Len(t, dispatcher.jobs, 1)
	assert.Equal(t, KindRegenerate, dispatcher.jobs[0].Kind)
	assert.Equal(t, "shorter", dispatcher.jobs[0].Instructions)
}

func TestGetStatus(t *testing.T) {
	router, _, repo, _ := setupPipelineRouter(t)

	resp := doJSON(t, router, http.MethodGet, "/api/v1/documents/doc-1/status", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	require.NoError(t, repo.SetStatus(context.Background(), "doc-1", analyses.StatusAnalyzing))
	resp = doJSON(t, router, http.MethodGet, "/api/v1/documents/doc-1/status", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "analyzing", body["status"])
	assert.EqualValues(t, 60, body["progress"])
}

func TestGetAnalysisHidesReportUntilCompleted(t *testing.T) {
	router, _, repo, _ := setupPipelineRouter(t)
	ctx := context.Background()
	rec, err := analyses.NewArtifactRecord(sourceArtifact("doc-1"))
	require.NoError(t, err)
	require.NoError(t, repo.UpsertArtifact(ctx, rec))
	require.NoError(t, repo.SetStatus(ctx, "doc-1", analyses.StatusGeneratingReport))

	resp := doJSON(t, router, http.MethodGet, "/api/v1/documents/doc-1/analysis", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.NotContains(t, body, "report")
	assert.Equal(t, "generating_report", body["status"])
	assert.Contains(t, body, "translated")

	require.NoError(t, repo.SetStatus(ctx, "doc-1", analyses.StatusCompleted))
	resp = doJSON(t, router, http.MethodGet, "/api/v1/documents/doc-1/analysis", "")
	require.Equal(t, http.StatusOK, resp.Code)
	body = map[string]any{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Contains(t, body, "report")

	resp = doJSON(t, router, http.MethodGet, "/api/v1/documents/doc-2/analysis", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

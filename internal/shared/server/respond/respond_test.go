package respond

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"legal-backend/internal/shared/telemetry"
)

func serve(t *testing.T, h gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		c.Set("requestId", "req-1")
		c.Set("documentId", "doc-1")
		h(c)
	})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/x", nil))
	return resp
}

func TestAccepted(t *testing.T) {
	resp := serve(t, func(c *gin.Context) { Accepted(c, gin.H{"status": "accepted"}) })
	assert.Equal(t, http.StatusAccepted, resp.Code)
	assert.JSONEq(t, `{"status":"accepted"}`, resp.Body.String())
}

func TestErrorShape(t *testing.T) {
	resp := serve(t, func(c *gin.Context) {
		Error(c, http.StatusNotFound, "not_found", "document not found", []map[string]string{{"field": "documentId", "issue": "doc-1"}})
	})
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.JSONEq(t, `{"error":{"code":"not_found","message":"document not found","details":[{"field":"documentId","issue":"doc-1"}]}}`, resp.Body.String())
}

func TestInternalHidesCause(t *testing.T) {
	var logs bytes.Buffer
	restore := telemetry.SetOutput(&logs)
	defer restore()

	resp := serve(t, func(c *gin.Context) {
		Internal(c, "failed to fetch status", errors.New("pq: connection refused"))
	})

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.NotContains(t, resp.Body.String(), "connection refused")
	assert.Contains(t, logs.String(), "connection refused")
	assert.Contains(t, logs.String(), `"document_id":"doc-1"`)
}

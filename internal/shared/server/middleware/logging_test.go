package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legal-backend/internal/shared/telemetry"
)

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	restore := telemetry.SetOutput(&buf)
	defer restore()

	router := gin.New()
	router.Use(RequestID(), Owner(), Logging())
	router.GET("/documents/:id/status", func(c *gin.Context) {
		c.Set("documentId", c.Param("id"))
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/documents/doc-1/status", nil)
	req.Header.Set("X-Owner-Id", "firm-7")
	req.Header.Set("X-Request-Id", "req-abc")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, "req-abc", resp.Header().Get("X-Request-Id"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &payload))

	assert.Equal(t, "request.complete", payload["msg"])
	assert.Equal(t, "req-abc", payload["request_id"])
	assert.Equal(t, "firm-7", payload["owner_id"])
	assert.Equal(t, "doc-1", payload["document_id"])
	assert.Equal(t, "/documents/:id/status", payload["route"])
	assert.EqualValues(t, http.StatusOK, payload["status"])
	assert.Contains(t, payload, "duration_ms")
}

func TestOwnerDefaultsToAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Owner())
	var got string
	router.GET("/x", func(c *gin.Context) {
		got = OwnerIDFromContext(c)
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, "anonymous", got)
}

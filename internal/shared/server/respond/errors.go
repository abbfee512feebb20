package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"legal-backend/internal/shared/telemetry"
)

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error sends a standardized error response.
func Error(c *gin.Context, status int, code, message string, details any) {
	fields := requestFields(c)
	fields["status"] = status
	fields["code"] = code
	fields["message"] = message
	if status >= http.StatusInternalServerError {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// Internal logs cause server-side and answers 500 with message only, so store
// and driver errors never reach the client.
func Internal(c *gin.Context, message string, cause error) {
	if cause != nil {
		fields := requestFields(c)
		fields["error"] = cause.Error()
		telemetry.Error("http.internal", fields)
	}
	Error(c, http.StatusInternalServerError, "internal_error", message, nil)
}

func requestFields(c *gin.Context) map[string]any {
	fields := map[string]any{
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if ownerID := c.GetString("ownerId"); ownerID != "" {
		fields["owner_id"] = ownerID
	}
	if documentID := c.GetString("documentId"); documentID != "" {
		fields["document_id"] = documentID
	}
	return fields
}

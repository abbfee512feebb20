package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"legal-backend/internal/shared/metrics"
	"legal-backend/internal/shared/server/respond"
	"legal-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 error body and a counted,
// logged event. http.ErrAbortHandler is re-raised so net/http can drop the
// connection as intended.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			metrics.IncHTTPPanic(route)
			telemetry.Error("http.panic", map[string]any{
				"request_id":  RequestIDFromContext(c),
				"owner_id":    OwnerIDFromContext(c),
				"document_id": c.GetString("documentId"),
				"route":       route,
				"method":      c.Request.Method,
				"error":       rec,
				"stack":       string(debug.Stack()),
			})
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected server error", nil)
		}()
		c.Next()
	}
}

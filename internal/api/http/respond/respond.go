// Package respond renders the outcome envelope shared by every handler:
// {"ok":true, ...payload} or {"ok":false,"error":{"kind","message","details"}}.
package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/logging"
)

// OK writes a success envelope with the given payload keys.
func OK(c *gin.Context, status int, payload gin.H) {
	body := gin.H{"ok": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindEntitlement:
		return http.StatusForbidden
	case apperr.KindQuotaExceeded:
		return http.StatusTooManyRequests
	case apperr.KindUpstreamGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error writes a typed error envelope. Untyped errors are reported as
// persistence failures without leaking their text.
func Error(c *gin.Context, err error) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Persistence("internal error", err)
	}
	status := StatusOf(e.Kind)
	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).Error("request failed",
			zap.String("kind", string(e.Kind)), zap.Error(err))
	}

	body := gin.H{"kind": e.Kind, "message": e.Message}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "error": body})
}

// BadRequest is shorthand for a validation error on a malformed body.
func BadRequest(c *gin.Context, message string) {
	Error(c, apperr.Validation("", message))
}

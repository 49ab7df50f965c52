package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
)

func render(t *testing.T, fn func(c *gin.Context)) (int, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	fn(c)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestErrorEnvelope(t *testing.T) {
	t.Run("conflict carries suggestions", func(t *testing.T) {
		code, body := render(t, func(c *gin.Context) {
			Error(c, apperr.Conflict("resume-builder", []apperr.Suggestion{{Name: "My Resume Builder", Slug: "my-resume-builder"}}))
		})
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, false, body["ok"])
		errBody := body["error"].(map[string]any)
		assert.Equal(t, "conflict", errBody["kind"])
		details := errBody["details"].(map[string]any)
		assert.Equal(t, "resume-builder", details["slug"])
		assert.Len(t, details["suggestions"], 1)
	})

	t.Run("upstream and persistence stay distinct", func(t *testing.T) {
		code, _ := render(t, func(c *gin.Context) { Error(c, apperr.UpstreamGeneration("timeout", nil)) })
		assert.Equal(t, http.StatusBadGateway, code)
		code, body := render(t, func(c *gin.Context) { Error(c, apperr.Persistence("save", errors.New("x"))) })
		assert.Equal(t, http.StatusInternalServerError, code)
		assert.Equal(t, "persistence", body["error"].(map[string]any)["kind"])
	})

	t.Run("untyped errors do not leak", func(t *testing.T) {
		_, body := render(t, func(c *gin.Context) { Error(c, errors.New("pq: password authentication failed")) })
		assert.NotContains(t, body["error"].(map[string]any)["message"], "password")
	})
}

func TestOK(t *testing.T) {
	code, body := render(t, func(c *gin.Context) { OK(c, http.StatusCreated, gin.H{"project": gin.H{"id": "p1"}}) })
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "p1", body["project"].(map[string]any)["id"])
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, StatusOf(apperr.KindAuth))
	assert.Equal(t, http.StatusForbidden, StatusOf(apperr.KindEntitlement))
	assert.Equal(t, http.StatusTooManyRequests, StatusOf(apperr.KindQuotaExceeded))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(apperr.KindMaterialization))
}

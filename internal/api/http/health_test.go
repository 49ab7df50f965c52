package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	up := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("refused") })

	tests := []struct {
		name   string
		db     Pinger
		redis  Pinger
		code   int
		status string
		redisS string
	}{
		{"all up", up, up, http.StatusOK, "healthy", "up"},
		{"redis down", up, down, http.StatusOK, "healthy", "down"},
		{"redis disabled", up, nil, http.StatusOK, "healthy", "disabled"},
		{"db down", down, up, http.StatusServiceUnavailable, "degraded", "up"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			NewHealthHandler("toolsmith", "test", tt.db, tt.redis).RegisterRoutes(r)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			require.Equal(t, tt.code, w.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.redisS, resp.Redis)
			assert.Equal(t, "toolsmith", resp.Service)
		})
	}
}

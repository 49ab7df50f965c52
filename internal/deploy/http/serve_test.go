package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/bundle"
)

func TestBundleServer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	host, err := bundle.NewFSHost(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	rel, err := host.Stage(ctx, "quiz", bundle.Files{"index.html": []byte("<h1>quiz</h1>")})
	require.NoError(t, err)
	_, err = host.Commit(ctx, rel)
	require.NoError(t, err)

	r := gin.New()
	r.NoRoute(BundleServer(host, "example.com"))

	get := func(hostname, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Host = hostname
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := get("quiz.tool.example.com", "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<h1>quiz</h1>")

	assert.Equal(t, http.StatusNotFound, get("quiz.tool.example.com", "/missing.js").Code)
	assert.Equal(t, http.StatusNotFound, get("api.example.com", "/").Code)
	assert.Equal(t, http.StatusNotFound, get("other.tool.example.com", "/").Code)
}

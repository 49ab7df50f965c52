package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/toolsmith-backend/config"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/auth"
	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
	defservice "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/service"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/bundle"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/service"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/storage/memory"
)

func TestPublishAndUndeploy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := memory.New()
	defs := defservice.New(store)
	host, err := bundle.NewFSHost(t.TempDir())
	require.NoError(t, err)
	svc := service.New(store, host, config.DeployConfig{BaseDomain: "example.com"}, nil)

	ctx := context.Background()
	p, err := defs.CreateProject(ctx, "u1", defservice.ProjectInput{Name: "Cover Letter"})
	require.NoError(t, err)
	st, err := defs.CreateStep(ctx, "u1", p.ID, defservice.StepInput{Title: "Basics"})
	require.NoError(t, err)
	_, err = defs.CreateField(ctx, "u1", st.ID, defservice.FieldInput{Label: "Company", Type: defdomain.FieldText})
	require.NoError(t, err)

	r := gin.New()
	New(svc).Register(r.Group("/api/v1", auth.RequireUser(auth.HeaderVerifier{})))

	do := func(method, path string) (*httptest.ResponseRecorder, map[string]any) {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("X-User-Id", "u1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		var out map[string]any
		_ = json.Unmarshal(w.Body.Bytes(), &out)
		return w, out
	}

	w, out := do(http.MethodPost, "/api/v1/projects/"+p.ID+"/publish")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "cover-letter", out["slug"])
	assert.Equal(t, "https://cover-letter.tool.example.com/", out["public_url"])
	assert.NotEmpty(t, out["deployment_id"])

	w, out = do(http.MethodDelete, "/api/v1/projects/"+p.ID+"/deployment")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "inactive", out["deployment"].(map[string]any)["status"])

	w, out = do(http.MethodDelete, "/api/v1/projects/"+p.ID+"/deployment")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", out["error"].(map[string]any)["kind"])
}

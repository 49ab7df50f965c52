package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/auth"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/completion"
	defservice "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/service"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/storage/memory"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/synth"
)

type scripted map[string]string

func (s scripted) Complete(_ context.Context, req completion.Request) (string, error) {
	return s[req.Caller], nil
}

func TestDraftThenCommit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := memory.New()
	defs := defservice.New(store)
	svc := synth.New(scripted{
		"synth.draft": "```json\n" + `{"tool_name":"Pitch Helper","system_prompt":"Sharpen the pitch.",
			"steps":[{"title":"Pitch","fields":[{"label":"Your pitch","field_type":"textarea","is_required":true}]}]}` + "\n```",
	}, defs)

	r := gin.New()
	New(svc).Register(r.Group("/api/v1", auth.RequireUser(auth.HeaderVerifier{})))

	post := func(path string, body any) (*httptest.ResponseRecorder, map[string]any) {
		b, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-Id", "u1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		var out map[string]any
		_ = json.Unmarshal(w.Body.Bytes(), &out)
		return w, out
	}

	w, out := post("/api/v1/synth/draft", gin.H{"idea": "help founders pitch", "role": "investor"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, false, out["fallback"])
	tree := out["tree"]

	projects, err := store.ListProjects(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, projects, "draft must not persist anything")

	w, out = post("/api/v1/synth/commit", gin.H{"tree": tree})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	committed := out["tree"].(map[string]any)["project"].(map[string]any)
	assert.Equal(t, "Pitch Helper", committed["name"])
	assert.Equal(t, false, committed["deployed"])

	projects, err = store.ListProjects(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, projects, 1)
}

func TestQuestionsRequiresIdea(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := synth.New(scripted{}, defservice.New(memory.New()))
	r := gin.New()
	New(svc).Register(r.Group("/api/v1", auth.RequireUser(auth.HeaderVerifier{})))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/synth/questions", bytes.NewReader([]byte(`{"idea":"  "}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "u1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCommitNeedsUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := synth.New(scripted{}, defservice.New(memory.New()))
	r := gin.New()
	New(svc).Register(r.Group("/api/v1", auth.RequireUser(auth.HeaderVerifier{})))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/synth/commit", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

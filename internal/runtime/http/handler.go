package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/api/http/respond"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/auth"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/runtime/service"
)

const maxSubmitBytes = 1 << 20

type Handler struct {
	exec *service.Executor
}

func New(exec *service.Executor) *Handler {
	return &Handler{exec: exec}
}

// Register attaches the public runtime routes. The group is expected to run
// auth.OptionalIdentity so tier checks can see the caller.
func (h *Handler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/runtime")
	g.GET("/:slug/manifest", h.manifest)
	g.POST("/:slug/submit", h.submit)
	g.GET("/sessions/:token", h.session)
}

func (h *Handler) manifest(c *gin.Context) {
	m, err := h.exec.Manifest(c.Request.Context(), strings.ToLower(strings.TrimSpace(c.Param("slug"))))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"manifest": m})
}

type submitReq struct {
	Responses map[string]any `json:"responses"`
}

func (h *Handler) submit(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSubmitBytes)
	var req submitReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	sub := service.Submission{
		Slug:    strings.ToLower(strings.TrimSpace(c.Param("slug"))),
		Answers: req.Responses,
		Origin:  c.ClientIP(),
	}
	if id := auth.FromContext(c.Request.Context()); id != nil {
		sub.SubjectID = id.SubjectID
	}

	res, err := h.exec.Submit(c.Request.Context(), sub)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{
		"session_id":    res.Session.ID,
		"session_token": res.Session.Token,
		"ai_response":   res.AIResponse,
	})
}

func (h *Handler) session(c *gin.Context) {
	view, err := h.exec.Session(c.Request.Context(), strings.TrimSpace(c.Param("token")))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{
		"session":   view.Session,
		"responses": view.Responses,
		"completed": view.Completed,
	})
}

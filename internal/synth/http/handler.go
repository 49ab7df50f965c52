package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/api/http/respond"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/auth"
	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/synth"
)

type Handler struct {
	svc *synth.Service
}

func New(svc *synth.Service) *Handler {
	return &Handler{svc: svc}
}

// Register attaches synthesis routes to an authenticated router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/synth")
	g.POST("/questions", h.questions)
	g.POST("/draft", h.draft)
	g.POST("/commit", h.commit)
}

func (h *Handler) questions(c *gin.Context) {
	var req synth.QuestionsInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	out, err := h.svc.Questions(c.Request.Context(), req)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"questions": out.Questions, "fallback": out.Fallback})
}

func (h *Handler) draft(c *gin.Context) {
	var req synth.DraftInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	out, err := h.svc.Draft(c.Request.Context(), req)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{
		"tree":     out.Tree,
		"fallback": out.Fallback,
		"warnings": out.Warnings,
	})
}

type commitReq struct {
	Tree *defdomain.Tree `json:"tree"`
}

func (h *Handler) commit(c *gin.Context) {
	var req commitReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	tree, err := h.svc.Commit(c.Request.Context(), auth.UserFirebaseUID(c), req.Tree)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusCreated, gin.H{"tree": tree})
}

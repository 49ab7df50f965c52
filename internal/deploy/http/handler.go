package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/api/http/respond"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/auth"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/service"
)

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register attaches publish routes to an authenticated router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/projects/:id/publish", h.publish)
	rg.GET("/projects/:id/deployment", h.get)
	rg.DELETE("/projects/:id/deployment", h.undeploy)
}

func (h *Handler) publish(c *gin.Context) {
	projectID := strings.TrimSpace(c.Param("id"))
	out, err := h.svc.Publish(c.Request.Context(), auth.UserFirebaseUID(c), projectID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{
		"deployment_id": out.Deployment.ID,
		"public_url":    out.PublicURL,
		"slug":          out.Slug,
		"deployment":    out.Deployment,
	})
}

func (h *Handler) get(c *gin.Context) {
	dep, err := h.svc.Deployment(c.Request.Context(), auth.UserFirebaseUID(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"deployment": dep})
}

func (h *Handler) undeploy(c *gin.Context) {
	dep, err := h.svc.Undeploy(c.Request.Context(), auth.UserFirebaseUID(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"deployment": dep})
}

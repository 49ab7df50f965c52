package http

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/service"
)

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register attaches definition routes to an authenticated router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	projects := rg.Group("/projects")
	projects.POST("", h.createProject)
	projects.GET("", h.listProjects)
	projects.POST("/import", h.importProject)
	projects.GET("/:id", h.getProject)
	projects.PATCH("/:id", h.updateProject)
	projects.DELETE("/:id", h.deleteProject)
	projects.GET("/:id/tree", h.getTree)
	projects.GET("/:id/export", h.exportProject)
	projects.POST("/:id/clone", h.cloneProject)
	projects.PUT("/:id/subdomain", h.updateSubdomain)
	projects.POST("/:id/steps", h.createStep)
	projects.GET("/:id/steps", h.listSteps)
	projects.PUT("/:id/steps/order", h.reorderSteps)

	steps := rg.Group("/steps")
	steps.PATCH("/:id", h.updateStep)
	steps.DELETE("/:id", h.deleteStep)
	steps.POST("/:id/fields", h.createField)
	steps.GET("/:id/fields", h.listFields)
	steps.PUT("/:id/fields/order", h.reorderFields)

	fields := rg.Group("/fields")
	fields.PATCH("/:id", h.updateField)
	fields.DELETE("/:id", h.deleteField)
	fields.POST("/:id/choices", h.createChoice)
	fields.GET("/:id/choices", h.listChoices)
	fields.PUT("/:id/choices/order", h.reorderChoices)

	choices := rg.Group("/choices")
	choices.PATCH("/:id", h.updateChoice)
	choices.DELETE("/:id", h.deleteChoice)
}

func idParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}

type orderReq struct {
	IDs []string `json:"ids"`
}

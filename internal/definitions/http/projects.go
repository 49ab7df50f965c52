package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/api/http/respond"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/auth"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/service"
)

const maxImportBytes = 2 << 20

func (h *Handler) createProject(c *gin.Context) {
	var req service.ProjectInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}

	p, err := h.svc.CreateProject(c.Request.Context(), auth.UserFirebaseUID(c), req)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusCreated, gin.H{"project": p})
}

func (h *Handler) listProjects(c *gin.Context) {
	items, err := h.svc.ListProjects(c.Request.Context(), auth.UserFirebaseUID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"projects": items})
}

func (h *Handler) getProject(c *gin.Context) {
	p, err := h.svc.GetProject(c.Request.Context(), auth.UserFirebaseUID(c), idParam(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"project": p})
}

func (h *Handler) getTree(c *gin.Context) {
	tree, err := h.svc.GetTree(c.Request.Context(), auth.UserFirebaseUID(c), idParam(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"tree": tree})
}

func (h *Handler) updateProject(c *gin.Context) {
	var req service.ProjectPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}

	p, err := h.svc.UpdateProject(c.Request.Context(), auth.UserFirebaseUID(c), idParam(c), req)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"project": p})
}

func (h *Handler) deleteProject(c *gin.Context) {
	if err := h.svc.DeleteProject(c.Request.Context(), auth.UserFirebaseUID(c), idParam(c)); err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, nil)
}

type subdomainReq struct {
	Subdomain string `json:"subdomain"`
}

func (h *Handler) updateSubdomain(c *gin.Context) {
	var req subdomainReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}

	p, err := h.svc.UpdateSubdomain(c.Request.Context(), auth.UserFirebaseUID(c), idParam(c), req.Subdomain)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"project": p})
}

func (h *Handler) cloneProject(c *gin.Context) {
	tree, err := h.svc.Clone(c.Request.Context(), auth.UserFirebaseUID(c), idParam(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusCreated, gin.H{"tree": tree})
}

func (h *Handler) exportProject(c *gin.Context) {
	format, ok := service.ParseFormat(c.Query("format"))
	if !ok {
		respond.BadRequest(c, "format must be json or yaml")
		return
	}

	data, err := h.svc.Export(c.Request.Context(), auth.UserFirebaseUID(c), idParam(c), format)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="project-`+idParam(c)+`.`+string(format)+`"`)
	c.Data(http.StatusOK, format.ContentType(), data)
}

// importProject accepts a raw export document; the format comes from
// ?format= or the Content-Type header.
func (h *Handler) importProject(c *gin.Context) {
	hint := c.Query("format")
	if hint == "" {
		hint = c.ContentType()
	}
	format, ok := service.ParseFormat(hint)
	if !ok {
		respond.BadRequest(c, "format must be json or yaml")
		return
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes))
	if err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}

	tree, err := h.svc.Import(c.Request.Context(), auth.UserFirebaseUID(c), data, format)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusCreated, gin.H{"tree": tree})
}

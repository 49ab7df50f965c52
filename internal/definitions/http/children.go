package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/api/http/respond"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/auth"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/service"
)

func (h *Handler) createStep(c *gin.Context) {
	var req service.StepInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}
	st, err := h.svc.CreateStep(c.Request.Context(), auth.UserFirebaseUID(c), idParam(c), req)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusCreated, gin.H{"step": st})
}

func (h *Handler) listSteps(c *gin.Context) {
	items, err := h.svc.ListSteps(c.Request.Context(), auth.UserFirebaseUID(c), idParam(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"steps": items})
}

func (h *Handler) updateStep(c *gin.Context) {
	var req service.StepPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}
	st, err := h.svc.UpdateStep(c.Request.Context(), auth.UserFirebaseUID(c), idParam(c), req)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"step": st})
}

func (h *Handler) deleteStep(c *gin.Context) {
	if err := h.svc.DeleteStep(c.Request.Context(), auth.UserFirebaseUID(c), idParam(c)); err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, nil)
}

func (h *Handler) reorderSteps(c *gin.Context) {
	var req orderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}
	items, err := h.svc.ReorderSteps(c.Request.Context(), auth.UserFirebaseUID(c), idParam(c), req.IDs)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"steps": items})
}

func (h *Handler) createField(c *gin.Context) {
	var req service.FieldInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}
	f, err := h.svc.CreateField(c.Request.Context(), auth.UserFirebaseUID(c), idParam(c), req)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusCreated, gin.H{"field": f})
}

func (h *Handler) listFields(c *gin.Context) {
	items, err := h.svc.ListFields(c.Request.Context(), auth.UserFirebaseUID(c), idParam(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"fields": items})
}

func (h *Handler) updateField(c *gin.Context) {
	var req service.FieldPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}
	f, err := h.svc.UpdateField(c.Request.Context(), auth.UserFirebaseUID(c), idParam(c), req)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"field": f})
}

func (h *Handler) deleteField(c *gin.Context) {
	if err := h.svc.DeleteField(c.Request.Context(), auth.UserFirebaseUID(c), idParam(c)); err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, nil)
}

func (h *Handler) reorderFields(c *gin.Context) {
	var req orderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}
	items, err := h.svc.ReorderFields(c.Request.Context(), auth.UserFirebaseUID(c), idParam(c), req.IDs)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"fields": items})
}

func (h *Handler) createChoice(c *gin.Context) {
	var req service.ChoiceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}
	ch, err := h.svc.CreateChoice(c.Request.Context(), auth.UserFirebaseUID(c), idParam(c), req)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusCreated, gin.H{"choice": ch})
}

func (h *Handler) listChoices(c *gin.Context) {
	items, err := h.svc.ListChoices(c.Request.Context(), auth.UserFirebaseUID(c), idParam(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"choices": items})
}

func (h *Handler) updateChoice(c *gin.Context) {
	var req service.ChoicePatch
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}
	ch, err := h.svc.UpdateChoice(c.Request.Context(), auth.UserFirebaseUID(c), idParam(c), req)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"choice": ch})
}

func (h *Handler) deleteChoice(c *gin.Context) {
	if err := h.svc.DeleteChoice(c.Request.Context(), auth.UserFirebaseUID(c), idParam(c)); err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, nil)
}

func (h *Handler) reorderChoices(c *gin.Context) {
	var req orderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}
	items, err := h.svc.ReorderChoices(c.Request.Context(), auth.UserFirebaseUID(c), idParam(c), req.IDs)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"choices": items})
}

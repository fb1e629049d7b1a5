package http

import (
	"github.com/gin-gonic/gin"
)

// CheckUpdates compares every installed extension against the store
func (h *Handlers) CheckUpdates(c *gin.Context) {
	reply(c, h.controller.CheckUpdates(c.Request.Context()))
}

// UpdateExtension reinstalls an extension at a newer store version
func (h *Handlers) UpdateExtension(c *gin.Context) {
	id, ok := extensionID(c)
	if !ok {
		return
	}

	var req struct {
		Version string `json:"version"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	reply(c, h.controller.Update(c.Request.Context(), id, req.Version))
}

// RollbackExtension reinstalls the previously installed version
func (h *Handlers) RollbackExtension(c *gin.Context) {
	id, ok := extensionID(c)
	if !ok {
		return
	}
	reply(c, h.controller.Rollback(c.Request.Context(), id))
}

// PinExtension pins an extension to a version so update checks flag it
func (h *Handlers) PinExtension(c *gin.Context) {
	id, ok := extensionID(c)
	if !ok {
		return
	}

	var req struct {
		Version string `json:"version" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	reply(c, h.controller.PinVersion(id, req.Version))
}

// UnpinExtension clears an extension's version pin
func (h *Handlers) UnpinExtension(c *gin.Context) {
	id, ok := extensionID(c)
	if !ok {
		return
	}
	reply(c, h.controller.UnpinVersion(id))
}

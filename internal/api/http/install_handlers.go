package http

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/blueprint-desktop/exthost/internal/shared/paths"
)

// BrowseStore lists the store catalog
func (h *Handlers) BrowseStore(c *gin.Context) {
	reply(c, h.controller.FetchStore(c.Request.Context()))
}

// SearchStore searches the store catalog
func (h *Handlers) SearchStore(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	reply(c, h.controller.SearchStore(c.Request.Context(), query))
}

// GetStoreExtension returns one store listing
func (h *Handlers) GetStoreExtension(c *gin.Context) {
	id, ok := extensionID(c)
	if !ok {
		return
	}
	reply(c, h.controller.GetStoreExtension(c.Request.Context(), id))
}

// InstallExtension installs an extension from the store
func (h *Handlers) InstallExtension(c *gin.Context) {
	var req struct {
		ID      string `json:"id" binding:"required"`
		Version string `json:"version"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := paths.ValidateExtensionID(req.ID); err != nil {
		badRequest(c, err)
		return
	}

	reply(c, h.controller.Install(c.Request.Context(), req.ID, req.Version))
}

// InstallFromFile sideloads an extension from a local package file.
// The renderer shows the trust warning and sends acknowledged=true once
// the user confirms; without it the result carries
// requires_acknowledgment so the renderer knows to prompt.
func (h *Handlers) InstallFromFile(c *gin.Context) {
	var req struct {
		Path         string `json:"path" binding:"required"`
		Acknowledged bool   `json:"acknowledged"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	reply(c, h.controller.InstallFromFile(req.Path, req.Acknowledged))
}

// UninstallExtension removes an installed extension
func (h *Handlers) UninstallExtension(c *gin.Context) {
	id, ok := extensionID(c)
	if !ok {
		return
	}
	reply(c, h.controller.Uninstall(id))
}

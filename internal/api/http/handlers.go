package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blueprint-desktop/exthost/internal/domain/controller"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/logging"
	"github.com/blueprint-desktop/exthost/internal/shared/paths"
	"github.com/blueprint-desktop/exthost/internal/shared/types"
)

// Handlers contains all HTTP handlers. Every extension command returns
// the controller's {success, ...} envelope with status 200; HTTP status
// codes other than 200 mean the request itself was malformed, never
// that a command failed.
type Handlers struct {
	controller *controller.Controller
	log        *logging.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(ctrl *controller.Controller, log *logging.Logger) *Handlers {
	return &Handlers{
		controller: ctrl,
		log:        log.Component("http"),
	}
}

// Root handles the banner check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Blueprint Extension Host",
		"version": "0.4.0",
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	status := "healthy"
	if h.controller.State() != controller.StateReady {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"state":  string(h.controller.State()),
		"host":   h.controller.GetHostStatus().Data,
	})
}

// HostStatus reports the runtime supervisor's view
func (h *Handlers) HostStatus(c *gin.Context) {
	reply(c, h.controller.GetHostStatus())
}

// ListExtensions lists every installed extension
func (h *Handlers) ListExtensions(c *gin.Context) {
	reply(c, h.controller.GetAll())
}

// GetExtension returns one installed extension
func (h *Handlers) GetExtension(c *gin.Context) {
	id, ok := extensionID(c)
	if !ok {
		return
	}
	reply(c, h.controller.GetExtension(id))
}

// LoadExtension asks the runtime to load an extension bundle
func (h *Handlers) LoadExtension(c *gin.Context) {
	id, ok := extensionID(c)
	if !ok {
		return
	}
	reply(c, h.controller.Load(id))
}

// ActivateExtension asks the runtime to activate a loaded extension
func (h *Handlers) ActivateExtension(c *gin.Context) {
	id, ok := extensionID(c)
	if !ok {
		return
	}
	reply(c, h.controller.Activate(id))
}

// DeactivateExtension asks the runtime to deactivate an active extension
func (h *Handlers) DeactivateExtension(c *gin.Context) {
	id, ok := extensionID(c)
	if !ok {
		return
	}
	reply(c, h.controller.Deactivate(id))
}

// EnableExtension is the UI-facing alias for activate
func (h *Handlers) EnableExtension(c *gin.Context) {
	id, ok := extensionID(c)
	if !ok {
		return
	}
	reply(c, h.controller.Enable(id))
}

// DisableExtension is the UI-facing alias for deactivate
func (h *Handlers) DisableExtension(c *gin.Context) {
	id, ok := extensionID(c)
	if !ok {
		return
	}
	reply(c, h.controller.Disable(id))
}

// KillExtension forcibly tears an extension down in the runtime
func (h *Handlers) KillExtension(c *gin.Context) {
	id, ok := extensionID(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "requested by user"
	}

	reply(c, h.controller.Kill(id, req.Reason))
}

// ExtensionStats reports disk usage plus live runtime stats
func (h *Handlers) ExtensionStats(c *gin.Context) {
	id, ok := extensionID(c)
	if !ok {
		return
	}
	reply(c, h.controller.GetExtensionStats(c.Request.Context(), id))
}

// reply writes a command result. The envelope is the protocol; the
// renderer branches on success, not on status codes.
func reply(c *gin.Context, res *types.Result) {
	c.JSON(http.StatusOK, res)
}

// badRequest rejects a request the handler could not even parse
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// extensionID validates the :id path parameter. Syntactically invalid
// ids are malformed requests; ids that merely aren't installed flow
// through to the controller and come back as command failures.
func extensionID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if err := paths.ValidateExtensionID(id); err != nil {
		badRequest(c, err)
		return "", false
	}
	return id, true
}

package controller

import (
	"time"

	"github.com/blueprint-desktop/exthost/internal/shared/paths"
	"github.com/blueprint-desktop/exthost/internal/shared/types"
)

// GetHostStatus reports the supervisor's view of the runtime plus the
// controller's own phase.
func (c *Controller) GetHostStatus() *types.Result {
	return success(map[string]interface{}{
		"host":  c.host.Status(),
		"state": string(c.State()),
	})
}

// GetAll lists every installed extension in install order
func (c *Controller) GetAll() *types.Result {
	exts := c.registry.All()
	return success(map[string]interface{}{
		"extensions": exts,
		"count":      len(exts),
	})
}

// GetExtension returns one extension by id
func (c *Controller) GetExtension(extensionID string) *types.Result {
	ext, ok := c.registry.Get(extensionID)
	if !ok {
		return failure("extension not found: %s", extensionID)
	}
	return success(map[string]interface{}{"extension": ext})
}

// Load asks the runtime to load an installed extension's bundle. The
// result confirms the request was sent; the authoritative state lands
// later as an extension:loaded event.
func (c *Controller) Load(extensionID string) (res *types.Result) {
	start := time.Now()
	defer func() { c.observe("load", start, res) }()

	if err := c.guard(); err != nil {
		return failure("%v", err)
	}

	ext, ok := c.registry.Get(extensionID)
	if !ok {
		return failure("extension not found: %s", extensionID)
	}
	if ext.Manifest.Category == types.CategoryNative {
		return c.loadNative(ext)
	}
	if !c.host.IsReady() {
		return failure("extension runtime is not ready")
	}

	manifest := ext.Manifest
	err := c.bus.Send(&types.Message{
		Kind:        types.KindExtensionLoad,
		ExtensionID: extensionID,
		BundlePath:  paths.For(c.cfg.Extensions.Root, extensionID).Bundle(manifest.Entry),
		Manifest:    &manifest,
	})
	if err != nil {
		return failure("send load request: %v", err)
	}
	return success(map[string]interface{}{"extension_id": extensionID})
}

// Activate asks the runtime to activate a loaded extension. An
// extension may only become active while the runtime is ready and its
// trust tier is known; nothing is sent otherwise.
func (c *Controller) Activate(extensionID string) (res *types.Result) {
	start := time.Now()
	defer func() { c.observe("activate", start, res) }()

	if err := c.guard(); err != nil {
		return failure("%v", err)
	}

	ext, ok := c.registry.Get(extensionID)
	if !ok {
		return failure("extension not found: %s", extensionID)
	}
	if !ext.Verification.IsValid() {
		return failure("extension %s has no verification tier", extensionID)
	}
	if ext.Manifest.Category == types.CategoryNative {
		return c.activateNative(ext)
	}
	if !c.host.IsReady() {
		return failure("extension runtime is not ready")
	}

	err := c.bus.Send(&types.Message{
		Kind:        types.KindExtensionActivate,
		ExtensionID: extensionID,
	})
	if err != nil {
		return failure("send activate request: %v", err)
	}
	return success(map[string]interface{}{"extension_id": extensionID})
}

// Deactivate asks the runtime to deactivate an active extension
func (c *Controller) Deactivate(extensionID string) (res *types.Result) {
	start := time.Now()
	defer func() { c.observe("deactivate", start, res) }()

	if err := c.guard(); err != nil {
		return failure("%v", err)
	}

	ext, ok := c.registry.Get(extensionID)
	if !ok {
		return failure("extension not found: %s", extensionID)
	}
	if ext.Manifest.Category == types.CategoryNative {
		return c.deactivateNative(ext)
	}
	if !c.host.IsReady() {
		return failure("extension runtime is not ready")
	}

	err := c.bus.Send(&types.Message{
		Kind:        types.KindExtensionDeactivate,
		ExtensionID: extensionID,
	})
	if err != nil {
		return failure("send deactivate request: %v", err)
	}
	return success(map[string]interface{}{"extension_id": extensionID})
}

// Kill forcibly tears an extension down in the runtime
func (c *Controller) Kill(extensionID, reason string) (res *types.Result) {
	start := time.Now()
	defer func() { c.observe("kill", start, res) }()

	if err := c.guard(); err != nil {
		return failure("%v", err)
	}

	if _, ok := c.registry.Get(extensionID); !ok {
		return failure("extension not found: %s", extensionID)
	}
	if !c.host.IsReady() {
		return failure("extension runtime is not ready")
	}

	err := c.bus.Send(&types.Message{
		Kind:        types.KindExtensionKill,
		ExtensionID: extensionID,
		Reason:      reason,
	})
	if err != nil {
		return failure("send kill request: %v", err)
	}
	return success(map[string]interface{}{"extension_id": extensionID})
}

// Enable is the UI-facing alias for Activate
func (c *Controller) Enable(extensionID string) *types.Result {
	return c.Activate(extensionID)
}

// Disable is the UI-facing alias for Deactivate
func (c *Controller) Disable(extensionID string) *types.Result {
	return c.Deactivate(extensionID)
}

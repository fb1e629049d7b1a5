package controller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/blueprint-desktop/exthost/internal/shared/types"
)

// FetchStore lists every extension the store offers
func (c *Controller) FetchStore(ctx context.Context) *types.Result {
	listing, err := c.store.List(ctx)
	if err != nil {
		return failure("fetch store listing: %v", err)
	}
	return success(map[string]interface{}{
		"extensions": listing,
		"count":      len(listing),
	})
}

// SearchStore queries the store catalog
func (c *Controller) SearchStore(ctx context.Context, query string) *types.Result {
	matches, err := c.store.Search(ctx, query)
	if err != nil {
		return failure("search store: %v", err)
	}
	return success(map[string]interface{}{
		"extensions": matches,
		"count":      len(matches),
		"query":      query,
	})
}

// GetStoreExtension fetches one store listing by id
func (c *Controller) GetStoreExtension(ctx context.Context, storeID string) *types.Result {
	listing, err := c.store.Get(ctx, storeID)
	if err != nil {
		return failure("get store extension %s: %v", storeID, err)
	}
	return success(map[string]interface{}{"extension": listing})
}

// Install downloads an extension from the store and installs it. An
// empty version resolves to the latest release.
func (c *Controller) Install(ctx context.Context, storeID, version string) (res *types.Result) {
	start := time.Now()
	defer func() { c.observe("install", start, res) }()

	if err := c.guard(); err != nil {
		return failure("%v", err)
	}

	ext, err := c.installer.InstallFromStore(ctx, storeID, version)
	if err != nil {
		return failure("install %s: %v", storeID, err)
	}

	c.register(ext)
	return success(map[string]interface{}{"extension": ext})
}

// InstallFromFile installs a local .bpx package. Sideloading is an
// explicit trust decision, so the caller must pass the acknowledgment
// flag; without it nothing is touched and the result says why.
func (c *Controller) InstallFromFile(path string, acknowledged bool) (res *types.Result) {
	start := time.Now()
	defer func() { c.observe("install_file", start, res) }()

	if err := c.guard(); err != nil {
		return failure("%v", err)
	}

	if !acknowledged {
		msg := "sideloading requires explicit acknowledgment"
		return &types.Result{
			Success:                false,
			Error:                  &msg,
			RequiresAcknowledgment: true,
		}
	}

	ext, err := c.installer.InstallFromFile(path)
	if err != nil {
		return failure("install from file: %v", err)
	}

	c.register(ext)
	return success(map[string]interface{}{"extension": ext})
}

// Uninstall deactivates an extension if needed, then removes it from
// disk and the registry.
func (c *Controller) Uninstall(extensionID string) (res *types.Result) {
	start := time.Now()
	defer func() { c.observe("uninstall", start, res) }()

	if err := c.guard(); err != nil {
		return failure("%v", err)
	}

	ext, ok := c.registry.Get(extensionID)
	if !ok {
		return failure("extension not found: %s", extensionID)
	}

	c.retireFromRuntime(ext)

	if err := c.installer.Uninstall(extensionID); err != nil {
		return failure("uninstall %s: %v", extensionID, err)
	}

	c.registry.Unregister(extensionID)
	c.metrics.SetExtensionsInstalled(c.registry.Count())
	c.metrics.SetExtensionsActive(c.registry.CountByState(types.StateActive))
	c.hub.Publish(types.Event{
		Type:        types.EventStateChanged,
		ExtensionID: extensionID,
		State:       types.StateNotInstalled,
	})
	return success(map[string]interface{}{"extension_id": extensionID})
}

// register records a freshly installed extension and announces it
func (c *Controller) register(ext *types.Extension) {
	c.registry.Register(ext)
	c.metrics.SetExtensionsInstalled(c.registry.Count())
	c.log.Info("Extension installed",
		zap.String("extension_id", ext.Manifest.ID),
		zap.String("version", ext.Manifest.Version),
		zap.String("verification", string(ext.Verification)))

	c.hub.Publish(types.Event{
		Type:        types.EventStateChanged,
		ExtensionID: ext.Manifest.ID,
		State:       ext.State,
	})
}

// retireFromRuntime sends a best-effort deactivate for an extension
// that is live in the runtime. The removal proceeds either way.
func (c *Controller) retireFromRuntime(ext *types.Extension) {
	live := ext.State == types.StateActive || ext.State == types.StateLoaded
	if !live || ext.Manifest.Category == types.CategoryNative || !c.host.IsReady() {
		return
	}

	err := c.bus.Send(&types.Message{
		Kind:        types.KindExtensionDeactivate,
		ExtensionID: ext.Manifest.ID,
	})
	if err != nil {
		c.log.Warn("Deactivate before removal failed",
			zap.String("extension_id", ext.Manifest.ID),
			zap.Error(err))
	}
}

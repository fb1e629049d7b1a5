package controller

import (
	"go.uber.org/zap"

	"github.com/blueprint-desktop/exthost/internal/shared/types"
)

// Native extensions run in the host process itself, not in the
// sandboxed runtime, so they never touch the bus. Only packages
// installed from the store with the verified tier qualify; everything
// below that tier is refused before any side effect.
//
// Execution is a stub for now: state is tracked here so the rest of
// the system treats native extensions uniformly, but no code from the
// bundle is run. TODO(native): dlopen-style loading once the plugin
// ABI is settled.

func (c *Controller) loadNative(ext *types.Extension) *types.Result {
	if ext.Verification != types.VerificationVerified {
		return failure("native extension %s requires the verified tier, got %s",
			ext.Manifest.ID, ext.Verification)
	}

	c.log.Info("Native extension loaded",
		zap.String("extension_id", ext.Manifest.ID))
	c.applyState(ext.Manifest.ID, types.StateLoaded, "")
	return success(map[string]interface{}{"extension_id": ext.Manifest.ID})
}

func (c *Controller) activateNative(ext *types.Extension) *types.Result {
	if ext.Verification != types.VerificationVerified {
		return failure("native extension %s requires the verified tier, got %s",
			ext.Manifest.ID, ext.Verification)
	}

	c.log.Info("Native extension activated",
		zap.String("extension_id", ext.Manifest.ID))
	c.applyState(ext.Manifest.ID, types.StateActive, "")
	return success(map[string]interface{}{"extension_id": ext.Manifest.ID})
}

func (c *Controller) deactivateNative(ext *types.Extension) *types.Result {
	if ext.Verification != types.VerificationVerified {
		return failure("native extension %s requires the verified tier, got %s",
			ext.Manifest.ID, ext.Verification)
	}

	c.log.Info("Native extension deactivated",
		zap.String("extension_id", ext.Manifest.ID))
	c.applyState(ext.Manifest.ID, types.StateLoaded, "")
	return success(map[string]interface{}{"extension_id": ext.Manifest.ID})
}

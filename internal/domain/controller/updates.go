package controller

import (
	"context"
	"errors"
	"time"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/blueprint-desktop/exthost/internal/shared/types"
	"github.com/blueprint-desktop/exthost/internal/store"
)

// CheckUpdates compares every installed store extension against the
// catalog. Sideloads are skipped, they have no store listing. Pinned
// extensions are reported with the pin noted, never withheld.
func (c *Controller) CheckUpdates(ctx context.Context) (res *types.Result) {
	start := time.Now()
	defer func() { c.observe("check_updates", start, res) }()

	updates := []types.UpdateInfo{}
	for _, ext := range c.registry.All() {
		if ext.Verification == types.VerificationSideloaded {
			continue
		}

		listing, err := c.store.Get(ctx, ext.Manifest.ID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return failure("check updates: %v", err)
		}

		if info, ok := newerVersion(ext, listing); ok {
			updates = append(updates, info)
		}
	}

	return success(map[string]interface{}{
		"updates": updates,
		"count":   len(updates),
	})
}

// RunScheduledCheck is the cron entry point for background update
// checks. Available updates are announced on the event hub.
func (c *Controller) RunScheduledCheck(ctx context.Context) {
	if c.guard() != nil {
		return
	}

	res := c.CheckUpdates(ctx)
	if !res.Success {
		c.log.Warn("Scheduled update check failed", zap.Stringp("error", res.Error))
		return
	}

	count, _ := res.Data["count"].(int)
	if count == 0 {
		return
	}

	c.log.Info("Updates available", zap.Int("count", count))
	c.hub.Publish(types.Event{
		Type: types.EventUpdatesAvailable,
		Data: res.Data,
	})
}

// Update reinstalls an extension from the store at the requested
// version, or the latest release when none is given. The replaced
// version is recorded so a rollback can find it. A pin does not block
// an explicit update.
func (c *Controller) Update(ctx context.Context, extensionID, version string) (res *types.Result) {
	start := time.Now()
	defer func() { c.observe("update", start, res) }()

	if err := c.guard(); err != nil {
		return failure("%v", err)
	}

	ext, ok := c.registry.Get(extensionID)
	if !ok {
		return failure("extension not found: %s", extensionID)
	}
	if ext.Verification == types.VerificationSideloaded {
		return failure("extension %s was sideloaded and has no store releases", extensionID)
	}
	if ext.PinnedVersion != nil {
		c.log.Info("Updating a pinned extension",
			zap.String("extension_id", extensionID),
			zap.String("pinned_version", *ext.PinnedVersion))
	}

	c.retireFromRuntime(ext)

	updated, err := c.installer.InstallFromStore(ctx, extensionID, version)
	if err != nil {
		return failure("update %s: %v", extensionID, err)
	}

	c.register(updated)
	return success(map[string]interface{}{
		"extension":        updated,
		"previous_version": ext.Manifest.Version,
	})
}

// Rollback reinstalls the version an extension had before its last
// update. Only one step back is recorded.
func (c *Controller) Rollback(ctx context.Context, extensionID string) (res *types.Result) {
	start := time.Now()
	defer func() { c.observe("rollback", start, res) }()

	if err := c.guard(); err != nil {
		return failure("%v", err)
	}

	ext, ok := c.registry.Get(extensionID)
	if !ok {
		return failure("extension not found: %s", extensionID)
	}

	record, err := c.installer.Record(extensionID)
	if err != nil {
		return failure("rollback %s: %v", extensionID, err)
	}
	if record.PreviousVersion == "" {
		return failure("no previous version recorded for %s", extensionID)
	}

	c.retireFromRuntime(ext)

	restored, err := c.installer.InstallFromStore(ctx, extensionID, record.PreviousVersion)
	if err != nil {
		return failure("rollback %s to %s: %v", extensionID, record.PreviousVersion, err)
	}

	c.register(restored)
	return success(map[string]interface{}{
		"extension":        restored,
		"rolled_back_from": ext.Manifest.Version,
	})
}

// PinVersion records a version pin. Pins are advisory: update checks
// report them, explicit updates override them.
func (c *Controller) PinVersion(extensionID, version string) (res *types.Result) {
	start := time.Now()
	defer func() { c.observe("pin", start, res) }()

	if err := c.guard(); err != nil {
		return failure("%v", err)
	}

	if _, ok := c.registry.Get(extensionID); !ok {
		return failure("extension not found: %s", extensionID)
	}
	if _, err := semver.NewVersion(version); err != nil {
		return failure("invalid version %q: %v", version, err)
	}

	if err := c.installer.Pin(extensionID, version); err != nil {
		return failure("pin %s: %v", extensionID, err)
	}
	c.registry.SetPinned(extensionID, &version)

	return success(map[string]interface{}{
		"extension_id":   extensionID,
		"pinned_version": version,
	})
}

// UnpinVersion clears a recorded pin
func (c *Controller) UnpinVersion(extensionID string) (res *types.Result) {
	start := time.Now()
	defer func() { c.observe("unpin", start, res) }()

	if err := c.guard(); err != nil {
		return failure("%v", err)
	}

	if _, ok := c.registry.Get(extensionID); !ok {
		return failure("extension not found: %s", extensionID)
	}

	if err := c.installer.Pin(extensionID, ""); err != nil {
		return failure("unpin %s: %v", extensionID, err)
	}
	c.registry.SetPinned(extensionID, nil)

	return success(map[string]interface{}{"extension_id": extensionID})
}

// newerVersion reports whether the store lists a release newer than
// the installed one. Versions that do not parse as semver are skipped
// rather than failing the whole check.
func newerVersion(ext *types.Extension, listing *types.StoreExtension) (types.UpdateInfo, bool) {
	current, err := semver.NewVersion(ext.Manifest.Version)
	if err != nil {
		return types.UpdateInfo{}, false
	}
	latest, err := semver.NewVersion(listing.Version)
	if err != nil {
		return types.UpdateInfo{}, false
	}
	if !latest.GreaterThan(current) {
		return types.UpdateInfo{}, false
	}

	return types.UpdateInfo{
		ExtensionID:    ext.Manifest.ID,
		CurrentVersion: ext.Manifest.Version,
		LatestVersion:  listing.Version,
		Pinned:         ext.PinnedVersion != nil,
	}, true
}

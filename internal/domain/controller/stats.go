package controller

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"

	"github.com/blueprint-desktop/exthost/internal/shared/id"
	"github.com/blueprint-desktop/exthost/internal/shared/paths"
	"github.com/blueprint-desktop/exthost/internal/shared/types"
)

// GetExtensionStats merges the runtime's usage snapshot for one
// extension with its on-disk footprint. When the runtime is down the
// disk numbers still come back, flagged so the caller can tell.
func (c *Controller) GetExtensionStats(ctx context.Context, extensionID string) (res *types.Result) {
	start := time.Now()
	defer func() { c.observe("stats", start, res) }()

	if err := c.guard(); err != nil {
		return failure("%v", err)
	}

	ext, ok := c.registry.Get(extensionID)
	if !ok {
		return failure("extension not found: %s", extensionID)
	}

	diskBytes, diskFiles := c.diskUsage(extensionID)
	data := map[string]interface{}{
		"extension_id": extensionID,
		"state":        string(ext.State),
		"disk_bytes":   diskBytes,
		"disk_files":   diskFiles,
		"runtime":      false,
	}

	if !c.host.IsReady() {
		return success(data)
	}

	snapshot, err := c.runtimeStats(ctx)
	if err != nil {
		return failure("runtime stats: %v", err)
	}

	data["runtime"] = true
	for i := range snapshot {
		if snapshot[i].ExtensionID == extensionID {
			data["stats"] = snapshot[i]
			break
		}
	}

	c.hub.Publish(types.Event{
		Type: types.EventStats,
		Data: map[string]interface{}{"extensions": snapshot},
	})
	return success(data)
}

// runtimeStats performs one host:stats round trip. The call slot is
// registered before the request is sent, so the reply cannot race its
// own registration.
func (c *Controller) runtimeStats(ctx context.Context) ([]types.ExtensionStats, error) {
	callID := id.NewCallID().String()

	value, err := c.pending.Call(ctx, callID, c.cfg.Runtime.StatsTimeout, func() error {
		c.metrics.SetPendingCalls(c.pending.Len())
		return c.bus.Send(&types.Message{
			Kind:   types.KindHostStats,
			CallID: callID,
		})
	})
	c.metrics.SetPendingCalls(c.pending.Len())
	if err != nil {
		return nil, err
	}

	snapshot, ok := value.([]types.ExtensionStats)
	if !ok {
		c.log.Warn("Malformed stats reply", zap.String("call_id", callID))
		return nil, nil
	}
	return snapshot, nil
}

// diskUsage totals the regular files under an extension's directory
func (c *Controller) diskUsage(extensionID string) (int64, int64) {
	var bytes, files atomic.Int64

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, paths.For(c.cfg.Extensions.Root, extensionID).Dir(),
		func(p string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if info, err := d.Info(); err == nil && info.Mode().IsRegular() {
				bytes.Add(info.Size())
				files.Add(1)
			}
			return nil
		})
	if err != nil {
		c.log.Debug("Disk usage walk failed",
			zap.String("extension_id", extensionID),
			zap.Error(err))
	}

	return bytes.Load(), files.Load()
}

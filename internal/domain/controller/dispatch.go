package controller

import (
	"errors"

	"go.uber.org/zap"

	"github.com/blueprint-desktop/exthost/internal/shared/types"
)

// handleMessage is the inbound bus dispatch. It runs on the bus reader
// goroutine, one message at a time; anything slow (API calls) is
// handed off by the bridge.
func (c *Controller) handleMessage(msg *types.Message) {
	switch msg.Kind {
	case types.KindHostReady:
		c.host.MarkReady()

	case types.KindHostCrashed:
		c.host.ReportCrash(msg.Error)

	case types.KindExtensionLoaded:
		c.applyState(msg.ExtensionID, types.StateLoaded, "")

	case types.KindExtensionActivated:
		c.applyState(msg.ExtensionID, types.StateActive, "")

	case types.KindExtensionDeactivated:
		c.applyState(msg.ExtensionID, types.StateLoaded, "")

	case types.KindExtensionKilled:
		c.applyState(msg.ExtensionID, types.StateKilled, msg.Reason)

	case types.KindExtensionError:
		c.applyError(msg.ExtensionID, msg.Error)

	case types.KindWatchdogViolation:
		c.applyViolation(msg.Violation)

	case types.KindAPICall:
		c.router.Handle(msg)

	case types.KindAPIResult:
		c.resolveCall(msg.CallID, msg.Result, "")

	case types.KindAPIError:
		c.resolveCall(msg.CallID, nil, msg.Error)

	case types.KindHostStats:
		c.resolveCall(msg.CallID, msg.Extensions, "")

	default:
		c.log.Warn("Dropping message of unknown kind",
			zap.String("kind", string(msg.Kind)))
	}
}

// applyState records a lifecycle event reported by the runtime. The
// runtime is authoritative for loaded/active/deactivated/killed; the
// registry only mirrors it.
func (c *Controller) applyState(extensionID string, state types.ExtensionState, reason string) {
	if !c.registry.SetState(extensionID, state) {
		c.log.Warn("State event for unknown extension",
			zap.String("extension_id", extensionID),
			zap.String("state", string(state)))
		return
	}
	c.metrics.SetExtensionsActive(c.registry.CountByState(types.StateActive))
	c.log.Info("Extension state changed",
		zap.String("extension_id", extensionID),
		zap.String("state", string(state)))

	ev := types.Event{
		Type:        types.EventStateChanged,
		ExtensionID: extensionID,
		State:       state,
	}
	if reason != "" {
		ev.Data = map[string]interface{}{"reason": reason}
	}
	c.hub.Publish(ev)
}

func (c *Controller) applyError(extensionID, errMsg string) {
	if !c.registry.SetError(extensionID, errMsg) {
		c.log.Warn("Error event for unknown extension",
			zap.String("extension_id", extensionID))
		return
	}
	c.metrics.SetExtensionsActive(c.registry.CountByState(types.StateActive))
	c.log.Warn("Extension reported an error",
		zap.String("extension_id", extensionID),
		zap.String("error", errMsg))

	c.hub.Publish(types.Event{
		Type:        types.EventStateChanged,
		ExtensionID: extensionID,
		State:       types.StateError,
		Error:       &errMsg,
	})
}

// applyViolation forwards a watchdog signal to the UI layer. Violations
// are never persisted.
func (c *Controller) applyViolation(v *types.WatchdogViolation) {
	if v == nil {
		return
	}
	c.log.Warn("Watchdog violation",
		zap.String("extension_id", v.ExtensionID),
		zap.String("type", v.Type),
		zap.String("details", v.Details))

	c.hub.Publish(types.Event{
		Type:        types.EventViolation,
		ExtensionID: v.ExtensionID,
		Data: map[string]interface{}{
			"type":    v.Type,
			"details": v.Details,
		},
	})
}

// resolveCall completes a pending call by id. Replies for calls that
// already timed out or were flushed are dropped.
func (c *Controller) resolveCall(callID string, value interface{}, errMsg string) {
	if callID == "" {
		c.log.Warn("Reply without a call id")
		return
	}

	var ok bool
	if errMsg != "" {
		ok = c.pending.Reject(callID, errors.New(errMsg))
	} else {
		ok = c.pending.Resolve(callID, value)
	}
	if !ok {
		c.log.Debug("Late reply dropped", zap.String("call_id", callID))
	}
	c.metrics.SetPendingCalls(c.pending.Len())
}

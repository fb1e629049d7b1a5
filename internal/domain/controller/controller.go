package controller

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blueprint-desktop/exthost/internal/bridge"
	"github.com/blueprint-desktop/exthost/internal/bus"
	"github.com/blueprint-desktop/exthost/internal/domain/extension"
	"github.com/blueprint-desktop/exthost/internal/domain/host"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/config"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/logging"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/monitoring"
	"github.com/blueprint-desktop/exthost/internal/installer"
	"github.com/blueprint-desktop/exthost/internal/pending"
	"github.com/blueprint-desktop/exthost/internal/providers/network"
	"github.com/blueprint-desktop/exthost/internal/providers/storage"
	"github.com/blueprint-desktop/exthost/internal/providers/ui"
	"github.com/blueprint-desktop/exthost/internal/shared/types"
	"github.com/blueprint-desktop/exthost/internal/store"
)

// State is the controller's lifecycle phase. It mirrors the runtime
// supervisor, except that exhausting the restart ceiling parks the
// controller at stopped: the extension system is unavailable, the
// application keeps running.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateReady    State = "ready"
	StateDegraded State = "degraded"
)

var (
	errShuttingDown = errors.New("extension system is shutting down")
	errRuntimeDown  = errors.New("extension runtime went down")
)

// Controller owns the extension system: the registry, the runtime
// supervisor, the message bus, the installer, the store client, and
// the API bridge. Every public command returns a types.Result; none
// panic across the boundary.
type Controller struct {
	cfg     *config.Config
	log     *logging.Logger
	metrics *monitoring.Metrics

	registry  *extension.Registry
	bus       *bus.Bus
	host      *host.Host
	store     *store.Client
	installer *installer.Installer
	router    *bridge.Router
	pending   *pending.Registry
	hub       *Hub

	mu           sync.Mutex
	state        State
	shuttingDown bool
}

// New wires the controller and everything beneath it. Nothing starts
// until Initialize.
func New(cfg *config.Config, log *logging.Logger, metrics *monitoring.Metrics) *Controller {
	c := &Controller{
		cfg:     cfg,
		log:     log.Component("controller"),
		metrics: metrics,
		pending: pending.NewRegistry(),
		hub:     NewHub(log),
		state:   StateStopped,
	}

	c.registry = extension.NewRegistry(log)
	c.bus = bus.New(log, metrics, c.handleMessage)
	c.host = host.New(cfg.Runtime, c.bus, log).WithMetrics(metrics)
	c.host.OnTransition(c.onHostTransition)
	c.store = store.New(cfg.Store, log).WithMetrics(metrics)
	c.installer = installer.New(cfg.Extensions.Root, c.store, log).WithMetrics(metrics)

	c.router = bridge.NewRouter(c.bus, cfg.Runtime.CallTimeout, log).WithMetrics(metrics)
	c.router.Register("ui", ui.New(c.hub, log))
	c.router.Register("storage", storage.New(cfg.Extensions.Root, log))
	c.router.Register("network", network.New(log))

	return c
}

// Initialize brings the extension system up: seed the registry from
// disk, then start the runtime. A runtime that fails to spawn leaves
// the system degraded; it is never an application-level failure.
func (c *Controller) Initialize() error {
	if err := os.MkdirAll(c.cfg.Extensions.Root, 0o755); err != nil {
		return fmt.Errorf("create extensions root: %w", err)
	}

	c.mu.Lock()
	if c.state != StateStopped {
		c.mu.Unlock()
		return nil
	}
	c.shuttingDown = false
	c.state = StateStarting
	c.mu.Unlock()

	loaded, failed := c.registry.LoadFromDisk(c.cfg.Extensions.Root)
	c.metrics.SetExtensionsInstalled(c.registry.Count())
	c.log.Info("Registry seeded from disk",
		zap.Int("loaded", loaded),
		zap.Int("failed", failed))

	if err := c.host.Start(); err != nil {
		c.log.Error("Runtime failed to start, extension system degraded",
			zap.Error(err))
	}
	return nil
}

// Shutdown stops the extension system. The shutdown flag is set before
// anything else so no command, bridge reply, or restart timer can race
// the teardown; the supervisor repeats the same discipline for its own
// timer before sending host:shutdown and terminating the process.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	if c.shuttingDown {
		c.mu.Unlock()
		return
	}
	c.shuttingDown = true
	c.mu.Unlock()

	c.log.Info("Extension system shutting down")

	if flushed := c.pending.Flush(errShuttingDown); flushed > 0 {
		c.log.Warn("Flushed in-flight calls", zap.Int("count", flushed))
	}

	c.host.Stop()

	c.mu.Lock()
	c.state = StateStopped
	c.mu.Unlock()
}

// State returns the controller's lifecycle phase
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Events exposes the hub so transport layers can subscribe
func (c *Controller) Events() *Hub {
	return c.hub
}

// guard rejects commands once shutdown has begun
func (c *Controller) guard() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shuttingDown {
		return errShuttingDown
	}
	return nil
}

// onHostTransition mirrors supervisor transitions into the controller
// FSM. It runs under the supervisor's lock, so it must not call back
// into the host; the status snapshot carries everything it needs.
func (c *Controller) onHostTransition(from, to host.State, status types.HostStatus) {
	next := c.stateFor(to, status)

	c.mu.Lock()
	if next != "" && c.state != next && !c.shuttingDown {
		c.log.Info("Controller state change",
			zap.String("from", string(c.state)),
			zap.String("to", string(next)))
		c.state = next
	}
	current := c.state
	c.mu.Unlock()

	if to == host.StateDegraded {
		if n := c.pending.Flush(errRuntimeDown); n > 0 {
			c.log.Warn("Flushed in-flight calls after runtime crash",
				zap.Int("count", n))
		}
	}

	c.hub.Publish(types.Event{
		Type: types.EventHostStatus,
		Data: map[string]interface{}{
			"host":  status,
			"state": string(current),
		},
	})
}

// stateFor maps a supervisor state to the controller phase it implies.
// Empty means the transition is transient and the phase keeps.
func (c *Controller) stateFor(to host.State, status types.HostStatus) State {
	switch to {
	case host.StateStarting:
		return StateStarting
	case host.StateReady:
		return StateReady
	case host.StateDegraded:
		if status.RestartCount > c.cfg.Runtime.RestartCap {
			return StateStopped
		}
		return StateDegraded
	case host.StateStopped:
		return StateStopped
	}
	return ""
}

// observe records one command's outcome
func (c *Controller) observe(op string, start time.Time, res *types.Result) {
	status := "success"
	if res == nil || !res.Success {
		status = "error"
	}
	c.metrics.RecordOperation(op, status, time.Since(start))
}

func success(data map[string]interface{}) *types.Result {
	return &types.Result{Success: true, Data: data}
}

func failure(format string, args ...interface{}) *types.Result {
	msg := fmt.Sprintf(format, args...)
	return &types.Result{Success: false, Error: &msg}
}

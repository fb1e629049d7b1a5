package host

import (
	"bufio"
	"errors"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/blueprint-desktop/exthost/internal/bus"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/config"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/logging"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/monitoring"
	"github.com/blueprint-desktop/exthost/internal/shared/types"
)

// State is the supervisor's lifecycle state
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateReady    State = "ready"
	StateDegraded State = "degraded"
	StateStopping State = "stopping"
)

var ErrShuttingDown = errors.New("host: shutting down")

// TransitionFunc observes state changes. It runs synchronously on the
// supervisor's goroutine with the lock held and must not call back
// into the Host.
type TransitionFunc func(from, to State, status types.HostStatus)

// Host supervises the extension runtime process. It is the sole owner
// of the child process handle: it spawns the binary, attaches the bus
// to its stdin/stdout, detects crashes through process exit, and
// schedules restarts with a linear backoff up to a hard cap.
//
// Readiness is not inferred: the runtime announces host:ready on the
// bus and the controller forwards it here via MarkReady.
type Host struct {
	cfg     config.RuntimeConfig
	bus     *bus.Bus
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu           sync.Mutex
	state        State
	cmd          *exec.Cmd
	exited       chan struct{}
	startTime    time.Time
	restartCount int
	lastError    *string
	shuttingDown bool
	restartTimer *time.Timer
	onTransition TransitionFunc
}

// New creates a supervisor for the runtime binary named in cfg
func New(cfg config.RuntimeConfig, b *bus.Bus, log *logging.Logger) *Host {
	return &Host{
		cfg:   cfg,
		bus:   b,
		log:   log.Component("host"),
		state: StateStopped,
	}
}

// WithMetrics adds metrics tracking to the supervisor
func (h *Host) WithMetrics(metrics *monitoring.Metrics) *Host {
	h.metrics = metrics
	return h
}

// OnTransition registers the state observer. Set before Start.
func (h *Host) OnTransition(fn TransitionFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onTransition = fn
}

// Start spawns the runtime process. Calling Start while a live process
// exists is a no-op. A spawn failure records the error and leaves the
// supervisor degraded; the caller decides whether that is fatal.
func (h *Host) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case StateStarting, StateReady:
		return nil
	case StateStopping:
		return ErrShuttingDown
	}

	h.shuttingDown = false
	h.restartCount = 0
	return h.spawnLocked()
}

// spawnLocked starts one process attempt. Per-attempt state is reset
// first so a stale error never outlives the attempt that caused it.
func (h *Host) spawnLocked() error {
	h.startTime = time.Now()
	h.lastError = nil

	cmd := exec.Command(h.cfg.Binary)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return h.failLocked(err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return h.failLocked(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return h.failLocked(err)
	}

	if err := cmd.Start(); err != nil {
		return h.failLocked(err)
	}

	h.cmd = cmd
	exited := make(chan struct{})
	h.exited = exited
	h.setStateLocked(StateStarting)

	if err := h.bus.Attach(bus.NewIOTransport(stdout, stdin)); err != nil {
		h.log.Warn("Bus attach failed", zap.Error(err))
	}

	go h.forwardStderr(stderr)
	go h.watch(cmd, exited)

	h.log.Info("Runtime process started",
		zap.String("binary", h.cfg.Binary),
		zap.Int("pid", cmd.Process.Pid))
	return nil
}

// failLocked records a spawn failure and degrades
func (h *Host) failLocked(err error) error {
	msg := err.Error()
	h.lastError = &msg
	h.cmd = nil
	h.exited = nil
	h.setStateLocked(StateDegraded)
	h.log.Error("Failed to spawn runtime", zap.Error(err))
	return err
}

// MarkReady records the runtime's explicit ready signal
func (h *Host) MarkReady() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateStarting {
		h.log.Warn("Unexpected ready signal", zap.String("state", string(h.state)))
		return
	}

	h.setStateLocked(StateReady)
	if h.metrics != nil {
		h.metrics.SetRuntimeUp(true)
	}
	h.log.Info("Runtime ready",
		zap.Duration("startup", time.Since(h.startTime)))
}

// watch blocks until the process exits
func (h *Host) watch(cmd *exec.Cmd, exited chan struct{}) {
	err := cmd.Wait()
	close(exited)
	h.handleExit(err)
}

// handleExit runs crash detection for one process exit. An exit during
// shutdown is expected and handled by Stop; anything else is a crash.
func (h *Host) handleExit(exitErr error) {
	h.bus.Detach()

	h.mu.Lock()
	if h.shuttingDown {
		h.mu.Unlock()
		return
	}

	desc := "runtime exited"
	if exitErr != nil {
		desc = exitErr.Error()
	}
	h.lastError = &desc
	h.restartCount++
	count := h.restartCount
	h.setStateLocked(StateDegraded)
	if h.metrics != nil {
		h.metrics.IncRuntimeCrashes()
		h.metrics.SetRuntimeUp(false)
	}

	if count > h.cfg.RestartCap {
		h.mu.Unlock()
		h.log.Error("Runtime crash ceiling reached, giving up",
			zap.Int("restart_count", count-1),
			zap.String("error", desc))
		return
	}

	delay := h.cfg.RestartBackoff * time.Duration(count)
	h.restartTimer = time.AfterFunc(delay, h.restart)
	h.mu.Unlock()

	h.log.Warn("Runtime crashed, restart scheduled",
		zap.Int("restart_count", count),
		zap.Duration("delay", delay),
		zap.String("error", desc))
}

// ReportCrash handles the runtime announcing a fatal error on the bus.
// The process may or may not manage to exit on its own afterwards;
// killing it folds both signals into the single exit path, so the
// crash is counted exactly once.
func (h *Host) ReportCrash(reason string) {
	h.mu.Lock()
	if h.shuttingDown || h.cmd == nil || h.cmd.Process == nil {
		h.mu.Unlock()
		return
	}
	proc := h.cmd.Process
	h.mu.Unlock()

	h.log.Error("Runtime reported a fatal error", zap.String("reason", reason))
	_ = proc.Kill()
}

// restart is the backoff timer callback. The shutdown flag is
// re-checked under the lock: a timer that fired while Stop was
// acquiring the lock must not resurrect a dying process.
func (h *Host) restart() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.shuttingDown || h.state != StateDegraded {
		return
	}
	h.restartTimer = nil

	if h.metrics != nil {
		h.metrics.IncRuntimeRestarts()
	}
	h.log.Info("Restarting runtime", zap.Int("attempt", h.restartCount))

	if err := h.spawnLocked(); err != nil {
		h.log.Error("Runtime restart failed", zap.Error(err))
	}
}

// Stop shuts the runtime down: shutdown flag first, then the restart
// timer, then a polite host:shutdown, escalating to SIGTERM and
// SIGKILL if the process lingers. All counters reset.
func (h *Host) Stop() {
	h.mu.Lock()
	if h.state == StateStopped || h.state == StateStopping {
		h.mu.Unlock()
		return
	}

	h.shuttingDown = true
	if h.restartTimer != nil {
		h.restartTimer.Stop()
		h.restartTimer = nil
	}
	cmd := h.cmd
	exited := h.exited
	h.setStateLocked(StateStopping)
	h.mu.Unlock()

	if cmd != nil && exited != nil {
		_ = h.bus.Send(&types.Message{Kind: types.KindHostShutdown})

		select {
		case <-exited:
		case <-time.After(h.cfg.ShutdownGrace):
			h.log.Warn("Runtime did not exit, sending SIGTERM")
			_ = cmd.Process.Signal(syscall.SIGTERM)
			select {
			case <-exited:
			case <-time.After(h.cfg.ShutdownGrace):
				h.log.Warn("Runtime ignored SIGTERM, killing")
				_ = cmd.Process.Kill()
				<-exited
			}
		}
	}
	h.bus.Detach()

	h.mu.Lock()
	h.cmd = nil
	h.exited = nil
	h.startTime = time.Time{}
	h.restartCount = 0
	h.lastError = nil
	h.setStateLocked(StateStopped)
	if h.metrics != nil {
		h.metrics.SetRuntimeUp(false)
	}
	h.mu.Unlock()

	h.log.Info("Runtime stopped")
}

// State returns the current lifecycle state
func (h *Host) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// IsReady reports whether the runtime has announced readiness
func (h *Host) IsReady() bool {
	return h.State() == StateReady
}

// Status returns the externally visible process view
func (h *Host) Status() types.HostStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statusLocked()
}

func (h *Host) statusLocked() types.HostStatus {
	running := h.state == StateStarting || h.state == StateReady
	status := types.HostStatus{
		Running:      running,
		Ready:        h.state == StateReady,
		RestartCount: h.restartCount,
		LastError:    h.lastError,
	}
	if running && !h.startTime.IsZero() {
		status.UptimeMS = time.Since(h.startTime).Milliseconds()
	}
	return status
}

func (h *Host) setStateLocked(to State) {
	from := h.state
	if from == to {
		return
	}
	h.state = to
	if h.onTransition != nil {
		h.onTransition(from, to, h.statusLocked())
	}
}

// forwardStderr relays the runtime's stderr lines into the host log.
// Stdout is the protocol channel, so everything the runtime prints
// for humans arrives here.
func (h *Host) forwardStderr(r io.ReadCloser) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		h.log.Debug("Runtime stderr", zap.String("line", scanner.Text()))
	}
}

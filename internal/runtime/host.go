package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blueprint-desktop/exthost/internal/bus"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/logging"
	"github.com/blueprint-desktop/exthost/internal/pending"
	"github.com/blueprint-desktop/exthost/internal/shared/paths"
	"github.com/blueprint-desktop/exthost/internal/shared/types"
)

// Host runs the runtime side of the channel: it reads command frames,
// drives one VM per loaded extension, and writes event frames back.
//
// One goroutine owns the decoder and dispatches; each instance gets a
// worker goroutine owning its VM, so a stuck extension stalls only
// itself. The encoder is shared and serialized by sendMu.
type Host struct {
	cfg *Config
	log *logging.Logger

	dec *bus.Decoder

	sendMu sync.Mutex
	enc    *bus.Encoder

	pending *pending.Registry

	mu        sync.Mutex
	instances map[string]*instance
}

// instance is one loaded extension and its worker state
type instance struct {
	id   string
	vm   *VM
	jobs chan *types.Message

	killOnce   sync.Once
	killReason string
	killed     chan struct{}

	stateMu sync.Mutex
	state   string
}

// NewHost wires a Host to its transport. In production r is stdin and
// w is stdout; tests pass pipes.
func NewHost(r io.Reader, w io.Writer, cfg *Config, log *logging.Logger) *Host {
	return &Host{
		cfg:       cfg,
		log:       log.Component("host"),
		dec:       bus.NewDecoder(r),
		enc:       bus.NewEncoder(w),
		pending:   pending.NewRegistry(),
		instances: make(map[string]*instance),
	}
}

// Run announces readiness and serves frames until shutdown, EOF, or a
// transport failure. Malformed frames are logged and skipped.
func (h *Host) Run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("runtime panic: %v", r)
			h.send(&types.Message{Kind: types.KindHostCrashed, Error: err.Error()})
		}
	}()

	if err := h.send(&types.Message{Kind: types.KindHostReady}); err != nil {
		return err
	}
	h.log.Info("Runtime ready")

	for {
		msg, err := h.dec.Decode()
		if err != nil {
			if errors.Is(err, io.EOF) {
				h.log.Info("Host closed the channel")
				return nil
			}
			if errors.Is(err, bus.ErrMalformedFrame) {
				h.log.Warn("Dropping malformed frame", zap.Error(err))
				continue
			}
			h.send(&types.Message{Kind: types.KindHostCrashed, Error: err.Error()})
			return err
		}

		if h.dispatch(msg) {
			return nil
		}
	}
}

// dispatch routes one frame. Returns true when the host asked us to
// shut down.
func (h *Host) dispatch(msg *types.Message) bool {
	switch msg.Kind {
	case types.KindHostShutdown:
		h.shutdown()
		return true

	case types.KindExtensionLoad:
		h.enqueueLoad(msg)

	case types.KindExtensionActivate, types.KindExtensionDeactivate:
		h.enqueue(msg)

	case types.KindExtensionKill:
		h.kill(msg.ExtensionID, msg.Reason)

	case types.KindHostStats:
		h.reportStats(msg.CallID)

	case types.KindAPIResult:
		if !h.pending.Resolve(msg.CallID, msg.Result) {
			h.log.Warn("Reply for unknown call", zap.String("call_id", msg.CallID))
		}

	case types.KindAPIError:
		if !h.pending.Reject(msg.CallID, errors.New(msg.Error)) {
			h.log.Warn("Error for unknown call", zap.String("call_id", msg.CallID))
		}

	default:
		h.log.Warn("Unhandled frame kind", zap.String("kind", string(msg.Kind)))
	}
	return false
}

// enqueueLoad creates the instance on first load and hands the frame to
// its worker. A reload reuses the existing worker so frames stay ordered.
func (h *Host) enqueueLoad(msg *types.Message) {
	if err := paths.ValidateExtensionID(msg.ExtensionID); err != nil {
		h.sendError(msg.ExtensionID, err.Error())
		return
	}
	if msg.BundlePath == "" {
		h.sendError(msg.ExtensionID, "load requires a bundle path")
		return
	}

	h.mu.Lock()
	inst, ok := h.instances[msg.ExtensionID]
	if !ok {
		inst = &instance{
			id:     msg.ExtensionID,
			jobs:   make(chan *types.Message, 8),
			killed: make(chan struct{}),
			state:  "loading",
		}
		inst.vm = NewVM(msg.ExtensionID, h.cfg.EvalBudget, h.hostCall, h.log)
		h.instances[msg.ExtensionID] = inst
		go inst.run(h)
	}
	h.mu.Unlock()

	inst.enqueue(h, msg)
}

// enqueue hands an activate or deactivate frame to an existing worker
func (h *Host) enqueue(msg *types.Message) {
	h.mu.Lock()
	inst, ok := h.instances[msg.ExtensionID]
	h.mu.Unlock()

	if !ok {
		h.sendError(msg.ExtensionID, "extension is not loaded")
		return
	}
	inst.enqueue(h, msg)
}

// kill removes the instance and interrupts any running eval. The worker
// sees the killed channel and reports extension:killed itself.
func (h *Host) kill(extensionID, reason string) {
	h.mu.Lock()
	inst, ok := h.instances[extensionID]
	if ok {
		delete(h.instances, extensionID)
	}
	h.mu.Unlock()

	if !ok {
		h.sendError(extensionID, "extension is not loaded")
		return
	}
	if reason == "" {
		reason = "killed by host"
	}
	inst.kill(reason)
}

// reportStats answers a host:stats request with a sorted snapshot
func (h *Host) reportStats(callID string) {
	h.mu.Lock()
	stats := make([]types.ExtensionStats, 0, len(h.instances))
	for _, inst := range h.instances {
		stats = append(stats, inst.vm.Stats(inst.getState()))
	}
	h.mu.Unlock()

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].ExtensionID < stats[j].ExtensionID
	})

	h.send(&types.Message{
		Kind:       types.KindHostStats,
		CallID:     callID,
		Extensions: stats,
	})
}

// shutdown kills every instance and fails any in-flight host calls
func (h *Host) shutdown() {
	h.mu.Lock()
	instances := h.instances
	h.instances = make(map[string]*instance)
	h.mu.Unlock()

	for _, inst := range instances {
		inst.kill("host shutdown")
	}

	if n := h.pending.Flush(errors.New("runtime shutting down")); n > 0 {
		h.log.Warn("Flushed in-flight calls at shutdown", zap.Int("count", n))
	}
	h.log.Info("Runtime shutting down")
}

// hostCall sends an api:call frame upstream and blocks the calling
// worker until the host replies or the call times out.
func (h *Host) hostCall(extensionID, api, method string, args []interface{}) (interface{}, error) {
	callID := uuid.NewString()

	return h.pending.Call(context.Background(), callID, h.cfg.CallTimeout, func() error {
		return h.send(&types.Message{
			Kind:        types.KindAPICall,
			CallID:      callID,
			ExtensionID: extensionID,
			API:         api,
			Method:      method,
			Args:        args,
		})
	})
}

func (h *Host) send(msg *types.Message) error {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()

	return h.enc.Encode(msg)
}

func (h *Host) sendError(extensionID, errMsg string) {
	h.send(&types.Message{
		Kind:        types.KindExtensionError,
		ExtensionID: extensionID,
		Error:       errMsg,
	})
}

// fatal reports an unrecoverable worker failure and exits so the
// supervisor can restart a clean process.
func (h *Host) fatal(err error) {
	h.log.Error("Runtime failure", zap.Error(err))
	h.send(&types.Message{Kind: types.KindHostCrashed, Error: err.Error()})
	os.Exit(1)
}

// run is the worker loop. It owns the VM; every eval for this extension
// happens here. A kill wins over any queued work.
func (i *instance) run(h *Host) {
	defer func() {
		if r := recover(); r != nil {
			h.fatal(fmt.Errorf("extension %s worker panic: %v", i.id, r))
		}
	}()

	for {
		select {
		case <-i.killed:
			i.setState("killed")
			h.send(&types.Message{
				Kind:        types.KindExtensionKilled,
				ExtensionID: i.id,
				Reason:      i.killReason,
			})
			return

		case msg := <-i.jobs:
			select {
			case <-i.killed:
				continue
			default:
			}
			h.execute(i, msg)
		}
	}
}

// enqueue offers a frame to the worker without blocking the dispatch
// loop. A full queue means the extension is wedged or flooded.
func (i *instance) enqueue(h *Host, msg *types.Message) {
	select {
	case i.jobs <- msg:
	default:
		h.sendError(i.id, "extension is busy")
	}
}

// kill is idempotent. The reason is recorded before the channel closes,
// so the worker always reports the first kill's reason.
func (i *instance) kill(reason string) {
	i.killOnce.Do(func() {
		i.killReason = reason
		close(i.killed)
		i.vm.Interrupt(reason)
	})
}

func (i *instance) setState(state string) {
	i.stateMu.Lock()
	i.state = state
	i.stateMu.Unlock()
}

func (i *instance) getState() string {
	i.stateMu.Lock()
	defer i.stateMu.Unlock()

	return i.state
}

// execute runs one lifecycle frame on the worker's VM
func (h *Host) execute(i *instance, msg *types.Message) {
	switch msg.Kind {
	case types.KindExtensionLoad:
		err := i.vm.Load(msg.BundlePath)
		h.finish(i, err, "loaded", types.KindExtensionLoaded)

	case types.KindExtensionActivate:
		err := i.vm.Activate()
		h.finish(i, err, "active", types.KindExtensionActivated)

	case types.KindExtensionDeactivate:
		err := i.vm.Deactivate()
		h.finish(i, err, "loaded", types.KindExtensionDeactivated)
	}
}

// finish reports one lifecycle outcome. Budget overruns emit a
// watchdog:violation before the error; a kill during the eval
// suppresses the error frame because extension:killed supersedes it.
func (h *Host) finish(i *instance, err error, state string, okKind types.Kind) {
	if err == nil {
		i.setState(state)
		h.send(&types.Message{Kind: okKind, ExtensionID: i.id})
		return
	}

	var budget *BudgetError
	if errors.As(err, &budget) {
		h.send(&types.Message{
			Kind: types.KindWatchdogViolation,
			Violation: &types.WatchdogViolation{
				ExtensionID: i.id,
				Type:        "eval-budget",
				Details:     err.Error(),
			},
		})
	}

	select {
	case <-i.killed:
		return
	default:
	}

	i.setState("error")
	h.sendError(i.id, err.Error())
}

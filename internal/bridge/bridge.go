package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/blueprint-desktop/exthost/internal/infrastructure/logging"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/monitoring"
	"github.com/blueprint-desktop/exthost/internal/shared/types"
)

// Call is one extension API invocation, decoded from an api:call frame
type Call struct {
	ID          string
	ExtensionID string
	Method      string
	Args        []interface{}
}

// Handler executes calls for one api namespace. Execute must honor ctx:
// the router derives a deadline from the configured call timeout.
type Handler interface {
	Execute(ctx context.Context, call *Call) (interface{}, error)
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ctx context.Context, call *Call) (interface{}, error)

func (f HandlerFunc) Execute(ctx context.Context, call *Call) (interface{}, error) {
	return f(ctx, call)
}

// Sender is the slice of the bus the router needs for replies
type Sender interface {
	Send(msg *types.Message) error
}

// Router dispatches api:call frames to registered handlers and sends
// the outcome back tagged with the originating call id. An unknown api
// is a reported error, never a crash; so is a handler panic. Calls run
// concurrently so one slow provider cannot stall the bus.
type Router struct {
	sender   Sender
	timeout  time.Duration
	log      *logging.Logger
	metrics  *monitoring.Metrics
	inflight atomic.Int64

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRouter creates a router replying through sender
func NewRouter(sender Sender, timeout time.Duration, log *logging.Logger) *Router {
	return &Router{
		sender:   sender,
		timeout:  timeout,
		log:      log.Component("bridge"),
		handlers: make(map[string]Handler),
	}
}

// WithMetrics adds metrics tracking to the router
func (r *Router) WithMetrics(metrics *monitoring.Metrics) *Router {
	r.metrics = metrics
	return r
}

// Register binds a handler to an api namespace
func (r *Router) Register(api string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[api] = h
}

// Handle routes one api:call frame. It returns immediately; execution
// and the reply happen on their own goroutine.
func (r *Router) Handle(msg *types.Message) {
	call := &Call{
		ID:          msg.CallID,
		ExtensionID: msg.ExtensionID,
		Method:      msg.Method,
		Args:        msg.Args,
	}

	r.mu.RLock()
	handler, ok := r.handlers[msg.API]
	r.mu.RUnlock()

	if !ok {
		r.log.Warn("Call for unknown api",
			zap.String("api", msg.API),
			zap.String("call_id", call.ID),
			zap.String("extension_id", call.ExtensionID))
		r.reply(call.ID, nil, fmt.Errorf("unknown api: %s", msg.API))
		return
	}

	go r.dispatch(handler, msg.API, call)
}

func (r *Router) dispatch(handler Handler, api string, call *Call) {
	r.trackInflight(1)
	defer r.trackInflight(-1)

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	result, err := r.execute(ctx, handler, call)
	if errors.Is(err, context.DeadlineExceeded) {
		if r.metrics != nil {
			r.metrics.IncCallTimeouts()
		}
		err = fmt.Errorf("call timed out after %s", r.timeout)
	}

	if err != nil {
		r.log.Debug("Call failed",
			zap.String("api", api),
			zap.String("method", call.Method),
			zap.String("extension_id", call.ExtensionID),
			zap.Error(err))
	}
	r.reply(call.ID, result, err)
}

// execute shields the host from handler panics
func (r *Router) execute(ctx context.Context, handler Handler, call *Call) (result interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Handler panic",
				zap.String("method", call.Method),
				zap.Any("panic", rec))
			result = nil
			err = fmt.Errorf("internal error handling %s", call.Method)
		}
	}()
	return handler.Execute(ctx, call)
}

func (r *Router) reply(callID string, result interface{}, err error) {
	msg := &types.Message{CallID: callID}
	if err != nil {
		msg.Kind = types.KindAPIError
		msg.Error = err.Error()
	} else {
		msg.Kind = types.KindAPIResult
		msg.Result = result
	}

	if sendErr := r.sender.Send(msg); sendErr != nil {
		// The runtime is gone; the caller vanished with it
		r.log.Warn("Failed to send call reply",
			zap.String("call_id", callID),
			zap.Error(sendErr))
	}
}

// Inflight returns the number of calls currently executing
func (r *Router) Inflight() int {
	return int(r.inflight.Load())
}

func (r *Router) trackInflight(delta int64) {
	n := r.inflight.Add(delta)
	if r.metrics != nil {
		r.metrics.SetPendingCalls(int(n))
	}
}

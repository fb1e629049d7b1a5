package pending

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrTimeout   = errors.New("call timed out")
	ErrDuplicate = errors.New("call id already registered")
)

// Outcome is the terminal result of a pending call
type Outcome struct {
	Value interface{}
	Err   error
}

// Registry tracks in-flight calls awaiting a reply from the runtime.
// Each call is keyed by its call ID and resolved exactly once, either
// by a matching reply, a timeout, or a flush.
type Registry struct {
	mu    sync.Mutex
	calls map[string]chan Outcome
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		calls: make(map[string]chan Outcome),
	}
}

// Register reserves a slot for the given call ID
func (r *Registry) Register(id string) (<-chan Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.calls[id]; exists {
		return nil, ErrDuplicate
	}

	ch := make(chan Outcome, 1)
	r.calls[id] = ch
	return ch, nil
}

// Resolve completes the call with a value. Returns false if the call
// is unknown, already resolved, or timed out.
func (r *Registry) Resolve(id string, value interface{}) bool {
	return r.complete(id, Outcome{Value: value})
}

// Reject completes the call with an error. Returns false if the call
// is unknown, already resolved, or timed out.
func (r *Registry) Reject(id string, err error) bool {
	return r.complete(id, Outcome{Err: err})
}

func (r *Registry) complete(id string, out Outcome) bool {
	r.mu.Lock()
	ch, ok := r.calls[id]
	if ok {
		delete(r.calls, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	ch <- out
	return true
}

// Await blocks until the call resolves, the timeout elapses, or the
// context is cancelled. The slot is always released before returning.
func (r *Registry) Await(ctx context.Context, id string, timeout time.Duration) (interface{}, error) {
	ch, err := r.Register(id)
	if err != nil {
		return nil, err
	}
	return r.wait(ctx, id, ch, timeout)
}

// Call registers the slot, runs send, then waits for the reply. The
// slot exists before send returns, so a reply can never race past its
// own registration.
func (r *Registry) Call(ctx context.Context, id string, timeout time.Duration, send func() error) (interface{}, error) {
	ch, err := r.Register(id)
	if err != nil {
		return nil, err
	}

	if err := send(); err != nil {
		r.remove(id)
		return nil, err
	}
	return r.wait(ctx, id, ch, timeout)
}

func (r *Registry) wait(ctx context.Context, id string, ch <-chan Outcome, timeout time.Duration) (interface{}, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-ch:
		return out.Value, out.Err
	case <-timer.C:
		r.remove(id)
		return nil, ErrTimeout
	case <-ctx.Done():
		r.remove(id)
		return nil, ctx.Err()
	}
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.calls, id)
	r.mu.Unlock()
}

// Flush rejects every in-flight call with the given error
func (r *Registry) Flush(err error) int {
	r.mu.Lock()
	calls := r.calls
	r.calls = make(map[string]chan Outcome)
	r.mu.Unlock()

	for _, ch := range calls {
		ch <- Outcome{Err: err}
	}
	return len(calls)
}

// Len returns the number of in-flight calls
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.calls)
}

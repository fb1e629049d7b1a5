package bus

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/blueprint-desktop/exthost/internal/infrastructure/logging"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/monitoring"
	"github.com/blueprint-desktop/exthost/internal/shared/types"
)

var (
	ErrNotAttached     = errors.New("bus: runtime not attached")
	ErrAlreadyAttached = errors.New("bus: transport already attached")
	ErrQueueFull       = errors.New("bus: outbound queue full")
)

// Direction labels for metrics
const (
	DirectionOutbound = "outbound" // host -> runtime
	DirectionInbound  = "inbound"  // runtime -> host
)

const outboundBuffer = 256

// Handler receives inbound messages in arrival order
type Handler func(msg *types.Message)

// Bus frames typed messages over a transport to the runtime process.
// A single writer goroutine preserves outbound order; the reader
// goroutine dispatches inbound frames to the handler one at a time.
// Messages sent while no transport is attached fail, they are never
// queued for a future runtime.
type Bus struct {
	log     *logging.Logger
	metrics *monitoring.Metrics
	handler Handler

	mu        sync.Mutex
	transport Transport
	outbound  chan *types.Message
	done      chan struct{}
	wg        sync.WaitGroup
}

// New creates a bus that dispatches inbound messages to handler
func New(log *logging.Logger, metrics *monitoring.Metrics, handler Handler) *Bus {
	return &Bus{
		log:     log.Component("bus"),
		metrics: metrics,
		handler: handler,
	}
}

// Attach starts framing over the given transport
func (b *Bus) Attach(t Transport) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.transport != nil {
		return ErrAlreadyAttached
	}

	b.transport = t
	b.outbound = make(chan *types.Message, outboundBuffer)
	b.done = make(chan struct{})

	b.wg.Add(2)
	go b.writeLoop(t, b.outbound, b.done)
	go b.readLoop(t, b.done)

	b.log.Debug("Transport attached")
	return nil
}

// Detach stops framing and closes the transport. Queued outbound
// messages that have not been written yet are dropped.
func (b *Bus) Detach() {
	b.mu.Lock()
	t := b.transport
	done := b.done
	b.transport = nil
	b.outbound = nil
	b.done = nil
	b.mu.Unlock()

	if t == nil {
		return
	}

	close(done)
	_ = t.Close()
	b.wg.Wait()

	b.log.Debug("Transport detached")
}

// Attached reports whether a transport is currently attached
func (b *Bus) Attached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.transport != nil
}

// Send enqueues a message for the runtime
func (b *Bus) Send(msg *types.Message) error {
	b.mu.Lock()
	ch := b.outbound
	b.mu.Unlock()

	if ch == nil {
		return ErrNotAttached
	}

	select {
	case ch <- msg:
		b.metrics.RecordBusMessage(DirectionOutbound, string(msg.Kind))
		return nil
	default:
		return ErrQueueFull
	}
}

func (b *Bus) writeLoop(t Transport, outbound <-chan *types.Message, done <-chan struct{}) {
	defer b.wg.Done()

	enc := NewEncoder(t)
	for {
		select {
		case <-done:
			return
		case msg := <-outbound:
			if err := enc.Encode(msg); err != nil {
				// The process likely died; crash detection happens in
				// the supervisor via process exit
				b.log.Warn("Failed to write frame",
					zap.String("kind", string(msg.Kind)),
					zap.Error(err))
			}
		}
	}
}

func (b *Bus) readLoop(t Transport, done <-chan struct{}) {
	defer b.wg.Done()

	dec := NewDecoder(t)
	for {
		msg, err := dec.Decode()
		if err != nil {
			if errors.Is(err, ErrMalformedFrame) {
				b.log.Warn("Dropping malformed frame", zap.Error(err))
				continue
			}
			// EOF or closed transport ends the loop; the supervisor
			// owns crash detection
			select {
			case <-done:
			default:
				b.log.Debug("Read loop ended", zap.Error(err))
			}
			return
		}

		b.metrics.RecordBusMessage(DirectionInbound, string(msg.Kind))
		if b.handler != nil {
			b.handler(msg)
		}
	}
}

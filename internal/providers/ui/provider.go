package ui

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/blueprint-desktop/exthost/internal/bridge"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/logging"
)

// Emitter pushes events to the UI event stream
type Emitter interface {
	Emit(event string, payload map[string]interface{})
}

// Provider lets extensions surface things in the UI. Calls are
// fire-and-forget: the event is handed to the stream and the call
// resolves immediately.
type Provider struct {
	emitter Emitter
	log     *logging.Logger
}

// New creates a ui provider forwarding into emitter
func New(emitter Emitter, log *logging.Logger) *Provider {
	return &Provider{
		emitter: emitter,
		log:     log.Component("provider.ui"),
	}
}

// Execute runs a ui operation
func (p *Provider) Execute(ctx context.Context, call *bridge.Call) (interface{}, error) {
	switch call.Method {
	case "notify":
		return p.notify(call)
	case "emit":
		return p.emit(call)
	default:
		return nil, fmt.Errorf("unknown ui method: %s", call.Method)
	}
}

func (p *Provider) notify(call *bridge.Call) (interface{}, error) {
	message, err := call.String(0)
	if err != nil {
		return nil, err
	}

	p.emitter.Emit("extension:notification", map[string]interface{}{
		"extension_id": call.ExtensionID,
		"message":      message,
		"level":        call.OptionalString(1, "info"),
	})
	return map[string]interface{}{"delivered": true}, nil
}

func (p *Provider) emit(call *bridge.Call) (interface{}, error) {
	event, err := call.String(0)
	if err != nil {
		return nil, err
	}
	if event == "" {
		return nil, fmt.Errorf("event name required")
	}

	p.log.Debug("Extension event",
		zap.String("extension_id", call.ExtensionID),
		zap.String("event", event))

	p.emitter.Emit("extension:event", map[string]interface{}{
		"extension_id": call.ExtensionID,
		"event":        event,
		"payload":      call.OptionalMap(1),
	})
	return map[string]interface{}{"delivered": true}, nil
}

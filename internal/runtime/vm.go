package runtime

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blueprint-desktop/exthost/internal/infrastructure/logging"
	"github.com/blueprint-desktop/exthost/internal/shared/types"
)

// HostCaller sends one api call to the host process and blocks until
// the matching reply, a timeout, or a transport failure.
type HostCaller func(extensionID, api, method string, args []interface{}) (interface{}, error)

// BudgetError reports an eval the watchdog interrupted for exceeding
// its time budget.
type BudgetError struct {
	ExtensionID string
	Budget      time.Duration
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("extension %s exceeded its eval budget of %s", e.ExtensionID, e.Budget)
}

// budgetSentinel is the interrupt value the watchdog plants so an
// interrupted eval can be told apart from a kill.
type budgetSentinel struct{}

// VM hosts one extension bundle inside a stripped goja runtime. All
// evals run on the owning worker goroutine; only Interrupt may be
// called from outside it.
type VM struct {
	extensionID string
	instanceID  string
	budget      time.Duration
	call        HostCaller
	log         *logging.Logger

	mu sync.Mutex // guards the runtime pointer across reloads
	vm *goja.Runtime

	evalCount  atomic.Int64
	evalTimeMS atomic.Int64
	violations atomic.Int32
}

// NewVM creates a VM for one extension. The runtime is usable
// immediately; Load swaps in a fresh one per bundle eval.
func NewVM(extensionID string, budget time.Duration, call HostCaller, log *logging.Logger) *VM {
	v := &VM{
		extensionID: extensionID,
		instanceID:  uuid.NewString(),
		budget:      budget,
		call:        call,
		log:         log.Component("vm"),
	}
	v.reset()
	return v
}

// Load evaluates the extension bundle in a fresh runtime. A reload
// discards all state from the previous bundle.
func (v *VM) Load(bundlePath string) error {
	source, err := os.ReadFile(bundlePath)
	if err != nil {
		return fmt.Errorf("read bundle: %w", err)
	}

	prog, err := goja.Compile(bundlePath, string(source), false)
	if err != nil {
		return fmt.Errorf("compile bundle: %w", err)
	}

	v.reset()
	return v.eval(func(rt *goja.Runtime) error {
		_, err := rt.RunProgram(prog)
		return err
	})
}

// Activate calls the bundle's optional activate hook
func (v *VM) Activate() error {
	return v.invoke("activate")
}

// Deactivate calls the bundle's optional deactivate hook
func (v *VM) Deactivate() error {
	return v.invoke("deactivate")
}

// Interrupt aborts any running eval. Safe to call from any goroutine.
func (v *VM) Interrupt(reason string) {
	v.runtime().Interrupt(reason)
}

// Stats snapshots the VM's usage counters
func (v *VM) Stats(state string) types.ExtensionStats {
	return types.ExtensionStats{
		ExtensionID: v.extensionID,
		State:       state,
		EvalCount:   v.evalCount.Load(),
		EvalTimeMS:  v.evalTimeMS.Load(),
		Violations:  int(v.violations.Load()),
	}
}

// invoke calls a global lifecycle hook if the bundle defined one.
// Undefined hooks are fine; declarative extensions have none.
func (v *VM) invoke(hook string) error {
	rt := v.runtime()

	val := rt.Get(hook)
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	fn, ok := goja.AssertFunction(val)
	if !ok {
		return nil
	}

	return v.eval(func(*goja.Runtime) error {
		_, err := fn(goja.Undefined())
		return err
	})
}

// eval runs one VM entry under the watchdog. A budget overrun
// interrupts the runtime and counts as a violation.
func (v *VM) eval(fn func(*goja.Runtime) error) error {
	rt := v.runtime()

	timer := time.AfterFunc(v.budget, func() {
		rt.Interrupt(budgetSentinel{})
	})

	start := time.Now()
	err := fn(rt)
	elapsed := time.Since(start)

	timer.Stop()
	rt.ClearInterrupt()

	v.evalCount.Add(1)
	v.evalTimeMS.Add(elapsed.Milliseconds())

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if _, ok := interrupted.Value().(budgetSentinel); ok {
			v.violations.Add(1)
			return &BudgetError{ExtensionID: v.extensionID, Budget: v.budget}
		}
	}
	return err
}

// runtime returns the current goja runtime. Load swaps the pointer, so
// cross-goroutine callers must not cache it.
func (v *VM) runtime() *goja.Runtime {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.vm
}

// reset builds a fresh runtime with the stripped global scope
func (v *VM) reset() {
	rt := goja.New()
	rt.SetMaxCallStackSize(1024)

	rt.Set("require", goja.Undefined())
	rt.Set("process", goja.Undefined())
	rt.Set("module", goja.Undefined())
	rt.Set("exports", goja.Undefined())
	rt.Set("setTimeout", func(goja.FunctionCall) goja.Value {
		return goja.Undefined()
	})
	rt.Set("setInterval", func(goja.FunctionCall) goja.Value {
		return goja.Undefined()
	})

	console := rt.NewObject()
	console.Set("log", v.consoleFunc("info"))
	console.Set("info", v.consoleFunc("info"))
	console.Set("warn", v.consoleFunc("warn"))
	console.Set("error", v.consoleFunc("error"))
	console.Set("debug", v.consoleFunc("debug"))
	rt.Set("console", console)

	host := rt.NewObject()
	host.Set("call", v.hostCall(rt))
	host.Set("emit", v.hostEmit(rt))
	rt.Set("blueprint", host)

	v.mu.Lock()
	v.vm = rt
	v.mu.Unlock()

	v.log.Debug("Runtime scope initialized",
		zap.String("extension_id", v.extensionID),
		zap.String("instance_id", v.instanceID),
	)
}

// consoleFunc forwards extension console output into the structured log
func (v *VM) consoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		var msg string
		for i, arg := range call.Arguments {
			if i > 0 {
				msg += " "
			}
			msg += arg.String()
		}

		fields := []zap.Field{
			zap.String("extension_id", v.extensionID),
			zap.String("source", "console"),
		}
		switch level {
		case "error":
			v.log.Error(msg, fields...)
		case "warn":
			v.log.Warn(msg, fields...)
		case "debug":
			v.log.Debug(msg, fields...)
		default:
			v.log.Info(msg, fields...)
		}
		return goja.Undefined()
	}
}

// hostCall exposes blueprint.call(api, method, ...args). The worker
// goroutine blocks until the host replies; failures surface as JS
// exceptions the bundle can catch.
func (v *VM) hostCall(rt *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			panic(rt.NewTypeError("blueprint.call requires api and method"))
		}

		api := call.Arguments[0].String()
		method := call.Arguments[1].String()
		args := make([]interface{}, 0, len(call.Arguments)-2)
		for _, a := range call.Arguments[2:] {
			args = append(args, a.Export())
		}

		result, err := v.call(v.extensionID, api, method, args)
		if err != nil {
			panic(rt.NewGoError(err))
		}
		return rt.ToValue(result)
	}
}

// hostEmit exposes blueprint.emit(event, payload), shorthand for the
// ui provider's emit method.
func (v *VM) hostEmit(rt *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(rt.NewTypeError("blueprint.emit requires an event name"))
		}

		event := call.Arguments[0].String()
		var payload interface{}
		if len(call.Arguments) > 1 {
			payload = call.Arguments[1].Export()
		}

		if _, err := v.call(v.extensionID, "ui", "emit", []interface{}{event, payload}); err != nil {
			panic(rt.NewGoError(err))
		}
		return goja.Undefined()
	}
}

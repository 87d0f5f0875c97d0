package executor

import (
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-executor/engine"
	"github.com/wippyai/wasm-executor/store"
)

// Observer is notified once per executor operation, after it returns.
// err is nil on success. state is the state the executor ended in.
type Observer interface {
	Observe(op Op, state State, err error, elapsed time.Duration)
}

// Option configures an Executor.
type Option func(*options)

type options struct {
	logger           *zap.Logger
	interpreter      engine.Interpreter
	observer         Observer
	startFunc        string
	limits           store.Limits
	hostFunctions    int
	memoryLimitPages uint32
	closeOnDone      bool
}

// WithLogger overrides the package logger for one executor.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithInterpreter replaces the default wazero interpreter.
func WithInterpreter(i engine.Interpreter) Option {
	return func(o *options) { o.interpreter = i }
}

// WithObserver reports every operation to obs.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithStartFunc sets the exported function used as start function when a
// module has no start section. It survives Reset; SetStartFuncName does not.
func WithStartFunc(name string) Option {
	return func(o *options) { o.startFunc = name }
}

// WithStoreLimits caps the number of entities the store accepts.
func WithStoreLimits(l store.Limits) Option {
	return func(o *options) { o.limits = l }
}

// WithHostFunctionLimit caps the native function registry. 0 is unbounded.
func WithHostFunctionLimit(n int) Option {
	return func(o *options) { o.hostFunctions = n }
}

// WithMemoryLimitPages caps every memory, in 64KB pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(o *options) { o.memoryLimitPages = pages }
}

// WithCloseOnContextDone makes Run abort guest code once its context is
// canceled or its deadline passes. Without it a looping guest ignores ctx.
func WithCloseOnContextDone(enabled bool) Option {
	return func(o *options) { o.closeOnDone = enabled }
}

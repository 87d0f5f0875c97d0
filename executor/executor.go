package executor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-executor/ast"
	"github.com/wippyai/wasm-executor/engine"
	"github.com/wippyai/wasm-executor/errors"
	"github.com/wippyai/wasm-executor/host"
	"github.com/wippyai/wasm-executor/linker"
	"github.com/wippyai/wasm-executor/snapshot"
	"github.com/wippyai/wasm-executor/stack"
	"github.com/wippyai/wasm-executor/store"
	"github.com/wippyai/wasm-executor/value"
)

// Executor drives one module through its lifecycle. It owns the store, the
// operand stack and the native function registry. It is not safe for
// concurrent use.
type Executor struct {
	log       *zap.Logger
	interp    engine.Interpreter
	observer  Observer
	store     *store.Store
	stack     *stack.Stack
	registry  *host.Registry
	module    *ast.Module
	instance  *store.ModuleInstance
	startFunc string
	opts      options
	state     State
}

// New creates an executor in StateCreated.
func New(opts ...Option) *Executor {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	e := &Executor{
		log:       o.logger,
		interp:    o.interpreter,
		observer:  o.observer,
		store:     store.New(o.limits),
		stack:     stack.New(),
		registry:  host.NewRegistry(o.hostFunctions),
		startFunc: o.startFunc,
		opts:      o,
	}
	if e.log == nil {
		e.log = Logger()
	}
	if e.interp == nil {
		e.interp = engine.NewWazeroInterpreter(&engine.Config{
			MemoryLimitPages:   o.memoryLimitPages,
			CloseOnContextDone: o.closeOnDone,
		})
	}
	return e
}

// State returns the current lifecycle state.
func (e *Executor) State() State { return e.state }

// Store returns the entity store.
func (e *Executor) Store() *store.Store { return e.store }

// Stack returns the operand stack.
func (e *Executor) Stack() *stack.Stack { return e.stack }

// Registry returns the native function registry.
func (e *Executor) Registry() *host.Registry { return e.registry }

// Module returns the bound module, or nil. The executor keeps ownership.
func (e *Executor) Module() *ast.Module { return e.module }

// Instance returns the instantiated module, or nil. It is owned by the store
// and invalid after Reset.
func (e *Executor) Instance() *store.ModuleInstance { return e.instance }

// StartFuncName returns the start function fallback name.
func (e *Executor) StartFuncName() string { return e.startFunc }

// SetStartFuncName names an exported function to run when the module has no
// start section. It takes effect at the next Instantiate and is allowed in
// any state. Reset restores the WithStartFunc default.
func (e *Executor) SetStartFuncName(name string) {
	e.startFunc = name
}

// expect checks the lifecycle gate for op.
func (e *Executor) expect(op Op, allowed ...State) error {
	for _, s := range allowed {
		if e.state == s {
			return nil
		}
	}
	return errors.WrongFlow(string(op), e.state.String())
}

func (e *Executor) observe(op Op, start time.Time, err *error) {
	if e.observer != nil {
		e.observer.Observe(op, e.state, *err, time.Since(start))
	}
}

// SetModule takes ownership of mod. mod is empty afterwards.
func (e *Executor) SetModule(mod *ast.Module) (err error) {
	defer e.observe(OpSetModule, time.Now(), &err)
	if err = e.expect(OpSetModule, StateCreated); err != nil {
		return err
	}
	if mod.Empty() {
		err = errors.InvalidInput(errors.PhaseLifecycle, "no module to bind")
		return err
	}
	e.module = mod.Take()
	e.state = StateModuleBound
	return nil
}

// Instantiate links the bound module into the store. On failure the executor
// stays in StateModuleBound; entities created before the failure remain in
// the store.
func (e *Executor) Instantiate(ctx context.Context) (err error) {
	defer e.observe(OpInstantiate, time.Now(), &err)
	if err = e.expect(OpInstantiate, StateModuleBound); err != nil {
		return err
	}
	l := linker.New(linker.Config{
		StartFunc:        e.startFunc,
		MemoryLimitPages: e.opts.memoryLimitPages,
	})
	inst, err := l.Instantiate(ctx, e.store, e.module)
	if err != nil {
		code := errors.CodeOf(err)
		e.log.Error("instantiation failed",
			zap.String("module", e.module.Name()),
			zap.Uint32("code", uint32(code)),
			zap.Stringer("status", code),
			zap.Error(err))
		return err
	}
	e.instance = inst
	e.state = StateInstantiated
	return nil
}

// SetArgs moves args onto the operand stack, args[0] deepest. The caller's
// slice is left empty.
func (e *Executor) SetArgs(args *[]value.Value) (err error) {
	defer e.observe(OpSetArgs, time.Now(), &err)
	if err = e.expect(OpSetArgs, StateInstantiated); err != nil {
		return err
	}
	if args != nil {
		for _, v := range *args {
			e.stack.Push(v)
		}
		clear(*args)
		*args = (*args)[:0]
	}
	e.state = StateArgsBound
	return nil
}

// Run executes the start function if the instance has one.
//
// Run always advances to StateExecuted, including when the start function
// fails. The returned error, not the state, tells whether execution succeeded.
func (e *Executor) Run(ctx context.Context) (err error) {
	defer e.observe(OpRun, time.Now(), &err)
	if err = e.expect(OpRun, StateArgsBound); err != nil {
		return err
	}
	addr, ok := e.instance.StartAddr()
	if ok {
		env := engine.Env{
			Store:    e.store,
			Stack:    e.stack,
			Registry: e.registry,
			Module:   e.module,
			Instance: e.instance,
		}
		if runErr := e.interp.RunStartFunction(ctx, env, addr); runErr != nil {
			err = errors.ExecutionFailed(runErr)
		}
	} else {
		e.log.Debug("no start function", zap.String("module", e.instance.Name))
	}
	e.state = StateExecuted
	return err
}

// GetRets drains the operand stack. The first value pushed is first in the
// result.
func (e *Executor) GetRets() (rets []value.Value, err error) {
	defer e.observe(OpGetRets, time.Now(), &err)
	if err = e.expect(OpGetRets, StateExecuted); err != nil {
		return nil, err
	}
	rets = make([]value.Value, e.stack.Size())
	for i := len(rets) - 1; i >= 0; i-- {
		if rets[i], err = e.stack.Pop(); err != nil {
			return nil, err
		}
	}
	e.state = StateFinished
	return rets, nil
}

// Reset returns the executor to StateCreated, dropping the module, the
// instance, interpreter caches and the contents of the stack, store and
// registry. Without force it is only allowed once the module has run.
func (e *Executor) Reset(force bool) (err error) {
	defer e.observe(OpReset, time.Now(), &err)
	if !force {
		if err = e.expect(OpReset, StateExecuted, StateFinished); err != nil {
			return err
		}
	}
	e.module = nil
	e.instance = nil
	e.interp.Reset()
	e.stack.Reset()
	e.store.Reset()
	e.registry.Reset()
	e.startFunc = e.opts.startFunc
	e.state = StateCreated
	return nil
}

// RegisterHostFunction makes c importable as module.name. It is allowed in
// any state.
//
// Registering an existing (module, name) pair fails before anything changes.
// If the store rejects the function after the registry accepted c, the
// registry entry is left in place.
func (e *Executor) RegisterHostFunction(c host.Callable, module, name string) (err error) {
	defer e.observe(OpRegisterHost, time.Now(), &err)
	if c == nil {
		err = errors.InvalidInput(errors.PhaseHost, "nil callable")
		return err
	}
	if _, dup := e.store.FindNative(module, name); dup {
		err = errors.Registration(module, name, errors.InsertionFailed(errors.PhaseHost, "duplicate native function", nil))
		return err
	}

	fn := store.NewNativeFunction(module, name, c.FuncType())
	handle, err := e.registry.Insert(c)
	if err != nil {
		err = errors.Registration(module, name, err)
		return err
	}
	fn.HostHandle = handle
	if _, err = e.store.InsertFunction(fn); err != nil {
		e.log.Warn("native function orphaned in registry",
			zap.String("module", module),
			zap.String("name", name),
			zap.Uint32("handle", uint32(handle)))
		err = errors.Registration(module, name, err)
		return err
	}
	e.log.Debug("registered native function",
		zap.String("module", module),
		zap.String("name", name),
		zap.Stringer("type", fn.Type))
	return nil
}

// Restore injects snapshot state into the store. It is not gated by the
// lifecycle but needs the referenced entities, so it is only useful after
// Instantiate. Entries applied before a failure stay applied.
func (e *Executor) Restore(doc *snapshot.Document) (err error) {
	defer e.observe(OpRestore, time.Now(), &err)
	err = snapshot.Restore(e.store, doc)
	return err
}

// Capture returns the store's globals and memories as a snapshot document.
func (e *Executor) Capture() (*snapshot.Document, error) {
	return snapshot.Capture(e.store)
}

// Close releases interpreter resources.
func (e *Executor) Close(ctx context.Context) error {
	if c, ok := e.interp.(interface{ Close(context.Context) error }); ok {
		return c.Close(ctx)
	}
	return nil
}

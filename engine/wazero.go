package engine

import (
	"context"

	"github.com/tetratelabs/wabin/wasm"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-executor/errors"
	"github.com/wippyai/wasm-executor/host"
	"github.com/wippyai/wasm-executor/store"
	"github.com/wippyai/wasm-executor/value"
)

var _ Interpreter = (*WazeroInterpreter)(nil)

// Config holds configuration for interpreter creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// CloseOnContextDone aborts guest execution when the run context is
	// canceled or its deadline passes.
	CloseOnContextDone bool
}

// WazeroInterpreter implements Interpreter on wazero's interpreter engine.
// A fresh wazero runtime is created per run; compiled code is shared across
// runs through a compilation cache until Reset.
type WazeroInterpreter struct {
	cache  wazero.CompilationCache
	config Config
}

// NewWazeroInterpreter creates an interpreter. cfg may be nil.
func NewWazeroInterpreter(cfg *Config) *WazeroInterpreter {
	w := &WazeroInterpreter{cache: wazero.NewCompilationCache()}
	if cfg != nil {
		w.config = *cfg
	}
	return w
}

func (w *WazeroInterpreter) runtimeConfig() wazero.RuntimeConfig {
	rc := wazero.NewRuntimeConfigInterpreter().
		WithCoreFeatures(api.CoreFeaturesV2).
		WithCompilationCache(w.cache)
	if w.config.MemoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(w.config.MemoryLimitPages)
	}
	if w.config.CloseOnContextDone {
		rc = rc.WithCloseOnContextDone(true)
	}
	return rc
}

// RunStartFunction executes the function at addr.
func (w *WazeroInterpreter) RunStartFunction(ctx context.Context, env Env, addr uint32) error {
	if env.Store == nil || env.Stack == nil || env.Registry == nil {
		return errors.InvalidInput(errors.PhaseRun, "incomplete environment")
	}
	fn, err := env.Store.Function(addr)
	if err != nil {
		return err
	}
	log := Logger().With(zap.Uint32("addr", addr), zap.Stringer("kind", fn.Kind), zap.String("func", fn.FuncName))

	if fn.IsNative() {
		log.Debug("calling native start function")
		return callNative(ctx, env, fn)
	}
	if env.Module.Empty() || env.Instance == nil {
		return errors.InvalidInput(errors.PhaseRun, "interpreted function without module")
	}
	entry, ok := funcIndex(env.Instance, addr)
	if !ok {
		return errors.NotFound(errors.PhaseRun, "function", addr)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, w.runtimeConfig())
	defer func() {
		if err := rt.Close(ctx); err != nil {
			log.Warn("close runtime", zap.Error(err))
		}
	}()

	if err := instantiateHostModules(ctx, rt, env); err != nil {
		return err
	}
	compiled, err := rt.CompileModule(ctx, rewriteModule(env.Module.Raw(), entry))
	if err != nil {
		return errors.Wrap(errors.PhaseRun, errors.KindDecode, err, "compile module")
	}
	name := env.Instance.Name
	if rt.Module(name) != nil {
		// Shadowed by a host module of the same name.
		name = ""
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name).WithStartFunctions())
	if err != nil {
		return errors.Wrap(errors.PhaseRun, errors.KindInstantiation, err, "instantiate module")
	}
	if err := seed(env, mod); err != nil {
		return err
	}

	args, err := popArgs(env.Stack, fn.Type.Params)
	if err != nil {
		return err
	}
	params := make([]uint64, len(args))
	for i, a := range args {
		params[i] = a.Bits()
	}

	log.Debug("calling start function", zap.Uint32("index", entry), zap.Int("params", len(params)))
	results, callErr := mod.ExportedFunction(entryExport).Call(ctx, params...)

	// Guest writes made before a trap stay visible, as with an in-place interpreter.
	if err := drain(env, mod); err != nil {
		return err
	}
	if callErr != nil {
		log.Debug("start function failed", zap.Error(callErr))
		return callErr
	}
	for i, bits := range results {
		env.Stack.Push(value.FromBits(fn.Type.Results[i], bits))
	}
	return nil
}

// Reset drops compiled code cached by earlier runs.
func (w *WazeroInterpreter) Reset() {
	ctx := context.Background()
	if err := w.cache.Close(ctx); err != nil {
		Logger().Warn("close compilation cache", zap.Error(err))
	}
	w.cache = wazero.NewCompilationCache()
}

// Close releases the compilation cache.
func (w *WazeroInterpreter) Close(ctx context.Context) error {
	return w.cache.Close(ctx)
}

// funcIndex maps a store address back to the module's function index space.
func funcIndex(inst *store.ModuleInstance, addr uint32) (uint32, bool) {
	for i, a := range inst.FuncAddrs {
		if a == addr {
			return uint32(i), true
		}
	}
	return 0, false
}

// instantiateHostModules serves each function import from the registry.
func instantiateHostModules(ctx context.Context, rt wazero.Runtime, env Env) error {
	builders := make(map[string]wazero.HostModuleBuilder)
	var order []string
	seen := make(map[[2]string]bool)

	for _, imp := range env.Module.Raw().ImportSection {
		if imp.Type != wasm.ExternTypeFunc {
			continue
		}
		key := [2]string{imp.Module, imp.Name}
		if seen[key] {
			continue
		}
		seen[key] = true

		addr, ok := env.Store.FindNative(imp.Module, imp.Name)
		if !ok {
			return errors.NewMissingImportsError([]errors.MissingImport{{Module: imp.Module, Name: imp.Name, Kind: "func"}})
		}
		fn, err := env.Store.Function(addr)
		if err != nil {
			return err
		}
		c, ok := env.Registry.Get(fn.HostHandle)
		if !ok {
			return errors.NotFound(errors.PhaseHost, "host function", uint32(fn.HostHandle))
		}

		b, ok := builders[imp.Module]
		if !ok {
			b = rt.NewHostModuleBuilder(imp.Module)
			builders[imp.Module] = b
			order = append(order, imp.Module)
		}
		b.NewFunctionBuilder().
			WithGoModuleFunction(hostFunc(fn, c), valueTypes(fn.Type.Params), valueTypes(fn.Type.Results)).
			WithName(imp.Name).
			Export(imp.Name)
	}

	for _, name := range order {
		if _, err := builders[name].Instantiate(ctx); err != nil {
			return errors.Wrap(errors.PhaseRun, errors.KindInstantiation, err, "instantiate host module "+name)
		}
	}
	return nil
}

// hostFunc adapts a registry callable to wazero's stack-based calling convention.
// Failures panic; wazero turns the panic into an error returned from Call.
func hostFunc(fn *store.FunctionInstance, c host.Callable) api.GoModuleFunc {
	typ := fn.Type
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		args := make([]value.Value, len(typ.Params))
		for i, k := range typ.Params {
			args[i] = value.FromBits(k, stack[i])
		}
		// mod.Memory() is a typed nil for modules without memory; the
		// synthetic export is absent instead.
		results, err := c.Call(ctx, NewWazeroMemory(mod.ExportedMemory(memoryExport)), args)
		if err != nil {
			panic(err)
		}
		if err := checkResults(fn.FuncName, typ.Results, results); err != nil {
			panic(err)
		}
		for i, r := range results {
			stack[i] = r.Bits()
		}
	}
}

func valueTypes(kinds []value.Kind) []api.ValueType {
	out := make([]api.ValueType, len(kinds))
	for i, k := range kinds {
		out[i] = k.ValueType()
	}
	return out
}

// seed copies store globals and memory into the guest instance. Reference
// globals keep the guest's own initializer; the store only holds a slot.
func seed(env Env, mod api.Module) error {
	for i, addr := range env.Instance.GlobalAddrs {
		g, err := env.Store.Global(addr)
		if err != nil {
			return err
		}
		if g.Type.IsRef() {
			continue
		}
		mg, ok := mod.ExportedGlobal(globalExport(i)).(api.MutableGlobal)
		if !ok {
			continue
		}
		mg.Set(g.Value)
	}

	if len(env.Instance.MemAddrs) == 0 {
		return nil
	}
	sm, err := env.Store.Memory(env.Instance.MemAddrs[0])
	if err != nil {
		return err
	}
	wm := mod.ExportedMemory(memoryExport)
	if wm == nil {
		return errors.NotFoundName(errors.PhaseRun, "memory export", memoryExport)
	}
	if wm.Size() < sm.Size() {
		if _, ok := wm.Grow((sm.Size() - wm.Size()) / store.PageSize); !ok {
			return errors.OutOfBounds(errors.PhaseRun, []string{"memory"}, int(sm.Size()), int(wm.Size()))
		}
	}
	if !wm.Write(0, sm.Bytes()) {
		return errors.OutOfBounds(errors.PhaseRun, []string{"memory"}, int(sm.Size()), int(wm.Size()))
	}
	return nil
}

// drain copies guest globals and memory back into the store.
func drain(env Env, mod api.Module) error {
	for i, addr := range env.Instance.GlobalAddrs {
		g, err := env.Store.Global(addr)
		if err != nil {
			return err
		}
		eg := mod.ExportedGlobal(globalExport(i))
		if eg == nil || g.Type.IsRef() {
			continue
		}
		g.SetRaw(value.FromBits(g.Type, eg.Get()).Bits())
	}

	if len(env.Instance.MemAddrs) == 0 {
		return nil
	}
	sm, err := env.Store.Memory(env.Instance.MemAddrs[0])
	if err != nil {
		return err
	}
	wm := mod.ExportedMemory(memoryExport)
	if wm == nil {
		return nil
	}
	data, ok := wm.Read(0, wm.Size())
	if !ok {
		return errors.OutOfBounds(errors.PhaseRun, []string{"memory"}, int(wm.Size()), int(wm.Size()))
	}
	sm.Load(data)
	return nil
}

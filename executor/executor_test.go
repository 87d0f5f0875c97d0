package executor

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wabin/wasm"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	wasmexecutor "github.com/wippyai/wasm-executor"
	"github.com/wippyai/wasm-executor/ast"
	"github.com/wippyai/wasm-executor/engine"
	"github.com/wippyai/wasm-executor/errors"
	"github.com/wippyai/wasm-executor/host"
	"github.com/wippyai/wasm-executor/internal/testmod"
	"github.com/wippyai/wasm-executor/snapshot"
	"github.com/wippyai/wasm-executor/store"
	"github.com/wippyai/wasm-executor/value"
)

type fakeInterpreter struct {
	err    error
	calls  []uint32
	resets int
}

func (f *fakeInterpreter) RunStartFunction(_ context.Context, _ engine.Env, addr uint32) error {
	f.calls = append(f.calls, addr)
	return f.err
}

func (f *fakeInterpreter) Reset() { f.resets++ }

type recordingObserver struct {
	ops    []Op
	errs   []error
	states []State
}

func (r *recordingObserver) Observe(op Op, state State, err error, _ time.Duration) {
	r.ops = append(r.ops, op)
	r.states = append(r.states, state)
	r.errs = append(r.errs, err)
}

func newExecutor(t *testing.T, opts ...Option) *Executor {
	t.Helper()
	e := New(opts...)
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

func module(raw func() *wasm.Module) *ast.Module {
	return ast.New(raw()).WithName("guest")
}

// advance drives e from StateCreated to target through the regular sequence.
func advance(t *testing.T, e *Executor, target State) {
	t.Helper()
	ctx := context.Background()
	steps := []func() error{
		func() error { return e.SetModule(module(testmod.Nop)) },
		func() error { return e.Instantiate(ctx) },
		func() error { args := []value.Value{value.I32(7)}; return e.SetArgs(&args) },
		func() error { return e.Run(ctx) },
		func() error { _, err := e.GetRets(); return err },
	}
	for i := 0; i < int(target); i++ {
		require.NoError(t, steps[i]())
	}
	require.Equal(t, target, e.State())
}

type counts struct {
	module                      bool
	instance                    bool
	stack, funcs, globals, mems int
	tables, modules, hosts      int
}

func countsOf(e *Executor) counts {
	return counts{
		module:   e.Module() != nil,
		instance: e.Instance() != nil,
		stack:    e.Stack().Size(),
		funcs:    e.Store().NumFunctions(),
		globals:  e.Store().NumGlobals(),
		mems:     e.Store().NumMemories(),
		tables:   e.Store().NumTables(),
		modules:  e.Store().NumModules(),
		hosts:    e.Registry().Len(),
	}
}

func TestExecutor_ArgsRoundTrip(t *testing.T) {
	e := newExecutor(t)
	ctx := context.Background()

	mod := module(testmod.Nop)
	require.NoError(t, e.SetModule(mod))
	assert.True(t, mod.Empty(), "SetModule must empty the caller's module")
	require.NoError(t, e.Instantiate(ctx))

	in := []value.Value{value.I32(1), value.I64(-2), value.F32(3.5), value.F64(4.25)}
	want := append([]value.Value(nil), in...)
	require.NoError(t, e.SetArgs(&in))
	assert.Empty(t, in, "SetArgs must empty the caller's slice")
	assert.Equal(t, StateArgsBound, e.State())

	require.NoError(t, e.Run(ctx))
	assert.Equal(t, StateExecuted, e.State())

	rets, err := e.GetRets()
	require.NoError(t, err)
	assert.Equal(t, want, rets)
	assert.Equal(t, StateFinished, e.State())
	assert.Zero(t, e.Stack().Size())
}

func TestExecutor_SequencingViolations(t *testing.T) {
	ctx := context.Background()
	ops := map[string]struct {
		call    func(e *Executor) error
		allowed State
	}{
		"SetModule": {func(e *Executor) error { return e.SetModule(module(testmod.Nop)) }, StateCreated},
		"Instantiate": {func(e *Executor) error { return e.Instantiate(ctx) }, StateModuleBound},
		"SetArgs": {func(e *Executor) error {
			args := []value.Value{value.I32(1)}
			return e.SetArgs(&args)
		}, StateInstantiated},
		"Run":     {func(e *Executor) error { return e.Run(ctx) }, StateArgsBound},
		"GetRets": {func(e *Executor) error { _, err := e.GetRets(); return err }, StateExecuted},
	}

	for name, op := range ops {
		for s := StateCreated; s <= StateFinished; s++ {
			if s == op.allowed {
				continue
			}
			t.Run(name+"/"+s.String(), func(t *testing.T) {
				e := newExecutor(t)
				advance(t, e, s)
				before := countsOf(e)

				err := op.call(e)
				require.Error(t, err)
				assert.Equal(t, errors.CodeWrongExecutorFlow, errors.CodeOf(err))
				assert.Equal(t, s, e.State())
				assert.Equal(t, before, countsOf(e))
			})
		}
	}
}

func TestExecutor_SetArgsKeepsSliceOnViolation(t *testing.T) {
	e := newExecutor(t)
	args := []value.Value{value.I32(1)}
	require.Error(t, e.SetArgs(&args))
	assert.Len(t, args, 1)
}

func TestExecutor_GetRetsTwice(t *testing.T) {
	e := newExecutor(t)
	advance(t, e, StateFinished)

	_, err := e.GetRets()
	assert.Equal(t, errors.CodeWrongExecutorFlow, errors.CodeOf(err))
	assert.Equal(t, StateFinished, e.State())
}

func TestExecutor_Reset(t *testing.T) {
	for s := StateCreated; s <= StateFinished; s++ {
		t.Run(s.String(), func(t *testing.T) {
			interp := &fakeInterpreter{}
			e := newExecutor(t, WithInterpreter(interp))
			advance(t, e, s)
			before := countsOf(e)

			err := e.Reset(false)
			if s == StateExecuted || s == StateFinished {
				require.NoError(t, err)
			} else {
				assert.Equal(t, errors.CodeWrongExecutorFlow, errors.CodeOf(err))
				assert.Equal(t, s, e.State())
				assert.Equal(t, before, countsOf(e))
				require.NoError(t, e.Reset(true))
			}

			assert.Equal(t, StateCreated, e.State())
			assert.Equal(t, counts{}, countsOf(e))
			assert.Equal(t, 1, interp.resets)
		})
	}
}

func TestExecutor_ResetClearsRegistrations(t *testing.T) {
	e := newExecutor(t, WithStartFunc("main"))
	require.NoError(t, e.RegisterHostFunction(doubler(), "env", "double"))
	e.SetStartFuncName("other")

	require.NoError(t, e.Reset(true))
	assert.Zero(t, e.Registry().Len())
	assert.Zero(t, e.Store().NumFunctions())
	assert.Equal(t, "main", e.StartFuncName())

	// The executor is reusable after Reset.
	advance(t, e, StateFinished)
}

func TestExecutor_SetModuleRejectsEmpty(t *testing.T) {
	e := newExecutor(t)
	assert.Equal(t, errors.CodeInvalidInput, errors.CodeOf(e.SetModule(nil)))

	mod := module(testmod.Nop)
	mod.Take()
	assert.Equal(t, errors.CodeInvalidInput, errors.CodeOf(e.SetModule(mod)))
	assert.Equal(t, StateCreated, e.State())
}

func TestExecutor_RunWithoutStartFunction(t *testing.T) {
	interp := &fakeInterpreter{}
	e := newExecutor(t, WithInterpreter(interp))
	ctx := context.Background()

	require.NoError(t, e.SetModule(module(testmod.Adder)))
	require.NoError(t, e.Instantiate(ctx))
	args := []value.Value{value.I32(1), value.I32(2)}
	require.NoError(t, e.SetArgs(&args))
	require.NoError(t, e.Run(ctx))

	assert.Empty(t, interp.calls)
	rets, err := e.GetRets()
	require.NoError(t, err)
	assert.Equal(t, []value.Value{value.I32(1), value.I32(2)}, rets)
}

func TestExecutor_RunAdvancesOnFailure(t *testing.T) {
	boom := stderrors.New("boom")
	interp := &fakeInterpreter{err: boom}
	e := newExecutor(t, WithInterpreter(interp))
	advance(t, e, StateArgsBound)

	err := e.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeExecutionFailed, errors.CodeOf(err))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateExecuted, e.State())
	assert.Len(t, interp.calls, 1)

	require.NoError(t, e.Reset(false))
}

func TestExecutor_RunTrap(t *testing.T) {
	e := newExecutor(t)
	ctx := context.Background()
	require.NoError(t, e.SetModule(module(testmod.Trap)))
	require.NoError(t, e.Instantiate(ctx))
	require.NoError(t, e.SetArgs(nil))

	err := e.Run(ctx)
	assert.Equal(t, errors.CodeExecutionFailed, errors.CodeOf(err))
	assert.Equal(t, StateExecuted, e.State())
}

func TestExecutor_RunHonorsContextDeadline(t *testing.T) {
	e := newExecutor(t, WithCloseOnContextDone(true))
	require.NoError(t, e.SetModule(module(testmod.Spin)))
	require.NoError(t, e.Instantiate(context.Background()))
	require.NoError(t, e.SetArgs(nil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := e.Run(ctx)
	assert.Equal(t, errors.CodeExecutionFailed, errors.CodeOf(err))
	assert.Equal(t, StateExecuted, e.State())
}

func TestExecutor_StartFuncName(t *testing.T) {
	e := newExecutor(t)
	ctx := context.Background()
	e.SetStartFuncName("add")

	require.NoError(t, e.SetModule(module(testmod.Adder)))
	require.NoError(t, e.Instantiate(ctx))
	args := []value.Value{value.I32(40), value.I32(2)}
	require.NoError(t, e.SetArgs(&args))
	require.NoError(t, e.Run(ctx))

	rets, err := e.GetRets()
	require.NoError(t, err)
	assert.Equal(t, []value.Value{value.I32(42)}, rets)
}

func TestExecutor_InstantiateFailure(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := newExecutor(t, WithLogger(zap.New(core)))

	require.NoError(t, e.SetModule(module(testmod.Doubler)))
	err := e.Instantiate(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeInstantiationFailed, errors.CodeOf(err))
	assert.Equal(t, StateModuleBound, e.State())
	assert.NotNil(t, e.Module())
	assert.Nil(t, e.Instance())

	entries := logs.FilterMessage("instantiation failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.EqualValues(t, errors.CodeInstantiationFailed, entries[0].ContextMap()["code"])
}

func doubler() host.Callable {
	return host.Func([]value.Kind{value.KindI32}, []value.Kind{value.KindI32},
		func(_ context.Context, _ wasmexecutor.Memory, args []value.Value) ([]value.Value, error) {
			return []value.Value{value.I32(args[0].I32() * 2)}, nil
		})
}

func TestExecutor_NativeImport(t *testing.T) {
	e := newExecutor(t)
	ctx := context.Background()
	require.NoError(t, e.RegisterHostFunction(doubler(), "env", "double"))

	require.NoError(t, e.SetModule(module(testmod.Doubler)))
	require.NoError(t, e.Instantiate(ctx))
	require.NoError(t, e.SetArgs(nil))
	require.NoError(t, e.Run(ctx))

	g, err := e.Store().Global(e.Instance().GlobalAddrs[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(42), g.Value)
}

func TestExecutor_RegisterHostFunction(t *testing.T) {
	t.Run("any state", func(t *testing.T) {
		for s := StateCreated; s <= StateFinished; s++ {
			e := newExecutor(t)
			advance(t, e, s)
			require.NoError(t, e.RegisterHostFunction(doubler(), "env", "double"), s.String())
			assert.Equal(t, s, e.State())
		}
	})

	t.Run("identity and type come from the call", func(t *testing.T) {
		e := newExecutor(t)
		require.NoError(t, e.RegisterHostFunction(doubler(), "math", "twice"))
		addr, ok := e.Store().FindNative("math", "twice")
		require.True(t, ok)
		fn, err := e.Store().Function(addr)
		require.NoError(t, err)
		assert.Equal(t, store.FuncNative, fn.Kind)
		assert.Equal(t, value.FuncType{Params: []value.Kind{value.KindI32}, Results: []value.Kind{value.KindI32}}, fn.Type)
		c, ok := e.Registry().Get(fn.HostHandle)
		require.True(t, ok)
		assert.NotNil(t, c)
	})

	t.Run("duplicate", func(t *testing.T) {
		e := newExecutor(t)
		require.NoError(t, e.RegisterHostFunction(doubler(), "env", "double"))
		before := countsOf(e)

		err := e.RegisterHostFunction(doubler(), "env", "double")
		assert.Equal(t, errors.CodeInsertionFailed, errors.CodeOf(err))
		assert.Equal(t, before, countsOf(e))

		require.NoError(t, e.RegisterHostFunction(doubler(), "other", "double"))
	})

	t.Run("registry full", func(t *testing.T) {
		e := newExecutor(t, WithHostFunctionLimit(1))
		require.NoError(t, e.RegisterHostFunction(doubler(), "env", "a"))

		err := e.RegisterHostFunction(doubler(), "env", "b")
		assert.Equal(t, errors.CodeInsertionFailed, errors.CodeOf(err))
		assert.Equal(t, 1, e.Store().NumFunctions())
		assert.Equal(t, 1, e.Registry().Len())
	})

	t.Run("store full orphans registry entry", func(t *testing.T) {
		e := newExecutor(t, WithStoreLimits(store.Limits{Functions: 1}))
		require.NoError(t, e.RegisterHostFunction(doubler(), "env", "a"))

		err := e.RegisterHostFunction(doubler(), "env", "b")
		assert.Equal(t, errors.CodeInsertionFailed, errors.CodeOf(err))
		assert.Equal(t, 1, e.Store().NumFunctions())
		assert.Equal(t, 2, e.Registry().Len())
	})

	t.Run("nil callable", func(t *testing.T) {
		e := newExecutor(t)
		assert.Equal(t, errors.CodeInvalidInput, errors.CodeOf(e.RegisterHostFunction(nil, "env", "a")))
		assert.Zero(t, e.Registry().Len())
	})
}

func TestExecutor_Restore(t *testing.T) {
	t.Run("global", func(t *testing.T) {
		e := newExecutor(t)
		advance(t, e, StateInstantiated)

		require.NoError(t, e.Restore(&snapshot.Document{Global: []snapshot.Entry{{Index: 2, Hex: "2A"}}}))
		for i, want := range []uint64{0, 0, 42} {
			g, err := e.Store().Global(uint32(i))
			require.NoError(t, err)
			assert.Equal(t, want, g.Value)
		}
	})

	t.Run("memory", func(t *testing.T) {
		e := newExecutor(t)
		advance(t, e, StateInstantiated)
		mem, err := e.Store().Memory(0)
		require.NoError(t, err)
		mem.Bytes()[5] = 0xee

		require.NoError(t, e.Restore(&snapshot.Document{Memory: []snapshot.Entry{{Index: 0, Hex: "48656c6c6f"}}}))
		assert.Equal(t, []byte{0x48, 0x65, 0x6c, 0x6c, 0x6f, 0xee}, mem.Bytes()[:6])
	})

	t.Run("stops at first failure", func(t *testing.T) {
		e := newExecutor(t)
		advance(t, e, StateInstantiated)

		err := e.Restore(&snapshot.Document{
			Global: []snapshot.Entry{{Index: 99, Hex: "1"}},
			Memory: []snapshot.Entry{{Index: 0, Hex: "ff"}},
		})
		assert.Equal(t, errors.CodeWrongInstanceAddress, errors.CodeOf(err))
		mem, err := e.Store().Memory(0)
		require.NoError(t, err)
		assert.Equal(t, byte(0), mem.Bytes()[0])
	})

	t.Run("visible to the guest", func(t *testing.T) {
		e := newExecutor(t)
		ctx := context.Background()
		require.NoError(t, e.SetModule(module(testmod.Echo)))
		require.NoError(t, e.Instantiate(ctx))
		require.NoError(t, e.Restore(&snapshot.Document{
			Global: []snapshot.Entry{{Index: 0, Hex: "0x11223344"}},
			Memory: []snapshot.Entry{{Index: 0, Hex: "09"}},
		}))
		require.NoError(t, e.SetArgs(nil))
		require.NoError(t, e.Run(ctx))

		doc, err := e.Capture()
		require.NoError(t, err)
		assert.Equal(t, "9", doc.Global[0].Hex)
		require.Len(t, doc.Memory[0].Hex, 2*store.PageSize)
		assert.Equal(t, "09000000000000000000000000000000"+"44332211", doc.Memory[0].Hex[:40])
	})

	t.Run("round trip over a zeroed data segment", func(t *testing.T) {
		e := newExecutor(t)
		ctx := context.Background()
		require.NoError(t, e.SetModule(module(testmod.Wiper)))
		require.NoError(t, e.Instantiate(ctx))
		require.NoError(t, e.SetArgs(nil))
		require.NoError(t, e.Run(ctx))

		mem, err := e.Store().Memory(0)
		require.NoError(t, err)
		require.Equal(t, []byte{0, 0}, mem.Bytes()[0x20:0x22])
		doc, err := e.Capture()
		require.NoError(t, err)

		require.NoError(t, e.Reset(true))
		require.NoError(t, e.SetModule(module(testmod.Wiper)))
		require.NoError(t, e.Instantiate(ctx))
		mem, err = e.Store().Memory(0)
		require.NoError(t, err)
		require.Equal(t, []byte("Hi"), mem.Bytes()[0x20:0x22])

		require.NoError(t, e.Restore(doc))
		assert.Equal(t, []byte{0, 0}, mem.Bytes()[0x20:0x22])
		again, err := e.Capture()
		require.NoError(t, err)
		assert.Equal(t, doc, again)
	})
}

func TestExecutor_Observer(t *testing.T) {
	obs := &recordingObserver{}
	e := newExecutor(t, WithObserver(obs))
	advance(t, e, StateFinished)
	_ = e.Run(context.Background())

	assert.Equal(t, []Op{OpSetModule, OpInstantiate, OpSetArgs, OpRun, OpGetRets, OpRun}, obs.ops)
	assert.Equal(t, StateFinished, obs.states[len(obs.states)-1])
	assert.Nil(t, obs.errs[0])
	assert.Equal(t, errors.CodeWrongExecutorFlow, errors.CodeOf(obs.errs[len(obs.errs)-1]))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "ModuleBound", StateModuleBound.String())
	assert.Equal(t, "Unknown", State(42).String())
}

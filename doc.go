// Package wasmexecutor drives WebAssembly core modules through an explicit
// execution lifecycle.
//
// The executor sequences the steps of running one module: bind a parsed
// module, instantiate it into an entity store, stage arguments on an operand
// stack, run the start function, collect the results and reset for reuse.
// Native Go functions are registered into a handle registry and imported by
// guest code; a hex snapshot of globals and memories can be injected into the
// store to resume previously captured state.
//
// # Architecture Overview
//
//	wasmexecutor/        Root package with the Memory interface seen by native functions
//	├── executor/        Lifecycle state machine (the driver)
//	├── ast/             Exclusively owned parsed modules
//	├── value/           Tagged i32/i64/f32/f64 values and function types
//	├── stack/           Operand stack
//	├── store/           Function, global, memory, table and module instances
//	├── host/            Native function registry
//	├── linker/          Instantiation of a module into a store
//	├── engine/          Interpreter interface and the wazero-backed implementation
//	├── snapshot/        Hex snapshot documents: restore, capture, JSON/YAML/CBOR
//	├── metrics/         Prometheus observer for executor operations
//	├── config/          TOML configuration
//	├── errors/          Structured errors with numeric status codes
//	└── cmd/run/         Command-line driver
//
// # Quick Start
//
//	ex := executor.New()
//	defer ex.Close(ctx)
//
//	mod, err := ast.Decode(wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := ex.SetModule(mod); err != nil {
//	    log.Fatal(err)
//	}
//	if err := ex.Instantiate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	args := []value.Value{value.I32(20), value.I32(22)}
//	_ = ex.SetArgs(&args)
//	if err := ex.Run(ctx); err != nil {
//	    log.Print(errors.CodeOf(err))
//	}
//	rets, _ := ex.GetRets()
//
// # Host Functions
//
//	double := host.Func([]value.Kind{value.KindI32}, []value.Kind{value.KindI32},
//	    func(ctx context.Context, mem wasmexecutor.Memory, args []value.Value) ([]value.Value, error) {
//	        return []value.Value{value.I32(args[0].I32() * 2)}, nil
//	    })
//	err := ex.RegisterHostFunction(double, "env", "double")
//
// mem is nil when the calling module has no memory.
//
// # Thread Safety
//
// An Executor is not safe for concurrent use. Callers sharing one across
// goroutines must serialize every call, including read-only accessors.
package wasmexecutor

// Package host holds native (Go) functions callable from guest code and the
// registry that owns them.
package host

import (
	"context"

	wasmexecutor "github.com/wippyai/wasm-executor"
	"github.com/wippyai/wasm-executor/value"
)

// Callable is a native function. Its signature is reported by the callable
// itself; registration never takes a separately supplied type.
type Callable interface {
	FuncType() value.FuncType
	// Call runs the function. mem is the calling module's memory and may be
	// nil when the module defines none.
	Call(ctx context.Context, mem wasmexecutor.Memory, args []value.Value) ([]value.Value, error)
}

// Handler is the function shape wrapped by Func.
type Handler func(ctx context.Context, mem wasmexecutor.Memory, args []value.Value) ([]value.Value, error)

type funcCallable struct {
	fn  Handler
	typ value.FuncType
}

// Func wraps a handler with an explicit signature.
func Func(params, results []value.Kind, fn Handler) Callable {
	return &funcCallable{
		typ: value.FuncType{Params: params, Results: results},
		fn:  fn,
	}
}

func (f *funcCallable) FuncType() value.FuncType { return f.typ }

func (f *funcCallable) Call(ctx context.Context, mem wasmexecutor.Memory, args []value.Value) ([]value.Value, error) {
	return f.fn(ctx, mem, args)
}

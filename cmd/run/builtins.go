package main

import (
	"context"
	"fmt"
	"io"

	wasmexecutor "github.com/wippyai/wasm-executor"
	"github.com/wippyai/wasm-executor/errors"
	"github.com/wippyai/wasm-executor/executor"
	"github.com/wippyai/wasm-executor/host"
	"github.com/wippyai/wasm-executor/value"
)

type builtin struct {
	name string
	fn   host.Callable
}

// builtins are the host functions every module run from the CLI can import.
func builtins(out io.Writer) []builtin {
	printer := func(k value.Kind) host.Callable {
		return host.Func([]value.Kind{k}, nil,
			func(_ context.Context, _ wasmexecutor.Memory, args []value.Value) ([]value.Value, error) {
				_, err := fmt.Fprintln(out, args[0].String())
				return nil, err
			})
	}
	return []builtin{
		{"print_i32", printer(value.KindI32)},
		{"print_i64", printer(value.KindI64)},
		{"print_f32", printer(value.KindF32)},
		{"print_f64", printer(value.KindF64)},
		{"print", host.Func([]value.Kind{value.KindI32, value.KindI32}, nil,
			func(_ context.Context, mem wasmexecutor.Memory, args []value.Value) ([]value.Value, error) {
				if mem == nil {
					return nil, errors.InvalidInput(errors.PhaseHost, "print needs an exported memory")
				}
				data, err := mem.Read(uint32(args[0].I32()), uint32(args[1].I32()))
				if err != nil {
					return nil, err
				}
				_, err = fmt.Fprintln(out, string(data))
				return nil, err
			})},
	}
}

func registerBuiltins(ex *executor.Executor, module string, out io.Writer) error {
	if module == "" {
		return nil
	}
	for _, b := range builtins(out) {
		if err := ex.RegisterHostFunction(b.fn, module, b.name); err != nil {
			return err
		}
	}
	return nil
}

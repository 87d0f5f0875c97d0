package engine

import (
	"context"
	"strconv"

	wasmexecutor "github.com/wippyai/wasm-executor"
	"github.com/wippyai/wasm-executor/ast"
	"github.com/wippyai/wasm-executor/errors"
	"github.com/wippyai/wasm-executor/host"
	"github.com/wippyai/wasm-executor/stack"
	"github.com/wippyai/wasm-executor/store"
	"github.com/wippyai/wasm-executor/value"
)

// Env is everything a start function can observe. The executor owns all of it.
type Env struct {
	Store    *store.Store
	Stack    *stack.Stack
	Registry *host.Registry
	Module   *ast.Module
	Instance *store.ModuleInstance
}

// Interpreter executes functions given an entry address.
//
// RunStartFunction pops the function's parameters from env.Stack (the last
// parameter on top) and pushes its results in order. Reset drops any state
// cached between runs.
type Interpreter interface {
	RunStartFunction(ctx context.Context, env Env, addr uint32) error
	Reset()
}

// popArgs pops len(kinds) values, returning them in parameter order.
func popArgs(s *stack.Stack, kinds []value.Kind) ([]value.Value, error) {
	args := make([]value.Value, len(kinds))
	for i := len(kinds) - 1; i >= 0; i-- {
		v, err := s.Pop()
		if err != nil {
			return nil, err
		}
		if v.Kind() != kinds[i] {
			return nil, errors.TypeMismatch(errors.PhaseRun, []string{"param", strconv.Itoa(i)}, kinds[i].String(), v.Kind().String())
		}
		args[i] = v
	}
	return args, nil
}

// callNative invokes a registry callable directly, without the guest runtime.
func callNative(ctx context.Context, env Env, fn *store.FunctionInstance) error {
	c, ok := env.Registry.Get(fn.HostHandle)
	if !ok {
		return errors.NotFound(errors.PhaseHost, "host function", uint32(fn.HostHandle))
	}
	args, err := popArgs(env.Stack, fn.Type.Params)
	if err != nil {
		return err
	}
	var mem wasmexecutor.Memory
	if env.Instance != nil && len(env.Instance.MemAddrs) > 0 {
		if m, err := env.Store.Memory(env.Instance.MemAddrs[0]); err == nil {
			mem = m
		}
	}
	results, err := c.Call(ctx, mem, args)
	if err != nil {
		return err
	}
	if err := checkResults(fn.FuncName, fn.Type.Results, results); err != nil {
		return err
	}
	for _, r := range results {
		env.Stack.Push(r)
	}
	return nil
}

func checkResults(name string, want []value.Kind, got []value.Value) error {
	if len(got) != len(want) {
		return errors.TypeMismatch(errors.PhaseHost, []string{name, "results"},
			strconv.Itoa(len(want))+" results", strconv.Itoa(len(got)))
	}
	for i, v := range got {
		if v.Kind() != want[i] {
			return errors.TypeMismatch(errors.PhaseHost, []string{name, "result", strconv.Itoa(i)},
				want[i].String(), v.Kind().String())
		}
	}
	return nil
}

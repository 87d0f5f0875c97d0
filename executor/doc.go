// Package executor drives a single WebAssembly module through its lifecycle:
//
//	Created --SetModule--> ModuleBound --Instantiate--> Instantiated
//	  --SetArgs--> ArgsBound --Run--> Executed --GetRets--> Finished
//
// Reset(false) returns to Created from Executed or Finished; Reset(true)
// returns to Created from any state. Any other call fails with a
// sequencing violation (errors.CodeWrongExecutorFlow) and changes nothing.
//
// RegisterHostFunction, SetStartFuncName and Restore are not gated by the
// lifecycle.
//
// Basic usage:
//
//	ex := executor.New(executor.WithLogger(log))
//	defer ex.Close(ctx)
//
//	if err := ex.RegisterHostFunction(printer, "env", "print"); err != nil {
//		return err
//	}
//	mod, err := ast.Decode(wasmBytes)
//	if err != nil {
//		return err
//	}
//	if err := ex.SetModule(mod); err != nil {
//		return err
//	}
//	if err := ex.Instantiate(ctx); err != nil {
//		return err
//	}
//	args := []value.Value{value.I32(1)}
//	if err := ex.SetArgs(&args); err != nil {
//		return err
//	}
//	runErr := ex.Run(ctx) // state is Executed even if runErr != nil
//	rets, err := ex.GetRets()
//
// Run does not report success through the state. Check its error.
package executor

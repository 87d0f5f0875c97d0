// Package errors provides structured error types for the wasm-executor library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// Every Kind maps to a discrete status Code, so callers that need a numeric status
// can use CodeOf instead of matching on error values:
//
//	if err := ex.Run(ctx); errors.CodeOf(err) == errors.CodeExecutionFailed {
//		// the start function trapped; the executor still advanced to Executed
//	}
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseRestore, errors.KindDecode).
//		Path("Memory", "0").
//		Detail("odd length hex string").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.WrongFlow("run", "Created")
//	err := errors.NotFound(errors.PhaseRestore, "global", 3)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors

package errors

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLifecycle   Phase = "lifecycle"   // executor state transitions
	PhaseLoad        Phase = "load"        // module decoding
	PhaseInstantiate Phase = "instantiate" // module linking
	PhaseHost        Phase = "host"        // native function registration
	PhaseStore       Phase = "store"       // entity store access
	PhaseStack       Phase = "stack"       // operand stack access
	PhaseRun         Phase = "run"         // start function execution
	PhaseRestore     Phase = "restore"     // snapshot injection
	PhaseCapture     Phase = "capture"     // snapshot extraction
	PhaseConfig      Phase = "config"      // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindSequencing    Kind = "sequencing_violation"
	KindNotFound      Kind = "not_found"
	KindInsertion     Kind = "insertion_failure"
	KindDecode        Kind = "decode_failure"
	KindExecution     Kind = "execution_failure"
	KindOutOfBounds   Kind = "out_of_bounds"
	KindTypeMismatch  Kind = "type_mismatch"
	KindUnsupported   Kind = "unsupported"
	KindInvalidInput  Kind = "invalid_input"
	KindMissingImport Kind = "missing_import"
	KindInstantiation Kind = "instantiation"
	KindStackEmpty    Kind = "stack_empty"
)

// Code is the discrete status code reported across the executor boundary.
type Code uint32

const (
	CodeSuccess Code = iota
	CodeWrongExecutorFlow
	CodeWrongInstanceAddress
	CodeInsertionFailed
	CodeDecodeFailed
	CodeExecutionFailed
	CodeMemoryOutOfBounds
	CodeTypeMismatch
	CodeUnsupported
	CodeInvalidInput
	CodeInstantiationFailed
	CodeStackEmpty
	CodeUnknown
)

var codeNames = [...]string{
	CodeSuccess:              "success",
	CodeWrongExecutorFlow:    "wrong executor flow",
	CodeWrongInstanceAddress: "wrong instance address",
	CodeInsertionFailed:      "insertion failed",
	CodeDecodeFailed:         "decode failed",
	CodeExecutionFailed:      "execution failed",
	CodeMemoryOutOfBounds:    "memory out of bounds",
	CodeTypeMismatch:         "type mismatch",
	CodeUnsupported:          "unsupported",
	CodeInvalidInput:         "invalid input",
	CodeInstantiationFailed:  "instantiation failed",
	CodeStackEmpty:           "stack empty",
	CodeUnknown:              "unknown",
}

func (c Code) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return "code(" + strconv.FormatUint(uint64(c), 10) + ")"
}

var kindCodes = map[Kind]Code{
	KindSequencing:    CodeWrongExecutorFlow,
	KindNotFound:      CodeWrongInstanceAddress,
	KindInsertion:     CodeInsertionFailed,
	KindDecode:        CodeDecodeFailed,
	KindExecution:     CodeExecutionFailed,
	KindOutOfBounds:   CodeMemoryOutOfBounds,
	KindTypeMismatch:  CodeTypeMismatch,
	KindUnsupported:   CodeUnsupported,
	KindInvalidInput:  CodeInvalidInput,
	KindMissingImport: CodeInstantiationFailed,
	KindInstantiation: CodeInstantiationFailed,
	KindStackEmpty:    CodeStackEmpty,
}

// Error is the structured error type used throughout the executor
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Code returns the status code for the error's kind.
func (e *Error) Code() Code {
	if c, ok := kindCodes[e.Kind]; ok {
		return c
	}
	return CodeUnknown
}

// CodeOf returns the status code carried by err. A nil error is CodeSuccess;
// errors not produced by this package map to CodeUnknown.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code()
	}
	var mi *MissingImportsError
	if stderrors.As(err, &mi) {
		return CodeInstantiationFailed
	}
	return CodeUnknown
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the entity path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// WrongFlow creates a sequencing violation for op invoked in state.
func WrongFlow(op, state string) *Error {
	return &Error{
		Phase:  PhaseLifecycle,
		Kind:   KindSequencing,
		Detail: fmt.Sprintf("%s not allowed in state %s", op, state),
		Value:  state,
	}
}

// NotFound creates a not-found error for a store entity addressed by index
func NotFound(phase Phase, what string, index uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Path:   []string{what, strconv.FormatUint(uint64(index), 10)},
		Detail: fmt.Sprintf("%s %d not found", what, index),
		Value:  index,
	}
}

// NotFoundName creates a not-found error for an entity addressed by name
func NotFoundName(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
		Value:  name,
	}
}

// InsertionFailed creates an insertion failure error
func InsertionFailed(phase Phase, what string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInsertion,
		Detail: fmt.Sprintf("insert %s", what),
		Cause:  cause,
	}
}

// Capacity creates an insertion failure for an exhausted container
func Capacity(phase Phase, what string, limit int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInsertion,
		Detail: fmt.Sprintf("%s capacity %d exhausted", what, limit),
		Value:  limit,
	}
}

// Registration creates a registration error for a native function identity
func Registration(namespace, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindInsertion,
		Path:   []string{namespace, name},
		Detail: fmt.Sprintf("register %s#%s", namespace, name),
		Cause:  cause,
	}
}

// DecodeFailed creates a decode failure error
func DecodeFailed(phase Phase, path []string, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDecode,
		Path:   path,
		Detail: detail,
		Cause:  cause,
	}
}

// ExecutionFailed wraps an interpreter failure
func ExecutionFailed(cause error) *Error {
	return &Error{
		Phase:  PhaseRun,
		Kind:   KindExecution,
		Detail: "run start function",
		Cause:  cause,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, want, got string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		Detail: fmt.Sprintf("expected %s, got %s", want, got),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// StackEmpty creates an error for popping an empty operand stack
func StackEmpty() *Error {
	return &Error{
		Phase:  PhaseStack,
		Kind:   KindStackEmpty,
		Detail: "pop from empty operand stack",
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseInstantiate,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindDecode,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// MissingImport represents a single unresolved import
type MissingImport struct {
	Module string // e.g., "env"
	Name   string // e.g., "print_i32"
	Kind   string // "func", "global", "memory", "table"
}

// MissingImportsError is returned when instantiation fails due to unresolved imports
type MissingImportsError struct {
	Imports []MissingImport
}

// NewMissingImportsError creates an error from unresolved imports
func NewMissingImportsError(imports []MissingImport) *MissingImportsError {
	return &MissingImportsError{Imports: imports}
}

func (e *MissingImportsError) Error() string {
	if len(e.Imports) == 0 {
		return "[instantiate] missing_import: no imports specified"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "missing %d import(s):\n", len(e.Imports))

	// Group by module for cleaner output
	byMod := make(map[string][]MissingImport)
	var modOrder []string
	for _, imp := range e.Imports {
		if _, exists := byMod[imp.Module]; !exists {
			modOrder = append(modOrder, imp.Module)
		}
		byMod[imp.Module] = append(byMod[imp.Module], imp)
	}

	for _, mod := range modOrder {
		b.WriteString("\n  ")
		b.WriteString(mod)
		b.WriteString(":\n")
		for _, imp := range byMod[mod] {
			b.WriteString("    - ")
			b.WriteString(imp.Name)
			if imp.Kind != "" {
				b.WriteString(" (")
				b.WriteString(imp.Kind)
				b.WriteByte(')')
			}
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *MissingImportsError) Is(target error) bool {
	_, ok := target.(*MissingImportsError)
	return ok
}

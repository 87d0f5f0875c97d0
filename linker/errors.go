package linker

import (
	"strconv"

	"github.com/wippyai/wasm-executor/errors"
)

// instError creates an instantiation error located at a section entry.
// index < 0 omits the entry index from the path.
func instError(section string, index int, kind errors.Kind, cause error, format string, args ...any) *errors.Error {
	b := errors.New(errors.PhaseInstantiate, kind).Cause(cause)
	if index >= 0 {
		b = b.Path(section, strconv.Itoa(index))
	} else {
		b = b.Path(section)
	}
	if format != "" {
		b = b.Detail(format, args...)
	}
	return b.Build()
}

// kindOf returns the kind of a store error so its status code survives wrapping.
func kindOf(err error, fallback errors.Kind) errors.Kind {
	if k, ok := errors.KindOf(err); ok {
		return k
	}
	return fallback
}

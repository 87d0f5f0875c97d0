// Package ast holds the parsed, pre-linking form of a WebAssembly module.
//
// A Module has exactly one owner at a time. Ownership moves with Take, which
// leaves the previous holder empty so a stale handle cannot be used to reach
// a module the executor is already working on.
package ast

import (
	"github.com/tetratelabs/wabin/binary"
	"github.com/tetratelabs/wabin/wasm"

	"github.com/wippyai/wasm-executor/errors"
)

// Features enabled when decoding binaries.
const Features = wasm.CoreFeaturesV2

// Module is an exclusively owned parsed module.
type Module struct {
	raw  *wasm.Module
	name string
}

// New wraps an already parsed module.
func New(raw *wasm.Module) *Module {
	return &Module{raw: raw}
}

// Decode parses a binary module.
func Decode(data []byte) (*Module, error) {
	if len(data) == 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, "empty module binary")
	}
	raw, err := binary.DecodeModule(data, Features)
	if err != nil {
		return nil, errors.Load("decode module", err)
	}
	return &Module{raw: raw}, nil
}

// WithName sets the module name used as the identity of its functions.
func (m *Module) WithName(name string) *Module {
	m.name = name
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return m.name
}

// Empty reports whether m no longer (or never) holds a parsed module.
func (m *Module) Empty() bool {
	return m == nil || m.raw == nil
}

// Take moves the parsed module out of m into a new holder. m is empty afterwards.
func (m *Module) Take() *Module {
	if m.Empty() {
		return nil
	}
	out := &Module{raw: m.raw, name: m.name}
	m.raw = nil
	m.name = ""
	return out
}

// Raw returns the parsed module for read access. The caller must not retain it
// past the owner's lifetime.
func (m *Module) Raw() *wasm.Module {
	if m == nil {
		return nil
	}
	return m.raw
}

// Encode serializes the module back into the binary format.
func (m *Module) Encode() []byte {
	if m.Empty() {
		return nil
	}
	return binary.EncodeModule(m.raw)
}

// NumImported returns the number of imports of the given extern type.
func (m *Module) NumImported(kind wasm.ExternType) int {
	if m.Empty() {
		return 0
	}
	count := 0
	for _, imp := range m.raw.ImportSection {
		if imp.Type == kind {
			count++
		}
	}
	return count
}

// FuncType returns the signature of the function at funcIdx in the module's
// function index space (imports first), or nil if out of range.
func (m *Module) FuncType(funcIdx uint32) *wasm.FunctionType {
	if m.Empty() {
		return nil
	}
	var typeIdx wasm.Index
	found := false
	for _, imp := range m.raw.ImportSection {
		if imp.Type != wasm.ExternTypeFunc {
			continue
		}
		if funcIdx == 0 {
			typeIdx, found = imp.DescFunc, true
			break
		}
		funcIdx--
	}
	if !found {
		if int(funcIdx) >= len(m.raw.FunctionSection) {
			return nil
		}
		typeIdx = m.raw.FunctionSection[funcIdx]
	}
	if int(typeIdx) >= len(m.raw.TypeSection) {
		return nil
	}
	return m.raw.TypeSection[typeIdx]
}

// ExportName returns the first export name for (kind, idx), if any.
func (m *Module) ExportName(kind wasm.ExternType, idx uint32) (string, bool) {
	if m.Empty() {
		return "", false
	}
	for _, exp := range m.raw.ExportSection {
		if exp.Type == kind && uint32(exp.Index) == idx {
			return exp.Name, true
		}
	}
	return "", false
}

package store

import (
	"encoding/binary"

	"github.com/wippyai/wasm-executor/errors"
	"github.com/wippyai/wasm-executor/host"
	"github.com/wippyai/wasm-executor/value"
)

// PageSize is the size of one linear memory page.
const PageSize = 65536

// FuncKind distinguishes native functions from interpreted ones.
type FuncKind uint8

const (
	FuncInterpreted FuncKind = iota
	FuncNative
)

func (k FuncKind) String() string {
	if k == FuncNative {
		return "native"
	}
	return "interpreted"
}

// FunctionInstance is a function entity.
//
// Native functions do not hold their callable: HostHandle is a lookup key into
// the host registry, which stays the callable's only owner.
type FunctionInstance struct {
	ModuleName string
	FuncName   string
	Type       value.FuncType
	CodeIndex  uint32
	HostHandle host.Handle
	Kind       FuncKind
}

// NewNativeFunction creates a native function entity with no handle yet.
func NewNativeFunction(moduleName, funcName string, typ value.FuncType) *FunctionInstance {
	return &FunctionInstance{
		Kind:       FuncNative,
		ModuleName: moduleName,
		FuncName:   funcName,
		Type:       typ,
	}
}

// IsNative reports whether the function is backed by the host registry.
func (f *FunctionInstance) IsNative() bool {
	return f.Kind == FuncNative
}

// GlobalInstance is a global entity. Value holds the raw 64-bit encoding.
type GlobalInstance struct {
	Value   uint64
	Type    value.Kind
	Mutable bool
}

// Get returns the global's value tagged with its declared kind.
func (g *GlobalInstance) Get() value.Value {
	return value.FromBits(g.Type, g.Value)
}

// SetRaw overwrites the stored bits without checking them against Type.
func (g *GlobalInstance) SetRaw(bits uint64) {
	g.Value = bits
}

// TableInstance is a table entity. Elements hold function addresses; nil is a null reference.
type TableInstance struct {
	Max      *uint32
	Elements []*uint32
	Min      uint32
	ElemType byte
}

// NewTable creates a table with min null elements.
func NewTable(elemType byte, min uint32, max *uint32) *TableInstance {
	return &TableInstance{
		Elements: make([]*uint32, min),
		Min:      min,
		Max:      max,
		ElemType: elemType,
	}
}

// MemoryInstance is a linear memory entity backed by a growable byte buffer.
type MemoryInstance struct {
	Max  *uint32
	data []byte
	Min  uint32
}

// NewMemory allocates min pages.
func NewMemory(min uint32, max *uint32) *MemoryInstance {
	return &MemoryInstance{
		data: make([]byte, uint64(min)*PageSize),
		Min:  min,
		Max:  max,
	}
}

// Size returns the buffer length in bytes.
func (m *MemoryInstance) Size() uint32 {
	return uint32(len(m.data))
}

// Pages returns the buffer length in pages.
func (m *MemoryInstance) Pages() uint32 {
	return uint32(len(m.data) / PageSize)
}

// Bytes returns the live buffer. Callers must not retain it across Load.
func (m *MemoryInstance) Bytes() []byte {
	return m.data
}

// Load replaces the buffer with a copy of data, resizing it to len(data).
func (m *MemoryInstance) Load(data []byte) {
	m.data = append(m.data[:0], data...)
}

// SetBytes copies length bytes of src starting at srcOff into the memory at dstOff.
func (m *MemoryInstance) SetBytes(src []byte, dstOff, srcOff, length uint32) error {
	if uint64(srcOff)+uint64(length) > uint64(len(src)) {
		return errors.OutOfBounds(errors.PhaseStore, []string{"source"}, int(srcOff)+int(length), len(src))
	}
	if uint64(dstOff)+uint64(length) > uint64(len(m.data)) {
		return errors.OutOfBounds(errors.PhaseStore, []string{"memory"}, int(dstOff)+int(length), len(m.data))
	}
	copy(m.data[dstOff:], src[srcOff:srcOff+length])
	return nil
}

// Read returns a copy of length bytes at offset.
func (m *MemoryInstance) Read(offset, length uint32) ([]byte, error) {
	if uint64(offset)+uint64(length) > uint64(len(m.data)) {
		return nil, errors.OutOfBounds(errors.PhaseStore, []string{"memory"}, int(offset)+int(length), len(m.data))
	}
	out := make([]byte, length)
	copy(out, m.data[offset:])
	return out, nil
}

// Write copies data into the memory at offset.
func (m *MemoryInstance) Write(offset uint32, data []byte) error {
	return m.SetBytes(data, offset, 0, uint32(len(data)))
}

func (m *MemoryInstance) ReadU32(offset uint32) (uint32, error) {
	b, err := m.Read(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (m *MemoryInstance) ReadU64(offset uint32) (uint64, error) {
	b, err := m.Read(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (m *MemoryInstance) WriteU32(offset uint32, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return m.Write(offset, b[:])
}

func (m *MemoryInstance) WriteU64(offset uint32, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return m.Write(offset, b[:])
}

// ExternKind identifies the entity type an export refers to.
type ExternKind byte

const (
	ExternFunc   ExternKind = 0x00
	ExternTable  ExternKind = 0x01
	ExternMemory ExternKind = 0x02
	ExternGlobal ExternKind = 0x03
)

// Export is a named store address exported by a module instance.
type Export struct {
	Addr uint32
	Kind ExternKind
}

// ModuleInstance is the linked form of a module. Its slices map module-local
// indices to store addresses.
type ModuleInstance struct {
	Exports     map[string]Export
	startAddr   *uint32
	Name        string
	FuncAddrs   []uint32
	GlobalAddrs []uint32
	MemAddrs    []uint32
	TableAddrs  []uint32
}

// NewModuleInstance creates an empty module instance.
func NewModuleInstance(name string) *ModuleInstance {
	return &ModuleInstance{
		Name:    name,
		Exports: make(map[string]Export),
	}
}

// StartAddr returns the store address of the start function, if any.
func (mi *ModuleInstance) StartAddr() (uint32, bool) {
	if mi == nil || mi.startAddr == nil {
		return 0, false
	}
	return *mi.startAddr, true
}

// SetStartAddr records the start function's store address.
func (mi *ModuleInstance) SetStartAddr(addr uint32) {
	mi.startAddr = &addr
}

// ExportedFunc returns the store address of an exported function.
func (mi *ModuleInstance) ExportedFunc(name string) (uint32, bool) {
	exp, ok := mi.Exports[name]
	if !ok || exp.Kind != ExternFunc {
		return 0, false
	}
	return exp.Addr, true
}

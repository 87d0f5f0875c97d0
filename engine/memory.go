package engine

import (
	"github.com/tetratelabs/wazero/api"

	wasmexecutor "github.com/wippyai/wasm-executor"
	"github.com/wippyai/wasm-executor/errors"
)

var (
	_ wasmexecutor.Memory      = (*WazeroMemory)(nil)
	_ wasmexecutor.MemorySizer = (*WazeroMemory)(nil)
)

// WazeroMemory wraps wazero memory to implement wasmexecutor.Memory.
type WazeroMemory struct {
	mem api.Memory
}

// NewWazeroMemory wraps mem. It returns nil for a nil memory so native
// functions see an untyped nil when the module defines none.
func NewWazeroMemory(mem api.Memory) wasmexecutor.Memory {
	if mem == nil {
		return nil
	}
	return &WazeroMemory{mem: mem}
}

func (m *WazeroMemory) Size() uint32 {
	return m.mem.Size()
}

// Read returns a copy of length bytes at offset.
func (m *WazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, m.outOfBounds(offset, length)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *WazeroMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return m.outOfBounds(offset, uint32(len(data)))
	}
	return nil
}

func (m *WazeroMemory) ReadU32(offset uint32) (uint32, error) {
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, m.outOfBounds(offset, 4)
	}
	return val, nil
}

func (m *WazeroMemory) ReadU64(offset uint32) (uint64, error) {
	val, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, m.outOfBounds(offset, 8)
	}
	return val, nil
}

func (m *WazeroMemory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return m.outOfBounds(offset, 4)
	}
	return nil
}

func (m *WazeroMemory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return m.outOfBounds(offset, 8)
	}
	return nil
}

func (m *WazeroMemory) outOfBounds(offset, length uint32) error {
	return errors.OutOfBounds(errors.PhaseRun, []string{"memory"}, int(offset)+int(length), int(m.mem.Size()))
}

// Package testmod builds small modules used across package tests.
package testmod

import (
	"github.com/tetratelabs/wabin/binary"
	"github.com/tetratelabs/wabin/wasm"
)

var (
	voidType   = &wasm.FunctionType{}
	i32ToI32   = &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	i32x2ToI32 = &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
)

// Reference type and opcode bytes from the binary format.
const (
	funcref   = 0x70
	opRefNull = 0xd0
)

func i32Const(v byte) *wasm.ConstantExpression {
	return &wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: []byte{v}}
}

func startAt(idx wasm.Index) *wasm.Index {
	return &idx
}

// Counter has a mutable i32 global initialized to 1, one page of memory
// with "Hi" at offset 0, and a start function that increments the global
// and stores 0x2a at offset 8.
func Counter() *wasm.Module {
	return &wasm.Module{
		TypeSection:     []*wasm.FunctionType{voidType},
		FunctionSection: []wasm.Index{0},
		MemorySection:   &wasm.Memory{Min: 1},
		GlobalSection: []*wasm.Global{{
			Type: &wasm.GlobalType{ValType: wasm.ValueTypeI32, Mutable: true},
			Init: i32Const(1),
		}},
		ExportSection: []*wasm.Export{
			{Type: wasm.ExternTypeFunc, Name: "tick", Index: 0},
			{Type: wasm.ExternTypeMemory, Name: "memory", Index: 0},
		},
		StartSection: startAt(0),
		CodeSection: []*wasm.Code{{Body: []byte{
			wasm.OpcodeGlobalGet, 0x00,
			wasm.OpcodeI32Const, 0x01,
			wasm.OpcodeI32Add,
			wasm.OpcodeGlobalSet, 0x00,
			wasm.OpcodeI32Const, 0x08,
			wasm.OpcodeI32Const, 0x2a,
			wasm.OpcodeI32Store8, 0x00, 0x00,
			wasm.OpcodeEnd,
		}}},
		DataSection: []*wasm.DataSegment{{
			OffsetExpression: i32Const(0),
			Init:             []byte("Hi"),
		}},
	}
}

// Doubler imports env.double (i32) -> (i32) and has a start function that
// stores double(21) into its only global.
func Doubler() *wasm.Module {
	return &wasm.Module{
		TypeSection: []*wasm.FunctionType{voidType, i32ToI32},
		ImportSection: []*wasm.Import{{
			Type:     wasm.ExternTypeFunc,
			Module:   "env",
			Name:     "double",
			DescFunc: 1,
		}},
		FunctionSection: []wasm.Index{0},
		GlobalSection: []*wasm.Global{{
			Type: &wasm.GlobalType{ValType: wasm.ValueTypeI32, Mutable: true},
			Init: i32Const(0),
		}},
		StartSection: startAt(1),
		CodeSection: []*wasm.Code{{Body: []byte{
			wasm.OpcodeI32Const, 0x15,
			wasm.OpcodeCall, 0x00,
			wasm.OpcodeGlobalSet, 0x00,
			wasm.OpcodeEnd,
		}}},
	}
}

// Adder exports add (i32, i32) -> (i32) and has no start section.
func Adder() *wasm.Module {
	return &wasm.Module{
		TypeSection:     []*wasm.FunctionType{i32x2ToI32},
		FunctionSection: []wasm.Index{0},
		ExportSection:   []*wasm.Export{{Type: wasm.ExternTypeFunc, Name: "add", Index: 0}},
		CodeSection: []*wasm.Code{{Body: []byte{
			wasm.OpcodeLocalGet, 0x00,
			wasm.OpcodeLocalGet, 0x01,
			wasm.OpcodeI32Add,
			wasm.OpcodeEnd,
		}}},
	}
}

// Trap has a start function that executes unreachable.
func Trap() *wasm.Module {
	return &wasm.Module{
		TypeSection:     []*wasm.FunctionType{voidType},
		FunctionSection: []wasm.Index{0},
		StartSection:    startAt(0),
		CodeSection:     []*wasm.Code{{Body: []byte{wasm.OpcodeUnreachable, wasm.OpcodeEnd}}},
	}
}

// Echo has a mutable i32 global initialized to 0, one page of memory and a
// start function that copies the global into memory offset 16 and the byte
// at offset 0 into the global.
func Echo() *wasm.Module {
	return &wasm.Module{
		TypeSection:     []*wasm.FunctionType{voidType},
		FunctionSection: []wasm.Index{0},
		MemorySection:   &wasm.Memory{Min: 1},
		GlobalSection: []*wasm.Global{{
			Type: &wasm.GlobalType{ValType: wasm.ValueTypeI32, Mutable: true},
			Init: i32Const(0),
		}},
		StartSection: startAt(0),
		CodeSection: []*wasm.Code{{Body: []byte{
			wasm.OpcodeI32Const, 0x10,
			wasm.OpcodeGlobalGet, 0x00,
			wasm.OpcodeI32Store, 0x02, 0x00,
			wasm.OpcodeI32Const, 0x00,
			wasm.OpcodeI32Load8U, 0x00, 0x00,
			wasm.OpcodeGlobalSet, 0x00,
			wasm.OpcodeEnd,
		}}},
	}
}

// Nop has three mutable i32 globals initialized to 0, one page of memory and
// a start function that does nothing.
func Nop() *wasm.Module {
	globals := make([]*wasm.Global, 3)
	for i := range globals {
		globals[i] = &wasm.Global{
			Type: &wasm.GlobalType{ValType: wasm.ValueTypeI32, Mutable: true},
			Init: i32Const(0),
		}
	}
	return &wasm.Module{
		TypeSection:     []*wasm.FunctionType{voidType},
		FunctionSection: []wasm.Index{0},
		MemorySection:   &wasm.Memory{Min: 1},
		GlobalSection:   globals,
		StartSection:    startAt(0),
		CodeSection:     []*wasm.Code{{Body: []byte{wasm.OpcodeEnd}}},
	}
}

// Wiper has one page of memory with "Hi" at offset 0x20 and a start function
// that stores an i16 zero over it.
func Wiper() *wasm.Module {
	return &wasm.Module{
		TypeSection:     []*wasm.FunctionType{voidType},
		FunctionSection: []wasm.Index{0},
		MemorySection:   &wasm.Memory{Min: 1},
		StartSection:    startAt(0),
		CodeSection: []*wasm.Code{{Body: []byte{
			wasm.OpcodeI32Const, 0x20,
			wasm.OpcodeI32Const, 0x00,
			wasm.OpcodeI32Store16, 0x01, 0x00,
			wasm.OpcodeEnd,
		}}},
		DataSection: []*wasm.DataSegment{{
			OffsetExpression: i32Const(0x20),
			Init:             []byte("Hi"),
		}},
	}
}

// RefGlobal has an immutable funcref global initialized to ref.null, a
// mutable i32 global initialized to 0, and a start function that sets the
// i32 global to 5.
func RefGlobal() *wasm.Module {
	return &wasm.Module{
		TypeSection:     []*wasm.FunctionType{voidType},
		FunctionSection: []wasm.Index{0},
		GlobalSection: []*wasm.Global{
			{
				Type: &wasm.GlobalType{ValType: funcref},
				Init: &wasm.ConstantExpression{Opcode: opRefNull, Data: []byte{funcref}},
			},
			{
				Type: &wasm.GlobalType{ValType: wasm.ValueTypeI32, Mutable: true},
				Init: i32Const(0),
			},
		},
		StartSection: startAt(0),
		CodeSection: []*wasm.Code{{Body: []byte{
			wasm.OpcodeI32Const, 0x05,
			wasm.OpcodeGlobalSet, 0x01,
			wasm.OpcodeEnd,
		}}},
	}
}

// Spin has a start function that loops forever.
func Spin() *wasm.Module {
	return &wasm.Module{
		TypeSection:     []*wasm.FunctionType{voidType},
		FunctionSection: []wasm.Index{0},
		StartSection:    startAt(0),
		CodeSection: []*wasm.Code{{Body: []byte{
			wasm.OpcodeLoop, 0x40,
			wasm.OpcodeBr, 0x00,
			wasm.OpcodeEnd,
			wasm.OpcodeEnd,
		}}},
	}
}

// Bytes encodes m in the binary format.
func Bytes(m *wasm.Module) []byte {
	return binary.EncodeModule(m)
}

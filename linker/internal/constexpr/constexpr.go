// Package constexpr evaluates the constant expressions used for global
// initializers and segment offsets.
package constexpr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tetratelabs/wabin/leb128"
)

// Opcodes allowed in a constant expression.
const (
	OpGlobalGet byte = 0x23
	OpI32Const  byte = 0x41
	OpI64Const  byte = 0x42
	OpF32Const  byte = 0x43
	OpF64Const  byte = 0x44
	OpRefNull   byte = 0xD0
	OpRefFunc   byte = 0xD2
)

// GlobalReader resolves global.get operands against already initialized globals.
type GlobalReader func(idx uint32) (uint64, bool)

// Eval returns the raw 64-bit encoding of the expression's result.
// Immediates are read as they appear in the binary format, without the
// trailing end opcode.
func Eval(opcode byte, data []byte, globals GlobalReader) (uint64, error) {
	r := bytes.NewReader(data)
	switch opcode {
	case OpI32Const:
		v, _, err := leb128.DecodeInt32(r)
		if err != nil {
			return 0, fmt.Errorf("i32.const: %w", err)
		}
		return uint64(uint32(v)), nil
	case OpI64Const:
		v, _, err := leb128.DecodeInt64(r)
		if err != nil {
			return 0, fmt.Errorf("i64.const: %w", err)
		}
		return uint64(v), nil
	case OpF32Const:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, fmt.Errorf("f32.const: %w", err)
		}
		return uint64(binary.LittleEndian.Uint32(buf[:])), nil
	case OpF64Const:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, fmt.Errorf("f64.const: %w", err)
		}
		return binary.LittleEndian.Uint64(buf[:]), nil
	case OpGlobalGet:
		idx, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return 0, fmt.Errorf("global.get: %w", err)
		}
		if globals == nil {
			return 0, fmt.Errorf("global.get %d: no globals available", idx)
		}
		v, ok := globals(idx)
		if !ok {
			return 0, fmt.Errorf("global.get %d: unknown global", idx)
		}
		return v, nil
	case OpRefNull, OpRefFunc:
		// References are resolved by the interpreter; the store keeps a null slot.
		return 0, nil
	}
	return 0, fmt.Errorf("unsupported constant expression opcode 0x%02x", opcode)
}

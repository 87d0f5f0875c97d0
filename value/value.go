// Package value defines the tagged numeric Value exchanged between the
// executor, the operand stack and native functions.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tetratelabs/wazero/api"
)

// Kind is one of the four numeric value types.
// Its byte encoding matches the WebAssembly binary format.
type Kind byte

const (
	KindI32 = Kind(api.ValueTypeI32)
	KindI64 = Kind(api.ValueTypeI64)
	KindF32 = Kind(api.ValueTypeF32)
	KindF64 = Kind(api.ValueTypeF64)
)

// Reference kinds occur only as global types. Their payload is opaque.
const (
	KindFuncRef   Kind = 0x70
	KindExternRef Kind = 0x6f
)

// GlobalKindOf converts a global's binary value type to a Kind. It accepts
// the numeric kinds and the two reference kinds.
func GlobalKindOf(t byte) (Kind, bool) {
	switch k := Kind(t); k {
	case KindFuncRef, KindExternRef:
		return k, true
	}
	return KindOf(t)
}

// IsRef reports whether k is a reference kind.
func (k Kind) IsRef() bool {
	return k == KindFuncRef || k == KindExternRef
}

// KindOf converts a binary value type to a Kind.
// Reference and vector types are not numeric kinds and report false.
func KindOf(t byte) (Kind, bool) {
	switch k := Kind(t); k {
	case KindI32, KindI64, KindF32, KindF64:
		return k, true
	}
	return 0, false
}

// ValueType returns the wazero value type for k.
func (k Kind) ValueType() api.ValueType {
	return api.ValueType(k)
}

func (k Kind) String() string {
	switch k {
	case KindI32, KindI64, KindF32, KindF64:
		return api.ValueTypeName(api.ValueType(k))
	case KindFuncRef:
		return "funcref"
	case KindExternRef:
		return "externref"
	}
	return "invalid"
}

// Value is a numeric value tagged with its kind. The payload is kept as the
// raw 64-bit encoding wazero uses on its value stack.
type Value struct {
	bits uint64
	kind Kind
}

func I32(v int32) Value   { return Value{kind: KindI32, bits: api.EncodeI32(v)} }
func I64(v int64) Value   { return Value{kind: KindI64, bits: api.EncodeI64(v)} }
func F32(v float32) Value { return Value{kind: KindF32, bits: api.EncodeF32(v)} }
func F64(v float64) Value { return Value{kind: KindF64, bits: api.EncodeF64(v)} }

// FromBits builds a Value from its raw stack encoding.
func FromBits(kind Kind, bits uint64) Value {
	if kind == KindI32 || kind == KindF32 {
		bits &= math.MaxUint32
	}
	return Value{kind: kind, bits: bits}
}

// Kind returns the value's kind. The zero Value has an invalid kind.
func (v Value) Kind() Kind { return v.kind }

// Bits returns the raw stack encoding.
func (v Value) Bits() uint64 { return v.bits }

// IsValid reports whether v carries one of the four numeric kinds.
func (v Value) IsValid() bool {
	_, ok := KindOf(byte(v.kind))
	return ok
}

func (v Value) I32() int32   { return api.DecodeI32(v.bits) }
func (v Value) I64() int64   { return int64(v.bits) }
func (v Value) F32() float32 { return api.DecodeF32(v.bits) }
func (v Value) F64() float64 { return api.DecodeF64(v.bits) }

func (v Value) String() string {
	switch v.kind {
	case KindI32:
		return "i32:" + strconv.FormatInt(int64(v.I32()), 10)
	case KindI64:
		return "i64:" + strconv.FormatInt(v.I64(), 10)
	case KindF32:
		return "f32:" + strconv.FormatFloat(float64(v.F32()), 'g', -1, 32)
	case KindF64:
		return "f64:" + strconv.FormatFloat(v.F64(), 'g', -1, 64)
	case KindFuncRef, KindExternRef:
		return v.kind.String() + ":0x" + strconv.FormatUint(v.bits, 16)
	}
	return "invalid"
}

// Parse reads a value written as "<kind>:<literal>", e.g. "i32:42",
// "i64:0x10" or "f64:1.5". This is the format String produces.
func Parse(s string) (Value, error) {
	kindStr, lit, ok := strings.Cut(s, ":")
	if !ok {
		return Value{}, fmt.Errorf("value %q: missing kind prefix", s)
	}
	switch kindStr {
	case "i32":
		n, err := strconv.ParseInt(lit, 0, 32)
		if err != nil {
			// Accept the unsigned spelling of negative numbers (e.g. 0xffffffff).
			u, uerr := strconv.ParseUint(lit, 0, 32)
			if uerr != nil {
				return Value{}, fmt.Errorf("value %q: %w", s, err)
			}
			n = int64(int32(uint32(u)))
		}
		return I32(int32(n)), nil
	case "i64":
		n, err := strconv.ParseInt(lit, 0, 64)
		if err != nil {
			u, uerr := strconv.ParseUint(lit, 0, 64)
			if uerr != nil {
				return Value{}, fmt.Errorf("value %q: %w", s, err)
			}
			n = int64(u)
		}
		return I64(n), nil
	case "f32":
		f, err := strconv.ParseFloat(lit, 32)
		if err != nil {
			return Value{}, fmt.Errorf("value %q: %w", s, err)
		}
		return F32(float32(f)), nil
	case "f64":
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return Value{}, fmt.Errorf("value %q: %w", s, err)
		}
		return F64(f), nil
	}
	return Value{}, fmt.Errorf("value %q: unknown kind %q", s, kindStr)
}

package constexpr

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/tetratelabs/wabin/leb128"
)

func TestEval(t *testing.T) {
	f32 := make([]byte, 4)
	binary.LittleEndian.PutUint32(f32, math.Float32bits(1.5))
	f64 := make([]byte, 8)
	binary.LittleEndian.PutUint64(f64, math.Float64bits(-2.5))

	globals := func(idx uint32) (uint64, bool) {
		if idx == 1 {
			return 77, true
		}
		return 0, false
	}

	tests := []struct {
		name   string
		data   []byte
		want   uint64
		opcode byte
	}{
		{"i32 positive", []byte{0x2a}, 42, OpI32Const},
		{"i32 negative", []byte{0x7f}, 0xffffffff, OpI32Const},
		{"i32 multi-byte", []byte{0xe5, 0x8e, 0x26}, 624485, OpI32Const},
		{"i64 negative", []byte{0x7e}, math.MaxUint64 - 1, OpI64Const},
		{"f32", f32, uint64(math.Float32bits(1.5)), OpF32Const},
		{"f64", f64, math.Float64bits(-2.5), OpF64Const},
		{"global.get", []byte{0x01}, 77, OpGlobalGet},
		{"ref.null", []byte{0x70}, 0, OpRefNull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(tt.opcode, tt.data, globals)
			if err != nil {
				t.Fatalf("Eval failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Eval = %#x, want %#x", got, tt.want)
			}
		})
	}
}

func TestEval_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		globals GlobalReader
		opcode  byte
	}{
		{"truncated i32", []byte{0x80}, nil, OpI32Const},
		{"truncated f64", []byte{0x00, 0x00}, nil, OpF64Const},
		{"unknown global", []byte{0x05}, func(uint32) (uint64, bool) { return 0, false }, OpGlobalGet},
		{"no globals", []byte{0x00}, nil, OpGlobalGet},
		{"bad opcode", nil, nil, 0x6a},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Eval(tt.opcode, tt.data, tt.globals); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEval_EncodedI32(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 63, 64, -64, -65, 624485, math.MaxInt32, math.MinInt32} {
		got, err := Eval(OpI32Const, leb128.EncodeInt32(v), nil)
		if err != nil {
			t.Fatalf("Eval(%d) failed: %v", v, err)
		}
		if got != uint64(uint32(v)) {
			t.Errorf("Eval(%d) = %#x", v, got)
		}
	}
}

func TestEval_OverlongGlobalIndex(t *testing.T) {
	_, err := Eval(OpGlobalGet, []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}, func(uint32) (uint64, bool) { return 0, true })
	if err == nil {
		t.Error("expected overflow error")
	}
}

package engine

import (
	"strconv"

	"github.com/tetratelabs/wabin/binary"
	"github.com/tetratelabs/wabin/wasm"
)

// Synthetic export names added to the guest module so the store can be
// synchronized with the wazero instance.
const (
	entryExport        = "__executor_entry"
	memoryExport       = "__executor_memory"
	globalExportPrefix = "__executor_global_"
)

func globalExport(idx int) string {
	return globalExportPrefix + strconv.Itoa(idx)
}

// rewriteModule returns the binary of a copy of raw prepared for a run:
//   - the start section is dropped, entry is exported instead
//   - every numeric global is mutable, zero initialized and exported
//   - reference globals are exported unchanged
//   - the memory is exported
//   - active data segments become passive; the store already holds their bytes
//
// raw itself is not modified.
func rewriteModule(raw *wasm.Module, entry uint32) []byte {
	m := *raw
	m.StartSection = nil

	m.GlobalSection = make([]*wasm.Global, len(raw.GlobalSection))
	for i, g := range raw.GlobalSection {
		init, ok := zeroConst(g.Type.ValType)
		if !ok {
			m.GlobalSection[i] = g
			continue
		}
		m.GlobalSection[i] = &wasm.Global{
			Type: &wasm.GlobalType{ValType: g.Type.ValType, Mutable: true},
			Init: init,
		}
	}

	m.DataSection = make([]*wasm.DataSegment, len(raw.DataSection))
	for i, d := range raw.DataSection {
		m.DataSection[i] = &wasm.DataSegment{Init: d.Init}
	}

	exports := make([]*wasm.Export, 0, len(raw.ExportSection)+len(raw.GlobalSection)+2)
	exports = append(exports, raw.ExportSection...)
	exports = append(exports, &wasm.Export{Type: wasm.ExternTypeFunc, Name: entryExport, Index: entry})
	if m.MemorySection != nil {
		exports = append(exports, &wasm.Export{Type: wasm.ExternTypeMemory, Name: memoryExport, Index: 0})
	}
	for i := range raw.GlobalSection {
		exports = append(exports, &wasm.Export{Type: wasm.ExternTypeGlobal, Name: globalExport(i), Index: uint32(i)})
	}
	m.ExportSection = exports

	return binary.EncodeModule(&m)
}

func zeroConst(t wasm.ValueType) (*wasm.ConstantExpression, bool) {
	switch t {
	case wasm.ValueTypeI32:
		return &wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: []byte{0x00}}, true
	case wasm.ValueTypeI64:
		return &wasm.ConstantExpression{Opcode: wasm.OpcodeI64Const, Data: []byte{0x00}}, true
	case wasm.ValueTypeF32:
		return &wasm.ConstantExpression{Opcode: wasm.OpcodeF32Const, Data: make([]byte, 4)}, true
	case wasm.ValueTypeF64:
		return &wasm.ConstantExpression{Opcode: wasm.OpcodeF64Const, Data: make([]byte, 8)}, true
	}
	return nil, false
}

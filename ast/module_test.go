package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wabin/wasm"

	"github.com/wippyai/wasm-executor/errors"
	"github.com/wippyai/wasm-executor/internal/testmod"
)

func TestDecode(t *testing.T) {
	m, err := Decode(testmod.Bytes(testmod.Counter()))
	require.NoError(t, err)
	assert.False(t, m.Empty())
	assert.Len(t, m.Raw().GlobalSection, 1)
	assert.NotNil(t, m.Raw().StartSection)

	again, err := Decode(m.Encode())
	require.NoError(t, err)
	assert.Equal(t, len(m.Raw().ExportSection), len(again.Raw().ExportSection))
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode(nil)
	assert.Equal(t, errors.CodeInvalidInput, errors.CodeOf(err))

	_, err = Decode([]byte("not wasm"))
	assert.Equal(t, errors.CodeDecodeFailed, errors.CodeOf(err))
}

func TestTake(t *testing.T) {
	m := New(testmod.Adder()).WithName("adder")
	raw := m.Raw()

	taken := m.Take()
	require.NotNil(t, taken)
	assert.True(t, m.Empty())
	assert.Nil(t, m.Raw())
	assert.Empty(t, m.Name())
	assert.Same(t, raw, taken.Raw())
	assert.Equal(t, "adder", taken.Name())

	assert.Nil(t, m.Take(), "taking from an empty holder yields nothing")

	var nilMod *Module
	assert.True(t, nilMod.Empty())
	assert.Nil(t, nilMod.Raw())
	assert.Nil(t, nilMod.Encode())
}

func TestFuncType(t *testing.T) {
	m := New(testmod.Doubler())

	imported := m.FuncType(0)
	require.NotNil(t, imported)
	assert.Equal(t, []wasm.ValueType{wasm.ValueTypeI32}, imported.Params)

	defined := m.FuncType(1)
	require.NotNil(t, defined)
	assert.Empty(t, defined.Params)

	assert.Nil(t, m.FuncType(2))
	assert.Equal(t, 1, m.NumImported(wasm.ExternTypeFunc))
	assert.Zero(t, m.NumImported(wasm.ExternTypeGlobal))
}

func TestExportName(t *testing.T) {
	m := New(testmod.Counter())

	name, ok := m.ExportName(wasm.ExternTypeFunc, 0)
	require.True(t, ok)
	assert.Equal(t, "tick", name)

	_, ok = m.ExportName(wasm.ExternTypeGlobal, 0)
	assert.False(t, ok)
}

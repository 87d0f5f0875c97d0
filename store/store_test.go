package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-executor/errors"
	"github.com/wippyai/wasm-executor/value"
)

func TestStore_InsertAndLookup(t *testing.T) {
	s := New(Limits{})

	fa, err := s.InsertFunction(&FunctionInstance{FuncName: "f"})
	require.NoError(t, err)
	ga, err := s.InsertGlobal(&GlobalInstance{Type: value.KindI32})
	require.NoError(t, err)
	ma, err := s.InsertMemory(NewMemory(1, nil))
	require.NoError(t, err)
	ta, err := s.InsertTable(NewTable(0x70, 2, nil))
	require.NoError(t, err)

	assert.Equal(t, uint32(0), fa)
	assert.Equal(t, uint32(0), ga)
	assert.Equal(t, uint32(0), ma)
	assert.Equal(t, uint32(0), ta)

	f, err := s.Function(fa)
	require.NoError(t, err)
	assert.Equal(t, "f", f.FuncName)

	tbl, err := s.Table(ta)
	require.NoError(t, err)
	assert.Len(t, tbl.Elements, 2)
}

func TestStore_NotFound(t *testing.T) {
	s := New(Limits{})
	lookups := map[string]func() error{
		"function": func() error { _, err := s.Function(0); return err },
		"global":   func() error { _, err := s.Global(3); return err },
		"memory":   func() error { _, err := s.Memory(1); return err },
		"table":    func() error { _, err := s.Table(0); return err },
	}
	for name, lookup := range lookups {
		t.Run(name, func(t *testing.T) {
			err := lookup()
			assert.Equal(t, errors.CodeWrongInstanceAddress, errors.CodeOf(err))
		})
	}
}

func TestStore_Limits(t *testing.T) {
	s := New(Limits{Functions: 1, Globals: 1, Memories: 1, Tables: 1})

	_, err := s.InsertFunction(&FunctionInstance{})
	require.NoError(t, err)
	_, err = s.InsertFunction(&FunctionInstance{})
	assert.Equal(t, errors.CodeInsertionFailed, errors.CodeOf(err))
	assert.Equal(t, 1, s.NumFunctions())

	_, _ = s.InsertGlobal(&GlobalInstance{})
	_, err = s.InsertGlobal(&GlobalInstance{})
	assert.Equal(t, errors.CodeInsertionFailed, errors.CodeOf(err))

	_, _ = s.InsertMemory(NewMemory(0, nil))
	_, err = s.InsertMemory(NewMemory(0, nil))
	assert.Equal(t, errors.CodeInsertionFailed, errors.CodeOf(err))

	_, _ = s.InsertTable(NewTable(0x70, 0, nil))
	_, err = s.InsertTable(NewTable(0x70, 0, nil))
	assert.Equal(t, errors.CodeInsertionFailed, errors.CodeOf(err))
}

func TestStore_NilInsertRejected(t *testing.T) {
	s := New(Limits{})
	_, err := s.InsertFunction(nil)
	assert.Error(t, err)
	_, err = s.InsertGlobal(nil)
	assert.Error(t, err)
	_, err = s.InsertMemory(nil)
	assert.Error(t, err)
	_, err = s.InsertTable(nil)
	assert.Error(t, err)
	assert.Zero(t, s.NumFunctions()+s.NumGlobals()+s.NumMemories()+s.NumTables())
}

func TestStore_FindNative(t *testing.T) {
	s := New(Limits{})
	_, _ = s.InsertFunction(&FunctionInstance{ModuleName: "env", FuncName: "log"})
	addr, _ := s.InsertFunction(NewNativeFunction("env", "log", value.FuncType{}))

	got, ok := s.FindNative("env", "log")
	require.True(t, ok)
	assert.Equal(t, addr, got, "interpreted functions with the same names must be skipped")

	_, ok = s.FindNative("env", "other")
	assert.False(t, ok)
}

func TestStore_Reset(t *testing.T) {
	s := New(Limits{})
	_, _ = s.InsertFunction(&FunctionInstance{})
	_, _ = s.InsertGlobal(&GlobalInstance{})
	_, _ = s.InsertMemory(NewMemory(1, nil))
	_, _ = s.InsertTable(NewTable(0x70, 0, nil))
	s.InsertModule(NewModuleInstance("m"))

	s.Reset()
	assert.Zero(t, s.NumFunctions())
	assert.Zero(t, s.NumGlobals())
	assert.Zero(t, s.NumMemories())
	assert.Zero(t, s.NumTables())
	assert.Zero(t, s.NumModules())

	_, err := s.Global(0)
	assert.Error(t, err)
}

func TestGlobalInstance(t *testing.T) {
	g := &GlobalInstance{Type: value.KindI32, Mutable: true}
	g.SetRaw(42)
	assert.Equal(t, value.I32(42), g.Get())

	// Raw writes are not validated against the declared kind.
	g.SetRaw(0xFFFF_FFFF_FFFF_FFFF)
	assert.Equal(t, uint64(0xFFFF_FFFF_FFFF_FFFF), g.Value)
	assert.Equal(t, int32(-1), g.Get().I32())
}

func TestMemoryInstance_SetBytes(t *testing.T) {
	m := NewMemory(1, nil)
	require.Equal(t, uint32(PageSize), m.Size())

	require.NoError(t, m.SetBytes([]byte("Hello"), 0, 0, 5))
	assert.Equal(t, []byte("Hello"), m.Bytes()[:5])
	assert.Equal(t, byte(0), m.Bytes()[5])

	require.NoError(t, m.SetBytes([]byte("xyz"), 10, 1, 2))
	assert.Equal(t, []byte("yz"), m.Bytes()[10:12])

	err := m.SetBytes([]byte("ab"), PageSize-1, 0, 2)
	assert.Equal(t, errors.CodeMemoryOutOfBounds, errors.CodeOf(err))

	err = m.SetBytes([]byte("ab"), 0, 1, 2)
	assert.Equal(t, errors.CodeMemoryOutOfBounds, errors.CodeOf(err))
}

func TestMemoryInstance_EmptyMemoryRejectsWrites(t *testing.T) {
	m := NewMemory(0, nil)
	err := m.SetBytes([]byte{1}, 0, 0, 1)
	assert.Equal(t, errors.CodeMemoryOutOfBounds, errors.CodeOf(err))
	require.NoError(t, m.SetBytes(nil, 0, 0, 0))
}

func TestMemoryInstance_ReadWrite(t *testing.T) {
	m := NewMemory(1, nil)
	require.NoError(t, m.WriteU32(8, 0xdeadbeef))
	v, err := m.ReadU32(8)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), v)

	require.NoError(t, m.WriteU64(16, 1<<40))
	v64, err := m.ReadU64(16)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), v64)

	b, err := m.Read(8, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xef}, b)

	_, err = m.Read(PageSize-2, 4)
	assert.Error(t, err)
}

func TestMemoryInstance_Load(t *testing.T) {
	m := NewMemory(1, nil)
	m.Bytes()[0] = 0xaa

	grown := make([]byte, 2*PageSize)
	grown[PageSize] = 0x11
	m.Load(grown)
	assert.Equal(t, uint32(2), m.Pages())
	assert.Equal(t, byte(0), m.Bytes()[0])
	assert.Equal(t, byte(0x11), m.Bytes()[PageSize])

	grown[PageSize] = 0x22
	assert.Equal(t, byte(0x11), m.Bytes()[PageSize], "Load must copy")
}

func TestModuleInstance(t *testing.T) {
	mi := NewModuleInstance("m")
	_, ok := mi.StartAddr()
	assert.False(t, ok)

	mi.SetStartAddr(4)
	addr, ok := mi.StartAddr()
	require.True(t, ok)
	assert.Equal(t, uint32(4), addr)

	mi.Exports["run"] = Export{Kind: ExternFunc, Addr: 2}
	mi.Exports["mem"] = Export{Kind: ExternMemory, Addr: 0}
	a, ok := mi.ExportedFunc("run")
	require.True(t, ok)
	assert.Equal(t, uint32(2), a)
	_, ok = mi.ExportedFunc("mem")
	assert.False(t, ok)

	var nilInst *ModuleInstance
	_, ok = nilInst.StartAddr()
	assert.False(t, ok)
}

// Package store owns every instantiated entity (functions, globals, memories,
// tables and module instances), addressed by numeric index.
//
// The store is not safe for concurrent use; the executor serializes access.
package store

import (
	"github.com/wippyai/wasm-executor/errors"
)

// Limits bounds the number of entities of each type. Zero means unbounded.
type Limits struct {
	Functions int
	Globals   int
	Memories  int
	Tables    int
}

// Store holds entity instances.
type Store struct {
	functions []*FunctionInstance
	globals   []*GlobalInstance
	memories  []*MemoryInstance
	tables    []*TableInstance
	modules   []*ModuleInstance
	limits    Limits
}

// New creates an empty store.
func New(limits Limits) *Store {
	return &Store{limits: limits}
}

// Limits returns the configured limits.
func (s *Store) Limits() Limits {
	return s.limits
}

// InsertFunction appends f and returns its address.
func (s *Store) InsertFunction(f *FunctionInstance) (uint32, error) {
	if f == nil {
		return 0, errors.InvalidInput(errors.PhaseStore, "nil function instance")
	}
	if s.limits.Functions > 0 && len(s.functions) >= s.limits.Functions {
		return 0, errors.Capacity(errors.PhaseStore, "function", s.limits.Functions)
	}
	s.functions = append(s.functions, f)
	return uint32(len(s.functions) - 1), nil
}

// Function returns the function at addr.
func (s *Store) Function(addr uint32) (*FunctionInstance, error) {
	if int(addr) >= len(s.functions) {
		return nil, errors.NotFound(errors.PhaseStore, "function", addr)
	}
	return s.functions[addr], nil
}

// FindNative returns the address of the native function registered under
// (moduleName, funcName).
func (s *Store) FindNative(moduleName, funcName string) (uint32, bool) {
	for i, f := range s.functions {
		if f.IsNative() && f.ModuleName == moduleName && f.FuncName == funcName {
			return uint32(i), true
		}
	}
	return 0, false
}

// InsertGlobal appends g and returns its address.
func (s *Store) InsertGlobal(g *GlobalInstance) (uint32, error) {
	if g == nil {
		return 0, errors.InvalidInput(errors.PhaseStore, "nil global instance")
	}
	if s.limits.Globals > 0 && len(s.globals) >= s.limits.Globals {
		return 0, errors.Capacity(errors.PhaseStore, "global", s.limits.Globals)
	}
	s.globals = append(s.globals, g)
	return uint32(len(s.globals) - 1), nil
}

// Global returns the global at addr.
func (s *Store) Global(addr uint32) (*GlobalInstance, error) {
	if int(addr) >= len(s.globals) {
		return nil, errors.NotFound(errors.PhaseStore, "global", addr)
	}
	return s.globals[addr], nil
}

// InsertMemory appends m and returns its address.
func (s *Store) InsertMemory(m *MemoryInstance) (uint32, error) {
	if m == nil {
		return 0, errors.InvalidInput(errors.PhaseStore, "nil memory instance")
	}
	if s.limits.Memories > 0 && len(s.memories) >= s.limits.Memories {
		return 0, errors.Capacity(errors.PhaseStore, "memory", s.limits.Memories)
	}
	s.memories = append(s.memories, m)
	return uint32(len(s.memories) - 1), nil
}

// Memory returns the memory at addr.
func (s *Store) Memory(addr uint32) (*MemoryInstance, error) {
	if int(addr) >= len(s.memories) {
		return nil, errors.NotFound(errors.PhaseStore, "memory", addr)
	}
	return s.memories[addr], nil
}

// InsertTable appends t and returns its address.
func (s *Store) InsertTable(t *TableInstance) (uint32, error) {
	if t == nil {
		return 0, errors.InvalidInput(errors.PhaseStore, "nil table instance")
	}
	if s.limits.Tables > 0 && len(s.tables) >= s.limits.Tables {
		return 0, errors.Capacity(errors.PhaseStore, "table", s.limits.Tables)
	}
	s.tables = append(s.tables, t)
	return uint32(len(s.tables) - 1), nil
}

// Table returns the table at addr.
func (s *Store) Table(addr uint32) (*TableInstance, error) {
	if int(addr) >= len(s.tables) {
		return nil, errors.NotFound(errors.PhaseStore, "table", addr)
	}
	return s.tables[addr], nil
}

// InsertModule records a module instance. The store owns it from now on.
func (s *Store) InsertModule(mi *ModuleInstance) uint32 {
	s.modules = append(s.modules, mi)
	return uint32(len(s.modules) - 1)
}

// Modules returns the module instances in insertion order.
func (s *Store) Modules() []*ModuleInstance {
	return s.modules
}

func (s *Store) NumFunctions() int { return len(s.functions) }
func (s *Store) NumGlobals() int   { return len(s.globals) }
func (s *Store) NumMemories() int  { return len(s.memories) }
func (s *Store) NumTables() int    { return len(s.tables) }
func (s *Store) NumModules() int   { return len(s.modules) }

// Reset drops every entity. Addresses and module instances obtained earlier
// must not be used afterwards.
func (s *Store) Reset() {
	clear(s.functions)
	clear(s.globals)
	clear(s.memories)
	clear(s.tables)
	clear(s.modules)
	s.functions = s.functions[:0]
	s.globals = s.globals[:0]
	s.memories = s.memories[:0]
	s.tables = s.tables[:0]
	s.modules = s.modules[:0]
}

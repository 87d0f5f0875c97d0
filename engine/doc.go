// Package engine runs start functions on behalf of the executor.
//
// Interpreter is the contract the executor drives. WazeroInterpreter is the
// bundled implementation: it re-encodes the instantiated module, runs it on
// wazero's interpreter and keeps the entity store authoritative by copying
// globals and memory into the wazero instance before the call and back out
// afterwards.
//
// Native functions imported by the module are served from the host registry
// through wazero host modules. A native function may receive a nil Memory
// when the calling module defines none.
package engine

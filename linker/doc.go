// Package linker instantiates a parsed module into an entity store.
//
// Instantiation walks the module's sections in index-space order:
//
//  1. Function imports are resolved against native functions already in the
//     store, matched by (module, name) and checked against the import's type
//  2. Defined functions, globals, memories and tables are allocated
//  3. Active element and data segments are applied
//  4. Exports and the start function address are recorded
//
// Only function imports can be satisfied. Unresolved imports of any kind are
// reported together in a single errors.MissingImportsError.
//
// Instantiation is not transactional: entities allocated before a failure
// stay in the store until the store is reset.
//
// # Example
//
//	l := linker.New(linker.Config{MemoryLimitPages: 256})
//	inst, err := l.Instantiate(ctx, st, mod)
//	if err != nil {
//		return err
//	}
//	addr, ok := inst.StartAddr()
package linker

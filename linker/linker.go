package linker

import (
	"context"

	"github.com/tetratelabs/wabin/wasm"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-executor/ast"
	"github.com/wippyai/wasm-executor/errors"
	"github.com/wippyai/wasm-executor/linker/internal/constexpr"
	"github.com/wippyai/wasm-executor/store"
	"github.com/wippyai/wasm-executor/value"
)

// Config configures instantiation.
type Config struct {
	// StartFunc names an exported function used as the start function when
	// the module has no start section. Empty disables the fallback.
	StartFunc string

	// MemoryLimitPages caps memory size in pages (64KB each).
	// 0 means no cap beyond the 65536 page address space.
	MemoryLimitPages uint32
}

// Linker instantiates modules into a store.
type Linker struct {
	config Config
}

// New creates a Linker.
func New(cfg Config) *Linker {
	return &Linker{config: cfg}
}

// Instantiate links mod into st and returns the module instance, which the
// store owns from then on.
func (l *Linker) Instantiate(ctx context.Context, st *store.Store, mod *ast.Module) (*store.ModuleInstance, error) {
	if mod.Empty() {
		return nil, errors.InvalidInput(errors.PhaseInstantiate, "no module to instantiate")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Instantiation(err)
	}
	raw := mod.Raw()
	inst := store.NewModuleInstance(mod.Name())

	if err := l.resolveImports(st, raw, inst); err != nil {
		return nil, err
	}
	if err := l.allocFunctions(st, mod, inst); err != nil {
		return nil, err
	}
	if err := l.allocGlobals(st, raw, inst); err != nil {
		return nil, err
	}
	if err := l.allocMemory(st, raw, inst); err != nil {
		return nil, err
	}
	if err := l.allocTables(st, raw, inst); err != nil {
		return nil, err
	}
	if err := l.applyElements(st, raw, inst); err != nil {
		return nil, err
	}
	if err := l.applyData(st, raw, inst); err != nil {
		return nil, err
	}
	l.recordExports(raw, inst)
	if err := l.recordStart(raw, inst); err != nil {
		return nil, err
	}

	st.InsertModule(inst)
	Logger().Debug("module instantiated",
		zap.String("module", inst.Name),
		zap.Int("functions", len(inst.FuncAddrs)),
		zap.Int("globals", len(inst.GlobalAddrs)),
		zap.Int("memories", len(inst.MemAddrs)),
		zap.Int("tables", len(inst.TableAddrs)))
	return inst, nil
}

func (l *Linker) resolveImports(st *store.Store, raw *wasm.Module, inst *store.ModuleInstance) error {
	var missing []errors.MissingImport
	for i, imp := range raw.ImportSection {
		if imp.Type != wasm.ExternTypeFunc {
			missing = append(missing, errors.MissingImport{
				Module: imp.Module,
				Name:   imp.Name,
				Kind:   wasm.ExternTypeName(imp.Type),
			})
			continue
		}
		addr, ok := st.FindNative(imp.Module, imp.Name)
		if !ok {
			missing = append(missing, errors.MissingImport{Module: imp.Module, Name: imp.Name, Kind: "func"})
			continue
		}
		if int(imp.DescFunc) >= len(raw.TypeSection) {
			return instError("import", i, errors.KindInvalidInput, nil, "type index %d out of range", imp.DescFunc)
		}
		want, err := funcType(raw.TypeSection[imp.DescFunc])
		if err != nil {
			return instError("import", i, errors.KindUnsupported, err, "%s.%s", imp.Module, imp.Name)
		}
		fn, err := st.Function(addr)
		if err != nil {
			return err
		}
		if !fn.Type.Equal(want) {
			return errors.TypeMismatch(errors.PhaseInstantiate, []string{imp.Module, imp.Name}, want.String(), fn.Type.String())
		}
		inst.FuncAddrs = append(inst.FuncAddrs, addr)
	}
	if len(missing) > 0 {
		return errors.NewMissingImportsError(missing)
	}
	return nil
}

func (l *Linker) allocFunctions(st *store.Store, mod *ast.Module, inst *store.ModuleInstance) error {
	raw := mod.Raw()
	if len(raw.FunctionSection) != len(raw.CodeSection) {
		return instError("function", -1, errors.KindInvalidInput, nil,
			"%d functions declared but %d bodies", len(raw.FunctionSection), len(raw.CodeSection))
	}
	imported := uint32(len(inst.FuncAddrs))
	for i, typeIdx := range raw.FunctionSection {
		if int(typeIdx) >= len(raw.TypeSection) {
			return instError("function", i, errors.KindInvalidInput, nil, "type index %d out of range", typeIdx)
		}
		typ, err := funcType(raw.TypeSection[typeIdx])
		if err != nil {
			return instError("function", i, errors.KindUnsupported, err, "")
		}
		name, _ := mod.ExportName(wasm.ExternTypeFunc, imported+uint32(i))
		addr, err := st.InsertFunction(&store.FunctionInstance{
			Kind:       store.FuncInterpreted,
			ModuleName: mod.Name(),
			FuncName:   name,
			Type:       typ,
			CodeIndex:  uint32(i),
		})
		if err != nil {
			return instError("function", i, kindOf(err, errors.KindInsertion), err, "")
		}
		inst.FuncAddrs = append(inst.FuncAddrs, addr)
	}
	return nil
}

func (l *Linker) allocGlobals(st *store.Store, raw *wasm.Module, inst *store.ModuleInstance) error {
	read := func(idx uint32) (uint64, bool) {
		if int(idx) >= len(inst.GlobalAddrs) {
			return 0, false
		}
		g, err := st.Global(inst.GlobalAddrs[idx])
		if err != nil {
			return 0, false
		}
		return g.Value, true
	}
	for i, g := range raw.GlobalSection {
		kind, ok := value.GlobalKindOf(g.Type.ValType)
		if !ok {
			return instError("global", i, errors.KindUnsupported, nil,
				"global type %s", wasm.ValueTypeName(g.Type.ValType))
		}
		bits, err := constexpr.Eval(g.Init.Opcode, g.Init.Data, read)
		if err != nil {
			return instError("global", i, errors.KindInstantiation, err, "evaluate initializer")
		}
		if kind == value.KindI32 || kind == value.KindF32 {
			bits &= 0xFFFFFFFF
		}
		addr, err := st.InsertGlobal(&store.GlobalInstance{Type: kind, Mutable: g.Type.Mutable, Value: bits})
		if err != nil {
			return instError("global", i, kindOf(err, errors.KindInsertion), err, "")
		}
		inst.GlobalAddrs = append(inst.GlobalAddrs, addr)
	}
	return nil
}

func (l *Linker) allocMemory(st *store.Store, raw *wasm.Module, inst *store.ModuleInstance) error {
	m := raw.MemorySection
	if m == nil {
		return nil
	}
	limit := l.config.MemoryLimitPages
	if limit > 0 && m.Min > limit {
		return instError("memory", 0, errors.KindOutOfBounds, nil,
			"minimum %d pages exceeds limit %d", m.Min, limit)
	}
	var max *uint32
	if m.IsMaxEncoded {
		v := m.Max
		max = &v
	}
	if limit > 0 && (max == nil || *max > limit) {
		max = &limit
	}
	addr, err := st.InsertMemory(store.NewMemory(m.Min, max))
	if err != nil {
		return instError("memory", 0, kindOf(err, errors.KindInsertion), err, "")
	}
	inst.MemAddrs = append(inst.MemAddrs, addr)
	return nil
}

func (l *Linker) allocTables(st *store.Store, raw *wasm.Module, inst *store.ModuleInstance) error {
	for i, t := range raw.TableSection {
		addr, err := st.InsertTable(store.NewTable(t.Type, t.Min, t.Max))
		if err != nil {
			return instError("table", i, kindOf(err, errors.KindInsertion), err, "")
		}
		inst.TableAddrs = append(inst.TableAddrs, addr)
	}
	return nil
}

func (l *Linker) applyElements(st *store.Store, raw *wasm.Module, inst *store.ModuleInstance) error {
	for i, seg := range raw.ElementSection {
		if seg.Mode != wasm.ElementModeActive {
			continue
		}
		if int(seg.TableIndex) >= len(inst.TableAddrs) {
			return instError("element", i, errors.KindNotFound, nil, "table %d not defined", seg.TableIndex)
		}
		tbl, err := st.Table(inst.TableAddrs[seg.TableIndex])
		if err != nil {
			return err
		}
		offset, err := l.evalOffset(st, seg.OffsetExpr, inst)
		if err != nil {
			return instError("element", i, errors.KindInstantiation, err, "evaluate offset")
		}
		if uint64(offset)+uint64(len(seg.Init)) > uint64(len(tbl.Elements)) {
			return instError("element", i, errors.KindOutOfBounds, nil,
				"segment [%d, %d) exceeds table size %d", offset, uint64(offset)+uint64(len(seg.Init)), len(tbl.Elements))
		}
		for j, fidx := range seg.Init {
			if fidx == nil {
				tbl.Elements[offset+uint32(j)] = nil
				continue
			}
			if int(*fidx) >= len(inst.FuncAddrs) {
				return instError("element", i, errors.KindNotFound, nil, "function %d not defined", *fidx)
			}
			addr := inst.FuncAddrs[*fidx]
			tbl.Elements[offset+uint32(j)] = &addr
		}
	}
	return nil
}

func (l *Linker) applyData(st *store.Store, raw *wasm.Module, inst *store.ModuleInstance) error {
	for i, seg := range raw.DataSection {
		// Passive segments carry no offset and are only copied by memory.init.
		if seg.OffsetExpression == nil {
			continue
		}
		if len(inst.MemAddrs) == 0 {
			return instError("data", i, errors.KindNotFound, nil, "module defines no memory")
		}
		mem, err := st.Memory(inst.MemAddrs[0])
		if err != nil {
			return err
		}
		offset, err := l.evalOffset(st, seg.OffsetExpression, inst)
		if err != nil {
			return instError("data", i, errors.KindInstantiation, err, "evaluate offset")
		}
		if err := mem.SetBytes(seg.Init, offset, 0, uint32(len(seg.Init))); err != nil {
			return instError("data", i, errors.KindOutOfBounds, err, "")
		}
	}
	return nil
}

func (l *Linker) evalOffset(st *store.Store, expr *wasm.ConstantExpression, inst *store.ModuleInstance) (uint32, error) {
	if expr == nil {
		return 0, nil
	}
	bits, err := constexpr.Eval(expr.Opcode, expr.Data, func(idx uint32) (uint64, bool) {
		if int(idx) >= len(inst.GlobalAddrs) {
			return 0, false
		}
		g, err := st.Global(inst.GlobalAddrs[idx])
		if err != nil {
			return 0, false
		}
		return g.Value, true
	})
	return uint32(bits), err
}

func (l *Linker) recordExports(raw *wasm.Module, inst *store.ModuleInstance) {
	for _, exp := range raw.ExportSection {
		var addrs []uint32
		switch exp.Type {
		case wasm.ExternTypeFunc:
			addrs = inst.FuncAddrs
		case wasm.ExternTypeGlobal:
			addrs = inst.GlobalAddrs
		case wasm.ExternTypeMemory:
			addrs = inst.MemAddrs
		case wasm.ExternTypeTable:
			addrs = inst.TableAddrs
		}
		if int(exp.Index) >= len(addrs) {
			Logger().Warn("export refers to undefined entity",
				zap.String("name", exp.Name),
				zap.String("kind", wasm.ExternTypeName(exp.Type)),
				zap.Uint32("index", exp.Index))
			continue
		}
		inst.Exports[exp.Name] = store.Export{Kind: store.ExternKind(exp.Type), Addr: addrs[exp.Index]}
	}
}

func (l *Linker) recordStart(raw *wasm.Module, inst *store.ModuleInstance) error {
	if raw.StartSection != nil {
		idx := *raw.StartSection
		if int(idx) >= len(inst.FuncAddrs) {
			return instError("start", -1, errors.KindNotFound, nil, "function %d not defined", idx)
		}
		inst.SetStartAddr(inst.FuncAddrs[idx])
		return nil
	}
	if l.config.StartFunc == "" {
		return nil
	}
	addr, ok := inst.ExportedFunc(l.config.StartFunc)
	if !ok {
		return errors.NotFoundName(errors.PhaseInstantiate, "start function", l.config.StartFunc)
	}
	inst.SetStartAddr(addr)
	return nil
}

func funcType(ft *wasm.FunctionType) (value.FuncType, error) {
	params, err := kinds(ft.Params)
	if err != nil {
		return value.FuncType{}, err
	}
	results, err := kinds(ft.Results)
	if err != nil {
		return value.FuncType{}, err
	}
	return value.FuncType{Params: params, Results: results}, nil
}

func kinds(types []wasm.ValueType) ([]value.Kind, error) {
	if len(types) == 0 {
		return nil, nil
	}
	out := make([]value.Kind, len(types))
	for i, t := range types {
		k, ok := value.KindOf(t)
		if !ok {
			return nil, errors.Unsupported(errors.PhaseInstantiate, "value type "+wasm.ValueTypeName(t))
		}
		out[i] = k
	}
	return out, nil
}

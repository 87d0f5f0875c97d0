// Package snapshot restores and captures hex-encoded global and memory state.
//
// A Document lists (index, hex) pairs per section. Global hex is an unsigned
// 64-bit integer, most significant digit first, with an optional 0x prefix.
// Memory hex is the raw byte payload written at offset 0.
//
// Restore applies the whole Global section before the Memory section and
// stops at the first failing entry. Entries applied before the failure stay
// applied.
package snapshot

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/wippyai/wasm-executor/errors"
	"github.com/wippyai/wasm-executor/store"
)

const (
	SectionGlobal = "Global"
	SectionMemory = "Memory"
)

// Entry is one (index, hex) pair. It encodes as a two element array.
type Entry struct {
	_     struct{} `cbor:",toarray"`
	Index uint32
	Hex   string
}

// Document is a snapshot. A nil section is skipped.
type Document struct {
	Global []Entry `json:"Global,omitempty" cbor:"Global,omitempty"`
	Memory []Entry `json:"Memory,omitempty" cbor:"Memory,omitempty"`
}

// Restore writes doc into st. It is not atomic.
func Restore(st *store.Store, doc *Document) error {
	if doc == nil {
		return nil
	}
	for i, e := range doc.Global {
		if err := restoreGlobal(st, e); err != nil {
			return entryError(SectionGlobal, i, e, err)
		}
	}
	for i, e := range doc.Memory {
		if err := restoreMemory(st, e); err != nil {
			return entryError(SectionMemory, i, e, err)
		}
	}
	return nil
}

func restoreGlobal(st *store.Store, e Entry) error {
	bits, err := ParseGlobalHex(e.Hex)
	if err != nil {
		return err
	}
	g, err := st.Global(e.Index)
	if err != nil {
		return err
	}
	g.SetRaw(bits)
	return nil
}

func restoreMemory(st *store.Store, e Entry) error {
	data, err := ParseMemoryHex(e.Hex)
	if err != nil {
		return err
	}
	mem, err := st.Memory(e.Index)
	if err != nil {
		return err
	}
	return mem.SetBytes(data, 0, 0, uint32(len(data)))
}

// ParseGlobalHex parses a base-16 unsigned 64-bit value.
func ParseGlobalHex(s string) (uint64, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if digits == "" {
		return 0, errors.DecodeFailed(errors.PhaseRestore, nil, "empty global hex", nil)
	}
	bits, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return 0, errors.DecodeFailed(errors.PhaseRestore, nil, "parse global hex "+strconv.Quote(s), err)
	}
	return bits, nil
}

// ParseMemoryHex decodes an even-length hex byte string.
func ParseMemoryHex(s string) ([]byte, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.DecodeFailed(errors.PhaseRestore, nil, "parse memory hex", err)
	}
	return data, nil
}

// entryError locates err at a document entry, keeping its kind and code.
func entryError(section string, pos int, e Entry, err error) error {
	kind, ok := errors.KindOf(err)
	if !ok {
		kind = errors.KindDecode
	}
	return errors.New(errors.PhaseRestore, kind).
		Path(section, strconv.Itoa(pos)).
		Value(e.Index).
		Detail("restore %s entry %d (index %d)", strings.ToLower(section), pos, e.Index).
		Cause(err).
		Build()
}

// Capture reads every global and memory in st into a Document. Each memory
// is captured in full, so a restore overwrites bytes that data segments wrote
// during instantiation.
func Capture(st *store.Store) (*Document, error) {
	doc := &Document{}
	for i := 0; i < st.NumGlobals(); i++ {
		g, err := st.Global(uint32(i))
		if err != nil {
			return nil, errors.Wrap(errors.PhaseCapture, errors.KindNotFound, err, "read global")
		}
		doc.Global = append(doc.Global, Entry{Index: uint32(i), Hex: strconv.FormatUint(g.Value, 16)})
	}
	for i := 0; i < st.NumMemories(); i++ {
		m, err := st.Memory(uint32(i))
		if err != nil {
			return nil, errors.Wrap(errors.PhaseCapture, errors.KindNotFound, err, "read memory")
		}
		doc.Memory = append(doc.Memory, Entry{Index: uint32(i), Hex: hex.EncodeToString(m.Bytes())})
	}
	return doc, nil
}

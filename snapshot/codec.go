package snapshot

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/ghodss/yaml"
	jsoniter "github.com/json-iterator/go"

	"github.com/wippyai/wasm-executor/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var cborEncMode cbor.EncMode

func init() {
	var err error
	cborEncMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic("snapshot: cbor enc mode: " + err.Error())
	}
}

// Format is a snapshot document encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
	FormatCBOR
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	case FormatCBOR:
		return "cbor"
	}
	return "unknown"
}

// FormatFor picks a format from a file extension. Unknown extensions are JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".cbor":
		return FormatCBOR
	}
	return FormatJSON
}

// MarshalJSON encodes the entry as [index, "hex"].
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Index, e.Hex})
}

// UnmarshalJSON decodes an [index, "hex"] pair.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var pair []jsoniter.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return errors.DecodeFailed(errors.PhaseRestore, nil, "entry must be an [index, hex] pair", nil)
	}
	if err := json.Unmarshal(pair[0], &e.Index); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &e.Hex)
}

// Decode parses data in the given format.
func Decode(data []byte, f Format) (*Document, error) {
	doc := &Document{}
	var err error
	switch f {
	case FormatJSON:
		err = json.Unmarshal(data, doc)
	case FormatYAML:
		var js []byte
		js, err = yaml.YAMLToJSON(data)
		if err == nil {
			err = json.Unmarshal(js, doc)
		}
	case FormatCBOR:
		err = cbor.Unmarshal(data, doc)
	default:
		return nil, errors.Unsupported(errors.PhaseRestore, "snapshot format "+f.String())
	}
	if err != nil {
		return nil, errors.DecodeFailed(errors.PhaseRestore, []string{f.String()}, "decode snapshot", err)
	}
	return doc, nil
}

// Encode serializes doc in the given format.
func Encode(doc *Document, f Format) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch f {
	case FormatJSON:
		out, err = json.MarshalIndent(doc, "", "  ")
	case FormatYAML:
		out, err = yaml.Marshal(doc)
	case FormatCBOR:
		out, err = cborEncMode.Marshal(doc)
	default:
		return nil, errors.Unsupported(errors.PhaseCapture, "snapshot format "+f.String())
	}
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCapture, errors.KindInvalidInput, err, "encode snapshot")
	}
	return out, nil
}

// Load reads a snapshot file, choosing the format by extension.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRestore, errors.KindInvalidInput, err, "read snapshot "+path)
	}
	return Decode(data, FormatFor(path))
}

// Save writes doc to path, choosing the format by extension.
func Save(path string, doc *Document) error {
	data, err := Encode(doc, FormatFor(path))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.PhaseCapture, errors.KindInvalidInput, err, "write snapshot "+path)
	}
	return nil
}

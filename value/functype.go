package value

import "strings"

// FuncType is a function signature: ordered parameter and result kinds.
type FuncType struct {
	Params  []Kind
	Results []Kind
}

// Equal reports whether two signatures are identical.
func (t FuncType) Equal(o FuncType) bool {
	return kindsEqual(t.Params, o.Params) && kindsEqual(t.Results, o.Results)
}

func (t FuncType) String() string {
	var b strings.Builder
	writeKinds(&b, t.Params)
	b.WriteString(" -> ")
	writeKinds(&b, t.Results)
	return b.String()
}

func kindsEqual(a, b []Kind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func writeKinds(b *strings.Builder, kinds []Kind) {
	b.WriteByte('(')
	for i, k := range kinds {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k.String())
	}
	b.WriteByte(')')
}

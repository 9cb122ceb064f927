package bytecode

import (
	"fmt"
	"sort"
)

// SourceLocation represents a position in source code.
type SourceLocation struct {
	Line   int `msgpack:"l"` // 1-based line number
	Column int `msgpack:"c"` // 1-based column number
}

// String returns a formatted string representation of the source location.
func (s SourceLocation) String() string {
	return fmt.Sprintf("%d:%d", s.Line, s.Column)
}

// IsZero returns true if the location has not been set.
func (s SourceLocation) IsZero() bool {
	return s.Line == 0 && s.Column == 0
}

// UnitKind tells function code from fragment code.
type UnitKind uint8

const (
	FuncUnit UnitKind = iota
	FragmentUnit
)

// MapEntry says that instructions from Offset on come from Loc, up to the
// next entry.
type MapEntry struct {
	Offset int            `msgpack:"o"`
	Loc    SourceLocation `msgpack:"p"`
}

// Unit is the source map of one function or fragment.
type Unit struct {
	Kind    UnitKind   `msgpack:"k"`
	Index   int        `msgpack:"i"`
	Entries []MapEntry `msgpack:"e"`
}

// SourceMap links instruction offsets back to source positions.
type SourceMap struct {
	Filename string `msgpack:"filename,omitempty"`
	Units    []Unit `msgpack:"units"`
}

// Lookup returns the source location of the instruction at offset in the
// given unit.
func (sm *SourceMap) Lookup(kind UnitKind, index, offset int) (SourceLocation, bool) {
	if sm == nil {
		return SourceLocation{}, false
	}
	for _, u := range sm.Units {
		if u.Kind != kind || u.Index != index {
			continue
		}
		i := sort.Search(len(u.Entries), func(i int) bool { return u.Entries[i].Offset > offset })
		if i == 0 {
			return SourceLocation{}, false
		}
		return u.Entries[i-1].Loc, true
	}
	return SourceLocation{}, false
}

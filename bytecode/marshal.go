package bytecode

import (
	"bytes"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/deepnoodle-ai/sme/errors"
	"github.com/deepnoodle-ai/sme/ir"
)

type updatesSection struct {
	Steps       [][]Step `msgpack:"steps"`
	DeriveOrder []int    `msgpack:"derive_order"`
}

// Marshal encodes a module in the binary format.
func Marshal(m *Module) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(Magic)
	buf.WriteByte(FormatVersion)
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	sections := []any{
		m.Meta,
		m.Constants,
		m.Vars,
		m.Funcs,
		m.Bindings,
		m.Fragments,
		updatesSection{Steps: m.Updates, DeriveOrder: m.DeriveOrder},
		m.SourceMap,
	}
	for _, section := range sections {
		if err := enc.Encode(section); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a module written by Marshal.
func Unmarshal(data []byte) (*Module, error) {
	header := len(Magic) + 1
	if len(data) < header || string(data[:len(Magic)]) != Magic {
		return nil, errors.CodegenErrorf(errors.E4004, "not a compiled module (bad magic)")
	}
	if v := data[len(Magic)]; v != FormatVersion {
		return nil, errors.CodegenErrorf(errors.E4004, "unsupported module format version %d (expected %d)", v, FormatVersion)
	}
	dec := msgpack.NewDecoder(bytes.NewReader(data[header:]))
	m := &Module{}
	var updates updatesSection
	sections := []struct {
		name string
		dst  any
	}{
		{"metadata", &m.Meta},
		{"constants", &m.Constants},
		{"variables", &m.Vars},
		{"functions", &m.Funcs},
		{"bindings", &m.Bindings},
		{"fragments", &m.Fragments},
		{"updates", &updates},
		{"source map", &m.SourceMap},
	}
	for _, s := range sections {
		if err := dec.Decode(s.dst); err != nil {
			if err == io.EOF {
				return nil, errors.CodegenErrorf(errors.E4004, "module truncated before the %s section", s.name)
			}
			return nil, errors.CodegenErrorf(errors.E4004, "invalid %s section: %v", s.name, err)
		}
	}
	m.Updates = updates.Steps
	m.DeriveOrder = updates.DeriveOrder
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// validate checks the table sizes and cross references of a decoded module.
func (m *Module) validate() error {
	meta := m.Meta
	if meta.NumVars != len(m.Vars) || meta.NumFuncs != len(m.Funcs) ||
		meta.NumBindings != len(m.Bindings) || meta.NumFragments != len(m.Fragments) {
		return errors.CodegenErrorf(errors.E4004, "table sizes do not match the metadata")
	}
	if len(m.Fragments) == 0 {
		return errors.CodegenErrorf(errors.E4004, "module has no initial render fragment")
	}
	if len(m.Updates) < len(m.Vars) {
		m.Updates = append(m.Updates, make([][]Step, len(m.Vars)-len(m.Updates))...)
	}
	inRange := func(i, n int) bool { return i >= -1 && i < n }
	if !inRange(meta.Style, len(m.Constants)) || !inRange(meta.Init, len(m.Funcs)) {
		return errors.CodegenErrorf(errors.E4004, "metadata references are out of range")
	}
	if meta.Style >= 0 && m.Constants[meta.Style].Kind != ir.ConstString {
		return errors.CodegenErrorf(errors.E4004, "style payload is not a string constant")
	}
	for i, v := range m.Vars {
		if !inRange(v.Name, len(m.Constants)) || v.Name < 0 || !inRange(v.Init, len(m.Funcs)) {
			return errors.CodegenErrorf(errors.E4004, "variable %d has an invalid reference", i)
		}
	}
	for i, b := range m.Bindings {
		if !inRange(b.Func, len(m.Funcs)) || !inRange(b.Body, len(m.Fragments)) {
			return errors.CodegenErrorf(errors.E4004, "binding %d has an invalid reference", i)
		}
		for _, br := range b.Branches {
			if !inRange(br.Cond, len(m.Funcs)) || br.Fragment < 0 || br.Fragment >= len(m.Fragments) {
				return errors.CodegenErrorf(errors.E4004, "binding %d has an invalid branch", i)
			}
		}
	}
	for id, steps := range m.Updates {
		for _, s := range steps {
			n := len(m.Bindings)
			if s.Kind == ir.Derive {
				n = len(m.Vars)
			}
			if s.Target < 0 || s.Target >= n {
				return errors.CodegenErrorf(errors.E4004, "update step of variable %d has an invalid target", id)
			}
		}
	}
	for _, id := range m.DeriveOrder {
		if id < 0 || id >= len(m.Vars) {
			return errors.CodegenErrorf(errors.E4004, "derive order has an invalid variable")
		}
	}
	return nil
}

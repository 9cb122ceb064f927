package graph

import (
	"sort"

	"github.com/deepnoodle-ai/sme/ast"
)

// ComponentInfo describes what other components may use of a component.
type ComponentInfo struct {
	Name  string
	Props []string
}

// HasProp reports whether name is a declared prop.
func (c *ComponentInfo) HasProp(name string) bool {
	for _, p := range c.Props {
		if p == name {
			return true
		}
	}
	return false
}

// Globals is the table of components known to a compilation. It is filled
// before any graph is built and only read afterwards, so it may be shared by
// concurrent builds.
type Globals struct {
	components map[string]*ComponentInfo
}

// NewGlobals returns an empty table.
func NewGlobals() *Globals {
	return &Globals{components: map[string]*ComponentInfo{}}
}

// Describe extracts the public surface of a parsed component.
func Describe(comp *ast.Component) *ComponentInfo {
	info := &ComponentInfo{Name: comp.Name}
	if comp.Logic == nil {
		return info
	}
	for _, stmt := range comp.Logic.Stmts {
		if decl, ok := stmt.(*ast.VarDecl); ok && decl.Kind == ast.DeclProp {
			info.Props = append(info.Props, decl.Name.Name)
		}
	}
	return info
}

// Register adds a parsed component to the table.
func (g *Globals) Register(comp *ast.Component) *ComponentInfo {
	info := Describe(comp)
	g.Add(info)
	return info
}

// Add adds a component description to the table.
func (g *Globals) Add(info *ComponentInfo) {
	g.components[info.Name] = info
}

// Lookup returns the component with the given name.
func (g *Globals) Lookup(name string) (*ComponentInfo, bool) {
	if g == nil {
		return nil, false
	}
	info, ok := g.components[name]
	return info, ok
}

// Names returns the sorted component names.
func (g *Globals) Names() []string {
	if g == nil {
		return nil
	}
	names := make([]string, 0, len(g.components))
	for name := range g.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package graph

import (
	"sort"

	"github.com/deepnoodle-ai/sme/errors"
)

// checkCycles runs a depth-first search over the derived values in
// declaration order. A dependency that is still on the recursion stack
// closes a cycle.
func (b *builder) checkCycles() error {
	const (
		unvisited = iota
		onStack
		done
	)
	vars := b.g.Vars
	state := make([]int, len(vars))
	var stack []int
	var visit func(id int) []int
	visit = func(id int) []int {
		state[id] = onStack
		stack = append(stack, id)
		for _, dep := range vars[id].Deps {
			if vars[dep].Kind != Derived {
				continue
			}
			switch state[dep] {
			case onStack:
				start := 0
				for i, s := range stack {
					if s == dep {
						start = i
						break
					}
				}
				cycle := append(append([]int{}, stack[start:]...), dep)
				return cycle
			case unvisited:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}
	for _, v := range vars {
		if v.Kind != Derived || state[v.ID] != unvisited {
			continue
		}
		if cycle := visit(v.ID); cycle != nil {
			names := make([]string, len(cycle))
			for i, id := range cycle {
				names[i] = vars[id].Name
			}
			first := vars[cycle[0]]
			err := errors.NewCyclicDependencyError(b.loc(first.Decl.Name.Pos()), names)
			err.Hint = "a derived value cannot depend on itself, directly or through other derived values"
			return err
		}
	}
	return nil
}

// order computes the edges and a topological order of the graph with
// Kahn's algorithm. Ties are broken by declaration order for variables,
// then document order for bindings, so the order is deterministic.
func (b *builder) order() error {
	g := b.g
	var nodes []Node
	for _, v := range g.Vars {
		nodes = append(nodes, Node{Kind: VarNode, ID: v.ID})
	}
	for _, bnd := range g.Bindings {
		if bnd.Reactive() {
			nodes = append(nodes, Node{Kind: BindingNode, ID: bnd.ID})
		}
	}
	position := make(map[Node]int, len(nodes))
	for i, n := range nodes {
		position[n] = i
	}

	addEdge := func(from, to Node, ownership bool) {
		g.edges = append(g.edges, Edge{From: from, To: to, Ownership: ownership})
		if !ownership {
			g.readers[from.ID] = append(g.readers[from.ID], to)
		}
	}
	for _, v := range g.Vars {
		if v.Kind != Derived {
			continue
		}
		for _, dep := range v.Deps {
			addEdge(Node{Kind: VarNode, ID: dep}, Node{Kind: VarNode, ID: v.ID}, false)
		}
	}
	for _, bnd := range g.Bindings {
		if !bnd.Reactive() {
			continue
		}
		to := Node{Kind: BindingNode, ID: bnd.ID}
		for _, dep := range bnd.Deps {
			addEdge(Node{Kind: VarNode, ID: dep}, to, false)
		}
		if bnd.Parent >= 0 && g.Bindings[bnd.Parent].Reactive() {
			addEdge(Node{Kind: BindingNode, ID: bnd.Parent}, to, true)
		}
	}

	indegree := make([]int, len(nodes))
	out := make([][]int, len(nodes))
	for _, e := range g.edges {
		from, to := position[e.From], position[e.To]
		out[from] = append(out[from], to)
		indegree[to]++
	}
	var ready []int
	for i := range nodes {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		g.Order = append(g.Order, nodes[next])
		for _, to := range out[next] {
			indegree[to]--
			if indegree[to] == 0 {
				at := sort.SearchInts(ready, to)
				ready = append(ready, 0)
				copy(ready[at+1:], ready[at:])
				ready[at] = to
			}
		}
	}
	if len(g.Order) != len(nodes) {
		return errors.CodegenErrorf(errors.E4003, "dependency graph of %s is not acyclic", b.comp.Name)
	}
	for rank, n := range g.Order {
		if n.Kind == VarNode {
			g.Vars[n.ID].Rank = rank
		} else {
			g.Bindings[n.ID].Rank = rank
		}
	}
	return nil
}

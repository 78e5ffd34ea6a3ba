// Package dag implements the directed acyclic graph used to guide causal
// generation. Nodes are column names; an edge a→b declares that b depends on
// a. The graph rejects cycles at insertion time so a topological order always
// exists.
package dag

import (
	"fmt"
	"sort"
	"strings"
)

// Edge is a single directed dependency between two columns.
type Edge struct {
	From string
	To   string
}

// Graph is a mutable DAG over column names.
type Graph struct {
	nodes map[string]struct{}
	// out[from] holds the set of direct children.
	out map[string]map[string]struct{}
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: map[string]struct{}{},
		out:   map[string]map[string]struct{}{},
	}
}

// FromEdges builds a graph from an edge list, failing on the first edge that
// would introduce a cycle or a self-loop.
func FromEdges(edges []Edge) (*Graph, error) {
	g := New()
	for _, e := range edges {
		if err := g.AddEdge(e.From, e.To); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// AddNode registers a node without any edges. Adding an existing node is a
// no-op.
func (g *Graph) AddNode(name string) {
	g.nodes[name] = struct{}{}
}

// AddEdge inserts from→to. Self-loops and edges that would close a cycle are
// rejected.
func (g *Graph) AddEdge(from, to string) error {
	if from == "" || to == "" {
		return fmt.Errorf("dag: edge endpoints must not be empty")
	}
	if from == to {
		return fmt.Errorf("dag: self-loop on %q", from)
	}
	if g.reachable(to, from) {
		return fmt.Errorf("dag: edge %s->%s would create a cycle", from, to)
	}
	g.nodes[from] = struct{}{}
	g.nodes[to] = struct{}{}
	if g.out[from] == nil {
		g.out[from] = map[string]struct{}{}
	}
	g.out[from][to] = struct{}{}
	return nil
}

// Suppress removes the from→to edge if present. Suppressing an edge that does
// not exist is a no-op; both nodes stay in the graph.
func (g *Graph) Suppress(from, to string) {
	if ch, ok := g.out[from]; ok {
		delete(ch, to)
	}
}

// Parents returns the sorted direct parents of a node.
func (g *Graph) Parents(name string) []string {
	var out []string
	for from, children := range g.out {
		if _, ok := children[name]; ok {
			out = append(out, from)
		}
	}
	sort.Strings(out)
	return out
}

// Nodes returns all node names in sorted order.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Edges returns all edges sorted by (from, to).
func (g *Graph) Edges() []Edge {
	var out []Edge
	for from, children := range g.out {
		for to := range children {
			out = append(out, Edge{From: from, To: to})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// TopoSort returns the nodes in dependency order (parents before children).
// Ties are broken alphabetically so the order is deterministic.
func (g *Graph) TopoSort() []string {
	indeg := map[string]int{}
	for n := range g.nodes {
		indeg[n] = 0
	}
	for _, children := range g.out {
		for to := range children {
			indeg[to]++
		}
	}

	var ready []string
	for n, d := range indeg {
		if d == 0 {
			ready = append(ready, n)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		var unblocked []string
		for to := range g.out[n] {
			indeg[to]--
			if indeg[to] == 0 {
				unblocked = append(unblocked, to)
			}
		}
		sort.Strings(unblocked)
		ready = append(ready, unblocked...)
		sort.Strings(ready)
	}
	return order
}

// reachable reports whether `to` can be reached from `from` along existing
// edges.
func (g *Graph) reachable(from, to string) bool {
	seen := map[string]struct{}{}
	stack := []string{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == to {
			return true
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		for c := range g.out[n] {
			stack = append(stack, c)
		}
	}
	return false
}

// DOT renders the graph in graphviz dot syntax, nodes and edges sorted for
// stable output.
func (g *Graph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph {\n")
	for _, n := range g.Nodes() {
		fmt.Fprintf(&b, "  %q;\n", n)
	}
	for _, e := range g.Edges() {
		fmt.Fprintf(&b, "  %q -> %q;\n", e.From, e.To)
	}
	b.WriteString("}\n")
	return b.String()
}

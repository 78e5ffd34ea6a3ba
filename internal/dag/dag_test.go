package dag

import (
	"reflect"
	"strings"
	"testing"
)

func TestAddEdgeRejectsCycles(t *testing.T) {
	t.Parallel()

	g := New()
	if err := g.AddEdge("a", "b"); err != nil {
		t.Fatalf("AddEdge(a,b): %v", err)
	}
	if err := g.AddEdge("b", "c"); err != nil {
		t.Fatalf("AddEdge(b,c): %v", err)
	}

	if err := g.AddEdge("c", "a"); err == nil {
		t.Fatalf("expected cycle error for c->a")
	}
	if err := g.AddEdge("a", "a"); err == nil {
		t.Fatalf("expected self-loop error for a->a")
	}
}

func TestTopoSortParentsFirst(t *testing.T) {
	t.Parallel()

	g, err := FromEdges([]Edge{
		{"age", "income"},
		{"education", "income"},
		{"income", "approved"},
	})
	if err != nil {
		t.Fatalf("FromEdges: %v", err)
	}

	order := g.TopoSort()
	pos := map[string]int{}
	for i, n := range order {
		pos[n] = i
	}
	for _, e := range g.Edges() {
		if pos[e.From] >= pos[e.To] {
			t.Fatalf("topo order violates edge %s->%s: %v", e.From, e.To, order)
		}
	}

	// Deterministic tie-break.
	again := g.TopoSort()
	if !reflect.DeepEqual(order, again) {
		t.Fatalf("TopoSort not deterministic: %v vs %v", order, again)
	}
}

func TestSuppressRemovesEdgeKeepsNodes(t *testing.T) {
	t.Parallel()

	g, err := FromEdges([]Edge{{"race", "income"}, {"age", "income"}})
	if err != nil {
		t.Fatalf("FromEdges: %v", err)
	}

	g.Suppress("race", "income")
	if got := g.Parents("income"); !reflect.DeepEqual(got, []string{"age"}) {
		t.Fatalf("Parents(income) = %v, want [age]", got)
	}

	// Nodes survive edge suppression.
	nodes := g.Nodes()
	found := false
	for _, n := range nodes {
		if n == "race" {
			found = true
		}
	}
	if !found {
		t.Fatalf("race node removed by Suppress: %v", nodes)
	}

	// Suppressing a missing edge is a no-op.
	g.Suppress("nope", "income")
}

func TestDOTOutput(t *testing.T) {
	t.Parallel()

	g, err := FromEdges([]Edge{{"a", "b"}})
	if err != nil {
		t.Fatalf("FromEdges: %v", err)
	}

	dot := g.DOT()
	if !strings.HasPrefix(dot, "digraph {") {
		t.Fatalf("DOT missing digraph header: %q", dot)
	}
	if !strings.Contains(dot, `"a" -> "b";`) {
		t.Fatalf("DOT missing edge: %q", dot)
	}
}

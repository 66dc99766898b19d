package report

import "sort"

// NodeKind tags a graph node as a reaction or a metabolite so the bipartite
// (dead-end, dilution) and monopartite (duplicate, loop) edge lists can
// share one representation.
type NodeKind int

const (
	ReactionNode NodeKind = iota
	MetaboliteNode
)

// Node is a tagged graph node.
type Node struct {
	Kind NodeKind
	ID   string
}

// ReactionRef returns a reaction node.
func ReactionRef(id string) Node { return Node{Kind: ReactionNode, ID: id} }

// MetaboliteRef returns a metabolite node.
func MetaboliteRef(id string) Node { return Node{Kind: MetaboliteNode, ID: id} }

// less orders nodes by (kind, id) for canonical edge orientation.
func (n Node) less(o Node) bool {
	if n.Kind != o.Kind {
		return n.Kind < o.Kind
	}
	return n.ID < o.ID
}

// Edge is an unordered pair of nodes, stored in canonical orientation so
// map-based deduplication works.
type Edge struct {
	A Node
	B Node
}

// NewEdge returns the canonical form of the undirected edge {a, b}.
func NewEdge(a, b Node) Edge {
	if b.less(a) {
		a, b = b, a
	}
	return Edge{A: a, B: b}
}

// Bipartite returns a metabolite↔reaction edge.
func Bipartite(metID, rxnID string) Edge {
	return NewEdge(MetaboliteRef(metID), ReactionRef(rxnID))
}

// Monopartite returns a reaction↔reaction edge.
func Monopartite(rxn1, rxn2 string) Edge {
	return NewEdge(ReactionRef(rxn1), ReactionRef(rxn2))
}

// EdgeSet is a deduplicated set of undirected edges.
type EdgeSet map[Edge]struct{}

// NewEdgeSet returns an empty edge set.
func NewEdgeSet() EdgeSet { return make(EdgeSet) }

// Add inserts an edge; self-loops are ignored.
func (s EdgeSet) Add(e Edge) {
	if e.A == e.B {
		return
	}
	s[e] = struct{}{}
}

// Union merges other into s.
func (s EdgeSet) Union(other EdgeSet) {
	for e := range other {
		s.Add(e)
	}
}

// Contains reports membership of the canonical form of {a, b}.
func (s EdgeSet) Contains(a, b Node) bool {
	_, ok := s[NewEdge(a, b)]
	return ok
}

// Slice returns the edges sorted by (A, B) for deterministic output.
func (s EdgeSet) Slice() []Edge {
	out := make([]Edge, 0, len(s))
	for e := range s {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A.less(out[j].A)
		}
		return out[i].B.less(out[j].B)
	})
	return out
}

// Nodes returns every node touched by the set, sorted.
func (s EdgeSet) Nodes() []Node {
	seen := make(map[Node]struct{}, 2*len(s))
	for e := range s {
		seen[e.A] = struct{}{}
		seen[e.B] = struct{}{}
	}
	out := make([]Node, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}

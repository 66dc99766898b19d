// Package pathway fuses the edge lists of every check into one undirected
// graph and labels its connected components, so a modeler can investigate
// related problems together.  Nodes keep their reaction/metabolite tag; a
// reaction flagged by several checks carries the union of its per-check
// neighborhoods, which is exactly what keeps multi-test reactions from
// being split across pathways.
package pathway

import (
	"sort"
	"strings"

	"github.com/katalvlaran/lvlath/bfs"
	"github.com/katalvlaran/lvlath/core"

	"github.com/macaw-metabolics/macaw/internal/checks/report"
	"github.com/macaw-metabolics/macaw/internal/infrastructure/monitoring/logging"
	"github.com/macaw-metabolics/macaw/pkg/errors"
)

// node ID prefixes inside the lvlath graph; a reaction and a metabolite may
// legally share an ID string.
const (
	rxnPrefix = "r:"
	metPrefix = "m:"
)

func encode(n report.Node) string {
	if n.Kind == report.ReactionNode {
		return rxnPrefix + n.ID
	}
	return metPrefix + n.ID
}

// Result maps every reaction that appears in the combined edge lists to a
// positive pathway label.  Reactions absent from the map are pathway 0.
type Result struct {
	Labels     map[string]int
	Components int
}

// Assign builds the union graph and labels its connected components in
// deterministic (sorted node) order, starting from 1.
func Assign(edges report.EdgeSet, log logging.Logger) (*Result, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	log = log.Named("pathway")

	res := &Result{Labels: make(map[string]int)}
	if len(edges) == 0 {
		log.Info("no edges to group; all pathways unassigned")
		return res, nil
	}

	g := core.NewGraph()
	for _, e := range edges.Slice() {
		if _, err := g.AddEdge(encode(e.A), encode(e.B), 0); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "building pathway graph")
		}
	}

	nodes := make([]string, 0, len(edges)*2)
	for _, n := range edges.Nodes() {
		nodes = append(nodes, encode(n))
	}
	sort.Strings(nodes)

	visited := make(map[string]bool, len(nodes))
	label := 0
	for _, start := range nodes {
		if visited[start] {
			continue
		}
		walk, err := bfs.BFS(g, start)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "walking pathway component")
		}
		label++
		for _, id := range walk.Order {
			visited[id] = true
			if strings.HasPrefix(id, rxnPrefix) {
				res.Labels[strings.TrimPrefix(id, rxnPrefix)] = label
			}
		}
	}
	res.Components = label

	log.Info("labeled pathway components",
		logging.Int("components", label),
		logging.Int("reactions", len(res.Labels)))
	return res, nil
}

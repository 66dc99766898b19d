// Package deadend implements the structural dead-end test: a pure graph
// walk over the stoichiometric bipartite graph, no LP involved.
//
// A metabolite is a dead end when, over the directions its reactions are
// still allowed to run in, it can only ever be consumed or only ever be
// produced, or when fewer than two reactions use it at all.  Flagging the
// reactions that depend on a dead end can create new dead ends, so the walk
// iterates to a fixpoint; along the way, reversible reactions that keep
// exactly one feasible direction are restricted and reported separately.
package deadend

import (
	"sort"

	"github.com/macaw-metabolics/macaw/internal/checks/report"
	"github.com/macaw-metabolics/macaw/internal/domain/metnet"
	"github.com/macaw-metabolics/macaw/internal/infrastructure/monitoring/logging"
)

// Options configures a run.
type Options struct {
	Log logging.Logger
}

func (o Options) withDefaults() Options {
	if o.Log == nil {
		o.Log = logging.NewNopLogger()
	}
	return o
}

// Direction is the surviving direction of a one-way restricted reversible
// reaction.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// Result carries the test's verdicts and bipartite edges.
type Result struct {
	// Verdicts has one entry per reaction.
	Verdicts map[string]report.Verdict
	// Edges connects flagged reactions to the dead-end metabolites that
	// block them, and one-way reactions to the metabolite that pinned them.
	Edges report.EdgeSet
	// DeadEndMets lists every dead-end metabolite found, sorted.
	DeadEndMets []string
	// OneWay records the surviving direction of restricted reversible
	// reactions; the dilution test uses it to pre-tighten bounds.
	OneWay map[string]Direction
}

// Run executes the dead-end test.  The test is deterministic and cannot
// fail; the model is not mutated.
func Run(m *metnet.Model, opts Options) *Result {
	opts = opts.withDefaults()
	log := opts.Log.Named("deadend")
	log.Info("starting dead-end test",
		logging.Int("metabolites", len(m.Metabolites())),
		logging.Int("reactions", len(m.Reactions())))

	st := newState(m)
	st.propagate()

	res := st.collect(m)
	oneWay := len(res.OneWay)
	log.Info("dead-end test finished",
		logging.Int("dead_end_metabolites", len(res.DeadEndMets)),
		logging.Int("dead_end_reactions", len(res.Verdicts)-countOK(res.Verdicts)-oneWay),
		logging.Int("one_way_reactions", oneWay))
	return res
}

func countOK(verdicts map[string]report.Verdict) int {
	n := 0
	for _, v := range verdicts {
		if v.IsOK() {
			n++
		}
	}
	return n
}

// state tracks the evolving direction restrictions during the fixpoint walk.
type state struct {
	m       *metnet.Model
	metIDs  []string
	canFwd  map[string]bool
	canRev  map[string]bool
	flagged map[string]bool
	oneWay  map[string]Direction
	oneWayM map[string]string // reaction → pinning metabolite
	dead    map[string]bool
}

func newState(m *metnet.Model) *state {
	st := &state{
		m:       m,
		canFwd:  make(map[string]bool),
		canRev:  make(map[string]bool),
		flagged: make(map[string]bool),
		oneWay:  make(map[string]Direction),
		oneWayM: make(map[string]string),
		dead:    make(map[string]bool),
	}
	for _, met := range m.Metabolites() {
		st.metIDs = append(st.metIDs, met.ID)
	}
	sort.Strings(st.metIDs)
	for _, r := range m.Reactions() {
		st.canFwd[r.ID] = r.UB > 0
		st.canRev[r.ID] = r.LB < 0
	}
	return st
}

// active returns the not-yet-flagged reactions of a metabolite.
func (st *state) active(metID string) []*metnet.Reaction {
	var out []*metnet.Reaction
	for _, r := range st.m.ReactionsOf(metID) {
		if !st.flagged[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

// signs collects the production signs a metabolite can see from the given
// reactions under the current direction restrictions: +1 producible, −1
// consumable.
func (st *state) signs(metID string, rxns []*metnet.Reaction) (canProduce, canConsume bool) {
	for _, r := range rxns {
		coef := r.Stoich[metID]
		if coef == 0 {
			continue
		}
		if st.canFwd[r.ID] {
			if coef > 0 {
				canProduce = true
			} else {
				canConsume = true
			}
		}
		if st.canRev[r.ID] {
			if coef > 0 {
				canConsume = true
			} else {
				canProduce = true
			}
		}
	}
	return canProduce, canConsume
}

// propagate runs full passes over the metabolites until nothing changes.
func (st *state) propagate() {
	for changed := true; changed; {
		changed = false
		for _, metID := range st.metIDs {
			if st.dead[metID] {
				continue
			}
			if st.visit(metID) {
				changed = true
			}
		}
	}
}

// visit applies the dead-end rules to one metabolite; reports whether the
// state changed.
func (st *state) visit(metID string) bool {
	rxns := st.active(metID)

	// A metabolite used by fewer than two surviving reactions cannot reach
	// steady state with non-zero turnover.
	if len(rxns) < 2 {
		st.dead[metID] = true
		for _, r := range rxns {
			st.flag(r.ID)
		}
		return true
	}

	canProduce, canConsume := st.signs(metID, rxns)
	if !canProduce || !canConsume {
		// Strictly one-sided: the metabolite and everything that depends on
		// it are dead.
		st.dead[metID] = true
		for _, r := range rxns {
			st.flag(r.ID)
		}
		return true
	}

	// Both sides reachable; see whether a still-reversible reaction is the
	// only thing keeping one side alive.
	changed := false
	for _, r := range rxns {
		if !st.canFwd[r.ID] || !st.canRev[r.ID] {
			continue
		}
		others := make([]*metnet.Reaction, 0, len(rxns)-1)
		for _, o := range rxns {
			if o.ID != r.ID {
				others = append(others, o)
			}
		}
		produce, consume := st.signs(metID, others)
		if produce == consume {
			// Others cover both sides (or neither, handled above).
			continue
		}
		coef := r.Stoich[metID]
		var dir Direction
		if produce {
			// Everything else only produces metID, so r must consume it.
			if coef < 0 {
				dir = Forward
			} else {
				dir = Backward
			}
		} else {
			// Everything else only consumes metID, so r must produce it.
			if coef > 0 {
				dir = Forward
			} else {
				dir = Backward
			}
		}
		if dir == Forward {
			st.canRev[r.ID] = false
		} else {
			st.canFwd[r.ID] = false
		}
		st.oneWay[r.ID] = dir
		st.oneWayM[r.ID] = metID
		changed = true
	}
	return changed
}

func (st *state) flag(rxnID string) {
	st.flagged[rxnID] = true
	// A fully dead reaction supersedes any earlier one-way restriction.
	delete(st.oneWay, rxnID)
	delete(st.oneWayM, rxnID)
}

// collect turns the fixpoint state into verdicts and edges.
func (st *state) collect(m *metnet.Model) *Result {
	res := &Result{
		Verdicts: make(map[string]report.Verdict, len(m.Reactions())),
		Edges:    report.NewEdgeSet(),
		OneWay:   make(map[string]Direction, len(st.oneWay)),
	}
	for metID := range st.dead {
		res.DeadEndMets = append(res.DeadEndMets, metID)
	}
	sort.Strings(res.DeadEndMets)

	for _, r := range m.Reactions() {
		switch {
		case st.flagged[r.ID]:
			var mets []string
			for _, metID := range r.Metabolites() {
				if st.dead[metID] {
					mets = append(mets, metID)
					res.Edges.Add(report.Bipartite(metID, r.ID))
				}
			}
			res.Verdicts[r.ID] = report.DeadEnd(mets)
		case st.oneWay[r.ID] == Forward && hasOneWay(st, r.ID):
			res.Verdicts[r.ID] = report.ForwardOnly()
			res.Edges.Add(report.Bipartite(st.oneWayM[r.ID], r.ID))
			res.OneWay[r.ID] = Forward
		case st.oneWay[r.ID] == Backward && hasOneWay(st, r.ID):
			res.Verdicts[r.ID] = report.BackwardOnly()
			res.Edges.Add(report.Bipartite(st.oneWayM[r.ID], r.ID))
			res.OneWay[r.ID] = Backward
		default:
			res.Verdicts[r.ID] = report.OK()
		}
	}
	return res
}

func hasOneWay(st *state, rxnID string) bool {
	_, ok := st.oneWay[rxnID]
	return ok
}

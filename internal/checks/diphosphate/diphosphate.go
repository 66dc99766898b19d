// Package diphosphate implements the rule-based reversibility check on
// reactions that touch pyrophosphate.  Hydrolysis of a diphosphate group is
// nearly reversible at physiological pH, but cells keep highly active
// diphosphatases running precisely to pull those reactions forward; leaving
// them reversible lets FBA mint ATP from implausible sources.  No LP and no
// edges: the check reads stoichiometry and bounds only.
package diphosphate

import (
	"github.com/macaw-metabolics/macaw/internal/checks/report"
	"github.com/macaw-metabolics/macaw/internal/domain/metnet"
	"github.com/macaw-metabolics/macaw/internal/infrastructure/monitoring/logging"
	"github.com/macaw-metabolics/macaw/pkg/errors"
)

// Options configures a run.
type Options struct {
	// PpiIDs are the metabolite IDs representing diphosphate ions, one per
	// compartment.
	PpiIDs []string
	// PiIDs are the metabolite IDs representing inorganic monophosphate.
	// Reactions that involve both species are taken to be diphosphatases or
	// antiporters and left alone.
	PiIDs []string

	Log logging.Logger
}

func (o Options) withDefaults() Options {
	if o.Log == nil {
		o.Log = logging.NewNopLogger()
	}
	return o
}

// Result carries the verdicts; the diphosphate test contributes no edges.
type Result struct {
	Verdicts map[string]report.Verdict
}

// Run executes the diphosphate test.  When either ID list is missing the
// check degrades to all-"ok" verdicts with a warning, per the battery's
// configuration-error policy.
func Run(m *metnet.Model, opts Options) *Result {
	opts = opts.withDefaults()
	log := opts.Log.Named("diphosphate")

	res := &Result{Verdicts: make(map[string]report.Verdict, len(m.Reactions()))}
	for _, r := range m.Reactions() {
		res.Verdicts[r.ID] = report.OK()
	}

	if len(opts.PpiIDs) == 0 || len(opts.PiIDs) == 0 {
		err := errors.InvalidConfig(
			"diphosphate test needs both diphosphate and phosphate metabolite IDs")
		log.Warn("skipping diphosphate test", logging.Err(err))
		return res
	}

	log.Info("starting diphosphate test", logging.Int("reactions", len(m.Reactions())))

	ppi := toSet(opts.PpiIDs)
	pi := toSet(opts.PiIDs)

	flagged := 0
	for _, r := range m.Reactions() {
		if r.Exchange() || !r.Reversible() {
			continue
		}
		// Reactions involving both diphosphate and phosphate are probably
		// diphosphatases or antiporters.
		if touchesAny(r, pi) {
			continue
		}
		ppiProduct := anyIn(r.Products(), ppi)
		ppiReactant := anyIn(r.Reactants(), ppi)
		switch {
		case ppiProduct && !ppiReactant:
			res.Verdicts[r.ID] = report.Irreversible()
			flagged++
		case ppiReactant && !ppiProduct:
			res.Verdicts[r.ID] = report.FlipIrreversible()
			flagged++
		default:
			// Diphosphate on both sides (or neither): a transport reaction
			// between compartments, or not our business.
		}
	}

	log.Info("diphosphate test finished", logging.Int("flagged", flagged))
	return res
}

func toSet(ids []string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func touchesAny(r *metnet.Reaction, ids map[string]struct{}) bool {
	for metID, coef := range r.Stoich {
		if coef == 0 {
			continue
		}
		if _, ok := ids[metID]; ok {
			return true
		}
	}
	return false
}

func anyIn(metIDs []string, ids map[string]struct{}) bool {
	for _, id := range metIDs {
		if _, ok := ids[id]; ok {
			return true
		}
	}
	return false
}

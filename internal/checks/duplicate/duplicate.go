// Package duplicate implements the duplicate-reaction test: four orthogonal
// equivalence classifications over canonical reaction signatures.  Exact
// compares signed stoichiometry plus direction bits; directions compares the
// orientation-normalized unsigned form; coefficients compares participation
// signs with magnitudes discarded; redox compares reactions after stripping
// a redox carrier pair and protons, catching the same chemistry written
// against different electron carriers.
//
// Coefficients are compared as exact rationals, never through the LP's
// float tolerance.
package duplicate

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/macaw-metabolics/macaw/internal/checks/report"
	"github.com/macaw-metabolics/macaw/internal/domain/metnet"
	"github.com/macaw-metabolics/macaw/internal/infrastructure/monitoring/logging"
	"github.com/macaw-metabolics/macaw/pkg/errors"
)

// RedoxPair names the oxidized and reduced metabolite IDs of one electron
// carrier (e.g. nad_c/nadh_c).
type RedoxPair struct {
	Oxidized string
	Reduced  string
}

func (p RedoxPair) key() string { return p.Oxidized + "/" + p.Reduced }

// Options configures a run.
type Options struct {
	// RedoxPairs lists the electron carriers to normalize away in the redox
	// classification.  At least two pairs and one proton ID are needed for
	// the redox column to be meaningful; otherwise it stays all-"ok".
	RedoxPairs []RedoxPair
	// ProtonIDs lists proton metabolite IDs (typically one per compartment).
	ProtonIDs []string

	Log logging.Logger
}

func (o Options) withDefaults() Options {
	if o.Log == nil {
		o.Log = logging.NewNopLogger()
	}
	return o
}

// Result carries the four verdict columns and the monopartite edges.
type Result struct {
	Exact        map[string]report.Verdict
	Directions   map[string]report.Verdict
	Coefficients map[string]report.Verdict
	Redox        map[string]report.Verdict
	Edges        report.EdgeSet
}

// Run executes the duplicate test.  Deterministic; the model is not mutated.
func Run(m *metnet.Model, opts Options) *Result {
	opts = opts.withDefaults()
	log := opts.Log.Named("duplicate")
	log.Info("starting duplicate test", logging.Int("reactions", len(m.Reactions())))

	res := &Result{
		Exact:        make(map[string]report.Verdict),
		Directions:   make(map[string]report.Verdict),
		Coefficients: make(map[string]report.Verdict),
		Redox:        make(map[string]report.Verdict),
		Edges:        report.NewEdgeSet(),
	}
	for _, r := range m.Reactions() {
		res.Exact[r.ID] = report.OK()
		res.Directions[r.ID] = report.OK()
		res.Coefficients[r.ID] = report.OK()
		res.Redox[r.ID] = report.OK()
	}

	rxns := m.Reactions()

	// Exact: identical signed stoichiometry and direction bits.
	classify(rxns, exactSignature, nil, res.Exact, res.Edges)

	// Directions: orientation-normalized signature matches while the exact
	// one differs.
	classify(rxns, directionSignature, exactSignature, res.Directions, res.Edges)

	// Coefficients: participation signs match while the stoichiometry
	// differs.
	classify(rxns, signSignature, stoichSignature, res.Coefficients, res.Edges)

	// Redox: remainder signatures match across different carriers.
	if pairs := validateRedox(m, opts, log); pairs != nil {
		classifyRedox(rxns, pairs, toSet(opts.ProtonIDs), res.Redox, res.Edges)
	}

	flagged := 0
	for _, r := range rxns {
		if res.Exact[r.ID].Flagged() || res.Directions[r.ID].Flagged() ||
			res.Coefficients[r.ID].Flagged() || res.Redox[r.ID].Flagged() {
			flagged++
		}
	}
	log.Info("duplicate test finished", logging.Int("flagged", flagged))
	return res
}

// validateRedox checks the redox configuration; nil means the redox column
// stays all-"ok".
func validateRedox(m *metnet.Model, opts Options, log logging.Logger) []RedoxPair {
	if len(opts.RedoxPairs) < 2 || len(opts.ProtonIDs) == 0 {
		if len(opts.RedoxPairs) > 0 || len(opts.ProtonIDs) > 0 {
			log.Warn("skipping redox classification",
				logging.Err(errors.InvalidConfig(
					"redox classification needs at least two redox pairs and one proton ID")))
		}
		return nil
	}
	for _, p := range opts.RedoxPairs {
		for _, id := range []string{p.Oxidized, p.Reduced} {
			if _, ok := m.Metabolite(id); !ok {
				log.Warn("skipping redox classification",
					logging.Err(errors.InvalidConfig(
						fmt.Sprintf("redox pair metabolite %q is not in the model", id))))
				return nil
			}
		}
	}
	for _, id := range opts.ProtonIDs {
		if _, ok := m.Metabolite(id); !ok {
			log.Warn("skipping redox classification",
				logging.Err(errors.InvalidConfig(
					fmt.Sprintf("proton metabolite %q is not in the model", id))))
			return nil
		}
	}
	return opts.RedoxPairs
}

// classify groups reactions by groupSig; within a group, two reactions are
// duplicates unless distinctSig (when non-nil) also matches, which excludes
// pairs that an earlier, stricter classification already owns.
func classify(
	rxns []*metnet.Reaction,
	groupSig func(*metnet.Reaction) string,
	distinctSig func(*metnet.Reaction) string,
	verdicts map[string]report.Verdict,
	edges report.EdgeSet,
) {
	groups := make(map[string][]*metnet.Reaction)
	for _, r := range rxns {
		key := groupSig(r)
		groups[key] = append(groups[key], r)
	}
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		for _, r := range group {
			var dupes []string
			for _, s := range group {
				if s.ID == r.ID {
					continue
				}
				if distinctSig != nil && distinctSig(r) == distinctSig(s) {
					continue
				}
				dupes = append(dupes, s.ID)
				edges.Add(report.Monopartite(r.ID, s.ID))
			}
			if len(dupes) > 0 {
				verdicts[r.ID] = report.Duplicate(dupes)
			}
		}
	}
}

// classifyRedox flags reactions whose carrier-stripped remainders coincide
// while the carriers themselves differ.
func classifyRedox(
	rxns []*metnet.Reaction,
	pairs []RedoxPair,
	protons map[string]struct{},
	verdicts map[string]report.Verdict,
	edges report.EdgeSet,
) {
	type member struct {
		r     *metnet.Reaction
		pairs string // sorted keys of the carriers this reaction uses
	}
	groups := make(map[string][]member)
	for _, r := range rxns {
		used := carriersOf(r, pairs)
		if len(used) == 0 {
			continue
		}
		remainder := stripCarriers(r, pairs, protons)
		if len(remainder) == 0 {
			// Pure carrier chemistry or transport; nothing left to compare.
			continue
		}
		sig := directionSignatureOf(remainder)
		keys := make([]string, 0, len(used))
		for _, p := range used {
			keys = append(keys, p.key())
		}
		sort.Strings(keys)
		groups[sig] = append(groups[sig], member{r: r, pairs: strings.Join(keys, ",")})
	}
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		for _, a := range group {
			var dupes []string
			for _, b := range group {
				if a.r.ID == b.r.ID || a.pairs == b.pairs {
					continue
				}
				dupes = append(dupes, b.r.ID)
				edges.Add(report.Monopartite(a.r.ID, b.r.ID))
			}
			if len(dupes) > 0 {
				verdicts[a.r.ID] = report.Duplicate(dupes)
			}
		}
	}
}

// carriersOf returns the redox pairs fully present in the reaction.
func carriersOf(r *metnet.Reaction, pairs []RedoxPair) []RedoxPair {
	var used []RedoxPair
	for _, p := range pairs {
		if r.Stoich[p.Oxidized] != 0 && r.Stoich[p.Reduced] != 0 {
			used = append(used, p)
		}
	}
	return used
}

// stripCarriers removes every present carrier-pair member and all protons.
func stripCarriers(r *metnet.Reaction, pairs []RedoxPair, protons map[string]struct{}) map[string]float64 {
	drop := make(map[string]struct{})
	for _, p := range carriersOf(r, pairs) {
		drop[p.Oxidized] = struct{}{}
		drop[p.Reduced] = struct{}{}
	}
	for id := range protons {
		drop[id] = struct{}{}
	}
	out := make(map[string]float64)
	for metID, coef := range r.Stoich {
		if coef == 0 {
			continue
		}
		if _, ok := drop[metID]; ok {
			continue
		}
		out[metID] = coef
	}
	return out
}

// ratString renders a coefficient as an exact rational.
func ratString(coef float64) string {
	rat := new(big.Rat).SetFloat64(coef)
	if rat == nil {
		return "NaN"
	}
	return rat.RatString()
}

// stoichSignature is the signed stoichiometry as exact rationals.
func stoichSignature(r *metnet.Reaction) string {
	parts := make([]string, 0, len(r.Stoich))
	for metID, coef := range r.Stoich {
		if coef != 0 {
			parts = append(parts, metID+":"+ratString(coef))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// exactSignature is the stoichiometry plus the direction bits.
func exactSignature(r *metnet.Reaction) string {
	return fmt.Sprintf("%s#rev=%t,%t", stoichSignature(r), r.LB < 0, r.UB > 0)
}

// directionSignature is the orientation-normalized unsigned form.
func directionSignature(r *metnet.Reaction) string {
	active := make(map[string]float64, len(r.Stoich))
	for metID, coef := range r.Stoich {
		if coef != 0 {
			active[metID] = coef
		}
	}
	return directionSignatureOf(active)
}

// directionSignatureOf renders (metabolite, |coefficient|, side) for both
// orientations and keeps the lexicographically smaller, giving a stable
// canonicalization that ignores how the equation happens to be written.
func directionSignatureOf(stoich map[string]float64) string {
	render := func(flip bool) string {
		parts := make([]string, 0, len(stoich))
		for metID, coef := range stoich {
			side := "r"
			if (coef > 0) != flip {
				side = "p"
			}
			abs := coef
			if abs < 0 {
				abs = -abs
			}
			parts = append(parts, metID+":"+ratString(abs)+":"+side)
		}
		sort.Strings(parts)
		return strings.Join(parts, "|")
	}
	fwd, rev := render(false), render(true)
	if rev < fwd {
		return rev
	}
	return fwd
}

// signSignature keeps participation signs only.
func signSignature(r *metnet.Reaction) string {
	parts := make([]string, 0, len(r.Stoich))
	for metID, coef := range r.Stoich {
		switch {
		case coef < 0:
			parts = append(parts, metID+":-")
		case coef > 0:
			parts = append(parts, metID+":+")
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

func toSet(ids []string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

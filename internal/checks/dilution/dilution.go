// Package dilution implements the dilution test: metabolites that are only
// ever recycled, never net produced, are mathematically "free" in FBA.
// Imposing a dilution sink per metabolite — a reaction that irreversibly
// consumes it, coupled to the total |flux| through its other reactions —
// exposes every reaction that depends on such perfect recycling.
//
// The coupling coefficient is α = 1/DilFactor (default 1/1000): the
// dilution flux must equal α times the sum of the absolute fluxes through
// the metabolite's reactions.  The |·| terms stay linear because the solver
// splits every reaction into non-negative forward and reverse parts.
//
// Each per-metabolite experiment is independent and runs on its own model
// clone under a watchdog: timeouts retry up to MaxAttempts, and a
// metabolite that exhausts its attempts conservatively marks all of its
// reactions as blocked by it.
package dilution

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/macaw-metabolics/macaw/internal/checks/deadend"
	"github.com/macaw-metabolics/macaw/internal/checks/report"
	"github.com/macaw-metabolics/macaw/internal/domain/metnet"
	"github.com/macaw-metabolics/macaw/internal/infrastructure/monitoring/logging"
	"github.com/macaw-metabolics/macaw/internal/infrastructure/solver"
	"github.com/macaw-metabolics/macaw/internal/infrastructure/worker"
	"github.com/macaw-metabolics/macaw/pkg/errors"
)

const (
	dilutionSuffix = "_dilution"
	leakageSuffix  = "_leakage"
)

// Options configures a run.
type Options struct {
	// MediaMets lists metabolite IDs (or display names) whose uptake stays
	// open.  When non-empty, every other exchange gets its lower bound
	// raised to zero.
	MediaMets []string
	// DeadEnd, when provided, pre-zeroes reactions the dead-end test
	// already proved blocked; dilution constraints can otherwise unblock
	// dead ends and balloon the solve space.
	DeadEnd *deadend.Result

	// ZeroThresh is the LP zero tolerance (default 1e-8).
	ZeroThresh float64
	// Timeout bounds each per-metabolite experiment (default 1800 s).
	Timeout time.Duration
	// MaxAttempts caps watchdog retries per metabolite (default 3).
	MaxAttempts int
	// Threads caps concurrent experiments.
	Threads int

	// DilFactor is the inverse coupling coefficient α (default 1000).
	DilFactor float64
	// LeakFlux bounds the compartment-leakage reactions (default 1; any
	// negative value disables them).
	LeakFlux float64
	// SkipSubstrings excludes metabolites whose ID or name contains one of
	// these (case-insensitive) from dilution; defaults to tRNAs and
	// cytochromes, which never have biosynthesis routes in practice.
	SkipSubstrings []string

	Log logging.Logger
}

func (o Options) withDefaults() Options {
	if o.ZeroThresh <= 0 {
		o.ZeroThresh = 1e-8
	}
	if o.Timeout <= 0 {
		o.Timeout = 1800 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.Threads <= 0 {
		o.Threads = 1
	}
	if o.DilFactor <= 0 {
		o.DilFactor = 1000
	}
	switch {
	case o.LeakFlux < 0:
		o.LeakFlux = 0
	case o.LeakFlux == 0:
		o.LeakFlux = 1
	}
	if o.SkipSubstrings == nil {
		o.SkipSubstrings = []string{"trna", "cytochrome"}
	}
	if o.Log == nil {
		o.Log = logging.NewNopLogger()
	}
	return o
}

// Result carries the verdicts and the metabolite↔reaction edges.
type Result struct {
	Verdicts map[string]report.Verdict
	Edges    report.EdgeSet
	// Exhausted lists metabolites whose experiments failed every watchdog
	// attempt and were conservatively flagged.
	Exhausted []string
}

// Run executes the dilution test.
func Run(ctx context.Context, m *metnet.Model, s solver.Solver, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	log := opts.Log.Named("dilution")
	log.Info("starting dilution test",
		logging.Int("metabolites", len(m.Metabolites())),
		logging.Int("reactions", len(m.Reactions())),
		logging.Float64("alpha", 1/opts.DilFactor))

	base := m.Clone()
	if err := base.ZeroObjective(); err != nil {
		return nil, err
	}
	if opts.DeadEnd != nil {
		if err := applyDeadEndBounds(base, opts.DeadEnd); err != nil {
			return nil, err
		}
	}
	if len(opts.MediaMets) > 0 {
		applyMedia(base, opts.MediaMets, log)
	}

	analyzer := &solver.Analyzer{
		Solver:      s,
		ZeroThresh:  opts.ZeroThresh,
		Timeout:     opts.Timeout,
		MaxAttempts: opts.MaxAttempts,
		Threads:     opts.Threads,
		Log:         log,
	}

	// Pre-pass: flux ranges without any dilution constraint.
	allRxns := make([]string, 0, len(base.Reactions()))
	for _, r := range base.Reactions() {
		allRxns = append(allRxns, r.ID)
	}
	before, err := analyzer.Ranges(ctx, base, allRxns)
	if err != nil {
		return nil, err
	}

	// Tighten reversible bounds to the feasible net-flux range so the
	// forward/reverse split cannot cheat the |flux| sum, then add leakage
	// channels for same-compound metabolite pairs in other compartments.
	constrainReversible(base, before, opts.ZeroThresh, log)
	if opts.LeakFlux > 0 {
		addLeakageReactions(base, opts.LeakFlux, log)
	}
	base.Seal()

	metsToDilute := selectMetabolites(m, opts.SkipSubstrings)
	log.Info("running dilution experiments",
		logging.Int("metabolites", len(metsToDilute)),
		logging.Int("threads", opts.Threads))

	exp := &experimenter{
		base:       base,
		orig:       m,
		solver:     s,
		zeroThresh: opts.ZeroThresh,
		dilFactor:  opts.DilFactor,
	}
	results, err := worker.Run(ctx, metsToDilute, exp.run, worker.Options{
		Concurrency: opts.Threads,
		ItemTimeout: opts.Timeout,
		MaxAttempts: opts.MaxAttempts,
		Logger:      log,
		RetryIf: func(err error) bool {
			return errors.IsCode(err, errors.CodeSolverTimeout)
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCancelled, "dilution test cancelled")
	}

	return aggregate(m, metsToDilute, results, before, log), nil
}

// applyDeadEndBounds zeroes out reactions the dead-end test flagged and
// pins one-way reversible reactions to their surviving direction.
func applyDeadEndBounds(base *metnet.Model, de *deadend.Result) error {
	for rxnID, v := range de.Verdicts {
		r, ok := base.Reaction(rxnID)
		if !ok {
			continue
		}
		switch v.Kind {
		case report.KindDeadEnd:
			if err := base.SetBounds(rxnID, 0, 0); err != nil {
				return err
			}
		case report.KindForwardOnly:
			if err := base.SetBounds(rxnID, 0, r.UB); err != nil {
				return err
			}
		case report.KindBackwardOnly:
			if err := base.SetBounds(rxnID, r.LB, 0); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyMedia opens uptake only for exchanges of listed metabolites.
func applyMedia(base *metnet.Model, media []string, log logging.Logger) {
	allowed := make(map[string]struct{}, len(media))
	for _, m := range media {
		allowed[m] = struct{}{}
	}
	opened := 0
	for _, r := range base.Reactions() {
		if !r.Exchange() {
			continue
		}
		metID := r.Metabolites()[0]
		met, _ := base.Metabolite(metID)
		_, byID := allowed[metID]
		_, byName := allowed[met.DisplayName()]
		if byID || byName {
			_ = base.SetBounds(r.ID, -1000, r.UB)
			opened++
		} else {
			if r.LB < 0 {
				_ = base.SetBounds(r.ID, 0, r.UB)
			}
		}
	}
	log.Info("adjusted exchange bounds for growth medium",
		logging.Int("uptake_open", opened))
}

// constrainReversible pins each reversible non-exchange reaction to its
// feasible net-flux range (rounded to 3 decimals).
func constrainReversible(base *metnet.Model, ranges map[string]solver.FluxRange, zeroThresh float64, log logging.Logger) {
	tightened := 0
	for _, r := range base.Reactions() {
		if !r.Reversible() || r.Exchange() {
			continue
		}
		fr, ok := ranges[r.ID]
		if !ok || fr.Failed() {
			continue
		}
		lo, hi := fr.Min, fr.Max
		switch {
		case math.Abs(lo) <= zeroThresh && math.Abs(hi) <= zeroThresh:
			_ = base.SetBounds(r.ID, 0, 0)
		case lo >= -zeroThresh && hi > zeroThresh:
			_ = base.SetBounds(r.ID, 0, keepFinite(hi, r.UB))
		case lo < -zeroThresh && hi <= zeroThresh:
			_ = base.SetBounds(r.ID, keepFinite(lo, r.LB), 0)
		default:
			_ = base.SetBounds(r.ID, round3(keepFinite(lo, r.LB)), round3(keepFinite(hi, r.UB)))
		}
		tightened++
	}
	log.Debug("tightened reversible reaction bounds", logging.Int("reactions", tightened))
}

// keepFinite falls back to the existing bound when FVA reported an
// unbounded direction.
func keepFinite(v, fallback float64) float64 {
	if math.IsInf(v, 0) {
		return fallback
	}
	return v
}

func round3(x float64) float64 {
	if math.IsInf(x, 0) {
		return x
	}
	return math.Round(x*1000) / 1000
}

// compartmentSuffix strips a trailing compartment tag from a metabolite
// display name, e.g. "pyruvate [c]" → "pyruvate".
func compartmentSuffix(comp string) *regexp.Regexp {
	return regexp.MustCompile(` ?[\(\[\{]?` + regexp.QuoteMeta(comp) + `[\)\]\}]?$`)
}

// addLeakageReactions connects same-compound metabolites across
// compartments with small reversible channels, so antiport-only import
// schemes are not starved by their own dilution fluxes.
func addLeakageReactions(base *metnet.Model, bound float64, log logging.Logger) {
	byName := make(map[string][]*metnet.Metabolite)
	for _, met := range base.Metabolites() {
		name := met.DisplayName()
		if met.Compartment != "" {
			name = compartmentSuffix(met.Compartment).ReplaceAllString(name, "")
		}
		byName[name] = append(byName[name], met)
	}
	names := make([]string, 0, len(byName))
	for name, group := range byName {
		if len(group) > 1 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	added := 0
	for _, name := range names {
		group := byName[name]
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				m1, m2 := group[i], group[j]
				if m1.Compartment == m2.Compartment || !shareReaction(base, m1.ID, m2.ID) {
					continue
				}
				leak := &metnet.Reaction{
					ID:     m1.ID + "--" + m2.ID + leakageSuffix,
					Name:   name + " leakage",
					Stoich: map[string]float64{m1.ID: -1, m2.ID: 1},
					LB:     -bound,
					UB:     bound,
				}
				if err := base.AddReaction(leak); err == nil {
					added++
				}
			}
		}
	}
	log.Debug("added compartment leakage reactions", logging.Int("reactions", added))
}

func shareReaction(base *metnet.Model, m1, m2 string) bool {
	in := make(map[string]struct{})
	for _, r := range base.ReactionsOf(m1) {
		in[r.ID] = struct{}{}
	}
	for _, r := range base.ReactionsOf(m2) {
		if _, ok := in[r.ID]; ok {
			return true
		}
	}
	return false
}

// selectMetabolites returns the dilution targets in sorted order.
func selectMetabolites(m *metnet.Model, skip []string) []string {
	var out []string
	for _, met := range m.Metabolites() {
		id := strings.ToLower(met.ID)
		name := strings.ToLower(met.Name)
		skipIt := false
		for _, sub := range skip {
			if sub == "" {
				continue
			}
			if strings.Contains(id, sub) || strings.Contains(name, sub) {
				skipIt = true
				break
			}
		}
		if !skipIt {
			out = append(out, met.ID)
		}
	}
	sort.Strings(out)
	return out
}

// experiment is the outcome of one per-metabolite dilution experiment: the
// original-model reactions of that metabolite that are blocked under its
// dilution constraint.
type experiment struct {
	metID   string
	blocked map[string]bool
}

type experimenter struct {
	base       *metnet.Model
	orig       *metnet.Model
	solver     solver.Solver
	zeroThresh float64
	dilFactor  float64
}

// run performs one experiment: clone, add the dilution sink and coupling
// constraint for the metabolite, then bound every original reaction that
// involves it.
func (e *experimenter) run(ctx context.Context, metID string, attempt int) (experiment, error) {
	dil := e.base.Clone()
	dilRxnID := metID + dilutionSuffix
	if err := dil.AddReaction(&metnet.Reaction{
		ID:     dilRxnID,
		Name:   metID + " dilution",
		Stoich: map[string]float64{metID: -1},
		LB:     0,
		UB:     math.Inf(1),
	}); err != nil {
		return experiment{}, err
	}

	constraint := metnet.Constraint{
		Name: fmt.Sprintf("%s_dilution_constraint", metID),
		Net:  map[string]float64{dilRxnID: -e.dilFactor},
		Abs:  make(map[string]float64),
	}
	for _, r := range dil.ReactionsOf(metID) {
		if r.ID == dilRxnID {
			continue
		}
		constraint.Abs[r.ID] = 1
	}
	if err := dil.AddConstraint(constraint); err != nil {
		return experiment{}, err
	}

	analyzer := &solver.Analyzer{
		Solver:     e.solver,
		ZeroThresh: e.zeroThresh,
		Log:        logging.NewNopLogger(),
	}

	out := experiment{metID: metID, blocked: make(map[string]bool)}
	for _, r := range e.orig.ReactionsOf(metID) {
		fr, err := analyzer.Range(ctx, dil, r.ID)
		if err != nil {
			if errors.IsCode(err, errors.CodeSolverTimeout) || ctx.Err() != nil {
				return experiment{}, err
			}
			// Infeasible and numerical outcomes read as "cannot carry flux
			// under this dilution constraint".
			out.blocked[r.ID] = true
			continue
		}
		if fr.Blocked() {
			out.blocked[r.ID] = true
		}
	}
	return out, nil
}

// aggregate fuses the per-metabolite experiments with the no-dilution
// pre-pass into the final verdicts.
func aggregate(
	m *metnet.Model,
	metsToDilute []string,
	results []worker.Result[experiment],
	before map[string]solver.FluxRange,
	log logging.Logger,
) *Result {
	res := &Result{
		Verdicts: make(map[string]report.Verdict, len(m.Reactions())),
		Edges:    report.NewEdgeSet(),
	}

	// blockedUnder collects, per reaction, the metabolites whose dilution
	// constraint blocks it.
	blockedUnder := make(map[string][]string)
	feasibleUnder := make(map[string]bool)
	for i, wr := range results {
		metID := metsToDilute[i]
		switch wr.Status {
		case worker.StatusSuccess:
			for _, r := range m.ReactionsOf(metID) {
				if wr.Value.blocked[r.ID] {
					blockedUnder[r.ID] = append(blockedUnder[r.ID], metID)
				} else {
					feasibleUnder[r.ID] = true
				}
			}
		default:
			// Watchdog exhausted (or the experiment kept failing):
			// conservatively treat every reaction of this metabolite as
			// blocked by it.
			res.Exhausted = append(res.Exhausted, metID)
			log.Error("dilution experiment exhausted its attempts",
				logging.String("metabolite", metID),
				logging.Int("attempts", wr.Attempts),
				logging.Err(wr.Err))
			for _, r := range m.ReactionsOf(metID) {
				blockedUnder[r.ID] = append(blockedUnder[r.ID], metID)
			}
		}
	}
	sort.Strings(res.Exhausted)

	unblocked := 0
	for _, r := range m.Reactions() {
		blockedBefore := before[r.ID].Blocked()
		mets := blockedUnder[r.ID]
		switch {
		case blockedBefore && feasibleUnder[r.ID]:
			// A reaction that only moves once a dilution sink exists.
			res.Verdicts[r.ID] = report.UnblockedByDilution()
			unblocked++
		case blockedBefore:
			res.Verdicts[r.ID] = report.AlwaysBlocked()
		case len(mets) > 0:
			res.Verdicts[r.ID] = report.BlockedByDilution(mets)
			for _, metID := range mets {
				res.Edges.Add(report.Bipartite(metID, r.ID))
			}
		default:
			res.Verdicts[r.ID] = report.OK()
		}
	}

	flagged := 0
	for _, v := range res.Verdicts {
		if v.Kind == report.KindBlockedByDilution {
			flagged++
		}
	}
	log.Info("dilution test finished",
		logging.Int("blocked_by_dilution", flagged),
		logging.Int("unblocked_by_dilution", unblocked),
		logging.Int("exhausted_metabolites", len(res.Exhausted)))
	return res
}

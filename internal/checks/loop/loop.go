// Package loop implements the thermodynamically-infeasible-cycle test.
//
// Phase 1 closes every exchange reaction and zeroes positive lower bounds
// (ATP-maintenance style constraints would otherwise make the closed model
// infeasible); any internal reaction that can still carry flux is running in
// a loop that feeds on nothing.  Phase 2 samples the surviving loop
// polytope and connects flagged reactions whose sampled fluxes move
// together and that share at least one metabolite, separating independent
// loops from each other.
package loop

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/macaw-metabolics/macaw/internal/checks/report"
	"github.com/macaw-metabolics/macaw/internal/domain/metnet"
	"github.com/macaw-metabolics/macaw/internal/infrastructure/monitoring/logging"
	"github.com/macaw-metabolics/macaw/internal/infrastructure/solver"
	"github.com/macaw-metabolics/macaw/pkg/errors"
)

// Options configures a run.
type Options struct {
	// ZeroThresh is the magnitude below which an optimum counts as zero.
	ZeroThresh float64
	// CorrThresh is the |Pearson| cutoff for phase-2 edges.
	CorrThresh float64
	// Samples is the number of flux distributions drawn in phase 2.
	Samples int
	// Seed drives the sampler for reproducible correlations.
	Seed int64
	// Threads caps phase-1 FVA concurrency.
	Threads int
	// Timeout and MaxAttempts govern the per-solve watchdog.
	Timeout     time.Duration
	MaxAttempts int

	Log logging.Logger
}

func (o Options) withDefaults() Options {
	if o.ZeroThresh <= 0 {
		o.ZeroThresh = 1e-8
	}
	if o.CorrThresh <= 0 {
		o.CorrThresh = 0.9
	}
	if o.Samples <= 0 {
		o.Samples = 1000
	}
	if o.Seed == 0 {
		o.Seed = solver.DefaultSamplerSeed
	}
	if o.Threads <= 0 {
		o.Threads = 1
	}
	if o.Timeout <= 0 {
		o.Timeout = 300 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.Log == nil {
		o.Log = logging.NewNopLogger()
	}
	return o
}

// Result carries the verdicts and the phase-2 monopartite edges.
type Result struct {
	Verdicts map[string]report.Verdict
	Edges    report.EdgeSet
}

// Run executes both phases.  Timeouts that survive the watchdog's retries
// propagate as errors rather than verdicts, per the battery's error policy.
func Run(ctx context.Context, m *metnet.Model, s solver.Solver, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	log := opts.Log.Named("loop")
	log.Info("starting loop test",
		logging.Int("reactions", len(m.Reactions())),
		logging.Float64("corr_thresh", opts.CorrThresh))

	// Close the system: zero objective, no exchange fluxes, no forced
	// maintenance fluxes.
	closed := m.Clone()
	if err := closed.ZeroObjective(); err != nil {
		return nil, err
	}
	var internal []string
	for _, r := range closed.Reactions() {
		if r.Exchange() {
			if err := closed.SetBounds(r.ID, 0, 0); err != nil {
				return nil, err
			}
			continue
		}
		if r.LB > 0 {
			if err := closed.SetBounds(r.ID, 0, r.UB); err != nil {
				return nil, err
			}
		}
		internal = append(internal, r.ID)
	}
	closed.Seal()

	// Phase 1: FVA over the closed model.
	analyzer := &solver.Analyzer{
		Solver:      s,
		ZeroThresh:  opts.ZeroThresh,
		Timeout:     opts.Timeout,
		MaxAttempts: opts.MaxAttempts,
		Threads:     opts.Threads,
		Log:         log,
	}
	ranges, err := analyzer.Ranges(ctx, closed, internal)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Verdicts: make(map[string]report.Verdict, len(m.Reactions())),
		Edges:    report.NewEdgeSet(),
	}
	for _, r := range m.Reactions() {
		res.Verdicts[r.ID] = report.OK()
	}

	var inLoop []string
	for _, rxnID := range internal {
		fr := ranges[rxnID]
		if fr.Failed() {
			return nil, errors.New(errors.CodeSolverTimeout,
				"loop test could not bound reaction "+rxnID)
		}
		if fr.Min != 0 || fr.Max != 0 {
			res.Verdicts[rxnID] = report.InLoop()
			inLoop = append(inLoop, rxnID)
		}
	}
	log.Info("loop test phase 1 finished", logging.Int("in_loop", len(inLoop)))
	if len(inLoop) < 2 {
		return res, nil
	}

	// Phase 2: sample the loop polytope and correlate.
	sub, err := loopSubmodel(closed, inLoop)
	if err != nil {
		return nil, err
	}
	sampler := &solver.Sampler{
		Solver:     s,
		Seed:       opts.Seed,
		ZeroThresh: opts.ZeroThresh,
		Log:        log,
	}
	rxnIDs, samples, err := sampler.Sample(ctx, sub, opts.Samples)
	if err != nil {
		return nil, err
	}

	series := make(map[string][]float64, len(rxnIDs))
	for i, rxnID := range rxnIDs {
		col := make([]float64, len(samples))
		nonZero := true
		for j, sample := range samples {
			col[j] = sample[i]
			if sample[i] == 0 {
				nonZero = false
			}
		}
		// Reactions that ever sample to exactly zero are dropped from the
		// correlation screen, mirroring the original battery.
		if nonZero {
			series[rxnID] = col
		}
	}

	edges := 0
	for i := 0; i < len(inLoop); i++ {
		for j := i + 1; j < len(inLoop); j++ {
			r1, r2 := inLoop[i], inLoop[j]
			x, ok1 := series[r1]
			y, ok2 := series[r2]
			if !ok1 || !ok2 {
				continue
			}
			if !shareMetabolite(m, r1, r2) {
				continue
			}
			corr := stat.Correlation(x, y, nil)
			if math.IsNaN(corr) || math.Abs(corr) < opts.CorrThresh {
				continue
			}
			res.Edges.Add(report.Monopartite(r1, r2))
			edges++
		}
	}
	log.Info("loop test finished",
		logging.Int("in_loop", len(inLoop)),
		logging.Int("edges", edges))
	return res, nil
}

// loopSubmodel rebuilds a sealed model containing only the in-loop
// reactions and the metabolites they touch, so phase-2 sampling does not
// waste solves on reactions that cannot move.
func loopSubmodel(closed *metnet.Model, inLoop []string) (*metnet.Model, error) {
	metSeen := make(map[string]bool)
	var mets []*metnet.Metabolite
	var rxns []*metnet.Reaction
	for _, rxnID := range inLoop {
		r, ok := closed.Reaction(rxnID)
		if !ok {
			return nil, errors.New(errors.CodeModelUnknownReaction,
				"loop submodel references missing reaction "+rxnID)
		}
		stoich := make(map[string]float64, len(r.Stoich))
		for metID, coef := range r.Stoich {
			if coef == 0 {
				continue
			}
			stoich[metID] = coef
			if !metSeen[metID] {
				metSeen[metID] = true
				met, _ := closed.Metabolite(metID)
				mc := *met
				mets = append(mets, &mc)
			}
		}
		rxns = append(rxns, &metnet.Reaction{
			ID: r.ID, Name: r.Name, Stoich: stoich, LB: r.LB, UB: r.UB, Genes: r.Genes,
		})
	}
	return metnet.New(closed.ID+"_loops", mets, rxns)
}

// shareMetabolite reports whether two reactions have a participant in
// common.
func shareMetabolite(m *metnet.Model, r1, r2 string) bool {
	a, ok1 := m.Reaction(r1)
	b, ok2 := m.Reaction(r2)
	if !ok1 || !ok2 {
		return false
	}
	for metID, coef := range a.Stoich {
		if coef != 0 && b.Stoich[metID] != 0 {
			return true
		}
	}
	return false
}

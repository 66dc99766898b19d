// Package battery drives the five consistency checks in dependency order —
// the dead-end test feeds the dilution test, everything else is independent
// and runs concurrently — then fuses their verdicts and edge lists into the
// results table with pathway labels.
package battery

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/macaw-metabolics/macaw/internal/checks/deadend"
	"github.com/macaw-metabolics/macaw/internal/checks/dilution"
	"github.com/macaw-metabolics/macaw/internal/checks/diphosphate"
	"github.com/macaw-metabolics/macaw/internal/checks/duplicate"
	"github.com/macaw-metabolics/macaw/internal/checks/loop"
	"github.com/macaw-metabolics/macaw/internal/checks/pathway"
	"github.com/macaw-metabolics/macaw/internal/checks/report"
	"github.com/macaw-metabolics/macaw/internal/domain/metnet"
	"github.com/macaw-metabolics/macaw/internal/infrastructure/monitoring/logging"
	"github.com/macaw-metabolics/macaw/internal/infrastructure/solver"
)

// Config carries every per-check knob.  Zero values mean the documented
// defaults.
type Config struct {
	// MediaMets restricts uptake in the dilution test.
	MediaMets []string
	// RedoxPairs and ProtonIDs drive the duplicate test's redox column.
	RedoxPairs []duplicate.RedoxPair
	ProtonIDs  []string
	// PpiIDs and PiIDs drive the diphosphate test.
	PpiIDs []string
	PiIDs  []string

	ZeroThresh  float64
	CorrThresh  float64
	LoopSamples int
	Seed        int64

	// DilutionTimeout bounds each per-metabolite experiment; SolveTimeout
	// bounds individual loop/FVA solves.
	DilutionTimeout time.Duration
	SolveTimeout    time.Duration
	MaxAttempts     int
	Threads         int

	// DilFactor and LeakFlux tune the dilution constraint build.
	DilFactor float64
	LeakFlux  float64

	// UseNames and AddSuffixes control the equation column only.
	UseNames    bool
	AddSuffixes bool
}

// CheckMetrics receives per-check wall times; satisfied by the prometheus
// metrics collector.
type CheckMetrics interface {
	ObserveCheck(check string, elapsed time.Duration)
}

type nopCheckMetrics struct{}

func (nopCheckMetrics) ObserveCheck(string, time.Duration) {}

// Battery binds a solver and a logger to the check suite.
type Battery struct {
	solver  solver.Solver
	log     logging.Logger
	metrics CheckMetrics
}

// New constructs a Battery.  logger and metrics may be nil.
func New(s solver.Solver, logger logging.Logger, metrics CheckMetrics) *Battery {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = nopCheckMetrics{}
	}
	return &Battery{solver: s, log: logger, metrics: metrics}
}

// Output is the battery's combined result.
type Output struct {
	Table    *report.Table
	Edges    report.EdgeSet
	Pathways *pathway.Result
}

// RunAll executes every check against the model and returns the augmented
// results table plus the combined edge list.  The model is never mutated;
// each check works on its own clones.
func (b *Battery) RunAll(ctx context.Context, m *metnet.Model, cfg Config) (*Output, error) {
	log := b.log.Named("battery")
	start := time.Now()
	log.Info("running all consistency tests",
		logging.String("model", m.ID),
		logging.Int("metabolites", len(m.Metabolites())),
		logging.Int("reactions", len(m.Reactions())))

	var (
		dilutionRes    *dilution.Result
		deadEndRes     *deadend.Result
		diphosphateRes *diphosphate.Result
		duplicateRes   *duplicate.Result
		loopRes        *loop.Result
	)

	g, gctx := errgroup.WithContext(ctx)

	// Dead-end feeds dilution, so the two run on one lane.
	g.Go(func() error {
		t0 := time.Now()
		deadEndRes = deadend.Run(m, deadend.Options{Log: b.log})
		b.metrics.ObserveCheck("dead_end", time.Since(t0))

		t0 = time.Now()
		var err error
		dilutionRes, err = dilution.Run(gctx, m, b.solver, dilution.Options{
			MediaMets:   cfg.MediaMets,
			DeadEnd:     deadEndRes,
			ZeroThresh:  cfg.ZeroThresh,
			Timeout:     cfg.DilutionTimeout,
			MaxAttempts: cfg.MaxAttempts,
			Threads:     cfg.Threads,
			DilFactor:   cfg.DilFactor,
			LeakFlux:    cfg.LeakFlux,
			Log:         b.log,
		})
		b.metrics.ObserveCheck("dilution", time.Since(t0))
		return err
	})

	g.Go(func() error {
		t0 := time.Now()
		diphosphateRes = diphosphate.Run(m, diphosphate.Options{
			PpiIDs: cfg.PpiIDs,
			PiIDs:  cfg.PiIDs,
			Log:    b.log,
		})
		b.metrics.ObserveCheck("diphosphate", time.Since(t0))
		return nil
	})

	g.Go(func() error {
		t0 := time.Now()
		duplicateRes = duplicate.Run(m, duplicate.Options{
			RedoxPairs: cfg.RedoxPairs,
			ProtonIDs:  cfg.ProtonIDs,
			Log:        b.log,
		})
		b.metrics.ObserveCheck("duplicate", time.Since(t0))
		return nil
	})

	g.Go(func() error {
		t0 := time.Now()
		var err error
		loopRes, err = loop.Run(gctx, m, b.solver, loop.Options{
			ZeroThresh:  cfg.ZeroThresh,
			CorrThresh:  cfg.CorrThresh,
			Samples:     cfg.LoopSamples,
			Seed:        cfg.Seed,
			Threads:     cfg.Threads,
			Timeout:     cfg.SolveTimeout,
			MaxAttempts: cfg.MaxAttempts,
			Log:         b.log,
		})
		b.metrics.ObserveCheck("loop", time.Since(t0))
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Union of every emitted edge list.
	edges := report.NewEdgeSet()
	edges.Union(deadEndRes.Edges)
	edges.Union(dilutionRes.Edges)
	edges.Union(duplicateRes.Edges)
	edges.Union(loopRes.Edges)

	pathways, err := pathway.Assign(edges, b.log)
	if err != nil {
		return nil, err
	}

	table := report.NewTable(m, metnet.EquationOptions{
		UseNames:    cfg.UseNames,
		AddSuffixes: cfg.AddSuffixes,
	})
	for _, row := range table.Rows() {
		row.DeadEnd = deadEndRes.Verdicts[row.ReactionID]
		row.Dilution = dilutionRes.Verdicts[row.ReactionID]
		row.Diphosphate = diphosphateRes.Verdicts[row.ReactionID]
		row.DupExact = duplicateRes.Exact[row.ReactionID]
		row.DupDirections = duplicateRes.Directions[row.ReactionID]
		row.DupCoefficients = duplicateRes.Coefficients[row.ReactionID]
		row.DupRedox = duplicateRes.Redox[row.ReactionID]
		row.Loop = loopRes.Verdicts[row.ReactionID]
		row.Pathway = pathways.Labels[row.ReactionID]
	}

	log.Info("all tests finished",
		logging.Int("pathways", pathways.Components),
		logging.Int("edges", len(edges)),
		logging.Duration("elapsed", time.Since(start)))
	return &Output{Table: table, Edges: edges, Pathways: pathways}, nil
}

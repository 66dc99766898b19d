package solver

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/macaw-metabolics/macaw/internal/domain/metnet"
	"github.com/macaw-metabolics/macaw/internal/infrastructure/monitoring/logging"
	"github.com/macaw-metabolics/macaw/internal/infrastructure/worker"
	"github.com/macaw-metabolics/macaw/pkg/errors"
)

// FluxRange is the feasible net-flux interval of one reaction.  Min and Max
// are NaN when every attempt to compute them failed; ±Inf mark unbounded
// directions.
type FluxRange struct {
	Min float64
	Max float64
}

// Failed reports whether the range could not be computed.
func (fr FluxRange) Failed() bool {
	return math.IsNaN(fr.Min) || math.IsNaN(fr.Max)
}

// Blocked reports whether the reaction cannot carry flux in either
// direction.  Failed ranges count as blocked, which is the conservative
// reading the checks need.
func (fr FluxRange) Blocked() bool {
	return fr.Failed() || (fr.Min == 0 && fr.Max == 0)
}

// Analyzer runs flux-variability queries.  Per-reaction optimizations are
// independent and fan out over the worker pool; each solve runs under
// Timeout with up to MaxAttempts attempts, stretching the budget on every
// retry the way the original battery's watchdog does.  Reactions that
// exhaust their attempts get a NaN range.
type Analyzer struct {
	Solver      Solver
	ZeroThresh  float64
	Timeout     time.Duration
	MaxAttempts int
	Threads     int
	Log         logging.Logger
}

// NewAnalyzer returns an Analyzer with the battery defaults: zero_thresh
// 1e-8, 300 s per solve, 3 attempts, single-threaded.
func NewAnalyzer(s Solver) *Analyzer {
	return &Analyzer{
		Solver:      s,
		ZeroThresh:  1e-8,
		Timeout:     300 * time.Second,
		MaxAttempts: 3,
		Threads:     1,
		Log:         logging.NewNopLogger(),
	}
}

// round snaps values within ZeroThresh of zero to zero.
func (a *Analyzer) round(x float64) float64 {
	if math.Abs(x) < a.ZeroThresh {
		return 0
	}
	return x
}

// optimize maximizes (or minimizes) the net flux through one reaction.
// Unbounded solves map to ±Inf rather than an error.
func (a *Analyzer) optimize(ctx context.Context, m *metnet.Model, rxnID string, maximize bool) (float64, error) {
	res, err := a.Solver.Solve(ctx, m, Objective{Coefs: map[string]float64{rxnID: 1}, Maximize: maximize})
	if err != nil {
		if errors.IsCode(err, errors.CodeSolverUnbounded) {
			if maximize {
				return math.Inf(1), nil
			}
			return math.Inf(-1), nil
		}
		return math.NaN(), err
	}
	return a.round(res.Objective), nil
}

// Range computes the feasible flux interval of a single reaction.
func (a *Analyzer) Range(ctx context.Context, m *metnet.Model, rxnID string) (FluxRange, error) {
	max, err := a.optimize(ctx, m, rxnID, true)
	if err != nil {
		return FluxRange{Min: math.NaN(), Max: math.NaN()}, err
	}
	min, err := a.optimize(ctx, m, rxnID, false)
	if err != nil {
		return FluxRange{Min: math.NaN(), Max: math.NaN()}, err
	}
	return FluxRange{Min: min, Max: max}, nil
}

// CanCarryFlux reports whether the reaction admits any non-zero steady-state
// flux under the model's current bounds and constraints.
func (a *Analyzer) CanCarryFlux(ctx context.Context, m *metnet.Model, rxnID string) (bool, error) {
	fr, err := a.Range(ctx, m, rxnID)
	if err != nil {
		return false, err
	}
	return !fr.Blocked(), nil
}

// Ranges computes flux intervals for all listed reactions through the
// worker pool.  Solver-recoverable failures (infeasible, unbounded handled
// above, numerical) and exhausted timeouts produce NaN ranges rather than
// errors; only cancellation aborts the sweep.
func (a *Analyzer) Ranges(ctx context.Context, m *metnet.Model, rxnIDs []string) (map[string]FluxRange, error) {
	results, err := worker.Run(ctx, rxnIDs,
		func(ctx context.Context, rxnID string, attempt int) (FluxRange, error) {
			return a.Range(ctx, m, rxnID)
		},
		worker.Options{
			Concurrency:     a.Threads,
			ItemTimeout:     a.Timeout,
			MaxAttempts:     a.MaxAttempts,
			EscalateTimeout: true,
			Logger:          a.Log,
			RetryIf: func(err error) bool {
				return errors.IsCode(err, errors.CodeSolverTimeout)
			},
		})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCancelled, "FVA sweep cancelled")
	}

	out := make(map[string]FluxRange, len(rxnIDs))
	failed := 0
	for i, res := range results {
		if res.Status != worker.StatusSuccess {
			if !errors.IsSolverRecoverable(res.Err) {
				failed++
			}
			a.Log.Debug("flux range unavailable",
				logging.String("reaction", rxnIDs[i]),
				logging.Int("attempts", res.Attempts),
				logging.Err(res.Err))
			out[rxnIDs[i]] = FluxRange{Min: math.NaN(), Max: math.NaN()}
			continue
		}
		out[rxnIDs[i]] = res.Value
	}
	if failed > 0 {
		a.Log.Warn("some flux ranges could not be computed",
			logging.Int("failed", failed),
			logging.Int("total", len(rxnIDs)))
	}
	return out, nil
}

// BlockedSet returns the sorted IDs of listed reactions that cannot carry
// flux under the model's current bounds and constraints.
func (a *Analyzer) BlockedSet(ctx context.Context, m *metnet.Model, rxnIDs []string) ([]string, error) {
	ranges, err := a.Ranges(ctx, m, rxnIDs)
	if err != nil {
		return nil, err
	}
	var blocked []string
	for id, fr := range ranges {
		if fr.Blocked() {
			blocked = append(blocked, id)
		}
	}
	sort.Strings(blocked)
	return blocked, nil
}

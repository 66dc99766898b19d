// Package solver wraps the linear-programming backend behind the three
// primitives the checks need: single FBA solves with an explicit objective,
// flux-variability ranges over reaction lists, and flux sampling.  The
// backend is gonum's simplex; the formulation splits every reaction into
// non-negative forward and reverse parts, which both converts the problem to
// standard form and gives the dilution test its linear |flux| terms.
package solver

import (
	"context"
	"time"

	"github.com/macaw-metabolics/macaw/internal/domain/metnet"
	"github.com/macaw-metabolics/macaw/pkg/errors"
)

// Objective selects what a Solve call optimizes.  When Coefs is nil the
// model's own objective vector is used.  Direction defaults to minimize, so
// callers almost always set Maximize.
type Objective struct {
	Coefs    map[string]float64
	Maximize bool
}

// Result is a primal solution: the optimal value and the net flux through
// every reaction.
type Result struct {
	Objective float64
	Fluxes    map[string]float64
}

// Solver is the LP backend contract.  Implementations must be safe for
// concurrent use: Solve never mutates the model, so one cloned model can be
// shared by a pool of workers issuing solves with different objectives.
//
// Error codes: SOLVER_001 infeasible, SOLVER_002 unbounded, SOLVER_003
// numerical trouble, SOLVER_004 watchdog timeout (Cause preserves the
// context error so errors.Is(err, context.DeadlineExceeded) holds).
type Solver interface {
	Solve(ctx context.Context, m *metnet.Model, obj Objective) (*Result, error)
}

// Metrics receives one observation per LP solve.  The status label is the
// error code string, or "OK".
type Metrics interface {
	ObserveSolve(status string, elapsed time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) ObserveSolve(string, time.Duration) {}

// NopMetrics returns a Metrics implementation that discards observations.
func NopMetrics() Metrics { return nopMetrics{} }

// statusLabel maps a solve error to its metric label.
func statusLabel(err error) string {
	return errors.GetCode(err).String()
}

package solver

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macaw-metabolics/macaw/internal/domain/metnet"
	"github.com/macaw-metabolics/macaw/pkg/errors"
)

func buildModel(t *testing.T, metIDs []string, rxns []*metnet.Reaction) *metnet.Model {
	t.Helper()
	mets := make([]*metnet.Metabolite, 0, len(metIDs))
	for _, id := range metIDs {
		mets = append(mets, &metnet.Metabolite{ID: id, Compartment: "c"})
	}
	m, err := metnet.New("test", mets, rxns)
	require.NoError(t, err)
	return m
}

// linearChain is EX_a (uptake up to 10) → R1: a→b → EX_b (export).
func linearChain(t *testing.T) *metnet.Model {
	return buildModel(t, []string{"a", "b"}, []*metnet.Reaction{
		{ID: "EX_a", Stoich: map[string]float64{"a": -1}, LB: -10, UB: 0},
		{ID: "R1", Stoich: map[string]float64{"a": -1, "b": 1}, LB: 0, UB: 1000},
		{ID: "EX_b", Stoich: map[string]float64{"b": -1}, LB: 0, UB: 1000},
	})
}

func TestSimplexMaximizeBoundedByUptake(t *testing.T) {
	m := linearChain(t)
	s := NewSimplex(nil)

	res, err := s.Solve(context.Background(), m,
		Objective{Coefs: map[string]float64{"R1": 1}, Maximize: true})
	require.NoError(t, err)
	assert.InDelta(t, 10, res.Objective, 1e-6)
	assert.InDelta(t, 10, res.Fluxes["R1"], 1e-6)
	assert.InDelta(t, -10, res.Fluxes["EX_a"], 1e-6)
	assert.InDelta(t, 10, res.Fluxes["EX_b"], 1e-6)
}

func TestSimplexMinimizeIsZero(t *testing.T) {
	m := linearChain(t)
	s := NewSimplex(nil)

	res, err := s.Solve(context.Background(), m,
		Objective{Coefs: map[string]float64{"R1": -1}, Maximize: true})
	require.NoError(t, err)
	// Maximizing -v_R1 means minimizing v_R1, which can reach 0.
	assert.InDelta(t, 0, res.Objective, 1e-6)
}

func TestSimplexBlockedReaction(t *testing.T) {
	// c has no producer, so R2 can never carry flux.
	m := buildModel(t, []string{"b", "c"}, []*metnet.Reaction{
		{ID: "R2", Stoich: map[string]float64{"c": -1, "b": 1}, LB: 0, UB: 1000},
		{ID: "EX_b", Stoich: map[string]float64{"b": -1}, LB: 0, UB: 1000},
	})
	s := NewSimplex(nil)

	res, err := s.Solve(context.Background(), m,
		Objective{Coefs: map[string]float64{"R2": 1}, Maximize: true})
	require.NoError(t, err)
	assert.InDelta(t, 0, res.Objective, 1e-6)
}

func TestSimplexInfeasibleForcedFlux(t *testing.T) {
	// R must run at ≥ 5 but its substrate has no source.
	m := buildModel(t, []string{"a", "b"}, []*metnet.Reaction{
		{ID: "R", Stoich: map[string]float64{"a": -1, "b": 1}, LB: 5, UB: 10},
	})
	s := NewSimplex(nil)

	_, err := s.Solve(context.Background(), m,
		Objective{Coefs: map[string]float64{"R": 1}, Maximize: true})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeSolverInfeasible))
}

func TestSimplexUnboundedCycle(t *testing.T) {
	m := buildModel(t, []string{"a", "b"}, []*metnet.Reaction{
		{ID: "R1", Stoich: map[string]float64{"a": -1, "b": 1}, LB: 0, UB: math.Inf(1)},
		{ID: "R2", Stoich: map[string]float64{"b": -1, "a": 1}, LB: 0, UB: math.Inf(1)},
	})
	s := NewSimplex(nil)

	_, err := s.Solve(context.Background(), m,
		Objective{Coefs: map[string]float64{"R1": 1}, Maximize: true})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeSolverUnbounded))
}

func TestSimplexRedundantMassBalanceRows(t *testing.T) {
	// A reversible triangle has linearly dependent balance rows; the rank
	// reduction must absorb them instead of failing.
	m := buildModel(t, []string{"a", "b", "c"}, []*metnet.Reaction{
		{ID: "R1", Stoich: map[string]float64{"a": -1, "b": 1}, LB: -1000, UB: 1000},
		{ID: "R2", Stoich: map[string]float64{"b": -1, "c": 1}, LB: -1000, UB: 1000},
		{ID: "R3", Stoich: map[string]float64{"c": -1, "a": 1}, LB: -1000, UB: 1000},
	})
	s := NewSimplex(nil)

	res, err := s.Solve(context.Background(), m,
		Objective{Coefs: map[string]float64{"R1": 1}, Maximize: true})
	require.NoError(t, err)
	assert.InDelta(t, 1000, res.Objective, 1e-6)
	// All three fluxes move together around the cycle.
	assert.InDelta(t, res.Fluxes["R1"], res.Fluxes["R2"], 1e-6)
	assert.InDelta(t, res.Fluxes["R2"], res.Fluxes["R3"], 1e-6)
}

func TestSimplexDilutionCouplingBlocksRecycle(t *testing.T) {
	// Pure recycle R1: a→b, R2: b→a.  Adding a dilution sink for "a" with
	// the |flux| coupling forces every flux to zero.
	m := buildModel(t, []string{"a", "b"}, []*metnet.Reaction{
		{ID: "R1", Stoich: map[string]float64{"a": -1, "b": 1}, LB: 0, UB: 1000},
		{ID: "R2", Stoich: map[string]float64{"b": -1, "a": 1}, LB: 0, UB: 1000},
	})
	cp := m.Clone()
	require.NoError(t, cp.AddReaction(&metnet.Reaction{
		ID: "a_dilution", Stoich: map[string]float64{"a": -1}, LB: 0, UB: math.Inf(1),
	}))
	require.NoError(t, cp.AddConstraint(metnet.Constraint{
		Name: "a_dilution_constraint",
		Abs:  map[string]float64{"R1": 1, "R2": 1},
		Net:  map[string]float64{"a_dilution": -1000},
	}))

	s := NewSimplex(nil)
	res, err := s.Solve(context.Background(), cp,
		Objective{Coefs: map[string]float64{"R1": 1}, Maximize: true})
	require.NoError(t, err)
	assert.InDelta(t, 0, res.Objective, 1e-6)

	// Without the coupling the recycle spins freely.
	free := m.Clone()
	res, err = s.Solve(context.Background(), free,
		Objective{Coefs: map[string]float64{"R1": 1}, Maximize: true})
	require.NoError(t, err)
	assert.InDelta(t, 1000, res.Objective, 1e-6)
}

func TestSimplexPositiveLowerBoundHonored(t *testing.T) {
	m := buildModel(t, []string{"a", "b"}, []*metnet.Reaction{
		{ID: "EX_a", Stoich: map[string]float64{"a": -1}, LB: -100, UB: 0},
		{ID: "R1", Stoich: map[string]float64{"a": -1, "b": 1}, LB: 3, UB: 50},
		{ID: "EX_b", Stoich: map[string]float64{"b": -1}, LB: 0, UB: 1000},
	})
	s := NewSimplex(nil)

	res, err := s.Solve(context.Background(), m,
		Objective{Coefs: map[string]float64{"R1": -1}, Maximize: true})
	require.NoError(t, err)
	// Minimum feasible flux is the lower bound, not zero.
	assert.InDelta(t, -3, res.Objective, 1e-6)
}

func TestSimplexWatchdogCancellation(t *testing.T) {
	m := linearChain(t)
	s := NewSimplex(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Solve(ctx, m, Objective{Coefs: map[string]float64{"R1": 1}, Maximize: true})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeCancelled))

	deadlineCtx, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()
	_, err = s.Solve(deadlineCtx, m, Objective{Coefs: map[string]float64{"R1": 1}, Maximize: true})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeSolverTimeout))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIndependentRowsDetectsInconsistency(t *testing.T) {
	rows := [][]float64{
		{1, 1},
		{2, 2},
	}
	_, _, feasible := independentRows(rows, []float64{1, 3}, rankTol)
	assert.False(t, feasible)

	kept, rhs, feasible := independentRows(rows, []float64{1, 2}, rankTol)
	assert.True(t, feasible)
	assert.Len(t, kept, 1)
	assert.Len(t, rhs, 1)
}

package solver

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/macaw-metabolics/macaw/internal/domain/metnet"
	"github.com/macaw-metabolics/macaw/pkg/errors"
)

// rankTol is the pivot tolerance used when dropping linearly dependent
// mass-balance rows (stoichiometric matrices routinely carry conserved
// pools, and the simplex backend requires full row rank).
const rankTol = 1e-9

// SimplexSolver solves FBA problems with gonum's simplex after converting
// them to standard form.
//
// Conversion: every reaction flux v is split into non-negative forward and
// reverse parts, v = f − b.  Finite bounds become equality rows with slack
// variables; extra model constraints may reference |v| = f + b linearly.
// The simplex call itself cannot be interrupted, so Solve enforces the
// context deadline with a watchdog select: on expiry the solve goroutine is
// abandoned and finishes (at most one LP quantum) in the background.
type SimplexSolver struct {
	metrics Metrics
}

// NewSimplex returns a SimplexSolver reporting to the given metrics sink
// (nil for none).
func NewSimplex(metrics Metrics) *SimplexSolver {
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &SimplexSolver{metrics: metrics}
}

// Solve optimizes obj over m's flux polytope.
func (s *SimplexSolver) Solve(ctx context.Context, m *metnet.Model, obj Objective) (*Result, error) {
	start := time.Now()
	res, err := s.solve(ctx, m, obj)
	s.metrics.ObserveSolve(statusLabel(err), time.Since(start))
	return res, err
}

func (s *SimplexSolver) solve(ctx context.Context, m *metnet.Model, obj Objective) (*Result, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		code := errors.CodeSolverTimeout
		if ctxErr == context.Canceled {
			code = errors.CodeCancelled
		}
		return nil, errors.Wrap(ctxErr, code, "LP solve not started")
	}

	prob, err := assemble(m, obj)
	if err != nil {
		return nil, err
	}

	type outcome struct {
		res *Result
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := prob.run()
		ch <- outcome{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		code := errors.CodeSolverTimeout
		if ctx.Err() == context.Canceled {
			code = errors.CodeCancelled
		}
		return nil, errors.Wrap(ctx.Err(), code, "LP solve abandoned by watchdog")
	case o := <-ch:
		return o.res, o.err
	}
}

// problem is an assembled standard-form LP: minimize c·x subject to
// rows·x = rhs, x ≥ 0.
type problem struct {
	rxnIDs []string
	nVars  int
	rows   [][]float64
	rhs    []float64
	c      []float64
	// maximize records the caller's direction so the reported objective
	// value can be negated back.
	maximize bool
}

// fwdIdx and revIdx locate the split variables of reaction i.
func fwdIdx(i int) int { return 2 * i }
func revIdx(i int) int { return 2*i + 1 }

func assemble(m *metnet.Model, obj Objective) (*problem, error) {
	rxns := m.Reactions()
	p := &problem{
		rxnIDs:   make([]string, len(rxns)),
		nVars:    2 * len(rxns),
		maximize: obj.Maximize,
	}
	rxnPos := make(map[string]int, len(rxns))
	for i, r := range rxns {
		p.rxnIDs[i] = r.ID
		rxnPos[r.ID] = i
	}

	type entry struct {
		col int
		val float64
	}
	var rows [][]entry
	var rhs []float64

	addRow := func(es []entry, b float64) {
		rows = append(rows, es)
		rhs = append(rhs, b)
	}
	addVar := func() int {
		idx := p.nVars
		p.nVars++
		return idx
	}

	// boundRows pins a single non-negative variable into [lo, hi].
	boundRows := func(col int, lo, hi float64) {
		if lo == hi {
			addRow([]entry{{col, 1}}, lo)
			return
		}
		if lo > 0 {
			s := addVar()
			addRow([]entry{{col, 1}, {s, -1}}, lo)
		}
		if !math.IsInf(hi, 1) {
			s := addVar()
			addRow([]entry{{col, 1}, {s, 1}}, hi)
		}
	}

	for i, r := range rxns {
		fLo, fHi := math.Max(0, r.LB), math.Max(0, r.UB)
		bLo, bHi := math.Max(0, -r.UB), math.Max(0, -r.LB)
		boundRows(fwdIdx(i), fLo, fHi)
		boundRows(revIdx(i), bLo, bHi)
	}

	// Steady-state mass balance, one row per participating metabolite.
	for _, met := range m.Metabolites() {
		participants := m.ReactionsOf(met.ID)
		if len(participants) == 0 {
			continue
		}
		es := make([]entry, 0, 2*len(participants))
		for _, r := range participants {
			coef := r.Stoich[met.ID]
			i := rxnPos[r.ID]
			es = append(es, entry{fwdIdx(i), coef}, entry{revIdx(i), -coef})
		}
		addRow(es, 0)
	}

	// Extra linear constraints (net and |flux| terms).
	for _, c := range m.Constraints() {
		coefs := make(map[int]float64)
		for rxnID, v := range c.Net {
			i := rxnPos[rxnID]
			coefs[fwdIdx(i)] += v
			coefs[revIdx(i)] -= v
		}
		for rxnID, v := range c.Abs {
			i := rxnPos[rxnID]
			coefs[fwdIdx(i)] += v
			coefs[revIdx(i)] += v
		}
		es := make([]entry, 0, len(coefs))
		for col, v := range coefs {
			if v != 0 {
				es = append(es, entry{col, v})
			}
		}
		if c.LB == c.UB {
			addRow(es, c.LB)
			continue
		}
		// Ranged constraint: expr − (y + LB) = 0 with 0 ≤ y ≤ UB − LB.
		y := addVar()
		addRow(append(es, entry{y, -1}), c.LB)
		if !math.IsInf(c.UB, 1) {
			s := addVar()
			addRow([]entry{{y, 1}, {s, 1}}, c.UB-c.LB)
		}
	}

	// Objective.
	coefs := obj.Coefs
	if coefs == nil {
		coefs = m.Objective()
	}
	p.c = make([]float64, p.nVars)
	for rxnID, v := range coefs {
		i, ok := rxnPos[rxnID]
		if !ok {
			return nil, errors.New(errors.CodeModelUnknownReaction,
				fmt.Sprintf("objective references unknown reaction %q", rxnID))
		}
		sign := 1.0
		if obj.Maximize {
			sign = -1.0
		}
		p.c[fwdIdx(i)] += sign * v
		p.c[revIdx(i)] -= sign * v
	}

	// Densify now that the variable count is final.
	p.rows = make([][]float64, len(rows))
	for ri, es := range rows {
		row := make([]float64, p.nVars)
		for _, e := range es {
			row[e.col] += e.val
		}
		p.rows[ri] = row
	}
	p.rhs = rhs
	return p, nil
}

// run reduces the system to full row rank and calls the simplex.
func (p *problem) run() (*Result, error) {
	rows, rhs, feasible := independentRows(p.rows, p.rhs, rankTol)
	if !feasible {
		return nil, errors.New(errors.CodeSolverInfeasible,
			"constraint system is inconsistent")
	}
	if len(rows) == 0 {
		// No binding constraints at all; only x ≥ 0 remains.  The optimum is
		// zero unless some variable improves the objective without limit.
		for _, cj := range p.c {
			if cj < 0 {
				return nil, errors.New(errors.CodeSolverUnbounded, "objective is unbounded")
			}
		}
		return p.extract(make([]float64, p.nVars)), nil
	}

	a := mat.NewDense(len(rows), p.nVars, nil)
	for i, row := range rows {
		a.SetRow(i, row)
	}

	optF, optX, err := lp.Simplex(p.c, a, rhs, 0, nil)
	switch err {
	case nil:
	case lp.ErrInfeasible:
		return nil, errors.New(errors.CodeSolverInfeasible, "no feasible flux distribution")
	case lp.ErrUnbounded:
		return nil, errors.New(errors.CodeSolverUnbounded, "objective is unbounded")
	default:
		return nil, errors.Wrap(err, errors.CodeSolverNumerical, "simplex failed")
	}

	res := p.extract(optX)
	res.Objective = optF
	if p.maximize {
		res.Objective = -optF
	}
	return res, nil
}

func (p *problem) extract(x []float64) *Result {
	fluxes := make(map[string]float64, len(p.rxnIDs))
	for i, id := range p.rxnIDs {
		fluxes[id] = x[fwdIdx(i)] - x[revIdx(i)]
	}
	return &Result{Fluxes: fluxes}
}

// independentRows performs Gaussian elimination on the augmented system and
// returns a maximal linearly independent subset of rows.  When a dependent
// row turns out inconsistent (0 = nonzero) the system is infeasible.
func independentRows(rows [][]float64, rhs []float64, tol float64) ([][]float64, []float64, bool) {
	n := len(rows)
	if n == 0 {
		return nil, nil, true
	}
	cols := len(rows[0])

	// Work on copies; elimination rewrites rows.
	work := make([][]float64, n)
	for i := range rows {
		work[i] = append([]float64(nil), rows[i]...)
	}
	b := append([]float64(nil), rhs...)

	var keptRows [][]float64
	var keptRHS []float64
	pivotRow := 0
	for col := 0; col < cols && pivotRow < n; col++ {
		// Partial pivoting.
		best, bestVal := -1, tol
		for i := pivotRow; i < n; i++ {
			if v := math.Abs(work[i][col]); v > bestVal {
				best, bestVal = i, v
			}
		}
		if best < 0 {
			continue
		}
		work[pivotRow], work[best] = work[best], work[pivotRow]
		b[pivotRow], b[best] = b[best], b[pivotRow]

		pv := work[pivotRow][col]
		for i := pivotRow + 1; i < n; i++ {
			if work[i][col] == 0 {
				continue
			}
			f := work[i][col] / pv
			for j := col; j < cols; j++ {
				work[i][j] -= f * work[pivotRow][j]
			}
			b[i] -= f * b[pivotRow]
		}
		// Keep the reduced row, normalized to a non-negative right-hand side.
		kept := work[pivotRow]
		kb := b[pivotRow]
		if kb < 0 {
			for j := range kept {
				kept[j] = -kept[j]
			}
			kb = -kb
		}
		keptRows = append(keptRows, kept)
		keptRHS = append(keptRHS, kb)
		pivotRow++
	}

	// Any remaining rows are all-zero combinations; their right-hand sides
	// must have vanished too.
	for i := pivotRow; i < n; i++ {
		if math.Abs(b[i]) > tol {
			return nil, nil, false
		}
	}
	return keptRows, keptRHS, true
}

// Package integration runs the battery end to end against the literal
// acceptance scenarios: small hand-built models with one known defect each.
package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/macaw-metabolics/macaw/internal/application/battery"
	"github.com/macaw-metabolics/macaw/internal/domain/metnet"
	"github.com/macaw-metabolics/macaw/internal/infrastructure/solver"
)

// buildModel assembles and seals a model from bare IDs.
func buildModel(t *testing.T, metIDs []string, rxns []*metnet.Reaction) *metnet.Model {
	t.Helper()
	mets := make([]*metnet.Metabolite, 0, len(metIDs))
	for _, id := range metIDs {
		mets = append(mets, &metnet.Metabolite{ID: id, Compartment: "c"})
	}
	m, err := metnet.New("scenario", mets, rxns)
	require.NoError(t, err)
	return m
}

// runAll executes the full battery with a modest sample count to keep the
// suite fast.
func runAll(t *testing.T, m *metnet.Model, cfg battery.Config) *battery.Output {
	t.Helper()
	if cfg.LoopSamples == 0 {
		cfg.LoopSamples = 60
	}
	b := battery.New(solver.NewSimplex(nil), nil, nil)
	out, err := b.RunAll(context.Background(), m, cfg)
	require.NoError(t, err)
	return out
}

// irrev builds an irreversible reaction with the conventional 0..1000
// bounds.
func irrev(id string, stoich map[string]float64) *metnet.Reaction {
	return &metnet.Reaction{ID: id, Stoich: stoich, LB: 0, UB: 1000}
}

// rev builds a reversible reaction with ±1000 bounds.
func rev(id string, stoich map[string]float64) *metnet.Reaction {
	return &metnet.Reaction{ID: id, Stoich: stoich, LB: -1000, UB: 1000}
}

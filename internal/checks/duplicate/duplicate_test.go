package duplicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macaw-metabolics/macaw/internal/checks/report"
	"github.com/macaw-metabolics/macaw/internal/domain/metnet"
)

func model(t *testing.T, metIDs []string, rxns []*metnet.Reaction) *metnet.Model {
	t.Helper()
	mets := make([]*metnet.Metabolite, 0, len(metIDs))
	for _, id := range metIDs {
		mets = append(mets, &metnet.Metabolite{ID: id, Compartment: "c"})
	}
	m, err := metnet.New("test", mets, rxns)
	require.NoError(t, err)
	return m
}

// Scenario S3: two byte-identical irreversible reactions are exact
// duplicates and nothing else.
func TestExactDuplicates(t *testing.T) {
	m := model(t, []string{"A", "B", "C"}, []*metnet.Reaction{
		{ID: "R1", Stoich: map[string]float64{"A": -1, "B": -1, "C": 1}, LB: 0, UB: 1000},
		{ID: "R2", Stoich: map[string]float64{"A": -1, "B": -1, "C": 1}, LB: 0, UB: 1000},
	})
	res := Run(m, Options{})

	assert.Equal(t, "R2", res.Exact["R1"].String())
	assert.Equal(t, "R1", res.Exact["R2"].String())
	assert.Equal(t, "ok", res.Directions["R1"].String())
	assert.Equal(t, "ok", res.Coefficients["R1"].String())
	assert.Equal(t, "ok", res.Redox["R1"].String())
	assert.Len(t, res.Edges, 1)
	assert.True(t, res.Edges.Contains(report.ReactionRef("R1"), report.ReactionRef("R2")))
}

func TestDirectionDuplicates(t *testing.T) {
	// Same conversion, opposite orientation and different reversibility.
	m := model(t, []string{"A", "B"}, []*metnet.Reaction{
		{ID: "FWD", Stoich: map[string]float64{"A": -1, "B": 1}, LB: 0, UB: 1000},
		{ID: "BCK", Stoich: map[string]float64{"A": 1, "B": -1}, LB: 0, UB: 1000},
		{ID: "REV", Stoich: map[string]float64{"A": -1, "B": 1}, LB: -1000, UB: 1000},
	})
	res := Run(m, Options{})

	assert.Equal(t, "BCK;REV", res.Directions["FWD"].String())
	assert.Equal(t, "FWD;REV", res.Directions["BCK"].String())
	assert.Equal(t, "BCK;FWD", res.Directions["REV"].String())
	assert.Equal(t, "ok", res.Exact["FWD"].String())
	// Signs differ between FWD and BCK, so the coefficients column only
	// pairs reactions written in the same orientation.
	assert.Equal(t, "ok", res.Coefficients["FWD"].String())
}

func TestCoefficientDuplicates(t *testing.T) {
	m := model(t, []string{"A", "B"}, []*metnet.Reaction{
		{ID: "R1", Stoich: map[string]float64{"A": -1, "B": 1}, LB: 0, UB: 1000},
		{ID: "R2", Stoich: map[string]float64{"A": -2, "B": 1}, LB: 0, UB: 1000},
	})
	res := Run(m, Options{})

	assert.Equal(t, "R2", res.Coefficients["R1"].String())
	assert.Equal(t, "R1", res.Coefficients["R2"].String())
	assert.Equal(t, "ok", res.Exact["R1"].String())
	assert.Equal(t, "ok", res.Directions["R1"].String())
	assert.Len(t, res.Edges, 1)
}

// Scenario S4: the same oxidation against different carriers.
func TestRedoxDuplicates(t *testing.T) {
	mets := []string{"X", "Y", "nad", "nadh", "nadp", "nadph", "h"}
	m := model(t, mets, []*metnet.Reaction{
		{ID: "R1", Stoich: map[string]float64{"X": -1, "nad": -1, "Y": 1, "nadh": 1, "h": 1}, LB: 0, UB: 1000},
		{ID: "R2", Stoich: map[string]float64{"X": -1, "nadp": -1, "Y": 1, "nadph": 1, "h": 1}, LB: 0, UB: 1000},
	})
	opts := Options{
		RedoxPairs: []RedoxPair{{"nad", "nadh"}, {"nadp", "nadph"}},
		ProtonIDs:  []string{"h"},
	}
	res := Run(m, opts)

	assert.Equal(t, "R2", res.Redox["R1"].String())
	assert.Equal(t, "R1", res.Redox["R2"].String())
	assert.Equal(t, "ok", res.Exact["R1"].String())
	assert.Equal(t, "ok", res.Directions["R1"].String())
	assert.Equal(t, "ok", res.Coefficients["R1"].String())
	assert.Len(t, res.Edges, 1)
}

func TestRedoxSameCarrierNotFlagged(t *testing.T) {
	mets := []string{"X", "Y", "Z", "nad", "nadh", "nadp", "nadph", "h"}
	m := model(t, mets, []*metnet.Reaction{
		{ID: "R1", Stoich: map[string]float64{"X": -1, "nad": -1, "Y": 1, "nadh": 1, "h": 1}, LB: 0, UB: 1000},
		// Same carrier, different chemistry: not a redox duplicate.
		{ID: "R2", Stoich: map[string]float64{"Z": -1, "nad": -1, "Y": 1, "nadh": 1, "h": 1}, LB: 0, UB: 1000},
	})
	opts := Options{
		RedoxPairs: []RedoxPair{{"nad", "nadh"}, {"nadp", "nadph"}},
		ProtonIDs:  []string{"h"},
	}
	res := Run(m, opts)
	assert.Equal(t, "ok", res.Redox["R1"].String())
	assert.Equal(t, "ok", res.Redox["R2"].String())
}

func TestRedoxCarrierTransportIgnored(t *testing.T) {
	mets := []string{"nad", "nadh", "nadp", "nadph", "h"}
	m := model(t, mets, []*metnet.Reaction{
		// Carriers reacting with each other leave an empty remainder.
		{ID: "THD", Stoich: map[string]float64{"nad": -1, "nadph": -1, "nadh": 1, "nadp": 1}, LB: 0, UB: 1000},
	})
	opts := Options{
		RedoxPairs: []RedoxPair{{"nad", "nadh"}, {"nadp", "nadph"}},
		ProtonIDs:  []string{"h"},
	}
	res := Run(m, opts)
	assert.Equal(t, "ok", res.Redox["THD"].String())
}

func TestRedoxConfigDegradesGracefully(t *testing.T) {
	mets := []string{"X", "Y", "nad", "nadh", "h"}
	m := model(t, mets, []*metnet.Reaction{
		{ID: "R1", Stoich: map[string]float64{"X": -1, "nad": -1, "Y": 1, "nadh": 1, "h": 1}, LB: 0, UB: 1000},
	})

	// One pair only, unknown metabolite, unknown proton: redox stays ok.
	for _, opts := range []Options{
		{RedoxPairs: []RedoxPair{{"nad", "nadh"}}, ProtonIDs: []string{"h"}},
		{RedoxPairs: []RedoxPair{{"nad", "nadh"}, {"ghost", "ghost2"}}, ProtonIDs: []string{"h"}},
		{RedoxPairs: []RedoxPair{{"nad", "nadh"}, {"nad", "nadh"}}, ProtonIDs: []string{"missing"}},
	} {
		res := Run(m, opts)
		assert.Equal(t, "ok", res.Redox["R1"].String())
	}
}

func TestRationalCoefficientComparison(t *testing.T) {
	// 0.1+0.2 != 0.3 in floats; the rational signature must not conflate
	// reactions whose coefficients genuinely differ in the last bit.  The sum
	// is taken at run time: as a constant expression Go would fold it to
	// exactly 0.3.
	a, b := 0.1, 0.2
	m := model(t, []string{"A", "B"}, []*metnet.Reaction{
		{ID: "R1", Stoich: map[string]float64{"A": -(a + b), "B": 1}, LB: 0, UB: 1000},
		{ID: "R2", Stoich: map[string]float64{"A": -0.3, "B": 1}, LB: 0, UB: 1000},
	})
	res := Run(m, Options{})
	// Same signs, different exact coefficients: coefficient duplicates.
	assert.Equal(t, "R2", res.Coefficients["R1"].String())
	assert.Equal(t, "ok", res.Exact["R1"].String())
}

// Property 4: duplicate listings are always symmetric.
func TestDuplicateSymmetry(t *testing.T) {
	m := model(t, []string{"A", "B", "C"}, []*metnet.Reaction{
		{ID: "R1", Stoich: map[string]float64{"A": -1, "B": 1}, LB: 0, UB: 1000},
		{ID: "R2", Stoich: map[string]float64{"A": -1, "B": 1}, LB: 0, UB: 1000},
		{ID: "R3", Stoich: map[string]float64{"A": -1, "B": 1}, LB: -1000, UB: 1000},
		{ID: "R4", Stoich: map[string]float64{"A": -3, "B": 1}, LB: 0, UB: 1000},
		{ID: "R5", Stoich: map[string]float64{"B": -1, "C": 1}, LB: 0, UB: 1000},
	})
	res := Run(m, Options{})

	for _, column := range []map[string]report.Verdict{
		res.Exact, res.Directions, res.Coefficients, res.Redox,
	} {
		for rxnID, v := range column {
			for _, other := range v.IDs {
				assert.Contains(t, column[other].IDs, rxnID,
					"%s lists %s but not vice versa", rxnID, other)
			}
		}
	}
}

func TestDeterminism(t *testing.T) {
	m := model(t, []string{"A", "B"}, []*metnet.Reaction{
		{ID: "R1", Stoich: map[string]float64{"A": -1, "B": 1}, LB: 0, UB: 1000},
		{ID: "R2", Stoich: map[string]float64{"A": -1, "B": 1}, LB: 0, UB: 1000},
		{ID: "R3", Stoich: map[string]float64{"A": -2, "B": 1}, LB: 0, UB: 1000},
	})
	first := Run(m, Options{})
	for i := 0; i < 3; i++ {
		again := Run(m, Options{})
		assert.Equal(t, first.Exact, again.Exact)
		assert.Equal(t, first.Directions, again.Directions)
		assert.Equal(t, first.Coefficients, again.Coefficients)
		assert.Equal(t, first.Edges, again.Edges)
	}
}

package diphosphate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macaw-metabolics/macaw/internal/domain/metnet"
)

func model(t *testing.T, metIDs []string, rxns []*metnet.Reaction) *metnet.Model {
	t.Helper()
	mets := make([]*metnet.Metabolite, 0, len(metIDs))
	for _, id := range metIDs {
		comp := "c"
		if len(id) > 2 && id[len(id)-2] == '_' {
			comp = id[len(id)-1:]
		}
		mets = append(mets, &metnet.Metabolite{ID: id, Compartment: comp})
	}
	m, err := metnet.New("test", mets, rxns)
	require.NoError(t, err)
	return m
}

var opts = Options{
	PpiIDs: []string{"ppi_c", "ppi_m"},
	PiIDs:  []string{"pi_c"},
}

// Scenario S5: reversible PPi-producing hydrolysis should be irreversible.
func TestReversiblePpiProducer(t *testing.T) {
	m := model(t, []string{"atp_c", "amp_c", "ppi_c"}, []*metnet.Reaction{
		{ID: "R", Stoich: map[string]float64{"atp_c": -1, "amp_c": 1, "ppi_c": 1}, LB: -1000, UB: 1000},
	})
	res := Run(m, opts)
	assert.Equal(t, "should be irreversible", res.Verdicts["R"].String())
}

func TestReversiblePpiConsumerShouldFlip(t *testing.T) {
	m := model(t, []string{"atp_c", "amp_c", "ppi_c"}, []*metnet.Reaction{
		{ID: "R", Stoich: map[string]float64{"ppi_c": -1, "amp_c": -1, "atp_c": 1}, LB: -1000, UB: 1000},
	})
	res := Run(m, opts)
	assert.Equal(t, "should be flipped and made irreversible", res.Verdicts["R"].String())
}

func TestIrreversibleReactionsAreFine(t *testing.T) {
	m := model(t, []string{"atp_c", "amp_c", "ppi_c"}, []*metnet.Reaction{
		{ID: "R", Stoich: map[string]float64{"atp_c": -1, "amp_c": 1, "ppi_c": 1}, LB: 0, UB: 1000},
	})
	res := Run(m, opts)
	assert.Equal(t, "ok", res.Verdicts["R"].String())
}

func TestPpiTransportIsFine(t *testing.T) {
	m := model(t, []string{"ppi_c", "ppi_m"}, []*metnet.Reaction{
		{ID: "PPIt", Stoich: map[string]float64{"ppi_c": -1, "ppi_m": 1}, LB: -1000, UB: 1000},
	})
	res := Run(m, opts)
	assert.Equal(t, "ok", res.Verdicts["PPIt"].String())
}

func TestPhosphateInvolvementSkips(t *testing.T) {
	// A diphosphatase: PPi + H2O → 2 Pi, modeled reversible; involving
	// phosphate exempts it.
	m := model(t, []string{"ppi_c", "pi_c"}, []*metnet.Reaction{
		{ID: "PPA", Stoich: map[string]float64{"ppi_c": -1, "pi_c": 2}, LB: -1000, UB: 1000},
	})
	res := Run(m, opts)
	assert.Equal(t, "ok", res.Verdicts["PPA"].String())
}

func TestExchangeReactionsSkipped(t *testing.T) {
	m := model(t, []string{"ppi_c"}, []*metnet.Reaction{
		{ID: "EX_ppi", Stoich: map[string]float64{"ppi_c": -1}, LB: -1000, UB: 1000},
	})
	res := Run(m, opts)
	assert.Equal(t, "ok", res.Verdicts["EX_ppi"].String())
}

func TestMissingConfigDegradesToAllOK(t *testing.T) {
	m := model(t, []string{"atp_c", "amp_c", "ppi_c"}, []*metnet.Reaction{
		{ID: "R", Stoich: map[string]float64{"atp_c": -1, "amp_c": 1, "ppi_c": 1}, LB: -1000, UB: 1000},
	})
	for _, o := range []Options{
		{},
		{PpiIDs: []string{"ppi_c"}},
		{PiIDs: []string{"pi_c"}},
	} {
		res := Run(m, o)
		assert.Equal(t, "ok", res.Verdicts["R"].String())
	}
}

func TestDeterminism(t *testing.T) {
	m := model(t, []string{"atp_c", "amp_c", "ppi_c", "pi_c"}, []*metnet.Reaction{
		{ID: "R1", Stoich: map[string]float64{"atp_c": -1, "amp_c": 1, "ppi_c": 1}, LB: -1000, UB: 1000},
		{ID: "R2", Stoich: map[string]float64{"ppi_c": -1, "pi_c": 2}, LB: -1000, UB: 1000},
	})
	first := Run(m, opts)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first.Verdicts, Run(m, opts).Verdicts)
	}
}

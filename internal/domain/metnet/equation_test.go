package metnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEquationArrowsAndCoefficients(t *testing.T) {
	m, err := New("m",
		[]*Metabolite{
			{ID: "glc_c", Name: "glucose", Compartment: "c"},
			{ID: "atp_c", Name: "ATP", Compartment: "c"},
			{ID: "g6p_c", Name: "glucose-6-phosphate", Compartment: "c"},
		},
		[]*Reaction{
			{ID: "HEX", Stoich: map[string]float64{"glc_c": -1, "atp_c": -2, "g6p_c": 1}, LB: 0, UB: 1000},
			{ID: "REV", Stoich: map[string]float64{"glc_c": -1, "g6p_c": 1}, LB: -1000, UB: 1000},
			{ID: "BACK", Stoich: map[string]float64{"glc_c": -1, "g6p_c": 1}, LB: -1000, UB: 0},
			{ID: "DEAD", Stoich: map[string]float64{"glc_c": -1}, LB: 0, UB: 0},
		})
	require.NoError(t, err)

	rxn := func(id string) *Reaction { r, _ := m.Reaction(id); return r }

	require.Equal(t, "2 atp_c + glc_c --> g6p_c", m.Equation(rxn("HEX"), EquationOptions{}))
	require.Equal(t, "glc_c <=> g6p_c", m.Equation(rxn("REV"), EquationOptions{}))
	require.Equal(t, "glc_c <-- g6p_c", m.Equation(rxn("BACK"), EquationOptions{}))
	require.Equal(t, "glc_c -- ", m.Equation(rxn("DEAD"), EquationOptions{})[:9])
}

func TestEquationNamesAndSuffixes(t *testing.T) {
	m, err := New("m",
		[]*Metabolite{
			{ID: "pyr_c", Name: "pyruvate", Compartment: "c"},
			{ID: "pyr_m", Name: "pyruvate", Compartment: "m"},
		},
		[]*Reaction{
			{ID: "PYRt", Stoich: map[string]float64{"pyr_c": -1, "pyr_m": 1}, LB: -1000, UB: 1000},
		})
	require.NoError(t, err)

	r, _ := m.Reaction("PYRt")
	require.Equal(t, "pyruvate <=> pyruvate",
		m.Equation(r, EquationOptions{UseNames: true}))
	require.Equal(t, "pyruvate [c] <=> pyruvate [m]",
		m.Equation(r, EquationOptions{UseNames: true, AddSuffixes: true}))
	require.Equal(t, "pyr_c [c] <=> pyr_m [m]",
		m.Equation(r, EquationOptions{AddSuffixes: true}))
}

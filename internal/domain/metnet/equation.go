package metnet

import (
	"sort"
	"strconv"
	"strings"
)

// EquationOptions controls how Equation renders a reaction.
type EquationOptions struct {
	// UseNames substitutes metabolite display names for IDs.
	UseNames bool
	// AddSuffixes appends the compartment tag to every metabolite token,
	// e.g. "pyruvate [c]" vs "pyruvate [m]".
	AddSuffixes bool
}

// Equation renders a reaction as a human-readable string such as
//
//	glc__D_e + atp_c --> g6p_c + adp_c
//
// The arrow reflects the bounds: "-->" forward-only, "<--" reverse-only,
// "<=>" reversible, and "--" for a fully blocked reaction.
func (m *Model) Equation(r *Reaction, opts EquationOptions) string {
	var reactants, products []string
	for _, metID := range r.Metabolites() {
		coef := r.Stoich[metID]
		token := m.equationToken(metID, opts)
		if abs := absFloat(coef); abs != 1 {
			token = formatCoef(abs) + " " + token
		}
		if coef < 0 {
			reactants = append(reactants, token)
		} else {
			products = append(products, token)
		}
	}
	sort.Strings(reactants)
	sort.Strings(products)

	arrow := "--"
	switch {
	case r.LB < 0 && r.UB > 0:
		arrow = "<=>"
	case r.UB > 0:
		arrow = "-->"
	case r.LB < 0:
		arrow = "<--"
	}
	return strings.Join(reactants, " + ") + " " + arrow + " " + strings.Join(products, " + ")
}

func (m *Model) equationToken(metID string, opts EquationOptions) string {
	met, ok := m.Metabolite(metID)
	if !ok {
		return metID
	}
	token := met.ID
	if opts.UseNames {
		token = met.DisplayName()
	}
	if opts.AddSuffixes && met.Compartment != "" {
		suffix := " [" + met.Compartment + "]"
		if !strings.HasSuffix(token, suffix) {
			token += suffix
		}
	}
	return token
}

func formatCoef(c float64) string {
	return strconv.FormatFloat(c, 'g', -1, 64)
}

func absFloat(c float64) float64 {
	if c < 0 {
		return -c
	}
	return c
}

// Package metnet defines the read-only model view that every consistency
// check operates on: metabolites, reactions with signed stoichiometry and
// bounds, an objective vector, and extra linear constraints.  A Model is
// sealed on construction; checks obtain an unsealed working copy through
// Clone and mutate only that copy, which keeps workers shared-nothing.
package metnet

import (
	"fmt"
	"math"
	"sort"

	"github.com/macaw-metabolics/macaw/pkg/errors"
)

// Metabolite identifies a chemical species in one compartment.
type Metabolite struct {
	ID          string
	Name        string
	Compartment string
}

// DisplayName returns Name, falling back to ID when no name is set.
func (m *Metabolite) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// Reaction is a stoichiometric conversion with flux bounds.  Negative
// coefficients denote reactants, positive ones products.  Reversibility is
// derived from the bounds, never stored.
type Reaction struct {
	ID     string
	Name   string
	Stoich map[string]float64
	LB     float64
	UB     float64
	Genes  string
}

// Reversible reports whether the reaction may carry flux in both directions.
func (r *Reaction) Reversible() bool {
	return r.LB < 0 && r.UB > 0
}

// Exchange reports whether the reaction crosses the system boundary, i.e.
// has exactly one participating metabolite.
func (r *Reaction) Exchange() bool {
	n := 0
	for _, coef := range r.Stoich {
		if coef != 0 {
			n++
		}
	}
	return n == 1
}

// Metabolites returns the sorted IDs of all participants with non-zero
// stoichiometry.
func (r *Reaction) Metabolites() []string {
	out := make([]string, 0, len(r.Stoich))
	for id, coef := range r.Stoich {
		if coef != 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Reactants returns the sorted IDs of metabolites consumed by the forward
// direction.
func (r *Reaction) Reactants() []string {
	out := make([]string, 0, len(r.Stoich))
	for id, coef := range r.Stoich {
		if coef < 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Products returns the sorted IDs of metabolites produced by the forward
// direction.
func (r *Reaction) Products() []string {
	out := make([]string, 0, len(r.Stoich))
	for id, coef := range r.Stoich {
		if coef > 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// clone returns a deep copy of the reaction.
func (r *Reaction) clone() *Reaction {
	stoich := make(map[string]float64, len(r.Stoich))
	for id, coef := range r.Stoich {
		stoich[id] = coef
	}
	cp := *r
	cp.Stoich = stoich
	return &cp
}

// Flip switches products and reactants and mirrors the bounds, preserving
// the feasible flux set.
func (r *Reaction) Flip() {
	for id, coef := range r.Stoich {
		r.Stoich[id] = -coef
	}
	r.LB, r.UB = -r.UB, -r.LB
}

// Constraint is an extra linear constraint over reaction fluxes:
//
//	LB ≤ Σ Net[r]·v_r + Σ Abs[r]·|v_r| ≤ UB
//
// The |v_r| terms are realized linearly by the solver through the
// forward/reverse split of each reaction; only the dilution test uses them.
type Constraint struct {
	Name string
	Net  map[string]float64
	Abs  map[string]float64
	LB   float64
	UB   float64
}

// Model is the set of metabolites and reactions plus an objective vector and
// any added constraints.  Models returned by New are sealed: mutators fail
// until an unsealed working copy is obtained via Clone.
type Model struct {
	ID string

	mets []*Metabolite
	rxns []*Reaction

	metIndex map[string]*Metabolite
	rxnIndex map[string]*Reaction

	// participation maps metabolite ID to the IDs of reactions it appears
	// in with non-zero stoichiometry, in insertion order.
	participation map[string][]string

	objective   map[string]float64
	constraints []Constraint

	sealed bool
}

// New validates and seals a model.  Violations of the structural invariants
// (unique IDs, every referenced metabolite present, lb ≤ ub) surface as
// MODEL_* errors and are fatal.
func New(id string, mets []*Metabolite, rxns []*Reaction) (*Model, error) {
	m := &Model{
		ID:            id,
		metIndex:      make(map[string]*Metabolite, len(mets)),
		rxnIndex:      make(map[string]*Reaction, len(rxns)),
		participation: make(map[string][]string),
		objective:     make(map[string]float64),
	}
	for _, met := range mets {
		if err := m.addMetabolite(met); err != nil {
			return nil, err
		}
	}
	for _, rxn := range rxns {
		if err := m.addReaction(rxn); err != nil {
			return nil, err
		}
	}
	m.sealed = true
	return m, nil
}

func (m *Model) addMetabolite(met *Metabolite) error {
	if met.ID == "" {
		return errors.New(errors.CodeModelInvalid, "metabolite with empty ID")
	}
	if _, ok := m.metIndex[met.ID]; ok {
		return errors.New(errors.CodeModelDuplicateID,
			fmt.Sprintf("duplicate metabolite ID %q", met.ID))
	}
	m.mets = append(m.mets, met)
	m.metIndex[met.ID] = met
	return nil
}

func (m *Model) addReaction(rxn *Reaction) error {
	if rxn.ID == "" {
		return errors.New(errors.CodeModelInvalid, "reaction with empty ID")
	}
	if _, ok := m.rxnIndex[rxn.ID]; ok {
		return errors.New(errors.CodeModelDuplicateID,
			fmt.Sprintf("duplicate reaction ID %q", rxn.ID))
	}
	if rxn.LB > rxn.UB {
		return errors.New(errors.CodeModelBadBounds,
			fmt.Sprintf("reaction %q has lb %g > ub %g", rxn.ID, rxn.LB, rxn.UB))
	}
	if math.IsNaN(rxn.LB) || math.IsNaN(rxn.UB) {
		return errors.New(errors.CodeModelBadBounds,
			fmt.Sprintf("reaction %q has NaN bounds", rxn.ID))
	}
	for metID, coef := range rxn.Stoich {
		if math.IsNaN(coef) || math.IsInf(coef, 0) {
			return errors.New(errors.CodeModelInvalid,
				fmt.Sprintf("reaction %q has non-finite coefficient for %q", rxn.ID, metID))
		}
		if _, ok := m.metIndex[metID]; !ok {
			return errors.New(errors.CodeModelUnknownMetabolite,
				fmt.Sprintf("reaction %q references missing metabolite %q", rxn.ID, metID))
		}
	}
	m.rxns = append(m.rxns, rxn)
	m.rxnIndex[rxn.ID] = rxn
	for metID, coef := range rxn.Stoich {
		if coef != 0 {
			m.participation[metID] = append(m.participation[metID], rxn.ID)
		}
	}
	return nil
}

// Metabolites returns the metabolites in insertion order.  The slice must
// not be mutated.
func (m *Model) Metabolites() []*Metabolite { return m.mets }

// Reactions returns the reactions in insertion order.  The slice must not
// be mutated.
func (m *Model) Reactions() []*Reaction { return m.rxns }

// Metabolite looks up a metabolite by ID.
func (m *Model) Metabolite(id string) (*Metabolite, bool) {
	met, ok := m.metIndex[id]
	return met, ok
}

// Reaction looks up a reaction by ID.
func (m *Model) Reaction(id string) (*Reaction, bool) {
	rxn, ok := m.rxnIndex[id]
	return rxn, ok
}

// ReactionsOf returns the reactions the given metabolite participates in,
// sorted by ID for deterministic iteration.
func (m *Model) ReactionsOf(metID string) []*Reaction {
	ids := m.participation[metID]
	out := make([]*Reaction, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.rxnIndex[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Objective returns the objective coefficients keyed by reaction ID.  All
// checks run with a zero objective; the map is empty unless a check set one.
func (m *Model) Objective() map[string]float64 { return m.objective }

// Constraints returns the extra linear constraints added to this copy.
func (m *Model) Constraints() []Constraint { return m.constraints }

// Sealed reports whether the model rejects mutation.
func (m *Model) Sealed() bool { return m.sealed }

// Clone returns an independent, unsealed working copy.  The original model
// is never affected by mutations of the copy.
func (m *Model) Clone() *Model {
	cp := &Model{
		ID:            m.ID,
		mets:          make([]*Metabolite, len(m.mets)),
		rxns:          make([]*Reaction, 0, len(m.rxns)),
		metIndex:      make(map[string]*Metabolite, len(m.metIndex)),
		rxnIndex:      make(map[string]*Reaction, len(m.rxnIndex)),
		participation: make(map[string][]string, len(m.participation)),
		objective:     make(map[string]float64, len(m.objective)),
	}
	for i, met := range m.mets {
		mc := *met
		cp.mets[i] = &mc
		cp.metIndex[mc.ID] = &mc
	}
	for _, rxn := range m.rxns {
		rc := rxn.clone()
		cp.rxns = append(cp.rxns, rc)
		cp.rxnIndex[rc.ID] = rc
	}
	for metID, rxnIDs := range m.participation {
		cp.participation[metID] = append([]string(nil), rxnIDs...)
	}
	for rxnID, coef := range m.objective {
		cp.objective[rxnID] = coef
	}
	for _, c := range m.constraints {
		cp.constraints = append(cp.constraints, cloneConstraint(c))
	}
	return cp
}

func cloneConstraint(c Constraint) Constraint {
	cc := Constraint{Name: c.Name, LB: c.LB, UB: c.UB,
		Net: make(map[string]float64, len(c.Net)),
		Abs: make(map[string]float64, len(c.Abs))}
	for id, v := range c.Net {
		cc.Net[id] = v
	}
	for id, v := range c.Abs {
		cc.Abs[id] = v
	}
	return cc
}

func (m *Model) mutable() error {
	if m.sealed {
		return errors.New(errors.CodeModelInvalid,
			"model is sealed; mutate a Clone() instead")
	}
	return nil
}

// SetBounds updates a reaction's bounds on an unsealed copy.
func (m *Model) SetBounds(rxnID string, lb, ub float64) error {
	if err := m.mutable(); err != nil {
		return err
	}
	rxn, ok := m.rxnIndex[rxnID]
	if !ok {
		return errors.New(errors.CodeModelUnknownReaction,
			fmt.Sprintf("unknown reaction %q", rxnID))
	}
	if lb > ub {
		return errors.New(errors.CodeModelBadBounds,
			fmt.Sprintf("reaction %q: lb %g > ub %g", rxnID, lb, ub))
	}
	rxn.LB, rxn.UB = lb, ub
	return nil
}

// AddMetabolite inserts a metabolite into an unsealed copy.
func (m *Model) AddMetabolite(met *Metabolite) error {
	if err := m.mutable(); err != nil {
		return err
	}
	return m.addMetabolite(met)
}

// AddReaction inserts a reaction into an unsealed copy.  Every metabolite it
// references must already be present.
func (m *Model) AddReaction(rxn *Reaction) error {
	if err := m.mutable(); err != nil {
		return err
	}
	return m.addReaction(rxn)
}

// AddConstraint attaches an extra linear constraint to an unsealed copy.
// Every referenced reaction must exist.
func (m *Model) AddConstraint(c Constraint) error {
	if err := m.mutable(); err != nil {
		return err
	}
	for _, terms := range []map[string]float64{c.Net, c.Abs} {
		for rxnID := range terms {
			if _, ok := m.rxnIndex[rxnID]; !ok {
				return errors.New(errors.CodeModelUnknownReaction,
					fmt.Sprintf("constraint %q references unknown reaction %q", c.Name, rxnID))
			}
		}
	}
	if c.LB > c.UB {
		return errors.New(errors.CodeModelBadBounds,
			fmt.Sprintf("constraint %q: lb %g > ub %g", c.Name, c.LB, c.UB))
	}
	m.constraints = append(m.constraints, cloneConstraint(c))
	return nil
}

// SetObjective replaces the objective vector on an unsealed copy.
func (m *Model) SetObjective(coefs map[string]float64) error {
	if err := m.mutable(); err != nil {
		return err
	}
	obj := make(map[string]float64, len(coefs))
	for rxnID, coef := range coefs {
		if _, ok := m.rxnIndex[rxnID]; !ok {
			return errors.New(errors.CodeModelUnknownReaction,
				fmt.Sprintf("objective references unknown reaction %q", rxnID))
		}
		if coef != 0 {
			obj[rxnID] = coef
		}
	}
	m.objective = obj
	return nil
}

// ZeroObjective clears the objective vector on an unsealed copy.  Every
// check starts from a zero objective.
func (m *Model) ZeroObjective() error {
	if err := m.mutable(); err != nil {
		return err
	}
	m.objective = make(map[string]float64)
	return nil
}

// Seal freezes a working copy so it can be shared across workers, which
// then take their own clones.
func (m *Model) Seal() { m.sealed = true }

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/macaw-metabolics/macaw/internal/domain/metnet"
)

// Cobrapy-style JSON model document — the interchange form the external
// GSMM parsers write.  Only the fields the battery needs are read.
type modelDocument struct {
	ID          string               `json:"id"`
	Metabolites []metaboliteDocument `json:"metabolites"`
	Reactions   []reactionDocument   `json:"reactions"`
}

type metaboliteDocument struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Compartment string `json:"compartment"`
}

type reactionDocument struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	Metabolites      map[string]float64 `json:"metabolites"`
	LowerBound       *float64           `json:"lower_bound"`
	UpperBound       *float64           `json:"upper_bound"`
	GeneReactionRule string             `json:"gene_reaction_rule"`
}

// Cobrapy's conventional default flux bounds.
const (
	defaultLowerBound = -1000.0
	defaultUpperBound = 1000.0
)

// LoadModel reads a JSON model file and seals it into a metnet.Model.
func LoadModel(path string) (*metnet.Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cli: reading model file: %w", err)
	}
	var doc modelDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("cli: parsing model file %q: %w", path, err)
	}

	mets := make([]*metnet.Metabolite, 0, len(doc.Metabolites))
	for _, md := range doc.Metabolites {
		mets = append(mets, &metnet.Metabolite{
			ID:          md.ID,
			Name:        md.Name,
			Compartment: md.Compartment,
		})
	}
	rxns := make([]*metnet.Reaction, 0, len(doc.Reactions))
	for _, rd := range doc.Reactions {
		lb, ub := defaultLowerBound, defaultUpperBound
		if rd.LowerBound != nil {
			lb = *rd.LowerBound
		}
		if rd.UpperBound != nil {
			ub = *rd.UpperBound
		}
		rxns = append(rxns, &metnet.Reaction{
			ID:     rd.ID,
			Name:   rd.Name,
			Stoich: rd.Metabolites,
			LB:     lb,
			UB:     ub,
			Genes:  rd.GeneReactionRule,
		})
	}

	id := doc.ID
	if id == "" {
		id = path
	}
	return metnet.New(id, mets, rxns)
}

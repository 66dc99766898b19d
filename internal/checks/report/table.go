package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/macaw-metabolics/macaw/internal/domain/metnet"
)

// CSVHeader is the persisted column order, one row per reaction.
var CSVHeader = []string{
	"reaction_id",
	"reaction_equation",
	"dead_end_test",
	"dilution_test",
	"diphosphate_test",
	"duplicate_test_exact",
	"duplicate_test_directions",
	"duplicate_test_coefficients",
	"duplicate_test_redox",
	"loop_test",
	"pathway",
}

// Row is one reaction's verdicts across every check plus its pathway label.
// Zero-valued verdicts read as "ok" and pathway 0 means unassigned.
type Row struct {
	ReactionID string
	Equation   string

	DeadEnd     Verdict
	Dilution    Verdict
	Diphosphate Verdict

	DupExact        Verdict
	DupDirections   Verdict
	DupCoefficients Verdict
	DupRedox        Verdict

	Loop Verdict

	Pathway int
}

// FlaggedBy lists the checks that flagged this reaction (empty when none did).
func (r *Row) FlaggedBy() []string {
	var checks []string
	if r.DeadEnd.Flagged() {
		checks = append(checks, "dead_end")
	}
	if r.Dilution.Flagged() {
		checks = append(checks, "dilution")
	}
	if r.Diphosphate.Flagged() {
		checks = append(checks, "diphosphate")
	}
	if r.DupExact.Flagged() || r.DupDirections.Flagged() ||
		r.DupCoefficients.Flagged() || r.DupRedox.Flagged() {
		checks = append(checks, "duplicate")
	}
	if r.Loop.Flagged() {
		checks = append(checks, "loop")
	}
	return checks
}

// Table is the battery's results table, ordered like the model's reactions.
type Table struct {
	rows  []*Row
	index map[string]*Row
}

// NewTable builds a table with one all-"ok" row per reaction, rendering the
// equation column with the given options.
func NewTable(m *metnet.Model, opts metnet.EquationOptions) *Table {
	t := &Table{index: make(map[string]*Row)}
	for _, rxn := range m.Reactions() {
		row := &Row{
			ReactionID: rxn.ID,
			Equation:   m.Equation(rxn, opts),
		}
		t.rows = append(t.rows, row)
		t.index[rxn.ID] = row
	}
	return t
}

// Rows returns the rows in model order.
func (t *Table) Rows() []*Row { return t.rows }

// Row fetches a row by reaction ID.
func (t *Table) Row(rxnID string) (*Row, bool) {
	r, ok := t.index[rxnID]
	return r, ok
}

// WriteCSV emits the persisted form with the canonical header.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("report: writing CSV header: %w", err)
	}
	for _, r := range t.rows {
		record := []string{
			r.ReactionID,
			r.Equation,
			r.DeadEnd.String(),
			r.Dilution.String(),
			r.Diphosphate.String(),
			r.DupExact.String(),
			r.DupDirections.String(),
			r.DupCoefficients.String(),
			r.DupRedox.String(),
			r.Loop.String(),
			strconv.Itoa(r.Pathway),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("report: writing CSV row for %s: %w", r.ReactionID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEdgeCSV emits the combined edge list as two ID columns.
func WriteEdgeCSV(w io.Writer, edges EdgeSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"node_1", "node_2"}); err != nil {
		return fmt.Errorf("report: writing edge header: %w", err)
	}
	for _, e := range edges.Slice() {
		if err := cw.Write([]string{e.A.ID, e.B.ID}); err != nil {
			return fmt.Errorf("report: writing edge row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Simplified collapses every verdict column to "ok"/"bad" the way the
// original battery's summary view does: one-way dead-end restrictions and
// "always blocked" dilution results do not count as bad, and the four
// duplicate columns merge into one.
func (t *Table) Simplified() map[string]map[string]string {
	out := make(map[string]map[string]string, len(t.rows))
	bad := func(b bool) string {
		if b {
			return "bad"
		}
		return "ok"
	}
	for _, r := range t.rows {
		out[r.ReactionID] = map[string]string{
			"dead_end_test": bad(r.DeadEnd.Kind == KindDeadEnd),
			"dilution_test": bad(r.Dilution.Kind == KindBlockedByDilution ||
				r.Dilution.Kind == KindUnblockedByDilution),
			"diphosphate_test": bad(r.Diphosphate.Flagged()),
			"duplicate_test": bad(r.DupExact.Flagged() || r.DupDirections.Flagged() ||
				r.DupCoefficients.Flagged() || r.DupRedox.Flagged()),
			"loop_test": bad(r.Loop.Flagged()),
		}
	}
	return out
}

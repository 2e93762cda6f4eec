// Package cleanup implements the destructive clear-all-data routine behind
// cmd/cleardata. It deletes rows, never tables or schema.
package cleanup

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mindmate-health/mindmate/internal/observability"
	"github.com/mindmate-health/mindmate/internal/store"
)

// ConfirmToken must be typed verbatim (case-insensitive after trimming) for
// the run to proceed. Anything else aborts with zero deletions.
const ConfirmToken = "CONFIRM"

// DeleteOrder walks child tables before their parents so the run succeeds
// against a database without cascading deletes.
var DeleteOrder = []string{
	store.TableDoctorRecords,
	store.TableMRIScans,
	store.TableMemories,
	store.TableSessions,
	store.TablePatients,
	store.TableDoctors,
}

// TableResult reports the outcome for one table.
type TableResult struct {
	Table   string
	Deleted int64
	Err     error
}

// Runner drives one interactive cleanup run.
type Runner struct {
	Store   store.Store
	In      io.Reader
	Out     io.Writer
	Metrics *observability.Metrics
}

// Run prompts for confirmation and, if confirmed, clears every table in
// DeleteOrder. A table that fails is reported and the run continues with the
// next one; the routine is isolation-per-table, not atomic across tables.
func (r *Runner) Run(ctx context.Context) ([]TableResult, error) {
	fmt.Fprintln(r.Out, "WARNING: this operation permanently deletes ALL DATA from all major tables.")
	fmt.Fprintf(r.Out, "Type '%s' to proceed: ", ConfirmToken)

	scanner := bufio.NewScanner(r.In)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read confirmation: %w", err)
		}
		fmt.Fprintln(r.Out, "Operation cancelled.")
		return nil, nil
	}
	if !strings.EqualFold(strings.TrimSpace(scanner.Text()), ConfirmToken) {
		fmt.Fprintln(r.Out, "Operation cancelled.")
		return nil, nil
	}

	fmt.Fprintln(r.Out, "Starting data cleanup...")
	results := make([]TableResult, 0, len(DeleteOrder))
	for _, table := range DeleteOrder {
		fmt.Fprintf(r.Out, "  clearing table %q ...\n", table)
		deleted, err := r.Store.ClearTable(ctx, table)
		results = append(results, TableResult{Table: table, Deleted: deleted, Err: err})
		switch {
		case err != nil:
			fmt.Fprintf(r.Out, "    error clearing %s: %v\n", table, err)
		case deleted > 0:
			fmt.Fprintf(r.Out, "    deleted %d rows from %q\n", deleted, table)
			if r.Metrics != nil {
				r.Metrics.CleanupDeletion.WithLabelValues(table).Add(float64(deleted))
			}
		default:
			fmt.Fprintf(r.Out, "    no data found or already empty\n")
		}
	}
	fmt.Fprintln(r.Out, "Database data cleared (schema preserved).")
	return results, nil
}

// Failed reports whether any table in results errored, for exit-code mapping.
func Failed(results []TableResult) bool {
	for _, res := range results {
		if res.Err != nil {
			return true
		}
	}
	return false
}

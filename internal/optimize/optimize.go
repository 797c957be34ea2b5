// Package optimize filters and merges migration operations. Optimization
// only ever removes or combines adjacent work; it never reorders, so the
// dependency order established upstream stays intact.
package optimize

import (
	"strings"

	"github.com/driftline/driftline/pkg/types"
)

// Result carries the optimized operations plus counters for reporting.
type Result struct {
	Operations []types.Operation
	Removed    int // exact duplicates dropped
	Merged     int // operations folded into a neighbor
}

// Optimize deduplicates identical operations and merges consecutive
// ALTER TABLE operations that target the same table. Relative order of
// surviving operations is preserved.
func Optimize(ops []types.Operation) Result {
	deduped, removed := dedupe(ops)
	merged, folded := mergeAlters(deduped)
	return Result{Operations: merged, Removed: removed, Merged: folded}
}

// dedupe drops operations whose target and SQL exactly match an earlier
// operation. The first occurrence wins, keeping its position.
func dedupe(ops []types.Operation) ([]types.Operation, int) {
	seen := make(map[string]bool, len(ops))
	out := make([]types.Operation, 0, len(ops))
	removed := 0
	for _, op := range ops {
		key := op.Target.Key() + "\x00" + op.SQL
		if seen[key] {
			removed++
			continue
		}
		seen[key] = true
		out = append(out, op)
	}
	return out, removed
}

// mergeAlters folds runs of consecutive ALTER TABLE statements on the
// same table into a single operation. The merged operation keeps the
// highest risk level of the run, concatenates SQL and warnings, and
// retains every folded operation under Folded; a run containing any
// confirmation-requiring operation requires confirmation as a whole.
func mergeAlters(ops []types.Operation) ([]types.Operation, int) {
	out := make([]types.Operation, 0, len(ops))
	folded := 0
	for _, op := range ops {
		if len(out) > 0 && mergeable(out[len(out)-1], op) {
			prev := &out[len(out)-1]
			// Keep the folded operation intact: rollback derivation
			// needs each alteration's kind and column, not just the
			// leading one's.
			prev.Folded = append(prev.Folded, op)
			prev.SQL = prev.SQL + "\n" + op.SQL
			prev.Risk = prev.Risk.Max(op.Risk)
			prev.Description = prev.Description + "; " + lowerFirst(op.Description)
			prev.RequiresConfirmation = prev.RequiresConfirmation || op.RequiresConfirmation
			if op.Warning != "" {
				if prev.Warning != "" {
					prev.Warning = prev.Warning + "; " + op.Warning
				} else {
					prev.Warning = op.Warning
				}
			}
			folded++
			continue
		}
		out = append(out, op)
	}
	return out, folded
}

func mergeable(a, b types.Operation) bool {
	return a.Target == b.Target &&
		isAlterTable(a.SQL) && isAlterTable(b.SQL) &&
		a.Meta(types.MetaTable) == b.Meta(types.MetaTable)
}

func isAlterTable(sql string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sql)), "ALTER TABLE ")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

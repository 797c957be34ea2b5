package diff

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/driftline/driftline/internal/schema"
	"github.com/driftline/driftline/pkg/types"
)

var createViewRe = regexp.MustCompile(`(?i)^\s*create\s+view\b`)

func (e Engine) diffViews(current, target *schema.Model) ([]types.Operation, []types.Diagnostic) {
	var ops []types.Operation

	for _, key := range sortedKeys(target.Views) {
		tgt := target.Views[key]
		cur, exists := current.Views[key]
		if !exists {
			ops = append(ops, newOp(
				types.RiskSafe,
				tgt.Identity(),
				terminate(tgt.Raw),
				fmt.Sprintf("Create view %s", tgt.Name),
				"",
				types.KindCreateView,
				nil,
			))
			continue
		}
		if normalizeQuery(cur.Query) != normalizeQuery(tgt.Query) {
			ops = append(ops, newOp(
				types.RiskSafe,
				tgt.Identity(),
				ensureViewOrReplace(terminate(tgt.Raw)),
				fmt.Sprintf("Replace view %s with updated query", tgt.Name),
				"",
				types.KindCreateView,
				nil,
			))
		}
	}

	for _, key := range sortedKeys(current.Views) {
		if _, exists := target.Views[key]; exists {
			continue
		}
		cur := current.Views[key]
		ops = append(ops, newOp(
			types.RiskWarning,
			cur.Identity(),
			fmt.Sprintf("DROP VIEW %s;", cur.Name),
			fmt.Sprintf("Drop view %s", cur.Name),
			fmt.Sprintf("anything selecting from view %s breaks once it is dropped", cur.Name),
			types.KindDropView,
			nil,
		))
	}

	return ops, nil
}

// ensureViewOrReplace rewrites a plain CREATE VIEW into CREATE OR REPLACE
// VIEW so re-applying the target definition is not an error. Materialized
// views have no OR REPLACE form and pass through unchanged.
func ensureViewOrReplace(sql string) string {
	if !createViewRe.MatchString(sql) {
		return sql
	}
	idx := strings.Index(strings.ToUpper(sql), "VIEW")
	return sql[:idx] + "OR REPLACE " + sql[idx:]
}

// normalizeQuery collapses whitespace so formatting-only edits do not
// register as view changes.
func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(q), " ")
}

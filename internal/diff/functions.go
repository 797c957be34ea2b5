package diff

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/driftline/driftline/internal/schema"
	"github.com/driftline/driftline/pkg/types"
)

var createFunctionRe = regexp.MustCompile(`(?is)^\s*CREATE\s+(OR\s+REPLACE\s+)?FUNCTION`)

func (e Engine) diffFunctions(current, target *schema.Model) ([]types.Operation, []types.Diagnostic) {
	var ops []types.Operation

	for _, sig := range sortedKeys(target.Functions) {
		tgt := target.Functions[sig]
		cur, exists := current.Functions[sig]
		if !exists {
			ops = append(ops, newOp(
				types.RiskSafe,
				tgt.Identity(),
				terminate(tgt.Raw),
				fmt.Sprintf("Create function %s", sig),
				"",
				types.KindCreateFunction,
				nil,
			))
			continue
		}
		if functionChanged(cur, tgt) {
			ops = append(ops, newOp(
				types.RiskSafe,
				tgt.Identity(),
				ensureOrReplace(terminate(tgt.Raw)),
				fmt.Sprintf("Replace function %s", sig),
				"",
				types.KindReplaceFunction,
				nil,
			))
		}
	}

	// A signature present only in current is dropped; the impact on
	// dependents (triggers, views, other functions) is unknowable from
	// the snapshot alone, so this stays a warning.
	for _, sig := range sortedKeys(current.Functions) {
		if _, exists := target.Functions[sig]; exists {
			continue
		}
		cur := current.Functions[sig]
		ops = append(ops, newOp(
			types.RiskWarning,
			cur.Identity(),
			fmt.Sprintf("DROP FUNCTION %s;", sig),
			fmt.Sprintf("Drop function %s", sig),
			fmt.Sprintf("dropping function %s may break dependents that are not visible in the snapshot", sig),
			types.KindDropFunction,
			nil,
		))
	}

	return ops, nil
}

func functionChanged(cur, tgt *schema.Function) bool {
	return cur.Body != tgt.Body ||
		cur.Returns != tgt.Returns ||
		cur.Language != tgt.Language ||
		cur.SecurityDefiner != tgt.SecurityDefiner
}

// ensureOrReplace upgrades a CREATE FUNCTION statement to CREATE OR
// REPLACE so re-definition does not require a drop.
func ensureOrReplace(sql string) string {
	loc := createFunctionRe.FindStringSubmatchIndex(sql)
	if loc == nil || loc[2] >= 0 { // not a create, or already OR REPLACE
		return sql
	}
	idx := strings.Index(strings.ToUpper(sql), "FUNCTION")
	if idx < 0 {
		return sql
	}
	return sql[:idx] + "OR REPLACE " + sql[idx:]
}

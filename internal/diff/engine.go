// Package diff compares two schema models and emits classified migration
// operations. The engine is pure: it returns operations and diagnostics,
// never performs I/O, and never panics on malformed objects.
package diff

import (
	"sort"
	"strings"

	"github.com/driftline/driftline/internal/schema"
	"github.com/driftline/driftline/pkg/types"
)

// Engine computes migration operations between two immutable models.
// The zero value is ready to use.
type Engine struct{}

// Calculate diffs current against target and returns the operations that
// move current toward target. Emission order is advisory; the dependency
// graph is authoritative for execution order.
func Calculate(current, target *schema.Model) ([]types.Operation, []types.Diagnostic) {
	return Engine{}.Calculate(current, target)
}

// Calculate implements the per-category three-way comparison: objects only
// in target are created, objects only in current are dropped, and objects
// in both are structurally compared.
func (e Engine) Calculate(current, target *schema.Model) ([]types.Operation, []types.Diagnostic) {
	var (
		ops   []types.Operation
		diags []types.Diagnostic
	)
	collect := func(o []types.Operation, d []types.Diagnostic) {
		ops = append(ops, o...)
		diags = append(diags, d...)
	}

	collect(e.diffExtensions(current, target))
	collect(e.diffNamespaces(current, target))
	collect(e.diffEnums(current, target))
	collect(e.diffTables(current, target))
	collect(e.diffFunctions(current, target))
	collect(e.diffViews(current, target))
	collect(e.diffPolicies(current, target))
	collect(e.diffTriggers(current, target))
	collect(e.diffIndexes(current, target))

	return ops, diags
}

// newOp builds an operation, enforcing the invariant that destructive
// operations always require confirmation.
func newOp(risk types.RiskLevel, target types.Identity, sql, description, warning, kind string, meta map[string]string) types.Operation {
	if meta == nil {
		meta = make(map[string]string, 1)
	}
	meta[types.MetaKind] = kind
	return types.Operation{
		Risk:                 risk,
		Target:               target,
		SQL:                  sql,
		Description:          description,
		Warning:              warning,
		RequiresConfirmation: risk == types.RiskDestructive,
		Metadata:             meta,
	}
}

// sortedKeys returns map keys in ascending order for deterministic output.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// hasCascade is the CASCADE text heuristic: drop classification is
// pattern-matched on definition text rather than derived from structured
// fields in every path. Best-effort, not a contract.
func hasCascade(text string) bool {
	return strings.Contains(strings.ToUpper(text), "CASCADE")
}

// terminate appends a semicolon to a reconstructed statement.
func terminate(sql string) string {
	sql = strings.TrimSpace(sql)
	if strings.HasSuffix(sql, ";") {
		return sql
	}
	return sql + ";"
}

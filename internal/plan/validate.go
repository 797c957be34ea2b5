package plan

import (
	"fmt"
	"strings"

	"github.com/driftline/driftline/internal/graph"
	"github.com/driftline/driftline/pkg/types"
)

// ValidationResult reports plan validation findings. Errors block
// execution and rollback generation; warnings are advisory only.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validate checks a compiled plan against the dependency graph. It never
// fails for expected problems: every finding lands in the result. Errors
// are unconfirmed destructive steps, steps scheduled before a dependency,
// and unresolved cycles; graph diagnostics and risky-but-allowed steps
// become warnings.
func Validate(p *types.ExecutionPlan, g *graph.Graph, diags []types.Diagnostic) ValidationResult {
	var res ValidationResult

	for _, step := range p.Steps {
		if step.Operation.Risk == types.RiskDestructive && !step.Operation.RequiresConfirmation {
			res.Errors = append(res.Errors, fmt.Sprintf(
				"step %d (%s) is destructive but does not require confirmation",
				step.Index, step.Operation.Description))
		}
	}

	res.Errors = append(res.Errors, orderingViolations(p, g)...)

	for _, cycle := range g.CircularDependencies() {
		res.Errors = append(res.Errors, fmt.Sprintf(
			"dependency cycle: %s", formatPath(cycle)))
	}

	for _, d := range diags {
		if d.Level == types.DiagWarning {
			res.Warnings = append(res.Warnings, d.Message)
		}
	}
	for _, step := range p.Steps {
		if step.Operation.Kind() == types.KindDropFunction {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"step %d drops function %s; dependents outside the snapshot may break",
				step.Index, step.Operation.Target.Name))
		}
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// orderingViolations finds steps scheduled before a step their target
// depends on. Only dependencies that are themselves plan targets count;
// untouched objects impose no ordering.
func orderingViolations(p *types.ExecutionPlan, g *graph.Graph) []string {
	firstStep := make(map[string]int, len(p.Steps))
	for _, step := range p.Steps {
		key := step.Operation.Target.Key()
		if _, ok := firstStep[key]; !ok {
			firstStep[key] = step.Index
		}
	}

	var errs []string
	for _, step := range p.Steps {
		for _, dep := range g.DependenciesOf(step.Operation.Target) {
			depIdx, ok := firstStep[dep.Key()]
			if !ok {
				continue
			}
			if depIdx > step.Index {
				errs = append(errs, fmt.Sprintf(
					"step %d (%s) runs before step %d, which its target depends on (%s)",
					step.Index, step.Operation.Target, depIdx, dep))
			}
		}
	}
	return errs
}

func formatPath(ids []types.Identity) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, " -> ")
}

// Package plan compiles classified migration operations into a phased,
// validated execution plan and derives best-effort rollback plans from it.
package plan

import (
	"github.com/google/uuid"

	dlerrors "github.com/driftline/driftline/internal/errors"
	"github.com/driftline/driftline/internal/graph"
	"github.com/driftline/driftline/pkg/types"
)

// Options configure plan compilation.
type Options struct {
	// PlanID identifies the plan. Empty generates a fresh UUID.
	PlanID string

	// PlanName is a human-readable label for the plan.
	PlanName string

	// EnableRollback records whether a rollback plan should be derived
	// after validation.
	EnableRollback bool

	// ParallelExecution asks the compiler to mark phases whose steps
	// have no dependency edges between each other as parallelizable.
	ParallelExecution bool
}

// Per-kind duration weights in seconds. Index builds scan the whole
// table, so they dominate; a plain column add is metadata-only.
var kindSeconds = map[string]int{
	types.KindCreateIndex:       30,
	types.KindAlterColumnType:   20,
	types.KindAlterColumnNotNul: 5,
	types.KindCreateTable:       5,
	types.KindDropTable:         3,
	types.KindCreateExtension:   3,
	types.KindAddColumn:         2,
	types.KindDropIndex:         2,
	types.KindCreateView:        1,
	types.KindCreateFunction:    1,
	types.KindReplaceFunction:   1,
	types.KindCreateTrigger:     1,
	types.KindCreatePolicy:      1,
	types.KindRecreatePolicy:    1,
	types.KindEnumAddValue:      1,
}

const defaultStepSeconds = 2

// Compile orders operations into category phases and produces an
// execution plan. Within a phase, steps follow the dependency graph's
// topological order restricted to that phase; ties keep the diff
// engine's emission order. A dependency cycle aborts compilation.
func Compile(ops []types.Operation, g *graph.Graph, opts Options) (*types.ExecutionPlan, error) {
	order, err := g.ExecutionOrder()
	if err != nil {
		return nil, err
	}
	rank := make(map[string]int, len(order))
	for i, id := range order {
		rank[id.Key()] = i
	}

	if opts.PlanID == "" {
		opts.PlanID = uuid.NewString()
	}

	p := &types.ExecutionPlan{
		ID:                opts.PlanID,
		Name:              opts.PlanName,
		ParallelExecution: opts.ParallelExecution,
	}

	for _, cat := range types.Categories() {
		var members []types.Operation
		for _, op := range ops {
			if op.Target.Category == cat {
				members = append(members, op)
			}
		}
		if len(members) == 0 {
			continue
		}
		sortByRank(members, rank)

		phase := types.Phase{Category: cat}
		for _, op := range members {
			step := types.Step{
				Index:            len(p.Steps),
				Phase:            cat,
				Operation:        op,
				EstimatedSeconds: estimateSeconds(op),
			}
			p.Steps = append(p.Steps, step)
			p.EstimatedSeconds += step.EstimatedSeconds
			phase.Steps = append(phase.Steps, step.Index)
		}
		if opts.ParallelExecution {
			phase.Parallelizable = phaseParallelizable(members, g)
		}
		p.Phases = append(p.Phases, phase)
	}

	if len(p.Steps) != len(ops) {
		return nil, dlerrors.NewPlanError(dlerrors.CodeUnexpected,
			"operations with an unknown category were dropped during compilation")
	}
	return p, nil
}

// sortByRank is an insertion sort on topological rank: stable, so ties
// (same target, or targets outside the graph) keep emission order.
func sortByRank(ops []types.Operation, rank map[string]int) {
	rankOf := func(op types.Operation) int {
		if r, ok := rank[op.Target.Key()]; ok {
			return r
		}
		return len(rank)
	}
	for i := 1; i < len(ops); i++ {
		for j := i; j > 0 && rankOf(ops[j]) < rankOf(ops[j-1]); j-- {
			ops[j], ops[j-1] = ops[j-1], ops[j]
		}
	}
}

// phaseParallelizable reports whether no phase member's target depends
// on another member's target.
func phaseParallelizable(members []types.Operation, g *graph.Graph) bool {
	targets := make(map[string]bool, len(members))
	for _, op := range members {
		targets[op.Target.Key()] = true
	}
	for _, op := range members {
		for _, dep := range g.DependenciesOf(op.Target) {
			if targets[dep.Key()] && dep != op.Target {
				return false
			}
		}
	}
	return true
}

func estimateSeconds(op types.Operation) int {
	if s, ok := kindSeconds[op.Kind()]; ok {
		return s
	}
	return defaultStepSeconds
}

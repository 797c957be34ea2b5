package types

// Step wraps one operation inside an execution plan.
type Step struct {
	// Index is the zero-based position of the step in the plan.
	Index int `json:"index"`

	// Phase is the category phase the step belongs to.
	Phase Category `json:"phase"`

	// Operation is the migration operation the step executes.
	Operation Operation `json:"operation"`

	// EstimatedSeconds is the heuristic duration weight for the step.
	EstimatedSeconds int `json:"estimated_seconds"`
}

// Phase groups consecutive steps of one category.
type Phase struct {
	// Category is the object category executed in this phase.
	Category Category `json:"category"`

	// Steps are the plan step indexes contained in the phase.
	Steps []int `json:"steps"`

	// Parallelizable is true when the steps in the phase have no
	// dependency edges between each other.
	Parallelizable bool `json:"parallelizable"`
}

// ExecutionPlan is an ordered, phased sequence of operations ready to hand
// to an external executor.
type ExecutionPlan struct {
	// ID uniquely identifies the plan (UUID).
	ID string `json:"id"`

	// Name is the caller-supplied plan name.
	Name string `json:"name"`

	// Steps are the ordered steps of the plan.
	Steps []Step `json:"steps"`

	// Phases groups the steps by category precedence.
	Phases []Phase `json:"phases"`

	// EstimatedSeconds is the heuristic total duration. An estimate,
	// not a guarantee.
	EstimatedSeconds int `json:"estimated_seconds"`

	// ParallelExecution records whether the caller asked for
	// phase-parallel execution hints.
	ParallelExecution bool `json:"parallel_execution"`
}

// RiskSummary tallies the plan's operations by risk level.
type RiskSummary struct {
	Safe        int `json:"safe"`
	Warning     int `json:"warning"`
	Destructive int `json:"destructive"`
}

// Summary returns the plan's operation tally by risk level.
func (p *ExecutionPlan) Summary() RiskSummary {
	var s RiskSummary
	for _, step := range p.Steps {
		switch step.Operation.Risk {
		case RiskSafe:
			s.Safe++
		case RiskWarning:
			s.Warning++
		case RiskDestructive:
			s.Destructive++
		}
	}
	return s
}

// RollbackStep is one inverse operation in a rollback plan.
type RollbackStep struct {
	// Index is the zero-based position in the rollback plan.
	Index int `json:"index"`

	// ForwardIndex is the index of the forward step this inverts.
	ForwardIndex int `json:"forward_index"`

	// Operation is the inverse operation, or a manual-intervention
	// marker when ManualIntervention is true.
	Operation Operation `json:"operation"`

	// ManualIntervention is true when no deterministic inverse exists.
	// Such steps are never omitted; they keep step-count parity.
	ManualIntervention bool `json:"manual_intervention"`
}

// RollbackPlan is a best-effort sequence of inverse operations undoing an
// execution plan in reverse order. Its step count always equals the
// forward plan's step count.
type RollbackPlan struct {
	// PlanID is the id of the forward plan this rolls back.
	PlanID string `json:"plan_id"`

	// Steps are the inverse steps, one per forward step, reversed.
	Steps []RollbackStep `json:"steps"`
}

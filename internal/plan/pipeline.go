package plan

import (
	"time"

	dlerrors "github.com/driftline/driftline/internal/errors"
	"github.com/driftline/driftline/internal/diff"
	"github.com/driftline/driftline/internal/graph"
	"github.com/driftline/driftline/internal/observability"
	"github.com/driftline/driftline/internal/optimize"
	"github.com/driftline/driftline/internal/schema"
	"github.com/driftline/driftline/pkg/types"
)

// State is the pipeline build state. Stages advance strictly forward;
// Failed is terminal and a new build restarts from a fresh pipeline.
type State string

const (
	StateIdle          State = "IDLE"
	StateParsing       State = "PARSING"
	StateDiffing       State = "DIFFING"
	StateGraphBuilding State = "GRAPH_BUILDING"
	StateOptimizing    State = "OPTIMIZING"
	StateCompiling     State = "COMPILING"
	StateValidated     State = "VALIDATED"
	StateFailed        State = "FAILED"
)

// Pipeline runs one migration build: parse both snapshots, diff, build
// the dependency graph, optimize, compile, validate. A pipeline is
// single-use and owns all intermediate state; independent builds use
// independent pipelines and may run concurrently.
type Pipeline struct {
	opts  Options
	state State

	current     *schema.Model
	target      *schema.Model
	operations  []types.Operation
	graph       *graph.Graph
	plan        *types.ExecutionPlan
	validation  ValidationResult
	diagnostics []types.Diagnostic
	stats       *observability.BuildStats
	failure     error
}

// NewPipeline creates an idle pipeline for one build.
func NewPipeline(opts Options) *Pipeline {
	return &Pipeline{
		opts:  opts,
		state: StateIdle,
		stats: observability.NewBuildStats(),
	}
}

// State returns the pipeline's current build state.
func (p *Pipeline) State() State { return p.state }

// Diagnostics returns every advisory produced so far, across stages.
func (p *Pipeline) Diagnostics() []types.Diagnostic { return p.diagnostics }

// Validation returns the validation result of the compiled plan. Only
// meaningful once Run has finished.
func (p *Pipeline) Validation() ValidationResult { return p.validation }

// Stats returns the build's stage timings and counters.
func (p *Pipeline) Stats() *observability.BuildStats { return p.stats }

// Plan returns the compiled plan, or nil before compilation.
func (p *Pipeline) Plan() *types.ExecutionPlan { return p.plan }

// Failure returns the error that moved the pipeline to Failed, if any.
// A validation failure has no error here; see Validation.
func (p *Pipeline) Failure() error { return p.failure }

// Run executes the whole build from two raw SQL snapshots. It returns
// the compiled plan together with its validation result; the plan is
// executable only when the result is valid and the state is Validated.
// A pipeline that has already run refuses to run again.
func (p *Pipeline) Run(currentSQL, targetSQL string) (*types.ExecutionPlan, ValidationResult, error) {
	if p.state != StateIdle {
		return nil, ValidationResult{}, dlerrors.NewPlanError(dlerrors.CodeInvalidState,
			"pipeline already ran; builds are single-use")
	}

	p.state = StateParsing
	started := time.Now()
	current, curDiags, err := schema.Parse(currentSQL)
	if err != nil {
		return nil, ValidationResult{}, p.fail(err)
	}
	target, tgtDiags, err := schema.Parse(targetSQL)
	if err != nil {
		return nil, ValidationResult{}, p.fail(err)
	}
	p.current, p.target = current, target
	p.diagnostics = append(p.diagnostics, curDiags...)
	p.diagnostics = append(p.diagnostics, tgtDiags...)
	p.stats.RecordStage("parse", time.Since(started))
	p.stats.SetCount("objects_current", current.ObjectCount())
	p.stats.SetCount("objects_target", target.ObjectCount())

	p.state = StateDiffing
	started = time.Now()
	ops, diffDiags := diff.Calculate(current, target)
	p.diagnostics = append(p.diagnostics, diffDiags...)
	p.stats.RecordStage("diff", time.Since(started))
	p.stats.SetCount("operations", len(ops))

	p.state = StateGraphBuilding
	started = time.Now()
	g, graphDiags := graph.Build(current, target)
	p.graph = g
	p.diagnostics = append(p.diagnostics, graphDiags...)
	p.stats.RecordStage("graph", time.Since(started))

	p.state = StateOptimizing
	started = time.Now()
	optimized := optimize.Optimize(ops)
	p.operations = optimized.Operations
	p.stats.RecordStage("optimize", time.Since(started))
	p.stats.SetCount("operations_optimized", len(optimized.Operations))

	p.state = StateCompiling
	started = time.Now()
	compiled, err := Compile(p.operations, g, p.opts)
	if err != nil {
		return nil, ValidationResult{}, p.fail(err)
	}
	p.plan = compiled
	p.stats.RecordStage("compile", time.Since(started))
	p.stats.SetCount("steps", len(compiled.Steps))

	p.validation = Validate(compiled, g, p.diagnostics)
	if !p.validation.Valid {
		p.state = StateFailed
		return compiled, p.validation, nil
	}
	p.state = StateValidated
	return compiled, p.validation, nil
}

// Rollback derives the rollback plan for the validated build. Any other
// state is refused.
func (p *Pipeline) Rollback() (*types.RollbackPlan, error) {
	if p.state != StateValidated {
		return nil, dlerrors.NewPlanError(dlerrors.CodeNotValidated,
			"rollback requires a validated plan")
	}
	if !p.opts.EnableRollback {
		return nil, dlerrors.NewPlanError(dlerrors.CodeRollbackBlocked,
			"rollback generation is disabled for this build")
	}
	return Rollback(p.plan, p.validation, p.current)
}

func (p *Pipeline) fail(err error) error {
	p.state = StateFailed
	p.failure = err
	return err
}

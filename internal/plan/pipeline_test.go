package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dlerrors "github.com/driftline/driftline/internal/errors"
)

func TestPipelineHappyPath(t *testing.T) {
	p := NewPipeline(Options{PlanName: "release-7", EnableRollback: true})
	assert.Equal(t, StateIdle, p.State())

	plan, res, err := p.Run(``, targetWithIndex)
	assert.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, StateValidated, p.State())
	assert.NotNil(t, plan)
	assert.Equal(t, "release-7", plan.Name)
	assert.Len(t, plan.Steps, 3)

	rb, err := p.Rollback()
	assert.NoError(t, err)
	assert.Len(t, rb.Steps, 3)
}

func TestPipelineIsSingleUse(t *testing.T) {
	p := NewPipeline(Options{})
	_, _, err := p.Run(``, `CREATE TABLE t (id int);`)
	assert.NoError(t, err)

	_, _, err = p.Run(``, `CREATE TABLE t (id int);`)
	assert.Error(t, err)
	var de *dlerrors.DriftlineError
	if assert.ErrorAs(t, err, &de) {
		assert.Equal(t, dlerrors.CodeInvalidState, de.Code)
	}
}

func TestPipelineRollbackRequiresValidatedState(t *testing.T) {
	p := NewPipeline(Options{EnableRollback: true})
	_, err := p.Rollback()
	assert.Error(t, err)
	var de *dlerrors.DriftlineError
	if assert.ErrorAs(t, err, &de) {
		assert.Equal(t, dlerrors.CodeNotValidated, de.Code)
	}
}

func TestPipelineRollbackCanBeDisabled(t *testing.T) {
	p := NewPipeline(Options{EnableRollback: false})
	_, _, err := p.Run(``, `CREATE TABLE t (id int);`)
	assert.NoError(t, err)

	_, err = p.Rollback()
	assert.Error(t, err)
	var de *dlerrors.DriftlineError
	if assert.ErrorAs(t, err, &de) {
		assert.Equal(t, dlerrors.CodeRollbackBlocked, de.Code)
	}
}

func TestPipelineFailsOnLexicalError(t *testing.T) {
	p := NewPipeline(Options{})
	_, _, err := p.Run(`CREATE TABLE t (v text DEFAULT 'broken);`, ``)
	assert.Error(t, err)
	assert.Equal(t, StateFailed, p.State())
	assert.Error(t, p.Failure())
}

func TestPipelineFailsOnDependencyCycle(t *testing.T) {
	p := NewPipeline(Options{})
	_, _, err := p.Run(``, `
CREATE TABLE a (id uuid PRIMARY KEY, b_id uuid REFERENCES b(id));
CREATE TABLE b (id uuid PRIMARY KEY, a_id uuid REFERENCES a(id));
`)
	assert.Error(t, err)
	assert.Equal(t, StateFailed, p.State())
}

func TestPipelineCollectsDiagnosticsAndStats(t *testing.T) {
	p := NewPipeline(Options{})
	_, res, err := p.Run(
		`GRANT SELECT ON t TO app; CREATE TABLE t (id int);`,
		`CREATE TABLE t (id int, name text);`)
	assert.NoError(t, err)
	assert.True(t, res.Valid)

	// The unsupported GRANT statement surfaces as a parse diagnostic and
	// flows into the validation warnings.
	assert.NotEmpty(t, p.Diagnostics())
	assert.NotEmpty(t, res.Warnings)

	stats := p.Stats()
	assert.Equal(t, 1, stats.Count("objects_current"))
	assert.Equal(t, 1, stats.Count("objects_target"))
	assert.Equal(t, 1, stats.Count("operations"))
	assert.Equal(t, 1, stats.Count("steps"))
	assert.NotEmpty(t, stats.Stages())
}

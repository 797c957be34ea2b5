package plan

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/driftline/driftline/internal/diff"
	"github.com/driftline/driftline/internal/graph"
	"github.com/driftline/driftline/internal/schema"
	"github.com/driftline/driftline/pkg/types"
)

// compileAndValidate runs diff -> graph -> compile -> validate for two
// snapshots and returns everything a rollback derivation needs.
func compileAndValidate(t *testing.T, currentSQL, targetSQL string) (*types.ExecutionPlan, ValidationResult, *schema.Model) {
	t.Helper()
	cur := mustParse(t, currentSQL)
	tgt := mustParse(t, targetSQL)
	ops, diags := diff.Calculate(cur, tgt)
	g, gDiags := graph.Build(cur, tgt)
	p, err := Compile(ops, g, Options{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	res := Validate(p, g, append(diags, gDiags...))
	return p, res, cur
}

func TestRollbackRefusesInvalidPlans(t *testing.T) {
	_, err := Rollback(&types.ExecutionPlan{}, ValidationResult{Valid: false}, schema.NewModel())
	assert.Error(t, err)
}

func TestRollbackReversesStepOrder(t *testing.T) {
	p, res, cur := compileAndValidate(t, ``, targetWithIndex)
	assert.True(t, res.Valid)

	rb, err := Rollback(p, res, cur)
	assert.NoError(t, err)
	assert.Equal(t, p.ID, rb.PlanID)
	assert.Len(t, rb.Steps, len(p.Steps))

	for i, step := range rb.Steps {
		assert.Equal(t, i, step.Index)
		assert.Equal(t, len(p.Steps)-1-i, step.ForwardIndex)
	}
	// The last forward step (the index build) is undone first.
	assert.Contains(t, rb.Steps[0].Operation.SQL, "DROP INDEX idx_posts_user;")
}

func TestRollbackInvertsCreations(t *testing.T) {
	p, res, cur := compileAndValidate(t, ``, `
CREATE TABLE t (id int);
CREATE FUNCTION f() RETURNS integer LANGUAGE sql AS 'SELECT 1';
`)
	rb, err := Rollback(p, res, cur)
	assert.NoError(t, err)

	var sqls []string
	for _, s := range rb.Steps {
		assert.False(t, s.ManualIntervention)
		sqls = append(sqls, s.Operation.SQL)
	}
	assert.Contains(t, sqls, "DROP TABLE t;")
	assert.Contains(t, sqls, "DROP FUNCTION f();")
}

func TestRollbackRecreatesDroppedTableFromSnapshot(t *testing.T) {
	p, res, cur := compileAndValidate(t,
		`CREATE TABLE legacy (id uuid PRIMARY KEY, note text);`,
		``)
	rb, err := Rollback(p, res, cur)
	assert.NoError(t, err)
	assert.Len(t, rb.Steps, 1)

	step := rb.Steps[0]
	assert.False(t, step.ManualIntervention)
	assert.Equal(t, types.RiskWarning, step.Operation.Risk)
	assert.Contains(t, step.Operation.SQL, "CREATE TABLE legacy")
	assert.Contains(t, step.Operation.Warning, "not restored")
}

func TestRollbackRestoresPreviousDefault(t *testing.T) {
	p, res, cur := compileAndValidate(t,
		`CREATE TABLE m (v text DEFAULT 'old');`,
		`CREATE TABLE m (v text DEFAULT 'new');`)
	rb, err := Rollback(p, res, cur)
	assert.NoError(t, err)
	assert.Len(t, rb.Steps, 1)
	assert.Contains(t, rb.Steps[0].Operation.SQL, "SET DEFAULT 'old'")
}

func TestRollbackRestoresReplacedFunction(t *testing.T) {
	p, res, cur := compileAndValidate(t,
		`CREATE FUNCTION f() RETURNS integer LANGUAGE sql AS 'SELECT 1';`,
		`CREATE FUNCTION f() RETURNS integer LANGUAGE sql AS 'SELECT 2';`)
	rb, err := Rollback(p, res, cur)
	assert.NoError(t, err)
	assert.Len(t, rb.Steps, 1)

	sql := rb.Steps[0].Operation.SQL
	assert.Contains(t, sql, "CREATE OR REPLACE FUNCTION")
	assert.Contains(t, sql, "SELECT 1")
}

func TestRollbackMarksEnumValueRemovalManual(t *testing.T) {
	p, res, cur := compileAndValidate(t,
		`CREATE TYPE st AS ENUM ('a', 'b');`,
		`CREATE TYPE st AS ENUM ('a');`)
	rb, err := Rollback(p, res, cur)
	assert.NoError(t, err)
	assert.Len(t, rb.Steps, 1)

	step := rb.Steps[0]
	assert.True(t, step.ManualIntervention)
	assert.True(t, step.Operation.RequiresConfirmation)
	assert.Contains(t, step.Operation.SQL, "MANUAL INTERVENTION REQUIRED")
}

func TestRollbackEnumValueAdditionIsManual(t *testing.T) {
	// ALTER TYPE ... ADD VALUE cannot be undone without recreating the
	// type, so its inverse is a manual step.
	p, res, cur := compileAndValidate(t,
		`CREATE TYPE st AS ENUM ('a');`,
		`CREATE TYPE st AS ENUM ('a', 'b');`)
	rb, err := Rollback(p, res, cur)
	assert.NoError(t, err)
	assert.Len(t, rb.Steps, 1)
	assert.True(t, rb.Steps[0].ManualIntervention)
}

func TestRollbackInvertsEveryMergedAlteration(t *testing.T) {
	p := NewPipeline(Options{EnableRollback: true})
	compiled, res, err := p.Run(
		`CREATE TABLE users (id uuid PRIMARY KEY);`,
		`CREATE TABLE users (id uuid PRIMARY KEY, a text, b text);`)
	assert.NoError(t, err)
	assert.True(t, res.Valid)

	// The two column additions fold into a single forward step.
	assert.Len(t, compiled.Steps, 1)
	assert.Len(t, compiled.Steps[0].Operation.Folded, 1)

	rb, err := p.Rollback()
	assert.NoError(t, err)
	assert.Len(t, rb.Steps, 1)

	step := rb.Steps[0]
	assert.False(t, step.ManualIntervention)
	assert.Contains(t, step.Operation.SQL, "ALTER TABLE users DROP COLUMN a;")
	assert.Contains(t, step.Operation.SQL, "ALTER TABLE users DROP COLUMN b;")
	// The later alteration is undone first.
	assert.Less(t,
		strings.Index(step.Operation.SQL, "DROP COLUMN b;"),
		strings.Index(step.Operation.SQL, "DROP COLUMN a;"))
}

func TestRollbackMergedStepWithUninvertibleComponentIsManual(t *testing.T) {
	id := types.Identity{Category: types.CategoryTable, Name: "users"}
	lead := types.Operation{
		Risk:   types.RiskSafe,
		Target: id,
		SQL:    "ALTER TABLE users ADD COLUMN a text;",
		Metadata: map[string]string{
			types.MetaKind:   types.KindAddColumn,
			types.MetaTable:  "users",
			types.MetaColumn: "a",
		},
		Folded: []types.Operation{{
			Risk:        types.RiskWarning,
			Target:      id,
			SQL:         "ALTER TABLE users SET (fillfactor = 70);",
			Description: "Tune storage parameters of users",
			Metadata:    map[string]string{types.MetaTable: "users"},
		}},
	}
	p := &types.ExecutionPlan{Steps: []types.Step{{Operation: lead}}}

	rb, err := Rollback(p, ValidationResult{Valid: true}, schema.NewModel())
	assert.NoError(t, err)
	assert.Len(t, rb.Steps, 1)

	// One component has no deterministic inverse, so the whole merged
	// step falls back to manual intervention.
	step := rb.Steps[0]
	assert.True(t, step.ManualIntervention)
	assert.True(t, step.Operation.RequiresConfirmation)
	assert.Contains(t, step.Operation.SQL, "MANUAL INTERVENTION REQUIRED")
}

func TestRollbackRestoresRecreatedPolicy(t *testing.T) {
	p, res, cur := compileAndValidate(t,
		`CREATE POLICY p ON docs USING (a = 1);`,
		`CREATE POLICY p ON docs USING (a = 2);`)
	rb, err := Rollback(p, res, cur)
	assert.NoError(t, err)
	assert.Len(t, rb.Steps, 1)

	sql := rb.Steps[0].Operation.SQL
	assert.Contains(t, sql, "DROP POLICY IF EXISTS p ON docs;")
	assert.Contains(t, sql, "(a = 1)")
}

func TestRollbackParityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	snapshot := func(raw []string) string {
		seen := make(map[string]bool)
		var sb strings.Builder
		for _, n := range raw {
			n = "t_" + strings.ToLower(n)
			if seen[n] {
				continue
			}
			seen[n] = true
			fmt.Fprintf(&sb, "CREATE TABLE %s (id uuid PRIMARY KEY);\n", n)
		}
		return sb.String()
	}

	properties.Property("every forward step has exactly one rollback step", prop.ForAll(
		func(curNames, tgtNames []string) bool {
			cur, _, err := schema.Parse(snapshot(curNames))
			if err != nil {
				return false
			}
			tgt, _, err := schema.Parse(snapshot(tgtNames))
			if err != nil {
				return false
			}
			ops, _ := diff.Calculate(cur, tgt)
			g, _ := graph.Build(cur, tgt)
			p, err := Compile(ops, g, Options{})
			if err != nil {
				return false
			}
			res := Validate(p, g, nil)
			if !res.Valid {
				return false
			}
			rb, err := Rollback(p, res, cur)
			if err != nil {
				return false
			}
			return len(rb.Steps) == len(p.Steps)
		},
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}

package plan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/driftline/driftline/internal/graph"
	"github.com/driftline/driftline/internal/schema"
	"github.com/driftline/driftline/pkg/types"
)

func TestValidateAcceptsCompiledPlan(t *testing.T) {
	ops, g := buildInputs(t, ``, targetWithIndex)
	p, err := Compile(ops, g, Options{})
	assert.NoError(t, err)

	res := Validate(p, g, nil)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

func TestValidateRejectsUnconfirmedDestructiveStep(t *testing.T) {
	ops, g := buildInputs(t, ``, `CREATE TABLE t (id int);`)
	p, err := Compile(ops, g, Options{})
	assert.NoError(t, err)

	// Simulate a caller clearing the confirmation gate by hand.
	p.Steps[0].Operation.Risk = types.RiskDestructive
	p.Steps[0].Operation.RequiresConfirmation = false

	res := Validate(p, g, nil)
	assert.False(t, res.Valid)
	if assert.Len(t, res.Errors, 1) {
		assert.Contains(t, res.Errors[0], "destructive but does not require confirmation")
	}
}

func TestValidateReportsDependencyCycles(t *testing.T) {
	m := mustParse(t, `
CREATE TABLE a (id uuid PRIMARY KEY, b_id uuid REFERENCES b(id));
CREATE TABLE b (id uuid PRIMARY KEY, a_id uuid REFERENCES a(id));
`)
	g, _ := graph.Build(m, m)

	res := Validate(&types.ExecutionPlan{}, g, nil)
	assert.False(t, res.Valid)
	if assert.NotEmpty(t, res.Errors) {
		assert.Contains(t, res.Errors[0], "dependency cycle")
		assert.Contains(t, res.Errors[0], "->")
	}
}

func TestValidateReportsOrderingViolations(t *testing.T) {
	m := mustParse(t, `
CREATE TABLE users (id uuid PRIMARY KEY);
CREATE TABLE posts (id uuid PRIMARY KEY, user_id uuid REFERENCES users(id));
`)
	g, _ := graph.Build(schema.NewModel(), m)

	// Hand-built plan scheduling posts before users.
	mk := func(idx int, name string) types.Step {
		return types.Step{
			Index: idx,
			Phase: types.CategoryTable,
			Operation: types.Operation{
				Risk:     types.RiskSafe,
				Target:   types.Identity{Category: types.CategoryTable, Name: name},
				SQL:      "CREATE TABLE " + name + " ();",
				Metadata: map[string]string{types.MetaKind: types.KindCreateTable},
			},
		}
	}
	p := &types.ExecutionPlan{Steps: []types.Step{mk(0, "posts"), mk(1, "users")}}

	res := Validate(p, g, nil)
	assert.False(t, res.Valid)
	if assert.Len(t, res.Errors, 1) {
		assert.Contains(t, res.Errors[0], "runs before")
	}
}

func TestValidatePromotesDiagnosticsToWarnings(t *testing.T) {
	ops, g := buildInputs(t, ``, `CREATE TABLE t (id int);`)
	p, err := Compile(ops, g, Options{})
	assert.NoError(t, err)

	diags := []types.Diagnostic{
		{Level: types.DiagWarning, Stage: "graph", Message: "edge dangles"},
		{Level: types.DiagInfo, Stage: "parse", Message: "informational only"},
	}
	res := Validate(p, g, diags)
	assert.True(t, res.Valid)
	assert.Equal(t, []string{"edge dangles"}, res.Warnings)
}

func TestValidateWarnsOnFunctionDrops(t *testing.T) {
	ops, g := buildInputs(t,
		`CREATE FUNCTION f() RETURNS integer LANGUAGE sql AS 'SELECT 1';`,
		``)
	p, err := Compile(ops, g, Options{})
	assert.NoError(t, err)

	res := Validate(p, g, nil)
	assert.True(t, res.Valid)

	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "drops function f()") {
			found = true
		}
	}
	assert.True(t, found)
}

package plan

import (
	"fmt"
	"regexp"
	"strings"

	dlerrors "github.com/driftline/driftline/internal/errors"
	"github.com/driftline/driftline/internal/schema"
	"github.com/driftline/driftline/pkg/types"
)

var createFnRe = regexp.MustCompile(`(?i)^(\s*CREATE\s+)(FUNCTION\b)`)

// Rollback derives a best-effort rollback plan from a validated forward
// plan, using the pre-migration schema model to reconstruct dropped
// definitions. Steps invert in reverse order; every forward step yields
// exactly one rollback step, with a manual-intervention marker where no
// deterministic inverse exists. Unvalidated plans are refused.
func Rollback(p *types.ExecutionPlan, res ValidationResult, current *schema.Model) (*types.RollbackPlan, error) {
	if !res.Valid {
		return nil, dlerrors.NewPlanError(dlerrors.CodeRollbackBlocked,
			"rollback plans are derived from validated plans only")
	}

	rb := &types.RollbackPlan{PlanID: p.ID}
	for i := len(p.Steps) - 1; i >= 0; i-- {
		fwd := p.Steps[i]
		op, manual := invertStep(fwd.Operation, current)
		rb.Steps = append(rb.Steps, types.RollbackStep{
			Index:              len(rb.Steps),
			ForwardIndex:       fwd.Index,
			Operation:          op,
			ManualIntervention: manual,
		})
	}
	return rb, nil
}

// invertStep inverts one forward step. Steps the optimizer merged invert
// component by component, last alteration first; if any component lacks
// a deterministic inverse the whole step becomes a manual-intervention
// marker.
func invertStep(op types.Operation, current *schema.Model) (types.Operation, bool) {
	if len(op.Folded) == 0 {
		return invert(op, current)
	}

	lead := op
	lead.Folded = nil
	parts := append([]types.Operation{lead}, op.Folded...)

	risk := types.RiskSafe
	var sqls, descs, warnings []string
	for i := len(parts) - 1; i >= 0; i-- {
		inv, manual := invert(parts[i], current)
		if manual {
			return manualStep(op), true
		}
		risk = risk.Max(inv.Risk)
		sqls = append(sqls, inv.SQL)
		descs = append(descs, inv.Description)
		if inv.Warning != "" {
			warnings = append(warnings, inv.Warning)
		}
	}
	return inverse(risk, op.Target,
		strings.Join(sqls, "\n"),
		strings.Join(descs, "; "),
		strings.Join(warnings, "; ")), false
}

// invert produces the inverse of one forward operation. Inverses of
// creations are drops of the just-created object; inverses of drops
// recreate the previous definition from the pre-migration model, which
// restores structure but never data.
func invert(op types.Operation, current *schema.Model) (types.Operation, bool) {
	id := op.Target
	table := op.Meta(types.MetaTable)
	column := op.Meta(types.MetaColumn)

	switch op.Kind() {
	case types.KindCreateTable:
		return inverse(types.RiskSafe, id,
			fmt.Sprintf("DROP TABLE %s;", id.Name),
			fmt.Sprintf("Drop table %s created by the migration", id.Name), ""), false

	case types.KindDropTable:
		if t, ok := current.Tables[id.Name]; ok {
			return inverse(types.RiskWarning, id,
				ensureTerminated(t.Raw),
				fmt.Sprintf("Recreate table %s", id.Name),
				"recreates the table structure only; deleted rows are not restored"), false
		}

	case types.KindAddColumn:
		return inverse(types.RiskSafe, id,
			fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", table, column),
			fmt.Sprintf("Drop column %s.%s added by the migration", table, column), ""), false

	case types.KindDropColumn:
		if t, ok := current.Tables[table]; ok {
			if col := t.Column(column); col != nil {
				return inverse(types.RiskWarning, id,
					fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", table, columnSQL(col)),
					fmt.Sprintf("Recreate column %s.%s", table, column),
					"recreates the column only; deleted values are not restored"), false
			}
		}

	case types.KindAlterColumnType:
		if t, ok := current.Tables[table]; ok {
			if col := t.Column(column); col != nil {
				return inverse(types.RiskWarning, id,
					fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s;", table, column, col.Type),
					fmt.Sprintf("Restore type of %s.%s to %s", table, column, col.Type),
					"the reverse conversion may fail on values only valid in the new type"), false
			}
		}

	case types.KindAlterColumnNotNul:
		return inverse(types.RiskSafe, id,
			fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL;", table, column),
			fmt.Sprintf("Make %s.%s nullable again", table, column), ""), false

	case types.KindAlterColumnNull:
		return inverse(types.RiskWarning, id,
			fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL;", table, column),
			fmt.Sprintf("Restore NOT NULL on %s.%s", table, column),
			"fails if NULL values were written while the column was nullable"), false

	case types.KindSetDefault:
		if prev := op.Meta("previous_default"); prev != "" {
			return inverse(types.RiskSafe, id,
				fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s;", table, column, prev),
				fmt.Sprintf("Restore previous default of %s.%s", table, column), ""), false
		}
		return inverse(types.RiskSafe, id,
			fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT;", table, column),
			fmt.Sprintf("Drop default added to %s.%s", table, column), ""), false

	case types.KindDropDefault:
		if t, ok := current.Tables[table]; ok {
			if col := t.Column(column); col != nil && col.Default != "" {
				return inverse(types.RiskSafe, id,
					fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s;", table, column, col.Default),
					fmt.Sprintf("Restore default of %s.%s", table, column), ""), false
			}
		}

	case types.KindCreateEnum:
		return inverse(types.RiskSafe, id,
			fmt.Sprintf("DROP TYPE %s;", id.Name),
			fmt.Sprintf("Drop enum type %s created by the migration", id.Name), ""), false

	case types.KindDropEnum:
		if e, ok := current.Enums[id.Name]; ok {
			return inverse(types.RiskSafe, id,
				ensureTerminated(e.Raw),
				fmt.Sprintf("Recreate enum type %s", id.Name), ""), false
		}

	case types.KindCreateFunction:
		return inverse(types.RiskSafe, id,
			fmt.Sprintf("DROP FUNCTION %s;", id.Name),
			fmt.Sprintf("Drop function %s created by the migration", id.Name), ""), false

	case types.KindReplaceFunction, types.KindDropFunction:
		if f, ok := current.Functions[id.Name]; ok {
			return inverse(types.RiskSafe, id,
				orReplaceFunction(ensureTerminated(f.Raw)),
				fmt.Sprintf("Restore previous definition of function %s", id.Name), ""), false
		}

	case types.KindCreateTrigger:
		return inverse(types.RiskSafe, id,
			fmt.Sprintf("DROP TRIGGER %s ON %s;", nameOnTable(id.Name, table), table),
			fmt.Sprintf("Drop trigger created by the migration on %s", table), ""), false

	case types.KindDropTrigger:
		if t, ok := current.Triggers[id.Name]; ok {
			return inverse(types.RiskWarning, id,
				fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s;\n%s", t.Name, t.Table, ensureTerminated(t.Raw)),
				fmt.Sprintf("Restore previous trigger %s on %s", t.Name, t.Table),
				"writes during the outage window were not checked by the trigger"), false
		}

	case types.KindCreatePolicy:
		return inverse(types.RiskSafe, id,
			fmt.Sprintf("DROP POLICY %s ON %s;", nameOnTable(id.Name, table), table),
			fmt.Sprintf("Drop policy created by the migration on %s", table), ""), false

	case types.KindDropPolicy, types.KindRecreatePolicy:
		if p, ok := current.Policies[id.Name]; ok {
			return inverse(types.RiskWarning, id,
				fmt.Sprintf("DROP POLICY IF EXISTS %s ON %s;\n%s", p.Name, p.Table, ensureTerminated(p.Raw)),
				fmt.Sprintf("Restore previous policy %s on %s", p.Name, p.Table),
				"rows written while the policy was absent were not restricted by it"), false
		}

	case types.KindCreateIndex:
		return inverse(types.RiskSafe, id,
			fmt.Sprintf("DROP INDEX %s;", id.Name),
			fmt.Sprintf("Drop index %s created by the migration", id.Name), ""), false

	case types.KindDropIndex:
		if idx, ok := current.Indexes[id.Name]; ok {
			return inverse(types.RiskSafe, id,
				fmt.Sprintf("DROP INDEX IF EXISTS %s;\n%s", idx.Name, ensureTerminated(idx.Raw)),
				fmt.Sprintf("Restore previous index %s", idx.Name), ""), false
		}

	case types.KindCreateView:
		if v, ok := current.Views[id.Name]; ok {
			return inverse(types.RiskSafe, id,
				ensureTerminated(v.Raw),
				fmt.Sprintf("Restore previous definition of view %s", id.Name), ""), false
		}
		return inverse(types.RiskSafe, id,
			fmt.Sprintf("DROP VIEW %s;", id.Name),
			fmt.Sprintf("Drop view %s created by the migration", id.Name), ""), false

	case types.KindDropView:
		if v, ok := current.Views[id.Name]; ok {
			return inverse(types.RiskSafe, id,
				ensureTerminated(v.Raw),
				fmt.Sprintf("Recreate view %s", id.Name), ""), false
		}

	case types.KindCreateExtension:
		return inverse(types.RiskWarning, id,
			fmt.Sprintf("DROP EXTENSION %s;", id.Name),
			fmt.Sprintf("Remove extension %s installed by the migration", id.Name),
			"fails if other objects started depending on the extension"), false

	case types.KindDropExtension:
		if e, ok := current.Extensions[id.Name]; ok {
			return inverse(types.RiskSafe, id,
				ensureTerminated(e.Raw),
				fmt.Sprintf("Reinstall extension %s", id.Name), ""), false
		}

	case types.KindCreateSchema:
		return inverse(types.RiskWarning, id,
			fmt.Sprintf("DROP SCHEMA %s;", id.Name),
			fmt.Sprintf("Drop schema %s created by the migration", id.Name),
			"fails if objects were created inside the schema after migration"), false
	}

	// No deterministic inverse: dropped schemas lose their contents, enum
	// values cannot be removed, and unknown kinds are opaque.
	return manualStep(op), true
}

func inverse(risk types.RiskLevel, target types.Identity, sql, description, warning string) types.Operation {
	return types.Operation{
		Risk:                 risk,
		Target:               target,
		SQL:                  sql,
		Description:          description,
		Warning:              warning,
		RequiresConfirmation: risk == types.RiskDestructive,
		Metadata:             map[string]string{types.MetaKind: "rollback"},
	}
}

func manualStep(fwd types.Operation) types.Operation {
	return types.Operation{
		Risk:   types.RiskWarning,
		Target: fwd.Target,
		SQL: fmt.Sprintf("-- MANUAL INTERVENTION REQUIRED: no deterministic inverse for %q (%s).",
			fwd.Description, fwd.Kind()),
		Description:          fmt.Sprintf("Manually undo: %s", fwd.Description),
		Warning:              "this step cannot be generated automatically and must be performed by an operator",
		RequiresConfirmation: true,
		Metadata:             map[string]string{types.MetaKind: "rollback-manual"},
	}
}

// nameOnTable strips the "table." prefix from a table-scoped identity.
func nameOnTable(identityName, table string) string {
	return strings.TrimPrefix(identityName, table+".")
}

func columnSQL(col *schema.Column) string {
	sql := col.Name + " " + col.Type
	if !col.Nullable {
		sql += " NOT NULL"
	}
	if col.Default != "" {
		sql += " DEFAULT " + col.Default
	}
	return sql
}

func ensureTerminated(sql string) string {
	sql = strings.TrimSpace(sql)
	if strings.HasSuffix(sql, ";") {
		return sql
	}
	return sql + ";"
}

func orReplaceFunction(sql string) string {
	return createFnRe.ReplaceAllString(sql, "${1}OR REPLACE ${2}")
}

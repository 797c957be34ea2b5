package diff

import (
	"fmt"

	"github.com/driftline/driftline/internal/schema"
	"github.com/driftline/driftline/pkg/types"
)

func (e Engine) diffTables(current, target *schema.Model) ([]types.Operation, []types.Diagnostic) {
	var (
		ops   []types.Operation
		diags []types.Diagnostic
	)

	for _, name := range sortedKeys(target.Tables) {
		tgt := target.Tables[name]
		cur, exists := current.Tables[name]
		if !exists {
			op, d := createTableOp(tgt)
			ops = append(ops, op)
			if d != nil {
				diags = append(diags, *d)
			}
			continue
		}
		cOps, cDiags := compareTables(cur, tgt)
		ops = append(ops, cOps...)
		diags = append(diags, cDiags...)
	}

	for _, name := range sortedKeys(current.Tables) {
		if _, exists := target.Tables[name]; exists {
			continue
		}
		cur := current.Tables[name]
		warning := fmt.Sprintf("dropping table %s irrecoverably deletes all of its rows", name)
		if hasCascade(cur.Raw) {
			warning += "; cascading foreign keys may delete dependent rows as well"
		}
		ops = append(ops, newOp(
			types.RiskDestructive,
			cur.Identity(),
			fmt.Sprintf("DROP TABLE %s;", name),
			fmt.Sprintf("Drop table %s", name),
			warning,
			types.KindDropTable,
			map[string]string{types.MetaTable: name},
		))
	}

	return ops, diags
}

// createTableOp emits a CREATE TABLE operation. A table with no columns is
// malformed; it degrades to a minimal operation plus a diagnostic.
func createTableOp(t *schema.Table) (types.Operation, *types.Diagnostic) {
	op := newOp(
		types.RiskSafe,
		t.Identity(),
		terminate(t.Raw),
		fmt.Sprintf("Create table %s with %d column(s)", t.Name, len(t.Columns)),
		"",
		types.KindCreateTable,
		map[string]string{types.MetaTable: t.Name},
	)
	if len(t.Columns) == 0 {
		return op, &types.Diagnostic{
			Level:   types.DiagWarning,
			Stage:   "diff",
			Message: fmt.Sprintf("table %s has no extractable columns; emitting its raw definition as-is", t.Name),
		}
	}
	return op, nil
}

// compareTables produces column-level alterations for a table present in
// both models.
func compareTables(cur, tgt *schema.Table) ([]types.Operation, []types.Diagnostic) {
	var (
		ops   []types.Operation
		diags []types.Diagnostic
	)
	if len(cur.Columns) == 0 && len(tgt.Columns) == 0 {
		diags = append(diags, types.Diagnostic{
			Level:   types.DiagWarning,
			Stage:   "diff",
			Message: fmt.Sprintf("table %s has no columns in either snapshot; nothing to compare", cur.Name),
		})
		return ops, diags
	}

	// Added and altered columns follow the target's declaration order.
	for i := range tgt.Columns {
		tc := &tgt.Columns[i]
		cc := cur.Column(tc.Name)
		if cc == nil {
			ops = append(ops, addColumnOp(tgt.Name, tc))
			continue
		}
		ops = append(ops, compareColumns(tgt.Name, cc, tc)...)
	}

	for i := range cur.Columns {
		cc := &cur.Columns[i]
		if tgt.Column(cc.Name) != nil {
			continue
		}
		ops = append(ops, newOp(
			types.RiskDestructive,
			tgt.Identity(),
			fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", tgt.Name, cc.Name),
			fmt.Sprintf("Drop column %s.%s", tgt.Name, cc.Name),
			fmt.Sprintf("dropping column %s.%s irrecoverably deletes its data", tgt.Name, cc.Name),
			types.KindDropColumn,
			map[string]string{types.MetaTable: tgt.Name, types.MetaColumn: cc.Name},
		))
	}

	return ops, diags
}

func addColumnOp(table string, col *schema.Column) types.Operation {
	return newOp(
		types.RiskSafe,
		types.Identity{Category: types.CategoryTable, Name: table},
		fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", table, columnDefSQL(col)),
		fmt.Sprintf("Add column %s.%s (%s)", table, col.Name, col.Type),
		"",
		types.KindAddColumn,
		map[string]string{types.MetaTable: table, types.MetaColumn: col.Name},
	)
}

// compareColumns emits alterations for a column present in both snapshots.
func compareColumns(table string, cur, tgt *schema.Column) []types.Operation {
	var ops []types.Operation
	id := types.Identity{Category: types.CategoryTable, Name: table}
	meta := func() map[string]string {
		return map[string]string{types.MetaTable: table, types.MetaColumn: tgt.Name}
	}

	if cur.Type != tgt.Type {
		ops = append(ops, newOp(
			types.RiskWarning,
			id,
			fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s;", table, tgt.Name, tgt.Type),
			fmt.Sprintf("Change type of %s.%s from %s to %s", table, tgt.Name, cur.Type, tgt.Type),
			fmt.Sprintf("type conversion from %s to %s may fail or truncate existing values", cur.Type, tgt.Type),
			types.KindAlterColumnType,
			meta(),
		))
	}

	if cur.Nullable && !tgt.Nullable {
		ops = append(ops, newOp(
			types.RiskWarning,
			id,
			fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL;", table, tgt.Name),
			fmt.Sprintf("Make %s.%s required", table, tgt.Name),
			fmt.Sprintf("SET NOT NULL fails if %s.%s contains NULL values", table, tgt.Name),
			types.KindAlterColumnNotNul,
			meta(),
		))
	} else if !cur.Nullable && tgt.Nullable {
		ops = append(ops, newOp(
			types.RiskSafe,
			id,
			fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL;", table, tgt.Name),
			fmt.Sprintf("Make %s.%s nullable", table, tgt.Name),
			"",
			types.KindAlterColumnNull,
			meta(),
		))
	}

	if cur.Default != tgt.Default {
		if tgt.Default == "" {
			ops = append(ops, newOp(
				types.RiskSafe,
				id,
				fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT;", table, tgt.Name),
				fmt.Sprintf("Drop default of %s.%s", table, tgt.Name),
				"",
				types.KindDropDefault,
				meta(),
			))
		} else {
			m := meta()
			m["previous_default"] = cur.Default
			ops = append(ops, newOp(
				types.RiskSafe,
				id,
				fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s;", table, tgt.Name, tgt.Default),
				fmt.Sprintf("Set default of %s.%s to %s", table, tgt.Name, tgt.Default),
				"",
				types.KindSetDefault,
				m,
			))
		}
	}

	return ops
}

// columnDefSQL renders a column definition for ADD COLUMN.
func columnDefSQL(col *schema.Column) string {
	sql := col.Name + " " + col.Type
	if !col.Nullable {
		sql += " NOT NULL"
	}
	if col.Default != "" {
		sql += " DEFAULT " + col.Default
	}
	return sql
}

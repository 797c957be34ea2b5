package diff

import (
	"fmt"
	"strings"

	"github.com/driftline/driftline/internal/schema"
	"github.com/driftline/driftline/pkg/types"
)

func (e Engine) diffIndexes(current, target *schema.Model) ([]types.Operation, []types.Diagnostic) {
	var ops []types.Operation

	for _, key := range sortedKeys(target.Indexes) {
		tgt := target.Indexes[key]
		cur, exists := current.Indexes[key]
		if !exists {
			ops = append(ops, newOp(
				types.RiskSafe,
				tgt.Identity(),
				terminate(tgt.Raw),
				fmt.Sprintf("Create index %s on table %s", tgt.Name, tgt.Table),
				"",
				types.KindCreateIndex,
				map[string]string{types.MetaTable: tgt.Table},
			))
			continue
		}
		if indexChanged(cur, tgt) {
			ops = append(ops, newOp(
				types.RiskWarning,
				tgt.Identity(),
				fmt.Sprintf("DROP INDEX %s;\n%s", tgt.Name, terminate(tgt.Raw)),
				fmt.Sprintf("Rebuild index %s on table %s", tgt.Name, tgt.Table),
				fmt.Sprintf("queries on %s lose index %s while it is rebuilt; rebuilding locks writes unless done concurrently", tgt.Table, tgt.Name),
				types.KindDropIndex,
				map[string]string{types.MetaTable: tgt.Table},
			))
		}
	}

	for _, key := range sortedKeys(current.Indexes) {
		if _, exists := target.Indexes[key]; exists {
			continue
		}
		cur := current.Indexes[key]
		ops = append(ops, newOp(
			types.RiskWarning,
			cur.Identity(),
			fmt.Sprintf("DROP INDEX %s;", cur.Name),
			fmt.Sprintf("Drop index %s on table %s", cur.Name, cur.Table),
			fmt.Sprintf("queries relying on index %s fall back to sequential scans", cur.Name),
			types.KindDropIndex,
			map[string]string{types.MetaTable: cur.Table},
		))
	}

	return ops, nil
}

func indexChanged(cur, tgt *schema.Index) bool {
	return cur.Table != tgt.Table ||
		cur.Unique != tgt.Unique ||
		cur.Method != tgt.Method ||
		cur.Where != tgt.Where ||
		strings.Join(cur.Columns, ",") != strings.Join(tgt.Columns, ",")
}

package diff

import (
	"fmt"
	"strings"

	"github.com/driftline/driftline/internal/schema"
	"github.com/driftline/driftline/pkg/types"
)

func (e Engine) diffTriggers(current, target *schema.Model) ([]types.Operation, []types.Diagnostic) {
	var ops []types.Operation

	for _, key := range sortedKeys(target.Triggers) {
		tgt := target.Triggers[key]
		cur, exists := current.Triggers[key]
		if !exists {
			ops = append(ops, newOp(
				types.RiskSafe,
				tgt.Identity(),
				terminate(tgt.Raw),
				fmt.Sprintf("Create trigger %s on table %s", tgt.Name, tgt.Table),
				"",
				types.KindCreateTrigger,
				map[string]string{types.MetaTable: tgt.Table},
			))
			continue
		}
		if triggerChanged(cur, tgt) {
			ops = append(ops, newOp(
				types.RiskWarning,
				tgt.Identity(),
				fmt.Sprintf("DROP TRIGGER %s ON %s;\n%s", tgt.Name, tgt.Table, terminate(tgt.Raw)),
				fmt.Sprintf("Recreate trigger %s on table %s", tgt.Name, tgt.Table),
				fmt.Sprintf("trigger %s does not fire for writes to %s during the drop/recreate window", tgt.Name, tgt.Table),
				types.KindDropTrigger,
				map[string]string{types.MetaTable: tgt.Table},
			))
		}
	}

	for _, key := range sortedKeys(current.Triggers) {
		if _, exists := target.Triggers[key]; exists {
			continue
		}
		cur := current.Triggers[key]
		ops = append(ops, newOp(
			types.RiskWarning,
			cur.Identity(),
			fmt.Sprintf("DROP TRIGGER %s ON %s;", cur.Name, cur.Table),
			fmt.Sprintf("Drop trigger %s on table %s", cur.Name, cur.Table),
			fmt.Sprintf("behavior enforced by trigger %s stops applying to %s", cur.Name, cur.Table),
			types.KindDropTrigger,
			map[string]string{types.MetaTable: cur.Table},
		))
	}

	return ops, nil
}

func triggerChanged(cur, tgt *schema.Trigger) bool {
	return cur.Timing != tgt.Timing ||
		cur.ForEachRow != tgt.ForEachRow ||
		cur.Function != tgt.Function ||
		cur.When != tgt.When ||
		strings.Join(cur.Events, ",") != strings.Join(tgt.Events, ",")
}

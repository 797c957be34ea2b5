package diff

import (
	"fmt"
	"strings"

	"github.com/driftline/driftline/internal/schema"
	"github.com/driftline/driftline/pkg/types"
)

func (e Engine) diffEnums(current, target *schema.Model) ([]types.Operation, []types.Diagnostic) {
	var ops []types.Operation

	for _, name := range sortedKeys(target.Enums) {
		tgt := target.Enums[name]
		cur, exists := current.Enums[name]
		if !exists {
			ops = append(ops, newOp(
				types.RiskSafe,
				tgt.Identity(),
				terminate(tgt.Raw),
				fmt.Sprintf("Create enum type %s with %d value(s)", name, len(tgt.Values)),
				"",
				types.KindCreateEnum,
				nil,
			))
			continue
		}
		ops = append(ops, compareEnums(cur, tgt)...)
	}

	for _, name := range sortedKeys(current.Enums) {
		if _, exists := target.Enums[name]; exists {
			continue
		}
		cur := current.Enums[name]
		ops = append(ops, newOp(
			types.RiskDestructive,
			cur.Identity(),
			fmt.Sprintf("DROP TYPE %s;", name),
			fmt.Sprintf("Drop enum type %s", name),
			fmt.Sprintf("dropping type %s fails if any column still uses it", name),
			types.KindDropEnum,
			nil,
		))
	}

	return ops, nil
}

// compareEnums treats enum values as append-only: additions are safe, any
// removal has no systemic expression in PostgreSQL and collapses into one
// destructive manual-intervention operation naming every removed value.
func compareEnums(cur, tgt *schema.Enum) []types.Operation {
	var ops []types.Operation

	curSet := make(map[string]bool, len(cur.Values))
	for _, v := range cur.Values {
		curSet[v] = true
	}
	tgtSet := make(map[string]bool, len(tgt.Values))
	for _, v := range tgt.Values {
		tgtSet[v] = true
	}

	for _, v := range tgt.Values {
		if !curSet[v] {
			ops = append(ops, newOp(
				types.RiskSafe,
				tgt.Identity(),
				fmt.Sprintf("ALTER TYPE %s ADD VALUE '%s';", tgt.Name, v),
				fmt.Sprintf("Add value %q to enum %s", v, tgt.Name),
				"",
				types.KindEnumAddValue,
				nil,
			))
		}
	}

	var removed []string
	for _, v := range cur.Values {
		if !tgtSet[v] {
			removed = append(removed, v)
		}
	}
	if len(removed) > 0 {
		list := strings.Join(removed, ", ")
		ops = append(ops, newOp(
			types.RiskDestructive,
			tgt.Identity(),
			fmt.Sprintf("-- MANUAL INTERVENTION REQUIRED: PostgreSQL cannot drop enum value(s) %s from type %s. Recreate the type and migrate dependent columns by hand.", list, tgt.Name),
			fmt.Sprintf("Remove value(s) %s from enum %s", list, tgt.Name),
			fmt.Sprintf("enum value removal is not supported by ALTER TYPE; values %s require manual type recreation", list),
			types.KindEnumRemoveValues,
			map[string]string{"removed_values": list},
		))
	}

	return ops
}

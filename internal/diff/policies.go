package diff

import (
	"fmt"
	"strings"

	"github.com/driftline/driftline/internal/schema"
	"github.com/driftline/driftline/pkg/types"
)

func (e Engine) diffPolicies(current, target *schema.Model) ([]types.Operation, []types.Diagnostic) {
	var ops []types.Operation

	for _, key := range sortedKeys(target.Policies) {
		tgt := target.Policies[key]
		cur, exists := current.Policies[key]
		if !exists {
			ops = append(ops, newOp(
				types.RiskSafe,
				tgt.Identity(),
				terminate(tgt.Raw),
				fmt.Sprintf("Create policy %s on table %s", tgt.Name, tgt.Table),
				"",
				types.KindCreatePolicy,
				map[string]string{types.MetaTable: tgt.Table},
			))
			continue
		}
		if policyChanged(cur, tgt) {
			// PostgreSQL has no atomic policy replacement; the update is
			// a drop followed by a create, with a visibility gap between.
			ops = append(ops, newOp(
				types.RiskWarning,
				tgt.Identity(),
				fmt.Sprintf("DROP POLICY %s ON %s;\n%s", tgt.Name, tgt.Table, terminate(tgt.Raw)),
				fmt.Sprintf("Recreate policy %s on table %s", tgt.Name, tgt.Table),
				fmt.Sprintf("policy %s is briefly absent while it is dropped and recreated; rows it governs on %s are unprotected (or inaccessible) during that gap", tgt.Name, tgt.Table),
				types.KindRecreatePolicy,
				map[string]string{types.MetaTable: tgt.Table},
			))
		}
	}

	for _, key := range sortedKeys(current.Policies) {
		if _, exists := target.Policies[key]; exists {
			continue
		}
		cur := current.Policies[key]
		ops = append(ops, newOp(
			types.RiskWarning,
			cur.Identity(),
			fmt.Sprintf("DROP POLICY %s ON %s;", cur.Name, cur.Table),
			fmt.Sprintf("Drop policy %s on table %s", cur.Name, cur.Table),
			fmt.Sprintf("dropping policy %s removes row-level access restrictions on %s", cur.Name, cur.Table),
			types.KindDropPolicy,
			map[string]string{types.MetaTable: cur.Table},
		))
	}

	return ops, nil
}

func policyChanged(cur, tgt *schema.Policy) bool {
	return cur.Command != tgt.Command ||
		cur.Permissive != tgt.Permissive ||
		cur.Using != tgt.Using ||
		cur.WithCheck != tgt.WithCheck ||
		strings.Join(cur.Roles, ",") != strings.Join(tgt.Roles, ",")
}

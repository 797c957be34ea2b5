package diff

import (
	"fmt"

	"github.com/driftline/driftline/internal/schema"
	"github.com/driftline/driftline/pkg/types"
)

func (e Engine) diffExtensions(current, target *schema.Model) ([]types.Operation, []types.Diagnostic) {
	var ops []types.Operation

	for _, name := range sortedKeys(target.Extensions) {
		if _, exists := current.Extensions[name]; exists {
			continue
		}
		tgt := target.Extensions[name]
		ops = append(ops, newOp(
			types.RiskSafe,
			tgt.Identity(),
			terminate(tgt.Raw),
			fmt.Sprintf("Install extension %s", tgt.Name),
			"",
			types.KindCreateExtension,
			nil,
		))
	}

	for _, name := range sortedKeys(current.Extensions) {
		if _, exists := target.Extensions[name]; exists {
			continue
		}
		cur := current.Extensions[name]
		ops = append(ops, newOp(
			types.RiskWarning,
			cur.Identity(),
			fmt.Sprintf("DROP EXTENSION %s;", cur.Name),
			fmt.Sprintf("Remove extension %s", cur.Name),
			fmt.Sprintf("objects provided by extension %s (types, functions, operators) become unavailable", cur.Name),
			types.KindDropExtension,
			nil,
		))
	}

	return ops, nil
}

func (e Engine) diffNamespaces(current, target *schema.Model) ([]types.Operation, []types.Diagnostic) {
	var ops []types.Operation

	for _, name := range sortedKeys(target.Namespaces) {
		if _, exists := current.Namespaces[name]; exists {
			continue
		}
		tgt := target.Namespaces[name]
		ops = append(ops, newOp(
			types.RiskSafe,
			tgt.Identity(),
			terminate(tgt.Raw),
			fmt.Sprintf("Create schema %s", tgt.Name),
			"",
			types.KindCreateSchema,
			nil,
		))
	}

	for _, name := range sortedKeys(current.Namespaces) {
		if _, exists := target.Namespaces[name]; exists {
			continue
		}
		cur := current.Namespaces[name]
		ops = append(ops, newOp(
			types.RiskDestructive,
			cur.Identity(),
			fmt.Sprintf("DROP SCHEMA %s;", cur.Name),
			fmt.Sprintf("Drop schema %s", cur.Name),
			fmt.Sprintf("dropping schema %s destroys every object it contains", cur.Name),
			types.KindDropSchema,
			nil,
		))
	}

	return ops, nil
}

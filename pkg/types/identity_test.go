package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryPrecedenceOrder(t *testing.T) {
	cats := Categories()
	assert.Len(t, cats, 10)
	assert.Equal(t, CategoryExtension, cats[0])
	assert.Equal(t, CategoryData, cats[len(cats)-1])

	for i := 1; i < len(cats); i++ {
		assert.Less(t, cats[i-1].Precedence(), cats[i].Precedence(),
			"%s must precede %s", cats[i-1], cats[i])
	}
}

func TestUnknownCategorySortsLast(t *testing.T) {
	unknown := Category("comment")
	for _, c := range Categories() {
		assert.Less(t, c.Precedence(), unknown.Precedence())
	}
}

func TestIdentityKey(t *testing.T) {
	id := Identity{Category: CategoryTrigger, Name: "orders.trg_touch"}
	assert.Equal(t, "trigger:orders.trg_touch", id.Key())
	assert.Equal(t, "trigger orders.trg_touch", id.String())
}

func TestIdentityNodeID(t *testing.T) {
	a := Identity{Category: CategoryTable, Name: "users"}
	b := Identity{Category: CategoryView, Name: "users"}

	assert.Equal(t, a.NodeID(), a.NodeID())
	assert.NotEqual(t, a.NodeID(), b.NodeID())
}

func TestRiskLevelMax(t *testing.T) {
	assert.Equal(t, RiskWarning, RiskSafe.Max(RiskWarning))
	assert.Equal(t, RiskDestructive, RiskDestructive.Max(RiskWarning))
	assert.Equal(t, RiskSafe, RiskSafe.Max(RiskSafe))
	// Max is symmetric.
	assert.Equal(t, RiskWarning.Max(RiskDestructive), RiskDestructive.Max(RiskWarning))
}

func TestPlanSummaryTallies(t *testing.T) {
	p := &ExecutionPlan{Steps: []Step{
		{Operation: Operation{Risk: RiskSafe}},
		{Operation: Operation{Risk: RiskSafe}},
		{Operation: Operation{Risk: RiskWarning}},
		{Operation: Operation{Risk: RiskDestructive}},
	}}

	s := p.Summary()
	assert.Equal(t, 2, s.Safe)
	assert.Equal(t, 1, s.Warning)
	assert.Equal(t, 1, s.Destructive)
}

func TestOperationMetaAccessors(t *testing.T) {
	op := Operation{Metadata: map[string]string{
		MetaKind:  KindDropTable,
		MetaTable: "users",
	}}
	assert.Equal(t, KindDropTable, op.Kind())
	assert.Equal(t, "users", op.Meta(MetaTable))
	assert.Equal(t, "", op.Meta(MetaColumn))

	var empty Operation
	assert.Equal(t, "", empty.Kind())
}

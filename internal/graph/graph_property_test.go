package graph

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/driftline/driftline/internal/schema"
)

// chainSnapshot builds tables where each table references the one before
// it, producing an acyclic reference chain.
func chainSnapshot(names []string) string {
	var sb strings.Builder
	for i, n := range names {
		if i == 0 {
			fmt.Fprintf(&sb, "CREATE TABLE %s (id uuid PRIMARY KEY);\n", n)
			continue
		}
		fmt.Fprintf(&sb, "CREATE TABLE %s (id uuid PRIMARY KEY, prev uuid REFERENCES %s(id));\n", n, names[i-1])
	}
	return sb.String()
}

func uniqueNames(raw []string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, n := range raw {
		n = "t_" + strings.ToLower(n)
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	return names
}

func TestExecutionOrderProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("acyclic chains always order dependencies first", prop.ForAll(
		func(raw []string) bool {
			names := uniqueNames(raw)
			m, _, err := schema.Parse(chainSnapshot(names))
			if err != nil {
				return false
			}
			g, _ := Build(m, m)
			if g.HasCircularDependencies() {
				return false
			}
			order, err := g.ExecutionOrder()
			if err != nil || len(order) != len(names) {
				return false
			}
			rank := make(map[string]int, len(order))
			for i, id := range order {
				rank[id.Name] = i
			}
			for i := 1; i < len(names); i++ {
				if rank[names[i-1]] >= rank[names[i]] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.Property("every node's dependencies precede it in the order", prop.ForAll(
		func(raw []string) bool {
			names := uniqueNames(raw)
			m, _, err := schema.Parse(chainSnapshot(names))
			if err != nil {
				return false
			}
			g, _ := Build(m, m)
			order, err := g.ExecutionOrder()
			if err != nil {
				return false
			}
			rank := make(map[string]int, len(order))
			for i, id := range order {
				rank[id.Key()] = i
			}
			for _, id := range order {
				for _, dep := range g.DependenciesOf(id) {
					if rank[dep.Key()] >= rank[id.Key()] {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}

// Package graph builds the dependency graph over schema objects and is
// the authoritative source of execution order. Nodes live in a flat arena
// indexed by position; edges are stored as index pairs, which keeps cycle
// detection and serialization free of pointer-chasing.
package graph

import (
	"fmt"
	"sort"

	dlerrors "github.com/driftline/driftline/internal/errors"
	"github.com/driftline/driftline/internal/schema"
	"github.com/driftline/driftline/pkg/types"
)

// Node is one schema object in the arena.
type Node struct {
	ID       uint64 // stable hash of the identity key
	Identity types.Identity
}

// Edge is a must-execute-before constraint between two arena positions:
// the object at From executes before the object at To.
type Edge struct {
	From int
	To   int
}

// Graph is an immutable dependency graph. Build it once per migration;
// all query methods are safe for concurrent use afterwards.
type Graph struct {
	nodes []Node
	edges []Edge

	byID  map[uint64]int // node ID -> arena index
	out   [][]int        // arena index -> dependents (edges out)
	in    [][]int        // arena index -> dependencies (edges in)
}

// Build constructs the graph over the union of both models' objects.
// Edges are derived from structural references: index -> table,
// trigger -> table and function, policy -> table, table -> foreign-key
// target, view -> referenced relations. References to objects absent
// from both models are skipped; references whose target survives in
// current but is dropped from target produce a dangling-edge warning.
func Build(current, target *schema.Model) (*Graph, []types.Diagnostic) {
	g := &Graph{byID: make(map[uint64]int)}

	for _, id := range current.Identities() {
		g.addNode(id)
	}
	for _, id := range target.Identities() {
		g.addNode(id)
	}

	var diags []types.Diagnostic
	b := builder{g: g, current: current, target: target}
	diags = append(diags, b.modelEdges(current)...)
	diags = append(diags, b.modelEdges(target)...)

	g.out = make([][]int, len(g.nodes))
	g.in = make([][]int, len(g.nodes))
	for _, e := range g.edges {
		g.out[e.From] = append(g.out[e.From], e.To)
		g.in[e.To] = append(g.in[e.To], e.From)
	}

	return g, diags
}

func (g *Graph) addNode(id types.Identity) int {
	nodeID := id.NodeID()
	if pos, ok := g.byID[nodeID]; ok {
		return pos
	}
	pos := len(g.nodes)
	g.nodes = append(g.nodes, Node{ID: nodeID, Identity: id})
	g.byID[nodeID] = pos
	return pos
}

// addEdge records dependency -> dependent, skipping duplicates.
func (g *Graph) addEdge(dependency, dependent int) {
	if dependency == dependent {
		return
	}
	for _, e := range g.edges {
		if e.From == dependency && e.To == dependent {
			return
		}
	}
	g.edges = append(g.edges, Edge{From: dependency, To: dependent})
}

type builder struct {
	g       *Graph
	current *schema.Model
	target  *schema.Model
}

// modelEdges derives edges from one model's structural references.
func (b builder) modelEdges(m *schema.Model) []types.Diagnostic {
	var diags []types.Diagnostic

	for _, name := range sortedTableNames(m) {
		t := m.Tables[name]
		for _, ref := range t.ReferencedTables() {
			diags = append(diags, b.link(
				types.Identity{Category: types.CategoryTable, Name: ref},
				t.Identity(),
				fmt.Sprintf("foreign key on table %s", t.Name),
			)...)
		}
	}
	for _, idx := range m.Indexes {
		diags = append(diags, b.link(
			types.Identity{Category: types.CategoryTable, Name: idx.Table},
			idx.Identity(),
			fmt.Sprintf("index %s", idx.Name),
		)...)
	}
	for _, tg := range m.Triggers {
		diags = append(diags, b.link(
			types.Identity{Category: types.CategoryTable, Name: tg.Table},
			tg.Identity(),
			fmt.Sprintf("trigger %s", tg.Name),
		)...)
		if tg.Function != "" {
			diags = append(diags, b.linkFunction(tg.Function, tg.Identity(), fmt.Sprintf("trigger %s", tg.Name))...)
		}
	}
	for _, p := range m.Policies {
		diags = append(diags, b.link(
			types.Identity{Category: types.CategoryTable, Name: p.Table},
			p.Identity(),
			fmt.Sprintf("policy %s", p.Name),
		)...)
	}
	for _, v := range m.Views {
		for _, ref := range v.References {
			dep := types.Identity{Category: types.CategoryTable, Name: ref}
			if _, ok := b.g.byID[dep.NodeID()]; !ok {
				dep = types.Identity{Category: types.CategoryView, Name: ref}
			}
			diags = append(diags, b.link(dep, v.Identity(), fmt.Sprintf("view %s", v.Name))...)
		}
	}

	return diags
}

// link adds dependency -> dependent when the dependency node exists, and
// reports a dangling edge when the dependency is being dropped while the
// dependent survives.
func (b builder) link(dependency, dependent types.Identity, via string) []types.Diagnostic {
	depPos, ok := b.g.byID[dependency.NodeID()]
	if !ok {
		// Reference to something outside both snapshots (e.g. a table in
		// another database). Best-effort resolution stops here.
		return nil
	}
	b.g.addEdge(depPos, b.g.byID[dependent.NodeID()])

	if b.droppedFromTarget(dependency) && !b.droppedFromTarget(dependent) {
		return []types.Diagnostic{{
			Level:   types.DiagWarning,
			Stage:   "graph",
			Message: fmt.Sprintf("%s depends on %s, which the target schema drops; the edge dangles after migration", via, dependency),
		}}
	}
	return nil
}

// linkFunction resolves a trigger's function reference against known
// function signatures. Trigger functions take no arguments, but the
// model keys functions by full signature, so match on name.
func (b builder) linkFunction(name string, dependent types.Identity, via string) []types.Diagnostic {
	var diags []types.Diagnostic
	for _, m := range []*schema.Model{b.current, b.target} {
		for _, f := range m.Functions {
			if f.Name == name {
				diags = append(diags, b.link(f.Identity(), dependent, via)...)
				return diags
			}
		}
	}
	return nil
}

func (b builder) droppedFromTarget(id types.Identity) bool {
	return b.presentIn(b.current, id) && !b.presentIn(b.target, id)
}

func (b builder) presentIn(m *schema.Model, id types.Identity) bool {
	switch id.Category {
	case types.CategoryTable:
		_, ok := m.Tables[id.Name]
		return ok
	case types.CategoryFunction:
		_, ok := m.Functions[id.Name]
		return ok
	case types.CategoryTrigger:
		_, ok := m.Triggers[id.Name]
		return ok
	case types.CategoryPolicy:
		_, ok := m.Policies[id.Name]
		return ok
	case types.CategoryEnum:
		_, ok := m.Enums[id.Name]
		return ok
	case types.CategoryIndex:
		_, ok := m.Indexes[id.Name]
		return ok
	case types.CategoryView:
		_, ok := m.Views[id.Name]
		return ok
	case types.CategoryExtension:
		_, ok := m.Extensions[id.Name]
		return ok
	case types.CategorySchema:
		_, ok := m.Namespaces[id.Name]
		return ok
	}
	return false
}

func sortedTableNames(m *schema.Model) []string {
	names := make([]string, 0, len(m.Tables))
	for name := range m.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NodeCount returns the number of schema objects in the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of dependency edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Contains reports whether the identity is a node in the graph.
func (g *Graph) Contains(id types.Identity) bool {
	_, ok := g.byID[id.NodeID()]
	return ok
}

// DependenciesOf returns the identities the given object must execute
// after, or nil when the object is unknown or independent.
func (g *Graph) DependenciesOf(id types.Identity) []types.Identity {
	pos, ok := g.byID[id.NodeID()]
	if !ok {
		return nil
	}
	deps := make([]types.Identity, 0, len(g.in[pos]))
	for _, from := range g.in[pos] {
		deps = append(deps, g.nodes[from].Identity)
	}
	sortIdentities(deps)
	return deps
}

// ExecutionOrder returns a deterministic topological order over all
// nodes: Kahn's algorithm with ties broken by category precedence, then
// identity name. Returns a graph error when a cycle prevents a complete
// order.
func (g *Graph) ExecutionOrder() ([]types.Identity, error) {
	indegree := make([]int, len(g.nodes))
	for _, e := range g.edges {
		indegree[e.To]++
	}

	var ready []int
	for pos := range g.nodes {
		if indegree[pos] == 0 {
			ready = append(ready, pos)
		}
	}

	order := make([]types.Identity, 0, len(g.nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			return identityLess(g.nodes[ready[i]].Identity, g.nodes[ready[j]].Identity)
		})
		pos := ready[0]
		ready = ready[1:]
		order = append(order, g.nodes[pos].Identity)
		for _, next := range g.out[pos] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(order) != len(g.nodes) {
		cycles := g.CircularDependencies()
		detail := ""
		if len(cycles) > 0 {
			detail = formatCycle(cycles[0])
		}
		return nil, dlerrors.NewGraphError(dlerrors.CodeCircularDependency,
			fmt.Sprintf("dependency cycle prevents a complete execution order: %s", detail))
	}
	return order, nil
}

// HasCircularDependencies reports whether any dependency cycle exists.
func (g *Graph) HasCircularDependencies() bool {
	return len(g.CircularDependencies()) > 0
}

// CircularDependencies returns every distinct cycle found by DFS, each as
// the ordered node identities along the cycle (first node repeated last).
func (g *Graph) CircularDependencies() [][]types.Identity {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS path
		black = 2 // fully explored
	)
	color := make([]int, len(g.nodes))
	var (
		path   []int
		cycles [][]types.Identity
	)

	var visit func(pos int)
	visit = func(pos int) {
		color[pos] = gray
		path = append(path, pos)
		for _, next := range g.out[pos] {
			switch color[next] {
			case white:
				visit(next)
			case gray:
				// next is on the current path: the cycle is the path
				// suffix starting at next, closed back on itself.
				start := 0
				for i, p := range path {
					if p == next {
						start = i
						break
					}
				}
				cycle := make([]types.Identity, 0, len(path)-start+1)
				for _, p := range path[start:] {
					cycle = append(cycle, g.nodes[p].Identity)
				}
				cycle = append(cycle, g.nodes[next].Identity)
				cycles = append(cycles, cycle)
			}
		}
		path = path[:len(path)-1]
		color[pos] = black
	}

	for pos := range g.nodes {
		if color[pos] == white {
			visit(pos)
		}
	}
	return cycles
}

// IndependentNodes returns nodes with no incoming edges: objects that
// depend on nothing and are safe to schedule first or in parallel.
func (g *Graph) IndependentNodes() []types.Identity {
	var ids []types.Identity
	for pos := range g.nodes {
		if len(g.in[pos]) == 0 {
			ids = append(ids, g.nodes[pos].Identity)
		}
	}
	sortIdentities(ids)
	return ids
}

// TerminalNodes returns nodes with no outgoing edges: objects nothing
// else depends on, the leaf-cleanup candidates.
func (g *Graph) TerminalNodes() []types.Identity {
	var ids []types.Identity
	for pos := range g.nodes {
		if len(g.out[pos]) == 0 {
			ids = append(ids, g.nodes[pos].Identity)
		}
	}
	sortIdentities(ids)
	return ids
}

func identityLess(a, b types.Identity) bool {
	if a.Category.Precedence() != b.Category.Precedence() {
		return a.Category.Precedence() < b.Category.Precedence()
	}
	return a.Name < b.Name
}

func sortIdentities(ids []types.Identity) {
	sort.Slice(ids, func(i, j int) bool { return identityLess(ids[i], ids[j]) })
}

func formatCycle(cycle []types.Identity) string {
	s := ""
	for i, id := range cycle {
		if i > 0 {
			s += " -> "
		}
		s += id.String()
	}
	return s
}

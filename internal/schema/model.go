// Package schema provides the in-memory schema model and the parser that
// builds it from raw SQL snapshots. A model is built once per diff and is
// immutable afterwards; concurrent diffs must each build their own model.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/driftline/driftline/pkg/types"
)

// Model is a categorized, identity-keyed snapshot of a database schema.
type Model struct {
	Tables     map[string]*Table
	Functions  map[string]*Function
	Triggers   map[string]*Trigger
	Policies   map[string]*Policy
	Enums      map[string]*Enum
	Indexes    map[string]*Index
	Views      map[string]*View
	Extensions map[string]*Extension
	Namespaces map[string]*Namespace

	// SkippedStatements counts statements the parser could not classify.
	SkippedStatements int
}

// NewModel returns an empty schema model.
func NewModel() *Model {
	return &Model{
		Tables:     make(map[string]*Table),
		Functions:  make(map[string]*Function),
		Triggers:   make(map[string]*Trigger),
		Policies:   make(map[string]*Policy),
		Enums:      make(map[string]*Enum),
		Indexes:    make(map[string]*Index),
		Views:      make(map[string]*View),
		Extensions: make(map[string]*Extension),
		Namespaces: make(map[string]*Namespace),
	}
}

// Column is one table column in declaration order.
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	Default    string // raw expression text; empty when absent
	PrimaryKey bool
	Unique     bool
	Check      string
	References *ForeignKey
}

// ForeignKey references another table, inline or table-level.
type ForeignKey struct {
	Columns    []string
	RefTable   string
	RefColumns []string
	OnDelete   string
}

// Table is a diffable table definition: name plus ordered columns.
type Table struct {
	Name        string
	Columns     []Column
	ForeignKeys []ForeignKey
	Raw         string
}

// Identity returns the table's graph identity.
func (t *Table) Identity() types.Identity {
	return types.Identity{Category: types.CategoryTable, Name: t.Name}
}

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// ReferencedTables returns the distinct tables this table's foreign keys
// point at, excluding self-references.
func (t *Table) ReferencedTables() []string {
	seen := make(map[string]bool)
	var refs []string
	add := func(name string) {
		if name != "" && name != t.Name && !seen[name] {
			seen[name] = true
			refs = append(refs, name)
		}
	}
	for _, fk := range t.ForeignKeys {
		add(fk.RefTable)
	}
	for _, col := range t.Columns {
		if col.References != nil {
			add(col.References.RefTable)
		}
	}
	return refs
}

// Function is a diffable function definition, keyed by signature.
type Function struct {
	Name            string
	ArgTypes        []string
	Returns         string
	Language        string
	Body            string
	SecurityDefiner bool
	Raw             string
}

// Signature returns the overload-distinguishing key "name(type,type)".
func (f *Function) Signature() string {
	return fmt.Sprintf("%s(%s)", f.Name, strings.Join(f.ArgTypes, ","))
}

// Identity returns the function's graph identity.
func (f *Function) Identity() types.Identity {
	return types.Identity{Category: types.CategoryFunction, Name: f.Signature()}
}

// Trigger is a diffable trigger definition, keyed by "table.name".
type Trigger struct {
	Name       string
	Table      string
	Timing     string
	Events     []string
	ForEachRow bool
	When       string
	Function   string
	Raw        string
}

// Key returns the identity key "table.name".
func (t *Trigger) Key() string {
	return t.Table + "." + t.Name
}

// Identity returns the trigger's graph identity.
func (t *Trigger) Identity() types.Identity {
	return types.Identity{Category: types.CategoryTrigger, Name: t.Key()}
}

// Policy is a diffable row-level-security policy, keyed by "table.name".
type Policy struct {
	Name       string
	Table      string
	Command    string
	Permissive bool
	Roles      []string
	Using      string
	WithCheck  string
	Raw        string
}

// Key returns the identity key "table.name".
func (p *Policy) Key() string {
	return p.Table + "." + p.Name
}

// Identity returns the policy's graph identity.
func (p *Policy) Identity() types.Identity {
	return types.Identity{Category: types.CategoryPolicy, Name: p.Key()}
}

// Enum is a diffable enum type with ordered values.
type Enum struct {
	Name   string
	Values []string
	Raw    string
}

// Identity returns the enum's graph identity.
func (e *Enum) Identity() types.Identity {
	return types.Identity{Category: types.CategoryEnum, Name: e.Name}
}

// Index is a diffable index definition.
type Index struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
	Method  string
	Where   string
	Raw     string
}

// Identity returns the index's graph identity.
func (i *Index) Identity() types.Identity {
	return types.Identity{Category: types.CategoryIndex, Name: i.Name}
}

// View is a diffable view definition. References holds the known
// relations the view query mentions, resolved best-effort after parsing.
type View struct {
	Name       string
	Query      string
	References []string
	Raw        string
}

// Identity returns the view's graph identity.
func (v *View) Identity() types.Identity {
	return types.Identity{Category: types.CategoryView, Name: v.Name}
}

// Extension is an installed extension.
type Extension struct {
	Name string
	Raw  string
}

// Identity returns the extension's graph identity.
func (e *Extension) Identity() types.Identity {
	return types.Identity{Category: types.CategoryExtension, Name: e.Name}
}

// Namespace is a database schema (namespace).
type Namespace struct {
	Name string
	Raw  string
}

// Identity returns the namespace's graph identity.
func (n *Namespace) Identity() types.Identity {
	return types.Identity{Category: types.CategorySchema, Name: n.Name}
}

// ObjectCount returns the total number of schema objects in the model.
func (m *Model) ObjectCount() int {
	return len(m.Tables) + len(m.Functions) + len(m.Triggers) + len(m.Policies) +
		len(m.Enums) + len(m.Indexes) + len(m.Views) + len(m.Extensions) + len(m.Namespaces)
}

// Identities returns every object identity in the model, sorted by
// category precedence then name.
func (m *Model) Identities() []types.Identity {
	ids := make([]types.Identity, 0, m.ObjectCount())
	for _, t := range m.Tables {
		ids = append(ids, t.Identity())
	}
	for _, f := range m.Functions {
		ids = append(ids, f.Identity())
	}
	for _, t := range m.Triggers {
		ids = append(ids, t.Identity())
	}
	for _, p := range m.Policies {
		ids = append(ids, p.Identity())
	}
	for _, e := range m.Enums {
		ids = append(ids, e.Identity())
	}
	for _, i := range m.Indexes {
		ids = append(ids, i.Identity())
	}
	for _, v := range m.Views {
		ids = append(ids, v.Identity())
	}
	for _, e := range m.Extensions {
		ids = append(ids, e.Identity())
	}
	for _, n := range m.Namespaces {
		ids = append(ids, n.Identity())
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Category.Precedence() != ids[j].Category.Precedence() {
			return ids[i].Category.Precedence() < ids[j].Category.Precedence()
		}
		return ids[i].Name < ids[j].Name
	})
	return ids
}

// Fingerprint returns a stable content hash of the model, used by the
// snapshot store and the history catalog to detect identical schemas.
func (m *Model) Fingerprint() uint64 {
	h := murmur3.New64()
	for _, id := range m.Identities() {
		h.Write([]byte(id.Key()))
		h.Write([]byte{0})
		h.Write([]byte(m.definitionOf(id)))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// definitionOf returns the canonical definition text for an identity.
func (m *Model) definitionOf(id types.Identity) string {
	switch id.Category {
	case types.CategoryTable:
		if t, ok := m.Tables[id.Name]; ok {
			return canonicalTable(t)
		}
	case types.CategoryFunction:
		if f, ok := m.Functions[id.Name]; ok {
			return f.Returns + "|" + f.Language + "|" + f.Body
		}
	case types.CategoryTrigger:
		if t, ok := m.Triggers[id.Name]; ok {
			return t.Timing + "|" + strings.Join(t.Events, ",") + "|" + t.Function + "|" + t.When
		}
	case types.CategoryPolicy:
		if p, ok := m.Policies[id.Name]; ok {
			return p.Command + "|" + strings.Join(p.Roles, ",") + "|" + p.Using + "|" + p.WithCheck
		}
	case types.CategoryEnum:
		if e, ok := m.Enums[id.Name]; ok {
			return strings.Join(e.Values, ",")
		}
	case types.CategoryIndex:
		if i, ok := m.Indexes[id.Name]; ok {
			return i.Table + "|" + strings.Join(i.Columns, ",") + "|" + i.Method + "|" + i.Where
		}
	case types.CategoryView:
		if v, ok := m.Views[id.Name]; ok {
			return v.Query
		}
	}
	return ""
}

// canonicalTable serializes a table's diffable fields deterministically.
func canonicalTable(t *Table) string {
	var sb strings.Builder
	for _, col := range t.Columns {
		fmt.Fprintf(&sb, "%s %s null=%t default=%s;", col.Name, col.Type, col.Nullable, col.Default)
	}
	return sb.String()
}

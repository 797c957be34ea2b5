package schema

import (
	"fmt"

	"github.com/driftline/driftline/internal/sqlparse"
	"github.com/driftline/driftline/pkg/types"
)

// extractor ingests one parsed statement into the model. Extractors return
// a diagnostic instead of an error: extraction is best-effort
// reconstruction and never aborts the parse.
type extractor func(m *Model, stmt sqlparse.Statement) *types.Diagnostic

// extractors dispatches statement kinds to category-specific extraction.
var extractors = map[sqlparse.StatementKind]extractor{
	sqlparse.StmtCreateTable:     extractTable,
	sqlparse.StmtCreateEnum:      extractEnum,
	sqlparse.StmtCreateFunction:  extractFunction,
	sqlparse.StmtCreateTrigger:   extractTrigger,
	sqlparse.StmtCreatePolicy:    extractPolicy,
	sqlparse.StmtCreateIndex:     extractIndex,
	sqlparse.StmtCreateView:      extractView,
	sqlparse.StmtCreateExtension: extractExtension,
	sqlparse.StmtCreateSchema:    extractNamespace,
}

// Parse builds a schema model from raw SQL text. Unclassifiable statements
// are skipped with a diagnostic and counted on the model; only lexical
// failures in the statement splitter return an error.
func Parse(sqlText string) (*Model, []types.Diagnostic, error) {
	stmts, diags, err := sqlparse.Parse(sqlText)
	if err != nil {
		return nil, nil, err
	}

	m := NewModel()
	for _, stmt := range stmts {
		fn, ok := extractors[stmt.Kind()]
		if !ok {
			m.SkippedStatements++
			continue
		}
		if d := fn(m, stmt); d != nil {
			diags = append(diags, *d)
		}
	}
	m.resolveViewReferences()
	return m, diags, nil
}

func duplicateDiag(id types.Identity) *types.Diagnostic {
	return &types.Diagnostic{
		Level:   types.DiagWarning,
		Stage:   "parse",
		Message: fmt.Sprintf("duplicate definition of %s: keeping the later one", id),
	}
}

func extractTable(m *Model, stmt sqlparse.Statement) *types.Diagnostic {
	s := stmt.(*sqlparse.CreateTableStmt)
	t := &Table{Name: s.Name, Raw: s.Raw}
	for _, c := range s.Columns {
		col := Column{
			Name:       c.Name,
			Type:       c.Type,
			Nullable:   !c.NotNull,
			Default:    c.Default,
			PrimaryKey: c.PrimaryKey,
			Unique:     c.Unique,
			Check:      c.Check,
		}
		if c.References != nil {
			col.References = &ForeignKey{
				Columns:    []string{c.Name},
				RefTable:   c.References.RefTable,
				RefColumns: c.References.RefColumns,
				OnDelete:   c.References.OnDelete,
			}
		}
		t.Columns = append(t.Columns, col)
	}
	for _, fk := range s.ForeignKeys {
		t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
			Columns:    fk.Columns,
			RefTable:   fk.RefTable,
			RefColumns: fk.RefColumns,
			OnDelete:   fk.OnDelete,
		})
	}

	var diag *types.Diagnostic
	if _, exists := m.Tables[t.Name]; exists {
		diag = duplicateDiag(t.Identity())
	}
	m.Tables[t.Name] = t
	if len(t.Columns) == 0 {
		diag = &types.Diagnostic{
			Level:   types.DiagWarning,
			Stage:   "parse",
			Message: fmt.Sprintf("table %s has no columns", t.Name),
		}
	}
	return diag
}

func extractEnum(m *Model, stmt sqlparse.Statement) *types.Diagnostic {
	s := stmt.(*sqlparse.CreateEnumStmt)
	e := &Enum{Name: s.Name, Values: s.Values, Raw: s.Raw}
	var diag *types.Diagnostic
	if _, exists := m.Enums[e.Name]; exists {
		diag = duplicateDiag(e.Identity())
	}
	m.Enums[e.Name] = e
	return diag
}

func extractFunction(m *Model, stmt sqlparse.Statement) *types.Diagnostic {
	s := stmt.(*sqlparse.CreateFunctionStmt)
	f := &Function{
		Name:            s.Name,
		ArgTypes:        s.ArgTypes,
		Returns:         s.Returns,
		Language:        s.Language,
		Body:            s.Body,
		SecurityDefiner: s.SecurityDefiner,
		Raw:             s.Raw,
	}
	var diag *types.Diagnostic
	if _, exists := m.Functions[f.Signature()]; exists && !s.OrReplace {
		diag = duplicateDiag(f.Identity())
	}
	m.Functions[f.Signature()] = f
	return diag
}

func extractTrigger(m *Model, stmt sqlparse.Statement) *types.Diagnostic {
	s := stmt.(*sqlparse.CreateTriggerStmt)
	t := &Trigger{
		Name:       s.Name,
		Table:      s.Table,
		Timing:     s.Timing,
		Events:     s.Events,
		ForEachRow: s.ForEachRow,
		When:       s.When,
		Function:   s.Function,
		Raw:        s.Raw,
	}
	var diag *types.Diagnostic
	if _, exists := m.Triggers[t.Key()]; exists {
		diag = duplicateDiag(t.Identity())
	}
	m.Triggers[t.Key()] = t
	return diag
}

func extractPolicy(m *Model, stmt sqlparse.Statement) *types.Diagnostic {
	s := stmt.(*sqlparse.CreatePolicyStmt)
	p := &Policy{
		Name:       s.Name,
		Table:      s.Table,
		Command:    s.Command,
		Permissive: s.Permissive,
		Roles:      s.Roles,
		Using:      s.Using,
		WithCheck:  s.WithCheck,
		Raw:        s.Raw,
	}
	var diag *types.Diagnostic
	if _, exists := m.Policies[p.Key()]; exists {
		diag = duplicateDiag(p.Identity())
	}
	m.Policies[p.Key()] = p
	return diag
}

func extractIndex(m *Model, stmt sqlparse.Statement) *types.Diagnostic {
	s := stmt.(*sqlparse.CreateIndexStmt)
	i := &Index{
		Name:    s.Name,
		Table:   s.Table,
		Columns: s.Columns,
		Unique:  s.Unique,
		Method:  s.Method,
		Where:   s.Where,
		Raw:     s.Raw,
	}
	var diag *types.Diagnostic
	if _, exists := m.Indexes[i.Name]; exists {
		diag = duplicateDiag(i.Identity())
	}
	m.Indexes[i.Name] = i
	return diag
}

func extractView(m *Model, stmt sqlparse.Statement) *types.Diagnostic {
	s := stmt.(*sqlparse.CreateViewStmt)
	v := &View{Name: s.Name, Query: s.Query, Raw: s.Raw}
	var diag *types.Diagnostic
	if _, exists := m.Views[v.Name]; exists && !s.OrReplace {
		diag = duplicateDiag(v.Identity())
	}
	m.Views[v.Name] = v
	return diag
}

func extractExtension(m *Model, stmt sqlparse.Statement) *types.Diagnostic {
	s := stmt.(*sqlparse.CreateExtensionStmt)
	m.Extensions[s.Name] = &Extension{Name: s.Name, Raw: s.Raw}
	return nil
}

func extractNamespace(m *Model, stmt sqlparse.Statement) *types.Diagnostic {
	s := stmt.(*sqlparse.CreateSchemaStmt)
	m.Namespaces[s.Name] = &Namespace{Name: s.Name, Raw: s.Raw}
	return nil
}

// resolveViewReferences fills each view's References against the relations
// the model knows about, once all statements have been ingested.
func (m *Model) resolveViewReferences() {
	known := make(map[string]bool, len(m.Tables)+len(m.Views))
	for name := range m.Tables {
		known[name] = true
	}
	for name := range m.Views {
		known[name] = true
	}
	for _, v := range m.Views {
		scoped := make(map[string]bool, len(known))
		for name := range known {
			if name != v.Name {
				scoped[name] = true
			}
		}
		v.References = sqlparse.ViewReferences(v.Query, scoped)
	}
}

package sqlparse

// StatementKind tags a parsed statement variant. Downstream extraction
// dispatches on the kind through a lookup table rather than type switches.
type StatementKind string

const (
	StmtCreateTable     StatementKind = "create-table"
	StmtCreateEnum      StatementKind = "create-enum"
	StmtCreateFunction  StatementKind = "create-function"
	StmtCreateTrigger   StatementKind = "create-trigger"
	StmtCreatePolicy    StatementKind = "create-policy"
	StmtCreateIndex     StatementKind = "create-index"
	StmtCreateView      StatementKind = "create-view"
	StmtCreateExtension StatementKind = "create-extension"
	StmtCreateSchema    StatementKind = "create-schema"
	StmtUnknown         StatementKind = "unknown"
)

// Statement is one parsed DDL statement: a kind tag plus a kind-specific
// payload. Raw always carries the original statement text.
type Statement interface {
	Kind() StatementKind
	SQL() string
}

// ColumnDef is a parsed column definition inside CREATE TABLE.
type ColumnDef struct {
	Name       string
	Type       string
	NotNull    bool
	Default    string // raw expression text; empty when absent
	PrimaryKey bool
	Unique     bool
	Check      string
	References *ForeignKeyRef // inline REFERENCES clause, if any
}

// ForeignKeyRef is a foreign-key reference, inline or table-level.
type ForeignKeyRef struct {
	Columns    []string // empty for inline column references
	RefTable   string
	RefColumns []string
	OnDelete   string // CASCADE, RESTRICT, SET NULL, ...; empty when unspecified
}

// CreateTableStmt is a parsed CREATE TABLE statement.
type CreateTableStmt struct {
	Raw         string
	Name        string
	Columns     []ColumnDef
	ForeignKeys []ForeignKeyRef // table-level FOREIGN KEY constraints
}

func (s *CreateTableStmt) Kind() StatementKind { return StmtCreateTable }
func (s *CreateTableStmt) SQL() string         { return s.Raw }

// CreateEnumStmt is a parsed CREATE TYPE ... AS ENUM statement.
type CreateEnumStmt struct {
	Raw    string
	Name   string
	Values []string
}

func (s *CreateEnumStmt) Kind() StatementKind { return StmtCreateEnum }
func (s *CreateEnumStmt) SQL() string         { return s.Raw }

// CreateFunctionStmt is a parsed CREATE [OR REPLACE] FUNCTION statement.
type CreateFunctionStmt struct {
	Raw             string
	Name            string
	ArgTypes        []string // normalized parameter type list
	Returns         string
	Language        string
	Body            string
	SecurityDefiner bool
	OrReplace       bool
}

func (s *CreateFunctionStmt) Kind() StatementKind { return StmtCreateFunction }
func (s *CreateFunctionStmt) SQL() string         { return s.Raw }

// CreateTriggerStmt is a parsed CREATE TRIGGER statement.
type CreateTriggerStmt struct {
	Raw        string
	Name       string
	Timing     string   // BEFORE, AFTER, INSTEAD OF
	Events     []string // INSERT, UPDATE, DELETE, TRUNCATE
	Table      string
	ForEachRow bool // false means statement-level
	When       string
	Function   string
}

func (s *CreateTriggerStmt) Kind() StatementKind { return StmtCreateTrigger }
func (s *CreateTriggerStmt) SQL() string         { return s.Raw }

// CreatePolicyStmt is a parsed CREATE POLICY statement.
type CreatePolicyStmt struct {
	Raw        string
	Name       string
	Table      string
	Command    string // ALL, SELECT, INSERT, UPDATE, DELETE
	Permissive bool
	Roles      []string
	Using      string
	WithCheck  string
}

func (s *CreatePolicyStmt) Kind() StatementKind { return StmtCreatePolicy }
func (s *CreatePolicyStmt) SQL() string         { return s.Raw }

// CreateIndexStmt is a parsed CREATE [UNIQUE] INDEX statement.
type CreateIndexStmt struct {
	Raw     string
	Name    string
	Table   string
	Columns []string
	Unique  bool
	Method  string // btree, gin, gist, ...; empty for default
	Where   string // partial index condition
}

func (s *CreateIndexStmt) Kind() StatementKind { return StmtCreateIndex }
func (s *CreateIndexStmt) SQL() string         { return s.Raw }

// CreateViewStmt is a parsed CREATE [OR REPLACE] VIEW statement.
type CreateViewStmt struct {
	Raw       string
	Name      string
	Query     string
	OrReplace bool
}

func (s *CreateViewStmt) Kind() StatementKind { return StmtCreateView }
func (s *CreateViewStmt) SQL() string         { return s.Raw }

// CreateExtensionStmt is a parsed CREATE EXTENSION statement.
type CreateExtensionStmt struct {
	Raw  string
	Name string
}

func (s *CreateExtensionStmt) Kind() StatementKind { return StmtCreateExtension }
func (s *CreateExtensionStmt) SQL() string         { return s.Raw }

// CreateSchemaStmt is a parsed CREATE SCHEMA statement.
type CreateSchemaStmt struct {
	Raw  string
	Name string
}

func (s *CreateSchemaStmt) Kind() StatementKind { return StmtCreateSchema }
func (s *CreateSchemaStmt) SQL() string         { return s.Raw }

// UnknownStmt is a statement the parser could not classify. It carries the
// original text so callers can report exactly what was skipped.
type UnknownStmt struct {
	Raw    string
	Reason string
}

func (s *UnknownStmt) Kind() StatementKind { return StmtUnknown }
func (s *UnknownStmt) SQL() string         { return s.Raw }

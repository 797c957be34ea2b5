package sqlparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitHonorsQuoting(t *testing.T) {
	input := `CREATE TABLE a (v text DEFAULT 'x;y');
CREATE FUNCTION f() RETURNS trigger LANGUAGE plpgsql AS $$ BEGIN RETURN NEW; END; $$;
-- a comment; with a semicolon
CREATE TABLE b (id int)`
	stmts, err := Split(input)
	assert.NoError(t, err)
	assert.Len(t, stmts, 3)
	assert.Contains(t, stmts[0], "'x;y'")
	assert.Contains(t, stmts[1], "END;")
}

func TestSplitUnterminatedLiteral(t *testing.T) {
	_, err := Split(`CREATE TABLE a (v text DEFAULT 'oops);`)
	assert.Error(t, err)
}

func TestParseCreateTable(t *testing.T) {
	input := `CREATE TABLE IF NOT EXISTS orders (
		id uuid PRIMARY KEY,
		user_id uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		status text NOT NULL DEFAULT 'pending',
		total numeric,
		CONSTRAINT orders_user_fk FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE RESTRICT
	);`
	stmts, diags, err := Parse(input)
	assert.NoError(t, err)
	assert.Empty(t, diags)
	assert.Len(t, stmts, 1)

	tbl, ok := stmts[0].(*CreateTableStmt)
	assert.True(t, ok)
	assert.Equal(t, "orders", tbl.Name)
	assert.Len(t, tbl.Columns, 4)

	id := tbl.Columns[0]
	assert.Equal(t, "id", id.Name)
	assert.Equal(t, "uuid", id.Type)
	assert.True(t, id.PrimaryKey)
	assert.True(t, id.NotNull)

	userID := tbl.Columns[1]
	assert.True(t, userID.NotNull)
	if assert.NotNil(t, userID.References) {
		assert.Equal(t, "users", userID.References.RefTable)
		assert.Equal(t, []string{"id"}, userID.References.RefColumns)
		assert.Equal(t, "CASCADE", userID.References.OnDelete)
	}

	status := tbl.Columns[2]
	assert.Equal(t, "'pending'", status.Default)

	assert.Len(t, tbl.ForeignKeys, 1)
	fk := tbl.ForeignKeys[0]
	assert.Equal(t, []string{"user_id"}, fk.Columns)
	assert.Equal(t, "users", fk.RefTable)
	assert.Equal(t, "RESTRICT", fk.OnDelete)
}

func TestParseCreateTableTablePrimaryKey(t *testing.T) {
	stmts, _, err := Parse(`CREATE TABLE m (a int, b int, PRIMARY KEY (a, b));`)
	assert.NoError(t, err)
	tbl := stmts[0].(*CreateTableStmt)
	assert.True(t, tbl.Columns[0].PrimaryKey)
	assert.True(t, tbl.Columns[0].NotNull)
	assert.True(t, tbl.Columns[1].PrimaryKey)
}

func TestParseCreateEnum(t *testing.T) {
	stmts, _, err := Parse(`CREATE TYPE order_status AS ENUM ('pending', 'shipped', 'delivered');`)
	assert.NoError(t, err)
	enum := stmts[0].(*CreateEnumStmt)
	assert.Equal(t, "order_status", enum.Name)
	assert.Equal(t, []string{"pending", "shipped", "delivered"}, enum.Values)
}

func TestParseCreateFunction(t *testing.T) {
	input := `CREATE OR REPLACE FUNCTION touch_updated_at(IN tbl text, threshold integer DEFAULT 0)
RETURNS trigger
LANGUAGE plpgsql
SECURITY DEFINER
AS $$ BEGIN NEW.updated_at = now(); RETURN NEW; END; $$;`
	stmts, _, err := Parse(input)
	assert.NoError(t, err)
	fn := stmts[0].(*CreateFunctionStmt)
	assert.Equal(t, "touch_updated_at", fn.Name)
	assert.True(t, fn.OrReplace)
	assert.Equal(t, []string{"text", "integer"}, fn.ArgTypes)
	assert.Equal(t, "trigger", fn.Returns)
	assert.Equal(t, "plpgsql", fn.Language)
	assert.True(t, fn.SecurityDefiner)
	assert.Contains(t, fn.Body, "NEW.updated_at")
}

func TestParseCreateTrigger(t *testing.T) {
	input := `CREATE TRIGGER trg_touch
BEFORE INSERT OR UPDATE ON accounts
FOR EACH ROW
WHEN (OLD.balance IS DISTINCT FROM NEW.balance)
EXECUTE FUNCTION touch_updated_at();`
	stmts, _, err := Parse(input)
	assert.NoError(t, err)
	trg := stmts[0].(*CreateTriggerStmt)
	assert.Equal(t, "trg_touch", trg.Name)
	assert.Equal(t, "BEFORE", trg.Timing)
	assert.Equal(t, []string{"INSERT", "UPDATE"}, trg.Events)
	assert.Equal(t, "accounts", trg.Table)
	assert.True(t, trg.ForEachRow)
	assert.Equal(t, "OLD.balance IS DISTINCT FROM NEW.balance", trg.When)
	assert.Equal(t, "touch_updated_at", trg.Function)
}

func TestParseCreatePolicy(t *testing.T) {
	input := `CREATE POLICY tenant_isolation ON documents
AS RESTRICTIVE FOR SELECT TO app_user, "Reporting"
USING (tenant_id = current_tenant())
WITH CHECK (tenant_id = current_tenant());`
	stmts, _, err := Parse(input)
	assert.NoError(t, err)
	pol := stmts[0].(*CreatePolicyStmt)
	assert.Equal(t, "tenant_isolation", pol.Name)
	assert.Equal(t, "documents", pol.Table)
	assert.Equal(t, "SELECT", pol.Command)
	assert.False(t, pol.Permissive)
	assert.Equal(t, []string{"app_user", "reporting"}, pol.Roles)
	assert.NotEmpty(t, pol.Using)
	assert.NotEmpty(t, pol.WithCheck)
}

func TestParseCreatePolicyDefaults(t *testing.T) {
	stmts, _, err := Parse(`CREATE POLICY open_read ON notes USING (true);`)
	assert.NoError(t, err)
	pol := stmts[0].(*CreatePolicyStmt)
	assert.Equal(t, "ALL", pol.Command)
	assert.True(t, pol.Permissive)
	assert.Nil(t, pol.Roles)
}

func TestParseCreateIndex(t *testing.T) {
	input := `CREATE UNIQUE INDEX idx_users_email ON users USING btree (email) WHERE deleted_at IS NULL;`
	stmts, _, err := Parse(input)
	assert.NoError(t, err)
	idx := stmts[0].(*CreateIndexStmt)
	assert.Equal(t, "idx_users_email", idx.Name)
	assert.Equal(t, "users", idx.Table)
	assert.True(t, idx.Unique)
	assert.Equal(t, "btree", idx.Method)
	assert.Equal(t, []string{"email"}, idx.Columns)
	assert.Equal(t, "deleted_at IS NULL", idx.Where)
}

func TestParseCreateView(t *testing.T) {
	stmts, _, err := Parse(`CREATE VIEW active_users AS SELECT id, name FROM users WHERE active;`)
	assert.NoError(t, err)
	v := stmts[0].(*CreateViewStmt)
	assert.Equal(t, "active_users", v.Name)
	assert.Equal(t, "SELECT id, name FROM users WHERE active", v.Query)
	assert.False(t, v.OrReplace)

	stmts, _, err = Parse(`CREATE MATERIALIZED VIEW daily_totals AS SELECT 1;`)
	assert.NoError(t, err)
	assert.Equal(t, "daily_totals", stmts[0].(*CreateViewStmt).Name)
}

func TestParseCreateExtensionAndSchema(t *testing.T) {
	stmts, _, err := Parse(`CREATE EXTENSION IF NOT EXISTS pgcrypto; CREATE SCHEMA analytics;`)
	assert.NoError(t, err)
	assert.Equal(t, "pgcrypto", stmts[0].(*CreateExtensionStmt).Name)
	assert.Equal(t, "analytics", stmts[1].(*CreateSchemaStmt).Name)
}

func TestParseUnknownStatementsAreDiagnosed(t *testing.T) {
	stmts, diags, err := Parse(`INSERT INTO users VALUES (1); CREATE TABLE t (id int); CREATE SEQUENCE seq_a;`)
	assert.NoError(t, err)
	assert.Len(t, stmts, 3)
	assert.Len(t, diags, 2)
	assert.IsType(t, &UnknownStmt{}, stmts[0])
	assert.IsType(t, &CreateTableStmt{}, stmts[1])
	assert.IsType(t, &UnknownStmt{}, stmts[2])
	assert.Equal(t, "parse", diags[0].Stage)
}

func TestParseSchemaQualifiedNames(t *testing.T) {
	stmts, _, err := Parse(`CREATE TABLE auth.sessions (id uuid PRIMARY KEY);`)
	assert.NoError(t, err)
	assert.Equal(t, "auth.sessions", stmts[0].(*CreateTableStmt).Name)
}

func TestNormalizeFunctionArg(t *testing.T) {
	cases := map[string]string{
		"IN user_id integer DEFAULT 0": "integer",
		"OUT total numeric":            "numeric",
		"text":                         "text",
		"tbl regclass":                 "regclass",
		"amount double precision":      "double precision",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeFunctionArg(in), "arg %q", in)
	}
}

func TestViewReferences(t *testing.T) {
	known := map[string]bool{"users": true, "orders": true, "totals": true}
	refs := ViewReferences(`SELECT u.id FROM users u JOIN orders o ON o.user_id = u.id WHERE note <> 'orders'`, known)
	assert.Equal(t, []string{"users", "orders"}, refs)
}

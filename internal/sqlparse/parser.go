package sqlparse

import (
	"fmt"
	"strings"

	dlerrors "github.com/driftline/driftline/internal/errors"
	"github.com/driftline/driftline/pkg/types"
)

// Parse splits the input into statements and parses each into a tagged
// Statement. Statements that cannot be classified come back as UnknownStmt
// with a diagnostic; a single bad statement never aborts the parse. The
// returned error is reserved for unrecoverable lexical failures
// (unterminated strings or dollar-quoted bodies).
func Parse(input string) ([]Statement, []types.Diagnostic, error) {
	raws, err := Split(input)
	if err != nil {
		return nil, nil, err
	}

	stmts := make([]Statement, 0, len(raws))
	var diags []types.Diagnostic

	for _, raw := range raws {
		stmt := parseStatement(raw)
		if u, ok := stmt.(*UnknownStmt); ok {
			diags = append(diags, types.Diagnostic{
				Level:    types.DiagWarning,
				Stage:    "parse",
				Message:  u.Reason,
				Fragment: fragment(raw),
			})
		}
		stmts = append(stmts, stmt)
	}
	return stmts, diags, nil
}

// Split splits raw SQL into statement texts on semicolons, honoring string
// literals, quoted identifiers, comments, and dollar-quoted bodies.
func Split(input string) ([]string, error) {
	l := NewLexer(input)
	var (
		statements []string
		start      = -1
	)
	for {
		tok := l.NextToken()
		if tok.Type == TokenError {
			return nil, dlerrors.NewParseError(dlerrors.CodeUnterminatedText, "lexical error in SQL input", l.Err())
		}
		if tok.Type == TokenEOF {
			if start >= 0 {
				if s := strings.TrimSpace(input[start:]); s != "" {
					statements = append(statements, s)
				}
			}
			return statements, nil
		}
		if start < 0 {
			start = tok.Pos
		}
		if tok.Type == TokenSemicolon {
			if s := strings.TrimSpace(input[start:tok.Pos]); s != "" {
				statements = append(statements, s)
			}
			start = -1
		}
	}
}

// fragment trims a statement down to a short reportable prefix.
func fragment(raw string) string {
	raw = strings.Join(strings.Fields(raw), " ")
	if len(raw) > 80 {
		return raw[:80] + "..."
	}
	return raw
}

// parseStatement classifies and parses one statement text.
func parseStatement(raw string) Statement {
	l := NewLexer(raw)
	toks := l.Tokenize()
	if l.Err() != nil {
		return &UnknownStmt{Raw: raw, Reason: fmt.Sprintf("lexical error: %v", l.Err())}
	}

	c := &cursor{toks: toks}
	if !c.matchWord("CREATE") {
		return &UnknownStmt{Raw: raw, Reason: "unsupported statement: only CREATE statements describe schema objects"}
	}

	orReplace := false
	if c.peekWord("OR") {
		c.next()
		if !c.matchWord("REPLACE") {
			return &UnknownStmt{Raw: raw, Reason: "malformed CREATE OR REPLACE"}
		}
		orReplace = true
	}

	unique := false
	if c.peekWord("UNIQUE") {
		c.next()
		unique = true
	}

	head := c.next()
	switch head.Upper() {
	case "TABLE":
		return parseCreateTable(raw, c)
	case "TYPE":
		return parseCreateEnum(raw, c)
	case "FUNCTION":
		return parseCreateFunction(raw, c, orReplace)
	case "TRIGGER":
		return parseCreateTrigger(raw, c)
	case "POLICY":
		return parseCreatePolicy(raw, c)
	case "INDEX":
		return parseCreateIndex(raw, c, unique)
	case "VIEW", "MATERIALIZED":
		if head.Upper() == "MATERIALIZED" && !c.matchWord("VIEW") {
			return &UnknownStmt{Raw: raw, Reason: "malformed CREATE MATERIALIZED VIEW"}
		}
		return parseCreateView(raw, c, orReplace)
	case "EXTENSION":
		return parseCreateExtension(raw, c)
	case "SCHEMA":
		return parseCreateSchema(raw, c)
	default:
		return &UnknownStmt{Raw: raw, Reason: fmt.Sprintf("unsupported CREATE %s", head.Upper())}
	}
}

// cursor walks a token slice.
type cursor struct {
	toks []Token
	i    int
}

func (c *cursor) peek() Token {
	if c.i >= len(c.toks) {
		return Token{Type: TokenEOF}
	}
	return c.toks[c.i]
}

func (c *cursor) next() Token {
	tok := c.peek()
	if c.i < len(c.toks) {
		c.i++
	}
	return tok
}

func (c *cursor) peekWord(word string) bool {
	return c.peek().IsWord(word)
}

// matchWord consumes the next token when it is the given bare keyword.
func (c *cursor) matchWord(word string) bool {
	if c.peekWord(word) {
		c.next()
		return true
	}
	return false
}

// skipIfNotExists consumes an optional IF NOT EXISTS clause.
func (c *cursor) skipIfNotExists() {
	if c.peekWord("IF") {
		c.next()
		c.matchWord("NOT")
		c.matchWord("EXISTS")
	}
}

// takeName reads a possibly schema-qualified, possibly quoted name.
// Unquoted components fold to lowercase, matching PostgreSQL semantics.
func (c *cursor) takeName() string {
	var parts []string
	for {
		tok := c.peek()
		if tok.Type != TokenIdent && tok.Type != TokenQuotedIdent {
			break
		}
		c.next()
		if tok.Type == TokenIdent {
			parts = append(parts, strings.ToLower(tok.Literal))
		} else {
			parts = append(parts, tok.Literal)
		}
		if c.peek().Type != TokenDot {
			break
		}
		c.next()
	}
	return strings.Join(parts, ".")
}

// parenGroup consumes a balanced parenthesized token group, returning the
// tokens between the outer parens. The cursor must be on the '('.
func (c *cursor) parenGroup() ([]Token, bool) {
	if c.peek().Type != TokenLParen {
		return nil, false
	}
	c.next()
	depth := 1
	var group []Token
	for {
		tok := c.next()
		switch tok.Type {
		case TokenEOF:
			return nil, false
		case TokenLParen:
			depth++
		case TokenRParen:
			depth--
			if depth == 0 {
				return group, true
			}
		}
		group = append(group, tok)
	}
}

// splitTopLevel splits a token group on commas at paren depth zero.
func splitTopLevel(toks []Token) [][]Token {
	var (
		items [][]Token
		cur   []Token
		depth int
	)
	for _, tok := range toks {
		switch tok.Type {
		case TokenLParen:
			depth++
		case TokenRParen:
			depth--
		case TokenComma:
			if depth == 0 {
				items = append(items, cur)
				cur = nil
				continue
			}
		}
		cur = append(cur, tok)
	}
	if len(cur) > 0 {
		items = append(items, cur)
	}
	return items
}

// renderTokens reconstructs readable SQL text from tokens.
func renderTokens(toks []Token) string {
	var sb strings.Builder
	for i, tok := range toks {
		lit := tok.Literal
		switch tok.Type {
		case TokenString:
			lit = "'" + strings.ReplaceAll(tok.Literal, "'", "''") + "'"
		case TokenQuotedIdent:
			lit = `"` + tok.Literal + `"`
		}
		if i > 0 && needsSpace(toks[i-1], tok) {
			sb.WriteByte(' ')
		}
		sb.WriteString(lit)
	}
	return sb.String()
}

func needsSpace(prev, cur Token) bool {
	switch cur.Type {
	case TokenComma, TokenRParen, TokenDot, TokenSemicolon:
		return false
	}
	switch prev.Type {
	case TokenLParen, TokenDot:
		return false
	}
	return true
}

// Column constraint keywords that terminate a type or default expression.
var columnTerminators = map[string]bool{
	"NOT":        true,
	"PRIMARY":    true,
	"UNIQUE":     true,
	"REFERENCES": true,
	"CHECK":      true,
	"CONSTRAINT": true,
	"DEFAULT":    true,
	"GENERATED":  true,
}

func parseCreateTable(raw string, c *cursor) Statement {
	c.skipIfNotExists()
	name := c.takeName()
	if name == "" {
		return &UnknownStmt{Raw: raw, Reason: "CREATE TABLE without a table name"}
	}

	body, ok := c.parenGroup()
	if !ok {
		return &UnknownStmt{Raw: raw, Reason: fmt.Sprintf("CREATE TABLE %s without a column list", name)}
	}

	stmt := &CreateTableStmt{Raw: raw, Name: name}
	for _, item := range splitTopLevel(body) {
		if len(item) == 0 {
			continue
		}
		ic := &cursor{toks: item}
		if ic.peekWord("CONSTRAINT") {
			ic.next()
			ic.takeName() // constraint name
		}
		switch {
		case ic.peekWord("FOREIGN"):
			if fk, ok := parseTableForeignKey(ic); ok {
				stmt.ForeignKeys = append(stmt.ForeignKeys, fk)
			}
		case ic.peekWord("PRIMARY"):
			ic.next()
			ic.matchWord("KEY")
			if cols, ok := ic.parenGroup(); ok {
				markPrimaryColumns(stmt, cols)
			}
		case ic.peekWord("UNIQUE"), ic.peekWord("CHECK"), ic.peekWord("EXCLUDE"):
			// Table-level unique/check/exclude constraints are not part
			// of the diffable column model.
		default:
			if col, ok := parseColumnDef(ic); ok {
				stmt.Columns = append(stmt.Columns, col)
			}
		}
	}
	return stmt
}

func markPrimaryColumns(stmt *CreateTableStmt, cols []Token) {
	for _, item := range splitTopLevel(cols) {
		if len(item) == 0 {
			continue
		}
		name := strings.ToLower(item[0].Literal)
		if item[0].Type == TokenQuotedIdent {
			name = item[0].Literal
		}
		for i := range stmt.Columns {
			if stmt.Columns[i].Name == name {
				stmt.Columns[i].PrimaryKey = true
				stmt.Columns[i].NotNull = true
			}
		}
	}
}

func parseTableForeignKey(c *cursor) (ForeignKeyRef, bool) {
	c.next() // FOREIGN
	c.matchWord("KEY")

	var fk ForeignKeyRef
	cols, ok := c.parenGroup()
	if !ok {
		return fk, false
	}
	fk.Columns = identList(cols)

	if !c.matchWord("REFERENCES") {
		return fk, false
	}
	fk.RefTable = c.takeName()
	if refCols, ok := c.parenGroup(); ok {
		fk.RefColumns = identList(refCols)
	}
	fk.OnDelete = parseOnDelete(c)
	return fk, fk.RefTable != ""
}

// parseOnDelete consumes trailing ON DELETE/ON UPDATE actions, returning
// the ON DELETE action text.
func parseOnDelete(c *cursor) string {
	var onDelete string
	for c.peekWord("ON") {
		c.next()
		which := c.next().Upper()
		action := c.next().Upper()
		// Two-word actions: NO ACTION, SET NULL, SET DEFAULT.
		if action == "NO" || action == "SET" {
			action += " " + c.next().Upper()
		}
		if which == "DELETE" {
			onDelete = action
		}
	}
	return onDelete
}

func identList(toks []Token) []string {
	var names []string
	for _, item := range splitTopLevel(toks) {
		if len(item) == 0 {
			continue
		}
		if item[0].Type == TokenQuotedIdent {
			names = append(names, item[0].Literal)
		} else {
			names = append(names, strings.ToLower(renderTokens(item)))
		}
	}
	return names
}

func parseColumnDef(c *cursor) (ColumnDef, bool) {
	var col ColumnDef
	nameTok := c.peek()
	if nameTok.Type != TokenIdent && nameTok.Type != TokenQuotedIdent {
		return col, false
	}
	c.next()
	if nameTok.Type == TokenQuotedIdent {
		col.Name = nameTok.Literal
	} else {
		col.Name = strings.ToLower(nameTok.Literal)
	}

	// Type: everything up to the first constraint keyword, including any
	// parenthesized precision and multi-word type names.
	var typeToks []Token
	for {
		tok := c.peek()
		if tok.Type == TokenEOF {
			break
		}
		if tok.Type == TokenIdent && columnTerminators[tok.Upper()] {
			break
		}
		if tok.Type == TokenLParen {
			group, ok := c.parenGroup()
			if !ok {
				return col, false
			}
			typeToks = append(typeToks, Token{Type: TokenLParen, Literal: "("})
			typeToks = append(typeToks, group...)
			typeToks = append(typeToks, Token{Type: TokenRParen, Literal: ")"})
			continue
		}
		typeToks = append(typeToks, c.next())
	}
	col.Type = strings.ToLower(renderTokens(typeToks))
	if col.Type == "" {
		return col, false
	}

	for {
		tok := c.peek()
		if tok.Type == TokenEOF {
			break
		}
		switch tok.Upper() {
		case "NOT":
			c.next()
			c.matchWord("NULL")
			col.NotNull = true
		case "NULL":
			c.next()
		case "DEFAULT":
			c.next()
			col.Default = parseDefaultExpr(c)
		case "PRIMARY":
			c.next()
			c.matchWord("KEY")
			col.PrimaryKey = true
			col.NotNull = true
		case "UNIQUE":
			c.next()
			col.Unique = true
		case "REFERENCES":
			c.next()
			ref := &ForeignKeyRef{RefTable: c.takeName()}
			if refCols, ok := c.parenGroup(); ok {
				ref.RefColumns = identList(refCols)
			}
			ref.OnDelete = parseOnDelete(c)
			col.References = ref
		case "CHECK":
			c.next()
			if expr, ok := c.parenGroup(); ok {
				col.Check = renderTokens(expr)
			}
		case "CONSTRAINT":
			c.next()
			c.takeName()
		case "GENERATED":
			// GENERATED ... AS IDENTITY / AS (expr) STORED: consume to end.
			for c.peek().Type != TokenEOF {
				if c.peek().Type == TokenLParen {
					c.parenGroup()
					continue
				}
				c.next()
			}
		default:
			c.next()
		}
	}
	return col, true
}

// parseDefaultExpr collects a DEFAULT expression up to the next column
// constraint keyword at paren depth zero.
func parseDefaultExpr(c *cursor) string {
	var toks []Token
	for {
		tok := c.peek()
		if tok.Type == TokenEOF {
			break
		}
		if tok.Type == TokenIdent {
			switch tok.Upper() {
			case "NOT", "PRIMARY", "UNIQUE", "REFERENCES", "CHECK", "CONSTRAINT", "GENERATED":
				return renderTokens(toks)
			}
		}
		if tok.Type == TokenLParen {
			group, ok := c.parenGroup()
			if !ok {
				return renderTokens(toks)
			}
			toks = append(toks, Token{Type: TokenLParen, Literal: "("})
			toks = append(toks, group...)
			toks = append(toks, Token{Type: TokenRParen, Literal: ")"})
			continue
		}
		toks = append(toks, c.next())
	}
	return renderTokens(toks)
}

func parseCreateEnum(raw string, c *cursor) Statement {
	name := c.takeName()
	if name == "" || !c.matchWord("AS") || !c.matchWord("ENUM") {
		return &UnknownStmt{Raw: raw, Reason: "unsupported CREATE TYPE: only AS ENUM is diffable"}
	}
	group, ok := c.parenGroup()
	if !ok {
		return &UnknownStmt{Raw: raw, Reason: fmt.Sprintf("CREATE TYPE %s AS ENUM without a value list", name)}
	}
	stmt := &CreateEnumStmt{Raw: raw, Name: name}
	for _, item := range splitTopLevel(group) {
		if len(item) == 1 && item[0].Type == TokenString {
			stmt.Values = append(stmt.Values, item[0].Literal)
		}
	}
	return stmt
}

func parseCreateFunction(raw string, c *cursor, orReplace bool) Statement {
	name := c.takeName()
	if name == "" {
		return &UnknownStmt{Raw: raw, Reason: "CREATE FUNCTION without a name"}
	}
	args, ok := c.parenGroup()
	if !ok {
		return &UnknownStmt{Raw: raw, Reason: fmt.Sprintf("CREATE FUNCTION %s without a parameter list", name)}
	}

	stmt := &CreateFunctionStmt{Raw: raw, Name: name, OrReplace: orReplace}
	for _, item := range splitTopLevel(args) {
		if len(item) == 0 {
			continue
		}
		stmt.ArgTypes = append(stmt.ArgTypes, NormalizeFunctionArg(renderTokens(item)))
	}

	for {
		tok := c.peek()
		if tok.Type == TokenEOF {
			break
		}
		switch {
		case tok.IsWord("RETURNS"):
			c.next()
			var retToks []Token
			for {
				rt := c.peek()
				if rt.Type == TokenEOF || (rt.Type == TokenIdent && isFunctionClauseStart(rt.Upper())) {
					break
				}
				retToks = append(retToks, c.next())
			}
			stmt.Returns = strings.ToLower(renderTokens(retToks))
		case tok.IsWord("LANGUAGE"):
			c.next()
			stmt.Language = strings.ToLower(c.next().Literal)
		case tok.IsWord("SECURITY"):
			c.next()
			if c.peekWord("DEFINER") {
				stmt.SecurityDefiner = true
			}
			c.next()
		case tok.IsWord("AS"):
			c.next()
			body := c.peek()
			if body.Type == TokenDollarString || body.Type == TokenString {
				stmt.Body = body.Literal
				c.next()
			}
		default:
			c.next()
		}
	}
	return stmt
}

// isFunctionClauseStart reports whether the keyword begins a post-RETURNS
// function clause.
func isFunctionClauseStart(word string) bool {
	switch word {
	case "LANGUAGE", "AS", "SECURITY", "IMMUTABLE", "STABLE", "VOLATILE", "STRICT", "CALLED", "PARALLEL", "COST", "SET":
		return true
	}
	return false
}

func parseCreateTrigger(raw string, c *cursor) Statement {
	name := c.takeName()
	if name == "" {
		return &UnknownStmt{Raw: raw, Reason: "CREATE TRIGGER without a name"}
	}
	stmt := &CreateTriggerStmt{Raw: raw, Name: name}

	switch {
	case c.matchWord("BEFORE"):
		stmt.Timing = "BEFORE"
	case c.matchWord("AFTER"):
		stmt.Timing = "AFTER"
	case c.matchWord("INSTEAD"):
		c.matchWord("OF")
		stmt.Timing = "INSTEAD OF"
	default:
		return &UnknownStmt{Raw: raw, Reason: fmt.Sprintf("CREATE TRIGGER %s without a timing clause", name)}
	}

	for {
		evt := c.next()
		stmt.Events = append(stmt.Events, evt.Upper())
		if evt.Upper() == "UPDATE" && c.matchWord("OF") {
			// UPDATE OF col, col: consume the column list.
			for {
				c.takeName()
				if c.peek().Type != TokenComma {
					break
				}
				c.next()
			}
		}
		if !c.matchWord("OR") {
			break
		}
	}

	if !c.matchWord("ON") {
		return &UnknownStmt{Raw: raw, Reason: fmt.Sprintf("CREATE TRIGGER %s without a table", name)}
	}
	stmt.Table = c.takeName()

	for {
		tok := c.peek()
		if tok.Type == TokenEOF {
			break
		}
		switch {
		case tok.IsWord("FOR"):
			c.next()
			c.matchWord("EACH")
			if c.matchWord("ROW") {
				stmt.ForEachRow = true
			} else {
				c.matchWord("STATEMENT")
			}
		case tok.IsWord("WHEN"):
			// WHEN conditions carry arbitrary expressions; recover the
			// text from the raw statement instead of the token stream.
			stmt.When = TriggerCondition(raw)
			c.next()
			c.parenGroup()
		case tok.IsWord("EXECUTE"):
			c.next()
			if !c.matchWord("FUNCTION") {
				c.matchWord("PROCEDURE")
			}
			stmt.Function = c.takeName()
			c.parenGroup()
		default:
			c.next()
		}
	}
	return stmt
}

func parseCreatePolicy(raw string, c *cursor) Statement {
	name := c.takeName()
	if name == "" || !c.matchWord("ON") {
		return &UnknownStmt{Raw: raw, Reason: "CREATE POLICY without a name or table"}
	}
	stmt := &CreatePolicyStmt{Raw: raw, Name: name, Table: c.takeName(), Command: "ALL", Permissive: true}

	for {
		tok := c.peek()
		if tok.Type == TokenEOF {
			break
		}
		switch {
		case tok.IsWord("AS"):
			c.next()
			if c.matchWord("RESTRICTIVE") {
				stmt.Permissive = false
			} else {
				c.matchWord("PERMISSIVE")
			}
		case tok.IsWord("FOR"):
			c.next()
			stmt.Command = c.next().Upper()
		case tok.IsWord("TO"):
			stmt.Roles = PolicyRoles(raw)
			c.next()
			for c.peek().Type == TokenIdent || c.peek().Type == TokenQuotedIdent {
				c.next()
				if c.peek().Type != TokenComma {
					break
				}
				c.next()
			}
		case tok.IsWord("USING"):
			c.next()
			if expr, ok := c.parenGroup(); ok {
				stmt.Using = renderTokens(expr)
			}
		case tok.IsWord("WITH"):
			c.next()
			c.matchWord("CHECK")
			if expr, ok := c.parenGroup(); ok {
				stmt.WithCheck = renderTokens(expr)
			}
		default:
			c.next()
		}
	}
	return stmt
}

func parseCreateIndex(raw string, c *cursor, unique bool) Statement {
	c.skipIfNotExists()
	name := c.takeName()
	if name == "" || !c.matchWord("ON") {
		return &UnknownStmt{Raw: raw, Reason: "CREATE INDEX without a name or table"}
	}
	stmt := &CreateIndexStmt{Raw: raw, Name: name, Unique: unique}
	stmt.Table = c.takeName()
	stmt.Method = IndexMethod(raw)
	if c.peekWord("USING") {
		c.next()
		c.next()
	}
	if cols, ok := c.parenGroup(); ok {
		for _, item := range splitTopLevel(cols) {
			if len(item) > 0 {
				stmt.Columns = append(stmt.Columns, strings.ToLower(renderTokens(item)))
			}
		}
	}
	if c.matchWord("WHERE") {
		var rest []Token
		for c.peek().Type != TokenEOF {
			if c.peek().Type == TokenLParen {
				group, ok := c.parenGroup()
				if !ok {
					break
				}
				rest = append(rest, Token{Type: TokenLParen, Literal: "("})
				rest = append(rest, group...)
				rest = append(rest, Token{Type: TokenRParen, Literal: ")"})
				continue
			}
			rest = append(rest, c.next())
		}
		stmt.Where = renderTokens(rest)
	}
	return stmt
}

func parseCreateView(raw string, c *cursor, orReplace bool) Statement {
	c.skipIfNotExists()
	name := c.takeName()
	if name == "" {
		return &UnknownStmt{Raw: raw, Reason: "CREATE VIEW without a name"}
	}
	// Optional column list.
	if c.peek().Type == TokenLParen {
		c.parenGroup()
	}
	if !c.matchWord("AS") {
		return &UnknownStmt{Raw: raw, Reason: fmt.Sprintf("CREATE VIEW %s without a query", name)}
	}
	var query []Token
	for c.peek().Type != TokenEOF {
		if c.peek().Type == TokenLParen {
			group, ok := c.parenGroup()
			if !ok {
				break
			}
			query = append(query, Token{Type: TokenLParen, Literal: "("})
			query = append(query, group...)
			query = append(query, Token{Type: TokenRParen, Literal: ")"})
			continue
		}
		query = append(query, c.next())
	}
	return &CreateViewStmt{Raw: raw, Name: name, Query: renderTokens(query), OrReplace: orReplace}
}

func parseCreateExtension(raw string, c *cursor) Statement {
	c.skipIfNotExists()
	name := c.takeName()
	if name == "" {
		return &UnknownStmt{Raw: raw, Reason: "CREATE EXTENSION without a name"}
	}
	return &CreateExtensionStmt{Raw: raw, Name: name}
}

func parseCreateSchema(raw string, c *cursor) Statement {
	c.skipIfNotExists()
	name := c.takeName()
	if name == "" {
		return &UnknownStmt{Raw: raw, Reason: "CREATE SCHEMA without a name"}
	}
	return &CreateSchemaStmt{Raw: raw, Name: name}
}

package sqlparse

import (
	"regexp"
	"strings"
)

// Heuristic extraction: best-effort text recovery for details the token
// parser does not expose cleanly. Every function here returns a partial
// result and never fails; callers treat the output as advisory.

var (
	triggerWhenRe  = regexp.MustCompile(`(?is)\bWHEN\s*\(`)
	indexMethodRe  = regexp.MustCompile(`(?is)\bUSING\s+([a-z_][a-z0-9_]*)\s*\(`)
	policyRolesRe  = regexp.MustCompile(`(?is)\bTO\s+([a-z0-9_," ]+?)(?:\s+USING\b|\s+WITH\b|\s*$)`)
	identifierRe   = regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_.]*`)
	argModePrefix  = regexp.MustCompile(`(?i)^(IN|OUT|INOUT|VARIADIC)\s+`)
	argDefaultTail = regexp.MustCompile(`(?is)\s+(DEFAULT|=)\s+.*$`)
)

// TriggerCondition extracts the WHEN (...) condition text from a raw
// CREATE TRIGGER statement, or "" when absent.
func TriggerCondition(raw string) string {
	loc := triggerWhenRe.FindStringIndex(raw)
	if loc == nil {
		return ""
	}
	return balancedParen(raw[loc[1]-1:])
}

// IndexMethod extracts the USING method from a raw CREATE INDEX statement.
// Returns "" when the index uses the default access method.
func IndexMethod(raw string) string {
	m := indexMethodRe.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// PolicyRoles extracts the TO role list from a raw CREATE POLICY statement.
// Returns nil when the policy applies to PUBLIC implicitly.
func PolicyRoles(raw string) []string {
	m := policyRolesRe.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	var roles []string
	for _, role := range strings.Split(m[1], ",") {
		role = strings.Trim(strings.TrimSpace(role), `"`)
		if role != "" {
			roles = append(roles, strings.ToLower(role))
		}
	}
	return roles
}

// NormalizeFunctionArg reduces one function parameter declaration to its
// type text: the mode and parameter name are dropped, defaults stripped.
// "IN user_id integer DEFAULT 0" normalizes to "integer".
func NormalizeFunctionArg(arg string) string {
	arg = strings.TrimSpace(argModePrefix.ReplaceAllString(arg, ""))
	arg = argDefaultTail.ReplaceAllString(arg, "")
	fields := strings.Fields(arg)
	if len(fields) >= 2 && !isTypeWord(fields[0]) {
		// First word is a parameter name, the rest is the type.
		fields = fields[1:]
	}
	return strings.ToLower(strings.Join(fields, " "))
}

// isTypeWord reports whether a leading word can only be a type, meaning no
// parameter name precedes it.
func isTypeWord(word string) bool {
	switch strings.ToLower(word) {
	case "integer", "int", "int2", "int4", "int8", "bigint", "smallint",
		"text", "varchar", "char", "character", "boolean", "bool",
		"numeric", "decimal", "real", "float4", "float8", "double",
		"timestamp", "timestamptz", "date", "time", "interval",
		"uuid", "json", "jsonb", "bytea", "inet", "cidr":
		return true
	}
	return strings.Contains(word, "(") || strings.Contains(word, ".")
}

// ViewReferences scans a view query for identifiers that match known
// relation names. It is a text-level approximation: identifiers inside
// string literals are stripped before scanning.
func ViewReferences(query string, known map[string]bool) []string {
	cleaned := stripStringLiterals(query)
	seen := make(map[string]bool)
	var refs []string
	for _, ident := range identifierRe.FindAllString(cleaned, -1) {
		name := strings.ToLower(ident)
		if known[name] && !seen[name] {
			seen[name] = true
			refs = append(refs, name)
		}
	}
	return refs
}

// balancedParen returns the contents of the balanced parenthesized group
// beginning at s[0] == '('.
func balancedParen(s string) string {
	if len(s) == 0 || s[0] != '(' {
		return ""
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[1:i])
			}
		}
	}
	return ""
}

// stripStringLiterals blanks out single-quoted literals.
func stripStringLiterals(s string) string {
	var sb strings.Builder
	inString := false
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			inString = !inString
			sb.WriteByte(' ')
			continue
		}
		if inString {
			sb.WriteByte(' ')
		} else {
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

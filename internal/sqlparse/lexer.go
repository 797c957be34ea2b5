// Package sqlparse provides best-effort DDL parsing for schema snapshots.
// It turns raw SQL text into a stream of tagged statements; statements it
// cannot classify are reported, never fatal.
package sqlparse

import (
	"fmt"
	"strings"
	"unicode"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenError
	TokenIdent
	TokenQuotedIdent
	TokenNumber
	TokenString
	TokenDollarString

	TokenComma
	TokenLParen
	TokenRParen
	TokenDot
	TokenSemicolon
	TokenOp
)

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int
}

// String returns a string representation of the token.
func (t Token) String() string {
	return fmt.Sprintf("Token{%d, %q, %d}", t.Type, t.Literal, t.Pos)
}

// Upper returns the uppercased literal, used for keyword comparison.
// Quoted identifiers are case-sensitive and returned verbatim.
func (t Token) Upper() string {
	if t.Type == TokenQuotedIdent {
		return t.Literal
	}
	return strings.ToUpper(t.Literal)
}

// IsWord reports whether the token is a bare identifier matching the given
// keyword, case-insensitively.
func (t Token) IsWord(word string) bool {
	return t.Type == TokenIdent && strings.EqualFold(t.Literal, word)
}

// Lexer tokenizes SQL DDL input. It understands line and block comments,
// single-quoted strings with '' escapes, double-quoted identifiers, and
// dollar-quoted bodies ($$...$$ or $tag$...$tag$).
type Lexer struct {
	input   string
	pos     int
	readPos int
	ch      byte
	err     error
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// Err returns the first lexical error encountered, if any.
func (l *Lexer) Err() error {
	return l.err
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// skipSpaceAndComments skips whitespace, -- line comments, and /* */ block
// comments.
func (l *Lexer) skipSpaceAndComments() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r':
			l.readChar()
		case l.ch == '-' && l.peekChar() == '-':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			l.readChar()
			l.readChar()
			for !(l.ch == '*' && l.peekChar() == '/') && l.ch != 0 {
				l.readChar()
			}
			if l.ch != 0 {
				l.readChar()
				l.readChar()
			}
		default:
			return
		}
	}
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipSpaceAndComments()

	startPos := l.pos
	var tok Token

	switch l.ch {
	case 0:
		tok = Token{Type: TokenEOF, Pos: startPos}
	case ',':
		tok = Token{Type: TokenComma, Literal: ",", Pos: startPos}
	case '(':
		tok = Token{Type: TokenLParen, Literal: "(", Pos: startPos}
	case ')':
		tok = Token{Type: TokenRParen, Literal: ")", Pos: startPos}
	case '.':
		tok = Token{Type: TokenDot, Literal: ".", Pos: startPos}
	case ';':
		tok = Token{Type: TokenSemicolon, Literal: ";", Pos: startPos}
	case '\'':
		return l.readString()
	case '"':
		return l.readQuotedIdent()
	case '$':
		if isDollarQuoteStart(l.input[l.pos:]) {
			return l.readDollarString()
		}
		tok = Token{Type: TokenOp, Literal: "$", Pos: startPos}
	default:
		if isLetter(l.ch) || l.ch == '_' {
			return l.readIdentifier()
		}
		if isDigit(l.ch) {
			return l.readNumber()
		}
		tok = Token{Type: TokenOp, Literal: string(l.ch), Pos: startPos}
	}

	l.readChar()
	return tok
}

// Tokenize returns all tokens from the input up to EOF or the first error.
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}
	return tokens
}

func (l *Lexer) readIdentifier() Token {
	startPos := l.pos
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' || l.ch == '$' {
		l.readChar()
	}
	return Token{Type: TokenIdent, Literal: l.input[start:l.pos], Pos: startPos}
}

func (l *Lexer) readNumber() Token {
	startPos := l.pos
	start := l.pos
	hasDecimal := false
	for isDigit(l.ch) || (l.ch == '.' && !hasDecimal) {
		if l.ch == '.' {
			hasDecimal = true
		}
		l.readChar()
	}
	return Token{Type: TokenNumber, Literal: l.input[start:l.pos], Pos: startPos}
}

// readString reads a single-quoted string literal; '' is an escaped quote.
func (l *Lexer) readString() Token {
	startPos := l.pos
	l.readChar() // opening quote
	var sb strings.Builder
	for {
		if l.ch == 0 {
			l.err = fmt.Errorf("unterminated string literal at offset %d", startPos)
			return Token{Type: TokenError, Literal: "unterminated string", Pos: startPos}
		}
		if l.ch == '\'' {
			if l.peekChar() == '\'' {
				sb.WriteByte('\'')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // closing quote
			return Token{Type: TokenString, Literal: sb.String(), Pos: startPos}
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}
}

// readQuotedIdent reads a double-quoted identifier; "" is an escaped quote.
func (l *Lexer) readQuotedIdent() Token {
	startPos := l.pos
	l.readChar()
	var sb strings.Builder
	for {
		if l.ch == 0 {
			l.err = fmt.Errorf("unterminated quoted identifier at offset %d", startPos)
			return Token{Type: TokenError, Literal: "unterminated identifier", Pos: startPos}
		}
		if l.ch == '"' {
			if l.peekChar() == '"' {
				sb.WriteByte('"')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar()
			return Token{Type: TokenQuotedIdent, Literal: sb.String(), Pos: startPos}
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}
}

// readDollarString reads a dollar-quoted body: $$...$$ or $tag$...$tag$.
// The literal is the body without the delimiters.
func (l *Lexer) readDollarString() Token {
	startPos := l.pos
	tagEnd := strings.IndexByte(l.input[l.pos+1:], '$')
	delim := l.input[l.pos : l.pos+tagEnd+2]

	rest := l.input[l.pos+len(delim):]
	end := strings.Index(rest, delim)
	if end < 0 {
		l.err = fmt.Errorf("unterminated dollar-quoted body at offset %d", startPos)
		return Token{Type: TokenError, Literal: "unterminated dollar quote", Pos: startPos}
	}

	body := rest[:end]
	for l.pos < startPos+len(delim)*2+len(body) {
		l.readChar()
	}
	return Token{Type: TokenDollarString, Literal: body, Pos: startPos}
}

// isDollarQuoteStart reports whether s begins a dollar-quote delimiter:
// a '$', an optional tag of letters/underscores, and a closing '$'.
func isDollarQuoteStart(s string) bool {
	if len(s) < 2 || s[0] != '$' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] == '$' {
			return true
		}
		if !isLetter(s[i]) && s[i] != '_' {
			return false
		}
	}
	return false
}

func isLetter(ch byte) bool {
	return unicode.IsLetter(rune(ch))
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// Package tagexpr implements the tag expression language used to select
// scenarios by their tags. Expressions combine tag literals with and, or,
// not and parentheses, e.g. "@smoke and not (@slow or @flaky)".
package tagexpr

// TokenType represents the type of a lexical token.
type TokenType int

const (
	TokenIdent  TokenType = iota // tag literal, escapes resolved
	TokenAnd                     // and
	TokenOr                      // or
	TokenNot                     // not
	TokenLParen                  // (
	TokenRParen                  // )
	TokenEnd                     // end of expression
)

// Token represents a single lexical token.
type Token struct {
	Type  TokenType
	Value string // identifier text, or the keyword as written
	Pos   int    // byte offset in source
}

// String returns a debug-friendly representation of the token type.
func (t TokenType) String() string {
	switch t {
	case TokenIdent:
		return "IDENT"
	case TokenAnd:
		return "AND"
	case TokenOr:
		return "OR"
	case TokenNot:
		return "NOT"
	case TokenLParen:
		return "LPAREN"
	case TokenRParen:
		return "RPAREN"
	case TokenEnd:
		return "END"
	default:
		return "UNKNOWN"
	}
}

// isOperand reports whether a token of type t can start an operand.
func (t TokenType) isOperand() bool {
	return t == TokenIdent || t == TokenNot || t == TokenLParen
}

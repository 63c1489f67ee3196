package tagexpr

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var keywords = []struct {
	word string
	typ  TokenType
}{
	{"and", TokenAnd},
	{"or", TokenOr},
	{"not", TokenNot},
}

// Lexer tokenizes a tag expression on demand.
// It holds at most one token of lookahead.
type Lexer struct {
	input string
	pos   int

	peeked  bool
	peekTok Token
	peekErr error
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Next consumes and returns the next token.
// Once the input is exhausted every call returns a TokenEnd token.
func (l *Lexer) Next() (Token, error) {
	if l.peeked {
		l.peeked = false
		return l.peekTok, l.peekErr
	}
	return l.read()
}

// Peek returns the token the next call to Next will return, without consuming it.
func (l *Lexer) Peek() (Token, error) {
	if !l.peeked {
		l.peekTok, l.peekErr = l.read()
		l.peeked = true
	}
	return l.peekTok, l.peekErr
}

// Tokenize scans the remaining input and returns all tokens,
// including the final TokenEnd.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEnd {
			return tokens, nil
		}
	}
}

// read scans one token starting at the cursor.
func (l *Lexer) read() (Token, error) {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEnd, Pos: l.pos}, nil
	}

	switch l.input[l.pos] {
	case '(':
		l.pos++
		return Token{Type: TokenLParen, Value: "(", Pos: l.pos - 1}, nil
	case ')':
		l.pos++
		return Token{Type: TokenRParen, Value: ")", Pos: l.pos - 1}, nil
	}

	if tok, ok := l.readKeyword(); ok {
		return tok, nil
	}
	return l.readIdentifier()
}

// readKeyword matches and, or, not in any case. A keyword must be
// followed by a delimiter, so "order" and "notable" stay identifiers.
func (l *Lexer) readKeyword() (Token, bool) {
	for _, kw := range keywords {
		end := l.pos + len(kw.word)
		if end > len(l.input) || !strings.EqualFold(l.input[l.pos:end], kw.word) {
			continue
		}
		if end < len(l.input) {
			if r, _ := utf8.DecodeRuneInString(l.input[end:]); !isDelimiter(r) {
				continue
			}
		}
		tok := Token{Type: kw.typ, Value: l.input[l.pos:end], Pos: l.pos}
		l.pos = end
		return tok, true
	}
	return Token{}, false
}

// readIdentifier reads a tag literal, resolving backslash escapes.
func (l *Lexer) readIdentifier() (Token, error) {
	start := l.pos
	var sb strings.Builder
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if isDelimiter(r) {
			break
		}
		if r != '\\' {
			sb.WriteString(l.input[l.pos : l.pos+size])
			l.pos += size
			continue
		}

		next := l.pos + size
		if next >= len(l.input) {
			return Token{}, &SyntaxError{Expression: l.input, Kind: IllegalEscape, Pos: next}
		}
		escaped, esize := utf8.DecodeRuneInString(l.input[next:])
		if !isEscapable(escaped) {
			return Token{}, &SyntaxError{
				Expression: l.input,
				Kind:       IllegalEscape,
				Pos:        next,
				Char:       l.input[next : next+esize],
			}
		}
		sb.WriteString(l.input[next : next+esize])
		l.pos = next + esize
	}
	return Token{Type: TokenIdent, Value: sb.String(), Pos: start}, nil
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		l.pos += size
	}
}

// isDelimiter reports whether r ends an unescaped identifier.
func isDelimiter(r rune) bool {
	return r == '(' || r == ')' || unicode.IsSpace(r)
}

// isEscapable reports whether r may follow a backslash.
func isEscapable(r rune) bool {
	return r == '\\' || isDelimiter(r)
}

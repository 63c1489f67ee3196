package tagexpr

import (
	"errors"
	"testing"
)

func TestLexerTokens(t *testing.T) {
	tests := []struct {
		input string
		want  []Token
	}{
		{"", []Token{{Type: TokenEnd, Pos: 0}}},
		{"   ", []Token{{Type: TokenEnd, Pos: 3}}},
		{"foo", []Token{
			{Type: TokenIdent, Value: "foo", Pos: 0},
			{Type: TokenEnd, Pos: 3},
		}},
		{"( )", []Token{
			{Type: TokenLParen, Value: "(", Pos: 0},
			{Type: TokenRParen, Value: ")", Pos: 2},
			{Type: TokenEnd, Pos: 3},
		}},
		{"@a and not @b", []Token{
			{Type: TokenIdent, Value: "@a", Pos: 0},
			{Type: TokenAnd, Value: "and", Pos: 3},
			{Type: TokenNot, Value: "not", Pos: 7},
			{Type: TokenIdent, Value: "@b", Pos: 11},
			{Type: TokenEnd, Pos: 13},
		}},
		{"AND Or nOt", []Token{
			{Type: TokenAnd, Value: "AND", Pos: 0},
			{Type: TokenOr, Value: "Or", Pos: 4},
			{Type: TokenNot, Value: "nOt", Pos: 7},
			{Type: TokenEnd, Pos: 10},
		}},
		{"x or(y)", []Token{
			{Type: TokenIdent, Value: "x", Pos: 0},
			{Type: TokenOr, Value: "or", Pos: 2},
			{Type: TokenLParen, Value: "(", Pos: 4},
			{Type: TokenIdent, Value: "y", Pos: 5},
			{Type: TokenRParen, Value: ")", Pos: 6},
			{Type: TokenEnd, Pos: 7},
		}},
		// keywords must end at a delimiter
		{"android order notable", []Token{
			{Type: TokenIdent, Value: "android", Pos: 0},
			{Type: TokenIdent, Value: "order", Pos: 8},
			{Type: TokenIdent, Value: "notable", Pos: 14},
			{Type: TokenEnd, Pos: 21},
		}},
		{`foo\ bar`, []Token{
			{Type: TokenIdent, Value: "foo bar", Pos: 0},
			{Type: TokenEnd, Pos: 8},
		}},
		{`x\(1\) y\\`, []Token{
			{Type: TokenIdent, Value: "x(1)", Pos: 0},
			{Type: TokenIdent, Value: `y\`, Pos: 7},
			{Type: TokenEnd, Pos: 10},
		}},
		{"\tspaced\n", []Token{
			{Type: TokenIdent, Value: "spaced", Pos: 1},
			{Type: TokenEnd, Pos: 8},
		}},
		{"tagé", []Token{
			{Type: TokenIdent, Value: "tagé", Pos: 0},
			{Type: TokenEnd, Pos: 5},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NewLexer(tt.input).Tokenize()
			if err != nil {
				t.Fatalf("tokenize error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d tokens %v, want %d %v", len(got), got, len(tt.want), tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token %d: got %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLexerPeek(t *testing.T) {
	l := NewLexer("foo bar")

	first, err := l.Peek()
	if err != nil {
		t.Fatalf("peek error: %v", err)
	}
	again, err := l.Peek()
	if err != nil {
		t.Fatalf("peek error: %v", err)
	}
	if first != again {
		t.Errorf("repeated peek returned %+v then %+v", first, again)
	}

	next, err := l.Next()
	if err != nil {
		t.Fatalf("next error: %v", err)
	}
	if next != first {
		t.Errorf("next returned %+v, peek returned %+v", next, first)
	}

	next, _ = l.Next()
	if next.Type != TokenIdent || next.Value != "bar" {
		t.Errorf("got %+v, want identifier bar", next)
	}
	for i := 0; i < 3; i++ {
		if tok, _ := l.Next(); tok.Type != TokenEnd {
			t.Errorf("got %s after end of input, want END", tok.Type)
		}
	}
}

func TestLexerIllegalEscape(t *testing.T) {
	tests := []struct {
		input string
		pos   int
		char  string
	}{
		{`foo\x`, 4, "x"},
		{`x or \y or z`, 6, "y"},
		{`a\`, 2, ""},
		{`a\é`, 2, "é"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := NewLexer(tt.input).Tokenize()
			var serr *SyntaxError
			if !errors.As(err, &serr) {
				t.Fatalf("got %v, want *SyntaxError", err)
			}
			if serr.Kind != IllegalEscape {
				t.Errorf("kind = %s, want IllegalEscape", serr.Kind)
			}
			if serr.Pos != tt.pos {
				t.Errorf("pos = %d, want %d", serr.Pos, tt.pos)
			}
			if serr.Char != tt.char {
				t.Errorf("char = %q, want %q", serr.Char, tt.char)
			}
		})
	}
}

func TestLexerPeekError(t *testing.T) {
	l := NewLexer(`\q`)
	_, perr := l.Peek()
	_, nerr := l.Next()
	if perr == nil || perr != nerr {
		t.Errorf("peek error %v, next error %v; want the same error", perr, nerr)
	}
}

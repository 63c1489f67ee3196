package tagexpr

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// String returns the canonical form of the expression.
func (e *True) String() string    { return Format(e) }
func (e *Literal) String() string { return Format(e) }
func (e *Not) String() string     { return Format(e) }
func (e *Binary) String() string  { return Format(e) }

// Format returns the canonical form of expr: every binary operation is
// parenthesized, operators are lower case and literals are escaped.
// Parsing the result yields an equal tree.
func Format(expr Expr) string {
	var sb strings.Builder
	format(&sb, expr)
	return sb.String()
}

func format(sb *strings.Builder, expr Expr) {
	switch e := expr.(type) {
	case *True:
		// Empty input formats as empty output.
	case *Literal:
		sb.WriteString(escape(e.Name))
	case *Not:
		sb.WriteString("not ")
		if _, ok := e.Operand.(*Binary); ok {
			// Binary operands carry their own parentheses.
			format(sb, e.Operand)
			return
		}
		sb.WriteString("( ")
		format(sb, e.Operand)
		sb.WriteString(" )")
	case *Binary:
		sb.WriteString("( ")
		formatOperand(sb, e.Op, e.Left)
		sb.WriteByte(' ')
		sb.WriteString(e.Op.String())
		sb.WriteByte(' ')
		formatOperand(sb, e.Op, e.Right)
		sb.WriteString(" )")
	default:
		panic(fmt.Sprintf("tagexpr: unexpected expression type %T", expr))
	}
}

// formatOperand writes a child of a binary operation. A child that binds
// more loosely than its parent must be parenthesized; binary nodes always
// parenthesize themselves, so the extra wrap only applies to a rendering
// that lacks them.
func formatOperand(sb *strings.Builder, parent Op, child Expr) {
	b, ok := child.(*Binary)
	if !ok || b.Op.precedence() >= parent.precedence() {
		format(sb, child)
		return
	}
	s := Format(b)
	if strings.HasPrefix(s, "( ") && strings.HasSuffix(s, " )") {
		sb.WriteString(s)
		return
	}
	sb.WriteString("( ")
	sb.WriteString(s)
	sb.WriteString(" )")
}

// escape backslash-escapes the characters that would otherwise end a literal.
func escape(name string) string {
	if !strings.ContainsFunc(name, isEscapable) {
		return name
	}
	var sb strings.Builder
	for i := 0; i < len(name); {
		r, size := utf8.DecodeRuneInString(name[i:])
		if isEscapable(r) {
			sb.WriteByte('\\')
		}
		sb.WriteString(name[i : i+size])
		i += size
	}
	return sb.String()
}

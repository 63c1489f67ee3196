package tagexpr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a syntax error.
type ErrorKind int

const (
	IllegalEscape ErrorKind = iota
	UnmatchedOpenParen
	UnmatchedCloseParen
	ExpectedOperand
	ExpectedOperator
	IncompleteExpression
)

// Sentinel errors, one per ErrorKind. A *SyntaxError unwraps to the
// sentinel of its kind, so callers can use errors.Is.
var (
	ErrIllegalEscape        = errors.New("illegal escape")
	ErrUnmatchedOpenParen   = errors.New("unmatched (")
	ErrUnmatchedCloseParen  = errors.New("unmatched )")
	ErrExpectedOperand      = errors.New("expected operand")
	ErrExpectedOperator     = errors.New("expected operator")
	ErrIncompleteExpression = errors.New("expression is incomplete")
)

// String returns the kind's name as used in logs and metrics.
func (k ErrorKind) String() string {
	switch k {
	case IllegalEscape:
		return "IllegalEscape"
	case UnmatchedOpenParen:
		return "UnmatchedOpenParen"
	case UnmatchedCloseParen:
		return "UnmatchedCloseParen"
	case ExpectedOperand:
		return "ExpectedOperand"
	case ExpectedOperator:
		return "ExpectedOperator"
	case IncompleteExpression:
		return "IncompleteExpression"
	default:
		return "Unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case IllegalEscape:
		return ErrIllegalEscape
	case UnmatchedOpenParen:
		return ErrUnmatchedOpenParen
	case UnmatchedCloseParen:
		return ErrUnmatchedCloseParen
	case ExpectedOperand:
		return ErrExpectedOperand
	case ExpectedOperator:
		return ErrExpectedOperator
	case IncompleteExpression:
		return ErrIncompleteExpression
	default:
		return nil
	}
}

// SyntaxError is returned by Parse for malformed input.
type SyntaxError struct {
	Expression string    // the complete input text
	Kind       ErrorKind // what went wrong
	Pos        int       // byte offset of the offending token, -1 if unknown
	Char       string    // escaped character, IllegalEscape only
}

// Error renders the message shared by all tag expression implementations.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("Tag expression \"%s\" could not be parsed because of syntax error: %s.", e.Expression, e.Cause())
}

// Cause returns the specific cause part of the message, e.g. "Unmatched (".
func (e *SyntaxError) Cause() string {
	switch e.Kind {
	case IllegalEscape:
		return fmt.Sprintf("Illegal escape before \"%s\"", e.Char)
	case UnmatchedOpenParen:
		return "Unmatched ("
	case UnmatchedCloseParen:
		return "Unmatched )"
	case ExpectedOperand:
		return "Expected operand"
	case ExpectedOperator:
		return "Expected operator"
	case IncompleteExpression:
		return "Expression is incomplete"
	default:
		return "Unknown error"
	}
}

// Unwrap returns the sentinel error for the error's kind.
func (e *SyntaxError) Unwrap() error {
	return e.Kind.sentinel()
}

// Diagnostic returns the message followed by the expression and a marker
// under the offending position:
//
//	Tag expression "a b" could not be parsed because of syntax error: Expected operator.
//	Expression: a b
//	______________^ (HERE)
func (e *SyntaxError) Diagnostic() string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\nExpression: ")
	sb.WriteString(e.Expression)
	if e.Pos < 0 {
		return sb.String()
	}
	pos := min(e.Pos, len(e.Expression))
	sb.WriteByte('\n')
	sb.WriteString(strings.Repeat("_", len("Expression: ")+len([]rune(e.Expression[:pos]))))
	sb.WriteString("^ (HERE)")
	return sb.String()
}

func (p *parser) errorAt(kind ErrorKind, pos int) *SyntaxError {
	return &SyntaxError{Expression: p.input, Kind: kind, Pos: pos}
}

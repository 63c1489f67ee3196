package tagexpr

// Expr is a parsed tag expression.
// Trees are never modified after Parse returns them and are safe for
// concurrent use.
type Expr interface {
	tagExpr() // restricts Expr to the node types below

	String() string // canonical form, see Format
}

// Op is a binary operator.
type Op int

const (
	OpOr Op = iota
	OpAnd
)

// String returns the operator keyword.
func (o Op) String() string {
	if o == OpAnd {
		return "and"
	}
	return "or"
}

// precedence orders operators from loosest to tightest binding.
func (o Op) precedence() int {
	if o == OpAnd {
		return 2
	}
	return 1
}

// True is the expression parsed from empty input. It matches every tag set.
type True struct{}

// Literal matches one tag by exact name.
type Literal struct {
	Name string
}

// Not negates its operand.
type Not struct {
	Operand Expr
}

// Binary is a conjunction or disjunction.
type Binary struct {
	Op    Op
	Left  Expr
	Right Expr
}

func (*True) tagExpr()    {}
func (*Literal) tagExpr() {}
func (*Not) tagExpr()     {}
func (*Binary) tagExpr()  {}

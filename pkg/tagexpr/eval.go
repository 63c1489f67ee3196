package tagexpr

import "fmt"

// TagSet is a set of tag names.
type TagSet map[string]struct{}

// NewTagSet returns the set of the given tags. Duplicates collapse.
func NewTagSet(tags ...string) TagSet {
	set := make(TagSet, len(tags))
	for _, tag := range tags {
		set[tag] = struct{}{}
	}
	return set
}

// Has reports whether tag is in the set.
func (s TagSet) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Evaluate reports whether the tags satisfy expr.
// Order and duplicates in tags do not affect the result.
func Evaluate(expr Expr, tags []string) bool {
	return EvaluateSet(expr, NewTagSet(tags...))
}

// EvaluateSet is like Evaluate for a prebuilt set, for matching
// many expressions against the same tags.
func EvaluateSet(expr Expr, tags TagSet) bool {
	switch e := expr.(type) {
	case *True:
		return true
	case *Literal:
		return tags.Has(e.Name)
	case *Not:
		return !EvaluateSet(e.Operand, tags)
	case *Binary:
		// Both sides are evaluated, left first.
		left := EvaluateSet(e.Left, tags)
		right := EvaluateSet(e.Right, tags)
		if e.Op == OpAnd {
			return left && right
		}
		return left || right
	default:
		panic(fmt.Sprintf("tagexpr: unexpected expression type %T", expr))
	}
}

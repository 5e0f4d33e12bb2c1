package predicate

// Expr is a node of a filter tree: Eq, And, Or or All.
type Expr interface {
	isExpr()
}

// Eq matches rows whose column equals the value. A nil value matches NULL.
type Eq struct {
	Column string
	Value  any
}

// And matches rows satisfying every member, in order.
type And []Expr

// Or matches rows satisfying at least one member, in order.
type Or []Expr

type all struct{}

// All matches every row. Mutations refuse an empty filter unless All is
// passed explicitly.
var All Expr = all{}

func (Eq) isExpr()  {}
func (And) isExpr() {}
func (Or) isExpr()  {}
func (all) isExpr() {}

// E is shorthand for Eq{Column: column, Value: value}.
func E(column string, value any) Eq {
	return Eq{Column: column, Value: value}
}

// Where builds one group of conditions joined by AND, keeping their order.
func Where(conds ...Eq) And {
	group := make(And, len(conds))
	for i, c := range conds {
		group[i] = c
	}
	return group
}

// AnyOf builds a sequence of groups joined by OR, keeping their order.
func AnyOf(groups ...And) Or {
	alt := make(Or, len(groups))
	for i, g := range groups {
		alt[i] = g
	}
	return alt
}

// IsAll reports whether e is the explicit match-everything marker.
func IsAll(e Expr) bool {
	_, ok := e.(all)
	return ok
}

// IsEmpty reports whether e contains no conditions at all.
func IsEmpty(e Expr) bool {
	switch v := e.(type) {
	case nil, all:
		return true
	case Eq:
		return false
	case And:
		for _, m := range v {
			if !IsEmpty(m) {
				return false
			}
		}
		return true
	case Or:
		for _, m := range v {
			if !IsEmpty(m) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

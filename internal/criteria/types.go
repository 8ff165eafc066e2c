package criteria

import "github.com/roach88/appframe/internal/ir"

// Predicate is a filter condition. Sealed to this package.
type Predicate interface {
	predicateNode()
}

// Equals matches rows where Column = Value. A null Value matches NULL
// columns.
type Equals struct {
	Column string
	Value  ir.IRValue
}

func (Equals) predicateNode() {}

// In matches rows where Column is one of Values. Values must not be empty.
type In struct {
	Column string
	Values []ir.IRValue
}

func (In) predicateNode() {}

// Comparison operators accepted by Compare.
const (
	OpLess         = "<"
	OpLessEqual    = "<="
	OpGreater      = ">"
	OpGreaterEqual = ">="
	OpNotEqual     = "!="
)

// ValidOps lists the operators Compare accepts.
var ValidOps = map[string]bool{
	OpLess:         true,
	OpLessEqual:    true,
	OpGreater:      true,
	OpGreaterEqual: true,
	OpNotEqual:     true,
}

// Compare matches rows where Column <Op> Value.
type Compare struct {
	Column string
	Op     string
	Value  ir.IRValue
}

func (Compare) predicateNode() {}

// Search matches rows where any of Columns contains Term as a substring.
// An empty term matches everything.
type Search struct {
	Columns []string
	Term    string
}

func (Search) predicateNode() {}

// IsNull matches rows where Column IS NULL, or IS NOT NULL when Negate.
type IsNull struct {
	Column string
	Negate bool
}

func (IsNull) predicateNode() {}

// And is a conjunction. Empty means always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or is a disjunction. Empty means always false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Not negates a predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// Order is one ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// Query selects rows from a single table.
//
// PrimaryKey is appended to the ordering as a tiebreaker so paging is
// stable; it defaults to "id". Empty Columns selects every column.
// Limit 0 means no limit.
type Query struct {
	From       string
	PrimaryKey string
	Columns    []string
	Filter     Predicate
	OrderBy    []Order
	Limit      int
	Offset     int
}

// Key returns the primary key column, defaulting to "id".
func (q Query) Key() string {
	if q.PrimaryKey == "" {
		return "id"
	}
	return q.PrimaryKey
}

// Deref converts pointer predicates to their value form so callers only
// need to switch over value types. Unknown types are returned unchanged.
func Deref(p Predicate) Predicate {
	switch v := p.(type) {
	case *Equals:
		return *v
	case *In:
		return *v
	case *Compare:
		return *v
	case *Search:
		return *v
	case *IsNull:
		return *v
	case *And:
		return *v
	case *Or:
		return *v
	case *Not:
		return *v
	}
	return p
}

// AndOf combines predicates, dropping nils. It returns nil when nothing is
// left and the single predicate when only one is.
func AndOf(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return And{Predicates: kept}
}

package criteria

import (
	"fmt"
	"regexp"

	"github.com/roach88/appframe/internal/ir"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is safe to use as a table or column
// name in generated SQL.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// ValidationResult lists the problems found in a query.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Validate checks identifiers and structure of a query. It is a pure
// function; all problems are reported, not just the first.
func Validate(q Query) ValidationResult {
	v := &validator{errors: []string{}}
	v.validateQuery(q)
	return ValidationResult{
		Valid:  len(v.errors) == 0,
		Errors: v.errors,
	}
}

type validator struct {
	errors []string
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) checkIdentifier(kind, name string) {
	if !ValidIdentifier(name) {
		v.addError("invalid %s name %q", kind, name)
	}
}

func (v *validator) validateQuery(q Query) {
	v.checkIdentifier("table", q.From)
	v.checkIdentifier("primary key", q.Key())
	for _, col := range q.Columns {
		v.checkIdentifier("column", col)
	}
	for _, o := range q.OrderBy {
		v.checkIdentifier("order column", o.Column)
	}
	if q.Limit < 0 {
		v.addError("limit must not be negative, got %d", q.Limit)
	}
	if q.Offset < 0 {
		v.addError("offset must not be negative, got %d", q.Offset)
	}
	if q.Filter != nil {
		v.validatePredicate(q.Filter)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	if p == nil {
		v.addError("nil predicate in filter")
		return
	}

	switch pred := Deref(p).(type) {
	case Equals:
		v.checkIdentifier("column", pred.Column)
		v.checkScalar(pred.Column, pred.Value, true)
	case In:
		v.checkIdentifier("column", pred.Column)
		if len(pred.Values) == 0 {
			v.addError("IN on %q needs at least one value", pred.Column)
		}
		for _, val := range pred.Values {
			v.checkScalar(pred.Column, val, false)
		}
	case Compare:
		v.checkIdentifier("column", pred.Column)
		if !ValidOps[pred.Op] {
			v.addError("unsupported operator %q on %q", pred.Op, pred.Column)
		}
		v.checkScalar(pred.Column, pred.Value, false)
	case Search:
		if len(pred.Columns) == 0 {
			v.addError("search needs at least one column")
		}
		for _, col := range pred.Columns {
			v.checkIdentifier("search column", col)
		}
	case IsNull:
		v.checkIdentifier("column", pred.Column)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case Or:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case Not:
		v.validatePredicate(pred.Predicate)
	default:
		v.addError("unknown predicate type: %T", p)
	}
}

func (v *validator) checkScalar(column string, val ir.IRValue, allowNull bool) {
	switch val.(type) {
	case ir.IRString, ir.IRInt, ir.IRBool:
	case ir.IRNull, nil:
		if !allowNull {
			v.addError("null value on %q, use IsNull", column)
		}
	default:
		v.addError("value for %q must be a string, int or bool, got %s", column, ir.TypeName(val))
	}
}

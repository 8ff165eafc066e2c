// Package criteriasql compiles filter criteria to parameterized SQL.
package criteriasql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/appframe/internal/criteria"
	"github.com/roach88/appframe/internal/ir"
)

// Compiler compiles criteria queries to SQL with ? placeholders.
//
// Values are never interpolated. Every SELECT ends with an ORDER BY that
// includes the primary key, so results and pages are deterministic.
type Compiler struct{}

// NewCompiler creates a new Compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile converts a query to a SELECT statement.
// Returns (sql, params, error).
func (c *Compiler) Compile(q criteria.Query) (string, []any, error) {
	if err := validate(q); err != nil {
		return "", nil, err
	}

	columns := "*"
	if len(q.Columns) > 0 {
		columns = strings.Join(q.Columns, ", ")
	}

	where, params, err := c.compileWhere(q.Filter)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s%s ORDER BY %s", columns, q.From, where, stableOrder(q))

	switch {
	case q.Limit > 0:
		b.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
		if q.Offset > 0 {
			b.WriteString(" OFFSET ?")
			params = append(params, q.Offset)
		}
	case q.Offset > 0:
		// SQLite requires a LIMIT before OFFSET; -1 means unbounded.
		b.WriteString(" LIMIT -1 OFFSET ?")
		params = append(params, q.Offset)
	}

	return b.String(), params, nil
}

// CompileCount converts a query to a SELECT COUNT(*) statement. Columns,
// ordering and paging are ignored.
func (c *Compiler) CompileCount(q criteria.Query) (string, []any, error) {
	if err := validate(q); err != nil {
		return "", nil, err
	}
	where, params, err := c.compileWhere(q.Filter)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", q.From, where), params, nil
}

func validate(q criteria.Query) error {
	result := criteria.Validate(q)
	if result.Valid {
		return nil
	}
	return fmt.Errorf("invalid query: %s", strings.Join(result.Errors, "; "))
}

func (c *Compiler) compileWhere(filter criteria.Predicate) (string, []any, error) {
	if filter == nil {
		return "", nil, nil
	}
	sql, params, err := c.compilePredicate(filter)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}
	return " WHERE " + sql, params, nil
}

// stableOrder returns the ORDER BY terms, always ending with the primary
// key. COLLATE BINARY keeps text ordering identical across SQLite builds.
func stableOrder(q criteria.Query) string {
	key := q.Key()
	terms := make([]string, 0, len(q.OrderBy)+1)
	hasKey := false
	for _, o := range q.OrderBy {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		terms = append(terms, fmt.Sprintf("%s COLLATE BINARY %s", o.Column, dir))
		if o.Column == key {
			hasKey = true
		}
	}
	if !hasKey {
		terms = append(terms, key+" COLLATE BINARY ASC")
	}
	return strings.Join(terms, ", ")
}

func (c *Compiler) compilePredicate(p criteria.Predicate) (string, []any, error) {
	switch pred := criteria.Deref(p).(type) {
	case criteria.Equals:
		if isNull(pred.Value) {
			return pred.Column + " IS NULL", nil, nil
		}
		param, err := irValueToParam(pred.Value)
		if err != nil {
			return "", nil, err
		}
		return pred.Column + " = ?", []any{param}, nil

	case criteria.In:
		placeholders := make([]string, len(pred.Values))
		params := make([]any, len(pred.Values))
		for i, v := range pred.Values {
			param, err := irValueToParam(v)
			if err != nil {
				return "", nil, err
			}
			placeholders[i] = "?"
			params[i] = param
		}
		return fmt.Sprintf("%s IN (%s)", pred.Column, strings.Join(placeholders, ", ")), params, nil

	case criteria.Compare:
		param, err := irValueToParam(pred.Value)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s %s ?", pred.Column, pred.Op), []any{param}, nil

	case criteria.Search:
		if pred.Term == "" {
			return "1 = 1", nil, nil
		}
		pattern := "%" + EscapeLike(pred.Term) + "%"
		parts := make([]string, len(pred.Columns))
		params := make([]any, len(pred.Columns))
		for i, col := range pred.Columns {
			parts[i] = col + ` LIKE ? ESCAPE '\'`
			params[i] = pattern
		}
		return "(" + strings.Join(parts, " OR ") + ")", params, nil

	case criteria.IsNull:
		if pred.Negate {
			return pred.Column + " IS NOT NULL", nil, nil
		}
		return pred.Column + " IS NULL", nil, nil

	case criteria.And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil, nil
		}
		return c.compileJoined(pred.Predicates, " AND ")

	case criteria.Or:
		if len(pred.Predicates) == 0 {
			return "1 = 0", nil, nil
		}
		return c.compileJoined(pred.Predicates, " OR ")

	case criteria.Not:
		sql, params, err := c.compilePredicate(pred.Predicate)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", params, nil

	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *Compiler) compileJoined(preds []criteria.Predicate, sep string) (string, []any, error) {
	parts := make([]string, 0, len(preds))
	var all []any
	for _, p := range preds {
		sql, params, err := c.compilePredicate(p)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		all = append(all, params...)
	}
	return "(" + strings.Join(parts, sep) + ")", all, nil
}

// EscapeLike escapes LIKE wildcards so term matches literally with
// ESCAPE '\'.
func EscapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}

func isNull(v ir.IRValue) bool {
	if v == nil {
		return true
	}
	_, ok := v.(ir.IRNull)
	return ok
}

var errNotScalar = errors.New("value cannot be used as SQL parameter")

// irValueToParam converts a scalar ir.IRValue to a Go native SQL parameter.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		return bool(val), nil
	case ir.IRNull, nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%s: %w", ir.TypeName(v), errNotScalar)
	}
}

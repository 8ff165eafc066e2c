package dbhelper

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/roach88/appframe/internal/criteria"
	"github.com/roach88/appframe/internal/ir"
)

// Sort directions accepted by SetOrderBy.
const (
	OrderAsc  = "ASC"
	OrderDesc = "DESC"
)

// FilterCriteria is a fluent builder for listing a collection's records.
// Setter errors are collected and reported by the executing call.
type FilterCriteria struct {
	collection *Collection
	search     string
	selectCols []string
	selects    map[string][]ir.IRValue
	predicates []criteria.Predicate
	orderBy    []criteria.Order
	offset     int
	limit      int
	errs       []error
}

func newFilterCriteria(c *Collection) *FilterCriteria {
	return &FilterCriteria{
		collection: c,
		selects:    make(map[string][]ir.IRValue),
	}
}

// SetSearch matches the term against the collection's search columns.
func (f *FilterCriteria) SetSearch(term string) *FilterCriteria {
	f.search = strings.TrimSpace(term)
	return f
}

// SelectCriteria restricts column to the given values. Repeated calls for
// the same column widen the set.
func (f *FilterCriteria) SelectCriteria(column string, values ...any) *FilterCriteria {
	if err := f.checkColumn(column); err != nil {
		f.errs = append(f.errs, fmt.Errorf("select criteria: %w", err))
		return f
	}
	if _, seen := f.selects[column]; !seen {
		f.selectCols = append(f.selectCols, column)
		f.selects[column] = []ir.IRValue{}
	}
	for _, v := range values {
		irv, err := ir.FromAny(normalizeValue(v))
		if err != nil {
			f.errs = append(f.errs, fmt.Errorf("select criteria %s: %w", column, err))
			continue
		}
		f.selects[column] = append(f.selects[column], irv)
	}
	return f
}

// AddPredicate adds an arbitrary criteria predicate, ANDed with the rest.
func (f *FilterCriteria) AddPredicate(p criteria.Predicate) *FilterCriteria {
	if p == nil {
		return f
	}
	for _, col := range predicateColumns(p) {
		if err := f.checkColumn(col); err != nil {
			f.errs = append(f.errs, fmt.Errorf("predicate: %w", err))
			return f
		}
	}
	f.predicates = append(f.predicates, p)
	return f
}

// SetOrderBy adds an ordering term. dir is ASC or DESC, case-insensitive.
func (f *FilterCriteria) SetOrderBy(column, dir string) *FilterCriteria {
	if err := f.checkColumn(column); err != nil {
		f.errs = append(f.errs, fmt.Errorf("order by: %w", err))
		return f
	}
	switch strings.ToUpper(dir) {
	case OrderAsc, "":
		f.orderBy = append(f.orderBy, criteria.Order{Column: column})
	case OrderDesc:
		f.orderBy = append(f.orderBy, criteria.Order{Column: column, Desc: true})
	default:
		f.errs = append(f.errs, fmt.Errorf("order by %s: invalid direction %q", column, dir))
	}
	return f
}

func (f *FilterCriteria) checkColumn(column string) error {
	if !criteria.ValidIdentifier(column) {
		return fmt.Errorf("invalid column %q", column)
	}
	if spec := f.collection.spec; !spec.filterable(column) {
		return fmt.Errorf("%s collection has no column %q", spec.RecordTypeName, column)
	}
	return nil
}

// predicateColumns lists the columns p refers to.
func predicateColumns(p criteria.Predicate) []string {
	switch v := criteria.Deref(p).(type) {
	case criteria.Equals:
		return []string{v.Column}
	case criteria.In:
		return []string{v.Column}
	case criteria.Compare:
		return []string{v.Column}
	case criteria.IsNull:
		return []string{v.Column}
	case criteria.Search:
		return v.Columns
	case criteria.Not:
		return predicateColumns(v.Predicate)
	case criteria.And:
		return childColumns(v.Predicates)
	case criteria.Or:
		return childColumns(v.Predicates)
	}
	return nil
}

func childColumns(preds []criteria.Predicate) []string {
	var cols []string
	for _, p := range preds {
		if p != nil {
			cols = append(cols, predicateColumns(p)...)
		}
	}
	return cols
}

// SetLimit sets the page. A limit of 0 returns all remaining rows.
func (f *FilterCriteria) SetLimit(offset, limit int) *FilterCriteria {
	f.offset = offset
	f.limit = limit
	return f
}

// Query builds the criteria query for the current settings.
func (f *FilterCriteria) Query() (criteria.Query, error) {
	if len(f.errs) > 0 {
		return criteria.Query{}, errors.Join(f.errs...)
	}
	spec := f.collection.spec

	preds := make([]criteria.Predicate, 0, len(f.selectCols)+len(f.predicates)+1)
	if f.search != "" {
		if len(spec.SearchColumns) == 0 {
			return criteria.Query{}, fmt.Errorf("%s collection has no search columns", spec.RecordTypeName)
		}
		preds = append(preds, criteria.Search{Columns: spec.SearchColumns, Term: f.search})
	}
	for _, col := range f.selectCols {
		values := f.selects[col]
		if len(values) == 1 {
			preds = append(preds, criteria.Equals{Column: col, Value: values[0]})
			continue
		}
		preds = append(preds, criteria.In{Column: col, Values: values})
	}
	preds = append(preds, f.predicates...)

	order := f.orderBy
	if len(order) == 0 {
		order = spec.DefaultOrder
	}

	return criteria.Query{
		From:       spec.Table,
		PrimaryKey: spec.key(),
		Filter:     criteria.AndOf(preds...),
		OrderBy:    order,
		Limit:      f.limit,
		Offset:     f.offset,
	}, nil
}

// GetItems loads the matching records.
func (f *FilterCriteria) GetItems(ctx context.Context) ([]*Record, error) {
	q, err := f.Query()
	if err != nil {
		return nil, err
	}
	c := f.collection
	query, params, err := c.compiler.Compile(q)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryxContext(ctx, c.db.Rebind(query), params...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.spec.RecordTypeName, err)
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		data := make(map[string]any)
		if err := rows.MapScan(data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.spec.RecordTypeName, err)
		}
		data = normalizeRow(data)
		id, ok := data[c.spec.key()].(int64)
		if !ok {
			return nil, fmt.Errorf("scan %s: primary key %q is %T, not an integer", c.spec.RecordTypeName, c.spec.key(), data[c.spec.key()])
		}
		records = append(records, newRecord(c, id, data))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.spec.RecordTypeName, err)
	}

	c.logger.Debug("filter criteria executed", zap.String("sql", query), zap.Int("count", len(records)))
	return records, nil
}

// CountItems counts the matching records, ignoring the page.
func (f *FilterCriteria) CountItems(ctx context.Context) (int, error) {
	q, err := f.Query()
	if err != nil {
		return 0, err
	}
	c := f.collection
	query, params, err := c.compiler.CompileCount(q)
	if err != nil {
		return 0, err
	}
	var n int
	if err := c.db.GetContext(ctx, &n, c.db.Rebind(query), params...); err != nil {
		return 0, fmt.Errorf("count %s: %w", c.spec.RecordTypeName, err)
	}
	return n, nil
}

// GetIDs returns the primary keys of the matching records in order.
func (f *FilterCriteria) GetIDs(ctx context.Context) ([]int64, error) {
	q, err := f.Query()
	if err != nil {
		return nil, err
	}
	c := f.collection
	q.Columns = []string{c.spec.key()}
	query, params, err := c.compiler.Compile(q)
	if err != nil {
		return nil, err
	}
	ids := []int64{}
	if err := sqlx.SelectContext(ctx, c.db, &ids, c.db.Rebind(query), params...); err != nil {
		return nil, fmt.Errorf("list %s ids: %w", c.spec.RecordTypeName, err)
	}
	return ids, nil
}

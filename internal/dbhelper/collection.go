package dbhelper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/roach88/appframe/internal/criteria"
	"github.com/roach88/appframe/internal/criteriasql"
	"github.com/roach88/appframe/internal/ir"
)

// ErrRecordNotFound is returned when no row has the requested primary key.
var ErrRecordNotFound = errors.New("record not found")

// CollectionSpec binds a collection to a table.
type CollectionSpec struct {
	// Table is the table name.
	Table string

	// PrimaryKey is the integer primary key column. Defaults to "id".
	PrimaryKey string

	// RecordTypeName is the human name of the records ("article", "user").
	// Used in error messages and logs.
	RecordTypeName string

	// SearchColumns are matched by FilterCriteria.SetSearch.
	SearchColumns []string

	// DefaultOrder applies when a filter sets no explicit order.
	DefaultOrder []criteria.Order

	// Columns restricts which columns may be written. It also limits the
	// columns filters may select and order by, together with the primary
	// key and SearchColumns. Empty allows any column the table has.
	Columns []string
}

func (s CollectionSpec) key() string {
	if s.PrimaryKey == "" {
		return "id"
	}
	return s.PrimaryKey
}

// filterable reports whether filters may refer to col.
func (s CollectionSpec) filterable(col string) bool {
	if len(s.Columns) == 0 || col == s.key() {
		return true
	}
	for _, c := range s.Columns {
		if c == col {
			return true
		}
	}
	for _, c := range s.SearchColumns {
		if c == col {
			return true
		}
	}
	return false
}

func (s CollectionSpec) validate() error {
	if !criteria.ValidIdentifier(s.Table) {
		return fmt.Errorf("invalid table name %q", s.Table)
	}
	if !criteria.ValidIdentifier(s.key()) {
		return fmt.Errorf("invalid primary key %q", s.key())
	}
	for _, col := range append(append([]string{}, s.SearchColumns...), s.Columns...) {
		if !criteria.ValidIdentifier(col) {
			return fmt.Errorf("invalid column %q", col)
		}
	}
	for _, o := range s.DefaultOrder {
		if !criteria.ValidIdentifier(o.Column) {
			return fmt.Errorf("invalid order column %q", o.Column)
		}
	}
	return nil
}

// Collection loads and manages the records of one table.
// Safe for concurrent use; Records are not.
type Collection struct {
	db       *sqlx.DB
	spec     CollectionSpec
	compiler *criteriasql.Compiler
	logger   *zap.Logger
}

// NewCollection creates a collection over db. A nil logger disables logging.
func NewCollection(db *sqlx.DB, spec CollectionSpec, logger *zap.Logger) (*Collection, error) {
	if db == nil {
		return nil, fmt.Errorf("new collection: db is nil")
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("new collection: %w", err)
	}
	if spec.RecordTypeName == "" {
		spec.RecordTypeName = spec.Table
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collection{
		db:       db,
		spec:     spec,
		compiler: criteriasql.NewCompiler(),
		logger:   logger.With(zap.String("collection", spec.Table)),
	}, nil
}

// Spec returns the collection's binding.
func (c *Collection) Spec() CollectionSpec {
	return c.spec
}

// RecordTypeName returns the human name of the records.
func (c *Collection) RecordTypeName() string {
	return c.spec.RecordTypeName
}

// GetByID loads a record. Returns ErrRecordNotFound if it does not exist.
func (c *Collection) GetByID(ctx context.Context, id int64) (*Record, error) {
	data, err := c.loadRow(ctx, id)
	if err != nil {
		return nil, err
	}
	return newRecord(c, id, data), nil
}

// IDExists reports whether a record with the primary key exists.
func (c *Collection) IDExists(ctx context.Context, id int64) (bool, error) {
	query := c.db.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", c.spec.Table, c.spec.key()))
	var n int
	if err := c.db.GetContext(ctx, &n, query, id); err != nil {
		return false, fmt.Errorf("%s id exists: %w", c.spec.RecordTypeName, err)
	}
	return n > 0, nil
}

// GetAll returns every record in default order.
func (c *Collection) GetAll(ctx context.Context) ([]*Record, error) {
	return c.GetFilterCriteria().GetItems(ctx)
}

// CountRecords returns the total number of records.
func (c *Collection) CountRecords(ctx context.Context) (int, error) {
	return c.GetFilterCriteria().CountItems(ctx)
}

// CreateNewRecord inserts a row with the given column values and returns
// the loaded record. Columns are written in sorted order.
func (c *Collection) CreateNewRecord(ctx context.Context, data map[string]any) (*Record, error) {
	columns := make([]string, 0, len(data))
	for col := range data {
		if err := c.checkWritable(col); err != nil {
			return nil, fmt.Errorf("create %s: %w", c.spec.RecordTypeName, err)
		}
		columns = append(columns, col)
	}
	sort.Strings(columns)

	var query string
	args := make([]any, len(columns))
	if len(columns) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", c.spec.Table)
	} else {
		placeholders := make([]string, len(columns))
		for i, col := range columns {
			placeholders[i] = "?"
			args[i] = data[col]
		}
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			c.spec.Table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	}

	result, err := c.db.ExecContext(ctx, c.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", c.spec.RecordTypeName, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create %s: last insert id: %w", c.spec.RecordTypeName, err)
	}

	c.logger.Debug("record created", zap.Int64("id", id), zap.Strings("columns", columns))
	return c.GetByID(ctx, id)
}

// DeleteRecord removes the record with the primary key.
// Returns ErrRecordNotFound if nothing was deleted.
func (c *Collection) DeleteRecord(ctx context.Context, id int64) error {
	query := c.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", c.spec.Table, c.spec.key()))
	result, err := c.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", c.spec.RecordTypeName, id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s %d: rows affected: %w", c.spec.RecordTypeName, id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s %d: %w", c.spec.RecordTypeName, id, ErrRecordNotFound)
	}
	c.logger.Debug("record deleted", zap.Int64("id", id))
	return nil
}

// GetFilterCriteria returns a fresh filter over the collection.
func (c *Collection) GetFilterCriteria() *FilterCriteria {
	return newFilterCriteria(c)
}

func (c *Collection) checkWritable(col string) error {
	if !criteria.ValidIdentifier(col) {
		return fmt.Errorf("invalid column %q", col)
	}
	if col == c.spec.key() {
		return fmt.Errorf("primary key %q is not writable", col)
	}
	if len(c.spec.Columns) == 0 {
		return nil
	}
	for _, allowed := range c.spec.Columns {
		if allowed == col {
			return nil
		}
	}
	return fmt.Errorf("column %q is not writable", col)
}

func (c *Collection) loadRow(ctx context.Context, id int64) (map[string]any, error) {
	q := criteria.Query{
		From:       c.spec.Table,
		PrimaryKey: c.spec.key(),
		Filter:     criteria.Equals{Column: c.spec.key(), Value: ir.IRInt(id)},
	}
	query, params, err := c.compiler.Compile(q)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryxContext(ctx, c.db.Rebind(query), params...)
	if err != nil {
		return nil, fmt.Errorf("load %s %d: %w", c.spec.RecordTypeName, id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("load %s %d: %w", c.spec.RecordTypeName, id, err)
		}
		return nil, fmt.Errorf("%s %d: %w", c.spec.RecordTypeName, id, ErrRecordNotFound)
	}
	data := make(map[string]any)
	if err := rows.MapScan(data); err != nil {
		return nil, fmt.Errorf("scan %s %d: %w", c.spec.RecordTypeName, id, err)
	}
	return normalizeRow(data), nil
}

// normalizeRow converts driver byte slices to strings so values compare
// and print predictably.
func normalizeRow(data map[string]any) map[string]any {
	for k, v := range data {
		if b, ok := v.([]byte); ok {
			data[k] = string(b)
		}
	}
	return data
}

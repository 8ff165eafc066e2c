package dbhelper

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Record is one row of a collection. It keeps the loaded column values and
// remembers which of them were changed since the last load or save.
type Record struct {
	collection *Collection
	id         int64
	data       map[string]any
	modified   map[string]bool
}

func newRecord(c *Collection, id int64, data map[string]any) *Record {
	return &Record{
		collection: c,
		id:         id,
		data:       data,
		modified:   make(map[string]bool),
	}
}

// ID returns the primary key.
func (r *Record) ID() int64 {
	return r.id
}

// Collection returns the collection the record belongs to.
func (r *Record) Collection() *Collection {
	return r.collection
}

// RecordTypeName returns the collection's record type name.
func (r *Record) RecordTypeName() string {
	return r.collection.spec.RecordTypeName
}

// HasDataKey reports whether the row has the column.
func (r *Record) HasDataKey(name string) bool {
	_, ok := r.data[name]
	return ok
}

// GetDataKey returns a column value, or nil when the column is unknown or
// NULL.
func (r *Record) GetDataKey(name string) any {
	return r.data[name]
}

// GetDataKeyString returns a column value formatted as a string. NULL and
// unknown columns yield "".
func (r *Record) GetDataKeyString(name string) string {
	switch v := r.data[name].(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// GetDataKeyInt returns a column value as an integer. Strings are parsed;
// values that are not integers yield 0.
func (r *Record) GetDataKeyInt(name string) int64 {
	switch v := r.data[name].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// GetDataKeyBool interprets a column as a boolean. Integers are true when
// non-zero; strings "true", "yes" and "1" are true.
func (r *Record) GetDataKeyBool(name string) bool {
	switch v := r.data[name].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case string:
		switch strings.ToLower(v) {
		case "true", "yes", "1":
			return true
		}
	}
	return false
}

// SetDataKey sets a column value. It returns true when the value differs
// from the current one, in which case the key is marked modified. The
// primary key and unknown columns cannot be set.
func (r *Record) SetDataKey(name string, value any) (bool, error) {
	if err := r.collection.checkWritable(name); err != nil {
		return false, fmt.Errorf("set %s.%s: %w", r.RecordTypeName(), name, err)
	}
	current, ok := r.data[name]
	if !ok {
		return false, fmt.Errorf("set %s.%s: unknown column", r.RecordTypeName(), name)
	}

	value = normalizeValue(value)
	if valuesEqual(current, value) {
		return false, nil
	}
	r.data[name] = value
	r.modified[name] = true
	return true, nil
}

// IsModified reports whether any key changed since the last load or save.
func (r *Record) IsModified() bool {
	return len(r.modified) > 0
}

// IsDataKeyModified reports whether the key changed since the last load or
// save.
func (r *Record) IsDataKeyModified(name string) bool {
	return r.modified[name]
}

// ModifiedKeys returns the changed keys in sorted order.
func (r *Record) ModifiedKeys() []string {
	keys := make([]string, 0, len(r.modified))
	for k := range r.modified {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Save writes the modified keys. It returns false without touching the
// database when nothing was modified.
func (r *Record) Save(ctx context.Context) (bool, error) {
	if !r.IsModified() {
		return false, nil
	}

	keys := r.ModifiedKeys()
	sets := make([]string, len(keys))
	args := make([]any, 0, len(keys)+1)
	for i, k := range keys {
		sets[i] = k + " = ?"
		args = append(args, r.data[k])
	}
	args = append(args, r.id)

	c := r.collection
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", c.spec.Table, strings.Join(sets, ", "), c.spec.key())
	result, err := c.db.ExecContext(ctx, c.db.Rebind(query), args...)
	if err != nil {
		return false, fmt.Errorf("save %s %d: %w", r.RecordTypeName(), r.id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save %s %d: rows affected: %w", r.RecordTypeName(), r.id, err)
	}
	if n == 0 {
		return false, fmt.Errorf("save %s %d: %w", r.RecordTypeName(), r.id, ErrRecordNotFound)
	}

	r.modified = make(map[string]bool)
	return true, nil
}

// Refresh reloads the row, discarding unsaved changes.
func (r *Record) Refresh(ctx context.Context) error {
	data, err := r.collection.loadRow(ctx, r.id)
	if err != nil {
		return err
	}
	r.data = data
	r.modified = make(map[string]bool)
	return nil
}

// DataKeys returns a copy of the loaded column values.
func (r *Record) DataKeys() map[string]any {
	out := make(map[string]any, len(r.data))
	for k, v := range r.data {
		out[k] = v
	}
	return out
}

// normalizeValue maps Go values onto the forms database drivers return so
// change detection compares like with like.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case int:
		return int64(val)
	case int32:
		return int64(val)
	default:
		return v
	}
}

func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(normalizeValue(a), normalizeValue(b))
}

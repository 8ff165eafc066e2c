package dbhelper

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roach88/appframe/internal/criteria"
	"github.com/roach88/appframe/internal/store"
)

func revisionablesSpec() CollectionSpec {
	return CollectionSpec{
		Table:          "revisionables",
		RecordTypeName: "revisionable",
		SearchColumns:  []string{"label"},
		DefaultOrder:   []criteria.Order{{Column: "label"}},
		Columns:        []string{"type_name", "label", "state", "created_at"},
	}
}

// newTestCollection opens a temp store and binds a collection to its
// revisionables table.
func newTestCollection(t *testing.T) *Collection {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c, err := NewCollection(sqlx.NewDb(s.DB(), store.DriverName), revisionablesSpec(), zap.NewNop())
	require.NoError(t, err)
	return c
}

func seed(t *testing.T, c *Collection, typeName, label, state string) *Record {
	t.Helper()
	rec, err := c.CreateNewRecord(context.Background(), map[string]any{
		"type_name":  typeName,
		"label":      label,
		"state":      state,
		"created_at": "2026-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	return rec
}

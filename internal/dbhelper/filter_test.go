package dbhelper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/appframe/internal/criteria"
	"github.com/roach88/appframe/internal/ir"
)

func labels(recs []*Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.GetDataKeyString("label")
	}
	return out
}

func seedFilterData(t *testing.T) *Collection {
	t.Helper()
	c := newTestCollection(t)
	seed(t, c, "article", "Go generics", "published")
	seed(t, c, "article", "Go modules", "draft")
	seed(t, c, "article", "Rust traits", "draft")
	seed(t, c, "news", "Go 1.25 released", "published")
	seed(t, c, "news", "100% uptime", "published")
	return c
}

func TestFilter_SelectCriteria(t *testing.T) {
	c := seedFilterData(t)
	ctx := context.Background()

	items, err := c.GetFilterCriteria().SelectCriteria("type_name", "article").GetItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Go generics", "Go modules", "Rust traits"}, labels(items))

	items, err = c.GetFilterCriteria().
		SelectCriteria("type_name", "article").
		SelectCriteria("state", "draft", "archived").
		GetItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Go modules", "Rust traits"}, labels(items))
}

func TestFilter_Search(t *testing.T) {
	c := seedFilterData(t)
	ctx := context.Background()

	items, err := c.GetFilterCriteria().SetSearch("  Go ").GetItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Go 1.25 released", "Go generics", "Go modules"}, labels(items))

	items, err = c.GetFilterCriteria().SetSearch("100%").GetItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"100% uptime"}, labels(items), "wildcards in the term match literally")

	n, err := c.GetFilterCriteria().SetSearch("%").CountItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFilter_OrderAndPaging(t *testing.T) {
	c := seedFilterData(t)
	ctx := context.Background()

	f := c.GetFilterCriteria().SetOrderBy("label", "desc").SetLimit(1, 2)
	items, err := f.GetItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Go modules", "Go generics"}, labels(items))

	n, err := f.CountItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n, "count ignores paging")
}

func TestFilter_GetIDs(t *testing.T) {
	c := newTestCollection(t)
	ctx := context.Background()
	a := seed(t, c, "article", "B", "draft")
	b := seed(t, c, "article", "A", "draft")

	ids, err := c.GetFilterCriteria().GetIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID(), a.ID()}, ids)

	ids, err = c.GetFilterCriteria().SelectCriteria("label", "none").GetIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFilter_AddPredicate(t *testing.T) {
	c := seedFilterData(t)

	items, err := c.GetFilterCriteria().
		AddPredicate(criteria.Not{Predicate: criteria.Equals{Column: "state", Value: ir.IRString("published")}}).
		GetItems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Go modules", "Rust traits"}, labels(items))
}

func TestFilter_Errors(t *testing.T) {
	c := newTestCollection(t)
	ctx := context.Background()

	_, err := c.GetFilterCriteria().SetOrderBy("label", "sideways").GetItems(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid direction")

	_, err = c.GetFilterCriteria().SelectCriteria("bad column", 1).CountItems(ctx)
	require.Error(t, err)

	_, err = c.GetFilterCriteria().SelectCriteria("label", 1.5).GetIDs(ctx)
	require.Error(t, err)

	c.spec.SearchColumns = nil
	_, err = c.GetFilterCriteria().SetSearch("x").GetItems(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no search columns")
}

func TestFilter_UndeclaredColumns(t *testing.T) {
	c := newTestCollection(t)
	ctx := context.Background()
	seed(t, c, "article", "Go modules", "draft")

	tests := []struct {
		name   string
		filter *FilterCriteria
		want   string
	}{
		{"select", c.GetFilterCriteria().SelectCriteria("current_revision", 0), `select criteria: revisionable collection has no column "current_revision"`},
		{"order", c.GetFilterCriteria().SetOrderBy("nope", "asc"), `order by: revisionable collection has no column "nope"`},
		{"predicate", c.GetFilterCriteria().AddPredicate(criteria.Or{Predicates: []criteria.Predicate{
			criteria.Equals{Column: "state", Value: ir.IRString("draft")},
			criteria.IsNull{Column: "current_revision"},
		}}), `predicate: revisionable collection has no column "current_revision"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.filter.GetItems(ctx)
			assert.ErrorContains(t, err, tt.want)
		})
	}

	ids, err := c.GetFilterCriteria().SelectCriteria("id", 1).SetOrderBy("id", "desc").GetIDs(ctx)
	require.NoError(t, err, "the primary key is always filterable")
	assert.Equal(t, []int64{1}, ids)

	c.spec.Columns = nil
	_, err = c.GetFilterCriteria().SelectCriteria("current_revision", 0).GetItems(ctx)
	assert.NoError(t, err, "collections without declared columns accept any column")
}

func TestFilter_Query(t *testing.T) {
	c := newTestCollection(t)

	q, err := c.GetFilterCriteria().SelectCriteria("state", "draft").SetLimit(0, 10).Query()
	require.NoError(t, err)
	assert.Equal(t, "revisionables", q.From)
	assert.Equal(t, criteria.Equals{Column: "state", Value: ir.IRString("draft")}, q.Filter)
	assert.Equal(t, []criteria.Order{{Column: "label"}}, q.OrderBy)
	assert.Equal(t, 10, q.Limit)
}

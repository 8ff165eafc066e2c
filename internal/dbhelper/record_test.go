package dbhelper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDataKey_TracksChanges(t *testing.T) {
	c := newTestCollection(t)
	rec := seed(t, c, "article", "Hello", "draft")

	changed, err := rec.SetDataKey("label", "Hello")
	require.NoError(t, err)
	assert.False(t, changed, "same value is not a change")
	assert.False(t, rec.IsModified())

	changed, err = rec.SetDataKey("label", "World")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, rec.IsModified())
	assert.True(t, rec.IsDataKeyModified("label"))
	assert.False(t, rec.IsDataKeyModified("state"))

	_, err = rec.SetDataKey("state", "published")
	require.NoError(t, err)
	assert.Equal(t, []string{"label", "state"}, rec.ModifiedKeys())
}

func TestSetDataKey_Rejections(t *testing.T) {
	c := newTestCollection(t)
	rec := seed(t, c, "article", "Hello", "draft")

	_, err := rec.SetDataKey("id", 9)
	require.Error(t, err)

	_, err = rec.SetDataKey("current_revision", 9)
	require.Error(t, err)

	c.spec.Columns = nil
	_, err = rec.SetDataKey("missing", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown column")
}

func TestSave_WritesModifiedKeysOnly(t *testing.T) {
	c := newTestCollection(t)
	ctx := context.Background()
	rec := seed(t, c, "article", "Hello", "draft")

	saved, err := rec.Save(ctx)
	require.NoError(t, err)
	assert.False(t, saved, "unmodified record is not written")

	_, err = rec.SetDataKey("label", "Renamed")
	require.NoError(t, err)
	saved, err = rec.Save(ctx)
	require.NoError(t, err)
	assert.True(t, saved)
	assert.False(t, rec.IsModified())

	loaded, err := c.GetByID(ctx, rec.ID())
	require.NoError(t, err)
	assert.Equal(t, "Renamed", loaded.GetDataKeyString("label"))
	assert.Equal(t, "draft", loaded.GetDataKeyString("state"))
}

func TestRefresh_DiscardsChanges(t *testing.T) {
	c := newTestCollection(t)
	ctx := context.Background()
	rec := seed(t, c, "article", "Hello", "draft")

	_, err := rec.SetDataKey("label", "Unsaved")
	require.NoError(t, err)
	require.NoError(t, rec.Refresh(ctx))
	assert.Equal(t, "Hello", rec.GetDataKeyString("label"))
	assert.False(t, rec.IsModified())
}

func TestGetDataKeyConversions(t *testing.T) {
	rec := &Record{data: map[string]any{
		"s":     "42",
		"n":     int64(7),
		"b":     true,
		"yes":   "yes",
		"null":  nil,
		"bad":   "x",
		"zero":  int64(0),
		"float": 1.5,
	}}

	assert.Equal(t, int64(42), rec.GetDataKeyInt("s"))
	assert.Equal(t, "7", rec.GetDataKeyString("n"))
	assert.Equal(t, int64(1), rec.GetDataKeyInt("b"))
	assert.Equal(t, "true", rec.GetDataKeyString("b"))
	assert.True(t, rec.GetDataKeyBool("yes"))
	assert.True(t, rec.GetDataKeyBool("n"))
	assert.False(t, rec.GetDataKeyBool("zero"))
	assert.Equal(t, "", rec.GetDataKeyString("null"))
	assert.Equal(t, int64(0), rec.GetDataKeyInt("bad"))
	assert.Equal(t, int64(0), rec.GetDataKeyInt("float"))
	assert.Equal(t, "1.5", rec.GetDataKeyString("float"))
	assert.Nil(t, rec.GetDataKey("absent"))
	assert.False(t, rec.HasDataKey("absent"))
	assert.True(t, rec.HasDataKey("null"))
}

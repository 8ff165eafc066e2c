package revisionable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/appframe/internal/ir"
)

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(articleType("news"), articleType("article"))
	require.NoError(t, err)

	assert.Equal(t, []string{"article", "news"}, reg.Names())
	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, "article", all[0].Name)

	got, err := reg.Get("news")
	require.NoError(t, err)
	assert.Equal(t, "draft", got.InitialState)

	_, err = reg.Get("missing")
	assert.Equal(t, ErrCodeUnknownType, CodeOf(err))
}

func TestRegistry_RejectsDuplicatesAndInvalidTypes(t *testing.T) {
	reg, err := NewRegistry(articleType("article"))
	require.NoError(t, err)

	err = reg.Register(articleType("article"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	bad := ir.RecordType{
		Name:     "bad",
		DataKeys: []ir.DataKeyDef{{Name: "Title", Type: "float"}},
	}
	err = reg.Register(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid data key name")
	assert.Contains(t, err.Error(), "invalid type")
}

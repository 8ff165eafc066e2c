package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/appframe/internal/ir"
)

func compileType(t *testing.T, src, path string) (*ir.RecordType, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return CompileRecordType(v.LookupPath(cue.ParsePath(path)))
}

func TestCompileRecordTypeBasic(t *testing.T) {
	rt, err := compileType(t, `
		type: article: {
			data_keys: {
				title: *"" | string
				body:  string
				views: {type: "int", default: 0}
				tags:  [...string]
				meta:  {...}
				extra: _
				featured: *false | bool
			}
			parts: ["attachments", "related_items"]
			states: ["draft", "published"]
			initial_state: "draft"
		}
	`, "type.article")
	require.NoError(t, err)

	assert.Equal(t, "article", rt.Name)
	require.Len(t, rt.DataKeys, 7)

	assert.Equal(t, ir.DataKeyDef{Name: "title", Type: "string", Default: ir.IRString("")}, rt.DataKeys[0])
	assert.Equal(t, ir.DataKeyDef{Name: "body", Type: "string"}, rt.DataKeys[1])
	assert.Equal(t, ir.DataKeyDef{Name: "views", Type: "int", Default: ir.IRInt(0)}, rt.DataKeys[2])
	assert.Equal(t, "array", rt.DataKeys[3].Type)
	assert.Equal(t, "object", rt.DataKeys[4].Type)
	assert.Equal(t, ir.DataKeyDef{Name: "extra", Type: "any"}, rt.DataKeys[5])
	assert.Equal(t, ir.IRBool(false), rt.DataKeys[6].Default)

	assert.Equal(t, []string{"attachments", "related_items"}, rt.Parts)
	assert.Equal(t, []string{"draft", "published"}, rt.States)
	assert.Equal(t, "draft", rt.InitialState)
	assert.Empty(t, Validate(rt))
}

func TestCompileRecordTypeInitialStateDefaultsToFirst(t *testing.T) {
	rt, err := compileType(t, `
		type: page: {
			data_keys: title: string
			states: ["hidden", "visible"]
		}
	`, "type.page")
	require.NoError(t, err)
	assert.Equal(t, "hidden", rt.InitialState)
	assert.Nil(t, rt.Parts)
}

func TestCompileRecordTypeConcreteValueIsDefault(t *testing.T) {
	rt, err := compileType(t, `
		type: page: data_keys: {
			layout: "wide"
			columns: 2
		}
	`, "type.page")
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("wide"), rt.DataKeys[0].Default)
	assert.Equal(t, ir.IRInt(2), rt.DataKeys[1].Default)
}

func TestCompileRecordTypeMissingDataKeys(t *testing.T) {
	_, err := compileType(t, `
		type: empty: {
			parts: ["a"]
		}
	`, "type.empty")
	require.Error(t, err)

	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "data_keys", cerr.Field)
	assert.Equal(t, ErrNoDataKeys, MapFieldToErrorCode(cerr.Field))
}

func TestCompileRecordTypeEmptyDataKeys(t *testing.T) {
	_, err := compileType(t, `type: empty: data_keys: {}`, "type.empty")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one data key")
}

func TestCompileRecordTypeFloatsForbidden(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"float type", `type: t: data_keys: price: float`},
		{"number type", `type: t: data_keys: price: number`},
		{"float default", `type: t: data_keys: price: {type: "int", default: 1.5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileType(t, tt.src, "type.t")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "float")
		})
	}
}

func TestCompileRecordTypeInvalidList(t *testing.T) {
	_, err := compileType(t, `type: t: {data_keys: a: string, parts: "tags"}`, "type.t")
	require.Error(t, err)
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "data_keys", Message: "data_keys are required"}
	assert.Equal(t, "data_keys: data_keys are required", err.Error())
}

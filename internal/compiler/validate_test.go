package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/appframe/internal/ir"
)

func validType() ir.RecordType {
	return ir.RecordType{
		Name: "article",
		DataKeys: []ir.DataKeyDef{
			{Name: "title", Type: "string", Default: ir.IRString("")},
			{Name: "views", Type: "int"},
		},
		Parts:        []string{"tags"},
		States:       []string{"draft", "published"},
		InitialState: "draft",
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateRecordTypeValid(t *testing.T) {
	rt := validType()
	assert.Empty(t, Validate(rt))
	assert.Empty(t, Validate(&rt))
}

func TestValidateRecordTypeErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(rt *ir.RecordType)
		want   []string
	}{
		{"no data keys", func(rt *ir.RecordType) { rt.DataKeys = nil }, []string{ErrNoDataKeys}},
		{"duplicate part", func(rt *ir.RecordType) { rt.Parts = []string{"tags", "tags"} }, []string{ErrDuplicatePart}},
		{"invalid key type", func(rt *ir.RecordType) { rt.DataKeys[1].Type = "date" }, []string{ErrInvalidKeyType}},
		{"unknown initial state", func(rt *ir.RecordType) { rt.InitialState = "archived" }, []string{ErrInitialStateUnknown}},
		{"duplicate key", func(rt *ir.RecordType) { rt.DataKeys[1].Name = "title" }, []string{ErrDuplicateName}},
		{"duplicate state", func(rt *ir.RecordType) { rt.States = []string{"draft", "draft"} }, []string{ErrDuplicateName}},
		{"float key", func(rt *ir.RecordType) { rt.DataKeys[1].Type = "float" }, []string{ErrFloatTypeForbidden}},
		{"bad type name", func(rt *ir.RecordType) { rt.Name = "Article" }, []string{ErrInvalidName}},
		{"bad part name", func(rt *ir.RecordType) { rt.Parts = []string{"related-items"} }, []string{ErrInvalidName}},
		{"default mismatch", func(rt *ir.RecordType) { rt.DataKeys[1].Default = ir.IRString("7") }, []string{ErrDefaultMismatch}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := validType()
			tt.mutate(&rt)
			assert.Equal(t, tt.want, codes(Validate(rt)))
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	rt := ir.RecordType{
		Name:         "x",
		Parts:        []string{"a", "a"},
		InitialState: "gone",
		States:       []string{"here"},
	}
	assert.Equal(t, []string{ErrNoDataKeys, ErrDuplicatePart, ErrInitialStateUnknown}, codes(Validate(rt)))
}

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate("article")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedIRType, errs[0].Code)
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "parts[1]", Message: `duplicate part: "a"`, Code: ErrDuplicatePart}
	assert.Equal(t, `[E102] parts[1]: duplicate part: "a"`, err.Error())

	err.Line = 4
	assert.Equal(t, `[E102] line 4: parts[1]: duplicate part: "a"`, err.Error())
}

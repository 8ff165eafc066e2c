package apiparam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/appframe/internal/ir"
)

func TestParam_Validate(t *testing.T) {
	tests := []struct {
		name  string
		param Param
		raw   string
		want  any
	}{
		{"string", Param{Name: "q", Type: TypeString}, " hello ", " hello "},
		{"int", Param{Name: "n", Type: TypeInt}, " 42", int64(42)},
		{"negative int", Param{Name: "n", Type: TypeInt}, "-3", int64(-3)},
		{"bool yes", Param{Name: "b", Type: TypeBool}, "Yes", true},
		{"bool zero", Param{Name: "b", Type: TypeBool}, "0", false},
		{"bool empty", Param{Name: "b", Type: TypeBool}, "", false},
		{"id", Param{Name: "id", Type: TypeID}, "7", int64(7)},
		{"alias", Param{Name: "a", Type: TypeAlias}, "main-news.v2", "main-news.v2"},
		{"enum", Param{Name: "e", Type: TypeEnum, Values: []string{"asc", "desc"}}, "desc", "desc"},
		{"json", Param{Name: "j", Type: TypeJSON}, `{"a":[1,true]}`, ir.IRObject{"a": ir.IRArray{ir.IRInt(1), ir.IRBool(true)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.param.Validate(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParam_ValidateRejects(t *testing.T) {
	tests := []struct {
		name  string
		param Param
		raw   string
		want  string
	}{
		{"int", Param{Name: "n", Type: TypeInt}, "4x", "not an integer"},
		{"bool", Param{Name: "b", Type: TypeBool}, "maybe", "not a boolean"},
		{"zero id", Param{Name: "id", Type: TypeID}, "0", "not a valid ID"},
		{"uppercase alias", Param{Name: "a", Type: TypeAlias}, "Main", "not a valid alias"},
		{"enum", Param{Name: "e", Type: TypeEnum, Values: []string{"asc", "desc"}}, "up", "not one of asc, desc"},
		{"json float", Param{Name: "j", Type: TypeJSON}, `{"a":1.5}`, "invalid JSON"},
		{"json syntax", Param{Name: "j", Type: TypeJSON}, `{`, "invalid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.param.Validate(tt.raw)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParam_Check(t *testing.T) {
	assert.NoError(t, Param{Name: "record_id", Type: TypeID}.check())
	assert.ErrorContains(t, Param{Name: "1x", Type: TypeID}.check(), "invalid param name")
	assert.ErrorContains(t, Param{Name: "x", Type: "float"}.check(), "unknown type")
	assert.ErrorContains(t, Param{Name: "x", Type: TypeEnum}.check(), "has no values")
}

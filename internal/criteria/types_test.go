package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/appframe/internal/ir"
)

func TestPredicateTypesImplementInterface(t *testing.T) {
	preds := []Predicate{
		Equals{}, &Equals{},
		In{}, &In{},
		Compare{}, &Compare{},
		Search{}, &Search{},
		IsNull{}, &IsNull{},
		And{}, &And{},
		Or{}, &Or{},
		Not{}, &Not{},
	}
	assert.Len(t, preds, 16)
}

func TestDeref(t *testing.T) {
	eq := &Equals{Column: "state", Value: ir.IRString("draft")}
	assert.Equal(t, Equals{Column: "state", Value: ir.IRString("draft")}, Deref(eq))

	not := &Not{Predicate: eq}
	got, ok := Deref(not).(Not)
	assert.True(t, ok)
	assert.Same(t, eq, got.Predicate, "Deref is shallow")

	val := IsNull{Column: "label"}
	assert.Equal(t, val, Deref(val))
}

func TestAndOf(t *testing.T) {
	a := Equals{Column: "a", Value: ir.IRInt(1)}
	b := Equals{Column: "b", Value: ir.IRInt(2)}

	assert.Nil(t, AndOf())
	assert.Nil(t, AndOf(nil, nil))
	assert.Equal(t, a, AndOf(nil, a))
	assert.Equal(t, And{Predicates: []Predicate{a, b}}, AndOf(a, nil, b))
}

func TestQueryKey(t *testing.T) {
	assert.Equal(t, "id", Query{}.Key())
	assert.Equal(t, "record_id", Query{PrimaryKey: "record_id"}.Key())
}

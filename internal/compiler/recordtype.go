package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/appframe/internal/ir"
)

// CompileRecordType parses a CUE value into a RecordType.
//
// The value is the type struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`type: article: { ... }`)
//	rt, err := CompileRecordType(v.LookupPath(cue.ParsePath("type.article")))
//
// A data key is either a CUE type, optionally with a default
// (`title: *"" | string`), or a struct with an explicit type and default
// (`views: {type: "int", default: 0}`).
func CompileRecordType(v cue.Value) (*ir.RecordType, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	rt := &ir.RecordType{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		rt.Name = labels[len(labels)-1].Unquoted()
	}

	keysVal := v.LookupPath(cue.ParsePath("data_keys"))
	if !keysVal.Exists() {
		return nil, &CompileError{
			Field:   "data_keys",
			Message: "data_keys are required",
			Pos:     v.Pos(),
		}
	}
	keys, err := parseDataKeys(keysVal)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, &CompileError{
			Field:   "data_keys",
			Message: "at least one data key is required",
			Pos:     keysVal.Pos(),
		}
	}
	rt.DataKeys = keys

	if rt.Parts, err = parseStringList(v, "parts"); err != nil {
		return nil, err
	}
	if rt.States, err = parseStringList(v, "states"); err != nil {
		return nil, err
	}

	initialVal := v.LookupPath(cue.ParsePath("initial_state"))
	if initialVal.Exists() {
		initial, err := initialVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		rt.InitialState = initial
	} else if len(rt.States) > 0 {
		rt.InitialState = rt.States[0]
	}

	return rt, nil
}

// parseDataKeys extracts the data keys in declaration order.
func parseDataKeys(v cue.Value) ([]ir.DataKeyDef, error) {
	iter, err := v.Fields(cue.Optional(true))
	if err != nil {
		return nil, formatCUEError(err)
	}

	var keys []ir.DataKeyDef
	for iter.Next() {
		name := iter.Selector().Unquoted()
		dk, err := parseDataKey(name, iter.Value())
		if err != nil {
			return nil, err
		}
		keys = append(keys, dk)
	}
	return keys, nil
}

func parseDataKey(name string, v cue.Value) (ir.DataKeyDef, error) {
	dk := ir.DataKeyDef{Name: name}

	// Explicit form: {type: "int", default: 0}
	typeVal := v.LookupPath(cue.ParsePath("type"))
	if v.IncompleteKind() == cue.StructKind && typeVal.Exists() && typeVal.IsConcrete() {
		typeName, err := typeVal.String()
		if err != nil {
			return dk, formatCUEError(err)
		}
		dk.Type = typeName
		defVal := v.LookupPath(cue.ParsePath("default"))
		if defVal.Exists() {
			def, err := decodeValue(defVal)
			if err != nil {
				return dk, err
			}
			dk.Default = def
		}
		return dk, nil
	}

	// Type form: string, *0 | int, [...string]
	typeName, err := extractTypeName(v)
	if err != nil {
		return dk, err
	}
	dk.Type = typeName
	// A concrete value is its own default.
	if def, hasDefault := v.Default(); (hasDefault || v.IsConcrete()) && def.IsConcrete() {
		value, err := decodeValue(def)
		if err != nil {
			return dk, err
		}
		dk.Default = value
	}
	return dk, nil
}

// decodeValue converts a concrete CUE value to an IRValue.
func decodeValue(v cue.Value) (ir.IRValue, error) {
	if v.IncompleteKind() == cue.FloatKind {
		return nil, &CompileError{
			Field:   "default",
			Message: "float values are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	}
	var raw any
	if err := v.Decode(&raw); err != nil {
		return nil, formatCUEError(err)
	}
	value, err := ir.FromAny(raw)
	if err != nil {
		return nil, &CompileError{Field: "default", Message: err.Error(), Pos: v.Pos()}
	}
	return value, nil
}

func parseStringList(v cue.Value, field string) ([]string, error) {
	listVal := v.LookupPath(cue.ParsePath(field))
	if !listVal.Exists() {
		return nil, nil
	}
	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// extractTypeName converts a CUE type to a data key type.
// Floats are forbidden.
func extractTypeName(v cue.Value) (string, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		return "string", nil
	case cue.IntKind:
		return "int", nil
	case cue.BoolKind:
		return "bool", nil
	case cue.ListKind:
		return "array", nil
	case cue.StructKind:
		return "object", nil
	case cue.TopKind:
		return "any", nil
	case cue.FloatKind, cue.NumberKind:
		return "", &CompileError{
			Field:   "type",
			Message: "float types are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

package compiler

import (
	"fmt"
	"regexp"

	"github.com/roach88/appframe/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	ErrNoDataKeys          = "E101" // at least one data key required
	ErrDuplicatePart       = "E102" // duplicate part name
	ErrInvalidKeyType      = "E103" // invalid data key type
	ErrInitialStateUnknown = "E104" // initial state not in states
	ErrDuplicateName       = "E105" // duplicate data key or state
	ErrFloatTypeForbidden  = "E106" // float types not allowed
	ErrInvalidName         = "E107" // invalid type, key or part name
	ErrDefaultMismatch     = "E108" // default does not match the key type
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Validate validates a compiled record type.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch rt := v.(type) {
	case *ir.RecordType:
		return validateRecordType(rt)
	case ir.RecordType:
		return validateRecordType(&rt)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

func validateRecordType(rt *ir.RecordType) []ValidationError {
	var errs []ValidationError

	if !namePattern.MatchString(rt.Name) {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("invalid record type name %q", rt.Name),
			Code:    ErrInvalidName,
		})
	}

	// E101
	if len(rt.DataKeys) == 0 {
		errs = append(errs, ValidationError{
			Field:   "data_keys",
			Message: "at least one data key is required",
			Code:    ErrNoDataKeys,
		})
	}

	keyNames := make(map[string]bool)
	for i, dk := range rt.DataKeys {
		field := fmt.Sprintf("data_keys[%d]", i)
		if !namePattern.MatchString(dk.Name) {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("invalid data key name %q", dk.Name),
				Code:    ErrInvalidName,
			})
		}
		if keyNames[dk.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate data key: %q", dk.Name),
				Code:    ErrDuplicateName,
			})
		}
		keyNames[dk.Name] = true
		errs = append(errs, validateKeyType(dk, field)...)
	}

	partNames := make(map[string]bool)
	for i, p := range rt.Parts {
		field := fmt.Sprintf("parts[%d]", i)
		if !namePattern.MatchString(p) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid part name %q", p),
				Code:    ErrInvalidName,
			})
		}
		// E102
		if partNames[p] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate part: %q", p),
				Code:    ErrDuplicatePart,
			})
		}
		partNames[p] = true
	}

	stateNames := make(map[string]bool)
	for i, s := range rt.States {
		if stateNames[s] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("states[%d]", i),
				Message: fmt.Sprintf("duplicate state: %q", s),
				Code:    ErrDuplicateName,
			})
		}
		stateNames[s] = true
	}

	// E104
	if rt.InitialState != "" && !rt.HasState(rt.InitialState) {
		errs = append(errs, ValidationError{
			Field:   "initial_state",
			Message: fmt.Sprintf("initial state %q is not one of the declared states", rt.InitialState),
			Code:    ErrInitialStateUnknown,
		})
	}

	return errs
}

// validateKeyType checks a data key's type and default.
func validateKeyType(dk ir.DataKeyDef, field string) []ValidationError {
	if isFloatType(dk.Type) {
		return []ValidationError{{
			Field:   field + ".type",
			Message: fmt.Sprintf("float type forbidden for data key %q, use int instead", dk.Name),
			Code:    ErrFloatTypeForbidden,
		}}
	}
	// E103
	if !ir.ValidKeyTypes[dk.Type] {
		return []ValidationError{{
			Field:   field + ".type",
			Message: fmt.Sprintf("invalid type %q for data key %q", dk.Type, dk.Name),
			Code:    ErrInvalidKeyType,
		}}
	}
	if dk.Default != nil && !dk.AcceptsValue(dk.Default) {
		return []ValidationError{{
			Field:   field + ".default",
			Message: fmt.Sprintf("default for %q is %s, expected %s", dk.Name, ir.TypeName(dk.Default), dk.Type),
			Code:    ErrDefaultMismatch,
		}}
	}
	return nil
}

// isFloatType checks if a type string represents a float type.
func isFloatType(t string) bool {
	floatTypes := map[string]bool{
		"float":   true,
		"float32": true,
		"float64": true,
		"number":  true,
		"double":  true,
	}
	return floatTypes[t]
}

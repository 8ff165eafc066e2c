package ir

import (
	"fmt"
	"regexp"
)

// ValidKeyTypes are the declared types a data key may have.
// "any" accepts every value; there is no float type.
var ValidKeyTypes = map[string]bool{
	"string": true,
	"int":    true,
	"bool":   true,
	"array":  true,
	"object": true,
	"any":    true,
}

var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// RecordType describes a revisionable record type: which data keys a
// revision carries, which parts are copied alongside them and which states
// a revision may be in.
type RecordType struct {
	Name         string       `json:"name"`
	DataKeys     []DataKeyDef `json:"data_keys"`
	Parts        []string     `json:"parts,omitempty"`
	States       []string     `json:"states,omitempty"`
	InitialState string       `json:"initial_state,omitempty"`
}

// DataKeyDef declares a data key with its type and default value.
type DataKeyDef struct {
	Name    string  `json:"name"`
	Type    string  `json:"type"`
	Default IRValue `json:"default,omitempty"`
}

// DataKey returns the definition of the named key.
func (t *RecordType) DataKey(name string) (DataKeyDef, bool) {
	for _, dk := range t.DataKeys {
		if dk.Name == name {
			return dk, true
		}
	}
	return DataKeyDef{}, false
}

// HasPart reports whether the type declares the part.
func (t *RecordType) HasPart(name string) bool {
	for _, p := range t.Parts {
		if p == name {
			return true
		}
	}
	return false
}

// HasState reports whether state is allowed. Types without declared
// states accept any state.
func (t *RecordType) HasState(state string) bool {
	if len(t.States) == 0 {
		return true
	}
	for _, s := range t.States {
		if s == state {
			return true
		}
	}
	return false
}

// Defaults returns a fresh data key object populated with default values.
func (t *RecordType) Defaults() IRObject {
	obj := make(IRObject, len(t.DataKeys))
	for _, dk := range t.DataKeys {
		if dk.Default == nil {
			obj[dk.Name] = IRNull{}
			continue
		}
		obj[dk.Name] = CloneValue(dk.Default)
	}
	return obj
}

// AcceptsValue reports whether v matches the declared key type.
// Null is always accepted; it clears the key.
func (d DataKeyDef) AcceptsValue(v IRValue) bool {
	if _, isNull := v.(IRNull); isNull || v == nil {
		return true
	}
	if d.Type == "any" || d.Type == "" {
		return true
	}
	return TypeName(v) == d.Type
}

// ValidationError is a field-scoped validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the record type definition.
// All problems are returned, not just the first.
func (t *RecordType) Validate() []ValidationError {
	var errs []ValidationError

	if t.Name == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "type name is required"})
	}

	seenKeys := make(map[string]bool)
	for i, dk := range t.DataKeys {
		field := fmt.Sprintf("data_keys[%d]", i)
		if !identifierPattern.MatchString(dk.Name) {
			errs = append(errs, ValidationError{Field: field + ".name", Message: fmt.Sprintf("invalid data key name %q", dk.Name)})
		}
		if seenKeys[dk.Name] {
			errs = append(errs, ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate data key %q", dk.Name)})
		}
		seenKeys[dk.Name] = true
		if !ValidKeyTypes[dk.Type] {
			errs = append(errs, ValidationError{Field: field + ".type", Message: fmt.Sprintf("invalid type %q for data key %q", dk.Type, dk.Name)})
		} else if dk.Default != nil && !dk.AcceptsValue(dk.Default) {
			errs = append(errs, ValidationError{Field: field + ".default", Message: fmt.Sprintf("default for %q is %s, expected %s", dk.Name, TypeName(dk.Default), dk.Type)})
		}
	}

	seenParts := make(map[string]bool)
	for i, p := range t.Parts {
		field := fmt.Sprintf("parts[%d]", i)
		if !identifierPattern.MatchString(p) {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("invalid part name %q", p)})
		}
		if seenParts[p] {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("duplicate part %q", p)})
		}
		seenParts[p] = true
	}

	if t.InitialState != "" && !t.HasState(t.InitialState) {
		errs = append(errs, ValidationError{Field: "initial_state", Message: fmt.Sprintf("initial state %q is not a declared state", t.InitialState)})
	}

	return errs
}

// RevisionableRecord is the head row of a revisionable: its identity and
// a denormalized copy of the current revision's label and state, used for
// listing and filtering.
type RevisionableRecord struct {
	ID              int64  `json:"id" db:"id"`
	TypeName        string `json:"type_name" db:"type_name"`
	CurrentRevision int64  `json:"current_revision" db:"current_revision"`
	Label           string `json:"label" db:"label"`
	State           string `json:"state" db:"state"`
	CreatedAt       string `json:"created_at" db:"created_at"`
}

// RevisionRecord is one immutable revision of a revisionable.
type RevisionRecord struct {
	RecordID      int64    `json:"record_id"`
	TypeName      string   `json:"type_name"`
	Revision      int64    `json:"revision"`
	Label         string   `json:"label"`
	State         string   `json:"state"`
	Author        string   `json:"author"`
	Comments      string   `json:"comments"`
	DataKeys      IRObject `json:"data_keys"`
	Parts         IRObject `json:"parts"`
	ContentHash   string   `json:"content_hash"`
	TransactionID string   `json:"transaction_id"`
	Seq           int64    `json:"seq"`
	CreatedAt     string   `json:"created_at"`
	SchemaVersion string   `json:"schema_version"`
}

// Transaction statuses.
const (
	TransactionCommitted  = "committed"
	TransactionRolledBack = "rolled_back"
	TransactionEmpty      = "empty"
)

// TransactionRecord is the audit row of a finished transaction.
// Revision is 0 unless the transaction committed a revision.
type TransactionRecord struct {
	ID           string `json:"id"`
	RecordID     int64  `json:"record_id"`
	BaseRevision int64  `json:"base_revision"`
	Revision     int64  `json:"revision"`
	Author       string `json:"author"`
	Comments     string `json:"comments"`
	Status       string `json:"status"`
	Seq          int64  `json:"seq"`
}

// EventRecord is a persisted lifecycle event.
type EventRecord struct {
	Seq           int64  `json:"seq"`
	TransactionID string `json:"transaction_id"`
	RecordID      int64  `json:"record_id"`
	Revision      int64  `json:"revision"`
	Event         string `json:"event"`
}

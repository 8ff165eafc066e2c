package apiparam

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/appframe/internal/ir"
)

// Type is a param's value type.
type Type string

const (
	// TypeString accepts any string.
	TypeString Type = "string"
	// TypeInt accepts a decimal integer.
	TypeInt Type = "int"
	// TypeBool accepts true/false, yes/no, 1/0.
	TypeBool Type = "bool"
	// TypeID accepts a positive integer record ID.
	TypeID Type = "id"
	// TypeAlias accepts a lowercase machine name like "main-news".
	TypeAlias Type = "alias"
	// TypeEnum accepts one of Values.
	TypeEnum Type = "enum"
	// TypeJSON accepts a JSON document without floats.
	TypeJSON Type = "json"
)

var (
	aliasPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)
	namePattern  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)
)

// LookupFunc turns a validated value into a domain value, for example a
// record label into a record ID. An error fails the param.
type LookupFunc func(ctx context.Context, value any) (any, error)

// Param declares one API parameter.
type Param struct {
	Name        string
	Type        Type
	Required    bool
	Default     any
	Values      []string
	Description string
	Lookup      LookupFunc
}

// check validates the declaration itself.
func (p Param) check() error {
	if !namePattern.MatchString(p.Name) {
		return fmt.Errorf("invalid param name %q", p.Name)
	}
	switch p.Type {
	case TypeString, TypeInt, TypeBool, TypeID, TypeAlias, TypeJSON:
	case TypeEnum:
		if len(p.Values) == 0 {
			return fmt.Errorf("enum param %q has no values", p.Name)
		}
	default:
		return fmt.Errorf("param %q has unknown type %q", p.Name, p.Type)
	}
	return nil
}

// Validate parses raw according to the param type. Values are returned as
// string, int64, bool or ir.IRValue (json).
func (p Param) Validate(raw string) (any, error) {
	switch p.Type {
	case TypeString:
		return raw, nil

	case TypeInt:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", raw)
		}
		return n, nil

	case TypeBool:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true", "yes", "1", "on":
			return true, nil
		case "false", "no", "0", "off", "":
			return false, nil
		}
		return nil, fmt.Errorf("%q is not a boolean", raw)

	case TypeID:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%q is not a valid ID", raw)
		}
		return n, nil

	case TypeAlias:
		if !aliasPattern.MatchString(raw) {
			return nil, fmt.Errorf("%q is not a valid alias", raw)
		}
		return raw, nil

	case TypeEnum:
		for _, v := range p.Values {
			if v == raw {
				return raw, nil
			}
		}
		return nil, fmt.Errorf("%q is not one of %s", raw, strings.Join(p.Values, ", "))

	case TypeJSON:
		v, err := ir.UnmarshalIRValue([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid JSON: %v", err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("unknown type %q", p.Type)
}

package apiparam

import (
	"errors"
	"fmt"
	"strings"
)

// Validation error codes.
const (
	CodeMissing        = "missing"
	CodeInvalid        = "invalid"
	CodeLookupFailed   = "lookup_failed"
	CodeOrRule         = "rule_or"
	CodeRequiredIf     = "rule_required_if"
	CodeExclusive      = "rule_exclusive"
	CodeExprRule       = "rule_expr"
	CodeUnknownParam   = "unknown_param"
	CodeMalformedInput = "malformed_input"
)

// ValidationError is a problem with one param or rule.
type ValidationError struct {
	Param   string `json:"param,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	switch {
	case e.Param != "":
		return fmt.Sprintf("%s: %s (%s)", e.Param, e.Message, e.Code)
	case e.Rule != "":
		return fmt.Sprintf("rule %s: %s (%s)", e.Rule, e.Message, e.Code)
	default:
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
}

// ValidationErrors is returned by Resolve when anything failed.
type ValidationErrors []*ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return "invalid parameters: " + strings.Join(msgs, "; ")
}

// Codes returns the error codes in order.
func (errs ValidationErrors) Codes() []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

// AsValidationErrors extracts ValidationErrors from err.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var errs ValidationErrors
	if errors.As(err, &errs) {
		return errs, true
	}
	return nil, false
}

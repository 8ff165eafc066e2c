package apiparam

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/appframe/internal/ir"
)

// Definition is the full parameter contract of an API method.
type Definition struct {
	Params []Param
	Rules  []Rule
	// Strict rejects parameters that are not declared.
	Strict bool
}

// Param returns the declaration of name.
func (d Definition) Param(name string) (Param, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Check validates the definition: unique well-formed params and rules that
// only refer to declared params.
func (d Definition) Check() error {
	seen := make(map[string]bool, len(d.Params))
	for _, p := range d.Params {
		if err := p.check(); err != nil {
			return err
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate param %q", p.Name)
		}
		seen[p.Name] = true
	}
	for _, r := range d.Rules {
		for _, name := range r.Params() {
			if !seen[name] {
				return fmt.Errorf("rule %s refers to undeclared param %q", r.Name(), name)
			}
		}
		if er, ok := r.(*ExprRule); ok {
			if err := checkExprRefs(er, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkExprRefs rejects an expression that reads a declared param without
// listing it in refs. Such a name compiles to the expr built-in instead.
func checkExprRefs(r *ExprRule, declared map[string]bool) error {
	refs := make(map[string]bool, len(r.Refs))
	for _, ref := range r.Refs {
		refs[ref] = true
	}
	for _, name := range r.identifiers() {
		if declared[name] && !refs[name] {
			return fmt.Errorf("rule %s reads param %q without listing it in refs", r.Name(), name)
		}
	}
	return nil
}

// Result holds resolved param values.
type Result struct {
	values   map[string]any
	provided map[string]bool
}

func newResult() *Result {
	return &Result{values: make(map[string]any), provided: make(map[string]bool)}
}

// NewResult builds a result from already resolved values, for callers that
// bypass a Source.
func NewResult(values map[string]any) *Result {
	res := newResult()
	for k, v := range values {
		res.values[k] = v
		res.provided[k] = true
	}
	return res
}

// Has reports whether the caller provided the param. Defaults do not count.
func (r *Result) Has(name string) bool {
	return r.provided[name]
}

// Get returns the value of name, or nil.
func (r *Result) Get(name string) any {
	return r.values[name]
}

// String returns a string value, or "".
func (r *Result) String(name string) string {
	s, _ := r.values[name].(string)
	return s
}

// Int returns an integer value, or 0.
func (r *Result) Int(name string) int64 {
	switch v := r.values[name].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// Bool returns a boolean value, or false.
func (r *Result) Bool(name string) bool {
	b, _ := r.values[name].(bool)
	return b
}

// JSON returns a json value, or IRNull.
func (r *Result) JSON(name string) ir.IRValue {
	if v, ok := r.values[name].(ir.IRValue); ok {
		return v
	}
	return ir.IRNull{}
}

// Names returns the names with a value, sorted.
func (r *Result) Names() []string {
	names := make([]string, 0, len(r.values))
	for k := range r.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Env returns the values as an expression environment.
func (r *Result) Env() map[string]any {
	env := make(map[string]any, len(r.values))
	for k, v := range r.values {
		if irv, ok := v.(ir.IRValue); ok {
			env[k] = ir.ToAny(irv)
			continue
		}
		env[k] = v
	}
	return env
}

func (r *Result) drop(name string) {
	delete(r.values, name)
	delete(r.provided, name)
}

// rawJSONSource is a Source that also holds members in encoded JSON form.
type rawJSONSource interface {
	RawJSON(name string) (string, bool)
}

// Resolver resolves a Definition against Sources.
type Resolver struct {
	def Definition
}

// NewResolver checks the definition and returns a resolver for it.
func NewResolver(def Definition) (*Resolver, error) {
	if err := def.Check(); err != nil {
		return nil, fmt.Errorf("invalid definition: %w", err)
	}
	return &Resolver{def: def}, nil
}

// Definition returns the resolver's definition.
func (r *Resolver) Definition() Definition {
	return r.def
}

// Resolve validates all params, runs lookups and applies the rules. It
// returns ValidationErrors listing every failure; rules are skipped when a
// param already failed.
func (r *Resolver) Resolve(ctx context.Context, src Source) (*Result, error) {
	res := newResult()
	var errs ValidationErrors

	for _, p := range r.def.Params {
		raw, ok := src.Get(p.Name)
		if p.Type == TypeJSON {
			if rs, isRaw := src.(rawJSONSource); isRaw {
				if encoded, found := rs.RawJSON(p.Name); found {
					raw = encoded
				}
			}
		}
		if !ok {
			if p.Default != nil {
				res.values[p.Name] = p.Default
			}
			if p.Required {
				errs = append(errs, &ValidationError{Param: p.Name, Code: CodeMissing, Message: "required parameter is missing"})
			}
			continue
		}

		value, err := p.Validate(raw)
		if err != nil {
			errs = append(errs, &ValidationError{Param: p.Name, Code: CodeInvalid, Message: err.Error()})
			continue
		}
		if p.Lookup != nil {
			value, err = p.Lookup(ctx, value)
			if err != nil {
				errs = append(errs, &ValidationError{Param: p.Name, Code: CodeLookupFailed, Message: err.Error()})
				continue
			}
		}
		res.values[p.Name] = value
		res.provided[p.Name] = true
	}

	if r.def.Strict {
		if lister, ok := src.(interface{ Names() []string }); ok {
			for _, name := range lister.Names() {
				if _, declared := r.def.Param(name); !declared {
					errs = append(errs, &ValidationError{Param: name, Code: CodeUnknownParam, Message: "unknown parameter"})
				}
			}
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}

	for _, rule := range r.def.Rules {
		if verr := rule.apply(res); verr != nil {
			errs = append(errs, verr)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return res, nil
}

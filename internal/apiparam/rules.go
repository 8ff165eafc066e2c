package apiparam

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/types"
	"github.com/expr-lang/expr/vm"
)

// Rule checks relations between params after each param was validated.
// Rules run in declaration order and may narrow the result.
type Rule interface {
	// Name identifies the rule in errors.
	Name() string
	// Params lists the params the rule refers to.
	Params() []string
	apply(res *Result) *ValidationError
}

// OrRule requires at least one of Params. When several are set, the first
// in declaration order wins and the others are dropped from the result,
// so "record_id or label" resolves to exactly one of them.
type OrRule struct {
	Of []string
}

// Name implements Rule.
func (r OrRule) Name() string { return "or(" + strings.Join(r.Of, ",") + ")" }

// Params implements Rule.
func (r OrRule) Params() []string { return r.Of }

func (r OrRule) apply(res *Result) *ValidationError {
	winner := ""
	for _, name := range r.Of {
		if !res.Has(name) {
			continue
		}
		if winner == "" {
			winner = name
			continue
		}
		res.drop(name)
	}
	if winner == "" {
		return &ValidationError{
			Rule:    r.Name(),
			Code:    CodeOrRule,
			Message: fmt.Sprintf("one of %s is required", strings.Join(r.Of, ", ")),
		}
	}
	return nil
}

// RequiredIfRule requires Param whenever Other is set.
type RequiredIfRule struct {
	Param string
	Other string
}

// Name implements Rule.
func (r RequiredIfRule) Name() string { return "required_if(" + r.Param + "," + r.Other + ")" }

// Params implements Rule.
func (r RequiredIfRule) Params() []string { return []string{r.Param, r.Other} }

func (r RequiredIfRule) apply(res *Result) *ValidationError {
	if res.Has(r.Other) && !res.Has(r.Param) {
		return &ValidationError{
			Param:   r.Param,
			Rule:    r.Name(),
			Code:    CodeRequiredIf,
			Message: fmt.Sprintf("required when %s is set", r.Other),
		}
	}
	return nil
}

// MutuallyExclusiveRule allows at most one of Params.
type MutuallyExclusiveRule struct {
	Of []string
}

// Name implements Rule.
func (r MutuallyExclusiveRule) Name() string { return "exclusive(" + strings.Join(r.Of, ",") + ")" }

// Params implements Rule.
func (r MutuallyExclusiveRule) Params() []string { return r.Of }

func (r MutuallyExclusiveRule) apply(res *Result) *ValidationError {
	var set []string
	for _, name := range r.Of {
		if res.Has(name) {
			set = append(set, name)
		}
	}
	if len(set) > 1 {
		return &ValidationError{
			Rule:    r.Name(),
			Code:    CodeExclusive,
			Message: fmt.Sprintf("%s cannot be combined", strings.Join(set, " and ")),
		}
	}
	return nil
}

// ExprRule requires a boolean expression over the resolved values to hold.
// Unset params are nil in the expression, for example:
//
//	limit == nil || limit <= 100
type ExprRule struct {
	Expression string
	Message    string
	Refs       []string

	program *vm.Program
}

// NewExprRule compiles an expression rule. refs names the params the
// expression reads. Only refs are visible as variables and they shadow
// expr built-ins of the same name, so a param called "count" or "filter"
// reads the param value.
func NewExprRule(expression, message string, refs ...string) (*ExprRule, error) {
	env := make(types.Map, len(refs))
	for _, ref := range refs {
		env[ref] = types.Any
	}
	program, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile rule %q: %w", expression, err)
	}
	return &ExprRule{Expression: expression, Message: message, Refs: refs, program: program}, nil
}

// identifiers returns the free names the compiled expression reads.
func (r *ExprRule) identifiers() []string {
	var c identCollector
	node := r.program.Node()
	ast.Walk(&node, &c)
	return c.names
}

type identCollector struct {
	names []string
}

func (c *identCollector) Visit(node *ast.Node) {
	if id, ok := (*node).(*ast.IdentifierNode); ok {
		c.names = append(c.names, id.Value)
	}
}

// Name implements Rule.
func (r *ExprRule) Name() string { return "expr(" + r.Expression + ")" }

// Params implements Rule.
func (r *ExprRule) Params() []string { return r.Refs }

func (r *ExprRule) apply(res *Result) *ValidationError {
	out, err := expr.Run(r.program, res.Env())
	if err != nil {
		return &ValidationError{Rule: r.Name(), Code: CodeExprRule, Message: err.Error()}
	}
	if ok, _ := out.(bool); !ok {
		msg := r.Message
		if msg == "" {
			msg = "condition not met: " + r.Expression
		}
		return &ValidationError{Rule: r.Name(), Code: CodeExprRule, Message: msg}
	}
	return nil
}

package api

import (
	"context"

	"github.com/roach88/appframe/internal/apiparam"
)

// Method is one API method.
type Method interface {
	// Name is the URL segment the method is served under.
	Name() string

	// Definition declares the method's params and rules.
	Definition() apiparam.Definition

	// Process runs the method with resolved params. The returned value is
	// encoded as the envelope's data.
	Process(ctx context.Context, params *apiparam.Result) (any, error)
}

// MethodFunc adapts a function to Method.
type MethodFunc struct {
	MethodName string
	Def        apiparam.Definition
	Fn         func(ctx context.Context, params *apiparam.Result) (any, error)
}

// Name implements Method.
func (m MethodFunc) Name() string { return m.MethodName }

// Definition implements Method.
func (m MethodFunc) Definition() apiparam.Definition { return m.Def }

// Process implements Method.
func (m MethodFunc) Process(ctx context.Context, params *apiparam.Result) (any, error) {
	return m.Fn(ctx, params)
}

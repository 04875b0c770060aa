package gantry

import (
	"context"
	"fmt"
	"net/http"
)

// Operation is a declared, pipeline-protected operation: its middleware
// chain, its schema, its tier, and its handler. Declared once at startup,
// immutable thereafter, and shared read-only across all invocations.
type Operation interface {
	// Name returns the operation's unique name.
	Name() string

	// Method and Path describe the route when the operation is mounted on
	// an HTTP gateway.
	Method() string
	Path() string

	// Tier returns the declared access tier.
	Tier() AccessTier

	// Steps returns the operation's middleware chain, in execution order.
	Steps() []Step

	// Limit returns the per-caller attempt budget. A zero Limit defers to
	// the executor's default.
	Limit() Limit

	// InputTypeName returns the scanned name of the payload type.
	InputTypeName() string

	// decode validates the raw payload against the operation's schema.
	decode(raw []byte) (any, error)

	// invoke calls the handler with the validated payload.
	invoke(ctx context.Context, rc *RequestContext, in any) (any, error)
}

// Op wraps a typed handler function with its declarative pipeline
// configuration. Build one with NewOperation and the With* chain.
type Op[In, Out any] struct {
	name   string
	method string
	path   string
	tier   AccessTier
	steps  []Step
	limit  Limit
	schema *Schema[In]
	fn     func(ctx context.Context, rc *RequestContext, in In) (Out, error)
}

// NewOperation creates a typed operation with the given name and handler.
// The tier defaults to public and the route to POST /<name>.
func NewOperation[In, Out any](name string, fn func(ctx context.Context, rc *RequestContext, in In) (Out, error)) *Op[In, Out] {
	return &Op[In, Out]{
		name:   name,
		method: http.MethodPost,
		path:   "/" + name,
		tier:   TierPublic,
		steps:  make([]Step, 0),
		schema: NewSchema[In](),
		fn:     fn,
	}
}

// WithTier sets the access tier.
func (o *Op[In, Out]) WithTier(tier AccessTier) *Op[In, Out] {
	o.tier = tier
	return o
}

// WithRoute sets the HTTP method and path used by the gateway.
func (o *Op[In, Out]) WithRoute(method, path string) *Op[In, Out] {
	o.method = method
	o.path = path
	return o
}

// WithLimit sets the per-caller attempt budget, overriding the executor's
// default.
func (o *Op[In, Out]) WithLimit(limit Limit) *Op[In, Out] {
	o.limit = limit
	return o
}

// WithSteps appends middleware steps to the chain. Steps run in the order
// they were added, after the tier check and before validation.
func (o *Op[In, Out]) WithSteps(steps ...Step) *Op[In, Out] {
	o.steps = append(o.steps, steps...)
	return o
}

// Name implements Operation.
func (o *Op[In, Out]) Name() string { return o.name }

// Method implements Operation.
func (o *Op[In, Out]) Method() string { return o.method }

// Path implements Operation.
func (o *Op[In, Out]) Path() string { return o.path }

// Tier implements Operation.
func (o *Op[In, Out]) Tier() AccessTier { return o.tier }

// Steps implements Operation.
func (o *Op[In, Out]) Steps() []Step { return o.steps }

// Limit implements Operation.
func (o *Op[In, Out]) Limit() Limit { return o.limit }

// InputTypeName implements Operation.
func (o *Op[In, Out]) InputTypeName() string { return o.schema.TypeName() }

// decode implements Operation.
func (o *Op[In, Out]) decode(raw []byte) (any, error) {
	value, err := o.schema.Validate(raw)
	if err != nil {
		return nil, err
	}
	return value, nil
}

// invoke implements Operation.
func (o *Op[In, Out]) invoke(ctx context.Context, rc *RequestContext, in any) (any, error) {
	typed, ok := in.(In)
	if !ok {
		return nil, fmt.Errorf("operation %s: payload type mismatch %T", o.name, in)
	}
	return o.fn(ctx, rc, typed)
}

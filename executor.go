package gantry

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// State is the lifecycle state of a single pipeline execution.
type State string

const (
	// StatePending precedes the first stage.
	StatePending State = "pending"
	// StateResolving is the identity resolution stage.
	StateResolving State = "resolving"
	// StateRateLimiting is the admission stage.
	StateRateLimiting State = "rate_limiting"
	// StateAuthorizing is the tier check and middleware chain stage.
	StateAuthorizing State = "authorizing"
	// StateValidating is the schema validation stage.
	StateValidating State = "validating"
	// StateExecuting is the handler invocation stage.
	StateExecuting State = "executing"
	// StateSucceeded is terminal: the handler returned a value.
	StateSucceeded State = "succeeded"
	// StateRejected is terminal: some stage short-circuited.
	StateRejected State = "rejected"
)

// Request is the transport-neutral envelope handed to Execute.
type Request struct {
	RawPayload []byte
	Credential string
	OriginKey  string
}

// Result is the tagged outcome of an execution: either OK with the handler's
// value, or a classified rejection. No exception-style propagation crosses
// the executor boundary.
type Result struct {
	OK          bool
	Value       any
	Kind        Kind
	SafeMessage string
	RetryAfter  time.Duration // Set only for KindRateLimited.
}

// Executor orchestrates the pipeline stages for declared operations.
// Stages run strictly in order, each capable of short-circuiting the rest:
// resolve, rate-limit, authorize (tier check plus middleware chain),
// validate, execute. Any error raised at any stage, including inside the
// handler, passes through the classifier exactly once.
//
// The executor owns no cross-request state beyond the injected LimitStore;
// every request gets a fresh RequestContext. The executor never retries.
type Executor struct {
	resolver Resolver
	limits   LimitStore
	config   *ExecutorConfig
}

// NewExecutor creates an Executor with the given collaborators. A nil
// resolver means every request executes without identity (public operations
// only); a nil limit store disables admission control. If config is nil,
// DefaultExecutorConfig is used.
func NewExecutor(resolver Resolver, limits LimitStore, config *ExecutorConfig) *Executor {
	if config == nil {
		config = DefaultExecutorConfig()
	}
	return &Executor{
		resolver: resolver,
		limits:   limits,
		config:   config,
	}
}

// Execute runs the pipeline for one request against a declared operation.
func (e *Executor) Execute(ctx context.Context, op Operation, req Request) Result {
	start := time.Now()

	capitan.Emit(ctx, PipelineExecuting,
		OperationKey.Field(op.Name()),
		TierKey.Field(string(op.Tier())),
	)

	rc := &RequestContext{
		Identity: NoIdentity{},
		Origin:   req.OriginKey,
	}

	value, err := e.run(ctx, op, req, rc)
	durationMs := time.Since(start).Milliseconds()
	executionDuration.WithLabelValues(op.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		classified := Classify(err)

		capitan.Warn(ctx, PipelineRejected,
			OperationKey.Field(op.Name()),
			KindKey.Field(string(classified.Kind)),
			DurationMsKey.Field(durationMs),
			ErrorKey.Field(classified.SafeMessage),
		)
		executionsTotal.WithLabelValues(op.Name(), "rejected").Inc()
		rejectionsTotal.WithLabelValues(op.Name(), string(classified.Kind)).Inc()

		return Result{
			Kind:        classified.Kind,
			SafeMessage: classified.SafeMessage,
			RetryAfter:  classified.RetryAfter,
		}
	}

	capitan.Info(ctx, PipelineSucceeded,
		OperationKey.Field(op.Name()),
		DurationMsKey.Field(durationMs),
	)
	executionsTotal.WithLabelValues(op.Name(), "succeeded").Inc()

	return Result{OK: true, Value: value}
}

// run executes the ordered stages. It returns the handler's value or the
// first stage error, unclassified; Execute classifies once at the boundary.
func (e *Executor) run(ctx context.Context, op Operation, req Request, rc *RequestContext) (any, error) {
	// Resolving. Resolution never fails for a missing or malformed
	// credential; it yields no identity and the tier check decides.
	if e.resolver != nil {
		if identity, ok := e.resolver.Resolve(ctx, req.Credential); ok {
			rc.Identity = identity
			capitan.Debug(ctx, IdentityResolved,
				OperationKey.Field(op.Name()),
				IdentityIDKey.Field(identity.ID()),
			)
		} else {
			capitan.Debug(ctx, IdentityAbsent,
				OperationKey.Field(op.Name()),
			)
		}
	}

	// RateLimiting. Keyed by identity when one resolved, else by origin.
	rc.RateLimitKey = rateLimitKey(rc)
	if e.limits != nil {
		limit := op.Limit()
		if limit.MaxAttempts <= 0 {
			limit = e.config.DefaultLimit
		}

		if limit.MaxAttempts > 0 {
			admission, err := e.limits.Admit(ctx, rc.RateLimitKey, limit)
			if err != nil {
				return nil, err
			}
			if !admission.Allowed {
				capitan.Warn(ctx, RateLimitRejected,
					OperationKey.Field(op.Name()),
					LimitKeyKey.Field(rc.RateLimitKey),
					RetryAfterMsKey.Field(admission.RetryAfter.Milliseconds()),
				)
				rateLimitRejectedTotal.WithLabelValues(op.Name()).Inc()

				return nil, &Error{
					Kind:        KindRateLimited,
					SafeMessage: ErrRateLimited.Error(),
					RetryAfter:  admission.RetryAfter,
				}
			}
		}
	}

	// Cancellation check after admission: recorded attempts still count
	// against the caller, so a canceled request cannot retry for free.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Authorizing: tier check first, then the declared middleware chain.
	if err := Authorize(op.Tier(), rc); err != nil {
		return nil, err
	}
	if err := runSteps(ctx, op.Steps(), rc); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Validating, strictly after authorization: unauthorized callers never
	// learn whether their payload was valid.
	in, err := op.decode(req.RawPayload)
	if err != nil {
		return nil, err
	}
	rc.Validated = in

	// Executing.
	return op.invoke(ctx, rc, in)
}

// rateLimitKey derives the admission bucket for a request: the resolved
// identity when present, the request origin otherwise, and a single shared
// bucket when neither is known.
func rateLimitKey(rc *RequestContext) string {
	if rc.Authenticated() {
		return "id:" + rc.Identity.ID()
	}
	if rc.Origin != "" {
		return "origin:" + rc.Origin
	}
	return "global"
}

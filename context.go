package gantry

// RequestContext accumulates per-request state across pipeline stages.
// It is built fresh by the Executor for every request, owned exclusively by
// that request, and never shared. Each stage's contribution is an explicit
// field, not an open-ended dictionary, so the shape is statically checkable.
type RequestContext struct {
	// Identity is the resolved caller, or NoIdentity when resolution found
	// no usable credential. Present if and only if the Session Resolver
	// succeeded; set during the Resolving stage and immutable afterward.
	Identity Identity

	// RateLimitKey is the bucket key used for admission: the identity ID
	// when one resolved, otherwise a key derived from the request origin.
	RateLimitKey string

	// Origin is the caller-supplied origin key (e.g., remote address).
	// Empty when the transport provided none.
	Origin string

	// Validated holds the typed payload after schema validation succeeds.
	// Nil until the Validating stage completes.
	Validated any
}

// Authenticated reports whether a real identity resolved for this request.
func (rc *RequestContext) Authenticated() bool {
	if rc.Identity == nil {
		return false
	}
	_, none := rc.Identity.(NoIdentity)
	return !none && rc.Identity.ID() != ""
}

package gantry

import (
	"context"
	"fmt"
)

// AccessTier is the minimum privilege classification required to invoke an
// operation, ordered public < optional < authenticated < privileged.
type AccessTier string

const (
	// TierPublic requires no identity. Resolution still runs, and a
	// resolved identity is attached to the context, but absence never
	// rejects.
	TierPublic AccessTier = "public"

	// TierOptional is public with declared interest in the caller's
	// identity when one resolves ("soft" auth). Gate behavior matches
	// TierPublic; the distinction is declarative.
	TierOptional AccessTier = "public-with-optional-identity"

	// TierAuthenticated requires a resolved identity at any privilege
	// level.
	TierAuthenticated AccessTier = "authenticated"

	// TierPrivileged requires a resolved identity with PrivilegeElevated.
	TierPrivileged AccessTier = "privileged"
)

// Step is one middleware step in an operation's chain. A step receives the
// request context, may extend it, and may short-circuit the pipeline by
// returning an error (classified once at the executor boundary).
//
// Composition is strictly sequential: steps run in declared order, and later
// steps see the extensions made by earlier ones. Ordering is a visible
// contract, not an optimization detail.
type Step struct {
	Name string
	Run  func(ctx context.Context, rc *RequestContext) error
}

// runSteps executes steps in order, stopping at the first error.
func runSteps(ctx context.Context, steps []Step, rc *RequestContext) error {
	for _, step := range steps {
		if err := step.Run(ctx, rc); err != nil {
			return err
		}
	}
	return nil
}

// Authorize enforces a tier's identity requirement against the context.
// Public tiers never reject for absence of identity. Authenticated and
// privileged tiers reject with ErrUnauthorized when no identity resolved;
// privileged additionally rejects with ErrForbidden when the identity lacks
// the elevated level.
func Authorize(tier AccessTier, rc *RequestContext) error {
	switch tier {
	case TierPublic, TierOptional:
		return nil

	case TierAuthenticated:
		if !rc.Authenticated() {
			return ErrUnauthorized
		}
		return nil

	case TierPrivileged:
		if !rc.Authenticated() {
			return ErrUnauthorized
		}
		if rc.Identity.Privilege() < PrivilegeElevated {
			return ErrForbidden
		}
		return nil

	default:
		// A misdeclared tier is a programming defect, not a caller error.
		return fmt.Errorf("unknown access tier %q", tier)
	}
}

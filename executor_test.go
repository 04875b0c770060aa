package gantry

import (
	"context"
	"errors"
	"testing"
	"time"
)

type noteInput struct {
	Title string `json:"title" validate:"min=1,max=100"`
}

type noteOutput struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// staticResolver maps fixed credentials to identities.
type staticResolver map[string]Identity

func (r staticResolver) Resolve(_ context.Context, credential string) (Identity, bool) {
	identity, ok := r[credential]
	if !ok {
		return NoIdentity{}, false
	}
	return identity, true
}

func testResolver() staticResolver {
	return staticResolver{
		"user-token":  &Principal{Subject: "user-1", Level: PrivilegeStandard},
		"admin-token": &Principal{Subject: "admin-1", Level: PrivilegeElevated},
	}
}

func TestExecutor_PublicOperationWithoutIdentity(t *testing.T) {
	executor := NewExecutor(testResolver(), NewMemoryLimitStore(), nil)

	op := NewOperation("echo", func(_ context.Context, rc *RequestContext, in noteInput) (noteOutput, error) {
		if rc.Authenticated() {
			t.Error("expected anonymous context")
		}
		return noteOutput{Title: in.Title}, nil
	})

	result := executor.Execute(context.Background(), op, Request{
		RawPayload: []byte(`{"title":"hello"}`),
	})

	if !result.OK {
		t.Fatalf("expected success, got %q: %s", result.Kind, result.SafeMessage)
	}
	if result.Value.(noteOutput).Title != "hello" {
		t.Errorf("unexpected value %+v", result.Value)
	}
}

func TestExecutor_AuthenticatedOperationRejectsAnonymous(t *testing.T) {
	executor := NewExecutor(testResolver(), NewMemoryLimitStore(), nil)

	calls := 0
	op := NewOperation("create-note", func(_ context.Context, _ *RequestContext, in noteInput) (noteOutput, error) {
		calls++
		return noteOutput{Title: in.Title}, nil
	}).WithTier(TierAuthenticated)

	result := executor.Execute(context.Background(), op, Request{
		RawPayload: []byte(`{"title":"hello"}`),
	})

	if result.OK {
		t.Fatal("expected rejection")
	}
	if result.Kind != KindUnauthorized {
		t.Errorf("expected %q, got %q", KindUnauthorized, result.Kind)
	}
	if calls != 0 {
		t.Error("handler must not run for rejected requests")
	}
}

func TestExecutor_AuthorizationPrecedesValidation(t *testing.T) {
	executor := NewExecutor(testResolver(), NewMemoryLimitStore(), nil)

	op := NewOperation("create-note", func(_ context.Context, _ *RequestContext, in noteInput) (noteOutput, error) {
		return noteOutput{Title: in.Title}, nil
	}).WithTier(TierAuthenticated)

	// Invalid credential and invalid payload together: the rejection must be
	// unauthorized, never validation, so unauthenticated callers learn
	// nothing about payload requirements.
	result := executor.Execute(context.Background(), op, Request{
		RawPayload: []byte(`{"title":""}`),
		Credential: "forged-token",
	})

	if result.Kind != KindUnauthorized {
		t.Errorf("expected %q, got %q", KindUnauthorized, result.Kind)
	}
}

func TestExecutor_PrivilegedRequiresElevation(t *testing.T) {
	executor := NewExecutor(testResolver(), NewMemoryLimitStore(), nil)

	op := NewOperation("purge", func(_ context.Context, _ *RequestContext, _ NoInput) (noteOutput, error) {
		return noteOutput{}, nil
	}).WithTier(TierPrivileged)

	result := executor.Execute(context.Background(), op, Request{Credential: "user-token"})
	if result.Kind != KindForbidden {
		t.Errorf("expected %q for standard identity, got %q", KindForbidden, result.Kind)
	}

	result = executor.Execute(context.Background(), op, Request{Credential: "admin-token"})
	if !result.OK {
		t.Errorf("expected elevated identity to pass, got %q", result.Kind)
	}
}

func TestExecutor_ValidationRejection(t *testing.T) {
	executor := NewExecutor(testResolver(), NewMemoryLimitStore(), nil)

	op := NewOperation("create-note", func(_ context.Context, _ *RequestContext, in noteInput) (noteOutput, error) {
		return noteOutput{Title: in.Title}, nil
	}).WithTier(TierAuthenticated)

	result := executor.Execute(context.Background(), op, Request{
		RawPayload: []byte(`{"title":""}`),
		Credential: "user-token",
	})

	if result.Kind != KindValidation {
		t.Errorf("expected %q, got %q", KindValidation, result.Kind)
	}
}

func TestExecutor_RateLimitRejectionCarriesRetryHint(t *testing.T) {
	executor := NewExecutor(testResolver(), NewMemoryLimitStore(), nil)

	op := NewOperation("create-note", func(_ context.Context, _ *RequestContext, in noteInput) (noteOutput, error) {
		return noteOutput{Title: in.Title}, nil
	}).WithTier(TierAuthenticated).
		WithLimit(Limit{MaxAttempts: 2, Window: time.Minute})

	req := Request{
		RawPayload: []byte(`{"title":"hello"}`),
		Credential: "user-token",
	}

	for i := 0; i < 2; i++ {
		if result := executor.Execute(context.Background(), op, req); !result.OK {
			t.Fatalf("attempt %d: expected success, got %q", i+1, result.Kind)
		}
	}

	result := executor.Execute(context.Background(), op, req)
	if result.Kind != KindRateLimited {
		t.Fatalf("expected %q, got %q", KindRateLimited, result.Kind)
	}
	if result.RetryAfter <= 0 {
		t.Errorf("expected positive retry hint, got %v", result.RetryAfter)
	}
}

func TestExecutor_RateLimitKeyedByIdentityNotOrigin(t *testing.T) {
	executor := NewExecutor(testResolver(), NewMemoryLimitStore(), nil)

	op := NewOperation("ping", func(_ context.Context, _ *RequestContext, _ NoInput) (noteOutput, error) {
		return noteOutput{}, nil
	}).WithTier(TierAuthenticated).
		WithLimit(Limit{MaxAttempts: 1, Window: time.Minute})

	// Same origin, different identities: budgets are independent.
	first := executor.Execute(context.Background(), op, Request{Credential: "user-token", OriginKey: "10.0.0.1"})
	second := executor.Execute(context.Background(), op, Request{Credential: "admin-token", OriginKey: "10.0.0.1"})

	if !first.OK || !second.OK {
		t.Errorf("distinct identities must not share a budget: %q / %q", first.Kind, second.Kind)
	}

	// Same identity again is over budget regardless of origin.
	third := executor.Execute(context.Background(), op, Request{Credential: "user-token", OriginKey: "10.9.9.9"})
	if third.Kind != KindRateLimited {
		t.Errorf("expected %q, got %q", KindRateLimited, third.Kind)
	}
}

func TestExecutor_AnonymousRateLimitKeyedByOrigin(t *testing.T) {
	executor := NewExecutor(testResolver(), NewMemoryLimitStore(), nil)

	op := NewOperation("ping", func(_ context.Context, _ *RequestContext, _ NoInput) (noteOutput, error) {
		return noteOutput{}, nil
	}).WithLimit(Limit{MaxAttempts: 1, Window: time.Minute})

	first := executor.Execute(context.Background(), op, Request{OriginKey: "10.0.0.1"})
	second := executor.Execute(context.Background(), op, Request{OriginKey: "10.0.0.2"})
	third := executor.Execute(context.Background(), op, Request{OriginKey: "10.0.0.1"})

	if !first.OK || !second.OK {
		t.Errorf("distinct origins must not share a budget: %q / %q", first.Kind, second.Kind)
	}
	if third.Kind != KindRateLimited {
		t.Errorf("expected %q for repeat origin, got %q", KindRateLimited, third.Kind)
	}
}

func TestExecutor_RateLimitedRejectionSkipsLaterStages(t *testing.T) {
	executor := NewExecutor(testResolver(), NewMemoryLimitStore(), nil)

	stepRan := false
	calls := 0
	op := NewOperation("create-note", func(_ context.Context, _ *RequestContext, in noteInput) (noteOutput, error) {
		calls++
		return noteOutput{Title: in.Title}, nil
	}).WithTier(TierAuthenticated).
		WithLimit(Limit{MaxAttempts: 1, Window: time.Minute}).
		WithSteps(Step{Name: "audit", Run: func(context.Context, *RequestContext) error {
			stepRan = true
			return nil
		}})

	req := Request{RawPayload: []byte(`{"title":"hello"}`), Credential: "user-token"}
	executor.Execute(context.Background(), op, req)

	stepRan = false
	calls = 0
	result := executor.Execute(context.Background(), op, req)
	if result.Kind != KindRateLimited {
		t.Fatalf("expected %q, got %q", KindRateLimited, result.Kind)
	}
	if stepRan || calls != 0 {
		t.Error("rejected admission must short-circuit authorization and the handler")
	}
}

func TestExecutor_CancellationAfterAdmissionStillCounts(t *testing.T) {
	store := NewMemoryLimitStore()
	executor := NewExecutor(testResolver(), store, nil)

	op := NewOperation("ping", func(_ context.Context, _ *RequestContext, _ NoInput) (noteOutput, error) {
		return noteOutput{}, nil
	}).WithTier(TierAuthenticated).
		WithLimit(Limit{MaxAttempts: 2, Window: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := executor.Execute(ctx, op, Request{Credential: "user-token"})
	if result.OK {
		t.Fatal("expected canceled request to be rejected")
	}

	// The canceled attempt consumed budget: one admission remains.
	admission, err := store.Admit(context.Background(), "id:user-1", Limit{MaxAttempts: 2, Window: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	if !admission.Allowed || admission.Remaining != 0 {
		t.Errorf("expected exactly one attempt left, got %+v", admission)
	}
}

func TestExecutor_StepErrorsAreClassified(t *testing.T) {
	executor := NewExecutor(testResolver(), NewMemoryLimitStore(), nil)

	op := NewOperation("create-note", func(_ context.Context, _ *RequestContext, in noteInput) (noteOutput, error) {
		return noteOutput{Title: in.Title}, nil
	}).WithTier(TierAuthenticated).
		WithSteps(Step{Name: "tenant-check", Run: func(context.Context, *RequestContext) error {
			return ErrForbidden
		}})

	result := executor.Execute(context.Background(), op, Request{
		RawPayload: []byte(`{"title":"hello"}`),
		Credential: "user-token",
	})

	if result.Kind != KindForbidden {
		t.Errorf("expected %q, got %q", KindForbidden, result.Kind)
	}
}

func TestExecutor_HandlerErrorClassifiedOnce(t *testing.T) {
	executor := NewExecutor(testResolver(), NewMemoryLimitStore(), nil)

	op := NewOperation("lookup", func(_ context.Context, _ *RequestContext, _ NoInput) (noteOutput, error) {
		return noteOutput{}, ErrNotFound
	}).WithTier(TierAuthenticated)

	result := executor.Execute(context.Background(), op, Request{Credential: "user-token"})
	if result.Kind != KindNotFound {
		t.Errorf("expected %q, got %q", KindNotFound, result.Kind)
	}
	if result.SafeMessage != "not found" {
		t.Errorf("unexpected safe message %q", result.SafeMessage)
	}
}

func TestExecutor_UnrecognizedHandlerErrorIsOpaque(t *testing.T) {
	executor := NewExecutor(testResolver(), NewMemoryLimitStore(), nil)

	op := NewOperation("lookup", func(_ context.Context, _ *RequestContext, _ NoInput) (noteOutput, error) {
		return noteOutput{}, errors.New("pq: relation notes does not exist")
	}).WithTier(TierAuthenticated)

	result := executor.Execute(context.Background(), op, Request{Credential: "user-token"})
	if result.Kind != KindInternal {
		t.Errorf("expected %q, got %q", KindInternal, result.Kind)
	}
	if result.SafeMessage != "an unexpected error occurred" {
		t.Errorf("internal detail leaked: %q", result.SafeMessage)
	}
}

func TestExecutor_StoreOutageIsInternal(t *testing.T) {
	executor := NewExecutor(testResolver(), failingLimitStore{}, nil)

	op := NewOperation("ping", func(_ context.Context, _ *RequestContext, _ NoInput) (noteOutput, error) {
		return noteOutput{}, nil
	})

	result := executor.Execute(context.Background(), op, Request{})
	if result.Kind != KindInternal {
		t.Errorf("expected %q on store outage, got %q", KindInternal, result.Kind)
	}
}

func TestExecutor_NilLimitStoreDisablesAdmission(t *testing.T) {
	executor := NewExecutor(testResolver(), nil, &ExecutorConfig{
		DefaultLimit: Limit{MaxAttempts: 1, Window: time.Minute},
	})

	op := NewOperation("ping", func(_ context.Context, _ *RequestContext, _ NoInput) (noteOutput, error) {
		return noteOutput{}, nil
	})

	for i := 0; i < 5; i++ {
		if result := executor.Execute(context.Background(), op, Request{}); !result.OK {
			t.Fatalf("attempt %d: expected success without a limit store, got %q", i+1, result.Kind)
		}
	}
}

// failingLimitStore simulates a backend outage.
type failingLimitStore struct{}

func (failingLimitStore) Admit(context.Context, string, Limit) (Admission, error) {
	return Admission{}, ErrStoreUnavailable
}

func (failingLimitStore) Reset(context.Context, string) error {
	return ErrStoreUnavailable
}

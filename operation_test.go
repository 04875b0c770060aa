package gantry

import (
	"context"
	"testing"
	"time"
)

type echoInput struct {
	Message string `json:"message" validate:"required"`
}

type echoOutput struct {
	Message string `json:"message"`
}

func echoHandler(_ context.Context, _ *RequestContext, in echoInput) (echoOutput, error) {
	return echoOutput{Message: in.Message}, nil
}

func TestNewOperation_Defaults(t *testing.T) {
	op := NewOperation("echo", echoHandler)

	if op.Name() != "echo" {
		t.Errorf("expected name echo, got %q", op.Name())
	}
	if op.Method() != "POST" || op.Path() != "/echo" {
		t.Errorf("expected POST /echo, got %s %s", op.Method(), op.Path())
	}
	if op.Tier() != TierPublic {
		t.Errorf("expected public tier, got %q", op.Tier())
	}
	if len(op.Steps()) != 0 {
		t.Errorf("expected no steps, got %d", len(op.Steps()))
	}
	if op.Limit().MaxAttempts != 0 {
		t.Errorf("expected zero limit deferring to executor default, got %+v", op.Limit())
	}
	if op.InputTypeName() != "echoInput" {
		t.Errorf("unexpected input type name %q", op.InputTypeName())
	}
}

func TestOp_BuilderChain(t *testing.T) {
	step := Step{Name: "audit", Run: func(context.Context, *RequestContext) error { return nil }}

	op := NewOperation("echo", echoHandler).
		WithTier(TierPrivileged).
		WithRoute("PUT", "/echo/{id}").
		WithLimit(Limit{MaxAttempts: 5, Window: time.Minute}).
		WithSteps(step)

	if op.Tier() != TierPrivileged {
		t.Errorf("expected privileged tier, got %q", op.Tier())
	}
	if op.Method() != "PUT" || op.Path() != "/echo/{id}" {
		t.Errorf("expected PUT /echo/{id}, got %s %s", op.Method(), op.Path())
	}
	if op.Limit().MaxAttempts != 5 {
		t.Errorf("expected limit 5, got %+v", op.Limit())
	}
	if len(op.Steps()) != 1 || op.Steps()[0].Name != "audit" {
		t.Errorf("expected audit step, got %+v", op.Steps())
	}
}

func TestOp_DecodeRejectsInvalidPayload(t *testing.T) {
	op := NewOperation("echo", echoHandler)

	if _, err := op.decode([]byte(`{"message":""}`)); err == nil {
		t.Error("expected validation failure for empty required field")
	}

	value, err := op.decode([]byte(`{"message":"hi"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if value.(echoInput).Message != "hi" {
		t.Errorf("decoded value mismatch: %+v", value)
	}
}

func TestOp_InvokeTypeMismatch(t *testing.T) {
	op := NewOperation("echo", echoHandler)
	rc := &RequestContext{Identity: NoIdentity{}}

	if _, err := op.invoke(context.Background(), rc, "not an echoInput"); err == nil {
		t.Error("expected type mismatch error")
	}
}

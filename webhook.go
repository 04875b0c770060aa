package gantry

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
)

// ErrSignatureInvalid indicates a webhook payload whose signature did not
// verify. The classifier maps it to KindUnauthorized.
var ErrSignatureInvalid = errors.New("invalid payload signature")

// defaultTolerance bounds how old a signed timestamp may be before the
// payload is rejected as a replay.
const defaultTolerance = 5 * time.Minute

// VerifiedEvent is a webhook payload whose signature verified against the
// shared secret. The event source acts as the caller's identity.
type VerifiedEvent struct {
	Source    string
	Payload   []byte
	Timestamp time.Time
}

// Identity returns the trusted-event-source identity for this event,
// letting verified webhooks flow through the same tiered pipeline as
// interactive callers.
func (e *VerifiedEvent) Identity() Identity {
	return &Principal{
		Subject: "webhook:" + e.Source,
		Level:   PrivilegeStandard,
	}
}

// WebhookVerifier verifies externally signed payloads (e.g., payment
// provider callbacks). It is the specialized resolver for non-interactive
// callers: instead of a session or token, trust derives from an HMAC-SHA256
// signature over the raw body.
//
// The signature header format is "t=<unix seconds>,v1=<hex digest>", where
// the digest covers "<t>.<raw body>". Timestamps outside the tolerance are
// rejected to bound replays.
type WebhookVerifier struct {
	source    string
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewWebhookVerifier creates a verifier for the named event source.
func NewWebhookVerifier(source string, secret []byte) *WebhookVerifier {
	return &WebhookVerifier{
		source:    source,
		secret:    secret,
		tolerance: defaultTolerance,
		now:       time.Now,
	}
}

// WithTolerance overrides the replay tolerance and returns the verifier for
// chaining.
func (v *WebhookVerifier) WithTolerance(tolerance time.Duration) *WebhookVerifier {
	v.tolerance = tolerance
	return v
}

// WithClock overrides the time source and returns the verifier for chaining.
func (v *WebhookVerifier) WithClock(now func() time.Time) *WebhookVerifier {
	v.now = now
	return v
}

// VerifySignedPayload checks rawBody against the signature header. All
// failure modes return ErrSignatureInvalid without detail, so a forger
// learns nothing about which check failed.
func (v *WebhookVerifier) VerifySignedPayload(rawBody []byte, signatureHeader string) (*VerifiedEvent, error) {
	timestamp, digest, ok := parseSignatureHeader(signatureHeader)
	if !ok {
		v.rejected("malformed signature header")
		return nil, ErrSignatureInvalid
	}

	signedAt := time.Unix(timestamp, 0)
	age := v.now().Sub(signedAt)
	if age > v.tolerance || age < -v.tolerance {
		v.rejected("timestamp outside tolerance")
		return nil, ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(digest)
	if err != nil || !hmac.Equal(expected, provided) {
		v.rejected("digest mismatch")
		return nil, ErrSignatureInvalid
	}

	capitan.Debug(context.Background(), WebhookVerified,
		SourceKey.Field(v.source),
	)

	return &VerifiedEvent{
		Source:    v.source,
		Payload:   rawBody,
		Timestamp: signedAt,
	}, nil
}

func (v *WebhookVerifier) rejected(reason string) {
	capitan.Warn(context.Background(), WebhookRejected,
		SourceKey.Field(v.source),
		ErrorKey.Field(reason),
	)
}

// parseSignatureHeader extracts the timestamp and hex digest from a
// "t=<unix>,v1=<hex>" header.
func parseSignatureHeader(header string) (timestamp int64, digest string, ok bool) {
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, "", false
			}
			timestamp = parsed
		case "v1":
			digest = value
		}
	}

	if timestamp == 0 || digest == "" {
		return 0, "", false
	}
	return timestamp, digest, true
}

// SignPayload produces a signature header for rawBody at the given time.
// Counterpart to VerifySignedPayload for senders and tests.
func SignPayload(rawBody []byte, secret []byte, at time.Time) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%d.", at.Unix())
	mac.Write(rawBody)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

package gantry

import "github.com/zoobzio/capitan"

// Pipeline lifecycle signals.
var (
	// PipelineExecuting is emitted when the executor begins a request.
	// Fields: OperationKey, TierKey.
	PipelineExecuting = capitan.NewSignal("pipeline.executing", "Pipeline execution started for declared operation")

	// PipelineSucceeded is emitted when an execution reaches the Succeeded
	// state. Fields: OperationKey, DurationMsKey.
	PipelineSucceeded = capitan.NewSignal("pipeline.succeeded", "Pipeline execution completed with handler result")

	// PipelineRejected is emitted when an execution reaches the Rejected
	// state. Fields: OperationKey, KindKey, DurationMsKey, ErrorKey.
	PipelineRejected = capitan.NewSignal("pipeline.rejected", "Pipeline execution rejected with classified error kind")
)

// Identity resolution signals.
var (
	// IdentityResolved is emitted when a credential resolves to an identity.
	// Fields: OperationKey, IdentityIDKey.
	IdentityResolved = capitan.NewSignal("pipeline.identity.resolved", "Credential resolved to verified identity")

	// IdentityAbsent is emitted when no usable credential was presented.
	// Missing and malformed credentials emit identically. Fields:
	// OperationKey.
	IdentityAbsent = capitan.NewSignal("pipeline.identity.absent", "No identity resolved for request, tier check decides outcome")
)

// Rate limiting signals.
var (
	// RateLimitRejected is emitted when admission is denied for a key.
	// Fields: OperationKey, LimitKeyKey, RetryAfterMsKey.
	RateLimitRejected = capitan.NewSignal("pipeline.ratelimit.rejected", "Attempt budget exceeded for rate limit key")
)

// Webhook verification signals.
var (
	// WebhookVerified is emitted when a signed payload verifies.
	// Fields: SourceKey.
	WebhookVerified = capitan.NewSignal("pipeline.webhook.verified", "Signed webhook payload verified against shared secret")

	// WebhookRejected is emitted when signature verification fails.
	// Fields: ErrorKey.
	WebhookRejected = capitan.NewSignal("pipeline.webhook.rejected", "Signed webhook payload failed signature verification")
)

// Gateway lifecycle signals.
var (
	// GatewayStarting is emitted when the HTTP gateway starts listening.
	// Fields: HostKey, PortKey, AddressKey.
	GatewayStarting = capitan.NewSignal("gateway.starting", "HTTP gateway starting to listen for requests")

	// GatewayShutdownComplete is emitted when shutdown finishes.
	// Fields: GracefulKey, ErrorKey (if failed).
	GatewayShutdownComplete = capitan.NewSignal("gateway.shutdown.complete", "HTTP gateway shutdown completed, graceful or with error")

	// OperationMounted is emitted when an operation is mounted on a route.
	// Fields: OperationKey, MethodKey, PathKey, TierKey.
	OperationMounted = capitan.NewSignal("gateway.operation.mounted", "Operation mounted on HTTP route with declared tier")
)

// Event field keys (primitive types only).
var (
	// Pipeline fields.
	OperationKey    = capitan.NewStringKey("operation")
	TierKey         = capitan.NewStringKey("tier")
	KindKey         = capitan.NewStringKey("kind")
	DurationMsKey   = capitan.NewInt64Key("duration_ms")
	ErrorKey        = capitan.NewStringKey("error")
	IdentityIDKey   = capitan.NewStringKey("identity_id")
	LimitKeyKey     = capitan.NewStringKey("limit_key")
	RetryAfterMsKey = capitan.NewInt64Key("retry_after_ms")
	SourceKey       = capitan.NewStringKey("source")

	// Gateway fields.
	HostKey     = capitan.NewStringKey("host")
	PortKey     = capitan.NewIntKey("port")
	AddressKey  = capitan.NewStringKey("address")
	MethodKey   = capitan.NewStringKey("method")
	PathKey     = capitan.NewStringKey("path")
	GracefulKey = capitan.NewBoolKey("graceful")
)

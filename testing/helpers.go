// Package testing provides test utilities for gantry.
package testing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zoobzio/gantry"
)

// TestIdentity implements gantry.Identity for tests.
type TestIdentity struct {
	id    string
	level gantry.Privilege
	attrs map[string]string
}

// NewTestIdentity creates a TestIdentity with the given ID at standard
// privilege.
func NewTestIdentity(id string) *TestIdentity {
	return &TestIdentity{
		id:    id,
		level: gantry.PrivilegeStandard,
		attrs: make(map[string]string),
	}
}

// WithPrivilege sets the privilege level.
func (t *TestIdentity) WithPrivilege(level gantry.Privilege) *TestIdentity {
	t.level = level
	return t
}

// WithAttr sets a single attribute.
func (t *TestIdentity) WithAttr(key, value string) *TestIdentity {
	t.attrs[key] = value
	return t
}

// ID implements gantry.Identity.
func (t *TestIdentity) ID() string { return t.id }

// Privilege implements gantry.Identity.
func (t *TestIdentity) Privilege() gantry.Privilege { return t.level }

// Attribute implements gantry.Identity.
func (t *TestIdentity) Attribute(key string) string { return t.attrs[key] }

// StaticResolver resolves fixed credential-to-identity pairs. Unknown,
// missing, and malformed credentials all resolve to no identity.
type StaticResolver struct {
	identities map[string]gantry.Identity
}

// NewStaticResolver creates an empty StaticResolver.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{
		identities: make(map[string]gantry.Identity),
	}
}

// WithCredential registers a credential and the identity it resolves to.
func (r *StaticResolver) WithCredential(credential string, identity gantry.Identity) *StaticResolver {
	r.identities[credential] = identity
	return r
}

// Resolve implements gantry.Resolver.
func (r *StaticResolver) Resolve(_ context.Context, credential string) (gantry.Identity, bool) {
	if credential == "" {
		return gantry.NoIdentity{}, false
	}
	identity, ok := r.identities[credential]
	if !ok {
		return gantry.NoIdentity{}, false
	}
	return identity, true
}

// CountingHandler wraps a handler value and counts invocations, for
// asserting that rejected requests never reach the handler.
type CountingHandler[In, Out any] struct {
	Calls int
	Value Out
}

// Handle returns the configured value and increments the call count.
func (h *CountingHandler[In, Out]) Handle(_ context.Context, _ *gantry.RequestContext, _ In) (Out, error) {
	h.Calls++
	return h.Value, nil
}

// ResponseCapture wraps httptest.ResponseRecorder with convenient access
// methods.
type ResponseCapture struct {
	*httptest.ResponseRecorder
}

// NewResponseCapture creates a new ResponseCapture.
func NewResponseCapture() *ResponseCapture {
	return &ResponseCapture{
		ResponseRecorder: httptest.NewRecorder(),
	}
}

// StatusCode returns the recorded status code.
func (r *ResponseCapture) StatusCode() int {
	return r.Code
}

// BodyString returns the response body as a string.
func (r *ResponseCapture) BodyString() string {
	return r.Body.String()
}

// DecodeJSON decodes the response body into the provided value.
func (r *ResponseCapture) DecodeJSON(v any) error {
	return json.Unmarshal(r.Body.Bytes(), v)
}

// RequestBuilder provides a fluent interface for building test requests.
type RequestBuilder struct {
	method  string
	path    string
	body    io.Reader
	headers map[string]string
	ctx     context.Context
}

// NewRequestBuilder creates a new RequestBuilder with the given method and
// path.
func NewRequestBuilder(method, path string) *RequestBuilder {
	return &RequestBuilder{
		method:  method,
		path:    path,
		headers: make(map[string]string),
		ctx:     context.Background(),
	}
}

// WithJSON sets the request body as JSON-encoded data.
func (b *RequestBuilder) WithJSON(v any) *RequestBuilder {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("gtesting: failed to marshal JSON: %v", err))
	}
	b.body = bytes.NewReader(data)
	return b
}

// WithHeader adds a header to the request.
func (b *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	b.headers[key] = value
	return b
}

// WithBearer sets the Authorization header with a bearer credential.
func (b *RequestBuilder) WithBearer(credential string) *RequestBuilder {
	b.headers["Authorization"] = "Bearer " + credential
	return b
}

// WithContext sets the request context.
func (b *RequestBuilder) WithContext(ctx context.Context) *RequestBuilder {
	b.ctx = ctx
	return b
}

// Build creates the http.Request.
func (b *RequestBuilder) Build() *http.Request {
	req := httptest.NewRequest(b.method, b.path, b.body)
	req = req.WithContext(b.ctx)
	for key, value := range b.headers {
		req.Header.Set(key, value)
	}
	return req
}

// ServeRequest executes a request against a gateway.
func ServeRequest(gateway *gantry.Gateway, req *http.Request) *ResponseCapture {
	capture := NewResponseCapture()
	gateway.Router().ServeHTTP(capture, req)
	return capture
}

// AssertStatus asserts the response has the expected status code.
func AssertStatus(t testing.TB, capture *ResponseCapture, expected int) {
	t.Helper()
	if capture.StatusCode() != expected {
		t.Errorf("expected status %d, got %d (body: %s)", expected, capture.StatusCode(), capture.BodyString())
	}
}

// AssertKind asserts the response is a rejection with the given kind.
func AssertKind(t testing.TB, capture *ResponseCapture, expected gantry.Kind) {
	t.Helper()
	var resp struct {
		Kind gantry.Kind `json:"kind"`
	}
	if err := capture.DecodeJSON(&resp); err != nil {
		t.Fatalf("failed to decode rejection body: %v", err)
	}
	if resp.Kind != expected {
		t.Errorf("expected kind %q, got %q", expected, resp.Kind)
	}
}

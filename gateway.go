package gantry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/zoobzio/capitan"
)

// maxBodySize bounds request bodies read by the gateway (10MB).
const maxBodySize = 10 * 1024 * 1024

// Gateway is the HTTP transport adapter. It mounts declared operations on
// chi routes, turns inbound requests into transport-neutral envelopes for
// the Executor, and maps classified rejections to HTTP status codes.
type Gateway struct {
	config     *GatewayConfig
	executor   *Executor
	server     *http.Server
	chiRouter  chi.Router
	operations []Operation
}

// NewGateway creates a Gateway over the given executor.
// If config is nil, uses DefaultGatewayConfig.
func NewGateway(executor *Executor, config *GatewayConfig) *Gateway {
	if config == nil {
		config = DefaultGatewayConfig()
	}

	r := chi.NewRouter()

	g := &Gateway{
		config:     config,
		executor:   executor,
		chiRouter:  r,
		operations: make([]Operation, 0),
	}

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	g.server = &http.Server{
		Addr:         addr,
		Handler:      g.chiRouter,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return g
}

// WithMiddleware adds global HTTP middleware and returns the gateway for
// chaining.
func (g *Gateway) WithMiddleware(middleware ...func(http.Handler) http.Handler) *Gateway {
	for _, mw := range middleware {
		g.chiRouter.Use(mw)
	}
	return g
}

// WithOperations mounts one or more operations on their declared routes and
// returns the gateway for chaining.
func (g *Gateway) WithOperations(operations ...Operation) *Gateway {
	for _, op := range operations {
		g.operations = append(g.operations, op)
		g.chiRouter.Method(op.Method(), op.Path(), g.adaptOperation(op))

		capitan.Emit(context.Background(), OperationMounted,
			OperationKey.Field(op.Name()),
			MethodKey.Field(op.Method()),
			PathKey.Field(op.Path()),
			TierKey.Field(string(op.Tier())),
		)
	}
	return g
}

// Router exposes the underlying router, primarily for tests.
func (g *Gateway) Router() chi.Router {
	return g.chiRouter
}

// adaptOperation converts an Operation to an http.HandlerFunc that feeds
// the executor.
func (g *Gateway) adaptOperation(op Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			writeRejection(w, Result{
				Kind:        KindInternal,
				SafeMessage: internalSafeMessage,
			})
			return
		}
		r.Body.Close()

		result := g.executor.Execute(r.Context(), op, Request{
			RawPayload: body,
			Credential: g.credential(r),
			OriginKey:  originKey(r),
		})

		if !result.OK {
			writeRejection(w, result)
			return
		}

		payload, err := json.Marshal(result.Value)
		if err != nil {
			writeRejection(w, Result{
				Kind:        KindInternal,
				SafeMessage: internalSafeMessage,
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(payload)
	}
}

// credential extracts the caller's credential from the configured header.
// A "Bearer " prefix is stripped when the header is Authorization.
func (g *Gateway) credential(r *http.Request) string {
	value := r.Header.Get(g.config.CredentialHeader)
	if g.config.CredentialHeader == "Authorization" {
		const bearer = "Bearer "
		if !strings.HasPrefix(value, bearer) {
			return ""
		}
		return value[len(bearer):]
	}
	return value
}

// originKey derives the fallback rate-limit origin from the remote address.
func originKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rejectionBody is the wire shape of a classified rejection.
type rejectionBody struct {
	Kind         Kind   `json:"kind"`
	Error        string `json:"error"`
	RetryAfterMs int64  `json:"retry_after_ms,omitempty"`
}

// writeRejection writes a classified rejection with its mapped status code.
// Rate-limited rejections also set the Retry-After header.
func writeRejection(w http.ResponseWriter, result Result) {
	status := result.Kind.HTTPStatus()

	w.Header().Set("Content-Type", "application/json")
	if result.Kind == KindRateLimited && result.RetryAfter > 0 {
		seconds := int64(result.RetryAfter / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
	}
	w.WriteHeader(status)

	//nolint:errchkjson // Standard practice after WriteHeader
	json.NewEncoder(w).Encode(rejectionBody{
		Kind:         result.Kind,
		Error:        result.SafeMessage,
		RetryAfterMs: result.RetryAfter.Milliseconds(),
	})
}

// Start begins listening for HTTP requests.
// This method blocks until the server is shutdown.
func (g *Gateway) Start() error {
	capitan.Emit(context.Background(), GatewayStarting,
		HostKey.Field(g.config.Host),
		PortKey.Field(g.config.Port),
		AddressKey.Field(g.server.Addr),
	)

	err := g.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway error: %w", err)
	}
	return nil
}

// Shutdown performs a graceful shutdown of the gateway.
func (g *Gateway) Shutdown(ctx context.Context) error {
	err := g.server.Shutdown(ctx)

	if err != nil {
		capitan.Emit(context.Background(), GatewayShutdownComplete,
			GracefulKey.Field(false),
			ErrorKey.Field(err.Error()),
		)
	} else {
		capitan.Emit(context.Background(), GatewayShutdownComplete,
			GracefulKey.Field(true),
		)
	}

	return err
}

package gantry

import "time"

// ExecutorConfig holds configuration for the Executor.
type ExecutorConfig struct {
	// DefaultLimit is the attempt budget applied to operations that do not
	// declare their own. A zero MaxAttempts disables the default.
	DefaultLimit Limit
}

// DefaultExecutorConfig returns an ExecutorConfig with sensible defaults.
func DefaultExecutorConfig() *ExecutorConfig {
	return &ExecutorConfig{
		DefaultLimit: Limit{
			MaxAttempts: 100,
			Window:      time.Minute,
		},
	}
}

// WithDefaultLimit sets the default attempt budget.
func (c *ExecutorConfig) WithDefaultLimit(limit Limit) *ExecutorConfig {
	c.DefaultLimit = limit
	return c
}

// GatewayConfig holds configuration for the HTTP Gateway.
type GatewayConfig struct {
	// Server settings
	Host         string        // Host to bind to (empty binds all interfaces)
	Port         int           // Port to listen on
	ReadTimeout  time.Duration // Maximum duration for reading entire request
	WriteTimeout time.Duration // Maximum duration for writing response
	IdleTimeout  time.Duration // Maximum wait for next request on keep-alive

	// CredentialHeader is the header carrying the caller's credential.
	CredentialHeader string
}

// DefaultGatewayConfig returns a GatewayConfig with sensible defaults.
func DefaultGatewayConfig() *GatewayConfig {
	return &GatewayConfig{
		Host:             "",
		Port:             8080,
		ReadTimeout:      10 * time.Second,
		WriteTimeout:     10 * time.Second,
		IdleTimeout:      120 * time.Second,
		CredentialHeader: "Authorization",
	}
}

// WithHost sets the host to bind to.
func (c *GatewayConfig) WithHost(host string) *GatewayConfig {
	c.Host = host
	return c
}

// WithPort sets the port to listen on.
func (c *GatewayConfig) WithPort(port int) *GatewayConfig {
	c.Port = port
	return c
}

// WithCredentialHeader sets the header carrying the caller's credential.
func (c *GatewayConfig) WithCredentialHeader(header string) *GatewayConfig {
	c.CredentialHeader = header
	return c
}

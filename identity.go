package gantry

// Privilege is the ordered privilege level carried by an Identity.
// Privileged operations require PrivilegeElevated or higher.
type Privilege int

const (
	// PrivilegeNone is the level of an unresolved or anonymous caller.
	PrivilegeNone Privilege = iota

	// PrivilegeStandard is the level of an ordinary authenticated caller.
	PrivilegeStandard

	// PrivilegeElevated is the level required by privileged operations.
	PrivilegeElevated
)

// Identity represents a resolved, verified calling principal.
// Implementations must be immutable for the lifetime of a request.
type Identity interface {
	// ID returns the unique identifier for this identity (e.g., user ID,
	// service account ID, trusted event source).
	ID() string

	// Privilege returns the privilege level of this identity.
	Privilege() Privilege

	// Attribute returns the named attribute, or empty string if absent.
	Attribute(key string) string
}

// NoIdentity represents the absence of authentication.
// Resolvers return it when a credential is missing, malformed, or expired;
// the tier check decides whether that is fatal.
type NoIdentity struct{}

// ID implements Identity.
func (NoIdentity) ID() string {
	return ""
}

// Privilege implements Identity.
func (NoIdentity) Privilege() Privilege {
	return PrivilegeNone
}

// Attribute implements Identity.
func (NoIdentity) Attribute(_ string) string {
	return ""
}

// Principal is a concrete Identity backed by plain fields. Resolvers that
// read from a session store or token claims produce Principals.
type Principal struct {
	Subject string
	Level   Privilege
	Attrs   map[string]string
}

// ID implements Identity.
func (p *Principal) ID() string {
	return p.Subject
}

// Privilege implements Identity.
func (p *Principal) Privilege() Privilege {
	return p.Level
}

// Attribute implements Identity.
func (p *Principal) Attribute(key string) string {
	return p.Attrs[key]
}

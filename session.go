package gantry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is a record in the external session store. The pipeline reads and
// validates sessions; it never mutates them except through the explicit
// Renew and Revoke operations.
type Session struct {
	SessionID  string
	IdentityID string
	Level      Privilege
	Attributes map[string]string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the session has passed its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionStore is the external session store consulted by identity
// resolution. Implementations must be safe for concurrent use.
type SessionStore interface {
	// Get returns the session for the given ID, or nil if none exists.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Put stores or replaces a session.
	Put(ctx context.Context, session *Session) error

	// Delete removes a session. Deleting an absent session is not an error.
	Delete(ctx context.Context, sessionID string) error
}

// Resolver turns an inbound credential into a verified identity.
//
// Resolve never fails for a missing, malformed, or expired credential: all
// three yield (NoIdentity, false) identically, so an attacker cannot
// distinguish which case occurred. Resolution is read-only; renewal and
// revocation are explicit separate operations.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (Identity, bool)
}

// SessionResolver resolves opaque session-ID credentials against a
// SessionStore.
type SessionResolver struct {
	store SessionStore
	now   func() time.Time
}

// NewSessionResolver creates a SessionResolver backed by the given store.
func NewSessionResolver(store SessionStore) *SessionResolver {
	return &SessionResolver{
		store: store,
		now:   time.Now,
	}
}

// WithClock overrides the time source and returns the resolver for chaining.
func (r *SessionResolver) WithClock(now func() time.Time) *SessionResolver {
	r.now = now
	return r
}

// Resolve implements Resolver.
func (r *SessionResolver) Resolve(ctx context.Context, credential string) (Identity, bool) {
	if credential == "" {
		return NoIdentity{}, false
	}

	session, err := r.store.Get(ctx, credential)
	if err != nil || session == nil {
		// Store failures and unknown IDs look identical to a missing
		// credential from the caller's side.
		return NoIdentity{}, false
	}

	if session.Expired(r.now()) {
		return NoIdentity{}, false
	}

	return &Principal{
		Subject: session.IdentityID,
		Level:   session.Level,
		Attrs:   session.Attributes,
	}, true
}

// Renew extends a session's expiry by ttl from now. It is the explicit
// sliding-expiry operation; Resolve never renews implicitly.
func (r *SessionResolver) Renew(ctx context.Context, sessionID string, ttl time.Duration) error {
	session, err := r.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil || session.Expired(r.now()) {
		return ErrUnauthorized
	}

	session.ExpiresAt = r.now().Add(ttl)
	return r.store.Put(ctx, session)
}

// Revoke deletes a session, invalidating its credential immediately.
func (r *SessionResolver) Revoke(ctx context.Context, sessionID string) error {
	return r.store.Delete(ctx, sessionID)
}

// MemorySessionStore is an in-process SessionStore for tests and single-node
// deployments.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewMemorySessionStore creates an empty in-process session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Issue mints a new session for the given identity and stores it.
// The session ID is a random UUID.
func (s *MemorySessionStore) Issue(identityID string, level Privilege, attrs map[string]string, ttl time.Duration) *Session {
	now := s.now()
	session := &Session{
		SessionID:  uuid.NewString(),
		IdentityID: identityID,
		Level:      level,
		Attributes: attrs,
		IssuedAt:   now,
		ExpiresAt:  now.Add(ttl),
	}

	s.mu.Lock()
	s.sessions[session.SessionID] = session
	s.mu.Unlock()

	return session
}

// Get implements SessionStore.
func (s *MemorySessionStore) Get(_ context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}

	// Return a copy so callers cannot mutate the stored record.
	copied := *session
	return &copied, nil
}

// Put implements SessionStore.
func (s *MemorySessionStore) Put(_ context.Context, session *Session) error {
	copied := *session

	s.mu.Lock()
	s.sessions[copied.SessionID] = &copied
	s.mu.Unlock()

	return nil
}

// Delete implements SessionStore.
func (s *MemorySessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	return nil
}

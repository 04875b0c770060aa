package gantry

import (
	"context"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Default claim names used by TokenResolver.
const (
	defaultPrivilegeClaim = "priv"
	privilegeElevated     = "elevated"
	privilegeStandard     = "standard"
)

// TokenResolver validates HMAC-signed JWT credentials and maps their claims
// to an Identity. It is a stateless Resolver: no store round trip is needed,
// which suits service-to-service callers.
type TokenResolver struct {
	secret         []byte
	issuer         string
	privilegeClaim string
}

// NewTokenResolver creates a TokenResolver verifying HS256 signatures with
// the given secret.
func NewTokenResolver(secret []byte) *TokenResolver {
	return &TokenResolver{
		secret:         secret,
		privilegeClaim: defaultPrivilegeClaim,
	}
}

// WithIssuer requires the iss claim to match and returns the resolver for
// chaining.
func (r *TokenResolver) WithIssuer(issuer string) *TokenResolver {
	r.issuer = issuer
	return r
}

// WithPrivilegeClaim overrides the claim name holding the privilege level.
func (r *TokenResolver) WithPrivilegeClaim(claim string) *TokenResolver {
	r.privilegeClaim = claim
	return r
}

// Resolve implements Resolver. A missing, malformed, expired, or badly
// signed token all yield (NoIdentity, false) identically.
func (r *TokenResolver) Resolve(_ context.Context, credential string) (Identity, bool) {
	if credential == "" {
		return NoIdentity{}, false
	}

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"HS256"}),
	}
	if r.issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(r.issuer))
	}

	token, err := jwtlib.Parse(credential, func(token *jwtlib.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return r.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return NoIdentity{}, false
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return NoIdentity{}, false
	}

	subject := claimString(claims, "sub")
	if subject == "" {
		return NoIdentity{}, false
	}

	level := PrivilegeStandard
	if claimString(claims, r.privilegeClaim) == privilegeElevated {
		level = PrivilegeElevated
	}

	attrs := make(map[string]string)
	for key, val := range claims {
		if s, isString := val.(string); isString {
			attrs[key] = s
		}
	}

	return &Principal{
		Subject: subject,
		Level:   level,
		Attrs:   attrs,
	}, true
}

// Issue signs a token for the given subject. Intended for callers that mint
// their own service credentials and for tests.
func (r *TokenResolver) Issue(subject string, level Privilege, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwtlib.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if r.issuer != "" {
		claims["iss"] = r.issuer
	}

	privilege := privilegeStandard
	if level >= PrivilegeElevated {
		privilege = privilegeElevated
	}
	claims[r.privilegeClaim] = privilege

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(r.secret)
}

// claimString extracts a string claim, or empty string if absent or not a
// string.
func claimString(claims jwtlib.MapClaims, key string) string {
	val, ok := claims[key]
	if !ok {
		return ""
	}
	s, ok := val.(string)
	if !ok {
		return ""
	}
	return s
}

// Package auth implements the request authorization core: bearer credential
// extraction, token verification, identity resolution, and the capability
// model consulted by the authorization gate.
//
// The package deliberately distinguishes two failure classes:
//   - authentication failure (missing/malformed/expired token) is soft: the
//     caller degrades to an anonymous identity and the request continues,
//     because read routes are open to anonymous callers;
//   - authorization failure (authenticated but lacking a capability) is hard
//     and terminates the request before any mutation (see middleware).
package auth

import "context"

// Capability is a named permission gating one mutating operation class.
// The set of capabilities required per route is fixed at router construction;
// reads are implicitly permitted and never gated.
type Capability string

// Capabilities recognized by the authorization gate. The values match the
// permission names carried in access-token claims.
const (
	CapCreate Capability = "create"
	CapUpdate Capability = "update"
	CapDelete Capability = "delete"
)

// Identity is the resolved anonymous-or-authenticated subject for a single
// request. It is constructed fresh per request from the presented credential,
// carried in the request context, and never persisted or cached.
type Identity struct {
	// UserID is the application user id; empty for anonymous callers.
	UserID string
	// Email is the resolved user email; empty for anonymous callers.
	Email string
	// Capabilities is the set of granted mutating capabilities.
	Capabilities map[Capability]bool

	authenticated bool
}

// Anonymous returns the identity used for requests with no valid credential.
func Anonymous() Identity {
	return Identity{}
}

// Authenticated builds an identity for a resolved user with the given
// capability names (typically the token's permissions claim). Unknown
// capability names are retained verbatim; the gate only ever asks for
// membership.
func Authenticated(userID, email string, caps []string) Identity {
	set := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		set[Capability(c)] = true
	}
	return Identity{
		UserID:        userID,
		Email:         email,
		Capabilities:  set,
		authenticated: true,
	}
}

// IsAnonymous reports whether the identity carries no authenticated subject.
func (id Identity) IsAnonymous() bool { return !id.authenticated }

// Can reports whether the identity is authenticated and holds the required
// capability. It is the allow/deny decision of the authorization gate;
// anonymous identities are always denied.
func (id Identity) Can(required Capability) bool {
	return id.authenticated && id.Capabilities[required]
}

// ctxKey is an unexported context key type to avoid collisions.
type ctxKey int

const identityKey ctxKey = 1

// WithIdentity returns a context carrying the resolved identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom extracts the resolved identity from the context. When no
// identity middleware ran (e.g., in unit tests exercising handlers directly),
// it returns Anonymous so callers never need a nil check.
func IdentityFrom(ctx context.Context) Identity {
	if v := ctx.Value(identityKey); v != nil {
		if id, ok := v.(Identity); ok {
			return id
		}
	}
	return Anonymous()
}

// Identity resolution.
//
// The resolver composes the credential extractor, the token verifier, and the
// application user lookup into a single per-request operation. Its failure
// policy is deliberately asymmetric: every authentication problem degrades to
// an anonymous identity (fail-open) so that anonymous-open read routes remain
// available even when a malformed or expired token is supplied. Hard denial
// is the job of the authorization gate, not the resolver.
package auth

import (
	"context"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-product-backend/internal/domain"
)

// UserLookup is the narrow data-access contract the resolver needs to map a
// verified token subject to an application user record.
type UserLookup interface {
	// GetUserByEmail fetches the user row matching the token's email claim.
	// A missing row is reported with repo.ErrNotFound semantics
	// (gorm.ErrRecordNotFound).
	GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.AppUser, error)
}

// Resolver builds a request-scoped Identity from an Authorization header.
// It is safe for concurrent use; all state is read-only after construction.
type Resolver struct {
	// DB is the GORM handle used for user lookups.
	DB *gorm.DB
	// Verifier validates bearer tokens.
	Verifier Verifier
	// Users resolves verified claims to an application user.
	Users UserLookup
}

// NewResolver constructs a Resolver bound to the given collaborators.
func NewResolver(db *gorm.DB, v Verifier, users UserLookup) *Resolver {
	return &Resolver{DB: db, Verifier: v, Users: users}
}

// Resolve maps an Authorization header value to a caller identity.
//
// Behavior:
//   - no credential present → Anonymous, without invoking the verifier;
//   - verification failure → Anonymous, logged at warn for observability;
//   - user lookup failure or absent user row → Anonymous, logged at warn;
//   - success → Authenticated identity carrying the user id, email, and the
//     capability set from the token's permissions claim.
//
// Resolve never returns an error and never aborts the request: soft
// authentication failures are not surfaced to the caller.
func (r *Resolver) Resolve(ctx context.Context, authHeader string) Identity {
	token, ok := ExtractBearer(authHeader)
	if !ok {
		return Anonymous()
	}

	claims, err := r.Verifier.Verify(token)
	if err != nil {
		log.Warn().Err(err).Msg("token verification failed; continuing as anonymous")
		return Anonymous()
	}

	user, err := r.Users.GetUserByEmail(ctx, r.DB, claims.Email)
	if err != nil {
		log.Warn().Err(err).Str("email", claims.Email).
			Msg("user lookup failed; continuing as anonymous")
		return Anonymous()
	}

	return Authenticated(user.ID, user.Email, claims.Permissions)
}

// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file wires the authorization core into the transport: Identity()
// resolves the caller from the Authorization header on every request, and
// RequireCapability() is the per-route authorization gate for mutating
// endpoints.
//
// Two different failure policies meet here:
//   - Identity() never aborts. A missing, malformed, or expired token
//     degrades the caller to anonymous (fail-open), keeping read routes
//     available; the soft failure is logged inside the resolver.
//   - RequireCapability() always aborts on deny, strictly before the handler
//     runs, so no data-access write can happen for a rejected request.
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-product-backend/internal/auth"
)

// ctxKeyIdentity is the Gin context key under which the resolved identity is
// stored, in addition to the request context carriage via auth.WithIdentity.
const ctxKeyIdentity = "identity"

// IdentityResolver is the contract Identity() needs from the auth package.
// It is narrowed to a single method so tests can substitute a stub.
type IdentityResolver interface {
	Resolve(ctx context.Context, authHeader string) auth.Identity
}

// Identity returns a middleware that resolves the caller identity for every
// request and stashes it both in the Gin context and in the request context.
//
// It also sets the "userID" Gin key for authenticated callers so downstream
// middleware (access logging, rate-limit bucketing) can key on the user
// rather than the client IP. The middleware never terminates a request:
// authorization decisions belong to RequireCapability.
func Identity(r IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := r.Resolve(c.Request.Context(), c.GetHeader("Authorization"))

		c.Set(ctxKeyIdentity, id)
		if !id.IsAnonymous() {
			c.Set("userID", id.UserID)
		}
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))

		c.Next()
	}
}

// IdentityFrom returns the identity resolved by Identity() for this request.
// When the middleware did not run, it returns the anonymous identity so
// callers never need a nil check.
func IdentityFrom(c *gin.Context) auth.Identity {
	if v, ok := c.Get(ctxKeyIdentity); ok {
		if id, ok := v.(auth.Identity); ok {
			return id
		}
	}
	return auth.Anonymous()
}

// RequireCapability returns the authorization gate for a mutating route.
//
// Deny semantics (resolved from the ambiguous upstream contract):
//   - anonymous caller           → 401 unauthorized
//   - authenticated, lacking cap → 403 forbidden
//
// On deny the request is aborted with the standard error envelope before the
// handler executes, guaranteeing that authorization precedes any mutation.
// Read routes must not install this middleware.
func RequireCapability(required auth.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := IdentityFrom(c)

		if id.IsAnonymous() {
			abortWithEnvelope(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		if !id.Can(required) {
			abortWithEnvelope(c, http.StatusForbidden, "forbidden",
				"missing required capability: "+string(required))
			return
		}

		c.Next()
	}
}

// abortWithEnvelope terminates the request with the standard error envelope
// shared with the handlers package, including the correlation ID when one was
// assigned upstream.
func abortWithEnvelope(c *gin.Context, status int, code, msg string) {
	rid := c.Writer.Header().Get(requestIDHeader)
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": rid,
		"code":       code,
		"message":    msg,
	})
}

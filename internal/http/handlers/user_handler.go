// Identity HTTP handlers.
//
// This file exposes the endpoint reflecting the caller's resolved identity:
//   - GET /me   (anonymous-open; reports the fail-open resolution result)
//
// The endpoint is intentionally available without a token: it returns the
// anonymous shape in that case, which makes the fail-open policy observable
// and easy to probe from clients and tests.
package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-product-backend/internal/http/middleware"
)

// MeResponse reports the caller identity resolved for this request.
type MeResponse struct {
	// Anonymous is true when no valid credential resolved to a user.
	Anonymous bool `json:"anonymous"`
	// UserID is the application user id (empty when anonymous).
	UserID string `json:"user_id,omitempty"`
	// Email is the resolved user email (empty when anonymous).
	Email string `json:"email,omitempty"`
	// Capabilities lists the granted mutating capabilities (empty when anonymous).
	Capabilities []string `json:"capabilities,omitempty"`
}

// Me godoc
// @ID          me
// @Summary     Report the resolved caller identity
// @Description Returns the identity the request resolved to. A missing or invalid token yields the anonymous shape with HTTP 200, never an error.
// @Tags        Identity
// @Produce     json
//
// @Param       Authorization  header  string  false "Bearer token (optional)"
//
// @Success     200  {object} handlers.MeResponse
// @Router      /me [get]
func (h *Handlers) Me(c *gin.Context) {
	id := middleware.IdentityFrom(c)

	resp := MeResponse{Anonymous: id.IsAnonymous()}
	if !id.IsAnonymous() {
		resp.UserID = id.UserID
		resp.Email = id.Email
		resp.Capabilities = make([]string, 0, len(id.Capabilities))
		for capability := range id.Capabilities {
			resp.Capabilities = append(resp.Capabilities, string(capability))
		}
		// The capability set is a map; sort for a deterministic payload.
		sort.Strings(resp.Capabilities)
	}
	ok(c, http.StatusOK, resp)
}

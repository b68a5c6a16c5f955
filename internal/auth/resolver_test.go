package auth

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/go-product-backend/internal/domain"
)

// stubVerifier counts calls and returns a fixed result.
type stubVerifier struct {
	calls  int
	claims *Claims
	err    error
}

func (s *stubVerifier) Verify(string) (*Claims, error) {
	s.calls++
	return s.claims, s.err
}

// stubLookup returns a fixed user or error, recording the requested email.
type stubLookup struct {
	gotEmail string
	user     *domain.AppUser
	err      error
}

func (s *stubLookup) GetUserByEmail(_ context.Context, _ *gorm.DB, email string) (*domain.AppUser, error) {
	s.gotEmail = email
	return s.user, s.err
}

func TestResolve_NoCredential_SkipsVerifier(t *testing.T) {
	v := &stubVerifier{}
	r := NewResolver(nil, v, &stubLookup{})

	for _, header := range []string{"", "   ", "Bearer "} {
		id := r.Resolve(context.Background(), header)
		if !id.IsAnonymous() {
			t.Fatalf("header %q should resolve anonymous, got %+v", header, id)
		}
	}
	if v.calls != 0 {
		t.Fatalf("verifier must not run without a credential, got %d calls", v.calls)
	}
}

func TestResolve_VerificationFailure_FailsOpen(t *testing.T) {
	v := &stubVerifier{err: errors.New("bad signature")}
	r := NewResolver(nil, v, &stubLookup{})

	id := r.Resolve(context.Background(), "Bearer forged-token")
	if !id.IsAnonymous() {
		t.Fatalf("invalid token must degrade to anonymous, got %+v", id)
	}
	if v.calls != 1 {
		t.Fatalf("verifier should be consulted exactly once, got %d", v.calls)
	}
}

func TestResolve_UnknownUser_FailsOpen(t *testing.T) {
	v := &stubVerifier{claims: &Claims{Email: "ghost@example.com", Permissions: []string{"create"}}}
	lu := &stubLookup{err: gorm.ErrRecordNotFound}
	r := NewResolver(nil, v, lu)

	id := r.Resolve(context.Background(), "Bearer valid-token")
	if !id.IsAnonymous() {
		t.Fatalf("missing user row must degrade to anonymous, got %+v", id)
	}
	if lu.gotEmail != "ghost@example.com" {
		t.Fatalf("lookup email = %q", lu.gotEmail)
	}
}

func TestResolve_LookupError_FailsOpen(t *testing.T) {
	v := &stubVerifier{claims: &Claims{Email: "a@example.com"}}
	lu := &stubLookup{err: errors.New("db down")}
	r := NewResolver(nil, v, lu)

	if id := r.Resolve(context.Background(), "Bearer valid-token"); !id.IsAnonymous() {
		t.Fatalf("lookup failure must degrade to anonymous, got %+v", id)
	}
}

func TestResolve_Success(t *testing.T) {
	v := &stubVerifier{claims: &Claims{Email: "a@example.com", Permissions: []string{"create", "delete"}}}
	lu := &stubLookup{user: &domain.AppUser{ID: "u1", Email: "a@example.com"}}
	r := NewResolver(nil, v, lu)

	id := r.Resolve(context.Background(), "Bearer valid-token")
	if id.IsAnonymous() || id.UserID != "u1" || id.Email != "a@example.com" {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if !id.Can(CapCreate) || !id.Can(CapDelete) || id.Can(CapUpdate) {
		t.Fatalf("capability set mismatch: %+v", id.Capabilities)
	}
}

package auth

import (
	"context"
	"testing"
)

func TestAnonymous_DeniedEverything(t *testing.T) {
	id := Anonymous()
	if !id.IsAnonymous() {
		t.Fatalf("Anonymous() should report anonymous")
	}
	for _, c := range []Capability{CapCreate, CapUpdate, CapDelete, "anything"} {
		if id.Can(c) {
			t.Fatalf("anonymous identity must not hold %q", c)
		}
	}
}

func TestAuthenticated_CapabilityMembership(t *testing.T) {
	id := Authenticated("u1", "a@example.com", []string{"create", "delete"})
	if id.IsAnonymous() {
		t.Fatalf("authenticated identity reported anonymous")
	}
	if id.UserID != "u1" || id.Email != "a@example.com" {
		t.Fatalf("unexpected identity fields: %+v", id)
	}
	if !id.Can(CapCreate) || !id.Can(CapDelete) {
		t.Fatalf("granted capabilities missing: %+v", id.Capabilities)
	}
	if id.Can(CapUpdate) {
		t.Fatalf("ungranted capability allowed")
	}
}

func TestAuthenticated_EmptyCapabilitySet(t *testing.T) {
	id := Authenticated("u1", "a@example.com", nil)
	if id.IsAnonymous() {
		t.Fatalf("empty capability set must not make identity anonymous")
	}
	if id.Can(CapCreate) {
		t.Fatalf("identity without grants allowed a mutation")
	}
}

func TestIdentityContext_RoundTrip(t *testing.T) {
	base := context.Background()

	// No identity installed: anonymous, never nil.
	if got := IdentityFrom(base); !got.IsAnonymous() {
		t.Fatalf("bare context should yield anonymous identity, got %+v", got)
	}

	want := Authenticated("u1", "a@example.com", []string{"update"})
	ctx := WithIdentity(base, want)
	got := IdentityFrom(ctx)
	if got.IsAnonymous() || got.UserID != "u1" || !got.Can(CapUpdate) {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

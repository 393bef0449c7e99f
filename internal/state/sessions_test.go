package state

import (
	"testing"

	"github.com/labhelp/queue-service/internal/domain"
)

func TestSessions_AttachCarriesOverClaims(t *testing.T) {
	s := NewSessions()

	first := s.Attach(&domain.Session{Username: "carol", Permissions: domain.PermissionSet{}})
	first.Claims["alice"] = struct{}{}
	s.SetConfirmed("carol", true)

	second := s.Attach(&domain.Session{Username: "carol", Permissions: domain.PermissionSet{}})

	if _, ok := second.Claims["alice"]; !ok {
		t.Fatal("re-authentication should carry over claims")
	}
	if !second.Confirmed {
		t.Fatal("re-authentication should carry over the check-in flag")
	}
}

func TestSessions_PrimeClaim(t *testing.T) {
	s := NewSessions()

	// claimant has not connected yet
	s.PrimeClaim("carol", "alice")

	sess := s.Get("carol")
	if sess == nil {
		t.Fatal("prime should create a bare session")
	}
	if _, ok := sess.Claims["alice"]; !ok {
		t.Fatal("primed claim missing")
	}

	// a later authentication picks the claim up
	attached := s.Attach(&domain.Session{Username: "carol", Permissions: domain.PermissionSet{}})
	if _, ok := attached.Claims["alice"]; !ok {
		t.Fatal("authentication should inherit primed claims")
	}
}

func TestSessions_ClaimTracking(t *testing.T) {
	s := NewSessions()
	s.Attach(&domain.Session{Username: "carol", Permissions: domain.PermissionSet{}})

	s.AddClaim("carol", "alice")
	if _, ok := s.Get("carol").Claims["alice"]; !ok {
		t.Fatal("claim not recorded")
	}

	s.RemoveClaim("carol", "alice")
	if _, ok := s.Get("carol").Claims["alice"]; ok {
		t.Fatal("claim not removed")
	}

	// claims for identities with no session are dropped, not invented
	s.AddClaim("ghost", "alice")
	if s.Get("ghost") != nil {
		t.Fatal("AddClaim should not create sessions")
	}
}

func TestSessions_RealName(t *testing.T) {
	s := NewSessions()
	s.Attach(&domain.Session{Username: "carol", RealName: "Carol C.", Permissions: domain.PermissionSet{}})

	if got := s.RealName("carol"); got != "Carol C." {
		t.Fatalf("expected Carol C., got %q", got)
	}
	if got := s.RealName("nobody"); got != "" {
		t.Fatalf("unknown user should resolve empty, got %q", got)
	}
}

package state

import (
	"sync"

	"github.com/labhelp/queue-service/internal/domain"
)

// Sessions is the identity table. A session survives reconnects: a
// re-authentication keeps the derived claims set and the check-in flag and
// replaces everything else.
type Sessions struct {
	mu    sync.RWMutex
	users map[string]*domain.Session
}

func NewSessions() *Sessions {
	return &Sessions{users: make(map[string]*domain.Session)}
}

// Attach installs a freshly authenticated session, carrying over claims and
// the check-in flag from a previous session for the same identity.
func (s *Sessions) Attach(fresh *domain.Session) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.users[fresh.Username]; ok {
		fresh.Claims = old.Claims
		fresh.Confirmed = old.Confirmed
	}
	if fresh.Claims == nil {
		fresh.Claims = map[string]struct{}{}
	}
	s.users[fresh.Username] = fresh
	return fresh
}

func (s *Sessions) Get(username string) *domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.users[username]
}

// RealName implements domain.Directory.
func (s *Sessions) RealName(username string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.users[username]; ok {
		return u.RealName
	}
	return ""
}

func (s *Sessions) SetConfirmed(username string, confirmed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[username]; ok {
		u.Confirmed = confirmed
	}
}

func (s *Sessions) Confirmed(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.users[username]; ok {
		return u.Confirmed
	}
	return false
}

func (s *Sessions) Role(username string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.users[username]; ok {
		return u.Role, true
	}
	return "", false
}

// PrimeClaim records a claim for an identity that may not have connected
// yet; used by the startup warm-load.
func (s *Sessions) PrimeClaim(claimant, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[claimant]
	if !ok {
		u = &domain.Session{
			Username:    claimant,
			Permissions: domain.PermissionSet{},
			Claims:      map[string]struct{}{},
		}
		s.users[claimant] = u
	}
	u.Claims[target] = struct{}{}
}

// AddClaim and RemoveClaim maintain the derived claims set from the
// change stream.
func (s *Sessions) AddClaim(claimant, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[claimant]; ok {
		u.Claims[target] = struct{}{}
	}
}

func (s *Sessions) RemoveClaim(claimant, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[claimant]; ok {
		delete(u.Claims, target)
	}
}

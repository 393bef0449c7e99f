package domain

// Session is the ephemeral per-identity state. Claims is derived from the
// entry change stream and is never authoritative; the store enforces the
// at-most-one-claim invariant.
type Session struct {
	Username    string
	RealName    string
	Role        string
	Token       string
	Permissions PermissionSet
	Claims      map[string]struct{}
	Confirmed   bool
}

// Viewer is the slice of a session that rendering needs.
type Viewer struct {
	Username    string
	Role        string
	Permissions PermissionSet
}

func (s *Session) Viewer() Viewer {
	return Viewer{
		Username:    s.Username,
		Role:        s.Role,
		Permissions: s.Permissions,
	}
}

package domain

import "sort"

type Permission string

const (
	PermClaim         Permission = "claim"
	PermCheckoff      Permission = "checkoff"
	PermLock          Permission = "lock"
	PermClear         Permission = "clear"
	PermCheckIn       Permission = "check_in"
	PermAutoCheckIn   Permission = "auto_check_in"
	PermShowClaimed   Permission = "show_claimed"
	PermNotifications Permission = "notifications"
	PermViewAll       Permission = "queue_view_all"
)

const (
	RoleAdmin      = "Admin"
	RoleInstructor = "Instructor"
	RoleTA         = "TA"
	RoleUTA        = "UTA"
	RoleLA         = "LA"
	RoleSLA        = "SLA"
	RoleStudent    = "Student"
	RoleGuest      = "Guest"
)

type PermissionSet map[Permission]struct{}

func NewPermissionSet(names ...string) PermissionSet {
	s := make(PermissionSet, len(names))
	for _, n := range names {
		s[Permission(n)] = struct{}{}
	}
	return s
}

func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

func (s PermissionSet) Add(ps ...Permission) {
	for _, p := range ps {
		s[p] = struct{}{}
	}
}

func (s PermissionSet) Union(other PermissionSet) PermissionSet {
	out := make(PermissionSet, len(s)+len(other))
	for p := range s {
		out[p] = struct{}{}
	}
	for p := range other {
		out[p] = struct{}{}
	}
	return out
}

func (s PermissionSet) List() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, string(p))
	}
	sort.Strings(out)
	return out
}

package auth

import (
	"testing"

	"github.com/labhelp/queue-service/internal/domain"
)

func TestQueuePermissions_FallThrough(t *testing.T) {
	tests := []struct {
		role    string
		has     []domain.Permission
		lacks   []domain.Permission
	}{
		{
			role: domain.RoleAdmin,
			has:  []domain.Permission{domain.PermClear, domain.PermLock, domain.PermClaim, domain.PermNotifications},
		},
		{
			role:  domain.RoleUTA,
			has:   []domain.Permission{domain.PermLock, domain.PermAutoCheckIn, domain.PermClaim, domain.PermViewAll},
			lacks: []domain.Permission{domain.PermClear},
		},
		{
			role:  domain.RoleLA,
			has:   []domain.Permission{domain.PermNotifications, domain.PermClaim, domain.PermCheckoff},
			lacks: []domain.Permission{domain.PermLock, domain.PermClear},
		},
		{
			role:  domain.RoleSLA,
			has:   []domain.Permission{domain.PermClaim, domain.PermCheckoff, domain.PermViewAll},
			lacks: []domain.Permission{domain.PermNotifications, domain.PermLock, domain.PermClear},
		},
		{
			role:  domain.RoleStudent,
			lacks: []domain.Permission{domain.PermClaim, domain.PermClear, domain.PermViewAll},
		},
		{
			role:  domain.RoleGuest,
			lacks: []domain.Permission{domain.PermClaim},
		},
	}

	for _, tt := range tests {
		perms := QueuePermissions(tt.role)
		for _, p := range tt.has {
			if !perms.Has(p) {
				t.Errorf("%s should have %s", tt.role, p)
			}
		}
		for _, p := range tt.lacks {
			if perms.Has(p) {
				t.Errorf("%s should not have %s", tt.role, p)
			}
		}
	}
}

func TestIsStaff(t *testing.T) {
	for _, role := range []string{domain.RoleAdmin, domain.RoleInstructor, domain.RoleTA, domain.RoleUTA} {
		if !IsStaff(role) {
			t.Errorf("%s should be staff", role)
		}
	}
	for _, role := range []string{domain.RoleLA, domain.RoleSLA, domain.RoleStudent, domain.RoleGuest} {
		if IsStaff(role) {
			t.Errorf("%s should not be staff", role)
		}
	}
}

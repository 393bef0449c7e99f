package auth

import "github.com/labhelp/queue-service/internal/domain"

// Role tiers are cumulative: each tier grants its own capabilities plus
// everything the tiers below it grant.
var roleGrants = map[string][]domain.Permission{
	domain.RoleAdmin:      {domain.PermClear},
	domain.RoleInstructor: {domain.PermClear},
	domain.RoleTA:         {domain.PermClear},
	domain.RoleUTA: {
		domain.PermLock,
		domain.PermShowClaimed,
		domain.PermCheckIn,
		domain.PermAutoCheckIn,
	},
	domain.RoleLA:  {domain.PermNotifications},
	domain.RoleSLA: {domain.PermViewAll, domain.PermClaim, domain.PermCheckoff},
}

// tierOrder runs top tier to bottom; a role inherits every grant from its
// own position down.
var tierOrder = []string{
	domain.RoleAdmin,
	domain.RoleInstructor,
	domain.RoleTA,
	domain.RoleUTA,
	domain.RoleLA,
	domain.RoleSLA,
}

// QueuePermissions maps a role to the queue capability set it implies.
// Students and guests get nothing.
func QueuePermissions(role string) domain.PermissionSet {
	perms := domain.PermissionSet{}

	granting := false
	for _, tier := range tierOrder {
		if tier == role {
			granting = true
		}
		if granting {
			perms.Add(roleGrants[tier]...)
		}
	}

	return perms
}

var staffRoles = map[string]struct{}{
	domain.RoleAdmin:      {},
	domain.RoleInstructor: {},
	domain.RoleTA:         {},
	domain.RoleUTA:        {},
}

// IsStaff reports whether the role participates in staff presence tracking.
func IsStaff(role string) bool {
	_, ok := staffRoles[role]
	return ok
}

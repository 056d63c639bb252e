package auth

import (
	"context"
	"fmt"
	"slices"

	"connectrpc.com/connect"
	"github.com/wolfeidau/rollcall/internal/models"
)

// Permission represents an authorized action
type Permission string

const (
	PermSessionsManage Permission = "sessions:manage"
	PermSessionsRead   Permission = "sessions:read"
	PermPresenceRecord Permission = "presence:record"
	PermRecordsRead    Permission = "records:read"
	PermReportsRead    Permission = "reports:read"
)

// RolePermissions maps roles to allowed permissions. Ownership of individual
// sessions is checked by the attendance package.
var RolePermissions = map[models.Role][]Permission{
	models.RoleAdmin: {
		PermSessionsManage,
		PermSessionsRead,
		PermPresenceRecord,
		PermRecordsRead,
		PermReportsRead,
	},
	models.RoleInstructor: {
		PermSessionsManage,
		PermSessionsRead,
		PermPresenceRecord,
		PermRecordsRead,
		PermReportsRead,
	},
	models.RoleDevice: {
		PermSessionsRead,
		PermPresenceRecord,
		PermRecordsRead,
	},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role models.Role, perm Permission) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	return slices.Contains(perms, perm)
}

// RequirePermission checks authorization and returns the caller.
func RequirePermission(ctx context.Context, perm Permission) (models.Principal, error) {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		return models.Principal{}, connect.NewError(connect.CodeUnauthenticated, fmt.Errorf("not authenticated"))
	}

	if !HasPermission(principal.Role, perm) {
		return models.Principal{}, connect.NewError(
			connect.CodePermissionDenied,
			fmt.Errorf("permission denied: %s requires %s", principal.Role, perm),
		)
	}

	return principal, nil
}

package auth

import (
	"context"
	"errors"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/rollcall/internal/models"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name           string
		role           models.Role
		permission     Permission
		expectedResult bool
	}{
		{
			name:           "admin can manage sessions",
			role:           models.RoleAdmin,
			permission:     PermSessionsManage,
			expectedResult: true,
		},
		{
			name:           "admin can read reports",
			role:           models.RoleAdmin,
			permission:     PermReportsRead,
			expectedResult: true,
		},
		{
			name:           "instructor can manage sessions",
			role:           models.RoleInstructor,
			permission:     PermSessionsManage,
			expectedResult: true,
		},
		{
			name:           "instructor can record presence",
			role:           models.RoleInstructor,
			permission:     PermPresenceRecord,
			expectedResult: true,
		},
		{
			name:           "device can record presence",
			role:           models.RoleDevice,
			permission:     PermPresenceRecord,
			expectedResult: true,
		},
		{
			name:           "device can read sessions",
			role:           models.RoleDevice,
			permission:     PermSessionsRead,
			expectedResult: true,
		},
		{
			name:           "device cannot manage sessions",
			role:           models.RoleDevice,
			permission:     PermSessionsManage,
			expectedResult: false,
		},
		{
			name:           "device cannot read reports",
			role:           models.RoleDevice,
			permission:     PermReportsRead,
			expectedResult: false,
		},
		{
			name:           "invalid role has no permissions",
			role:           models.Role("invalid"),
			permission:     PermSessionsRead,
			expectedResult: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := HasPermission(tt.role, tt.permission)
			require.Equal(t, tt.expectedResult, result)
		})
	}
}

func TestRequirePermission(t *testing.T) {
	t.Run("succeeds with proper permission", func(t *testing.T) {
		ctx := WithPrincipal(context.Background(), models.Principal{ID: "I1", Role: models.RoleInstructor})

		principal, err := RequirePermission(ctx, PermSessionsManage)
		require.NoError(t, err)
		require.Equal(t, "I1", principal.ID)
	})

	t.Run("fails without permission", func(t *testing.T) {
		ctx := WithPrincipal(context.Background(), models.Principal{ID: "kiosk-1", Role: models.RoleDevice})

		_, err := RequirePermission(ctx, PermReportsRead)
		var connectErr *connect.Error
		require.True(t, errors.As(err, &connectErr))
		require.Equal(t, connect.CodePermissionDenied, connectErr.Code())
	})

	t.Run("fails without principal", func(t *testing.T) {
		_, err := RequirePermission(context.Background(), PermSessionsRead)
		var connectErr *connect.Error
		require.True(t, errors.As(err, &connectErr))
		require.Equal(t, connect.CodeUnauthenticated, connectErr.Code())
	})
}

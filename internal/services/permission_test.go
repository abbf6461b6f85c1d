package services

import (
	"testing"

	"gcrp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUserPermissions_UnionAcrossRoles(t *testing.T) {
	db := setupTestDB(t)
	seedPermissions(t, db)
	svc := NewPermissionService(db)

	user := createUser(t, db, "alice")
	mod := createRole(t, db, "moderator", false,
		models.PermApplicationsView, models.PermApplicationsApprove)
	member := createRole(t, db, "member", true,
		models.PermApplicationsCreate, models.PermApplicationsView)
	assignRole(t, db, user.ID, mod.ID)
	assignRole(t, db, user.ID, member.ID)

	codes, err := svc.GetUserPermissions(user.ID)
	require.NoError(t, err)

	// 并集去重，重复的 applications.view 只出现一次
	assert.ElementsMatch(t, []string{
		models.PermApplicationsApprove,
		models.PermApplicationsCreate,
		models.PermApplicationsView,
	}, codes)
}

func TestGetUserPermissions_InactiveRoleExcluded(t *testing.T) {
	db := setupTestDB(t)
	seedPermissions(t, db)
	svc := NewPermissionService(db)

	user := createUser(t, db, "alice")
	role := createRole(t, db, "moderator", false, models.PermApplicationsApprove)
	assignRole(t, db, user.ID, role.ID)

	codes, err := svc.GetUserPermissions(user.ID)
	require.NoError(t, err)
	assert.Contains(t, codes, models.PermApplicationsApprove)

	// 停用后权限立即消失
	require.NoError(t, db.Model(role).Update("is_active", false).Error)
	codes, err = svc.GetUserPermissions(user.ID)
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestGetUserPermissions_UnknownUserEmptySet(t *testing.T) {
	db := setupTestDB(t)
	svc := NewPermissionService(db)

	codes, err := svc.GetUserPermissions(9999)
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestHasPermission(t *testing.T) {
	db := setupTestDB(t)
	seedPermissions(t, db)
	svc := NewPermissionService(db)

	user := createUser(t, db, "alice")
	role := createRole(t, db, "member", true, models.PermApplicationsCreate)
	assignRole(t, db, user.ID, role.ID)

	ok, err := svc.HasPermission(user.ID, models.PermApplicationsCreate)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasPermission(user.ID, models.PermUsersBan)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasAnyPermission(t *testing.T) {
	db := setupTestDB(t)
	seedPermissions(t, db)
	svc := NewPermissionService(db)

	user := createUser(t, db, "alice")
	role := createRole(t, db, "member", true, models.PermContentView)
	assignRole(t, db, user.ID, role.ID)

	ok, err := svc.HasAnyPermission(user.ID, models.PermUsersBan, models.PermContentView)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasAnyPermission(user.ID, models.PermUsersBan, models.PermUsersDelete)
	require.NoError(t, err)
	assert.False(t, ok)
}

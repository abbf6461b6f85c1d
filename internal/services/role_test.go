package services

import (
	"testing"

	"gcrp/internal/models"
	apperrors "gcrp/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleCreate_DuplicateName(t *testing.T) {
	db := setupTestDB(t)
	seedPermissions(t, db)
	svc := NewRoleService(db, nil)

	_, err := svc.Create(CreateRoleInput{Name: "member", DisplayName: "Member"})
	require.NoError(t, err)

	_, err = svc.Create(CreateRoleInput{Name: "member", DisplayName: "Member 2"})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))
}

func TestRoleCreate_InvalidName(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRoleService(db, nil)

	for _, name := range []string{"", "A", "With Space", "UPPER"} {
		_, err := svc.Create(CreateRoleInput{Name: name, DisplayName: "X"})
		require.Error(t, err, "name %q", name)
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	}
}

func TestRoleCreate_UnknownPermission(t *testing.T) {
	db := setupTestDB(t)
	seedPermissions(t, db)
	svc := NewRoleService(db, nil)

	_, err := svc.Create(CreateRoleInput{
		Name:        "broken",
		DisplayName: "Broken",
		Permissions: []string{"no.such.permission"},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestSetDefault_ClearsSiblings(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRoleService(db, nil)

	first := createRole(t, db, "member", true)
	second := createRole(t, db, "veteran", false)

	require.NoError(t, svc.SetDefault(second.ID))

	var roles []models.Role
	require.NoError(t, db.Where("is_default = ?", true).Find(&roles).Error)
	require.Len(t, roles, 1)
	assert.Equal(t, second.ID, roles[0].ID)

	// 原默认角色标记已清除
	var reloaded models.Role
	require.NoError(t, db.First(&reloaded, first.ID).Error)
	assert.False(t, reloaded.IsDefault)
}

func TestSetDefault_InactiveRoleRejected(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRoleService(db, nil)

	role := createRole(t, db, "retired", false)
	require.NoError(t, db.Model(role).Update("is_active", false).Error)

	err := svc.SetDefault(role.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))
}

func TestGetDefault_NoneConfigured(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRoleService(db, nil)

	_, err := svc.GetDefault()
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestAssignRole_Duplicate(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRoleService(db, nil)

	user := createUser(t, db, "alice")
	role := createRole(t, db, "member", true)

	require.NoError(t, svc.AssignRole(user.ID, role.ID, nil))

	err := svc.AssignRole(user.ID, role.ID, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	var count int64
	require.NoError(t, db.Model(&models.UserRole{}).
		Where("user_id = ? AND role_id = ?", user.ID, role.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAssignRole_RecordsAssigner(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRoleService(db, nil)

	admin := createUser(t, db, "admin")
	user := createUser(t, db, "alice")
	role := createRole(t, db, "member", true)

	require.NoError(t, svc.AssignRole(user.ID, role.ID, &admin.ID))

	var link models.UserRole
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&link).Error)
	require.NotNil(t, link.AssignedBy)
	assert.Equal(t, admin.ID, *link.AssignedBy)
}

func TestRemoveRole_NotHeld(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRoleService(db, nil)

	user := createUser(t, db, "alice")
	role := createRole(t, db, "member", true)

	err := svc.RemoveRole(user.ID, role.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestRoleDelete_RefusedWhileAssigned(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRoleService(db, nil)

	user := createUser(t, db, "alice")
	role := createRole(t, db, "member", true)
	assignRole(t, db, user.ID, role.ID)

	err := svc.Delete(role.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	// 解除分配后可删除
	require.NoError(t, svc.RemoveRole(user.ID, role.ID))
	require.NoError(t, svc.Delete(role.ID))
}

func TestRoleList_ActiveOnly(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRoleService(db, nil)

	createRole(t, db, "member", true)
	retired := createRole(t, db, "retired", false)
	require.NoError(t, db.Model(retired).Update("is_active", false).Error)

	all, err := svc.List(false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := svc.List(true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "member", active[0].Name)
}

package services

import (
	"testing"

	"gcrp/internal/models"
	"gcrp/pkg/pagination"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func defaultPageParams() *pagination.PageParams {
	return &pagination.PageParams{Page: 1, PageSize: 20}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.UserRole{},
		&models.RolePermission{},
		&models.Application{},
		&models.ApplicationComment{},
		&models.Notification{},
		&models.ActivityLog{},
		&models.Follow{},
	))
	return db
}

// seedPermissions 写入全部权限目录
func seedPermissions(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, code := range models.AllPermissionCodes() {
		perm := &models.Permission{Code: code, Name: code, Module: "test", Action: code}
		require.NoError(t, db.Create(perm).Error)
	}
}

// createRole 创建角色并绑定权限
func createRole(t *testing.T, db *gorm.DB, name string, isDefault bool, codes ...string) *models.Role {
	t.Helper()
	role := &models.Role{
		Name:        name,
		DisplayName: name,
		IsDefault:   isDefault,
		IsActive:    true,
	}
	require.NoError(t, db.Create(role).Error)
	if len(codes) > 0 {
		var perms []models.Permission
		require.NoError(t, db.Where("code IN ?", codes).Find(&perms).Error)
		require.Len(t, perms, len(codes))
		require.NoError(t, db.Model(role).Association("Permissions").Append(&perms))
	}
	return role
}

// createUser 创建用户
func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
	}
	require.NoError(t, user.SetPassword("secret-password"))
	require.NoError(t, db.Create(user).Error)
	return user
}

// assignRole 直接写关联表
func assignRole(t *testing.T, db *gorm.DB, userID, roleID uint) {
	t.Helper()
	require.NoError(t, db.Create(&models.UserRole{UserID: userID, RoleID: roleID}).Error)
}

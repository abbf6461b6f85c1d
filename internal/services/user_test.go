package services

import (
	"testing"

	"gcrp/internal/models"
	apperrors "gcrp/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newUserService(t *testing.T) (*UserService, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	roles := NewRoleService(db, nil)
	activity := NewActivityService(db)
	return NewUserService(db, roles, activity, nil), db
}

func TestRegister_GrantsDefaultRole(t *testing.T) {
	svc, db := newUserService(t)
	seedPermissions(t, db)
	defaultRole := createRole(t, db, "member", true, models.PermApplicationsCreate)

	user, err := svc.Register(RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret-password",
	}, "127.0.0.1", "test-agent")
	require.NoError(t, err)

	// 注册即持有默认角色
	var link models.UserRole
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&link).Error)
	assert.Equal(t, defaultRole.ID, link.RoleID)

	// 权限集等于默认角色的权限集
	codes, err := NewPermissionService(db).GetUserPermissions(user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{models.PermApplicationsCreate}, codes)

	// 注册动态已记录
	var logCount int64
	require.NoError(t, db.Model(&models.ActivityLog{}).
		Where("action = ?", models.ActivityRegister).Count(&logCount).Error)
	assert.Equal(t, int64(1), logCount)
}

func TestRegister_NoDefaultRole(t *testing.T) {
	svc, db := newUserService(t)

	_, err := svc.Register(RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret-password",
	}, "", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindStorage))

	// 失败的注册不留半截数据
	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestRegister_Duplicate(t *testing.T) {
	svc, db := newUserService(t)
	createRole(t, db, "member", true)

	input := RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret-password",
	}
	_, err := svc.Register(input, "", "")
	require.NoError(t, err)

	// 同用户名
	_, err = svc.Register(RegisterInput{
		Username: "alice",
		Email:    "other@example.com",
		Password: "secret-password",
	}, "", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	// 同邮箱
	_, err = svc.Register(RegisterInput{
		Username: "bob",
		Email:    "alice@example.com",
		Password: "secret-password",
	}, "", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))
}

func TestAuthenticate(t *testing.T) {
	svc, db := newUserService(t)
	createUser(t, db, "alice")

	user, err := svc.Authenticate("alice", "secret-password")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	// 邮箱也能登录
	user, err = svc.Authenticate("alice@example.com", "secret-password")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	// 密码错误
	_, err = svc.Authenticate("alice", "wrong-password")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthentication))

	// 用户不存在时同样的错误，不泄露账号是否存在
	_, err = svc.Authenticate("nobody", "secret-password")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthentication))
}

func TestAuthenticate_BannedReturnsUser(t *testing.T) {
	svc, db := newUserService(t)
	u := createUser(t, db, "alice")
	reason := "spamming"
	require.NoError(t, db.Model(u).Updates(map[string]interface{}{
		"is_banned": true, "ban_reason": reason,
	}).Error)

	// 封禁用户返回Authorization错误，同时带回用户以便展示封禁原因
	user, err := svc.Authenticate("alice", "secret-password")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))
	require.NotNil(t, user)
	require.NotNil(t, user.BanReason)
	assert.Equal(t, reason, *user.BanReason)
}

func TestBan_PreservesRoleAssignments(t *testing.T) {
	svc, db := newUserService(t)
	user := createUser(t, db, "alice")
	role := createRole(t, db, "member", true)
	assignRole(t, db, user.ID, role.ID)

	require.NoError(t, svc.Ban(user.ID, "spamming", nil))

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.True(t, reloaded.IsBanned)
	require.NotNil(t, reloaded.BanReason)
	assert.Equal(t, "spamming", *reloaded.BanReason)

	// 角色分配保留，解封后权限自动恢复
	var count int64
	require.NoError(t, db.Model(&models.UserRole{}).
		Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestBan_AlreadyBanned(t *testing.T) {
	svc, db := newUserService(t)
	user := createUser(t, db, "alice")

	require.NoError(t, svc.Ban(user.ID, "first", nil))
	err := svc.Ban(user.ID, "second", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))
}

func TestUnban(t *testing.T) {
	svc, db := newUserService(t)
	user := createUser(t, db, "alice")

	// 未封禁时解封是冲突
	err := svc.Unban(user.ID, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	require.NoError(t, svc.Ban(user.ID, "spamming", nil))
	require.NoError(t, svc.Unban(user.ID, nil))

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.False(t, reloaded.IsBanned)
	assert.Nil(t, reloaded.BanReason)
}

func TestFollow(t *testing.T) {
	svc, db := newUserService(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	// 不能关注自己
	err := svc.Follow(alice.ID, alice.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	require.NoError(t, svc.Follow(alice.ID, bob.ID))

	// 重复关注是冲突
	err = svc.Follow(alice.ID, bob.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	followers, following, err := svc.FollowCounts(bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), followers)
	assert.Equal(t, int64(0), following)

	// 取消关注幂等
	require.NoError(t, svc.Unfollow(alice.ID, bob.ID))
	require.NoError(t, svc.Unfollow(alice.ID, bob.ID))

	followers, _, err = svc.FollowCounts(bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), followers)
}

func TestBadges(t *testing.T) {
	svc, db := newUserService(t)
	user := createUser(t, db, "alice")

	badges, err := svc.Badges(user.ID)
	require.NoError(t, err)
	assert.Empty(t, badges)

	require.NoError(t, svc.AddBadge(user.ID, "founder"))
	require.NoError(t, svc.AddBadge(user.ID, "veteran"))
	// 重复授予不报错也不重复
	require.NoError(t, svc.AddBadge(user.ID, "founder"))

	badges, err = svc.Badges(user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"founder", "veteran"}, badges)

	require.NoError(t, svc.RemoveBadge(user.ID, "founder"))
	err = svc.RemoveBadge(user.ID, "founder")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestListWithPage_Filters(t *testing.T) {
	svc, db := newUserService(t)
	alice := createUser(t, db, "alice")
	createUser(t, db, "bob")
	role := createRole(t, db, "moderator", false)
	assignRole(t, db, alice.ID, role.ID)
	require.NoError(t, svc.Ban(alice.ID, "spamming", nil))

	users, total, err := svc.ListWithPage(UserListFilter{Keyword: "ali"}, defaultPageParams())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)

	users, total, err = svc.ListWithPage(UserListFilter{Role: "moderator"}, defaultPageParams())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, users, 1)
	// 计数后的列表查询仍返回完整字段
	assert.Equal(t, "alice", users[0].Username)
	assert.NotEmpty(t, users[0].Email)
	assert.True(t, users[0].IsBanned)
	require.Len(t, users[0].Roles, 1)
	assert.Equal(t, "moderator", users[0].Roles[0].Name)

	_, total, err = svc.ListWithPage(UserListFilter{Status: "banned"}, defaultPageParams())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = svc.ListWithPage(UserListFilter{Status: "active"}, defaultPageParams())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

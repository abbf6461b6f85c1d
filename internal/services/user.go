package services

import (
	"encoding/json"
	"errors"
	"time"

	"gcrp/internal/models"
	apperrors "gcrp/pkg/errors"
	"gcrp/pkg/pagination"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserService 用户服务：注册、认证、封禁、资料与社交关系
type UserService struct {
	db       *gorm.DB
	roles    *RoleService
	activity *ActivityService
	sync     *DiscordSyncService // 可为nil
}

func NewUserService(db *gorm.DB, roles *RoleService, activity *ActivityService, sync *DiscordSyncService) *UserService {
	return &UserService{db: db, roles: roles, activity: activity, sync: sync}
}

// RegisterInput 注册入参
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	DiscordID *string
}

// Register 注册用户：唯一性检查、写入用户和默认角色在同一事务内完成。
// 没有配置默认角色时注册直接失败，避免出现零角色用户。
func (s *UserService) Register(input RegisterInput, ip, userAgent string) (*models.User, error) {
	defaultRole, err := s.roles.GetDefault()
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return nil, apperrors.NewStorageMessage("No default role configured")
		}
		return nil, err
	}

	user := &models.User{
		Username:  input.Username,
		Email:     input.Email,
		DiscordID: input.DiscordID,
	}
	if err := user.SetPassword(input.Password); err != nil {
		return nil, apperrors.NewStorage(err)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&models.User{}).Where("username = ? OR email = ?", input.Username, input.Email)
		if input.DiscordID != nil && *input.DiscordID != "" {
			query = tx.Model(&models.User{}).
				Where("username = ? OR email = ? OR discord_id = ?", input.Username, input.Email, *input.DiscordID)
		}
		var count int64
		if err := query.Count(&count).Error; err != nil {
			return apperrors.NewStorage(err)
		}
		if count > 0 {
			return apperrors.NewConflict("User already exists with this email, username, or Discord ID")
		}
		if err := tx.Create(user).Error; err != nil {
			return apperrors.NewStorage(err)
		}
		userRole := &models.UserRole{UserID: user.ID, RoleID: defaultRole.ID}
		if err := tx.Create(userRole).Error; err != nil {
			return apperrors.NewStorage(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(&user.ID, models.ActivityRegister, map[string]interface{}{
		"username": user.Username,
	}, ip, userAgent)
	if s.sync != nil {
		s.sync.QueueRoleSync(user.ID)
	}
	return s.GetByID(user.ID)
}

// Authenticate 校验用户名（或邮箱）和密码。
// 被封禁的用户连同封禁原因一起返回，由上层拼装响应。
func (s *UserService) Authenticate(identifier, password string) (*models.User, error) {
	var user models.User
	err := s.db.Preload("Roles").
		Where("username = ? OR email = ?", identifier, identifier).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewAuthentication("Invalid credentials")
	}
	if err != nil {
		return nil, apperrors.NewStorage(err)
	}
	if !user.CheckPassword(password) {
		return nil, apperrors.NewAuthentication("Invalid credentials")
	}
	if user.IsBanned {
		return &user, apperrors.NewAuthorization("Account is banned")
	}
	return &user, nil
}

// UpdateLastLogin 记录登录时间
func (s *UserService) UpdateLastLogin(userID uint, ip, userAgent string) error {
	now := time.Now()
	if err := s.db.Model(&models.User{}).Where("id = ?", userID).
		Update("last_login_at", now).Error; err != nil {
		return apperrors.NewStorage(err)
	}
	s.activity.Record(&userID, models.ActivityLogin, nil, ip, userAgent)
	return nil
}

// GetByID 按ID获取用户（带角色和权限）
func (s *UserService) GetByID(userID uint) (*models.User, error) {
	var user models.User
	err := s.db.Preload("Roles.Permissions").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("User not found")
	}
	if err != nil {
		return nil, apperrors.NewStorage(err)
	}
	return &user, nil
}

// GetByUsername 按用户名获取用户（公开主页用）
func (s *UserService) GetByUsername(username string) (*models.User, error) {
	var user models.User
	err := s.db.Preload("Roles").Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("User not found")
	}
	if err != nil {
		return nil, apperrors.NewStorage(err)
	}
	return &user, nil
}

// Ban 封禁用户。保留角色分配记录，解封后权限自动恢复。
func (s *UserService) Ban(userID uint, reason string, actor *uint) error {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewNotFound("User not found")
		}
		return apperrors.NewStorage(err)
	}
	if user.IsBanned {
		return apperrors.NewConflict("User is already banned")
	}
	updates := map[string]interface{}{"is_banned": true, "ban_reason": reason}
	if err := s.db.Model(&user).Updates(updates).Error; err != nil {
		return apperrors.NewStorage(err)
	}
	s.activity.Record(actor, models.ActivityBan, map[string]interface{}{
		"target_user_id": userID,
		"reason":         reason,
	}, "", "")
	if s.sync != nil {
		s.sync.QueueBan(userID, reason)
	}
	return nil
}

// Unban 解封用户
func (s *UserService) Unban(userID uint, actor *uint) error {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewNotFound("User not found")
		}
		return apperrors.NewStorage(err)
	}
	if !user.IsBanned {
		return apperrors.NewConflict("User is not banned")
	}
	updates := map[string]interface{}{"is_banned": false, "ban_reason": nil}
	if err := s.db.Model(&user).Updates(updates).Error; err != nil {
		return apperrors.NewStorage(err)
	}
	s.activity.Record(actor, models.ActivityUnban, map[string]interface{}{
		"target_user_id": userID,
	}, "", "")
	if s.sync != nil {
		s.sync.QueueUnban(userID)
	}
	return nil
}

// UpdateBio 更新个人简介
func (s *UserService) UpdateBio(userID uint, bio string) error {
	if len(bio) > 1000 {
		return apperrors.NewValidation("Bio must be at most 1000 characters")
	}
	result := s.db.Model(&models.User{}).Where("id = ?", userID).Update("bio", bio)
	if result.Error != nil {
		return apperrors.NewStorage(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFound("User not found")
	}
	s.activity.Record(&userID, models.ActivityProfileUpdate, map[string]interface{}{
		"field": "bio",
	}, "", "")
	return nil
}

// SetAvatar 设置头像路径（上传由handler完成）
func (s *UserService) SetAvatar(userID uint, path string) error {
	return s.setProfileImage(userID, "avatar", path)
}

// SetBanner 设置横幅路径
func (s *UserService) SetBanner(userID uint, path string) error {
	return s.setProfileImage(userID, "banner", path)
}

func (s *UserService) setProfileImage(userID uint, field, path string) error {
	result := s.db.Model(&models.User{}).Where("id = ?", userID).Update(field, path)
	if result.Error != nil {
		return apperrors.NewStorage(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFound("User not found")
	}
	s.activity.Record(&userID, models.ActivityProfileUpdate, map[string]interface{}{
		"field": field,
	}, "", "")
	return nil
}

// ========== 关注关系 ==========

// Follow 关注用户。不能关注自己，重复关注返回冲突。
func (s *UserService) Follow(followerID, followedID uint) error {
	if followerID == followedID {
		return apperrors.NewValidation("Cannot follow yourself")
	}
	var target models.User
	if err := s.db.First(&target, followedID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewNotFound("User not found")
		}
		return apperrors.NewStorage(err)
	}
	var count int64
	if err := s.db.Model(&models.Follow{}).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Count(&count).Error; err != nil {
		return apperrors.NewStorage(err)
	}
	if count > 0 {
		return apperrors.NewConflict("Already following this user")
	}
	follow := &models.Follow{FollowerID: followerID, FollowedID: followedID}
	if err := s.db.Create(follow).Error; err != nil {
		return apperrors.NewStorage(err)
	}
	s.activity.Record(&followerID, models.ActivityFollow, map[string]interface{}{
		"target_user_id": followedID,
	}, "", "")
	return nil
}

// Unfollow 取消关注。未关注时直接返回成功（幂等）。
func (s *UserService) Unfollow(followerID, followedID uint) error {
	result := s.db.Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Delete(&models.Follow{})
	if result.Error != nil {
		return apperrors.NewStorage(result.Error)
	}
	if result.RowsAffected > 0 {
		s.activity.Record(&followerID, models.ActivityUnfollow, map[string]interface{}{
			"target_user_id": followedID,
		}, "", "")
	}
	return nil
}

// Followers 粉丝列表
func (s *UserService) Followers(userID uint) ([]*models.User, error) {
	var users []*models.User
	err := s.db.Joins("JOIN follows ON follows.follower_id = users.id").
		Where("follows.followed_id = ?", userID).
		Order("follows.created_at DESC").
		Find(&users).Error
	if err != nil {
		return nil, apperrors.NewStorage(err)
	}
	return users, nil
}

// Following 关注列表
func (s *UserService) Following(userID uint) ([]*models.User, error) {
	var users []*models.User
	err := s.db.Joins("JOIN follows ON follows.followed_id = users.id").
		Where("follows.follower_id = ?", userID).
		Order("follows.created_at DESC").
		Find(&users).Error
	if err != nil {
		return nil, apperrors.NewStorage(err)
	}
	return users, nil
}

// FollowCounts 关注/粉丝数
func (s *UserService) FollowCounts(userID uint) (followers int64, following int64, err error) {
	if err = s.db.Model(&models.Follow{}).Where("followed_id = ?", userID).Count(&followers).Error; err != nil {
		return 0, 0, apperrors.NewStorage(err)
	}
	if err = s.db.Model(&models.Follow{}).Where("follower_id = ?", userID).Count(&following).Error; err != nil {
		return 0, 0, apperrors.NewStorage(err)
	}
	return followers, following, nil
}

// IsFollowing 是否已关注
func (s *UserService) IsFollowing(followerID, followedID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.Follow{}).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Count(&count).Error
	if err != nil {
		return false, apperrors.NewStorage(err)
	}
	return count > 0, nil
}

// ========== 徽章 ==========

// Badges 用户徽章列表
func (s *UserService) Badges(userID uint) ([]string, error) {
	user, err := s.GetByID(userID)
	if err != nil {
		return nil, err
	}
	return decodeBadges(user.Badges), nil
}

// AddBadge 授予徽章，重复授予直接返回成功
func (s *UserService) AddBadge(userID uint, badge string) error {
	if badge == "" {
		return apperrors.NewValidation("Badge name is required")
	}
	user, err := s.GetByID(userID)
	if err != nil {
		return err
	}
	badges := decodeBadges(user.Badges)
	for _, b := range badges {
		if b == badge {
			return nil
		}
	}
	badges = append(badges, badge)
	return s.saveBadges(userID, badges)
}

// RemoveBadge 移除徽章
func (s *UserService) RemoveBadge(userID uint, badge string) error {
	user, err := s.GetByID(userID)
	if err != nil {
		return err
	}
	badges := decodeBadges(user.Badges)
	kept := make([]string, 0, len(badges))
	for _, b := range badges {
		if b != badge {
			kept = append(kept, b)
		}
	}
	if len(kept) == len(badges) {
		return apperrors.NewNotFound("User does not have this badge")
	}
	return s.saveBadges(userID, kept)
}

func (s *UserService) saveBadges(userID uint, badges []string) error {
	raw, err := json.Marshal(badges)
	if err != nil {
		return apperrors.NewStorage(err)
	}
	if err := s.db.Model(&models.User{}).Where("id = ?", userID).
		Update("badges", datatypes.JSON(raw)).Error; err != nil {
		return apperrors.NewStorage(err)
	}
	return nil
}

func decodeBadges(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var badges []string
	if err := json.Unmarshal(raw, &badges); err != nil {
		return []string{}
	}
	return badges
}

// ========== 管理列表与统计 ==========

// UserListFilter 用户列表筛选
type UserListFilter struct {
	Keyword string // 匹配用户名或邮箱
	Role    string // 角色代码
	Status  string // banned / active
}

// ListWithPage 后台用户分页列表
func (s *UserService) ListWithPage(filter UserListFilter, params *pagination.PageParams) ([]*models.User, int64, error) {
	query := s.db.Model(&models.User{})
	if filter.Keyword != "" {
		like := "%" + filter.Keyword + "%"
		query = query.Where("username LIKE ? OR email LIKE ?", like, like)
	}
	if filter.Role != "" {
		query = query.Joins("JOIN user_roles ON user_roles.user_id = users.id").
			Joins("JOIN roles ON roles.id = user_roles.role_id").
			Where("roles.name = ?", filter.Role)
	}
	switch filter.Status {
	case "banned":
		query = query.Where("is_banned = ?", true)
	case "active":
		query = query.Where("is_banned = ?", false)
	}

	// 计数用独立会话，避免DISTINCT子句残留到列表查询的SELECT上
	var total int64
	if err := query.Session(&gorm.Session{}).Distinct("users.id").Count(&total).Error; err != nil {
		return nil, 0, apperrors.NewStorage(err)
	}
	var users []*models.User
	err := query.Preload("Roles").
		Order("users.created_at DESC").
		Offset(params.GetOffset()).Limit(params.GetLimit()).
		Find(&users).Error
	if err != nil {
		return nil, 0, apperrors.NewStorage(err)
	}
	return users, total, nil
}

// DashboardStats 后台仪表盘统计
type DashboardStats struct {
	TotalUsers          int64          `json:"total_users"`
	BannedUsers         int64          `json:"banned_users"`
	TotalApplications   int64          `json:"total_applications"`
	PendingApplications int64          `json:"pending_applications"`
	OverdueApplications int64          `json:"overdue_applications"`
	RecentUsers         []*models.User `json:"recent_users"`
}

// GetDashboardStats 仪表盘统计数据
func (s *UserService) GetDashboardStats() (*DashboardStats, error) {
	stats := &DashboardStats{}
	if err := s.db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, apperrors.NewStorage(err)
	}
	if err := s.db.Model(&models.User{}).Where("is_banned = ?", true).Count(&stats.BannedUsers).Error; err != nil {
		return nil, apperrors.NewStorage(err)
	}
	if err := s.db.Model(&models.Application{}).Count(&stats.TotalApplications).Error; err != nil {
		return nil, apperrors.NewStorage(err)
	}
	if err := s.db.Model(&models.Application{}).
		Where("status = ?", models.ApplicationStatusPending).
		Count(&stats.PendingApplications).Error; err != nil {
		return nil, apperrors.NewStorage(err)
	}
	cutoff := time.Now().Add(-models.OverdueThreshold)
	if err := s.db.Model(&models.Application{}).
		Where("status = ? AND created_at < ?", models.ApplicationStatusPending, cutoff).
		Count(&stats.OverdueApplications).Error; err != nil {
		return nil, apperrors.NewStorage(err)
	}
	if err := s.db.Order("created_at DESC").Limit(5).Find(&stats.RecentUsers).Error; err != nil {
		return nil, apperrors.NewStorage(err)
	}
	return stats, nil
}

// Delete 删除用户。关联的角色分配、关注、通知由外键级联清理。
func (s *UserService) Delete(userID uint) error {
	result := s.db.Delete(&models.User{}, userID)
	if result.Error != nil {
		return apperrors.NewStorage(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFound("User not found")
	}
	return nil
}

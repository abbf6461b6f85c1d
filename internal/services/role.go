package services

import (
	"errors"
	"fmt"
	"regexp"

	"gcrp/internal/models"
	apperrors "gcrp/pkg/errors"
	"gcrp/pkg/pagination"

	"gorm.io/gorm"
)

// roleNamePattern 角色代码：2-50位小写字母、数字、下划线
var roleNamePattern = regexp.MustCompile(`^[a-z0-9_]{2,50}$`)

// RoleService 角色管理服务
type RoleService struct {
	db   *gorm.DB
	sync *DiscordSyncService // 可为nil（未配置Discord时）
}

func NewRoleService(db *gorm.DB, sync *DiscordSyncService) *RoleService {
	return &RoleService{db: db, sync: sync}
}

// CreateRoleInput 创建角色入参
type CreateRoleInput struct {
	Name          string
	DisplayName   string
	Description   string
	Color         string
	DiscordRoleID *string
	IsDefault     bool
	Priority      int
	Permissions   []string
	CreatedBy     *uint
}

// Create 创建角色并挂接权限。设为默认角色时在同一事务内清除其他默认标记。
func (s *RoleService) Create(input CreateRoleInput) (*models.Role, error) {
	if !roleNamePattern.MatchString(input.Name) {
		return nil, apperrors.NewValidation("Role name must be 2-50 lowercase letters, digits, or underscores")
	}
	if input.DisplayName == "" {
		return nil, apperrors.NewValidation("Display name is required")
	}
	for _, code := range input.Permissions {
		if !models.ValidPermissionCode(code) {
			return nil, apperrors.NewValidation(fmt.Sprintf("Unknown permission code: %s", code))
		}
	}

	role := &models.Role{
		Name:          input.Name,
		DisplayName:   input.DisplayName,
		Description:   input.Description,
		DiscordRoleID: input.DiscordRoleID,
		IsDefault:     input.IsDefault,
		IsActive:      true,
		Priority:      input.Priority,
		CreatedBy:     input.CreatedBy,
	}
	if input.Color != "" {
		role.Color = input.Color
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Role{}).Where("name = ?", input.Name).Count(&count).Error; err != nil {
			return apperrors.NewStorage(err)
		}
		if count > 0 {
			return apperrors.NewConflict("Role name already exists")
		}
		if input.IsDefault {
			if err := tx.Model(&models.Role{}).Where("is_default = ?", true).
				Update("is_default", false).Error; err != nil {
				return apperrors.NewStorage(err)
			}
		}
		if err := tx.Create(role).Error; err != nil {
			return apperrors.NewStorage(err)
		}
		if len(input.Permissions) > 0 {
			var perms []models.Permission
			if err := tx.Where("code IN ?", input.Permissions).Find(&perms).Error; err != nil {
				return apperrors.NewStorage(err)
			}
			if err := tx.Model(role).Association("Permissions").Append(&perms); err != nil {
				return apperrors.NewStorage(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(role.ID)
}

// GetByID 按ID获取角色（带权限）
func (s *RoleService) GetByID(roleID uint) (*models.Role, error) {
	var role models.Role
	err := s.db.Preload("Permissions").First(&role, roleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("Role not found")
	}
	if err != nil {
		return nil, apperrors.NewStorage(err)
	}
	return &role, nil
}

// List 角色列表。activeOnly为true时只返回启用角色（公开接口用）。
func (s *RoleService) List(activeOnly bool) ([]*models.Role, error) {
	var roles []*models.Role
	query := s.db.Preload("Permissions")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Order("priority DESC, name ASC").Find(&roles).Error; err != nil {
		return nil, apperrors.NewStorage(err)
	}
	return roles, nil
}

// UpdateRoleInput 更新角色入参，nil字段不修改
type UpdateRoleInput struct {
	DisplayName   *string
	Description   *string
	Color         *string
	DiscordRoleID *string
	Priority      *int
	Permissions   []string // nil不动，空切片清空
}

// Update 更新角色。角色代码（name）创建后不可改。
func (s *RoleService) Update(roleID uint, input UpdateRoleInput) (*models.Role, error) {
	if input.Permissions != nil {
		for _, code := range input.Permissions {
			if !models.ValidPermissionCode(code) {
				return nil, apperrors.NewValidation(fmt.Sprintf("Unknown permission code: %s", code))
			}
		}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := tx.First(&role, roleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("Role not found")
			}
			return apperrors.NewStorage(err)
		}

		updates := map[string]interface{}{}
		if input.DisplayName != nil {
			if *input.DisplayName == "" {
				return apperrors.NewValidation("Display name is required")
			}
			updates["display_name"] = *input.DisplayName
		}
		if input.Description != nil {
			updates["description"] = *input.Description
		}
		if input.Color != nil {
			updates["color"] = *input.Color
		}
		if input.DiscordRoleID != nil {
			updates["discord_role_id"] = *input.DiscordRoleID
		}
		if input.Priority != nil {
			updates["priority"] = *input.Priority
		}
		if len(updates) > 0 {
			if err := tx.Model(&role).Updates(updates).Error; err != nil {
				return apperrors.NewStorage(err)
			}
		}

		if input.Permissions != nil {
			var perms []models.Permission
			if len(input.Permissions) > 0 {
				if err := tx.Where("code IN ?", input.Permissions).Find(&perms).Error; err != nil {
					return apperrors.NewStorage(err)
				}
			}
			if err := tx.Model(&role).Association("Permissions").Replace(&perms); err != nil {
				return apperrors.NewStorage(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(roleID)
}

// SetActive 启用/停用角色。停用后的角色不参与权限计算，
// 也不能再设为默认角色。
func (s *RoleService) SetActive(roleID uint, active bool) error {
	result := s.db.Model(&models.Role{}).Where("id = ?", roleID).Update("is_active", active)
	if result.Error != nil {
		return apperrors.NewStorage(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFound("Role not found")
	}
	return nil
}

// Delete 删除角色。仍有用户持有的角色拒绝删除，应先停用。
func (s *RoleService) Delete(roleID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := tx.First(&role, roleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("Role not found")
			}
			return apperrors.NewStorage(err)
		}
		var assigned int64
		if err := tx.Model(&models.UserRole{}).Where("role_id = ?", roleID).Count(&assigned).Error; err != nil {
			return apperrors.NewStorage(err)
		}
		if assigned > 0 {
			return apperrors.NewConflict("Role is assigned to users and cannot be deleted")
		}
		if err := tx.Model(&role).Association("Permissions").Clear(); err != nil {
			return apperrors.NewStorage(err)
		}
		if err := tx.Delete(&role).Error; err != nil {
			return apperrors.NewStorage(err)
		}
		return nil
	})
}

// SetDefault 设置默认角色。同一事务内先清除其他角色的默认标记，
// 保证任意时刻最多只有一个默认角色。
func (s *RoleService) SetDefault(roleID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := tx.First(&role, roleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("Role not found")
			}
			return apperrors.NewStorage(err)
		}
		if !role.IsActive {
			return apperrors.NewConflict("Inactive role cannot be the default role")
		}
		if err := tx.Model(&models.Role{}).Where("id <> ?", roleID).
			Where("is_default = ?", true).Update("is_default", false).Error; err != nil {
			return apperrors.NewStorage(err)
		}
		if err := tx.Model(&role).Update("is_default", true).Error; err != nil {
			return apperrors.NewStorage(err)
		}
		return nil
	})
}

// GetDefault 获取当前默认角色
func (s *RoleService) GetDefault() (*models.Role, error) {
	var role models.Role
	err := s.db.Where("is_default = ? AND is_active = ?", true, true).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("No default role configured")
	}
	if err != nil {
		return nil, apperrors.NewStorage(err)
	}
	return &role, nil
}

// AssignRole 给用户分配角色，记录分配人。成功后触发Discord身份组同步。
func (s *RoleService) AssignRole(userID, roleID uint, assignedBy *uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("User not found")
			}
			return apperrors.NewStorage(err)
		}
		var role models.Role
		if err := tx.First(&role, roleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("Role not found")
			}
			return apperrors.NewStorage(err)
		}
		var count int64
		if err := tx.Model(&models.UserRole{}).
			Where("user_id = ? AND role_id = ?", userID, roleID).Count(&count).Error; err != nil {
			return apperrors.NewStorage(err)
		}
		if count > 0 {
			return apperrors.NewConflict("User already has this role")
		}
		userRole := &models.UserRole{UserID: userID, RoleID: roleID, AssignedBy: assignedBy}
		if err := tx.Create(userRole).Error; err != nil {
			return apperrors.NewStorage(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if s.sync != nil {
		s.sync.QueueRoleSync(userID)
	}
	return nil
}

// RemoveRole 移除用户角色。成功后触发Discord身份组同步。
func (s *RoleService) RemoveRole(userID, roleID uint) error {
	result := s.db.Where("user_id = ? AND role_id = ?", userID, roleID).Delete(&models.UserRole{})
	if result.Error != nil {
		return apperrors.NewStorage(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFound("User does not have this role")
	}
	if s.sync != nil {
		s.sync.QueueRoleSync(userID)
	}
	return nil
}

// RolesOfUser 用户持有的角色（含已停用的，管理界面展示用）
func (s *RoleService) RolesOfUser(userID uint) ([]*models.Role, error) {
	var user models.User
	err := s.db.Preload("Roles").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("User not found")
	}
	if err != nil {
		return nil, apperrors.NewStorage(err)
	}
	roles := make([]*models.Role, 0, len(user.Roles))
	for i := range user.Roles {
		roles = append(roles, &user.Roles[i])
	}
	return roles, nil
}

// MembersOfRole 持有某角色的用户分页列表
func (s *RoleService) MembersOfRole(roleID uint, params *pagination.PageParams) ([]*models.User, int64, error) {
	if _, err := s.GetByID(roleID); err != nil {
		return nil, 0, err
	}
	var total int64
	if err := s.db.Model(&models.UserRole{}).Where("role_id = ?", roleID).Count(&total).Error; err != nil {
		return nil, 0, apperrors.NewStorage(err)
	}
	var users []*models.User
	err := s.db.Joins("JOIN user_roles ON user_roles.user_id = users.id").
		Where("user_roles.role_id = ?", roleID).
		Order("users.username ASC").
		Offset(params.GetOffset()).Limit(params.GetLimit()).
		Find(&users).Error
	if err != nil {
		return nil, 0, apperrors.NewStorage(err)
	}
	return users, total, nil
}

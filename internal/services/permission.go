package services

import (
	"errors"
	"sort"

	"gcrp/internal/models"
	apperrors "gcrp/pkg/errors"

	"gorm.io/gorm"
)

// PermissionService 有效权限集计算：用户所有启用角色权限代码的去重并集。
// 纯读操作，没有额外的提权逻辑。
type PermissionService struct {
	db *gorm.DB
}

func NewPermissionService(db *gorm.DB) *PermissionService {
	return &PermissionService{db: db}
}

// GetUserPermissions 计算用户的有效权限集。
// 用户不存在返回空集而不是报错——"没有任何角色"是合法状态；
// 存储层故障原样上抛，不会被吞成"无权限"。
func (s *PermissionService) GetUserPermissions(userID uint) ([]string, error) {
	var user models.User
	err := s.db.Preload("Roles.Permissions").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, apperrors.NewStorage(err)
	}

	set := make(map[string]struct{})
	for _, role := range user.Roles {
		if !role.IsActive {
			continue
		}
		for _, permission := range role.Permissions {
			set[permission.Code] = struct{}{}
		}
	}

	// 排序保证返回稳定
	codes := make([]string, 0, len(set))
	for code := range set {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, nil
}

// HasPermission 检查用户是否持有指定权限
func (s *PermissionService) HasPermission(userID uint, code string) (bool, error) {
	codes, err := s.GetUserPermissions(userID)
	if err != nil {
		return false, err
	}
	for _, c := range codes {
		if c == code {
			return true, nil
		}
	}
	return false, nil
}

// HasAnyPermission 检查用户是否持有任意一个指定权限
func (s *PermissionService) HasAnyPermission(userID uint, codes ...string) (bool, error) {
	held, err := s.GetUserPermissions(userID)
	if err != nil {
		return false, err
	}
	heldSet := make(map[string]struct{}, len(held))
	for _, c := range held {
		heldSet[c] = struct{}{}
	}
	for _, c := range codes {
		if _, ok := heldSet[c]; ok {
			return true, nil
		}
	}
	return false, nil
}

// ListCatalog 权限目录（可按模块筛选）
func (s *PermissionService) ListCatalog(module string) ([]*models.Permission, error) {
	var permissions []*models.Permission
	query := s.db.Model(&models.Permission{})
	if module != "" {
		query = query.Where("module = ?", module)
	}
	if err := query.Order("module ASC, action ASC").Find(&permissions).Error; err != nil {
		return nil, apperrors.NewStorage(err)
	}
	return permissions, nil
}

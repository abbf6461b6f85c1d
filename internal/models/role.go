package models

import "time"

// Role 角色模型。停用是逻辑操作（is_active=false），已被分配过的
// 角色不做物理删除，保留分配历史。
type Role struct {
	BaseModel
	Name          string  `gorm:"unique;not null;size:50;index" json:"name"`     // 角色代码，如 "moderator"
	DisplayName   string  `gorm:"not null;size:100" json:"display_name"`        // 展示名称，如 "Moderator"
	Description   string  `gorm:"size:255" json:"description"`                  // 角色描述
	Color         string  `gorm:"size:16;default:'#4fc3f7'" json:"color"`       // 展示颜色
	DiscordRoleID *string `gorm:"size:32" json:"discord_role_id"`               // 对应的Discord身份组
	IsDefault     bool    `gorm:"default:false" json:"is_default"`              // 注册时自动授予
	IsActive      bool    `gorm:"default:true;index" json:"is_active"`          // 停用后不参与权限计算
	Priority      int     `gorm:"default:0" json:"priority"`                    // 越大越高，用于排序展示
	CreatedBy     *uint   `json:"created_by"`

	// 关联关系
	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions,omitempty"`
}

// TableName 表名
func (r *Role) TableName() string {
	return "roles"
}

// RolePermission 角色权限关联表
type RolePermission struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RoleID       uint      `gorm:"not null;uniqueIndex:idx_role_permission;constraint:OnDelete:CASCADE" json:"role_id"`
	PermissionID uint      `gorm:"not null;uniqueIndex:idx_role_permission;constraint:OnDelete:CASCADE" json:"permission_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// PermissionCodes 角色的权限代码列表
func (r *Role) PermissionCodes() []string {
	codes := make([]string, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		codes = append(codes, p.Code)
	}
	return codes
}

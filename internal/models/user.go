package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

// User 用户模型
type User struct {
	BaseModel
	Username     string         `json:"username" gorm:"unique;not null;size:50;index"`
	Email        string         `json:"email" gorm:"unique;not null;size:100;index"`
	PasswordHash string         `json:"-" gorm:"not null;size:255"`
	DiscordID    *string        `json:"discord_id" gorm:"size:32;index"`
	Avatar       *string        `json:"avatar" gorm:"size:255"`
	Banner       *string        `json:"banner" gorm:"size:255"`
	Bio          *string        `json:"bio" gorm:"size:1000"`
	Badges       datatypes.JSON `json:"badges" gorm:"type:json"` // 字符串数组
	IsBanned     bool           `json:"is_banned" gorm:"default:false;index"`
	BanReason    *string        `json:"ban_reason" gorm:"size:255"`
	LastLoginAt  *time.Time     `json:"last_login_at"`

	// 多对多关联
	Roles []Role `gorm:"many2many:user_roles;" json:"roles,omitempty"`
}

// UserRole 用户角色关联表，记录分配人和分配时间。
// (user_id, role_id) 复合唯一，同一角色不能重复持有。
type UserRole struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_user_role;constraint:OnDelete:CASCADE" json:"user_id"`
	RoleID     uint      `gorm:"not null;uniqueIndex:idx_user_role;constraint:OnDelete:CASCADE" json:"role_id"`
	AssignedBy *uint     `json:"assigned_by"` // 谁分配的角色
	CreatedAt  time.Time `json:"assigned_at"`
}

// TableName 表名
func (u *User) TableName() string {
	return "users"
}

// SetPassword 设置密码
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

// CheckPassword 验证密码
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

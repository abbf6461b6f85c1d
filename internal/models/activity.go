package models

import "gorm.io/datatypes"

// ActivityLog 行为审计，只追加。用户删除后记录保留，user_id置空
type ActivityLog struct {
	BaseModel
	UserID    *uint          `gorm:"index" json:"user_id"`
	Action    string         `gorm:"not null;size:50;index" json:"action"`
	Details   datatypes.JSON `gorm:"type:json" json:"details"`
	IPAddress string         `gorm:"size:45" json:"ip_address"`
	UserAgent string         `gorm:"size:255" json:"user_agent"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"-"`
}

// TableName 表名
func (a *ActivityLog) TableName() string {
	return "activity_logs"
}

// 常用动作常量
const (
	ActivityRegister          = "register"
	ActivityLogin             = "login"
	ActivityBan               = "ban"
	ActivityUnban             = "unban"
	ActivityRoleAssigned      = "role_assigned"
	ActivityRoleRemoved       = "role_removed"
	ActivityApplicationSubmit = "application_submit"
	ActivityApplicationStatus = "application_status"
	ActivityProfileUpdate     = "profile_update"
	ActivityFollow            = "follow"
	ActivityUnfollow          = "unfollow"
)

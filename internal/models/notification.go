package models

// Notification 站内通知。创建后不可变，只有归属人可以把它标记为已读
type Notification struct {
	BaseModel
	UserID  uint   `gorm:"not null;index" json:"user_id"`
	Title   string `gorm:"not null;size:200" json:"title"`
	Message string `gorm:"not null;size:1000" json:"message"`
	Type    string `gorm:"size:30;default:'info'" json:"type"`
	IsRead  bool   `gorm:"default:false;index" json:"is_read"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName 表名
func (n *Notification) TableName() string {
	return "notifications"
}

// 通知类型常量
const (
	NotificationTypeInfo              = "info"
	NotificationTypeApplicationUpdate = "application_update"
	NotificationTypeComment           = "comment"
	NotificationTypeSystem            = "system"
)

package models

import "time"

// Application 入职/转岗申请
type Application struct {
	BaseModel
	UserID     uint   `gorm:"not null;index" json:"user_id"` // 申请人
	Type       string `gorm:"not null;size:30;index" json:"type"`
	Department string `gorm:"not null;size:100" json:"department"`
	Position   string `gorm:"not null;size:100" json:"position"`
	Content    string `gorm:"not null;type:text" json:"content"`
	Status     string `gorm:"not null;size:20;default:'pending';index" json:"status"`

	ReviewedBy  *uint      `json:"reviewed_by"` // 最后一次审核操作人
	ReviewedAt  *time.Time `json:"reviewed_at"`
	ReviewNotes *string    `gorm:"size:1000" json:"review_notes"`
	AssignedTo  *uint      `json:"assigned_to"` // 指派的审核人

	// 逾期提醒只发一次，标记发送时间；逾期本身是查询时派生的谓词
	OverdueNotifiedAt *time.Time `json:"-"`

	// 关联关系
	User     *User                `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Reviewer *User                `gorm:"foreignKey:ReviewedBy" json:"reviewer,omitempty"`
	Assignee *User                `gorm:"foreignKey:AssignedTo" json:"assignee,omitempty"`
	Comments []ApplicationComment `gorm:"foreignKey:ApplicationID" json:"comments,omitempty"`
}

// TableName 表名
func (a *Application) TableName() string {
	return "applications"
}

// 申请类型常量
const (
	ApplicationTypeNewMember          = "new_member"
	ApplicationTypeDepartmentTransfer = "department_transfer"
	ApplicationTypeRoleUpgrade        = "role_upgrade"
	ApplicationTypeCustom             = "custom"
)

// 申请状态常量
const (
	ApplicationStatusPending     = "pending"
	ApplicationStatusUnderReview = "under_review"
	ApplicationStatusApproved    = "approved"
	ApplicationStatusRejected    = "rejected"
	ApplicationStatusOnHold      = "on_hold"
)

// OverdueThreshold 待处理申请的逾期阈值
const OverdueThreshold = 7 * 24 * time.Hour

// ValidApplicationType 校验申请类型
func ValidApplicationType(t string) bool {
	switch t {
	case ApplicationTypeNewMember, ApplicationTypeDepartmentTransfer,
		ApplicationTypeRoleUpgrade, ApplicationTypeCustom:
		return true
	default:
		return false
	}
}

// ValidApplicationStatus 校验申请状态
func ValidApplicationStatus(s string) bool {
	switch s {
	case ApplicationStatusPending, ApplicationStatusUnderReview,
		ApplicationStatusApproved, ApplicationStatusRejected, ApplicationStatusOnHold:
		return true
	default:
		return false
	}
}

// IsTerminal 是否处于终态。终态申请锁定：不再接受状态变更和评论
func (a *Application) IsTerminal() bool {
	return a.Status == ApplicationStatusApproved || a.Status == ApplicationStatusRejected
}

// IsOverdue 逾期判定：待处理且创建时间超过阈值。终态申请无论多旧都不算逾期
func (a *Application) IsOverdue(now time.Time) bool {
	return a.Status == ApplicationStatusPending && now.Sub(a.CreatedAt) > OverdueThreshold
}

// ApplicationComment 申请评论；is_internal=true 仅审核人员可见
type ApplicationComment struct {
	BaseModel
	ApplicationID uint   `gorm:"not null;index" json:"application_id"`
	AuthorID      uint   `gorm:"not null;index" json:"author_id"`
	Content       string `gorm:"not null;type:text" json:"content"`
	IsInternal    bool   `gorm:"default:false" json:"is_internal"`

	Application *Application `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"-"`
	Author      *User        `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

// TableName 表名
func (c *ApplicationComment) TableName() string {
	return "application_comments"
}

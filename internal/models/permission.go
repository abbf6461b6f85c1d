package models

// Permission 权限模型。权限代码是封闭集合，角色只能绑定目录中
// 已存在的权限，写入时校验，杜绝手写错码。
type Permission struct {
	BaseModel
	Code        string `gorm:"uniqueIndex;size:100;not null" json:"code"` // 权限代码，如 "applications.approve"
	Name        string `gorm:"size:100;not null" json:"name"`             // 权限名称
	Description string `gorm:"size:255" json:"description"`               // 权限描述
	Module      string `gorm:"size:50;not null;index" json:"module"`      // 所属模块，如 "applications"
	Action      string `gorm:"size:50;not null" json:"action"`            // 操作类型，如 "approve"
}

// 权限代码常量
const (
	PermAdminDashboard = "admin.dashboard"

	PermUsersView   = "users.view"
	PermUsersEdit   = "users.edit"
	PermUsersDelete = "users.delete"
	PermUsersBan    = "users.ban"
	PermUsersUnban  = "users.unban"

	PermRolesView   = "roles.view"
	PermRolesCreate = "roles.create"
	PermRolesEdit   = "roles.edit"
	PermRolesDelete = "roles.delete"
	PermRolesAssign = "roles.assign"

	PermApplicationsView    = "applications.view"
	PermApplicationsCreate  = "applications.create"
	PermApplicationsEdit    = "applications.edit"
	PermApplicationsDelete  = "applications.delete"
	PermApplicationsApprove = "applications.approve"
	PermApplicationsComment = "applications.comment"

	PermContentView   = "content.view"
	PermContentCreate = "content.create"
	PermContentEdit   = "content.edit"
	PermContentDelete = "content.delete"

	PermNotificationsSend   = "notifications.send"
	PermNotificationsManage = "notifications.manage"

	PermDiscordSync   = "discord.sync"
	PermDiscordManage = "discord.manage"
)

// AllPermissionCodes 全部合法权限代码
func AllPermissionCodes() []string {
	return []string{
		PermAdminDashboard,
		PermUsersView, PermUsersEdit, PermUsersDelete, PermUsersBan, PermUsersUnban,
		PermRolesView, PermRolesCreate, PermRolesEdit, PermRolesDelete, PermRolesAssign,
		PermApplicationsView, PermApplicationsCreate, PermApplicationsEdit,
		PermApplicationsDelete, PermApplicationsApprove, PermApplicationsComment,
		PermContentView, PermContentCreate, PermContentEdit, PermContentDelete,
		PermNotificationsSend, PermNotificationsManage,
		PermDiscordSync, PermDiscordManage,
	}
}

var validPermissionCodes = func() map[string]struct{} {
	set := make(map[string]struct{})
	for _, code := range AllPermissionCodes() {
		set[code] = struct{}{}
	}
	return set
}()

// ValidPermissionCode 校验权限代码是否在目录中
func ValidPermissionCode(code string) bool {
	_, ok := validPermissionCodes[code]
	return ok
}

package main

import (
	"fmt"
	"strings"

	"gcrp/internal/models"
	"gcrp/pkg/config"
	"gcrp/pkg/logger"

	"gorm.io/gorm"
)

// seedData 初始化种子数据：权限目录、内置角色、默认管理员
func seedData(db *gorm.DB, cfg *config.Config) error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting seed data initialization...")

	if err := seedPermissions(db); err != nil {
		return fmt.Errorf("初始化权限目录失败: %v", err)
	}
	if err := seedRoles(db); err != nil {
		return fmt.Errorf("初始化内置角色失败: %v", err)
	}
	if err := seedAdminUser(db, cfg); err != nil {
		return fmt.Errorf("创建默认管理员失败: %v", err)
	}

	appLogger.Info("Seed data initialization completed")
	return nil
}

// 权限代码到中文名称的映射
var permissionNames = map[string]string{
	models.PermAdminDashboard:      "后台仪表盘",
	models.PermUsersView:           "查看用户",
	models.PermUsersEdit:           "编辑用户",
	models.PermUsersDelete:         "删除用户",
	models.PermUsersBan:            "封禁用户",
	models.PermUsersUnban:          "解封用户",
	models.PermRolesView:           "查看角色",
	models.PermRolesCreate:         "创建角色",
	models.PermRolesEdit:           "编辑角色",
	models.PermRolesDelete:         "删除角色",
	models.PermRolesAssign:         "分配角色",
	models.PermApplicationsView:    "查看申请",
	models.PermApplicationsCreate:  "提交申请",
	models.PermApplicationsEdit:    "编辑申请",
	models.PermApplicationsDelete:  "删除申请",
	models.PermApplicationsApprove: "审批申请",
	models.PermApplicationsComment: "评论申请",
	models.PermContentView:         "查看内容",
	models.PermContentCreate:       "创建内容",
	models.PermContentEdit:         "编辑内容",
	models.PermContentDelete:       "删除内容",
	models.PermNotificationsSend:   "发送通知",
	models.PermNotificationsManage: "管理通知",
	models.PermDiscordSync:         "触发Discord同步",
	models.PermDiscordManage:       "管理Discord集成",
}

// seedPermissions 按权限代码目录补齐缺失的权限记录，幂等
func seedPermissions(db *gorm.DB) error {
	for _, code := range models.AllPermissionCodes() {
		parts := strings.SplitN(code, ".", 2)
		if len(parts) != 2 {
			return fmt.Errorf("权限代码格式错误: %s", code)
		}
		name := permissionNames[code]
		if name == "" {
			name = code
		}

		var count int64
		if err := db.Model(&models.Permission{}).Where("code = ?", code).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		perm := &models.Permission{
			Code:   code,
			Name:   name,
			Module: parts[0],
			Action: parts[1],
		}
		if err := db.Create(perm).Error; err != nil {
			return err
		}
	}
	return nil
}

// seedRoles 创建内置角色。member是注册默认角色。
func seedRoles(db *gorm.DB) error {
	builtins := []struct {
		name        string
		displayName string
		description string
		priority    int
		isDefault   bool
		permissions []string
	}{
		{
			name:        "admin",
			displayName: "Administrator",
			description: "Full access to all community management features",
			priority:    100,
			permissions: models.AllPermissionCodes(),
		},
		{
			name:        "moderator",
			displayName: "Moderator",
			description: "Reviews applications and moderates the community",
			priority:    50,
			permissions: []string{
				models.PermAdminDashboard,
				models.PermUsersView, models.PermUsersBan, models.PermUsersUnban,
				models.PermApplicationsView, models.PermApplicationsApprove, models.PermApplicationsComment,
				models.PermContentView, models.PermContentEdit,
				models.PermNotificationsSend,
			},
		},
		{
			name:        "member",
			displayName: "Member",
			description: "Regular community member",
			priority:    0,
			isDefault:   true,
			permissions: []string{
				models.PermApplicationsCreate,
				models.PermContentView,
			},
		},
	}

	for _, builtin := range builtins {
		var count int64
		if err := db.Model(&models.Role{}).Where("name = ?", builtin.name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		role := &models.Role{
			Name:        builtin.name,
			DisplayName: builtin.displayName,
			Description: builtin.description,
			Priority:    builtin.priority,
			IsDefault:   builtin.isDefault,
			IsActive:    true,
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(role).Error; err != nil {
				return err
			}
			var perms []models.Permission
			if err := tx.Where("code IN ?", builtin.permissions).Find(&perms).Error; err != nil {
				return err
			}
			return tx.Model(role).Association("Permissions").Append(&perms)
		})
		if err != nil {
			return err
		}
		logger.GetLogger().Infof("内置角色已创建: %s", builtin.name)
	}
	return nil
}

// seedAdminUser 创建默认管理员账号并授予admin角色
func seedAdminUser(db *gorm.DB, cfg *config.Config) error {
	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", cfg.Seed.AdminUsername).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	var adminRole models.Role
	if err := db.Where("name = ?", "admin").First(&adminRole).Error; err != nil {
		return err
	}

	user := &models.User{
		Username: cfg.Seed.AdminUsername,
		Email:    cfg.Seed.AdminEmail,
	}
	if err := user.SetPassword(cfg.Seed.AdminPassword); err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		userRole := &models.UserRole{UserID: user.ID, RoleID: adminRole.ID}
		if err := tx.Create(userRole).Error; err != nil {
			return err
		}
		logger.GetLogger().Infof("默认管理员已创建: %s", user.Username)
		return nil
	})
}

package database

import (
	"gcrp/internal/models"
	"gcrp/pkg/logger"

	"gorm.io/gorm"
)

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting database migration...")

	err := db.AutoMigrate(
		&models.User{},
		&models.Permission{},
		&models.Role{},
		&models.RolePermission{},
		&models.UserRole{},
		&models.Application{},
		&models.ApplicationComment{},
		&models.Notification{},
		&models.ActivityLog{},
		&models.Follow{},
	)
	if err != nil {
		appLogger.Errorf("Database migration failed: %v", err)
		return err
	}

	appLogger.Info("Database migration completed successfully")
	return nil
}

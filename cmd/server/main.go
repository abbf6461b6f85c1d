package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gcrp/internal/database"
	"gcrp/internal/handlers"
	"gcrp/internal/router"
	"gcrp/internal/services"
	"gcrp/pkg/config"
	"gcrp/pkg/jwt"
	"gcrp/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLogger := logger.GetLogger()
	appLogger.Info("Starting GCRP community server...")

	// 初始化数据库
	db, err := database.Connect(cfg.Database)
	if err != nil {
		appLogger.Fatalf("Failed to connect database: %v", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			appLogger.Error("Failed to close database:", err)
		}
	}()

	// 执行数据库迁移
	if err := database.Migrate(db); err != nil {
		appLogger.Fatalf("Failed to migrate database: %v", err)
	}

	// 种子数据
	if err := seedData(db, cfg); err != nil {
		appLogger.Fatalf("Failed to initialize seed data: %v", err)
	}

	// JWT管理器
	tokenDuration, err := time.ParseDuration(cfg.JWT.TokenDuration)
	if err != nil {
		appLogger.Fatalf("Invalid JWT token duration: %v", err)
	}
	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, tokenDuration)

	// Redis同步队列
	syncQueue := database.NewSyncQueue(cfg.Redis)
	defer syncQueue.Close()
	if err := syncQueue.Ping(); err != nil {
		appLogger.Warnf("Redis unavailable, Discord sync disabled: %v", err)
	}

	// 组装服务
	activityService := services.NewActivityService(db)
	notificationService := services.NewNotificationService(db)
	permissionService := services.NewPermissionService(db)
	discordSync := services.NewDiscordSyncService(db, syncQueue)
	roleService := services.NewRoleService(db, discordSync)
	userService := services.NewUserService(db, roleService, activityService, discordSync)
	applicationService := services.NewApplicationService(db, permissionService, notificationService, activityService)

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	// 注册自定义校验规则
	if err := handlers.RegisterValidators(); err != nil {
		appLogger.Fatalf("Failed to register validators: %v", err)
	}

	// Discord桥接（配置齐全时才启动）
	bridge := services.NewDiscordBridge(cfg.Discord, syncQueue)
	if bridge.Enabled() {
		bridge.Start()
		defer bridge.Stop()
	} else {
		appLogger.Info("Discord bridge disabled: bot token or guild ID not configured")
	}

	// 逾期申请扫描
	overdueScheduler := services.NewOverdueScheduler(applicationService, notificationService)
	if err := overdueScheduler.Start(); err != nil {
		appLogger.Errorf("Failed to start overdue scheduler: %v", err)
		// 不影响主服务启动
	}
	defer overdueScheduler.Stop()

	// 设置路由
	r := router.SetupRouter(&router.Deps{
		Config:        cfg,
		DB:            db,
		JWTManager:    jwtManager,
		Users:         userService,
		Roles:         roleService,
		Permissions:   permissionService,
		Applications:  applicationService,
		Notifications: notificationService,
		Activity:      activityService,
		DiscordSync:   discordSync,
		DiscordBridge: bridge,
	})

	// 启动服务器
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	appLogger.Infof("Server started on port %s", cfg.Server.Port)

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	if err := server.Close(); err != nil {
		appLogger.Error("Server forced to shutdown:", err)
	}
	appLogger.Info("Server exited")
}

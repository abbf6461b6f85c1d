package router

import (
	"gcrp/internal/handlers"
	"gcrp/internal/middleware"
	"gcrp/internal/models"
	"gcrp/internal/services"
	"gcrp/pkg/config"
	"gcrp/pkg/jwt"
	"gcrp/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps 路由依赖，由进程启动时组装后注入
type Deps struct {
	Config        *config.Config
	DB            *gorm.DB
	JWTManager    *jwt.Manager
	Users         *services.UserService
	Roles         *services.RoleService
	Permissions   *services.PermissionService
	Applications  *services.ApplicationService
	Notifications *services.NotificationService
	Activity      *services.ActivityService
	DiscordSync   *services.DiscordSyncService
	DiscordBridge *services.DiscordBridge
}

// SetupRouter 设置路由
func SetupRouter(deps *Deps) *gin.Engine {
	router := gin.New()

	// 中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetupCORS(deps.Config))

	// 上传文件静态服务
	router.Static(deps.Config.Upload.PublicPath, deps.Config.Upload.Dir)

	registerRoutes(router, deps)
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine, deps *Deps) {

	auth := middleware.NewAuthMiddleware(deps.Users, deps.Permissions, deps.JWTManager)

	authHandler := handlers.NewAuthHandler(deps.Users, deps.Permissions, deps.Notifications, deps.Applications, deps.JWTManager)
	userHandler := handlers.NewUserHandler(deps.Users, deps.Roles, deps.Permissions)
	profileHandler := handlers.NewProfileHandler(deps.Users, deps.Notifications, deps.Activity, deps.Config.Upload)
	applicationHandler := handlers.NewApplicationHandler(deps.Applications)
	roleHandler := handlers.NewRoleHandler(deps.Roles)
	permissionHandler := handlers.NewPermissionHandler(deps.Permissions)
	adminHandler := handlers.NewAdminHandler(deps.Users, deps.Activity)
	discordHandler := handlers.NewDiscordHandler(deps.DiscordSync, deps.DiscordBridge)

	api := router.Group("/api")
	{
		// 健康检查接口
		api.GET("/health", healthCheck)

		// 认证
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/logout", authHandler.Logout)
			authGroup.POST("/refresh", authHandler.RefreshToken)
			authGroup.GET("/me", auth.RequireLogin(), authHandler.Me)
		}

		// 个人主页
		profile := api.Group("/profile")
		{
			profile.GET("/:username", auth.OptionalLogin(), profileHandler.GetByUsername)
			profile.PUT("", auth.RequireLogin(), profileHandler.UpdateBio)
			profile.POST("/avatar", auth.RequireLogin(), profileHandler.UploadAvatar)
			profile.POST("/banner", auth.RequireLogin(), profileHandler.UploadBanner)
		}

		// 用户：公开的社交接口 + 需要权限的管理接口
		users := api.Group("/users")
		{
			users.GET("/:id/followers", profileHandler.Followers)
			users.GET("/:id/following", profileHandler.Following)
			users.GET("/:id/badges", profileHandler.Badges)
			users.GET("/:id/activity", profileHandler.UserActivity)
			users.POST("/:id/follow", auth.RequireLogin(), profileHandler.Follow)
			users.POST("/:id/unfollow", auth.RequireLogin(), profileHandler.Unfollow)

			users.GET("", auth.RequireLogin(), auth.RequirePermission(models.PermUsersView), userHandler.List)
			users.GET("/:id", auth.RequireLogin(), auth.RequirePermission(models.PermUsersView), userHandler.Get)
			users.DELETE("/:id", auth.RequireLogin(), auth.RequirePermission(models.PermUsersDelete), userHandler.Delete)
			users.POST("/:id/ban", auth.RequireLogin(), auth.RequirePermission(models.PermUsersBan), userHandler.Ban)
			users.POST("/:id/unban", auth.RequireLogin(), auth.RequirePermission(models.PermUsersUnban), userHandler.Unban)
			users.GET("/:id/roles", auth.RequireLogin(), auth.RequirePermission(models.PermRolesView), userHandler.Roles)
			users.POST("/:id/roles", auth.RequireLogin(), auth.RequirePermission(models.PermRolesAssign), userHandler.AssignRole)
			users.DELETE("/:id/roles/:role_id", auth.RequireLogin(), auth.RequirePermission(models.PermRolesAssign), userHandler.RemoveRole)
			users.GET("/:id/permissions", auth.RequireLogin(), auth.RequirePermission(models.PermUsersView), userHandler.Permissions)
			users.POST("/:id/badges", auth.RequireLogin(), auth.RequirePermission(models.PermUsersEdit), userHandler.AddBadge)
			users.DELETE("/:id/badges/:badge", auth.RequireLogin(), auth.RequirePermission(models.PermUsersEdit), userHandler.RemoveBadge)
		}

		// 通知
		api.GET("/notifications", auth.RequireLogin(), profileHandler.Notifications)
		api.PATCH("/notifications/read", auth.RequireLogin(), profileHandler.MarkNotificationsRead)

		// 申请
		applications := api.Group("/applications")
		applications.Use(auth.RequireLogin())
		{
			applications.POST("", applicationHandler.Submit)
			applications.GET("/mine", applicationHandler.Mine)
			applications.GET("/:id", applicationHandler.Get)
			applications.POST("/:id/comments", applicationHandler.AddComment)

			applications.GET("/admin/all", auth.RequirePermission(models.PermApplicationsView), applicationHandler.List)
			applications.GET("/admin/stats", auth.RequirePermission(models.PermApplicationsView), applicationHandler.Stats)
			applications.GET("/admin/overdue", auth.RequirePermission(models.PermApplicationsView), applicationHandler.Overdue)
			applications.PATCH("/:id/status", auth.RequirePermission(models.PermApplicationsApprove), applicationHandler.SetStatus)
			applications.PATCH("/:id/assign", auth.RequirePermission(models.PermApplicationsView), applicationHandler.Assign)
		}

		// 角色：公开列表 + 管理接口
		roles := api.Group("/roles")
		{
			roles.GET("", roleHandler.PublicList)

			roles.GET("/all", auth.RequireLogin(), auth.RequirePermission(models.PermRolesView), roleHandler.List)
			roles.GET("/:id", auth.RequireLogin(), auth.RequirePermission(models.PermRolesView), roleHandler.Get)
			roles.GET("/:id/members", auth.RequireLogin(), auth.RequirePermission(models.PermRolesView), roleHandler.Members)
			roles.POST("", auth.RequireLogin(), auth.RequirePermission(models.PermRolesCreate), roleHandler.Create)
			roles.PUT("/:id", auth.RequireLogin(), auth.RequirePermission(models.PermRolesEdit), roleHandler.Update)
			roles.PATCH("/:id/active", auth.RequireLogin(), auth.RequirePermission(models.PermRolesEdit), roleHandler.SetActive)
			roles.POST("/:id/default", auth.RequireLogin(), auth.RequirePermission(models.PermRolesEdit), roleHandler.SetDefault)
			roles.POST("/:id/permissions", auth.RequireLogin(), auth.RequirePermission(models.PermRolesEdit), roleHandler.SetPermissions)
			roles.DELETE("/:id", auth.RequireLogin(), auth.RequirePermission(models.PermRolesDelete), roleHandler.Delete)
		}

		// 权限目录
		api.GET("/permissions", permissionHandler.Catalog)

		// 管理端概览
		admin := api.Group("/admin")
		admin.Use(auth.RequireLogin(), auth.RequirePermission(models.PermAdminDashboard))
		{
			admin.GET("/dashboard", adminHandler.Dashboard)
			admin.GET("/activity", adminHandler.ActivityLog)
		}

		// Discord同步
		discord := api.Group("/discord")
		discord.Use(auth.RequireLogin())
		{
			discord.POST("/sync-roles/:id", auth.RequirePermission(models.PermDiscordSync), discordHandler.SyncUser)
			discord.POST("/sync-all", auth.RequirePermission(models.PermDiscordSync), discordHandler.SyncAll)
			discord.POST("/ban/:id", auth.RequirePermission(models.PermDiscordManage), discordHandler.Ban)
			discord.GET("/queue", auth.RequirePermission(models.PermDiscordManage), discordHandler.QueueStatus)
			discord.GET("/server-info", auth.RequirePermission(models.PermDiscordManage), discordHandler.ServerInfo)
		}
	}
}

// healthCheck 健康检查
func healthCheck(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

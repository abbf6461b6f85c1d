package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gcrp/internal/middleware"
	"gcrp/internal/models"
	"gcrp/internal/services"
	"gcrp/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupAuthRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Role{}, &models.Permission{},
		&models.UserRole{}, &models.RolePermission{},
		&models.ActivityLog{}, &models.Follow{},
		&models.Notification{}, &models.Application{}, &models.ApplicationComment{},
	))

	// 注册需要默认角色
	member := &models.Role{Name: "member", DisplayName: "Member", IsDefault: true, IsActive: true}
	require.NoError(t, db.Create(member).Error)

	jwtManager := jwt.NewManager("test-secret", time.Hour)
	activity := services.NewActivityService(db)
	roles := services.NewRoleService(db, nil)
	users := services.NewUserService(db, roles, activity, nil)
	permissions := services.NewPermissionService(db)
	notifications := services.NewNotificationService(db)
	applications := services.NewApplicationService(db, permissions, notifications, activity)

	auth := middleware.NewAuthMiddleware(users, permissions, jwtManager)
	handler := NewAuthHandler(users, permissions, notifications, applications, jwtManager)

	router := gin.New()
	router.POST("/api/auth/register", handler.Register)
	router.POST("/api/auth/login", handler.Login)
	router.GET("/api/auth/me", auth.RequireLogin(), handler.Me)
	return router, db
}

func postJSON(router *gin.Engine, path string, payload interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterLoginFlow(t *testing.T) {
	router, _ := setupAuthRouter(t)

	rec := postJSON(router, "/api/auth/register", gin.H{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "secret-password",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var registerBody map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &registerBody))
	assert.Equal(t, true, registerBody["success"])
	assert.NotEmpty(t, registerBody["token"])

	rec = postJSON(router, "/api/auth/login", gin.H{
		"username": "alice",
		"password": "secret-password",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var loginBody map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loginBody))
	token, _ := loginBody["token"].(string)
	require.NotEmpty(t, token)

	// 用令牌访问 /me
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	meRec := httptest.NewRecorder()
	router.ServeHTTP(meRec, req)
	require.Equal(t, http.StatusOK, meRec.Code)

	var meBody map[string]interface{}
	require.NoError(t, json.Unmarshal(meRec.Body.Bytes(), &meBody))
	user, _ := meBody["user"].(map[string]interface{})
	require.NotNil(t, user)
	assert.Equal(t, "alice", user["username"])
}

func TestRegister_ValidationErrors(t *testing.T) {
	router, _ := setupAuthRouter(t)

	rec := postJSON(router, "/api/auth/register", gin.H{
		"username": "al",
		"email":    "not-an-email",
		"password": "short",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Validation failed", body["message"])
	errs, _ := body["errors"].([]interface{})
	assert.NotEmpty(t, errs)
}

func TestRegister_Duplicate(t *testing.T) {
	router, _ := setupAuthRouter(t)

	payload := gin.H{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "secret-password",
	}
	rec := postJSON(router, "/api/auth/register", payload)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(router, "/api/auth/register", payload)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogin_BannedUser(t *testing.T) {
	router, db := setupAuthRouter(t)

	rec := postJSON(router, "/api/auth/register", gin.H{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "secret-password",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	reason := "rule violation"
	require.NoError(t, db.Model(&models.User{}).Where("username = ?", "alice").
		Updates(map[string]interface{}{"is_banned": true, "ban_reason": reason}).Error)

	rec = postJSON(router, "/api/auth/login", gin.H{
		"username": "alice",
		"password": "secret-password",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Account is banned", body["message"])
	assert.Equal(t, reason, body["ban_reason"])
}

func TestLogin_WrongPassword(t *testing.T) {
	router, _ := setupAuthRouter(t)

	rec := postJSON(router, "/api/auth/register", gin.H{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "secret-password",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(router, "/api/auth/login", gin.H{
		"username": "alice",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

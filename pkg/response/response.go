package response

import (
	"net/http"

	"gcrp/pkg/errors"
	"gcrp/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Pagination 分页信息，沿用前端既有的字段约定
type Pagination struct {
	Current int   `json:"current"`
	Pages   int   `json:"pages"`
	Total   int64 `json:"total"`
}

// ========== 成功返回 ==========

// Success 成功返回，payload逐键平铺进响应体
func Success(c *gin.Context, payload gin.H) {
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// Created 创建成功
func Created(c *gin.Context, payload gin.H) {
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(http.StatusCreated, body)
}

// Message 只带提示语的成功返回
func Message(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
}

// ========== 错误返回 ==========

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

func BadRequest(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, message)
}

func Unauthorized(c *gin.Context, message string) {
	fail(c, http.StatusUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	fail(c, http.StatusForbidden, message)
}

func NotFound(c *gin.Context, message string) {
	fail(c, http.StatusNotFound, message)
}

func Conflict(c *gin.Context, message string) {
	fail(c, http.StatusConflict, message)
}

func ServerError(c *gin.Context, message string) {
	fail(c, http.StatusInternalServerError, message)
}

// ValidationFailed 校验失败，带结构化的字段错误列表
func ValidationFailed(c *gin.Context, errs []string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"message": "Validation failed",
		"errors":  errs,
	})
}

// HandleError 按错误类别映射HTTP状态码；存储层错误只记日志，响应体不带细节
func HandleError(c *gin.Context, err error) {
	appErr := errors.As(err)
	switch appErr.Kind {
	case errors.KindValidation:
		BadRequest(c, appErr.Message)
	case errors.KindAuthentication:
		Unauthorized(c, appErr.Message)
	case errors.KindAuthorization:
		Forbidden(c, appErr.Message)
	case errors.KindNotFound:
		NotFound(c, appErr.Message)
	case errors.KindConflict:
		Conflict(c, appErr.Message)
	default:
		logger.GetLogger().WithField("path", c.FullPath()).Errorf("请求处理失败: %v", err)
		ServerError(c, "Server error")
	}
}

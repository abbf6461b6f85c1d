package pagination

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
)

// PageParams 分页参数
type PageParams struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"limit" form:"limit"`
}

// 分页配置
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ParsePageParams 从请求中解析分页参数（page / limit）
func ParsePageParams(c *gin.Context) *PageParams {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = DefaultPage
	}

	pageSize, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	return &PageParams{
		Page:     page,
		PageSize: pageSize,
	}
}

// TotalPages 计算总页数
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(pageSize)))
}

// GetOffset 计算offset
func (p *PageParams) GetOffset() int {
	return (p.Page - 1) * p.PageSize
}

// GetLimit 计算limit
func (p *PageParams) GetLimit() int {
	return p.PageSize
}

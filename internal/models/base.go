package models

import (
	"time"
)

// BaseModel 基础模型；时间戳由GORM在写入时填充
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

package models

import "time"

// Follow 关注关系（follower关注followed），复合唯一，禁止自关注
type Follow struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FollowerID uint      `gorm:"not null;uniqueIndex:idx_follow_edge;index" json:"follower_id"`
	FollowedID uint      `gorm:"not null;uniqueIndex:idx_follow_edge;index" json:"followed_id"`
	CreatedAt  time.Time `json:"created_at"`

	Follower *User `gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE" json:"-"`
	Followed *User `gorm:"foreignKey:FollowedID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName 表名
func (f *Follow) TableName() string {
	return "follows"
}

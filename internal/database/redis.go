package database

import (
	"gcrp/pkg/config"
	"gcrp/pkg/queue"
)

// NewSyncQueue 根据配置构造Discord同步队列
func NewSyncQueue(cfg config.RedisConfig) *queue.RedisQueue {
	return queue.NewRedisQueue(&queue.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
		Prefix:   cfg.Prefix,
	})
}

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// 同步事件类型
const (
	EventSyncRoles = "sync_roles" // 按当前角色集重算Discord身份组
	EventBan       = "ban"        // Discord服务器封禁
	EventUnban     = "unban"      // 解除封禁
)

// SyncMessage 出站同步消息。核心写库成功后入队，桥接端异步消费，
// 消费失败只影响桥接自身，不回滚任何已提交的变更。
type SyncMessage struct {
	Event     string   `json:"event"`
	DiscordID string   `json:"discord_id"`
	RoleIDs   []string `json:"role_ids,omitempty"` // Discord身份组ID
	Reason    string   `json:"reason,omitempty"`
	UserID    uint     `json:"user_id"` // 站内用户，便于排查
	Created   int64    `json:"created"`
}

// Config Redis配置
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

// RedisQueue Redis队列实现
type RedisQueue struct {
	client *redis.Client
	prefix string
}

// NewRedisQueue 创建Redis队列实例
func NewRedisQueue(config *Config) *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})

	prefix := config.Prefix
	if prefix == "" {
		prefix = "gcrp:sync"
	}

	return &RedisQueue{
		client: client,
		prefix: prefix,
	}
}

// Close 关闭Redis连接
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Ping 测试Redis连接
func (q *RedisQueue) Ping() error {
	return q.client.Ping(context.Background()).Err()
}

// Enqueue 消息入队（左侧入队）
func (q *RedisQueue) Enqueue(msg *SyncMessage) error {
	if msg.Created == 0 {
		msg.Created = time.Now().Unix()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化同步消息失败: %v", err)
	}

	if err := q.client.LPush(context.Background(), q.queueKey(), data).Err(); err != nil {
		return fmt.Errorf("同步消息入队失败: %v", err)
	}
	return nil
}

// Dequeue 阻塞出队；超时返回(nil, nil)
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*SyncMessage, error) {
	result, err := q.client.BRPop(ctx, timeout, q.queueKey()).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}

	var msg SyncMessage
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		return nil, fmt.Errorf("反序列化同步消息失败: %v", err)
	}
	return &msg, nil
}

// Depth 当前积压消息数
func (q *RedisQueue) Depth() (int64, error) {
	return q.client.LLen(context.Background(), q.queueKey()).Result()
}

func (q *RedisQueue) queueKey() string {
	return q.prefix + ":discord"
}

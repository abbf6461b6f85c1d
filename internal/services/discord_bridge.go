package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"gcrp/pkg/config"
	"gcrp/pkg/logger"
	"gcrp/pkg/queue"
)

// DiscordBridge 同步队列消费端：从Redis取出同步消息，
// 调Discord REST接口落实到服务器。单条消息失败只记日志继续消费，
// 不中断循环，也不回写站内数据。
type DiscordBridge struct {
	cfg    config.DiscordConfig
	queue  *queue.RedisQueue
	client *http.Client
	cancel context.CancelFunc
	done   chan struct{}
}

func NewDiscordBridge(cfg config.DiscordConfig, q *queue.RedisQueue) *DiscordBridge {
	return &DiscordBridge{
		cfg:   cfg,
		queue: q,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Enabled Bot令牌和服务器ID齐全时桥接才启动
func (b *DiscordBridge) Enabled() bool {
	return b.cfg.BotToken != "" && b.cfg.GuildID != ""
}

// Start 启动消费循环
func (b *DiscordBridge) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.run(ctx)
	logger.GetLogger().Info("Discord同步桥接已启动")
}

// Stop 停止消费循环并等待退出
func (b *DiscordBridge) Stop() {
	if b.cancel == nil {
		return
	}
	b.cancel()
	<-b.done
	logger.GetLogger().Info("Discord同步桥接已停止")
}

func (b *DiscordBridge) run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := b.queue.Dequeue(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.GetLogger().WithError(err).Error("同步消息出队失败")
			time.Sleep(time.Second)
			continue
		}
		if msg == nil {
			continue
		}
		if err := b.handle(msg); err != nil {
			logger.GetLogger().WithError(err).WithFields(map[string]interface{}{
				"event":      msg.Event,
				"discord_id": msg.DiscordID,
				"user_id":    msg.UserID,
			}).Error("同步消息处理失败")
		}
	}
}

func (b *DiscordBridge) handle(msg *queue.SyncMessage) error {
	switch msg.Event {
	case queue.EventSyncRoles:
		return b.syncRoles(msg.DiscordID, msg.RoleIDs)
	case queue.EventBan:
		return b.ban(msg.DiscordID, msg.Reason)
	case queue.EventUnban:
		return b.unban(msg.DiscordID)
	default:
		return fmt.Errorf("未知同步事件: %s", msg.Event)
	}
}

// syncRoles 覆盖式写入成员身份组
func (b *DiscordBridge) syncRoles(discordID string, roleIDs []string) error {
	if roleIDs == nil {
		roleIDs = []string{}
	}
	path := fmt.Sprintf("/guilds/%s/members/%s", b.cfg.GuildID, url.PathEscape(discordID))
	body := map[string]interface{}{"roles": roleIDs}
	return b.do(http.MethodPatch, path, body)
}

func (b *DiscordBridge) ban(discordID, reason string) error {
	path := fmt.Sprintf("/guilds/%s/bans/%s", b.cfg.GuildID, url.PathEscape(discordID))
	var body map[string]interface{}
	if reason != "" {
		body = map[string]interface{}{"delete_message_seconds": 0}
	}
	req, err := b.newRequest(http.MethodPut, path, body)
	if err != nil {
		return err
	}
	if reason != "" {
		req.Header.Set("X-Audit-Log-Reason", url.QueryEscape(reason))
	}
	return b.send(req)
}

func (b *DiscordBridge) unban(discordID string) error {
	path := fmt.Sprintf("/guilds/%s/bans/%s", b.cfg.GuildID, url.PathEscape(discordID))
	return b.do(http.MethodDelete, path, nil)
}

// ServerInfoResult 服务器概要
type ServerInfoResult struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	ApproximateMemberCount   int    `json:"approximate_member_count"`
	ApproximatePresenceCount int    `json:"approximate_presence_count"`
}

// ServerInfo 查询Discord服务器概要（管理面板展示用）
func (b *DiscordBridge) ServerInfo() (*ServerInfoResult, error) {
	path := fmt.Sprintf("/guilds/%s?with_counts=true", b.cfg.GuildID)
	req, err := b.newRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("Discord接口返回 %d: %s", resp.StatusCode, string(data))
	}
	var info ServerInfoResult
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (b *DiscordBridge) newRequest(method, path string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, b.cfg.APIBase+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bot "+b.cfg.BotToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (b *DiscordBridge) do(method, path string, body interface{}) error {
	req, err := b.newRequest(method, path, body)
	if err != nil {
		return err
	}
	return b.send(req)
}

func (b *DiscordBridge) send(req *http.Request) error {
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("Discord接口返回 %d: %s", resp.StatusCode, string(data))
	}
	return nil
}

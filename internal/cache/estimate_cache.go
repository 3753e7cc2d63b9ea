// Package cache 最新估计的 Redis 缓存和估计事件流
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	rediscommon "github.com/mzaki9/Atomus-Lumea/common/redis"
	"github.com/mzaki9/Atomus-Lumea/internal/models"
	"github.com/mzaki9/Atomus-Lumea/internal/session"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StreamPublisher 事件流发布
type StreamPublisher interface {
	Publish(ctx context.Context, stream string, values map[string]interface{}) error
	PublishJSON(ctx context.Context, stream string, data interface{}) error
}

// RedisStreamPublisher 发布到 Redis Streams
type RedisStreamPublisher struct {
	client *redis.Client
	maxLen int64
}

// NewRedisStreamPublisher maxLen > 0 时按近似长度裁剪
func NewRedisStreamPublisher(client *redis.Client, maxLen int64) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, maxLen: maxLen}
}

// Publish 发布一条消息
func (p *RedisStreamPublisher) Publish(ctx context.Context, stream string, values map[string]interface{}) error {
	_, err := rediscommon.PublishToStream(ctx, p.client, stream, values, p.maxLen)
	return err
}

// PublishJSON 发布一条 JSON 消息（data + timestamp）
func (p *RedisStreamPublisher) PublishJSON(ctx context.Context, stream string, data interface{}) error {
	_, err := rediscommon.PublishJSONToStream(ctx, p.client, stream, data, p.maxLen)
	return err
}

// StateEvent 状态事件流消息
type StateEvent struct {
	session.StateChange
	DeviceID string `json:"device_id"`
}

// LatestEstimate 设备最新估计（不含原始读数）
type LatestEstimate struct {
	DeviceID        string    `json:"device_id"`
	SessionID       string    `json:"session_id"`
	State           string    `json:"state"`
	HeartRate       int       `json:"heart_rate"`
	Confidence      float64   `json:"confidence"`
	RespiratoryRate float64   `json:"respiratory_rate"`
	SpO2            float64   `json:"spo2"`
	ReadingCount    int       `json:"reading_count"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Config 缓存配置
type Config struct {
	DeviceID    string
	TTL         time.Duration
	Stream      string
	StateStream string // 会话状态事件流，为空时不发布
	OpTimeout   time.Duration
}

// EstimateCache 会话观察者：缓存最新估计并发布到事件流
type EstimateCache struct {
	config    Config
	kv        KVStore
	publisher StreamPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewEstimateCache 创建估计缓存；publisher 可以为 nil（不发布事件流）
func NewEstimateCache(cfg Config, kv KVStore, publisher StreamPublisher, logger *zap.Logger) *EstimateCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 2 * time.Second
	}
	return &EstimateCache{
		config:    cfg,
		kv:        kv,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// LatestKey 最新估计的缓存键
func LatestKey(deviceID string) string {
	return fmt.Sprintf("ppg:device:%s:latest", deviceID)
}

// StateKey 会话状态的缓存键
func StateKey(deviceID string) string {
	return fmt.Sprintf("ppg:device:%s:state", deviceID)
}

// OnEstimate 写入最新估计并发布事件
func (c *EstimateCache) OnEstimate(sessionID string, est *models.HeartRateEstimate) {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.OpTimeout)
	defer cancel()

	latest := LatestEstimate{
		DeviceID:        c.config.DeviceID,
		SessionID:       sessionID,
		State:           session.StateMeasuring.String(),
		HeartRate:       est.HeartRate,
		Confidence:      est.Confidence,
		RespiratoryRate: est.RespiratoryRate,
		SpO2:            est.SpO2,
		ReadingCount:    est.ReadingCount(),
		UpdatedAt:       c.now().UTC(),
	}
	if err := c.setJSON(ctx, LatestKey(c.config.DeviceID), latest); err != nil {
		c.logger.Warn("Failed to cache latest estimate",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}

	if c.publisher == nil || c.config.Stream == "" {
		return
	}
	err := c.publisher.Publish(ctx, c.config.Stream, map[string]interface{}{
		"device_id":        latest.DeviceID,
		"session_id":       sessionID,
		"heart_rate":       latest.HeartRate,
		"confidence":       latest.Confidence,
		"respiratory_rate": latest.RespiratoryRate,
		"spo2":             latest.SpO2,
		"reading_count":    latest.ReadingCount,
		"timestamp":        latest.UpdatedAt.UnixMilli(),
	})
	if err != nil {
		c.logger.Warn("Failed to publish estimate to stream",
			zap.String("stream", c.config.Stream),
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

// OnStateChange 缓存会话状态
func (c *EstimateCache) OnStateChange(change session.StateChange) {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.OpTimeout)
	defer cancel()

	if err := c.setJSON(ctx, StateKey(c.config.DeviceID), change); err != nil {
		c.logger.Warn("Failed to cache session state",
			zap.String("session_id", change.SessionID),
			zap.String("state", change.To.String()),
			zap.Error(err),
		)
	}

	if c.publisher == nil || c.config.StateStream == "" {
		return
	}
	event := StateEvent{StateChange: change, DeviceID: c.config.DeviceID}
	if err := c.publisher.PublishJSON(ctx, c.config.StateStream, event); err != nil {
		c.logger.Warn("Failed to publish session state to stream",
			zap.String("stream", c.config.StateStream),
			zap.String("session_id", change.SessionID),
			zap.Error(err),
		)
	}
}

// GetLatest 读取设备最新估计；不存在时返回 ErrCacheMiss
func (c *EstimateCache) GetLatest(ctx context.Context, deviceID string) (*LatestEstimate, error) {
	raw, err := c.kv.Get(ctx, LatestKey(deviceID))
	if err != nil {
		return nil, err
	}
	var latest LatestEstimate
	if err := json.Unmarshal([]byte(raw), &latest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal latest estimate: %w", err)
	}
	return &latest, nil
}

// Clear 删除设备最新估计
func (c *EstimateCache) Clear(ctx context.Context, deviceID string) error {
	return c.kv.Del(ctx, LatestKey(deviceID))
}

func (c *EstimateCache) setJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return c.kv.Set(ctx, key, string(data), c.config.TTL)
}

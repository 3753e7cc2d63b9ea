package camera

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mzaki9/Atomus-Lumea/common/mqtt"
	"github.com/mzaki9/Atomus-Lumea/internal/sampler"

	"go.uber.org/zap"
)

// 主题模板中的设备占位符
const DevicePlaceholder = "{device_id}"

// 设备控制命令
const (
	ActionStart = "start"
	ActionStop  = "stop"
)

// Command 发往设备的相机控制命令
type Command struct {
	Action    string `json:"action"`
	Camera    string `json:"camera"`
	Torch     bool   `json:"torch"`
	Timestamp int64  `json:"timestamp"`
}

// MQTTClient MQTT 客户端接口（*mqtt.Client 实现）
type MQTTClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Unsubscribe(topics ...string) error
}

// MQTTConfig MQTT 相机配置
type MQTTConfig struct {
	DeviceID     string
	FrameTopic   string // 例如 ppg/{device_id}/frame
	CommandTopic string // 例如 ppg/{device_id}/command
	QoS          byte
}

// MQTTCamera 远端设备相机：通过命令主题开关闪光灯，从帧主题接收编码帧
type MQTTCamera struct {
	client       MQTTClient
	frameTopic   string
	commandTopic string
	qos          byte
	logger       *zap.Logger

	mu       sync.Mutex
	acquired bool
	now      func() time.Time
}

// NewMQTTCamera 创建 MQTT 相机
func NewMQTTCamera(client MQTTClient, cfg MQTTConfig, logger *zap.Logger) *MQTTCamera {
	return &MQTTCamera{
		client:       client,
		frameTopic:   ResolveTopic(cfg.FrameTopic, cfg.DeviceID),
		commandTopic: ResolveTopic(cfg.CommandTopic, cfg.DeviceID),
		qos:          cfg.QoS,
		logger:       logger,
		now:          time.Now,
	}
}

// ResolveTopic 替换主题中的设备占位符
func ResolveTopic(template, deviceID string) string {
	return strings.ReplaceAll(template, DevicePlaceholder, deviceID)
}

// FrameTopic 帧主题
func (c *MQTTCamera) FrameTopic() string { return c.frameTopic }

// CommandTopic 命令主题
func (c *MQTTCamera) CommandTopic() string { return c.commandTopic }

// Acquire 订阅帧主题并通知设备打开后置摄像头和闪光灯
func (c *MQTTCamera) Acquire(ctx context.Context, deliver func(sampler.Frame)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.acquired {
		return ErrAlreadyAcquired
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	handler := func(topic string, payload []byte) error {
		frame, err := DecodeFrame(payload)
		if err != nil {
			return fmt.Errorf("failed to decode frame from %s: %w", topic, err)
		}
		deliver(frame)
		return nil
	}
	if err := c.client.Subscribe(c.frameTopic, c.qos, handler); err != nil {
		return fmt.Errorf("failed to subscribe frame topic: %w", err)
	}

	if err := c.sendCommand(ActionStart, true); err != nil {
		if uerr := c.client.Unsubscribe(c.frameTopic); uerr != nil {
			c.logger.Warn("Failed to unsubscribe frame topic", zap.Error(uerr))
		}
		return fmt.Errorf("failed to start remote camera: %w", err)
	}

	c.acquired = true
	c.logger.Info("MQTT camera acquired",
		zap.String("frame_topic", c.frameTopic),
		zap.String("command_topic", c.commandTopic),
	)
	return nil
}

// Release 关闭闪光灯并取消订阅，可重复调用
func (c *MQTTCamera) Release(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.acquired {
		return nil
	}
	c.acquired = false

	var errs []error
	if err := c.client.Unsubscribe(c.frameTopic); err != nil {
		errs = append(errs, err)
	}
	if err := c.sendCommand(ActionStop, false); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to release remote camera: %w", err)
	}

	c.logger.Info("MQTT camera released", zap.String("frame_topic", c.frameTopic))
	return nil
}

func (c *MQTTCamera) sendCommand(action string, torch bool) error {
	payload, err := json.Marshal(Command{
		Action:    action,
		Camera:    "back",
		Torch:     torch,
		Timestamp: c.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}
	return c.client.Publish(c.commandTopic, c.qos, false, payload)
}

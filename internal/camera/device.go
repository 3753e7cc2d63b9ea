package camera

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mzaki9/Atomus-Lumea/internal/sampler"

	"go.uber.org/zap"
)

// SimDevice 模拟远端设备：监听命令主题，收到 start 后把模拟帧编码发布到帧主题
type SimDevice struct {
	client       MQTTClient
	camera       *SyntheticCamera
	frameTopic   string
	commandTopic string
	qos          byte
	logger       *zap.Logger

	mu        sync.Mutex
	streaming bool
	published atomic.Int64
	failed    atomic.Int64
}

// NewSimDevice 创建模拟设备
func NewSimDevice(client MQTTClient, cfg MQTTConfig, syn SyntheticConfig, logger *zap.Logger) *SimDevice {
	return &SimDevice{
		client:       client,
		camera:       NewSyntheticCamera(syn, logger),
		frameTopic:   ResolveTopic(cfg.FrameTopic, cfg.DeviceID),
		commandTopic: ResolveTopic(cfg.CommandTopic, cfg.DeviceID),
		qos:          cfg.QoS,
		logger:       logger,
	}
}

// Start 订阅命令主题
func (d *SimDevice) Start() error {
	if err := d.client.Subscribe(d.commandTopic, d.qos, d.handleCommand); err != nil {
		return fmt.Errorf("failed to subscribe command topic: %w", err)
	}
	d.logger.Info("Simulated device waiting for commands",
		zap.String("command_topic", d.commandTopic),
		zap.String("frame_topic", d.frameTopic),
	)
	return nil
}

// Stop 停止出帧并取消订阅
func (d *SimDevice) Stop(ctx context.Context) error {
	if err := d.setStreaming(ctx, false); err != nil {
		return err
	}
	return d.client.Unsubscribe(d.commandTopic)
}

// Streaming 是否正在出帧（闪光灯打开）
func (d *SimDevice) Streaming() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streaming
}

// Published 已发布的帧数
func (d *SimDevice) Published() int64 {
	return d.published.Load()
}

func (d *SimDevice) handleCommand(topic string, payload []byte) error {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("invalid command on %s: %w", topic, err)
	}
	d.logger.Info("Received camera command",
		zap.String("action", cmd.Action),
		zap.Bool("torch", cmd.Torch),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	switch cmd.Action {
	case ActionStart:
		return d.setStreaming(ctx, true)
	case ActionStop:
		return d.setStreaming(ctx, false)
	default:
		return fmt.Errorf("unknown camera action %q", cmd.Action)
	}
}

func (d *SimDevice) setStreaming(ctx context.Context, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.streaming == on {
		return nil
	}
	if on {
		if err := d.camera.Acquire(ctx, d.publishFrame); err != nil {
			return fmt.Errorf("failed to start synthetic camera: %w", err)
		}
	} else {
		if err := d.camera.Release(ctx); err != nil {
			return fmt.Errorf("failed to stop synthetic camera: %w", err)
		}
		d.logger.Info("Simulated device stopped streaming",
			zap.Int64("published", d.published.Load()),
			zap.Int64("failed", d.failed.Load()),
		)
	}
	d.streaming = on
	return nil
}

func (d *SimDevice) publishFrame(frame sampler.Frame) {
	defer frame.Close()

	payload, err := EncodeFrame(frame)
	if err != nil {
		d.failed.Add(1)
		d.logger.Warn("Failed to encode frame", zap.Error(err))
		return
	}
	if err := d.client.Publish(d.frameTopic, d.qos, false, payload); err != nil {
		d.failed.Add(1)
		d.logger.Debug("Failed to publish frame", zap.Error(err))
		return
	}
	d.published.Add(1)
}

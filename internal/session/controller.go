// Package session 测量会话控制器
//
// 一次只有一个活动会话。状态机：
//
//	Idle ──Start──▶ Initializing ──相机就绪──▶ Measuring ──Stop/超时──▶ Idle
//	                     │                         │
//	                     └──相机失败──▶ Error ◀────┘ (ReportCameraError)
//
// Error 可以再次 Start。帧由单个工作协程按顺序处理，估计在独立协程上对快照计算，
// 过期会话（代号不一致）的结果直接丢弃。
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mzaki9/Atomus-Lumea/internal/buffer"
	"github.com/mzaki9/Atomus-Lumea/internal/models"
	"github.com/mzaki9/Atomus-Lumea/internal/sampler"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options 控制器参数
type Options struct {
	DeviceID            string
	TickInterval        time.Duration // 计时粒度，默认 1s
	MaxDuration         time.Duration // 自动停止时长，默认 30s
	MinReadings         int           // 触发估计的最少读数，默认 50
	BufferCapacity      int           // 默认 1800
	CollaboratorTimeout time.Duration // 默认 30s
	ReleaseTimeout      time.Duration // 自动停止时释放相机的超时，默认 5s
}

// DefaultOptions 默认参数
func DefaultOptions() Options {
	return Options{
		TickInterval:        time.Second,
		MaxDuration:         30 * time.Second,
		MinReadings:         50,
		BufferCapacity:      buffer.DefaultCapacity,
		CollaboratorTimeout: 30 * time.Second,
		ReleaseTimeout:      5 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.TickInterval <= 0 {
		o.TickInterval = def.TickInterval
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = def.MaxDuration
	}
	if o.MinReadings <= 0 {
		o.MinReadings = def.MinReadings
	}
	if o.BufferCapacity <= 0 {
		o.BufferCapacity = def.BufferCapacity
	}
	if o.CollaboratorTimeout <= 0 {
		o.CollaboratorTimeout = def.CollaboratorTimeout
	}
	if o.ReleaseTimeout <= 0 {
		o.ReleaseTimeout = def.ReleaseTimeout
	}
	return o
}

// Controller 会话控制器
type Controller struct {
	opts          Options
	camera        Camera
	sampler       FrameSampler
	estimator     Estimator
	buffer        *buffer.ReadingBuffer
	collaborators []Collaborator
	classifier    RiskClassifier
	logger        *zap.Logger

	// mu 保护以下会话状态；buffer 的追加和清空也在 mu 下进行，保证与代号检查一致
	mu         sync.Mutex
	state      State
	message    string
	sessionID  string
	generation uint64
	startedAt  time.Time
	elapsed    time.Duration
	estimate   *models.HeartRateEstimate
	notified   bool
	acquiring  bool // 有 Acquire 尚未返回
	cancelRun  context.CancelFunc
	observers  []Observer

	emitMu  sync.Mutex
	dropped atomic.Int64
	wg      sync.WaitGroup

	newID func() string
	now   func() time.Time
}

// NewController 创建会话控制器
func NewController(opts Options, camera Camera, frameSampler FrameSampler, estimator Estimator, logger *zap.Logger) *Controller {
	opts = opts.withDefaults()
	return &Controller{
		opts:      opts,
		camera:    camera,
		sampler:   frameSampler,
		estimator: estimator,
		buffer:    buffer.New(opts.BufferCapacity),
		logger:    logger,
		state:     StateIdle,
		newID:     func() string { return uuid.New().String() },
		now:       time.Now,
	}
}

// AddObserver 注册观察者
func (c *Controller) AddObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// SetClassifier 设置会话结束时使用的风险分类器（应在 Start 之前设置）
func (c *Controller) SetClassifier(classifier RiskClassifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.classifier = classifier
}

// AddCollaborator 注册会话完成协作方（应在 Start 之前注册）
func (c *Controller) AddCollaborator(collab Collaborator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collaborators = append(c.collaborators, collab)
}

// Start 开始一次测量
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle && c.state != StateError {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidTransition, state)
	}
	if c.acquiring {
		c.mu.Unlock()
		return fmt.Errorf("%w: camera acquisition still in progress", ErrInvalidTransition)
	}

	c.acquiring = true
	c.generation++
	gen := c.generation
	c.sessionID = c.newID()
	c.buffer.Clear()
	c.estimate = nil
	c.notified = false
	c.elapsed = 0
	c.startedAt = c.now()
	c.dropped.Store(0)

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancelRun = cancel
	frames := make(chan sampler.Frame, 1)
	snapshots := make(chan []models.ColorReading, 1)
	sessionID := c.sessionID
	change := c.transitionLocked(StateInitializing, "")
	c.mu.Unlock()

	c.emitState(change)
	c.logger.Info("Measurement session starting", zap.String("session_id", sessionID))

	c.wg.Add(2)
	go c.frameWorker(runCtx, gen, frames, snapshots)
	go c.estimateWorker(runCtx, gen, snapshots)

	err := c.camera.Acquire(ctx, func(f sampler.Frame) {
		c.deliver(gen, frames, f)
	})

	c.mu.Lock()
	if c.generation != gen || c.state != StateInitializing {
		// Stop 在相机初始化期间到达；acquiring 保证期间没有新会话拿到相机
		c.mu.Unlock()
		if err == nil {
			c.releaseCamera(sessionID)
		}
		c.mu.Lock()
		c.acquiring = false
		c.mu.Unlock()
		return nil
	}
	c.acquiring = false
	if err != nil {
		c.cancelRun = nil
		change := c.transitionLocked(StateError, fmt.Sprintf("Failed to start camera: %v", err))
		c.mu.Unlock()
		cancel()
		c.logger.Error("Failed to acquire camera",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		c.emitState(change)
		return fmt.Errorf("failed to acquire camera: %w", err)
	}
	change = c.transitionLocked(StateMeasuring, "")
	c.mu.Unlock()

	c.wg.Add(1)
	go c.runTimer(runCtx, gen)

	c.emitState(change)
	c.logger.Info("Measurement session started",
		zap.String("session_id", sessionID),
		zap.Duration("max_duration", c.opts.MaxDuration),
	)
	return nil
}

// Stop 结束当前测量（手动停止）
func (c *Controller) Stop(ctx context.Context) error {
	return c.stop(ctx, 0, "stopped")
}

// stop gen 为 0 时停止任意当前会话，否则只停止指定代号的会话
func (c *Controller) stop(ctx context.Context, gen uint64, reason string) error {
	c.mu.Lock()
	if gen != 0 && gen != c.generation {
		c.mu.Unlock()
		return nil
	}
	if c.state != StateMeasuring && c.state != StateInitializing {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot stop from %s", ErrInvalidTransition, state)
	}

	cancel := c.cancelRun
	c.cancelRun = nil
	change := c.transitionLocked(StateIdle, "")
	sessionID := c.sessionID
	result := Result{
		SessionID:   sessionID,
		DeviceID:    c.opts.DeviceID,
		StartedAt:   c.startedAt,
		CompletedAt: c.now(),
		Estimate:    c.estimate,
	}
	notify := c.estimate != nil && !c.notified
	if notify {
		c.notified = true
	}
	collaborators := append([]Collaborator(nil), c.collaborators...)
	classifier := c.classifier
	readingCount := c.buffer.Len()
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := c.camera.Release(ctx); err != nil {
		c.logger.Warn("Failed to release camera",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}

	c.emitState(change)
	c.logger.Info("Measurement session stopped",
		zap.String("session_id", sessionID),
		zap.String("reason", reason),
		zap.Int("reading_count", readingCount),
		zap.Bool("has_estimate", result.Estimate != nil),
	)

	if notify && len(collaborators) > 0 {
		c.wg.Add(1)
		go c.notifyCollaborators(collaborators, classifier, result)
	}
	return nil
}

// ReportCameraError 相机在测量中失败（例如设备连接断开），进入 Error 状态
func (c *Controller) ReportCameraError(err error) {
	c.mu.Lock()
	if c.state != StateMeasuring && c.state != StateInitializing {
		c.mu.Unlock()
		return
	}
	cancel := c.cancelRun
	c.cancelRun = nil
	sessionID := c.sessionID
	change := c.transitionLocked(StateError, fmt.Sprintf("Camera error: %v", err))
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.logger.Error("Camera failed during measurement",
		zap.String("session_id", sessionID),
		zap.Error(err),
	)
	c.releaseCamera(sessionID)
	c.emitState(change)
}

// ResetResult 清除上一次的结果（仅 Idle / Error）
func (c *Controller) ResetResult() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle && c.state != StateError {
		return fmt.Errorf("%w: cannot reset while %s", ErrInvalidTransition, c.state)
	}
	c.estimate = nil
	c.elapsed = 0
	c.message = ""
	c.buffer.Clear()
	return nil
}

// Status 当前状态快照
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		SessionID:      c.sessionID,
		State:          c.state,
		Message:        c.message,
		ElapsedSeconds: int(c.elapsed / time.Second),
		ReadingCount:   c.buffer.Len(),
		DroppedFrames:  c.dropped.Load(),
		StartedAt:      c.startedAt,
		Estimate:       c.estimate,
	}
}

// Close 停止活动会话并等待后台协程退出
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	active := c.state == StateMeasuring || c.state == StateInitializing
	c.mu.Unlock()
	if active {
		if err := c.Stop(ctx); err != nil {
			c.logger.Warn("Failed to stop session on close", zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) transitionLocked(to State, message string) StateChange {
	change := StateChange{SessionID: c.sessionID, From: c.state, To: to, Message: message}
	c.state = to
	c.message = message
	return change
}

// deliver 相机回调：单槽邮箱，新帧替换（并释放）尚未处理的旧帧
func (c *Controller) deliver(gen uint64, frames chan sampler.Frame, f sampler.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen || c.state != StateMeasuring {
		_ = f.Close()
		return
	}

	select {
	case frames <- f:
		return
	default:
	}
	select {
	case stale := <-frames:
		_ = stale.Close()
		c.dropped.Add(1)
	default:
	}
	select {
	case frames <- f:
	default:
		_ = f.Close()
		c.dropped.Add(1)
	}
}

func (c *Controller) frameWorker(ctx context.Context, gen uint64, frames chan sampler.Frame, snapshots chan []models.ColorReading) {
	defer c.wg.Done()
	defer func() {
		// 会话结束后邮箱中可能还留有一帧
		select {
		case f := <-frames:
			_ = f.Close()
		default:
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case f := <-frames:
			reading, ok := c.sampler.Sample(f)
			if !ok {
				continue
			}

			c.mu.Lock()
			if c.generation != gen || c.state != StateMeasuring {
				c.mu.Unlock()
				continue
			}
			n := c.buffer.Append(reading)
			var snap []models.ColorReading
			if n >= c.opts.MinReadings {
				snap = c.buffer.Snapshot()
			}
			c.mu.Unlock()

			if snap != nil {
				offerSnapshot(snapshots, snap)
			}
		}
	}
}

// offerSnapshot 只保留最新快照
func offerSnapshot(snapshots chan []models.ColorReading, snap []models.ColorReading) {
	select {
	case snapshots <- snap:
		return
	default:
	}
	select {
	case <-snapshots:
	default:
	}
	select {
	case snapshots <- snap:
	default:
	}
}

func (c *Controller) estimateWorker(ctx context.Context, gen uint64, snapshots chan []models.ColorReading) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-snapshots:
			est, ok := c.estimator.Calculate(snap)
			if !ok {
				continue
			}

			c.mu.Lock()
			if c.generation != gen || c.state != StateMeasuring {
				c.mu.Unlock()
				c.logger.Debug("Discarding estimate from finished session")
				continue
			}
			c.estimate = est
			sessionID := c.sessionID
			observers := append([]Observer(nil), c.observers...)
			c.mu.Unlock()

			c.emitMu.Lock()
			for _, o := range observers {
				o.OnEstimate(sessionID, est)
			}
			c.emitMu.Unlock()
		}
	}
}

func (c *Controller) runTimer(ctx context.Context, gen uint64) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.generation != gen || c.state != StateMeasuring {
				c.mu.Unlock()
				return
			}
			c.elapsed += c.opts.TickInterval
			elapsed := c.elapsed
			c.mu.Unlock()

			if elapsed >= c.opts.MaxDuration {
				stopCtx, cancel := context.WithTimeout(context.Background(), c.opts.ReleaseTimeout)
				if err := c.stop(stopCtx, gen, "max duration reached"); err != nil {
					c.logger.Debug("Auto stop skipped", zap.Error(err))
				}
				cancel()
				return
			}
		}
	}
}

func (c *Controller) releaseCamera(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.ReleaseTimeout)
	defer cancel()
	if err := c.camera.Release(ctx); err != nil {
		c.logger.Warn("Failed to release camera",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

func (c *Controller) emitState(change StateChange) {
	c.mu.Lock()
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()

	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	for _, o := range observers {
		o.OnStateChange(change)
	}
}

func (c *Controller) notifyCollaborators(collaborators []Collaborator, classifier RiskClassifier, result Result) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.CollaboratorTimeout)
	defer cancel()

	if classifier != nil {
		class, scores, err := classifier.Classify(ctx, result.Estimate)
		if err != nil {
			c.logger.Warn("Risk classification failed, reporting unknown status",
				zap.String("session_id", result.SessionID),
				zap.Error(err),
			)
		} else {
			result.Risk, result.RiskScores = class, scores
		}
	}

	for _, collab := range collaborators {
		if err := collab.OnMeasurementComplete(ctx, result); err != nil {
			c.logger.Error("Collaborator failed",
				zap.String("collaborator", collab.Name()),
				zap.String("session_id", result.SessionID),
				zap.Error(err),
			)
			continue
		}
		c.logger.Debug("Collaborator notified",
			zap.String("collaborator", collab.Name()),
			zap.String("session_id", result.SessionID),
		)
	}
}

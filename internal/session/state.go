package session

import (
	"context"
	"errors"
	"time"

	"github.com/mzaki9/Atomus-Lumea/internal/models"
	"github.com/mzaki9/Atomus-Lumea/internal/sampler"
)

// State 会话状态
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateMeasuring
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateMeasuring:
		return "measuring"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText 以字符串形式输出（JSON / 日志）
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrInvalidTransition 当前状态不允许该操作
var ErrInvalidTransition = errors.New("invalid session state transition")

// Camera 相机 + 闪光灯生命周期
//
// Acquire 成功后相机开始通过 deliver 投递帧；deliver 的调用方负责在帧用完后 Close。
// Release 必须可重复调用。
type Camera interface {
	Acquire(ctx context.Context, deliver func(sampler.Frame)) error
	Release(ctx context.Context) error
}

// FrameSampler 帧 → 颜色读数
type FrameSampler interface {
	Sample(frame sampler.Frame) (models.ColorReading, bool)
}

// Estimator 读数快照 → 心率估计；ok=false 表示暂无估计
type Estimator interface {
	Calculate(readings []models.ColorReading) (*models.HeartRateEstimate, bool)
}

// Observer 接收会话状态变化和每一次估计更新
//
// 回调在控制器的工作协程上同步执行，应尽快返回。
type Observer interface {
	OnStateChange(change StateChange)
	OnEstimate(sessionID string, est *models.HeartRateEstimate)
}

// Collaborator 会话结束（带有效估计）时被通知一次
type Collaborator interface {
	Name() string
	OnMeasurementComplete(ctx context.Context, result Result) error
}

// StateChange 状态变化事件
type StateChange struct {
	SessionID string `json:"session_id"`
	From      State  `json:"from"`
	To        State  `json:"to"`
	Message   string `json:"message,omitempty"`
}

// RiskClassifier 会话结束时对最终估计做一次风险分类
type RiskClassifier interface {
	Classify(ctx context.Context, est *models.HeartRateEstimate) (models.RiskClass, []float32, error)
}

// Result 一次完成的测量
//
// Risk 在通知协作方之前计算一次，所有协作方共用；分类失败或未配置分类器时为 RiskUnknown。
type Result struct {
	SessionID   string
	DeviceID    string
	StartedAt   time.Time
	CompletedAt time.Time
	Estimate    *models.HeartRateEstimate
	Risk        models.RiskClass
	RiskScores  []float32
}

// Status 控制器当前快照
type Status struct {
	SessionID      string                    `json:"session_id,omitempty"`
	State          State                     `json:"state"`
	Message        string                    `json:"message,omitempty"`
	ElapsedSeconds int                       `json:"elapsed_seconds"`
	ReadingCount   int                       `json:"reading_count"`
	DroppedFrames  int64                     `json:"dropped_frames"`
	StartedAt      time.Time                 `json:"started_at,omitempty"`
	Estimate       *models.HeartRateEstimate `json:"-"`
}

// HasEstimate 是否已有估计结果
func (s Status) HasEstimate() bool {
	return s.Estimate != nil
}

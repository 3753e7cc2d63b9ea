// Package risk 根据测量结果给出健康风险分类（1-4）
package risk

import (
	"context"
	"errors"
	"fmt"

	"github.com/mzaki9/Atomus-Lumea/internal/models"

	"go.uber.org/zap"
)

// DefaultAge 没有用户资料时使用的年龄
const DefaultAge = 50

// ErrEmptyPrediction 模型没有返回任何分类分数
var ErrEmptyPrediction = errors.New("empty prediction")

// Features 模型输入，顺序固定：心率、呼吸率、血氧、年龄
type Features struct {
	HeartRate       float32 `json:"heart_rate"`
	RespiratoryRate float32 `json:"respiratory_rate"`
	SpO2            float32 `json:"spo2"`
	Age             float32 `json:"age"`
}

// Vector 按模型输入顺序展开
func (f Features) Vector() []float32 {
	return []float32{f.HeartRate, f.RespiratoryRate, f.SpO2, f.Age}
}

// FeaturesFrom 从估计结果构造模型输入
func FeaturesFrom(est *models.HeartRateEstimate, age int) Features {
	return Features{
		HeartRate:       float32(est.HeartRate),
		RespiratoryRate: float32(est.RespiratoryRate),
		SpO2:            float32(est.SpO2),
		Age:             float32(age),
	}
}

// Predictor 风险模型：返回每个分类的分数（下标 0 对应分类 1）
type Predictor interface {
	Predict(ctx context.Context, features Features) ([]float32, error)
}

// Classifier 风险分类器
type Classifier struct {
	predictor Predictor
	age       int
	logger    *zap.Logger
}

// NewClassifier 创建分类器；age <= 0 时使用 DefaultAge
func NewClassifier(predictor Predictor, age int, logger *zap.Logger) *Classifier {
	if age <= 0 {
		age = DefaultAge
	}
	return &Classifier{
		predictor: predictor,
		age:       age,
		logger:    logger,
	}
}

// Classify 分类
//
// 没有估计（或心率为 0）时返回 RiskUnknown 且不调用模型。
func (c *Classifier) Classify(ctx context.Context, est *models.HeartRateEstimate) (models.RiskClass, []float32, error) {
	if est == nil || est.HeartRate <= 0 {
		return models.RiskUnknown, nil, nil
	}

	features := FeaturesFrom(est, c.age)
	scores, err := c.predictor.Predict(ctx, features)
	if err != nil {
		return models.RiskUnknown, nil, fmt.Errorf("failed to predict risk: %w", err)
	}
	class, err := ArgMaxClass(scores)
	if err != nil {
		return models.RiskUnknown, nil, err
	}

	c.logger.Debug("Risk classified",
		zap.Int("heart_rate", est.HeartRate),
		zap.Float64("respiratory_rate", est.RespiratoryRate),
		zap.Float64("spo2", est.SpO2),
		zap.Int("risk_class", int(class)),
		zap.String("status", class.Status()),
	)
	return class, scores, nil
}

// ArgMaxClass 最大分数对应的分类（1 起始）；并列时取靠前的
func ArgMaxClass(scores []float32) (models.RiskClass, error) {
	if len(scores) == 0 {
		return models.RiskUnknown, ErrEmptyPrediction
	}
	maxIndex := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[maxIndex] {
			maxIndex = i
		}
	}
	return models.RiskClass(maxIndex + 1), nil
}

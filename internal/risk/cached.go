package risk

import (
	"context"
	"sync"

	"github.com/mzaki9/Atomus-Lumea/internal/models"
)

// EstimateClassifier 对单个估计分类
type EstimateClassifier interface {
	Classify(ctx context.Context, est *models.HeartRateEstimate) (models.RiskClass, []float32, error)
}

// CachedClassifier 按估计缓存最近一次成功的分类
//
// 会话控制器每次更新估计都会换一个新的 *HeartRateEstimate，所以以指针为键即可；
// 状态轮询和会话结束使用同一个估计时只调用一次模型，结果也一致。失败不缓存。
type CachedClassifier struct {
	inner EstimateClassifier

	mu     sync.Mutex
	est    *models.HeartRateEstimate
	class  models.RiskClass
	scores []float32
}

func NewCachedClassifier(inner EstimateClassifier) *CachedClassifier {
	return &CachedClassifier{inner: inner}
}

// Classify 命中缓存时直接返回
func (c *CachedClassifier) Classify(ctx context.Context, est *models.HeartRateEstimate) (models.RiskClass, []float32, error) {
	if est == nil {
		return models.RiskUnknown, nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.est == est {
		return c.class, c.scores, nil
	}

	class, scores, err := c.inner.Classify(ctx, est)
	if err != nil {
		return models.RiskUnknown, nil, err
	}
	c.est, c.class, c.scores = est, class, scores
	return class, scores, nil
}

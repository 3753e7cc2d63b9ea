package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// PredictRequest 远端模型请求
type PredictRequest struct {
	Inputs   []float32 `json:"inputs"`
	Features Features  `json:"features"`
}

// PredictResponse 远端模型响应
type PredictResponse struct {
	Probabilities []float32 `json:"probabilities"`
	Error         string    `json:"error,omitempty"`
}

// HTTPPredictor 调用远端模型服务
type HTTPPredictor struct {
	httpClient *resty.Client
	endpoint   string
	logger     *zap.Logger
}

// NewHTTPPredictor 创建远端预测器；endpoint 为完整 URL
func NewHTTPPredictor(endpoint string, timeout time.Duration, logger *zap.Logger) *HTTPPredictor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &HTTPPredictor{
		httpClient: client,
		endpoint:   endpoint,
		logger:     logger,
	}
}

// Predict 发送特征并返回分类分数
func (p *HTTPPredictor) Predict(ctx context.Context, features Features) ([]float32, error) {
	var response PredictResponse
	resp, err := p.httpClient.R().
		SetContext(ctx).
		SetBody(PredictRequest{Inputs: features.Vector(), Features: features}).
		SetResult(&response).
		SetError(&response).
		Post(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to call risk model: %w", err)
	}

	if resp.IsError() {
		p.logger.Warn("Risk model returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("error", response.Error),
		)
		return nil, fmt.Errorf("risk model error: status %d: %s", resp.StatusCode(), response.Error)
	}
	if len(response.Probabilities) == 0 {
		return nil, ErrEmptyPrediction
	}
	return response.Probabilities, nil
}

// Package client 后端 REST API 客户端（api/health, api/location）
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

var (
	// ErrNoToken 没有可用的访问令牌
	ErrNoToken = errors.New("no authentication token available")
	// ErrAPI 后端返回 success=false
	ErrAPI = errors.New("backend api error")
)

// TokenSource 提供访问令牌
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticTokenSource 固定令牌（来自配置）
type StaticTokenSource string

// AccessToken 返回令牌；为空时返回 ErrNoToken
func (s StaticTokenSource) AccessToken(context.Context) (string, error) {
	token := strings.TrimSpace(string(s))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Config 后端客户端配置
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
}

// Backend 共享的 resty 客户端和令牌
type Backend struct {
	httpClient *resty.Client
	tokens     TokenSource
	logger     *zap.Logger
}

// NewBackend 创建后端客户端
func NewBackend(cfg Config, tokens TokenSource, logger *zap.Logger) *Backend {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Backend{
		httpClient: client,
		tokens:     tokens,
		logger:     logger,
	}
}

// request 带 Bearer 令牌的请求
func (b *Backend) request(ctx context.Context) (*resty.Request, error) {
	token, err := b.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return b.httpClient.R().
		SetContext(ctx).
		SetAuthToken(token), nil
}

// statusError 非 2xx 响应
func statusError(action string, resp *resty.Response) error {
	return fmt.Errorf("failed to %s: %s", action, resp.Status())
}

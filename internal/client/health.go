package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mzaki9/Atomus-Lumea/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const healthPath = "/api/health"

// HealthClient api/health
type HealthClient struct {
	backend *Backend
}

// NewHealthClient 创建健康数据客户端
func NewHealthClient(backend *Backend) *HealthClient {
	return &HealthClient{backend: backend}
}

// GetHealthData 获取用户的健康记录
func (c *HealthClient) GetHealthData(ctx context.Context, userID int) (*models.HealthData, error) {
	req, err := c.backend.request(ctx)
	if err != nil {
		return nil, err
	}
	req.SetQueryParam("userId", strconv.Itoa(userID))
	return c.do(req, http.MethodGet, "fetch health data")
}

// SaveHealthData 新建健康记录
func (c *HealthClient) SaveHealthData(ctx context.Context, input models.HealthCheckInput) (*models.HealthData, error) {
	req, err := c.backend.request(ctx)
	if err != nil {
		return nil, err
	}
	req.SetBody(input)
	return c.do(req, http.MethodPost, "save health data")
}

// UpdateHealthData 更新健康记录
func (c *HealthClient) UpdateHealthData(ctx context.Context, input models.HealthCheckInput) (*models.HealthData, error) {
	req, err := c.backend.request(ctx)
	if err != nil {
		return nil, err
	}
	req.SetBody(input)
	return c.do(req, http.MethodPut, "update health data")
}

// DeleteHealthData 删除当前用户的健康记录
func (c *HealthClient) DeleteHealthData(ctx context.Context) error {
	req, err := c.backend.request(ctx)
	if err != nil {
		return err
	}
	_, err = c.do(req, http.MethodDelete, "delete health data")
	return err
}

func (c *HealthClient) do(req *resty.Request, method, action string) (*models.HealthData, error) {
	var response models.HealthResponse
	resp, err := req.
		SetResult(&response).
		SetError(&response).
		Execute(method, healthPath)
	if err != nil {
		c.backend.logger.Error("Health API call failed",
			zap.String("action", action),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to %s: %w", action, err)
	}

	if resp.IsError() {
		c.backend.logger.Warn("Health API returned error status",
			zap.String("action", action),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("message", response.Message),
		)
		return nil, statusError(action, resp)
	}
	if !response.Success {
		msg := response.Message
		if msg == "" {
			msg = "Unknown error occurred"
		}
		return nil, fmt.Errorf("%w: %s", ErrAPI, msg)
	}
	return response.Data, nil
}

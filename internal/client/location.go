package client

import (
	"context"
	"fmt"

	"github.com/mzaki9/Atomus-Lumea/internal/models"

	"go.uber.org/zap"
)

const locationPath = "/api/location"

// LocationClient api/location
type LocationClient struct {
	backend *Backend
}

// NewLocationClient 创建位置客户端
func NewLocationClient(backend *Backend) *LocationClient {
	return &LocationClient{backend: backend}
}

// SendLocation 上报位置（响应体为空）
func (c *LocationClient) SendLocation(ctx context.Context, loc models.Location) error {
	req, err := c.backend.request(ctx)
	if err != nil {
		return err
	}
	resp, err := req.SetBody(loc).Post(locationPath)
	if err != nil {
		return fmt.Errorf("failed to send location: %w", err)
	}
	if resp.IsError() {
		c.backend.logger.Warn("Location API returned error status",
			zap.Int("status_code", resp.StatusCode()),
		)
		return statusError("send location", resp)
	}
	return nil
}

// GetLocations 获取位置列表
func (c *LocationClient) GetLocations(ctx context.Context) ([]models.Location, error) {
	req, err := c.backend.request(ctx)
	if err != nil {
		return nil, err
	}
	var locations []models.Location
	resp, err := req.SetResult(&locations).Get(locationPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get locations: %w", err)
	}
	if resp.IsError() {
		return nil, statusError("get locations", resp)
	}
	return locations, nil
}

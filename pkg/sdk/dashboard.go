package sdk

import (
	"context"
	"net/url"
	"strconv"
)

func (c *Client) GetDashboardData(ctx context.Context) (*DashboardData, error) {
	var data DashboardData
	if err := c.get(ctx, "/api/dashboard-data", nil, &data); err != nil {
		return nil, err
	}
	if data.Servers == nil {
		data.Servers = map[string]Server{}
	}
	return &data, nil
}

func (c *Client) GetHistoryData(ctx context.Context, hours int) (*HistoryData, error) {
	query := url.Values{}
	query.Set("hours", strconv.Itoa(hours))

	var data HistoryData
	if err := c.get(ctx, "/api/history-data", query, &data); err != nil {
		return nil, err
	}
	if data.Hours == 0 {
		data.Hours = hours
	}
	return &data, nil
}

// GetGPUSummary returns the server's pre-rendered ANSI table.
func (c *Client) GetGPUSummary(ctx context.Context) (string, error) {
	return c.getText(ctx, "/api/gpu-summary")
}

func (c *Client) GetLegacyGPUData(ctx context.Context) (LegacyGPUData, error) {
	var data LegacyGPUData
	if err := c.get(ctx, "/data-out/gpu-data-simple", nil, &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = LegacyGPUData{}
	}
	return data, nil
}

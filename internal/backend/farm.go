package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kawaltani/kawaltani/internal/models"
)

func (c *Client) Dashboard(ctx context.Context, siteID string) (models.DashboardPayload, error) {
	var d models.DashboardPayload
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/dashboard",
		endpoint: "dashboard",
		query:    siteQuery(siteID),
	}, &d)
	if err != nil {
		return models.DashboardPayload{}, fmt.Errorf("fetch dashboard: %w", err)
	}
	return d, nil
}

func (c *Client) Realtime(ctx context.Context, siteID string) (models.RealtimePayload, error) {
	var r models.RealtimePayload
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/realtime",
		endpoint: "realtime",
		query:    siteQuery(siteID),
	}, &r)
	if err != nil {
		return models.RealtimePayload{}, fmt.Errorf("fetch realtime: %w", err)
	}
	return r, nil
}

// History fetches historical readings. The backend answers with either a
// list of points or a {message} object explaining why there are none; the
// latter is returned as an *APIError carrying that message.
func (c *Client) History(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryPoint, error) {
	if len(filter.Sensors) == 0 {
		filter.Sensors = []string{"all"}
	}
	raw, err := c.send(ctx, request{
		method:   http.MethodPost,
		path:     "/api/riwayat2",
		endpoint: "riwayat2",
		body:     filter,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		apiErr := responseError(http.StatusOK, raw)
		if apiErr.Message != "" {
			return nil, fmt.Errorf("fetch history: %w", apiErr)
		}
		return nil, nil
	}

	var points []models.HistoryPoint
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &points); err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
	}
	return points, nil
}

func (c *Client) AreaOptions(ctx context.Context, siteID string) ([]models.AreaOption, error) {
	var body struct {
		Areas []models.AreaOption `json:"areas"`
	}
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/area-options",
		endpoint: "area-options",
		query:    siteQuery(siteID),
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("fetch area options: %w", err)
	}
	return body.Areas, nil
}

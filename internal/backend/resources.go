package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kawaltani/kawaltani/internal/models"
)

// Sensors lists a site's sensor configurations. This endpoint returns a
// bare array rather than a {data} envelope.
func (c *Client) Sensors(ctx context.Context, siteID string) ([]models.SensorConfig, error) {
	var sensors []models.SensorConfig
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/sensor",
		endpoint: "sensor",
		query:    siteQuery(siteID),
	}, &sensors)
	if err != nil {
		return nil, fmt.Errorf("list sensors: %w", err)
	}
	return sensors, nil
}

func (c *Client) Sensor(ctx context.Context, id string) (models.SensorConfig, error) {
	var sensor models.SensorConfig
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/sensor/" + escape(id),
		endpoint: "sensor/:id",
	}, &sensor)
	if err != nil {
		return models.SensorConfig{}, fmt.Errorf("get sensor %s: %w", id, err)
	}
	return sensor, nil
}

func (c *Client) UpdateSensor(ctx context.Context, id string, sensor models.SensorConfig) error {
	sensor.ID = models.FlexString(id)
	err := c.do(ctx, request{
		method:   http.MethodPut,
		path:     "/api/sensor/" + escape(id),
		endpoint: "sensor/:id",
		body:     sensor,
	}, nil)
	if err != nil {
		return fmt.Errorf("update sensor %s: %w", id, err)
	}
	return nil
}

func (c *Client) Plants(ctx context.Context) ([]models.Plant, error) {
	var body envelope[[]models.Plant]
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/tanaman",
		endpoint: "tanaman",
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("list plants: %w", err)
	}
	return body.Data, nil
}

func (c *Client) Plant(ctx context.Context, id string) (models.Plant, error) {
	var body envelope[models.Plant]
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/tanaman/" + escape(id),
		endpoint: "tanaman/:id",
	}, &body)
	if err != nil {
		return models.Plant{}, fmt.Errorf("get plant %s: %w", id, err)
	}
	return body.Data, nil
}

func (c *Client) UpdatePlant(ctx context.Context, id string, plant models.Plant) error {
	plant.ID = models.FlexString(id)
	err := c.do(ctx, request{
		method:   http.MethodPut,
		path:     "/api/tanaman/" + escape(id),
		endpoint: "tanaman/:id",
		body:     plant,
	}, nil)
	if err != nil {
		return fmt.Errorf("update plant %s: %w", id, err)
	}
	return nil
}

func (c *Client) Sites(ctx context.Context) ([]models.Site, error) {
	var body envelope[[]models.Site]
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/site",
		endpoint: "site",
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	return body.Data, nil
}

func (c *Client) Site(ctx context.Context, id string) (models.Site, error) {
	var body envelope[models.Site]
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/site/" + escape(id),
		endpoint: "site/:id",
	}, &body)
	if err != nil {
		return models.Site{}, fmt.Errorf("get site %s: %w", id, err)
	}
	return body.Data, nil
}

func (c *Client) UpdateSite(ctx context.Context, id string, site models.Site) error {
	site.ID = models.FlexString(id)
	err := c.do(ctx, request{
		method:   http.MethodPut,
		path:     "/api/site/" + escape(id),
		endpoint: "site/:id",
		body:     site,
	}, nil)
	if err != nil {
		return fmt.Errorf("update site %s: %w", id, err)
	}
	return nil
}

// Package geoip estimates a coarse position from the public IP address. It
// backs the network source of the satellite platform.
package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/shaunagostinho/geofix/internal/location"
)

// DefaultEndpoint is the free ip-api.com endpoint. The free tier does not
// support HTTPS.
const DefaultEndpoint = "http://ip-api.com/json/"

var ErrLookupFailed = errors.New("geoip: lookup failed")

// Response matches the response structure from ip-api.com.
type Response struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city"`
	Country string  `json:"country"`
	Query   string  `json:"query"`
}

// Config holds the client settings.
type Config struct {
	Endpoint string
	Timeout  time.Duration
	Accuracy float64 // Meters reported for every fix
}

// Client looks up the caller's position.
type Client struct {
	endpoint string
	accuracy float64
	http     *http.Client
	logger   *zap.Logger
	now      func() time.Time
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Accuracy <= 0 {
		cfg.Accuracy = 5000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint: cfg.Endpoint,
		accuracy: cfg.Accuracy,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
		now:      time.Now,
	}
}

// Lookup asks the endpoint for the current position.
func (c *Client) Lookup(ctx context.Context) (location.Sample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return location.Sample{}, fmt.Errorf("geoip: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return location.Sample{}, fmt.Errorf("geoip: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Debug("closing geoip response", zap.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return location.Sample{}, fmt.Errorf("%w: http %d", ErrLookupFailed, resp.StatusCode)
	}

	var r Response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return location.Sample{}, fmt.Errorf("geoip: decode: %w", err)
	}
	if r.Status != "" && r.Status != "success" {
		return location.Sample{}, fmt.Errorf("%w: %s", ErrLookupFailed, r.Message)
	}

	c.logger.Debug("ip location resolved",
		zap.String("ip", r.Query), zap.String("city", r.City), zap.String("country", r.Country))
	return location.Sample{
		Latitude:  r.Lat,
		Longitude: r.Lon,
		Accuracy:  c.accuracy,
		Time:      c.now(),
		Source:    location.SourceNetwork,
	}, nil
}

package estimate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"waitline/internal/schedule"
)

const DefaultThroughput = 4.2

// Inputs is the feature vector sent to the predictor. QueueLength is
// the visitor's waiting number at booking time, not the live length.
type Inputs struct {
	QueueLength int
	StaffCount  int
	Throughput  float64
	IsHoliday   bool
	Weather     schedule.Weather
}

type predictRequest struct {
	CurrentQueueLength   int     `json:"current_queue_length"`
	StaffCount           int     `json:"staff_count"`
	HistoricalThroughput float64 `json:"historical_throughput"`
	IsHoliday            bool    `json:"is_holiday"`
	WeatherCondition     string  `json:"weather_condition"`
}

type predictResponse struct {
	PredictedWaitTimeMinutes *float64 `json:"predicted_wait_time_minutes"`
}

type Client struct {
	url      string
	client   *http.Client
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *slog.Logger
}

type Options struct {
	URL      string
	Timeout  time.Duration
	Cache    *redis.Client
	CacheTTL time.Duration
	Logger   *slog.Logger
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:      opts.URL,
		client:   &http.Client{Timeout: timeout},
		cache:    opts.Cache,
		cacheTTL: ttl,
		logger:   logger,
	}
}

// Estimate returns a wait time in whole minutes. It never fails: any
// predictor problem falls back to the local formula and is logged.
func (c *Client) Estimate(ctx context.Context, in Inputs) int {
	if in.Throughput <= 0 {
		in.Throughput = DefaultThroughput
	}
	if c.url == "" {
		return Fallback(in)
	}
	if minutes, ok := c.cached(ctx, in); ok {
		return minutes
	}
	minutes, err := c.predict(ctx, in)
	if err != nil {
		c.logger.Warn("predictor unavailable, using fallback", "error", err)
		return Fallback(in)
	}
	c.store(ctx, in, minutes)
	return minutes
}

func (c *Client) predict(ctx context.Context, in Inputs) (int, error) {
	body, err := json.Marshal(predictRequest{
		CurrentQueueLength:   in.QueueLength,
		StaffCount:           in.StaffCount,
		HistoricalThroughput: in.Throughput,
		IsHoliday:            in.IsHoliday,
		WeatherCondition:     string(in.Weather),
	})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("predictor status %d", resp.StatusCode)
	}

	var parsed predictResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode predictor response: %w", err)
	}
	if parsed.PredictedWaitTimeMinutes == nil {
		return 0, fmt.Errorf("predictor response missing predicted_wait_time_minutes")
	}
	minutes := *parsed.PredictedWaitTimeMinutes
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) || minutes < 0 {
		return 0, fmt.Errorf("predictor returned invalid minutes %v", minutes)
	}
	return int(math.Round(minutes)), nil
}

func (c *Client) cacheKey(in Inputs) string {
	return fmt.Sprintf("estimate:%d:%d:%g:%t:%s", in.QueueLength, in.StaffCount, in.Throughput, in.IsHoliday, in.Weather)
}

func (c *Client) cached(ctx context.Context, in Inputs) (int, bool) {
	if c.cache == nil {
		return 0, false
	}
	minutes, err := c.cache.Get(ctx, c.cacheKey(in)).Int()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("estimate cache read failed", "error", err)
		}
		return 0, false
	}
	return minutes, true
}

func (c *Client) store(ctx context.Context, in Inputs, minutes int) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, c.cacheKey(in), minutes, c.cacheTTL).Err(); err != nil {
		c.logger.Warn("estimate cache write failed", "error", err)
	}
}

// Fallback is the deterministic local formula used whenever the
// predictor cannot answer.
func Fallback(in Inputs) int {
	throughput := in.Throughput
	if throughput <= 0 {
		throughput = DefaultThroughput
	}
	base := float64(in.QueueLength) / throughput
	if in.IsHoliday {
		base *= 1.3
	}
	if in.Weather == schedule.WeatherRainy {
		base *= 1.2
	} else if in.Weather == schedule.WeatherCloudy {
		base *= 1.1
	}
	minutes := int(math.Floor(base + 0.5))
	if minutes < 0 {
		minutes = 0
	}
	return minutes
}

package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	coreconfig "schoolbot/core/config"
	"schoolbot/core/logger"
	"log/slog"
)

// Report is the subset of the provider's current-conditions payload the bot uses.
type Report struct {
	City        string
	Description string
	TempC       float64
	Humidity    int
	Icon        string
}

type currentResponse struct {
	Current *struct {
		TempC     float64 `json:"temp_c"`
		Humidity  int     `json:"humidity"`
		Condition struct {
			Text string `json:"text"`
			Icon string `json:"icon"`
		} `json:"condition"`
	} `json:"current"`
}

// Client queries a weatherapi.com style provider for current conditions.
type Client struct {
	baseURL     string
	apiKey      string
	lang        string
	defaultCity string
	http        *http.Client
}

func NewClient(cfg coreconfig.WeatherConfig, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		lang:        cfg.Lang,
		defaultCity: cfg.DefaultCity,
		http:        hc,
	}
}

// DefaultCity returns the configured fallback city.
func (c *Client) DefaultCity() string {
	return c.defaultCity
}

// Lookup fetches current conditions for the city. An empty city falls
// back to the configured default.
func (c *Client) Lookup(ctx context.Context, city string) (Report, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		city = c.defaultCity
	}

	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("q", city)
	if c.lang != "" {
		q.Set("lang", c.lang)
	}
	endpoint := c.baseURL + "/current.json?" + q.Encode()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Report{}, fmt.Errorf("weather: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logger.SVCWeather.LogAttrs(ctx, slog.LevelError, "lookup failed",
			slog.String("event", "lookup.failed"),
			slog.String("city", city),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return Report{}, fmt.Errorf("weather: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		logger.SVCWeather.LogAttrs(ctx, slog.LevelError, "lookup failed",
			slog.String("event", "lookup.failed"),
			slog.String("city", city),
			slog.Int("http_code", resp.StatusCode),
		)
		return Report{}, fmt.Errorf("weather: unexpected status %s", resp.Status)
	}

	var payload currentResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Report{}, fmt.Errorf("weather: decode response: %w", err)
	}
	if payload.Current == nil {
		return Report{}, fmt.Errorf("weather: response has no current block for %q", city)
	}

	logger.SVCWeather.LogAttrs(ctx, slog.LevelDebug, "lookup ok",
		slog.String("event", "lookup.ok"),
		slog.String("city", city),
		slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
	)

	return Report{
		City:        city,
		Description: payload.Current.Condition.Text,
		TempC:       payload.Current.TempC,
		Humidity:    payload.Current.Humidity,
		Icon:        payload.Current.Condition.Icon,
	}, nil
}

// Format renders the report the way the bot replies to /weather.
func (r Report) Format() string {
	return fmt.Sprintf("Погода в %s:\nТемпература: %g°C\nВлажность: %d%%\nОписание: %s",
		r.City, r.TempC, r.Humidity, r.Description)
}

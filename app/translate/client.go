package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	coreconfig "schoolbot/core/config"
	"schoolbot/core/logger"
	"log/slog"
)

type translateRequest struct {
	TargetLanguageCode string   `json:"targetLanguageCode"`
	Format             string   `json:"format"`
	Texts              []string `json:"texts"`
}

type translateResponse struct {
	Translations []struct {
		Text                 string `json:"text"`
		DetectedLanguageCode string `json:"detectedLanguageCode"`
	} `json:"translations"`
}

// Client talks to a Yandex Translate v2 style endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	targetLang string
	http       *http.Client
}

func NewClient(cfg coreconfig.TranslateConfig, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		targetLang: cfg.TargetLang,
		http:       hc,
	}
}

// Translate returns the text translated into the configured target
// language. Any failure yields an error and no partial output.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(translateRequest{
		TargetLanguageCode: c.targetLang,
		Format:             "PLAIN_TEXT",
		Texts:              []string{text},
	})
	if err != nil {
		return "", fmt.Errorf("translate: marshal request: %w", err)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("translate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Api-Key "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		logger.SVCTranslate.LogAttrs(ctx, slog.LevelError, "translate failed",
			slog.String("event", "translate.failed"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return "", fmt.Errorf("translate: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		logger.SVCTranslate.LogAttrs(ctx, slog.LevelError, "translate failed",
			slog.String("event", "translate.failed"),
			slog.Int("http_code", resp.StatusCode),
		)
		return "", fmt.Errorf("translate: unexpected status %s", resp.Status)
	}

	var payload translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("translate: decode response: %w", err)
	}
	if len(payload.Translations) == 0 {
		return "", fmt.Errorf("translate: empty translations in response")
	}

	logger.SVCTranslate.LogAttrs(ctx, slog.LevelDebug, "translate ok",
		slog.String("event", "translate.ok"),
		slog.String("target_lang", c.targetLang),
		slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
	)

	return payload.Translations[0].Text, nil
}

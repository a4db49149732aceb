package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	coreconfig "schoolbot/core/config"
	"schoolbot/core/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger(nil)
	os.Exit(m.Run())
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := coreconfig.TranslateConfig{
		APIKey:     "secret",
		Endpoint:   srv.URL,
		TargetLang: "en",
	}
	return NewClient(cfg, srv.Client())
}

func TestTranslateSendsTargetLangAndAuth(t *testing.T) {
	var gotAuth string
	var gotReq translateRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_, _ = w.Write([]byte(`{"translations":[{"text":"hello world","detectedLanguageCode":"ru"}]}`))
	})

	out, err := c.Translate(context.Background(), "привет мир")
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
	assert.Equal(t, "Api-Key secret", gotAuth)
	assert.Equal(t, "en", gotReq.TargetLanguageCode)
	assert.Equal(t, []string{"привет мир"}, gotReq.Texts)
}

func TestTranslateErrorYieldsNoOutput(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"quota exceeded"}`, http.StatusForbidden)
	})

	out, err := c.Translate(context.Background(), "что-нибудь")
	require.Error(t, err)
	assert.Empty(t, out, "a failed translation must not leak partial output")
}

func TestTranslateEmptyTranslationsIsAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"translations":[]}`))
	})

	_, err := c.Translate(context.Background(), "текст")
	require.Error(t, err)
}

package weather

import (
	"context"
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

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := coreconfig.WeatherConfig{
		APIKey:      "k123",
		BaseURL:     srv.URL,
		DefaultCity: "Москва",
		Lang:        "ru",
	}
	return NewClient(cfg, srv.Client()), srv
}

func TestLookupParsesCurrentConditions(t *testing.T) {
	var gotQuery string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		assert.Equal(t, "/current.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current":{"temp_c":-7.5,"humidity":81,"condition":{"text":"Пасмурно","icon":"//cdn.weatherapi.com/113.png"}}}`))
	})

	rep, err := c.Lookup(context.Background(), "Санкт-Петербург")
	require.NoError(t, err)
	assert.Equal(t, "Санкт-Петербург", rep.City)
	assert.Equal(t, -7.5, rep.TempC)
	assert.Equal(t, 81, rep.Humidity)
	assert.Equal(t, "Пасмурно", rep.Description)

	// The city must travel url-encoded.
	assert.Contains(t, gotQuery, "q=%D0%A1%D0%B0%D0%BD%D0%BA%D1%82-%D0%9F%D0%B5%D1%82%D0%B5%D1%80%D0%B1%D1%83%D1%80%D0%B3")
	assert.Contains(t, gotQuery, "key=k123")
	assert.Contains(t, gotQuery, "lang=ru")
}

func TestLookupEmptyCityUsesDefault(t *testing.T) {
	var gotCity string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotCity = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(`{"current":{"temp_c":1,"humidity":50,"condition":{"text":"Ясно","icon":""}}}`))
	})

	rep, err := c.Lookup(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, "Москва", gotCity)
	assert.Equal(t, "Москва", rep.City)
}

func TestLookupNon200IsAnError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":1006}}`, http.StatusBadRequest)
	})

	_, err := c.Lookup(context.Background(), "Нигде")
	require.Error(t, err)
}

func TestLookupMissingCurrentIsAnError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"location":{"name":"x"}}`))
	})

	_, err := c.Lookup(context.Background(), "Москва")
	require.Error(t, err)
}

func TestReportFormat(t *testing.T) {
	rep := Report{City: "Москва", Description: "Снег", TempC: -3, Humidity: 90}
	s := rep.Format()
	assert.Contains(t, s, "Погода в Москва:")
	assert.Contains(t, s, "Температура: -3°C")
	assert.Contains(t, s, "Влажность: 90%")
	assert.Contains(t, s, "Описание: Снег")
}

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pwscache/internal/upstream"
	"pwscache/internal/weather"
)

const (
	currentURL  = "https://api.weather.com/v2/pws/observations/current"
	forecastURL = "https://api.weather.com/v3/wx/forecast/daily/5day"
)

func setup(t *testing.T, ttl time.Duration, opts ...weather.Option) (*http.ServeMux, *weather.Cache[json.RawMessage]) {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)

	cache := weather.NewCache[json.RawMessage]()
	client := upstream.NewClient("https://api.weather.com", "IHELSINK42", "secret", "m")
	svc := weather.NewService(cache, client, ttl, opts...)

	mux := http.NewServeMux()
	NewHandler(svc).RegisterRoutes(mux)
	return mux, cache
}

func get(mux http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestCurrent_MissThenHit(t *testing.T) {
	mux, _ := setup(t, time.Minute)
	payload := `{"observations":[{"metric":{"temp":20}}]}`
	httpmock.RegisterResponder(http.MethodGet, currentURL, httpmock.NewStringResponder(http.StatusOK, payload))

	first := get(mux, "/current")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "application/json", first.Header().Get("Content-Type"))
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, "public, max-age=60", first.Header().Get("Cache-Control"))
	assert.Equal(t, payload, first.Body.String())

	second := get(mux, "/current")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())

	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestRoot_SharesCurrentEntry(t *testing.T) {
	mux, _ := setup(t, time.Minute)
	httpmock.RegisterResponder(http.MethodGet, currentURL, httpmock.NewStringResponder(http.StatusOK, `{"temp":20}`))

	require.Equal(t, http.StatusOK, get(mux, "/current").Code)
	root := get(mux, "/")
	require.Equal(t, http.StatusOK, root.Code)
	assert.Equal(t, "HIT", root.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"temp":20}`, root.Body.String())

	assert.Equal(t, http.StatusNotFound, get(mux, "/other").Code)
}

func TestForecast_KeysPerParameters(t *testing.T) {
	mux, cache := setup(t, time.Minute)
	httpmock.RegisterResponderWithQuery(http.MethodGet, forecastURL, map[string]string{"apiKey": "secret", "format": "json", "geocode": "2614,48", "language": "en-US", "units": "m"},
		httpmock.NewStringResponder(http.StatusOK, `{"narrative":["Sunny"]}`))
	httpmock.RegisterResponderWithQuery(http.MethodGet, forecastURL, map[string]string{"apiKey": "secret", "format": "json", "geocode": "2614,48", "language": "fr-FR", "units": "m"},
		httpmock.NewStringResponder(http.StatusOK, `{"narrative":["Ensoleillé"]}`))

	en := get(mux, "/forecast?geocode=2614,48&language=en-US")
	require.Equal(t, http.StatusOK, en.Code)
	assert.JSONEq(t, `{"narrative":["Sunny"]}`, en.Body.String())

	fr := get(mux, "/forecast?geocode=2614,48&language=fr-FR")
	require.Equal(t, http.StatusOK, fr.Code)
	assert.Equal(t, "MISS", fr.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"narrative":["Ensoleillé"]}`, fr.Body.String())

	_, ok := cache.Get("forecast_2614,48_en-US")
	assert.True(t, ok)
	_, ok = cache.Get("forecast_2614,48_fr-FR")
	assert.True(t, ok)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestForecast_MissingParameters(t *testing.T) {
	mux, _ := setup(t, time.Minute)

	for _, target := range []string{"/forecast", "/forecast?geocode=1,2", "/forecast?language=en-US"} {
		rec := get(mux, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "missing", target)
	}
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestForecast_EmptyParametersAccepted(t *testing.T) {
	mux, cache := setup(t, time.Minute)
	httpmock.RegisterResponder(http.MethodGet, forecastURL, httpmock.NewStringResponder(http.StatusOK, `{}`))

	rec := get(mux, "/forecast?geocode=&language=en-US")
	assert.Equal(t, http.StatusOK, rec.Code)
	_, ok := cache.Get("forecast__en-US")
	assert.True(t, ok)
}

func TestCacheControl_UsesServiceClock(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	mux, _ := setup(t, time.Minute, weather.WithClock(func() time.Time { return now }))
	httpmock.RegisterResponder(http.MethodGet, currentURL, httpmock.NewStringResponder(http.StatusOK, `{}`))

	assert.Equal(t, "public, max-age=60", get(mux, "/current").Header().Get("Cache-Control"))

	now = now.Add(45 * time.Second)
	rec := get(mux, "/current")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, "public, max-age=15", rec.Header().Get("Cache-Control"))
}

func TestUpstreamFailure_LoggedOnceWithoutAPIKey(t *testing.T) {
	mux, _ := setup(t, time.Minute)
	httpmock.RegisterResponder(http.MethodGet, currentURL, httpmock.NewErrorResponder(errors.New("i/o timeout")))

	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	rec := get(mux, "/current")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	out := logs.String()
	assert.Equal(t, 1, strings.Count(out, "\n"), out)
	assert.Contains(t, out, "i/o timeout")
	assert.NotContains(t, out, "apiKey=secret")
}

func TestUpstreamFailure_NotCached(t *testing.T) {
	mux, cache := setup(t, time.Minute)
	httpmock.RegisterResponder(http.MethodGet, currentURL, httpmock.NewStringResponder(http.StatusInternalServerError, "down"))

	rec := get(mux, "/current")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"upstream fetch failed"}`, rec.Body.String())
	_, ok := cache.Get("current")
	assert.False(t, ok)

	httpmock.RegisterResponder(http.MethodGet, currentURL, httpmock.NewStringResponder(http.StatusOK, `{"temp":3}`))
	rec = get(mux, "/current")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestHealth(t *testing.T) {
	mux, _ := setup(t, time.Minute)

	rec := get(mux, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAccessLog(t *testing.T) {
	mux, _ := setup(t, time.Minute)
	httpmock.RegisterResponder(http.MethodGet, currentURL, httpmock.NewStringResponder(http.StatusOK, `{}`))

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := AccessLog(logger, mux)

	get(handler, "/current")
	get(handler, "/health")

	dec := json.NewDecoder(&buf)
	var records []map[string]any
	for dec.More() {
		var rec map[string]any
		require.NoError(t, dec.Decode(&rec))
		records = append(records, rec)
	}
	require.Len(t, records, 2)
	assert.Equal(t, "/current", records[0]["path"])
	assert.Equal(t, "miss", records[0]["cache_status"])
	assert.EqualValues(t, 200, records[0]["status"])
	assert.Equal(t, "bypass", records[1]["cache_status"])
}

package openmeteo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOpenMeteo struct {
	geocodeCalls  atomic.Int32
	forecastCalls atomic.Int32

	geocodeBody    string
	forecastBody   string
	forecastStatus int
	lastForecast   atomic.Value
}

func (f *fakeOpenMeteo) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		f.geocodeCalls.Add(1)
		assert.Equal(t, "1", r.URL.Query().Get("count"))
		_, _ = w.Write([]byte(f.geocodeBody))
	})
	mux.HandleFunc("/v1/forecast", func(w http.ResponseWriter, r *http.Request) {
		f.forecastCalls.Add(1)
		f.lastForecast.Store(r.URL.Query())
		if f.forecastStatus != 0 {
			w.WriteHeader(f.forecastStatus)
			return
		}
		_, _ = w.Write([]byte(f.forecastBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, f *fakeOpenMeteo) *Client {
	t.Helper()
	srv := f.server(t)
	c, err := NewClient(Config{
		GeocodeURL:  srv.URL + "/v1/search",
		ForecastURL: srv.URL + "/v1/forecast",
	})
	require.NoError(t, err)
	return c.WithHTTPClient(srv.Client())
}

const bangkokGeocode = `{"results":[{"name":"Bangkok","country":"Thailand","latitude":13.75,"longitude":100.5167}]}`

func TestGetCurrentWeather(t *testing.T) {
	t.Parallel()

	f := &fakeOpenMeteo{
		geocodeBody:  bangkokGeocode,
		forecastBody: `{"current":{"temperature_2m":91.4,"weather_code":2}}`,
	}
	c := newTestClient(t, f)

	got := c.GetCurrentWeather(context.Background(), "Bangkok")
	assert.Equal(t, Report{
		Location:    "Bangkok, Thailand",
		Temperature: "91.4°F",
		Condition:   "Partly cloudy",
		Source:      "Open-Meteo",
	}, got)
	assert.NoError(t, got.Err())

	q := f.lastForecast.Load().(url.Values)
	assert.Equal(t, "fahrenheit", q.Get("temperature_unit"))
	assert.Equal(t, "temperature_2m,weather_code", q.Get("current"))
	assert.Equal(t, "13.75", q.Get("latitude"))
}

func TestGetCurrentWeatherCityNotFound(t *testing.T) {
	t.Parallel()

	f := &fakeOpenMeteo{geocodeBody: `{}`}
	c := newTestClient(t, f)

	got := c.GetCurrentWeather(context.Background(), "Atlantis")
	assert.Equal(t, Report{Error: "City not found"}, got)
	assert.ErrorIs(t, got.Err(), ErrLookup)
	assert.Zero(t, f.forecastCalls.Load())

	assert.Equal(t, Report{Error: "City not found"}, c.GetCurrentWeather(context.Background(), "  "))
}

func TestGetCurrentWeatherServiceUnavailable(t *testing.T) {
	t.Parallel()

	f := &fakeOpenMeteo{geocodeBody: bangkokGeocode, forecastStatus: http.StatusBadGateway}
	c := newTestClient(t, f)

	got := c.GetCurrentWeather(context.Background(), "Bangkok")
	assert.Equal(t, Report{Error: "Weather service unavailable"}, got)
}

func TestCondition(t *testing.T) {
	t.Parallel()

	cases := map[int]string{
		0: "Clear sky", 1: "Partly cloudy", 3: "Partly cloudy",
		45: "Foggy", 48: "Foggy", 53: "Drizzle", 63: "Rain",
		75: "Snow", 95: "Thunderstorm", 99: "Thunderstorm",
		4: "Unknown", 80: "Unknown",
	}
	for code, want := range cases {
		assert.Equal(t, want, Condition(code), "code %d", code)
	}
}

type countingLookup struct {
	calls  atomic.Int32
	report Report
	delay  time.Duration
}

func (c *countingLookup) GetCurrentWeather(ctx context.Context, place string) Report {
	c.calls.Add(1)
	time.Sleep(c.delay)
	return c.report
}

func TestCachedReusesReportsUntilExpiry(t *testing.T) {
	t.Parallel()

	next := &countingLookup{report: Report{Location: "Bangkok, Thailand", Temperature: "90.0°F", Condition: "Clear sky", Source: SourceName}}
	cache := NewCached(next, time.Minute)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	ctx := context.Background()
	assert.Equal(t, next.report, cache.GetCurrentWeather(ctx, "Bangkok"))
	assert.Equal(t, next.report, cache.GetCurrentWeather(ctx, " bangkok "))
	assert.Equal(t, int32(1), next.calls.Load())

	now = now.Add(2 * time.Minute)
	cache.GetCurrentWeather(ctx, "Bangkok")
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachedSkipsFailures(t *testing.T) {
	t.Parallel()

	next := &countingLookup{report: Report{Error: MsgServiceUnavailable}}
	cache := NewCached(next, time.Minute)

	cache.GetCurrentWeather(context.Background(), "Bangkok")
	cache.GetCurrentWeather(context.Background(), "Bangkok")
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachedCollapsesConcurrentLookups(t *testing.T) {
	t.Parallel()

	next := &countingLookup{report: Report{Location: "Oslo, Norway", Temperature: "40.1°F", Source: SourceName}, delay: 50 * time.Millisecond}
	cache := NewCached(next, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "Oslo, Norway", cache.GetCurrentWeather(context.Background(), "Oslo").Location)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), next.calls.Load())
}

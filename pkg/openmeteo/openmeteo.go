package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultGeocodeURL  = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"

	SourceName = "Open-Meteo"

	MsgCityNotFound        = "City not found"
	MsgServiceUnavailable  = "Weather service unavailable"
	maxResponseSizeBytes   = 1 << 20
	defaultRequestTimeout  = 10 * time.Second
	temperatureUnitDisplay = "°F"
)

type Config struct {
	GeocodeURL  string        `split_words:"true" default:"https://geocoding-api.open-meteo.com/v1/search"`
	ForecastURL string        `split_words:"true" default:"https://api.open-meteo.com/v1/forecast"`
	Timeout     time.Duration `split_words:"true" default:"10s"`
	CacheTTL    time.Duration `split_words:"true" default:"10m"`
}

// Report is the lookup result. A failed lookup is still a Report, with only
// Error set.
type Report struct {
	Location    string `json:"location,omitempty"`
	Temperature string `json:"temperature,omitempty"`
	Condition   string `json:"conditions,omitempty"`
	Source      string `json:"source,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (r Report) Failed() bool { return r.Error != "" }

// Lookup is satisfied by Client and Cached.
type Lookup interface {
	GetCurrentWeather(ctx context.Context, place string) Report
}

type Client struct {
	geocodeURL  string
	forecastURL string
	httpClient  *http.Client
}

var _ Lookup = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	geocodeURL := strings.TrimSpace(cfg.GeocodeURL)
	if geocodeURL == "" {
		geocodeURL = DefaultGeocodeURL
	}
	forecastURL := strings.TrimSpace(cfg.ForecastURL)
	if forecastURL == "" {
		forecastURL = DefaultForecastURL
	}
	for _, raw := range []string{geocodeURL, forecastURL} {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return nil, fmt.Errorf("invalid open-meteo url %q: %w", raw, err)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Client{
		geocodeURL:  geocodeURL,
		forecastURL: forecastURL,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// WithHTTPClient swaps the transport, mostly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

type place struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type geocodeResponse struct {
	Results []place `json:"results"`
}

type forecastResponse struct {
	Current struct {
		Temperature *float64 `json:"temperature_2m"`
		WeatherCode int      `json:"weather_code"`
	} `json:"current"`
}

// GetCurrentWeather resolves the place name to coordinates, then reads the
// current temperature and weather code.
func (c *Client) GetCurrentWeather(ctx context.Context, placeName string) Report {
	name := strings.TrimSpace(placeName)
	if name == "" {
		return Report{Error: MsgCityNotFound}
	}

	loc, err := c.geocode(ctx, name)
	if err != nil {
		log.Warn().Err(err).Str("place", name).Msg("geocoding failed")
		return Report{Error: MsgCityNotFound}
	}
	if loc == nil {
		return Report{Error: MsgCityNotFound}
	}

	fc, err := c.forecast(ctx, loc)
	if err != nil {
		log.Warn().Err(err).Str("place", name).Msg("forecast lookup failed")
		return Report{Error: MsgServiceUnavailable}
	}
	if fc.Current.Temperature == nil {
		log.Warn().Str("place", name).Msg("forecast missing temperature_2m")
		return Report{Error: MsgServiceUnavailable}
	}

	return Report{
		Location:    loc.Name + ", " + loc.Country,
		Temperature: strconv.FormatFloat(*fc.Current.Temperature, 'f', 1, 64) + temperatureUnitDisplay,
		Condition:   Condition(fc.Current.WeatherCode),
		Source:      SourceName,
	}
}

func (c *Client) geocode(ctx context.Context, name string) (*place, error) {
	q := url.Values{}
	q.Set("name", name)
	q.Set("count", "1")
	q.Set("language", "en")
	q.Set("format", "json")

	var out geocodeResponse
	if err := c.getJSON(ctx, c.geocodeURL, q, &out); err != nil {
		return nil, err
	}
	if len(out.Results) == 0 {
		return nil, nil
	}
	return &out.Results[0], nil
}

func (c *Client) forecast(ctx context.Context, loc *place) (*forecastResponse, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	q.Set("current", "temperature_2m,weather_code")
	q.Set("temperature_unit", "fahrenheit")
	q.Set("wind_speed_unit", "mph")
	q.Set("precipitation_unit", "inch")

	var out forecastResponse
	if err := c.getJSON(ctx, c.forecastURL, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("open-meteo http status=%d body=%s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Condition maps a WMO weather code to display text.
func Condition(code int) string {
	switch {
	case code == 0:
		return "Clear sky"
	case code >= 1 && code <= 3:
		return "Partly cloudy"
	case code == 45 || code == 48:
		return "Foggy"
	case code == 51 || code == 53 || code == 55:
		return "Drizzle"
	case code == 61 || code == 63 || code == 65:
		return "Rain"
	case code == 71 || code == 73 || code == 75:
		return "Snow"
	case code >= 95:
		return "Thunderstorm"
	default:
		return "Unknown"
	}
}

// ErrLookup wraps a failed Report for callers that want an error value.
var ErrLookup = errors.New("weather lookup failed")

// Err returns nil for a successful report.
func (r Report) Err() error {
	if r.Error == "" {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrLookup, r.Error)
}

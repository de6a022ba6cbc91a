// Package weather looks up current conditions from the open-meteo API.
// The lookup is a best-effort enrichment: it never returns an error, only
// a sentinel condition, so a dead network cannot block event creation.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rldls/doorlog/internal/logging"
	"github.com/rldls/doorlog/internal/models"
)

// ConditionUnavailable is the sentinel stored when the lookup fails.
const ConditionUnavailable = "unavailable"

const defaultBaseURL = "https://api.open-meteo.com"

// Client fetches current weather for a fixed position.
type Client struct {
	httpClient *http.Client
	baseURL    string
	lat, lon   float64
}

// NewClient creates a weather client for the configured coordinates.
func NewClient(lat, lon float64) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    defaultBaseURL,
		lat:        lat,
		lon:        lon,
	}
}

// NewClientWithBase is used by tests to point at a stub server.
func NewClientWithBase(baseURL string, lat, lon float64) *Client {
	c := NewClient(lat, lon)
	c.baseURL = baseURL
	return c
}

type currentWeather struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
}

// Fetch returns the conditions near the given instant. Any failure maps
// to {nil, "unavailable"}.
func (c *Client) Fetch(ctx context.Context, at time.Time) models.Weather {
	url := fmt.Sprintf("%s/v1/forecast?latitude=%.4f&longitude=%.4f&current=temperature_2m,weather_code",
		c.baseURL, c.lat, c.lon)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return unavailable(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return unavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return unavailable(fmt.Errorf("weather api returned %d", resp.StatusCode))
	}

	var cw currentWeather
	if err := json.NewDecoder(resp.Body).Decode(&cw); err != nil {
		return unavailable(err)
	}

	temp := cw.Current.Temperature
	return models.Weather{
		Temp:      &temp,
		Condition: conditionFromCode(cw.Current.WeatherCode),
	}
}

func unavailable(err error) models.Weather {
	logging.Warn("weather lookup failed", map[string]interface{}{"error": err.Error()})
	return models.Weather{Temp: nil, Condition: ConditionUnavailable}
}

// conditionFromCode maps WMO weather codes to the coarse strings the
// sheet stores.
func conditionFromCode(code int) string {
	switch {
	case code == 0:
		return "clear"
	case code <= 3:
		return "cloudy"
	case code == 45 || code == 48:
		return "fog"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67:
		return "rain"
	case code >= 71 && code <= 77:
		return "snow"
	case code >= 80 && code <= 82:
		return "showers"
	case code >= 85 && code <= 86:
		return "snow"
	case code >= 95:
		return "thunderstorm"
	default:
		return "unknown"
	}
}

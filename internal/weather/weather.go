// ABOUTME: Weather lookups backed by the Open-Meteo geocoding and forecast APIs
// ABOUTME: Resolves a place name to coordinates, then fetches current conditions

package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	geocodeURL  = "https://geocoding-api.open-meteo.com/v1/search"
	forecastURL = "https://api.open-meteo.com/v1/forecast"
)

// Location is a resolved place.
type Location struct {
	Name      string
	Country   string
	Latitude  float64
	Longitude float64
}

// Current holds the current conditions at a location.
type Current struct {
	Temperature   float64
	FeelsLike     float64
	Humidity      float64
	WindSpeed     float64
	Precipitation float64
	WeatherCode   int
	Time          string
}

// Service answers weather queries.
type Service struct {
	httpClient  *http.Client
	geocodeURL  string
	forecastURL string
	logger      *slog.Logger
}

// NewService creates a weather service.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		geocodeURL:  geocodeURL,
		forecastURL: forecastURL,
		logger:      logger.With("component", "weather"),
	}
}

// Geocode resolves a free-form place name to its best-matching location.
func (s *Service) Geocode(ctx context.Context, place string) (*Location, error) {
	place = strings.TrimSpace(place)
	if place == "" {
		return nil, fmt.Errorf("empty place name")
	}

	query := url.Values{}
	query.Set("name", place)
	query.Set("count", "1")
	query.Set("language", "en")
	query.Set("format", "json")

	var payload struct {
		Results []struct {
			Name      string  `json:"name"`
			Country   string  `json:"country"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"results"`
	}
	if err := s.getJSON(ctx, s.geocodeURL+"?"+query.Encode(), &payload); err != nil {
		return nil, fmt.Errorf("geocoding %q: %w", place, err)
	}
	if len(payload.Results) == 0 {
		return nil, fmt.Errorf("no location found for %q", place)
	}

	r := payload.Results[0]
	return &Location{
		Name:      r.Name,
		Country:   r.Country,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
	}, nil
}

// CurrentConditions fetches the current weather at a location.
func (s *Service) CurrentConditions(ctx context.Context, loc *Location) (*Current, error) {
	query := url.Values{}
	query.Set("latitude", fmt.Sprintf("%.4f", loc.Latitude))
	query.Set("longitude", fmt.Sprintf("%.4f", loc.Longitude))
	query.Set("current", "temperature_2m,apparent_temperature,relative_humidity_2m,wind_speed_10m,precipitation,weather_code")
	query.Set("temperature_unit", "celsius")
	query.Set("wind_speed_unit", "kmh")
	query.Set("precipitation_unit", "mm")
	query.Set("timezone", "auto")

	var payload struct {
		Current struct {
			Time                string  `json:"time"`
			Temperature         float64 `json:"temperature_2m"`
			ApparentTemperature float64 `json:"apparent_temperature"`
			RelativeHumidity    float64 `json:"relative_humidity_2m"`
			WindSpeed           float64 `json:"wind_speed_10m"`
			Precipitation       float64 `json:"precipitation"`
			WeatherCode         int     `json:"weather_code"`
		} `json:"current"`
	}
	if err := s.getJSON(ctx, s.forecastURL+"?"+query.Encode(), &payload); err != nil {
		return nil, fmt.Errorf("fetching conditions for %s: %w", loc.Name, err)
	}

	c := payload.Current
	return &Current{
		Temperature:   c.Temperature,
		FeelsLike:     c.ApparentTemperature,
		Humidity:      c.RelativeHumidity,
		WindSpeed:     c.WindSpeed,
		Precipitation: c.Precipitation,
		WeatherCode:   c.WeatherCode,
		Time:          c.Time,
	}, nil
}

// Report geocodes a place and renders its current conditions.
func (s *Service) Report(ctx context.Context, place string) (string, error) {
	loc, err := s.Geocode(ctx, place)
	if err != nil {
		return "", err
	}
	current, err := s.CurrentConditions(ctx, loc)
	if err != nil {
		return "", err
	}
	return Format(loc, current), nil
}

// Format renders a weather card for chat output.
func Format(loc *Location, c *Current) string {
	where := loc.Name
	if loc.Country != "" {
		where += ", " + loc.Country
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Weather for %s\n", where)
	fmt.Fprintf(&b, "  %s  %s\n", describeCode(c.WeatherCode), c.Time)
	fmt.Fprintf(&b, "  Temperature: %.1f°C (feels like %.1f°C)\n", c.Temperature, c.FeelsLike)
	fmt.Fprintf(&b, "  Humidity: %.0f%%\n", c.Humidity)
	fmt.Fprintf(&b, "  Wind: %.1f km/h\n", c.WindSpeed)
	fmt.Fprintf(&b, "  Precipitation: %.1f mm", c.Precipitation)
	return b.String()
}

// describeCode maps WMO weather codes to short descriptions.
func describeCode(code int) string {
	switch {
	case code == 0:
		return "Clear sky"
	case code <= 2:
		return "Partly cloudy"
	case code == 3:
		return "Overcast"
	case code == 45 || code == 48:
		return "Fog"
	case code >= 51 && code <= 57:
		return "Drizzle"
	case code >= 61 && code <= 67:
		return "Rain"
	case code >= 71 && code <= 77:
		return "Snow"
	case code >= 80 && code <= 82:
		return "Rain showers"
	case code >= 85 && code <= 86:
		return "Snow showers"
	case code >= 95:
		return "Thunderstorm"
	default:
		return "Unknown conditions"
	}
}

func (s *Service) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

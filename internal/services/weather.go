package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/AnshRaj112/tripjournal-backend/internal/metrics"
	"golang.org/x/time/rate"
)

var (
	// ErrLocationNotFound means the geocoder returned no candidate.
	ErrLocationNotFound = errors.New("location not found")
	// ErrProviderUnavailable wraps any failure to complete a lookup.
	ErrProviderUnavailable = errors.New("metadata provider unavailable")
)

type GeoPoint struct {
	Lat float64
	Lon float64
}

// CurrentWeather fields are nil when the provider omitted them.
type CurrentWeather struct {
	Temperature *float64
	Description *string
	Humidity    *int
	WindSpeed   *float64
	Icon        *string
}

type ResolvedLocation struct {
	GPS     GeoPoint
	Weather CurrentWeather
}

// MetadataProvider turns a place name into coordinates and current weather.
type MetadataProvider interface {
	Resolve(ctx context.Context, city, countryCode string) (*ResolvedLocation, error)
}

type OpenWeatherConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerMinute int // 0 disables outbound rate limiting
}

// OpenWeatherClient talks to the OpenWeather geocoding and current weather
// APIs. Each Resolve is two fresh round trips; there are no retries.
type OpenWeatherClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *breaker[*ResolvedLocation]
}

func NewOpenWeatherClient(cfg OpenWeatherConfig) *OpenWeatherClient {
	c := &OpenWeatherClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker: newBreaker[*ResolvedLocation]("openweather", func(err error) bool {
			return err == nil || errors.Is(err, ErrLocationNotFound)
		}),
	}
	if cfg.RequestsPerMinute > 0 {
		// two calls per Resolve
		c.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 2)
	}
	return c
}

// Resolve geocodes city (narrowed by countryCode when set) and fetches the
// current weather at the first match.
func (c *OpenWeatherClient) Resolve(ctx context.Context, city, countryCode string) (*ResolvedLocation, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, fmt.Errorf("%w: city is required", ErrLocationNotFound)
	}

	res, err := c.breaker.execute(func() (*ResolvedLocation, error) {
		gps, err := c.Geocode(ctx, city, countryCode)
		if err != nil {
			return nil, err
		}
		weather, err := c.CurrentWeather(ctx, gps.Lat, gps.Lon)
		if err != nil {
			return nil, err
		}
		return &ResolvedLocation{GPS: gps, Weather: weather}, nil
	})
	switch {
	case err == nil:
		metrics.ProviderRequests.WithLabelValues("success").Inc()
		return res, nil
	case errors.Is(err, ErrLocationNotFound):
		metrics.ProviderRequests.WithLabelValues("not_found").Inc()
		return nil, err
	case isBreakerRejection(err):
		metrics.ProviderRequests.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	default:
		metrics.ProviderRequests.WithLabelValues("error").Inc()
		return nil, err
	}
}

type geoResult struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
	State   string  `json:"state"`
}

// Geocode returns the provider's best match for city.
func (c *OpenWeatherClient) Geocode(ctx context.Context, city, countryCode string) (GeoPoint, error) {
	q := city
	if cc := strings.TrimSpace(countryCode); cc != "" {
		q = city + "," + cc
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("limit", "1")
	params.Set("appid", c.apiKey)

	var results []geoResult
	if err := c.getJSON(ctx, "/geo/1.0/direct", params, &results); err != nil {
		return GeoPoint{}, fmt.Errorf("geocode %q: %w", q, err)
	}
	if len(results) == 0 {
		return GeoPoint{}, fmt.Errorf("geocode %q: %w", q, ErrLocationNotFound)
	}
	return GeoPoint{Lat: results[0].Lat, Lon: results[0].Lon}, nil
}

type weatherResponse struct {
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Wind *struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
}

// CurrentWeather fetches metric current conditions at lat/lon.
func (c *OpenWeatherClient) CurrentWeather(ctx context.Context, lat, lon float64) (CurrentWeather, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("units", "metric")
	params.Set("appid", c.apiKey)

	var res weatherResponse
	if err := c.getJSON(ctx, "/data/2.5/weather", params, &res); err != nil {
		return CurrentWeather{}, fmt.Errorf("current weather: %w", err)
	}

	var out CurrentWeather
	if res.Main != nil {
		out.Temperature = res.Main.Temp
		out.Humidity = res.Main.Humidity
	}
	if res.Wind != nil {
		out.WindSpeed = res.Wind.Speed
	}
	if len(res.Weather) > 0 {
		desc, icon := res.Weather[0].Description, res.Weather[0].Icon
		out.Description = &desc
		out.Icon = &icon
	}
	return out, nil
}

func (c *OpenWeatherClient) getJSON(ctx context.Context, path string, params url.Values, dest any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: rate limit: %v", ErrProviderUnavailable, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: unexpected status %d", ErrProviderUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: malformed response: %v", ErrProviderUnavailable, err)
	}
	return nil
}

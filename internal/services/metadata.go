package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/AnshRaj112/tripjournal-backend/internal/models"
)

// Reconciler builds the location-derived part of journal metadata and
// combines it with what the client sent.
type Reconciler struct {
	provider MetadataProvider
}

func NewReconciler(provider MetadataProvider) *Reconciler {
	return &Reconciler{provider: provider}
}

// BuildAuto resolves city/country into the "gps" and "weather" keys. A blank
// city yields empty metadata without a lookup. Either both keys are produced
// or an error is returned.
func (r *Reconciler) BuildAuto(ctx context.Context, city, country *string) (models.Metadata, error) {
	auto := models.Metadata{}
	if city == nil || strings.TrimSpace(*city) == "" {
		return auto, nil
	}
	if r.provider == nil {
		return nil, fmt.Errorf("%w: no provider configured", ErrProviderUnavailable)
	}

	cc := ""
	if country != nil {
		cc = strings.TrimSpace(*country)
	}
	loc, err := r.provider.Resolve(ctx, strings.TrimSpace(*city), cc)
	if err != nil {
		return nil, err
	}

	auto[models.MetadataKeyGPS] = map[string]any{
		"latitude":  loc.GPS.Lat,
		"longitude": loc.GPS.Lon,
	}
	auto[models.MetadataKeyWeather] = map[string]any{
		"temperature": derefOrNil(loc.Weather.Temperature),
		"description": derefOrNil(loc.Weather.Description),
		"humidity":    derefOrNil(loc.Weather.Humidity),
		"windSpeed":   derefOrNil(loc.Weather.WindSpeed),
		"icon":        derefOrNil(loc.Weather.Icon),
	}
	return auto, nil
}

func derefOrNil[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// ExtractAuto returns the "gps" and "weather" entries of existing, values
// untouched.
func ExtractAuto(existing models.Metadata) models.Metadata {
	out := models.Metadata{}
	for _, k := range []string{models.MetadataKeyGPS, models.MetadataKeyWeather} {
		if v, ok := existing[k]; ok {
			out[k] = v
		}
	}
	return out
}

// MergeMetadata returns a new map holding auto overlaid with user. User
// values replace auto values key by key; nested maps are not merged.
func MergeMetadata(auto, user models.Metadata) models.Metadata {
	merged := make(models.Metadata, len(auto)+len(user))
	for k, v := range auto {
		merged[k] = v
	}
	for k, v := range user {
		merged[k] = v
	}
	return merged
}

// ViewOf reads gps and weather out of stored metadata. Values that cannot be
// interpreted become nil rather than failing the response.
func ViewOf(m models.Metadata) *models.MetadataView {
	if len(m) == 0 {
		return nil
	}

	var view models.MetadataView
	if gps, ok := asMap(m[models.MetadataKeyGPS]); ok {
		lat := firstFloat(gps, "lat", "latitude")
		lon := firstFloat(gps, "lon", "longitude")
		if lat != nil || lon != nil {
			view.GPS = &models.GPSView{Lat: lat, Lon: lon}
		}
	}
	if wx, ok := asMap(m[models.MetadataKeyWeather]); ok {
		view.Weather = &models.WeatherView{
			Temperature: asFloat(wx["temperature"]),
			Description: asString(wx["description"]),
			Humidity:    asInt(wx["humidity"]),
			WindSpeed:   asFloat(wx["windSpeed"]),
			Icon:        asString(wx["icon"]),
		}
	}
	if view.GPS == nil && view.Weather == nil {
		return nil
	}
	return &view
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case models.Metadata:
		return t, true
	default:
		return nil, false
	}
}

func firstFloat(m map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		if f := asFloat(m[k]); f != nil {
			return f
		}
	}
	return nil
}

func asFloat(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	return &f
}

func asInt(v any) *int {
	var i int
	switch t := v.(type) {
	case int:
		i = t
	case int32:
		i = int(t)
	case int64:
		i = int(t)
	case float64:
		i = int(t)
	case float32:
		i = int(t)
	case json.Number:
		parsed, err := strconv.Atoi(t.String())
		if err != nil {
			return nil
		}
		i = parsed
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		i = parsed
	default:
		return nil
	}
	return &i
}

func asString(v any) *string {
	if v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	return &s
}

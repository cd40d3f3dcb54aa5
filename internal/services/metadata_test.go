package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/AnshRaj112/tripjournal-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAutoShapesProviderResult(t *testing.T) {
	p := &fakeProvider{result: berlinLocation()}
	auto, err := NewReconciler(p).BuildAuto(context.Background(), strPtr(" Berlin "), strPtr("DE"))
	require.NoError(t, err)

	assert.Equal(t, []resolveCall{{City: "Berlin", Country: "DE"}}, p.calls)
	assert.Equal(t, map[string]any{"latitude": 52.52, "longitude": 13.405}, auto["gps"])
	assert.Equal(t, map[string]any{
		"temperature": 21.5,
		"description": "clear sky",
		"humidity":    40,
		"windSpeed":   3.2,
		"icon":        "01d",
	}, auto["weather"])
}

func TestBuildAutoMissingWeatherFieldsAreNull(t *testing.T) {
	p := &fakeProvider{result: &ResolvedLocation{GPS: GeoPoint{Lat: 1, Lon: 2}}}
	auto, err := NewReconciler(p).BuildAuto(context.Background(), strPtr("X"), nil)
	require.NoError(t, err)

	weather := auto["weather"].(map[string]any)
	assert.Len(t, weather, 5)
	for k, v := range weather {
		assert.Nil(t, v, k)
	}
	assert.Equal(t, "", p.calls[0].Country)
}

func TestBuildAutoBlankCity(t *testing.T) {
	p := &fakeProvider{result: berlinLocation()}
	r := NewReconciler(p)

	for _, city := range []*string{nil, strPtr(""), strPtr(" \t")} {
		auto, err := r.BuildAuto(context.Background(), city, strPtr("DE"))
		require.NoError(t, err)
		assert.NotNil(t, auto)
		assert.Empty(t, auto)
	}
	assert.Zero(t, p.callCount())
}

func TestBuildAutoFailsAtomically(t *testing.T) {
	p := &fakeProvider{err: ErrLocationNotFound}
	auto, err := NewReconciler(p).BuildAuto(context.Background(), strPtr("Nowhere"), nil)
	assert.ErrorIs(t, err, ErrLocationNotFound)
	assert.Nil(t, auto)

	_, err = NewReconciler(nil).BuildAuto(context.Background(), strPtr("Berlin"), nil)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestExtractAuto(t *testing.T) {
	existing := models.Metadata{
		"gps":     map[string]any{"latitude": 1.0},
		"weather": nil,
		"mood":    "happy",
	}
	auto := ExtractAuto(existing)
	assert.Equal(t, models.Metadata{"gps": map[string]any{"latitude": 1.0}, "weather": nil}, auto)
	assert.Equal(t, auto, ExtractAuto(auto), "extraction is idempotent")

	assert.Empty(t, ExtractAuto(nil))
	assert.Empty(t, ExtractAuto(models.Metadata{"mood": "x"}))
}

func TestMergeMetadataUserWins(t *testing.T) {
	auto := models.Metadata{"gps": "auto", "weather": "auto"}
	user := models.Metadata{"weather": "user", "note": "n"}

	merged := MergeMetadata(auto, user)
	assert.Equal(t, models.Metadata{"gps": "auto", "weather": "user", "note": "n"}, merged)

	merged["extra"] = true
	assert.NotContains(t, auto, "extra", "inputs are not modified")
	assert.NotContains(t, user, "extra")

	assert.Empty(t, MergeMetadata(nil, nil))
	assert.Equal(t, auto, MergeMetadata(auto, nil))
}

func TestViewOf(t *testing.T) {
	tests := []struct {
		name string
		meta models.Metadata
		want *models.MetadataView
	}{
		{name: "empty", meta: nil, want: nil},
		{name: "no auto keys", meta: models.Metadata{"note": "x"}, want: nil},
		{
			name: "long gps keys",
			meta: models.Metadata{"gps": map[string]any{"latitude": 52.5, "longitude": 13.4}},
			want: &models.MetadataView{GPS: &models.GPSView{Lat: ptr(52.5), Lon: ptr(13.4)}},
		},
		{
			name: "short keys and numeric strings",
			meta: models.Metadata{"gps": map[string]any{"lat": "48.85", "lon": 2}},
			want: &models.MetadataView{GPS: &models.GPSView{Lat: ptr(48.85), Lon: ptr(2.0)}},
		},
		{
			name: "unparseable gps",
			meta: models.Metadata{"gps": map[string]any{"lat": "north"}},
			want: nil,
		},
		{
			name: "gps not a map",
			meta: models.Metadata{"gps": "52,13"},
			want: nil,
		},
		{
			name: "weather coercion",
			meta: models.Metadata{"weather": map[string]any{
				"temperature": json.Number("21.5"),
				"description": 42,
				"humidity":    55.9,
				"windSpeed":   "fast",
			}},
			want: &models.MetadataView{Weather: &models.WeatherView{
				Temperature: ptr(21.5),
				Description: ptr("42"),
				Humidity:    ptr(55),
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ViewOf(tt.meta))
		})
	}
}

func TestViewOfBuildAutoRoundTrip(t *testing.T) {
	auto, err := NewReconciler(&fakeProvider{result: berlinLocation()}).
		BuildAuto(context.Background(), strPtr("Berlin"), nil)
	require.NoError(t, err)

	view := ViewOf(auto)
	require.NotNil(t, view)
	assert.Equal(t, 52.52, *view.GPS.Lat)
	assert.Equal(t, 40, *view.Weather.Humidity)
	assert.Equal(t, "01d", *view.Weather.Icon)
}

func TestBuildAutoPropagatesUnexpectedErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewReconciler(&fakeProvider{err: boom}).BuildAuto(context.Background(), strPtr("A"), nil)
	assert.ErrorIs(t, err, boom)
}

func ptr[T any](v T) *T { return &v }

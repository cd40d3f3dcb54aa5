package services

import (
	"context"
	"sync"
	"testing"

	"github.com/AnshRaj112/tripjournal-backend/internal/database"
	"github.com/AnshRaj112/tripjournal-backend/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type resolveCall struct {
	City    string
	Country string
}

type fakeProvider struct {
	mu     sync.Mutex
	calls  []resolveCall
	result *ResolvedLocation
	err    error
}

func (p *fakeProvider) Resolve(_ context.Context, city, countryCode string) (*ResolvedLocation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, resolveCall{City: city, Country: countryCode})
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type fakeMedia struct {
	mu         sync.Mutex
	thumbnails []string
	refreshes  []string
	deletes    []string
	batches    [][]string
	summaries  []models.MediaSummary
	err        error
	panicOn    string
}

func (m *fakeMedia) record(dst *[]string, op, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panicOn == op {
		panic("media exploded")
	}
	*dst = append(*dst, id)
	return m.err
}

func (m *fakeMedia) GenerateThumbnail(_ context.Context, id string) error {
	return m.record(&m.thumbnails, "thumbnail", id)
}

func (m *fakeMedia) RefreshAssets(_ context.Context, id string) error {
	return m.record(&m.refreshes, "refresh", id)
}

func (m *fakeMedia) DeleteAssets(_ context.Context, id string) error {
	return m.record(&m.deletes, "delete", id)
}

func (m *fakeMedia) BatchFetch(_ context.Context, ids []string) ([]models.MediaSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, ids)
	if m.err != nil {
		return nil, m.err
	}
	return m.summaries, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []JournalEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, e JournalEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func berlinLocation() *ResolvedLocation {
	temp, hum, wind := 21.5, 40, 3.2
	desc, icon := "clear sky", "01d"
	return &ResolvedLocation{
		GPS: GeoPoint{Lat: 52.52, Lon: 13.405},
		Weather: CurrentWeather{
			Temperature: &temp,
			Description: &desc,
			Humidity:    &hum,
			WindSpeed:   &wind,
			Icon:        &icon,
		},
	}
}

func strPtr(s string) *string { return &s }

// setupRedis points the global Redis client at a fresh miniredis instance.
func setupRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	prev := database.RedisClient
	database.RedisClient = client
	t.Cleanup(func() {
		database.RedisClient = prev
		_ = client.Close()
	})
	return mr
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

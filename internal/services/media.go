package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AnshRaj112/tripjournal-backend/internal/metrics"
	"github.com/AnshRaj112/tripjournal-backend/internal/models"
)

// ErrNotificationFailed wraps any failed call to the media collaborator.
var ErrNotificationFailed = errors.New("media notification failed")

// MediaCollaborator manages the media assets attached to a journal. Callers
// treat every method as best-effort.
type MediaCollaborator interface {
	GenerateThumbnail(ctx context.Context, journalID string) error
	RefreshAssets(ctx context.Context, journalID string) error
	DeleteAssets(ctx context.Context, journalID string) error
	BatchFetch(ctx context.Context, mediaIDs []string) ([]models.MediaSummary, error)
}

type bearerTokenKey struct{}

// WithBearerToken stores the caller's raw bearer token so outbound media calls
// can act on the caller's behalf.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerTokenKey{}, token)
}

func bearerTokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(bearerTokenKey{}).(string)
	return token
}

// TripMediaClient is the REST client for the TripMedia service.
type TripMediaClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *breaker[[]byte]
}

func NewTripMediaClient(baseURL string, timeout time.Duration) *TripMediaClient {
	return &TripMediaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    newBreaker[[]byte]("tripmedia", nil),
	}
}

func (c *TripMediaClient) GenerateThumbnail(ctx context.Context, journalID string) error {
	_, err := c.call(ctx, "thumbnail", http.MethodPost, "/media/thumbnail", journalID, nil)
	return err
}

func (c *TripMediaClient) RefreshAssets(ctx context.Context, journalID string) error {
	_, err := c.call(ctx, "refresh", http.MethodPost, "/media/refresh", journalID, nil)
	return err
}

func (c *TripMediaClient) DeleteAssets(ctx context.Context, journalID string) error {
	_, err := c.call(ctx, "delete", http.MethodDelete, "/media/delete", journalID, nil)
	return err
}

// BatchFetch posts the ids as a JSON array and decodes the summaries. An
// empty id list short-circuits without a request.
func (c *TripMediaClient) BatchFetch(ctx context.Context, mediaIDs []string) ([]models.MediaSummary, error) {
	if len(mediaIDs) == 0 {
		return []models.MediaSummary{}, nil
	}
	payload, err := json.Marshal(mediaIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}

	body, err := c.call(ctx, "batch", http.MethodPost, "/media/batch", "", payload)
	if err != nil {
		return nil, err
	}
	var summaries []models.MediaSummary
	if err := json.Unmarshal(body, &summaries); err != nil {
		metrics.MediaRequests.WithLabelValues("batch", "malformed").Inc()
		return nil, fmt.Errorf("%w: malformed batch response: %v", ErrNotificationFailed, err)
	}
	if summaries == nil {
		summaries = []models.MediaSummary{}
	}
	return summaries, nil
}

func (c *TripMediaClient) call(ctx context.Context, op, method, path, journalID string, payload []byte) ([]byte, error) {
	body, err := c.breaker.execute(func() ([]byte, error) {
		return c.do(ctx, method, path, journalID, payload)
	})
	if err != nil {
		outcome := "error"
		if isBreakerRejection(err) {
			outcome = "rejected"
		}
		metrics.MediaRequests.WithLabelValues(op, outcome).Inc()
		return nil, fmt.Errorf("%w: %s %s: %w", ErrNotificationFailed, method, path, err)
	}
	metrics.MediaRequests.WithLabelValues(op, "success").Inc()
	return body, nil
}

func (c *TripMediaClient) do(ctx context.Context, method, path, journalID string, payload []byte) ([]byte, error) {
	target := c.baseURL + path
	if journalID != "" {
		target += "?journalId=" + url.QueryEscape(journalID)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token := bearerTokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return buf.Bytes(), nil
}

// NoopMediaCollaborator is used when no media backend is configured.
type NoopMediaCollaborator struct{}

func (NoopMediaCollaborator) GenerateThumbnail(context.Context, string) error { return nil }
func (NoopMediaCollaborator) RefreshAssets(context.Context, string) error     { return nil }
func (NoopMediaCollaborator) DeleteAssets(context.Context, string) error      { return nil }
func (NoopMediaCollaborator) BatchFetch(context.Context, []string) ([]models.MediaSummary, error) {
	return []models.MediaSummary{}, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/AnshRaj112/tripjournal-backend/internal/logging"
	"github.com/AnshRaj112/tripjournal-backend/internal/metrics"
	"github.com/AnshRaj112/tripjournal-backend/internal/models"
	"github.com/AnshRaj112/tripjournal-backend/internal/repository"
	"github.com/AnshRaj112/tripjournal-backend/internal/validation"
	"github.com/google/uuid"
)

// ErrNotFound is returned for journals that do not exist or belong to
// someone else.
var ErrNotFound = repository.ErrNotFound

type (
	ValidationError = validation.Error
	FieldError      = validation.FieldError
)

const (
	titleRules = "notblank,max=200"
	tagRules   = "max=40"
)

// CreateJournalInput is the body of a create request.
type CreateJournalInput struct {
	ItineraryID  *string         `json:"itineraryId"`
	Title        string          `json:"title" validate:"notblank,max=200"`
	Description  *string         `json:"description"`
	City         *string         `json:"city"`
	Country      *string         `json:"country"`
	Tags         []string        `json:"tags" validate:"omitempty,dive,max=40"`
	MediaIDs     []string        `json:"mediaIds"`
	CoverMediaID *string         `json:"coverMediaId"`
	Metadata     models.Metadata `json:"metadata"`
}

// UpdateJournalInput is the body of a full update. Absent fields are left
// alone; explicit nulls clear the field.
type UpdateJournalInput struct {
	ItineraryID  Optional[string]          `json:"itineraryId"`
	Title        Optional[string]          `json:"title"`
	Description  Optional[string]          `json:"description"`
	City         Optional[string]          `json:"city"`
	Country      Optional[string]          `json:"country"`
	Tags         Optional[[]string]        `json:"tags"`
	MediaIDs     Optional[[]string]        `json:"mediaIds"`
	CoverMediaID Optional[string]          `json:"coverMediaId"`
	Metadata     Optional[models.Metadata] `json:"metadata"`
}

// JournalServiceOptions carries the feature flags of the mutation engine.
type JournalServiceOptions struct {
	EnrichmentEnabled     bool
	MediaCallbacksEnabled bool
}

// JournalService runs every journal read and mutation. Enrichment, media
// notification and event publishing are best-effort and never fail a call.
type JournalService struct {
	store      repository.JournalStore
	reconciler *Reconciler
	media      MediaCollaborator
	events     EventPublisher
	opts       JournalServiceOptions

	now   func() time.Time
	newID func() string
}

func NewJournalService(store repository.JournalStore, reconciler *Reconciler, media MediaCollaborator, events EventPublisher, opts JournalServiceOptions) *JournalService {
	if media == nil {
		media = NoopMediaCollaborator{}
	}
	if events == nil {
		events = NoopEventPublisher{}
	}
	if reconciler == nil {
		reconciler = NewReconciler(nil)
	}
	return &JournalService{
		store:      store,
		reconciler: reconciler,
		media:      media,
		events:     events,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// Create validates and stores a new journal, enriching it from its location.
func (s *JournalService) Create(ctx context.Context, ownerID string, in CreateJournalInput) (*models.Journal, error) {
	if verr := validation.Struct(&in); verr != nil {
		return nil, verr
	}

	auto := s.buildAuto(ctx, in.City, in.Country)
	now := s.now()
	j := &models.Journal{
		ID:           s.newID(),
		OwnerID:      ownerID,
		ItineraryID:  in.ItineraryID,
		Title:        in.Title,
		Description:  in.Description,
		City:         in.City,
		Country:      in.Country,
		Tags:         models.CopyStrings(in.Tags),
		MediaIDs:     models.CopyStrings(in.MediaIDs),
		CoverMediaID: in.CoverMediaID,
		Metadata:     MergeMetadata(auto, in.Metadata),
		CreatedAt:    now,
		ModifiedAt:   now,
	}
	j.Normalize()

	saved, err := s.store.Save(ctx, j)
	if err != nil {
		return nil, fmt.Errorf("save journal: %w", err)
	}

	if s.opts.MediaCallbacksEnabled {
		Attempt(ctx, OpMediaThumbnail, func(ctx context.Context) error {
			return s.media.GenerateThumbnail(ctx, saved.ID)
		})
	}
	s.publish(ctx, EventJournalCreated, saved)
	return saved, nil
}

// Update applies a full update. The location is re-enriched only when city or
// country actually changes; media assets are refreshed when the location,
// title, cover or media list changed.
func (s *JournalService) Update(ctx context.Context, ownerID, id string, in UpdateJournalInput) (*models.Journal, error) {
	if err := validateUpdate(in); err != nil {
		return nil, err
	}

	existing, err := s.store.FindByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	city := in.City.apply(existing.City)
	country := in.Country.apply(existing.Country)
	locationChanged := !equalPtr(city, existing.City) || !equalPtr(country, existing.Country)

	var baseAuto models.Metadata
	if locationChanged {
		baseAuto = s.buildAuto(ctx, city, country)
	} else {
		baseAuto = ExtractAuto(existing.Metadata)
	}
	var userMeta models.Metadata
	if in.Metadata.HasValue() {
		userMeta = in.Metadata.Value
	}
	merged := MergeMetadata(baseAuto, userMeta)

	titleChanged := in.Title.HasValue() && in.Title.Value != existing.Title
	coverChanged := in.CoverMediaID.HasValue() &&
		(existing.CoverMediaID == nil || *existing.CoverMediaID != in.CoverMediaID.Value)
	mediaChanged := in.MediaIDs.HasValue() && !slices.Equal(in.MediaIDs.Value, existing.MediaIDs)

	updated := *existing
	if in.Title.HasValue() {
		updated.Title = in.Title.Value
	}
	updated.ItineraryID = in.ItineraryID.apply(existing.ItineraryID)
	updated.Description = in.Description.apply(existing.Description)
	updated.City = city
	updated.Country = country
	updated.CoverMediaID = in.CoverMediaID.apply(existing.CoverMediaID)
	if in.Tags.Present {
		updated.Tags = models.CopyStrings(in.Tags.Value)
	}
	if in.MediaIDs.Present {
		updated.MediaIDs = models.CopyStrings(in.MediaIDs.Value)
	}
	if in.Metadata.Present || locationChanged {
		updated.Metadata = merged
	}
	updated.ModifiedAt = s.now()
	updated.Normalize()

	saved, err := s.store.Save(ctx, &updated)
	if err != nil {
		return nil, fmt.Errorf("save journal %s: %w", id, err)
	}

	if s.opts.MediaCallbacksEnabled && (locationChanged || titleChanged || coverChanged || mediaChanged) {
		Attempt(ctx, OpMediaRefresh, func(ctx context.Context) error {
			return s.media.RefreshAssets(ctx, saved.ID)
		})
	}
	s.publish(ctx, EventJournalUpdated, saved)
	return saved, nil
}

// Patch overwrites the given fields as-is. It does not re-enrich and does not
// notify the media service.
func (s *JournalService) Patch(ctx context.Context, ownerID, id string, updates []FieldUpdate) (*models.Journal, error) {
	verr := &ValidationError{}
	for _, u := range updates {
		u.validate(verr)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	existing, err := s.store.FindByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	for _, u := range updates {
		u.apply(existing)
	}
	existing.ModifiedAt = s.now()
	existing.Normalize()

	saved, err := s.store.Save(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("save journal %s: %w", id, err)
	}
	s.publish(ctx, EventJournalPatched, saved)
	return saved, nil
}

// Delete removes an owned journal after asking the media service to drop its
// assets.
func (s *JournalService) Delete(ctx context.Context, ownerID, id string) error {
	existing, err := s.store.FindByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return err
	}

	if s.opts.MediaCallbacksEnabled {
		Attempt(ctx, OpMediaDelete, func(ctx context.Context) error {
			return s.media.DeleteAssets(ctx, existing.ID)
		})
	}

	deleted, err := s.store.DeleteByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete journal %s: %w", id, err)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	s.publish(ctx, EventJournalDeleted, existing)
	return nil
}

func (s *JournalService) Get(ctx context.Context, ownerID, id string) (*models.Journal, error) {
	return s.store.FindByIDAndOwner(ctx, id, ownerID)
}

// GetWithMedia also returns the media summaries of the journal. A failing
// media lookup yields no summaries.
func (s *JournalService) GetWithMedia(ctx context.Context, ownerID, id string) (*models.Journal, []models.MediaSummary, error) {
	j, err := s.store.FindByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return nil, nil, err
	}
	if len(j.MediaIDs) == 0 {
		return j, []models.MediaSummary{}, nil
	}
	media := AttemptValue(ctx, OpMediaBatch, func(ctx context.Context) ([]models.MediaSummary, error) {
		return s.media.BatchFetch(ctx, j.MediaIDs)
	}, []models.MediaSummary{})
	return j, media, nil
}

func (s *JournalService) List(ctx context.Context, ownerID string, page models.PageRequest) (models.Page[models.Journal], error) {
	return s.store.FindByOwner(ctx, ownerID, page)
}

// Search matches titles containing term, case-insensitively.
func (s *JournalService) Search(ctx context.Context, ownerID, term string, page models.PageRequest) (models.Page[models.Journal], error) {
	return s.store.SearchByOwnerAndTitle(ctx, ownerID, repository.ContainsPattern(term), page)
}

func (s *JournalService) buildAuto(ctx context.Context, city, country *string) models.Metadata {
	if !s.opts.EnrichmentEnabled {
		return models.Metadata{}
	}
	return AttemptValue(ctx, OpEnrich, func(ctx context.Context) (models.Metadata, error) {
		return s.reconciler.BuildAuto(ctx, city, country)
	}, models.Metadata{})
}

func (s *JournalService) publish(ctx context.Context, eventType string, j *models.Journal) {
	metrics.JournalMutations.WithLabelValues(eventType).Inc()
	logging.Ctx(ctx).Info().Str("event", eventType).Str("journal_id", j.ID).Msg("journal mutated")

	Attempt(ctx, OpPublishEvent, func(ctx context.Context) error {
		return s.events.Publish(ctx, JournalEvent{
			Type:      eventType,
			JournalID: j.ID,
			OwnerID:   j.OwnerID,
			Timestamp: s.now(),
		})
	})
}

func validateUpdate(in UpdateJournalInput) error {
	verr := &ValidationError{}
	if in.Title.Present {
		if in.Title.Null {
			verr.Add("title", "required", "title may not be cleared")
		} else {
			appendErrors(verr, validation.Var("title", in.Title.Value, titleRules))
		}
	}
	if in.Tags.HasValue() {
		appendErrors(verr, validation.Var("tags", in.Tags.Value, "dive,"+tagRules))
	}
	return verr.OrNil()
}

func appendErrors(dst, src *ValidationError) {
	if src != nil {
		dst.Fields = append(dst.Fields, src.Fields...)
	}
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// IsValidationError reports whether err carries field errors.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

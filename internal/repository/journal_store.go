// Package repository persists journals. Every read and write except FindByID
// and Save is scoped to an owner.
package repository

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/AnshRaj112/tripjournal-backend/internal/models"
)

// ErrNotFound is returned when no journal matches the id (and owner).
var ErrNotFound = errors.New("journal not found")

// JournalStore is implemented by the MongoDB and PostgreSQL backends.
type JournalStore interface {
	FindByID(ctx context.Context, id string) (*models.Journal, error)
	FindByIDAndOwner(ctx context.Context, id, ownerID string) (*models.Journal, error)
	FindByOwner(ctx context.Context, ownerID string, page models.PageRequest) (models.Page[models.Journal], error)
	// SearchByOwnerAndTitle matches titles against a case-insensitive regular
	// expression, usually built with ContainsPattern.
	SearchByOwnerAndTitle(ctx context.Context, ownerID, pattern string, page models.PageRequest) (models.Page[models.Journal], error)
	// Save inserts or replaces the journal by id.
	Save(ctx context.Context, j *models.Journal) (*models.Journal, error)
	DeleteByIDAndOwner(ctx context.Context, id, ownerID string) (int64, error)
}

// ContainsPattern builds a regular expression matching any title that
// contains term literally. A blank term matches everything.
func ContainsPattern(term string) string {
	if strings.TrimSpace(term) == "" {
		return ".*"
	}
	return ".*" + regexp.QuoteMeta(strings.TrimSpace(term)) + ".*"
}

package repository

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/AnshRaj112/tripjournal-backend/internal/models"
)

// MemoryJournalStore is a process-local store used by STORE_DRIVER=memory
// and by tests. Stored journals are copied on the way in and out.
type MemoryJournalStore struct {
	mu       sync.RWMutex
	journals map[string]models.Journal

	// DeleteHook, when set, runs before DeleteByIDAndOwner takes the lock.
	DeleteHook func(id, ownerID string)
}

func NewMemoryJournalStore() *MemoryJournalStore {
	return &MemoryJournalStore{journals: make(map[string]models.Journal)}
}

func cloneJournal(j models.Journal) models.Journal {
	j.Tags = models.CopyStrings(j.Tags)
	j.MediaIDs = models.CopyStrings(j.MediaIDs)
	j.Metadata = j.Metadata.Clone()
	j.Normalize()
	return j
}

func (s *MemoryJournalStore) FindByID(_ context.Context, id string) (*models.Journal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.journals[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneJournal(j)
	return &out, nil
}

func (s *MemoryJournalStore) FindByIDAndOwner(_ context.Context, id, ownerID string) (*models.Journal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.journals[id]
	if !ok || j.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	out := cloneJournal(j)
	return &out, nil
}

func (s *MemoryJournalStore) FindByOwner(_ context.Context, ownerID string, page models.PageRequest) (models.Page[models.Journal], error) {
	return s.filter(page, func(j models.Journal) bool { return j.OwnerID == ownerID })
}

func (s *MemoryJournalStore) SearchByOwnerAndTitle(_ context.Context, ownerID, pattern string, page models.PageRequest) (models.Page[models.Journal], error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return models.Page[models.Journal]{}, err
	}
	return s.filter(page, func(j models.Journal) bool {
		return j.OwnerID == ownerID && re.MatchString(j.Title)
	})
}

func (s *MemoryJournalStore) filter(page models.PageRequest, keep func(models.Journal) bool) (models.Page[models.Journal], error) {
	s.mu.RLock()
	var matched []models.Journal
	for _, j := range s.journals {
		if keep(j) {
			matched = append(matched, cloneJournal(j))
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(a, b int) bool {
		if page.SortDesc {
			return memoryLess(matched[b], matched[a], page.SortField)
		}
		return memoryLess(matched[a], matched[b], page.SortField)
	})

	total := int64(len(matched))
	start := int(page.Offset())
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.Size
	if end > len(matched) {
		end = len(matched)
	}
	return models.NewPage(matched[start:end], page, total), nil
}

func memoryLess(a, b models.Journal, field string) bool {
	switch field {
	case models.SortByTitle:
		if a.Title != b.Title {
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		}
	case models.SortByModifiedAt:
		if !a.ModifiedAt.Equal(b.ModifiedAt) {
			return a.ModifiedAt.Before(b.ModifiedAt)
		}
	default:
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	return a.ID < b.ID
}

func (s *MemoryJournalStore) Save(_ context.Context, j *models.Journal) (*models.Journal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journals[j.ID] = cloneJournal(*j)
	out := cloneJournal(*j)
	return &out, nil
}

func (s *MemoryJournalStore) DeleteByIDAndOwner(_ context.Context, id, ownerID string) (int64, error) {
	if s.DeleteHook != nil {
		s.DeleteHook(id, ownerID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.journals[id]
	if !ok || j.OwnerID != ownerID {
		return 0, nil
	}
	delete(s.journals, id)
	return 1, nil
}

// Remove deletes a journal regardless of owner.
func (s *MemoryJournalStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.journals, id)
}

// Len reports how many journals are stored.
func (s *MemoryJournalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.journals)
}

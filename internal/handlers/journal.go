package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/AnshRaj112/tripjournal-backend/internal/logging"
	"github.com/AnshRaj112/tripjournal-backend/internal/middleware"
	"github.com/AnshRaj112/tripjournal-backend/internal/models"
	"github.com/AnshRaj112/tripjournal-backend/internal/services"
	"github.com/AnshRaj112/tripjournal-backend/internal/validation"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes caps journal request bodies.
const maxBodyBytes = 1 << 20

// JournalService is the subset of services.JournalService used by the HTTP
// layer.
type JournalService interface {
	Create(ctx context.Context, ownerID string, in services.CreateJournalInput) (*models.Journal, error)
	Update(ctx context.Context, ownerID, id string, in services.UpdateJournalInput) (*models.Journal, error)
	Patch(ctx context.Context, ownerID, id string, updates []services.FieldUpdate) (*models.Journal, error)
	Delete(ctx context.Context, ownerID, id string) error
	GetWithMedia(ctx context.Context, ownerID, id string) (*models.Journal, []models.MediaSummary, error)
	List(ctx context.Context, ownerID string, page models.PageRequest) (models.Page[models.Journal], error)
	Search(ctx context.Context, ownerID, term string, page models.PageRequest) (models.Page[models.Journal], error)
}

type JournalHandler struct {
	svc JournalService
}

func NewJournalHandler(svc JournalService) *JournalHandler {
	return &JournalHandler{svc: svc}
}

type JournalResponse struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message,omitempty"`
	Journal *models.JournalResponse `json:"journal,omitempty"`
}

type JournalListResponse struct {
	Success    bool                     `json:"success"`
	Journals   []models.JournalResponse `json:"journals"`
	Page       int                      `json:"page"`
	Size       int                      `json:"size"`
	TotalItems int64                    `json:"totalItems"`
	TotalPages int                      `json:"totalPages"`
}

type ErrorResponse struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Errors  []validation.FieldError `json:"errors,omitempty"`
}

// ListJournals returns the caller's journals, newest first by default.
func (h *JournalHandler) ListJournals(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	page, err := parsePageRequest(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	result, err := h.svc.List(r.Context(), ownerID, page)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(result))
}

// SearchJournals matches titles containing q, case-insensitively.
func (h *JournalHandler) SearchJournals(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	page, err := parsePageRequest(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	result, err := h.svc.Search(r.Context(), ownerID, r.URL.Query().Get("q"), page)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(result))
}

func (h *JournalHandler) CreateJournal(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var req services.CreateJournalInput
	if !decodeBody(w, r, &req) {
		return
	}

	j, err := h.svc.Create(r.Context(), ownerID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/journals/"+j.ID)
	resp := toJournalResponse(j, nil)
	writeJSON(w, http.StatusCreated, JournalResponse{Success: true, Message: "Journal created", Journal: &resp})
}

// GetJournal returns one journal together with its media summaries.
func (h *JournalHandler) GetJournal(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	j, media, err := h.svc.GetWithMedia(r.Context(), ownerID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := toJournalResponse(j, media)
	writeJSON(w, http.StatusOK, JournalResponse{Success: true, Journal: &resp})
}

func (h *JournalHandler) UpdateJournal(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var req services.UpdateJournalInput
	if !decodeBody(w, r, &req) {
		return
	}

	j, err := h.svc.Update(r.Context(), ownerID, chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := toJournalResponse(j, nil)
	writeJSON(w, http.StatusOK, JournalResponse{Success: true, Message: "Journal updated", Journal: &resp})
}

func (h *JournalHandler) PatchJournal(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "Invalid request body"})
		return
	}
	updates, err := services.DecodePatch(body)
	if err != nil {
		if services.IsValidationError(err) {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "Invalid request body"})
		return
	}

	j, err := h.svc.Patch(r.Context(), ownerID, chi.URLParam(r, "id"), updates)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := toJournalResponse(j, nil)
	writeJSON(w, http.StatusOK, JournalResponse{Success: true, Message: "Journal updated", Journal: &resp})
}

func (h *JournalHandler) DeleteJournal(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), ownerID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID, ok := middleware.OwnerIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Message: "Authentication required"})
		return "", false
	}
	return ownerID, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "Invalid request body"})
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *services.ValidationError
	switch {
	case errors.Is(err, services.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Message: "Journal not found"})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "Validation failed", Errors: verr.Fields})
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("journal request failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

var sortFields = map[string]bool{
	models.SortByCreatedAt:  true,
	models.SortByModifiedAt: true,
	models.SortByTitle:      true,
}

// parsePageRequest reads page, size and sort=field[,asc|desc].
func parsePageRequest(r *http.Request) (models.PageRequest, error) {
	q := r.URL.Query()
	page := models.DefaultPageRequest()
	verr := &services.ValidationError{}

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			verr.Add("page", "min", "page must be a non-negative integer")
		} else {
			page.Page = n
		}
	}
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > models.MaxPageSize {
			verr.Add("size", "range", "size must be between 1 and "+strconv.Itoa(models.MaxPageSize))
		} else {
			page.Size = n
		}
	}
	if v := q.Get("sort"); v != "" {
		field, dir, _ := strings.Cut(v, ",")
		field = strings.TrimSpace(field)
		if !sortFields[field] {
			verr.Add("sort", "oneof", "sort must be one of createdAt, modifiedAt, title")
		} else {
			page.SortField = field
		}
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "", "desc":
			page.SortDesc = true
		case "asc":
			page.SortDesc = false
		default:
			verr.Add("sort", "oneof", "sort direction must be asc or desc")
		}
	}

	if err := verr.OrNil(); err != nil {
		return models.PageRequest{}, err
	}
	return page, nil
}

func toJournalResponse(j *models.Journal, media []models.MediaSummary) models.JournalResponse {
	return models.JournalResponse{
		ID:           j.ID,
		ItineraryID:  j.ItineraryID,
		Title:        j.Title,
		Description:  j.Description,
		City:         j.City,
		Country:      j.Country,
		Tags:         j.Tags,
		MediaIDs:     j.MediaIDs,
		CoverMediaID: j.CoverMediaID,
		Metadata:     j.Metadata,
		Enrichment:   services.ViewOf(j.Metadata),
		Media:        media,
		CreatedAt:    j.CreatedAt,
		ModifiedAt:   j.ModifiedAt,
	}
}

func toListResponse(p models.Page[models.Journal]) JournalListResponse {
	return JournalListResponse{
		Success: true,
		Journals: models.MapPage(p, func(j models.Journal) models.JournalResponse {
			return toJournalResponse(&j, nil)
		}).Items,
		Page:       p.Page,
		Size:       p.Size,
		TotalItems: p.TotalItems,
		TotalPages: p.TotalPages,
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AnshRaj112/tripjournal-backend/internal/middleware"
	"github.com/AnshRaj112/tripjournal-backend/internal/models"
	"github.com/AnshRaj112/tripjournal-backend/internal/repository"
	"github.com/AnshRaj112/tripjournal-backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ownerHeader = "X-Test-Owner"

// withTestOwner stands in for the authenticator.
func withTestOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if owner := r.Header.Get(ownerHeader); owner != "" {
			r = r.WithContext(middleware.WithOwnerID(r.Context(), owner))
		}
		next.ServeHTTP(w, r)
	})
}

func newTestRouter(svc JournalService) http.Handler {
	h := NewJournalHandler(svc)
	r := chi.NewRouter()
	r.Use(withTestOwner)
	r.Get("/api/journals", h.ListJournals)
	r.Post("/api/journals", h.CreateJournal)
	r.Get("/api/journals/search", h.SearchJournals)
	r.Get("/api/journals/{id}", h.GetJournal)
	r.Put("/api/journals/{id}", h.UpdateJournal)
	r.Patch("/api/journals/{id}", h.PatchJournal)
	r.Delete("/api/journals/{id}", h.DeleteJournal)
	return r
}

func newServiceRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := services.NewJournalService(repository.NewMemoryJournalStore(), nil, nil, nil, services.JournalServiceOptions{})
	return newTestRouter(svc)
}

func do(t *testing.T, h http.Handler, method, target, owner, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.Header.Set(ownerHeader, owner)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type journalEnvelope struct {
	Success bool                    `json:"success"`
	Journal *models.JournalResponse `json:"journal"`
}

func decodeJournal(t *testing.T, rec *httptest.ResponseRecorder) *models.JournalResponse {
	t.Helper()
	var env journalEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.True(t, env.Success)
	require.NotNil(t, env.Journal)
	return env.Journal
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var env ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
	return env
}

func createJournal(t *testing.T, h http.Handler, owner, body string) *models.JournalResponse {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/journals", owner, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeJournal(t, rec)
}

func TestCreateJournal(t *testing.T) {
	h := newServiceRouter(t)

	rec := do(t, h, http.MethodPost, "/api/journals", "alice", `{"title":"Berlin","city":"Berlin","tags":["food"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	j := decodeJournal(t, rec)

	assert.Equal(t, "/api/journals/"+j.ID, rec.Header().Get("Location"))
	assert.Equal(t, "Berlin", j.Title)
	assert.Equal(t, []string{"food"}, j.Tags)
	assert.Equal(t, []string{}, j.MediaIDs)
	assert.Nil(t, j.Description)
	assert.Contains(t, rec.Body.String(), `"description":null`)
}

func TestCreateJournalRejectsBadInput(t *testing.T) {
	h := newServiceRouter(t)

	rec := do(t, h, http.MethodPost, "/api/journals", "alice", `{"title":"   "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeError(t, rec)
	require.NotEmpty(t, env.Errors)
	assert.Equal(t, "title", env.Errors[0].Field)

	rec = do(t, h, http.MethodPost, "/api/journals", "alice", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decodeError(t, rec).Message)
}

func TestJournalRoutesRequireOwner(t *testing.T) {
	h := newServiceRouter(t)
	rec := do(t, h, http.MethodGet, "/api/journals", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetJournalIsOwnerScoped(t *testing.T) {
	h := newServiceRouter(t)
	j := createJournal(t, h, "alice", `{"title":"Lisbon"}`)

	rec := do(t, h, http.MethodGet, "/api/journals/"+j.ID, "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Lisbon", decodeJournal(t, rec).Title)

	rec = do(t, h, http.MethodGet, "/api/journals/"+j.ID, "mallory", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Journal not found", decodeError(t, rec).Message)

	rec = do(t, h, http.MethodGet, "/api/journals/missing", "alice", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateJournalClearsExplicitNulls(t *testing.T) {
	h := newServiceRouter(t)
	j := createJournal(t, h, "alice", `{"title":"Rome","description":"first day","tags":["a"]}`)

	rec := do(t, h, http.MethodPut, "/api/journals/"+j.ID, "alice", `{"description":null,"tags":["b","c"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeJournal(t, rec)

	assert.Equal(t, "Rome", updated.Title, "absent fields are kept")
	assert.Nil(t, updated.Description)
	assert.Equal(t, []string{"b", "c"}, updated.Tags)

	rec = do(t, h, http.MethodPut, "/api/journals/"+j.ID, "alice", `{"title":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatchJournal(t *testing.T) {
	h := newServiceRouter(t)
	j := createJournal(t, h, "alice", `{"title":"Oslo"}`)

	rec := do(t, h, http.MethodPatch, "/api/journals/"+j.ID, "alice", `{"tags":["fjord"],"description":"cold"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	patched := decodeJournal(t, rec)
	assert.Equal(t, []string{"fjord"}, patched.Tags)
	require.NotNil(t, patched.Description)
	assert.Equal(t, "cold", *patched.Description)

	rec = do(t, h, http.MethodPatch, "/api/journals/"+j.ID, "alice", `{"title":null}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decodeError(t, rec).Errors)

	rec = do(t, h, http.MethodPatch, "/api/journals/"+j.ID, "alice", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPatch, "/api/journals/"+j.ID, "mallory", `{"tags":[]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteJournal(t *testing.T) {
	h := newServiceRouter(t)
	j := createJournal(t, h, "alice", `{"title":"Paris"}`)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/api/journals/"+j.ID, "mallory", "").Code)

	rec := do(t, h, http.MethodDelete, "/api/journals/"+j.ID, "alice", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/journals/"+j.ID, "alice", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/api/journals/"+j.ID, "alice", "").Code)
}

func TestListAndSearchJournals(t *testing.T) {
	h := newServiceRouter(t)
	for _, title := range []string{"Charlie trip", "alpha walk", "Bravo trip"} {
		createJournal(t, h, "alice", `{"title":"`+title+`"}`)
	}
	createJournal(t, h, "bob", `{"title":"bob trip"}`)

	rec := do(t, h, http.MethodGet, "/api/journals?size=2&sort=title,asc", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list JournalListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.True(t, list.Success)
	assert.Equal(t, int64(3), list.TotalItems)
	assert.Equal(t, 2, list.TotalPages)
	assert.Equal(t, 2, list.Size)
	require.Len(t, list.Journals, 2)

	rec = do(t, h, http.MethodGet, "/api/journals/search?q=TRIP", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list = JournalListResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, int64(2), list.TotalItems)
	for _, j := range list.Journals {
		assert.Contains(t, strings.ToLower(j.Title), "trip")
	}

	rec = do(t, h, http.MethodGet, "/api/journals/search?q=nothing-matches", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"journals":[]`)
}

func TestParsePageRequest(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    models.PageRequest
		wantErr bool
	}{
		{name: "defaults", query: "", want: models.DefaultPageRequest()},
		{name: "explicit", query: "page=2&size=50&sort=title,asc", want: models.PageRequest{Page: 2, Size: 50, SortField: models.SortByTitle}},
		{name: "sort without direction is descending", query: "sort=modifiedAt", want: models.PageRequest{Page: 0, Size: models.DefaultPageSize, SortField: models.SortByModifiedAt, SortDesc: true}},
		{name: "negative page", query: "page=-1", wantErr: true},
		{name: "zero size", query: "size=0", wantErr: true},
		{name: "oversized", query: "size=101", wantErr: true},
		{name: "not a number", query: "page=abc", wantErr: true},
		{name: "unknown field", query: "sort=owner,asc", wantErr: true},
		{name: "bad direction", query: "sort=title,sideways", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePageRequest(httptest.NewRequest(http.MethodGet, "/api/journals?"+tt.query, nil))
			if tt.wantErr {
				assert.True(t, services.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type stubJournalService struct {
	JournalService
	journal *models.Journal
	media   []models.MediaSummary
	err     error
}

func (s stubJournalService) GetWithMedia(context.Context, string, string) (*models.Journal, []models.MediaSummary, error) {
	return s.journal, s.media, s.err
}

func TestGetJournalIncludesMediaAndEnrichment(t *testing.T) {
	stub := stubJournalService{
		journal: &models.Journal{
			ID:       "j1",
			Title:    "Berlin",
			Tags:     []string{},
			MediaIDs: []string{"m1"},
			Metadata: models.Metadata{
				models.MetadataKeyGPS: map[string]any{"latitude": 52.52, "longitude": 13.4},
			},
		},
		media: []models.MediaSummary{{ID: "m1"}},
	}
	h := newTestRouter(stub)

	rec := do(t, h, http.MethodGet, "/api/journals/j1", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	j := decodeJournal(t, rec)
	require.Len(t, j.Media, 1)
	assert.Equal(t, "m1", j.Media[0].ID)
	require.NotNil(t, j.Enrichment)
	require.NotNil(t, j.Enrichment.GPS)
	assert.InDelta(t, 52.52, *j.Enrichment.GPS.Lat, 1e-9)
}

func TestServiceFailureIsInternalError(t *testing.T) {
	h := newTestRouter(stubJournalService{err: errors.New("mongo unreachable")})

	rec := do(t, h, http.MethodGet, "/api/journals/j1", "alice", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, "Internal server error", env.Message)
	assert.NotContains(t, rec.Body.String(), "mongo")
}

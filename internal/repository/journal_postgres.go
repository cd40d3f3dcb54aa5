package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AnshRaj112/tripjournal-backend/internal/models"
	"github.com/lib/pq"
)

// PostgresJournalStore keeps journals in the journals table created by
// database.InitPostgresTables.
type PostgresJournalStore struct {
	db *sql.DB
}

func NewPostgresJournalStore(db *sql.DB) *PostgresJournalStore {
	return &PostgresJournalStore{db: db}
}

const journalColumns = `id, owner_id, itinerary_id, title, description, city, country,
	tags, media_ids, cover_media_id, metadata, created_at, modified_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJournal(row rowScanner) (*models.Journal, error) {
	var (
		j        models.Journal
		tags     pq.StringArray
		mediaIDs pq.StringArray
		metadata []byte
	)
	err := row.Scan(
		&j.ID, &j.OwnerID, &j.ItineraryID, &j.Title, &j.Description, &j.City, &j.Country,
		&tags, &mediaIDs, &j.CoverMediaID, &metadata, &j.CreatedAt, &j.ModifiedAt,
	)
	if err != nil {
		return nil, err
	}
	j.Tags = []string(tags)
	j.MediaIDs = []string(mediaIDs)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &j.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	j.CreatedAt = j.CreatedAt.UTC()
	j.ModifiedAt = j.ModifiedAt.UTC()
	j.Normalize()
	return &j, nil
}

func (s *PostgresJournalStore) FindByID(ctx context.Context, id string) (*models.Journal, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+journalColumns+` FROM journals WHERE id = $1`, id)
	return s.one(row)
}

func (s *PostgresJournalStore) FindByIDAndOwner(ctx context.Context, id, ownerID string) (*models.Journal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+journalColumns+` FROM journals WHERE id = $1 AND owner_id = $2`, id, ownerID)
	return s.one(row)
}

func (s *PostgresJournalStore) one(row *sql.Row) (*models.Journal, error) {
	j, err := scanJournal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find journal: %w", err)
	}
	return j, nil
}

func (s *PostgresJournalStore) FindByOwner(ctx context.Context, ownerID string, page models.PageRequest) (models.Page[models.Journal], error) {
	return s.page(ctx, `owner_id = $1`, []any{ownerID}, page)
}

func (s *PostgresJournalStore) SearchByOwnerAndTitle(ctx context.Context, ownerID, pattern string, page models.PageRequest) (models.Page[models.Journal], error) {
	return s.page(ctx, `owner_id = $1 AND title ~* $2`, []any{ownerID, pattern}, page)
}

func (s *PostgresJournalStore) page(ctx context.Context, where string, args []any, page models.PageRequest) (models.Page[models.Journal], error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM journals WHERE `+where, args...).Scan(&total); err != nil {
		return models.Page[models.Journal]{}, fmt.Errorf("count journals: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM journals WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		journalColumns, where, postgresOrderBy(page), n+1, n+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, page.Size, page.Offset())...)
	if err != nil {
		return models.Page[models.Journal]{}, fmt.Errorf("query journals: %w", err)
	}
	defer rows.Close()

	var journals []models.Journal
	for rows.Next() {
		j, err := scanJournal(rows)
		if err != nil {
			return models.Page[models.Journal]{}, fmt.Errorf("scan journal: %w", err)
		}
		journals = append(journals, *j)
	}
	if err := rows.Err(); err != nil {
		return models.Page[models.Journal]{}, fmt.Errorf("iterate journals: %w", err)
	}
	return models.NewPage(journals, page, total), nil
}

func (s *PostgresJournalStore) Save(ctx context.Context, j *models.Journal) (*models.Journal, error) {
	var metadata []byte
	if len(j.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(j.Metadata); err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO journals (`+journalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			itinerary_id = EXCLUDED.itinerary_id,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			city = EXCLUDED.city,
			country = EXCLUDED.country,
			tags = EXCLUDED.tags,
			media_ids = EXCLUDED.media_ids,
			cover_media_id = EXCLUDED.cover_media_id,
			metadata = EXCLUDED.metadata,
			created_at = EXCLUDED.created_at,
			modified_at = EXCLUDED.modified_at`,
		j.ID, j.OwnerID, j.ItineraryID, j.Title, j.Description, j.City, j.Country,
		pq.Array(models.CopyStrings(j.Tags)), pq.Array(models.CopyStrings(j.MediaIDs)), j.CoverMediaID,
		nullableJSON(metadata), j.CreatedAt, j.ModifiedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("save journal: %w", err)
	}
	return j, nil
}

func (s *PostgresJournalStore) DeleteByIDAndOwner(ctx context.Context, id, ownerID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM journals WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete journal: %w", err)
	}
	return n, nil
}

var postgresSortColumns = map[string]string{
	models.SortByCreatedAt:  "created_at",
	models.SortByModifiedAt: "modified_at",
	models.SortByTitle:      "title",
}

// postgresOrderBy only ever emits whitelisted column names.
func postgresOrderBy(page models.PageRequest) string {
	col, ok := postgresSortColumns[page.SortField]
	if !ok {
		col = "created_at"
	}
	dir := "ASC"
	if page.SortDesc {
		dir = "DESC"
	}
	return col + " " + dir + ", id " + dir
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

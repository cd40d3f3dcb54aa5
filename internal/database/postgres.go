package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/AnshRaj112/tripjournal-backend/internal/logging"
	_ "github.com/lib/pq"
)

var PostgresDB *sql.DB

// ConnectPostgres connects to PostgreSQL and creates the journal schema.
func ConnectPostgres(postgresURI string) error {
	var err error

	PostgresDB, err = sql.Open("postgres", postgresURI)
	if err != nil {
		return err
	}

	PostgresDB.SetMaxOpenConns(25)
	PostgresDB.SetMaxIdleConns(5)
	PostgresDB.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = PostgresDB.PingContext(ctx); err != nil {
		return err
	}

	logging.Info().Str("uri", MaskURI(postgresURI)).Msg("Connected to PostgreSQL")

	return InitPostgresTables(ctx, PostgresDB)
}

// InitPostgresTables creates the journals table and its indexes if missing.
func InitPostgresTables(ctx context.Context, db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS journals (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			itinerary_id TEXT,
			title VARCHAR(200) NOT NULL,
			description TEXT,
			city TEXT,
			country TEXT,
			tags TEXT[] NOT NULL DEFAULT '{}',
			media_ids TEXT[] NOT NULL DEFAULT '{}',
			cover_media_id TEXT,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			modified_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_journals_owner_created_at ON journals(owner_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_journals_owner_title ON journals(owner_id, title)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return err
		}
	}

	logging.Info().Msg("PostgreSQL journal tables initialized")
	return nil
}

// DisconnectPostgres closes the PostgreSQL connection
func DisconnectPostgres() error {
	if PostgresDB != nil {
		return PostgresDB.Close()
	}
	return nil
}

package cities

import (
	"context"
	"database/sql"
	"fmt"

	"agora/pkg/platform/sentinel"
	"agora/pkg/platform/tx"
)

// PostgresStore persists cities in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE cities (
//	    name   TEXT NOT NULL,
//	    county TEXT NOT NULL,
//	    PRIMARY KEY (lower(name), lower(county))
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) exec(ctx context.Context) interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
} {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

func (s *PostgresStore) Upsert(ctx context.Context, city City) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO cities (name, county)
		VALUES ($1, $2)
		ON CONFLICT (lower(name), lower(county)) DO NOTHING
	`, city.Name, city.County)
	if err != nil {
		return fmt.Errorf("upsert city: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (City, error) {
	var c City
	err := s.exec(ctx).QueryRowContext(ctx, `
		SELECT name, county FROM cities WHERE lower(name) = lower($1) ORDER BY county LIMIT 1
	`, name).Scan(&c.Name, &c.County)
	if err != nil {
		if err == sql.ErrNoRows {
			return City{}, sentinel.ErrNotFound
		}
		return City{}, fmt.Errorf("find city: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.exec(ctx).QueryRowContext(ctx, `SELECT count(*) FROM cities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cities: %w", err)
	}
	return n, nil
}

package domains

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"agora/internal/platform/postgres"
	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"
	"agora/pkg/platform/tx"
)

// PostgresStore persists domains in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE domains (
//	    id          UUID PRIMARY KEY,
//	    name        TEXT NOT NULL,
//	    description TEXT NOT NULL DEFAULT '',
//	    seat_count  INTEGER NOT NULL CHECK (seat_count >= 0),
//	    UNIQUE (lower(name))
//	);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed domain store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) conn(ctx context.Context) querier {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

func (s *PostgresStore) CreateIfNameAvailable(ctx context.Context, d Domain) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO domains (id, name, description, seat_count)
		VALUES ($1, $2, $3, $4)
	`, uuid.UUID(d.ID), d.Name, d.Description, d.SeatCount)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create domain: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, domainID id.DomainID) (Domain, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, name, description, seat_count FROM domains WHERE id = $1
	`, uuid.UUID(domainID))
	return scanDomain(row)
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (Domain, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, name, description, seat_count FROM domains WHERE lower(name) = lower($1)
	`, name)
	return scanDomain(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]Domain, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, name, description, seat_count FROM domains ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	defer rows.Close()

	var out []Domain
	for rows.Next() {
		var d Domain
		var rawID uuid.UUID
		if err := rows.Scan(&rawID, &d.Name, &d.Description, &d.SeatCount); err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		d.ID = id.DomainID(rawID)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.conn(ctx).QueryRowContext(ctx, `SELECT count(*) FROM domains`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count domains: %w", err)
	}
	return n, nil
}

func scanDomain(row *sql.Row) (Domain, error) {
	var d Domain
	var rawID uuid.UUID
	err := row.Scan(&rawID, &d.Name, &d.Description, &d.SeatCount)
	if err != nil {
		if err == sql.ErrNoRows {
			return Domain{}, sentinel.ErrNotFound
		}
		return Domain{}, fmt.Errorf("scan domain: %w", err)
	}
	d.ID = id.DomainID(rawID)
	return d, nil
}

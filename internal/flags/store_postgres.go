package flags

import (
	"context"
	"database/sql"
	"fmt"

	"agora/pkg/platform/sentinel"
	"agora/pkg/platform/tx"
)

// PostgresStore persists flags in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE feature_flags (
//	    name        TEXT PRIMARY KEY,
//	    enabled     BOOLEAN NOT NULL DEFAULT FALSE,
//	    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed flag store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) conn(ctx context.Context) execer {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

func (s *PostgresStore) Get(ctx context.Context, name Name) (bool, error) {
	var enabled bool
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT enabled FROM feature_flags WHERE name = $1`, string(name)).Scan(&enabled)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, sentinel.ErrNotFound
		}
		return false, fmt.Errorf("get flag %s: %w", name, err)
	}
	return enabled, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, name Name, enabled bool) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO feature_flags (name, enabled, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			updated_at = now()
	`, string(name), enabled)
	if err != nil {
		return fmt.Errorf("upsert flag %s: %w", name, err)
	}
	return nil
}

// SetMany toggles both sets inside one transaction so a phase transition is
// applied atomically. A name without a stored row fails the whole batch.
func (s *PostgresStore) SetMany(ctx context.Context, enabled, disabled []Name) error {
	sqlTx, joined := tx.From(ctx)
	if !joined {
		var err error
		sqlTx, err = s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin flag batch: %w", err)
		}
		defer sqlTx.Rollback()
	}

	set := func(names []Name, value bool) error {
		for _, name := range names {
			res, err := sqlTx.ExecContext(ctx,
				`UPDATE feature_flags SET enabled = $2, updated_at = now() WHERE name = $1`,
				string(name), value)
			if err != nil {
				return fmt.Errorf("toggle flag %s: %w", name, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("toggle flag %s: %w", name, err)
			}
			if n == 0 {
				return fmt.Errorf("flag %s: %w", name, sentinel.ErrNotFound)
			}
		}
		return nil
	}

	if err := set(enabled, true); err != nil {
		return err
	}
	if err := set(disabled, false); err != nil {
		return err
	}

	if !joined {
		if err := sqlTx.Commit(); err != nil {
			return fmt.Errorf("commit flag batch: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Flag, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT name, enabled FROM feature_flags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}
	defer rows.Close()

	var out []Flag
	for rows.Next() {
		var f Flag
		var name string
		if err := rows.Scan(&name, &f.Enabled); err != nil {
			return nil, fmt.Errorf("scan flag: %w", err)
		}
		f.Name = Name(name)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Names(ctx context.Context) (map[Name]bool, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[Name]bool, len(list))
	for _, f := range list {
		out[f.Name] = true
	}
	return out, nil
}

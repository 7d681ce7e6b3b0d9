package access

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "agora/pkg/domain"
	"agora/pkg/platform/tx"
)

// PostgresStore persists grants.
//
// Schema:
//
//	CREATE TABLE access_grants (
//	    user_id     UUID,
//	    group_name  TEXT NOT NULL DEFAULT '',
//	    object_type TEXT NOT NULL,
//	    object_id   TEXT NOT NULL,
//	    capability  TEXT NOT NULL,
//	    UNIQUE (user_id, group_name, object_type, object_id, capability)
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) conn(ctx context.Context) querier {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

func (s *PostgresStore) Put(ctx context.Context, grant Grant) error {
	var userID sql.Null[uuid.UUID]
	if !grant.Subject.UserID.IsZero() {
		userID = sql.Null[uuid.UUID]{V: uuid.UUID(grant.Subject.UserID), Valid: true}
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO access_grants (user_id, group_name, object_type, object_id, capability)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, group_name, object_type, object_id, capability) DO NOTHING
	`, userID, grant.Subject.Group, string(grant.ObjectType), grant.ObjectID, string(grant.Capability))
	if err != nil {
		return fmt.Errorf("put grant: %w", err)
	}
	return nil
}

func (s *PostgresStore) Has(ctx context.Context, userID id.UserID, groups []string, objectType ObjectType, objectID string, capability Capability) (bool, error) {
	var exists bool
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM access_grants
			WHERE object_type = $1 AND object_id = $2 AND capability = $3
			  AND (user_id = $4 OR group_name = ANY($5))
		)
	`, string(objectType), objectID, string(capability), uuid.UUID(userID), pq.Array(groups)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check grant: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) RevokeObject(ctx context.Context, objectType ObjectType, objectID string) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		DELETE FROM access_grants WHERE object_type = $1 AND object_id = $2
	`, string(objectType), objectID)
	if err != nil {
		return fmt.Errorf("revoke grants: %w", err)
	}
	return nil
}

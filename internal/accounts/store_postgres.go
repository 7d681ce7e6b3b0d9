package accounts

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"agora/internal/platform/postgres"
	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"
	"agora/pkg/platform/tx"
)

// PostgresStore persists users and group membership.
//
// Schema:
//
//	CREATE TABLE users (
//	    id            UUID PRIMARY KEY,
//	    email         TEXT NOT NULL,
//	    password_hash TEXT NOT NULL,
//	    active        BOOLEAN NOT NULL DEFAULT TRUE,
//	    org_id        UUID,
//	    first_name    TEXT NOT NULL DEFAULT '',
//	    last_name     TEXT NOT NULL DEFAULT '',
//	    created_at    TIMESTAMPTZ NOT NULL,
//	    UNIQUE (lower(email))
//	);
//	CREATE TABLE group_members (
//	    group_name TEXT NOT NULL,
//	    user_id    UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
//	    PRIMARY KEY (group_name, user_id)
//	);
type PostgresStore struct {
	db *sql.DB
}

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

func (s *PostgresStore) CreateIfEmailAvailable(ctx context.Context, user User) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, active, org_id, first_name, last_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.UUID(user.ID), user.Email, user.PasswordHash, user.Active,
		nullUUID(uuid.UUID(user.OrgID)), user.FirstName, user.LastName, user.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, user User) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE users SET email = $2, password_hash = $3, active = $4, org_id = $5,
			first_name = $6, last_name = $7
		WHERE id = $1
	`, uuid.UUID(user.ID), user.Email, user.PasswordHash, user.Active,
		nullUUID(uuid.UUID(user.OrgID)), user.FirstName, user.LastName)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (User, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, email, password_hash, active, org_id, first_name, last_name, created_at
		FROM users WHERE id = $1
	`, uuid.UUID(userID))
	return scanUser(row)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (User, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, email, password_hash, active, org_id, first_name, last_name, created_at
		FROM users WHERE lower(email) = lower($1)
	`, email)
	return scanUser(row)
}

func (s *PostgresStore) ListByOrg(ctx context.Context, orgID id.OrgID) ([]User, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, email, password_hash, active, org_id, first_name, last_name, created_at
		FROM users WHERE org_id = $1
	`, uuid.UUID(orgID))
	if err != nil {
		return nil, fmt.Errorf("list users by org: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (s *PostgresStore) AddToGroup(ctx context.Context, userID id.UserID, group Group) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO group_members (group_name, user_id)
		VALUES ($1, $2)
		ON CONFLICT (group_name, user_id) DO NOTHING
	`, string(group), uuid.UUID(userID))
	if err != nil {
		return fmt.Errorf("add to group: %w", err)
	}
	return nil
}

func (s *PostgresStore) InGroup(ctx context.Context, userID id.UserID, group Group) (bool, error) {
	var exists bool
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM group_members WHERE group_name = $1 AND user_id = $2
		)
	`, string(group), uuid.UUID(userID)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check group membership: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) CountByGroup(ctx context.Context, group Group) (int, error) {
	var n int
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT count(*) FROM group_members WHERE group_name = $1
	`, string(group)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count group members: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListEmailsByGroups(ctx context.Context, groups ...Group) ([]string, error) {
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = string(g)
	}
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT DISTINCT u.email
		FROM users u
		JOIN group_members gm ON gm.user_id = u.id
		WHERE gm.group_name = ANY($1) AND u.active
	`, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("list group emails: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		out = append(out, email)
	}
	return out, rows.Err()
}

func scanUser(row *sql.Row) (User, error) {
	var u User
	var rawID uuid.UUID
	var orgID sql.Null[uuid.UUID]
	err := row.Scan(&rawID, &u.Email, &u.PasswordHash, &u.Active, &orgID, &u.FirstName, &u.LastName, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return User{}, sentinel.ErrNotFound
		}
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	u.ID = id.UserID(rawID)
	if orgID.Valid {
		u.OrgID = id.OrgID(orgID.V)
	}
	return u, nil
}

func collectUsers(rows *sql.Rows) ([]User, error) {
	var out []User
	for rows.Next() {
		var u User
		var rawID uuid.UUID
		var orgID sql.Null[uuid.UUID]
		var createdAt time.Time
		if err := rows.Scan(&rawID, &u.Email, &u.PasswordHash, &u.Active, &orgID, &u.FirstName, &u.LastName, &createdAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.ID = id.UserID(rawID)
		u.CreatedAt = createdAt
		if orgID.Valid {
			u.OrgID = id.OrgID(orgID.V)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func nullUUID(u uuid.UUID) sql.Null[uuid.UUID] {
	if u == uuid.Nil {
		return sql.Null[uuid.UUID]{}
	}
	return sql.Null[uuid.UUID]{V: u, Valid: true}
}

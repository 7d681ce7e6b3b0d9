package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"agora/internal/platform/postgres"
	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"
	"agora/pkg/platform/tx"
)

// PostgresStore persists the ledger. The unique indexes are the
// authoritative enforcement of the pair invariants; the in-process checks
// in the service are early exits.
//
// Schema:
//
//	CREATE TABLE candidate_supporters (
//	    user_id      UUID NOT NULL,
//	    candidate_id UUID NOT NULL,
//	    created_at   TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (user_id, candidate_id)
//	);
//	CREATE TABLE candidate_votes (
//	    user_id      UUID NOT NULL,
//	    org_id       UUID NOT NULL,
//	    candidate_id UUID NOT NULL,
//	    domain_id    UUID NOT NULL,
//	    created_at   TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (user_id, candidate_id),
//	    UNIQUE (org_id, candidate_id)
//	);
//	CREATE TABLE candidate_confirmations (
//	    user_id      UUID NOT NULL,
//	    candidate_id UUID NOT NULL,
//	    created_at   TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (user_id, candidate_id)
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

func (s *PostgresStore) CreateSupporter(ctx context.Context, row Supporter) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO candidate_supporters (user_id, candidate_id, created_at)
		VALUES ($1, $2, $3)
	`, uuid.UUID(row.UserID), uuid.UUID(row.CandidateID), row.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create supporter: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteSupporter(ctx context.Context, userID id.UserID, candidateID id.CandidateID) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		DELETE FROM candidate_supporters WHERE user_id = $1 AND candidate_id = $2
	`, uuid.UUID(userID), uuid.UUID(candidateID))
	if err != nil {
		return fmt.Errorf("delete supporter: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindSupporterAmong(ctx context.Context, userIDs []id.UserID, candidateID id.CandidateID) (id.UserID, bool, error) {
	raw := make([]uuid.UUID, len(userIDs))
	for i, u := range userIDs {
		raw[i] = uuid.UUID(u)
	}
	var holder uuid.UUID
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT user_id FROM candidate_supporters
		WHERE user_id = ANY($1) AND candidate_id = $2
		LIMIT 1
	`, pq.Array(raw), uuid.UUID(candidateID)).Scan(&holder)
	if err == sql.ErrNoRows {
		return id.UserID{}, false, nil
	}
	if err != nil {
		return id.UserID{}, false, fmt.Errorf("find supporter: %w", err)
	}
	return id.UserID(holder), true, nil
}

func (s *PostgresStore) CountSupportersByCandidate(ctx context.Context, candidateID id.CandidateID) (int, error) {
	return s.count(ctx,
		`SELECT count(*) FROM candidate_supporters WHERE candidate_id = $1`,
		uuid.UUID(candidateID))
}

func (s *PostgresStore) DeleteSupportersByUsers(ctx context.Context, userIDs []id.UserID) (int, error) {
	raw := make([]uuid.UUID, len(userIDs))
	for i, u := range userIDs {
		raw[i] = uuid.UUID(u)
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`DELETE FROM candidate_supporters WHERE user_id = ANY($1)`, pq.Array(raw))
	if err != nil {
		return 0, fmt.Errorf("delete supporters: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PostgresStore) CreateVote(ctx context.Context, row Vote) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO candidate_votes (user_id, org_id, candidate_id, domain_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.UUID(row.UserID), uuid.UUID(row.OrgID), uuid.UUID(row.CandidateID),
		uuid.UUID(row.DomainID), row.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create vote: %w", err)
	}
	return nil
}

func (s *PostgresStore) ExistsVoteByOrgCandidate(ctx context.Context, orgID id.OrgID, candidateID id.CandidateID) (bool, error) {
	var exists bool
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM candidate_votes WHERE org_id = $1 AND candidate_id = $2
		)
	`, uuid.UUID(orgID), uuid.UUID(candidateID)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check vote: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) CountVotesByOrgDomain(ctx context.Context, orgID id.OrgID, domainID id.DomainID) (int, error) {
	return s.count(ctx,
		`SELECT count(*) FROM candidate_votes WHERE org_id = $1 AND domain_id = $2`,
		uuid.UUID(orgID), uuid.UUID(domainID))
}

func (s *PostgresStore) CountVotesByCandidate(ctx context.Context, candidateID id.CandidateID) (int, error) {
	return s.count(ctx,
		`SELECT count(*) FROM candidate_votes WHERE candidate_id = $1`,
		uuid.UUID(candidateID))
}

func (s *PostgresStore) DeleteVotesByOrg(ctx context.Context, orgID id.OrgID) (int, error) {
	res, err := s.conn(ctx).ExecContext(ctx,
		`DELETE FROM candidate_votes WHERE org_id = $1`, uuid.UUID(orgID))
	if err != nil {
		return 0, fmt.Errorf("delete votes: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PostgresStore) CreateConfirmationIfAbsent(ctx context.Context, row Confirmation) (bool, error) {
	res, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO candidate_confirmations (user_id, candidate_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, candidate_id) DO NOTHING
	`, uuid.UUID(row.UserID), uuid.UUID(row.CandidateID), row.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("create confirmation: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *PostgresStore) CountConfirmersByCandidate(ctx context.Context, candidateID id.CandidateID) (int, error) {
	return s.count(ctx,
		`SELECT count(DISTINCT user_id) FROM candidate_confirmations WHERE candidate_id = $1`,
		uuid.UUID(candidateID))
}

func (s *PostgresStore) DeleteConfirmationsByCandidate(ctx context.Context, candidateID id.CandidateID) (int, error) {
	res, err := s.conn(ctx).ExecContext(ctx,
		`DELETE FROM candidate_confirmations WHERE candidate_id = $1`, uuid.UUID(candidateID))
	if err != nil {
		return 0, fmt.Errorf("delete confirmations: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PostgresStore) DeleteConfirmationsByUser(ctx context.Context, userID id.UserID) (int, error) {
	res, err := s.conn(ctx).ExecContext(ctx,
		`DELETE FROM candidate_confirmations WHERE user_id = $1`, uuid.UUID(userID))
	if err != nil {
		return 0, fmt.Errorf("delete confirmations: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PostgresStore) DeleteByCandidate(ctx context.Context, candidateID id.CandidateID) error {
	raw := uuid.UUID(candidateID)
	for _, table := range []string{"candidate_supporters", "candidate_votes", "candidate_confirmations"} {
		_, err := s.conn(ctx).ExecContext(ctx,
			`DELETE FROM `+table+` WHERE candidate_id = $1`, raw)
		if err != nil {
			return fmt.Errorf("purge %s: %w", table, err)
		}
	}
	return nil
}

func (s *PostgresStore) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.conn(ctx).QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count ledger rows: %w", err)
	}
	return n, nil
}

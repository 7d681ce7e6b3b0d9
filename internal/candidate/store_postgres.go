package candidate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"agora/internal/platform/postgres"
	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"
	"agora/pkg/platform/tx"
)

// PostgresStore persists candidates.
//
// Schema:
//
//	CREATE TABLE candidates (
//	    id                  UUID PRIMARY KEY,
//	    status              TEXT NOT NULL,
//	    org_id              UUID,
//	    initial_org_id      UUID,
//	    domain_id           UUID,
//	    old_domain_id       UUID,
//	    is_proposed         BOOLEAN NOT NULL DEFAULT FALSE,
//	    representative_name TEXT NOT NULL DEFAULT '',
//	    representative_role TEXT NOT NULL DEFAULT '',
//	    photo               TEXT NOT NULL DEFAULT '',
//	    statement           TEXT NOT NULL DEFAULT '',
//	    mandate             TEXT NOT NULL DEFAULT '',
//	    letter_of_intent    TEXT NOT NULL DEFAULT '',
//	    created_at          TIMESTAMPTZ NOT NULL,
//	    updated_at          TIMESTAMPTZ NOT NULL
//	);
//	CREATE UNIQUE INDEX candidates_org_idx
//	    ON candidates (org_id) WHERE org_id IS NOT NULL;
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

const candidateColumns = `id, status, org_id, initial_org_id, domain_id,
	old_domain_id, is_proposed, representative_name, representative_role,
	photo, statement, mandate, letter_of_intent, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, c Candidate) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO candidates (`+candidateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, candidateArgs(c)...)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create candidate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, c Candidate) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE candidates SET
			status = $2, org_id = $3, initial_org_id = $4, domain_id = $5,
			old_domain_id = $6, is_proposed = $7, representative_name = $8,
			representative_role = $9, photo = $10, statement = $11,
			mandate = $12, letter_of_intent = $13, created_at = $14,
			updated_at = $15
		WHERE id = $1
	`, candidateArgs(c)...)
	if err != nil {
		return fmt.Errorf("update candidate: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, candidateID id.CandidateID) (Candidate, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, uuid.UUID(candidateID))
	return scanCandidate(row)
}

func (s *PostgresStore) FindByOrg(ctx context.Context, orgID id.OrgID) (Candidate, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE org_id = $1`, uuid.UUID(orgID))
	return scanCandidate(row)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status Status) ([]Candidate, error) {
	return s.list(ctx, `
		SELECT `+candidateColumns+` FROM candidates
		WHERE status = $1 ORDER BY representative_name
	`, string(status))
}

func (s *PostgresStore) ListByDomain(ctx context.Context, domainID id.DomainID) ([]Candidate, error) {
	return s.list(ctx, `
		SELECT `+candidateColumns+` FROM candidates
		WHERE domain_id = $1 ORDER BY representative_name
	`, uuid.UUID(domainID))
}

func (s *PostgresStore) DeleteProposedByOrg(ctx context.Context, orgID id.OrgID) ([]Candidate, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		DELETE FROM candidates
		WHERE org_id = $1 AND is_proposed
		RETURNING `+candidateColumns+`
	`, uuid.UUID(orgID))
	if err != nil {
		return nil, fmt.Errorf("delete proposed candidates: %w", err)
	}
	defer rows.Close()

	var deleted []Candidate
	for rows.Next() {
		c, err := scanCandidateRows(rows)
		if err != nil {
			return nil, err
		}
		deleted = append(deleted, c)
	}
	return deleted, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, candidateID id.CandidateID) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`DELETE FROM candidates WHERE id = $1`, uuid.UUID(candidateID))
	if err != nil {
		return fmt.Errorf("delete candidate: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]Candidate, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		c, err := scanCandidateRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func candidateArgs(c Candidate) []any {
	return []any{
		uuid.UUID(c.ID), string(c.Status),
		nullUUID(uuid.UUID(c.OrgID)), nullUUID(uuid.UUID(c.InitialOrgID)),
		nullUUID(uuid.UUID(c.DomainID)), nullUUID(uuid.UUID(c.OldDomainID)),
		c.IsProposed, c.RepresentativeName, c.RepresentativeRole,
		c.Photo, c.Statement, c.Mandate, c.LetterOfIntent,
		c.CreatedAt, c.UpdatedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row *sql.Row) (Candidate, error) {
	c, err := scanInto(row)
	if err == sql.ErrNoRows {
		return Candidate{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Candidate{}, fmt.Errorf("scan candidate: %w", err)
	}
	return c, nil
}

func scanCandidateRows(rows *sql.Rows) (Candidate, error) {
	c, err := scanInto(rows)
	if err != nil {
		return Candidate{}, fmt.Errorf("scan candidate: %w", err)
	}
	return c, nil
}

func scanInto(row rowScanner) (Candidate, error) {
	var c Candidate
	var rawID uuid.UUID
	var status string
	var orgID, initialOrgID, domainID, oldDomainID sql.Null[uuid.UUID]
	var createdAt, updatedAt time.Time

	err := row.Scan(&rawID, &status, &orgID, &initialOrgID, &domainID,
		&oldDomainID, &c.IsProposed, &c.RepresentativeName,
		&c.RepresentativeRole, &c.Photo, &c.Statement, &c.Mandate,
		&c.LetterOfIntent, &createdAt, &updatedAt)
	if err != nil {
		return Candidate{}, err
	}

	c.ID = id.CandidateID(rawID)
	c.Status = Status(status)
	if orgID.Valid {
		c.OrgID = id.OrgID(orgID.V)
	}
	if initialOrgID.Valid {
		c.InitialOrgID = id.OrgID(initialOrgID.V)
	}
	if domainID.Valid {
		c.DomainID = id.DomainID(domainID.V)
	}
	if oldDomainID.Valid {
		c.OldDomainID = id.DomainID(oldDomainID.V)
	}
	c.CreatedAt = createdAt
	c.UpdatedAt = updatedAt
	return c, nil
}

func nullUUID(u uuid.UUID) sql.Null[uuid.UUID] {
	if u == uuid.Nil {
		return sql.Null[uuid.UUID]{}
	}
	return sql.Null[uuid.UUID]{V: u, Valid: true}
}

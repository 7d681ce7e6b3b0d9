package org

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"agora/internal/platform/postgres"
	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"
	"agora/pkg/platform/tx"
)

// PostgresStore persists organizations.
//
// Schema:
//
//	CREATE TABLE organizations (
//	    id                        UUID PRIMARY KEY,
//	    status                    TEXT NOT NULL,
//	    name                      TEXT NOT NULL DEFAULT '',
//	    email                     TEXT NOT NULL DEFAULT '',
//	    phone                     TEXT NOT NULL DEFAULT '',
//	    address                   TEXT NOT NULL DEFAULT '',
//	    city                      TEXT NOT NULL DEFAULT '',
//	    county                    TEXT NOT NULL DEFAULT '',
//	    description               TEXT NOT NULL DEFAULT '',
//	    registration_number       TEXT NOT NULL DEFAULT '',
//	    legal_representative_name TEXT NOT NULL DEFAULT '',
//	    board_council             TEXT NOT NULL DEFAULT '',
//	    voting_domain_id          UUID,
//	    external_org_id           INTEGER,
//	    logo                      TEXT NOT NULL DEFAULT '',
//	    statute                   TEXT NOT NULL DEFAULT '',
//	    last_balance_sheet        TEXT NOT NULL DEFAULT '',
//	    fiscal_attestation        TEXT NOT NULL DEFAULT '',
//	    non_political_affiliation TEXT NOT NULL DEFAULT '',
//	    annual_reports            JSONB NOT NULL DEFAULT '{}',
//	    filename_cache            JSONB NOT NULL DEFAULT '{}',
//	    registered_at             TIMESTAMPTZ NOT NULL,
//	    accepted_at               TIMESTAMPTZ,
//	    sync_started_at           TIMESTAMPTZ,
//	    synced_at                 TIMESTAMPTZ,
//	    updated_at                TIMESTAMPTZ NOT NULL
//	);
//	CREATE UNIQUE INDEX organizations_external_idx
//	    ON organizations (external_org_id) WHERE external_org_id IS NOT NULL;
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

const orgColumns = `id, status, name, email, phone, address, city, county,
	description, registration_number, legal_representative_name, board_council,
	voting_domain_id, external_org_id, logo, statute, last_balance_sheet,
	fiscal_attestation, non_political_affiliation, annual_reports,
	filename_cache, registered_at, accepted_at, sync_started_at, synced_at,
	updated_at`

func (s *PostgresStore) Create(ctx context.Context, o Organization) error {
	reports, cache, err := marshalMaps(o)
	if err != nil {
		return err
	}
	_, err = s.conn(ctx).ExecContext(ctx, `
		INSERT INTO organizations (`+orgColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
	`, orgArgs(o, reports, cache)...)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, o Organization) error {
	reports, cache, err := marshalMaps(o)
	if err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE organizations SET
			status = $2, name = $3, email = $4, phone = $5, address = $6,
			city = $7, county = $8, description = $9, registration_number = $10,
			legal_representative_name = $11, board_council = $12,
			voting_domain_id = $13, external_org_id = $14, logo = $15,
			statute = $16, last_balance_sheet = $17, fiscal_attestation = $18,
			non_political_affiliation = $19, annual_reports = $20,
			filename_cache = $21, registered_at = $22, accepted_at = $23,
			sync_started_at = $24, synced_at = $25, updated_at = $26
		WHERE id = $1
	`, orgArgs(o, reports, cache)...)
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, orgID id.OrgID) (Organization, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE id = $1`, uuid.UUID(orgID))
	return scanOrg(row)
}

func (s *PostgresStore) FindByExternalID(ctx context.Context, externalID int) (Organization, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE external_org_id = $1`, externalID)
	return scanOrg(row)
}

func (s *PostgresStore) ExistsByEmailInStatus(ctx context.Context, email string, exclude id.OrgID, statuses ...Status) (bool, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	var exists bool
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM organizations
			WHERE lower(email) = lower($1) AND id <> $2 AND status = ANY($3)
		)
	`, email, uuid.UUID(exclude), pq.Array(names)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status Status) ([]Organization, error) {
	return s.list(ctx, `SELECT `+orgColumns+` FROM organizations WHERE status = $1 ORDER BY name`, string(status))
}

func (s *PostgresStore) ListExcludingDraft(ctx context.Context) ([]Organization, error) {
	return s.list(ctx, `SELECT `+orgColumns+` FROM organizations WHERE status <> $1 ORDER BY name`, string(StatusDraft))
}

func (s *PostgresStore) ListStaleSynced(ctx context.Context, cutoff time.Time, limit int) ([]Organization, error) {
	return s.list(ctx, `
		SELECT `+orgColumns+` FROM organizations
		WHERE external_org_id IS NOT NULL
		  AND (synced_at IS NULL OR synced_at < $1)
		ORDER BY synced_at NULLS FIRST
		LIMIT $2
	`, cutoff, limit)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]Organization, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var out []Organization
	for rows.Next() {
		o, err := scanOrgRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func marshalMaps(o Organization) ([]byte, []byte, error) {
	reportKeys := make(map[string]string, len(o.AnnualReports))
	for year, filename := range o.AnnualReports {
		reportKeys[strconv.Itoa(year)] = filename
	}
	reports, err := json.Marshal(reportKeys)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal annual reports: %w", err)
	}
	cacheMap := o.FilenameCache
	if cacheMap == nil {
		cacheMap = map[string]string{}
	}
	cache, err := json.Marshal(cacheMap)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal filename cache: %w", err)
	}
	return reports, cache, nil
}

func orgArgs(o Organization, reports, cache []byte) []any {
	return []any{
		uuid.UUID(o.ID), string(o.Status), o.Name, o.Email, o.Phone, o.Address,
		o.City, o.County, o.Description, o.RegistrationNumber,
		o.LegalRepresentativeName, o.BoardCouncil,
		nullUUID(uuid.UUID(o.VotingDomainID)), nullInt(o.ExternalOrgID),
		o.Logo, o.Statute, o.LastBalanceSheet, o.FiscalAttestation,
		o.NonPoliticalAffiliation, reports, cache,
		o.RegisteredAt, nullTime(o.AcceptedAt), nullTime(o.SyncStartedAt),
		nullTime(o.SyncedAt), o.UpdatedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrg(row *sql.Row) (Organization, error) {
	o, err := scanInto(row)
	if err == sql.ErrNoRows {
		return Organization{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Organization{}, fmt.Errorf("scan organization: %w", err)
	}
	return o, nil
}

func scanOrgRows(rows *sql.Rows) (Organization, error) {
	o, err := scanInto(rows)
	if err != nil {
		return Organization{}, fmt.Errorf("scan organization: %w", err)
	}
	return o, nil
}

func scanInto(row rowScanner) (Organization, error) {
	var o Organization
	var rawID uuid.UUID
	var status string
	var votingDomain sql.Null[uuid.UUID]
	var externalID sql.NullInt64
	var reports, cache []byte
	var acceptedAt, syncStartedAt, syncedAt sql.NullTime

	err := row.Scan(&rawID, &status, &o.Name, &o.Email, &o.Phone, &o.Address,
		&o.City, &o.County, &o.Description, &o.RegistrationNumber,
		&o.LegalRepresentativeName, &o.BoardCouncil, &votingDomain, &externalID,
		&o.Logo, &o.Statute, &o.LastBalanceSheet, &o.FiscalAttestation,
		&o.NonPoliticalAffiliation, &reports, &cache, &o.RegisteredAt,
		&acceptedAt, &syncStartedAt, &syncedAt, &o.UpdatedAt)
	if err != nil {
		return Organization{}, err
	}

	o.ID = id.OrgID(rawID)
	o.Status = Status(status)
	if votingDomain.Valid {
		o.VotingDomainID = id.DomainID(votingDomain.V)
	}
	if externalID.Valid {
		o.ExternalOrgID = int(externalID.Int64)
	}
	if acceptedAt.Valid {
		o.AcceptedAt = acceptedAt.Time
	}
	if syncStartedAt.Valid {
		o.SyncStartedAt = syncStartedAt.Time
	}
	if syncedAt.Valid {
		o.SyncedAt = syncedAt.Time
	}

	var reportKeys map[string]string
	if err := json.Unmarshal(reports, &reportKeys); err != nil {
		return Organization{}, fmt.Errorf("unmarshal annual reports: %w", err)
	}
	for yearStr, filename := range reportKeys {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			return Organization{}, fmt.Errorf("annual report year %q: %w", yearStr, err)
		}
		o.SetReport(year, filename)
	}
	if err := json.Unmarshal(cache, &o.FilenameCache); err != nil {
		return Organization{}, fmt.Errorf("unmarshal filename cache: %w", err)
	}
	return o, nil
}

func nullUUID(u uuid.UUID) sql.Null[uuid.UUID] {
	if u == uuid.Nil {
		return sql.Null[uuid.UUID]{}
	}
	return sql.Null[uuid.UUID]{V: u, Valid: true}
}

func nullInt(n int) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

package autojoin

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Store is the persistence contract for auto-join domain records
type Store interface {
	Create(ctx context.Context, domain *Domain) error
	Get(ctx context.Context, id string) (*Domain, error)
	List(ctx context.Context, scope, scopeID string) ([]*Domain, error)
	FindVerified(ctx context.Context, domain string) ([]*Domain, error)
	MarkVerified(ctx context.Context, id string) (*Domain, error)
	Delete(ctx context.Context, id string) error
	PurgePending(ctx context.Context, olderThan time.Time) (int64, error)
}

const domainColumns = `id, domain, role, scope, scope_id, status, verification_code, created_at, verified_at`

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a new domain record
func (s *PostgresStore) Create(ctx context.Context, domain *Domain) error {
	query := `
		INSERT INTO autojoin_domains (id, domain, role, scope, scope_id, status, verification_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := s.db.QueryRowContext(ctx, query,
		domain.ID, domain.Domain, domain.Role, domain.Scope, domain.ScopeID,
		domain.Status, domain.VerificationCode,
	).Scan(&domain.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicateDomain
		}
		return fmt.Errorf("failed to create autojoin domain: %w", err)
	}
	return nil
}

// Get retrieves a domain record by ID, or nil when it does not exist
func (s *PostgresStore) Get(ctx context.Context, id string) (*Domain, error) {
	query := fmt.Sprintf(`SELECT %s FROM autojoin_domains WHERE id = $1`, domainColumns)
	d, err := scanDomain(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get autojoin domain: %w", err)
	}
	return d, nil
}

// List retrieves domain records, optionally filtered by scope and scope ID
func (s *PostgresStore) List(ctx context.Context, scope, scopeID string) ([]*Domain, error) {
	query := fmt.Sprintf(`SELECT %s FROM autojoin_domains`, domainColumns)
	var conds []string
	var args []interface{}
	if scope != "" {
		args = append(args, scope)
		conds = append(conds, fmt.Sprintf("scope = $%d", len(args)))
	}
	if scopeID != "" {
		args = append(args, scopeID)
		conds = append(conds, fmt.Sprintf("scope_id = $%d", len(args)))
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list autojoin domains: %w", err)
	}
	defer rows.Close()

	var domains []*Domain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan autojoin domain: %w", err)
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// FindVerified retrieves all VERIFIED records for a domain name
func (s *PostgresStore) FindVerified(ctx context.Context, domain string) ([]*Domain, error) {
	query := fmt.Sprintf(`SELECT %s FROM autojoin_domains WHERE domain = $1 AND status = $2`, domainColumns)
	rows, err := s.db.QueryContext(ctx, query, domain, StatusVerified)
	if err != nil {
		return nil, fmt.Errorf("failed to find verified domains: %w", err)
	}
	defer rows.Close()

	var domains []*Domain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan autojoin domain: %w", err)
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// MarkVerified transitions a record to VERIFIED and returns the updated row
func (s *PostgresStore) MarkVerified(ctx context.Context, id string) (*Domain, error) {
	query := fmt.Sprintf(`
		UPDATE autojoin_domains SET status = $1, verified_at = NOW()
		WHERE id = $2
		RETURNING %s
	`, domainColumns)
	d, err := scanDomain(s.db.QueryRowContext(ctx, query, StatusVerified, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark domain verified: %w", err)
	}
	return d, nil
}

// Delete removes a domain record
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM autojoin_domains WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete autojoin domain: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgePending removes PENDING records created before the cutoff
func (s *PostgresStore) PurgePending(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM autojoin_domains WHERE status = $1 AND created_at < $2`,
		StatusPending, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to purge pending domains: %w", err)
	}
	return result.RowsAffected()
}

func scanDomain(scanner interface {
	Scan(dest ...interface{}) error
}) (*Domain, error) {
	var d Domain
	var verifiedAt sql.NullTime
	err := scanner.Scan(
		&d.ID, &d.Domain, &d.Role, &d.Scope, &d.ScopeID,
		&d.Status, &d.VerificationCode, &d.CreatedAt, &verifiedAt,
	)
	if err != nil {
		return nil, err
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		d.VerifiedAt = &t
	}
	return &d, nil
}

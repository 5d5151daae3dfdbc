package autojoin

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groveauth/grove/pkg/hierarchy"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewPostgresStore(db), mock, db
}

func domainRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "domain", "role", "scope", "scope_id", "status", "verification_code", "created_at", "verified_at",
	})
}

func TestStoreCreate(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()
	ctx := context.Background()

	record := &Domain{
		ID:               "d1",
		Domain:           "example.com",
		Role:             hierarchy.RoleReader,
		Scope:            hierarchy.ResourceCompany,
		ScopeID:          "com-widgets",
		Status:           StatusPending,
		VerificationCode: "abc123",
	}

	t.Run("insert returns created_at", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery(`INSERT INTO autojoin_domains`).
			WithArgs("d1", "example.com", hierarchy.RoleReader, hierarchy.ResourceCompany,
				"com-widgets", StatusPending, "abc123").
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

		require.NoError(t, store.Create(ctx, record))
		assert.Equal(t, now, record.CreatedAt)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to duplicate error", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO autojoin_domains`).
			WillReturnError(&pq.Error{Code: "23505"})

		err := store.Create(ctx, record)
		assert.ErrorIs(t, err, ErrDuplicateDomain)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStoreGet(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()
	ctx := context.Background()

	t.Run("found with null verified_at", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery(`SELECT id, domain, role, scope, scope_id, status, verification_code, created_at, verified_at FROM autojoin_domains WHERE id = \$1`).
			WithArgs("d1").
			WillReturnRows(domainRows().
				AddRow("d1", "example.com", "READER", "company", "com-widgets", "PENDING", "abc123", now, nil))

		d, err := store.Get(ctx, "d1")
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, StatusPending, d.Status)
		assert.Nil(t, d.VerifiedAt)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing record is nil, not an error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .+ FROM autojoin_domains WHERE id = \$1`).
			WithArgs("d-gone").
			WillReturnError(sql.ErrNoRows)

		d, err := store.Get(ctx, "d-gone")
		require.NoError(t, err)
		assert.Nil(t, d)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStoreFindVerified(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()
	ctx := context.Background()

	now := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM autojoin_domains WHERE domain = \$1 AND status = \$2`).
		WithArgs("example.com", StatusVerified).
		WillReturnRows(domainRows().
			AddRow("d1", "example.com", "READER", "company", "com-widgets", "VERIFIED", "abc123", now, now))

	domains, err := store.FindVerified(ctx, "example.com")
	require.NoError(t, err)
	require.Len(t, domains, 1)
	assert.Equal(t, StatusVerified, domains[0].Status)
	require.NotNil(t, domains[0].VerifiedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreMarkVerified(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()
	ctx := context.Background()

	t.Run("returns the updated row", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery(`UPDATE autojoin_domains SET status = \$1, verified_at = NOW\(\)`).
			WithArgs(StatusVerified, "d1").
			WillReturnRows(domainRows().
				AddRow("d1", "example.com", "READER", "company", "com-widgets", "VERIFIED", "abc123", now, now))

		d, err := store.MarkVerified(ctx, "d1")
		require.NoError(t, err)
		assert.Equal(t, StatusVerified, d.Status)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing record", func(t *testing.T) {
		mock.ExpectQuery(`UPDATE autojoin_domains SET status = \$1, verified_at = NOW\(\)`).
			WithArgs(StatusVerified, "d-gone").
			WillReturnError(sql.ErrNoRows)

		_, err := store.MarkVerified(ctx, "d-gone")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStoreDelete(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()
	ctx := context.Background()

	t.Run("deletes one row", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM autojoin_domains WHERE id = \$1`).
			WithArgs("d1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.Delete(ctx, "d1"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing record", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM autojoin_domains WHERE id = \$1`).
			WithArgs("d-gone").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, store.Delete(ctx, "d-gone"), ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStorePurgePending(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()
	ctx := context.Background()

	cutoff := time.Now().Add(-30 * 24 * time.Hour)
	mock.ExpectExec(`DELETE FROM autojoin_domains WHERE status = \$1 AND created_at < \$2`).
		WithArgs(StatusPending, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	purged, err := store.PurgePending(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), purged)

	require.NoError(t, mock.ExpectationsWereMet())
}

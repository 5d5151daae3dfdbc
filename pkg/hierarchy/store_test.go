package hierarchy

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewPostgresStore(db), mock, db
}

func TestPostgresGetNode(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()
	ctx := context.Background()

	t.Run("project carries its parent team", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, name, team_id FROM projects WHERE id = \$1`).
			WithArgs("proj-api").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "team_id"}).
				AddRow("proj-api", "API", "team-platform"))

		node, err := store.GetNode(ctx, ResourceProject, "proj-api")
		require.NoError(t, err)
		require.NotNil(t, node)
		assert.Equal(t, "proj-api", node.ID)
		assert.Equal(t, "API", node.Name)
		assert.Equal(t, ResourceProject, node.Type)
		assert.Equal(t, "team-platform", node.ParentID)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("organization has no parent column", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, name FROM organizations WHERE id = \$1`).
			WithArgs("org-acme").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
				AddRow("org-acme", "Acme"))

		node, err := store.GetNode(ctx, ResourceOrganization, "org-acme")
		require.NoError(t, err)
		require.NotNil(t, node)
		assert.Empty(t, node.ParentID)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing node is nil, not an error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, name, company_id FROM teams WHERE id = \$1`).
			WithArgs("team-gone").
			WillReturnError(sql.ErrNoRows)

		node, err := store.GetNode(ctx, ResourceTeam, "team-gone")
		require.NoError(t, err)
		assert.Nil(t, node)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown type never reaches the database", func(t *testing.T) {
		_, err := store.GetNode(ctx, ResourceType("folder"), "x")
		assert.ErrorIs(t, err, ErrUnknownResourceType)
	})
}

func TestPostgresChildIDs(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()
	ctx := context.Background()

	t.Run("teams under companies", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id FROM teams WHERE company_id = ANY\(\$1\)`).
			WithArgs(pq.Array([]string{"com-widgets"})).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).
				AddRow("team-platform").
				AddRow("team-data"))

		ids, err := store.ChildIDs(ctx, ResourceCompany, []string{"com-widgets"})
		require.NoError(t, err)
		assert.Equal(t, []string{"team-platform", "team-data"}, ids)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty parent set skips the query", func(t *testing.T) {
		ids, err := store.ChildIDs(ctx, ResourceCompany, nil)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("projects have no child level", func(t *testing.T) {
		_, err := store.ChildIDs(ctx, ResourceProject, []string{"proj-api"})
		assert.ErrorIs(t, err, ErrUnknownResourceType)
	})
}

func TestPostgresMembershipsInScopes(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()
	ctx := context.Background()

	membershipRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{
			"id", "user_id", "role", "organization_id", "company_id", "team_id", "project_id",
		})
	}

	t.Run("scope conditions group per level", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, user_id, role, organization_id, company_id, team_id, project_id FROM memberships WHERE \(organization_id = ANY\(\$1\) OR project_id = ANY\(\$2\)\) ORDER BY id ASC`).
			WithArgs(pq.Array([]string{"org-acme"}), pq.Array([]string{"proj-api"})).
			WillReturnRows(membershipRows().
				AddRow("m1", "u-root", "ADMIN", "org-acme", nil, nil, nil).
				AddRow("m2", "u-dev", "READER", nil, nil, nil, "proj-api"))

		memberships, err := store.MembershipsInScopes(ctx, []Scope{
			{Type: ResourceProject, ID: "proj-api"},
			{Type: ResourceOrganization, ID: "org-acme"},
		}, nil)
		require.NoError(t, err)
		require.Len(t, memberships, 2)

		assert.Equal(t, Scope{Type: ResourceOrganization, ID: "org-acme"}, memberships[0].Scope)
		assert.Equal(t, RoleAdmin, memberships[0].Role)
		assert.Equal(t, Scope{Type: ResourceProject, ID: "proj-api"}, memberships[1].Scope)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("user filter appends a condition", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, user_id, role, organization_id, company_id, team_id, project_id FROM memberships WHERE \(company_id = ANY\(\$1\)\) AND user_id = ANY\(\$2\) ORDER BY id ASC`).
			WithArgs(pq.Array([]string{"com-widgets"}), pq.Array([]string{"u-reader"})).
			WillReturnRows(membershipRows().
				AddRow("m3", "u-reader", "READER", nil, "com-widgets", nil, nil))

		memberships, err := store.MembershipsInScopes(ctx,
			[]Scope{{Type: ResourceCompany, ID: "com-widgets"}}, []string{"u-reader"})
		require.NoError(t, err)
		require.Len(t, memberships, 1)
		assert.Equal(t, "u-reader", memberships[0].UserID)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("row without any scope column is rejected", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, user_id, role, organization_id, company_id, team_id, project_id FROM memberships`).
			WillReturnRows(membershipRows().
				AddRow("m4", "u-x", "READER", nil, nil, nil, nil))

		_, err := store.MembershipsInScopes(ctx,
			[]Scope{{Type: ResourceCompany, ID: "com-widgets"}}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "has no scope")
	})

	t.Run("empty scope set skips the query", func(t *testing.T) {
		memberships, err := store.MembershipsInScopes(ctx, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, memberships)
	})
}

func TestPostgresGetUsers(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()
	ctx := context.Background()

	t.Run("null full name scans to empty string", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, email, full_name FROM users WHERE id = ANY\(\$1\) ORDER BY email ASC`).
			WithArgs(pq.Array([]string{"u-1", "u-2"})).
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "full_name"}).
				AddRow("u-1", "a@acme.test", "Alice").
				AddRow("u-2", "b@acme.test", nil))

		users, err := store.GetUsers(ctx, []string{"u-1", "u-2"})
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "Alice", users[0].FullName)
		assert.Empty(t, users[1].FullName)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty id set skips the query", func(t *testing.T) {
		users, err := store.GetUsers(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, users)
	})
}

package hierarchy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasPermission(t *testing.T) {
	store := fixtureStore().
		addUser("u-root", "root@acme.test", "Root Admin").
		addUser("u-reader", "reader@acme.test", "Company Reader").
		addUser("u-lead", "lead@acme.test", "Team Lead").
		grant("m1", "u-root", RoleAdmin, ResourceOrganization, "org-acme").
		grant("m2", "u-reader", RoleReader, ResourceCompany, "com-widgets").
		grant("m3", "u-lead", RoleAdmin, ResourceTeam, "team-platform")

	evaluator := NewEvaluator(store)
	ctx := context.Background()

	check := func(t *testing.T, userID string, roles []Role, rt ResourceType, id string) bool {
		t.Helper()
		allowed, err := evaluator.HasPermission(ctx, store.userWithMemberships(userID), roles, rt, id)
		require.NoError(t, err)
		return allowed
	}

	t.Run("organization admin inherits full strength on a project", func(t *testing.T) {
		assert.True(t, check(t, "u-root", []Role{RoleReader}, ResourceProject, "proj-api"))
		assert.True(t, check(t, "u-root", []Role{RoleAdmin}, ResourceProject, "proj-api"))
	})

	t.Run("company reader inherits reader on a team, nothing more", func(t *testing.T) {
		assert.True(t, check(t, "u-reader", []Role{RoleReader}, ResourceTeam, "team-platform"))
		assert.False(t, check(t, "u-reader", []Role{RoleEditor}, ResourceTeam, "team-platform"))
	})

	t.Run("inheritance never travels upward", func(t *testing.T) {
		assert.False(t, check(t, "u-lead", []Role{RoleReader}, ResourceCompany, "com-widgets"))
		assert.False(t, check(t, "u-lead", []Role{RoleReader}, ResourceOrganization, "org-acme"))
	})

	t.Run("inheritance never travels sideways", func(t *testing.T) {
		assert.False(t, check(t, "u-lead", []Role{RoleReader}, ResourceTeam, "team-data"))
		assert.False(t, check(t, "u-lead", []Role{RoleReader}, ResourceProject, "proj-pipeline"))
	})

	t.Run("team admin covers own projects", func(t *testing.T) {
		assert.True(t, check(t, "u-lead", []Role{RoleAdmin}, ResourceProject, "proj-web"))
	})

	t.Run("any-of requirement clears the lowest bar", func(t *testing.T) {
		// READER satisfies [ADMIN, READER]: holding any listed role is enough.
		assert.True(t, check(t, "u-reader", []Role{RoleAdmin, RoleReader}, ResourceCompany, "com-widgets"))
	})

	t.Run("reader in unrelated organization is denied", func(t *testing.T) {
		assert.False(t, check(t, "u-reader", []Role{RoleReader}, ResourceCompany, "com-services"))
	})

	t.Run("nil user is denied", func(t *testing.T) {
		allowed, err := evaluator.HasPermission(ctx, nil, []Role{RoleReader}, ResourceProject, "proj-api")
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("user without memberships is denied", func(t *testing.T) {
		allowed, err := evaluator.HasPermission(ctx, &User{ID: "u-new"}, []Role{RoleReader}, ResourceProject, "proj-api")
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("empty resource id is denied", func(t *testing.T) {
		allowed, err := evaluator.HasPermission(ctx, store.userWithMemberships("u-root"), []Role{RoleReader}, ResourceProject, "")
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("missing node is denied", func(t *testing.T) {
		assert.False(t, check(t, "u-root", []Role{RoleReader}, ResourceProject, "proj-gone"))
	})

	t.Run("unknown resource type is an error and a denial", func(t *testing.T) {
		allowed, err := evaluator.HasPermission(ctx, store.userWithMemberships("u-root"), []Role{RoleReader}, ResourceType("folder"), "x")
		assert.ErrorIs(t, err, ErrUnknownResourceType)
		assert.False(t, allowed)
	})

	t.Run("no grantable required role is a denial", func(t *testing.T) {
		assert.False(t, check(t, "u-root", []Role{RoleViewer}, ResourceProject, "proj-api"))
		assert.False(t, check(t, "u-root", nil, ResourceProject, "proj-api"))
	})

	t.Run("storage error denies and propagates", func(t *testing.T) {
		failing := fixtureStore().
			addUser("u-root", "root@acme.test", "Root Admin").
			grant("m1", "u-root", RoleAdmin, ResourceOrganization, "org-acme")
		failing.err = errors.New("connection reset")
		allowed, err := NewEvaluator(failing).HasPermission(ctx,
			failing.userWithMemberships("u-root"), []Role{RoleReader}, ResourceProject, "proj-api")
		assert.Error(t, err)
		assert.False(t, allowed)
	})
}

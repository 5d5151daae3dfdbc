package hierarchy

import (
	"context"
	"fmt"
	"sort"
)

// VisibilityResolver computes the set of resource IDs of one tree level that
// a user may list. Visibility expands downward from the user's memberships
// only; ancestor scaffolding for UI trees is handled by TreeBuilder.
type VisibilityResolver struct {
	store Store
}

// NewVisibilityResolver creates a new visibility resolver
func NewVisibilityResolver(store Store) *VisibilityResolver {
	return &VisibilityResolver{store: store}
}

// VisibleResourceIDs returns the IDs of every node of the given level the
// user can see: nodes of direct memberships at that level plus all
// descendants of memberships at higher levels. The result is deduplicated
// and sorted.
func (r *VisibilityResolver) VisibleResourceIDs(ctx context.Context, user *User, t ResourceType) ([]string, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResourceType, t)
	}
	if user == nil {
		return []string{}, nil
	}

	sets, err := expandAccessible(ctx, r.store, user, t)
	if err != nil {
		return nil, err
	}

	ids := sets[t]
	if ids == nil {
		ids = []string{}
	}
	sort.Strings(ids)
	return ids, nil
}

// directScopeIDs partitions a user's memberships into per-level ID sets
func directScopeIDs(memberships []Membership) map[ResourceType][]string {
	out := make(map[ResourceType][]string, len(resourceOrder))
	for _, m := range memberships {
		out[m.Scope.Type] = append(out[m.Scope.Type], m.Scope.ID)
	}
	for t, ids := range out {
		out[t] = dedupe(ids)
	}
	return out
}

// expandAccessible builds the accessible ID set per level, top-down: each
// level is the children of the level above unioned with the user's direct
// memberships at that level. Expansion stops after the `until` level.
func expandAccessible(ctx context.Context, store Store, user *User, until ResourceType) (map[ResourceType][]string, error) {
	direct := directScopeIDs(user.Memberships)

	sets := make(map[ResourceType][]string, len(resourceOrder))
	sets[ResourceOrganization] = direct[ResourceOrganization]

	prev := ResourceOrganization
	for prev != until {
		level, _ := prev.Child()

		expanded, err := store.ChildIDs(ctx, prev, sets[prev])
		if err != nil {
			return nil, err
		}
		sets[level] = dedupe(append(expanded, direct[level]...))
		prev = level
	}

	return sets, nil
}

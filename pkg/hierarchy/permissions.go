package hierarchy

import (
	"context"
	"fmt"
)

// Evaluator answers enforcement questions: can this user act with at least
// one of the required roles on this resource?
//
// Role inheritance here is full-strength and downward-only: a membership at
// any ancestor level grants its exact role on every node beneath it, and
// never propagates upward or sideways. Display inheritance for member
// listings follows different rules (see MemberLister) and the two are kept
// deliberately separate.
type Evaluator struct {
	store Store
	tree  *TreeAccessor
}

// NewEvaluator creates a new permission evaluator
func NewEvaluator(store Store) *Evaluator {
	return &Evaluator{
		store: store,
		tree:  NewTreeAccessor(store),
	}
}

// HasPermission reports whether user holds a role of at least the lowest
// level among requiredRoles on the given resource, directly or inherited
// from an ancestor membership.
//
// Every ambiguity resolves to denial: an unknown resource type, a missing
// node, or an empty membership list all yield false. Storage errors are
// returned alongside false and must never be treated as a grant.
func (e *Evaluator) HasPermission(ctx context.Context, user *User, requiredRoles []Role, t ResourceType, id string) (bool, error) {
	if !t.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownResourceType, t)
	}
	if user == nil || len(user.Memberships) == 0 || id == "" {
		return false, nil
	}

	requiredLevel := minRequiredLevel(requiredRoles)
	if requiredLevel < 0 {
		return false, nil
	}

	node, err := e.store.GetNode(ctx, t, id)
	if err != nil {
		return false, err
	}
	if node == nil {
		return false, nil
	}

	ancestors, err := e.tree.Ancestors(ctx, t, id)
	if err != nil {
		return false, err
	}

	// The node's own scope plus each resolved ancestor scope.
	candidates := append(ancestors.Scopes(), Scope{Type: t, ID: id})

	best := -1
	for _, m := range user.Memberships {
		for _, c := range candidates {
			if m.Scope == c && m.Role.Level() > best {
				best = m.Role.Level()
			}
		}
	}

	return best >= requiredLevel, nil
}

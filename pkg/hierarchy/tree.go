package hierarchy

import (
	"context"
	"fmt"
)

// TreeAccessor resolves ancestors and descendants of tree nodes. All lookups
// are pure reads against current storage; missing nodes resolve to empty
// results rather than errors.
type TreeAccessor struct {
	store Store
}

// NewTreeAccessor creates a new tree accessor
func NewTreeAccessor(store Store) *TreeAccessor {
	return &TreeAccessor{store: store}
}

// Ancestors returns the IDs of the levels strictly above the given node,
// found by following the parent FK chain upward. An organization has no
// ancestors; an unresolvable node yields an empty result.
func (a *TreeAccessor) Ancestors(ctx context.Context, t ResourceType, id string) (AncestorIDs, error) {
	if !t.Valid() {
		return AncestorIDs{}, fmt.Errorf("%w: %q", ErrUnknownResourceType, t)
	}

	var out AncestorIDs
	curType, curID := t, id
	for {
		parentType, ok := curType.Parent()
		if !ok {
			return out, nil
		}

		node, err := a.store.GetNode(ctx, curType, curID)
		if err != nil {
			return AncestorIDs{}, err
		}
		if node == nil || node.ParentID == "" {
			// Fail closed: an unresolvable link ends the walk.
			return out, nil
		}

		switch parentType {
		case ResourceOrganization:
			out.OrganizationID = node.ParentID
		case ResourceCompany:
			out.CompanyID = node.ParentID
		case ResourceTeam:
			out.TeamID = node.ParentID
		}

		curType, curID = parentType, node.ParentID
	}
}

// Descendants returns the IDs of the levels strictly below the given node,
// cascading one level at a time. A project has no descendants; an
// unresolvable node yields an empty result.
func (a *TreeAccessor) Descendants(ctx context.Context, t ResourceType, id string) (DescendantIDs, error) {
	if !t.Valid() {
		return DescendantIDs{}, fmt.Errorf("%w: %q", ErrUnknownResourceType, t)
	}

	var out DescendantIDs
	node, err := a.store.GetNode(ctx, t, id)
	if err != nil {
		return DescendantIDs{}, err
	}
	if node == nil {
		return out, nil
	}

	curType := t
	frontier := []string{id}
	for {
		childType, ok := curType.Child()
		if !ok {
			return out, nil
		}

		children, err := a.store.ChildIDs(ctx, curType, frontier)
		if err != nil {
			return DescendantIDs{}, err
		}

		switch childType {
		case ResourceCompany:
			out.CompanyIDs = children
		case ResourceTeam:
			out.TeamIDs = children
		case ResourceProject:
			out.ProjectIDs = children
		}

		curType, frontier = childType, children
	}
}

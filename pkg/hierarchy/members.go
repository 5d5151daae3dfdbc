package hierarchy

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// MemberLister lists every user related to a resource's tree and folds each
// one to a single display role for membership-management screens.
//
// Display inheritance is intentionally weaker than enforcement inheritance:
// an ancestor membership only surfaces here as ADMIN when it is ADMIN, and as
// the synthetic VIEWER tier otherwise, even though the Evaluator grants such
// a membership full strength. The two algorithms must not be unified.
type MemberLister struct {
	store Store
	tree  *TreeAccessor
}

// NewMemberLister creates a new effective-membership lister
func NewMemberLister(store Store) *MemberLister {
	return &MemberLister{
		store: store,
		tree:  NewTreeAccessor(store),
	}
}

// memberClass orders the display precedence when capability levels tie:
// a direct role beats an equal ancestor ADMIN, which beats VIEWER.
const (
	classOther = iota
	classAncestorAdmin
	classDirect
)

// EffectiveMembers returns one entry per distinct user holding any
// membership on the resource itself, an ancestor, or a descendant,
// optionally restricted to userIDs. Entries are ordered by user email.
func (l *MemberLister) EffectiveMembers(ctx context.Context, t ResourceType, id string, userIDs ...string) ([]EffectiveMember, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResourceType, t)
	}

	target, err := l.store.GetNode(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return []EffectiveMember{}, nil
	}

	// Ancestor and descendant resolution are independent lookups.
	var ancestors AncestorIDs
	var descendants DescendantIDs
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ancestors, err = l.tree.Ancestors(gctx, t, id)
		return err
	})
	g.Go(func() error {
		var err error
		descendants, err = l.tree.Descendants(gctx, t, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	targetScope := Scope{Type: t, ID: id}
	ancestorScopes := ancestors.Scopes()
	scopes := append([]Scope{targetScope}, ancestorScopes...)
	scopes = append(scopes, descendants.Scopes()...)

	memberships, err := l.store.MembershipsInScopes(ctx, scopes, userIDs)
	if err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return []EffectiveMember{}, nil
	}

	names, err := l.scopeNames(ctx, scopes)
	if err != nil {
		return nil, err
	}

	inAncestors := make(map[Scope]bool, len(ancestorScopes))
	for _, sc := range ancestorScopes {
		inAncestors[sc] = true
	}

	type ranked struct {
		member EffectiveMember
		level  int
		class  int
	}
	best := make(map[string]ranked, len(memberships))

	for _, m := range memberships {
		var cand ranked
		switch {
		case m.Scope == targetScope:
			cand = ranked{
				level: m.Role.Level(),
				class: classDirect,
				member: EffectiveMember{
					MembershipID:  m.ID,
					EffectiveRole: m.Role,
					RoleSource:    "Direct member",
					RoleSourceID:  m.Scope.ID,
				},
			}
		case inAncestors[m.Scope] && m.Role == RoleAdmin:
			cand = ranked{
				level: RoleAdmin.Level(),
				class: classAncestorAdmin,
				member: EffectiveMember{
					EffectiveRole: RoleAdmin,
					RoleSource:    fmt.Sprintf("Admin of parent %s %q", m.Scope.Type, names[m.Scope]),
					RoleSourceID:  m.Scope.ID,
				},
			}
		default:
			cand = ranked{
				level: RoleViewer.Level(),
				class: classOther,
				member: EffectiveMember{
					EffectiveRole: RoleViewer,
					RoleSource:    fmt.Sprintf("Viewer from %s %q", m.Scope.Type, names[m.Scope]),
					RoleSourceID:  m.Scope.ID,
				},
			}
		}

		cur, ok := best[m.UserID]
		if !ok || cand.level > cur.level || (cand.level == cur.level && cand.class > cur.class) {
			best[m.UserID] = cand
		}
	}

	ids := make([]string, 0, len(best))
	for userID := range best {
		ids = append(ids, userID)
	}
	users, err := l.store.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	members := make([]EffectiveMember, 0, len(users))
	for _, u := range users {
		entry := best[u.ID].member
		entry.User = u
		members = append(members, entry)
	}
	return members, nil
}

// scopeNames fetches display names for every scope in the set, one batch per
// level, issued concurrently
func (l *MemberLister) scopeNames(ctx context.Context, scopes []Scope) (map[Scope]string, error) {
	byLevel := make(map[ResourceType][]string)
	for _, sc := range scopes {
		byLevel[sc.Type] = append(byLevel[sc.Type], sc.ID)
	}

	nodes := make([][]Node, len(resourceOrder))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range resourceOrder {
		ids, ok := byLevel[t]
		if !ok {
			continue
		}
		i, t := i, t
		g.Go(func() error {
			var err error
			nodes[i], err = l.store.GetNodes(gctx, t, ids)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := make(map[Scope]string, len(scopes))
	for _, level := range nodes {
		for _, n := range level {
			names[Scope{Type: n.Type, ID: n.ID}] = n.Name
		}
	}
	return names, nil
}

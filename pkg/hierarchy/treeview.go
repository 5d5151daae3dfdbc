package hierarchy

import (
	"context"
)

// TreeBuilder assembles the nested organization tree shown in dashboards and
// navigation. Nodes appear either because the user can access them (same
// descendant expansion as visibility) or as ancestor scaffolding giving the
// accessible nodes structural context; scaffold nodes grant no access.
type TreeBuilder struct {
	store Store
}

// NewTreeBuilder creates a new tree builder
func NewTreeBuilder(store Store) *TreeBuilder {
	return &TreeBuilder{store: store}
}

// BuildTree returns the forest of organizations visible to the user, nested
// Organization → Companies → Teams → Projects. IsMember marks nodes the user
// holds a direct membership on; it is a UI flag, independent of access.
func (b *TreeBuilder) BuildTree(ctx context.Context, user *User) ([]*TreeNode, error) {
	if user == nil || len(user.Memberships) == 0 {
		return []*TreeNode{}, nil
	}

	acc, err := expandAccessible(ctx, b.store, user, ResourceProject)
	if err != nil {
		return nil, err
	}

	// Walk upward from the accessible sets, one level at a time: fetching a
	// level's nodes surfaces the parent IDs the level above must include as
	// scaffolding.
	projects, err := b.store.GetNodes(ctx, ResourceProject, acc[ResourceProject])
	if err != nil {
		return nil, err
	}
	teams, err := b.store.GetNodes(ctx, ResourceTeam, withParents(acc[ResourceTeam], projects))
	if err != nil {
		return nil, err
	}
	companies, err := b.store.GetNodes(ctx, ResourceCompany, withParents(acc[ResourceCompany], teams))
	if err != nil {
		return nil, err
	}
	orgs, err := b.store.GetNodes(ctx, ResourceOrganization, withParents(acc[ResourceOrganization], companies))
	if err != nil {
		return nil, err
	}

	directScopes := make(map[Scope]bool, len(user.Memberships))
	for _, m := range user.Memberships {
		directScopes[m.Scope] = true
	}

	toNode := func(n Node) *TreeNode {
		return &TreeNode{
			ID:       n.ID,
			Name:     n.Name,
			Type:     n.Type,
			IsMember: directScopes[Scope{Type: n.Type, ID: n.ID}],
		}
	}

	// Group each level under its parent; node fetches are name-ordered so
	// children stay sorted.
	projectsByTeam := make(map[string][]*TreeNode)
	for _, p := range projects {
		projectsByTeam[p.ParentID] = append(projectsByTeam[p.ParentID], toNode(p))
	}
	teamsByCompany := make(map[string][]*TreeNode)
	for _, t := range teams {
		tn := toNode(t)
		tn.Children = projectsByTeam[t.ID]
		teamsByCompany[t.ParentID] = append(teamsByCompany[t.ParentID], tn)
	}
	companiesByOrg := make(map[string][]*TreeNode)
	for _, c := range companies {
		cn := toNode(c)
		cn.Children = teamsByCompany[c.ID]
		companiesByOrg[c.ParentID] = append(companiesByOrg[c.ParentID], cn)
	}

	roots := make([]*TreeNode, 0, len(orgs))
	for _, o := range orgs {
		on := toNode(o)
		on.Children = companiesByOrg[o.ID]
		roots = append(roots, on)
	}
	return roots, nil
}

// withParents unions an accessible ID set with the parent IDs of the fetched
// nodes one level below
func withParents(ids []string, children []Node) []string {
	out := make([]string, 0, len(ids)+len(children))
	out = append(out, ids...)
	for _, c := range children {
		if c.ParentID != "" {
			out = append(out, c.ParentID)
		}
	}
	return dedupe(out)
}

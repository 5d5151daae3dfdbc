package hierarchy

import (
	"context"
	"sort"
)

// fakeStore is an in-memory Store over a fixed tree, good enough for
// exercising the resolvers without a database.
type fakeStore struct {
	nodes       map[Scope]Node
	memberships []Membership
	users       map[string]User
	err         error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nodes: make(map[Scope]Node),
		users: make(map[string]User),
	}
}

func (f *fakeStore) addNode(t ResourceType, id, name, parentID string) *fakeStore {
	f.nodes[Scope{Type: t, ID: id}] = Node{ID: id, Name: name, Type: t, ParentID: parentID}
	return f
}

func (f *fakeStore) addUser(id, email, name string) *fakeStore {
	f.users[id] = User{ID: id, Email: email, FullName: name}
	return f
}

func (f *fakeStore) grant(id, userID string, role Role, t ResourceType, scopeID string) *fakeStore {
	f.memberships = append(f.memberships, Membership{
		ID:     id,
		UserID: userID,
		Role:   role,
		Scope:  Scope{Type: t, ID: scopeID},
	})
	return f
}

func (f *fakeStore) userWithMemberships(id string) *User {
	u := f.users[id]
	for _, m := range f.memberships {
		if m.UserID == id {
			u.Memberships = append(u.Memberships, m)
		}
	}
	return &u
}

func (f *fakeStore) GetNode(ctx context.Context, t ResourceType, id string) (*Node, error) {
	if f.err != nil {
		return nil, f.err
	}
	n, ok := f.nodes[Scope{Type: t, ID: id}]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (f *fakeStore) GetNodes(ctx context.Context, t ResourceType, ids []string) ([]Node, error) {
	if f.err != nil {
		return nil, f.err
	}
	var nodes []Node
	for _, id := range ids {
		if n, ok := f.nodes[Scope{Type: t, ID: id}]; ok {
			nodes = append(nodes, n)
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}

func (f *fakeStore) ChildIDs(ctx context.Context, parentType ResourceType, parentIDs []string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	childType, ok := parentType.Child()
	if !ok {
		return nil, ErrUnknownResourceType
	}
	parents := make(map[string]bool, len(parentIDs))
	for _, id := range parentIDs {
		parents[id] = true
	}
	var ids []string
	for sc, n := range f.nodes {
		if sc.Type == childType && parents[n.ParentID] {
			ids = append(ids, n.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeStore) MembershipsInScopes(ctx context.Context, scopes []Scope, userIDs []string) ([]Membership, error) {
	if f.err != nil {
		return nil, f.err
	}
	inScope := make(map[Scope]bool, len(scopes))
	for _, sc := range scopes {
		inScope[sc] = true
	}
	wantUser := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		wantUser[id] = true
	}
	var out []Membership
	for _, m := range f.memberships {
		if !inScope[m.Scope] {
			continue
		}
		if len(userIDs) > 0 && !wantUser[m.UserID] {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) MembershipsForUser(ctx context.Context, userID string) ([]Membership, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []Membership
	for _, m := range f.memberships {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) GetUsers(ctx context.Context, ids []string) ([]User, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// fixtureStore builds the tree used across resolver tests:
//
//	org-acme "Acme"
//	├── com-widgets "Widgets"
//	│   ├── team-platform "Platform"
//	│   │   ├── proj-api "API"
//	│   │   └── proj-web "Web"
//	│   └── team-data "Data"
//	│       └── proj-pipeline "Pipeline"
//	└── com-gadgets "Gadgets"
//	    └── team-mobile "Mobile"
//	        └── proj-ios "iOS"
//	org-globex "Globex"
//	└── com-services "Services"
func fixtureStore() *fakeStore {
	return newFakeStore().
		addNode(ResourceOrganization, "org-acme", "Acme", "").
		addNode(ResourceOrganization, "org-globex", "Globex", "").
		addNode(ResourceCompany, "com-widgets", "Widgets", "org-acme").
		addNode(ResourceCompany, "com-gadgets", "Gadgets", "org-acme").
		addNode(ResourceCompany, "com-services", "Services", "org-globex").
		addNode(ResourceTeam, "team-platform", "Platform", "com-widgets").
		addNode(ResourceTeam, "team-data", "Data", "com-widgets").
		addNode(ResourceTeam, "team-mobile", "Mobile", "com-gadgets").
		addNode(ResourceProject, "proj-api", "API", "team-platform").
		addNode(ResourceProject, "proj-web", "Web", "team-platform").
		addNode(ResourceProject, "proj-pipeline", "Pipeline", "team-data").
		addNode(ResourceProject, "proj-ios", "iOS", "team-mobile")
}

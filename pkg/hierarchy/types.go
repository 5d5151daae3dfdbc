package hierarchy

import (
	"errors"
	"fmt"
	"strings"
)

// ResourceType identifies a level of the organizational tree
type ResourceType string

const (
	ResourceOrganization ResourceType = "organization"
	ResourceCompany      ResourceType = "company"
	ResourceTeam         ResourceType = "team"
	ResourceProject      ResourceType = "project"
)

// ErrUnknownResourceType is returned for resource type strings outside the
// four tree levels. Callers must treat it as a denial.
var ErrUnknownResourceType = errors.New("unknown resource type")

// resourceOrder lists the tree levels top-down
var resourceOrder = []ResourceType{
	ResourceOrganization,
	ResourceCompany,
	ResourceTeam,
	ResourceProject,
}

// ParseResourceType parses a resource type string
func ParseResourceType(s string) (ResourceType, error) {
	t := ResourceType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownResourceType, s)
	}
	return t, nil
}

// Valid reports whether t is one of the four tree levels
func (t ResourceType) Valid() bool {
	switch t {
	case ResourceOrganization, ResourceCompany, ResourceTeam, ResourceProject:
		return true
	}
	return false
}

// Depth returns the level of t in the tree (organization=0 .. project=3),
// or -1 for an unknown type
func (t ResourceType) Depth() int {
	for i, rt := range resourceOrder {
		if rt == t {
			return i
		}
	}
	return -1
}

// Parent returns the tree level directly above t
func (t ResourceType) Parent() (ResourceType, bool) {
	d := t.Depth()
	if d <= 0 {
		return "", false
	}
	return resourceOrder[d-1], true
}

// Child returns the tree level directly below t
func (t ResourceType) Child() (ResourceType, bool) {
	d := t.Depth()
	if d < 0 || d == len(resourceOrder)-1 {
		return "", false
	}
	return resourceOrder[d+1], true
}

// Role is a membership role, totally ordered by capability
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleEditor Role = "EDITOR"
	RoleReader Role = "READER"

	// RoleViewer is a synthetic display tier. It is never persisted and only
	// appears in effective-member listings.
	RoleViewer Role = "VIEWER"
)

// Level returns the capability level of r (ADMIN=3, EDITOR=2, READER=1,
// VIEWER=0) or -1 for an unknown role
func (r Role) Level() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleEditor:
		return 2
	case RoleReader:
		return 1
	case RoleViewer:
		return 0
	}
	return -1
}

// Grantable reports whether r may be stored on a membership
func (r Role) Grantable() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleReader:
		return true
	}
	return false
}

// ParseRole parses a role string (case-insensitive)
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if r.Level() < 0 {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Scope identifies the exact tree node a membership is attached to. It is
// constructed once, at the storage boundary, from whichever scope column is
// set on the row; everything downstream matches on the pair.
type Scope struct {
	Type ResourceType `json:"type"`
	ID   string       `json:"id"`
}

// Membership grants a role to a user at exactly one tree node
type Membership struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	Scope  Scope  `json:"scope"`
}

// Node is a single tree node of any level
type Node struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Type     ResourceType `json:"type"`
	ParentID string       `json:"parent_id,omitempty"`
}

// User is an account together with its pre-loaded memberships
type User struct {
	ID          string       `json:"id"`
	Email       string       `json:"email,omitempty"`
	FullName    string       `json:"full_name,omitempty"`
	Memberships []Membership `json:"memberships,omitempty"`
}

// AncestorIDs holds the IDs of the levels strictly above a node. Fields for
// levels at or below the node, and for unresolvable nodes, are empty.
type AncestorIDs struct {
	OrganizationID string `json:"organization_id,omitempty"`
	CompanyID      string `json:"company_id,omitempty"`
	TeamID         string `json:"team_id,omitempty"`
}

// Scopes returns the non-empty ancestor IDs as tagged scopes
func (a AncestorIDs) Scopes() []Scope {
	var scopes []Scope
	if a.OrganizationID != "" {
		scopes = append(scopes, Scope{Type: ResourceOrganization, ID: a.OrganizationID})
	}
	if a.CompanyID != "" {
		scopes = append(scopes, Scope{Type: ResourceCompany, ID: a.CompanyID})
	}
	if a.TeamID != "" {
		scopes = append(scopes, Scope{Type: ResourceTeam, ID: a.TeamID})
	}
	return scopes
}

// DescendantIDs holds the IDs of the levels strictly below a node
type DescendantIDs struct {
	CompanyIDs []string `json:"company_ids,omitempty"`
	TeamIDs    []string `json:"team_ids,omitempty"`
	ProjectIDs []string `json:"project_ids,omitempty"`
}

// Scopes returns every descendant ID as a tagged scope
func (d DescendantIDs) Scopes() []Scope {
	scopes := make([]Scope, 0, len(d.CompanyIDs)+len(d.TeamIDs)+len(d.ProjectIDs))
	for _, id := range d.CompanyIDs {
		scopes = append(scopes, Scope{Type: ResourceCompany, ID: id})
	}
	for _, id := range d.TeamIDs {
		scopes = append(scopes, Scope{Type: ResourceTeam, ID: id})
	}
	for _, id := range d.ProjectIDs {
		scopes = append(scopes, Scope{Type: ResourceProject, ID: id})
	}
	return scopes
}

// TreeNode is one node of the navigation tree built for a user
type TreeNode struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Type     ResourceType `json:"type"`
	IsMember bool         `json:"is_member"`
	Children []*TreeNode  `json:"children,omitempty"`
}

// EffectiveMember is one user's folded display role relative to a resource
type EffectiveMember struct {
	// MembershipID is set only when the effective role comes from a direct
	// membership on the resource itself.
	MembershipID  string `json:"membership_id,omitempty"`
	User          User   `json:"user"`
	EffectiveRole Role   `json:"effective_role"`
	RoleSource    string `json:"role_source"`
	RoleSourceID  string `json:"role_source_id"`
}

// minRequiredLevel returns the lowest capability level among the acceptable
// roles; satisfying any one of them means clearing the lowest bar. Returns
// -1 when no grantable role is present.
func minRequiredLevel(roles []Role) int {
	min := -1
	for _, r := range roles {
		if !r.Grantable() {
			continue
		}
		if l := r.Level(); min < 0 || l < min {
			min = l
		}
	}
	return min
}

// dedupe returns ids with duplicates removed, preserving first-seen order
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

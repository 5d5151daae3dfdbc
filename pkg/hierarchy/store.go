package hierarchy

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Store is the read contract the engine needs from persistence. Referential
// integrity of the tree and the exactly-one-scope rule for memberships are
// guaranteed by the storage layer, not re-validated here.
type Store interface {
	// GetNode returns a single tree node, or nil when it does not exist.
	GetNode(ctx context.Context, t ResourceType, id string) (*Node, error)

	// GetNodes returns the nodes of one level matching the given IDs.
	GetNodes(ctx context.Context, t ResourceType, ids []string) ([]Node, error)

	// ChildIDs returns the IDs of all nodes one level below parentType whose
	// parent is in parentIDs.
	ChildIDs(ctx context.Context, parentType ResourceType, parentIDs []string) ([]string, error)

	// MembershipsInScopes returns every membership attached to one of the
	// given scopes, optionally restricted to userIDs.
	MembershipsInScopes(ctx context.Context, scopes []Scope, userIDs []string) ([]Membership, error)

	// MembershipsForUser returns all memberships held by one user.
	MembershipsForUser(ctx context.Context, userID string) ([]Membership, error)

	// GetUsers returns the users matching the given IDs, without memberships.
	GetUsers(ctx context.Context, ids []string) ([]User, error)
}

// nodeTable maps each tree level to its table and parent FK column. The
// organization level has no parent column.
var nodeTable = map[ResourceType]struct {
	name      string
	parentCol string
}{
	ResourceOrganization: {name: "organizations"},
	ResourceCompany:      {name: "companies", parentCol: "organization_id"},
	ResourceTeam:         {name: "teams", parentCol: "company_id"},
	ResourceProject:      {name: "projects", parentCol: "team_id"},
}

// scopeColumn maps each tree level to its memberships scope column
var scopeColumn = map[ResourceType]string{
	ResourceOrganization: "organization_id",
	ResourceCompany:      "company_id",
	ResourceTeam:         "team_id",
	ResourceProject:      "project_id",
}

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetNode returns a single tree node, or nil when it does not exist
func (s *PostgresStore) GetNode(ctx context.Context, t ResourceType, id string) (*Node, error) {
	tbl, ok := nodeTable[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResourceType, t)
	}

	node := &Node{Type: t}
	var err error
	if tbl.parentCol == "" {
		query := fmt.Sprintf(`SELECT id, name FROM %s WHERE id = $1`, tbl.name)
		err = s.db.QueryRowContext(ctx, query, id).Scan(&node.ID, &node.Name)
	} else {
		query := fmt.Sprintf(`SELECT id, name, %s FROM %s WHERE id = $1`, tbl.parentCol, tbl.name)
		err = s.db.QueryRowContext(ctx, query, id).Scan(&node.ID, &node.Name, &node.ParentID)
	}
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", t, id, err)
	}
	return node, nil
}

// GetNodes returns the nodes of one level matching the given IDs
func (s *PostgresStore) GetNodes(ctx context.Context, t ResourceType, ids []string) ([]Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	tbl, ok := nodeTable[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResourceType, t)
	}

	var query string
	if tbl.parentCol == "" {
		query = fmt.Sprintf(`SELECT id, name FROM %s WHERE id = ANY($1) ORDER BY name ASC`, tbl.name)
	} else {
		query = fmt.Sprintf(`SELECT id, name, %s FROM %s WHERE id = ANY($1) ORDER BY name ASC`, tbl.parentCol, tbl.name)
	}

	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s nodes: %w", t, err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		node := Node{Type: t}
		if tbl.parentCol == "" {
			err = rows.Scan(&node.ID, &node.Name)
		} else {
			err = rows.Scan(&node.ID, &node.Name, &node.ParentID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s node: %w", t, err)
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

// ChildIDs returns the IDs of all nodes one level below parentType whose
// parent is in parentIDs
func (s *PostgresStore) ChildIDs(ctx context.Context, parentType ResourceType, parentIDs []string) ([]string, error) {
	childType, ok := parentType.Child()
	if !ok {
		return nil, fmt.Errorf("%w: %q has no child level", ErrUnknownResourceType, parentType)
	}
	if len(parentIDs) == 0 {
		return nil, nil
	}

	tbl := nodeTable[childType]
	query := fmt.Sprintf(`SELECT id FROM %s WHERE %s = ANY($1)`, tbl.name, tbl.parentCol)

	rows, err := s.db.QueryContext(ctx, query, pq.Array(parentIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s children: %w", childType, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s id: %w", childType, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const membershipColumns = `id, user_id, role, organization_id, company_id, team_id, project_id`

// MembershipsInScopes returns every membership attached to one of the given
// scopes, optionally restricted to userIDs
func (s *PostgresStore) MembershipsInScopes(ctx context.Context, scopes []Scope, userIDs []string) ([]Membership, error) {
	if len(scopes) == 0 {
		return nil, nil
	}

	byLevel := make(map[ResourceType][]string)
	for _, sc := range scopes {
		if !sc.Type.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownResourceType, sc.Type)
		}
		byLevel[sc.Type] = append(byLevel[sc.Type], sc.ID)
	}

	var conds []string
	var args []interface{}
	for _, t := range resourceOrder {
		ids, ok := byLevel[t]
		if !ok {
			continue
		}
		args = append(args, pq.Array(ids))
		conds = append(conds, fmt.Sprintf("%s = ANY($%d)", scopeColumn[t], len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM memberships WHERE (%s)`,
		membershipColumns, strings.Join(conds, " OR "))
	if len(userIDs) > 0 {
		args = append(args, pq.Array(userIDs))
		query += fmt.Sprintf(` AND user_id = ANY($%d)`, len(args))
	}
	query += ` ORDER BY id ASC`

	return s.queryMemberships(ctx, query, args...)
}

// MembershipsForUser returns all memberships held by one user
func (s *PostgresStore) MembershipsForUser(ctx context.Context, userID string) ([]Membership, error) {
	query := fmt.Sprintf(`SELECT %s FROM memberships WHERE user_id = $1 ORDER BY id ASC`, membershipColumns)
	return s.queryMemberships(ctx, query, userID)
}

func (s *PostgresStore) queryMemberships(ctx context.Context, query string, args ...interface{}) ([]Membership, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, *m)
	}
	return memberships, rows.Err()
}

// GetUsers returns the users matching the given IDs, without memberships
func (s *PostgresStore) GetUsers(ctx context.Context, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT id, email, full_name FROM users WHERE id = ANY($1) ORDER BY email ASC`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var fullName sql.NullString
		if err := rows.Scan(&u.ID, &u.Email, &fullName); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if fullName.Valid {
			u.FullName = fullName.String
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// scanMembership builds a Membership from a row, deriving the tagged scope
// from whichever scope column is set. This is the only place the scope tag
// is constructed.
func scanMembership(scanner interface {
	Scan(dest ...interface{}) error
}) (*Membership, error) {
	var m Membership
	var orgID, companyID, teamID, projectID sql.NullString

	err := scanner.Scan(&m.ID, &m.UserID, &m.Role, &orgID, &companyID, &teamID, &projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to scan membership: %w", err)
	}

	switch {
	case orgID.Valid:
		m.Scope = Scope{Type: ResourceOrganization, ID: orgID.String}
	case companyID.Valid:
		m.Scope = Scope{Type: ResourceCompany, ID: companyID.String}
	case teamID.Valid:
		m.Scope = Scope{Type: ResourceTeam, ID: teamID.String}
	case projectID.Valid:
		m.Scope = Scope{Type: ResourceProject, ID: projectID.String}
	default:
		return nil, fmt.Errorf("membership %s has no scope", m.ID)
	}

	return &m, nil
}

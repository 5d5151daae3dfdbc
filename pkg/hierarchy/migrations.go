package hierarchy

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the schema migrations for the tree and memberships
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create tree node tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id VARCHAR(36) PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS companies (
					id VARCHAR(36) PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					organization_id VARCHAR(36) NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS teams (
					id VARCHAR(36) PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					company_id VARCHAR(36) NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS projects (
					id VARCHAR(36) PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					team_id VARCHAR(36) NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_companies_organization_id ON companies(organization_id);
				CREATE INDEX idx_teams_company_id ON teams(company_id);
				CREATE INDEX idx_projects_team_id ON projects(team_id);
			`,
		},
		{
			Version:     2,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id VARCHAR(36) PRIMARY KEY,
					email VARCHAR(255) NOT NULL UNIQUE,
					full_name VARCHAR(255),
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     3,
			Description: "Create memberships table",
			SQL: `
				CREATE TABLE IF NOT EXISTS memberships (
					id VARCHAR(36) PRIMARY KEY,
					user_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					role VARCHAR(16) NOT NULL CHECK (role IN ('ADMIN', 'EDITOR', 'READER')),
					organization_id VARCHAR(36) REFERENCES organizations(id) ON DELETE CASCADE,
					company_id VARCHAR(36) REFERENCES companies(id) ON DELETE CASCADE,
					team_id VARCHAR(36) REFERENCES teams(id) ON DELETE CASCADE,
					project_id VARCHAR(36) REFERENCES projects(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					CHECK (
						(organization_id IS NOT NULL)::int +
						(company_id IS NOT NULL)::int +
						(team_id IS NOT NULL)::int +
						(project_id IS NOT NULL)::int = 1
					),
					UNIQUE(user_id, organization_id, company_id, team_id, project_id)
				);

				CREATE INDEX idx_memberships_user_id ON memberships(user_id);
				CREATE INDEX idx_memberships_organization_id ON memberships(organization_id);
				CREATE INDEX idx_memberships_company_id ON memberships(company_id);
				CREATE INDEX idx_memberships_team_id ON memberships(team_id);
				CREATE INDEX idx_memberships_project_id ON memberships(project_id);
			`,
		},
		{
			Version:     4,
			Description: "Create autojoin_domains table",
			SQL: `
				CREATE TABLE IF NOT EXISTS autojoin_domains (
					id VARCHAR(36) PRIMARY KEY,
					domain VARCHAR(255) NOT NULL,
					role VARCHAR(16) NOT NULL CHECK (role IN ('ADMIN', 'EDITOR', 'READER')),
					scope VARCHAR(16) NOT NULL CHECK (scope IN ('organization', 'company')),
					scope_id VARCHAR(36) NOT NULL,
					status VARCHAR(16) NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'VERIFIED')),
					verification_code VARCHAR(64) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					verified_at TIMESTAMP,
					UNIQUE(domain, scope_id)
				);

				CREATE INDEX idx_autojoin_domains_domain ON autojoin_domains(domain);
				CREATE INDEX idx_autojoin_domains_status ON autojoin_domains(status);
			`,
		},
	}
}

// RunMigrations applies all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS grove_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM grove_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO grove_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

package state

import (
	"database/sql"
	"fmt"
	"time"
)

// --- Environment cache operations ---

// SaveEnvironment inserts or updates a cached environment. The fingerprint
// identifies the dependency set last installed into the environment.
func (s *SQLiteStore) SaveEnvironment(env *EnvRecord) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()

	existing, err := s.GetEnvironment(env.Name)
	if err != nil {
		return fmt.Errorf("failed to check existing environment: %w", err)
	}

	if existing != nil {
		env.CreatedAt = existing.CreatedAt
		env.UpdatedAt = now

		_, err := s.db.Exec(
			`UPDATE environments SET runtime_tag = ?, dep_tag = ?, fingerprint = ?, updated_at = ? WHERE name = ?`,
			env.RuntimeTag, env.DepTag, env.Fingerprint, env.UpdatedAt, env.Name,
		)
		if err != nil {
			return fmt.Errorf("failed to update environment: %w", err)
		}
		return nil
	}

	env.CreatedAt = now
	env.UpdatedAt = now

	_, err = s.db.Exec(
		`INSERT INTO environments (name, runtime_tag, dep_tag, fingerprint, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		env.Name, env.RuntimeTag, env.DepTag, env.Fingerprint, env.CreatedAt, env.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert environment: %w", err)
	}

	return nil
}

// GetEnvironment retrieves a cached environment by name.
// Returns nil without error when the environment is not cached.
func (s *SQLiteStore) GetEnvironment(name string) (*EnvRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	env := &EnvRecord{}
	err := s.db.QueryRow(
		`SELECT name, runtime_tag, dep_tag, fingerprint, created_at, updated_at FROM environments WHERE name = ?`,
		name,
	).Scan(&env.Name, &env.RuntimeTag, &env.DepTag, &env.Fingerprint, &env.CreatedAt, &env.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get environment: %w", err)
	}

	return env, nil
}

// ListEnvironments retrieves all cached environments ordered by name.
func (s *SQLiteStore) ListEnvironments() ([]*EnvRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT name, runtime_tag, dep_tag, fingerprint, created_at, updated_at FROM environments ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list environments: %w", err)
	}
	defer rows.Close()

	var envs []*EnvRecord
	for rows.Next() {
		env := &EnvRecord{}
		if err := rows.Scan(&env.Name, &env.RuntimeTag, &env.DepTag, &env.Fingerprint, &env.CreatedAt, &env.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan environment: %w", err)
		}
		envs = append(envs, env)
	}

	return envs, rows.Err()
}

// DeleteEnvironment drops a cached environment. Deleting an unknown
// environment is not an error.
func (s *SQLiteStore) DeleteEnvironment(name string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	if _, err := s.db.Exec(`DELETE FROM environments WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete environment: %w", err)
	}
	return nil
}

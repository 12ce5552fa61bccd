package auth

import (
	"context"
	"fmt"

	"coreops/internal/platform/db"
)

// Store reads role grants seeded into the database, so operators can tighten
// a role without a redeploy.
type Store struct {
	DB db.Queryer
}

func NewStore(q db.Queryer) *Store {
	return &Store{DB: q}
}

func (s *Store) PermissionsForRole(ctx context.Context, role string) (Set, error) {
	rows, err := s.DB.Query(ctx, "SELECT permission FROM role_permissions WHERE role = $1", role)
	if err != nil {
		return nil, fmt.Errorf("auth: load role permissions: %w", err)
	}
	defer rows.Close()

	out := Set{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		perm := Permission(key)
		if perm.Valid() {
			out[perm] = struct{}{}
		}
	}
	return out, rows.Err()
}

// Seed writes the built-in role table. Existing grants are kept.
func (s *Store) Seed(ctx context.Context) error {
	for _, perm := range DefaultPermissions {
		if _, err := s.DB.Exec(ctx, "INSERT INTO permissions (key) VALUES ($1) ON CONFLICT (key) DO NOTHING", string(perm)); err != nil {
			return fmt.Errorf("auth: seed permission %s: %w", perm, err)
		}
	}
	for role, perms := range RolePermissions {
		if _, err := s.DB.Exec(ctx, "INSERT INTO roles (name) VALUES ($1) ON CONFLICT (name) DO NOTHING", role); err != nil {
			return fmt.Errorf("auth: seed role %s: %w", role, err)
		}
		for _, perm := range perms {
			if _, err := s.DB.Exec(ctx, `
        INSERT INTO role_permissions (role, permission)
        VALUES ($1, $2)
        ON CONFLICT (role, permission) DO NOTHING
      `, role, string(perm)); err != nil {
				return fmt.Errorf("auth: seed grant %s/%s: %w", role, perm, err)
			}
		}
	}
	return nil
}

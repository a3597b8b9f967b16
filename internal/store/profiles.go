package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/models"
)

const profileColumns = `id, email, display_name, role, password_hash, created_at, updated_at`

// GetProfile fetches a profile by identity id.
func (s *Store) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	return s.getProfile(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
}

// GetProfileByEmail fetches a profile by email, case-insensitively.
func (s *Store) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return s.getProfile(ctx, `SELECT `+profileColumns+` FROM profiles WHERE lower(email) = lower($1)`, email)
}

func (s *Store) getProfile(ctx context.Context, query string, arg string) (*models.Profile, error) {
	var p models.Profile
	if err := s.db.GetContext(ctx, &p, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

// CreateProfile inserts p. An existing row with the same id is left untouched
// and returned instead, so concurrent first requests converge on one profile.
func (s *Store) CreateProfile(ctx context.Context, p models.Profile) (*models.Profile, error) {
	now := s.now()
	if p.Role == "" {
		p.Role = models.RoleCustomer
	}
	query := `
		INSERT INTO profiles (id, email, display_name, role, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, p.ID, p.Email, p.DisplayName, p.Role, p.PasswordHash, now); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return s.GetProfile(ctx, p.ID)
}

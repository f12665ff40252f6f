package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/denim-store/storefront/internal/db"
	"github.com/denim-store/storefront/internal/metrics"
	"github.com/denim-store/storefront/internal/models"
)

const userColumns = "id, name, email, password_hash, is_admin, created_at"

// UserStore persists user accounts
type UserStore struct {
	db instrumented
}

// NewUserStore creates a new user store
func NewUserStore(database *db.DB, m *metrics.AppMetrics) *UserStore {
	return &UserStore{db: instrumented{q: database, metrics: m}}
}

// Create inserts a user. Emails are stored lower-cased; a duplicate email
// fails with models.ErrConflict.
func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	query := "INSERT INTO users (name, email, password_hash, is_admin) VALUES (?, ?, ?, ?)"
	res, err := s.db.exec(ctx, "INSERT", "users", query, u.Name, u.Email, u.PasswordHash, u.IsAdmin)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("user %s: %w", u.Email, models.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get user ID: %w", err)
	}

	created, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	*u = *created
	return nil
}

// GetByID returns a user by ID
func (s *UserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := s.db.queryRow(ctx, "users", "SELECT "+userColumns+" FROM users WHERE id = ?", []any{id},
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		return nil, errNoRows(err, "user", id)
	}
	return &u, nil
}

// GetByEmail returns a user by email, case-insensitively
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var u models.User
	err := s.db.queryRow(ctx, "users", "SELECT "+userColumns+" FROM users WHERE email = ?", []any{email},
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		return nil, errNoRows(err, "user", email)
	}
	return &u, nil
}

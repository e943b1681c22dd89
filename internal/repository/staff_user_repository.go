package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"audioguide/internal/domain"
	"audioguide/pkg/database"
	"github.com/jackc/pgx/v5"
)

type staffUserRepository struct {
	db *database.PostgresDB
}

// NewStaffUserRepository creates a repository over the staff_users table
func NewStaffUserRepository(db *database.PostgresDB) StaffUserRepository {
	return &staffUserRepository{db: db}
}

// GetByEmail returns the user and its bcrypt hash. Emails compare case-insensitively.
func (r *staffUserRepository) GetByEmail(ctx context.Context, email string) (*domain.StaffUser, string, error) {
	query := `
		SELECT id::text, email, password_hash, created_at
		FROM staff_users
		WHERE email = $1
	`

	user := &domain.StaffUser{}
	var hash string
	err := r.db.Pool.QueryRow(ctx, query, strings.ToLower(email)).Scan(&user.ID, &user.Email, &hash, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get staff user: %w", err)
	}

	return user, hash, nil
}

// GetByID retrieves a staff user by ID
func (r *staffUserRepository) GetByID(ctx context.Context, id string) (*domain.StaffUser, error) {
	query := `SELECT id::text, email, created_at FROM staff_users WHERE id = $1`

	user := &domain.StaffUser{}
	err := r.db.GetReadPool().QueryRow(ctx, query, id).Scan(&user.ID, &user.Email, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get staff user by id: %w", err)
	}

	return user, nil
}

// Create inserts a staff user
func (r *staffUserRepository) Create(ctx context.Context, email, passwordHash string) (*domain.StaffUser, error) {
	query := `
		INSERT INTO staff_users (email, password_hash)
		VALUES ($1, $2)
		RETURNING id::text, email, created_at
	`

	user := &domain.StaffUser{}
	err := r.db.Pool.QueryRow(ctx, query, strings.ToLower(email), passwordHash).Scan(&user.ID, &user.Email, &user.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("staff user %s: %w", email, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create staff user: %w", err)
	}

	return user, nil
}

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

const visitorColumns = `id::text, full_name, phone_number, status, activated_at, expires_at, created_at`

// visitorRepository handles visitor records with PostgreSQL
type visitorRepository struct {
	db *database.PostgresDB
}

// NewVisitorRepository creates a new visitor repository
func NewVisitorRepository(db *database.PostgresDB) VisitorRepository {
	return &visitorRepository{
		db: db,
	}
}

func scanVisitor(row pgx.Row) (*domain.Visitor, error) {
	v := &domain.Visitor{}
	err := row.Scan(
		&v.ID,
		&v.FullName,
		&v.PhoneNumber,
		&v.Status,
		&v.ActivatedAt,
		&v.ExpiresAt,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// GetByID retrieves a visitor by ID
func (r *visitorRepository) GetByID(ctx context.Context, id string) (*domain.Visitor, error) {
	query := `SELECT ` + visitorColumns + ` FROM visitors WHERE id = $1`

	v, err := scanVisitor(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get visitor: %w", err)
	}
	return v, nil
}

// GetByPhone retrieves a visitor by exact phone number. Reads go to the
// primary so a registration never misses a row the replica has not seen yet.
func (r *visitorRepository) GetByPhone(ctx context.Context, phone string) (*domain.Visitor, error) {
	query := `SELECT ` + visitorColumns + ` FROM visitors WHERE phone_number = $1`

	v, err := scanVisitor(r.db.Pool.QueryRow(ctx, query, phone))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get visitor by phone: %w", err)
	}
	return v, nil
}

// CreateIfAbsent inserts the visitor unless the phone number is already registered
func (r *visitorRepository) CreateIfAbsent(ctx context.Context, visitor *domain.Visitor) (bool, error) {
	query := `
		INSERT INTO visitors (full_name, phone_number, status, activated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (phone_number) DO NOTHING
		RETURNING id::text, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		visitor.FullName,
		visitor.PhoneNumber,
		visitor.Status,
		visitor.ActivatedAt,
		visitor.ExpiresAt,
	).Scan(&visitor.ID, &visitor.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create visitor: %w", err)
	}

	return true, nil
}

// UpdateGrant overwrites the grant fields. A nil ActivatedAt keeps the stored
// value. Last write wins.
func (r *visitorRepository) UpdateGrant(ctx context.Context, visitor *domain.Visitor) (bool, error) {
	query := `
		UPDATE visitors
		SET status = $2, activated_at = COALESCE($3, activated_at), expires_at = $4
		WHERE id = $1
		RETURNING ` + visitorColumns

	updated, err := scanVisitor(r.db.Pool.QueryRow(ctx, query,
		visitor.ID,
		visitor.Status,
		visitor.ActivatedAt,
		visitor.ExpiresAt,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to update visitor grant: %w", err)
	}

	*visitor = *updated
	return true, nil
}

// List returns visitors newest first, optionally filtered by name or phone
func (r *visitorRepository) List(ctx context.Context, filter domain.VisitorFilter) ([]*domain.Visitor, error) {
	query := `SELECT ` + visitorColumns + ` FROM visitors`
	args := []interface{}{}

	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+escapeLike(strings.ToLower(q))+"%")
		query += ` WHERE LOWER(full_name) LIKE $1 OR LOWER(phone_number) LIKE $1`
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.GetReadPool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query visitors: %w", err)
	}
	defer rows.Close()

	visitors := make([]*domain.Visitor, 0)
	for rows.Next() {
		v, err := scanVisitor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visitor row: %w", err)
		}
		visitors = append(visitors, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading visitor rows: %w", err)
	}

	return visitors, nil
}

// escapeLike escapes LIKE wildcards so the query is matched literally
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

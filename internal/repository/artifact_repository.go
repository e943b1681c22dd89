package repository

import (
	"context"
	"errors"
	"fmt"

	"audioguide/internal/domain"
	"audioguide/pkg/database"
	"github.com/jackc/pgx/v5"
)

const artifactColumns = `id::text, artifact_code, COALESCE(image_url, ''), title, description, audio_urls,
	COALESCE(listen_counts, '{}'::jsonb), created_at, updated_at`

// artifactRepository stores audio guide records. The localized fields and
// listen counts are jsonb columns.
type artifactRepository struct {
	db *database.PostgresDB
}

// NewArtifactRepository creates a new artifact repository
func NewArtifactRepository(db *database.PostgresDB) ArtifactRepository {
	return &artifactRepository{db: db}
}

func scanArtifact(row pgx.Row) (*domain.Artifact, error) {
	a := &domain.Artifact{}
	err := row.Scan(
		&a.ID,
		&a.ArtifactCode,
		&a.ImageURL,
		&a.Title,
		&a.Description,
		&a.AudioURLs,
		&a.ListenCounts,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if a.Title == nil {
		a.Title = domain.Localized{}
	}
	if a.Description == nil {
		a.Description = domain.Localized{}
	}
	if a.AudioURLs == nil {
		a.AudioURLs = domain.Localized{}
	}
	if a.ListenCounts == nil {
		a.ListenCounts = map[string]int64{}
	}
	return a, nil
}

// Create inserts an artifact with listen_counts initialized to {}
func (r *artifactRepository) Create(ctx context.Context, input *domain.ArtifactInput) (*domain.Artifact, error) {
	query := `
		INSERT INTO audio_guides (artifact_code, image_url, title, description, audio_urls, listen_counts)
		VALUES ($1, $2, $3, $4, $5, '{}'::jsonb)
		RETURNING ` + artifactColumns

	a, err := scanArtifact(r.db.Pool.QueryRow(ctx, query,
		input.ArtifactCode,
		input.ImageURL,
		input.Title,
		input.Description,
		input.AudioURLs,
	))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("artifact code %s: %w", input.ArtifactCode, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create artifact: %w", err)
	}

	return a, nil
}

// Update rewrites the editable fields
func (r *artifactRepository) Update(ctx context.Context, id string, input *domain.ArtifactInput) (*domain.Artifact, error) {
	query := `
		UPDATE audio_guides
		SET image_url = $2, title = $3, description = $4, audio_urls = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + artifactColumns

	a, err := scanArtifact(r.db.Pool.QueryRow(ctx, query,
		id,
		input.ImageURL,
		input.Title,
		input.Description,
		input.AudioURLs,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update artifact: %w", err)
	}

	return a, nil
}

// Delete removes an artifact
func (r *artifactRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM audio_guides WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete artifact: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// GetByID retrieves an artifact by ID
func (r *artifactRepository) GetByID(ctx context.Context, id string) (*domain.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM audio_guides WHERE id = $1`

	a, err := scanArtifact(r.db.GetReadPool().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	return a, nil
}

// GetByCode retrieves an artifact by code. The caller normalizes the code.
func (r *artifactRepository) GetByCode(ctx context.Context, code string) (*domain.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM audio_guides WHERE artifact_code = $1`

	a, err := scanArtifact(r.db.GetReadPool().QueryRow(ctx, query, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact by code: %w", err)
	}
	return a, nil
}

// List returns all artifacts newest first
func (r *artifactRepository) List(ctx context.Context) ([]*domain.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM audio_guides ORDER BY created_at DESC`

	rows, err := r.db.GetReadPool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	artifacts := make([]*domain.Artifact, 0)
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifact row: %w", err)
		}
		artifacts = append(artifacts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading artifact rows: %w", err)
	}

	return artifacts, nil
}

// IncrementListenCount bumps one language counter. The read and write happen
// in one UPDATE under the row lock, so concurrent listeners never lose counts.
func (r *artifactRepository) IncrementListenCount(ctx context.Context, id, lang string) (int64, bool, error) {
	query := `
		UPDATE audio_guides
		SET listen_counts = jsonb_set(
				COALESCE(listen_counts, '{}'::jsonb),
				ARRAY[$2::text],
				to_jsonb(COALESCE((listen_counts->>$2::text)::bigint, 0) + 1),
				true
			),
			updated_at = NOW()
		WHERE id = $1
		RETURNING (listen_counts->>$2::text)::bigint
	`

	var count int64
	err := r.db.Pool.QueryRow(ctx, query, id, lang).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to increment listen count: %w", err)
	}

	return count, true, nil
}

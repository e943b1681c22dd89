package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

const usage = "Usage: go run ./cmd/migrate [drop|up|seed|staff <email> <password>]"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Get database URL
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	// Get command
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	// Connect to database
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	switch command {
	case "drop":
		if err := dropTables(ctx, conn); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		fmt.Println("✅ All tables dropped successfully")

	case "up":
		if err := createTables(ctx, conn); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		fmt.Println("✅ All tables created successfully")

	case "seed":
		if err := seedData(ctx, conn); err != nil {
			log.Fatalf("Failed to seed data: %v", err)
		}
		fmt.Println("✅ Data seeded successfully")

	case "staff":
		if len(os.Args) < 4 {
			fmt.Println(usage)
			os.Exit(1)
		}
		if err := createStaff(ctx, conn, os.Args[2], os.Args[3]); err != nil {
			log.Fatalf("Failed to create staff user: %v", err)
		}
		fmt.Println("✅ Staff user created successfully")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println(usage)
		os.Exit(1)
	}
}

func dropTables(ctx context.Context, conn *pgx.Conn) error {
	queries := []string{
		`DROP TABLE IF EXISTS traffic_snapshots CASCADE`,
		`DROP TABLE IF EXISTS staff_users CASCADE`,
		`DROP TABLE IF EXISTS audio_guides CASCADE`,
		`DROP TABLE IF EXISTS visitors CASCADE`,
	}

	for _, query := range queries {
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
		fmt.Printf("  Dropped: %s\n", query)
	}

	return nil
}

// schema is applied in order by "up". Every statement is idempotent.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,

	// phone_number is the natural key; the unique constraint is what makes
	// concurrent first registrations produce a single row
	`CREATE TABLE IF NOT EXISTS visitors (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		full_name TEXT NOT NULL,
		phone_number TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive')),
		activated_at TIMESTAMPTZ,
		expires_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS audio_guides (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		artifact_code TEXT NOT NULL UNIQUE CHECK (artifact_code = UPPER(artifact_code)),
		image_url TEXT,
		title JSONB NOT NULL DEFAULT '{}'::jsonb,
		description JSONB NOT NULL DEFAULT '{}'::jsonb,
		audio_urls JSONB NOT NULL DEFAULT '{}'::jsonb,
		listen_counts JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS staff_users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS traffic_snapshots (
		id BIGSERIAL PRIMARY KEY,
		total_visits BIGINT NOT NULL DEFAULT 0,
		daily_visits BIGINT NOT NULL DEFAULT 0,
		unique_visits BIGINT NOT NULL DEFAULT 0,
		active_sessions BIGINT NOT NULL DEFAULT 0,
		snapshot_date DATE NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	// Create indexes
	`CREATE INDEX IF NOT EXISTS idx_visitors_created_at ON visitors(created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_audio_guides_created_at ON audio_guides(created_at DESC)`,
}

func createTables(ctx context.Context, conn *pgx.Conn) error {
	for _, query := range schema {
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w\nQuery: %s", err, query)
		}
		fmt.Printf("  Created: %s\n", getTableName(query))
	}

	return nil
}

func seedData(ctx context.Context, conn *pgx.Conn) error {
	query := `
		INSERT INTO audio_guides (artifact_code, image_url, title, description, audio_urls) VALUES
		('A001', '', '{"en": "Dong Son Bronze Drum", "vi": "Trống đồng Đông Sơn"}',
			'{"en": "A ceremonial drum cast around 500 BC.", "vi": "Trống nghi lễ đúc khoảng năm 500 TCN."}',
			'{"en": "", "vi": ""}'),
		('A002', '', '{"en": "Celadon Vase", "vi": "Bình gốm men ngọc"}',
			'{"en": "Ly dynasty glazed stoneware.", "vi": "Gốm men thời Lý."}',
			'{"en": "", "vi": ""}')
		ON CONFLICT (artifact_code) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			updated_at = NOW()
	`

	if _, err := conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to seed audio guides: %w", err)
	}

	fmt.Println("  Seeded 2 artifacts")

	return nil
}

func createStaff(ctx context.Context, conn *pgx.Conn, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	_, err = conn.Exec(ctx,
		`INSERT INTO staff_users (email, password_hash) VALUES ($1, $2)
		 ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash`,
		strings.ToLower(strings.TrimSpace(email)), string(hash))
	if err != nil {
		return fmt.Errorf("failed to insert staff user: %w", err)
	}

	return nil
}

func getTableName(query string) string {
	query = strings.Join(strings.Fields(query), " ")
	if len(query) > 50 {
		return query[:50] + "..."
	}
	return query
}

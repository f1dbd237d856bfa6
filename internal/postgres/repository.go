package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campus-forum/internal/config"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks that the database is reachable
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Constraint names the repository maps onto domain errors
const (
	profilesPrimaryKey       = "profiles_pkey"
	profilesUsernameIndex    = "profiles_username_lower_key"
	commentsPostForeignKey   = "forum_comments_post_id_fkey"
	commentsParentForeignKey = "forum_comments_parent_id_fkey"
	membershipsPrimaryKey    = "community_memberships_pkey"
)

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id UUID CONSTRAINT profiles_pkey PRIMARY KEY,
			username VARCHAR(20) NOT NULL,
			first_name VARCHAR(100) NOT NULL DEFAULT '',
			bio TEXT,
			username_changed_at TIMESTAMPTZ,
			username_change_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		// Usernames are unique regardless of case
		`ALTER TABLE profiles DROP CONSTRAINT IF EXISTS profiles_username_key`,
		`CREATE UNIQUE INDEX IF NOT EXISTS profiles_username_lower_key ON profiles (lower(username))`,
		`CREATE TABLE IF NOT EXISTS forum_posts (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			category VARCHAR(64) NOT NULL,
			title VARCHAR(300) NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			preview VARCHAR(200),
			post_type VARCHAR(10) NOT NULL DEFAULT 'text',
			image_url TEXT,
			link_url TEXT,
			flair_text VARCHAR(64),
			flair_color VARCHAR(16),
			upvotes BIGINT NOT NULL DEFAULT 0,
			downvotes BIGINT NOT NULL DEFAULT 0,
			score BIGINT NOT NULL DEFAULT 0,
			comment_count BIGINT NOT NULL DEFAULT 0 CHECK (comment_count >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS forum_votes (
			id BIGSERIAL PRIMARY KEY,
			post_id UUID NOT NULL REFERENCES forum_posts(id) ON DELETE CASCADE,
			user_id UUID NOT NULL,
			vote_type VARCHAR(4) NOT NULL CHECK (vote_type IN ('up', 'down')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(post_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS forum_comments (
			id UUID PRIMARY KEY,
			post_id UUID NOT NULL
				CONSTRAINT forum_comments_post_id_fkey REFERENCES forum_posts(id) ON DELETE CASCADE,
			user_id UUID NOT NULL,
			parent_id UUID
				CONSTRAINT forum_comments_parent_id_fkey REFERENCES forum_comments(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			upvotes BIGINT NOT NULL DEFAULT 0,
			downvotes BIGINT NOT NULL DEFAULT 0,
			score BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS community_memberships (
			user_id UUID NOT NULL,
			category VARCHAR(64) NOT NULL,
			joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT community_memberships_pkey PRIMARY KEY (user_id, category)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_forum_posts_category_created ON forum_posts(category, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_forum_posts_created ON forum_posts(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_forum_posts_score ON forum_posts(category, score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_forum_comments_post ON forum_comments(post_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_community_memberships_category ON community_memberships(category)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// PostgreSQL error codes
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// violatedConstraint returns the constraint named by err when err is a
// PostgreSQL error with the given code
func violatedConstraint(err error, code string) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == code {
		return pgErr.ConstraintName, true
	}
	return "", false
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/campus-forum/internal/domain"
)

const profileColumns = `id::text, username, first_name, COALESCE(bio, ''),
	username_changed_at, username_change_count, created_at, updated_at`

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(
		&p.ID,
		&p.Username,
		&p.FirstName,
		&p.Bio,
		&p.UsernameChange.LastChangedAt,
		&p.UsernameChange.ChangeCountToday,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("scanning profile: %w", err)
	}
	return &p, nil
}

// CreateProfile inserts a new profile
func (r *Repository) CreateProfile(ctx context.Context, profile domain.Profile) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO profiles (id, username, first_name, bio, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $5)`,
		profile.ID,
		profile.Username,
		profile.FirstName,
		profile.Bio,
		profile.CreatedAt,
	)
	if err != nil {
		return profileWriteError("creating profile", err)
	}
	return nil
}

// profileWriteError tells a second profile for the same user apart from a
// username collision
func profileWriteError(op string, err error) error {
	if constraint, ok := violatedConstraint(err, codeUniqueViolation); ok {
		switch constraint {
		case profilesPrimaryKey:
			return domain.ErrProfileExists
		case profilesUsernameIndex:
			return domain.ErrUsernameTaken
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// GetProfile retrieves a profile by ID
func (r *Repository) GetProfile(ctx context.Context, profileID string) (*domain.Profile, error) {
	return scanProfile(r.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`,
		profileID,
	))
}

// UsernameTaken reports whether another profile already uses username
func (r *Repository) UsernameTaken(ctx context.Context, username, exceptProfileID string) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM profiles WHERE lower(username) = lower($1) AND id::text <> $2)`,
		username, exceptProfileID,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("checking username: %w", err)
	}
	return taken, nil
}

// UpdateUsername locks the profile row, hands the current profile to
// mutate and persists the username and change record it returns. The row
// lock serializes concurrent change attempts for the same profile.
func (r *Repository) UpdateUsername(
	ctx context.Context,
	profileID string,
	mutate func(current domain.Profile) (domain.Profile, error),
) (*domain.Profile, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning username transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := scanProfile(tx.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1 FOR UPDATE`,
		profileID,
	))
	if err != nil {
		return nil, err
	}

	next, err := mutate(*current)
	if err != nil {
		return nil, err
	}

	updated, err := scanProfile(tx.QueryRow(ctx, `
		UPDATE profiles
		SET username = $2, username_changed_at = $3, username_change_count = $4, updated_at = $5
		WHERE id = $1
		RETURNING `+profileColumns,
		profileID,
		next.Username,
		next.UsernameChange.LastChangedAt,
		next.UsernameChange.ChangeCountToday,
		next.UpdatedAt,
	))
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return nil, err
		}
		return nil, profileWriteError("updating username", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing username change: %w", err)
	}
	return updated, nil
}

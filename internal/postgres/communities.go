package postgres

import (
	"context"
	"fmt"

	"github.com/campus-forum/internal/domain"
)

// JoinCommunity records a membership
func (r *Repository) JoinCommunity(ctx context.Context, m domain.Membership) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO community_memberships (user_id, category, joined_at) VALUES ($1, $2, $3)`,
		m.UserID, m.Category, m.JoinedAt,
	)
	if err != nil {
		if constraint, ok := violatedConstraint(err, codeUniqueViolation); ok && constraint == membershipsPrimaryKey {
			return domain.ErrAlreadyMember
		}
		return fmt.Errorf("joining community: %w", err)
	}
	return nil
}

// LeaveCommunity removes a membership
func (r *Repository) LeaveCommunity(ctx context.Context, userID, category string) error {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM community_memberships WHERE user_id = $1 AND category = $2`,
		userID, category,
	)
	if err != nil {
		return fmt.Errorf("leaving community: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotMember
	}
	return nil
}

// CommunityStatus counts a community's members and reports whether userID
// is one of them. An empty userID is never a member.
func (r *Repository) CommunityStatus(ctx context.Context, userID, category string) (*domain.CommunityStatus, error) {
	status := domain.CommunityStatus{Category: category}
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(BOOL_OR(user_id::text = $2), false)
		FROM community_memberships
		WHERE category = $1`,
		category, userID,
	).Scan(&status.MemberCount, &status.Member)
	if err != nil {
		return nil, fmt.Errorf("getting community status: %w", err)
	}
	return &status, nil
}

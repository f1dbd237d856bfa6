package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/campus-forum/internal/domain"
)

// MembershipStore persists community memberships
type MembershipStore interface {
	JoinCommunity(ctx context.Context, m domain.Membership) error
	LeaveCommunity(ctx context.Context, userID, category string) error
	CommunityStatus(ctx context.Context, userID, category string) (*domain.CommunityStatus, error)
}

// CommunityService lets users join and leave the community of a category
type CommunityService struct {
	memberships MembershipStore
	logger      *slog.Logger
	now         func() time.Time
}

// NewCommunityService creates a new community service
func NewCommunityService(memberships MembershipStore, logger *slog.Logger) *CommunityService {
	return &CommunityService{
		memberships: memberships,
		logger:      logger,
		now:         time.Now,
	}
}

// Join adds userID to a community
func (s *CommunityService) Join(ctx context.Context, userID, category string) (*domain.CommunityStatus, error) {
	category, err := domain.NormalizeCommunity(category)
	if err != nil {
		return nil, err
	}
	userID, err = normalizeID(userID)
	if err != nil {
		return nil, err
	}

	if err := s.memberships.JoinCommunity(ctx, domain.Membership{
		UserID:   userID,
		Category: category,
		JoinedAt: s.now(),
	}); err != nil {
		return nil, err
	}

	s.logger.Info("joined community", "user_id", userID, "category", category)
	return s.memberships.CommunityStatus(ctx, userID, category)
}

// Leave removes userID from a community
func (s *CommunityService) Leave(ctx context.Context, userID, category string) (*domain.CommunityStatus, error) {
	category, err := domain.NormalizeCommunity(category)
	if err != nil {
		return nil, err
	}
	userID, err = normalizeID(userID)
	if err != nil {
		return nil, err
	}

	if err := s.memberships.LeaveCommunity(ctx, userID, category); err != nil {
		return nil, err
	}

	s.logger.Info("left community", "user_id", userID, "category", category)
	return s.memberships.CommunityStatus(ctx, userID, category)
}

// Status reports a community's size and whether userID belongs to it.
// An empty userID asks anonymously.
func (s *CommunityService) Status(ctx context.Context, userID, category string) (*domain.CommunityStatus, error) {
	category, err := domain.NormalizeCommunity(category)
	if err != nil {
		return nil, err
	}
	if userID != "" {
		if userID, err = normalizeID(userID); err != nil {
			return nil, err
		}
	}
	return s.memberships.CommunityStatus(ctx, userID, category)
}

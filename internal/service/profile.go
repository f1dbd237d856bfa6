package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/campus-forum/internal/cooldown"
	"github.com/campus-forum/internal/domain"
)

// ProfileStore is the persistence the profile service needs
type ProfileStore interface {
	CreateProfile(ctx context.Context, profile domain.Profile) error
	GetProfile(ctx context.Context, profileID string) (*domain.Profile, error)
	UsernameTaken(ctx context.Context, username, exceptProfileID string) (bool, error)
	UpdateUsername(ctx context.Context, profileID string, mutate func(current domain.Profile) (domain.Profile, error)) (*domain.Profile, error)
}

// errCooldownDenied aborts the username transaction when the policy says no
var errCooldownDenied = errors.New("username change denied by cooldown")

// ProfileService manages profiles and username changes
type ProfileService struct {
	profiles ProfileStore
	policy   cooldown.Policy
	logger   *slog.Logger
	now      func() time.Time
}

// NewProfileService creates a new profile service
func NewProfileService(profiles ProfileStore, policy cooldown.Policy, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the reference time source
func (s *ProfileService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateProfile sets up the profile for userID
func (s *ProfileService) CreateProfile(ctx context.Context, userID string, req domain.CreateProfileRequest) (*domain.Profile, error) {
	if err := validateID(userID); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(req.Username)
	if err := domain.ValidateUsername(username); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.FirstName) == "" {
		return nil, fmt.Errorf("%w: first name is required", domain.ErrInvalidRequest)
	}

	taken, err := s.profiles.UsernameTaken(ctx, username, userID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.ErrUsernameTaken
	}

	now := s.now()
	profile := domain.Profile{
		ID:        userID,
		Username:  username,
		FirstName: strings.TrimSpace(req.FirstName),
		Bio:       strings.TrimSpace(req.Bio),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.profiles.CreateProfile(ctx, profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetProfile returns a profile by ID
func (s *ProfileService) GetProfile(ctx context.Context, profileID string) (*domain.Profile, error) {
	profileID, err := normalizeID(profileID)
	if err != nil {
		return nil, err
	}
	return s.profiles.GetProfile(ctx, profileID)
}

// UsernameChangeStatus reports whether the profile may rename itself now
func (s *ProfileService) UsernameChangeStatus(ctx context.Context, profileID string) (*domain.CooldownStatus, error) {
	profile, err := s.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	status := s.policy.Status(profile.UsernameChange, s.now())
	return &status, nil
}

// ChangeUsername renames a profile when the cooldown allows it. A denied
// change returns a nil profile, the decision and a nil error.
func (s *ProfileService) ChangeUsername(ctx context.Context, profileID, callerID, username string) (*domain.Profile, cooldown.Decision, error) {
	profileID, err := normalizeID(profileID)
	if err != nil {
		return nil, cooldown.Decision{}, err
	}
	if caller, err := normalizeID(callerID); err != nil || caller != profileID {
		return nil, cooldown.Decision{}, domain.ErrNotProfileOwner
	}
	username = strings.TrimSpace(username)
	if err := domain.ValidateUsername(username); err != nil {
		return nil, cooldown.Decision{}, err
	}

	taken, err := s.profiles.UsernameTaken(ctx, username, profileID)
	if err != nil {
		return nil, cooldown.Decision{}, err
	}
	if taken {
		return nil, cooldown.Decision{}, domain.ErrUsernameTaken
	}

	var decision cooldown.Decision
	updated, err := s.profiles.UpdateUsername(ctx, profileID, func(current domain.Profile) (domain.Profile, error) {
		now := s.now()
		decision = cooldown.Allowed
		if current.Username == username {
			return current, nil
		}
		if strings.EqualFold(current.Username, username) {
			// Recasing keeps the same name and does not count as a change
			next := current
			next.Username = username
			next.UpdatedAt = now
			return next, nil
		}

		decision = s.policy.Check(current.UsernameChange, now)
		if !decision.Allowed {
			return current, errCooldownDenied
		}

		next := current
		next.Username = username
		next.UsernameChange = s.policy.Apply(current.UsernameChange, now)
		next.UpdatedAt = now
		return next, nil
	})
	if errors.Is(err, errCooldownDenied) {
		s.logger.Info("username change denied",
			"profile_id", profileID,
			"reason", decision.Reason,
			"retry_after_hours", decision.RetryAfterHours,
		)
		return nil, decision, nil
	}
	if err != nil {
		return nil, cooldown.Decision{}, err
	}

	s.logger.Info("username changed",
		"profile_id", profileID,
		"change_count_today", updated.UsernameChange.ChangeCountToday,
	)
	return updated, decision, nil
}

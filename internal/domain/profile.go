package domain

import (
	"regexp"
	"time"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)

// ValidateUsername checks a username against the profile naming rules
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

// Profile represents a community member's public profile
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	Bio       string    `json:"bio,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UsernameChange UsernameChangeRecord `json:"username_change"`
}

// UsernameChangeRecord tracks when a profile last renamed itself.
// LastChangedAt is nil when the username was never changed.
type UsernameChangeRecord struct {
	LastChangedAt    *time.Time `json:"last_changed_at,omitempty"`
	ChangeCountToday int        `json:"change_count_today"`
}

// CreateProfileRequest represents a request to set up a profile
type CreateProfileRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	Bio       string `json:"bio,omitempty"`
}

// ChangeUsernameRequest represents a request to rename a profile
type ChangeUsernameRequest struct {
	Username string `json:"username"`
}

// CooldownStatus is the API view of a cooldown decision
type CooldownStatus struct {
	Allowed         bool       `json:"allowed"`
	Reason          string     `json:"reason,omitempty"`
	RetryAfterHours int        `json:"retry_after_hours,omitempty"`
	NextChangeAt    *time.Time `json:"next_change_at,omitempty"`
}

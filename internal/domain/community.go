package domain

import "time"

// Membership records a user joining the community around a category
type Membership struct {
	UserID   string    `json:"user_id"`
	Category string    `json:"category"`
	JoinedAt time.Time `json:"joined_at"`
}

// CommunityStatus describes a community and the caller's place in it
type CommunityStatus struct {
	Category    string `json:"category"`
	Member      bool   `json:"member"`
	MemberCount int64  `json:"member_count"`
}

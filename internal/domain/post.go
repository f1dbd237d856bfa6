package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// SortStrategy names an ordering for forum feeds
type SortStrategy string

const (
	SortHot    SortStrategy = "hot"
	SortNew    SortStrategy = "new"
	SortTop    SortStrategy = "top"
	SortRising SortStrategy = "rising"
)

// SortStrategies lists every strategy in display order
var SortStrategies = []SortStrategy{SortHot, SortNew, SortTop, SortRising}

// Valid reports whether s is one of the known strategies
func (s SortStrategy) Valid() bool {
	switch s {
	case SortHot, SortNew, SortTop, SortRising:
		return true
	}
	return false
}

// ParseSortStrategy converts user input into a SortStrategy.
// An empty string selects hot, matching the default feed tab.
func ParseSortStrategy(raw string) (SortStrategy, error) {
	if raw == "" {
		return SortHot, nil
	}
	s := SortStrategy(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSortStrategy, raw)
	}
	return s, nil
}

// PostType represents the kind of content a post carries
type PostType string

const (
	PostTypeText  PostType = "text"
	PostTypeImage PostType = "image"
	PostTypeLink  PostType = "link"
)

// CategoryAll selects every category in feed queries
const CategoryAll = "all"

// PreviewLength is the number of content characters kept in Post.Preview
const PreviewLength = 200

// Column limits for post fields, in characters
const (
	MaxCategoryLength   = 64
	MaxTitleLength      = 300
	MaxFlairTextLength  = 64
	MaxFlairColorLength = 16
)

// Post represents a forum post
type Post struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Category     string    `json:"category"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Preview      string    `json:"preview,omitempty"`
	PostType     PostType  `json:"post_type"`
	ImageURL     string    `json:"image_url,omitempty"`
	LinkURL      string    `json:"link_url,omitempty"`
	FlairText    string    `json:"flair_text,omitempty"`
	FlairColor   string    `json:"flair_color,omitempty"`
	Upvotes      int64     `json:"upvotes"`
	Downvotes    int64     `json:"downvotes"`
	Score        int64     `json:"score"`
	CommentCount int64     `json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreatePostRequest represents a request to publish a post
type CreatePostRequest struct {
	Category   string   `json:"category"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	PostType   PostType `json:"post_type,omitempty"`
	ImageURL   string   `json:"image_url,omitempty"`
	LinkURL    string   `json:"link_url,omitempty"`
	FlairText  string   `json:"flair_text,omitempty"`
	FlairColor string   `json:"flair_color,omitempty"`
}

// ToPost converts a CreatePostRequest to a Post with defaults applied
func (r *CreatePostRequest) ToPost(id, userID string, now time.Time) (Post, error) {
	if strings.TrimSpace(r.Category) == "" || strings.TrimSpace(r.Title) == "" {
		return Post{}, ErrInvalidRequest
	}

	postType := r.PostType
	if postType == "" {
		postType = PostTypeText
	}
	switch postType {
	case PostTypeText, PostTypeImage, PostTypeLink:
	default:
		return Post{}, fmt.Errorf("%w: post_type %q", ErrInvalidRequest, postType)
	}

	post := Post{
		ID:         id,
		UserID:     userID,
		Category:   strings.ToLower(strings.TrimSpace(r.Category)),
		Title:      strings.TrimSpace(r.Title),
		Content:    r.Content,
		Preview:    preview(r.Content),
		PostType:   postType,
		ImageURL:   r.ImageURL,
		LinkURL:    r.LinkURL,
		FlairText:  r.FlairText,
		FlairColor: r.FlairColor,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := post.checkLengths(); err != nil {
		return Post{}, err
	}
	return post, nil
}

// UpdatePostRequest carries the fields an author may edit. Nil fields are
// left as they are; category and post type are fixed at creation.
type UpdatePostRequest struct {
	Title      *string `json:"title,omitempty"`
	Content    *string `json:"content,omitempty"`
	ImageURL   *string `json:"image_url,omitempty"`
	LinkURL    *string `json:"link_url,omitempty"`
	FlairText  *string `json:"flair_text,omitempty"`
	FlairColor *string `json:"flair_color,omitempty"`
}

// Apply returns post with the requested edits, its preview recomputed
func (r *UpdatePostRequest) Apply(post Post, now time.Time) (Post, error) {
	if r.Title == nil && r.Content == nil && r.ImageURL == nil &&
		r.LinkURL == nil && r.FlairText == nil && r.FlairColor == nil {
		return Post{}, ErrEmptyUpdate
	}

	if r.Title != nil {
		title := strings.TrimSpace(*r.Title)
		if title == "" {
			return Post{}, fmt.Errorf("%w: title is required", ErrInvalidRequest)
		}
		post.Title = title
	}
	if r.Content != nil {
		post.Content = *r.Content
		post.Preview = preview(post.Content)
	}
	if r.ImageURL != nil {
		post.ImageURL = *r.ImageURL
	}
	if r.LinkURL != nil {
		post.LinkURL = *r.LinkURL
	}
	if r.FlairText != nil {
		post.FlairText = *r.FlairText
	}
	if r.FlairColor != nil {
		post.FlairColor = *r.FlairColor
	}

	if err := post.checkLengths(); err != nil {
		return Post{}, err
	}
	post.UpdatedAt = now
	return post, nil
}

func (p Post) checkLengths() error {
	fields := []struct {
		name  string
		value string
		max   int
	}{
		{"category", p.Category, MaxCategoryLength},
		{"title", p.Title, MaxTitleLength},
		{"flair_text", p.FlairText, MaxFlairTextLength},
		{"flair_color", p.FlairColor, MaxFlairColorLength},
	}
	for _, f := range fields {
		if utf8.RuneCountInString(f.value) > f.max {
			return fmt.Errorf("%w: %s exceeds %d characters", ErrFieldTooLong, f.name, f.max)
		}
	}
	return nil
}

// NormalizeCommunity lowercases a community category and rejects names
// that cannot identify a single community
func NormalizeCommunity(category string) (string, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	switch {
	case category == "", category == CategoryAll:
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	case utf8.RuneCountInString(category) > MaxCategoryLength:
		return "", fmt.Errorf("%w: category exceeds %d characters", ErrFieldTooLong, MaxCategoryLength)
	}
	return category, nil
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= PreviewLength {
		return content
	}
	return string(runes[:PreviewLength])
}

// VoteType is the direction of a vote
type VoteType string

const (
	VoteUp   VoteType = "up"
	VoteDown VoteType = "down"
)

// ParseVoteType validates a vote direction
func ParseVoteType(raw string) (VoteType, error) {
	switch v := VoteType(strings.ToLower(raw)); v {
	case VoteUp, VoteDown:
		return v, nil
	}
	return "", ErrInvalidVoteType
}

// VoteRequest represents a vote submission
type VoteRequest struct {
	VoteType VoteType `json:"vote_type"`
}

// VoteResult describes the outcome of a vote toggle
type VoteResult struct {
	Post *Post    `json:"post"`
	Vote VoteType `json:"vote,omitempty"` // empty when the vote was removed
}

// Comment represents a comment on a post
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Content   string    `json:"content"`
	Upvotes   int64     `json:"upvotes"`
	Downvotes int64     `json:"downvotes"`
	Score     int64     `json:"score"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateCommentRequest represents a request to comment on a post
type CreateCommentRequest struct {
	Content  string `json:"content"`
	ParentID string `json:"parent_id,omitempty"`
}

// FeedQuery selects a page of a ranked feed
type FeedQuery struct {
	Category string
	Strategy SortStrategy
	Limit    int
	Offset   int
}

// Page is a slice of a ranked feed
type Page struct {
	Category string       `json:"category"`
	Strategy SortStrategy `json:"sort"`
	Posts    []Post       `json:"posts"`
	Total    int          `json:"total"`
	Cached   bool         `json:"cached"`
}

// PostOrder is the database ordering used when loading candidates
type PostOrder string

const (
	OrderNewest PostOrder = "created_at_desc"
	OrderScore  PostOrder = "score_desc"
)

// PostFilter is the typed query for loading posts from storage
type PostFilter struct {
	Category     string    // empty or CategoryAll means every category
	CreatedAfter time.Time // zero means no lower bound
	Order        PostOrder
	Limit        int
	Offset       int
}

// EngagementType discriminates engagement events
type EngagementType string

const (
	EngagementVote    EngagementType = "vote"
	EngagementComment EngagementType = "comment"
)

// EngagementEvent is a vote or comment arriving from the event stream
type EngagementEvent struct {
	Type     EngagementType `json:"type"`
	PostID   string         `json:"post_id"`
	UserID   string         `json:"user_id"`
	VoteType VoteType       `json:"vote_type,omitempty"`
	Content  string         `json:"content,omitempty"`
	ParentID string         `json:"parent_id,omitempty"`
}

// Validate checks that the event has what its type needs
func (e EngagementEvent) Validate() error {
	if e.PostID == "" || e.UserID == "" {
		return ErrInvalidRequest
	}
	switch e.Type {
	case EngagementVote:
		if _, err := ParseVoteType(string(e.VoteType)); err != nil {
			return err
		}
	case EngagementComment:
		if strings.TrimSpace(e.Content) == "" {
			return ErrEmptyContent
		}
	default:
		return fmt.Errorf("%w: event type %q", ErrInvalidRequest, e.Type)
	}
	return nil
}

// EngagementBatch groups events for bulk processing
type EngagementBatch struct {
	Events []EngagementEvent `json:"events"`
}

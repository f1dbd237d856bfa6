package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campus-forum/internal/config"
	"github.com/campus-forum/internal/domain"
	"github.com/campus-forum/internal/ranking"
	"github.com/campus-forum/internal/redis"
)

// PostStore is the persistence the forum service needs
type PostStore interface {
	CreatePost(ctx context.Context, post domain.Post) error
	GetPost(ctx context.Context, postID string) (*domain.Post, error)
	GetPostsByIDs(ctx context.Context, ids []string) ([]domain.Post, error)
	ListPosts(ctx context.Context, filter domain.PostFilter) ([]domain.Post, error)
	ListCategories(ctx context.Context) ([]string, error)
	UpdatePost(ctx context.Context, post domain.Post) (*domain.Post, error)
	DeletePost(ctx context.Context, postID, userID string) error
	Vote(ctx context.Context, postID, userID string, voteType domain.VoteType) (*domain.VoteResult, error)
	GetUserVote(ctx context.Context, postID, userID string) (domain.VoteType, error)
	CreateComment(ctx context.Context, comment domain.Comment) (*domain.Post, error)
	ListComments(ctx context.Context, postID string) ([]domain.Comment, error)
}

// FeedCache holds precomputed rankings
type FeedCache interface {
	StoreFeed(ctx context.Context, category string, strategy domain.SortStrategy, ids []string, generatedAt time.Time, ttl time.Duration) error
	GetFeed(ctx context.Context, category string, strategy domain.SortStrategy, offset, limit int) (*redis.CachedFeed, error)
	InvalidateCategory(ctx context.Context, category string) error
}

// Broadcaster pushes live updates to subscribed clients
type Broadcaster interface {
	BroadcastPostUpdate(category string, post domain.Post)
	BroadcastFeedRefreshed(category string, strategy domain.SortStrategy, total int)
}

// ForumService provides business logic for forum feeds, votes and comments
type ForumService struct {
	posts  PostStore
	cache  FeedCache
	hub    Broadcaster
	config *config.FeedConfig
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewForumService creates a new forum service. cache may be nil, in which
// case every feed request ranks from storage.
func NewForumService(
	posts PostStore,
	cache FeedCache,
	cfg *config.FeedConfig,
	logger *slog.Logger,
) *ForumService {
	return &ForumService{
		posts:  posts,
		cache:  cache,
		config: cfg,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// SetHub sets the broadcaster used for live updates
func (s *ForumService) SetHub(hub Broadcaster) {
	s.hub = hub
}

// SetClock overrides the reference time source
func (s *ForumService) SetClock(now func() time.Time) {
	s.now = now
}

func validateID(id string) error {
	_, err := normalizeID(id)
	return err
}

// normalizeID parses id and returns its canonical lowercase form
func normalizeID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidID, id)
	}
	return parsed.String(), nil
}

func normalizeCategory(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return domain.CategoryAll
	}
	return category
}

// GetFeed returns a page of a ranked feed, served from cache when possible
func (s *ForumService) GetFeed(ctx context.Context, q domain.FeedQuery) (*domain.Page, error) {
	if !q.Strategy.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSortStrategy, q.Strategy)
	}
	category := normalizeCategory(q.Category)

	// Validate limit
	limit := q.Limit
	if limit <= 0 {
		limit = s.config.DefaultLimit
	}
	if limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	page := &domain.Page{Category: category, Strategy: q.Strategy}

	if s.cache != nil {
		cached, err := s.cache.GetFeed(ctx, category, q.Strategy, offset, limit)
		switch {
		case err == nil:
			posts, err := s.posts.GetPostsByIDs(ctx, cached.IDs)
			if err != nil {
				return nil, fmt.Errorf("loading cached feed posts: %w", err)
			}
			page.Posts = posts
			page.Total = cached.Total
			page.Cached = true
			return page, nil
		case errors.Is(err, domain.ErrFeedNotCached):
		default:
			s.logger.Warn("feed cache read failed, ranking from storage",
				"category", category,
				"sort", q.Strategy,
				"error", err,
			)
		}
	}

	ranked, err := s.buildFeed(ctx, category, q.Strategy)
	if err != nil {
		return nil, err
	}

	page.Total = len(ranked)
	page.Posts = window(ranked, offset, limit)
	return page, nil
}

func window(posts []domain.Post, offset, limit int) []domain.Post {
	if offset >= len(posts) {
		return []domain.Post{}
	}
	end := offset + limit
	if end > len(posts) {
		end = len(posts)
	}
	return posts[offset:end]
}

// RefreshFeed recomputes a feed and stores it in the cache, returning its size
func (s *ForumService) RefreshFeed(ctx context.Context, category string, strategy domain.SortStrategy) (int, error) {
	category = normalizeCategory(category)
	ranked, err := s.buildFeed(ctx, category, strategy)
	if err != nil {
		return 0, err
	}

	if s.hub != nil {
		s.hub.BroadcastFeedRefreshed(category, strategy, len(ranked))
	}
	return len(ranked), nil
}

// Categories returns the categories that have posts
func (s *ForumService) Categories(ctx context.Context) ([]string, error) {
	return s.posts.ListCategories(ctx)
}

// buildFeed loads candidates, ranks them at the current time and caches the order
func (s *ForumService) buildFeed(ctx context.Context, category string, strategy domain.SortStrategy) ([]domain.Post, error) {
	now := s.now()

	candidates, err := s.posts.ListPosts(ctx, candidateFilter(category, strategy, now, s.config))
	if err != nil {
		return nil, fmt.Errorf("loading feed candidates: %w", err)
	}

	ranked, err := ranking.Rank(candidates, strategy, now)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		ids := make([]string, len(ranked))
		for i, p := range ranked {
			ids[i] = p.ID
		}
		if err := s.cache.StoreFeed(ctx, category, strategy, ids, now, s.config.CacheTTL); err != nil {
			s.logger.Warn("failed to cache feed", "category", category, "sort", strategy, "error", err)
		}
	}

	return ranked, nil
}

// candidateFilter picks the storage query whose order agrees with the
// strategy, so truncating to the candidate pool keeps the best posts.
func candidateFilter(category string, strategy domain.SortStrategy, now time.Time, cfg *config.FeedConfig) domain.PostFilter {
	filter := domain.PostFilter{
		Category: category,
		Order:    domain.OrderNewest,
		Limit:    cfg.CandidatePool,
	}
	switch strategy {
	case domain.SortTop:
		filter.Order = domain.OrderScore
	case domain.SortHot, domain.SortRising:
		filter.CreatedAfter = now.Add(-cfg.CandidateWindow)
	}
	return filter
}

// CreatePost publishes a post on behalf of userID
func (s *ForumService) CreatePost(ctx context.Context, userID string, req domain.CreatePostRequest) (*domain.Post, error) {
	if err := validateID(userID); err != nil {
		return nil, err
	}

	post, err := req.ToPost(s.newID(), userID, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.posts.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.invalidate(ctx, post.Category)
	if s.hub != nil {
		s.hub.BroadcastPostUpdate(post.Category, post)
	}
	return &post, nil
}

// GetPost returns a post by ID
func (s *ForumService) GetPost(ctx context.Context, postID string) (*domain.Post, error) {
	if err := validateID(postID); err != nil {
		return nil, err
	}
	return s.posts.GetPost(ctx, postID)
}

// UpdatePost edits a post authored by userID
func (s *ForumService) UpdatePost(ctx context.Context, postID, userID string, req domain.UpdatePostRequest) (*domain.Post, error) {
	if err := validateID(postID); err != nil {
		return nil, err
	}
	if err := validateID(userID); err != nil {
		return nil, err
	}

	current, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if current.UserID != userID {
		return nil, domain.ErrNotPostOwner
	}

	edited, err := req.Apply(*current, s.now())
	if err != nil {
		return nil, err
	}

	updated, err := s.posts.UpdatePost(ctx, edited)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, updated.Category)
	if s.hub != nil {
		s.hub.BroadcastPostUpdate(updated.Category, *updated)
	}
	return updated, nil
}

// DeletePost removes a post authored by userID
func (s *ForumService) DeletePost(ctx context.Context, postID, userID string) error {
	if err := validateID(postID); err != nil {
		return err
	}
	if err := validateID(userID); err != nil {
		return err
	}

	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if err := s.posts.DeletePost(ctx, postID, userID); err != nil {
		return err
	}

	s.invalidate(ctx, post.Category)
	return nil
}

// invalidate drops cached rankings so the next read sees the change
func (s *ForumService) invalidate(ctx context.Context, category string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateCategory(ctx, category); err != nil {
		s.logger.Warn("failed to invalidate feed cache", "category", category, "error", err)
	}
}

// Vote toggles userID's vote on a post
func (s *ForumService) Vote(ctx context.Context, postID, userID string, voteType domain.VoteType) (*domain.VoteResult, error) {
	if err := validateID(postID); err != nil {
		return nil, err
	}
	if err := validateID(userID); err != nil {
		return nil, err
	}
	if _, err := domain.ParseVoteType(string(voteType)); err != nil {
		return nil, err
	}

	result, err := s.posts.Vote(ctx, postID, userID, voteType)
	if err != nil {
		return nil, err
	}

	if s.hub != nil && result.Post != nil {
		s.hub.BroadcastPostUpdate(result.Post.Category, *result.Post)
	}
	return result, nil
}

// GetUserVote returns userID's current vote on a post
func (s *ForumService) GetUserVote(ctx context.Context, postID, userID string) (domain.VoteType, error) {
	if err := validateID(postID); err != nil {
		return "", err
	}
	if err := validateID(userID); err != nil {
		return "", err
	}
	return s.posts.GetUserVote(ctx, postID, userID)
}

// AddComment comments on a post on behalf of userID
func (s *ForumService) AddComment(ctx context.Context, postID, userID string, req domain.CreateCommentRequest) (*domain.Comment, error) {
	if err := validateID(postID); err != nil {
		return nil, err
	}
	if err := validateID(userID); err != nil {
		return nil, err
	}
	if req.ParentID != "" {
		if err := validateID(req.ParentID); err != nil {
			return nil, err
		}
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, domain.ErrEmptyContent
	}

	now := s.now()
	comment := domain.Comment{
		ID:        s.newID(),
		PostID:    postID,
		UserID:    userID,
		ParentID:  req.ParentID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	post, err := s.posts.CreateComment(ctx, comment)
	if err != nil {
		return nil, err
	}

	if s.hub != nil && post != nil {
		s.hub.BroadcastPostUpdate(post.Category, *post)
	}
	return &comment, nil
}

// ListComments returns a post's comments, oldest first
func (s *ForumService) ListComments(ctx context.Context, postID string) ([]domain.Comment, error) {
	if err := validateID(postID); err != nil {
		return nil, err
	}
	return s.posts.ListComments(ctx, postID)
}

// ApplyEngagement applies a single vote or comment event
func (s *ForumService) ApplyEngagement(ctx context.Context, event domain.EngagementEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	switch event.Type {
	case domain.EngagementVote:
		_, err := s.Vote(ctx, event.PostID, event.UserID, event.VoteType)
		return err
	case domain.EngagementComment:
		_, err := s.AddComment(ctx, event.PostID, event.UserID, domain.CreateCommentRequest{
			Content:  event.Content,
			ParentID: event.ParentID,
		})
		return err
	}
	return domain.ErrInvalidRequest
}

// ApplyEngagementBatch applies events in order, logging and skipping failures
func (s *ForumService) ApplyEngagementBatch(ctx context.Context, batch domain.EngagementBatch) error {
	failed := 0
	for _, event := range batch.Events {
		if err := s.ApplyEngagement(ctx, event); err != nil {
			s.logger.Error("failed to apply engagement event",
				"type", event.Type,
				"post_id", event.PostID,
				"user_id", event.UserID,
				"error", err,
			)
			failed++
			// Continue processing other events
		}
	}
	if failed > 0 {
		s.logger.Warn("engagement batch had failures", "failed", failed, "total", len(batch.Events))
	}
	return nil
}

package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/campus-forum/internal/domain"
	"github.com/campus-forum/internal/redis"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePostStore struct {
	mu         sync.Mutex
	posts      map[string]domain.Post
	order      []string
	votes      map[string]domain.VoteType
	comments   []domain.Comment
	lastFilter domain.PostFilter
	listCalls  int
}

func newFakePostStore(posts ...domain.Post) *fakePostStore {
	s := &fakePostStore{
		posts: make(map[string]domain.Post),
		votes: make(map[string]domain.VoteType),
	}
	for _, p := range posts {
		s.posts[p.ID] = p
		s.order = append(s.order, p.ID)
	}
	return s
}

func (s *fakePostStore) CreatePost(_ context.Context, post domain.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[post.ID] = post
	s.order = append(s.order, post.ID)
	return nil
}

func (s *fakePostStore) GetPost(_ context.Context, postID string) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return nil, domain.ErrPostNotFound
	}
	return &p, nil
}

func (s *fakePostStore) GetPostsByIDs(_ context.Context, ids []string) ([]domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.posts[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakePostStore) ListPosts(_ context.Context, filter domain.PostFilter) ([]domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = filter
	s.listCalls++

	out := make([]domain.Post, 0)
	for _, id := range s.order {
		p, ok := s.posts[id]
		if !ok {
			continue
		}
		if filter.Category != "" && filter.Category != domain.CategoryAll && p.Category != filter.Category {
			continue
		}
		if !filter.CreatedAfter.IsZero() && !p.CreatedAt.After(filter.CreatedAfter) {
			continue
		}
		out = append(out, p)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *fakePostStore) ListCategories(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, p := range s.posts {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *fakePostStore) UpdatePost(_ context.Context, post domain.Post) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.posts[post.ID]
	if !ok {
		return nil, domain.ErrPostNotFound
	}
	if current.UserID != post.UserID {
		return nil, domain.ErrNotPostOwner
	}
	s.posts[post.ID] = post
	return &post, nil
}

func (s *fakePostStore) DeletePost(_ context.Context, postID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return domain.ErrPostNotFound
	}
	if p.UserID != userID {
		return domain.ErrNotPostOwner
	}
	delete(s.posts, postID)
	return nil
}

func (s *fakePostStore) Vote(_ context.Context, postID, userID string, voteType domain.VoteType) (*domain.VoteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return nil, domain.ErrPostNotFound
	}

	key := postID + "/" + userID
	result := &domain.VoteResult{Vote: voteType}
	switch existing, had := s.votes[key]; {
	case !had:
		s.votes[key] = voteType
		apply(&p, voteType, 1)
	case existing == voteType:
		delete(s.votes, key)
		apply(&p, voteType, -1)
		result.Vote = ""
	default:
		s.votes[key] = voteType
		apply(&p, existing, -1)
		apply(&p, voteType, 1)
	}
	s.posts[postID] = p
	result.Post = &p
	return result, nil
}

func apply(p *domain.Post, v domain.VoteType, sign int64) {
	if v == domain.VoteUp {
		p.Upvotes += sign
		p.Score += sign
		return
	}
	p.Downvotes += sign
	p.Score -= sign
}

func (s *fakePostStore) GetUserVote(_ context.Context, postID, userID string) (domain.VoteType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.votes[postID+"/"+userID], nil
}

func (s *fakePostStore) CreateComment(_ context.Context, comment domain.Comment) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[comment.PostID]
	if !ok {
		return nil, domain.ErrPostNotFound
	}
	s.comments = append(s.comments, comment)
	p.CommentCount++
	s.posts[comment.PostID] = p
	return &p, nil
}

func (s *fakePostStore) ListComments(_ context.Context, postID string) ([]domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Comment, 0)
	for _, c := range s.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeFeedCache struct {
	mu          sync.Mutex
	feeds       map[string][]string
	invalidated []string
	readErr     error
}

func newFakeFeedCache() *fakeFeedCache {
	return &fakeFeedCache{feeds: make(map[string][]string)}
}

func (c *fakeFeedCache) StoreFeed(_ context.Context, category string, strategy domain.SortStrategy, ids []string, _ time.Time, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feeds[category+":"+string(strategy)] = append([]string(nil), ids...)
	return nil
}

func (c *fakeFeedCache) GetFeed(_ context.Context, category string, strategy domain.SortStrategy, offset, limit int) (*redis.CachedFeed, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return nil, c.readErr
	}
	ids, ok := c.feeds[category+":"+string(strategy)]
	if !ok {
		return nil, domain.ErrFeedNotCached
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	var window []string
	if offset < len(ids) {
		window = ids[offset:end]
	}
	return &redis.CachedFeed{IDs: window, Total: len(ids)}, nil
}

func (c *fakeFeedCache) InvalidateCategory(_ context.Context, category string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, category)
	for key := range c.feeds {
		delete(c.feeds, key)
	}
	return nil
}

type fakeHub struct {
	mu        sync.Mutex
	updates   []domain.Post
	refreshed []string
}

func (h *fakeHub) BroadcastPostUpdate(_ string, post domain.Post) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, post)
}

func (h *fakeHub) BroadcastFeedRefreshed(category string, strategy domain.SortStrategy, _ int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refreshed = append(h.refreshed, category+":"+string(strategy))
}

type fakeProfileStore struct {
	mu         sync.Mutex
	profiles   map[string]domain.Profile
	takenCalls int
}

func newFakeProfileStore(profiles ...domain.Profile) *fakeProfileStore {
	s := &fakeProfileStore{profiles: make(map[string]domain.Profile)}
	for _, p := range profiles {
		s.profiles[p.ID] = p
	}
	return s
}

// CreateProfile only enforces the primary key, leaving username checks to
// the caller
func (s *fakeProfileStore) CreateProfile(_ context.Context, profile domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profile.ID]; ok {
		return domain.ErrProfileExists
	}
	s.profiles[profile.ID] = profile
	return nil
}

func (s *fakeProfileStore) GetProfile(_ context.Context, profileID string) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &p, nil
}

func (s *fakeProfileStore) UsernameTaken(_ context.Context, username, exceptProfileID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.takenCalls++
	for id, p := range s.profiles {
		if id != exceptProfileID && strings.EqualFold(p.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeProfileStore) UpdateUsername(_ context.Context, profileID string, mutate func(domain.Profile) (domain.Profile, error)) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.profiles[profileID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	next, err := mutate(current)
	if err != nil {
		return nil, err
	}
	s.profiles[profileID] = next
	return &next, nil
}

type fakeMembershipStore struct {
	mu      sync.Mutex
	members map[string]map[string]time.Time
}

func newFakeMembershipStore() *fakeMembershipStore {
	return &fakeMembershipStore{members: make(map[string]map[string]time.Time)}
}

func (s *fakeMembershipStore) JoinCommunity(_ context.Context, m domain.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	community, ok := s.members[m.Category]
	if !ok {
		community = make(map[string]time.Time)
		s.members[m.Category] = community
	}
	if _, ok := community[m.UserID]; ok {
		return domain.ErrAlreadyMember
	}
	community[m.UserID] = m.JoinedAt
	return nil
}

func (s *fakeMembershipStore) LeaveCommunity(_ context.Context, userID, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[category][userID]; !ok {
		return domain.ErrNotMember
	}
	delete(s.members[category], userID)
	return nil
}

func (s *fakeMembershipStore) CommunityStatus(_ context.Context, userID, category string) (*domain.CommunityStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, member := s.members[category][userID]
	return &domain.CommunityStatus{
		Category:    category,
		Member:      member && userID != "",
		MemberCount: int64(len(s.members[category])),
	}, nil
}

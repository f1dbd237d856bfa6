package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campus-forum/internal/domain"
)

// GetFeed returns a ranked page of posts
func (h *Handler) GetFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	strategy, err := domain.ParseSortStrategy(q.Get("sort"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	page, err := h.forum.GetFeed(r.Context(), domain.FeedQuery{
		Category: q.Get("category"),
		Strategy: strategy,
		Limit:    queryInt(r, "limit", 0),
		Offset:   queryInt(r, "offset", 0),
	})
	if err != nil {
		h.writeServiceError(w, "get feed", err)
		return
	}

	h.writeSuccess(w, page)
}

// ListCategories returns every category that has posts
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.forum.Categories(r.Context())
	if err != nil {
		h.writeServiceError(w, "list categories", err)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	h.writeSuccess(w, categories)
}

// CreatePost publishes a post as the caller
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, domain.ErrMissingUser)
		return
	}

	var req domain.CreatePostRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	post, err := h.forum.CreatePost(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, "create post", err)
		return
	}

	h.writeCreated(w, post)
}

// GetPost returns a post by ID
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.forum.GetPost(r.Context(), chi.URLParam(r, "postID"))
	if err != nil {
		h.writeServiceError(w, "get post", err)
		return
	}

	h.writeSuccess(w, post)
}

// UpdatePost edits one of the caller's posts
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, domain.ErrMissingUser)
		return
	}

	var req domain.UpdatePostRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	post, err := h.forum.UpdatePost(r.Context(), chi.URLParam(r, "postID"), userID, req)
	if err != nil {
		h.writeServiceError(w, "update post", err)
		return
	}

	h.writeSuccess(w, post)
}

// DeletePost removes one of the caller's posts
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, domain.ErrMissingUser)
		return
	}

	if err := h.forum.DeletePost(r.Context(), chi.URLParam(r, "postID"), userID); err != nil {
		h.writeServiceError(w, "delete post", err)
		return
	}

	h.writeSuccess(w, map[string]string{"status": "deleted"})
}

// Vote toggles the caller's vote on a post
func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, domain.ErrMissingUser)
		return
	}

	var req domain.VoteRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	voteType, err := domain.ParseVoteType(string(req.VoteType))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.forum.Vote(r.Context(), chi.URLParam(r, "postID"), userID, voteType)
	if err != nil {
		h.writeServiceError(w, "vote", err)
		return
	}

	h.writeSuccess(w, result)
}

// GetUserVote returns the caller's current vote on a post
func (h *Handler) GetUserVote(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, domain.ErrMissingUser)
		return
	}

	vote, err := h.forum.GetUserVote(r.Context(), chi.URLParam(r, "postID"), userID)
	if err != nil {
		h.writeServiceError(w, "get vote", err)
		return
	}

	h.writeSuccess(w, map[string]domain.VoteType{"vote": vote})
}

// ListComments returns a post's comments
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.forum.ListComments(r.Context(), chi.URLParam(r, "postID"))
	if err != nil {
		h.writeServiceError(w, "list comments", err)
		return
	}

	h.writeSuccess(w, comments)
}

// AddComment comments on a post as the caller
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, domain.ErrMissingUser)
		return
	}

	var req domain.CreateCommentRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	comment, err := h.forum.AddComment(r.Context(), chi.URLParam(r, "postID"), userID, req)
	if err != nil {
		h.writeServiceError(w, "add comment", err)
		return
	}

	h.writeCreated(w, comment)
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campus-forum/internal/domain"
)

// GetMembership reports the community's size and whether the caller has
// joined it. Anonymous callers are never members.
func (h *Handler) GetMembership(w http.ResponseWriter, r *http.Request) {
	userID, _ := callerID(r)

	status, err := h.communities.Status(r.Context(), userID, chi.URLParam(r, "category"))
	if err != nil {
		h.writeServiceError(w, "community status", err)
		return
	}

	h.writeSuccess(w, status)
}

// JoinCommunity adds the caller to a community
func (h *Handler) JoinCommunity(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, domain.ErrMissingUser)
		return
	}

	status, err := h.communities.Join(r.Context(), userID, chi.URLParam(r, "category"))
	if err != nil {
		h.writeServiceError(w, "join community", err)
		return
	}

	h.writeCreated(w, status)
}

// LeaveCommunity removes the caller from a community
func (h *Handler) LeaveCommunity(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, domain.ErrMissingUser)
		return
	}

	status, err := h.communities.Leave(r.Context(), userID, chi.URLParam(r, "category"))
	if err != nil {
		h.writeServiceError(w, "leave community", err)
		return
	}

	h.writeSuccess(w, status)
}

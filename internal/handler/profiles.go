package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campus-forum/internal/domain"
)

// CreateProfile sets up the caller's profile
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, domain.ErrMissingUser)
		return
	}

	var req domain.CreateProfileRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	profile, err := h.profiles.CreateProfile(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, "create profile", err)
		return
	}

	h.writeCreated(w, profile)
}

// GetProfile returns a profile by ID
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profiles.GetProfile(r.Context(), chi.URLParam(r, "profileID"))
	if err != nil {
		h.writeServiceError(w, "get profile", err)
		return
	}

	h.writeSuccess(w, profile)
}

// GetUsernameChangeStatus tells the profile editor whether a rename is possible
func (h *Handler) GetUsernameChangeStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.profiles.UsernameChangeStatus(r.Context(), chi.URLParam(r, "profileID"))
	if err != nil {
		h.writeServiceError(w, "username change status", err)
		return
	}

	h.writeSuccess(w, status)
}

// ChangeUsername renames the caller's profile, subject to the cooldown
func (h *Handler) ChangeUsername(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, domain.ErrMissingUser)
		return
	}

	var req domain.ChangeUsernameRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	profileID := chi.URLParam(r, "profileID")
	profile, decision, err := h.profiles.ChangeUsername(r.Context(), profileID, userID, req.Username)
	if err != nil {
		h.writeServiceError(w, "change username", err)
		return
	}
	if !decision.Allowed {
		h.writeDenied(w, decision, &domain.CooldownStatus{
			Allowed:         false,
			Reason:          decision.Message(),
			RetryAfterHours: decision.RetryAfterHours,
		})
		return
	}

	h.writeSuccess(w, profile)
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/campus-forum/internal/cooldown"
	"github.com/campus-forum/internal/domain"
	"github.com/campus-forum/internal/websocket"
)

// UserIDHeader carries the caller's id. Authentication happens upstream.
const UserIDHeader = "X-User-ID"

// ForumService is the post, vote and feed surface the API exposes
type ForumService interface {
	GetFeed(ctx context.Context, q domain.FeedQuery) (*domain.Page, error)
	Categories(ctx context.Context) ([]string, error)
	CreatePost(ctx context.Context, userID string, req domain.CreatePostRequest) (*domain.Post, error)
	GetPost(ctx context.Context, postID string) (*domain.Post, error)
	UpdatePost(ctx context.Context, postID, userID string, req domain.UpdatePostRequest) (*domain.Post, error)
	DeletePost(ctx context.Context, postID, userID string) error
	Vote(ctx context.Context, postID, userID string, voteType domain.VoteType) (*domain.VoteResult, error)
	GetUserVote(ctx context.Context, postID, userID string) (domain.VoteType, error)
	AddComment(ctx context.Context, postID, userID string, req domain.CreateCommentRequest) (*domain.Comment, error)
	ListComments(ctx context.Context, postID string) ([]domain.Comment, error)
}

// ProfileService is the profile surface the API exposes
type ProfileService interface {
	CreateProfile(ctx context.Context, userID string, req domain.CreateProfileRequest) (*domain.Profile, error)
	GetProfile(ctx context.Context, profileID string) (*domain.Profile, error)
	UsernameChangeStatus(ctx context.Context, profileID string) (*domain.CooldownStatus, error)
	ChangeUsername(ctx context.Context, profileID, callerID, username string) (*domain.Profile, cooldown.Decision, error)
}

// CommunityService is the community membership surface the API exposes
type CommunityService interface {
	Join(ctx context.Context, userID, category string) (*domain.CommunityStatus, error)
	Leave(ctx context.Context, userID, category string) (*domain.CommunityStatus, error)
	Status(ctx context.Context, userID, category string) (*domain.CommunityStatus, error)
}

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler provides HTTP handlers for the forum API
type Handler struct {
	forum       ForumService
	profiles    ProfileService
	communities CommunityService
	hub         *websocket.Hub
	checks      map[string]Pinger
	logger      *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	forum ForumService,
	profiles ProfileService,
	communities CommunityService,
	hub *websocket.Hub,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		forum:       forum,
		profiles:    profiles,
		communities: communities,
		hub:         hub,
		checks:      make(map[string]Pinger),
		logger:      logger,
	}
}

// AddReadinessCheck makes /ready depend on the named dependency
func (h *Handler) AddReadinessCheck(name string, p Pinger) {
	h.checks[name] = p
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.identityMiddleware)

		r.Get("/categories", h.ListCategories)

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", h.GetFeed)
			r.Post("/", h.CreatePost)

			r.Route("/{postID}", func(r chi.Router) {
				r.Get("/", h.GetPost)
				r.Patch("/", h.UpdatePost)
				r.Delete("/", h.DeletePost)
				r.Post("/vote", h.Vote)
				r.Get("/vote", h.GetUserVote)
				r.Get("/comments", h.ListComments)
				r.Post("/comments", h.AddComment)
			})
		})

		r.Route("/profiles", func(r chi.Router) {
			r.Post("/", h.CreateProfile)

			r.Route("/{profileID}", func(r chi.Router) {
				r.Get("/", h.GetProfile)
				r.Get("/username-change", h.GetUsernameChangeStatus)
				r.Put("/username", h.ChangeUsername)
			})
		})

		r.Route("/communities/{category}/membership", func(r chi.Router) {
			r.Get("/", h.GetMembership)
			r.Post("/", h.JoinCommunity)
			r.Delete("/", h.LeaveCommunity)
		})

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID, "+UserIDHeader)
		w.Header().Set("Access-Control-Expose-Headers", "Retry-After")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type userIDKey struct{}

// identityMiddleware stores the caller id in the request context. Requests
// without the header pass through anonymously; malformed ids are rejected.
func (h *Handler) identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(UserIDHeader)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, domain.ErrMissingUser)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey{}, id.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callerID returns the id set by identityMiddleware
func callerID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(userIDKey{}).(string)
	return id, ok && id != ""
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeCreated writes a 201 JSON response
func (h *Handler) writeCreated(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeServiceError maps a service error onto its HTTP status. Unexpected
// errors are logged and hidden behind a generic message.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		h.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrConflict):
		h.writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrForbidden):
		h.writeError(w, http.StatusForbidden, err)
	default:
		h.logger.Error("request failed", "op", op, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// writeDenied reports a cooldown refusal as 429 with Retry-After in seconds
func (h *Handler) writeDenied(w http.ResponseWriter, d cooldown.Decision, status *domain.CooldownStatus) {
	retry := time.Duration(d.RetryAfterHours) * time.Hour
	w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())))
	h.writeJSON(w, http.StatusTooManyRequests, APIResponse{
		Success: false,
		Data:    status,
		Error:   d.Message(),
	})
}

// decode reads a JSON body into v
func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrInvalidRequest
	}
	return nil
}

// queryInt parses a non-negative integer query parameter, ignoring bad input
func queryInt(r *http.Request, name string, fallback int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			return v
		}
	}
	return fallback
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
		"categories":        h.hub.GetCategoryStats(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck reports ready once every registered dependency answers a ping
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", "dependency", name, "error", err)
			h.writeJSON(w, http.StatusServiceUnavailable, APIResponse{
				Success: false,
				Data:    map[string]string{"status": "not ready", "dependency": name},
				Error:   "dependency unavailable",
			})
			return
		}
	}

	h.writeSuccess(w, map[string]string{"status": "ready"})
}

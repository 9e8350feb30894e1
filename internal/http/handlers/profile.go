package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/hongminglow/budget-api/internal/auth"
	"github.com/hongminglow/budget-api/internal/cache"
	"github.com/hongminglow/budget-api/internal/http/respond"
	"github.com/hongminglow/budget-api/internal/middleware"
	"github.com/hongminglow/budget-api/internal/models/dto"
	"github.com/hongminglow/budget-api/internal/storage"
)

// ProfileHandler serves the authenticated user's own profile.
type ProfileHandler struct {
	users storage.UserStore
	cache cache.Store
}

// NewProfileHandler constructs the handler.
func NewProfileHandler(users storage.UserStore, cache cache.Store) *ProfileHandler {
	return &ProfileHandler{users: users, cache: cache}
}

// Register attaches profile routes to the protected mux.
func (h *ProfileHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/profile", h.handleGet)
	mux.HandleFunc("PUT /api/profile", h.handleUpdate)
}

func (h *ProfileHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	key := cache.ProfileKey(userID)
	if cached, ok := cacheGet(r.Context(), h.cache, key); ok {
		respond.Raw(w, http.StatusOK, cached)
		return
	}

	user, err := h.users.FindUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "profile not found")
			return
		}
		log.Printf("fetch profile %s: %v", userID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to fetch profile")
		return
	}

	cachePut(r.Context(), h.cache, key, user)
	respond.JSON(w, http.StatusOK, user)
}

func (h *ProfileHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req dto.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	// Invalidate before touching the row so a failure mid-update can never
	// leave the old representation being served past the write.
	key := cache.ProfileKey(userID)
	cacheDrop(r.Context(), h.cache, key)

	user, err := h.users.FindUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "profile not found")
			return
		}
		log.Printf("fetch profile %s: %v", userID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	if req.Username != nil {
		user.Username = strings.TrimSpace(*req.Username)
	}
	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
	}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			log.Printf("hash password for %s: %v", userID, err)
			respond.Error(w, http.StatusInternalServerError, "failed to update profile")
			return
		}
		user.PasswordHash = hash
	}

	updated, err := h.users.UpdateUser(r.Context(), user)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			respond.Error(w, http.StatusConflict, "username already taken")
			return
		}
		log.Printf("update profile %s: %v", userID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	cachePut(r.Context(), h.cache, key, updated)
	respond.JSON(w, http.StatusOK, updated)
}

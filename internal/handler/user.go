package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/poit/internal/apperror"
	"github.com/sakif/poit/internal/auth"
	"github.com/sakif/poit/internal/model"
	"github.com/sakif/poit/internal/service"
)

// UserHandler exposes read-only user profiles.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// HandleMe returns the authenticated user's own record, email included.
//
// HTTP: GET /api/me
// Auth: Required
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		// A valid token for a deleted user.
		h.logger.Warn("token subject has no user", slog.String("userID", userID))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleGet returns the public profile of any user.
//
// HTTP: GET /api/users/{userId}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Author{
		ID:             user.ID,
		Username:       user.Username,
		ProfilePicture: user.ProfilePicture,
	})
}

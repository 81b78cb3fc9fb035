package handlers

import (
	"net/http"

	"github.com/peerpay/backend/internal/middleware"
	"github.com/peerpay/backend/internal/services"
)

type UserHandler struct {
	auth      Authenticator
	directory DirectorySearcher
}

func NewUserHandler(auth Authenticator, directory DirectorySearcher) *UserHandler {
	return &UserHandler{
		auth:      auth,
		directory: directory,
	}
}

// Register creates a user and their account
// @Summary Register a new user
// @Description Register a user; test_mode selects a test or live account and cannot be changed later
// @Tags auth
// @Accept json
// @Produce json
// @Param request body services.RegisterRequest true "Registration request"
// @Success 201 {object} models.Profile
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /register [post]
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if err := services.DecodeJSONBody(w, r, &req); err != nil {
		services.SendAppError(w, err)
		return
	}

	profile, err := h.auth.Register(r.Context(), req)
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	services.WriteJSON(w, http.StatusCreated, profile)
}

// Login authenticates a user
// @Summary Login user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body services.LoginRequest true "Login request"
// @Success 200 {object} services.AuthResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /login [post]
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if err := services.DecodeJSONBody(w, r, &req); err != nil {
		services.SendAppError(w, err)
		return
	}

	resp, err := h.auth.Login(r.Context(), req)
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	services.WriteJSON(w, http.StatusOK, resp)
}

// Logout revokes the presented token
// @Summary Logout user
// @Tags auth
// @Produce json
// @Success 200 {object} MessageResponse
// @Router /logout [post]
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.ExtractToken(r.Header.Get("Authorization"))
	if err := h.auth.Logout(r.Context(), token); err != nil {
		services.SendAppError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Logout successful"})
}

// Me returns the caller's profile
// @Summary Current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Profile
// @Failure 401 {object} services.ErrorResponse
// @Router /users/me [get]
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	profile, err := h.auth.Profile(r.Context(), userID)
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	services.WriteJSON(w, http.StatusOK, profile)
}

// SearchUsers looks up receivers by username
// @Summary Search users
// @Description Case-insensitive substring match on username, excluding the caller
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param username query string true "Search term"
// @Param limit query int false "Maximum results (default 10, max 50)"
// @Success 200 {array} models.DirectoryEntry
// @Failure 400 {object} services.ErrorResponse
// @Router /users [get]
func (h *UserHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	entries, err := h.directory.Search(r.Context(), userID, r.URL.Query().Get("username"), limit)
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	services.WriteJSON(w, http.StatusOK, entries)
}

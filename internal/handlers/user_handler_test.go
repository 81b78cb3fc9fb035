package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/peerpay/backend/internal/models"
	"github.com/peerpay/backend/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestUserHandler_Register(t *testing.T) {
	t.Run("form-style test_mode string", func(t *testing.T) {
		auth := &MockAuth{}
		h := NewUserHandler(auth, &MockDirectory{})

		auth.On("Register", mock.Anything, mock.MatchedBy(func(req services.RegisterRequest) bool {
			return req.Username == "alice" && bool(req.TestMode)
		})).Return(&models.Profile{User: models.User{ID: 1, Username: "alice"}, TestMode: true, Balance: decimal.Zero}, nil)

		body := `{"username":"alice","password":"password123","email":"alice@example.com","test_mode":"true"}`
		w := httptest.NewRecorder()
		h.Register(w, httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body)))

		assert.Equal(t, http.StatusCreated, w.Code)
		auth.AssertExpectations(t)
	})

	t.Run("duplicate user", func(t *testing.T) {
		auth := &MockAuth{}
		h := NewUserHandler(auth, &MockDirectory{})
		auth.On("Register", mock.Anything, mock.Anything).Return(nil, services.ErrDuplicateUser)

		body := `{"username":"alice","password":"password123","email":"alice@example.com"}`
		w := httptest.NewRecorder()
		h.Register(w, httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body)))

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestUserHandler_Login(t *testing.T) {
	auth := &MockAuth{}
	h := NewUserHandler(auth, &MockDirectory{})

	auth.On("Login", mock.Anything, services.LoginRequest{Username: "alice", Password: "password123"}).
		Return(&services.AuthResponse{Token: "jwt", TestMode: true}, nil)
	auth.On("Login", mock.Anything, services.LoginRequest{Username: "alice", Password: "wrong"}).
		Return(nil, services.ErrUnauthorized.WithMessage("Invalid credentials"))

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"alice","password":"password123"}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp services.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "jwt", resp.Token)
	assert.True(t, resp.TestMode)

	w = httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"alice","password":"wrong"}`)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserHandler_Logout(t *testing.T) {
	auth := &MockAuth{}
	h := NewUserHandler(auth, &MockDirectory{})
	auth.On("Logout", mock.Anything, "jwt").Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set("Authorization", "Bearer jwt")
	w := httptest.NewRecorder()
	h.Logout(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	auth.AssertExpectations(t)
}

func TestUserHandler_SearchUsers(t *testing.T) {
	directory := &MockDirectory{}
	h := NewUserHandler(&MockAuth{}, directory)

	directory.On("Search", mock.Anything, int64(1), "bo", 0).
		Return([]models.DirectoryEntry{{ID: 2, Username: "bob", AccountType: "user"}}, nil)
	directory.On("Search", mock.Anything, int64(1), "", 0).
		Return(nil, services.ErrInvalidRequest.WithMessage("Search query must not be empty"))

	r := chi.NewRouter()
	r.Use(asUser(1))
	r.Get("/users", h.SearchUsers)
	r.Get("/users/me", h.Me)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users?username=bo", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var entries []models.DirectoryEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "bob", entries[0].Username)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

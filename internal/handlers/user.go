package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jason-s-yu/companion/internal/auth"
	"github.com/jason-s-yu/companion/internal/models"
)

type createUserRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
	Phone     string `json:"phone"`
}

// CreateUserHandler registers an account and returns its public identity.
func (s *APIServer) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || req.Password == "" || req.Username == "" {
		writeError(w, http.StatusBadRequest, "invalid_payload", "email, password and username are required")
		return
	}

	user := models.User{
		Email:     req.Email,
		Password:  req.Password,
		Username:  req.Username,
		AvatarURL: req.AvatarURL,
		Phone:     req.Phone,
	}
	if err := s.Accounts.CreateUser(r.Context(), &user); err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email_taken", "email already exists")
			return
		}
		s.Logger.WithError(err).Error("failed to create user")
		writeError(w, http.StatusInternalServerError, "internal", "error creating user")
		return
	}
	writeJSON(w, http.StatusCreated, user.Public())
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// LoginHandler exchanges email and password for a session token.
//
// Request payload:
//
//	{
//	  "email": "someone@example.com",
//	  "password": "password"
//	}
//
// Response payload:
//
//	{
//	  "token": "{jwt}"
//	}
//
// The token is also set as the auth_token cookie.
func (s *APIServer) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "invalid request payload")
		return
	}

	user, err := s.Accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			s.Logger.WithError(err).Error("failed to authenticate user")
		}
		writeError(w, http.StatusForbidden, "authentication_failed", "authentication failed")
		return
	}

	token, err := s.Signer.Issue(user.ID)
	if err != nil {
		s.Logger.WithError(err).Error("failed to issue token")
		writeError(w, http.StatusInternalServerError, "internal", "failed to create token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		MaxAge:   int(s.Signer.TTL().Seconds()),
	})
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

// MeHandler returns the caller's own public identity.
func (s *APIServer) MeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	user, err := s.Accounts.GetUserByID(r.Context(), userID)
	if errors.Is(err, auth.ErrAccountNotFound) {
		writeError(w, http.StatusNotFound, "unknown_user", "account not found")
		return
	}
	if err != nil {
		s.Logger.WithError(err).Error("failed to load user")
		writeError(w, http.StatusInternalServerError, "internal", "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}

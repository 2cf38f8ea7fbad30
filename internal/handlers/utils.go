package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const authCookie = "auth_token"

var errMissingToken = errors.New("missing auth_token")

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// authenticate returns the user id carried by the auth_token cookie, or by
// an "Authorization: Bearer" header when there is no cookie.
func (s *APIServer) authenticate(r *http.Request) (uuid.UUID, error) {
	var token string
	if c, err := r.Cookie(authCookie); err == nil {
		token = c.Value
	} else if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		token = strings.TrimPrefix(h, "Bearer ")
	}
	if token == "" {
		return uuid.Nil, errMissingToken
	}
	return s.Signer.Verify(token)
}

// requireUser authenticates r, writing a 401 and returning false on failure.
func (s *APIServer) requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return uuid.Nil, false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

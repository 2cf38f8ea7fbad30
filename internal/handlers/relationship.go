// internal/handlers/relationship.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jason-s-yu/companion/internal/models"
	"github.com/jason-s-yu/companion/internal/relationship"
	"github.com/sirupsen/logrus"
)

// peerRequest is the body of every friend mutation: the other user of the pair.
type peerRequest struct {
	UserID string `json:"user_id"`
}

type statusResponse struct {
	Status models.RelationshipStatus `json:"status"`
	Code   string                    `json:"code,omitempty"`
}

type transition func(ctx context.Context, actorID, peerID uuid.UUID) (models.RelationshipStatus, error)

// RequestFriendHandler sends a friend request to user_id.
//
// Responds 201 with {"status":"requested"}, or {"status":"friends"} when
// user_id had already asked the caller. Re-sending a pending request is
// answered 200 with {"status":"requested","code":"duplicate_request"}.
func (s *APIServer) RequestFriendHandler(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, "request", s.Relationships.Request, http.StatusCreated)
}

// AcceptFriendHandler accepts the pending request user_id sent to the caller.
func (s *APIServer) AcceptFriendHandler(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, "accept", s.Relationships.Accept, http.StatusOK)
}

// RejectFriendHandler declines the pending request user_id sent to the caller.
func (s *APIServer) RejectFriendHandler(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, "reject", s.Relationships.Reject, http.StatusOK)
}

// CancelFriendHandler withdraws the caller's pending request to user_id.
func (s *APIServer) CancelFriendHandler(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, "cancel", s.Relationships.Cancel, http.StatusOK)
}

// RemoveFriendHandler unfriends user_id.
func (s *APIServer) RemoveFriendHandler(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, "unfriend", s.Relationships.Unfriend, http.StatusOK)
}

func (s *APIServer) handleTransition(w http.ResponseWriter, r *http.Request, op string, fn transition, okStatus int) {
	actorID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req peerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	peerID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "invalid user_id")
		return
	}

	status, err := fn(r.Context(), actorID, peerID)
	if errors.Is(err, relationship.ErrDuplicateRequest) {
		writeJSON(w, http.StatusOK, statusResponse{Status: status, Code: relationship.Code(err)})
		return
	}
	if err != nil {
		s.writeServiceError(w, op, err)
		return
	}
	writeJSON(w, okStatus, statusResponse{Status: status})
}

// ListFriendsHandler returns the caller's friends, incoming and outgoing requests.
func (s *APIServer) ListFriendsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	view, err := s.Relationships.ListForUser(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SearchUsersHandler finds users by name, e.g. to pick someone to befriend.
//
//	GET /users/search?q=mar&limit=10
func (s *APIServer) SearchUsersHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, "invalid_payload", "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	users, err := s.Directory.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		s.Logger.WithError(err).Error("user search failed")
		writeError(w, http.StatusInternalServerError, "internal", "failed to search users")
		return
	}
	if users == nil {
		users = []models.PublicUser{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *APIServer) writeServiceError(w http.ResponseWriter, op string, err error) {
	code := relationship.Code(err)
	status := httpStatus(code)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.Logger.WithFields(logrus.Fields{"op": op}).WithError(err).Error("relationship operation failed")
		msg = "internal error"
	}
	writeError(w, status, code, msg)
}

func httpStatus(code string) int {
	switch code {
	case "invalid_self_request":
		return http.StatusBadRequest
	case "unknown_user", "no_such_request", "no_such_relationship":
		return http.StatusNotFound
	case "already_friends", "duplicate_request":
		return http.StatusConflict
	case "unauthorized":
		return http.StatusForbidden
	case "busy":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

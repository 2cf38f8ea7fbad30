// internal/handlers/api_server.go
package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/companion/internal/auth"
	"github.com/jason-s-yu/companion/internal/middleware"
	"github.com/jason-s-yu/companion/internal/models"
	"github.com/jason-s-yu/companion/internal/relationship"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Accounts creates and authenticates users. Implemented by database.Users
// and auth.MemoryAccounts.
type Accounts interface {
	CreateUser(ctx context.Context, user *models.User) error
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// APIServer holds what the HTTP handlers need. Account routes are only
// mounted when Accounts is set.
type APIServer struct {
	Relationships *relationship.Service
	Directory     relationship.UserDirectory
	Accounts      Accounts
	Signer        *auth.Signer
	Logger        *logrus.Logger
}

// Routes builds the request mux wrapped in request logging.
func (s *APIServer) Routes() http.Handler {
	mux := http.NewServeMux()

	// friend endpoints
	mux.HandleFunc("POST /friends/request", s.RequestFriendHandler)
	mux.HandleFunc("POST /friends/accept", s.AcceptFriendHandler)
	mux.HandleFunc("POST /friends/reject", s.RejectFriendHandler)
	mux.HandleFunc("POST /friends/cancel", s.CancelFriendHandler)
	mux.HandleFunc("POST /friends/remove", s.RemoveFriendHandler)
	mux.HandleFunc("GET /friends/list", s.ListFriendsHandler)

	mux.HandleFunc("GET /users/search", s.SearchUsersHandler)

	// user endpoints
	if s.Accounts != nil {
		mux.HandleFunc("POST /user/create", s.CreateUserHandler)
		mux.HandleFunc("POST /user/login", s.LoginHandler)
		mux.HandleFunc("GET /user/me", s.MeHandler)
	}

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})

	return middleware.LogMiddleware(s.Logger)(mux)
}

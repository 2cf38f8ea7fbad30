package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/companion/internal/models"
)

var (
	// ErrEmailTaken is returned when an account with the email already exists.
	ErrEmailTaken = errors.New("email already exists")
	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountNotFound is returned by GetUserByID for an unknown id.
	ErrAccountNotFound = errors.New("account not found")
)

// Registrar is told about every account created in memory, so the
// relationship directory can see it.
type Registrar interface {
	Add(u models.PublicUser)
}

// MemoryAccounts keeps accounts in process memory for the memory backend.
type MemoryAccounts struct {
	mu      sync.RWMutex
	byEmail map[string]models.User
	emails  map[uuid.UUID]string

	directory Registrar
	// Params tunes password hashing for new accounts.
	Params HashParams
}

func NewMemoryAccounts(directory Registrar) *MemoryAccounts {
	return &MemoryAccounts{
		byEmail:   make(map[string]models.User),
		emails:    make(map[uuid.UUID]string),
		directory: directory,
		Params:    DefaultParams,
	}
}

// CreateUser hashes the password, assigns an id when the caller left it
// nil and registers the public identity with the directory.
func (m *MemoryAccounts) CreateUser(_ context.Context, user *models.User) error {
	hash, err := HashPassword(user.Password, m.Params)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[user.Email]; ok {
		return ErrEmailTaken
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Password = hash
	user.CreatedAt = time.Now()
	m.byEmail[user.Email] = *user
	m.emails[user.ID] = user.Email
	m.directory.Add(user.Public())
	return nil
}

func (m *MemoryAccounts) Authenticate(_ context.Context, email, password string) (*models.User, error) {
	m.mu.RLock()
	u, ok := m.byEmail[email]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}
	match, err := VerifyPassword(password, u.Password)
	if err != nil || !match {
		return nil, ErrInvalidCredentials
	}
	return &u, nil
}

func (m *MemoryAccounts) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email, ok := m.emails[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	u := m.byEmail[email]
	return &u, nil
}

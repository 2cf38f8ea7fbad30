package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/companion/internal/auth"
	"github.com/jason-s-yu/companion/internal/models"
)

// Users is the Postgres-backed user directory. It satisfies
// relationship.UserDirectory and owns account creation and login.
type Users struct {
	pool *pgxpool.Pool
}

func NewUsers(pool *pgxpool.Pool) *Users {
	return &Users{pool: pool}
}

// CreateUser hashes the password and inserts the row, assigning an id when
// the caller left it nil.
func (u *Users) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		user.ID = id
	}

	hash, err := auth.HashPassword(user.Password, auth.DefaultParams)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = hash

	q := `INSERT INTO users (id, email, password, username, avatar_url, phone)
	      VALUES ($1, $2, $3, $4, $5, $6)
	      RETURNING created_at`

	err = pgx.BeginTxFunc(ctx, u.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, q,
			user.ID, user.Email, user.Password, user.Username,
			user.AvatarURL, user.Phone,
		).Scan(&user.CreatedAt)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return auth.ErrEmailTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (u *Users) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return u.getUser(ctx, `WHERE email = $1`, email)
}

// GetUserByID returns auth.ErrAccountNotFound for an unknown id.
func (u *Users) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	usr, err := u.getUser(ctx, `WHERE id = $1`, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %v: %w", id, err)
	}
	return usr, nil
}

func (u *Users) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var usr models.User
	q := `
	SELECT id, email, password, username, avatar_url, phone, created_at
	FROM users
	` + where
	err := u.pool.QueryRow(ctx, q, arg).Scan(
		&usr.ID, &usr.Email, &usr.Password, &usr.Username,
		&usr.AvatarURL, &usr.Phone, &usr.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &usr, nil
}

// Authenticate checks email and password and returns the matching user.
func (u *Users) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	usr, err := u.GetUserByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	match, err := auth.VerifyPassword(password, usr.Password)
	if err != nil || !match {
		return nil, auth.ErrInvalidCredentials
	}
	return usr, nil
}

func (u *Users) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := u.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user %v: %w", id, err)
	}
	return exists, nil
}

func (u *Users) Lookup(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.PublicUser, error) {
	out := make(map[uuid.UUID]models.PublicUser, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}

	rows, err := u.pool.Query(ctx, `
		SELECT id, username, avatar_url, phone
		FROM users
		WHERE id = ANY($1::uuid[])
	`, strs)
	if err != nil {
		return nil, fmt.Errorf("failed to look up users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.PublicUser
		if err := rows.Scan(&p.ID, &p.Username, &p.AvatarURL, &p.Phone); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// Search matches username case-insensitively. LIKE wildcards in query are literal.
func (u *Users) Search(ctx context.Context, query string, limit int) ([]models.PublicUser, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + likeEscaper.Replace(strings.TrimSpace(query)) + "%"
	rows, err := u.pool.Query(ctx, `
		SELECT id, username, avatar_url, phone
		FROM users
		WHERE username ILIKE $1
		ORDER BY username
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	users := []models.PublicUser{}
	for rows.Next() {
		var p models.PublicUser
		if err := rows.Scan(&p.ID, &p.Username, &p.AvatarURL, &p.Phone); err != nil {
			return nil, err
		}
		users = append(users, p)
	}
	return users, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

package relationship

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/companion/internal/models"
)

// UserDirectory is the authoritative set of user identities. It is read
// only from the relationship subsystem's point of view.
type UserDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	// Lookup resolves public identities in one call. Unknown ids are absent
	// from the result rather than an error.
	Lookup(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.PublicUser, error)
	Search(ctx context.Context, query string, limit int) ([]models.PublicUser, error)
}

// StaticDirectory is an in-memory UserDirectory, used by the memory backend
// and in tests.
type StaticDirectory struct {
	mu    sync.RWMutex
	users map[uuid.UUID]models.PublicUser
}

func NewStaticDirectory(users ...models.PublicUser) *StaticDirectory {
	d := &StaticDirectory{users: make(map[uuid.UUID]models.PublicUser, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

// Add registers or replaces a user.
func (d *StaticDirectory) Add(u models.PublicUser) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *StaticDirectory) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.users[id]
	return ok, nil
}

func (d *StaticDirectory) Lookup(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.PublicUser, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[uuid.UUID]models.PublicUser, len(ids))
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

// Search does a case-insensitive substring match on username, ordered by username.
func (d *StaticDirectory) Search(_ context.Context, query string, limit int) ([]models.PublicUser, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []models.PublicUser
	for _, u := range d.users {
		if q == "" || strings.Contains(strings.ToLower(u.Username), q) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

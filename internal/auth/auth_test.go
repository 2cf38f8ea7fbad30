package auth

import (
	"context"
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/companion/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignerRoundTrip(t *testing.T) {
	s, err := NewSigner(0)
	require.NoError(t, err)

	id := uuid.New()
	token, err := s.Issue(id)
	require.NoError(t, err)

	got, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestSignerRejectsForeignAndExpiredTokens(t *testing.T) {
	s, err := NewSigner(time.Hour)
	require.NoError(t, err)
	other, err := NewSigner(time.Hour)
	require.NoError(t, err)

	token, err := other.Issue(uuid.New())
	require.NoError(t, err)
	_, err = s.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, err = s.Issue(uuid.New())
	require.NoError(t, err)
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = s.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	fast := HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

	hash, err := HashPassword("correct horse", fast)
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	ok, err := VerifyPassword("correct horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("battery staple", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := HashPassword("correct horse", fast)
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salt must differ per hash")

	_, err = VerifyPassword("x", "$bcrypt$nope")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

type directoryStub struct {
	added []models.PublicUser
}

func (d *directoryStub) Add(u models.PublicUser) {
	d.added = append(d.added, u)
}

func TestMemoryAccounts(t *testing.T) {
	ctx := context.Background()
	dir := &directoryStub{}
	accounts := NewMemoryAccounts(dir)
	accounts.Params = HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

	u := &models.User{Email: "ada@example.com", Password: "s3cret", Username: "Ada"}
	require.NoError(t, accounts.CreateUser(ctx, u))
	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.NotEqual(t, "s3cret", u.Password)
	require.Len(t, dir.added, 1)
	assert.Equal(t, u.Public(), dir.added[0])

	err := accounts.CreateUser(ctx, &models.User{Email: "ada@example.com", Password: "x", Username: "Other"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.Len(t, dir.added, 1)

	got, err := accounts.Authenticate(ctx, "ada@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = accounts.Authenticate(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = accounts.Authenticate(ctx, "nobody@example.com", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	byID, err := accounts.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", byID.Username)
	_, err = accounts.GetUserByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func writeKeyFiles(t *testing.T) (string, string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	dir := t.TempDir()
	privPath := filepath.Join(dir, "jwt.key")
	pubPath := filepath.Join(dir, "jwt.pub")
	require.NoError(t, os.WriteFile(privPath, priv, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pub, 0o644))
	return privPath, pubPath
}

func TestSignersFromSameKeyFilesShareSessions(t *testing.T) {
	privPath, pubPath := writeKeyFiles(t)

	first, err := NewSignerFromFiles(privPath, pubPath, time.Hour)
	require.NoError(t, err)
	second, err := NewSignerFromFiles(privPath, pubPath, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, second.TTL())

	id := uuid.New()
	token, err := first.Issue(id)
	require.NoError(t, err)
	got, err := second.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestNewSignerFromFilesRejectsBadKeys(t *testing.T) {
	privPath, pubPath := writeKeyFiles(t)

	_, err := NewSignerFromFiles(filepath.Join(t.TempDir(), "missing"), pubPath, 0)
	assert.Error(t, err)

	short := filepath.Join(t.TempDir(), "short.key")
	require.NoError(t, os.WriteFile(short, []byte("too short"), 0o600))
	_, err = NewSignerFromFiles(short, pubPath, 0)
	assert.Error(t, err)

	_, err = NewSignerFromFiles(privPath, privPath, 0)
	assert.Error(t, err)
}

package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hundredminds/backend/internal/database/testutil"
	"github.com/hundredminds/backend/internal/models"
	"github.com/hundredminds/backend/internal/repository"
	"github.com/hundredminds/backend/pkg/crypto"
	appErrors "github.com/hundredminds/backend/pkg/errors"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentOTP struct {
	Email string
	Code  string
}

type sentReset struct {
	Email string
	URL   string
}

type recordingSender struct {
	mu     sync.Mutex
	otps   []sentOTP
	resets []sentReset
	err    error
}

func (s *recordingSender) SendOTP(_ context.Context, user *models.User, code string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otps = append(s.otps, sentOTP{Email: user.Email, Code: code})
	return s.err
}

func (s *recordingSender) SendPasswordReset(_ context.Context, user *models.User, url string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets = append(s.resets, sentReset{Email: user.Email, URL: url})
	return s.err
}

func (s *recordingSender) lastOTP(t *testing.T) sentOTP {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.otps)
	return s.otps[len(s.otps)-1]
}

func (s *recordingSender) lastReset(t *testing.T) sentReset {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.resets)
	return s.resets[len(s.resets)-1]
}

type authEnv struct {
	clock  *testClock
	users  *repository.UserRepository
	tokens *TokenCodec
	sender *recordingSender
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	users, err := repository.NewUserRepository(db)
	require.NoError(t, err)

	clock := newTestClock()
	tokens, err := NewTokenCodec(testTokenConfig(clock.Now))
	require.NoError(t, err)

	return &authEnv{
		clock:  clock,
		users:  users,
		tokens: tokens,
		sender: &recordingSender{},
	}
}

func (e *authEnv) createUser(t *testing.T, email, password string) *models.User {
	t.Helper()

	hash, err := crypto.HashPassword(password)
	require.NoError(t, err)

	user := &models.User{
		Username: email[:len(email)-len("@example.com")],
		Email:    email,
		Password: hash,
	}
	require.NoError(t, e.users.Create(context.Background(), user))
	return user
}

func (e *authEnv) reload(t *testing.T, id string) *models.User {
	t.Helper()
	user, err := e.users.FindByID(context.Background(), id)
	require.NoError(t, err)
	return user
}

func requireAppError(t *testing.T, err error, status int, message string) {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	require.Equal(t, status, appErr.StatusCode)
	if message != "" {
		require.Equal(t, message, appErr.Message)
	}
}

package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hundredminds/backend/internal/auth"
	"github.com/hundredminds/backend/internal/database/testutil"
	"github.com/hundredminds/backend/internal/models"
	"github.com/hundredminds/backend/internal/repository"
	"github.com/hundredminds/backend/pkg/crypto"
	apperrors "github.com/hundredminds/backend/pkg/errors"
)

type sentInvite struct {
	To   string
	From string
	Team string
	URL  string
}

type recordingNotifier struct {
	mu       sync.Mutex
	invites  []sentInvite
	joined   []string
	removed  []string
	welcomed []string
	err      error
}

func (n *recordingNotifier) SendTeamInvite(_ context.Context, invitee, inviter *models.User, team *models.Team, url string, _ time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invites = append(n.invites, sentInvite{To: invitee.Email, From: inviter.Email, Team: team.Name, URL: url})
	return n.err
}

func (n *recordingNotifier) SendTeamInviteSuccess(_ context.Context, owner, member *models.User, _ *models.Team) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.joined = append(n.joined, owner.Email+"<-"+member.Email)
	return n.err
}

func (n *recordingNotifier) SendMemberRemoved(_ context.Context, member *models.User, _ *models.Team) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.removed = append(n.removed, member.Email)
	return n.err
}

func (n *recordingNotifier) SendWelcome(_ context.Context, user *models.User) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcomed = append(n.welcomed, user.Email)
	return n.err
}

func (n *recordingNotifier) lastInviteToken(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.invites)
	url := n.invites[len(n.invites)-1].URL
	const prefix = "https://app.example.com/teams/join/"
	require.True(t, strings.HasPrefix(url, prefix), url)
	return strings.TrimPrefix(url, prefix)
}

type serviceEnv struct {
	now      time.Time
	db       *gorm.DB
	users    *repository.UserRepository
	teams    *repository.TeamRepository
	tokens   *auth.TokenCodec
	notifier *recordingNotifier
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	users, err := repository.NewUserRepository(db)
	require.NoError(t, err)
	teams, err := repository.NewTeamRepository(db)
	require.NoError(t, err)

	env := &serviceEnv{
		now:      time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC),
		db:       db,
		users:    users,
		teams:    teams,
		notifier: &recordingNotifier{},
	}
	env.tokens, err = auth.NewTokenCodec(auth.TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		GeneralSecret: "general-secret",
		Clock:         env.clock,
	})
	require.NoError(t, err)
	return env
}

func (e *serviceEnv) clock() time.Time { return e.now }

func (e *serviceEnv) createUser(t *testing.T, username string) *models.User {
	t.Helper()
	hash, err := crypto.HashPassword("s3cretpass")
	require.NoError(t, err)
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: hash,
	}
	require.NoError(t, e.users.Create(context.Background(), user))
	return user
}

func requireAppError(t *testing.T, err error, status int, message string) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	require.Equal(t, status, appErr.StatusCode)
	if message != "" {
		require.Equal(t, message, appErr.Message)
	}
}

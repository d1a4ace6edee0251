package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/hundredminds/backend/internal/database/testutil"
	"github.com/hundredminds/backend/internal/models"
	"github.com/hundredminds/backend/internal/repository"
)

var now = time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	users, err := repository.NewUserRepository(db)
	require.NoError(t, err)
	teams, err := repository.NewTeamRepository(db)
	require.NoError(t, err)
	ctx := context.Background()

	stale := &models.User{Username: "stale", Email: "stale@example.com", Password: "hash"}
	fresh := &models.User{Username: "fresh", Email: "fresh@example.com", Password: "hash"}
	require.NoError(t, users.Create(ctx, stale))
	require.NoError(t, users.Create(ctx, fresh))

	require.NoError(t, users.StoreOTP(ctx, stale.ID, "111111", now.Add(-time.Minute)))
	require.NoError(t, users.StoreOTP(ctx, fresh.ID, "222222", now.Add(time.Minute)))
	require.NoError(t, users.StartPasswordReset(ctx, stale.ID, "old-secret", now.Add(-time.Hour)))
	require.NoError(t, users.StartPasswordReset(ctx, fresh.ID, "new-secret", now.Add(time.Hour)))

	team := &models.Team{Name: "Compilers", OwnerID: stale.ID}
	_, err = teams.CreateTeamWithOwner(ctx, team)
	require.NoError(t, err)
	require.NoError(t, teams.CreateTeamInvite(ctx, &models.TeamInvite{
		TeamID: team.ID, InviterID: stale.ID, InviteeID: fresh.ID,
		InviteLink: "expired-link", InviteLinkExpires: now.Add(-time.Hour),
	}))
	require.NoError(t, teams.CreateTeamInvite(ctx, &models.TeamInvite{
		TeamID: team.ID, InviterID: stale.ID, InviteeID: fresh.ID,
		InviteLink: "live-link", InviteLinkExpires: now.Add(time.Hour),
	}))

	c, err := NewCleaner(users, teams, WithNow(func() time.Time { return now }))
	require.NoError(t, err)

	stats, err := c.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, Stats{OTPs: 1, ResetTokens: 1, Invites: 1}, stats)

	got, err := users.FindByID(ctx, stale.ID)
	require.NoError(t, err)
	require.Empty(t, got.OTP)
	require.Nil(t, got.OTPExpires)
	require.Empty(t, got.PasswordResetToken)

	got, err = users.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, "222222", got.OTP)
	require.Equal(t, "new-secret", got.PasswordResetToken)

	var remaining []models.TeamInvite
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, "live-link", remaining[0].InviteLink)

	stats, err = c.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, Stats{}, stats)
}

type failingStore struct{ err error }

func (f failingStore) ClearExpiredOTPs(context.Context, time.Time) (int64, error) {
	return 0, f.err
}

func (f failingStore) ClearExpiredResetTokens(context.Context, time.Time) (int64, error) {
	return 2, nil
}

func (f failingStore) DeleteExpiredInvites(context.Context, time.Time) (int64, error) {
	return 0, f.err
}

func TestCleanerRunOnceCollectsErrors(t *testing.T) {
	store := failingStore{err: errors.New("db gone")}
	c, err := NewCleaner(store, store)
	require.NoError(t, err)

	stats, err := c.RunOnce(context.Background())
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 2)
	require.EqualValues(t, 2, stats.ResetTokens)
}

func TestCleanerStartRegistersJobs(t *testing.T) {
	store := failingStore{}
	scheduler := cron.New(cron.WithLogger(cron.DiscardLogger))
	c, err := NewCleaner(store, store, WithCron(scheduler), WithSchedules("@every 1m", "", "@weekly"))
	require.NoError(t, err)

	require.NoError(t, c.Start())
	require.Len(t, scheduler.Entries(), 3)
	<-c.Stop().Done()

	bad, err := NewCleaner(store, store, WithSchedules("not a schedule", "", ""))
	require.NoError(t, err)
	require.Error(t, bad.Start())
}

func TestNewCleanerRequiresStores(t *testing.T) {
	_, err := NewCleaner(nil, failingStore{})
	require.Error(t, err)
}

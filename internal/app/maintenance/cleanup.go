package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hundredminds/backend/pkg/logger"
	"github.com/hundredminds/backend/pkg/metrics"
)

const (
	defaultOTPSpec    = "@every 10m"
	defaultResetSpec  = "@hourly"
	defaultInviteSpec = "@daily"

	jobOTP    = "expired_otps"
	jobReset  = "expired_reset_tokens"
	jobInvite = "expired_invites"
)

// UserCleanup clears expired secrets stored on user rows.
type UserCleanup interface {
	ClearExpiredOTPs(ctx context.Context, now time.Time) (int64, error)
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// InviteCleanup removes invitations nobody redeemed in time.
type InviteCleanup interface {
	DeleteExpiredInvites(ctx context.Context, now time.Time) (int64, error)
}

// Cleaner coordinates background maintenance: clearing expired sign-in codes,
// dropping stale password reset secrets and deleting unused expired invites.
type Cleaner struct {
	users   UserCleanup
	invites InviteCleanup
	cron    *cron.Cron
	now     func() time.Time
	log     *zap.Logger

	otpSchedule    string
	resetSchedule  string
	inviteSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithSchedules overrides the cron specifications. Empty values keep the defaults.
func WithSchedules(otp, reset, invite string) Option {
	return func(cleaner *Cleaner) {
		if otp != "" {
			cleaner.otpSchedule = otp
		}
		if reset != "" {
			cleaner.resetSchedule = reset
		}
		if invite != "" {
			cleaner.inviteSchedule = invite
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(users UserCleanup, invites InviteCleanup, opts ...Option) (*Cleaner, error) {
	if users == nil || invites == nil {
		return nil, errors.New("maintenance: user and invite stores are required")
	}
	cleaner := &Cleaner{
		users:          users,
		invites:        invites,
		now:            time.Now,
		otpSchedule:    defaultOTPSpec,
		resetSchedule:  defaultResetSpec,
		inviteSchedule: defaultInviteSpec,
		log:            logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner, nil
}

// Start registers the cleanup jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	jobs := []struct {
		spec string
		name string
		run  func(context.Context, time.Time) (int64, error)
	}{
		{c.otpSchedule, jobOTP, c.users.ClearExpiredOTPs},
		{c.resetSchedule, jobReset, c.users.ClearExpiredResetTokens},
		{c.inviteSchedule, jobInvite, c.invites.DeleteExpiredInvites},
	}

	for _, job := range jobs {
		job := job
		if _, err := c.cron.AddFunc(job.spec, func() {
			_, _ = c.run(context.Background(), job.name, job.run)
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler. The returned context is done once running jobs finish.
func (c *Cleaner) Stop() context.Context {
	return c.cron.Stop()
}

// Stats captures the number of records touched by each job.
type Stats struct {
	OTPs        int64
	ResetTokens int64
	Invites     int64
}

// RunOnce executes every cleanup routine sequentially, collecting all failures.
func (c *Cleaner) RunOnce(ctx context.Context) (Stats, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		stats Stats
		errs  error
		n     int64
		err   error
	)

	n, err = c.run(ctx, jobOTP, c.users.ClearExpiredOTPs)
	stats.OTPs = n
	errs = multierr.Append(errs, err)

	n, err = c.run(ctx, jobReset, c.users.ClearExpiredResetTokens)
	stats.ResetTokens = n
	errs = multierr.Append(errs, err)

	n, err = c.run(ctx, jobInvite, c.invites.DeleteExpiredInvites)
	stats.Invites = n
	errs = multierr.Append(errs, err)

	return stats, errs
}

func (c *Cleaner) run(ctx context.Context, name string, job func(context.Context, time.Time) (int64, error)) (int64, error) {
	n, err := job(ctx, c.now().UTC())
	if err != nil {
		metrics.MaintenanceRuns.WithLabelValues(name, "error").Inc()
		c.log.Warn("maintenance job failed", zap.String("job", name), zap.Error(err))
		return 0, err
	}
	metrics.MaintenanceRuns.WithLabelValues(name, "ok").Inc()
	if n > 0 {
		c.log.Info("maintenance job cleaned records", zap.String("job", name), zap.Int64("count", n))
	}
	return n, nil
}

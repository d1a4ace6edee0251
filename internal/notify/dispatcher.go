package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hundredminds/backend/internal/models"
	"github.com/hundredminds/backend/pkg/logger"
	"github.com/hundredminds/backend/pkg/mail"
	"github.com/hundredminds/backend/pkg/metrics"
)

// Publisher hands a notification to a delivery transport.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// MailPublisher renders and delivers notifications in-process.
type MailPublisher struct {
	renderer *Renderer
	mailer   mail.Mailer
}

// NewMailPublisher builds the direct transport.
func NewMailPublisher(renderer *Renderer, mailer mail.Mailer) (*MailPublisher, error) {
	if renderer == nil || mailer == nil {
		return nil, errors.New("notify: renderer and mailer are required")
	}
	return &MailPublisher{renderer: renderer, mailer: mailer}, nil
}

// Publish renders n and sends it.
func (p *MailPublisher) Publish(ctx context.Context, n Notification) error {
	msg, err := p.renderer.Render(n)
	if err != nil {
		return err
	}
	if err := p.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: send %s to %s: %w", n.Kind, n.To, err)
	}
	return nil
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the time source used to stamp notifications.
func WithClock(clock func() time.Time) Option {
	return func(d *Dispatcher) {
		if clock != nil {
			d.now = clock
		}
	}
}

// Dispatcher builds notifications for domain events and publishes them.
// Delivery failures are logged and counted; they are returned for callers
// that want them but never retried here.
type Dispatcher struct {
	publisher Publisher
	now       func() time.Time
	log       *zap.Logger
}

// NewDispatcher wires the dispatcher to a transport.
func NewDispatcher(publisher Publisher, opts ...Option) (*Dispatcher, error) {
	if publisher == nil {
		return nil, errors.New("notify: publisher is required")
	}
	d := &Dispatcher{
		publisher: publisher,
		now:       time.Now,
		log:       logger.WithModule("notify"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// SendOTP mails a sign-in code.
func (d *Dispatcher) SendOTP(ctx context.Context, user *models.User, code string, ttl time.Duration) error {
	return d.publish(ctx, KindOTP, user, map[string]string{
		"code":       code,
		"expires_in": humanDuration(ttl),
	})
}

// SendPasswordReset mails a password reset link.
func (d *Dispatcher) SendPasswordReset(ctx context.Context, user *models.User, resetURL string, ttl time.Duration) error {
	return d.publish(ctx, KindPasswordReset, user, map[string]string{
		"url":        resetURL,
		"expires_in": humanDuration(ttl),
	})
}

// SendTeamInvite mails an invitation link to invitee.
func (d *Dispatcher) SendTeamInvite(ctx context.Context, invitee, inviter *models.User, team *models.Team, inviteURL string, ttl time.Duration) error {
	return d.publish(ctx, KindTeamInvite, invitee, map[string]string{
		"inviter":    displayName(inviter),
		"team":       teamName(team),
		"url":        inviteURL,
		"expires_in": humanDuration(ttl),
	})
}

// SendTeamInviteSuccess tells the team owner an invitee joined.
func (d *Dispatcher) SendTeamInviteSuccess(ctx context.Context, owner, member *models.User, team *models.Team) error {
	return d.publish(ctx, KindTeamInviteSuccess, owner, map[string]string{
		"member": displayName(member),
		"team":   teamName(team),
	})
}

// SendMemberRemoved tells a member they were removed from a team.
func (d *Dispatcher) SendMemberRemoved(ctx context.Context, member *models.User, team *models.Team) error {
	return d.publish(ctx, KindMemberRemoved, member, map[string]string{
		"team": teamName(team),
	})
}

// SendWelcome greets a newly registered user.
func (d *Dispatcher) SendWelcome(ctx context.Context, user *models.User) error {
	return d.publish(ctx, KindWelcome, user, map[string]string{
		"username": user.Username,
	})
}

func (d *Dispatcher) publish(ctx context.Context, kind Kind, to *models.User, data map[string]string) error {
	if to == nil || to.Email == "" {
		return fmt.Errorf("notify: %s notification has no recipient", kind)
	}

	n := newNotification(kind, to.Email, displayName(to), data, d.now().UTC())
	if err := d.publisher.Publish(ctx, n); err != nil {
		metrics.Notifications.WithLabelValues(string(kind), "failed").Inc()
		d.log.Warn("notification delivery failed",
			zap.String("kind", string(kind)),
			zap.String("notification_id", n.ID),
			zap.String("user_id", to.ID),
			zap.Error(err),
		)
		return err
	}

	metrics.Notifications.WithLabelValues(string(kind), "sent").Inc()
	return nil
}

func displayName(user *models.User) string {
	if user == nil {
		return ""
	}
	if user.FirstName != "" {
		return user.FirstName
	}
	return user.Username
}

func teamName(team *models.Team) string {
	if team == nil {
		return ""
	}
	return team.Name
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "a short while"
	case d%(24*time.Hour) == 0:
		return plural(int(d/(24*time.Hour)), "day")
	case d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

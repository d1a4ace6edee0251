package services

import (
	"context"
	"time"

	"github.com/hundredminds/backend/internal/models"
)

// TeamNotifier delivers the team lifecycle emails.
type TeamNotifier interface {
	SendTeamInvite(ctx context.Context, invitee, inviter *models.User, team *models.Team, inviteURL string, ttl time.Duration) error
	SendTeamInviteSuccess(ctx context.Context, owner, member *models.User, team *models.Team) error
	SendMemberRemoved(ctx context.Context, member *models.User, team *models.Team) error
}

// WelcomeNotifier greets new accounts.
type WelcomeNotifier interface {
	SendWelcome(ctx context.Context, user *models.User) error
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

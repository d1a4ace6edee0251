package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hundredminds/backend/internal/auth"
	"github.com/hundredminds/backend/internal/models"
	"github.com/hundredminds/backend/internal/repository"
	"github.com/hundredminds/backend/pkg/crypto"
	apperrors "github.com/hundredminds/backend/pkg/errors"
	"github.com/hundredminds/backend/pkg/logger"
	"github.com/hundredminds/backend/pkg/metrics"
)

const (
	defaultInviteExpiry     = 7 * 24 * time.Hour
	defaultInviteTokenBytes = 32
)

var (
	// ErrInviteNotFound indicates no live invite matches the link.
	ErrInviteNotFound = apperrors.NewNotFound("Invite not found or expired")
	// ErrInviteNotForYou is returned when someone other than the invitee opens a link.
	ErrInviteNotForYou = apperrors.NewForbidden("This invite was sent to another user")
	// ErrInviteAlreadyUsed signals that the invite was already accepted or declined.
	ErrInviteAlreadyUsed = apperrors.NewForbidden("This invite link has already been used")
	// ErrAlreadyTeamMember is returned when the invitee already belongs to the team.
	ErrAlreadyTeamMember = apperrors.NewBadRequest("User is already a member of this team")
)

// InviteOption customises InviteService behaviour.
type InviteOption func(*InviteService)

// WithInviteBaseURL configures the frontend URL used to create invite hyperlinks.
func WithInviteBaseURL(url string) InviteOption {
	return func(s *InviteService) {
		s.baseURL = strings.TrimRight(strings.TrimSpace(url), "/")
	}
}

// WithInviteExpiry overrides the invite lifetime.
func WithInviteExpiry(d time.Duration) InviteOption {
	return func(s *InviteService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithInviteClock injects a custom clock primarily for testing.
func WithInviteClock(clock func() time.Time) InviteOption {
	return func(s *InviteService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// InviteService issues and redeems team invitations.
type InviteService struct {
	teams    *repository.TeamRepository
	users    *repository.UserRepository
	tokens   *auth.TokenCodec
	notifier TeamNotifier
	baseURL  string
	expiry   time.Duration
	now      func() time.Time
	log      *zap.Logger
}

// NewInviteService constructs an InviteService with the provided dependencies.
func NewInviteService(teams *repository.TeamRepository, users *repository.UserRepository, tokens *auth.TokenCodec, notifier TeamNotifier, opts ...InviteOption) (*InviteService, error) {
	if teams == nil || users == nil {
		return nil, errors.New("invite service: repositories are required")
	}
	if tokens == nil {
		return nil, errors.New("invite service: token codec is required")
	}
	if notifier == nil {
		return nil, errors.New("invite service: notifier is required")
	}

	service := &InviteService{
		teams:    teams,
		users:    users,
		tokens:   tokens,
		notifier: notifier,
		expiry:   defaultInviteExpiry,
		now:      time.Now,
		log:      logger.WithModule("teams"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// CreateInvite invites the user registered under email to the inviter's team.
// The invitee gets a pending membership (a rejected or removed one is reopened)
// and an email carrying a signed, single-use link.
func (s *InviteService) CreateInvite(ctx context.Context, inviterID, teamID, email string) (*models.TeamInvite, error) {
	ctx = ensureContext(ctx)

	team, err := s.teams.GetTeam(ctx, teamID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("invite service: load team: %w", err)
	}
	if team.IsDeleted {
		return nil, ErrTeamNotFound
	}
	if team.OwnerID != inviterID {
		return nil, ErrNotTeamOwner
	}

	invitee, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("No user found with that email")
		}
		return nil, fmt.Errorf("invite service: load invitee: %w", err)
	}
	if invitee.ID == inviterID {
		return nil, apperrors.NewBadRequest("You cannot invite yourself")
	}

	secret, err := crypto.GenerateToken(defaultInviteTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("invite service: generate secret: %w", err)
	}
	signed, err := s.tokens.SignSecret(secret, s.expiry)
	if err != nil {
		return nil, fmt.Errorf("invite service: sign secret: %w", err)
	}

	invite := &models.TeamInvite{
		TeamID:            team.ID,
		InviterID:         inviterID,
		InviteeID:         invitee.ID,
		InviteLink:        secret,
		InviteLinkExpires: s.now().UTC().Add(s.expiry),
	}

	err = s.teams.Transaction(ctx, func(tx *repository.TeamRepository) error {
		if err := openMembership(ctx, tx, team.ID, invitee.ID); err != nil {
			return err
		}
		return tx.CreateTeamInvite(ctx, invite)
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, fmt.Errorf("invite service: create invite: %w", err)
	}

	metrics.TeamInvites.WithLabelValues("created").Inc()

	inviter, err := s.users.FindByID(ctx, inviterID)
	if err != nil {
		s.log.Warn("invite created but inviter could not be loaded", zap.String("invite_id", invite.ID), zap.Error(err))
		inviter = &models.User{}
	}
	if err := s.notifier.SendTeamInvite(ctx, invitee, inviter, team, s.inviteLink(signed), s.expiry); err != nil {
		s.log.Warn("team invite email failed", zap.String("invite_id", invite.ID), zap.Error(err))
	}
	return invite, nil
}

// openMembership leaves the invitee with a pending membership row.
func openMembership(ctx context.Context, tx *repository.TeamRepository, teamID, userID string) error {
	member, err := tx.FindMember(ctx, teamID, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return tx.AddTeamMember(ctx, &models.TeamMember{
			TeamID:        teamID,
			UserID:        userID,
			MemberType:    models.MemberTypeRegular,
			StatusRequest: models.MembershipPending,
		})
	case err != nil:
		return err
	case member.Active():
		return ErrAlreadyTeamMember
	case member.IsDeleted || member.StatusRequest == models.MembershipRejected:
		return tx.UpdateTeamMember(ctx, member.ID, map[string]any{
			"status_request": models.MembershipPending,
			"member_type":    models.MemberTypeRegular,
			"is_deleted":     false,
		})
	default:
		return nil
	}
}

// JoinTeam redeems an invite link for the caller. Concurrent redemptions of one
// link are settled by the repository; only one of them succeeds.
func (s *InviteService) JoinTeam(ctx context.Context, callerID, link string) (*models.Team, error) {
	ctx = ensureContext(ctx)

	invite, team, member, err := s.resolveInvite(ctx, callerID, link)
	if err != nil {
		return nil, err
	}
	if member.StatusRequest == models.MembershipAccepted {
		return nil, ErrAlreadyTeamMember
	}

	if err := s.teams.AcceptInvitation(ctx, invite.ID, member.ID); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrInviteAlreadyUsed
		}
		return nil, fmt.Errorf("invite service: accept invite: %w", err)
	}
	metrics.TeamInvites.WithLabelValues("accepted").Inc()

	s.notifyJoined(ctx, team, callerID)
	return team, nil
}

// DeclineInvite rejects an invite link for the caller.
func (s *InviteService) DeclineInvite(ctx context.Context, callerID, link string) error {
	ctx = ensureContext(ctx)

	invite, _, member, err := s.resolveInvite(ctx, callerID, link)
	if err != nil {
		return err
	}
	if member.StatusRequest == models.MembershipAccepted {
		return ErrAlreadyTeamMember
	}

	if err := s.teams.DeclineInvitation(ctx, invite.ID, member.ID); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return ErrInviteAlreadyUsed
		}
		return fmt.Errorf("invite service: decline invite: %w", err)
	}
	metrics.TeamInvites.WithLabelValues("declined").Inc()
	return nil
}

func (s *InviteService) resolveInvite(ctx context.Context, callerID, link string) (*models.TeamInvite, *models.Team, *models.TeamMember, error) {
	secret, err := s.tokens.VerifySecret(strings.TrimSpace(link))
	if err != nil {
		return nil, nil, nil, apperrors.NewUnauthorized("Invalid or expired invite link").WithInternal(err)
	}

	invite, err := s.teams.FindByInviteLink(ctx, secret, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, nil, ErrInviteNotFound
		}
		return nil, nil, nil, fmt.Errorf("invite service: load invite: %w", err)
	}
	if invite.InviteeID != callerID {
		return nil, nil, nil, ErrInviteNotForYou
	}
	if invite.LinkIsUsed {
		return nil, nil, nil, ErrInviteAlreadyUsed
	}

	team, err := s.teams.GetTeam(ctx, invite.TeamID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, nil, ErrTeamNotFound
		}
		return nil, nil, nil, fmt.Errorf("invite service: load team: %w", err)
	}
	if team.IsDeleted {
		return nil, nil, nil, ErrTeamNotFound
	}

	member, err := s.teams.FindMember(ctx, team.ID, callerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, nil, ErrTeamMemberNotFound
		}
		return nil, nil, nil, fmt.Errorf("invite service: load membership: %w", err)
	}
	if member.IsDeleted {
		return nil, nil, nil, ErrTeamMemberNotFound
	}
	return invite, team, member, nil
}

func (s *InviteService) notifyJoined(ctx context.Context, team *models.Team, memberID string) {
	owner, err := s.users.FindByID(ctx, team.OwnerID)
	if err != nil {
		s.log.Warn("invite accepted but owner could not be loaded", zap.String("team_id", team.ID), zap.Error(err))
		return
	}
	member, err := s.users.FindByID(ctx, memberID)
	if err != nil {
		s.log.Warn("invite accepted but member could not be loaded", zap.String("team_id", team.ID), zap.Error(err))
		return
	}
	if err := s.notifier.SendTeamInviteSuccess(ctx, owner, member, team); err != nil {
		s.log.Warn("invite accepted email failed", zap.String("team_id", team.ID), zap.Error(err))
	}
}

func (s *InviteService) inviteLink(signed string) string {
	return s.baseURL + "/teams/join/" + signed
}

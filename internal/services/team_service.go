package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hundredminds/backend/internal/models"
	"github.com/hundredminds/backend/internal/repository"
	apperrors "github.com/hundredminds/backend/pkg/errors"
	"github.com/hundredminds/backend/pkg/logger"
)

var (
	// ErrTeamNotFound indicates the requested team does not exist or was deleted.
	ErrTeamNotFound = apperrors.NewNotFound("Team not found")
	// ErrNotTeamOwner is returned when a non-owner attempts an owner-only action.
	ErrNotTeamOwner = apperrors.NewForbidden("Only the team owner can perform this action")
	// ErrNotTeamMember is returned when a non-member asks for team details.
	ErrNotTeamMember = apperrors.NewForbidden("You are not a member of this team")
	// ErrTeamMemberNotFound indicates the requested membership does not exist.
	ErrTeamMemberNotFound = apperrors.NewNotFound("User is not a member of the team")
)

// CreateTeamInput captures new team metadata.
type CreateTeamInput struct {
	Name        string
	Description string
}

// TeamDetails is a team together with its live memberships.
type TeamDetails struct {
	Team    *models.Team
	Members []models.TeamMember
}

// TeamService handles team lifecycle and membership management.
type TeamService struct {
	teams    *repository.TeamRepository
	users    *repository.UserRepository
	notifier TeamNotifier
	log      *zap.Logger
}

// NewTeamService constructs a TeamService instance.
func NewTeamService(teams *repository.TeamRepository, users *repository.UserRepository, notifier TeamNotifier) (*TeamService, error) {
	if teams == nil || users == nil {
		return nil, errors.New("team service: repositories are required")
	}
	if notifier == nil {
		return nil, errors.New("team service: notifier is required")
	}
	return &TeamService{
		teams:    teams,
		users:    users,
		notifier: notifier,
		log:      logger.WithModule("teams"),
	}, nil
}

// Create registers a new team owned by ownerID.
func (s *TeamService) Create(ctx context.Context, ownerID string, input CreateTeamInput) (*models.Team, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("team name is required")
	}

	team := &models.Team{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		OwnerID:     ownerID,
	}
	if _, err := s.teams.CreateTeamWithOwner(ctx, team); err != nil {
		return nil, fmt.Errorf("team service: create team: %w", err)
	}
	return team, nil
}

// List returns the live teams the user has joined, owned teams included.
func (s *TeamService) List(ctx context.Context, userID string) ([]models.Team, error) {
	teams, err := s.teams.ListTeamsForUser(ensureContext(ctx), userID)
	if err != nil {
		return nil, err
	}
	return teams, nil
}

// Get returns a team and its members. Only accepted members may look.
func (s *TeamService) Get(ctx context.Context, requesterID, teamID string) (*TeamDetails, error) {
	ctx = ensureContext(ctx)

	team, err := s.liveTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, team.ID, requesterID); err != nil {
		return nil, err
	}

	members, err := s.teams.ListMembers(ctx, team.ID)
	if err != nil {
		return nil, err
	}
	return &TeamDetails{Team: team, Members: members}, nil
}

// ListMembers returns the live memberships of a team the requester belongs to.
func (s *TeamService) ListMembers(ctx context.Context, requesterID, teamID string) ([]models.TeamMember, error) {
	details, err := s.Get(ctx, requesterID, teamID)
	if err != nil {
		return nil, err
	}
	return details.Members, nil
}

// Delete soft-deletes a team. Only its owner may do so.
func (s *TeamService) Delete(ctx context.Context, requesterID, teamID string) error {
	ctx = ensureContext(ctx)

	team, err := s.liveTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if team.OwnerID != requesterID {
		return ErrNotTeamOwner
	}

	if err := s.teams.SoftDeleteTeam(ctx, team.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTeamNotFound
		}
		return fmt.Errorf("team service: delete team: %w", err)
	}
	return nil
}

// RemoveMember drops a member from the owner's team and tells them by email.
func (s *TeamService) RemoveMember(ctx context.Context, requesterID, teamID, userID string) error {
	ctx = ensureContext(ctx)

	team, err := s.liveTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if team.OwnerID != requesterID {
		return ErrNotTeamOwner
	}
	if userID == team.OwnerID {
		return apperrors.NewBadRequest("The team owner cannot be removed")
	}

	member, err := s.teams.FindMember(ctx, team.ID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTeamMemberNotFound
		}
		return fmt.Errorf("team service: load member: %w", err)
	}
	if member.IsDeleted {
		return ErrTeamMemberNotFound
	}

	if err := s.teams.RemoveTeamMember(ctx, member); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTeamMemberNotFound
		}
		return fmt.Errorf("team service: remove member: %w", err)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		s.log.Warn("member removed but user could not be loaded for notification",
			zap.String("team_id", team.ID), zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	if err := s.notifier.SendMemberRemoved(ctx, user, team); err != nil {
		s.log.Warn("member removed email failed", zap.String("team_id", team.ID), zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}

func (s *TeamService) liveTeam(ctx context.Context, teamID string) (*models.Team, error) {
	team, err := s.teams.GetTeam(ctx, teamID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("team service: load team: %w", err)
	}
	if team.IsDeleted {
		return nil, ErrTeamNotFound
	}
	return team, nil
}

func (s *TeamService) requireMember(ctx context.Context, teamID, userID string) error {
	member, err := s.teams.FindMember(ctx, teamID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotTeamMember
		}
		return fmt.Errorf("team service: load membership: %w", err)
	}
	if !member.Active() {
		return ErrNotTeamMember
	}
	return nil
}

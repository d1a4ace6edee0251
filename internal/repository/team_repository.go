package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/hundredminds/backend/internal/models"
)

// TeamRepository is the relational store for teams, memberships and invitations.
type TeamRepository struct {
	db *gorm.DB
}

// NewTeamRepository constructs a repository backed by db.
func NewTeamRepository(db *gorm.DB) (*TeamRepository, error) {
	if db == nil {
		return nil, errors.New("team repository: db is required")
	}
	return &TeamRepository{db: db}, nil
}

// Transaction runs fn against a repository bound to a single database transaction.
func (r *TeamRepository) Transaction(ctx context.Context, fn func(tx *TeamRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&TeamRepository{db: tx})
	})
}

// GetTeam loads a team by id, deleted teams included.
func (r *TeamRepository) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	var team models.Team
	if err := r.db.WithContext(ctx).Take(&team, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &team, nil
}

// CreateTeamWithOwner inserts the team and its accepted owner membership atomically.
func (r *TeamRepository) CreateTeamWithOwner(ctx context.Context, team *models.Team) (*models.TeamMember, error) {
	if team == nil || team.OwnerID == "" {
		return nil, errors.New("team repository: team with owner is required")
	}

	var owner models.TeamMember
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Owner", "Members").Create(team).Error; err != nil {
			return translate(err)
		}
		owner = models.TeamMember{
			TeamID:        team.ID,
			UserID:        team.OwnerID,
			MemberType:    models.MemberTypeOwner,
			StatusRequest: models.MembershipAccepted,
		}
		return translate(tx.Omit("User").Create(&owner).Error)
	})
	if err != nil {
		return nil, err
	}
	return &owner, nil
}

// ListTeamsForUser returns live teams where the user holds an accepted membership.
func (r *TeamRepository) ListTeamsForUser(ctx context.Context, userID string) ([]models.Team, error) {
	var teams []models.Team
	err := r.db.WithContext(ctx).
		Joins("JOIN team_members ON team_members.team_id = teams.id").
		Where("team_members.user_id = ? AND team_members.status_request = ? AND team_members.is_deleted = ?",
			userID, models.MembershipAccepted, false).
		Where("teams.is_deleted = ?", false).
		Order("teams.created_at ASC").
		Find(&teams).Error
	if err != nil {
		return nil, fmt.Errorf("team repository: list teams: %w", err)
	}
	return teams, nil
}

// FindMember loads the membership row for (teamID, userID), deleted rows included.
func (r *TeamRepository) FindMember(ctx context.Context, teamID, userID string) (*models.TeamMember, error) {
	var member models.TeamMember
	err := r.db.WithContext(ctx).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Take(&member).Error
	if err != nil {
		return nil, translate(err)
	}
	return &member, nil
}

// AddTeamMember inserts a membership row.
func (r *TeamRepository) AddTeamMember(ctx context.Context, member *models.TeamMember) error {
	return translate(r.db.WithContext(ctx).Omit("User").Create(member).Error)
}

// UpdateTeamMember applies a partial update to a membership row.
func (r *TeamRepository) UpdateTeamMember(ctx context.Context, id string, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.TeamMember{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveTeamMember soft deletes a membership and revokes the member's unused
// invitations to the same team.
func (r *TeamRepository) RemoveTeamMember(ctx context.Context, member *models.TeamMember) error {
	if member == nil {
		return errors.New("team repository: member is required")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.TeamMember{}).
			Where("id = ? AND is_deleted = ?", member.ID, false).
			Update("is_deleted", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&models.TeamInvite{}).
			Where("team_id = ? AND invitee_id = ? AND link_is_used = ?", member.TeamID, member.UserID, false).
			Update("link_is_used", true).Error
	})
}

// ListMembers returns the live memberships of a team with their users.
func (r *TeamRepository) ListMembers(ctx context.Context, teamID string) ([]models.TeamMember, error) {
	var members []models.TeamMember
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("team_id = ? AND is_deleted = ?", teamID, false).
		Order("created_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("team repository: list members: %w", err)
	}
	return members, nil
}

// CreateTeamInvite inserts an invitation.
func (r *TeamRepository) CreateTeamInvite(ctx context.Context, invite *models.TeamInvite) error {
	return translate(r.db.WithContext(ctx).Omit("Team").Create(invite).Error)
}

// FindByInviteLink loads the invitation holding the raw secret, provided it has not expired at now.
func (r *TeamRepository) FindByInviteLink(ctx context.Context, link string, now time.Time) (*models.TeamInvite, error) {
	if link == "" {
		return nil, ErrNotFound
	}
	var invite models.TeamInvite
	err := r.db.WithContext(ctx).
		Where("invite_link = ? AND invite_link_expires > ?", link, now).
		Take(&invite).Error
	if err != nil {
		return nil, translate(err)
	}
	return &invite, nil
}

// AcceptInvitation marks the invite used and the membership accepted in one
// transaction. Each update is guarded on the state it expects; ErrStaleState
// means a concurrent request consumed the invite or accepted the membership.
func (r *TeamRepository) AcceptInvitation(ctx context.Context, inviteID, memberID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.TeamInvite{}).
			Where("id = ? AND link_is_used = ?", inviteID, false).
			Update("link_is_used", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleState
		}

		res = tx.Model(&models.TeamMember{}).
			Where("id = ? AND status_request <> ? AND is_deleted = ?", memberID, models.MembershipAccepted, false).
			Update("status_request", models.MembershipAccepted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleState
		}
		return nil
	})
}

// DeclineInvitation marks the invite used and the membership rejected in one transaction.
func (r *TeamRepository) DeclineInvitation(ctx context.Context, inviteID, memberID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.TeamInvite{}).
			Where("id = ? AND link_is_used = ?", inviteID, false).
			Update("link_is_used", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleState
		}

		res = tx.Model(&models.TeamMember{}).
			Where("id = ? AND status_request = ?", memberID, models.MembershipPending).
			Update("status_request", models.MembershipRejected)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleState
		}
		return nil
	})
}

// SoftDeleteTeam marks the team and all of its memberships deleted and
// invalidates outstanding invitations.
func (r *TeamRepository) SoftDeleteTeam(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Team{}).Where("id = ? AND is_deleted = ?", id, false).Update("is_deleted", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Model(&models.TeamMember{}).Where("team_id = ?", id).Update("is_deleted", true).Error; err != nil {
			return err
		}
		return tx.Model(&models.TeamInvite{}).
			Where("team_id = ? AND link_is_used = ?", id, false).
			Update("link_is_used", true).Error
	})
}

// DeleteExpiredInvites removes unused invitations whose link expired before now.
func (r *TeamRepository) DeleteExpiredInvites(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("link_is_used = ? AND invite_link_expires <= ?", false, now).
		Delete(&models.TeamInvite{})
	return res.RowsAffected, res.Error
}

package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hundredminds/backend/internal/models"
)

func newTeamService(t *testing.T, env *serviceEnv) *TeamService {
	t.Helper()
	svc, err := NewTeamService(env.teams, env.users, env.notifier)
	require.NoError(t, err)
	return svc
}

func TestTeamServiceCreateAndList(t *testing.T) {
	env := newServiceEnv(t)
	owner := env.createUser(t, "owner")
	other := env.createUser(t, "other")
	svc := newTeamService(t, env)
	ctx := context.Background()

	_, err := svc.Create(ctx, owner.ID, CreateTeamInput{Name: "  "})
	requireAppError(t, err, http.StatusBadRequest, "team name is required")

	team, err := svc.Create(ctx, owner.ID, CreateTeamInput{Name: " Compilers ", Description: "parsing club"})
	require.NoError(t, err)
	require.Equal(t, "Compilers", team.Name)
	require.Equal(t, owner.ID, team.OwnerID)

	teams, err := svc.List(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, teams, 1)

	teams, err = svc.List(ctx, other.ID)
	require.NoError(t, err)
	require.Empty(t, teams)

	details, err := svc.Get(ctx, owner.ID, team.ID)
	require.NoError(t, err)
	require.Len(t, details.Members, 1)
	require.Equal(t, models.MemberTypeOwner, details.Members[0].MemberType)
	require.Equal(t, models.MembershipAccepted, details.Members[0].StatusRequest)

	_, err = svc.Get(ctx, other.ID, team.ID)
	require.True(t, errors.Is(err, ErrNotTeamMember))

	_, err = svc.Get(ctx, owner.ID, "missing")
	requireAppError(t, err, http.StatusNotFound, "Team not found")
}

func TestTeamServiceDeleteRequiresOwner(t *testing.T) {
	env := newServiceEnv(t)
	owner := env.createUser(t, "owner")
	other := env.createUser(t, "other")
	svc := newTeamService(t, env)
	ctx := context.Background()

	team, err := svc.Create(ctx, owner.ID, CreateTeamInput{Name: "Compilers"})
	require.NoError(t, err)

	err = svc.Delete(ctx, other.ID, team.ID)
	requireAppError(t, err, http.StatusForbidden, ErrNotTeamOwner.Message)

	require.NoError(t, svc.Delete(ctx, owner.ID, team.ID))

	err = svc.Delete(ctx, owner.ID, team.ID)
	requireAppError(t, err, http.StatusNotFound, "")

	teams, err := svc.List(ctx, owner.ID)
	require.NoError(t, err)
	require.Empty(t, teams)
}

func TestTeamServiceRemoveMember(t *testing.T) {
	env := newServiceEnv(t)
	owner := env.createUser(t, "owner")
	member := env.createUser(t, "member")
	svc := newTeamService(t, env)
	ctx := context.Background()

	team, err := svc.Create(ctx, owner.ID, CreateTeamInput{Name: "Compilers"})
	require.NoError(t, err)
	require.NoError(t, env.teams.AddTeamMember(ctx, &models.TeamMember{
		TeamID:        team.ID,
		UserID:        member.ID,
		MemberType:    models.MemberTypeRegular,
		StatusRequest: models.MembershipAccepted,
	}))

	err = svc.RemoveMember(ctx, member.ID, team.ID, owner.ID)
	requireAppError(t, err, http.StatusForbidden, "")

	err = svc.RemoveMember(ctx, owner.ID, team.ID, owner.ID)
	requireAppError(t, err, http.StatusBadRequest, "The team owner cannot be removed")

	members, err := svc.ListMembers(ctx, member.ID, team.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	require.NoError(t, svc.RemoveMember(ctx, owner.ID, team.ID, member.ID))
	require.Equal(t, []string{"member@example.com"}, env.notifier.removed)

	members, err = svc.ListMembers(ctx, owner.ID, team.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)

	err = svc.RemoveMember(ctx, owner.ID, team.ID, member.ID)
	requireAppError(t, err, http.StatusNotFound, ErrTeamMemberNotFound.Message)
}

func TestTeamServiceRemoveMemberEmailFailureIsLogged(t *testing.T) {
	env := newServiceEnv(t)
	owner := env.createUser(t, "owner")
	member := env.createUser(t, "member")
	env.notifier.err = errors.New("smtp down")
	svc := newTeamService(t, env)
	ctx := context.Background()

	team, err := svc.Create(ctx, owner.ID, CreateTeamInput{Name: "Compilers"})
	require.NoError(t, err)
	require.NoError(t, env.teams.AddTeamMember(ctx, &models.TeamMember{
		TeamID:        team.ID,
		UserID:        member.ID,
		MemberType:    models.MemberTypeRegular,
		StatusRequest: models.MembershipAccepted,
	}))

	require.NoError(t, svc.RemoveMember(ctx, owner.ID, team.ID, member.ID))
	stored, err := env.teams.FindMember(ctx, team.ID, member.ID)
	require.NoError(t, err)
	require.True(t, stored.IsDeleted)
}

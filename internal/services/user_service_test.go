package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hundredminds/backend/internal/auth"
	"github.com/hundredminds/backend/internal/models"
	"github.com/hundredminds/backend/internal/storage"
	"github.com/hundredminds/backend/pkg/crypto"
)

type fakeAvatars struct {
	uploads []string
	removed []string
	err     error
}

func (f *fakeAvatars) Upload(_ context.Context, userID string, r io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	url := "https://cdn.example.com/avatars/" + userID + "/" + string(rune('a'+len(f.uploads))) + ".png"
	f.uploads = append(f.uploads, url)
	return url, nil
}

func (f *fakeAvatars) Remove(_ context.Context, url string) error {
	f.removed = append(f.removed, url)
	return nil
}

func newUserService(t *testing.T, env *serviceEnv, opts ...UserOption) *UserService {
	t.Helper()
	opts = append([]UserOption{WithUserClock(env.clock)}, opts...)
	svc, err := NewUserService(env.users, env.tokens, env.notifier, opts...)
	require.NoError(t, err)
	return svc
}

func TestSignup(t *testing.T) {
	env := newServiceEnv(t)
	svc := newUserService(t, env)
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{Username: "ada", Email: "ada@example.com", Password: "pw-one", ConfirmPassword: "pw-two"})
	requireAppError(t, err, http.StatusBadRequest, ErrPasswordMismatch.Message)

	_, err = svc.Signup(ctx, SignupInput{Username: "ada"})
	requireAppError(t, err, http.StatusBadRequest, "")

	user, err := svc.Signup(ctx, SignupInput{
		Username:        "ada",
		Email:           " Ada@Example.com ",
		Password:        "analytical",
		ConfirmPassword: "analytical",
		FirstName:       "Ada",
	})
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", user.Email)
	require.Equal(t, models.RoleUser, user.Role)
	require.NotEqual(t, "analytical", user.Password)
	require.True(t, crypto.VerifyPassword(user.Password, "analytical"))
	require.Equal(t, []string{"ada@example.com"}, env.notifier.welcomed)

	_, err = svc.Signup(ctx, SignupInput{Username: "other", Email: "ada@example.com", Password: "x", ConfirmPassword: "x"})
	requireAppError(t, err, http.StatusConflict, ErrUserExists.Message)

	_, err = svc.Signup(ctx, SignupInput{Username: "ADA", Email: "new@example.com", Password: "x", ConfirmPassword: "x"})
	requireAppError(t, err, http.StatusConflict, ErrUserExists.Message)
}

func TestSignupWelcomeFailureDoesNotFail(t *testing.T) {
	env := newServiceEnv(t)
	env.notifier.err = errors.New("smtp down")
	svc := newUserService(t, env)

	user, err := svc.Signup(context.Background(), SignupInput{Username: "ada", Email: "ada@example.com", Password: "x", ConfirmPassword: "x"})
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
}

func TestChangePassword(t *testing.T) {
	env := newServiceEnv(t)
	user := env.createUser(t, "ada")
	svc := newUserService(t, env)
	ctx := context.Background()

	_, err := svc.ChangePassword(ctx, user.ID, ChangePasswordInput{CurrentPassword: "wrong", Password: "next-pass", ConfirmPassword: "next-pass"})
	requireAppError(t, err, http.StatusUnauthorized, "Your current password is wrong")

	_, err = svc.ChangePassword(ctx, user.ID, ChangePasswordInput{CurrentPassword: "s3cretpass", Password: "next-pass", ConfirmPassword: "other"})
	requireAppError(t, err, http.StatusBadRequest, ErrPasswordMismatch.Message)

	_, err = svc.ChangePassword(ctx, user.ID, ChangePasswordInput{CurrentPassword: "s3cretpass", Password: "s3cretpass", ConfirmPassword: "s3cretpass"})
	requireAppError(t, err, http.StatusBadRequest, "")

	pair, err := svc.ChangePassword(ctx, user.ID, ChangePasswordInput{CurrentPassword: "s3cretpass", Password: "next-pass", ConfirmPassword: "next-pass"})
	require.NoError(t, err)
	claims, err := env.tokens.Verify(auth.TokenAccess, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)

	stored, err := env.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, crypto.VerifyPassword(stored.Password, "next-pass"))
	require.NotNil(t, stored.PasswordChangedAt)
	require.True(t, stored.PasswordChangedAt.Equal(env.now))
}

func TestUpdateAvatar(t *testing.T) {
	env := newServiceEnv(t)
	user := env.createUser(t, "ada")
	ctx := context.Background()

	disabled := newUserService(t, env)
	_, err := disabled.UpdateAvatar(ctx, user.ID, bytes.NewReader([]byte("x")))
	requireAppError(t, err, http.StatusServiceUnavailable, "")

	avatars := &fakeAvatars{}
	svc := newUserService(t, env, WithAvatarStorage(avatars))

	updated, err := svc.UpdateAvatar(ctx, user.ID, bytes.NewReader([]byte("first")))
	require.NoError(t, err)
	require.Equal(t, avatars.uploads[0], updated.Avatar)
	require.Empty(t, avatars.removed)

	updated, err = svc.UpdateAvatar(ctx, user.ID, bytes.NewReader([]byte("second")))
	require.NoError(t, err)
	require.Equal(t, avatars.uploads[1], updated.Avatar)
	require.Equal(t, []string{avatars.uploads[0]}, avatars.removed)

	avatars.err = storage.ErrUnsupportedImage
	_, err = svc.UpdateAvatar(ctx, user.ID, bytes.NewReader([]byte("text")))
	requireAppError(t, err, http.StatusBadRequest, "")

	avatars.err = storage.ErrImageTooLarge
	_, err = svc.UpdateAvatar(ctx, user.ID, bytes.NewReader([]byte("big")))
	requireAppError(t, err, http.StatusBadRequest, "Avatar image is too large")
}

func TestAdministration(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	svc := newUserService(t, env)

	learner := env.createUser(t, "learner")
	admin := env.createUser(t, "admin")
	root := env.createUser(t, "root")
	_, err := env.users.Update(ctx, admin.ID, map[string]any{"role": models.RoleAdmin})
	require.NoError(t, err)
	_, err = env.users.Update(ctx, root.ID, map[string]any{"role": models.RoleSuperuser})
	require.NoError(t, err)
	admin.Role = models.RoleAdmin
	root.Role = models.RoleSuperuser

	_, err = svc.SetSuspended(ctx, learner, admin.ID, true)
	requireAppError(t, err, http.StatusForbidden, "")

	_, err = svc.SetSuspended(ctx, admin, admin.ID, true)
	requireAppError(t, err, http.StatusBadRequest, "")

	_, err = svc.SetSuspended(ctx, admin, root.ID, true)
	requireAppError(t, err, http.StatusForbidden, "Only a superuser can manage administrators")

	suspended, err := svc.SetSuspended(ctx, admin, learner.ID, true)
	require.NoError(t, err)
	require.True(t, suspended.IsSuspended)

	reinstated, err := svc.SetSuspended(ctx, admin, learner.ID, false)
	require.NoError(t, err)
	require.False(t, reinstated.IsSuspended)

	users, total, err := svc.List(ctx, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, users, 3)

	require.NoError(t, svc.Delete(ctx, root, admin.ID))
	_, err = svc.GetByID(ctx, admin.ID)
	requireAppError(t, err, http.StatusNotFound, ErrUserNotFound.Message)

	err = svc.Delete(ctx, root, admin.ID)
	requireAppError(t, err, http.StatusNotFound, "")

	_, total, err = svc.List(ctx, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
}

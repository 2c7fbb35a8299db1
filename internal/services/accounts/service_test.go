package accounts

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appstack-labs/marketplace/internal/apperr"
	"github.com/appstack-labs/marketplace/internal/auth"
	"github.com/appstack-labs/marketplace/internal/blobstore"
	"github.com/appstack-labs/marketplace/internal/domain/account"
	"github.com/appstack-labs/marketplace/internal/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store, *blobstore.MemoryStore) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	store := memory.New()
	objects := blobstore.NewMemoryStore()
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	return New(store, tokens, objects, 5*time.Minute, log), store, objects
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, RegisterInput{
		Name:     "Dev",
		Email:    "dev@example.com",
		Password: "secret-pass",
		Role:     account.RolePublisher,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, account.RolePublisher, session.Account.Role)
	assert.Empty(t, session.Account.PasswordHash)

	login, err := svc.Authenticate(ctx, "DEV@example.com", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, session.Account.ID, login.Account.ID)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "", Email: "a@b.com", Password: "secret-pass"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Register(ctx, RegisterInput{Name: "A", Email: "not-an-email", Password: "secret-pass"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Register(ctx, RegisterInput{Name: "A", Email: "a@b.com", Password: "short"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Register(ctx, RegisterInput{Name: "A", Email: "a@b.com", Password: "secret-pass", Role: account.RoleAdministrator})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "A", Email: "dev@example.com", Password: "secret-pass"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Name: "B", Email: "dev@example.com", Password: "secret-pass"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestAuthenticateRejectsWrongPassword(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "A", Email: "dev@example.com", Password: "secret-pass"})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "dev@example.com", "wrong-pass")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = svc.Authenticate(ctx, "nobody@example.com", "secret-pass")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestUpdateProfilePasswordChange(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, RegisterInput{Name: "A", Email: "dev@example.com", Password: "secret-pass"})
	require.NoError(t, err)

	_, err = svc.UpdateProfile(ctx, session.Account.ID, ProfileUpdate{
		CurrentPassword: "wrong-pass",
		NewPassword:     "brand-new-pass",
	})
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = svc.UpdateProfile(ctx, session.Account.ID, ProfileUpdate{
		CurrentPassword: "secret-pass",
		NewPassword:     "brand-new-pass",
	})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "dev@example.com", "brand-new-pass")
	assert.NoError(t, err)
}

func TestUpdateProfileEmailChecks(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, RegisterInput{Name: "A", Email: "a@example.com", Password: "secret-pass"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Name: "B", Email: "b@example.com", Password: "secret-pass"})
	require.NoError(t, err)

	bad := "not-an-email"
	_, err = svc.UpdateProfile(ctx, first.Account.ID, ProfileUpdate{Email: &bad})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	taken := "b@example.com"
	_, err = svc.UpdateProfile(ctx, first.Account.ID, ProfileUpdate{Email: &taken})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	fresh := "A2@Example.com"
	acct, err := svc.UpdateProfile(ctx, first.Account.ID, ProfileUpdate{Email: &fresh})
	require.NoError(t, err)
	assert.Equal(t, "a2@example.com", acct.Email)
}

func TestDeleteCleansUpAvatar(t *testing.T) {
	svc, store, objects := newTestService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, RegisterInput{Name: "A", Email: "dev@example.com", Password: "secret-pass"})
	require.NoError(t, err)

	grant, err := svc.RequestAvatarUpload(ctx, session.Account.ID, "me.png", "image/png")
	require.NoError(t, err)
	assert.Contains(t, grant.Key, "profile-images/"+session.Account.ID)

	require.NoError(t, svc.Delete(ctx, session.Account.ID))

	_, err = store.GetAccount(ctx, session.Account.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Contains(t, objects.Deleted(), grant.Key)
}

func TestDeleteAvatarClearsField(t *testing.T) {
	svc, _, objects := newTestService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, RegisterInput{Name: "A", Email: "dev@example.com", Password: "secret-pass"})
	require.NoError(t, err)

	grant, err := svc.RequestAvatarUpload(ctx, session.Account.ID, "me.png", "image/png")
	require.NoError(t, err)

	acct, err := svc.DeleteAvatar(ctx, session.Account.ID)
	require.NoError(t, err)
	assert.Empty(t, acct.Avatar)
	assert.Contains(t, objects.Deleted(), grant.Key)

	// Removing an absent avatar is a no-op.
	_, err = svc.DeleteAvatar(ctx, session.Account.ID)
	assert.NoError(t, err)
}

func TestSetRoleGuards(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	admin, err := svc.Register(ctx, RegisterInput{Name: "Admin", Email: "admin@example.com", Password: "secret-pass"})
	require.NoError(t, err)
	user, err := svc.Register(ctx, RegisterInput{Name: "User", Email: "user@example.com", Password: "secret-pass"})
	require.NoError(t, err)

	_, err = svc.SetRole(ctx, admin.Account.ID, admin.Account.ID, account.RoleStandard)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.SetRole(ctx, admin.Account.ID, user.Account.ID, "superuser")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	updated, err := svc.SetRole(ctx, admin.Account.ID, user.Account.ID, account.RolePublisher)
	require.NoError(t, err)
	assert.Equal(t, account.RolePublisher, updated.Role)
}

func TestBannedAccountCannotAuthenticate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	admin, err := svc.Register(ctx, RegisterInput{Name: "Admin", Email: "admin@example.com", Password: "secret-pass"})
	require.NoError(t, err)
	user, err := svc.Register(ctx, RegisterInput{Name: "User", Email: "user@example.com", Password: "secret-pass"})
	require.NoError(t, err)

	_, err = svc.SetBanned(ctx, admin.Account.ID, user.Account.ID, true)
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "user@example.com", "secret-pass")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

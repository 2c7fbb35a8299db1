// Package accounts implements registration, authentication, and
// profile management.
package accounts

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/appstack-labs/marketplace/internal/apperr"
	"github.com/appstack-labs/marketplace/internal/auth"
	"github.com/appstack-labs/marketplace/internal/blobstore"
	"github.com/appstack-labs/marketplace/internal/domain/account"
	"github.com/appstack-labs/marketplace/internal/storage"
)

const minPasswordLength = 8

// Service coordinates account operations.
type Service struct {
	store   storage.AccountStore
	tokens  *auth.TokenIssuer
	objects blobstore.ObjectStore
	avatars time.Duration
	log     *logrus.Logger
}

// New creates a configured accounts service. avatarTTL bounds presigned
// avatar upload URLs.
func New(store storage.AccountStore, tokens *auth.TokenIssuer, objects blobstore.ObjectStore, avatarTTL time.Duration, log *logrus.Logger) *Service {
	return &Service{
		store:   store,
		tokens:  tokens,
		objects: objects,
		avatars: avatarTTL,
		log:     log,
	}
}

// Session is the result of a successful registration or login.
type Session struct {
	Token   string          `json:"token"`
	Account account.Account `json:"user"`
}

// RegisterInput are the fields accepted at signup.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     account.Role
}

// Register creates an account and issues its first token. An empty role
// defaults to standard; administrator cannot be self-assigned.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if in.Name == "" {
		return Session{}, apperr.Validation("name is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return Session{}, apperr.Validation("a valid email is required")
	}
	if len(in.Password) < minPasswordLength {
		return Session{}, apperr.Validation("password must be at least %d characters", minPasswordLength)
	}
	if in.Role == "" {
		in.Role = account.RoleStandard
	}
	if !in.Role.In(account.RoleStandard, account.RolePublisher) {
		return Session{}, apperr.Validation("role must be standard or publisher")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return Session{}, apperr.Internal("", err)
	}

	acct, err := s.store.CreateAccount(ctx, account.Account{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
	})
	if err != nil {
		return Session{}, err
	}

	token, err := s.tokens.Issue(acct.ID)
	if err != nil {
		return Session{}, apperr.Internal("", err)
	}

	s.log.WithField("account_id", acct.ID).
		WithField("role", string(acct.Role)).
		Info("account registered")
	return Session{Token: token, Account: acct.Public()}, nil
}

// Authenticate checks credentials and issues a token. The error is the
// same for an unknown email and a wrong password.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, apperr.Validation("email and password are required")
	}

	acct, err := s.store.GetAccountByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return Session{}, apperr.Unauthorized("invalid credentials")
		}
		return Session{}, err
	}
	if !auth.CheckPassword(acct.PasswordHash, password) {
		return Session{}, apperr.Unauthorized("invalid credentials")
	}
	if acct.Banned {
		return Session{}, apperr.Forbidden("account is banned")
	}

	token, err := s.tokens.Issue(acct.ID)
	if err != nil {
		return Session{}, apperr.Internal("", err)
	}

	s.log.WithField("account_id", acct.ID).Info("account authenticated")
	return Session{Token: token, Account: acct.Public()}, nil
}

// Get returns the public view of an account.
func (s *Service) Get(ctx context.Context, id string) (account.Account, error) {
	acct, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return account.Account{}, err
	}
	return acct.Public(), nil
}

// ProfileUpdate carries the optional profile fields. Nil pointers leave
// the current value in place.
type ProfileUpdate struct {
	Name      *string
	Email     *string
	Phone     *string
	Bio       *string
	Location  *string
	Website   *string
	Publisher *account.PublisherProfile

	// Changing the password requires the current one.
	CurrentPassword string
	NewPassword     string
}

// UpdateProfile applies the update to the caller's own account.
func (s *Service) UpdateProfile(ctx context.Context, accountID string, upd ProfileUpdate) (account.Account, error) {
	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return account.Account{}, err
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return account.Account{}, apperr.Validation("name cannot be empty")
		}
		acct.Name = name
	}
	if upd.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*upd.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			return account.Account{}, apperr.Validation("a valid email is required")
		}
		acct.Email = email
	}
	if upd.Phone != nil {
		acct.Phone = strings.TrimSpace(*upd.Phone)
	}
	if upd.Bio != nil {
		acct.Bio = strings.TrimSpace(*upd.Bio)
	}
	if upd.Location != nil {
		acct.Location = strings.TrimSpace(*upd.Location)
	}
	if upd.Website != nil {
		acct.Website = strings.TrimSpace(*upd.Website)
	}
	if upd.Publisher != nil {
		acct.Publisher = *upd.Publisher
	}

	if upd.NewPassword != "" {
		if !auth.CheckPassword(acct.PasswordHash, upd.CurrentPassword) {
			return account.Account{}, apperr.Unauthorized("current password is incorrect")
		}
		if len(upd.NewPassword) < minPasswordLength {
			return account.Account{}, apperr.Validation("password must be at least %d characters", minPasswordLength)
		}
		hash, err := auth.HashPassword(upd.NewPassword)
		if err != nil {
			return account.Account{}, apperr.Internal("", err)
		}
		acct.PasswordHash = hash
	}

	acct, err = s.store.UpdateAccount(ctx, acct)
	if err != nil {
		return account.Account{}, err
	}
	return acct.Public(), nil
}

// RequestAvatarUpload grants a presigned URL for a new profile image
// and records the resulting key on the account.
func (s *Service) RequestAvatarUpload(ctx context.Context, accountID, filename, contentType string) (blobstore.PresignedUpload, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return blobstore.PresignedUpload{}, apperr.Validation("filename is required")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return blobstore.PresignedUpload{}, apperr.Validation("avatar must be an image")
	}

	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return blobstore.PresignedUpload{}, err
	}

	key := blobstore.AvatarKey(acct.ID, filename)
	grant, err := s.objects.PresignUpload(ctx, key, contentType, s.avatars)
	if err != nil {
		return blobstore.PresignedUpload{}, apperr.Internal("", err)
	}

	// Drop the previous image once the replacement key is assigned.
	if acct.Avatar != "" && acct.Avatar != key {
		if err := s.objects.Delete(ctx, acct.Avatar); err != nil {
			s.log.WithField("account_id", acct.ID).WithError(err).Warn("stale avatar delete failed")
		}
	}

	acct.Avatar = key
	if _, err := s.store.UpdateAccount(ctx, acct); err != nil {
		return blobstore.PresignedUpload{}, err
	}
	return grant, nil
}

// DeleteAvatar removes the stored profile image and clears the field.
func (s *Service) DeleteAvatar(ctx context.Context, accountID string) (account.Account, error) {
	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return account.Account{}, err
	}
	if acct.Avatar == "" {
		return acct.Public(), nil
	}

	if err := s.objects.Delete(ctx, acct.Avatar); err != nil {
		s.log.WithField("account_id", accountID).WithError(err).Warn("avatar delete failed")
	}
	acct.Avatar = ""

	acct, err = s.store.UpdateAccount(ctx, acct)
	if err != nil {
		return account.Account{}, err
	}
	return acct.Public(), nil
}

// Delete removes the caller's account and its stored avatar.
func (s *Service) Delete(ctx context.Context, accountID string) error {
	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAccount(ctx, accountID); err != nil {
		return err
	}
	if acct.Avatar != "" {
		if err := s.objects.Delete(ctx, acct.Avatar); err != nil {
			s.log.WithField("account_id", accountID).WithError(err).Warn("avatar cleanup failed")
		}
	}
	s.log.WithField("account_id", accountID).Info("account deleted")
	return nil
}

// List returns accounts for the admin view, optionally filtered by
// role.
func (s *Service) List(ctx context.Context, role account.Role, page, pageSize int) ([]account.Account, int, error) {
	if role != "" && !role.Valid() {
		return nil, 0, apperr.Validation("unknown role %q", role)
	}
	accts, total, err := s.store.ListAccounts(ctx, role, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	for i := range accts {
		accts[i] = accts[i].Public()
	}
	return accts, total, nil
}

// SetRole changes an account's role. Administrators cannot demote
// themselves, which keeps at least the acting admin in place.
func (s *Service) SetRole(ctx context.Context, actorID, accountID string, role account.Role) (account.Account, error) {
	if !role.Valid() {
		return account.Account{}, apperr.Validation("unknown role %q", role)
	}
	if actorID == accountID {
		return account.Account{}, apperr.Validation("cannot change your own role")
	}

	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return account.Account{}, err
	}
	acct.Role = role

	acct, err = s.store.UpdateAccount(ctx, acct)
	if err != nil {
		return account.Account{}, err
	}
	s.log.WithField("account_id", accountID).
		WithField("role", string(role)).
		Info("account role updated")
	return acct.Public(), nil
}

// SetBanned flips an account's ban flag.
func (s *Service) SetBanned(ctx context.Context, actorID, accountID string, banned bool) (account.Account, error) {
	if actorID == accountID {
		return account.Account{}, apperr.Validation("cannot ban your own account")
	}
	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return account.Account{}, err
	}
	acct.Banned = banned

	acct, err = s.store.UpdateAccount(ctx, acct)
	if err != nil {
		return account.Account{}, err
	}
	s.log.WithField("account_id", accountID).
		WithField("banned", banned).
		Info("account ban state updated")
	return acct.Public(), nil
}

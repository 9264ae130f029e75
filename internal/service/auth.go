package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/portfolio/internal/apperror"
	"github.com/sakif/portfolio/internal/auth"
	"github.com/sakif/portfolio/internal/entitlement"
	"github.com/sakif/portfolio/internal/model"
	"github.com/sakif/portfolio/internal/repository"
)

// AuthService is the business logic layer for authentication. It sits between
// the HTTP handlers and the repository/auth utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT)
//
// KEY RESPONSIBILITIES:
//   - Finish an OIDC login: upsert the user by subject, grant admin from
//     ADMIN_EMAILS, issue the session token
//   - Resolve a session's user ID into an entitlement.Viewer
//   - Answer "is this user an admin?" for the RequireAdmin middleware
//
// DEPENDENCIES (injected via NewAuthService):
//   - users        repository.UserRepository → read/write user records
//   - tokens       *auth.TokenService        → generate/validate JWTs
//   - adminEmails  lower-cased addresses that become admins on login
//   - logger       *slog.Logger              → structured logging
type AuthService struct {
	users       repository.UserRepository
	tokens      *auth.TokenService
	adminEmails map[string]bool
	logger      *slog.Logger
}

var _ auth.AdminChecker = (*AuthService)(nil)

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	adminEmails []string,
	logger *slog.Logger,
) *AuthService {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			admins[e] = true
		}
	}
	return &AuthService{
		users:       users,
		tokens:      tokens,
		adminEmails: admins,
		logger:      logger,
	}
}

// AuthResult bundles the user record and the issued JWT together so the
// handler can set the cookie and redirect in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// LoginOrRegister finishes a verified OIDC login.
//
// WHY UPSERT BY SUBJECT?
// The provider guarantees "sub" is stable and unique for an account; email
// is not (people change it). First login → INSERT; later logins → UPDATE
// the profile fields in case they changed at the provider.
//
// Admin is only ever granted here, never revoked: removing an address from
// ADMIN_EMAILS does not demote anyone (use `admin revoke`).
func (s *AuthService) LoginOrRegister(ctx context.Context, id *auth.Identity) (*AuthResult, error) {
	if id == nil || id.Subject == "" {
		return nil, apperror.Unauthorized("identity provider returned no subject")
	}

	user := &model.User{
		Subject:         id.Subject,
		Email:           strings.ToLower(strings.TrimSpace(id.Email)),
		FirstName:       id.FirstName,
		LastName:        id.LastName,
		ProfileImageURL: id.ProfileImageURL,
	}
	user.IsAdmin = user.Email != "" && s.adminEmails[user.Email]

	if err := s.users.UpsertUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (subject=%s): %w", id.Subject, err)
	}

	s.logger.Info("user authenticated",
		slog.String("userID", user.ID),
		slog.Bool("admin", user.IsAdmin),
		slog.Bool("premium", user.IsPremium),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for the given internal ID.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthorized("valid authentication required")
	}
	return s.users.GetUserByID(ctx, id)
}

// Viewer resolves a (possibly empty) session user ID for the entitlement
// policy. A token for a user that no longer exists counts as anonymous.
func (s *AuthService) Viewer(ctx context.Context, userID string) (entitlement.Viewer, error) {
	if userID == "" {
		return entitlement.Anonymous, nil
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return entitlement.Anonymous, nil
	}
	if err != nil {
		return entitlement.Anonymous, fmt.Errorf("service/auth: resolving viewer: %w", err)
	}
	return entitlement.Viewer{UserID: user.ID, IsPremium: user.IsPremium, IsAdmin: user.IsAdmin}, nil
}

// IsAdmin implements auth.AdminChecker.
func (s *AuthService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}

// ProfileInput is a partial profile update.
type ProfileInput struct {
	FirstName       *string `json:"firstName"`
	LastName        *string `json:"lastName"`
	ProfileImageURL *string `json:"profileImageUrl"`
}

// UpdateProfile changes the display fields. Email, premium and admin are
// not editable here.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*model.User, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	first, last, img := user.FirstName, user.LastName, user.ProfileImageURL
	setString(&first, in.FirstName)
	setString(&last, in.LastName)
	setString(&img, in.ProfileImageURL)
	if len(first) > MaxNameLength || len(last) > MaxNameLength {
		return nil, apperror.ValidationFailed("firstName", fmt.Sprintf("names must be at most %d characters", MaxNameLength))
	}

	updated, err := s.users.UpdateProfile(ctx, userID, first, last, img)
	if err != nil {
		return nil, fmt.Errorf("service/auth: updating profile: %w", err)
	}
	s.logger.Info("profile updated", slog.String("userID", userID))
	return updated, nil
}

// SetAdminByEmail grants or revokes admin for an existing user. Used by
// the `admin grant|revoke` command.
func (s *AuthService) SetAdminByEmail(ctx context.Context, email string, admin bool) (*model.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetAdmin(ctx, user.ID, admin); err != nil {
		return nil, fmt.Errorf("service/auth: setting admin: %w", err)
	}
	user.IsAdmin = admin
	s.logger.Info("admin flag changed", slog.String("userID", user.ID), slog.Bool("admin", admin))
	return user, nil
}

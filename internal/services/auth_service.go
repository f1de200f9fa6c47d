package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/isdelr/spacemate-auth/internal/auth"
	"github.com/isdelr/spacemate-auth/internal/models"
	"github.com/rs/zerolog/log"
)

var (
	// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike.
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrRefreshTokenRequired = errors.New("refresh token required")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
)

// AuthServiceProvider defines the interface for the authentication flows.
type AuthServiceProvider interface {
	Register(ctx context.Context, fields models.NewUser) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
}

// AuthResult is a user together with a freshly issued token pair.
type AuthResult struct {
	User   models.User
	Tokens auth.TokenPair
}

// AuthService composes the credential store, the password hasher and the
// token service into register, login and refresh.
type AuthService struct {
	users  UserServiceProvider
	tokens *auth.TokenService
	hasher *auth.PasswordHasher
	// compared against when the email is unknown so both failure paths cost one bcrypt run
	dummyHash string
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserServiceProvider, tokens *auth.TokenService, hasher *auth.PasswordHasher) (*AuthService, error) {
	dummy, err := hasher.Hash("spacemate-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	return &AuthService{users: users, tokens: tokens, hasher: hasher, dummyHash: dummy}, nil
}

// Register creates the user and issues its first token pair.
func (s *AuthService) Register(ctx context.Context, fields models.NewUser) (*AuthResult, error) {
	fields.Email = models.NormalizeEmail(fields.Email)

	if _, err := s.users.FindByEmail(ctx, fields.Email, false); err == nil {
		return nil, models.ErrDuplicateCredential
	} else if !errors.Is(err, models.ErrUserNotFound) {
		return nil, err
	}

	// A concurrent registration can still win between the check and the insert;
	// Create reports that as ErrDuplicateCredential from the unique index.
	user, err := s.users.Create(ctx, fields)
	if err != nil {
		return nil, err
	}

	tokens, err := s.tokens.IssueTokens(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User registered")
	return &AuthResult{User: *user, Tokens: tokens}, nil
}

// Login verifies credentials and issues a token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = models.NormalizeEmail(email)

	user, err := s.users.FindByEmail(ctx, email, true)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			log.Warn().Str("email", email).Msg("Login failed: user not found")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.PasswordHash == "" {
		log.Warn().Str("user_id", user.ID).Msg("Login failed: no password hash stored")
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		log.Warn().Str("user_id", user.ID).Msg("Login failed: invalid password")
		return nil, ErrInvalidCredentials
	}

	tokens, err := s.tokens.IssueTokens(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	// Don't send the password hash to the client
	user.PasswordHash = ""

	log.Info().Str("user_id", user.ID).Msg("User logged in")
	return &AuthResult{User: *user, Tokens: tokens}, nil
}

// Refresh exchanges a valid refresh token for a new pair. The old refresh
// token stays valid: there is no revocation list.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	if refreshToken == "" {
		return auth.TokenPair{}, ErrRefreshTokenRequired
	}

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		log.Warn().Err(err).Str("reason", auth.Reason(err)).Msg("Refresh token rejected")
		return auth.TokenPair{}, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return auth.TokenPair{}, err
	}

	tokens, err := s.tokens.IssueTokens(user.ID, user.Email)
	if err != nil {
		return auth.TokenPair{}, err
	}

	log.Info().Str("user_id", user.ID).Msg("Tokens refreshed")
	return tokens, nil
}

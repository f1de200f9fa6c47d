package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Verification failure kinds. Callers match them with errors.Is.
var (
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrMalformed        = errors.New("malformed token")
	ErrNotYetValid      = errors.New("token not valid yet")
	ErrExpired          = errors.New("token expired")
	ErrInvalidClaims    = errors.New("invalid token claims")
)

var errMissingSecret = errors.New("signing secret must not be empty")

// Claims defines the JWT claims structure shared by access and refresh tokens.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenPair is what clients receive after register, login and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenConfig carries everything the TokenService needs; it is built from
// config.Config at startup.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
	Audience      string
	// A zero TTL mints tokens without an exp claim.
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenService issues and verifies access and refresh tokens.
type TokenService struct {
	accessKey  []byte
	refreshKey []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenService validates cfg and returns a ready TokenService.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.AccessSecret == "" {
		return nil, fmt.Errorf("access token: %w", errMissingSecret)
	}
	if cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("refresh token: %w", errMissingSecret)
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("token issuer and audience are required")
	}

	return &TokenService{
		accessKey:  []byte(cfg.AccessSecret),
		refreshKey: []byte(cfg.RefreshSecret),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}, nil
}

// IssueTokens signs the same identity claims once with each secret.
func (s *TokenService) IssueTokens(userID, email string) (TokenPair, error) {
	now := s.now()
	jti := uuid.NewString()

	access, err := s.sign(s.accessKey, s.claims(userID, email, jti, now, s.accessTTL))
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	refresh, err := s.sign(s.refreshKey, s.claims(userID, email, jti, now, s.refreshTTL))
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess parses and validates an access token.
func (s *TokenService) VerifyAccess(tokenStr string) (*Claims, error) {
	return s.verify(tokenStr, s.accessKey, "access")
}

// VerifyRefresh parses and validates a refresh token.
func (s *TokenService) VerifyRefresh(tokenStr string) (*Claims, error) {
	return s.verify(tokenStr, s.refreshKey, "refresh")
}

func (s *TokenService) claims(userID, email, jti string, now time.Time, ttl time.Duration) *Claims {
	c := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   s.issuer,
			Audience: jwt.ClaimStrings{s.audience},
			IssuedAt: jwt.NewNumericDate(now),
			ID:       jti,
		},
	}
	if ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return c
}

func (s *TokenService) sign(key []byte, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

func (s *TokenService) verify(tokenStr string, key []byte, kind string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		kindErr := classify(err)
		// Method is only set once header and claims decoded, so a malformed
		// token at this point has an undecodable signature segment.
		if errors.Is(kindErr, ErrMalformed) && token != nil && token.Method != nil {
			kindErr = ErrInvalidSignature
		}
		return nil, fmt.Errorf("%s token: %w (%v)", kind, kindErr, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%s token: %w", kind, ErrInvalidSignature)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%s token: %w: missing userId", kind, ErrInvalidClaims)
	}
	return claims, nil
}

// classify maps golang-jwt errors onto our verification kinds.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ErrNotYetValid
	default:
		return ErrInvalidClaims
	}
}

// Reason returns a short, stable label for a verification error.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrNotYetValid):
		return "not_yet_valid"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrInvalidClaims):
		return "invalid_claims"
	default:
		return "unknown"
	}
}

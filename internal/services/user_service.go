package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/spacemate-auth/internal/auth"
	"github.com/isdelr/spacemate-auth/internal/database"
	"github.com/isdelr/spacemate-auth/internal/models"
)

const (
	userColumns     = "id, email, first_name, last_name, date_of_birth, is_verified, created_at, updated_at"
	maxNameLength   = 50
	pingTimeoutSecs = 2
)

// UserServiceProvider defines the interface for the credential store.
type UserServiceProvider interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string, includeHash bool) (*models.User, error)
	Create(ctx context.Context, fields models.NewUser) (*models.User, error)
	Ping(ctx context.Context) error
}

// UserService persists user records and owns password hashing at creation time.
type UserService struct {
	db      *sql.DB
	dialect database.Dialect
	hasher  *auth.PasswordHasher
	now     func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB, dialect database.Dialect, hasher *auth.PasswordHasher) *UserService {
	return &UserService{db: db, dialect: dialect, hasher: hasher, now: time.Now}
}

// FindByID retrieves a single user by their ID. The password hash is never loaded.
func (s *UserService) FindByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrUserNotFound
	}
	row := s.db.QueryRowContext(ctx, s.q("SELECT "+userColumns+" FROM users WHERE id = ?"), id)
	return scanUser(row, false)
}

// FindByEmail retrieves a single user by their email. The hash is only
// selected when includeHash is set, for credential verification.
func (s *UserService) FindByEmail(ctx context.Context, email string, includeHash bool) (*models.User, error) {
	cols := userColumns
	if includeHash {
		cols += ", password_hash"
	}
	row := s.db.QueryRowContext(ctx, s.q("SELECT "+cols+" FROM users WHERE email = ?"), models.NormalizeEmail(email))
	return scanUser(row, includeHash)
}

// Create validates fields, hashes the password and inserts the user. The
// unique index on email decides races: the loser gets ErrDuplicateCredential.
func (s *UserService) Create(ctx context.Context, fields models.NewUser) (*models.User, error) {
	now := s.now().UTC()

	user := models.User{
		ID:          uuid.New().String(),
		Email:       models.NormalizeEmail(fields.Email),
		FirstName:   strings.TrimSpace(fields.FirstName),
		LastName:    strings.TrimSpace(fields.LastName),
		DateOfBirth: truncateDate(fields.DateOfBirth),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := validateNewUser(user, now); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(fields.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmptyPassword) {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidUser, err)
		}
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, s.q(`INSERT INTO users
		(id, email, password_hash, first_name, last_name, date_of_birth, is_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		user.ID, user.Email, hash, user.FirstName, user.LastName, user.DateOfBirth, user.IsVerified, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, models.ErrDuplicateCredential
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	// Return user without password hash
	return &user, nil
}

// Ping checks that the store is reachable.
func (s *UserService) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeoutSecs*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *UserService) q(query string) string {
	return database.Rebind(s.dialect, query)
}

func scanUser(row *sql.Row, includeHash bool) (*models.User, error) {
	var user models.User
	dest := []any{&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.DateOfBirth,
		&user.IsVerified, &user.CreatedAt, &user.UpdatedAt}
	if includeHash {
		dest = append(dest, &user.PasswordHash)
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

func validateNewUser(u models.User, now time.Time) error {
	switch {
	case u.Email == "":
		return fmt.Errorf("%w: email is required", models.ErrInvalidUser)
	case u.FirstName == "" || len([]rune(u.FirstName)) > maxNameLength:
		return fmt.Errorf("%w: first name must be 1-%d characters", models.ErrInvalidUser, maxNameLength)
	case u.LastName == "" || len([]rune(u.LastName)) > maxNameLength:
		return fmt.Errorf("%w: last name must be 1-%d characters", models.ErrInvalidUser, maxNameLength)
	case !models.AgeAllowed(u.DateOfBirth, now):
		return fmt.Errorf("%w: must be between %d and %d years old", models.ErrInvalidUser, models.MinAge, models.MaxAge)
	}
	return nil
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

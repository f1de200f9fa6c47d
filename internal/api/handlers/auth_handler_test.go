package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/isdelr/spacemate-auth/internal/api/response"
	"github.com/isdelr/spacemate-auth/internal/auth"
	"github.com/isdelr/spacemate-auth/internal/models"
	"github.com/isdelr/spacemate-auth/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthService struct {
	register func(ctx context.Context, fields models.NewUser) (*services.AuthResult, error)
	login    func(ctx context.Context, email, password string) (*services.AuthResult, error)
	refresh  func(ctx context.Context, token string) (auth.TokenPair, error)
}

func (f *fakeAuthService) Register(ctx context.Context, fields models.NewUser) (*services.AuthResult, error) {
	return f.register(ctx, fields)
}

func (f *fakeAuthService) Login(ctx context.Context, email, password string) (*services.AuthResult, error) {
	return f.login(ctx, email, password)
}

func (f *fakeAuthService) Refresh(ctx context.Context, token string) (auth.TokenPair, error) {
	return f.refresh(ctx, token)
}

var testNow = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

func newTestHandler(svc *fakeAuthService) *AuthHandler {
	h := NewAuthHandler(svc)
	h.now = func() time.Time { return testNow }
	return h
}

func do(t *testing.T, h http.HandlerFunc, body string) (*httptest.ResponseRecorder, response.Envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

const validRegistration = `{"email":"a@b.com","password":"Abcdef1!","firstName":"Jo","lastName":"Do","dateOfBirth":"2000-01-01"}`

func TestRegisterPayload_Validate(t *testing.T) {
	valid := RegisterPayload{
		Email:       "a@b.com",
		Password:    "Abcdef1!",
		FirstName:   "Jo",
		LastName:    "Do",
		DateOfBirth: "2000-01-01",
	}
	require.NoError(t, valid.Validate(testNow))

	tests := []struct {
		name    string
		mutate  func(*RegisterPayload)
		wantErr string
	}{
		{"missing email", func(p *RegisterPayload) { p.Email = "" }, "email: Email is required"},
		{"bad email", func(p *RegisterPayload) { p.Email = "not-an-email" }, "email: Invalid email format"},
		{"short password", func(p *RegisterPayload) { p.Password = "Ab1!" }, "password: Password must be at least 8 characters"},
		{"no symbol", func(p *RegisterPayload) { p.Password = "Abcdefg1" }, "password: Password must contain uppercase, lowercase, number and special character"},
		{"no upper", func(p *RegisterPayload) { p.Password = "abcdef1!" }, "password: Password must contain uppercase, lowercase, number and special character"},
		{"non-ascii upper", func(p *RegisterPayload) { p.Password = "Ébcdef1!" }, "password: Password must contain uppercase, lowercase, number and special character"},
		{"non-ascii digit", func(p *RegisterPayload) { p.Password = "Abcdef٣!" }, "password: Password must contain uppercase, lowercase, number and special character"},
		{"leading disallowed symbol", func(p *RegisterPayload) { p.Password = "#Abcdef1!" }, "password: Password must contain uppercase, lowercase, number and special character"},
		{"short first name", func(p *RegisterPayload) { p.FirstName = "J" }, "firstName: First name must be at least 2 characters"},
		{"long last name", func(p *RegisterPayload) { p.LastName = strings.Repeat("a", 51) }, "lastName: Last name cannot exceed 50 characters"},
		{"digits in name", func(p *RegisterPayload) { p.FirstName = "Jo3" }, "firstName: First name can only contain letters"},
		{"bad date", func(p *RegisterPayload) { p.DateOfBirth = "01/01/2000" }, "dateOfBirth: Date of birth must be in YYYY-MM-DD format"},
		{"too young", func(p *RegisterPayload) { p.DateOfBirth = "2008-10-20" }, "dateOfBirth: Must be between 18 and 100 years old"},
		{"too old", func(p *RegisterPayload) { p.DateOfBirth = "1925-01-01" }, "dateOfBirth: Must be between 18 and 100 years old"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			msgs, ok := fieldErrors(p.Validate(testNow))
			require.True(t, ok)
			assert.Equal(t, []string{tt.wantErr}, msgs)
		})
	}
}

func TestRegisterPayload_PasswordTrailingCharsUnrestricted(t *testing.T) {
	p := RegisterPayload{Email: "a@b.com", Password: "Abcdef1!#", FirstName: "Jo", LastName: "Do", DateOfBirth: "2000-01-01"}
	assert.NoError(t, p.Validate(testNow))
}

func TestRegisterPayload_EighteenthBirthday(t *testing.T) {
	p := RegisterPayload{Email: "a@b.com", Password: "Abcdef1!", FirstName: "Jo", LastName: "Do", DateOfBirth: "2008-10-19"}
	assert.NoError(t, p.Validate(testNow))
}

func TestFieldErrors_Sorted(t *testing.T) {
	msgs, ok := fieldErrors(LoginPayload{}.Validate())
	require.True(t, ok)
	assert.Equal(t, []string{"email: Email is required", "password: Password is required"}, msgs)

	_, ok = fieldErrors(errors.New("boom"))
	assert.False(t, ok)
}

func TestAuthHandler_Register(t *testing.T) {
	var got models.NewUser
	svc := &fakeAuthService{register: func(_ context.Context, fields models.NewUser) (*services.AuthResult, error) {
		got = fields
		return &services.AuthResult{
			User:   models.User{ID: "id-1", Email: "a@b.com", PasswordHash: "secret-hash", FirstName: "Jo", LastName: "Do", DateOfBirth: fields.DateOfBirth},
			Tokens: auth.TokenPair{AccessToken: "access", RefreshToken: "refresh"},
		}, nil
	}}
	h := newTestHandler(svc)

	rec, env := do(t, h.Register, validRegistration)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "User registered successfully", env.Message)
	assert.NotContains(t, rec.Body.String(), "secret-hash")
	assert.NotContains(t, rec.Body.String(), "passwordHash")
	assert.Contains(t, rec.Body.String(), `"dateOfBirth":"2000-01-01"`)
	assert.Contains(t, rec.Body.String(), `"accessToken":"access"`)
	assert.Equal(t, "Abcdef1!", got.Password)
	assert.Equal(t, 2000, got.DateOfBirth.Year())
}

func TestAuthHandler_RegisterErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
		wantMsg    string
	}{
		{"invalid json", `{"email":`, nil, http.StatusBadRequest, "Invalid request body"},
		{"validation", `{"email":"bad"}`, nil, http.StatusBadRequest, "Validation failed"},
		{"duplicate", validRegistration, models.ErrDuplicateCredential, http.StatusConflict, "User already exists with this email"},
		{"store rejects", validRegistration, fmt.Errorf("%w: first name must be 1-50 characters", models.ErrInvalidUser), http.StatusBadRequest, "Validation failed"},
		{"internal", validRegistration, errors.New("disk full"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&fakeAuthService{register: func(context.Context, models.NewUser) (*services.AuthResult, error) {
				return nil, tt.svcErr
			}})
			rec, env := do(t, h.Register, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantMsg, env.Message)
			assert.NotContains(t, rec.Body.String(), "disk full")
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	h := newTestHandler(&fakeAuthService{login: func(_ context.Context, email, password string) (*services.AuthResult, error) {
		if email == "a@b.com" && password == "Abcdef1!" {
			return &services.AuthResult{User: models.User{ID: "id-1", Email: email}, Tokens: auth.TokenPair{AccessToken: "a", RefreshToken: "r"}}, nil
		}
		return nil, services.ErrInvalidCredentials
	}})

	rec, env := do(t, h.Login, `{"email":"a@b.com","password":"Abcdef1!"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Login successful", env.Message)

	wrong, wrongEnv := do(t, h.Login, `{"email":"a@b.com","password":"nope"}`)
	unknown, unknownEnv := do(t, h.Login, `{"email":"x@b.com","password":"Abcdef1!"}`)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, wrong.Code, unknown.Code)
	assert.Equal(t, "Invalid email or password", wrongEnv.Message)
	assert.Equal(t, wrongEnv, unknownEnv)

	rec, env = do(t, h.Login, `{"email":"a@b.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"password: Password is required"}, env.Errors)
}

func TestAuthHandler_Refresh(t *testing.T) {
	h := newTestHandler(&fakeAuthService{refresh: func(_ context.Context, token string) (auth.TokenPair, error) {
		switch token {
		case "":
			return auth.TokenPair{}, services.ErrRefreshTokenRequired
		case "good":
			return auth.TokenPair{AccessToken: "a2", RefreshToken: "r2"}, nil
		case "orphan":
			return auth.TokenPair{}, models.ErrUserNotFound
		default:
			return auth.TokenPair{}, fmt.Errorf("%w: %w", services.ErrInvalidRefreshToken, auth.ErrInvalidSignature)
		}
	}})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"empty body", ``, http.StatusBadRequest, "Refresh token required"},
		{"missing field", `{}`, http.StatusBadRequest, "Refresh token required"},
		{"valid", `{"refreshToken":"good"}`, http.StatusOK, "Tokens refreshed successfully"},
		{"tampered", `{"refreshToken":"bad"}`, http.StatusUnauthorized, "Invalid refresh token"},
		{"user gone", `{"refreshToken":"orphan"}`, http.StatusUnauthorized, "User no longer exists"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h.Refresh, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, env.Message)
		})
	}
}

func TestAuthHandler_ProfileAndLogout(t *testing.T) {
	h := newTestHandler(&fakeAuthService{})
	id := auth.Identity{User: models.User{ID: "id-1", Email: "a@b.com", PasswordHash: "secret-hash"}}

	rec := httptest.NewRecorder()
	h.Profile(rec, httptest.NewRequest(http.MethodGet, "/profile", nil), id)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"a@b.com"`)
	assert.NotContains(t, rec.Body.String(), "secret-hash")

	rec = httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/logout", nil), id)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please remove tokens from client storage")
}

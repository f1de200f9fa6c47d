package handlers

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/isdelr/spacemate-auth/internal/models"
)

const passwordSymbols = "@$!%*?&"

var namePattern = regexp.MustCompile(`^[a-zA-Z\s]+$`)

// RegisterPayload defines the structure for registration requests.
type RegisterPayload struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DateOfBirth string `json:"dateOfBirth"`
}

// Validate checks the payload shape. Ages are computed relative to now.
func (p RegisterPayload) Validate(now time.Time) error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email,
			validation.Required.Error("Email is required"),
			is.Email.Error("Invalid email format"),
		),
		validation.Field(&p.Password,
			validation.Required.Error("Password is required"),
			validation.Length(8, 0).Error("Password must be at least 8 characters"),
			validation.By(passwordComplexity),
		),
		validation.Field(&p.FirstName, nameRules("First name")...),
		validation.Field(&p.LastName, nameRules("Last name")...),
		validation.Field(&p.DateOfBirth,
			validation.Required.Error("Date of birth is required"),
			validation.By(ageBetween(now)),
		),
	)
}

// NewUser converts a validated payload into store fields.
func (p RegisterPayload) NewUser() (models.NewUser, error) {
	dob, err := time.Parse(models.DateLayout, p.DateOfBirth)
	if err != nil {
		return models.NewUser{}, err
	}
	return models.NewUser{
		Email:       p.Email,
		Password:    p.Password,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		DateOfBirth: dob,
	}, nil
}

// LoginPayload defines the structure for login requests.
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the payload shape.
func (p LoginPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email,
			validation.Required.Error("Email is required"),
			is.Email.Error("Invalid email format"),
		),
		validation.Field(&p.Password, validation.Required.Error("Password is required")),
	)
}

// RefreshPayload defines the structure for token refresh requests.
type RefreshPayload struct {
	RefreshToken string `json:"refreshToken"`
}

func nameRules(label string) []validation.Rule {
	return []validation.Rule{
		validation.Required.Error(label + " is required"),
		validation.Length(2, 0).Error(label + " must be at least 2 characters"),
		validation.Length(0, 50).Error(label + " cannot exceed 50 characters"),
		validation.Match(namePattern).Error(label + " can only contain letters"),
	}
}

func passwordComplexity(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	var upper, lower, digit, symbol bool
	for _, r := range s {
		switch {
		case 'A' <= r && r <= 'Z':
			upper = true
		case 'a' <= r && r <= 'z':
			lower = true
		case '0' <= r && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
	}
	if !upper || !lower || !digit || !symbol || !passwordChar(rune(s[0])) {
		return errors.New("Password must contain uppercase, lowercase, number and special character")
	}
	return nil
}

// passwordChar reports whether r is an ASCII letter, digit or allowed symbol.
func passwordChar(r rune) bool {
	return 'A' <= r && r <= 'Z' || 'a' <= r && r <= 'z' || '0' <= r && r <= '9' ||
		strings.ContainsRune(passwordSymbols, r)
}

func ageBetween(now time.Time) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		dob, err := time.Parse(models.DateLayout, s)
		if err != nil {
			return errors.New("Date of birth must be in YYYY-MM-DD format")
		}
		if !models.AgeAllowed(dob, now) {
			return errors.New("Must be between 18 and 100 years old")
		}
		return nil
	}
}

// fieldErrors flattens ozzo validation errors into sorted "field: message"
// strings. ok is false when err is not a validation failure.
func fieldErrors(err error) (msgs []string, ok bool) {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return nil, false
	}
	for field, ferr := range verrs {
		if ferr == nil {
			continue
		}
		msgs = append(msgs, field+": "+ferr.Error())
	}
	sort.Strings(msgs)
	return msgs, true
}

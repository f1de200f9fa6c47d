package models

import (
	"strings"
	"time"
)

const (
	MinAge = 18
	MaxAge = 100

	// DateLayout is the wire format of dateOfBirth.
	DateLayout = "2006-01-02"
)

// User represents a user account in the system.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose this to the client
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	DateOfBirth  time.Time `json:"dateOfBirth"`
	IsVerified   bool      `json:"isVerified"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewUser carries the fields needed to create a user. Password is plaintext
// and is hashed by the store before anything is persisted.
type NewUser struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	DateOfBirth time.Time
}

// UserView is the sanitized shape returned to clients.
type UserView struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	DateOfBirth string    `json:"dateOfBirth"`
	IsVerified  bool      `json:"isVerified"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// View returns the client-facing representation of u.
func (u User) View() UserView {
	return UserView{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		DateOfBirth: u.DateOfBirth.Format(DateLayout),
		IsVerified:  u.IsVerified,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// NormalizeEmail trims and lowercases an address; emails are compared in this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AgeOn returns the number of full years between dob and now.
func AgeOn(dob, now time.Time) int {
	now = now.In(dob.Location())
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

// AgeAllowed reports whether dob yields an age within [MinAge, MaxAge] at now.
func AgeAllowed(dob, now time.Time) bool {
	age := AgeOn(dob, now)
	return age >= MinAge && age <= MaxAge
}

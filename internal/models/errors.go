package models

import "errors"

// Store-level errors shared by the credential store and its callers.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrDuplicateCredential = errors.New("email already registered")
	ErrInvalidUser         = errors.New("invalid user")
)

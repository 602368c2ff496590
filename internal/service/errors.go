package service

import "errors"

var (
	// ErrInvalidInput indicates a malformed or rule-violating request field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict indicates a username or email that is already taken.
	ErrConflict = errors.New("already taken")
	// ErrInvalidCredentials indicates a failed login or current-password check.
	// The message stays generic on purpose: it never says which part was wrong.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrNotFound indicates an unknown user id or username.
	ErrNotFound = errors.New("user not found")
)

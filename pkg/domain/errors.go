package domain

import (
	"errors"
	"fmt"
)

// Account errors
var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrAlreadyExists         = errors.New("already exists")
	ErrUsernameAlreadyExists = fmt.Errorf("username %w", ErrAlreadyExists)
	ErrEmailAlreadyExists    = fmt.Errorf("email %w", ErrAlreadyExists)
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidToken          = errors.New("invalid token")
)

// One-time code errors
var (
	ErrOTPNotFound = errors.New("no one-time code pending")
	ErrOTPExpired  = errors.New("one-time code expired")
	ErrOTPMismatch = errors.New("one-time code mismatch")
)

// Pet errors
var (
	ErrPetNotFound     = errors.New("pet not found")
	ErrInvalidLocation = errors.New("invalid location")
	ErrEmptyPhoto      = errors.New("photo is empty")
)

// Validation errors
var (
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrInvalidUsername  = errors.New("invalid username")
	ErrMissingField     = errors.New("missing required field")
	ErrInvalidField     = errors.New("invalid field")
	ErrWeakPassword     = errors.New("password does not meet requirements")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

// Delivery errors
var (
	ErrQueueFull   = errors.New("notification queue is full")
	ErrQueueClosed = errors.New("notification queue is closed")
)

package auth

import "errors"

// ErrUserAlreadyExists is returned by Register when the email is taken.
var ErrUserAlreadyExists = errors.New("user already exists")

// ErrInvalidCredentials is returned by Login for every authentication
// failure, whatever its cause.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrUserNotFound is returned by Recover for an unknown email.
var ErrUserNotFound = errors.New("user not found")

// ErrNoCredential is returned by Recover when the user has no credential.
var ErrNoCredential = errors.New("user has no associated credentials")

// ErrInvalidResetToken is returned by ResetPassword for unknown or used tokens.
var ErrInvalidResetToken = errors.New("invalid reset token")

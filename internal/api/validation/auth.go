package validation

import (
	"strings"
	"unicode/utf8"
)

const (
	maxEmailLength       = 254
	maxPasswordLength    = 256
	maxDisplayNameLength = 255
	maxTokenLength       = 64
)

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RegisterRequest mirrors the fields needed for register validation.
type RegisterRequest struct {
	Email       string
	Password    string
	DisplayName *string
}

// ValidateRegisterRequest validates the fields of a register request.
// Returns a slice of field errors; empty slice means valid.
func ValidateRegisterRequest(req RegisterRequest) []FieldError {
	var errs []FieldError
	errs = validateEmail(errs, req.Email)
	errs = validatePassword(errs, req.Password)

	if req.DisplayName != nil && utf8.RuneCountInString(*req.DisplayName) > maxDisplayNameLength {
		errs = append(errs, FieldError{Field: "displayName", Message: "displayName must be at most 255 characters"})
	}

	return errs
}

// ValidateLoginRequest validates the fields of a login request.
func ValidateLoginRequest(email, password string) []FieldError {
	var errs []FieldError
	errs = validateEmail(errs, email)
	if password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "password is required"})
	}
	return errs
}

// ValidateRecoverRequest validates the fields of a recover request.
func ValidateRecoverRequest(email string) []FieldError {
	return validateEmail(nil, email)
}

// ValidateResetRequest validates the fields of a password reset request.
func ValidateResetRequest(token, password string) []FieldError {
	var errs []FieldError

	token = strings.TrimSpace(token)
	if token == "" {
		errs = append(errs, FieldError{Field: "token", Message: "token is required"})
	} else if len(token) > maxTokenLength {
		errs = append(errs, FieldError{Field: "token", Message: "token is too long"})
	}

	return validatePassword(errs, password)
}

func validateEmail(errs []FieldError, email string) []FieldError {
	email = strings.TrimSpace(email)
	if email == "" {
		return append(errs, FieldError{Field: "email", Message: "email is required"})
	}
	if len(email) > maxEmailLength {
		return append(errs, FieldError{Field: "email", Message: "email must be at most 254 characters"})
	}
	return errs
}

func validatePassword(errs []FieldError, password string) []FieldError {
	if password == "" {
		return append(errs, FieldError{Field: "password", Message: "password is required"})
	}
	if utf8.RuneCountInString(password) > maxPasswordLength {
		return append(errs, FieldError{Field: "password", Message: "password must be at most 256 characters"})
	}
	return errs
}

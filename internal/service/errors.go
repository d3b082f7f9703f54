package service

import (
	"errors"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("user is not signed in")
	ErrForbidden       = errors.New("not allowed to access this order")
	ErrPriceMismatch   = errors.New("submitted total does not match the current price")
	ErrUnknownOrder    = errors.New("payment references an unknown order")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed. Nothing is written when it is returned.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func fieldError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

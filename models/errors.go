package models

import (
	"fmt"
	"strings"
)

// ValidationError is returned by local checks. Message is user facing.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// FieldError builds "<field> <msg>".
func FieldError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf("%s %s", field, msg)}
}

// Invalid keeps msg as the full message.
func Invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// StockError reports that a crop no longer has the requested quantity.
type StockError struct {
	CropID    string
	CropName  string
	Available int
}

func (e *StockError) Error() string {
	if e.CropName != "" {
		return fmt.Sprintf("Only %d available for %s", e.Available, e.CropName)
	}
	return fmt.Sprintf("Only %d available", e.Available)
}

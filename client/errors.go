package client

import (
	"errors"
	"fmt"
	"net/http"

	"cropconnect/models"
)

// ValidationError is a local check failure. No request was sent.
type ValidationError = models.ValidationError

var (
	ErrUnauthorized     = errors.New("your session has expired, please log in again")
	ErrPaymentDismissed = errors.New("payment was cancelled")
	ErrPaymentFailed    = errors.New("payment failed")
	ErrInFlight         = errors.New("this action is already in progress")
	ErrNotConfirmed     = errors.New("action not confirmed")
)

// NetworkError means the server could not be reached after every retry.
type NetworkError struct {
	Method   string
	Path     string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return "Unable to reach the server. Check your connection and try again."
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError carries a non-2xx response. Message is the server's text verbatim.
type APIError struct {
	Status            int
	Message           string
	AvailableQuantity *int
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

func (e *APIError) IsConflict() bool { return e.Status == http.StatusConflict }

func (e *APIError) IsNotFound() bool { return e.Status == http.StatusNotFound }

// StockConflictError is returned when the server rejects a cart quantity.
// Available is the authoritative stock at rejection time.
type StockConflictError struct {
	ItemID    string
	Available int
	Message   string
}

func (e *StockConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Only %d available", e.Available)
}

// IsConflict reports whether err is a 409 from the server.
func IsConflict(err error) bool {
	var api *APIError
	return errors.As(err, &api) && api.IsConflict()
}

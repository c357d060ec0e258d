// Package apperr holds the error taxonomy shared by repositories, services and handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrSignatureMismatch  = errors.New("signature mismatch")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidOperation   = errors.New("invalid operation")
	ErrConflict           = errors.New("conflict")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")

	// ErrInvalidProductSet is a validation error: a referenced product is missing or unpublished.
	ErrInvalidProductSet = fmt.Errorf("%w: invalid product set", ErrValidation)
)

// StatusCode maps an error to the HTTP status it is rendered with.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrSignatureMismatch), errors.Is(err, ErrInvalidOperation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client facing message for err. Server side failures get a generic text
// so that storage or provider details never reach the caller.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrGatewayUnavailable) {
		return "Error in processing payment, please try again."
	}
	if StatusCode(err) >= http.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}

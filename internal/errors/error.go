// Package errors defines the failure taxonomy shared by the storefront components.
package errors

import "errors"

var (
	// ErrUnauthenticated means no usable credential, or the backend rejected it (401/403).
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnavailable covers transport failures and unexpected backend statuses.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrValidationRejected means the input was refused locally; previous state is kept.
	ErrValidationRejected = errors.New("validation rejected")
	ErrNotFound           = errors.New("not found")

	ErrCartEmpty  = errors.New("cart is empty")
	ErrBusy       = errors.New("operation already in progress")
	ErrSuperseded = errors.New("superseded by a newer request")
)

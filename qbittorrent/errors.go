package qbittorrent

import (
	"errors"
	"fmt"
)

// Error kinds returned by the qBittorrent clients. Match them with errors.Is.
var (
	// ErrAuthenticationFailed is returned when logging in to qBittorrent fails.
	ErrAuthenticationFailed = errors.New("authentication with qBittorrent failed")

	// ErrTransportFailed is returned when a request to qBittorrent fails after login.
	ErrTransportFailed = errors.New("request to qBittorrent failed")

	// ErrValidationFailed is returned when an argument is missing or malformed.
	ErrValidationFailed = errors.New("invalid argument")

	// ErrEndpointNotFound is returned when the daemon does not know an endpoint.
	ErrEndpointNotFound = errors.New("endpoint not found")
)

// OperationError describes a failed client operation.
type OperationError struct {
	Op   string
	Kind error
	Err  error
}

// Error implements the error interface
func (e *OperationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the underlying cause.
func (e *OperationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// APIError represents a non-2xx response from the qBittorrent Web API
type APIError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("qbittorrent API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("qbittorrent API error: status %d: %s", e.StatusCode, e.Body)
}

// IsNotFound checks if the error indicates a not found response
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsForbidden checks if the session was rejected or the client IP is banned
func (e *APIError) IsForbidden() bool {
	return e.StatusCode == 403
}

func opError(op string, kind, err error) error {
	return &OperationError{Op: op, Kind: kind, Err: err}
}

func validationError(op, reason string) error {
	return &OperationError{Op: op, Kind: ErrValidationFailed, Err: errors.New(reason)}
}

// isNotFound reports whether err carries a 404 from the Web API.
func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsNotFound()
}

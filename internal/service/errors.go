package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
)

// ErrNoBaseURL is returned when the client has no backend configured.
var ErrNoBaseURL = errors.New("no backend URL configured")

// ErrorType represents the category of transport failure
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates the backend refused the connection
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeHTTP indicates a non-2xx response without a usable Problem body
	ErrTypeHTTP
	// ErrTypeParse indicates a malformed response body
	ErrTypeParse
	// ErrTypeCanceled indicates the caller's context ended the request
	ErrTypeCanceled
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeCanceled:
		return "Canceled"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// TransportError is a classified failure talking to the backend.
type TransportError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Host       string
	Err        error
	Retryable  bool
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError analyzes an error returned by http.Client.Do.
func ClassifyNetworkError(err error, host string) *TransportError {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return &TransportError{Type: ErrTypeCanceled, Message: "Request canceled", Host: host, Err: err}
	}

	if os.IsTimeout(err) {
		return &TransportError{
			Type:      ErrTypeTimeout,
			Message:   "Request timed out",
			Host:      host,
			Err:       err,
			Retryable: true,
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &TransportError{
			Type:    ErrTypeDNS,
			Message: fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Host:    host,
			Err:     err,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return &TransportError{
				Type:      ErrTypeConnectionRefused,
				Message:   "Backend refused connection",
				Host:      host,
				Err:       err,
				Retryable: true,
			}
		}
		if errors.Is(opErr.Err, syscall.EHOSTUNREACH) || errors.Is(opErr.Err, syscall.ENETUNREACH) {
			return &TransportError{
				Type:      ErrTypeNetwork,
				Message:   "Backend unreachable",
				Host:      host,
				Err:       err,
				Retryable: true,
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != err {
		return ClassifyNetworkError(urlErr.Err, host)
	}

	return &TransportError{
		Type:      ErrTypeNetwork,
		Message:   "Network error occurred",
		Host:      host,
		Err:       err,
		Retryable: true,
	}
}

// NewHTTPError creates an HTTP-level error. Server errors are retryable.
func NewHTTPError(statusCode int, message string) *TransportError {
	return &TransportError{
		Type:       ErrTypeHTTP,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  statusCode >= 500,
	}
}

// NewParseError creates a parsing error
func NewParseError(message string, err error) *TransportError {
	return &TransportError{
		Type:    ErrTypeParse,
		Message: message,
		Err:     err,
	}
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return false
}

// ShortMessage returns a concise, user-facing message for err.
func ShortMessage(err error) string {
	if errors.Is(err, ErrNoBaseURL) {
		return "No backend configured - set --api or run scan"
	}

	var te *TransportError
	if !errors.As(err, &te) {
		return "Something went wrong. Please try again."
	}

	switch te.Type {
	case ErrTypeTimeout:
		return "Server not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Server refused connection - is it running?"
	case ErrTypeDNS:
		return "Cannot resolve server hostname"
	case ErrTypeNetwork:
		return "Network error - check connection"
	case ErrTypeHTTP:
		return fmt.Sprintf("Server error (HTTP %d)", te.StatusCode)
	case ErrTypeParse:
		return "Failed to read server response"
	case ErrTypeCanceled:
		return "Request canceled"
	default:
		return te.Message
	}
}

// Package service is the HTTP client for the incident backend.
//
// Every call returns a Result, a tagged union decided once at this boundary:
//
//	OK(value)                 2xx with a JSON resource (or no body)
//	FieldValidation(errors)   non-2xx whose Problem body carries a non-empty field map
//	General(message)          any other failure, including transport errors
//
// Callers never inspect HTTP status codes or raw errors. Transport failures
// are classified (see TransportError) and converted into General results with
// a short, user-facing message.
//
// Idempotent requests (GET and validate-only submissions) are retried with
// exponential backoff when the failure is transient. Mutating requests are
// sent exactly once.
package service

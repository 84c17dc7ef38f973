package models

import (
	"fmt"
)

// ValidationError represents rejected user input (the InvalidInput class).
// It is returned before any request leaves the process.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// NetworkError means the forecast API could not be reached, or the request was
// cancelled or timed out before a response arrived.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsTransient returns true; the same request may succeed later
func (e *NetworkError) IsTransient() bool {
	return true
}

// APIError is a well-formed response in which the forecast API rejected the request.
// Reason is the upstream text, shown to the user verbatim.
type APIError struct {
	StatusCode int
	Reason     string
}

func (e *APIError) Error() string {
	return "API Error: " + e.Reason
}

// IsTransient reports whether the upstream status suggests a retry could succeed
func (e *APIError) IsTransient() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// MalformedResponseError means the response body did not have the expected shape
type MalformedResponseError struct {
	Detail string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed forecast response: %s: %v", e.Detail, e.Err)
	}
	return "malformed forecast response: " + e.Detail
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// IsTransient returns false
func (e *MalformedResponseError) IsTransient() bool {
	return false
}

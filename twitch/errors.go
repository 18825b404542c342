package twitch

import (
	"errors"
	"fmt"
)

//NotFoundError is returned when the platform has no record of a requested user.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%v not found", e.What)
}

//APIError is a non-success response from the platform API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitch api returned %d: %v", e.StatusCode, e.Body)
}

//Transient reports whether retrying the same request later may succeed.
func (e *APIError) Transient() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

//TransportError wraps failures to reach the API at all.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to reach twitch api: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

//MalformedEventError is returned when an incoming notification lacks the fields needed to act on it.
type MalformedEventError struct {
	Reason string
}

func (e *MalformedEventError) Error() string {
	return "malformed event: " + e.Reason
}

//IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

//IsTransient reports whether err is a platform failure worth retrying.
func IsTransient(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var ae *APIError
	return errors.As(err, &ae) && ae.Transient()
}

//IsMalformed reports whether err is or wraps a MalformedEventError.
func IsMalformed(err error) bool {
	var me *MalformedEventError
	return errors.As(err, &me)
}

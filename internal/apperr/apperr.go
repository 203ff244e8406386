// Package apperr defines the error kinds the gateway surfaces to clients.
//
// Collaborator failures are translated into an *Error at the boundary where
// they happen so that handlers never see raw transport errors.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	InvalidRequest        Kind = "InvalidRequest"
	MalformedUpstreamData Kind = "MalformedUpstreamData"
	UpstreamUnavailable   Kind = "UpstreamUnavailable"
	InvalidAttachment     Kind = "InvalidAttachment"
	ContentRejected       Kind = "ContentRejected"
	StorageUploadFailed   Kind = "StorageUploadFailed"
	PostPersistFailed     Kind = "PostPersistFailed"
	AuthRejected          Kind = "AuthRejected"
)

// Error is a classified failure. Message is safe to show to clients; Err
// holds the underlying cause and is only ever logged.
type Error struct {
	Kind         Kind
	Collaborator string
	Status       int
	Message      string
	Err          error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Collaborator != "" {
		msg += " (" + e.Collaborator
		if e.Status != 0 {
			msg += fmt.Sprintf(", status %d", e.Status)
		}
		msg += ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an *Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Upstream reports a failed call to a collaborator. status is 0 when the
// collaborator never answered.
func Upstream(kind Kind, collaborator string, status int, message string, cause error) *Error {
	return &Error{Kind: kind, Collaborator: collaborator, Status: status, Message: message, Err: cause}
}

// KindOf returns the kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps err onto the status code returned to the client.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}

	switch e.Kind {
	case InvalidRequest, InvalidAttachment:
		return http.StatusBadRequest
	case ContentRejected:
		return http.StatusUnprocessableEntity
	case AuthRejected:
		if e.Status != 0 {
			return e.Status
		}
		return http.StatusUnauthorized
	case UpstreamUnavailable:
		// pass the upstream status through when the collaborator answered,
		// except auth statuses, which clients must only see from the gateway
		switch {
		case e.Status == http.StatusUnauthorized, e.Status == http.StatusForbidden,
			e.Status == http.StatusProxyAuthRequired:
			return http.StatusBadGateway
		case e.Status >= 400 && e.Status <= 599:
			return e.Status
		}
		return http.StatusBadGateway
	case MalformedUpstreamData, StorageUploadFailed, PostPersistFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the client-facing message for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "An unexpected error occurred"
}

package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Kind classifies why a backend call failed.
type Kind string

const (
	KindNetwork   Kind = "network"
	KindAuth      Kind = "auth"
	KindQuota     Kind = "quota"
	KindMalformed Kind = "malformed"
)

// BackendError is returned by Backend.Chat.
type BackendError struct {
	Backend ID
	Kind    Kind
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend (%s): %v", e.Backend, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// ErrEmptyReply is returned when a provider answered without any text.
var ErrEmptyReply = errors.New("empty reply")

// kindForStatus maps an HTTP status code to an error kind.
func kindForStatus(code int) Kind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusTooManyRequests:
		return KindQuota
	}
	return KindNetwork
}

// isMalformed reports errors caused by an unusable response body.
func isMalformed(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.Is(err, ErrEmptyReply) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.As(err, &syntaxErr) ||
		errors.As(err, &typeErr)
}

// wrap builds a BackendError, using status when the provider reported one.
func wrap(id ID, err error, status int) *BackendError {
	kind := KindNetwork
	switch {
	case status != 0:
		kind = kindForStatus(status)
	case isMalformed(err):
		kind = KindMalformed
	}
	return &BackendError{Backend: id, Kind: kind, Err: err}
}

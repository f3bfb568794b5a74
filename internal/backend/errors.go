package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetwork wraps transport failures: the backend was never reached or
	// the response could not be read.
	ErrNetwork = errors.New("backend: network failure")
	// ErrUnauthorized matches any 401. The session has already been expired
	// by the time a caller sees it.
	ErrUnauthorized = errors.New("backend: unauthorized")
	// ErrDuplicate matches a 422 rejecting a chat name the user already has.
	ErrDuplicate = errors.New("backend: duplicate resource")
)

// DuplicateChatName is the error text the backend uses for a rename clash.
const DuplicateChatName = "Nama chat sudah digunakan oleh Anda"

// APIError is a non-2xx response, or a 2xx response carrying only a message.
type APIError struct {
	Status  int
	Message string
	// Code is the response's "error" field, when present.
	Code string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend: status %d", e.Status)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrDuplicate:
		return e.Status == http.StatusUnprocessableEntity && e.Code == DuplicateChatName
	}
	return false
}

// Message returns the backend's message for err, or fallback.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels. Typed errors below match these through errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateIdentity = errors.New("duplicate contact identity")
	ErrTransport         = errors.New("external service unreachable")
	ErrMalformedResponse = errors.New("malformed response")
	ErrStoreUnavailable  = errors.New("contact store unavailable")
	ErrValidation        = errors.New("validation failed")
	ErrPassInProgress    = errors.New("another pass is already running")
	ErrAttemptCapReached = errors.New("follow-up attempt cap reached")
	ErrContactChanged    = errors.New("contact changed since it was read")
)

// ErrContactNotFound is returned when an update targets an identity that no longer exists.
type ErrContactNotFound struct {
	Identity string
}

func (e *ErrContactNotFound) Error() string {
	return fmt.Sprintf("contact %q not found", e.Identity)
}

func (e *ErrContactNotFound) Is(target error) bool { return target == ErrNotFound }

func NewContactNotFound(identity string) error {
	return &ErrContactNotFound{Identity: identity}
}

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

func (e *ErrCampaignNotFound) Is(target error) bool { return target == ErrNotFound }

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// TransportError wraps a failed round-trip to the automation agent or the generation service.
type TransportError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d: %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

func NewTransportError(service string, status int, err error) error {
	return &TransportError{Service: service, StatusCode: status, Err: err}
}

// MalformedResponse reports an external payload missing expected fields.
type MalformedResponse struct {
	Service string
	Detail  string
	Err     error
}

func (e *MalformedResponse) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: malformed response: %s: %v", e.Service, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: malformed response: %s", e.Service, e.Detail)
}

func (e *MalformedResponse) Unwrap() error { return e.Err }

func (e *MalformedResponse) Is(target error) bool { return target == ErrMalformedResponse }

func NewMalformedResponse(service, detail string, err error) error {
	return &MalformedResponse{Service: service, Detail: detail, Err: err}
}

// StoreUnavailable marks err as a storage failure that should abort a whole pass.
func StoreUnavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// Validation wraps a caller input problem.
func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// HTTPStatus maps an error from the domain layer onto a response status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateIdentity), errors.Is(err, ErrPassInProgress), errors.Is(err, ErrContactChanged):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrTransport), errors.Is(err, ErrMalformedResponse):
		return http.StatusBadGateway
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

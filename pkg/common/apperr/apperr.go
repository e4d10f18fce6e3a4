package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gestione-formulari/dashboard/pkg/common/models"
)

// ValidationError marks a request rejected before any I/O took place.
type ValidationError struct {
	reason error
}

func Validation(format string, args ...interface{}) error {
	return ValidationError{reason: fmt.Errorf(format, args...)}
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// UpstreamError is a failure status returned by the store or an external
// service. Status and Detail are surfaced to the caller as-is.
type UpstreamError struct {
	Service string
	Status  int
	Detail  string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s responded %d %s", e.Service, e.Status, http.StatusText(e.Status))
}

func AsUpstream(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// UnavailableError means the service could not be reached at all.
type UnavailableError struct {
	Service string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unreachable: %v", e.Service, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// ConflictError rejects an action while another one on the same record is
// still in flight.
type ConflictError struct {
	UID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("an action on formulario %s is already in progress", e.UID)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

var ErrNotFound = errors.New("not found")

// StatusCode maps an error to the HTTP status it is surfaced with.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsUnavailable(err):
		return http.StatusServiceUnavailable
	}
	if ue, ok := AsUpstream(err); ok && ue.Status >= 400 {
		return ue.Status
	}
	return http.StatusInternalServerError
}

// Write renders err as a JSON error body. Internal errors get a generic
// message; callers log the cause before calling Write.
func Write(w http.ResponseWriter, err error, internalMessage string) {
	status := StatusCode(err)
	body := models.ErrorResponse{Error: internalMessage}

	switch {
	case IsValidation(err), IsConflict(err), errors.Is(err, ErrNotFound):
		body.Error = err.Error()
	case IsUnavailable(err):
		var ue *UnavailableError
		errors.As(err, &ue)
		body.Error = fmt.Sprintf("Unable to connect to %s. Please check if the service is running.", ue.Service)
	default:
		if ue, ok := AsUpstream(err); ok && ue.Status >= 400 {
			body.Error = ue.Error()
			body.Details = ue.Detail
		}
	}

	WriteJSON(w, status, body)
}

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/sehansi-9/gztprocessor/internal/backend"
	"github.com/sehansi-9/gztprocessor/internal/commit"
	"github.com/sehansi-9/gztprocessor/internal/draft"
	"github.com/sehansi-9/gztprocessor/internal/gitrepo"
	"github.com/sehansi-9/gztprocessor/internal/workspace"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}

var errNotReady = domainError(http.StatusServiceUnavailable, "NOT_READY", "President registry not loaded", nil)

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var validation *draft.ValidationError
	if errors.As(err, &validation) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", validation.Message, map[string]any{"action": validation.Action}
	}
	var commitErr *commit.Error
	if errors.As(err, &commitErr) {
		return http.StatusBadGateway, "COMMIT_FAILED", commitErr.Error(), map[string]any{"gazette": commitErr.Number}
	}
	var reported *backend.ReportedError
	if errors.As(err, &reported) {
		return http.StatusBadGateway, "BACKEND_ERROR", reported.Message, map[string]any{"op": reported.Op}
	}
	var statusErr *backend.StatusError
	if errors.As(err, &statusErr) {
		return http.StatusBadGateway, "BACKEND_ERROR", statusErr.Error(), map[string]any{"op": statusErr.Op, "status": statusErr.Status}
	}
	switch {
	case errors.Is(err, workspace.ErrNotFound), errors.Is(err, gitrepo.ErrNoJournal):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, workspace.ErrDuplicate):
		return http.StatusConflict, "DUPLICATE_GAZETTE", err.Error(), nil
	case errors.Is(err, workspace.ErrStale):
		return http.StatusConflict, "STALE_GAZETTE", err.Error(), nil
	case errors.Is(err, commit.ErrNoDraft):
		return http.StatusUnprocessableEntity, "NO_DRAFT", err.Error(), nil
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT", "Upstream timed out", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

// backendFailure wraps a transport-level failure that carries no typed
// backend error so it still maps to 502.
func backendFailure(op string, err error) error {
	var reported *backend.ReportedError
	var statusErr *backend.StatusError
	if errors.As(err, &reported) || errors.As(err, &statusErr) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &DomainError{Status: http.StatusBadGateway, Code: "BACKEND_ERROR", Message: fmt.Sprintf("%s: %v", op, err)}
}

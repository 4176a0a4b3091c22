package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

var (
	ErrNotConfigured       = errors.New("core: integration is not configured")
	ErrIntegrationNotFound = errors.New("core: integration not found")
	ErrConnectionNotFound  = errors.New("core: connection not found")
	ErrInvalidState        = errors.New("core: oauth state invalid")
	ErrCallbackFailed      = errors.New("core: oauth callback failed")
	ErrTokenExchange       = errors.New("core: token exchange failed")
	ErrDecryption          = errors.New("core: credential payload unreadable")
	ErrForbidden           = errors.New("core: access denied")
	ErrSelfGrant           = errors.New("core: owner cannot be granted access to their own connection")
)

const (
	IntegrationsErrorBadInput            = "INTEGRATIONS_BAD_INPUT"
	IntegrationsErrorNotConfigured       = "INTEGRATIONS_NOT_CONFIGURED"
	IntegrationsErrorNotFound            = "INTEGRATIONS_NOT_FOUND"
	IntegrationsErrorOAuthStateInvalid   = "INTEGRATIONS_OAUTH_STATE_INVALID"
	IntegrationsErrorCallbackFailed      = "INTEGRATIONS_CALLBACK_FAILED"
	IntegrationsErrorTokenExchangeFailed = "INTEGRATIONS_TOKEN_EXCHANGE_FAILED"
	IntegrationsErrorCredentialUnusable  = "INTEGRATIONS_CREDENTIAL_UNREADABLE"
	IntegrationsErrorForbidden           = "INTEGRATIONS_FORBIDDEN"
	IntegrationsErrorInternal            = "INTEGRATIONS_INTERNAL_ERROR"
)

func integrationsErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureIntegrationsErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrNotConfigured):
		return newIntegrationsError(err.Error(), goerrors.CategoryConflict, IntegrationsErrorNotConfigured)
	case errors.Is(err, ErrIntegrationNotFound), errors.Is(err, ErrConnectionNotFound):
		return newIntegrationsError(err.Error(), goerrors.CategoryNotFound, IntegrationsErrorNotFound)
	case errors.Is(err, ErrInvalidState):
		return newIntegrationsError(err.Error(), goerrors.CategoryAuth, IntegrationsErrorOAuthStateInvalid)
	case errors.Is(err, ErrCallbackFailed):
		return newIntegrationsError(err.Error(), goerrors.CategoryOperation, IntegrationsErrorCallbackFailed)
	case errors.Is(err, ErrTokenExchange):
		return newIntegrationsError(err.Error(), goerrors.CategoryOperation, IntegrationsErrorTokenExchangeFailed)
	case errors.Is(err, ErrDecryption):
		return newIntegrationsError(err.Error(), goerrors.CategoryOperation, IntegrationsErrorCredentialUnusable)
	case errors.Is(err, ErrForbidden):
		return newIntegrationsError(err.Error(), goerrors.CategoryAuthz, IntegrationsErrorForbidden)
	case errors.Is(err, ErrSelfGrant):
		return newIntegrationsError(err.Error(), goerrors.CategoryBadInput, IntegrationsErrorBadInput)
	case errors.Is(err, ErrInvalidConnectionStatusTransition):
		return newIntegrationsError(err.Error(), goerrors.CategoryBadInput, IntegrationsErrorBadInput)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"):
		return newIntegrationsError(err.Error(), goerrors.CategoryNotFound, IntegrationsErrorNotFound)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newIntegrationsError(err.Error(), goerrors.CategoryBadInput, IntegrationsErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureIntegrationsErrorEnvelope(mapped)
}

func newIntegrationsError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureIntegrationsErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureIntegrationsErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = integrationsHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultIntegrationsTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultIntegrationsTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return IntegrationsErrorBadInput
	case goerrors.CategoryNotFound:
		return IntegrationsErrorNotFound
	case goerrors.CategoryAuth:
		return IntegrationsErrorOAuthStateInvalid
	case goerrors.CategoryAuthz:
		return IntegrationsErrorForbidden
	case goerrors.CategoryConflict:
		return IntegrationsErrorNotConfigured
	case goerrors.CategoryOperation:
		return IntegrationsErrorTokenExchangeFailed
	default:
		return IntegrationsErrorInternal
	}
}

func integrationsHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

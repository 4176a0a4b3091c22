package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func errorHasTextCode(err error, textCode string) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == textCode
}

func TestErrorMapperSentinels(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		category goerrors.Category
		textCode string
		status   int
	}{
		{"not configured", fmt.Errorf("%w: hubspot", ErrNotConfigured), goerrors.CategoryConflict, IntegrationsErrorNotConfigured, http.StatusConflict},
		{"integration not found", fmt.Errorf("%w: hubspot", ErrIntegrationNotFound), goerrors.CategoryNotFound, IntegrationsErrorNotFound, http.StatusNotFound},
		{"connection not found", fmt.Errorf("%w: conn-1", ErrConnectionNotFound), goerrors.CategoryNotFound, IntegrationsErrorNotFound, http.StatusNotFound},
		{"invalid state", fmt.Errorf("%w: replay", ErrInvalidState), goerrors.CategoryAuth, IntegrationsErrorOAuthStateInvalid, http.StatusUnauthorized},
		{"callback failed", fmt.Errorf("%w: access_denied", ErrCallbackFailed), goerrors.CategoryOperation, IntegrationsErrorCallbackFailed, http.StatusInternalServerError},
		{"token exchange", fmt.Errorf("%w: 500", ErrTokenExchange), goerrors.CategoryOperation, IntegrationsErrorTokenExchangeFailed, http.StatusInternalServerError},
		{"decryption", fmt.Errorf("%w: bad envelope", ErrDecryption), goerrors.CategoryOperation, IntegrationsErrorCredentialUnusable, http.StatusInternalServerError},
		{"forbidden", fmt.Errorf("%w: user-2", ErrForbidden), goerrors.CategoryAuthz, IntegrationsErrorForbidden, http.StatusForbidden},
		{"self grant", fmt.Errorf("%w: user-1", ErrSelfGrant), goerrors.CategoryBadInput, IntegrationsErrorBadInput, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := integrationsErrorMapper(tc.err)
			if mapped == nil {
				t.Fatal("mapper returned nil")
			}
			if mapped.Category != tc.category {
				t.Fatalf("category = %v, want %v", mapped.Category, tc.category)
			}
			if mapped.TextCode != tc.textCode {
				t.Fatalf("text code = %q, want %q", mapped.TextCode, tc.textCode)
			}
			if mapped.Code != tc.status {
				t.Fatalf("http status = %d, want %d", mapped.Code, tc.status)
			}
		})
	}
}

func TestErrorMapperPassesRichErrorsThrough(t *testing.T) {
	original := goerrors.New("already mapped", goerrors.CategoryNotFound).WithTextCode("CUSTOM_CODE")
	mapped := integrationsErrorMapper(original)
	if mapped != original {
		t.Fatal("rich error should pass through unchanged")
	}
	if mapped.TextCode != "CUSTOM_CODE" {
		t.Fatalf("text code = %q, want CUSTOM_CODE", mapped.TextCode)
	}
	if mapped.Code != http.StatusNotFound {
		t.Fatalf("http status = %d, want %d", mapped.Code, http.StatusNotFound)
	}
}

func TestErrorMapperMessageHeuristics(t *testing.T) {
	notFound := integrationsErrorMapper(errors.New("row not found"))
	if notFound.Category != goerrors.CategoryNotFound {
		t.Fatalf("category = %v, want not found", notFound.Category)
	}

	badInput := integrationsErrorMapper(errors.New("core: integration key is required"))
	if badInput.Category != goerrors.CategoryBadInput {
		t.Fatalf("category = %v, want bad input", badInput.Category)
	}
}

func TestErrorMapperNil(t *testing.T) {
	if integrationsErrorMapper(nil) != nil {
		t.Fatal("nil error should map to nil")
	}
}

package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestConstructorsCarryCodeAndStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"validation", NewValidationError("bad input", nil), CodeValidation, http.StatusBadRequest},
		{"not found", NewNotFound("issue", nil), CodeNotFound, http.StatusNotFound},
		{"unauthorized", NewUnauthorized("no token"), CodeUnauthorized, http.StatusUnauthorized},
		{"forbidden", NewForbidden("nope"), CodeForbidden, http.StatusForbidden},
		{"conflict", NewConflict("already accepted", nil), CodeConflict, http.StatusConflict},
		{"internal", NewInternalError(errors.New("boom")), CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var domainErr *DomainError
			if !errors.As(tt.err, &domainErr) {
				t.Fatalf("%T is not a *DomainError", tt.err)
			}
			if domainErr.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", domainErr.Code, tt.wantCode)
			}
			if domainErr.HTTPStatus != tt.wantStatus {
				t.Errorf("HTTPStatus = %d, want %d", domainErr.HTTPStatus, tt.wantStatus)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(NewForbidden("nope")); got != CodeForbidden {
		t.Errorf("CodeOf(forbidden) = %s, want %s", got, CodeForbidden)
	}
	wrapped := fmt.Errorf("service: %w", NewConflict("taken", nil))
	if got := CodeOf(wrapped); got != CodeConflict {
		t.Errorf("CodeOf(wrapped conflict) = %s, want %s", got, CodeConflict)
	}
	if got := CodeOf(errors.New("plain")); got != CodeInternal {
		t.Errorf("CodeOf(plain) = %s, want %s", got, CodeInternal)
	}
}

func TestToDomainErrorMapsNoRows(t *testing.T) {
	mapped := ToDomainError(pgx.ErrNoRows)
	if mapped.Code != CodeNotFound {
		t.Errorf("Code = %s, want %s", mapped.Code, CodeNotFound)
	}
	if mapped.HTTPStatus != http.StatusNotFound {
		t.Errorf("HTTPStatus = %d, want 404", mapped.HTTPStatus)
	}
}

func TestToDomainErrorPreservesExisting(t *testing.T) {
	original := NewValidationError("cost required", map[string]any{"field": "cost"})
	mapped := ToDomainError(fmt.Errorf("transition: %w", original))
	if mapped.Code != CodeValidation {
		t.Errorf("Code = %s, want %s", mapped.Code, CodeValidation)
	}
	if mapped.Details["field"] != "cost" {
		t.Errorf("Details = %v, want field=cost preserved", mapped.Details)
	}
}

func TestToDomainErrorNil(t *testing.T) {
	if got := ToDomainError(nil); got != nil {
		t.Errorf("ToDomainError(nil) = %v, want nil", got)
	}
}

package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorUnwrapAndCode(t *testing.T) {
	base := New(http.StatusNotFound, "csv_not_found", errors.New(`CSV "x" not found.`))
	wrapped := fmt.Errorf("load: %w", base)

	if got := StatusOf(wrapped); got != http.StatusNotFound {
		t.Fatalf("StatusOf: want=%d got=%d", http.StatusNotFound, got)
	}
	if got := CodeOf(wrapped); got != "csv_not_found" {
		t.Fatalf("CodeOf: want=%q got=%q", "csv_not_found", got)
	}
	if !errors.Is(wrapped, New(0, "csv_not_found", nil)) {
		t.Fatalf("errors.Is should match by code")
	}
	if errors.Is(wrapped, New(0, "job_not_found", nil)) {
		t.Fatalf("errors.Is must not match a different code")
	}
}

func TestStatusOfPlainError(t *testing.T) {
	if got := StatusOf(errors.New("boom")); got != http.StatusInternalServerError {
		t.Fatalf("StatusOf: want=500 got=%d", got)
	}
}

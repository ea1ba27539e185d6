package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := New(NotFound, "apply", errors.New("missing")).WithPath("a.ts")
	wrapped := fmt.Errorf("handler: %w", base)

	if got := KindOf(wrapped); got != NotFound {
		t.Errorf("KindOf() = %s, want %s", got, NotFound)
	}
	if got := KindOf(errors.New("plain")); got != FileSystemError {
		t.Errorf("KindOf(plain) = %s, want %s", got, FileSystemError)
	}
	if !errors.Is(wrapped, &Error{Kind: NotFound}) {
		t.Error("errors.Is should match on kind")
	}
	if errors.Is(wrapped, &Error{Kind: Forbidden}) {
		t.Error("errors.Is should not match a different kind")
	}
	if !IsKind(wrapped, NotFound) {
		t.Error("IsKind should match")
	}
}

func TestErrorMessage(t *testing.T) {
	err := New(InvalidBackupPath, "restore", errors.New("missing .bak suffix")).WithPath("foo.ts")
	want := "restore: invalid_backup_path (foo.ts): missing .bak suffix"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestHTTPStatus(t *testing.T) {
	testCases := []struct {
		kind Kind
		want int
	}{
		{InvalidInput, http.StatusBadRequest},
		{InvalidBackupPath, http.StatusBadRequest},
		{Forbidden, http.StatusForbidden},
		{NotFound, http.StatusNotFound},
		{UpstreamUnavailable, http.StatusInternalServerError},
		{UpstreamTimeout, http.StatusInternalServerError},
		{CacheCorrupt, http.StatusInternalServerError},
		{ScanAborted, http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		t.Run(string(tc.kind), func(t *testing.T) {
			if got := HTTPStatus(tc.kind); got != tc.want {
				t.Errorf("HTTPStatus(%s) = %d, want %d", tc.kind, got, tc.want)
			}
		})
	}
}

func TestDetailsOf(t *testing.T) {
	err := fmt.Errorf("wrap: %w", New(InvalidUpstreamResponse, "rules", nil).WithDetails("raw text"))
	if got := DetailsOf(err); got != "raw text" {
		t.Errorf("DetailsOf() = %v, want raw text", got)
	}
}

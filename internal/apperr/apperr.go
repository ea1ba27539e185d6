// Package apperr defines the error taxonomy shared by the services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so callers can decide how to surface it.
type Kind string

const (
	InvalidInput            Kind = "invalid_input"
	NotFound                Kind = "not_found"
	Forbidden               Kind = "forbidden"
	UpstreamUnavailable     Kind = "upstream_unavailable"
	UpstreamTimeout         Kind = "upstream_timeout"
	InvalidUpstreamResponse Kind = "invalid_upstream_response"
	CacheCorrupt            Kind = "cache_corrupt"
	FileSystemError         Kind = "filesystem_error"
	FileUnreadable          Kind = "file_unreadable"
	ScanAborted             Kind = "scan_aborted"
	ScanRootUnavailable     Kind = "scan_root_unavailable"
	InvalidBackupPath       Kind = "invalid_backup_path"
)

// Error is a classified failure. Details carries opaque diagnostic data
// (usually raw upstream text) that is forwarded to API callers as-is.
type Error struct {
	Kind    Kind
	Op      string
	Path    string
	Err     error
	Details any
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind, so errors.Is(err, &Error{Kind: NotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// New builds a classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a classified error with a formatted cause.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// WithPath attaches the filesystem path the failure relates to.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithDetails attaches opaque diagnostic data.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// KindOf returns the Kind of the first *Error in err's chain, or FileSystemError
// for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return FileSystemError
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// DetailsOf returns the Details of the first *Error in err's chain.
func DetailsOf(err error) any {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// HTTPStatus maps a kind to the status code used by the API.
func HTTPStatus(kind Kind) int {
	switch kind {
	case InvalidInput, InvalidBackupPath:
		return http.StatusBadRequest
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

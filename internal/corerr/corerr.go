// Package corerr defines the abstract error taxonomy shared by every
// core component, so callers can branch on Kind instead of parsing
// messages or matching concrete types from individual packages.
package corerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the abstract error categories a core operation can fail with.
type Kind int

const (
	// NotFound indicates the file or cache entry was missing at the moment of access.
	NotFound Kind = iota
	// PermissionDenied indicates the file could not be read or written due to permissions.
	PermissionDenied
	// FileLocked indicates the file is held open elsewhere and could not be read or written.
	FileLocked
	// IoError indicates any other OS I/O failure during read/stat/watch.
	IoError
	// StoreError indicates the persistent store rejected the operation or is unavailable.
	StoreError
	// ExternalToolError indicates the metadata tool process failed, crashed, or returned
	// unparseable output.
	ExternalToolError
	// Cancelled indicates cooperative cancellation was observed.
	Cancelled
	// Validation indicates a staged value violates a field-specific rule.
	Validation
	// Conflict indicates a write would overwrite a file with pre-existing on-disk changes.
	Conflict
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case PermissionDenied:
		return "permission_denied"
	case FileLocked:
		return "file_locked"
	case IoError:
		return "io_error"
	case StoreError:
		return "store_error"
	case ExternalToolError:
		return "external_tool_error"
	case Cancelled:
		return "cancelled"
	case Validation:
		return "validation"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is a kind-tagged, wrapped error. It satisfies the standard errors.Is/As
// protocol via Unwrap, so callers can do errors.Is(err, corerr.Cancelled) style
// checks through the Is helper below, or unwrap to inspect the cause directly.
type Error struct {
	Kind      Kind
	Component string
	cause     error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.Component, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Kind, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// Cause returns the innermost wrapped error, mirroring pkg/errors.Cause.
func (e *Error) Cause() error { return errors.Cause(e.cause) }

// New creates a Kind-tagged error whose cause is a plain error carrying message.
func New(component string, kind Kind, message string) error {
	return &Error{Kind: kind, Component: component, cause: errors.New(message)}
}

// Wrap tags an existing error with a Kind and the component that observed it.
// If err is nil, Wrap returns nil so call sites can write
// `return corerr.Wrap(component, kind, err)` unconditionally.
func Wrap(component string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Component: component, cause: err}
}

// Wrapf is Wrap with a formatted message layered on top of err via pkg/errors.
func Wrapf(component string, kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Component: component, cause: errors.Wrapf(err, format, args...)}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a *Error.
// It returns (IoError, false) if no *Error is found in the chain, so callers
// that need a default should check the ok return rather than trust the Kind.
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return IoError, false
}

// Is reports whether err's Kind (if any) matches kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Package dberrors defines the error kinds shared by the storage, execution
// and planning layers.
package dberrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error the way a caller needs to react to it, independent
// of the wrapped message or stack trace.
type Kind int

const (
	// KindNone is the zero value; never returned by New/Wrap.
	KindNone Kind = iota
	// KindParse marks an error surfaced to the caller in the result set.
	KindParse
	// KindPlan marks a schema mismatch or unknown column/table.
	KindPlan
	// KindStorage marks an I/O failure, corrupt file, or bloom size mismatch.
	KindStorage
	// KindDuplicateKey marks an insert into an existing primary key.
	KindDuplicateKey
	// KindNotFound marks a lookup miss; distinct from a tombstone (Deletion).
	KindNotFound
	// KindCorruption marks a schema blob decode failure or checksum mismatch.
	KindCorruption
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "ParseError"
	case KindPlan:
		return "PlanError"
	case KindStorage:
		return "StorageError"
	case KindDuplicateKey:
		return "DuplicateKey"
	case KindNotFound:
		return "NotFound"
	case KindCorruption:
		return "Corruption"
	default:
		return "Unknown"
	}
}

// Error is a typed error carrying a Kind alongside the wrapped cause.
type Error struct {
	kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.kind.String()
	}
	return fmt.Sprintf("%s: %s", e.kind, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// KindOf reports the classification of err, or KindNone if err is not (or does
// not wrap) a *dberrors.Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindNone
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool { return KindOf(err) == kind }

// New creates an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) error {
	return &Error{kind: kind, cause: errors.Errorf(format, args...)}
}

// Wrap attaches kind to err, preserving err's stack trace if it carries one.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, cause: errors.Wrap(err, message)}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, cause: errors.Wrapf(err, format, args...)}
}

// NotFound is the sentinel returned by point lookups that miss entirely (as
// opposed to hitting a live tombstone).
var NotFound = New(KindNotFound, "key not found")

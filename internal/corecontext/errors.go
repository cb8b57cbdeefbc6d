// Package corecontext ties the storage, deck, crosslink, and checkout
// subsystems together behind a single process-scoped handle.
package corecontext

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed enumeration of error categories surfaced by the
// core API. Every exported operation that can fail reports one of these.
type ErrorKind int

const (
	// KindNone is the zero value; never attached to a returned error.
	KindNone ErrorKind = iota
	KindOom
	KindMisuse
	KindRange
	KindAccess
	KindIO
	KindNotFound
	KindAlreadyExists
	KindConsistency
	KindNotARepo
	KindNotACheckout
	KindRepoVersion
	KindRepoMismatch
	KindChecksumMismatch
	KindDB
	KindType
	KindSyntax
	KindAmbiguous
	KindPhantom
	KindConflict
	KindNoop
	KindUnsupported
	KindDiffBinary
	KindDiffWhitespaceOnly
	KindDeltaInvalidSeparator
	KindDeltaInvalidSize
	KindDeltaInvalidOperator
	KindDeltaInvalidTerminator
)

func (k ErrorKind) String() string {
	switch k {
	case KindOom:
		return "oom"
	case KindMisuse:
		return "misuse"
	case KindRange:
		return "range"
	case KindAccess:
		return "access"
	case KindIO:
		return "io"
	case KindNotFound:
		return "not-found"
	case KindAlreadyExists:
		return "already-exists"
	case KindConsistency:
		return "consistency"
	case KindNotARepo:
		return "not-a-repo"
	case KindNotACheckout:
		return "not-a-checkout"
	case KindRepoVersion:
		return "repo-version"
	case KindRepoMismatch:
		return "repo-mismatch"
	case KindChecksumMismatch:
		return "checksum-mismatch"
	case KindDB:
		return "db"
	case KindType:
		return "type"
	case KindSyntax:
		return "syntax"
	case KindAmbiguous:
		return "ambiguous"
	case KindPhantom:
		return "phantom"
	case KindConflict:
		return "conflict"
	case KindNoop:
		return "noop"
	case KindUnsupported:
		return "unsupported"
	case KindDiffBinary:
		return "diff-binary"
	case KindDiffWhitespaceOnly:
		return "diff-whitespace-only"
	case KindDeltaInvalidSeparator:
		return "delta-invalid-separator"
	case KindDeltaInvalidSize:
		return "delta-invalid-size"
	case KindDeltaInvalidOperator:
		return "delta-invalid-operator"
	case KindDeltaInvalidTerminator:
		return "delta-invalid-terminator"
	default:
		return "none"
	}
}

// CoreError is the concrete error type returned by every core operation.
// It carries the closed error kind plus an optional human-readable message
// and an optional wrapped cause, so lower layers can set state that higher
// layers later uplift into their own CoreError without losing the chain.
type CoreError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *CoreError) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a CoreError with the same Kind, so callers
// can write errors.Is(err, corecontext.New(KindNotFound, "")).
func (e *CoreError) Is(target error) bool {
	var other *CoreError
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// New constructs a CoreError with no wrapped cause.
func New(kind ErrorKind, message string) *CoreError {
	return &CoreError{Kind: kind, Message: message}
}

// Wrap constructs a CoreError that uplifts a lower-layer cause into kind,
// per the propagation rule in the error-handling design: lower layers set
// error state and return a kind; higher layers uplift it into their own.
func Wrap(kind ErrorKind, message string, cause error) *CoreError {
	return &CoreError{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the ErrorKind from err, or KindNone if err is not (or
// does not wrap) a *CoreError.
func KindOf(err error) ErrorKind {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindNone
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

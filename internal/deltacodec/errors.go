// Package deltacodec implements the Fossil binary delta format: creation
// via a rolling-hash index of fixed 16-byte source chunks, and strict,
// validating application.
package deltacodec

import "github.com/fslcore/fsl/internal/corecontext"

func errInvalidSeparator(msg string) error {
	return corecontext.New(corecontext.KindDeltaInvalidSeparator, msg)
}

func errInvalidSize(msg string) error {
	return corecontext.New(corecontext.KindDeltaInvalidSize, msg)
}

func errInvalidOperator(msg string) error {
	return corecontext.New(corecontext.KindDeltaInvalidOperator, msg)
}

func errInvalidTerminator(msg string) error {
	return corecontext.New(corecontext.KindDeltaInvalidTerminator, msg)
}

func errSizeMismatch(msg string) error {
	return corecontext.New(corecontext.KindRange, msg)
}

func errChecksumMismatch(msg string) error {
	return corecontext.New(corecontext.KindChecksumMismatch, msg)
}

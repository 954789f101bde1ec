// Package jerr holds the sentinel errors shared by every layer of the
// journal reader, so that a caller anywhere in the call stack can use
// errors.Is against the single taxonomy described in the package docs of
// github.com/appgate/journaldreader/journal, regardless of which
// sub-package actually returned the wrapped error.
package jerr

import "errors"

var (
	// ErrInvalidData covers a bad magic, an unknown incompatible flag bit, an
	// object of the wrong type at an offset, an entry-item offset overflow,
	// or a malformed payload.
	ErrInvalidData = errors.New("invalid-data")

	// ErrNotFound covers selecting a journal with no matching file, or
	// seeking Oldest when there are no files at all.
	ErrNotFound = errors.New("not-found")

	// ErrNotConnected covers an operation that requires a selection or a
	// loaded file when none is set.
	ErrNotConnected = errors.New("not-connected")

	// ErrUnexpectedEOF covers a file truncated below its declared structure
	// bounds.
	ErrUnexpectedEOF = errors.New("unexpected-eof")

	// ErrSeekUnsupported covers a Seek variant this core doesn't implement
	// (Timestamp, Seqnum, BootID, Entries): reserved extension surface for
	// hash-table and entry-array binary-search lookups.
	ErrSeekUnsupported = errors.New("seek variant not implemented")

	// ErrNotImplemented covers reserved surface this core never implements:
	// seal/FSS verification, and the writer.
	ErrNotImplemented = errors.New("not implemented")
)

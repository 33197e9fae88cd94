package snapshot

import "errors"

var (
	// ErrInvalidSnapshot reports data that is not a well-formed snapshot.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
	// ErrUnsupportedVersion reports a snapshot written by a newer format version.
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
	// ErrChecksumMismatch reports a payload whose digest differs from the header.
	ErrChecksumMismatch = errors.New("snapshot checksum mismatch")
)

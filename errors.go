package sas7bdat

import "errors"

// Sentinel errors, one per taxonomy kind. Callers distinguish them with
// errors.Is; wrapping at call sites is done with github.com/pkg/errors so the
// sentinel survives under errors.Cause/errors.Is.
var (
	// ErrFileNotFound is returned when Open's underlying file cannot be
	// opened.
	ErrFileNotFound = errors.New("sas7bdat: file not found")

	// ErrTruncated is returned when a read (header, header extension, or
	// page) returns fewer bytes than required, including a mid-row
	// overrun within a page.
	ErrTruncated = errors.New("sas7bdat: file is truncated")

	// ErrBadMagic is returned when the first 32 bytes of the file do not
	// match the SAS7BDAT magic number.
	ErrBadMagic = errors.New("sas7bdat: bad magic number, not a SAS7BDAT file")

	// ErrBadCodec is returned when a decompression command stream is
	// malformed: an impossible RLE command, an RDC back-reference whose
	// offset exceeds the current output position, or a "none" compressed
	// span longer than its destination.
	ErrBadCodec = errors.New("sas7bdat: malformed compressed block")

	// ErrBadField is returned when a numeric cell's on-disk width falls
	// outside {1,2,3,4,5,6,7,8}.
	ErrBadField = errors.New("sas7bdat: invalid numeric field width")

	// ErrCancelled is returned from an iteration step when the caller's
	// context was cancelled.
	ErrCancelled = errors.New("sas7bdat: iteration cancelled")

	errUnknownSubheader = errors.New("sas7bdat: unknown subheader signature")
	errUnknownPageType  = errors.New("sas7bdat: unknown page type")
	errClosed           = errors.New("sas7bdat: reader is closed")
)

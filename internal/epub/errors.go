package epub

import "errors"

// Sentinel errors returned by the epub package. Structural errors mean the
// reading order cannot be trusted and callers must abort processing.
var (
	// ErrInvalidArchive indicates the file is not a readable ZIP container.
	ErrInvalidArchive = errors.New("epub: not a valid archive")

	// ErrEntryNotFound indicates the requested path does not exist
	// in the archive.
	ErrEntryNotFound = errors.New("epub: entry not found in archive")

	// ErrMalformedPackage indicates the container pointer or package
	// document is absent or unparseable.
	ErrMalformedPackage = errors.New("epub: malformed package")

	// ErrDuplicateID indicates two manifest items share the same id.
	ErrDuplicateID = errors.New("epub: duplicate manifest id")

	// ErrDanglingSpineRef indicates a spine itemref points at an id
	// with no manifest entry.
	ErrDanglingSpineRef = errors.New("epub: spine idref has no manifest entry")

	// ErrNoNav indicates neither an EPUB 3 nav document nor a legacy NCX
	// is declared. Callers treat this as a degraded condition, not fatal.
	ErrNoNav = errors.New("epub: no navigation document declared")
)

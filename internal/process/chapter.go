// Package process implements the EPUB-to-chapter pipeline: segmentation of
// the spine into chapters, markup normalization, asset extraction and
// atomic publication of the output directory.
package process

// Chapter is the unit the reader navigates. It is created by the segmenter,
// filled in once by the normalizer, then serialized and never mutated again.
type Chapter struct {
	Index  int
	Title  string
	Linear bool

	// RawHTML is the pre-normalization markup fragment, built from one or
	// more merged spine segments.
	RawHTML string

	// HTML and Text are set by Normalize.
	HTML string
	Text string

	// AssetRefs lists the asset ids referenced from HTML, in first-use order.
	AssetRefs []string

	sources []sourceRef
}

// sourceRef records where a chapter's markup came from inside the archive,
// for matching nav targets against chapters.
type sourceRef struct {
	path     string
	docStart bool // segment contains the start of the source document
	primary  bool // contentful segment, not a merged-in thin fragment
	anchors  map[string]bool
}

// coversTarget reports whether a nav target (path plus optional fragment)
// resolves into this source range.
func (s sourceRef) coversTarget(path, fragment string) bool {
	if s.path != path {
		return false
	}
	if fragment == "" {
		return s.docStart
	}
	return s.anchors[fragment]
}

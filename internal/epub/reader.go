package epub

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
)

// Reader provides read-only access to the entries of an EPUB archive.
type Reader struct {
	zr      *zip.ReadCloser
	entries map[string]*zip.File
	opfPath string
}

// container.xml structure (the fixed root pointer).
type containerXML struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

// Open opens an EPUB archive and locates its package document.
// It returns ErrInvalidArchive if the file is not a readable ZIP, and
// ErrMalformedPackage if the container pointer is absent or unparseable.
//
// The mimetype entry is deliberately not validated: plenty of real-world
// EPUBs store it compressed or omit it, and a wrong mimetype does not
// affect reading-order correctness.
func Open(filePath string) (*Reader, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArchive, filePath, err)
	}

	r := &Reader{
		zr:      zr,
		entries: make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		r.entries[normalizeEntryPath(f.Name)] = f
	}

	if err := r.locatePackage(); err != nil {
		zr.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the underlying archive.
func (r *Reader) Close() error {
	return r.zr.Close()
}

// OPFPath returns the archive-root-relative path of the package document.
func (r *Reader) OPFPath() string {
	return r.opfPath
}

// Has reports whether the archive contains an entry at the given path.
func (r *Reader) Has(entryPath string) bool {
	_, ok := r.lookup(entryPath)
	return ok
}

// Entries returns every entry path in the archive, sorted. Intended for
// diagnostics and fallbacks, not for deriving reading order.
func (r *Reader) Entries() []string {
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ReadFile reads the contents of one archive entry. It returns
// ErrEntryNotFound if the path is absent.
func (r *Reader) ReadFile(entryPath string) ([]byte, error) {
	f, ok := r.lookup(entryPath)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, entryPath)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", entryPath, err)
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// lookup resolves an entry path, retrying with percent-decoding since
// content documents often URL-encode hrefs that the zip directory stores raw.
func (r *Reader) lookup(entryPath string) (*zip.File, bool) {
	p := normalizeEntryPath(entryPath)
	if f, ok := r.entries[p]; ok {
		return f, true
	}
	if dec, err := url.PathUnescape(p); err == nil && dec != p {
		if f, ok := r.entries[dec]; ok {
			return f, true
		}
	}
	return nil, false
}

// locatePackage parses META-INF/container.xml and records the OPF path.
func (r *Reader) locatePackage() error {
	data, err := r.ReadFile("META-INF/container.xml")
	if err != nil {
		return fmt.Errorf("%w: missing META-INF/container.xml", ErrMalformedPackage)
	}

	var c containerXML
	if err := xml.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("%w: container.xml: %v", ErrMalformedPackage, err)
	}

	for _, rf := range c.Rootfiles.Rootfile {
		if rf.MediaType == "application/oebps-package+xml" || rf.MediaType == "" {
			r.opfPath = normalizeEntryPath(rf.FullPath)
			return nil
		}
	}
	if len(c.Rootfiles.Rootfile) > 0 {
		r.opfPath = normalizeEntryPath(c.Rootfiles.Rootfile[0].FullPath)
		return nil
	}
	return fmt.Errorf("%w: container.xml declares no rootfile", ErrMalformedPackage)
}

// normalizeEntryPath cleans an archive path to the form used as map key:
// forward slashes, no leading "./" or "/".
func normalizeEntryPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimPrefix(p, "/")
	return p
}

// ResolveHref resolves a (possibly relative, possibly URL-encoded) href
// found inside the document at basePath to an archive-root-relative path.
func ResolveHref(basePath, href string) string {
	if dec, err := url.PathUnescape(href); err == nil {
		href = dec
	}
	if strings.HasPrefix(href, "/") {
		return normalizeEntryPath(href)
	}
	return normalizeEntryPath(path.Join(path.Dir(basePath), href))
}

// SplitFragment splits an href into its path and fragment identifier.
func SplitFragment(href string) (p, fragment string) {
	parts := strings.SplitN(href, "#", 2)
	p = parts[0]
	if len(parts) == 2 {
		fragment = parts[1]
	}
	return p, fragment
}

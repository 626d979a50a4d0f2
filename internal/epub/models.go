package epub

// OPF represents the parsed package document.
type OPF struct {
	Metadata      Metadata
	Manifest      map[string]ManifestItem // id -> item
	ManifestOrder []string                // ids in document order
	Spine         []SpineItem
	NCXPath       string // legacy EPUB 2 toc, archive-root-relative
	NavPath       string // EPUB 3 nav document, archive-root-relative
}

// Metadata holds the Dublin Core metadata of the package document.
type Metadata struct {
	Title       string
	Creators    []Creator
	Language    string
	Identifier  string
	Publisher   string
	Date        string
	Description string
	Subjects    []string
	CoverID     string // EPUB 2 cover image manifest id (meta name="cover")
}

// Creator is a creator of the book, e.g. an author ("aut") or editor ("edt").
type Creator struct {
	Name string
	Role string
}

// Authors returns the names of creators with the author role. Creators with
// no declared role count as authors, which is the common EPUB 2 case.
func (m Metadata) Authors() []string {
	var out []string
	for _, c := range m.Creators {
		if c.Role == "" || c.Role == "aut" {
			out = append(out, c.Name)
		}
	}
	return out
}

// ManifestItem is one resource declared in the manifest. Href is rebased to
// an archive-root-relative path.
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties []string
}

// HasProperty reports whether the item declares the given property,
// e.g. "nav" or "cover-image".
func (m ManifestItem) HasProperty(p string) bool {
	for _, prop := range m.Properties {
		if prop == p {
			return true
		}
	}
	return false
}

// SpineItem is an ordered reference into the manifest. The spine's order is
// the book's reading order.
type SpineItem struct {
	IDRef  string
	Linear bool
}

// Nav is the parsed table of contents, from either an EPUB 3 nav document
// or a legacy NCX. It is a hint for chapter titles, never an authority on
// reading order.
type Nav struct {
	DocTitle string
	Points   []NavPoint
}

// NavPoint is a single table-of-contents entry.
type NavPoint struct {
	Label       string
	ContentPath string // fragment-free, archive-root-relative
	Fragment    string // fragment identifier without the leading #
	Children    []NavPoint
}

// Flatten returns the nav points in depth-first document order.
func (n *Nav) Flatten() []NavPoint {
	if n == nil {
		return nil
	}
	var out []NavPoint
	var walk func(points []NavPoint)
	walk = func(points []NavPoint) {
		for _, p := range points {
			out = append(out, p)
			walk(p.Children)
		}
	}
	walk(n.Points)
	return out
}

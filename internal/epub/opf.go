package epub

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// XML shapes of the package document.
type opfPackage struct {
	XMLName  xml.Name    `xml:"package"`
	Version  string      `xml:"version,attr"`
	UniqueID string      `xml:"unique-identifier,attr"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest opfManifest `xml:"manifest"`
	Spine    opfSpine    `xml:"spine"`
}

type opfMetadata struct {
	Title       []string        `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creator     []opfCreator    `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Language    []string        `xml:"http://purl.org/dc/elements/1.1/ language"`
	Identifier  []opfIdentifier `xml:"http://purl.org/dc/elements/1.1/ identifier"`
	Publisher   []string        `xml:"http://purl.org/dc/elements/1.1/ publisher"`
	Date        []string        `xml:"http://purl.org/dc/elements/1.1/ date"`
	Description []string        `xml:"http://purl.org/dc/elements/1.1/ description"`
	Subject     []string        `xml:"http://purl.org/dc/elements/1.1/ subject"`
	Meta        []opfMeta       `xml:"meta"`
}

type opfCreator struct {
	Name string `xml:",chardata"`
	Role string `xml:"http://www.idpf.org/2007/opf role,attr"`
	ID   string `xml:"id,attr"`
}

type opfIdentifier struct {
	Value string `xml:",chardata"`
	ID    string `xml:"id,attr"`
}

type opfMeta struct {
	Name     string `xml:"name,attr"`    // EPUB 2 style
	Content  string `xml:"content,attr"` // EPUB 2 style
	Value    string `xml:",chardata"`    // EPUB 3 style
	Property string `xml:"property,attr"`
	Refines  string `xml:"refines,attr"`
}

type opfManifest struct {
	Items []opfManifestItem `xml:"item"`
}

type opfManifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type opfSpine struct {
	Toc      string       `xml:"toc,attr"`
	ItemRefs []opfItemRef `xml:"itemref"`
}

type opfItemRef struct {
	IDRef  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr"`
}

// ParseOPF parses the package document. opfPath is the document's own
// archive path; manifest hrefs are rebased against its directory so every
// returned path is archive-root-relative.
//
// Structural violations are fatal: a duplicate manifest id returns
// ErrDuplicateID and a spine idref without a manifest entry returns
// ErrDanglingSpineRef, both wrapped with the offending id.
func ParseOPF(content []byte, opfPath string) (*OPF, error) {
	var pkg opfPackage
	if err := xml.Unmarshal(content, &pkg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPackage, opfPath, err)
	}

	opf := &OPF{
		Manifest: make(map[string]ManifestItem, len(pkg.Manifest.Items)),
	}
	opf.Metadata = parseMetadata(&pkg.Metadata, pkg.UniqueID)

	for _, item := range pkg.Manifest.Items {
		if _, exists := opf.Manifest[item.ID]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateID, item.ID)
		}
		mi := ManifestItem{
			ID:        item.ID,
			Href:      ResolveHref(opfPath, item.Href),
			MediaType: item.MediaType,
		}
		if item.Properties != "" {
			mi.Properties = strings.Fields(item.Properties)
		}
		opf.Manifest[item.ID] = mi
		opf.ManifestOrder = append(opf.ManifestOrder, item.ID)

		if mi.HasProperty("nav") {
			opf.NavPath = mi.Href
		}
	}

	for _, ref := range pkg.Spine.ItemRefs {
		if _, ok := opf.Manifest[ref.IDRef]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrDanglingSpineRef, ref.IDRef)
		}
		opf.Spine = append(opf.Spine, SpineItem{
			IDRef:  ref.IDRef,
			Linear: ref.Linear != "no",
		})
	}

	// Legacy EPUB 2 table of contents declared on the spine.
	if pkg.Spine.Toc != "" {
		if item, ok := opf.Manifest[pkg.Spine.Toc]; ok {
			opf.NCXPath = item.Href
		}
	}

	return opf, nil
}

func parseMetadata(meta *opfMetadata, uniqueID string) Metadata {
	md := Metadata{
		Title:       firstOf(meta.Title),
		Language:    firstOf(meta.Language),
		Publisher:   firstOf(meta.Publisher),
		Date:        firstOf(meta.Date),
		Description: firstOf(meta.Description),
		Subjects:    meta.Subject,
	}

	for _, id := range meta.Identifier {
		if id.ID == uniqueID {
			md.Identifier = id.Value
			break
		}
	}
	if md.Identifier == "" && len(meta.Identifier) > 0 {
		md.Identifier = meta.Identifier[0].Value
	}

	creatorIdx := make(map[string]int) // "#id" -> index into md.Creators
	for _, c := range meta.Creator {
		md.Creators = append(md.Creators, Creator{Name: strings.TrimSpace(c.Name), Role: c.Role})
		if c.ID != "" {
			creatorIdx["#"+c.ID] = len(md.Creators) - 1
		}
	}

	for _, m := range meta.Meta {
		switch {
		case m.Name == "cover" && m.Content != "":
			if md.CoverID == "" {
				md.CoverID = m.Content
			}
		case m.Property == "role" && m.Refines != "":
			// EPUB 3 refines a creator's role; the value may be element
			// text or, in sloppy files, a content attribute.
			if idx, ok := creatorIdx[m.Refines]; ok {
				role := strings.TrimSpace(m.Value)
				if role == "" {
					role = m.Content
				}
				if role != "" {
					md.Creators[idx].Role = role
				}
			}
		}
	}

	return md
}

// FindCoverImage returns the archive path of the cover image, preferring
// the EPUB 3 cover-image property over the EPUB 2 meta cover id.
func (opf *OPF) FindCoverImage() (string, bool) {
	for _, id := range opf.ManifestOrder {
		if opf.Manifest[id].HasProperty("cover-image") {
			return opf.Manifest[id].Href, true
		}
	}
	if opf.Metadata.CoverID != "" {
		if item, ok := opf.Manifest[opf.Metadata.CoverID]; ok {
			return item.Href, true
		}
	}
	return "", false
}

func firstOf(values []string) string {
	if len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

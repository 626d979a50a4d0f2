package epub

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LoadNav loads the table of contents, preferring the EPUB 3 nav document
// over the legacy NCX. It returns ErrNoNav when the package declares
// neither. Any returned error is a degraded condition for callers: titles
// can still be derived from headings.
func LoadNav(r *Reader, opf *OPF) (*Nav, error) {
	if opf.NavPath != "" {
		data, err := r.ReadFile(opf.NavPath)
		if err == nil {
			nav, perr := parseNAV(data, opf.NavPath)
			if perr == nil {
				return nav, nil
			}
			err = perr
		}
		// Fall through to the NCX; a broken nav document should not
		// cost us a usable legacy one.
		if opf.NCXPath == "" {
			return nil, fmt.Errorf("nav document %s: %w", opf.NavPath, err)
		}
	}

	if opf.NCXPath != "" {
		data, err := r.ReadFile(opf.NCXPath)
		if err != nil {
			return nil, fmt.Errorf("ncx %s: %w", opf.NCXPath, err)
		}
		nav, err := parseNCX(data, opf.NCXPath)
		if err != nil {
			return nil, fmt.Errorf("ncx %s: %w", opf.NCXPath, err)
		}
		return nav, nil
	}

	return nil, ErrNoNav
}

// parseNAV parses an EPUB 3 navigation document. navPath is the document's
// own archive path, used to rebase targets.
func parseNAV(data []byte, navPath string) (*Nav, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse nav document: %w", err)
	}

	// The toc nav is marked with epub:type="toc" (or role="doc-toc").
	// The attribute name contains a colon, which CSS selectors cannot
	// express cleanly, so match it by hand and fall back to the first
	// nav element for documents that drop the attribute.
	navs := doc.Find("nav")
	if navs.Length() == 0 {
		return nil, fmt.Errorf("no nav element found")
	}
	navSel := navs.First()
	navs.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t, ok := s.Attr("epub:type"); ok && strings.Contains(t, "toc") {
			navSel = s
			return false
		}
		if role, ok := s.Attr("role"); ok && role == "doc-toc" {
			navSel = s
			return false
		}
		return true
	})

	nav := &Nav{
		DocTitle: strings.TrimSpace(doc.Find("title").First().Text()),
		Points:   parseNavList(navSel.Find("ol").First(), navPath),
	}
	return nav, nil
}

// parseNavList converts one <ol> into NavPoints, recursing into nested lists.
func parseNavList(ol *goquery.Selection, navPath string) []NavPoint {
	var points []NavPoint
	ol.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		a := li.ChildrenFiltered("a").First()
		if a.Length() == 0 {
			a = li.Find("a").First()
		}
		href, _ := a.Attr("href")
		label := strings.Join(strings.Fields(a.Text()), " ")
		if label == "" || href == "" {
			// A span-only heading li still may carry a nested list.
			points = append(points, parseNavList(li.ChildrenFiltered("ol").First(), navPath)...)
			return
		}

		rawPath, fragment := SplitFragment(href)
		points = append(points, NavPoint{
			Label:       label,
			ContentPath: ResolveHref(navPath, rawPath),
			Fragment:    fragment,
			Children:    parseNavList(li.ChildrenFiltered("ol").First(), navPath),
		})
	})
	return points
}

// NCX XML shapes.
type ncxRoot struct {
	XMLName  xml.Name `xml:"ncx"`
	DocTitle struct {
		Text string `xml:"text"`
	} `xml:"docTitle"`
	NavMap struct {
		NavPoints []ncxNavPoint `xml:"navPoint"`
	} `xml:"navMap"`
}

type ncxNavPoint struct {
	Label struct {
		Text string `xml:"text"`
	} `xml:"navLabel"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []ncxNavPoint `xml:"navPoint"`
}

// parseNCX parses a legacy EPUB 2 NCX document. ncxPath is the document's
// own archive path, used to rebase targets.
func parseNCX(data []byte, ncxPath string) (*Nav, error) {
	var root ncxRoot
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse ncx: %w", err)
	}

	nav := &Nav{
		DocTitle: strings.TrimSpace(root.DocTitle.Text),
		Points:   convertNCXPoints(root.NavMap.NavPoints, ncxPath),
	}
	return nav, nil
}

func convertNCXPoints(points []ncxNavPoint, ncxPath string) []NavPoint {
	var out []NavPoint
	for _, p := range points {
		rawPath, fragment := SplitFragment(p.Content.Src)
		out = append(out, NavPoint{
			Label:       strings.Join(strings.Fields(p.Label.Text), " "),
			ContentPath: ResolveHref(ncxPath, rawPath),
			Fragment:    fragment,
			Children:    convertNCXPoints(p.Children, ncxPath),
		})
	}
	return out
}

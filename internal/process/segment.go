package process

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"chapterize/internal/epub"
)

// segment is one chapter candidate cut from a spine document, before thin
// fragments are merged away.
type segment struct {
	source  sourceRef
	rawHTML string
	text    string
	heading string
	linear  bool
}

// Segmenter turns the spine into chapters. Thresholds come from the
// configuration so the policy stays tunable.
type Segmenter struct {
	// MinChapterChars is the plain-text length below which a segment is a
	// thin fragment (cover page, blank separator) to merge with a neighbor.
	MinChapterChars int

	Logger *slog.Logger
}

// Segment walks the spine strictly in order and produces the chapter
// sequence: spine documents holding two or more top-level headings are
// split at heading boundaries, thin fragments are merged into the
// following chapter (or the previous one at the end of the book), and
// titles are derived from nav labels, first headings, or synthesized.
func (sg *Segmenter) Segment(r *epub.Reader, opf *epub.OPF, nav *epub.Nav) ([]*Chapter, error) {
	var segments []segment

	for _, spineItem := range opf.Spine {
		item := opf.Manifest[spineItem.IDRef] // validated by ParseOPF
		if !isContentDocument(item.MediaType) {
			continue
		}

		data, err := r.ReadFile(item.Href)
		if err != nil {
			sg.Logger.Warn("skipping unreadable spine document", "path", item.Href, "error", err)
			continue
		}

		docSegments, err := sg.splitDocument(item.Href, data, spineItem.Linear)
		if err != nil {
			sg.Logger.Warn("skipping unparseable spine document", "path", item.Href, "error", err)
			continue
		}
		segments = append(segments, docSegments...)
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("spine contains no readable content documents")
	}

	chapters := sg.mergeThin(segments)
	sg.deriveTitles(chapters, nav)

	for i, ch := range chapters {
		ch.Index = i
	}
	return chapters, nil
}

// splitDocument cuts one spine document into segments. The split marker is
// the topmost (smallest-numbered) heading level present in the document;
// a document with fewer than two boundary nodes stays whole.
func (sg *Segmenter) splitDocument(path string, data []byte, linear bool) ([]segment, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	body := doc.Find("body").First()
	if body.Length() == 0 {
		return nil, fmt.Errorf("document has no body")
	}

	level := topHeadingLevel(doc)
	nodes := body.Contents().Nodes

	var boundaries []int
	if level > 0 {
		tag := fmt.Sprintf("h%d", level)
		for i, n := range nodes {
			if n.Type == html.ElementNode && nodeContainsTag(n, tag) {
				boundaries = append(boundaries, i)
			}
		}
	}

	if len(boundaries) < 2 {
		return []segment{sg.buildSegment(path, nodes, true, linear)}, nil
	}

	// Content preceding the first boundary joins the first sub-chapter.
	var segments []segment
	for i, start := range boundaries {
		if i == 0 {
			start = 0
		}
		end := len(nodes)
		if i+1 < len(boundaries) {
			end = boundaries[i+1]
		}
		segments = append(segments, sg.buildSegment(path, nodes[start:end], i == 0, linear))
	}
	return segments, nil
}

// buildSegment renders a node range back to markup and extracts what the
// merge and title passes need from it.
func (sg *Segmenter) buildSegment(path string, nodes []*html.Node, docStart, linear bool) segment {
	var buf bytes.Buffer
	anchors := make(map[string]bool)
	for _, n := range nodes {
		html.Render(&buf, n)
		collectAnchors(n, anchors)
	}

	raw := buf.String()
	return segment{
		source: sourceRef{
			path:     path,
			docStart: docStart,
			primary:  true,
			anchors:  anchors,
		},
		rawHTML: raw,
		text:    ExtractText(raw),
		heading: firstHeadingText(raw),
		linear:  linear,
	}
}

// mergeThin folds segments whose plain text is below the threshold into
// their following segment, or into the previous chapter when no following
// segment exists. No emitted chapter has empty plain text unless the whole
// book is empty.
func (sg *Segmenter) mergeThin(segments []segment) []*Chapter {
	var chapters []*Chapter
	var pending []segment // thin fragments awaiting a contentful host

	appendTo := func(ch *Chapter, seg segment, primary bool) {
		ch.RawHTML += seg.rawHTML
		seg.source.primary = primary
		ch.sources = append(ch.sources, seg.source)
		ch.Linear = ch.Linear || seg.linear
	}

	for _, seg := range segments {
		if len(seg.text) < sg.MinChapterChars {
			sg.Logger.Debug("merging thin fragment", "path", seg.source.path, "chars", len(seg.text))
			pending = append(pending, seg)
			continue
		}

		ch := &Chapter{Title: seg.heading}
		for _, thin := range pending {
			appendTo(ch, thin, false)
		}
		pending = nil
		appendTo(ch, seg, true)
		chapters = append(chapters, ch)
	}

	if len(pending) > 0 {
		if len(chapters) > 0 {
			// Trailing thin fragments merge backward.
			last := chapters[len(chapters)-1]
			for _, thin := range pending {
				appendTo(last, thin, false)
			}
		} else {
			// Every segment is thin; better one short chapter than none.
			ch := &Chapter{Title: pending[0].heading}
			for _, thin := range pending {
				appendTo(ch, thin, true)
			}
			chapters = append(chapters, ch)
		}
	}

	return chapters
}

// deriveTitles fills in missing chapter titles: a nav label whose target
// resolves into the chapter's primary source range wins, then the first
// heading (already set by the segmenter), then a synthesized "Chapter N".
func (sg *Segmenter) deriveTitles(chapters []*Chapter, nav *epub.Nav) {
	points := nav.Flatten()
	used := make([]bool, len(points))

	for _, ch := range chapters {
		for i, p := range points {
			if used[i] || p.Label == "" {
				continue
			}
			if chapterCoversTarget(ch, p) {
				ch.Title = p.Label
				used[i] = true
				break
			}
		}
	}

	for i, ch := range chapters {
		if strings.TrimSpace(ch.Title) == "" {
			ch.Title = fmt.Sprintf("Chapter %d", i+1)
		}
	}
}

// chapterCoversTarget reports whether a nav point targets this chapter.
// Sources merged in from thin fragments are ignored so a "Cover" label
// cannot claim the chapter it was merged into.
func chapterCoversTarget(ch *Chapter, p epub.NavPoint) bool {
	for _, src := range ch.sources {
		if !src.primary {
			continue
		}
		if src.coversTarget(p.ContentPath, p.Fragment) {
			return true
		}
	}
	return false
}

// topHeadingLevel returns the smallest heading level present in the
// document, or 0 when it has no headings.
func topHeadingLevel(doc *goquery.Document) int {
	for level := 1; level <= 6; level++ {
		if doc.Find(fmt.Sprintf("h%d", level)).Length() > 0 {
			return level
		}
	}
	return 0
}

// nodeContainsTag reports whether the node is, or contains, an element with
// the given tag name.
func nodeContainsTag(n *html.Node, tag string) bool {
	if n.Type == html.ElementNode && n.Data == tag {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if nodeContainsTag(c, tag) {
			return true
		}
	}
	return false
}

// collectAnchors records every id attribute under the node, for resolving
// nav fragment targets to chapters.
func collectAnchors(n *html.Node, anchors map[string]bool) {
	if n.Type == html.ElementNode {
		for _, attr := range n.Attr {
			if attr.Key == "id" || (attr.Key == "name" && n.Data == "a") {
				if attr.Val != "" {
					anchors[attr.Val] = true
				}
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectAnchors(c, anchors)
	}
}

// firstHeadingText returns the text of the first heading in a markup
// fragment, or "".
func firstHeadingText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	h := doc.Find("h1, h2, h3, h4, h5, h6").First()
	return strings.Join(strings.Fields(h.Text()), " ")
}

// isContentDocument reports whether a media type names an (X)HTML content
// document.
func isContentDocument(mediaType string) bool {
	return strings.Contains(mediaType, "html")
}

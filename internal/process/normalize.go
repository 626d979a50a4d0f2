package process

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"chapterize/internal/epub"
)

// strippedTags are removed wholesale during normalization. Reading
// fidelity, not visual fidelity, is the goal: scripts, styles and
// interactive chrome have no place in a plain reading fragment.
var strippedTags = []string{
	"script", "style", "link", "meta", "iframe", "video", "audio",
	"nav", "form", "button", "input",
}

// Normalizer rewrites chapter markup into self-contained fragments and
// registers the assets they reference.
type Normalizer struct {
	Assets *Registry
	Logger *slog.Logger
}

// Normalize fills in the chapter's HTML, Text and AssetRefs from its raw
// markup. Image references are resolved against the markup's source
// document path, registered with the asset registry and rewritten to
// "assets/<id>". An unresolvable reference drops the element with a
// warning; it is never fatal to the chapter.
func (nm *Normalizer) Normalize(ch *Chapter) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(ch.RawHTML))
	if err != nil {
		return fmt.Errorf("parse chapter %d markup: %w", ch.Index, err)
	}

	for _, tag := range strippedTags {
		doc.Find(tag).Remove()
	}

	body := doc.Find("body").First()
	if body.Length() == 0 {
		return fmt.Errorf("chapter %d markup has no body", ch.Index)
	}
	for _, n := range body.Nodes {
		removeComments(n)
	}

	// Elements carrying inline styles keep their content, lose the styling.
	body.Find("[style]").RemoveAttr("style")

	nm.rewriteImages(ch, body)

	htmlBody, err := body.Html()
	if err != nil {
		return fmt.Errorf("render chapter %d: %w", ch.Index, err)
	}
	ch.HTML = strings.TrimSpace(htmlBody)
	ch.Text = ExtractText(ch.HTML)
	return nil
}

// rewriteImages resolves and registers every image reference in the
// chapter. The source path for relative resolution is the archive path of
// the spine document each image came from; since a chapter may merge
// several documents, resolution tries each source directory in order.
func (nm *Normalizer) rewriteImages(ch *Chapter, body *goquery.Selection) {
	seen := make(map[string]bool)

	rewrite := func(s *goquery.Selection, attr, ref string) {
		archivePath, ok := nm.resolveRef(ch, ref)
		if !ok {
			nm.Logger.Warn("dropping unresolvable image reference",
				"chapter", ch.Index, "ref", ref)
			s.Remove()
			return
		}
		id, err := nm.Assets.Register(archivePath)
		if err != nil {
			nm.Logger.Warn("dropping unregisterable image reference",
				"chapter", ch.Index, "path", archivePath, "error", err)
			s.Remove()
			return
		}
		s.SetAttr(attr, "assets/"+id)
		if !seen[id] {
			seen[id] = true
			ch.AssetRefs = append(ch.AssetRefs, id)
		}
	}

	body.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, exists := s.Attr("src")
		if !exists || src == "" {
			s.Remove()
			return
		}
		rewrite(s, "src", src)
	})

	// SVG-wrapped raster images, common on cover pages.
	body.Find("image").Each(func(_ int, s *goquery.Selection) {
		attr := "xlink:href"
		href, exists := s.Attr(attr)
		if !exists {
			attr = "href"
			href, exists = s.Attr(attr)
		}
		if !exists || href == "" {
			s.Remove()
			return
		}
		rewrite(s, attr, href)
	})
}

// resolveRef resolves an image reference against each of the chapter's
// source document directories until one names an existing archive entry.
func (nm *Normalizer) resolveRef(ch *Chapter, ref string) (string, bool) {
	for _, src := range ch.sources {
		candidate := epub.ResolveHref(src.path, ref)
		if nm.Assets.Has(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// removeComments strips comment nodes from the subtree.
func removeComments(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
			continue
		}
		removeComments(c)
	}
}

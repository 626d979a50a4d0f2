package process

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockTags insert a paragraph break when encountered during text extraction.
var blockTags = map[atom.Atom]bool{
	atom.P:          true,
	atom.Br:         true,
	atom.Div:        true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Li:         true,
	atom.Tr:         true,
	atom.Blockquote: true,
	atom.Hr:         true,
	atom.Section:    true,
	atom.Article:    true,
}

// skipTags have their content excluded from text extraction entirely.
var skipTags = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
}

// ExtractText extracts the plain text of an HTML fragment in document
// order. Block-level elements produce newlines, runs of whitespace collapse
// to a single space, and consecutive blank lines collapse to one break.
// This is the copy-paste representation of a chapter.
func ExtractText(fragment string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))

	var out strings.Builder
	var line strings.Builder
	skipDepth := 0

	flushLine := func() {
		text := strings.Join(strings.Fields(line.String()), " ")
		line.Reset()
		if text == "" {
			return
		}
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(text)
	}

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			// io.EOF on a well-formed fragment; anything else means
			// truncated markup, where the text gathered so far is still
			// the best available answer.
			flushLine()
			return out.String()

		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			a := atom.Lookup(name)
			if skipTags[a] {
				skipDepth++
				continue
			}
			if blockTags[a] {
				flushLine()
			}

		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			a := atom.Lookup(name)
			if skipTags[a] {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
			if blockTags[a] {
				flushLine()
			}

		case html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			if blockTags[atom.Lookup(name)] {
				flushLine()
			}

		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			line.WriteByte(' ')
			line.Write(tokenizer.Text())
		}
	}
}

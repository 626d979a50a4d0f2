package epub

import (
	"errors"
	"testing"
)

func TestParseOPF(t *testing.T) {
	content := `<?xml version="1.0" encoding="UTF-8"?>
<package version="3.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Sample Book</dc:title>
    <dc:creator id="author">Jane Writer</dc:creator>
    <dc:creator id="editor">Ed Torial</dc:creator>
    <dc:language>en</dc:language>
    <dc:identifier id="uid">urn:isbn:1234567890</dc:identifier>
    <dc:identifier>other-id</dc:identifier>
    <dc:publisher>Test House</dc:publisher>
    <dc:date>2024-05-01</dc:date>
    <dc:description>About things.</dc:description>
    <dc:subject>Fiction</dc:subject>
    <meta refines="#editor" property="role" scheme="marc:relators">edt</meta>
    <meta name="cover" content="cover-img"/>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="cover-img" href="images/cover.jpg" media-type="image/jpeg"/>
    <item id="ch1" href="text/ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="text/ch2.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="ch1"/>
    <itemref idref="ch2" linear="no"/>
  </spine>
</package>`

	opf, err := ParseOPF([]byte(content), "OEBPS/content.opf")
	if err != nil {
		t.Fatalf("ParseOPF() error = %v", err)
	}

	if opf.Metadata.Title != "Sample Book" {
		t.Errorf("Title = %q, want %q", opf.Metadata.Title, "Sample Book")
	}
	if opf.Metadata.Identifier != "urn:isbn:1234567890" {
		t.Errorf("Identifier = %q, want the unique-identifier value", opf.Metadata.Identifier)
	}
	if opf.Metadata.Publisher != "Test House" {
		t.Errorf("Publisher = %q", opf.Metadata.Publisher)
	}
	if opf.Metadata.CoverID != "cover-img" {
		t.Errorf("CoverID = %q, want %q", opf.Metadata.CoverID, "cover-img")
	}

	if len(opf.Metadata.Creators) != 2 {
		t.Fatalf("Creators count = %d, want 2", len(opf.Metadata.Creators))
	}
	if opf.Metadata.Creators[1].Role != "edt" {
		t.Errorf("Creators[1].Role = %q, want %q (from refines meta)", opf.Metadata.Creators[1].Role, "edt")
	}
	authors := opf.Metadata.Authors()
	if len(authors) != 1 || authors[0] != "Jane Writer" {
		t.Errorf("Authors() = %v, want [Jane Writer]", authors)
	}

	// Hrefs rebased to archive-root-relative paths.
	if got := opf.Manifest["ch1"].Href; got != "OEBPS/text/ch1.xhtml" {
		t.Errorf("Manifest[ch1].Href = %q, want %q", got, "OEBPS/text/ch1.xhtml")
	}

	if len(opf.Spine) != 2 {
		t.Fatalf("Spine length = %d, want 2", len(opf.Spine))
	}
	if !opf.Spine[0].Linear {
		t.Error("Spine[0].Linear = false, want true")
	}
	if opf.Spine[1].Linear {
		t.Error("Spine[1].Linear = true, want false")
	}

	if opf.NavPath != "OEBPS/nav.xhtml" {
		t.Errorf("NavPath = %q, want %q", opf.NavPath, "OEBPS/nav.xhtml")
	}
	if opf.NCXPath != "OEBPS/toc.ncx" {
		t.Errorf("NCXPath = %q, want %q", opf.NCXPath, "OEBPS/toc.ncx")
	}

	wantOrder := []string{"nav", "ncx", "cover-img", "ch1", "ch2"}
	if len(opf.ManifestOrder) != len(wantOrder) {
		t.Fatalf("ManifestOrder length = %d, want %d", len(opf.ManifestOrder), len(wantOrder))
	}
	for i, id := range wantOrder {
		if opf.ManifestOrder[i] != id {
			t.Errorf("ManifestOrder[%d] = %q, want %q", i, opf.ManifestOrder[i], id)
		}
	}
}

func TestParseOPF_DuplicateID(t *testing.T) {
	content := `<?xml version="1.0"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf">
  <metadata/>
  <manifest>
    <item id="ch1" href="a.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch1" href="b.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine><itemref idref="ch1"/></spine>
</package>`

	_, err := ParseOPF([]byte(content), "content.opf")
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("ParseOPF() error = %v, want ErrDuplicateID", err)
	}
}

func TestParseOPF_DanglingSpineRef(t *testing.T) {
	content := `<?xml version="1.0"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf">
  <metadata/>
  <manifest>
    <item id="ch1" href="a.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="ch1"/>
    <itemref idref="ghost"/>
  </spine>
</package>`

	_, err := ParseOPF([]byte(content), "content.opf")
	if !errors.Is(err, ErrDanglingSpineRef) {
		t.Errorf("ParseOPF() error = %v, want ErrDanglingSpineRef", err)
	}
}

func TestParseOPF_Unparseable(t *testing.T) {
	_, err := ParseOPF([]byte("not xml at all <"), "content.opf")
	if !errors.Is(err, ErrMalformedPackage) {
		t.Errorf("ParseOPF() error = %v, want ErrMalformedPackage", err)
	}
}

func TestFindCoverImage(t *testing.T) {
	content := `<?xml version="1.0"?>
<package version="3.0" xmlns="http://www.idpf.org/2007/opf">
  <metadata>
    <meta name="cover" content="legacy-cover"/>
  </metadata>
  <manifest>
    <item id="legacy-cover" href="old.jpg" media-type="image/jpeg"/>
    <item id="cov" href="cover.jpg" media-type="image/jpeg" properties="cover-image"/>
  </manifest>
  <spine/>
</package>`

	opf, err := ParseOPF([]byte(content), "content.opf")
	if err != nil {
		t.Fatalf("ParseOPF() error = %v", err)
	}

	href, ok := opf.FindCoverImage()
	if !ok {
		t.Fatal("FindCoverImage() not found")
	}
	// EPUB 3 property wins over the legacy meta.
	if href != "cover.jpg" {
		t.Errorf("FindCoverImage() = %q, want %q", href, "cover.jpg")
	}
}

package process

import (
	"archive/zip"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"chapterize/internal/epub"
)

// buildEPUB writes an EPUB archive containing the given entries, plus the
// standard mimetype and a container.xml pointing at OEBPS/content.opf.
func buildEPUB(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.epub")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create epub: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	defer w.Close()

	mw, err := w.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatalf("create mimetype: %v", err)
	}
	mw.Write([]byte("application/epub+zip"))

	cw, err := w.Create("META-INF/container.xml")
	if err != nil {
		t.Fatalf("create container.xml: %v", err)
	}
	cw.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`))

	for name, content := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		fw.Write([]byte(content))
	}
	return path
}

// openBook opens a fixture EPUB and parses its package document.
func openBook(t *testing.T, path string) (*epub.Reader, *epub.OPF) {
	t.Helper()
	r, err := epub.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { r.Close() })

	opfData, err := r.ReadFile(r.OPFPath())
	if err != nil {
		t.Fatalf("read OPF: %v", err)
	}
	opf, err := epub.ParseOPF(opfData, r.OPFPath())
	if err != nil {
		t.Fatalf("ParseOPF() error = %v", err)
	}
	return r, opf
}

// testLogger discards all output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// longParagraph is comfortably above any reasonable merge threshold.
const longParagraph = `<p>The quick brown fox jumps over the lazy dog, and keeps
jumping well past the point where anyone is still watching, because this
paragraph exists to push a test chapter safely over the minimum length
threshold used by the segmenter.</p>`

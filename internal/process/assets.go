package process

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"chapterize/internal/epub"
)

// Asset is one binary resource extracted from the archive. Its id is
// derived from the original archive path, so reprocessing the same book
// yields the same ids.
type Asset struct {
	ID        string
	Path      string // archive-root-relative origin
	MediaType string
}

// ImageOptions controls optional raster downscaling during materialization.
// A MaxWidth of zero disables it and assets are copied byte for byte.
type ImageOptions struct {
	MaxWidth    int
	JPEGQuality int
}

// Registry assigns stable ids to archive resources and materializes them
// into the output directory. Register is idempotent per archive path.
type Registry struct {
	reader *epub.Reader
	opf    *epub.OPF
	Logger *slog.Logger

	byPath map[string]*Asset
	order  []string // archive paths in registration order
}

// NewRegistry creates a registry over an open archive. The manifest is
// used to look up media types for registered paths.
func NewRegistry(reader *epub.Reader, opf *epub.OPF, logger *slog.Logger) *Registry {
	return &Registry{
		reader: reader,
		opf:    opf,
		Logger: logger,
		byPath: make(map[string]*Asset),
	}
}

// Has reports whether the archive contains an entry at the given path.
func (rg *Registry) Has(archivePath string) bool {
	return rg.reader.Has(archivePath)
}

// Register assigns an id to an archive path, returning the existing id on
// repeat calls. It fails if the archive has no such entry.
func (rg *Registry) Register(archivePath string) (string, error) {
	if a, ok := rg.byPath[archivePath]; ok {
		return a.ID, nil
	}
	if !rg.reader.Has(archivePath) {
		return "", fmt.Errorf("%w: %s", epub.ErrEntryNotFound, archivePath)
	}

	a := &Asset{
		ID:        assetID(archivePath),
		Path:      archivePath,
		MediaType: rg.mediaType(archivePath),
	}
	rg.byPath[archivePath] = a
	rg.order = append(rg.order, archivePath)
	return a.ID, nil
}

// Assets returns the registered assets in registration order.
func (rg *Registry) Assets() []*Asset {
	out := make([]*Asset, 0, len(rg.order))
	for _, p := range rg.order {
		out = append(out, rg.byPath[p])
	}
	return out
}

// Materialize writes every registered asset into dir under its id. Any
// write failure is fatal: partial output is not valid output, so the error
// propagates and the caller aborts before publication.
func (rg *Registry) Materialize(dir string, opts ImageOptions) error {
	for _, a := range rg.Assets() {
		data, err := rg.reader.ReadFile(a.Path)
		if err != nil {
			return fmt.Errorf("read asset %s: %w", a.Path, err)
		}

		if opts.MaxWidth > 0 && isRasterImage(a.MediaType) {
			data = rg.downscale(a, data, opts)
		}

		dest := filepath.Join(dir, a.ID)
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return fmt.Errorf("write asset %s: %w", dest, err)
		}
	}
	return nil
}

// downscale resizes a raster image to fit the configured width. Decode or
// encode failures pass the original bytes through with a warning; a worse
// image beats a missing one.
func (rg *Registry) downscale(a *Asset, data []byte, opts ImageOptions) []byte {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		rg.Logger.Warn("keeping original asset bytes, decode failed",
			"path", a.Path, "error", err)
		return data
	}
	if img.Bounds().Dx() <= opts.MaxWidth {
		return data
	}

	resized := imaging.Resize(img, opts.MaxWidth, 0, imaging.Lanczos)

	quality := opts.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	var buf bytes.Buffer
	format := imaging.JPEG
	if a.MediaType == "image/png" || a.MediaType == "image/gif" {
		format = imaging.PNG
	}
	if err := imaging.Encode(&buf, resized, format, imaging.JPEGQuality(quality)); err != nil {
		rg.Logger.Warn("keeping original asset bytes, encode failed",
			"path", a.Path, "error", err)
		return data
	}
	return buf.Bytes()
}

// mediaType resolves a path's media type from the manifest, falling back
// to the extension.
func (rg *Registry) mediaType(archivePath string) string {
	for _, id := range rg.opf.ManifestOrder {
		if item := rg.opf.Manifest[id]; item.Href == archivePath && item.MediaType != "" {
			return item.MediaType
		}
	}
	return mime.TypeByExtension(strings.ToLower(path.Ext(archivePath)))
}

// assetID derives a stable, filesystem-safe id from an archive path: the
// sanitized basename stem plus a short hash of the full path, keeping the
// original extension. Distinct archive paths cannot collide even when
// their basenames do.
func assetID(archivePath string) string {
	base := path.Base(archivePath)
	ext := strings.ToLower(path.Ext(base))
	stem := sanitizeName(strings.TrimSuffix(base, path.Ext(base)))
	sum := crc32.ChecksumIEEE([]byte(archivePath))
	return fmt.Sprintf("%s-%08x%s", stem, sum, ext)
}

// sanitizeName keeps letters, digits, dots, underscores and hyphens,
// replacing everything else with an underscore.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "asset"
	}
	return b.String()
}

func isRasterImage(mediaType string) bool {
	switch mediaType {
	case "image/jpeg", "image/png", "image/gif":
		return true
	}
	return false
}

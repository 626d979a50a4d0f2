package process

import (
	"fmt"
	"log/slog"
	"strings"

	"chapterize/internal/epub"
)

// Options holds the knobs of one pipeline run.
type Options struct {
	InputPath string
	OutputDir string

	// MinChapterChars is the segmentation merge threshold; see Segmenter.
	MinChapterChars int

	// MaxImageWidth enables asset downscaling when positive.
	MaxImageWidth int
	JPEGQuality   int

	Logger *slog.Logger
}

// Summary reports what a successful run produced.
type Summary struct {
	Title        string
	Author       string
	ChapterCount int
	AssetCount   int
	OutputDir    string
}

// Pipeline orchestrates one EPUB-to-chapter-directory run. It is a
// one-shot synchronous batch job: open archive, resolve package, segment,
// normalize, publish.
type Pipeline struct {
	opts   Options
	logger *slog.Logger
}

// NewPipeline creates a pipeline for one book.
func NewPipeline(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{opts: opts, logger: logger}
}

// Run executes the pipeline. Structural failures (unreadable archive,
// malformed package, dangling spine reference, output I/O) abort with an
// error and nothing published; a missing nav document or unresolvable
// image only degrades the result.
func (p *Pipeline) Run() (*Summary, error) {
	reader, opf, err := p.resolvePackage()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	nav, err := epub.LoadNav(reader, opf)
	if err != nil {
		p.logger.Warn("table of contents unavailable, falling back to heading titles", "error", err)
		nav = nil
	}

	segmenter := &Segmenter{
		MinChapterChars: p.opts.MinChapterChars,
		Logger:          p.logger,
	}
	chapters, err := segmenter.Segment(reader, opf, nav)
	if err != nil {
		return nil, err
	}

	assets := NewRegistry(reader, opf, p.logger)
	normalizer := &Normalizer{Assets: assets, Logger: p.logger}
	for _, ch := range chapters {
		if err := normalizer.Normalize(ch); err != nil {
			return nil, err
		}
	}

	book := &Book{
		Metadata: buildMetadata(opf.Metadata, chapters),
		Chapters: chapters,
		Assets:   assets,
	}
	imgOpts := ImageOptions{
		MaxWidth:    p.opts.MaxImageWidth,
		JPEGQuality: p.opts.JPEGQuality,
	}
	if err := Publish(p.opts.OutputDir, book, imgOpts); err != nil {
		return nil, err
	}

	p.logger.Info("book published",
		"title", book.Metadata.Title,
		"chapters", len(chapters),
		"assets", len(assets.Assets()),
		"dir", p.opts.OutputDir)

	return &Summary{
		Title:        book.Metadata.Title,
		Author:       book.Metadata.Author,
		ChapterCount: len(chapters),
		AssetCount:   len(assets.Assets()),
		OutputDir:    p.opts.OutputDir,
	}, nil
}

// resolvePackage opens the archive and parses its package document.
func (p *Pipeline) resolvePackage() (*epub.Reader, *epub.OPF, error) {
	reader, err := epub.Open(p.opts.InputPath)
	if err != nil {
		return nil, nil, err
	}

	opfData, err := reader.ReadFile(reader.OPFPath())
	if err != nil {
		reader.Close()
		return nil, nil, fmt.Errorf("%w: package document unreadable: %v", epub.ErrMalformedPackage, err)
	}

	opf, err := epub.ParseOPF(opfData, reader.OPFPath())
	if err != nil {
		reader.Close()
		return nil, nil, err
	}
	return reader, opf, nil
}

// buildMetadata assembles the metadata.json payload from package metadata
// and the final chapter sequence.
func buildMetadata(md epub.Metadata, chapters []*Chapter) BookMetadata {
	title := md.Title
	if title == "" {
		title = "Untitled"
	}

	meta := BookMetadata{
		Title:        title,
		Author:       strings.Join(md.Authors(), ", "),
		Language:     md.Language,
		Publisher:    md.Publisher,
		Date:         md.Date,
		Description:  md.Description,
		ChapterCount: len(chapters),
		Chapters:     make([]ChapterEntry, 0, len(chapters)),
	}
	for _, ch := range chapters {
		meta.Chapters = append(meta.Chapters, ChapterEntry{Index: ch.Index, Title: ch.Title})
	}
	return meta
}

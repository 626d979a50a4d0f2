package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// BookMetadata is the order-of-record the server consumes: the chapter
// sequence here, not directory listing order, defines reading order.
type BookMetadata struct {
	Title        string         `json:"title"`
	Author       string         `json:"author"`
	Language     string         `json:"language,omitempty"`
	Publisher    string         `json:"publisher,omitempty"`
	Date         string         `json:"date,omitempty"`
	Description  string         `json:"description,omitempty"`
	ChapterCount int            `json:"chapterCount"`
	Chapters     []ChapterEntry `json:"chapters"`
}

// ChapterEntry is one row of the chapter listing in metadata.json.
type ChapterEntry struct {
	Index int    `json:"index"`
	Title string `json:"title"`
}

// Book is everything a finished run publishes.
type Book struct {
	Metadata BookMetadata
	Chapters []*Chapter
	Assets   *Registry
}

const (
	metadataFile = "metadata.json"
	chaptersDir  = "chapters"
	assetsDir    = "assets"
)

// ChapterFileName returns the zero-padded basename (without extension) of
// a chapter's on-disk files, e.g. "0003".
func ChapterFileName(index int) string {
	return fmt.Sprintf("%04d", index)
}

// Publish writes the book under outDir atomically: everything is built in
// a staging directory next to the target, and only a fully written tree is
// swapped into place. A failed run removes its staging directory and
// leaves any previous successful output untouched, so an in-progress write
// is never visible as a complete book.
func Publish(outDir string, book *Book, imgOpts ImageOptions) (err error) {
	staging := outDir + ".staging"
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("clear staging dir: %w", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(staging)
		}
	}()

	if err := os.MkdirAll(filepath.Join(staging, chaptersDir), 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(staging, assetsDir), 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}

	for _, ch := range book.Chapters {
		base := filepath.Join(staging, chaptersDir, ChapterFileName(ch.Index))
		if err := os.WriteFile(base+".html", []byte(ch.HTML), 0o644); err != nil {
			return fmt.Errorf("write chapter %d html: %w", ch.Index, err)
		}
		if err := os.WriteFile(base+".txt", []byte(ch.Text), 0o644); err != nil {
			return fmt.Errorf("write chapter %d text: %w", ch.Index, err)
		}
	}

	if err := book.Assets.Materialize(filepath.Join(staging, assetsDir), imgOpts); err != nil {
		return err
	}

	meta, err := json.MarshalIndent(book.Metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	meta = append(meta, '\n')
	if err := os.WriteFile(filepath.Join(staging, metadataFile), meta, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	// Swap: the previous output disappears only once the new one is
	// complete. Rename within the same parent directory keeps this as
	// close to atomic as portable code gets.
	if err := os.RemoveAll(outDir); err != nil {
		return fmt.Errorf("remove previous output: %w", err)
	}
	if err := os.Rename(staging, outDir); err != nil {
		return fmt.Errorf("publish output: %w", err)
	}
	return nil
}

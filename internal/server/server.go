// Package server is the thin reading UI over a published book directory.
// It reads metadata.json and the chapters/ and assets/ trees produced by
// the pipeline and performs no EPUB parsing of its own.
package server

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"chapterize/internal/process"
)

//go:embed templates/reader.html
var templateFS embed.FS

// Server serves one published book directory.
type Server struct {
	dir    string
	meta   process.BookMetadata
	tmpl   *template.Template
	logger *slog.Logger
}

// New loads the book's metadata and prepares the handler. The metadata is
// the order-of-record for chapter navigation; directory listings are never
// consulted.
func New(dir string, logger *slog.Logger) (*Server, error) {
	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return nil, fmt.Errorf("read book metadata: %w", err)
	}
	var meta process.BookMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse book metadata: %w", err)
	}

	tmpl, err := template.ParseFS(templateFS, "templates/reader.html")
	if err != nil {
		return nil, fmt.Errorf("parse reader template: %w", err)
	}

	return &Server{dir: dir, meta: meta, tmpl: tmpl, logger: logger}, nil
}

// Handler returns the HTTP routes of the reader.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/read/0", http.StatusFound)
	})
	mux.HandleFunc("GET /read/{index}", s.handleChapter)
	mux.HandleFunc("GET /read/{index}/text", s.handleChapterText)
	mux.HandleFunc("GET /assets/{id}", s.handleAsset)
	// Normalized chapter markup references assets relative to its own
	// page, so /read/assets/<id> must resolve too.
	mux.HandleFunc("GET /read/assets/{id}", s.handleAsset)
	return mux
}

// pageData is what the reader template renders.
type pageData struct {
	Book    process.BookMetadata
	Chapter process.ChapterEntry
	Content template.HTML
	Prev    int
	Next    int
	HasPrev bool
	HasNext bool
}

func (s *Server) handleChapter(w http.ResponseWriter, r *http.Request) {
	idx, ok := s.chapterIndex(w, r)
	if !ok {
		return
	}

	name := process.ChapterFileName(idx) + ".html"
	content, err := os.ReadFile(filepath.Join(s.dir, "chapters", name))
	if err != nil {
		s.logger.Error("chapter file missing", "index", idx, "error", err)
		http.Error(w, "chapter content missing", http.StatusInternalServerError)
		return
	}

	data := pageData{
		Book:    s.meta,
		Chapter: s.meta.Chapters[idx],
		Content: template.HTML(content),
		Prev:    idx - 1,
		Next:    idx + 1,
		HasPrev: idx > 0,
		HasNext: idx < s.meta.ChapterCount-1,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, data); err != nil {
		s.logger.Error("render chapter", "index", idx, "error", err)
	}
}

func (s *Server) handleChapterText(w http.ResponseWriter, r *http.Request) {
	idx, ok := s.chapterIndex(w, r)
	if !ok {
		return
	}
	name := process.ChapterFileName(idx) + ".txt"
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	http.ServeFile(w, r, filepath.Join(s.dir, "chapters", name))
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	id := filepath.Base(r.PathValue("id")) // no traversal past the assets dir
	http.ServeFile(w, r, filepath.Join(s.dir, "assets", id))
}

// chapterIndex parses and bounds-checks the index path segment.
func (s *Server) chapterIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || idx < 0 || idx >= s.meta.ChapterCount {
		http.NotFound(w, r)
		return 0, false
	}
	return idx, true
}

// FindPort returns the first free TCP port on host at or after preferred,
// trying up to attempts ports.
func FindPort(host string, preferred, attempts int) (int, error) {
	for port := preferred; port < preferred+attempts; port++ {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err != nil {
			continue
		}
		ln.Close()
		return port, nil
	}
	return 0, fmt.Errorf("no free port in range %d-%d", preferred, preferred+attempts-1)
}

// ListenAndServe blocks serving the reader at addr.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("reader listening", "addr", addr, "title", s.meta.Title)
	return http.ListenAndServe(addr, s.Handler())
}

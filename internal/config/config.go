// Package config holds the tunable policy of the pipeline and reader
// server. Segmentation thresholds are configuration, not constants: the
// heading-split and merge heuristics are best-effort and need tuning per
// library.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full configuration, loadable from a TOML file.
type Config struct {
	Segmentation Segmentation `toml:"segmentation"`
	Images       Images       `toml:"images"`
	Server       Server       `toml:"server"`
	LogLevel     string       `toml:"log_level"`
}

// Segmentation controls how spine documents become chapters.
type Segmentation struct {
	// MinChapterChars is the plain-text length below which a spine
	// fragment (cover page, blank separator) is merged into a neighboring
	// chapter instead of emitted on its own.
	MinChapterChars int `toml:"min_chapter_chars"`
}

// Images controls optional downscaling of extracted raster assets.
// A zero MaxWidth keeps every asset byte-identical to the archive.
type Images struct {
	MaxWidth    int `toml:"max_width"`
	JPEGQuality int `toml:"jpeg_quality"`
}

// Server configures the local reader.
type Server struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Segmentation: Segmentation{MinChapterChars: 120},
		Images:       Images{MaxWidth: 0, JPEGQuality: 85},
		Server:       Server{Host: "127.0.0.1", Port: 8123},
		LogLevel:     "info",
	}
}

// Load reads a TOML file over the defaults. An empty path returns the
// defaults; a missing file at an explicit path is an error, since the user
// asked for it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("config file %s does not exist", path)
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the pipeline cannot work with.
func (c Config) Validate() error {
	if c.Segmentation.MinChapterChars < 0 {
		return errors.New("segmentation.min_chapter_chars must not be negative")
	}
	if c.Images.MaxWidth < 0 {
		return errors.New("images.max_width must not be negative")
	}
	if c.Images.JPEGQuality < 1 || c.Images.JPEGQuality > 100 {
		return errors.New("images.jpeg_quality must be between 1 and 100")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.New("server.port must be a valid TCP port")
	}
	return nil
}

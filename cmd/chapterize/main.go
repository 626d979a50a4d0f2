package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"chapterize/internal/config"
	"chapterize/internal/logging"
	"chapterize/internal/process"
	"chapterize/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "chapterize <file.epub>",
	Short: "Convert an EPUB into a browsable chapter directory and read it locally",
	Long: `chapterize extracts an EPUB into a directory of per-chapter HTML and
plain-text files plus the images they reference, then serves a local
page-turning reader over that directory.

The plain-text form of each chapter is meant for copying into other
tools. Each run fully reprocesses the book; the output directory is
replaced atomically, so a failed run never corrupts a previous one.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringP("output", "o", "", "output directory (default: input path with _data suffix)")
	flags.String("config", "", "TOML config file")
	flags.Int("port", 0, "preferred reader port (default from config)")
	flags.Bool("no-serve", false, "process the book without starting the reader")
	flags.Int("min-chapter-chars", -1, "merge threshold for thin spine fragments (default from config)")
	flags.Int("max-image-width", -1, "downscale extracted images wider than this, 0 keeps originals")
}

func run(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, &cfg)

	logger := logging.New(os.Stderr, cfg.LogLevel)

	outputDir, _ := cmd.Flags().GetString("output")
	if outputDir == "" {
		outputDir = defaultOutputDir(inputPath)
	}

	pipeline := process.NewPipeline(process.Options{
		InputPath:       inputPath,
		OutputDir:       outputDir,
		MinChapterChars: cfg.Segmentation.MinChapterChars,
		MaxImageWidth:   cfg.Images.MaxWidth,
		JPEGQuality:     cfg.Images.JPEGQuality,
		Logger:          logger,
	})

	summary, err := pipeline.Run()
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}

	fmt.Printf("Title:    %s\n", summary.Title)
	if summary.Author != "" {
		fmt.Printf("Author:   %s\n", summary.Author)
	}
	fmt.Printf("Chapters: %d\n", summary.ChapterCount)
	fmt.Printf("Assets:   %d\n", summary.AssetCount)
	fmt.Printf("Output:   %s\n", summary.OutputDir)

	if noServe, _ := cmd.Flags().GetBool("no-serve"); noServe {
		return nil
	}

	srv, err := server.New(outputDir, logger)
	if err != nil {
		return err
	}
	port, err := server.FindPort(cfg.Server.Host, cfg.Server.Port, 10)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(port))
	fmt.Printf("\nReading at http://%s (Ctrl+C to stop)\n", addr)
	return srv.ListenAndServe(addr)
}

// applyFlagOverrides lets explicit flags win over the config file.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetInt("min-chapter-chars"); v >= 0 {
		cfg.Segmentation.MinChapterChars = v
	}
	if v, _ := cmd.Flags().GetInt("max-image-width"); v >= 0 {
		cfg.Images.MaxWidth = v
	}
	if v, _ := cmd.Flags().GetInt("port"); v > 0 {
		cfg.Server.Port = v
	}
}

// defaultOutputDir derives the output directory from the input path:
// "book.epub" publishes to "book_data".
func defaultOutputDir(inputPath string) string {
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "_data"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/vishrutha-03/detectomr/internal/config"
	"github.com/vishrutha-03/detectomr/internal/marker"
	"github.com/vishrutha-03/detectomr/internal/pipeline"
	"github.com/vishrutha-03/detectomr/internal/server"
	"github.com/vishrutha-03/detectomr/internal/template"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// imageExts are the file extensions picked up when grading a directory.
var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	// Logging goes to stderr; stdout carries the MCP protocol in serve mode.
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	switch command {
	case "grade":
		os.Exit(handleGrade(args))
	case "check":
		os.Exit(handleCheck(args))
	case "serve":
		handleServe(args)
	case "version", "--version", "-v":
		fmt.Printf("detectomr %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		if v, err := marker.TesseractVersion(); err == nil {
			fmt.Printf("  Tesseract:  %s\n", v)
		}
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`detectomr - OMR answer sheet grader

Usage: detectomr <command> [options]

Commands:
  grade      Grade sheet photos (files or directories) and write results
  check      Lint template and answer key files
  serve      Run the MCP tool server on stdin/stdout
  version    Print version information
  help       Show this help message

Common Flags:
  --config <file>   JSON configuration file
  --env <file>      .env file with DETECTOMR_* variables (default: .env)

Environment variables:
  DETECTOMR_TEMPLATES_DIR      Template directory (default: templates)
  DETECTOMR_DEFAULT_TEMPLATE   Template used when no marker matches
  DETECTOMR_OUTPUT_DIR         Result directory (default: results)
  DETECTOMR_WORKERS            Sheets graded in parallel (default: CPU count)
  DETECTOMR_LOG_LEVEL=debug    Enable debug logging

Examples:
  detectomr grade --template setA scans/
  detectomr check templates/
  detectomr serve --config detectomr.json`)
}

// loadConfig registers the common flags on fs, parses args and loads the
// configuration.
func loadConfig(fs *flag.FlagSet, args []string) (*config.Config, error) {
	configPath := fs.String("config", "", "JSON configuration file")
	envFile := fs.String("env", ".env", ".env file to load")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return config.Load(*configPath, *envFile)
}

func newLogger(cfg *config.Config) *log.Logger {
	logger := log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
	if cfg.Debug() {
		logger.Printf("detectomr %s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}
	return logger
}

func handleGrade(args []string) int {
	fs := flag.NewFlagSet("grade", flag.ExitOnError)
	tmpl := fs.String("template", "", "Force a template by name, skipping the version marker")
	outDir := fs.String("out", "", "Result directory (overrides the configuration)")
	workers := fs.Int("workers", 0, "Sheets graded in parallel (overrides the configuration)")
	noSave := fs.Bool("no-save", false, "Print results without writing files")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		log.Printf("Configuration error: %v", err)
		return 1
	}
	if *outDir != "" {
		cfg.OutputDir = outDir
	}
	if *workers > 0 {
		cfg.Workers = workers
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: detectomr grade [options] <image or directory>...")
		return 1
	}

	logger := newLogger(cfg)
	g, err := newGrader(cfg, logger)
	if err != nil {
		logger.Printf("Failed to set up grader: %v", err)
		return 1
	}

	paths, err := collectImages(fs.Args())
	if err != nil {
		logger.Printf("%v", err)
		return 1
	}
	sources := make([]pipeline.Source, len(paths))
	for i, p := range paths {
		sources[i] = pipeline.FileSource(p)
		sources[i].Template = *tmpl
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	outcomes := g.GradeAll(ctx, sources)

	if !*noSave {
		w, err := pipeline.NewWriter(cfg.GetOutputDir())
		if err != nil {
			logger.Printf("%v", err)
			return 1
		}
		for _, o := range outcomes {
			if _, err := w.Write(o); err != nil {
				logger.Printf("%s: %v", o.Source, err)
			}
		}
		if err := w.AppendCSV(outcomes); err != nil {
			logger.Printf("%v", err)
			return 1
		}
	}

	for _, o := range outcomes {
		if !o.OK() {
			fmt.Printf("%-30s  FAILED  %s\n", o.Source, o.Error)
			continue
		}
		fmt.Printf("%-30s  %-10s  total %6.2f  ambiguous %d\n",
			o.Source, o.Template, o.Report.TotalScore, len(o.Ambiguous))
		for _, w := range o.Warnings {
			fmt.Printf("%-30s  warning: %s\n", "", w)
		}
	}
	sum := pipeline.Summarize(outcomes)
	fmt.Printf("\n%d graded, %d failed, %d without sheet detection, %d ambiguous bubbles\n",
		sum.Graded, sum.Failed, sum.Fallbacks, sum.Ambiguous)
	if !*noSave {
		fmt.Printf("Results written to %s\n", cfg.GetOutputDir())
	}

	if sum.Failed > 0 {
		return 1
	}
	return 0
}

// collectImages expands directories into the image files they contain, in
// sorted order. Files named explicitly are kept whatever their extension.
func collectImages(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read input directory: %w", err)
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no images found")
	}
	return paths, nil
}

func handleCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	cfg, err := loadConfig(fs, args)
	if err != nil {
		log.Printf("Configuration error: %v", err)
		return 1
	}

	inputs := fs.Args()
	if len(inputs) == 0 {
		inputs = []string{cfg.GetTemplatesDir()}
	}
	var files []string
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			log.Printf("%v", err)
			return 1
		}
		if !info.IsDir() {
			files = append(files, in)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(in, "*.json"))
		if err != nil {
			log.Printf("%v", err)
			return 1
		}
		files = append(files, matches...)
	}

	status := 0
	for _, f := range files {
		res, err := template.CheckFile(f)
		if err != nil {
			log.Printf("%v", err)
			status = 1
			continue
		}
		mark := "ok"
		if !res.Valid {
			mark = "INVALID"
			status = 1
		}
		fmt.Printf("%s (%s): %s\n", f, res.Kind, mark)
		for _, issue := range res.Issues {
			fmt.Printf("  %s\n", issue)
		}
	}
	return status
}

func handleServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg, err := loadConfig(fs, args)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	logger := newLogger(cfg)

	g, err := newGrader(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to set up grader: %v", err)
	}
	w, err := pipeline.NewWriter(cfg.GetOutputDir())
	if err != nil {
		log.Fatalf("%v", err)
	}

	srv := server.New(server.Options{Grader: g, Writer: w, Logger: logger, Version: Version})
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"gopkg.in/yaml.v2"

	"github.com/tonimelisma/photokeeper/internal/filetype"
	"github.com/tonimelisma/photokeeper/internal/reader"
)

// args holds the command-line arguments
var args struct {
	SourceDir       string        `arg:"positional,required" help:"Directory to scan for photos and videos"`
	DestDir         string        `arg:"--dest" help:"Destination root; files are organized into YEAR/MONTH below it"`
	ConfigFile      string        `arg:"--config" help:"Path to config file"`
	Copy            bool          `arg:"--copy" help:"Copy files into the destination tree"`
	DryRun          bool          `arg:"--dry-run" help:"Plan destination names without copying"`
	DeleteOriginals bool          `arg:"--delete-originals" help:"Delete original files after a successful copy"`
	Verbose         bool          `arg:"-v,--verbose" help:"Enable verbose output"`
	Workers         int           `arg:"-j,--workers" help:"Number of files processed concurrently"`
	DecodeTimeout   time.Duration `arg:"--decode-timeout" help:"Give up reading a file's metadata after this long (0 disables)"`
	ReaderFallback  bool          `arg:"--reader-fallback" help:"Try the other readers for a file type when the preferred one finds no date"`
	SkipHidden      bool          `arg:"--skip-hidden" help:"Skip hidden files and directories"`
}

// config holds the application configuration
type config struct {
	SourceDir       string                `yaml:"source_directory"`
	DestDir         string                `yaml:"destination_directory"`
	ConfigFile      string                `yaml:"-"`
	Copy            bool                  `yaml:"copy"`
	DryRun          bool                  `yaml:"dry_run"`
	DeleteOriginals bool                  `yaml:"delete_originals"`
	Verbose         bool                  `yaml:"verbose"`
	Workers         int                   `yaml:"workers"`
	DecodeTimeout   time.Duration         `yaml:"decode_timeout"`
	ReaderFallback  bool                  `yaml:"reader_fallback"`
	SkipHidden      bool                  `yaml:"skip_hidden"`
	FileTypes       []filetype.SpecConfig `yaml:"file_types"`
}

// setDefaults initializes the config with default values
func setDefaults(cfg *config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get user home directory: %v", err)
	}

	cfg.DestDir = filepath.Join(homeDir, "Pictures")
	cfg.ConfigFile = filepath.Join(homeDir, ".photokeeperrc")
	cfg.Copy = false
	cfg.DryRun = false
	cfg.DeleteOriginals = false
	cfg.Verbose = false
	cfg.Workers = 1
	cfg.DecodeTimeout = reader.DefaultTimeout
	cfg.ReaderFallback = false
	cfg.SkipHidden = false
	cfg.FileTypes = nil
	return nil
}

// parseConfigFile reads and parses the YAML configuration file
func parseConfigFile(cfg *config) error {
	data, err := os.ReadFile(cfg.ConfigFile)
	if err != nil {
		if os.IsNotExist(err) {
			// Config file doesn't exist, just return without an error
			return nil
		}
		return fmt.Errorf("failed to read config file: %v", err)
	}

	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return fmt.Errorf("failed to parse config file: %v", err)
	}

	return nil
}

// registry builds the file type table, falling back to the built-in one
// when the config file lists no types.
func (cfg config) registry() (*filetype.Registry, error) {
	if len(cfg.FileTypes) == 0 {
		return filetype.DefaultRegistry(), nil
	}
	return filetype.RegistryFromConfig(cfg.FileTypes)
}

// validateConfig checks if the configuration is valid
func validateConfig(cfg *config) error {
	if cfg.SourceDir == "" {
		return fmt.Errorf("source directory is not specified")
	}

	if cfg.DestDir == "" {
		return fmt.Errorf("destination directory is not specified")
	}

	// Check if source directory exists
	if _, err := os.Stat(cfg.SourceDir); os.IsNotExist(err) {
		return fmt.Errorf("source directory does not exist: %s", cfg.SourceDir)
	}

	// Check if destination directory's parent exists
	destParent := filepath.Dir(cfg.DestDir)
	if _, err := os.Stat(destParent); os.IsNotExist(err) {
		return fmt.Errorf("destination parent directory does not exist: %s", destParent)
	}

	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", cfg.Workers)
	}

	if cfg.DecodeTimeout < 0 {
		return fmt.Errorf("decode timeout must not be negative, got %s", cfg.DecodeTimeout)
	}

	if cfg.DeleteOriginals && !cfg.Copy {
		return fmt.Errorf("delete originals requires copy")
	}

	if _, err := cfg.registry(); err != nil {
		return fmt.Errorf("invalid file types: %w", err)
	}

	return nil
}

// wasFlagProvided checks if a CLI flag was explicitly provided
func wasFlagProvided(flagName string) bool {
	for _, a := range os.Args[1:] {
		if a == flagName || strings.HasPrefix(a, flagName+"=") {
			return true
		}
	}
	return false
}

func run() error {
	// Create an instance of the config struct
	cfg := config{}

	// Set default values first
	if err := setDefaults(&cfg); err != nil {
		return fmt.Errorf("setting defaults: %w", err)
	}

	// Parse command-line arguments
	arg.MustParse(&args)

	// Apply config file path from command-line argument if provided
	if args.ConfigFile != "" {
		cfg.ConfigFile = args.ConfigFile
	}

	// Parse configuration file
	if err := parseConfigFile(&cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	// Override with command-line arguments
	if args.SourceDir != "" {
		cfg.SourceDir = args.SourceDir
	}
	if args.DestDir != "" {
		cfg.DestDir = args.DestDir
	}
	if wasFlagProvided("--copy") {
		cfg.Copy = args.Copy
	}
	if wasFlagProvided("--dry-run") {
		cfg.DryRun = args.DryRun
	}
	if wasFlagProvided("--delete-originals") {
		cfg.DeleteOriginals = args.DeleteOriginals
	}
	if wasFlagProvided("-v") || wasFlagProvided("--verbose") {
		cfg.Verbose = args.Verbose
	}
	if wasFlagProvided("-j") || wasFlagProvided("--workers") {
		cfg.Workers = args.Workers
	}
	if wasFlagProvided("--decode-timeout") {
		cfg.DecodeTimeout = args.DecodeTimeout
	}
	if wasFlagProvided("--reader-fallback") {
		cfg.ReaderFallback = args.ReaderFallback
	}
	if wasFlagProvided("--skip-hidden") {
		cfg.SkipHidden = args.SkipHidden
	}

	// Validate the configuration
	if err := validateConfig(&cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(os.Stderr, cfg.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, err := organizeMedia(ctx, cfg, logger)
	if files != nil {
		writeReport(os.Stdout, files)
		fmt.Fprintln(os.Stdout)
		fmt.Fprintln(os.Stdout, renderSummary(files))
	}
	if err != nil {
		return fmt.Errorf("organizing media: %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

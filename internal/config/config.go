// Package config loads tree-tags' environment-variable configuration,
// following the MORFX_* pattern termfx-morfx's own config package uses.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds settings read once at startup.
type Config struct {
	// ConfigDir is where compiled grammar shared libraries are cached,
	// under a "lib" subdirectory (spec.md §4.E).
	ConfigDir string
	// ParserDirs are directories scanned for tree-sitter-<name> grammars.
	ParserDirs []string
	// CXX is the C++ compiler invoked to build a grammar's shared library.
	CXX string
	// DatabaseDSN is the SQLite dsn (file path or libsql-style URL).
	DatabaseDSN string
	// Workers is the indexer worker pool size.
	Workers int
	// Debug enables GORM's verbose SQL logger.
	Debug bool
	// Include/Exclude are doublestar glob patterns restricting which
	// files the indexer walks. An empty Include matches everything.
	Include []string
	Exclude []string
}

// Load reads configuration from the environment, applying the same
// defaults-then-override shape as termfx-morfx's LoadConfig. A .env
// file in the working directory is loaded first, if present, the way
// termfx-morfx's integration tests load one for local runs.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		ConfigDir:   os.Getenv("TREE_TAGS_CONFIG_DIR"),
		CXX:         os.Getenv("CXX"),
		DatabaseDSN: os.Getenv("TREE_TAGS_DATABASE_DSN"),
		Workers:     runtime.NumCPU(),
		Debug:       false,
	}

	if cfg.ConfigDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.ConfigDir = filepath.Join(home, ".config", "tree-tags")
		} else {
			cfg.ConfigDir = ".tree-tags"
		}
	}
	if cfg.CXX == "" {
		cfg.CXX = "c++"
	}
	if cfg.DatabaseDSN == "" {
		cfg.DatabaseDSN = filepath.Join(cfg.ConfigDir, "db.sqlite")
	}

	if dirs := os.Getenv("TREE_TAGS_PARSER_DIRS"); dirs != "" {
		for _, d := range strings.Split(dirs, ":") {
			if d != "" {
				cfg.ParserDirs = append(cfg.ParserDirs, d)
			}
		}
	}

	if workersStr := os.Getenv("TREE_TAGS_WORKERS"); workersStr != "" {
		if workers, err := strconv.Atoi(workersStr); err == nil && workers > 0 {
			cfg.Workers = workers
		}
	}

	if debugStr := os.Getenv("TREE_TAGS_DEBUG"); debugStr != "" {
		if debug, err := strconv.ParseBool(debugStr); err == nil {
			cfg.Debug = debug
		}
	}

	if include := os.Getenv("TREE_TAGS_INCLUDE"); include != "" {
		cfg.Include = strings.Split(include, ":")
	}
	if exclude := os.Getenv("TREE_TAGS_EXCLUDE"); exclude != "" {
		cfg.Exclude = strings.Split(exclude, ":")
	}

	return cfg
}

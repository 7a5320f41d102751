package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Version is set at build time.
var Version string

type Config struct {
	API      API      `yaml:"api"`
	Database Database `yaml:"database"`
	Enrich   Enrich   `yaml:"enrich"`
	Dispatch Dispatch `yaml:"dispatch"`
}

type API struct {
	Port string `yaml:"port" env:"RCFEED_API_PORT" env-default:"8080"`
}

type Database struct {
	Driver string `yaml:"driver" env:"RCFEED_DB_DRIVER" env-default:"sqlite3"`
	// Path of the database file; empty for an in-memory database. A relative
	// path is taken from the directory of the executable.
	Path string `yaml:"path" env:"RCFEED_DB_PATH" env-default:".sqlite/messages.db"`
}

// ResolvedPath returns the database path to open. Relative paths are joined
// to the directory of the running executable, so the database does not move
// with the working directory.
func (d Database) ResolvedPath() (string, error) {
	if d.Path == "" || d.Path == ":memory:" || filepath.IsAbs(d.Path) {
		return d.Path, nil
	}
	e, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}
	return filepath.Join(filepath.Dir(e), d.Path), nil
}

type Enrich struct {
	// URL of the lookup service. Enrichment is off when empty.
	URL        string        `yaml:"url" env:"RCFEED_ENRICH_URL"`
	Timeout    time.Duration `yaml:"timeout" env:"RCFEED_ENRICH_TIMEOUT" env-default:"5s"`
	Attempts   int           `yaml:"attempts" env:"RCFEED_ENRICH_ATTEMPTS" env-default:"1"`
	Properties []string      `yaml:"properties" env:"RCFEED_ENRICH_PROPERTIES" env-separator:","`
}

type Dispatch struct {
	MaxConcurrent int `yaml:"max_concurrent" env:"RCFEED_MAX_CONCURRENT" env-default:"100"`
}

// Load reads path if it exists, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("config error: %w", err)
			}
			return cfg, cfg.validate()
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Enrich.Attempts < 1 {
		return errors.New("config error: enrich attempts must be at least 1")
	}
	if c.Dispatch.MaxConcurrent < 1 {
		return errors.New("config error: max concurrent must be at least 1")
	}
	return nil
}

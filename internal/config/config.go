// Package config loads storymig settings from YAML and the environment.
//
// Search order: the explicit path, ./storymig.yaml, ~/.storymig/config.yaml.
// A missing file is not an error; defaults apply. Environment variables win
// over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/contentops/storymig/internal/logging"
	"github.com/contentops/storymig/internal/provider"
)

// Environment variables read by Load.
const (
	EnvOAuthToken = "STORYBLOK_OAUTH_TOKEN"
	EnvSpaceID    = "STORYBLOK_SPACE_ID"
	EnvRegion     = "STORYBLOK_REGION"
	EnvRateLimit  = "STORYMIG_RATE_LIMIT"
	EnvPassphrase = "STORYMIG_PASSPHRASE"
)

// Defaults.
const (
	DefaultRateLimit   = 3
	DefaultRollbackDir = "migrations/rollback"
	DefaultJournalPath = ".storymig/journal.db"
	fileName           = "storymig.yaml"
)

// Config is the storymig configuration.
type Config struct {
	SpaceID     string         `yaml:"space_id"`
	OAuthToken  string         `yaml:"oauth_token"`
	Region      string         `yaml:"region"`
	RateLimit   int            `yaml:"rate_limit"`
	RollbackDir string         `yaml:"rollback_dir"`
	JournalPath string         `yaml:"journal_path"`
	Passphrase  string         `yaml:"-"`
	Log         logging.Config `yaml:"log"`

	// Path is the file the config was read from, empty when none was found.
	Path string `yaml:"-"`
}

// Default returns a config with every default applied.
func Default() *Config {
	return &Config{
		Region:      provider.DefaultRegion,
		RateLimit:   DefaultRateLimit,
		RollbackDir: DefaultRollbackDir,
		JournalPath: DefaultJournalPath,
		Log:         logging.Config{Level: "info", Format: logging.FormatConsole},
	}
}

// Load reads the config. An explicit path that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	candidates := []string{path}
	if path == "" {
		candidates = searchPaths()
	}
	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) && path == "" {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", p, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", p, err)
		}
		cfg.Path = p
		break
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return cfg, nil
}

func searchPaths() []string {
	paths := []string{fileName}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".storymig", "config.yaml"))
	}
	return paths
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvOAuthToken); v != "" {
		c.OAuthToken = v
	}
	if v := os.Getenv(EnvSpaceID); v != "" {
		c.SpaceID = v
	}
	if v := os.Getenv(EnvRegion); v != "" {
		c.Region = v
	}
	if v := os.Getenv(EnvRateLimit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &provider.ConfigError{Field: "rate_limit", Reason: fmt.Sprintf("%s=%q is not a number", EnvRateLimit, v)}
		}
		c.RateLimit = n
	}
	c.Passphrase = os.Getenv(EnvPassphrase)
	return nil
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.Region == "" {
		c.Region = d.Region
	}
	if c.RateLimit <= 0 {
		c.RateLimit = d.RateLimit
	}
	if c.RollbackDir == "" {
		c.RollbackDir = d.RollbackDir
	}
	if c.JournalPath == "" {
		c.JournalPath = d.JournalPath
	}
}

// Credentials returns a credential source that overrides the configured
// space and token with the non-empty arguments.
func (c *Config) Credentials(space, token string) provider.CredentialSource {
	return func() (*provider.Credentials, error) {
		creds := &provider.Credentials{SpaceID: c.SpaceID, OAuthToken: c.OAuthToken, Region: c.Region}
		if space != "" {
			creds.SpaceID = space
		}
		if token != "" {
			creds.OAuthToken = token
		}
		if creds.OAuthToken == "" {
			return nil, provider.ErrMissingOAuthToken
		}
		if creds.SpaceID == "" {
			return nil, provider.ErrMissingSpaceID
		}
		return creds, nil
	}
}

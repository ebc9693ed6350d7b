package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-futurism/pkg/signer"
)

// Environment variables that override file values.
const (
	EnvSecretKeyBase = "FUTURISM_SECRET_KEY_BASE"
	EnvApp           = "FUTURISM_APP"
	EnvSalt          = "FUTURISM_SALT"
	EnvIterations    = "FUTURISM_ITERATIONS"
)

// DefaultApp is the application name references are issued under.
const DefaultApp = "futurism"

// ErrMissingSecret is returned by Validate when no secret is configured.
var ErrMissingSecret = errors.New("config: secret_key_base is required")

// Config is the process-wide protocol configuration. It is loaded once at
// startup and passed by reference; nothing reads it from globals.
type Config struct {
	App           string `json:"app" yaml:"app"`
	SecretKeyBase string `json:"secret_key_base" yaml:"secret_key_base"`
	Salt          string `json:"salt" yaml:"salt"`
	Iterations    int    `json:"iterations" yaml:"iterations"`
}

// Default returns a Config with every value but the secret filled in.
func Default() Config {
	return Config{
		App:        DefaultApp,
		Salt:       signer.DefaultSalt,
		Iterations: signer.DefaultIterations,
	}
}

// Load reads path, applies environment overrides and validates the result.
// An empty path loads defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if cfg, err = Parse(data, path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFS reads name from fsys without consulting the environment.
func LoadFS(fsys fs.FS, name string) (Config, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", name, err)
	}
	cfg, err := Parse(data, name)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes a JSON or YAML document on top of Default.
func Parse(data []byte, source string) (Config, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return Config{}, fmt.Errorf("config: file %s is empty", source)
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err == nil {
		return cfg.withDefaults(), nil
	}

	cfg = Default()
	if err := yaml.Unmarshal(data, &cfg); err == nil {
		return cfg.withDefaults(), nil
	}

	return Config{}, fmt.Errorf("config: parse %s: invalid JSON or YAML", source)
}

// ApplyEnv overrides values from the environment through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}
	if v, ok := lookup(EnvSecretKeyBase); ok && v != "" {
		c.SecretKeyBase = v
	}
	if v, ok := lookup(EnvApp); ok && strings.TrimSpace(v) != "" {
		c.App = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvSalt); ok && strings.TrimSpace(v) != "" {
		c.Salt = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvIterations); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvIterations, err)
		}
		c.Iterations = n
	}
	return nil
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.SecretKeyBase == "" {
		return ErrMissingSecret
	}
	if strings.TrimSpace(c.App) == "" {
		return errors.New("config: app is required")
	}
	if strings.Contains(c.App, "/") {
		return fmt.Errorf("config: app %q must not contain '/'", c.App)
	}
	if c.Iterations <= 0 {
		return fmt.Errorf("config: iterations must be positive, got %d", c.Iterations)
	}
	return nil
}

// Signer builds the message signer described by c.
func (c Config) Signer() (*signer.Signer, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	s, err := signer.New([]byte(c.SecretKeyBase), signer.WithSalt(c.Salt), signer.WithIterations(c.Iterations))
	if err != nil {
		return nil, fmt.Errorf("config: signer: %w", err)
	}
	return s, nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.SecretKeyBase != "" {
		c.SecretKeyBase = "[redacted]"
	}
	return c
}

func (c Config) withDefaults() Config {
	def := Default()
	if strings.TrimSpace(c.App) == "" {
		c.App = def.App
	}
	if strings.TrimSpace(c.Salt) == "" {
		c.Salt = def.Salt
	}
	if c.Iterations == 0 {
		c.Iterations = def.Iterations
	}
	return c
}

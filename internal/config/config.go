package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds murmur's settings.
type Config struct {
	APIURL            string
	DataDir           string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Theme             string
}

const (
	defaultConfigPath        = "~/.config/murmur/config.toml"
	defaultDataDir           = "~/.local/share/murmur"
	defaultAPIURL            = "http://localhost:4000"
	defaultRequestTimeout    = 10 * time.Second
	defaultRequestsPerSecond = 10
	defaultTheme             = "Nightfox"
)

// overrides are read from the environment after the file.
type overrides struct {
	APIURL  string `env:"MURMUR_API_URL"`
	DataDir string `env:"MURMUR_DATA_DIR"`
	Theme   string `env:"MURMUR_THEME"`
}

// Load reads the config file at path (or the default location), falling back
// to defaults when it is missing. A .env file in the working directory is
// loaded if present, and MURMUR_* variables override file values.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		APIURL:            defaultAPIURL,
		DataDir:           defaultDataDir,
		RequestTimeout:    defaultRequestTimeout,
		RequestsPerSecond: defaultRequestsPerSecond,
		Theme:             defaultTheme,
	}

	if err := readFile(resolved, &cfg); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.DataDir = mustExpand(cfg.DataDir)
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIURL            string   `toml:"api_url"`
		DataDir           string   `toml:"data_dir"`
		RequestTimeout    *int     `toml:"request_timeout"`
		RequestsPerSecond *float64 `toml:"requests_per_second"`
		Theme             string   `toml:"theme"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIURL); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(raw.DataDir); v != "" {
		cfg.DataDir = v
	}
	if raw.RequestTimeout != nil {
		if *raw.RequestTimeout <= 0 {
			return fmt.Errorf("parse config: request_timeout must be positive, got %d", *raw.RequestTimeout)
		}
		cfg.RequestTimeout = time.Duration(*raw.RequestTimeout) * time.Second
	}
	if raw.RequestsPerSecond != nil {
		if *raw.RequestsPerSecond < 0 {
			return fmt.Errorf("parse config: requests_per_second must not be negative")
		}
		cfg.RequestsPerSecond = *raw.RequestsPerSecond
	}
	if v := strings.TrimSpace(raw.Theme); v != "" {
		cfg.Theme = v
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	var env overrides
	if err := cleanenv.UpdateEnv(&env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	if v := strings.TrimSpace(env.APIURL); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(env.DataDir); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(env.Theme); v != "" {
		cfg.Theme = v
	}
	return nil
}

// SessionPath returns the file holding the persisted credential.
func (c Config) SessionPath() string {
	return filepath.Join(c.dataDir(), "session.toml")
}

// PrefsPath returns the file holding UI preferences such as the theme.
func (c Config) PrefsPath() string {
	return filepath.Join(c.dataDir(), "prefs.toml")
}

// LogPath returns the file the client logs to.
func (c Config) LogPath() string {
	return filepath.Join(c.dataDir(), "murmur.log")
}

func (c Config) dataDir() string {
	if strings.TrimSpace(c.DataDir) == "" {
		return mustExpand(defaultDataDir)
	}
	return c.DataDir
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}

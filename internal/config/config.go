// Package config loads the talkshelf TOML configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	toml "github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration written as "300ms", "1.5h" or "2h45m".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	res, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = res
	return nil
}

// MarshalText writes the duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Server struct {
	// Addr is the listen address.
	Addr string `toml:"addr"`
	// Title is shown in the page header and the favorites feed.
	Title string `toml:"title"`
	// PublicURL is the externally visible base URL, used for feed links.
	PublicURL string `toml:"public_url"`
	// PageSize is how many episodes the list shows by default.
	PageSize int `toml:"page_size"`
}

type Content struct {
	// Source is "wordpress" or "rss".
	Source     string `toml:"source"`
	APIURL     string `toml:"api_url"`
	FeedURL    string `toml:"feed_url"`
	CategoryID int64  `toml:"category_id"`
	PerPage    int    `toml:"per_page"`
	// MediaBaseURL is what relative audio and image paths are resolved against.
	MediaBaseURL string `toml:"media_base_url"`
	// Refresh is how often the episode list is revalidated.
	Refresh Duration `toml:"refresh"`
	// CronSchedule overrides Refresh when set.
	CronSchedule string `toml:"cron_schedule"`
}

type Storage struct {
	// Backend is one of memory, sqlite, postgres, redis, badger.
	Backend  string `toml:"backend"`
	Path     string `toml:"path"`
	DSN      string `toml:"dsn"`
	RedisURL string `toml:"redis_url"`
}

type Cache struct {
	// RedisURL enables a shared episode cache. Empty keeps it in memory.
	RedisURL string `toml:"redis_url"`
}

type Player struct {
	OpenDelay  Duration `toml:"open_delay"`
	CloseDelay Duration `toml:"close_delay"`
	SeekStep   Duration `toml:"seek_step"`
}

type Config struct {
	Server  Server  `toml:"server"`
	Content Content `toml:"content"`
	Storage Storage `toml:"storage"`
	Cache   Cache   `toml:"cache"`
	Player  Player  `toml:"player"`
}

const (
	defaultConfigPath = "~/.config/talkshelf/config.toml"
	defaultDataDir    = "~/.local/share/talkshelf"
	defaultAddr       = "127.0.0.1:8080"
	defaultTitle      = "Paul Lowe Talks"
	defaultAPIURL     = "https://www.paullowe.org/wp-json"
	defaultMediaBase  = "https://www.paullowe.org/wp-content/uploads/"
	defaultCategoryID = 80
	defaultPerPage    = 99
	defaultPageSize   = 12
	defaultRefresh    = 7000 * time.Second
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Server: Server{
			Addr:     defaultAddr,
			Title:    defaultTitle,
			PageSize: defaultPageSize,
		},
		Content: Content{
			Source:       "wordpress",
			APIURL:       defaultAPIURL,
			CategoryID:   defaultCategoryID,
			PerPage:      defaultPerPage,
			MediaBaseURL: defaultMediaBase,
			Refresh:      Duration{defaultRefresh},
		},
		Storage: Storage{
			Backend: "sqlite",
			Path:    mustExpand(filepath.Join(defaultDataDir, "talkshelf.db")),
		},
		Player: Player{
			OpenDelay:  Duration{50 * time.Millisecond},
			CloseDelay: Duration{300 * time.Millisecond},
			SeekStep:   Duration{15 * time.Second},
		},
	}
}

// Load reads the TOML file at path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.Validate()
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(bytes, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if strings.TrimSpace(c.Server.Addr) == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.PageSize == 0 {
		c.Server.PageSize = def.Server.PageSize
	}
	if c.Content.PerPage == 0 {
		c.Content.PerPage = def.Content.PerPage
	}
	if c.Content.Refresh.Duration == 0 {
		c.Content.Refresh = def.Content.Refresh
	}
	c.Content.Source = strings.ToLower(strings.TrimSpace(c.Content.Source))
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Path != "" {
		c.Storage.Path = mustExpand(c.Storage.Path)
	}
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var result error

	if c.Server.PageSize < 1 {
		result = multierror.Append(result, fmt.Errorf("server.page_size must be positive, got %d", c.Server.PageSize))
	}

	switch c.Content.Source {
	case "wordpress":
		if c.Content.APIURL == "" {
			result = multierror.Append(result, errors.New("content.api_url is required for the wordpress source"))
		}
		if c.Content.CategoryID <= 0 {
			result = multierror.Append(result, errors.New("content.category_id is required for the wordpress source"))
		}
	case "rss":
		if c.Content.FeedURL == "" {
			result = multierror.Append(result, errors.New("content.feed_url is required for the rss source"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown content.source %q", c.Content.Source))
	}
	if c.Content.PerPage < 1 || c.Content.PerPage > 100 {
		result = multierror.Append(result, fmt.Errorf("content.per_page must be within 1..100, got %d", c.Content.PerPage))
	}
	if c.Content.Refresh.Duration < time.Minute && c.Content.CronSchedule == "" {
		result = multierror.Append(result, fmt.Errorf("content.refresh must be at least 1m, got %s", c.Content.Refresh.Duration))
	}

	switch c.Storage.Backend {
	case "", "memory":
	case "sqlite", "badger":
		if c.Storage.Path == "" {
			result = multierror.Append(result, fmt.Errorf("storage.path is required for the %s backend", c.Storage.Backend))
		}
	case "postgres":
		if c.Storage.DSN == "" {
			result = multierror.Append(result, errors.New("storage.dsn is required for the postgres backend"))
		}
	case "redis":
		if c.Storage.RedisURL == "" {
			result = multierror.Append(result, errors.New("storage.redis_url is required for the redis backend"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}

	return result
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

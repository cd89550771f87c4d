package internal

import (
	"fmt"
	"log/slog"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/huttdl/internal/store"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Creator  CreatorConfig     `yaml:"creator"`
	Download DownloadConfig    `yaml:"download"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Creator.Validate(); err != nil {
		return err
	}
	if err := c.Download.Validate(); err != nil {
		return err
	}
	return c.SQLite.Validate()
}

// FilenamePatterns returns the per-post-type filename pattern map consumed
// by the download and rename commands.
func (c *Config) FilenamePatterns() map[store.PostType]string {
	return map[store.PostType]string{
		store.PostTypeVideo: c.Download.Patterns.Video,
		store.PostTypeImage: c.Download.Patterns.Image,
	}
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds the serve command's HTTP configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns the HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// CreatorConfig identifies the creator being archived and carries the
// session cookie the site requires.
type CreatorConfig struct {
	ID     int64  `yaml:"id"`
	Name   string `yaml:"name"`
	Cookie string `yaml:"cookie"`
}

// Validate validates the creator configuration.
func (c *CreatorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ID, validation.Required, validation.Min(1)),
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Cookie, validation.Required),
	)
}

// DownloadConfig holds the destination directory and filename patterns.
type DownloadConfig struct {
	Directory string        `yaml:"directory"`
	Patterns  PatternConfig `yaml:"patterns"`
}

// Validate validates the download configuration.
func (c *DownloadConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Directory, validation.Required),
	); err != nil {
		return err
	}
	return c.Patterns.Validate()
}

// PatternConfig holds one filename pattern per post type. Patterns may use
// {post_id}, {title}, {link_id} and {type} plus literal /-separated
// segments.
type PatternConfig struct {
	Video string `yaml:"video"`
	Image string `yaml:"image"`
}

// Validate validates the pattern configuration.
func (c *PatternConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Video, validation.Required),
		validation.Field(&c.Image, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with the default directory layout
// and filename patterns. Creator identity and cookie must be filled in.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Download: DownloadConfig{
			Directory: "downloads",
			Patterns: PatternConfig{
				Video: "{type}/{post_id} - {title}",
				Image: "{type}/{post_id} - {title}/{link_id}",
			},
		},
		SQLite: SQLiteConfig{
			Path: "./hutt.sqlite3",
		},
	}
}

const defaultConfigYAML = `app:
  log_level: info
  http:
    port: 8080

creator:
  # Numerical creator id, taken from the /is-live?id=... request.
  id: 0
  name: ""
  # Cookie header copied from a logged-in browser session.
  cookie: ""

download:
  directory: downloads
  patterns:
    video: "{type}/{post_id} - {title}"
    image: "{type}/{post_id} - {title}/{link_id}"

sqlite:
  path: ./hutt.sqlite3
`

// EnsureConfigFile writes a commented default configuration to path when no
// file exists there yet. Returns true when a file was created.
func EnsureConfigFile(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return false, fmt.Errorf("write default config %s: %w", path, err)
	}
	return true, nil
}

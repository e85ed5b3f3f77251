package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"
	// Zone names in sync.timezone resolve without system tzdata.
	_ "time/tzdata"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/coursevault/internal/canvas"
	"github.com/starford/coursevault/internal/models"
	"github.com/starford/coursevault/internal/retry"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// stateDir holds the database and log file inside the vault.
const stateDir = ".canvas_sync"

var clockRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Environment variables applied over the file values by ApplyEnv.
const (
	EnvCanvasToken = "CANVAS_API_TOKEN"
	EnvCanvasURL   = "CANVAS_BASE_URL"
	EnvVaultPath   = "OBSIDIAN_VAULT_PATH"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Vault  VaultConfig       `yaml:"vault"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Canvas CanvasConfig      `yaml:"canvas"`
	Sync   SyncConfig        `yaml:"sync"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Canvas.Validate(); err != nil {
		return err
	}
	if err := c.Sync.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplyEnv copies set environment variables into c. pkg/config calls it
// after the file is parsed, so a set variable wins over the file value.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvCanvasToken); v != "" {
		c.Canvas.Token = v
	}
	if v := os.Getenv(EnvCanvasURL); v != "" {
		c.Canvas.BaseURL = v
	}
	if v := os.Getenv(EnvVaultPath); v != "" {
		c.Vault.Path = v
	}
}

// DBPath is the state database location, defaulting to a file inside the
// vault's state directory.
func (c *Config) DBPath() string {
	if c.SQLite.Path != "" {
		return c.SQLite.Path
	}
	return filepath.Join(c.Vault.Path, stateDir, "sync.db")
}

// DaemonLogFile is where the daemon logs when app.log_file is unset.
func (c *Config) DaemonLogFile() string {
	if c.App.LogFile != "" {
		return c.App.LogFile
	}
	return filepath.Join(c.Vault.Path, stateDir, "sync.log")
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// LogFile, when set, receives a rotated copy of the log stream.
	LogFile string     `yaml:"log_file"`
	HTTP    HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the Obsidian vault.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds the state database location. Empty means
// <vault>/.canvas_sync/sync.db.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// CanvasConfig holds the Canvas instance and credentials.
type CanvasConfig struct {
	BaseURL            string        `yaml:"base_url"`
	Token              string        `yaml:"token"`
	Timeout            time.Duration `yaml:"timeout"`
	CalendarPastDays   int           `yaml:"calendar_past_days"`
	CalendarFutureDays int           `yaml:"calendar_future_days"`
}

// Validate validates the Canvas configuration.
func (c *CanvasConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Token, validation.Required.Error("is required (set CANVAS_API_TOKEN)")),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.CalendarPastDays, validation.Min(0)),
		validation.Field(&c.CalendarFutureDays, validation.Min(0)),
	)
}

// ClientOptions converts the section into canvas client options.
func (c *CanvasConfig) ClientOptions() canvas.Options {
	return canvas.Options{
		BaseURL:    c.BaseURL,
		Token:      c.Token,
		Timeout:    c.Timeout,
		PastDays:   c.CalendarPastDays,
		FutureDays: c.CalendarFutureDays,
	}
}

// SyncConfig controls when and what is synced.
type SyncConfig struct {
	// Time is the daily sync time, "HH:MM".
	Time     string         `yaml:"time"`
	Timezone string         `yaml:"timezone"`
	Retry    RetryConfig    `yaml:"retry"`
	Courses  []CourseConfig `yaml:"courses"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Time, validation.Required, validation.Match(clockRe).Error("must be HH:MM")),
		validation.Field(&c.Timezone, validation.By(func(any) error {
			_, err := c.Location()
			return err
		})),
		validation.Field(&c.Retry),
		validation.Field(&c.Courses),
	)
}

// Location resolves Timezone; empty means the local zone.
func (c *SyncConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q", c.Timezone)
	}
	return loc, nil
}

// CourseList returns the configured courses.
func (c *SyncConfig) CourseList() []models.Course {
	out := make([]models.Course, 0, len(c.Courses))
	for _, cc := range c.Courses {
		out = append(out, models.Course{ID: cc.ID, Name: cc.Name})
	}
	return out
}

// RetryConfig bounds retries of transient Canvas failures.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// Validate validates the retry configuration.
func (c RetryConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MaxAttempts, validation.Required, validation.Min(1), validation.Max(10)),
		validation.Field(&c.BaseDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxDelay, validation.Min(c.BaseDelay)),
	)
}

// Policy converts the section into a retry policy.
func (c RetryConfig) Policy() retry.Policy {
	return retry.Policy{MaxAttempts: c.MaxAttempts, BaseDelay: c.BaseDelay, MaxDelay: c.MaxDelay}
}

// CourseConfig pins a course to sync, overriding the stored selection.
type CourseConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Validate validates a course entry.
func (c CourseConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required, is.Digit),
	)
}

// AuthConfig holds authentication configuration for the HTTP API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication, suitable for localhost.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	p := retry.Default()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		Canvas: CanvasConfig{
			BaseURL:            canvas.DefaultBaseURL,
			Timeout:            30 * time.Second,
			CalendarPastDays:   30,
			CalendarFutureDays: 365,
		},
		Sync: SyncConfig{
			Time: "06:00",
			Retry: RetryConfig{
				MaxAttempts: p.MaxAttempts,
				BaseDelay:   p.BaseDelay,
				MaxDelay:    p.MaxDelay,
			},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

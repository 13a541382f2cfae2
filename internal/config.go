package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/archivist/internal/driveindex"
	"github.com/starford/archivist/internal/organizer"
	"github.com/starford/archivist/internal/reconcile"
	"github.com/starford/archivist/internal/target"
	"github.com/starford/archivist/internal/transfer"
	"github.com/starford/archivist/internal/watch"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Organizer OrganizerConfig   `yaml:"organizer"`
	Drives    DrivesConfig      `yaml:"drives"`
	Watch     WatchConfig       `yaml:"watch"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Organizer.Validate(); err != nil {
		return fmt.Errorf("organizer: %w", err)
	}
	if err := c.Drives.Validate(); err != nil {
		return fmt.Errorf("drives: %w", err)
	}
	if err := c.Watch.Validate(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatText)),
	); err != nil {
		return err
	}
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

// OrganizerConfig controls how photos are moved into the archive.
type OrganizerConfig struct {
	ArchiveRoot        string   `yaml:"archive_root"`
	Extensions         []string `yaml:"extensions"`
	DryRun             bool     `yaml:"dry_run"`
	Mode               string   `yaml:"mode"`
	VerifyChecksums    bool     `yaml:"verify_checksums"`
	MaxDuplicateSuffix int      `yaml:"max_duplicate_suffix"`
	UseMtimeFallback   bool     `yaml:"use_mtime_fallback"`
}

// Validate validates the organizer configuration and normalizes extensions.
func (c *OrganizerConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = string(transfer.ModeMove)
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.ArchiveRoot, validation.Required),
		validation.Field(&c.Mode, validation.In(string(transfer.ModeMove), string(transfer.ModeCopy), string(transfer.ModeRename))),
		validation.Field(&c.MaxDuplicateSuffix, validation.Required, validation.Min(1)),
		validation.Field(&c.Extensions, validation.Each(validation.Required)),
	); err != nil {
		return err
	}
	c.Extensions = normalizeExtensions(c.Extensions)
	return nil
}

func normalizeExtensions(exts []string) []string {
	seen := make(map[string]struct{}, len(exts))
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		n := organizer.NormalizeExt(e)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// TransferMode returns the parsed mode.
func (c *OrganizerConfig) TransferMode() transfer.Mode {
	m, err := transfer.ParseMode(c.Mode)
	if err != nil {
		return transfer.ModeMove
	}
	return m
}

// DrivesConfig tunes drive scanning.
type DrivesConfig struct {
	BatchSize   int           `yaml:"batch_size"`
	MaxWorkers  int           `yaml:"max_workers"`
	ScanTimeout time.Duration `yaml:"scan_timeout"`
}

// Validate validates the drives configuration.
func (c *DrivesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BatchSize, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxWorkers, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&c.ScanTimeout, validation.Required, validation.Min(time.Second)),
	)
}

// WatchConfig configures the inbox watcher used by serve.
type WatchConfig struct {
	Inbox    string        `yaml:"inbox"`
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(10*time.Millisecond)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
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
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Organizer: OrganizerConfig{
			ArchiveRoot:        "archive",
			Extensions:         organizer.DefaultExtensions,
			Mode:               string(transfer.ModeMove),
			VerifyChecksums:    true,
			MaxDuplicateSuffix: target.DefaultMaxSuffix,
			UseMtimeFallback:   true,
		},
		Drives: DrivesConfig{
			BatchSize:   driveindex.DefaultBatchSize,
			MaxWorkers:  driveindex.DefaultMaxWorkers,
			ScanTimeout: reconcile.DefaultScanTimeout,
		},
		Watch: WatchConfig{
			Debounce: watch.DefaultDebounce,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

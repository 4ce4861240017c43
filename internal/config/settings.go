package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"himawari-desktop/internal/common"
)

const (
	defaultConfigPath = "~/.config/himawari/config.toml"
	defaultOutputPath = "~/.config/himawari/himawari-latest.png"
	defaultLogDir     = "~/.logs"
	defaultTimeout    = 10
	defaultWorkers    = 8
)

// Settings is everything a run needs. It is loaded once and passed to each
// component at construction.
type Settings struct {
	Level          int      `toml:"level"`
	TileWidth      int      `toml:"tile_width"`
	TileHeight     int      `toml:"tile_height"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	Workers        int      `toml:"workers"`
	OutputPath     string   `toml:"output_path"`
	MetadataURL    string   `toml:"metadata_url"`
	TileBaseURL    string   `toml:"tile_base_url"`
	LogDir         string   `toml:"log_dir"`
	XfceProperties []string `toml:"xfce_properties"`

	// SetWallpaper is a pointer so an explicit false survives the defaults merge
	SetWallpaper *bool `toml:"set_wallpaper"`

	// Telemetry is disabled unless a key is configured
	TelemetryKey  string `toml:"telemetry_key"`
	TelemetryHost string `toml:"telemetry_host"`
}

// DefaultSettings returns default settings with paths expanded
func DefaultSettings() *Settings {
	setWallpaper := true
	return &Settings{
		Level:          common.DefaultLevel,
		TileWidth:      common.DefaultTileWidth,
		TileHeight:     common.DefaultTileHeight,
		TimeoutSeconds: defaultTimeout,
		Workers:        defaultWorkers,
		OutputPath:     mustExpand(defaultOutputPath),
		MetadataURL:    common.DefaultMetadataURL,
		TileBaseURL:    common.DefaultTileBaseURL,
		LogDir:         mustExpand(defaultLogDir),
		XfceProperties: []string{
			"/backdrop/screen0/monitor0/image-path",
			"/backdrop/screen0/monitor0/workspace0/last-image",
		},
		SetWallpaper: &setWallpaper,
	}
}

// DefaultPath returns the expanded default config file location
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
}

// Load reads settings from path (DefaultPath when empty). A missing file
// yields defaults; empty fields are filled from defaults.
func Load(path string) (*Settings, error) {
	if strings.TrimSpace(path) == "" {
		path = defaultConfigPath
	}
	resolved, err := expandPath(path)
	if err != nil {
		return nil, err
	}

	defaults := DefaultSettings()
	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaults, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var settings Settings
	if err := toml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", common.ErrInvalidConfig, resolved, err)
	}

	// Merge with defaults for any missing fields
	if settings.Level == 0 {
		settings.Level = defaults.Level
	}
	if settings.TileWidth == 0 {
		settings.TileWidth = defaults.TileWidth
	}
	if settings.TileHeight == 0 {
		settings.TileHeight = defaults.TileHeight
	}
	if settings.TimeoutSeconds == 0 {
		settings.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if settings.Workers == 0 {
		settings.Workers = defaults.Workers
	}
	settings.OutputPath = orDefault(settings.OutputPath, defaults.OutputPath)
	settings.MetadataURL = orDefault(settings.MetadataURL, defaults.MetadataURL)
	settings.TileBaseURL = orDefault(settings.TileBaseURL, defaults.TileBaseURL)
	settings.LogDir = orDefault(settings.LogDir, defaults.LogDir)
	if len(settings.XfceProperties) == 0 {
		settings.XfceProperties = defaults.XfceProperties
	}
	if settings.SetWallpaper == nil {
		settings.SetWallpaper = defaults.SetWallpaper
	}
	settings.TelemetryKey = strings.TrimSpace(settings.TelemetryKey)
	settings.TelemetryHost = strings.TrimSpace(settings.TelemetryHost)

	settings.OutputPath = mustExpand(settings.OutputPath)
	settings.LogDir = mustExpand(settings.LogDir)

	return &settings, nil
}

// Validate checks the settings before a run starts
func (s *Settings) Validate() error {
	if err := s.Grid().Validate(); err != nil {
		return err
	}
	if s.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: timeout_seconds must be positive, got %d", common.ErrInvalidConfig, s.TimeoutSeconds)
	}
	if s.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive, got %d", common.ErrInvalidConfig, s.Workers)
	}
	if strings.TrimSpace(s.OutputPath) == "" {
		return fmt.Errorf("%w: output_path is required", common.ErrInvalidConfig)
	}
	if strings.TrimSpace(s.MetadataURL) == "" || strings.TrimSpace(s.TileBaseURL) == "" {
		return fmt.Errorf("%w: metadata_url and tile_base_url are required", common.ErrInvalidConfig)
	}
	return nil
}

// Grid returns the tile grid described by the settings
func (s *Settings) Grid() common.GridSpec {
	return common.GridSpec{Level: s.Level, TileWidth: s.TileWidth, TileHeight: s.TileHeight}
}

// Timeout returns the per-request timeout
func (s *Settings) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// WallpaperEnabled reports whether the applicator should run after a write
func (s *Settings) WallpaperEnabled() bool {
	return s.SetWallpaper == nil || *s.SetWallpaper
}

// ExpandPath expands a leading ~ and makes path absolute
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
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

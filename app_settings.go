package main

import (
	"path/filepath"

	"himawari-desktop/internal/config"
)

// Overrides are command-line values that take precedence over the config file.
// Zero values leave the file setting alone.
type Overrides struct {
	Level          int
	TimeoutSeconds int
	Workers        int
	OutputPath     string
	NoWallpaper    bool
}

// applyOverrides copies the non-zero overrides onto settings
func applyOverrides(settings *config.Settings, o Overrides) error {
	if o.Level != 0 {
		settings.Level = o.Level
	}
	if o.TimeoutSeconds != 0 {
		settings.TimeoutSeconds = o.TimeoutSeconds
	}
	if o.Workers != 0 {
		settings.Workers = o.Workers
	}
	if o.OutputPath != "" {
		expanded, err := config.ExpandPath(o.OutputPath)
		if err != nil {
			return err
		}
		settings.OutputPath = expanded
	}
	if o.NoWallpaper {
		disabled := false
		settings.SetWallpaper = &disabled
	}
	return nil
}

// installIDPath keeps the telemetry ID next to the composite
func installIDPath(settings *config.Settings) string {
	return filepath.Join(filepath.Dir(settings.OutputPath), ".install-id")
}

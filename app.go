package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"himawari-desktop/internal/common"
	"himawari-desktop/internal/config"
	"himawari-desktop/internal/himawari"
	"himawari-desktop/internal/imagery"
	"himawari-desktop/internal/output"
	"himawari-desktop/internal/ratelimit"
	"himawari-desktop/internal/telemetry"
	"himawari-desktop/internal/wallpaper"
)

// Linker flags
var (
	PostHogKey  string
	PostHogHost string
	AppVersion  string = "0.0.0-dev"
)

// Stage names the step of a run that failed
type Stage string

const (
	StageConfig    Stage = "config"
	StageResolve   Stage = "resolve"
	StageAssemble  Stage = "assemble"
	StageWrite     Stage = "write"
	StageWallpaper Stage = "wallpaper"
)

// Process exit statuses
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfig      = 2
	ExitResolve     = 3
	ExitAssemble    = 4
	ExitWrite       = 5
	ExitWallpaper   = 6
	ExitInterrupted = 130
)

// StageError ties a failure to the step that produced it
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ExitCode maps a run error onto the process exit status
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	var se *StageError
	if !errors.As(err, &se) {
		if errors.Is(err, common.ErrInvalidConfig) {
			return ExitConfig
		}
		return ExitFailure
	}
	switch se.Stage {
	case StageConfig:
		return ExitConfig
	case StageResolve:
		return ExitResolve
	case StageAssemble:
		return ExitAssemble
	case StageWrite:
		return ExitWrite
	case StageWallpaper:
		return ExitWallpaper
	}
	return ExitFailure
}

// WallpaperSetter sets a file as the desktop background
type WallpaperSetter interface {
	Apply(ctx context.Context, path string) error
}

// AppOptions carries the collaborators a caller may replace
type AppOptions struct {
	// Wallpaper defaults to the platform applicator
	Wallpaper WallpaperSetter

	// Progress receives (done, total) after every finished tile
	Progress func(current, total int)

	Tracker    *telemetry.Tracker
	HTTPClient *http.Client
	Verbose    bool
}

// RunResult describes a finished run. It is returned alongside a wallpaper
// error too, since the image is on disk by then.
type RunResult struct {
	Timestamp  time.Time
	OutputPath string
	Tiles      int
	Duration   time.Duration
}

// App runs one resolve, assemble, write, set-wallpaper pass
type App struct {
	settings         *config.Settings
	client           *himawari.Client
	downloader       *imagery.TileDownloader
	writer           *output.Writer
	wallpaper        WallpaperSetter
	rateLimitHandler *ratelimit.Handler
	tracker          *telemetry.Tracker
	progress         func(current, total int)
}

// NewApp validates settings and builds every component from them
func NewApp(settings *config.Settings, opts AppOptions) (*App, error) {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	if err := settings.Validate(); err != nil {
		return nil, &StageError{Stage: StageConfig, Err: err}
	}

	a := &App{
		settings:         settings,
		writer:           output.NewWriter(),
		rateLimitHandler: ratelimit.NewHandler(0),
		tracker:          opts.Tracker,
		progress:         opts.Progress,
	}
	a.client = himawari.NewClient(himawari.Options{
		MetadataURL: settings.MetadataURL,
		TileBaseURL: settings.TileBaseURL,
		Timeout:     settings.Timeout(),
		RateLimit:   a.rateLimitHandler,
		HTTPClient:  opts.HTTPClient,
	})
	a.downloader = imagery.NewTileDownloader(settings.Workers, a.client)
	a.downloader.Verbose = opts.Verbose

	a.wallpaper = opts.Wallpaper
	if a.wallpaper == nil {
		a.wallpaper = wallpaper.NewApplicator(wallpaper.Options{
			XfceProperties: settings.XfceProperties,
		})
	}
	a.watchRateLimits()
	return a, nil
}

// Run resolves the latest timestamp, assembles the full disk, writes it and
// sets it as the wallpaper. The output file is only replaced once every tile
// has been placed.
func (a *App) Run(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	spec := a.settings.Grid()
	result := &RunResult{OutputPath: a.settings.OutputPath, Tiles: spec.TileCount()}

	log.Printf("[Resolver] Updating...")
	ts, err := a.client.LatestTimestamp(ctx)
	if err != nil {
		return a.finish(result, start, &StageError{Stage: StageResolve, Err: err})
	}
	result.Timestamp = ts
	log.Printf("[Resolver] Latest version: %s GMT", common.FormatISO(ts))

	log.Printf("[Assembler] Downloading %d tiles (level %d, %d workers)...",
		spec.TileCount(), spec.Level, a.downloader.Workers())
	canvas, err := a.downloader.Assemble(ctx, spec, ts, a.progress)
	if err != nil {
		return a.finish(result, start, &StageError{Stage: StageAssemble, Err: err})
	}

	if err := a.writer.Write(ctx, canvas.Image, a.settings.OutputPath); err != nil {
		return a.finish(result, start, &StageError{Stage: StageWrite, Err: err})
	}
	log.Printf("[Output] Saved %s", a.settings.OutputPath)

	if a.settings.WallpaperEnabled() {
		if err := a.wallpaper.Apply(ctx, a.settings.OutputPath); err != nil {
			log.Printf("[Wallpaper] Could not set %s as background: %v", a.settings.OutputPath, err)
			return a.finish(result, start, &StageError{Stage: StageWallpaper, Err: err})
		}
		log.Printf("[Wallpaper] Background updated")
	}
	return a.finish(result, start, nil)
}

func (a *App) finish(result *RunResult, start time.Time, err error) (*RunResult, error) {
	result.Duration = time.Since(start)
	props := map[string]interface{}{
		"level":       a.settings.Level,
		"tiles":       result.Tiles,
		"duration_ms": result.Duration.Milliseconds(),
		"version":     AppVersion,
		"outcome":     common.Classify(err),
		"throttled":   a.IsRateLimited(),
	}
	var se *StageError
	if errors.As(err, &se) {
		props["stage"] = string(se.Stage)
	}
	var ae *common.AssemblyError
	if errors.As(err, &ae) {
		props["failed_tiles"] = len(ae.Failed)
	}
	a.TrackEvent("run_finished", props)
	return result, err
}

// TrackEvent forwards to telemetry when it is configured
func (a *App) TrackEvent(event string, props map[string]interface{}) {
	if a.tracker != nil {
		a.tracker.Track(event, props)
	}
}

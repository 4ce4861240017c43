package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"himawari-desktop/internal/common"
	"himawari-desktop/internal/config"
	"himawari-desktop/internal/logging"
	"himawari-desktop/internal/telemetry"
	"himawari-desktop/internal/terminal"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", config.DefaultPath(), "config file path")
	level := flag.Int("level", 0, "grid density: 4, 8, 16 or 20 (optional)")
	outputPath := flag.String("output", "", "where to write the composite (optional)")
	timeout := flag.Int("timeout", 0, "per-request timeout in seconds (optional)")
	workers := flag.Int("workers", 0, "maximum concurrent tile downloads (optional)")
	noWallpaper := flag.Bool("no-wallpaper", false, "only write the image")
	verbose := flag.Bool("verbose", false, "log every tile")
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, terminal.Failure(err.Error()))
		return ExitConfig
	}
	err = applyOverrides(settings, Overrides{
		Level:          *level,
		TimeoutSeconds: *timeout,
		Workers:        *workers,
		OutputPath:     *outputPath,
		NoWallpaper:    *noWallpaper,
	})
	if err == nil {
		err = settings.Validate()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, terminal.Failure(err.Error()))
		return ExitConfig
	}

	closeLog, err := logging.Setup(settings.LogDir, os.Stderr)
	defer closeLog()
	if err != nil {
		fmt.Fprintln(os.Stderr, terminal.Warning(fmt.Sprintf("logging to console only: %v", err)))
	}

	key, host := PostHogKey, PostHogHost
	if settings.TelemetryKey != "" {
		key, host = settings.TelemetryKey, settings.TelemetryHost
	}
	tracker, err := telemetry.New(key, host, installIDPath(settings))
	if err != nil {
		fmt.Fprintln(os.Stderr, terminal.Warning(fmt.Sprintf("telemetry disabled: %v", err)))
	}
	defer tracker.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bar := terminal.NewProgressBar(os.Stderr, "tiles")
	app, err := NewApp(settings, AppOptions{
		Progress: bar.Update,
		Tracker:  tracker,
		Verbose:  *verbose,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, terminal.Failure(err.Error()))
		return ExitCode(err)
	}

	result, err := app.Run(ctx)
	bar.Done()
	code := ExitCode(err)
	switch {
	case err == nil:
		fmt.Fprintln(os.Stderr, terminal.Success(fmt.Sprintf("%s GMT saved to %s",
			common.FormatISO(result.Timestamp), result.OutputPath)))
	case code == ExitWallpaper:
		fmt.Fprintln(os.Stderr, terminal.Warning(fmt.Sprintf("image saved to %s but not set as background: %v",
			result.OutputPath, errors.Unwrap(err))))
	case code == ExitInterrupted:
		fmt.Fprintln(os.Stderr, terminal.Failure("interrupted, previous image left untouched"))
	default:
		fmt.Fprintln(os.Stderr, terminal.Failure(err.Error()))
	}
	return code
}

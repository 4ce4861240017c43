package wallpaper

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"himawari-desktop/internal/common"
)

// Strategy is one way of setting the background. Match decides whether it
// applies to the detected environment.
type Strategy struct {
	Name  string
	Match func(env Environment) bool
	Apply func(ctx context.Context, path string) error
}

// Options configures an Applicator
type Options struct {
	Runner Runner

	// XfceProperties are the xfce4-desktop backdrop properties to update
	XfceProperties []string

	// Plasma evaluates a Plasma shell script; defaults to the session D-Bus
	Plasma func(ctx context.Context, script string) error

	// Detector overrides environment detection (tests)
	Detector EnvironmentDetector
}

// EnvironmentDetector reports the desktop environment strategies match against
type EnvironmentDetector interface {
	Detect(ctx context.Context) Environment
}

// Applicator sets a file as the desktop background using the first strategy
// whose Match accepts the current environment
type Applicator struct {
	strategies []Strategy
	detector   EnvironmentDetector
}

// NewApplicator builds an applicator with the default strategy list
func NewApplicator(opts Options) *Applicator {
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	if len(opts.XfceProperties) == 0 {
		opts.XfceProperties = DefaultXfceProperties
	}
	if opts.Plasma == nil {
		opts.Plasma = evaluatePlasmaScript
	}
	detector := opts.Detector
	if detector == nil {
		detector = NewDetector(opts.Runner)
	}
	return &Applicator{
		strategies: DefaultStrategies(opts),
		detector:   detector,
	}
}

// NewApplicatorWithStrategies builds an applicator around an explicit list
func NewApplicatorWithStrategies(detector EnvironmentDetector, strategies []Strategy) *Applicator {
	return &Applicator{strategies: strategies, detector: detector}
}

// Resolve returns the first strategy matching env
func (a *Applicator) Resolve(env Environment) (Strategy, bool) {
	for _, s := range a.strategies {
		if s.Match != nil && s.Match(env) {
			return s, true
		}
	}
	return Strategy{}, false
}

// Apply sets path as the desktop background
func (a *Applicator) Apply(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	env := a.detector.Detect(ctx)
	strategy, ok := a.Resolve(env)
	if !ok {
		return fmt.Errorf("%w: %q on %s", common.ErrUnsupportedEnvironment, env.Desktop, env.GOOS)
	}

	log.Printf("[Wallpaper] Setting background via %s (desktop %q)", strategy.Name, env.Desktop)
	if err := strategy.Apply(ctx, abs); err != nil {
		return fmt.Errorf("%s: %w", strategy.Name, err)
	}
	return nil
}

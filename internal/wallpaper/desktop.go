package wallpaper

import (
	"context"
	"os"
	"runtime"
	"strings"
)

// Desktop identifiers returned by Detector.Detect
const (
	DesktopUnknown  = "unknown"
	DesktopWindows  = "windows"
	DesktopMac      = "mac"
	DesktopGnome    = "gnome"
	DesktopGnome2   = "gnome2"
	DesktopUnity    = "unity"
	DesktopCinnamon = "cinnamon"
	DesktopMate     = "mate"
	DesktopXfce     = "xfce4"
	DesktopLXDE     = "lxde"
	DesktopKDE      = "kde"
)

// knownSessions are DESKTOP_SESSION values taken as-is
var knownSessions = map[string]bool{
	"gnome": true, "unity": true, "cinnamon": true, "mate": true,
	"xfce4": true, "lxde": true, "fluxbox": true, "blackbox": true,
	"openbox": true, "icewm": true, "jwm": true, "afterstep": true,
	"trinity": true, "kde": true,
}

// Environment is what strategies match against
type Environment struct {
	GOOS    string
	Desktop string
}

// Detector figures out the running desktop environment
type Detector struct {
	GOOS      string
	Getenv    func(string) string
	IsRunning func(ctx context.Context, process string) bool
}

// NewDetector returns a detector for the current process using runner to
// probe the process list
func NewDetector(runner Runner) *Detector {
	return &Detector{
		GOOS:   runtime.GOOS,
		Getenv: os.Getenv,
		IsRunning: func(ctx context.Context, process string) bool {
			return processRunning(ctx, runner, process)
		},
	}
}

// Detect returns the environment. The lookup order is GOOS, DESKTOP_SESSION,
// KDE/GNOME session variables, a process probe and finally XDG_CURRENT_DESKTOP.
func (d *Detector) Detect(ctx context.Context) Environment {
	return Environment{GOOS: d.GOOS, Desktop: d.desktop(ctx)}
}

func (d *Detector) desktop(ctx context.Context) string {
	switch d.GOOS {
	case "windows":
		return DesktopWindows
	case "darwin":
		return DesktopMac
	}

	if session := strings.ToLower(strings.TrimSpace(d.Getenv("DESKTOP_SESSION"))); session != "" {
		if knownSessions[session] {
			return session
		}
		// Distributions rename sessions after themselves.
		switch {
		case strings.Contains(session, "xfce") || strings.HasPrefix(session, "xubuntu"):
			return DesktopXfce
		case strings.HasPrefix(session, "ubuntu"):
			return DesktopUnity
		case strings.HasPrefix(session, "lubuntu"):
			return DesktopLXDE
		case strings.HasPrefix(session, "kubuntu"):
			return DesktopKDE
		case strings.HasPrefix(session, "razor"):
			return "razor-qt"
		case strings.HasPrefix(session, "wmaker"):
			return "windowmaker"
		}
	}

	if d.Getenv("KDE_FULL_SESSION") == "true" {
		return DesktopKDE
	} else if id := d.Getenv("GNOME_DESKTOP_SESSION_ID"); id != "" {
		if !strings.Contains(id, "deprecated") {
			return DesktopGnome2
		}
	} else if d.IsRunning != nil && d.IsRunning(ctx, "xfce-mcs-manage") {
		return DesktopXfce
	} else if d.IsRunning != nil && d.IsRunning(ctx, "ksmserver") {
		return DesktopKDE
	}

	// XDG_CURRENT_DESKTOP may be a colon separated list such as "ubuntu:GNOME".
	for _, current := range strings.Split(strings.ToLower(d.Getenv("XDG_CURRENT_DESKTOP")), ":") {
		switch strings.TrimSpace(current) {
		case DesktopGnome, DesktopUnity, DesktopKDE:
			return strings.TrimSpace(current)
		case "xfce":
			return DesktopXfce
		case "x-cinnamon":
			return DesktopCinnamon
		}
	}

	return DesktopUnknown
}

func processRunning(ctx context.Context, runner Runner, process string) bool {
	if runner == nil {
		return false
	}
	out, err := runner.Output(ctx, "ps", "axw")
	if err != nil {
		out, err = runner.Output(ctx, "tasklist", "/v")
		if err != nil {
			return false
		}
	}
	return strings.Contains(string(out), process)
}

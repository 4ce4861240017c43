package wallpaper

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"github.com/godbus/dbus/v5"
)

// DefaultXfceProperties are updated on the xfce4-desktop channel
var DefaultXfceProperties = []string{
	"/backdrop/screen0/monitor0/image-path",
	"/backdrop/screen0/monitor0/workspace0/last-image",
}

func desktopIn(names ...string) func(Environment) bool {
	return func(env Environment) bool {
		for _, n := range names {
			if env.Desktop == n {
				return true
			}
		}
		return false
	}
}

func fileURI(path string) string {
	return (&url.URL{Scheme: "file", Path: path}).String()
}

// DefaultStrategies returns the prioritised strategy list
func DefaultStrategies(opts Options) []Strategy {
	r := opts.Runner
	return []Strategy{
		{
			Name:  "gsettings-unity",
			Match: desktopIn(DesktopUnity),
			Apply: func(ctx context.Context, path string) error {
				return applyGSettings(ctx, r, path, true)
			},
		},
		{
			Name:  "gsettings",
			Match: desktopIn(DesktopGnome, DesktopCinnamon),
			Apply: func(ctx context.Context, path string) error {
				return applyGSettings(ctx, r, path, false)
			},
		},
		{
			Name:  "gconftool",
			Match: desktopIn(DesktopMate, DesktopGnome2),
			Apply: func(ctx context.Context, path string) error {
				return r.Run(ctx, "gconftool-2", "--type", "string", "--set",
					"/desktop/gnome/background/picture_filename", path)
			},
		},
		{
			Name:  "xfconf",
			Match: desktopIn(DesktopXfce),
			Apply: func(ctx context.Context, path string) error {
				for _, prop := range opts.XfceProperties {
					if err := r.Run(ctx, "xfconf-query", "--channel", "xfce4-desktop",
						"--property", prop, "--set", path); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Name:  "display",
			Match: desktopIn(DesktopLXDE),
			Apply: func(ctx context.Context, path string) error {
				return r.Run(ctx, "display", "-window", "root", path)
			},
		},
		{
			Name:  "plasma",
			Match: desktopIn(DesktopKDE),
			Apply: func(ctx context.Context, path string) error {
				return opts.Plasma(ctx, plasmaScript(path))
			},
		},
		{
			Name:  "osascript",
			Match: desktopIn(DesktopMac),
			Apply: func(ctx context.Context, path string) error {
				return r.Run(ctx, "osascript", "-e",
					fmt.Sprintf(`tell application "Finder" to set desktop picture to POSIX file %q`, path))
			},
		},
	}
}

func applyGSettings(ctx context.Context, r Runner, path string, unity bool) error {
	const schema = "org.gnome.desktop.background"
	if unity {
		// Unity draws its own background over the GNOME one unless told not to.
		if err := r.Run(ctx, "gsettings", "set", schema, "draw-background", "false"); err != nil {
			return err
		}
	}
	uri := fileURI(path)
	if err := r.Run(ctx, "gsettings", "set", schema, "picture-uri", uri); err != nil {
		return err
	}
	// Only GNOME 42+ has the dark variant.
	if err := r.Run(ctx, "gsettings", "set", schema, "picture-uri-dark", uri); err != nil {
		log.Printf("[Wallpaper] picture-uri-dark not set: %v", err)
	}
	return r.Run(ctx, "gsettings", "set", schema, "picture-options", "scaled")
}

// plasmaScript updates every Plasma desktop to show path, letterboxed
func plasmaScript(path string) string {
	return fmt.Sprintf(`var allDesktops = desktops();
for (var i = 0; i < allDesktops.length; i++) {
    var d = allDesktops[i];
    d.wallpaperPlugin = "org.kde.image";
    d.currentConfigGroup = Array("Wallpaper", "org.kde.image", "General");
    d.writeConfig("Image", %q);
    d.writeConfig("FillMode", 1);
}`, fileURI(path))
}

// evaluatePlasmaScript runs script in plasmashell over the session bus
func evaluatePlasmaScript(ctx context.Context, script string) error {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("connect session bus: %w", err)
	}
	defer conn.Close()

	obj := conn.Object("org.kde.plasmashell", dbus.ObjectPath("/PlasmaShell"))
	call := obj.CallWithContext(ctx, "org.kde.PlasmaShell.evaluateScript", 0, script)
	if call.Err != nil {
		return fmt.Errorf("evaluateScript: %w", call.Err)
	}
	return nil
}

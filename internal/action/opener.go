package action

import (
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"

	"github.com/pkg/browser"
)

// Opener performs the OS-level side effects of actions.
type Opener interface {
	OpenURL(url string) error
	// OpenPath opens a file or folder with its default application.
	OpenPath(path string) error
	// Launch starts an application by name or command.
	Launch(app string) error
}

// SystemOpener opens things with the desktop's default handlers.
type SystemOpener struct{}

func init() {
	// xdg-open and friends chatter on stdout.
	browser.Stdout = io.Discard
}

func (SystemOpener) OpenURL(url string) error {
	return browser.OpenURL(url)
}

func (SystemOpener) OpenPath(path string) error {
	return browser.OpenFile(path)
}

func (SystemOpener) Launch(app string) error {
	name, args := launchCommand(app)
	if runtime.GOOS != "darwin" {
		if _, err := exec.LookPath(name); err != nil {
			return fmt.Errorf("application %q not found", app)
		}
	}
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", app, err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Debug("launched application exited", "app", app, "error", err)
		}
	}()
	return nil
}

// launchCommand resolves a spoken application name to a command line.
func launchCommand(app string) (string, []string) {
	key := strings.ToLower(strings.TrimSpace(app))
	switch runtime.GOOS {
	case "darwin":
		if name, ok := darwinApps[key]; ok {
			return "open", []string{"-a", name}
		}
		return "open", []string{"-a", app}
	case "windows":
		if cmd, ok := windowsApps[key]; ok {
			return "cmd", []string{"/c", "start", "", cmd}
		}
		return "cmd", []string{"/c", "start", "", app}
	default:
		if cmd, ok := linuxApps[key]; ok {
			return cmd, nil
		}
		fields := strings.Fields(app)
		if len(fields) == 0 {
			return app, nil
		}
		return fields[0], fields[1:]
	}
}

var linuxApps = map[string]string{
	"calculator":  "gnome-calculator",
	"notepad":     "gedit",
	"editor":      "gedit",
	"text editor": "gedit",
	"terminal":    "x-terminal-emulator",
	"files":       "nautilus",
	"explorer":    "nautilus",
	"chrome":      "google-chrome",
	"firefox":     "firefox",
	"settings":    "gnome-control-center",
}

var darwinApps = map[string]string{
	"calculator":  "Calculator",
	"notepad":     "TextEdit",
	"editor":      "TextEdit",
	"text editor": "TextEdit",
	"terminal":    "Terminal",
	"files":       "Finder",
	"explorer":    "Finder",
	"chrome":      "Google Chrome",
	"safari":      "Safari",
	"settings":    "System Settings",
}

var windowsApps = map[string]string{
	"notepad":    "notepad.exe",
	"calculator": "calc.exe",
	"paint":      "mspaint.exe",
	"chrome":     "chrome.exe",
	"edge":       "msedge.exe",
	"explorer":   "explorer.exe",
	"cmd":        "cmd.exe",
	"powershell": "powershell.exe",
}

package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Executor carries out an action and returns human-readable feedback.
// Failures are reported in the feedback, never as errors.
type Executor interface {
	Execute(ctx context.Context, a Action) string
}

// SystemExecutor performs actions against the local desktop.
type SystemExecutor struct {
	opener  Opener
	browser *BrowserManager
	home    string
	now     func() time.Time
}

// NewSystemExecutor returns an executor performing side effects through o.
// Relative folder and search paths resolve against home; an empty home uses
// the current user's home directory.
func NewSystemExecutor(o Opener, home string) *SystemExecutor {
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = h
		}
	}
	return &SystemExecutor{
		opener:  o,
		browser: NewBrowserManager(o),
		home:    home,
		now:     time.Now,
	}
}

// Execute dispatches a to its handler.
func (e *SystemExecutor) Execute(ctx context.Context, a Action) string {
	p := func(k string) string { return strings.TrimSpace(a.Params[k]) }

	var feedback string
	switch a.Type {
	case OpenApp:
		feedback = e.openApp(p(ParamApp))
	case OpenFolder:
		feedback = e.openFolder(p(ParamFolder))
	case OpenFile:
		feedback = e.openFile(p(ParamPath))
	case SearchFiles:
		feedback = e.searchFiles(ctx, p(ParamQuery), p(ParamDirectory), p(ParamFileType))
	case PlayMedia:
		feedback = e.playMedia(ctx, p(ParamFilePath), p(ParamSearchQuery))
	case GetDatetime:
		feedback = e.datetime()
	case YouTube, PlayMusic:
		feedback = e.browser.YouTube(p(ParamQuery))
	case Google:
		feedback = e.browser.Google(p(ParamQuery))
	case OpenWebsite:
		feedback = e.browser.Website(p(ParamURL))
	default:
		feedback = fmt.Sprintf("Unknown action: %s", a.Type)
	}

	slog.Info("action executed", "type", a.Type, "feedback", firstLine(feedback))
	return feedback
}

func (e *SystemExecutor) openApp(app string) string {
	if app == "" {
		return "Please name an application to open"
	}
	if err := e.opener.Launch(app); err != nil {
		return fmt.Sprintf("Could not open %s: %v", app, err)
	}
	return "Opened " + app
}

// resolveFolder maps a spoken folder name or path to a directory.
func (e *SystemExecutor) resolveFolder(name string) string {
	if sub, ok := folderAliases[strings.ToLower(name)]; ok {
		return filepath.Join(e.home, sub)
	}
	if strings.HasPrefix(name, "~") {
		return filepath.Join(e.home, strings.TrimPrefix(name, "~"))
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(e.home, name)
}

func (e *SystemExecutor) openFolder(name string) string {
	if name == "" {
		return "Please name a folder to open"
	}
	dir := e.resolveFolder(name)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "Folder not found: " + name
	}
	if err := e.opener.OpenPath(dir); err != nil {
		return fmt.Sprintf("Error opening folder: %v", err)
	}
	return "Opened folder: " + dir
}

func (e *SystemExecutor) openFile(path string) string {
	if path == "" {
		return "Please provide a file path"
	}
	path = e.resolveFolder(path)
	if _, err := os.Stat(path); err != nil {
		return "File not found: " + path
	}
	if err := e.opener.OpenPath(path); err != nil {
		return fmt.Sprintf("Error opening file: %v", err)
	}
	return "Opened: " + filepath.Base(path)
}

func (e *SystemExecutor) searchDirs(directory string) []string {
	if directory != "" {
		return []string{e.resolveFolder(directory)}
	}
	dirs := make([]string, len(defaultSearchDirs))
	for i, d := range defaultSearchDirs {
		dirs[i] = filepath.Join(e.home, d)
	}
	return dirs
}

func (e *SystemExecutor) searchFiles(ctx context.Context, query, directory, fileType string) string {
	if query == "" {
		return "Please provide a search query"
	}
	fileType = strings.ToLower(fileType)
	if _, ok := fileTypes[fileType]; fileType != "" && !ok {
		fileType = ""
	}
	matches, err := findFiles(ctx, searchQuery{
		text:     query,
		dirs:     e.searchDirs(directory),
		fileType: fileType,
		limit:    MaxSearchResults,
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("Error searching files: %v", err)
	}
	return formatMatches(query, matches)
}

func (e *SystemExecutor) playMedia(ctx context.Context, path, query string) string {
	if path != "" {
		path = e.resolveFolder(path)
		if _, err := os.Stat(path); err != nil {
			return "File not found: " + path
		}
		if err := e.opener.OpenPath(path); err != nil {
			return fmt.Sprintf("Error playing media: %v", err)
		}
		return "Playing: " + filepath.Base(path)
	}
	if query == "" {
		return "Please provide a file path or search query"
	}

	for _, kind := range []string{"video", "audio"} {
		matches, _ := findFiles(ctx, searchQuery{
			text:     query,
			dirs:     e.searchDirs(""),
			fileType: kind,
			limit:    1,
		})
		if len(matches) == 0 {
			continue
		}
		if err := e.opener.OpenPath(matches[0].Path); err != nil {
			return fmt.Sprintf("Error playing media: %v", err)
		}
		return "Playing: " + matches[0].Name
	}
	return "No media found matching: " + query
}

func (e *SystemExecutor) datetime() string {
	now := e.now()
	return fmt.Sprintf("Today is %s\nTime: %s", now.Format("Monday, January 02, 2006"), now.Format("03:04 PM"))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

package action

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	// MaxSearchResults caps how many entries a search returns.
	MaxSearchResults = 10
	// pdfPageLimit bounds how much of each PDF is scanned for the query.
	pdfPageLimit = 20
	// pdfScanLimit bounds how many PDFs one search opens.
	pdfScanLimit = 50
)

// fileTypes groups extensions by the file_type parameter values.
var fileTypes = map[string][]string{
	"video":    {".mp4", ".avi", ".mkv", ".mov", ".wmv", ".flv", ".webm"},
	"audio":    {".mp3", ".wav", ".flac", ".aac", ".ogg", ".m4a", ".wma"},
	"image":    {".jpg", ".jpeg", ".png", ".gif", ".bmp", ".svg", ".webp"},
	"document": {".pdf", ".doc", ".docx", ".txt", ".xls", ".xlsx", ".ppt", ".pptx"},
}

// defaultSearchDirs are searched, relative to home, when no directory is given.
var defaultSearchDirs = []string{"Documents", "Downloads", "Desktop", "Music", "Videos", "Pictures"}

// folderAliases maps spoken folder names to home subdirectories.
var folderAliases = map[string]string{
	"documents": "Documents",
	"downloads": "Downloads",
	"desktop":   "Desktop",
	"pictures":  "Pictures",
	"photos":    "Pictures",
	"music":     "Music",
	"videos":    "Videos",
	"home":      "",
}

// FileMatch is one search hit.
type FileMatch struct {
	Name  string
	Path  string
	Size  int64
	IsDir bool
	// InContent is set when the query matched the document text rather than
	// the file name.
	InContent bool
}

type searchQuery struct {
	text     string
	dirs     []string
	fileType string
	limit    int
}

// findFiles walks q.dirs for entries whose name contains q.text, ignoring
// case. PDFs whose text contains the query also match when documents are
// in scope.
func findFiles(ctx context.Context, q searchQuery) ([]FileMatch, error) {
	needle := strings.ToLower(q.text)
	exts := fileTypes[q.fileType]
	scanPDF := q.fileType == "" || q.fileType == "document"
	pdfBudget := pdfScanLimit

	var matches []FileMatch
	for _, root := range q.dirs {
		if _, err := os.Stat(root); err != nil {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if len(matches) >= q.limit {
				return fs.SkipAll
			}
			name := d.Name()
			if path != root && strings.HasPrefix(name, ".") {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if path == root {
				return nil
			}

			ext := strings.ToLower(filepath.Ext(name))
			if len(exts) > 0 && (d.IsDir() || !hasExt(exts, ext)) {
				return nil
			}

			m := FileMatch{Name: name, Path: path, IsDir: d.IsDir()}
			switch {
			case strings.Contains(strings.ToLower(name), needle):
			case scanPDF && ext == ".pdf" && pdfBudget > 0:
				pdfBudget--
				if !pdfContains(path, needle) {
					return nil
				}
				m.InContent = true
			default:
				return nil
			}
			if info, err := d.Info(); err == nil && !d.IsDir() {
				m.Size = info.Size()
			}
			matches = append(matches, m)
			return nil
		})
		if err != nil {
			return matches, err
		}
		if len(matches) >= q.limit {
			break
		}
	}
	return matches, nil
}

func hasExt(exts []string, ext string) bool {
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}

// pdfContains reports whether the plain text of the first pages of the PDF
// at path contains needle, which must already be lower case.
func pdfContains(path, needle string) (found bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("pdf scan failed", "path", path, "panic", r)
			found = false
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		slog.Debug("pdf open failed", "path", path, "error", err)
		return false
	}
	defer f.Close()

	pages := r.NumPage()
	if pages > pdfPageLimit {
		pages = pdfPageLimit
	}
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(text), needle) {
			return true
		}
	}
	return false
}

// formatSize renders n bytes with one decimal in the largest fitting unit.
func formatSize(n int64) string {
	size := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1f TB", size)
}

func formatMatches(query string, matches []FileMatch) string {
	if len(matches) == 0 {
		return fmt.Sprintf("No files found matching '%s'", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d file(s) for '%s':\n", len(matches), query)
	for i, m := range matches {
		fmt.Fprintf(&b, "\n%d. %s\n   Path: %s\n", i+1, m.Name, m.Path)
		if m.IsDir {
			b.WriteString("   Type: Folder\n")
			continue
		}
		fmt.Fprintf(&b, "   Size: %s\n", formatSize(m.Size))
		if ext := filepath.Ext(m.Name); ext != "" {
			fmt.Fprintf(&b, "   Type: %s\n", ext)
		}
		if m.InContent {
			b.WriteString("   Matched: document text\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

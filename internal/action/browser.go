package action

import (
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultReuseWindow is how long after opening a site the browser is
// expected to reuse the same tab.
const DefaultReuseWindow = 2 * time.Second

type site string

const (
	siteYouTube site = "youtube"
	siteGoogle  site = "google"
	siteWebsite site = "website"
)

// BrowserManager opens web actions and remembers when each kind of site was
// last opened.
type BrowserManager struct {
	opener Opener
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last map[site]time.Time
}

// NewBrowserManager returns a manager opening URLs through o.
func NewBrowserManager(o Opener) *BrowserManager {
	return &BrowserManager{
		opener: o,
		window: DefaultReuseWindow,
		now:    time.Now,
		last:   make(map[site]time.Time),
	}
}

// open opens u and reports whether the same kind of site was opened within
// the reuse window.
func (b *BrowserManager) open(s site, u string) (recent bool, err error) {
	b.mu.Lock()
	now := b.now()
	if t, ok := b.last[s]; ok && now.Sub(t) < b.window {
		recent = true
	}
	b.mu.Unlock()

	if recent {
		slog.Debug("site opened recently, browser should reuse the tab", "site", s)
	}
	if err := b.opener.OpenURL(u); err != nil {
		return recent, err
	}

	b.mu.Lock()
	b.last[s] = now
	b.mu.Unlock()
	return recent, nil
}

// YouTube searches YouTube for query, or opens the home page when empty.
func (b *BrowserManager) YouTube(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		if _, err := b.open(siteYouTube, "https://www.youtube.com"); err != nil {
			return "Error opening YouTube: " + err.Error()
		}
		return "Opened YouTube"
	}
	u := "https://www.youtube.com/results?search_query=" + url.QueryEscape(query)
	if _, err := b.open(siteYouTube, u); err != nil {
		return "Error opening YouTube: " + err.Error()
	}
	return "Searching YouTube: " + query
}

// Google runs a web search.
func (b *BrowserManager) Google(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return "Please provide a search query"
	}
	u := "https://www.google.com/search?q=" + url.QueryEscape(query)
	if _, err := b.open(siteGoogle, u); err != nil {
		return "Error performing Google search: " + err.Error()
	}
	return "Searching Google: " + query
}

// Website opens raw, adding https:// when no scheme is given.
func (b *BrowserManager) Website(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "Please provide a website address"
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	if _, err := url.ParseRequestURI(raw); err != nil {
		return "Invalid website address: " + raw
	}
	if _, err := b.open(siteWebsite, raw); err != nil {
		return "Error opening website: " + err.Error()
	}
	return "Opening: " + raw
}

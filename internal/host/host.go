// Package host provides the page environment a product check runs against:
// which page is "active", running an extraction inside it, and opening links.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/byteowlz/dropcheck/internal/extractor"
)

var ErrNoActiveTab = errors.New("no active tab")

// Tab is the page a check runs against.
type Tab struct {
	ID  string
	URL string
}

// Host is the set of platform capabilities the popup controller needs.
type Host interface {
	ActiveTab(ctx context.Context) (*Tab, error)
	Execute(ctx context.Context, tab *Tab, fn extractor.Func) (extractor.ProductInfo, error)
	OpenTab(ctx context.Context, rawURL string) error
}

// Page is a loaded document for a tab.
type Page struct {
	URL  string
	HTML string
	Doc  *goquery.Document
}

// Hostname returns the lower-cased host of the page URL.
func (p *Page) Hostname() string {
	u, err := url.Parse(p.URL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Loader fetches the HTML behind a tab.
type Loader interface {
	Load(ctx context.Context, tab *Tab) (html, finalURL string, err error)
}

// PageHost is a Host whose single tab is a product page loaded by a Loader.
type PageHost struct {
	tab    Tab
	loader Loader
	opener Opener
	logger *slog.Logger

	last *Page
}

func NewPageHost(pageURL string, loader Loader, opener Opener, logger *slog.Logger) *PageHost {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opener == nil {
		opener = PrintOpener{W: io.Discard}
	}
	return &PageHost{
		tab:    Tab{ID: "1", URL: strings.TrimSpace(pageURL)},
		loader: loader,
		opener: opener,
		logger: logger,
	}
}

func (h *PageHost) ActiveTab(ctx context.Context) (*Tab, error) {
	if h.tab.URL == "" {
		return nil, ErrNoActiveTab
	}
	tab := h.tab
	return &tab, nil
}

// Execute loads the tab's page and runs fn against it.
func (h *PageHost) Execute(ctx context.Context, tab *Tab, fn extractor.Func) (extractor.ProductInfo, error) {
	if tab == nil {
		return extractor.ProductInfo{}, ErrNoActiveTab
	}

	html, finalURL, err := h.loader.Load(ctx, tab)
	if err != nil {
		return extractor.ProductInfo{}, fmt.Errorf("failed to load %s: %w", tab.URL, err)
	}
	if finalURL == "" {
		finalURL = tab.URL
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return extractor.ProductInfo{}, fmt.Errorf("failed to parse page: %w", err)
	}

	page := &Page{URL: finalURL, HTML: html, Doc: doc}
	h.last = page

	h.logger.Debug("page loaded", "url", finalURL, "bytes", len(html))
	return fn(doc, page.Hostname()), nil
}

// LastPage returns the page loaded by the most recent Execute, if any.
func (h *PageHost) LastPage() *Page {
	return h.last
}

func (h *PageHost) OpenTab(ctx context.Context, rawURL string) error {
	return h.opener.Open(ctx, rawURL)
}

package host

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/byteowlz/dropcheck/internal/browser"
	"github.com/byteowlz/dropcheck/internal/fetcher"
)

// WebLoader fetches the page over the network, optionally through headless Chrome.
type WebLoader struct {
	fetcher *fetcher.ContentFetcher
	cookies *browser.CookieExtractor
	opts    fetcher.FetchOptions
	logger  *slog.Logger
}

func NewWebLoader(f *fetcher.ContentFetcher, cookies *browser.CookieExtractor, opts fetcher.FetchOptions, logger *slog.Logger) *WebLoader {
	if f == nil {
		f = fetcher.NewContentFetcher(nil)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &WebLoader{fetcher: f, cookies: cookies, opts: opts, logger: logger}
}

func (l *WebLoader) Load(ctx context.Context, tab *Tab) (string, string, error) {
	opts := l.opts
	if l.cookies.Enabled() {
		cookies, err := l.cookies.ExtractCookies(ctx, tab.URL)
		if err != nil {
			// Cookie extraction failure is not fatal
			l.logger.Warn("failed to read browser cookies", "url", tab.URL, "error", err)
		}
		opts.Cookies = cookies
		l.logger.Debug("browser cookies attached", "count", len(cookies))
	}

	res, err := l.fetcher.Fetch(ctx, tab.URL, opts)
	if err != nil {
		return "", "", err
	}
	l.logger.Debug("page fetched", "url", res.URL, "javascript", res.UsedJS)
	return res.HTML, res.URL, nil
}

// ReaderLoader serves a page that was saved to disk or piped in.
type ReaderLoader struct {
	open func() (io.ReadCloser, error)
}

// NewFileLoader reads HTML from path; "-" means stdin.
func NewFileLoader(path string) *ReaderLoader {
	return &ReaderLoader{open: func() (io.ReadCloser, error) {
		if path == "-" {
			return io.NopCloser(os.Stdin), nil
		}
		return os.Open(path)
	}}
}

// NewStringLoader serves HTML that is already in memory.
func NewStringLoader(html string) *ReaderLoader {
	return &ReaderLoader{open: func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(html)), nil
	}}
}

func (l *ReaderLoader) Load(ctx context.Context, tab *Tab) (string, string, error) {
	rc, err := l.open()
	if err != nil {
		return "", "", fmt.Errorf("failed to open page source: %w", err)
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return "", "", fmt.Errorf("failed to read page source: %w", err)
	}
	return string(body), tab.URL, nil
}

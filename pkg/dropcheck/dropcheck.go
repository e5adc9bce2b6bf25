// Package dropcheck runs a product check end to end: load the product page,
// extract title and price, query the comparison API and collect the cards.
package dropcheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/byteowlz/dropcheck/internal/browser"
	"github.com/byteowlz/dropcheck/internal/config"
	"github.com/byteowlz/dropcheck/internal/fetcher"
	"github.com/byteowlz/dropcheck/internal/host"
	"github.com/byteowlz/dropcheck/internal/popup"
	"github.com/byteowlz/dropcheck/internal/processor"
	"github.com/byteowlz/dropcheck/internal/render"
	"github.com/byteowlz/dropcheck/internal/search"
)

var ErrNoPage = errors.New("no page to check: need a URL, a file or page HTML")

type Checker struct {
	config    *config.Config
	fetcher   *fetcher.ContentFetcher
	processor *processor.ContentProcessor
	cookies   *browser.CookieExtractor
	searcher  search.Searcher
	opener    host.Opener
	logger    *slog.Logger
}

type CheckOptions struct {
	// URL is the product page. With HTML or File set it only supplies the hostname.
	URL  string
	HTML string
	// File is a saved page; "-" reads stdin.
	File string
	// Mode overrides fetch.javascript when non-empty.
	Mode            fetcher.FetchMode
	IncludeMetadata bool
	// Surface receives progress as it happens, in addition to the result snapshot.
	Surface render.Surface
	// Open follows the link of result card N (1-based) after a successful check.
	Open int
}

type CheckResult struct {
	Outcome        popup.Outcome
	Snapshot       render.Snapshot
	Header         *render.Header
	ProcessingTime time.Duration
}

func New(cfg *config.Config, logger *slog.Logger) *Checker {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	static := fetcher.NewSimpleFetcher()
	static.SetFollowRedirects(cfg.Fetch.FollowRedirects)
	if cfg.Fetch.FollowRedirects {
		static.SetMaxRedirects(cfg.Fetch.MaxRedirects)
	}

	client := search.NewClient(cfg.API.Host, time.Duration(cfg.API.Timeout)*time.Second)
	client.UserAgent = cfg.API.UserAgent

	return &Checker{
		config:    cfg,
		fetcher:   fetcher.NewContentFetcher(static),
		processor: processor.NewContentProcessor(),
		cookies:   browser.NewCookieExtractor(browser.ParseBrowserType(cfg.Browser.Cookies)),
		searcher:  client,
		opener:    host.SystemOpener{},
		logger:    logger,
	}
}

// SetSearcher replaces the comparison API client.
func (c *Checker) SetSearcher(s search.Searcher) {
	c.searcher = s
}

// SetOpener replaces how result links are opened.
func (c *Checker) SetOpener(o host.Opener) {
	c.opener = o
}

// Check runs one invocation. Failures that the user should see end up as the
// snapshot's status; the error return is for unusable input and click-through.
func (c *Checker) Check(ctx context.Context, opts CheckOptions) (*CheckResult, error) {
	start := time.Now()

	if opts.URL == "" && opts.HTML == "" && opts.File == "" {
		return nil, ErrNoPage
	}

	pageHost := host.NewPageHost(c.pageURL(opts), c.loader(opts), c.opener, c.logger)

	recorder := &render.Recorder{}
	var surface render.Surface = recorder
	if opts.Surface != nil {
		surface = render.Tee(opts.Surface, recorder)
	}

	controller := popup.NewController(pageHost, c.searcher, surface, c.logger)
	outcome := controller.Check(ctx)

	result := &CheckResult{
		Outcome:  outcome,
		Snapshot: recorder.Snapshot(),
		Header: &render.Header{
			PageURL: opts.URL,
			Product: outcome.Product.Title,
			Price:   outcome.Product.Price,
		},
	}

	if page := pageHost.LastPage(); page != nil {
		result.Header.PageURL = page.URL
		if opts.IncludeMetadata {
			metadata, err := c.processor.Metadata(page.Doc, page.HTML, page.URL, processor.ProcessOptions{
				MetadataFields: c.config.Output.MetadataFields,
			})
			if err != nil {
				// Metadata is decoration; the check result stands without it
				c.logger.Warn("failed to read page metadata", "url", page.URL, "error", err)
			}
			result.Header.Metadata = metadata
		}
	}

	if opts.Open > 0 {
		if err := controller.Open(ctx, outcome.Cards, opts.Open); err != nil {
			result.ProcessingTime = time.Since(start)
			return result, fmt.Errorf("failed to open result %d: %w", opts.Open, err)
		}
	}

	result.ProcessingTime = time.Since(start)
	return result, nil
}

// pageURL is the tab URL; a saved page without one still gets a tab.
func (c *Checker) pageURL(opts CheckOptions) string {
	if opts.URL != "" {
		return opts.URL
	}
	if opts.File != "" && opts.File != "-" {
		return "file://" + opts.File
	}
	return "about:blank"
}

func (c *Checker) loader(opts CheckOptions) host.Loader {
	switch {
	case opts.HTML != "":
		return host.NewStringLoader(opts.HTML)
	case opts.File != "":
		return host.NewFileLoader(opts.File)
	}

	mode := opts.Mode
	if mode == "" {
		mode = fetcher.ParseFetchMode(c.config.Fetch.JavaScript)
	}

	return host.NewWebLoader(c.fetcher, c.cookies, fetcher.FetchOptions{
		Mode:            mode,
		Timeout:         time.Duration(c.config.Fetch.Timeout) * time.Second,
		UserAgent:       c.config.Fetch.UserAgent,
		BrowserAgent:    c.config.Fetch.BrowserAgent,
		WaitForSelector: c.config.Fetch.WaitForSelector,
	}, c.logger)
}

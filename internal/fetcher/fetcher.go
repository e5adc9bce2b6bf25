package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

type FetchMode string

const (
	FetchModeAuto   FetchMode = "auto"
	FetchModeStatic FetchMode = "static"
	FetchModeJS     FetchMode = "javascript"
)

// ParseFetchMode maps the config/CLI spelling (auto|always|never) to a mode.
func ParseFetchMode(s string) FetchMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "always", "javascript", "js":
		return FetchModeJS
	case "never", "static":
		return FetchModeStatic
	default:
		return FetchModeAuto
	}
}

type FetchOptions struct {
	Mode            FetchMode
	Timeout         time.Duration
	UserAgent       string
	BrowserAgent    string
	Cookies         []*http.Cookie
	WaitForSelector string
}

type FetchResult struct {
	HTML   string
	URL    string
	UsedJS bool
}

// ContentFetcher loads product pages either over plain HTTP or through
// headless Chrome for pages that only render their price client-side.
type ContentFetcher struct {
	static *SimpleFetcher
}

func NewContentFetcher(static *SimpleFetcher) *ContentFetcher {
	if static == nil {
		static = NewSimpleFetcher()
	}
	return &ContentFetcher{static: static}
}

func (cf *ContentFetcher) Fetch(ctx context.Context, url string, opts FetchOptions) (*FetchResult, error) {
	switch opts.Mode {
	case FetchModeStatic:
		return cf.static.FetchStatic(ctx, url, opts)
	case FetchModeJS:
		return cf.fetchWithJS(ctx, url, opts)
	}

	// Auto mode: try static first, then JS if needed
	result, err := cf.static.FetchStatic(ctx, url, opts)
	if err != nil {
		return nil, err
	}

	if NeedsJSRendering(result.HTML) {
		return cf.fetchWithJS(ctx, url, opts)
	}

	return result, nil
}

func (cf *ContentFetcher) fetchWithJS(ctx context.Context, url string, opts FetchOptions) (*FetchResult, error) {
	allocOpts := chromedp.DefaultExecAllocatorOptions[:]
	userAgent := opts.UserAgent
	if userAgent == "" && opts.BrowserAgent != "" {
		userAgent = cf.static.userAgentSelect.GetUserAgent(opts.BrowserAgent)
	}
	if userAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(userAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	chromeCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	if opts.Timeout > 0 {
		chromeCtx, cancel = context.WithTimeout(chromeCtx, opts.Timeout)
		defer cancel()
	}

	var html, location string

	tasks := []chromedp.Action{
		chromedp.Navigate(url),
	}

	if len(opts.Cookies) > 0 {
		tasks = append(tasks, setCookies(opts.Cookies))
		// Navigate again so the page renders with the session cookies
		tasks = append(tasks, chromedp.Navigate(url))
	}

	if opts.WaitForSelector != "" {
		tasks = append(tasks, chromedp.WaitVisible(opts.WaitForSelector))
	} else {
		tasks = append(tasks, chromedp.WaitReady("body"))
	}

	tasks = append(tasks,
		chromedp.OuterHTML("html", &html),
		chromedp.Location(&location),
	)

	if err := chromedp.Run(chromeCtx, tasks...); err != nil {
		return nil, fmt.Errorf("failed to run Chrome tasks: %w", err)
	}

	if location == "" {
		location = url
	}

	return &FetchResult{
		HTML:   html,
		URL:    location,
		UsedJS: true,
	}, nil
}

// setCookies copies browser cookies into the Chrome session through document.cookie.
// HttpOnly cookies cannot be set this way and are skipped.
func setCookies(cookies []*http.Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			if c.HttpOnly {
				continue
			}
			js := fmt.Sprintf("document.cookie = %q", cookieString(c))
			if err := chromedp.Evaluate(js, nil).Do(ctx); err != nil {
				return fmt.Errorf("failed to set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	})
}

func cookieString(c *http.Cookie) string {
	var b strings.Builder
	b.WriteString(c.Name + "=" + c.Value)
	if c.Path != "" {
		b.WriteString("; path=" + c.Path)
	}
	if c.Domain != "" {
		b.WriteString("; domain=" + c.Domain)
	}
	if c.Secure {
		b.WriteString("; secure")
	}
	return b.String()
}

// NeedsJSRendering guesses whether a statically fetched page is a client-side
// rendered shell without product markup.
func NeedsJSRendering(html string) bool {
	lowerHTML := strings.ToLower(html)

	// Check for SPA frameworks
	jsFrameworks := []string{
		"data-reactroot", "ng-app", "v-app", "__next_data__", "id=\"root\"></div>",
	}

	for _, framework := range jsFrameworks {
		if strings.Contains(lowerHTML, framework) && len(extractBodyContent(lowerHTML)) < 5000 {
			return true
		}
	}

	// Check for minimal content with loading indicators
	if strings.Contains(lowerHTML, "loading") && len(strings.TrimSpace(html)) < 2000 {
		return true
	}

	// Check for heavy script usage
	scriptCount := strings.Count(lowerHTML, "<script")
	if scriptCount > 5 && len(strings.TrimSpace(extractBodyContent(lowerHTML))) < 1000 {
		return true
	}

	return false
}

func extractBodyContent(html string) string {
	start := strings.Index(html, "<body")
	if start == -1 {
		return html
	}

	open := strings.Index(html[start:], ">")
	if open == -1 {
		return html
	}
	start += open + 1

	end := strings.Index(html[start:], "</body>")
	if end == -1 {
		return html[start:]
	}

	return html[start : start+end]
}

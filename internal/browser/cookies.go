package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/all" // Import all browser support
)

type BrowserType string

const (
	BrowserNone    BrowserType = "none"
	BrowserAuto    BrowserType = "auto"
	BrowserChrome  BrowserType = "chrome"
	BrowserFirefox BrowserType = "firefox"
	BrowserSafari  BrowserType = "safari"
	BrowserZen     BrowserType = "zen"
)

// ParseBrowserType normalizes a config value; empty means no cookie lookup.
func ParseBrowserType(s string) BrowserType {
	switch t := BrowserType(strings.ToLower(strings.TrimSpace(s))); t {
	case BrowserAuto, BrowserChrome, BrowserFirefox, BrowserSafari, BrowserZen:
		return t
	default:
		return BrowserNone
	}
}

// CookieExtractor reads the user's own browser cookies for a product page so
// the fetched page matches what the user sees in their tab (region, currency).
type CookieExtractor struct {
	browserType BrowserType
	traverse    func(ctx context.Context) kooky.CookieSeq
}

func NewCookieExtractor(browserType BrowserType) *CookieExtractor {
	return &CookieExtractor{
		browserType: browserType,
		traverse: func(ctx context.Context) kooky.CookieSeq {
			return kooky.TraverseCookies(ctx)
		},
	}
}

// Enabled reports whether cookies are read at all.
func (ce *CookieExtractor) Enabled() bool {
	return ce != nil && ce.browserType != BrowserNone && ce.browserType != ""
}

func (ce *CookieExtractor) ExtractCookies(ctx context.Context, targetURL string) ([]*http.Cookie, error) {
	if !ce.Enabled() {
		return nil, nil
	}

	parsedURL, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	host := parsedURL.Hostname()

	if ce.browserType != BrowserAuto {
		return ce.extractFromBrowser(ctx, ce.browserType, host), nil
	}

	// Try all browsers in order of preference
	for _, b := range []BrowserType{BrowserChrome, BrowserFirefox, BrowserZen, BrowserSafari} {
		if cookies := ce.extractFromBrowser(ctx, b, host); len(cookies) > 0 {
			return cookies, nil
		}
	}
	return nil, nil
}

func (ce *CookieExtractor) extractFromBrowser(ctx context.Context, browserType BrowserType, domain string) []*http.Cookie {
	var cookies []*http.Cookie

	for cookie, err := range ce.traverse(ctx) {
		if err != nil || cookie == nil {
			continue
		}

		if matchesBrowserType(cookie.Browser, browserType) && matchesDomain(cookie.Domain, domain) {
			cookies = append(cookies, &http.Cookie{
				Name:     cookie.Name,
				Value:    cookie.Value,
				Path:     cookie.Path,
				Domain:   cookie.Domain,
				Expires:  cookie.Expires,
				Secure:   cookie.Secure,
				HttpOnly: cookie.HttpOnly,
			})
		}
	}

	return cookies
}

func matchesBrowserType(browser kooky.BrowserInfo, browserType BrowserType) bool {
	if browserType == BrowserAuto {
		return true
	}
	if browser == nil {
		return false
	}

	browserName := strings.ToLower(browser.Browser())
	switch browserType {
	case BrowserChrome:
		return strings.Contains(browserName, "chrome") || strings.Contains(browserName, "chromium")
	case BrowserFirefox:
		return strings.Contains(browserName, "firefox") && !strings.Contains(strings.ToLower(browser.FilePath()), "zen")
	case BrowserSafari:
		return strings.Contains(browserName, "safari")
	case BrowserZen:
		return strings.Contains(browserName, "zen") ||
			(strings.Contains(browserName, "firefox") && strings.Contains(strings.ToLower(browser.FilePath()), "zen"))
	}

	return false
}

// matchesDomain reports whether a cookie set for cookieDomain is sent to targetDomain.
func matchesDomain(cookieDomain, targetDomain string) bool {
	if cookieDomain == "" || targetDomain == "" {
		return false
	}

	cookieDomain = strings.ToLower(strings.TrimPrefix(cookieDomain, "."))
	targetDomain = strings.ToLower(targetDomain)

	return cookieDomain == targetDomain || strings.HasSuffix(targetDomain, "."+cookieDomain)
}

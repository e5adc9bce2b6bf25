package extractor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/byteowlz/dropcheck/internal/price"
)

var (
	ErrNoDocument = errors.New("no document")
	ErrNoTitle    = errors.New("no product title found")
)

// ExtractionError records a failure raised while evaluating the page.
type ExtractionError struct {
	Family SiteFamily
	Cause  any
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed on %s page: %v", e.Family, e.Cause)
}

// ProductInfo is the title and price scraped from a product page.
// A nil Price means no price was found.
type ProductInfo struct {
	Title string   `json:"title"`
	Price *float64 `json:"price"`
}

// HasPrice reports whether a price was extracted.
func (p ProductInfo) HasPrice() bool { return p.Price != nil }

// Func is the shape of an extraction run inside a page context.
type Func func(doc *goquery.Document, hostname string) ProductInfo

type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Extractor{logger: logger}
}

// Extract never fails: any error collapses to an empty ProductInfo.
func (e *Extractor) Extract(doc *goquery.Document, hostname string) ProductInfo {
	info, err := extract(doc, hostname)
	if err != nil {
		e.logger.Debug("product extraction failed", "host", hostname, "error", err)
		return ProductInfo{}
	}
	return info
}

// Extract runs the default extractor without logging.
func Extract(doc *goquery.Document, hostname string) ProductInfo {
	return New(nil).Extract(doc, hostname)
}

func extract(doc *goquery.Document, hostname string) (info ProductInfo, err error) {
	if doc == nil || doc.Selection == nil {
		return ProductInfo{}, ErrNoDocument
	}

	family := DetectFamily(hostname)
	defer func() {
		if r := recover(); r != nil {
			info, err = ProductInfo{}, &ExtractionError{Family: family, Cause: r}
		}
	}()

	r, known := rules[family]
	if known {
		info.Title = firstText(doc, r.title, r.cleanTitle)
		info.Price = firstPrice(doc, r.price, r.priceAttr)
	}

	if info.Title == "" {
		info.Title = genericTitle(doc)
	}
	if info.Title == "" {
		return ProductInfo{}, ErrNoTitle
	}
	return info, nil
}

func firstText(doc *goquery.Document, selectors []string, clean func(string) string) string {
	for _, sel := range selectors {
		txt := strings.TrimSpace(doc.Find(sel).First().Text())
		if clean != nil {
			txt = clean(txt)
		}
		if txt != "" {
			return txt
		}
	}
	return ""
}

func firstPrice(doc *goquery.Document, selectors []string, attr string) *float64 {
	for _, sel := range selectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		txt := strings.TrimSpace(el.Text())
		if txt == "" && attr != "" {
			txt = strings.TrimSpace(el.AttrOr(attr, ""))
		}
		if v, ok := price.Parse(txt); ok {
			return &v
		}
	}
	return nil
}

func genericTitle(doc *goquery.Document) string {
	for _, sel := range []string{`meta[property="og:title"]`, `meta[name="og:title"]`} {
		if og := strings.TrimSpace(doc.Find(sel).First().AttrOr("content", "")); og != "" {
			return og
		}
	}

	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}

	if t := firstText(doc, genericTitleSelectors, nil); t != "" {
		return t
	}

	return strings.TrimSpace(doc.Find("title").First().Text())
}

var detailsAboutRe = regexp.MustCompile(`(?i)^Details\s+about\s*`)

func stripDetailsAbout(s string) string {
	return strings.TrimSpace(detailsAboutRe.ReplaceAllString(s, ""))
}

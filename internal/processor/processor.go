package processor

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// DefaultFields are the metadata keys reported when none are configured.
var DefaultFields = []string{"site", "url", "image", "description"}

type ProcessOptions struct {
	MetadataFields []string
	// ExcerptLength caps the readability excerpt in runes; 0 means 200.
	ExcerptLength int
}

// ContentProcessor derives page context shown next to the comparison results.
type ContentProcessor struct {
}

func NewContentProcessor() *ContentProcessor {
	return &ContentProcessor{}
}

// Metadata collects the requested fields from a product page.
// Missing fields are omitted; only unusable HTML is an error.
func (cp *ContentProcessor) Metadata(doc *goquery.Document, html, pageURL string, opts ProcessOptions) (map[string]string, error) {
	if doc == nil {
		return nil, fmt.Errorf("no document to read metadata from")
	}

	fields := opts.MetadataFields
	if len(fields) == 0 {
		fields = DefaultFields
	}

	metadata := make(map[string]string)
	var article *readability.Article

	for _, field := range fields {
		switch field {
		case "site":
			if site := cp.findMetaContent(doc, []string{"og:site_name", "application-name"}); site != "" {
				metadata["site"] = site
			}
		case "description":
			if desc := cp.findMetaContent(doc, []string{"description", "og:description"}); desc != "" {
				metadata["description"] = desc
			}
		case "url":
			if canonical := doc.Find("link[rel='canonical']").AttrOr("href", ""); canonical != "" {
				metadata["url"] = strings.TrimSpace(canonical)
			} else if u := cp.findMetaContent(doc, []string{"og:url"}); u != "" {
				metadata["url"] = u
			}
		case "image":
			if image := cp.findMetaContent(doc, []string{"og:image", "twitter:image"}); image != "" {
				metadata["image"] = image
			}
		case "excerpt", "byline":
			if article == nil {
				a, err := cp.readable(html, pageURL)
				if err != nil {
					continue
				}
				article = a
			}
			value := article.Byline
			if field == "excerpt" {
				value = truncate(cp.CleanNewlines(article.Excerpt), opts.ExcerptLength)
			}
			if value = strings.TrimSpace(value); value != "" {
				metadata[field] = value
			}
		}
	}

	return metadata, nil
}

func (cp *ContentProcessor) readable(html, pageURL string) (*readability.Article, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		parsed = &url.URL{}
	}

	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to process with readability: %w", err)
	}
	return &article, nil
}

func (cp *ContentProcessor) findMetaContent(doc *goquery.Document, properties []string) string {
	for _, prop := range properties {
		// Check name attribute
		if content := doc.Find(fmt.Sprintf("meta[name='%s']", prop)).AttrOr("content", ""); content != "" {
			return strings.TrimSpace(content)
		}
		// Check property attribute (for Open Graph tags)
		if content := doc.Find(fmt.Sprintf("meta[property='%s']", prop)).AttrOr("content", ""); content != "" {
			return strings.TrimSpace(content)
		}
	}
	return ""
}

// CleanNewlines collapses line breaks and runs of spaces into single spaces.
func (cp *ContentProcessor) CleanNewlines(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		limit = 200
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit])) + "…"
}

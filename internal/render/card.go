package render

import (
	"regexp"
	"strings"

	"github.com/byteowlz/dropcheck/internal/price"
	"github.com/byteowlz/dropcheck/internal/search"
)

type LineKind string

const (
	LineOffer    LineKind = "offer"
	LineOriginal LineKind = "original"
	LineSavings  LineKind = "savings"
	LineMarkup   LineKind = "markup"
)

// PriceLine is one row of a card's price block.
type PriceLine struct {
	Kind LineKind `json:"kind"`
	Text string   `json:"text"`
}

// Card is the rendered form of one search result.
type Card struct {
	Title  string      `json:"title"`
	Image  string      `json:"image,omitempty"`
	URL    string      `json:"url"`
	Prices []PriceLine `json:"prices,omitempty"`
}

// BuildCards turns search results into cards, in the order given.
// originalPrice is the price scraped from the product page, nil when unknown.
func BuildCards(items []search.Item, originalPrice *float64) []Card {
	cards := make([]Card, 0, len(items))
	for _, item := range items {
		cards = append(cards, Card{
			Title:  item.Title,
			Image:  NormalizeImage(item.Image),
			URL:    NormalizeURL(item.URL),
			Prices: priceLines(item.Price, originalPrice),
		})
	}
	return cards
}

func priceLines(offer, original *float64) []PriceLine {
	if offer == nil {
		return nil
	}

	lines := []PriceLine{{Kind: LineOffer, Text: "AliExpress: $" + price.Format(*offer)}}
	if original == nil || *original <= 0 {
		return lines
	}

	lines = append(lines, PriceLine{Kind: LineOriginal, Text: "Original: $" + price.Fixed2(*original)})

	cmp := price.Compare(*original, *offer)
	switch {
	case cmp.Cheaper():
		lines = append(lines, PriceLine{
			Kind: LineSavings,
			Text: "Save: $" + cmp.Amount() + " (" + cmp.Percent.String() + "%)",
		})
	case cmp.Dearer():
		lines = append(lines, PriceLine{Kind: LineMarkup, Text: "$" + cmp.Amount() + " more expensive"})
	}
	return lines
}

// NormalizeImage makes a thumbnail source absolute.
// An empty source stays "" (not a bare "https:"); writers skip the thumbnail.
func NormalizeImage(src string) string {
	if src == "" {
		return ""
	}
	if strings.HasPrefix(src, "//") {
		src = "https:" + src
	}
	if !strings.HasPrefix(src, "http") {
		src = "https:" + src
	}
	return src
}

var schemeRe = regexp.MustCompile(`(?i)^https?://`)

// NormalizeURL makes a click-through link absolute.
func NormalizeURL(u string) string {
	if strings.HasPrefix(u, "//") {
		u = "https:" + u
	}
	if !schemeRe.MatchString(u) {
		u = "https://" + strings.TrimLeft(u, "/")
	}
	return u
}

package extractor

import "strings"

// SiteFamily identifies which set of selector rules applies to a page.
type SiteFamily int

const (
	Generic SiteFamily = iota
	Amazon
	Ebay
	Etsy
)

func (f SiteFamily) String() string {
	switch f {
	case Amazon:
		return "amazon"
	case Ebay:
		return "ebay"
	case Etsy:
		return "etsy"
	default:
		return "generic"
	}
}

// DetectFamily picks the site family for a hostname.
// Matching is by substring; when several match, etsy beats ebay beats amazon.
func DetectFamily(hostname string) SiteFamily {
	host := strings.ToLower(strings.TrimSpace(hostname))
	switch {
	case strings.Contains(host, "etsy."):
		return Etsy
	case strings.Contains(host, "ebay."):
		return Ebay
	case strings.Contains(host, "amazon."):
		return Amazon
	default:
		return Generic
	}
}

// siteRules are the selector lists for one site family.
type siteRules struct {
	title []string
	price []string
	// priceAttr is read when a price element has no text, e.g. <meta itemprop="price" content="...">.
	priceAttr string
	// cleanTitle post-processes a matched title before the emptiness check.
	cleanTitle func(string) string
}

var rules = map[SiteFamily]siteRules{
	Amazon: {
		title: []string{
			"#productTitle",
			"#title span#productTitle",
			"#ebooksProductTitle",
			"#title",
		},
		price: []string{
			".a-price .a-offscreen",
			"#priceblock_ourprice",
			"#priceblock_dealprice",
			".a-price-whole",
			"#price_inside_buybox",
			".a-color-price",
		},
	},
	Ebay: {
		title: []string{
			"#itemTitle",
			`h1[itemprop="name"]`,
			".it-ttl",
			"h1",
		},
		price: []string{
			".x-price-primary .ux-textspans",
			`[itemprop="price"]`,
			".display-price",
			"#prcIsum",
			"#mm-saleDscPrc",
		},
		priceAttr:  "content",
		cleanTitle: stripDetailsAbout,
	},
	Etsy: {
		price: []string{
			`[data-buy-box-region="price"]`,
			".wt-text-title-03",
			`p[class*="price"]`,
		},
	},
}

// genericTitleSelectors are tried after og:title and the first <h1>.
var genericTitleSelectors = []string{
	"[data-test-listing-title]",
	".product-title",
	".title",
	".listing-title",
	".wt-text-body-03",
}

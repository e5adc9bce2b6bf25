package render

import (
	"reflect"
	"testing"

	"github.com/byteowlz/dropcheck/internal/search"
)

func f(v float64) *float64 { return &v }

func texts(lines []PriceLine) []string {
	var out []string
	for _, l := range lines {
		out = append(out, l.Text)
	}
	return out
}

func TestBuildCards_Savings(t *testing.T) {
	items := []search.Item{{Title: "Widget", URL: "//x.com/a", Image: "//x.com/b.jpg", Price: f(9.99)}}

	cards := BuildCards(items, f(19.99))
	if len(cards) != 1 {
		t.Fatalf("expected 1 card, got %d", len(cards))
	}

	c := cards[0]
	if c.Title != "Widget" || c.URL != "https://x.com/a" || c.Image != "https://x.com/b.jpg" {
		t.Errorf("unexpected card %+v", c)
	}
	want := []string{"AliExpress: $9.99", "Original: $19.99", "Save: $10.00 (50%)"}
	if got := texts(c.Prices); !reflect.DeepEqual(got, want) {
		t.Errorf("prices = %q, want %q", got, want)
	}
}

func TestBuildCards_MoreExpensive(t *testing.T) {
	cards := BuildCards([]search.Item{{Title: "Widget", Price: f(19.99)}}, f(9.99))

	want := []string{"AliExpress: $19.99", "Original: $9.99", "$10.00 more expensive"}
	if got := texts(cards[0].Prices); !reflect.DeepEqual(got, want) {
		t.Errorf("prices = %q, want %q", got, want)
	}
	for _, l := range cards[0].Prices {
		if l.Kind == LineSavings {
			t.Error("unexpected savings line")
		}
	}
}

func TestBuildCards_PriceVariants(t *testing.T) {
	tests := []struct {
		name     string
		offer    *float64
		original *float64
		want     []string
	}{
		{"equal prices", f(10), f(10), []string{"AliExpress: $10", "Original: $10.00"}},
		{"no original", f(4.5), nil, []string{"AliExpress: $4.5"}},
		{"zero original", f(4.5), f(0), []string{"AliExpress: $4.5"}},
		{"zero offer is a price", f(0), f(5), []string{"AliExpress: $0", "Original: $5.00", "Save: $5.00 (100%)"}},
		{"absent offer", nil, f(5), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards := BuildCards([]search.Item{{Title: "x", Price: tt.offer}}, tt.original)
			if got := texts(cards[0].Prices); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("prices = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildCards_PreservesOrderAndTitle(t *testing.T) {
	long := "A very long product title that goes on and on with every keyword a seller could think of"
	items := []search.Item{{Title: "b", Price: f(3)}, {Title: long, Price: f(1)}, {Title: "a", Price: f(2)}}

	cards := BuildCards(items, nil)
	got := []string{cards[0].Title, cards[1].Title, cards[2].Title}
	if !reflect.DeepEqual(got, []string{"b", long, "a"}) {
		t.Errorf("order not preserved: %q", got)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := map[string]string{
		"//m.aliexpress.com/x":     "https://m.aliexpress.com/x",
		"aliexpress.com/x":         "https://aliexpress.com/x",
		"/aliexpress.com/x":        "https://aliexpress.com/x",
		"http://aliexpress.com/x":  "http://aliexpress.com/x",
		"HTTPS://aliexpress.com/x": "HTTPS://aliexpress.com/x",
	}
	for in, want := range tests {
		if got := NormalizeURL(in); got != want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeImage(t *testing.T) {
	tests := map[string]string{
		"//ae01.alicdn.com/a.jpg":       "https://ae01.alicdn.com/a.jpg",
		"https://ae01.alicdn.com/a.jpg": "https://ae01.alicdn.com/a.jpg",
		"ae01.alicdn.com/a.jpg":         "https:ae01.alicdn.com/a.jpg",
		"":                              "",
	}
	for in, want := range tests {
		if got := NormalizeImage(in); got != want {
			t.Errorf("NormalizeImage(%q) = %q, want %q", in, got, want)
		}
	}
}

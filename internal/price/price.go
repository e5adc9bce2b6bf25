package price

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// priceRe matches an optional currency symbol followed by a number that may
// carry thousands or decimal separators, e.g. "$1,234.56" or "€ 19".
var priceRe = regexp.MustCompile(`[$£€]?\s*(\d+(?:[,.]\d+)*)`)

// leadingNumberRe keeps the longest decimal prefix once commas are gone,
// so a run like "1.2.3" reads as 1.2.
var leadingNumberRe = regexp.MustCompile(`^\d+(?:\.\d+)?`)

// Parse finds the first price-like number in text.
// It returns false when the text has no digits.
func Parse(text string) (float64, bool) {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}

	num := leadingNumberRe.FindString(strings.ReplaceAll(m[1], ",", ""))
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Format renders v with the fewest digits that round-trip.
func Format(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Fixed2 renders v with exactly two decimal places.
func Fixed2(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Comparison is the difference between a page price and an offer price.
type Comparison struct {
	// Diff is original minus offer: positive means the offer is cheaper.
	Diff decimal.Decimal
	// Percent is Diff relative to the original price, rounded to a whole number.
	Percent decimal.Decimal
}

// Compare computes original - offer in exact decimal arithmetic.
// original must be positive.
func Compare(original, offer float64) Comparison {
	orig := decimal.NewFromFloat(original)
	diff := orig.Sub(decimal.NewFromFloat(offer))

	pct := decimal.Zero
	if orig.IsPositive() {
		pct = diff.Div(orig).Mul(decimal.NewFromInt(100)).Round(0)
	}
	return Comparison{Diff: diff, Percent: pct}
}

// Cheaper reports whether the offer undercuts the original price.
func (c Comparison) Cheaper() bool { return c.Diff.IsPositive() }

// Dearer reports whether the offer costs more than the original price.
func (c Comparison) Dearer() bool { return c.Diff.IsNegative() }

// Amount is the absolute difference with two decimal places.
func (c Comparison) Amount() string { return c.Diff.Abs().StringFixed(2) }

package pricing

import (
	"encoding/json"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// DefaultCurrency is the symbol prefixed to every rendered amount unless a caller overrides it.
const DefaultCurrency = "₹"

// PriceRange describes the spread of variant prices for a product. Min never exceeds Max.
type PriceRange struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Currency string  `json:"currency"`
}

// Price is a caller supplied amount given either as a number or as display text such as "₹200.00".
type Price struct {
	Value  float64
	Text   string
	IsText bool
}

// Amount wraps a numeric price.
func Amount(v float64) Price { return Price{Value: v} }

// Text wraps a display price that still needs extraction.
func Text(s string) Price { return Price{Text: s, IsText: true} }

// UnmarshalJSON accepts either a JSON number or a JSON string.
func (p *Price) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*p = Price{}
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Text(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Amount(v)
	return nil
}

// MarshalJSON renders text prices as strings and numeric prices as numbers.
func (p Price) MarshalJSON() ([]byte, error) {
	if p.IsText {
		return json.Marshal(p.Text)
	}
	return json.Marshal(p.Value)
}

// Extractor parses and renders currency-prefixed amounts for a single currency symbol.
type Extractor struct {
	Currency string
}

var patterns sync.Map

func (e Extractor) currency() string {
	if e.Currency == "" {
		return DefaultCurrency
	}
	return e.Currency
}

func (e Extractor) pattern() *regexp.Regexp {
	cur := e.currency()
	if re, ok := patterns.Load(cur); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(regexp.QuoteMeta(cur) + `(\d+(?:\.\d{2})?)`)
	actual, _ := patterns.LoadOrStore(cur, re)
	return actual.(*regexp.Regexp)
}

// ExtractSinglePrice returns the first currency-prefixed amount in text, or 0 when none is present.
func (e Extractor) ExtractSinglePrice(text string) float64 {
	m := e.pattern().FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}

// ExtractPriceRange returns the lowest and highest currency-prefixed amounts in text.
// Fewer than two amounts collapse to a single-value range when that amount is positive.
func (e Extractor) ExtractPriceRange(text string) (PriceRange, bool) {
	matches := e.pattern().FindAllStringSubmatch(text, -1)
	if len(matches) < 2 {
		price := e.ExtractSinglePrice(text)
		if price > 0 {
			return PriceRange{Min: price, Max: price, Currency: e.currency()}, true
		}
		return PriceRange{}, false
	}
	r := PriceRange{Min: math.Inf(1), Max: math.Inf(-1), Currency: e.currency()}
	for _, m := range matches {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		r.Min = math.Min(r.Min, v)
		r.Max = math.Max(r.Max, v)
	}
	return r, true
}

// FormatPrice renders amount with the currency prefix and exactly two decimals.
func (e Extractor) FormatPrice(amount float64) string {
	return e.currency() + toFixed2(amount)
}

// FormatPriceRange renders a range as "min - max", or a single price when both ends match.
func (e Extractor) FormatPriceRange(r PriceRange) string {
	ex := e
	if r.Currency != "" {
		ex = Extractor{Currency: r.Currency}
	}
	if r.Min == r.Max {
		return ex.FormatPrice(r.Min)
	}
	return ex.FormatPrice(r.Min) + " - " + ex.FormatPrice(r.Max)
}

// toFixed2 rounds the exact binary value of x to two decimals, resolving exact ties away from zero.
func toFixed2(x float64) string {
	switch {
	case math.IsNaN(x):
		return "NaN"
	case math.IsInf(x, 1):
		return "Infinity"
	case math.IsInf(x, -1):
		return "-Infinity"
	}
	sign := ""
	if x < 0 {
		sign = "-"
		x = -x
	}
	if x >= 1e21 {
		return sign + strconv.FormatFloat(x, 'g', -1, 64)
	}
	scaled := new(big.Float).SetPrec(128).SetFloat64(x)
	scaled.Mul(scaled, new(big.Float).SetPrec(128).SetInt64(100))
	n, _ := scaled.Int(nil)
	frac := new(big.Float).SetPrec(128).Sub(scaled, new(big.Float).SetPrec(128).SetInt(n))
	if frac.Cmp(big.NewFloat(0.5)) >= 0 {
		n.Add(n, big.NewInt(1))
	}
	digits := n.String()
	for len(digits) < 3 {
		digits = "0" + digits
	}
	return sign + digits[:len(digits)-2] + "." + digits[len(digits)-2:]
}

var defaultExtractor = Extractor{Currency: DefaultCurrency}

// ExtractSinglePrice parses the first "₹" amount in text.
func ExtractSinglePrice(text string) float64 { return defaultExtractor.ExtractSinglePrice(text) }

// ExtractPriceRange parses every "₹" amount in text into a range.
func ExtractPriceRange(text string) (PriceRange, bool) { return defaultExtractor.ExtractPriceRange(text) }

// FormatPrice renders amount in rupees.
func FormatPrice(amount float64) string { return defaultExtractor.FormatPrice(amount) }

// FormatPriceRange renders r using its own currency, defaulting to rupees.
func FormatPriceRange(r PriceRange) string { return defaultExtractor.FormatPriceRange(r) }

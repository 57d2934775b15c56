package pricing

import (
	"math"
	"sort"
	"time"
)

// Coupon is the subset of a coupon the calculator reads. Validity checks belong to callers.
type Coupon struct {
	Code            string     `json:"code"`
	DiscountPercent float64    `json:"discountPercent"`
	MinOrderValue   float64    `json:"minOrderValue,omitempty"`
	ExpiryDate      *time.Time `json:"expiryDate,omitempty"`
	MaxUses         *int       `json:"maxUses,omitempty"`
	UsedCount       int        `json:"usedCount,omitempty"`
	IsActive        *bool      `json:"isActive,omitempty"`
}

// Active reports whether the coupon is switched on. Coupons without the flag are active.
func (c Coupon) Active() bool {
	return c.IsActive == nil || *c.IsActive
}

// Result is the outcome of applying a percentage discount to one price.
type Result struct {
	OriginalPrice   float64 `json:"originalPrice"`
	DiscountAmount  float64 `json:"discountAmount"`
	DiscountedPrice float64 `json:"discountedPrice"`
	DiscountPercent float64 `json:"discountPercent"`
	Savings         string  `json:"savings"`
	IsDiscounted    bool    `json:"isDiscounted"`
}

// RangeDiscount summarises the savings across a discounted range.
type RangeDiscount struct {
	Percent    float64 `json:"percent"`
	MinSavings float64 `json:"minSavings"`
	MaxSavings float64 `json:"maxSavings"`
}

// DiscountedRange pairs a range with its discounted counterpart.
type DiscountedRange struct {
	Original   PriceRange    `json:"original"`
	Discounted PriceRange    `json:"discounted"`
	Discount   RangeDiscount `json:"discount"`
}

// LineItem is a priced quantity fed into a bulk discount.
type LineItem struct {
	Price    Price `json:"price"`
	Quantity int   `json:"quantity"`
}

// BulkLine is a LineItem after discounting.
type BulkLine struct {
	Price        Price   `json:"price"`
	Quantity     int     `json:"quantity"`
	Discount     Result  `json:"discount"`
	LineOriginal float64 `json:"lineOriginal"`
	LineTotal    float64 `json:"lineTotal"`
}

// BulkResult totals a flat discount across line items.
type BulkResult struct {
	TotalOriginal   float64    `json:"totalOriginal"`
	TotalDiscounted float64    `json:"totalDiscounted"`
	TotalSavings    float64    `json:"totalSavings"`
	Items           []BulkLine `json:"items"`
}

// MinimumOrderCheck reports whether an order total satisfies a coupon minimum.
type MinimumOrderCheck struct {
	IsValid        bool     `json:"isValid"`
	RequiredAmount *float64 `json:"requiredAmount,omitempty"`
	Shortfall      *float64 `json:"shortfall,omitempty"`
}

// Tier is one threshold of a tiered discount schedule.
type Tier struct {
	MinValue        float64 `json:"minValue"`
	DiscountPercent float64 `json:"discountPercent"`
}

// TieredResult carries the tier that matched, if any, and the discount it produced.
type TieredResult struct {
	AppliedTier *Tier  `json:"appliedTier"`
	Discount    Result `json:"discount"`
}

// Calculator applies percentage discounts and renders them in one currency.
type Calculator struct {
	Extractor Extractor
}

// NewCalculator returns a Calculator for the provided currency symbol.
func NewCalculator(currency string) Calculator {
	return Calculator{Extractor: Extractor{Currency: currency}}
}

func (c Calculator) amount(p Price) float64 {
	if p.IsText {
		return c.Extractor.ExtractSinglePrice(p.Text)
	}
	return p.Value
}

// ApplyDiscount subtracts discountPercent of price. The result never drops below zero;
// negative percentages are not rejected and raise the price.
func (c Calculator) ApplyDiscount(price Price, discountPercent float64) Result {
	original := c.amount(price)
	discountAmount := original * discountPercent / 100
	return Result{
		OriginalPrice:   original,
		DiscountAmount:  discountAmount,
		DiscountedPrice: math.Max(0, original-discountAmount),
		DiscountPercent: discountPercent,
		Savings:         c.Extractor.FormatPrice(discountAmount),
		IsDiscounted:    discountAmount > 0,
	}
}

// ApplyDiscountToRange discounts both ends of the range found in text.
func (c Calculator) ApplyDiscountToRange(text string, discountPercent float64) (DiscountedRange, bool) {
	r, ok := c.Extractor.ExtractPriceRange(text)
	if !ok {
		return DiscountedRange{}, false
	}
	low := c.ApplyDiscount(Amount(r.Min), discountPercent)
	high := c.ApplyDiscount(Amount(r.Max), discountPercent)
	return DiscountedRange{
		Original: r,
		Discounted: PriceRange{
			Min:      low.DiscountedPrice,
			Max:      high.DiscountedPrice,
			Currency: r.Currency,
		},
		Discount: RangeDiscount{
			Percent:    discountPercent,
			MinSavings: low.DiscountAmount,
			MaxSavings: high.DiscountAmount,
		},
	}, true
}

// ApplyCouponDiscount applies the coupon's percentage. A nil coupon passes the price through.
// Expiry, activity, usage and minimum order are not checked here.
func (c Calculator) ApplyCouponDiscount(price Price, coupon *Coupon) Result {
	if coupon == nil {
		original := c.amount(price)
		return Result{
			OriginalPrice:   original,
			DiscountedPrice: original,
			Savings:         c.Extractor.FormatPrice(0),
		}
	}
	return c.ApplyDiscount(price, coupon.DiscountPercent)
}

// FormatDiscountedPrice renders "discounted (was original)" when the prices differ.
func (c Calculator) FormatDiscountedPrice(originalPrice, discountedPrice float64, showOriginal bool) string {
	if originalPrice == discountedPrice {
		return c.Extractor.FormatPrice(discountedPrice)
	}
	if showOriginal {
		return c.Extractor.FormatPrice(discountedPrice) + " (was " + c.Extractor.FormatPrice(originalPrice) + ")"
	}
	return c.Extractor.FormatPrice(discountedPrice)
}

// FormatDiscountedPriceRange is FormatDiscountedPrice for ranges. A zero percent never shows "was".
func (c Calculator) FormatDiscountedPriceRange(r DiscountedRange, showOriginal bool) string {
	discounted := c.Extractor.FormatPriceRange(r.Discounted)
	if !showOriginal || r.Discount.Percent == 0 {
		return discounted
	}
	return discounted + " (was " + c.Extractor.FormatPriceRange(r.Original) + ")"
}

// CalculateBulkDiscount applies the same percentage to every line and totals the lines.
func (c Calculator) CalculateBulkDiscount(items []LineItem, discountPercent float64) BulkResult {
	out := BulkResult{Items: make([]BulkLine, 0, len(items))}
	for _, it := range items {
		res := c.ApplyDiscount(it.Price, discountPercent)
		qty := float64(it.Quantity)
		line := BulkLine{
			Price:        it.Price,
			Quantity:     it.Quantity,
			Discount:     res,
			LineOriginal: res.OriginalPrice * qty,
			LineTotal:    res.DiscountedPrice * qty,
		}
		out.TotalOriginal += line.LineOriginal
		out.TotalDiscounted += line.LineTotal
		out.Items = append(out.Items, line)
	}
	out.TotalSavings = out.TotalOriginal - out.TotalDiscounted
	return out
}

// ValidateMinimumOrder checks totalValue against the coupon's minimum order value.
func ValidateMinimumOrder(totalValue float64, coupon *Coupon) MinimumOrderCheck {
	if coupon == nil || coupon.MinOrderValue == 0 {
		return MinimumOrderCheck{IsValid: true}
	}
	required := coupon.MinOrderValue
	if totalValue >= required {
		return MinimumOrderCheck{IsValid: true, RequiredAmount: &required}
	}
	shortfall := required - totalValue
	return MinimumOrderCheck{IsValid: false, RequiredAmount: &required, Shortfall: &shortfall}
}

// DiscountBadge returns the promotional label for a percentage.
func DiscountBadge(discountPercent float64) string {
	p := formatNumber(discountPercent)
	switch {
	case discountPercent <= 0:
		return ""
	case discountPercent >= 50:
		return p + "% OFF - HUGE SAVINGS!"
	case discountPercent >= 25:
		return p + "% OFF - GREAT DEAL!"
	default:
		return p + "% OFF"
	}
}

// CalculateTieredDiscount applies the highest tier whose MinValue the order reaches.
func (c Calculator) CalculateTieredDiscount(orderValue float64, tiers []Tier) TieredResult {
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MinValue > sorted[j].MinValue })
	for i := range sorted {
		if sorted[i].MinValue <= orderValue {
			tier := sorted[i]
			return TieredResult{AppliedTier: &tier, Discount: c.ApplyDiscount(Amount(orderValue), tier.DiscountPercent)}
		}
	}
	return TieredResult{Discount: c.ApplyDiscount(Amount(orderValue), 0)}
}

var defaultCalculator = Calculator{Extractor: defaultExtractor}

// ApplyDiscount discounts a rupee price.
func ApplyDiscount(price Price, discountPercent float64) Result {
	return defaultCalculator.ApplyDiscount(price, discountPercent)
}

// ApplyDiscountToRange discounts a rupee price range.
func ApplyDiscountToRange(text string, discountPercent float64) (DiscountedRange, bool) {
	return defaultCalculator.ApplyDiscountToRange(text, discountPercent)
}

// ApplyCouponDiscount discounts a rupee price by coupon.
func ApplyCouponDiscount(price Price, coupon *Coupon) Result {
	return defaultCalculator.ApplyCouponDiscount(price, coupon)
}

// CalculateBulkDiscount totals rupee line items.
func CalculateBulkDiscount(items []LineItem, discountPercent float64) BulkResult {
	return defaultCalculator.CalculateBulkDiscount(items, discountPercent)
}

// CalculateTieredDiscount applies a tier schedule to a rupee order value.
func CalculateTieredDiscount(orderValue float64, tiers []Tier) TieredResult {
	return defaultCalculator.CalculateTieredDiscount(orderValue, tiers)
}

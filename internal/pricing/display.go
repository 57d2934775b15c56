package pricing

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

var savingsPattern = regexp.MustCompile(`(?i)save[sd]?\s*₹(\d+(?:\.\d{2})?)`)

// HasDiscount guesses from display text whether a discount is shown. It is a text heuristic:
// any "was", "(" or "OFF" counts.
func HasDiscount(priceString string) bool {
	return strings.Contains(priceString, "was") ||
		strings.Contains(priceString, "(") ||
		strings.Contains(priceString, "OFF")
}

// ExtractSavings reads the amount from phrases such as "Save ₹50.00".
func ExtractSavings(text string) float64 {
	m := savingsPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}

// GenerateCouponSummary describes a coupon in rupees. See Calculator.GenerateCouponSummary.
func GenerateCouponSummary(coupon Coupon, orderValue *float64, now time.Time) string {
	return defaultCalculator.GenerateCouponSummary(coupon, orderValue, now)
}

// GenerateCouponSummary describes a coupon for display, e.g. "10% off • Min. order ₹500.00 ✓ • 3 days left",
// with amounts in c's currency. Minimum order status needs both a minimum and an order value;
// expiry needs an expiry date.
func (c Calculator) GenerateCouponSummary(coupon Coupon, orderValue *float64, now time.Time) string {
	parts := []string{formatNumber(coupon.DiscountPercent) + "% off"}

	if coupon.MinOrderValue > 0 && orderValue != nil {
		check := ValidateMinimumOrder(*orderValue, &coupon)
		if check.IsValid {
			parts = append(parts, "Min. order "+c.Extractor.FormatPrice(coupon.MinOrderValue)+" ✓")
		} else {
			parts = append(parts, "Add "+c.Extractor.FormatPrice(*check.Shortfall)+" more for this coupon")
		}
	}

	if coupon.ExpiryDate != nil {
		diff := coupon.ExpiryDate.Sub(now)
		daysLeft := int(math.Ceil(float64(diff.Milliseconds()) / float64(day.Milliseconds())))
		switch {
		case daysLeft <= 0:
			parts = append(parts, "EXPIRED")
		case daysLeft == 1:
			parts = append(parts, "1 day left")
		default:
			parts = append(parts, strconv.Itoa(daysLeft)+" days left")
		}
	}

	return strings.Join(parts, " • ")
}

// FormatPercent rounds to one decimal place and appends "%".
func FormatPercent(percent float64) string {
	return formatNumber(math.Floor(percent*10+0.5)/10) + "%"
}

// formatNumber prints v in its shortest form without trailing zeros, as 12.5 or 12.
func formatNumber(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

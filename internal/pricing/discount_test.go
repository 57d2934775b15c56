package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyDiscountExample(t *testing.T) {
	got := ApplyDiscount(Text("₹200.00"), 25)
	want := Result{
		OriginalPrice:   200,
		DiscountAmount:  50,
		DiscountedPrice: 150,
		DiscountPercent: 25,
		Savings:         "₹50.00",
		IsDiscounted:    true,
	}
	require.Equal(t, want, got)
}

func TestApplyDiscountProperties(t *testing.T) {
	for _, p := range []float64{0, 1, 9.99, 150, 1234.56} {
		for d := 0.0; d <= 100; d += 12.5 {
			res := ApplyDiscount(Amount(p), d)
			expected := p * (1 - d/100)
			if math.Abs(res.DiscountedPrice-expected) > 1e-9 {
				t.Fatalf("ApplyDiscount(%v, %v) = %v, want %v", p, d, res.DiscountedPrice, expected)
			}
			if res.DiscountedPrice > res.OriginalPrice {
				t.Fatalf("discounted %v exceeds original %v", res.DiscountedPrice, res.OriginalPrice)
			}
		}
		for _, d := range []float64{100.5, 150, 1000} {
			if res := ApplyDiscount(Amount(p), d); res.DiscountedPrice != 0 {
				t.Fatalf("ApplyDiscount(%v, %v) = %v, want 0", p, d, res.DiscountedPrice)
			}
		}
	}
}

func TestApplyDiscountEdgeCases(t *testing.T) {
	zero := ApplyDiscount(Amount(80), 0)
	require.False(t, zero.IsDiscounted)
	require.Equal(t, 80.0, zero.DiscountedPrice)
	require.Equal(t, "₹0.00", zero.Savings)

	bad := ApplyDiscount(Text("call for price"), 40)
	require.Equal(t, Result{Savings: "₹0.00", DiscountPercent: 40}, bad)

	markup := ApplyDiscount(Amount(100), -10)
	require.Equal(t, 110.0, markup.DiscountedPrice)
	require.False(t, markup.IsDiscounted)
}

func TestApplyDiscountToRange(t *testing.T) {
	r, ok := ApplyDiscountToRange("₹300.00 - ₹100.00", 10)
	require.True(t, ok)
	require.Equal(t, PriceRange{Min: 100, Max: 300, Currency: "₹"}, r.Original)
	require.Equal(t, PriceRange{Min: 90, Max: 270, Currency: "₹"}, r.Discounted)
	require.Equal(t, RangeDiscount{Percent: 10, MinSavings: 10, MaxSavings: 30}, r.Discount)

	single, ok := ApplyDiscountToRange("₹150.00", 20)
	require.True(t, ok)
	require.Equal(t, 150.0, single.Original.Min)
	require.Equal(t, 150.0, single.Original.Max)

	_, ok = ApplyDiscountToRange("out of stock", 20)
	require.False(t, ok)
}

func TestApplyCouponDiscount(t *testing.T) {
	for _, p := range []Price{Amount(0), Amount(42.5), Text("₹999.00"), Text("n/a")} {
		res := ApplyCouponDiscount(p, nil)
		require.False(t, res.IsDiscounted)
		require.Equal(t, res.OriginalPrice, res.DiscountedPrice)
		require.Zero(t, res.DiscountAmount)
	}

	expired := false
	coupon := &Coupon{Code: "LAB15", DiscountPercent: 15, IsActive: &expired}
	res := ApplyCouponDiscount(Amount(200), coupon)
	require.True(t, res.IsDiscounted)
	require.Equal(t, 170.0, res.DiscountedPrice)
}

func TestFormatDiscountedPrice(t *testing.T) {
	c := NewCalculator("₹")
	require.Equal(t, "₹100.00", c.FormatDiscountedPrice(100, 100, true))
	require.Equal(t, "₹80.00 (was ₹100.00)", c.FormatDiscountedPrice(100, 80, true))
	require.Equal(t, "₹80.00", c.FormatDiscountedPrice(100, 80, false))
}

func TestFormatDiscountedPriceRange(t *testing.T) {
	c := NewCalculator("₹")
	r, _ := c.ApplyDiscountToRange("₹100.00 - ₹200.00", 50)
	require.Equal(t, "₹50.00 - ₹100.00 (was ₹100.00 - ₹200.00)", c.FormatDiscountedPriceRange(r, true))
	require.Equal(t, "₹50.00 - ₹100.00", c.FormatDiscountedPriceRange(r, false))

	none, _ := c.ApplyDiscountToRange("₹100.00 - ₹200.00", 0)
	require.Equal(t, "₹100.00 - ₹200.00", c.FormatDiscountedPriceRange(none, true))
}

func TestCalculateBulkDiscount(t *testing.T) {
	empty := CalculateBulkDiscount(nil, 30)
	require.Zero(t, empty.TotalOriginal)
	require.Zero(t, empty.TotalDiscounted)
	require.Zero(t, empty.TotalSavings)
	require.NotNil(t, empty.Items)
	require.Empty(t, empty.Items)

	res := CalculateBulkDiscount([]LineItem{
		{Price: Text("₹100.00"), Quantity: 3},
		{Price: Amount(50), Quantity: 2},
	}, 10)
	require.Len(t, res.Items, 2)
	require.InDelta(t, 400, res.TotalOriginal, 1e-9)
	require.InDelta(t, 360, res.TotalDiscounted, 1e-9)
	require.InDelta(t, 40, res.TotalSavings, 1e-9)
	require.InDelta(t, 270, res.Items[0].LineTotal, 1e-9)
}

func TestValidateMinimumOrder(t *testing.T) {
	require.True(t, ValidateMinimumOrder(10, nil).IsValid)
	require.True(t, ValidateMinimumOrder(10, &Coupon{Code: "ANY"}).IsValid)

	coupon := &Coupon{Code: "BIG", MinOrderValue: 500}
	ok := ValidateMinimumOrder(500, coupon)
	require.True(t, ok.IsValid)
	require.Nil(t, ok.Shortfall)

	short := ValidateMinimumOrder(320, coupon)
	require.False(t, short.IsValid)
	require.NotNil(t, short.Shortfall)
	require.Equal(t, 180.0, *short.Shortfall)
	require.Equal(t, 500.0, *short.RequiredAmount)
}

func TestDiscountBadge(t *testing.T) {
	cases := map[float64]string{
		-5:   "",
		0:    "",
		10:   "10% OFF",
		24:   "24% OFF",
		24.9: "24.9% OFF",
		25:   "25% OFF - GREAT DEAL!",
		49:   "49% OFF - GREAT DEAL!",
		50:   "50% OFF - HUGE SAVINGS!",
		80:   "80% OFF - HUGE SAVINGS!",
	}
	for in, want := range cases {
		if got := DiscountBadge(in); got != want {
			t.Fatalf("DiscountBadge(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestCalculateTieredDiscount(t *testing.T) {
	tiers := []Tier{
		{MinValue: 500, DiscountPercent: 15},
		{MinValue: 200, DiscountPercent: 10},
		{MinValue: 100, DiscountPercent: 5},
	}
	res := CalculateTieredDiscount(300, tiers)
	require.NotNil(t, res.AppliedTier)
	require.Equal(t, 10.0, res.AppliedTier.DiscountPercent)
	require.Equal(t, 270.0, res.Discount.DiscountedPrice)

	unordered := []Tier{tiers[2], tiers[0], tiers[1]}
	require.Equal(t, 15.0, CalculateTieredDiscount(500, unordered).AppliedTier.DiscountPercent)
	require.Equal(t, tiers[2], unordered[0], "input slice must not be reordered")

	none := CalculateTieredDiscount(50, tiers)
	require.Nil(t, none.AppliedTier)
	require.False(t, none.Discount.IsDiscounted)
	require.Equal(t, 50.0, none.Discount.DiscountedPrice)
}

package voucher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/glassworks/internal/pricing"
)

func TestRuleValidate(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)
	off := false
	on := true
	two := 2

	cases := []struct {
		name   string
		coupon pricing.Coupon
		order  float64
		want   error
	}{
		{"plain", pricing.Coupon{Code: "A", DiscountPercent: 10}, 0, nil},
		{"explicitly active", pricing.Coupon{IsActive: &on}, 10, nil},
		{"inactive", pricing.Coupon{IsActive: &off}, 10, ErrCouponInactive},
		{"expired", pricing.Coupon{ExpiryDate: &past}, 10, ErrCouponExpired},
		{"expires exactly now", pricing.Coupon{ExpiryDate: &now}, 10, nil},
		{"not yet expired", pricing.Coupon{ExpiryDate: &future}, 10, nil},
		{"used up", pricing.Coupon{MaxUses: &two, UsedCount: 2}, 10, ErrUsageLimitReached},
		{"uses left", pricing.Coupon{MaxUses: &two, UsedCount: 1}, 10, nil},
		{"below minimum", pricing.Coupon{MinOrderValue: 500}, 499.99, ErrMinimumOrderUnmet},
		{"at minimum", pricing.Coupon{MinOrderValue: 500}, 500, nil},
		{"inactive wins over expiry", pricing.Coupon{IsActive: &off, ExpiryDate: &past}, 10, ErrCouponInactive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Rule{Coupon: tc.coupon}.Validate(now, tc.order)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestReason(t *testing.T) {
	require.Equal(t, "", Reason(nil))
	require.Equal(t, "expired", Reason(ErrCouponExpired))
	require.Equal(t, "minimum_order_unmet", Reason(ErrMinimumOrderUnmet))
	require.Equal(t, "usage_limit_reached", Reason(ErrUsageLimitReached))
	require.Equal(t, "inactive", Reason(ErrCouponInactive))
}

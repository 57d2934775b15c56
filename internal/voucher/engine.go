package voucher

import (
	"errors"
	"time"

	"github.com/noah-isme/glassworks/internal/pricing"
)

var (
	// ErrCouponInactive is returned when the coupon has been switched off.
	ErrCouponInactive = errors.New("coupon not active")
	// ErrCouponExpired is returned when the coupon's expiry date has passed.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrUsageLimitReached indicates the coupon has exhausted its usage quota.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrMinimumOrderUnmet indicates the order total did not meet the coupon minimum.
	ErrMinimumOrderUnmet = errors.New("coupon minimum order not met")
)

// Rule is the validity gate applied before a coupon discount is honoured.
type Rule struct {
	pricing.Coupon
}

// Validate ensures the coupon can be applied at now to an order worth orderValue.
func (r Rule) Validate(now time.Time, orderValue float64) error {
	if !r.Active() {
		return ErrCouponInactive
	}
	if r.ExpiryDate != nil && now.After(*r.ExpiryDate) {
		return ErrCouponExpired
	}
	if r.MaxUses != nil && r.UsedCount >= *r.MaxUses {
		return ErrUsageLimitReached
	}
	if check := pricing.ValidateMinimumOrder(orderValue, &r.Coupon); !check.IsValid {
		return ErrMinimumOrderUnmet
	}
	return nil
}

// Reason maps a validation error to the short code reported to clients.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCouponInactive):
		return "inactive"
	case errors.Is(err, ErrCouponExpired):
		return "expired"
	case errors.Is(err, ErrUsageLimitReached):
		return "usage_limit_reached"
	case errors.Is(err, ErrMinimumOrderUnmet):
		return "minimum_order_unmet"
	default:
		return "invalid"
	}
}

package voucher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/glassworks/internal/common"
	"github.com/noah-isme/glassworks/internal/obs"
	"github.com/noah-isme/glassworks/internal/pricing"
	"github.com/noah-isme/glassworks/internal/store"
)

// DocumentStore is the slice of the document store the coupon service needs.
type DocumentStore interface {
	Load(ctx context.Context) (store.Document, error)
	Update(ctx context.Context, fn func(*store.Document) error) (store.Document, error)
}

// CouponInput is the admin payload for creating or replacing a coupon.
type CouponInput struct {
	Code            string     `json:"code" validate:"omitempty,min=3,max=32"`
	Description     string     `json:"description" validate:"max=500"`
	DiscountPercent float64    `json:"discountPercent" validate:"gt=0,lte=100"`
	MinOrderValue   float64    `json:"minOrderValue" validate:"gte=0"`
	ExpiryDate      *time.Time `json:"expiryDate"`
	MaxUses         *int       `json:"maxUses" validate:"omitempty,min=1"`
	IsActive        *bool      `json:"isActive"`
}

// PreviewResult describes what a coupon would do to an order without redeeming it.
type PreviewResult struct {
	Code      string          `json:"code"`
	Valid     bool            `json:"valid"`
	Reason    string          `json:"reason,omitempty"`
	Discount  *pricing.Result `json:"discount,omitempty"`
	Shortfall *float64        `json:"shortfall,omitempty"`
	Summary   string          `json:"summary"`
}

// Service manages coupons stored in the catalog document.
type Service struct {
	store  DocumentStore
	calc   pricing.Calculator
	logger zerolog.Logger
	now    func() time.Time
}

// Config groups Service dependencies.
type Config struct {
	Store      DocumentStore
	Calculator pricing.Calculator
	Logger     zerolog.Logger
	Now        func() time.Time
}

// NewService constructs a coupon Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("voucher: store is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{store: cfg.Store, calc: cfg.Calculator, logger: cfg.Logger, now: now}, nil
}

// List returns all coupons ordered by code.
func (s *Service) List(ctx context.Context) ([]store.Coupon, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load coupons: %w", err)
	}
	out := make([]store.Coupon, len(doc.Coupons))
	copy(out, doc.Coupons)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Get looks a coupon up by code, ignoring case.
func (s *Service) Get(ctx context.Context, code string) (store.Coupon, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return store.Coupon{}, fmt.Errorf("load coupons: %w", err)
	}
	i, err := doc.CouponIndex(code)
	if err != nil {
		return store.Coupon{}, common.NotFound("coupon not found", err)
	}
	return doc.Coupons[i], nil
}

// Create adds a coupon. Codes are stored upper-cased and must be unique.
func (s *Service) Create(ctx context.Context, in CouponInput) (store.Coupon, error) {
	code := normaliseCode(in.Code)
	if code == "" {
		return store.Coupon{}, common.BadRequest("code is required", nil).WithDetails(map[string]any{"field": "code"})
	}
	if err := common.ValidateStruct(in); err != nil {
		return store.Coupon{}, err
	}
	now := s.now().UTC()
	coupon := store.Coupon{CreatedAt: now, UpdatedAt: now}
	apply(&coupon, in)
	coupon.Code = code
	_, err := s.store.Update(ctx, func(d *store.Document) error {
		if _, err := d.CouponIndex(code); err == nil {
			return common.Conflict("coupon code already exists", nil).WithDetails(map[string]any{"code": code})
		}
		d.Coupons = append(d.Coupons, coupon)
		return nil
	})
	if err != nil {
		return store.Coupon{}, err
	}
	return coupon, nil
}

// Update replaces the editable fields of an existing coupon. Code and usage count are kept.
func (s *Service) Update(ctx context.Context, code string, in CouponInput) (store.Coupon, error) {
	if err := common.ValidateStruct(in); err != nil {
		return store.Coupon{}, err
	}
	var out store.Coupon
	_, err := s.store.Update(ctx, func(d *store.Document) error {
		i, err := d.CouponIndex(code)
		if err != nil {
			return common.NotFound("coupon not found", err)
		}
		c := &d.Coupons[i]
		apply(c, in)
		c.UpdatedAt = s.now().UTC()
		out = *c
		return nil
	})
	if err != nil {
		return store.Coupon{}, err
	}
	return out, nil
}

// Delete removes a coupon.
func (s *Service) Delete(ctx context.Context, code string) error {
	_, err := s.store.Update(ctx, func(d *store.Document) error {
		i, err := d.CouponIndex(code)
		if err != nil {
			return common.NotFound("coupon not found", err)
		}
		d.Coupons = append(d.Coupons[:i], d.Coupons[i+1:]...)
		return nil
	})
	return err
}

// Preview evaluates code against orderValue. price defaults to the order value itself.
// An unknown code is an error; a known but unusable coupon is reported with Valid false.
func (s *Service) Preview(ctx context.Context, code string, orderValue float64, price *pricing.Price) (PreviewResult, error) {
	coupon, err := s.Get(ctx, code)
	if err != nil {
		obs.Inc(obs.CouponPreviewsTotal, "unknown")
		return PreviewResult{}, err
	}
	out := PreviewResult{
		Code:    coupon.Code,
		Summary: s.calc.GenerateCouponSummary(coupon.Coupon, &orderValue, s.now()),
	}
	if check := pricing.ValidateMinimumOrder(orderValue, &coupon.Coupon); check.Shortfall != nil {
		out.Shortfall = check.Shortfall
	}
	if err := (Rule{Coupon: coupon.Coupon}).Validate(s.now(), orderValue); err != nil {
		out.Reason = Reason(err)
		obs.Inc(obs.CouponPreviewsTotal, out.Reason)
		return out, nil
	}
	target := pricing.Amount(orderValue)
	if price != nil {
		target = *price
	}
	res := s.calc.ApplyCouponDiscount(target, &coupon.Coupon)
	out.Valid = true
	out.Discount = &res
	obs.Inc(obs.CouponPreviewsTotal, "valid")
	return out, nil
}

// Redeem validates the coupon for orderValue and counts one use.
func (s *Service) Redeem(ctx context.Context, code string, orderValue float64) (store.Coupon, error) {
	var out store.Coupon
	_, err := s.store.Update(ctx, func(d *store.Document) error {
		i, err := d.CouponIndex(code)
		if err != nil {
			return common.NotFound("coupon not found", err)
		}
		c := &d.Coupons[i]
		if err := (Rule{Coupon: c.Coupon}).Validate(s.now(), orderValue); err != nil {
			return common.Unprocessable("COUPON_NOT_APPLICABLE", err.Error(), err).WithDetails(map[string]any{"reason": Reason(err)})
		}
		c.UsedCount++
		c.UpdatedAt = s.now().UTC()
		out = *c
		return nil
	})
	if err != nil {
		return store.Coupon{}, err
	}
	s.logger.Info().Str("code", out.Code).Int("used", out.UsedCount).Msg("coupon redeemed")
	return out, nil
}

func apply(c *store.Coupon, in CouponInput) {
	c.Description = strings.TrimSpace(in.Description)
	c.DiscountPercent = in.DiscountPercent
	c.MinOrderValue = in.MinOrderValue
	c.ExpiryDate = in.ExpiryDate
	c.MaxUses = in.MaxUses
	c.IsActive = in.IsActive
}

func normaliseCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

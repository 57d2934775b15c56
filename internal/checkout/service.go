package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/glassworks/internal/common"
	"github.com/noah-isme/glassworks/internal/obs"
	"github.com/noah-isme/glassworks/internal/pricing"
	"github.com/noah-isme/glassworks/internal/store"
	"github.com/noah-isme/glassworks/internal/voucher"
)

// Quote modes.
const (
	ModeCoupon = "coupon"
	ModeTiered = "tiered"
)

type documentLoader interface {
	Load(ctx context.Context) (store.Document, error)
}

// Item is one basket entry.
type Item struct {
	Slug     string `json:"slug" validate:"required,max=200"`
	Variant  string `json:"variant" validate:"max=100"`
	Quantity int    `json:"quantity" validate:"min=1,max=100000"`
}

// Input is a quote request.
type Input struct {
	Items      []Item `json:"items" validate:"required,min=1,max=100,dive"`
	CouponCode string `json:"couponCode" validate:"max=32"`
}

// Line is a priced basket entry.
type Line struct {
	Slug          string  `json:"slug"`
	Name          string  `json:"name"`
	Variant       string  `json:"variant,omitempty"`
	Quantity      int     `json:"quantity"`
	ListPrice     float64 `json:"listPrice"`
	UnitPrice     float64 `json:"unitPrice"`
	UnitPriceText string  `json:"unitPriceText"`
	LineTotal     float64 `json:"lineTotal"`
	LineTotalText string  `json:"lineTotalText"`
}

// CouponOutcome reports how the requested coupon was treated.
type CouponOutcome struct {
	Code    string `json:"code"`
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// Quote is an order estimate. No order is placed.
type Quote struct {
	Lines        []Line                     `json:"lines"`
	Subtotal     float64                    `json:"subtotal"`
	SubtotalText string                     `json:"subtotalText"`
	Mode         string                     `json:"mode"`
	Coupon       *CouponOutcome             `json:"coupon,omitempty"`
	Bulk         *pricing.BulkResult        `json:"bulk,omitempty"`
	Tiered       *pricing.TieredResult      `json:"tiered,omitempty"`
	MinimumOrder *pricing.MinimumOrderCheck `json:"minimumOrder,omitempty"`
	Discount     float64                    `json:"discount"`
	DiscountText string                     `json:"discountText"`
	Total        float64                    `json:"total"`
	TotalText    string                     `json:"totalText"`
	Badge        string                     `json:"badge,omitempty"`
}

// Service prices enquiry baskets.
type Service struct {
	Store      documentLoader
	Calculator pricing.Calculator
	Tiers      []pricing.Tier
	Now        func() time.Time
}

// Quote prices in.Items. A usable coupon applies its percentage to every line; otherwise the
// tier schedule applies to the subtotal.
func (s *Service) Quote(ctx context.Context, in Input) (Quote, error) {
	if s == nil || s.Store == nil {
		return Quote{}, errors.New("checkout service not configured")
	}
	if err := common.ValidateStruct(in); err != nil {
		return Quote{}, err
	}
	doc, err := s.Store.Load(ctx)
	if err != nil {
		return Quote{}, fmt.Errorf("load catalog: %w", err)
	}
	ex := s.Calculator.Extractor

	q := Quote{Lines: make([]Line, 0, len(in.Items))}
	lineItems := make([]pricing.LineItem, 0, len(in.Items))
	for i, it := range in.Items {
		line, err := s.priceLine(&doc, it)
		if err != nil {
			return Quote{}, err.WithDetails(map[string]any{"item": i, "slug": it.Slug})
		}
		q.Lines = append(q.Lines, line)
		q.Subtotal += line.LineTotal
		lineItems = append(lineItems, pricing.LineItem{Price: pricing.Amount(line.UnitPrice), Quantity: line.Quantity})
	}
	q.SubtotalText = ex.FormatPrice(q.Subtotal)

	if code := strings.TrimSpace(in.CouponCode); code != "" {
		outcome, coupon := s.resolveCoupon(&doc, code, q.Subtotal)
		q.Coupon = outcome
		if coupon != nil {
			check := pricing.ValidateMinimumOrder(q.Subtotal, coupon)
			q.MinimumOrder = &check
		}
		if outcome.Applied {
			bulk := s.Calculator.CalculateBulkDiscount(lineItems, coupon.DiscountPercent)
			q.Mode = ModeCoupon
			q.Bulk = &bulk
			q.Discount = bulk.TotalSavings
			q.Total = bulk.TotalDiscounted
			q.Badge = pricing.DiscountBadge(coupon.DiscountPercent)
			return s.finish(q), nil
		}
	}

	tiered := s.Calculator.CalculateTieredDiscount(q.Subtotal, s.Tiers)
	q.Mode = ModeTiered
	q.Tiered = &tiered
	q.Discount = tiered.Discount.DiscountAmount
	q.Total = tiered.Discount.DiscountedPrice
	if tiered.AppliedTier != nil {
		q.Badge = pricing.DiscountBadge(tiered.AppliedTier.DiscountPercent)
	}
	return s.finish(q), nil
}

func (s *Service) finish(q Quote) Quote {
	ex := s.Calculator.Extractor
	q.DiscountText = ex.FormatPrice(q.Discount)
	q.TotalText = ex.FormatPrice(q.Total)
	obs.Inc(obs.QuotesTotal, q.Mode)
	return q
}

func (s *Service) priceLine(doc *store.Document, it Item) (Line, *common.AppError) {
	ex := s.Calculator.Extractor
	p, err := doc.ProductBySlug(strings.TrimSpace(it.Slug))
	if err != nil {
		return Line{}, common.BadRequest("unknown product", err)
	}
	line := Line{Slug: p.Slug, Name: p.Name, Quantity: it.Quantity}
	if label := strings.TrimSpace(it.Variant); label != "" {
		found := false
		for _, v := range p.Variants {
			if strings.EqualFold(v.Label, label) {
				line.Variant = v.Label
				line.ListPrice = ex.ExtractSinglePrice(v.Price)
				found = true
				break
			}
		}
		if !found {
			return Line{}, common.BadRequest("unknown variant", nil)
		}
	} else if r, ok := ex.ExtractPriceRange(p.Price); ok {
		line.ListPrice = r.Min
	}
	if line.ListPrice <= 0 {
		return Line{}, common.BadRequest("product has no listed price", nil)
	}
	line.UnitPrice = s.Calculator.ApplyDiscount(pricing.Amount(line.ListPrice), p.DiscountPercent).DiscountedPrice
	line.UnitPriceText = ex.FormatPrice(line.UnitPrice)
	line.LineTotal = line.UnitPrice * float64(line.Quantity)
	line.LineTotalText = ex.FormatPrice(line.LineTotal)
	return line, nil
}

func (s *Service) resolveCoupon(doc *store.Document, code string, subtotal float64) (*CouponOutcome, *pricing.Coupon) {
	i, err := doc.CouponIndex(code)
	if err != nil {
		return &CouponOutcome{Code: strings.ToUpper(code), Reason: "not_found"}, nil
	}
	coupon := doc.Coupons[i].Coupon
	now := s.now()
	outcome := &CouponOutcome{
		Code:    coupon.Code,
		Summary: s.Calculator.GenerateCouponSummary(coupon, &subtotal, now),
	}
	if err := (voucher.Rule{Coupon: coupon}).Validate(now, subtotal); err != nil {
		outcome.Reason = voucher.Reason(err)
		return outcome, &coupon
	}
	outcome.Applied = true
	return outcome, &coupon
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

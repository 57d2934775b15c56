package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/glassworks/internal/common"
	"github.com/noah-isme/glassworks/internal/obs"
	"github.com/noah-isme/glassworks/internal/pricing"
	"github.com/noah-isme/glassworks/internal/store"
)

type documentStore interface {
	Load(ctx context.Context) (store.Document, error)
	Update(ctx context.Context, fn func(*store.Document) error) (store.Document, error)
}

type writeNotifier interface {
	OnWrite(fn func(context.Context, store.Document))
}

// Service serves the public catalog and applies admin edits to the document.
type Service struct {
	store  documentStore
	cache  *Cache
	calc   pricing.Calculator
	logger zerolog.Logger
	now    func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store      documentStore
	Cache      *Cache
	Calculator pricing.Calculator
	Logger     zerolog.Logger
	Now        func() time.Time
}

// ListFilter narrows the public product list.
type ListFilter struct {
	Category string
	Query    string
	Featured *bool
	InStock  *bool
}

// VariantView is a variant with its price after the product discount.
type VariantView struct {
	store.Variant
	DisplayPrice string `json:"displayPrice"`
}

// ProductView is a product decorated for display.
type ProductView struct {
	store.Product
	Variants     []VariantView       `json:"variants,omitempty"`
	CategorySlug string              `json:"categorySlug,omitempty"`
	CategoryName string              `json:"categoryName,omitempty"`
	PriceRange   *pricing.PriceRange `json:"priceRange,omitempty"`
	DisplayPrice string              `json:"displayPrice"`
	Badge        string              `json:"badge,omitempty"`
	HasDiscount  bool                `json:"hasDiscount"`
}

// CategoryProducts is a category together with the products filed under it.
type CategoryProducts struct {
	Category store.Category `json:"category"`
	Products []ProductView  `json:"products"`
}

// NewService constructs a Service. When the store reports writes, every write drops the cache.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	s := &Service{store: cfg.Store, cache: cfg.Cache, calc: cfg.Calculator, logger: cfg.Logger, now: now}
	if n, ok := cfg.Store.(writeNotifier); ok {
		n.OnWrite(func(ctx context.Context, doc store.Document) { s.Invalidate(ctx, doc.Version) })
	}
	return s, nil
}

// ParseListFilter reads category, q, featured and inStock from query values.
func ParseListFilter(values url.Values) (ListFilter, error) {
	filter := ListFilter{
		Category: strings.TrimSpace(values.Get("category")),
		Query:    strings.TrimSpace(values.Get("q")),
	}
	if v := strings.TrimSpace(values.Get("featured")); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return filter, badRequest("featured", "featured must be true or false", err)
		}
		filter.Featured = &b
	}
	if v := strings.TrimSpace(values.Get("inStock")); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return filter, badRequest("inStock", "inStock must be true or false", err)
		}
		filter.InStock = &b
	}
	return filter, nil
}

// ListCategories returns categories ordered by SortOrder, then name.
func (s *Service) ListCategories(ctx context.Context) ([]store.Category, error) {
	var cached []store.Category
	if s.cacheGet(ctx, "categories", &cached) {
		return cached, nil
	}
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	out := sortedCategories(doc.Categories)
	s.cacheSet(ctx, "categories", doc.Version, out)
	return out, nil
}

// ListProducts returns decorated products that match filter.
func (s *Service) ListProducts(ctx context.Context, filter ListFilter) ([]ProductView, error) {
	key := filter.cacheKey()
	var cached []ProductView
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	categoryID := ""
	if filter.Category != "" {
		cat, err := doc.CategoryBySlug(filter.Category)
		if err != nil {
			s.cacheSet(ctx, key, doc.Version, []ProductView{})
			return []ProductView{}, nil
		}
		categoryID = cat.ID
	}
	query := strings.ToLower(filter.Query)
	out := make([]ProductView, 0, len(doc.Products))
	for _, p := range doc.Products {
		if categoryID != "" && p.CategoryID != categoryID {
			continue
		}
		if filter.Featured != nil && p.Featured != *filter.Featured {
			continue
		}
		if filter.InStock != nil && p.InStock != *filter.InStock {
			continue
		}
		if query != "" && !matchesQuery(p, query) {
			continue
		}
		out = append(out, s.decorate(p, &doc))
	}
	s.cacheSet(ctx, key, doc.Version, out)
	return out, nil
}

// ProductDetail returns the decorated product with the given slug.
func (s *Service) ProductDetail(ctx context.Context, slug string) (ProductView, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ProductView{}, badRequest("slug", "slug is required", nil)
	}
	key := "product:" + slug
	var cached ProductView
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}
	doc, err := s.store.Load(ctx)
	if err != nil {
		return ProductView{}, fmt.Errorf("load catalog: %w", err)
	}
	p, err := doc.ProductBySlug(slug)
	if err != nil {
		return ProductView{}, common.NotFound("product not found", err)
	}
	view := s.decorate(p, &doc)
	s.cacheSet(ctx, key, doc.Version, view)
	return view, nil
}

// CategoryProducts returns the category with the given slug and its products.
func (s *Service) CategoryProducts(ctx context.Context, slug string) (CategoryProducts, error) {
	slug = strings.TrimSpace(slug)
	key := "category:" + slug
	var cached CategoryProducts
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}
	doc, err := s.store.Load(ctx)
	if err != nil {
		return CategoryProducts{}, fmt.Errorf("load catalog: %w", err)
	}
	cat, err := doc.CategoryBySlug(slug)
	if err != nil {
		return CategoryProducts{}, common.NotFound("category not found", err)
	}
	out := CategoryProducts{Category: cat, Products: []ProductView{}}
	for _, p := range doc.Products {
		if p.CategoryID == cat.ID {
			out.Products = append(out.Products, s.decorate(p, &doc))
		}
	}
	s.cacheSet(ctx, key, doc.Version, out)
	return out, nil
}

// Invalidate marks version as the latest document and drops all cached public payloads.
func (s *Service) Invalidate(ctx context.Context, version int64) {
	if err := s.cache.SetVersion(ctx, version); err != nil {
		s.logger.Warn().Err(err).Int64("version", version).Msg("catalog cache version bump failed")
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache invalidation failed")
	}
}

func (s *Service) decorate(p store.Product, doc *store.Document) ProductView {
	view := ProductView{Product: p, DisplayPrice: p.Price}
	view.Product.Variants = nil
	if i, err := doc.CategoryIndex(p.CategoryID); err == nil {
		view.CategorySlug = doc.Categories[i].Slug
		view.CategoryName = doc.Categories[i].Name
	}
	if r, ok := s.calc.Extractor.ExtractPriceRange(p.Price); ok {
		view.PriceRange = &r
		view.DisplayPrice = s.calc.Extractor.FormatPriceRange(r)
		if p.DiscountPercent != 0 {
			if dr, ok := s.calc.ApplyDiscountToRange(p.Price, p.DiscountPercent); ok {
				view.DisplayPrice = s.calc.FormatDiscountedPriceRange(dr, true)
			}
		}
	}
	view.Badge = pricing.DiscountBadge(p.DiscountPercent)
	view.HasDiscount = pricing.HasDiscount(view.DisplayPrice)
	for _, v := range p.Variants {
		vv := VariantView{Variant: v, DisplayPrice: v.Price}
		if amount := s.calc.Extractor.ExtractSinglePrice(v.Price); amount > 0 {
			res := s.calc.ApplyDiscount(pricing.Amount(amount), p.DiscountPercent)
			vv.DisplayPrice = s.calc.FormatDiscountedPrice(res.OriginalPrice, res.DiscountedPrice, true)
		}
		view.Variants = append(view.Variants, vv)
	}
	return view
}

func (s *Service) cacheGet(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.GetJSON(ctx, key, dst)
	switch {
	case err != nil:
		obs.Inc(obs.CatalogCacheTotal, "error")
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
		return false
	case ok:
		obs.Inc(obs.CatalogCacheTotal, "hit")
		return true
	default:
		obs.Inc(obs.CatalogCacheTotal, "miss")
		return false
	}
}

func (s *Service) cacheSet(ctx context.Context, key string, version int64, v any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, key, version, v); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
}

func (f ListFilter) cacheKey() string {
	raw := fmt.Sprintf("c=%s|q=%s|f=%s|s=%s", f.Category, strings.ToLower(f.Query), boolKey(f.Featured), boolKey(f.InStock))
	return "products:" + common.Sha256Hex(raw)[:16]
}

func boolKey(b *bool) string {
	if b == nil {
		return "*"
	}
	if *b {
		return "1"
	}
	return "0"
}

func matchesQuery(p store.Product, query string) bool {
	if strings.Contains(strings.ToLower(p.Name), query) || strings.Contains(strings.ToLower(p.Description), query) {
		return true
	}
	for _, v := range p.Variants {
		if strings.Contains(strings.ToLower(v.SKU), query) || strings.Contains(strings.ToLower(v.Label), query) {
			return true
		}
	}
	return false
}

func sortedCategories(in []store.Category) []store.Category {
	out := make([]store.Category, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "y":
		return true, nil
	case "false", "0", "no", "n":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean: %s", value)
	}
}

func badRequest(field, message string, err error) *common.AppError {
	return common.BadRequest(message, err).WithDetails(map[string]any{"field": field})
}

package catalog

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/glassworks/internal/common"
	"github.com/noah-isme/glassworks/internal/obs"
	"github.com/noah-isme/glassworks/internal/pricing"
	"github.com/noah-isme/glassworks/internal/store"
)

// CategoryInput is the admin payload for creating or editing a category.
type CategoryInput struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Slug        string `json:"slug" validate:"omitempty,max=100"`
	Description string `json:"description" validate:"max=2000"`
	Image       string `json:"image" validate:"max=500"`
	SortOrder   int    `json:"sortOrder"`
}

// PricePreview is the admin view of a discount before it is saved.
type PricePreview struct {
	Result  pricing.Result           `json:"result"`
	Range   *pricing.DiscountedRange `json:"range,omitempty"`
	Display string                   `json:"display"`
	Badge   string                   `json:"badge,omitempty"`
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// AdminProducts lists every product, decorated, bypassing the cache.
func (s *Service) AdminProducts(ctx context.Context) ([]ProductView, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProductView, 0, len(doc.Products))
	for _, p := range doc.Products {
		out = append(out, s.decorate(p, &doc))
	}
	return out, nil
}

// UpdatePrice replaces the product's price text. The text must contain at least one amount.
func (s *Service) UpdatePrice(ctx context.Context, id, price string) (ProductView, error) {
	price = strings.TrimSpace(price)
	if _, ok := s.calc.Extractor.ExtractPriceRange(price); !ok {
		return ProductView{}, badRequest("price", "price must contain an amount such as "+s.calc.Extractor.FormatPrice(120), nil)
	}
	return s.updateProduct(ctx, id, func(p *store.Product) error {
		p.Price = price
		return nil
	})
}

// UpdateInventory sets the stock level. InStock follows stock unless given explicitly.
func (s *Service) UpdateInventory(ctx context.Context, id string, stock int, inStock *bool) (ProductView, error) {
	if stock < 0 {
		return ProductView{}, badRequest("stock", "stock cannot be negative", nil)
	}
	return s.updateProduct(ctx, id, func(p *store.Product) error {
		p.Stock = stock
		if inStock != nil {
			p.InStock = *inStock
		} else {
			p.InStock = stock > 0
		}
		return nil
	})
}

// SetDiscount sets the product-level discount percentage.
func (s *Service) SetDiscount(ctx context.Context, id string, percent float64) (ProductView, error) {
	if percent < 0 || percent > 100 {
		return ProductView{}, badRequest("discountPercent", "discountPercent must be between 0 and 100", nil)
	}
	return s.updateProduct(ctx, id, func(p *store.Product) error {
		p.DiscountPercent = percent
		return nil
	})
}

// PreviewPrice computes what a discount would do to price without saving anything.
func (s *Service) PreviewPrice(price pricing.Price, percent float64) PricePreview {
	out := PricePreview{Result: s.calc.ApplyDiscount(price, percent), Badge: pricing.DiscountBadge(percent)}
	if price.IsText {
		if dr, ok := s.calc.ApplyDiscountToRange(price.Text, percent); ok && dr.Original.Min != dr.Original.Max {
			out.Range = &dr
			out.Display = s.calc.FormatDiscountedPriceRange(dr, true)
			obs.Inc(obs.PricePreviewsTotal, "range")
			return out
		}
	}
	out.Display = s.calc.FormatDiscountedPrice(out.Result.OriginalPrice, out.Result.DiscountedPrice, true)
	obs.Inc(obs.PricePreviewsTotal, "single")
	return out
}

// CreateCategory adds a category. The slug defaults to one derived from the name.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (store.Category, error) {
	if err := common.ValidateStruct(in); err != nil {
		return store.Category{}, err
	}
	cat := store.Category{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Slug:        slugOrName(in.Slug, in.Name),
		Description: strings.TrimSpace(in.Description),
		Image:       strings.TrimSpace(in.Image),
		SortOrder:   in.SortOrder,
	}
	if cat.Slug == "" {
		return store.Category{}, badRequest("slug", "slug cannot be empty", nil)
	}
	_, err := s.store.Update(ctx, func(d *store.Document) error {
		if _, err := d.CategoryBySlug(cat.Slug); err == nil {
			return common.Conflict("category slug already exists", nil).WithDetails(map[string]any{"slug": cat.Slug})
		}
		d.Categories = append(d.Categories, cat)
		return nil
	})
	if err != nil {
		return store.Category{}, err
	}
	return cat, nil
}

// UpdateCategory edits a category in place.
func (s *Service) UpdateCategory(ctx context.Context, id string, in CategoryInput) (store.Category, error) {
	if err := common.ValidateStruct(in); err != nil {
		return store.Category{}, err
	}
	var out store.Category
	_, err := s.store.Update(ctx, func(d *store.Document) error {
		i, err := d.CategoryIndex(id)
		if err != nil {
			return common.NotFound("category not found", err)
		}
		slug := slugOrName(in.Slug, in.Name)
		if existing, err := d.CategoryBySlug(slug); err == nil && existing.ID != id {
			return common.Conflict("category slug already exists", nil).WithDetails(map[string]any{"slug": slug})
		}
		c := &d.Categories[i]
		c.Name = strings.TrimSpace(in.Name)
		c.Slug = slug
		c.Description = strings.TrimSpace(in.Description)
		c.Image = strings.TrimSpace(in.Image)
		c.SortOrder = in.SortOrder
		out = *c
		return nil
	})
	if err != nil {
		return store.Category{}, err
	}
	return out, nil
}

// DeleteCategory removes a category that no product references.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	_, err := s.store.Update(ctx, func(d *store.Document) error {
		i, err := d.CategoryIndex(id)
		if err != nil {
			return common.NotFound("category not found", err)
		}
		count := 0
		for _, p := range d.Products {
			if p.CategoryID == id {
				count++
			}
		}
		if count > 0 {
			return common.Conflict("category still has products", nil).WithDetails(map[string]any{"products": count})
		}
		d.Categories = append(d.Categories[:i], d.Categories[i+1:]...)
		return nil
	})
	return err
}

func (s *Service) updateProduct(ctx context.Context, id string, fn func(*store.Product) error) (ProductView, error) {
	var view ProductView
	_, err := s.store.Update(ctx, func(d *store.Document) error {
		i, err := d.ProductIndex(id)
		if err != nil {
			return common.NotFound("product not found", err)
		}
		if err := fn(&d.Products[i]); err != nil {
			return err
		}
		d.Products[i].UpdatedAt = s.now().UTC()
		view = s.decorate(d.Products[i], d)
		return nil
	})
	if err != nil {
		return ProductView{}, err
	}
	return view, nil
}

func slugOrName(slug, name string) string {
	base := strings.TrimSpace(slug)
	if base == "" {
		base = name
	}
	return strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(base), "-"), "-")
}

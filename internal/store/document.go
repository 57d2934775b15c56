package store

import (
	"errors"
	"strings"
	"time"

	"github.com/noah-isme/glassworks/internal/pricing"
)

// ErrNotFound is returned when a lookup by id, slug or code has no match.
var ErrNotFound = errors.New("store: not found")

// Document is the whole catalog as persisted in the data file.
type Document struct {
	Version    int64      `json:"version"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	Categories []Category `json:"categories"`
	Products   []Product  `json:"products"`
	Coupons    []Coupon   `json:"coupons"`
}

// Category groups products on the public site.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	SortOrder   int    `json:"sortOrder"`
}

// Variant is a purchasable size or capacity of a product.
type Variant struct {
	Label string `json:"label"`
	Price string `json:"price"`
	SKU   string `json:"sku,omitempty"`
}

// Product is a catalog entry. Price is display text such as "₹120.00 - ₹450.00".
type Product struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Slug            string    `json:"slug"`
	CategoryID      string    `json:"categoryId"`
	Description     string    `json:"description,omitempty"`
	Price           string    `json:"price"`
	Variants        []Variant `json:"variants,omitempty"`
	Images          []string  `json:"images,omitempty"`
	Stock           int       `json:"stock"`
	InStock         bool      `json:"inStock"`
	DiscountPercent float64   `json:"discountPercent,omitempty"`
	Featured        bool      `json:"featured,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Coupon is a stored coupon; the embedded fields are what the pricing calculator reads.
type Coupon struct {
	pricing.Coupon
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (d *Document) normalise() {
	if d.Categories == nil {
		d.Categories = []Category{}
	}
	if d.Products == nil {
		d.Products = []Product{}
	}
	if d.Coupons == nil {
		d.Coupons = []Coupon{}
	}
}

// ProductIndex returns the position of the product with the given id.
func (d *Document) ProductIndex(id string) (int, error) {
	for i := range d.Products {
		if d.Products[i].ID == id {
			return i, nil
		}
	}
	return -1, ErrNotFound
}

// ProductBySlug returns the product with the given slug.
func (d *Document) ProductBySlug(slug string) (Product, error) {
	for _, p := range d.Products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return Product{}, ErrNotFound
}

// CategoryIndex returns the position of the category with the given id.
func (d *Document) CategoryIndex(id string) (int, error) {
	for i := range d.Categories {
		if d.Categories[i].ID == id {
			return i, nil
		}
	}
	return -1, ErrNotFound
}

// CategoryBySlug returns the category with the given slug.
func (d *Document) CategoryBySlug(slug string) (Category, error) {
	for _, c := range d.Categories {
		if c.Slug == slug {
			return c, nil
		}
	}
	return Category{}, ErrNotFound
}

// CouponIndex returns the position of the coupon with the given code, ignoring case.
func (d *Document) CouponIndex(code string) (int, error) {
	code = strings.TrimSpace(code)
	for i := range d.Coupons {
		if strings.EqualFold(d.Coupons[i].Code, code) {
			return i, nil
		}
	}
	return -1, ErrNotFound
}

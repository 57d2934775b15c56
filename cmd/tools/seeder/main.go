package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/noah-isme/glassworks/internal/obs"
	"github.com/noah-isme/glassworks/internal/pricing"
	"github.com/noah-isme/glassworks/internal/store"
)

func main() {
	_ = godotenv.Load()

	dataFile := flag.String("data", envOrDefault("DATA_FILE", "data/catalog.json"), "catalog document path")
	force := flag.Bool("force", false, "overwrite a catalog that already has products")
	flag.Parse()

	logger := obs.NewLogger(envOrDefault("OBS_LOG_FORMAT", "console"), envOrDefault("OBS_LOG_LEVEL", "info")).
		With().Str("component", "seeder").Logger()

	ctx := context.Background()
	st, err := store.New(store.Config{Path: *dataFile})
	if err != nil {
		logger.Fatal().Err(err).Msg("open catalog store")
	}
	current, err := st.Load(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("load catalog")
	}
	if len(current.Products) > 0 && !*force {
		logger.Warn().Int("products", len(current.Products)).Msg("catalog already seeded; pass -force to overwrite")
		return
	}

	doc, err := st.Replace(ctx, sampleCatalog(time.Now().UTC()))
	if err != nil {
		logger.Fatal().Err(err).Msg("write catalog")
	}
	logger.Info().
		Str("path", st.Path()).
		Int("categories", len(doc.Categories)).
		Int("products", len(doc.Products)).
		Int("coupons", len(doc.Coupons)).
		Int64("version", doc.Version).
		Msg("seeding completed")
}

type seedProduct struct {
	name     string
	category string
	price    string
	variants []store.Variant
	stock    int
	featured bool
}

func sampleCatalog(now time.Time) store.Document {
	categories := []store.Category{
		{Name: "Beakers", Description: "Borosilicate beakers with printed graduations."},
		{Name: "Flasks", Description: "Conical, round and volumetric flasks."},
		{Name: "Test Tubes", Description: "Rimless and rimmed tubes in common diameters."},
		{Name: "Pipettes", Description: "Graduated and volumetric pipettes."},
	}
	bySlug := map[string]string{}
	for i := range categories {
		categories[i].ID = uuid.NewString()
		categories[i].Slug = slugify(categories[i].Name)
		categories[i].SortOrder = i
		bySlug[categories[i].Slug] = categories[i].ID
	}

	seeds := []seedProduct{
		{name: "Low Form Beaker", category: "beakers", price: "₹120.00 - ₹450.00", stock: 140, featured: true, variants: []store.Variant{
			{Label: "100 ml", Price: "₹120.00", SKU: "BK-LF-100"},
			{Label: "250 ml", Price: "₹180.00", SKU: "BK-LF-250"},
			{Label: "1000 ml", Price: "₹450.00", SKU: "BK-LF-1000"},
		}},
		{name: "Tall Form Beaker", category: "beakers", price: "₹210.00", stock: 60},
		{name: "Conical Flask", category: "flasks", price: "₹150.00 - ₹620.00", stock: 85, featured: true, variants: []store.Variant{
			{Label: "250 ml", Price: "₹150.00", SKU: "FL-CN-250"},
			{Label: "500 ml", Price: "₹280.00", SKU: "FL-CN-500"},
			{Label: "2000 ml", Price: "₹620.00", SKU: "FL-CN-2000"},
		}},
		{name: "Volumetric Flask Class A", category: "flasks", price: "₹1250.00", stock: 12},
		{name: "Rimless Test Tube", category: "test-tubes", price: "₹8.50 per piece", stock: 4000},
		{name: "Graduated Pipette", category: "pipettes", price: "₹95.00 - ₹140.00", stock: 0},
	}

	products := make([]store.Product, 0, len(seeds))
	for _, s := range seeds {
		slug := slugify(s.name)
		products = append(products, store.Product{
			ID:         uuid.NewString(),
			Name:       s.name,
			Slug:       slug,
			CategoryID: bySlug[s.category],
			Price:      s.price,
			Variants:   s.variants,
			Images:     []string{"/images/" + slug + ".jpg"},
			Stock:      s.stock,
			InStock:    s.stock > 0,
			Featured:   s.featured,
			UpdatedAt:  now,
		})
	}

	expiry := now.AddDate(0, 6, 0)
	maxUses := 500
	coupons := []store.Coupon{
		{Coupon: pricing.Coupon{Code: "LAB10", DiscountPercent: 10, MinOrderValue: 1000}, Description: "10% off orders above ₹1,000", CreatedAt: now, UpdatedAt: now},
		{Coupon: pricing.Coupon{Code: "SCHOOL15", DiscountPercent: 15, MinOrderValue: 5000, ExpiryDate: &expiry, MaxUses: &maxUses}, Description: "Institutional orders", CreatedAt: now, UpdatedAt: now},
	}

	return store.Document{Categories: categories, Products: products, Coupons: coupons}
}

func slugify(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/glassworks/internal/pricing"
)

func TestSampleCatalogIsConsistent(t *testing.T) {
	doc := sampleCatalog(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.Len(t, doc.Categories, 4)
	require.NotEmpty(t, doc.Products)

	categories := map[string]bool{}
	for _, c := range doc.Categories {
		categories[c.ID] = true
	}
	ex := pricing.Extractor{}
	slugs := map[string]bool{}
	for _, p := range doc.Products {
		require.True(t, categories[p.CategoryID], p.Slug)
		require.False(t, slugs[p.Slug], "duplicate slug %s", p.Slug)
		slugs[p.Slug] = true
		_, ok := ex.ExtractPriceRange(p.Price)
		require.True(t, ok, "price %q", p.Price)
		require.Equal(t, p.Stock > 0, p.InStock)
	}
	require.True(t, slugs["conical-flask"])
	require.Equal(t, "LAB10", doc.Coupons[0].Code)
}

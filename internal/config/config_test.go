package config

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/glassworks/internal/pricing"
)

func TestLoadForTestsDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"REDIS_URL":           "redis://localhost:6379/0",
		"JWT_SECRET":          "secret",
		"ADMIN_PASSWORD_HASH": "$argon2id$v=19$m=65536,t=1,p=2$c2FsdA$aGFzaA",
		"PORT":                "",
		"QUOTE_TIERS":         "",
		"COOKIE_SAMESITE":     "",
		"CATALOG_CACHE_TTL":   "",
	})
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "₹", cfg.CurrencySymbol)
	require.Equal(t, http.SameSiteLaxMode, cfg.CookieSameSite)
	require.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
	require.Equal(t, DefaultQuoteTiers(), cfg.QuoteTiers)
}

func TestLoadRequiresSecrets(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"REDIS_URL":           "redis://localhost:6379/0",
		"JWT_SECRET":          "secret",
		"ADMIN_PASSWORD_HASH": "",
	})
	require.EqualError(t, err, "ADMIN_PASSWORD_HASH is required")

	_, err = LoadForTests(map[string]string{"REDIS_URL": "", "JWT_SECRET": "x", "ADMIN_PASSWORD_HASH": "y"})
	require.EqualError(t, err, "REDIS_URL is required")
}

func TestParseTiers(t *testing.T) {
	tiers := parseTiers("100:5, 500:15,bogus,200:10, x:3")
	require.Equal(t, []pricing.Tier{
		{MinValue: 500, DiscountPercent: 15},
		{MinValue: 200, DiscountPercent: 10},
		{MinValue: 100, DiscountPercent: 5},
	}, tiers)
	require.Nil(t, parseTiers(""))
}

func TestParseHelpers(t *testing.T) {
	require.Equal(t, 30*time.Second, parseDuration("nope", "30s"))
	require.Equal(t, 7, parseInt(" 7 ", 1))
	require.Equal(t, 1, parseInt("seven", 1))
	require.True(t, parseBoolDefault("", true))
	require.False(t, parseBoolDefault("off", true))
	require.Equal(t, []string{"a", "b"}, splitAndTrim(" a, ,b "))
}

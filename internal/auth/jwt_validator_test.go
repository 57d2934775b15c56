package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

func adminToken(t *testing.T, edit func(*jwt.Builder) *jwt.Builder) jwt.Token {
	t.Helper()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b := jwt.NewBuilder().
		Issuer("glassworks-api").
		Audience([]string{"glassworks-admin"}).
		Subject("admin").
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(8 * time.Hour))
	if edit != nil {
		b = edit(b)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	return tok
}

func TestTokenValidator(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 30, 0, time.UTC)
	v := TokenValidator{
		Issuer:    "glassworks-api",
		Audience:  "glassworks-admin",
		Subject:   "admin",
		ClockSkew: time.Second,
		Algorithm: jwa.HS256,
	}

	cases := []struct {
		name string
		edit func(*jwt.Builder) *jwt.Builder
		alg  jwa.SignatureAlgorithm
		at   time.Time
		ok   bool
	}{
		{name: "valid session", alg: jwa.HS256, at: now, ok: true},
		{name: "foreign issuer", alg: jwa.HS256, at: now,
			edit: func(b *jwt.Builder) *jwt.Builder { return b.Issuer("storefront") }},
		{name: "other audience", alg: jwa.HS256, at: now,
			edit: func(b *jwt.Builder) *jwt.Builder { return b.Audience([]string{"public"}) }},
		{name: "renamed admin", alg: jwa.HS256, at: now,
			edit: func(b *jwt.Builder) *jwt.Builder { return b.Subject("former-admin") }},
		{name: "session expired", alg: jwa.HS256, at: now.Add(9 * time.Hour)},
		{name: "not yet valid", alg: jwa.HS256, at: now.Add(-time.Hour)},
		{name: "rs256 header", alg: jwa.RS256, at: now},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(adminToken(t, tc.edit), tc.alg, tc.at)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
		})
	}
}

func TestTokenValidatorSentinels(t *testing.T) {
	v := TokenValidator{Algorithm: jwa.HS256}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.ErrorIs(t, v.Validate(nil, jwa.HS256, now), ErrNilToken)
	require.ErrorIs(t, v.Validate(adminToken(t, nil), "", now), ErrAlgorithm)
	require.ErrorIs(t, v.Validate(adminToken(t, nil), jwa.HS512, now), ErrAlgorithm)
}

func TestTokenValidatorRequiresExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tok, err := jwt.NewBuilder().Issuer("glassworks-api").Subject("admin").IssuedAt(now).Build()
	require.NoError(t, err)

	require.Error(t, TokenValidator{Algorithm: jwa.HS256}.Validate(tok, jwa.HS256, now))
}

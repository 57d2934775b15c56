package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var (
	ErrNilToken  = errors.New("auth: token is nil")
	ErrAlgorithm = errors.New("auth: unexpected token algorithm")
)

// TokenValidator checks the claims of an admin access token once its signature is verified.
// A non-empty Subject pins tokens to the configured admin, so renaming the admin ends
// outstanding sessions.
type TokenValidator struct {
	Issuer    string
	Audience  string
	Subject   string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

// Validate checks alg against the configured algorithm, then the claims at now.
// sub and exp are always required.
func (v TokenValidator) Validate(tok jwt.Token, alg jwa.SignatureAlgorithm, now time.Time) error {
	switch {
	case tok == nil:
		return ErrNilToken
	case alg == "":
		return fmt.Errorf("%w: missing", ErrAlgorithm)
	case v.Algorithm != "" && alg != v.Algorithm:
		return fmt.Errorf("%w: %s", ErrAlgorithm, alg)
	}
	return jwt.Validate(tok, v.options(now)...)
}

func (v TokenValidator) options(now time.Time) []jwt.ValidateOption {
	opts := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithRequiredClaim(jwt.SubjectKey),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
	}
	if v.ClockSkew > 0 {
		opts = append(opts, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	for _, c := range []struct {
		value string
		opt   func(string) jwt.ValidateOption
	}{
		{v.Issuer, jwt.WithIssuer},
		{v.Audience, jwt.WithAudience},
		{v.Subject, jwt.WithSubject},
	} {
		if c.value != "" {
			opts = append(opts, c.opt(c.value))
		}
	}
	return opts
}

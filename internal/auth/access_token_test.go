package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/glassworks/internal/common"
	"github.com/noah-isme/glassworks/internal/ratelimit"
)

var testParams = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func newTestService(t *testing.T, throttle Throttle, limit int) *Service {
	t.Helper()
	hash, err := argon2id.CreateHash("correct horse", testParams)
	require.NoError(t, err)
	svc, err := NewService(Config{
		Username:       "admin",
		PasswordHash:   hash,
		Secret:         "super-secret-key",
		AccessTokenTTL: time.Hour,
		Throttle:       throttle,
		LoginMax:       limit,
		LoginWindow:    time.Minute,
		Logger:         zerolog.Nop(),
	})
	require.NoError(t, err)
	return svc
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, status, appErr.HTTPStatus)
}

func TestLoginIssuesParsableToken(t *testing.T) {
	svc := newTestService(t, nil, 0)
	res, err := svc.Login(context.Background(), " admin ", "correct horse", "127.0.0.1")
	require.NoError(t, err)
	require.Equal(t, "admin", res.Admin.Username)
	require.NotEmpty(t, res.CSRFToken)

	subject, err := svc.ParseAccessToken(res.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "admin", subject)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t, nil, 0)
	_, err := svc.Login(context.Background(), "admin", "wrong", "127.0.0.1")
	requireStatus(t, err, http.StatusUnauthorized)
	_, err = svc.Login(context.Background(), "root", "correct horse", "127.0.0.1")
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestLoginThrottledPerIP(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := newTestService(t, ratelimit.Limiter{Client: client, Prefix: "rl:"}, 2)
	ctx := context.Background()
	_, err = svc.Login(ctx, "admin", "wrong", "10.0.0.1")
	requireStatus(t, err, http.StatusUnauthorized)
	_, err = svc.Login(ctx, "admin", "wrong", "10.0.0.1")
	requireStatus(t, err, http.StatusUnauthorized)
	_, err = svc.Login(ctx, "admin", "correct horse", "10.0.0.1")
	requireStatus(t, err, http.StatusTooManyRequests)

	_, err = svc.Login(ctx, "admin", "correct horse", "10.0.0.2")
	require.NoError(t, err)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	svc := newTestService(t, nil, 0)
	issued := time.Now().Add(-2 * time.Hour)
	svc.WithNow(func() time.Time { return issued })
	token, _, err := svc.signAccessToken("admin")
	require.NoError(t, err)

	svc.WithNow(time.Now)
	_, err = svc.ParseAccessToken(token)
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestParseAccessTokenRejectsAlgorithmMismatch(t *testing.T) {
	svc := newTestService(t, nil, 0)
	now := time.Now()
	built, err := jwt.NewBuilder().
		Subject("admin").
		Issuer(svc.issuer).
		Audience([]string{svc.audience}).
		IssuedAt(now).
		Expiration(now.Add(time.Minute)).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(built, jwt.WithKey(jwa.HS384, svc.secret))
	require.NoError(t, err)
	_, err = svc.ParseAccessToken(string(signed))
	require.Error(t, err)
}

func TestParseAccessTokenRejectsWrongAudience(t *testing.T) {
	svc := newTestService(t, nil, 0)
	now := time.Now()
	built, err := jwt.NewBuilder().
		Subject("admin").
		Issuer(svc.issuer).
		Audience([]string{"someone-else"}).
		IssuedAt(now).
		Expiration(now.Add(time.Minute)).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(built, jwt.WithKey(jwa.HS256, svc.secret))
	require.NoError(t, err)
	_, err = svc.ParseAccessToken(string(signed))
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestNewServiceRequiresSettings(t *testing.T) {
	_, err := NewService(Config{Username: "admin", Secret: "x"})
	require.Error(t, err)
	_, err = NewService(Config{PasswordHash: "h", Secret: "x"})
	require.Error(t, err)
	_, err = NewService(Config{Username: "admin", PasswordHash: "h"})
	require.Error(t, err)
}

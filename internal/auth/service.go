package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/rs/zerolog"

	"github.com/noah-isme/glassworks/internal/common"
)

const (
	defaultAccessTTL = 8 * time.Hour
	defaultIssuer    = "glassworks-api"
	defaultAudience  = "glassworks-admin"
)

// Throttle counts attempts per key within a sliding window. ratelimit.Limiter satisfies it.
type Throttle interface {
	Allow(ctx context.Context, key string, window time.Duration, limit int) (bool, int, time.Time, error)
}

// Service authenticates the single configured admin account and issues access tokens.
type Service struct {
	username     string
	passwordHash string
	secret       []byte
	accessTTL    time.Duration
	now          func() time.Time
	signer       jwa.SignatureAlgorithm
	validator    TokenValidator
	issuer       string
	audience     string
	clockSkew    time.Duration

	throttle    Throttle
	loginMax    int
	loginWindow time.Duration
	logger      zerolog.Logger
}

// Config configures the auth service.
type Config struct {
	Username       string
	PasswordHash   string
	Secret         string
	AccessTokenTTL time.Duration
	Issuer         string
	Audience       string
	ClockSkew      time.Duration
	Throttle       Throttle
	LoginMax       int
	LoginWindow    time.Duration
	Logger         zerolog.Logger
}

// Admin is the authenticated principal.
type Admin struct {
	Username string `json:"username"`
}

// LoginResult bundles token material returned after a successful login.
type LoginResult struct {
	Admin        Admin     `json:"admin"`
	AccessToken  string    `json:"access_token"`
	AccessExpiry time.Time `json:"access_expires_at"`
	CSRFToken    string    `json:"csrf_token"`
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		return nil, errors.New("auth: username is required")
	}
	hash := strings.TrimSpace(cfg.PasswordHash)
	if hash == "" {
		return nil, errors.New("auth: password hash is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultIssuer
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = defaultAudience
	}
	clockSkew := max(cfg.ClockSkew, 0)

	return &Service{
		username:     username,
		passwordHash: hash,
		secret:       []byte(secret),
		accessTTL:    accessTTL,
		now:          time.Now,
		signer:       jwa.HS256,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			Subject:   username,
			ClockSkew: clockSkew,
			Algorithm: jwa.HS256,
		},
		issuer:      issuer,
		audience:    audience,
		clockSkew:   clockSkew,
		throttle:    cfg.Throttle,
		loginMax:    cfg.LoginMax,
		loginWindow: cfg.LoginWindow,
		logger:      cfg.Logger,
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Login checks the credentials and issues an access token. Attempts are throttled per client IP.
func (s *Service) Login(ctx context.Context, username, password, ip string) (LoginResult, error) {
	if err := s.checkThrottle(ctx, ip); err != nil {
		return LoginResult{}, err
	}
	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(s.username)) == 1
	passOK, err := argon2id.ComparePasswordAndHash(password, s.passwordHash)
	if err != nil {
		s.logger.Error().Err(err).Msg("admin password hash unreadable")
		passOK = false
	}
	if !userOK || !passOK {
		s.logger.Warn().Str("ip", ip).Msg("admin login rejected")
		return LoginResult{}, common.NewAppError("INVALID_CREDENTIALS", "invalid username or password", http.StatusUnauthorized, nil)
	}

	token, expiresAt, err := s.signAccessToken(s.username)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign access token: %w", err)
	}
	csrf, err := generateToken(32)
	if err != nil {
		return LoginResult{}, fmt.Errorf("csrf token: %w", err)
	}
	s.logger.Info().Str("admin", s.username).Str("ip", ip).Msg("admin login")
	return LoginResult{
		Admin:        Admin{Username: s.username},
		AccessToken:  token,
		AccessExpiry: expiresAt,
		CSRFToken:    csrf,
	}, nil
}

func (s *Service) checkThrottle(ctx context.Context, ip string) error {
	if s.throttle == nil || s.loginMax <= 0 {
		return nil
	}
	allowed, _, reset, err := s.throttle.Allow(ctx, "login:"+ip, s.loginWindow, s.loginMax)
	if err != nil {
		s.logger.Warn().Err(err).Msg("login throttle unavailable")
		return nil
	}
	if !allowed {
		retry := int(max(reset.Sub(s.now()).Seconds(), 0))
		return common.NewAppError("TOO_MANY_ATTEMPTS", "too many login attempts, try again later", http.StatusTooManyRequests, nil).
			WithDetails(map[string]any{"retry_after_seconds": retry})
	}
	return nil
}

// Me returns the admin named by a validated token subject.
func (s *Service) Me(username string) (Admin, error) {
	if username != s.username {
		return Admin{}, common.NewAppError("UNAUTHORIZED", "unknown admin", http.StatusUnauthorized, nil)
	}
	return Admin{Username: username}, nil
}

// ParseAccessToken validates token and returns its subject.
func (s *Service) ParseAccessToken(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", unauthorized("missing token", nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return "", unauthorized("invalid token", err)
	}
	if s.validator.Algorithm != "" && algorithm != s.validator.Algorithm {
		return "", unauthorized("invalid token", fmt.Errorf("%w: %s", ErrAlgorithm, algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret), jwt.WithValidate(false))
	if err != nil {
		return "", unauthorized("invalid token", err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return "", unauthorized("invalid token", err)
	}
	return parsed.Subject(), nil
}

func unauthorized(message string, err error) *common.AppError {
	return common.NewAppError("UNAUTHORIZED", message, http.StatusUnauthorized, err)
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) != 1 {
		return "", errors.New("auth: token must carry exactly one signature")
	}
	headers := signatures[0].ProtectedHeaders()
	if headers == nil {
		return "", errors.New("auth: token missing protected headers")
	}
	alg := headers.Algorithm()
	switch alg {
	case "":
		return "", errors.New("auth: token missing algorithm")
	case jwa.NoSignature:
		return "", errors.New("auth: token uses none algorithm")
	}
	return alg, nil
}

func (s *Service) signAccessToken(subject string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	token, err := jwt.NewBuilder().
		Subject(subject).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.clockSkew)).
		Expiration(expiresAt).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

func generateToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

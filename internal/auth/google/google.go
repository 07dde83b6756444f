// Package google resolves a Google credential, either an ID token or an
// OAuth access token, into a verified identity.
package google

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/quickfix/pkg/jwtx"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const (
	DefaultJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
	DefaultTimeout = 10 * time.Second

	clockSkew = 30 * time.Second
)

// Issuers Google uses for ID tokens.
var Issuers = []string{"accounts.google.com", "https://accounts.google.com"}

var (
	ErrInvalidToken     = errors.New("google: invalid token")
	ErrEmailNotVerified = errors.New("google: email not verified")
	ErrUnavailable      = errors.New("google: provider unavailable")
)

// Identity is what a verified Google credential tells us about the user.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

type Config struct {
	// ClientID is the OAuth client the ID tokens must be issued to.
	ClientID string

	// JWKSURL defaults to Google's published certs.
	JWKSURL string

	// UserinfoEndpoint overrides the base URL of the userinfo API.
	UserinfoEndpoint string

	// Timeout bounds every call to Google. Defaults to 10s.
	Timeout time.Duration

	// HTTPClient is used for JWKS fetches.
	HTTPClient *http.Client

	// Now is the clock for token validation; nil means time.Now.
	Now func() time.Time
}

// Client verifies Google credentials.
type Client struct {
	verifier         *jwtx.RS256Verifier
	clientID         string
	userinfoEndpoint string
	timeout          time.Duration
}

// New builds a client from cfg.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = DefaultJWKSURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	keys := jwtx.NewRemoteKeySet(cfg.JWKSURL, cfg.HTTPClient)
	keys.Now = cfg.Now

	return &Client{
		verifier: jwtx.NewVerifierRS256(keys, jwtx.VerifyOptions{
			Issuers:  Issuers,
			Audience: []string{cfg.ClientID},
			Leeway:   clockSkew,
			Now:      cfg.Now,
		}),
		clientID:         cfg.ClientID,
		userinfoEndpoint: cfg.UserinfoEndpoint,
		timeout:          cfg.Timeout,
	}
}

// Exchange resolves token into an Identity. JWTs are verified locally as
// ID tokens; anything else is treated as an access token and looked up
// through the userinfo API.
func (c *Client) Exchange(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if looksLikeJWT(token) {
		return c.verifyIDToken(ctx, token)
	}
	return c.userinfo(ctx, token)
}

// verifyIDToken refuses every ID token when no client ID is configured,
// since any audience would otherwise do.
func (c *Client) verifyIDToken(ctx context.Context, token string) (Identity, error) {
	if c.clientID == "" {
		return Identity{}, fmt.Errorf("%w: no client id configured", ErrInvalidToken)
	}
	claims, err := c.verifier.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Identity{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Email == "" || claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: token has no email or subject", ErrInvalidToken)
	}
	if !bool(claims.EmailVerified) {
		return Identity{}, ErrEmailNotVerified
	}
	return Identity{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}

func (c *Client) userinfo(ctx context.Context, accessToken string) (Identity, error) {
	opts := []option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: accessToken,
			TokenType:   "Bearer",
		})),
	}
	if c.userinfoEndpoint != "" {
		opts = append(opts, option.WithEndpoint(c.userinfoEndpoint))
	}

	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		if isAuthError(err) {
			return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		return Identity{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if info.Email == "" || info.Id == "" {
		return Identity{}, fmt.Errorf("%w: userinfo has no email or id", ErrInvalidToken)
	}
	if info.VerifiedEmail == nil || !*info.VerifiedEmail {
		return Identity{}, ErrEmailNotVerified
	}
	return Identity{
		Subject: info.Id,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}

// isAuthError reports whether Google rejected the token itself rather
// than failing to answer.
func isAuthError(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden ||
		apiErr.Code == http.StatusBadRequest
}

// looksLikeJWT reports whether token is three dot separated segments with
// a JSON header naming an algorithm.
func looksLikeJWT(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	var header struct {
		Alg string `json:"alg"`
	}
	return json.Unmarshal(raw, &header) == nil && header.Alg != ""
}

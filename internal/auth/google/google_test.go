package google

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/quickfix/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testClientID = "quickfix-web.apps.googleusercontent.com"

type fakeGoogle struct {
	signer *jwtx.RS256Signer
	srv    *httptest.Server

	// userinfo responses keyed by access token.
	users map[string]map[string]any
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeGoogle{
		signer: jwtx.NewSignerFromKey("google-kid", key),
		users:  map[string]map[string]any{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /certs", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(jwtx.JWKS{Keys: []jwtx.JWK{f.signer.PublicJWK()}})
	})
	mux.HandleFunc("GET /oauth2/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		auth := r.Header.Get("Authorization")
		if len(auth) <= len(prefix) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		info, ok := f.users[auth[len(prefix):]]
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":401,"message":"Invalid Credentials"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(info)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGoogle) client() *Client {
	return New(Config{
		ClientID:         testClientID,
		JWKSURL:          f.srv.URL + "/certs",
		UserinfoEndpoint: f.srv.URL + "/",
		Timeout:          5 * time.Second,
		HTTPClient:       f.srv.Client(),
	})
}

func (f *fakeGoogle) idToken(t *testing.T, mutate func(*jwtx.IDClaims)) string {
	t.Helper()
	now := time.Now()
	claims := jwtx.IDClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://accounts.google.com",
			Subject:   "110169484474386276334",
			Audience:  jwt.ClaimStrings{testClientID},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Email:         "alice@example.com",
		EmailVerified: true,
		Name:          "Alice Example",
	}
	if mutate != nil {
		mutate(&claims)
	}
	token, err := f.signer.Sign(claims)
	require.NoError(t, err)
	return token
}

func TestExchangeIDToken(t *testing.T) {
	f := newFakeGoogle(t)
	c := f.client()

	id, err := c.Exchange(t.Context(), f.idToken(t, nil))
	require.NoError(t, err)
	require.Equal(t, Identity{
		Subject: "110169484474386276334",
		Email:   "alice@example.com",
		Name:    "Alice Example",
	}, id)
}

func TestExchangeIDTokenRejections(t *testing.T) {
	f := newFakeGoogle(t)
	c := f.client()

	tests := []struct {
		name   string
		mutate func(*jwtx.IDClaims)
		want   error
	}{
		{"other audience", func(c *jwtx.IDClaims) { c.Audience = jwt.ClaimStrings{"other"} }, ErrInvalidToken},
		{"other issuer", func(c *jwtx.IDClaims) { c.Issuer = "https://evil.example" }, ErrInvalidToken},
		{"expired", func(c *jwtx.IDClaims) { c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour)) }, ErrInvalidToken},
		{"unverified email", func(c *jwtx.IDClaims) { c.EmailVerified = false }, ErrEmailNotVerified},
		{"no email", func(c *jwtx.IDClaims) { c.Email = "" }, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Exchange(t.Context(), f.idToken(t, tt.mutate))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestExchangeIDTokenWithoutClientID(t *testing.T) {
	f := newFakeGoogle(t)
	c := New(Config{
		JWKSURL:    f.srv.URL + "/certs",
		Timeout:    5 * time.Second,
		HTTPClient: f.srv.Client(),
	})

	for _, aud := range []string{"some-other-app.apps.googleusercontent.com", testClientID} {
		token := f.idToken(t, func(c *jwtx.IDClaims) { c.Audience = jwt.ClaimStrings{aud} })
		_, err := c.Exchange(t.Context(), token)
		require.ErrorIs(t, err, ErrInvalidToken, "audience %s", aud)
	}
}

func TestExchangeAccessToken(t *testing.T) {
	f := newFakeGoogle(t)
	f.users["ya29.valid"] = map[string]any{
		"id":             "42",
		"email":          "bob@example.com",
		"verified_email": true,
		"name":           "Bob",
	}
	f.users["ya29.unverified"] = map[string]any{
		"id":             "43",
		"email":          "eve@example.com",
		"verified_email": false,
	}
	c := f.client()

	id, err := c.Exchange(t.Context(), "ya29.valid")
	require.NoError(t, err)
	require.Equal(t, "bob@example.com", id.Email)
	require.Equal(t, "42", id.Subject)
	require.Equal(t, "Bob", id.Name)

	_, err = c.Exchange(t.Context(), "ya29.unverified")
	require.ErrorIs(t, err, ErrEmailNotVerified)

	_, err = c.Exchange(t.Context(), "ya29.revoked")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = c.Exchange(t.Context(), "   ")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestExchangeProviderDown(t *testing.T) {
	f := newFakeGoogle(t)
	c := f.client()
	f.srv.Close()

	_, err := c.Exchange(t.Context(), "ya29.valid")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestLooksLikeJWT(t *testing.T) {
	f := newFakeGoogle(t)
	require.True(t, looksLikeJWT(f.idToken(t, nil)))
	require.False(t, looksLikeJWT("ya29.a0AfH6SMBx"))
	require.False(t, looksLikeJWT("a.b.c"))
}
